// Package dbpool implements the PostgreSQL connection pool, parameterized
// execute/query, and transaction helpers (§3.4, §4.H, §6.1): a raw
// wire-protocol connection wrapper around jackc/pgx/v5/pgconn, a bounded
// Mutex+Condvar pool with health-checked checkout/checkin, and panic-safe
// transaction execution.
package dbpool

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/snowdamiz/meshcore/internal/logging"
)

var log = logging.NewSubsystemLogger("DBPOOL")

// Row is one result row from PgQuery: each column's raw value, text-encoded
// the way the wire protocol returns it, with nil meaning SQL NULL.
type Row [][]byte

// wireConn is the minimal surface PgConn needs from a wire-protocol
// client. realWire adapts the genuine pgconn.PgConn to it; tests
// substitute a fake so the transaction helpers and pool can be exercised
// without a live Postgres server.
type wireConn interface {
	// execDiscard runs sql and discards any result rows, returning only
	// the error.
	execDiscard(ctx context.Context, sql string) error
	// execAffected runs sql with params bound positionally and returns
	// the affected-row count from the command tag (§6.1's pg_execute).
	execAffected(ctx context.Context, sql string, params [][]byte) (int64, error)
	// queryRows runs sql with params bound positionally and returns every
	// result row (§6.1's pg_query).
	queryRows(ctx context.Context, sql string, params [][]byte) ([]Row, error)
	// txStatus returns the byte from the most recent ReadyForQuery.
	txStatus() byte
	close(ctx context.Context) error
	isClosed() bool
}

// realWire adapts *pgconn.PgConn to wireConn. pgconn already tracks the
// transaction status byte from every ReadyForQuery message it reads
// internally and exposes it via TxStatus(), so txStatus here is a direct
// delegation rather than a reimplementation — the invariant "every
// ReadyForQuery updates txn_status" (§4.H, foundational) holds for free.
type realWire struct{ raw *pgconn.PgConn }

func (w realWire) execDiscard(ctx context.Context, sql string) error {
	_, err := w.raw.Exec(ctx, sql).ReadAll()
	return err
}

// paramMeta builds the OID/format slices ExecParams requires alongside the
// param values themselves: zero OID lets the server infer each param's
// type from context, and format 0 is text, matching how params are
// encoded by encodeParams.
func paramMeta(n int) ([]uint32, []int16) {
	return make([]uint32, n), make([]int16, n)
}

func (w realWire) execAffected(ctx context.Context, sql string, params [][]byte) (int64, error) {
	oids, formats := paramMeta(len(params))
	result := w.raw.ExecParams(ctx, sql, params, oids, formats, nil).Read()
	if result.Err != nil {
		return 0, result.Err
	}
	return result.CommandTag.RowsAffected(), nil
}

func (w realWire) queryRows(ctx context.Context, sql string, params [][]byte) ([]Row, error) {
	oids, formats := paramMeta(len(params))
	result := w.raw.ExecParams(ctx, sql, params, oids, formats, nil).Read()
	if result.Err != nil {
		return nil, result.Err
	}

	rows := make([]Row, len(result.Rows))
	for i, r := range result.Rows {
		rows[i] = Row(r)
	}
	return rows, nil
}

func (w realWire) txStatus() byte                  { return byte(w.raw.TxStatus()) }
func (w realWire) close(ctx context.Context) error { return w.raw.Close(ctx) }
func (w realWire) isClosed() bool                  { return w.raw.IsClosed() }

// PgConn wraps a single wire connection.
type PgConn struct {
	wire wireConn
}

// Connect opens a new wire connection to dsn.
func Connect(ctx context.Context, dsn string) (*PgConn, error) {
	raw, err := pgconn.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("dbpool: connect: %w", err)
	}
	return &PgConn{wire: realWire{raw: raw}}, nil
}

// TxnStatus returns the most recently observed transaction status byte:
// 'I' idle, 'T' in a transaction, 'E' in a failed transaction.
func (c *PgConn) TxnStatus() byte {
	return c.wire.txStatus()
}

// Close closes the underlying wire connection.
func (c *PgConn) Close(ctx context.Context) error {
	return c.wire.close(ctx)
}

// IsClosed reports whether the underlying connection is already closed.
func (c *PgConn) IsClosed() bool {
	return c.wire.isClosed()
}

// HealthCheck sends `SELECT 1` and reports whether the connection is
// still alive, per the pool checkout algorithm's health-check step
// (§4.H point 2).
func (c *PgConn) HealthCheck(ctx context.Context) bool {
	return c.wire.execDiscard(ctx, "SELECT 1") == nil
}

// exec runs sql with no parameters, used by the transaction helpers,
// whose callers only care whether BEGIN/COMMIT/ROLLBACK succeeded.
func (c *PgConn) exec(ctx context.Context, sql string) error {
	return c.wire.execDiscard(ctx, sql)
}
