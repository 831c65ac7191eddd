package dbpool

import (
	"context"
	"fmt"
)

// encodeParams renders each positional param as its text-protocol wire
// form: fmt.Sprint for everything but []byte (sent verbatim) and nil
// (sent as SQL NULL), since this package talks to the wire protocol
// directly rather than going through a type-mapping query layer.
func encodeParams(params []any) [][]byte {
	out := make([][]byte, len(params))
	for i, p := range params {
		switch v := p.(type) {
		case nil:
			out[i] = nil
		case []byte:
			out[i] = v
		default:
			out[i] = []byte(fmt.Sprint(v))
		}
	}
	return out
}

// PgExecute runs sql against conn with params bound positionally and
// returns the number of rows the command affected (§6.1:
// `pg_execute(conn, sql, params) → Result<affected>`), the surface
// UPDATE/INSERT/DELETE need instead of the error-only exec helper
// PgBegin/PgCommit/PgRollback use.
func PgExecute(ctx context.Context, conn *PgConn, sql string, params ...any) (int64, error) {
	affected, err := conn.wire.execAffected(ctx, sql, encodeParams(params))
	if err != nil {
		return 0, fmt.Errorf("dbpool: execute: %w", err)
	}
	return affected, nil
}

// PgQuery runs sql against conn with params bound positionally and
// returns every result row (§6.1: `pg_query(conn, sql, params) →
// Result<rows>`).
func PgQuery(ctx context.Context, conn *PgConn, sql string, params ...any) ([]Row, error) {
	rows, err := conn.wire.queryRows(ctx, sql, encodeParams(params))
	if err != nil {
		return nil, fmt.Errorf("dbpool: query: %w", err)
	}
	return rows, nil
}

// PoolExecute checks a connection out of pool, runs PgExecute against it,
// and checks it back in regardless of outcome (§6.1: `pool_execute(handle,
// sql, params) → Result`), the pool-level convenience the driver layer
// uses instead of manually pairing Checkout/Checkin around every
// statement.
func PoolExecute(ctx context.Context, pool *PgPool, sql string, params ...any) (int64, error) {
	conn, pgConn, err := checkoutPgConn(ctx, pool)
	if err != nil {
		return 0, err
	}
	defer pool.Checkin(ctx, conn)

	return PgExecute(ctx, pgConn, sql, params...)
}

// PoolQuery checks a connection out of pool, runs PgQuery against it, and
// checks it back in regardless of outcome (§6.1: `pool_query(handle, sql,
// params) → Result`).
func PoolQuery(ctx context.Context, pool *PgPool, sql string, params ...any) ([]Row, error) {
	conn, pgConn, err := checkoutPgConn(ctx, pool)
	if err != nil {
		return nil, err
	}
	defer pool.Checkin(ctx, conn)

	return PgQuery(ctx, pgConn, sql, params...)
}

// checkoutPgConn checks out a Conn and asserts it's a *PgConn, which holds
// for any pool built by NewPgPool and for a NewPgPoolWithDialer pool whose
// Dialer returns *PgConn values; a pool whose Dialer returns another Conn
// type fails this assertion.
func checkoutPgConn(ctx context.Context, pool *PgPool) (Conn, *PgConn, error) {
	conn, err := pool.Checkout(ctx)
	if err != nil {
		return nil, nil, err
	}

	pgConn, ok := conn.(*PgConn)
	if !ok {
		return nil, nil, fmt.Errorf("dbpool: pool connection is not a *PgConn")
	}

	return conn, pgConn, nil
}
