package dbpool

import (
	"context"
	"fmt"
)

// PgBegin sends BEGIN over conn.
func PgBegin(ctx context.Context, conn *PgConn) error {
	if err := conn.exec(ctx, "BEGIN"); err != nil {
		return fmt.Errorf("dbpool: begin: %w", err)
	}
	return nil
}

// PgCommit sends COMMIT over conn.
func PgCommit(ctx context.Context, conn *PgConn) error {
	if err := conn.exec(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("dbpool: commit: %w", err)
	}
	return nil
}

// PgRollback sends ROLLBACK over conn.
func PgRollback(ctx context.Context, conn *PgConn) error {
	if err := conn.exec(ctx, "ROLLBACK"); err != nil {
		return fmt.Errorf("dbpool: rollback: %w", err)
	}
	return nil
}

// PgTransaction runs fn inside BEGIN/COMMIT, rolling back on error or
// panic (§4.H). Regardless of outcome, conn.TxnStatus() is 'I' once this
// returns: COMMIT and ROLLBACK both drive a fresh ReadyForQuery back to
// idle, and the panic path always reaches the ROLLBACK and then returns
// the panic as an error instead of re-panicking (PQ6).
func PgTransaction(ctx context.Context, conn *PgConn, fn func(*PgConn) error) (err error) {
	if beginErr := PgBegin(ctx, conn); beginErr != nil {
		return beginErr
	}

	defer func() {
		if r := recover(); r != nil {
			if rbErr := PgRollback(ctx, conn); rbErr != nil {
				log.Error("rollback after panic failed", "error", rbErr)
			}
			err = fmt.Errorf("dbpool: transaction panicked: %v", r)
		}
	}()

	if callErr := fn(conn); callErr != nil {
		if rbErr := PgRollback(ctx, conn); rbErr != nil {
			return fmt.Errorf("dbpool: rollback after %w failed: %v", callErr, rbErr)
		}
		return callErr
	}

	return PgCommit(ctx, conn)
}
