package dbpool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// fakeConn is a Conn that never touches the network, so pool tests can
// exercise the checkout/checkin state machine deterministically.
type fakeConn struct {
	healthy int32
	closed  int32
}

func newFakeConn() *fakeConn {
	return &fakeConn{healthy: 1}
}

func (c *fakeConn) HealthCheck(ctx context.Context) bool {
	return atomic.LoadInt32(&c.healthy) == 1
}

func (c *fakeConn) Close(ctx context.Context) error {
	atomic.StoreInt32(&c.closed, 1)
	return nil
}

func fakeDialer(created *int32) Dialer {
	return func(ctx context.Context) (Conn, error) {
		atomic.AddInt32(created, 1)
		return newFakeConn(), nil
	}
}

// TestCheckoutThenCheckinLeavesActiveUnchanged is PQ5: a checkout
// followed by a checkin leaves active_count unchanged and idle with one
// more entry than immediately after the checkout (i.e. back to where it
// started, for a non-closed pool).
func TestCheckoutThenCheckinLeavesActiveUnchanged(t *testing.T) {
	var created int32
	pool := NewPgPoolWithDialer(fakeDialer(&created), 4, time.Second)

	before := pool.Stats()

	conn, err := pool.Checkout(context.Background())
	require.NoError(t, err)
	require.Equal(t, before.Active+1, pool.Stats().Active)

	pool.Checkin(context.Background(), conn)

	after := pool.Stats()
	require.Equal(t, before.Active, after.Active)
	require.Equal(t, before.Idle+1, after.Idle)
}

// TestCheckoutCheckinRoundTripProperty is PQ5 as a property test: for any
// number of sequential checkout/checkin round trips against a pool with
// enough capacity to never block, active_count returns to 0 and idle
// grows by at most one distinct connection.
func TestCheckoutCheckinRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		rounds := rapid.IntRange(1, 20).Draw(rt, "rounds")

		var created int32
		pool := NewPgPoolWithDialer(fakeDialer(&created), 4, time.Second)

		for i := 0; i < rounds; i++ {
			conn, err := pool.Checkout(context.Background())
			require.NoError(rt, err)
			require.Equal(rt, 1, pool.Stats().Active)

			pool.Checkin(context.Background(), conn)
			require.Equal(rt, 0, pool.Stats().Active)
		}

		require.Equal(rt, 1, pool.Stats().Idle)
	})
}

// TestDeadIdleConnectionIsDiscardedAndRetried covers checkout step 2:
// a dead idle connection is closed and checkout retries rather than
// handing back a broken connection.
func TestDeadIdleConnectionIsDiscardedAndRetried(t *testing.T) {
	var created int32
	pool := NewPgPoolWithDialer(fakeDialer(&created), 2, time.Second)

	conn, err := pool.Checkout(context.Background())
	require.NoError(t, err)
	pool.Checkin(context.Background(), conn)

	dead := conn.(*fakeConn)
	atomic.StoreInt32(&dead.healthy, 0)

	conn2, err := pool.Checkout(context.Background())
	require.NoError(t, err)
	require.NotSame(t, dead, conn2)
	require.Equal(t, int32(1), atomic.LoadInt32(&dead.closed))
	require.Equal(t, int32(2), atomic.LoadInt32(&created))
}

// TestPoolExhaustionTimeout is scenario S3: min=0, max=1, timeout=100ms.
// Checkout once and hold; the second checkout must error with "timeout"
// within 100-200ms.
func TestPoolExhaustionTimeout(t *testing.T) {
	var created int32
	pool := NewPgPoolWithDialer(fakeDialer(&created), 1, 100*time.Millisecond)

	_, err := pool.Checkout(context.Background())
	require.NoError(t, err)

	start := time.Now()
	_, err = pool.Checkout(context.Background())
	elapsed := time.Since(start)

	require.Error(t, err)
	require.Contains(t, err.Error(), "timeout")
	require.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	require.Less(t, elapsed, 200*time.Millisecond)
}

// TestCheckinWakesWaitingCheckout covers the condvar handoff: a
// blocked checkout unblocks as soon as the held connection is checked
// back in, well before its timeout would fire.
func TestCheckinWakesWaitingCheckout(t *testing.T) {
	var created int32
	pool := NewPgPoolWithDialer(fakeDialer(&created), 1, 2*time.Second)

	held, err := pool.Checkout(context.Background())
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	start := time.Now()
	var elapsed time.Duration
	go func() {
		defer wg.Done()
		_, err := pool.Checkout(context.Background())
		elapsed = time.Since(start)
		require.NoError(t, err)
	}()

	time.Sleep(50 * time.Millisecond)
	pool.Checkin(context.Background(), held)
	wg.Wait()

	require.Less(t, elapsed, time.Second)
}

// TestCheckinAfterCloseClosesInsteadOfRequeuing covers §9 resolved
// question 2: checking in against a closed pool closes the connection
// rather than re-queuing it.
func TestCheckinAfterCloseClosesInsteadOfRequeuing(t *testing.T) {
	var created int32
	pool := NewPgPoolWithDialer(fakeDialer(&created), 2, time.Second)

	conn, err := pool.Checkout(context.Background())
	require.NoError(t, err)

	require.NoError(t, pool.Close(context.Background()))

	pool.Checkin(context.Background(), conn)
	require.Equal(t, int32(1), atomic.LoadInt32(&conn.(*fakeConn).closed))
	require.Equal(t, 0, pool.Stats().Idle)
}

func TestCheckoutOnClosedPoolErrors(t *testing.T) {
	var created int32
	pool := NewPgPoolWithDialer(fakeDialer(&created), 2, time.Second)
	require.NoError(t, pool.Close(context.Background()))

	_, err := pool.Checkout(context.Background())
	require.ErrorIs(t, err, ErrPoolClosed)
}

// fakeWire is a wireConn that tracks the statement sequence and simulates
// the transaction-status transitions a real server's ReadyForQuery
// messages would drive, so PgTransaction's control flow can be asserted
// on without a live Postgres server.
type fakeWire struct {
	statements []string
	status     byte
	failExec   map[string]bool
	affected   map[string]int64
	rows       map[string][]Row

	// x and savedX give the fake just enough data semantics to exercise
	// S4 for real: a single-row table `t(x int)`, with BEGIN snapshotting
	// x and ROLLBACK restoring it, so a PgQuery after a rolled-back
	// PgExecute observes the pre-transaction value rather than a
	// statement list that never touched any data.
	x      int64
	savedX int64
}

func newFakeWire() *fakeWire {
	return &fakeWire{
		status:   'I',
		failExec: map[string]bool{},
		affected: map[string]int64{},
		rows:     map[string][]Row{},
		x:        1,
	}
}

func (w *fakeWire) execDiscard(ctx context.Context, sql string) error {
	w.statements = append(w.statements, sql)
	if w.failExec[sql] {
		return errTestExec
	}
	switch sql {
	case "BEGIN":
		w.savedX = w.x
		w.status = 'T'
	case "COMMIT":
		w.status = 'I'
	case "ROLLBACK":
		w.x = w.savedX
		w.status = 'I'
	}
	return nil
}

func (w *fakeWire) execAffected(ctx context.Context, sql string, params [][]byte) (int64, error) {
	w.statements = append(w.statements, sql)
	if w.failExec[sql] {
		return 0, errTestExec
	}
	if sql == "UPDATE t SET x = 2" {
		w.x = 2
		return 1, nil
	}
	return w.affected[sql], nil
}

func (w *fakeWire) queryRows(ctx context.Context, sql string, params [][]byte) ([]Row, error) {
	w.statements = append(w.statements, sql)
	if w.failExec[sql] {
		return nil, errTestExec
	}
	if sql == "SELECT x FROM t" {
		return []Row{{[]byte(fmt.Sprint(w.x))}}, nil
	}
	return w.rows[sql], nil
}

func (w *fakeWire) txStatus() byte                  { return w.status }
func (w *fakeWire) close(ctx context.Context) error { return nil }
func (w *fakeWire) isClosed() bool                  { return false }

var errTestExec = errors.New("dbpool: simulated exec failure")

func newConnWithFakeWire() (*PgConn, *fakeWire) {
	w := newFakeWire()
	return &PgConn{wire: w}, w
}

// TestPgTransactionPanicRollsBack is scenario S4 at the transaction-helper
// level: a panicking fn still leaves the connection idle ('I') afterward,
// and the error surfaces rather than propagating the panic.
func TestPgTransactionPanicRollsBack(t *testing.T) {
	conn, wire := newConnWithFakeWire()

	err := PgTransaction(context.Background(), conn, func(*PgConn) error {
		panic("boom")
	})

	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "panicked"))
	require.Equal(t, []string{"BEGIN", "ROLLBACK"}, wire.statements)
	require.Equal(t, byte('I'), conn.TxnStatus())
}

// TestPgTransactionCommitsOnSuccess is PQ6's non-error arm: a successful
// fn commits, leaving txn_status 'I'.
func TestPgTransactionCommitsOnSuccess(t *testing.T) {
	conn, wire := newConnWithFakeWire()

	err := PgTransaction(context.Background(), conn, func(*PgConn) error {
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, []string{"BEGIN", "COMMIT"}, wire.statements)
	require.Equal(t, byte('I'), conn.TxnStatus())
}

// TestPgTransactionRollsBackOnError is PQ6's error arm.
func TestPgTransactionRollsBackOnError(t *testing.T) {
	conn, wire := newConnWithFakeWire()
	fnErr := errors.New("business logic failed")

	err := PgTransaction(context.Background(), conn, func(*PgConn) error {
		return fnErr
	})

	require.ErrorIs(t, err, fnErr)
	require.Equal(t, []string{"BEGIN", "ROLLBACK"}, wire.statements)
	require.Equal(t, byte('I'), conn.TxnStatus())
}

// TestPgTransactionPanicLeavesRowUnchanged is scenario S4 end to end: in a
// table t(x int) with one row (1), PgTransaction runs `UPDATE t SET x=2`
// via PgExecute and then panics; after PgTransaction returns, PgQuery's
// `SELECT x FROM t` still observes 1, because the rollback actually
// reverted the row rather than the test only checking which statements
// were sent.
func TestPgTransactionPanicLeavesRowUnchanged(t *testing.T) {
	conn, _ := newConnWithFakeWire()

	err := PgTransaction(context.Background(), conn, func(txConn *PgConn) error {
		affected, execErr := PgExecute(context.Background(), txConn, "UPDATE t SET x = 2")
		require.NoError(t, execErr)
		require.Equal(t, int64(1), affected)
		panic("boom")
	})

	require.Error(t, err)
	require.Equal(t, byte('I'), conn.TxnStatus())

	rows, err := PgQuery(context.Background(), conn, "SELECT x FROM t")
	require.NoError(t, err)
	require.Equal(t, []Row{{[]byte("1")}}, rows)
}

// TestPgExecuteThenPgQueryObservesEffects covers the general PgExecute/
// PgQuery surface with arbitrary statements and params, independent of
// the S4 fixture's single tracked row.
func TestPgExecuteThenPgQueryObservesEffects(t *testing.T) {
	conn, wire := newConnWithFakeWire()
	wire.affected["UPDATE widgets SET count = count + 1 WHERE id = $1"] = 3
	wire.rows["SELECT count FROM widgets WHERE id = $1"] = []Row{
		{[]byte("43")},
	}

	affected, err := PgExecute(context.Background(), conn,
		"UPDATE widgets SET count = count + 1 WHERE id = $1", 7)
	require.NoError(t, err)
	require.Equal(t, int64(3), affected)

	rows, err := PgQuery(context.Background(), conn,
		"SELECT count FROM widgets WHERE id = $1", 7)
	require.NoError(t, err)
	require.Equal(t, []Row{{[]byte("43")}}, rows)

	require.Equal(t, []string{
		"UPDATE widgets SET count = count + 1 WHERE id = $1",
		"SELECT count FROM widgets WHERE id = $1",
	}, wire.statements)
}

// TestPgExecutePropagatesError covers PgExecute's error path: a failing
// statement surfaces its error rather than a zero affected count being
// mistaken for "no rows matched".
func TestPgExecutePropagatesError(t *testing.T) {
	conn, wire := newConnWithFakeWire()
	wire.failExec["DELETE FROM widgets"] = true

	_, err := PgExecute(context.Background(), conn, "DELETE FROM widgets")
	require.ErrorIs(t, err, errTestExec)
}

// TestPoolExecuteThenPoolQueryRoundTrips covers the pool-level helpers:
// they check a connection out, run the statement, and check it back in,
// leaving the pool's active count unchanged afterward.
func TestPoolExecuteThenPoolQueryRoundTrips(t *testing.T) {
	var created int32
	pool := NewPgPoolWithDialer(func(ctx context.Context) (Conn, error) {
		atomic.AddInt32(&created, 1)
		conn, _ := newConnWithFakeWire()
		return conn, nil
	}, 2, time.Second)

	affected, err := PoolExecute(context.Background(), pool,
		"UPDATE widgets SET count = count + 1")
	require.NoError(t, err)
	require.Zero(t, affected) // fakeWire defaults unconfigured SQL to 0 affected.

	_, err = PoolQuery(context.Background(), pool, "SELECT count FROM widgets")
	require.NoError(t, err)

	require.Equal(t, 0, pool.Stats().Active)
	require.Equal(t, 1, pool.Stats().Idle)
}
