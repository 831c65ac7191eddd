package dbpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrPoolClosed is returned by Checkout once the pool has been closed.
var ErrPoolClosed = errors.New("dbpool: pool is closed")

// Conn is the subset of *PgConn's behavior the pool depends on. Production
// pools dial real *PgConn values; tests substitute a fake to exercise the
// checkout/checkin state machine without a live Postgres server.
type Conn interface {
	HealthCheck(ctx context.Context) bool
	Close(ctx context.Context) error
}

// Dialer opens one new connection for the pool to add to its created
// count. NewPgPool installs a Dialer that dials dsn via Connect.
type Dialer func(ctx context.Context) (Conn, error)

// PgPool is a bounded pool of Conn, checked out under a Mutex with a
// broadcast-channel condition variable standing in for a Condvar (§4.H).
// created tracks every live connection (idle + active); active tracks
// only connections currently checked out; idle holds the rest.
type PgPool struct {
	mu sync.Mutex

	dial            Dialer
	max             int
	checkoutTimeout time.Duration

	idle    []Conn
	created int
	active  int
	closed  bool

	// waitCh is closed and replaced every time pool state changes in a
	// way a blocked Checkout should reconsider (a checkin or a close);
	// selecting on it is the broadcast-channel idiom for a Condvar that
	// also needs to honor a deadline, which sync.Cond cannot do alone.
	waitCh chan struct{}
}

// NewPgPool constructs a pool that opens connections to dsn lazily, up to
// maxConns concurrently checked out, waiting up to checkoutTimeout for a
// connection to free up once the pool is at capacity.
func NewPgPool(dsn string, maxConns int, checkoutTimeout time.Duration) *PgPool {
	return NewPgPoolWithDialer(func(ctx context.Context) (Conn, error) {
		return Connect(ctx, dsn)
	}, maxConns, checkoutTimeout)
}

// NewPgPoolWithDialer is NewPgPool with an injectable Dialer, used by
// tests to exercise the pool's state machine without a live server.
func NewPgPoolWithDialer(dial Dialer, maxConns int, checkoutTimeout time.Duration) *PgPool {
	return &PgPool{
		dial:            dial,
		max:             maxConns,
		checkoutTimeout: checkoutTimeout,
		waitCh:          make(chan struct{}),
	}
}

// Checkout implements the pool checkout algorithm exactly (§4.H):
//  1. closed → error.
//  2. idle non-empty → pop one, health-check outside the lock; alive
//     returns it, dead closes it and retries.
//  3. created < max → reserve capacity, dial outside the lock.
//  4. otherwise wait on the condvar up to checkout_timeout, then reloop.
func (p *PgPool) Checkout(ctx context.Context) (Conn, error) {
	deadline := time.Now().Add(p.checkoutTimeout)

	for {
		p.mu.Lock()

		if p.closed {
			p.mu.Unlock()
			return nil, ErrPoolClosed
		}

		if n := len(p.idle); n > 0 {
			conn := p.idle[n-1]
			p.idle = p.idle[:n-1]
			p.active++
			p.mu.Unlock()

			if conn.HealthCheck(ctx) {
				return conn, nil
			}

			log.Debug("discarding dead idle connection")
			_ = conn.Close(ctx)
			p.mu.Lock()
			p.active--
			p.created--
			p.mu.Unlock()
			continue
		}

		if p.created < p.max {
			p.created++
			p.active++
			p.mu.Unlock()

			conn, err := p.dial(ctx)
			if err != nil {
				p.mu.Lock()
				p.created--
				p.active--
				p.mu.Unlock()
				return nil, fmt.Errorf("dbpool: checkout: %w", err)
			}
			return conn, nil
		}

		waitCh := p.waitCh
		p.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("dbpool: checkout timeout after %s", p.checkoutTimeout)
		}

		timer := time.NewTimer(remaining)
		select {
		case <-waitCh:
			timer.Stop()
			continue
		case <-timer.C:
			return nil, fmt.Errorf("dbpool: checkout timeout after %s", p.checkoutTimeout)
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}
}

// Checkin implements the pool checkin algorithm (§4.H, §9 resolved
// question 2 "pool_close semantics: detach"): a connection returned
// against a still-open pool is re-queued and wakes every blocked Checkout
// (each re-checks the pool, and at most one takes the connection); one
// returned against a closed pool is closed immediately rather than
// re-queued, a bounded, documented leak of created/active bookkeeping
// that Close already stopped relying on.
func (p *PgPool) Checkin(ctx context.Context, conn Conn) {
	p.mu.Lock()

	if p.closed {
		p.active--
		p.mu.Unlock()
		_ = conn.Close(ctx)
		return
	}

	p.idle = append(p.idle, conn)
	p.active--
	old := p.waitCh
	p.waitCh = make(chan struct{})
	p.mu.Unlock()

	close(old)
}

// Close marks the pool closed and drains (closes) every idle connection.
// Active checkouts are not waited on: they observe the closed pool on
// their next Checkin and close themselves instead of re-queuing.
func (p *PgPool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}

	p.closed = true
	idle := p.idle
	p.idle = nil
	old := p.waitCh
	p.waitCh = make(chan struct{})
	p.mu.Unlock()

	close(old)

	var firstErr error
	for _, conn := range idle {
		if err := conn.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Stats is a snapshot of pool bookkeeping, exposed for tests and
// operational introspection.
type Stats struct {
	Created int
	Active  int
	Idle    int
	Closed  bool
}

// Stats returns a snapshot of the pool's current bookkeeping.
func (p *PgPool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Created: p.created, Active: p.active, Idle: len(p.idle), Closed: p.closed}
}
