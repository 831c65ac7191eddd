package actorsys

import (
	"errors"
	"testing"
	"time"

	"github.com/snowdamiz/meshcore/internal/scheduler"
	"github.com/stretchr/testify/require"
)

func newTestSystem(t *testing.T) *System {
	t.Helper()
	sys := New(Config{SchedulerOptions: []scheduler.Option{scheduler.WithWorkers(4)}})
	t.Cleanup(sys.Stop)
	return sys
}

func matchAny(body func(Message) Message) MatchArm {
	return MatchArm{
		Match: func(Message) bool { return true },
		Body:  body,
	}
}

// TestReceiveAfterFires is scenario S1: receive with no matching message and
// an `after` clause returns the timeout body's value.
func TestReceiveAfterFires(t *testing.T) {
	sys := newTestSystem(t)

	result := make(chan Message, 1)
	start := time.Now()

	sys.Spawn(func(ctx *Context) (Message, error) {
		v := ctx.Receive(nil, 50, func() Message { return 99 })
		result <- v
		return nil, nil
	})

	select {
	case v := <-result:
		elapsed := time.Since(start)
		require.Equal(t, 99, v)
		require.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
		require.Less(t, elapsed, 500*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("receive-after never fired")
	}
}

// TestSleepDoesNotConsumeMessages is scenario S2: Timer.sleep does not
// consume a message sent while the actor sleeps; a subsequent receive still
// observes it.
func TestSleepDoesNotConsumeMessages(t *testing.T) {
	sys := newTestSystem(t)

	result := make(chan Message, 1)

	a := sys.Spawn(func(ctx *Context) (Message, error) {
		ctx.Sleep(100)
		v := ctx.Receive([]MatchArm{matchAny(func(m Message) Message { return m })}, 0, nil)
		result <- v
		return nil, nil
	})

	sys.Spawn(func(ctx *Context) (Message, error) {
		ctx.Sleep(20)
		ctx.Send(a, "hello")
		return nil, nil
	})

	select {
	case v := <-result:
		require.Equal(t, "hello", v)
	case <-time.After(2 * time.Second):
		t.Fatal("actor A never received the message")
	}
}

func TestReceiveRequeuesNonMatching(t *testing.T) {
	sys := newTestSystem(t)

	result := make(chan []Message, 1)

	a := sys.Spawn(func(ctx *Context) (Message, error) {
		var got []Message

		strArm := MatchArm{
			Match: func(m Message) bool { _, ok := m.(string); return ok },
			Body:  func(m Message) Message { return m },
		}

		// Only strings match; ints stay in the mailbox.
		v1 := ctx.Receive([]MatchArm{strArm}, 500, func() Message { return "timeout" })
		got = append(got, v1)

		intArm := MatchArm{
			Match: func(m Message) bool { _, ok := m.(int); return ok },
			Body:  func(m Message) Message { return m },
		}
		v2 := ctx.Receive([]MatchArm{intArm}, 500, func() Message { return "timeout" })
		got = append(got, v2)

		result <- got
		return nil, nil
	})

	sys.Send(a, 42)
	sys.Send(a, "hi")

	select {
	case got := <-result:
		require.Equal(t, []Message{"hi", 42}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("actor never completed both receives")
	}
}

func TestMonitorDeliversDownExactlyOnce(t *testing.T) {
	sys := newTestSystem(t)

	downCh := make(chan DownMessage, 1)

	// The target sleeps before crashing so the monitor below is in place
	// when it exits; a target that is already gone yields a "noproc" DOWN.
	target := sys.Spawn(func(ctx *Context) (Message, error) {
		ctx.Sleep(50)
		return nil, errors.New("boom")
	})

	sys.Spawn(func(ctx *Context) (Message, error) {
		ref := ctx.Monitor(target)
		v := ctx.Receive([]MatchArm{
			{
				Match: func(m Message) bool {
					down, ok := m.(DownMessage)
					return ok && down.Ref == ref
				},
				Body: func(m Message) Message { return m },
			},
		}, 1000, func() Message { return nil })

		if down, ok := v.(DownMessage); ok {
			downCh <- down
		}

		return nil, nil
	})

	select {
	case down := <-downCh:
		require.Equal(t, target, down.Pid)
		require.Equal(t, "boom", down.Reason)
	case <-time.After(2 * time.Second):
		t.Fatal("monitor never observed DOWN")
	}
}

func TestLinkPropagatesExit(t *testing.T) {
	sys := newTestSystem(t)

	exited := make(chan struct{})

	victim := sys.Spawn(func(ctx *Context) (Message, error) {
		ctx.Receive(nil, 2000, func() Message { return nil })
		close(exited)
		return nil, nil
	})

	sys.Spawn(func(ctx *Context) (Message, error) {
		ctx.Link(victim)
		ctx.Sleep(20)
		return nil, errors.New("crashed")
	})

	select {
	case <-exited:
		t.Fatal("linked victim should have been killed by the propagated exit, not completed its own receive")
	case <-time.After(500 * time.Millisecond):
		// Expected: victim was terminated by the propagated link exit
		// before its own 2s receive timeout could fire.
	}
}

func TestRegisterAndWhereis(t *testing.T) {
	sys := newTestSystem(t)

	registered := make(chan error, 1)

	pid := sys.Spawn(func(ctx *Context) (Message, error) {
		registered <- ctx.Register("math")
		ctx.Receive(nil, 200, func() Message { return nil })
		return nil, nil
	})

	require.NoError(t, <-registered)

	got, ok := sys.Whereis("math")
	require.True(t, ok)
	require.Equal(t, pid, got)

	_, ok = sys.Whereis("nope")
	require.False(t, ok)
}
