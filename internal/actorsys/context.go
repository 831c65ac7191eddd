package actorsys

import (
	"fmt"
	"time"

	"github.com/snowdamiz/meshcore/internal/scheduler"
)

// Context is the per-process handle an actor's Behavior uses to interact
// with the rest of the system: self, send, receive, links, monitors,
// registry, and timers (§4.C).
type Context struct {
	sys   *System
	proc  *scheduler.Process
	state *actorState
}

// Self returns the Pid of the currently executing actor.
func (c *Context) Self() scheduler.Pid { return c.proc.Pid }

// Send enqueues msg into target's mailbox, FIFO per (sender, receiver) pair
// (I9), waking it if it is parked (Waiting) in a receive. A target in
// Sleep stays Ready and is not woken early.
func (c *Context) Send(target scheduler.Pid, msg Message) {
	c.sys.deliver(target, msg)
}

// checkUntrappedExit terminates the current actor via exitSignal panic if
// an untrapped link exit is sitting in its mailbox. Called at the top of
// Receive so link propagation (I8) doesn't require force-killing a
// goroutine.
func (c *Context) checkUntrappedExit() {
	c.state.mu.Lock()
	trapping := c.state.trapExits
	c.state.mu.Unlock()

	if trapping {
		return
	}

	if le, ok := c.state.mbox.popLinkExit(); ok {
		panic(exitSignal{reason: le.Error()})
	}
}

// Receive evaluates a receive expression: scan the mailbox for the first
// message any arm matches, run that arm's body, and return its result.
// Messages that match no arm stay in the mailbox in their original order.
//
// timeoutBody == nil means the source `receive` has no `after` clause at
// all: if nothing matches right away, the process transitions to Waiting
// and stays there until a send wakes it with a matching message (§4.C).
// timeoutMs is meaningless in this case and ignored.
//
// timeoutBody != nil means an `after` clause is present. timeoutMs <= 0 is
// `after 0` (§9 resolved question 1): try once, and if nothing matches, run
// timeoutBody immediately without suspending. timeoutMs > 0 suspends until
// woken by a send or the deadline, then re-checks, running timeoutBody only
// once the deadline has actually passed.
func (c *Context) Receive(arms []MatchArm, timeoutMs int64,
	timeoutBody func() Message) Message {

	c.checkUntrappedExit()

	if msg, body, ok := c.state.mbox.popMatch(arms); ok {
		return body(msg)
	}

	if timeoutBody == nil {
		for {
			c.proc.Suspend()

			c.checkUntrappedExit()

			if msg, body, ok := c.state.mbox.popMatch(arms); ok {
				return body(msg)
			}

			// Spurious wake (another send arrived but didn't match):
			// loop and suspend again. There is no deadline to race.
		}
	}

	if timeoutMs <= 0 {
		return timeoutBody()
	}

	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	timer := time.AfterFunc(time.Until(deadline), func() {
		c.sys.sched.Wake(c.proc.Pid)
	})
	defer timer.Stop()

	for {
		c.proc.Suspend()

		c.checkUntrappedExit()

		if msg, body, ok := c.state.mbox.popMatch(arms); ok {
			return body(msg)
		}

		if time.Now().After(deadline) || time.Now().Equal(deadline) {
			return timeoutBody()
		}

		// Spurious wake (another send arrived but didn't match, or a
		// race with the timer firing early): loop and suspend again.
	}
}

// Sleep blocks the current actor for ms milliseconds without consuming any
// mailbox message (§4.C Timer.sleep): a yield loop with a deadline, leaving
// the process Ready across each yield rather than Waiting, since sleep is
// not conditioned on an external wakeup.
func (c *Context) Sleep(ms int64) {
	deadline := time.Now().Add(time.Duration(ms) * time.Millisecond)

	for time.Now().Before(deadline) {
		c.proc.YieldCurrent()
	}
}

// SendAfter spawns a lightweight timer actor that sleeps ms milliseconds and
// then sends msg to target; fire-and-forget (§4.C Timer.send_after).
func (c *Context) SendAfter(target scheduler.Pid, ms int64, msg Message) scheduler.Pid {
	return c.sys.Spawn(func(tctx *Context) (Message, error) {
		tctx.Sleep(ms)
		tctx.Send(target, msg)
		return nil, nil
	})
}

// Link establishes a symmetric link with other: a crash in either
// propagates to the other unless the receiving side traps exits.
func (c *Context) Link(other scheduler.Pid) {
	c.addLink(c.proc.Pid, other)
	c.addLink(other, c.proc.Pid)
}

func (c *Context) addLink(owner, target scheduler.Pid) {
	state := c.sys.stateOf(owner)
	if state == nil {
		return
	}

	state.mu.Lock()
	state.links[target] = struct{}{}
	state.mu.Unlock()
}

// TrapExits controls whether this actor receives link exits as ordinary
// linkExit messages (observable only internally; user code instead matches
// on the delivered DownMessage-style payloads it defines) instead of being
// terminated by them. Default is false (non-trapping).
func (c *Context) TrapExits(trap bool) {
	c.state.mu.Lock()
	c.state.trapExits = trap
	c.state.mu.Unlock()
}

// Monitor registers unidirectional interest in target's exit and returns a
// Ref correlating the eventual DownMessage (I8: exactly one DOWN per
// registered monitor).
func (c *Context) Monitor(target scheduler.Pid) Ref {
	ref := newRef()

	targetState := c.sys.stateOf(target)
	if targetState == nil {
		// Target already gone; deliver DOWN immediately.
		c.sys.deliver(c.proc.Pid, DownMessage{
			Ref: ref, Pid: target, Reason: "noproc",
		})
		return ref
	}

	targetState.mu.Lock()
	targetState.monitors[ref] = c.proc.Pid
	targetState.mu.Unlock()

	c.state.mu.Lock()
	c.state.monitoring[ref] = target
	c.state.mu.Unlock()

	return ref
}

// Demonitor cancels a previously established monitor; no DOWN will be
// delivered for it afterward.
func (c *Context) Demonitor(ref Ref) {
	c.state.mu.Lock()
	target, ok := c.state.monitoring[ref]
	delete(c.state.monitoring, ref)
	c.state.mu.Unlock()

	if !ok {
		return
	}

	if targetState := c.sys.stateOf(target); targetState != nil {
		targetState.mu.Lock()
		delete(targetState.monitors, ref)
		targetState.mu.Unlock()
	}
}

// Register binds name to the current actor in the process-wide registry.
func (c *Context) Register(name string) error {
	return c.sys.register(name, c.proc.Pid)
}

func (s *System) register(name string, pid scheduler.Pid) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.registry[name]; exists {
		return fmt.Errorf("name %q already registered", name)
	}

	s.registry[name] = pid
	return nil
}

// Whereis looks up a registered name, returning false if it is unbound.
func (c *Context) Whereis(name string) (scheduler.Pid, bool) {
	return c.sys.Whereis(name)
}

// Whereis looks up a registered name from outside any actor context.
func (s *System) Whereis(name string) (scheduler.Pid, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pid, ok := s.registry[name]
	return pid, ok
}
