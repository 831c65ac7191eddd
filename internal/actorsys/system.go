package actorsys

import (
	"fmt"
	"sync"

	"github.com/snowdamiz/meshcore/internal/gc"
	"github.com/snowdamiz/meshcore/internal/logging"
	"github.com/snowdamiz/meshcore/internal/scheduler"
)

var log = logging.NewSubsystemLogger("ACTR")

// actorState is the actor-level bookkeeping attached to a scheduler.Process:
// its mailbox, link set, monitors, and exit reason. The scheduler itself
// knows nothing about any of this; System owns it in a side table keyed by
// Pid so internal/scheduler stays a pure cooperative-execution primitive.
type actorState struct {
	mu         sync.Mutex
	mbox       *mailbox
	links      map[scheduler.Pid]struct{}
	monitoring map[Ref]scheduler.Pid // refs this actor is watching
	monitors   map[Ref]scheduler.Pid // refs watching this actor, ref -> watcher pid
	trapExits  bool
	exited     bool
	exitReason string
}

// System owns a Scheduler and the actor-level state layered on top of it:
// mailboxes, links, monitors, and the name registry.
type System struct {
	sched *scheduler.Scheduler

	mu       sync.Mutex
	states   map[scheduler.Pid]*actorState
	registry map[string]scheduler.Pid
}

// Config configures a System.
type Config struct {
	SchedulerOptions []scheduler.Option
}

// New creates a System with its own Scheduler.
func New(cfg Config) *System {
	sys := &System{
		sched:    scheduler.New(cfg.SchedulerOptions...),
		states:   make(map[scheduler.Pid]*actorState),
		registry: make(map[string]scheduler.Pid),
	}

	sys.sched.SetGCHook(func(p *scheduler.Process) {
		state := sys.stateOf(p.Pid)
		if state == nil {
			return
		}

		roots := state.mbox.roots()
		gc.TryTrigger(p.Heap, func() []uintptr { return roots })
	})

	return sys
}

// Stop tears down the underlying scheduler.
func (s *System) Stop() { s.sched.Stop() }

// Send delivers msg to target from outside any actor context (e.g. test
// harnesses, the build driver bootstrapping the `main` actor).
func (s *System) Send(target scheduler.Pid, msg Message) {
	s.deliver(target, msg)
}

// Scheduler exposes the underlying scheduler for callers (e.g. the build
// driver) that need to tune worker counts or inspect process state
// directly.
func (s *System) Scheduler() *scheduler.Scheduler { return s.sched }

func (s *System) stateOf(pid scheduler.Pid) *actorState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[pid]
}

// Behavior is the body of a spawned actor. A non-nil error return, or an
// internal panic, terminates the process with that reason.
type Behavior func(ctx *Context) (Message, error)

// Spawn creates a new actor running behavior and returns its Pid. The
// process starts Ready on the system's scheduler.
func (s *System) Spawn(behavior Behavior) scheduler.Pid {
	state := &actorState{
		mbox:       newMailbox(),
		links:      make(map[scheduler.Pid]struct{}),
		monitoring: make(map[Ref]scheduler.Pid),
		monitors:   make(map[Ref]scheduler.Pid),
	}

	proc := s.sched.Spawn(func(p *scheduler.Process) {
		s.mu.Lock()
		s.states[p.Pid] = state
		s.mu.Unlock()

		ctx := &Context{sys: s, proc: p, state: state}

		reason := s.runBehavior(behavior, ctx)

		s.finalize(p.Pid, state, reason)
	})

	// Register the state now too, so a Send right after Spawn is not
	// dropped before the process first runs; skip it if the process has
	// already exited (finalize removes the entry).
	s.mu.Lock()
	state.mu.Lock()
	exited := state.exited
	state.mu.Unlock()
	if !exited {
		s.states[proc.Pid] = state
	}
	s.mu.Unlock()

	return proc.Pid
}

// runBehavior executes behavior, converting a returned error or a recovered
// panic into an exit reason string. "normal" is returned on a clean exit,
// matching the conventional Erlang-style reason for a non-crashing stop.
func (s *System) runBehavior(behavior Behavior, ctx *Context) (reason string) {
	defer func() {
		if r := recover(); r != nil {
			if sig, ok := r.(exitSignal); ok {
				reason = sig.reason
				return
			}

			reason = fmt.Sprintf("panic: %v", r)
		}
	}()

	_, err := behavior(ctx)
	if err != nil {
		return err.Error()
	}

	return "normal"
}

// finalize propagates exit to links and monitors (I8) and removes the
// actor's state and any registry entries pointing at it.
func (s *System) finalize(pid scheduler.Pid, state *actorState, reason string) {
	state.mu.Lock()
	state.exited = true
	state.exitReason = reason
	links := make([]scheduler.Pid, 0, len(state.links))
	for lp := range state.links {
		links = append(links, lp)
	}
	monitors := make([]scheduler.Pid, 0, len(state.monitors))
	refs := make([]Ref, 0, len(state.monitors))
	for ref, watcher := range state.monitors {
		refs = append(refs, ref)
		monitors = append(monitors, watcher)
	}
	state.mu.Unlock()

	for _, lp := range links {
		s.deliverLinkExit(lp, pid, reason)
	}

	for i, watcher := range monitors {
		s.deliver(watcher, DownMessage{Ref: refs[i], Pid: pid, Reason: reason})
	}

	s.mu.Lock()
	delete(s.states, pid)
	for name, p := range s.registry {
		if p == pid {
			delete(s.registry, name)
		}
	}
	s.mu.Unlock()

	log.Debug("process exited", "pid", pid, "reason", reason)
}

func (s *System) deliverLinkExit(target, from scheduler.Pid, reason string) {
	state := s.stateOf(target)
	if state == nil {
		return
	}

	state.mu.Lock()
	trapping := state.trapExits
	state.mu.Unlock()

	if trapping {
		s.deliver(target, linkExit{pid: from, reason: reason})
		return
	}

	// Non-trapping: deliver as an untrapped linkExit so the target
	// terminates the next time it calls Receive (see Context.Receive).
	state.mbox.push(linkExit{pid: from, reason: reason})
	s.sched.Wake(target)
}

// deliver pushes msg into target's mailbox and wakes it if it is currently
// waiting on a receive.
func (s *System) deliver(target scheduler.Pid, msg Message) {
	state := s.stateOf(target)
	if state == nil {
		return
	}

	state.mbox.push(msg)
	s.sched.Wake(target)
}

// roots is the mailbox's contribution to the process's GC root set (the
// Go-level stand-in for a real stack scan; see internal/gc.RootProvider).
// It returns nil: no word of any mailbox message is reported as a root.
func (mb *mailbox) roots() []uintptr {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	return nil
}
