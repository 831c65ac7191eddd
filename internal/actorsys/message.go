// Package actorsys implements the untyped actor API (§4.C): spawn, send,
// pattern-matched receive with requeue-on-mismatch, links, monitors, the
// process registry, and the timer primitives built on top of
// internal/scheduler's cooperative Process abstraction.
//
// Messages here are untyped (any Go value, matched by pattern at receive
// time) because the language runtime's actors exchange arbitrary values
// the way Erlang/Elixir mailboxes do; internal/builddriver's own checker
// pool runs on this same System rather than a second, statically-typed
// actor framework.
package actorsys

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/snowdamiz/meshcore/internal/scheduler"
)

// Message is the runtime's wire type for actor mailboxes: any Go value can
// be sent, since the language's own type checker (component E) is what
// constrains which values a given receive arm may match against.
type Message = any

// MatchArm is one arm of a receive expression: Match reports whether msg is
// accepted by this arm's pattern, and Body computes the receive
// expression's result from the matched message.
type MatchArm struct {
	Match func(msg Message) bool
	Body  func(msg Message) Message
}

// Ref is a monitor reference, handed back by Monitor and used to correlate
// a later DownMessage or to Demonitor.
type Ref struct {
	id uuid.UUID
}

func newRef() Ref { return Ref{id: uuid.New()} }

func (r Ref) String() string { return r.id.String() }

// DownMessage is delivered to a monitoring actor's mailbox exactly once per
// live Monitor call when the monitored process exits (I8).
type DownMessage struct {
	Ref    Ref
	Pid    scheduler.Pid
	Reason string
}

// linkExit is delivered to a linked actor's mailbox when its link partner
// exits. It is unexported: user code observes exit propagation either by
// matching it explicitly (to trap exits) or, if it doesn't, by the actor
// terminating the next time it calls Receive (see Context.Receive).
type linkExit struct {
	pid    scheduler.Pid
	reason string
}

func (l linkExit) Error() string {
	return fmt.Sprintf("linked process %d exited: %s", l.pid, l.reason)
}

// exitSignal unwinds an actor body when an untrapped linkExit is observed.
// recover()'d only by the Spawn wrapper, never by user code.
type exitSignal struct {
	reason string
}
