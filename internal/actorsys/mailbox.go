package actorsys

import "sync"

// mailbox is a per-process FIFO, scanned front-to-back on Receive rather
// than drained through a channel, so a non-matching message can stay put
// (I9: ordering preserved between any pair (sender, receiver)).
type mailbox struct {
	mu   sync.Mutex
	msgs []Message
}

func newMailbox() *mailbox {
	return &mailbox{}
}

func (mb *mailbox) push(msg Message) {
	mb.mu.Lock()
	mb.msgs = append(mb.msgs, msg)
	mb.mu.Unlock()
}

// popMatch scans the mailbox in FIFO order and removes the first message
// any arm accepts, returning the arm's body and the message. Earlier
// messages that matched no arm are left in place (the "requeue" of §4.C is
// simply not removing them).
func (mb *mailbox) popMatch(arms []MatchArm) (Message, func(Message) Message, bool) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	for i, msg := range mb.msgs {
		for _, arm := range arms {
			if arm.Match(msg) {
				mb.msgs = append(mb.msgs[:i:i], mb.msgs[i+1:]...)
				return msg, arm.Body, true
			}
		}
	}

	return nil, nil, false
}

// popLinkExit removes and returns the first untrapped linkExit found in the
// mailbox, if any.
func (mb *mailbox) popLinkExit() (linkExit, bool) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	for i, msg := range mb.msgs {
		if le, ok := msg.(linkExit); ok {
			mb.msgs = append(mb.msgs[:i:i], mb.msgs[i+1:]...)
			return le, true
		}
	}

	return linkExit{}, false
}

func (mb *mailbox) len() int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return len(mb.msgs)
}
