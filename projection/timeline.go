// Package projection builds a participant's local timeline from what it
// observed: its own pending echoes and the committed messages of the room.
// Handles ordering and deduplication. Does not emit events.
package projection

import (
	"chat-guard/domain"
	"chat-guard/domain/event"
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Timeline holds a simple local timeline.
// Committed messages come first in sequence order, pending echoes of the
// owner follow in submission order until their commit replaces them.
type Timeline struct {
	mu        sync.Mutex
	Owner     domain.ParticipantID
	committed []domain.Message
	pending   []domain.Message
}

func NewTimeline(owner domain.ParticipantID) *Timeline {
	return &Timeline{Owner: owner}
}

// Consume lets the timeline sit behind an event fan-out like any sink.
func (t *Timeline) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessageCommitted:
		t.Commit(evt.Message)
	case event.SendRejected:
		t.Drop(evt.Message.ID)
	}
	return nil
}

// Echo shows the owner's own message before it is committed.
func (t *Timeline) Echo(msg domain.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if msg.Committed() || lo.ContainsBy(t.pending, func(m domain.Message) bool { return m.ID == msg.ID }) {
		return
	}
	msg.LocalAuthor = true
	t.pending = append(t.pending, msg)
}

// Commit applies a committed message. Already seen sequences are ignored so
// a replay after a reconnect never duplicates a line. It reports whether the
// timeline changed.
func (t *Timeline) Commit(msg domain.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !msg.Committed() || msg.Sequence <= t.last() {
		return false
	}
	t.pending = lo.Reject(t.pending, func(m domain.Message, _ int) bool { return m.ID == msg.ID })
	msg.LocalAuthor = msg.Author == t.Owner
	t.committed = append(t.committed, msg)
	return true
}

// Drop removes a pending echo that will never commit (aborted or rejected).
func (t *Timeline) Drop(id uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	before := len(t.pending)
	t.pending = lo.Reject(t.pending, func(m domain.Message, _ int) bool { return m.ID == id })
	return len(t.pending) != before
}

func (t *Timeline) Messages() []domain.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	res := make([]domain.Message, 0, len(t.committed)+len(t.pending))
	res = append(res, t.committed...)
	return append(res, t.pending...)
}

// LastSequence is the resume point to hand back on reconnect.
func (t *Timeline) LastSequence() domain.Sequence {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last()
}

func (t *Timeline) last() domain.Sequence {
	if len(t.committed) == 0 {
		return 0
	}
	return t.committed[len(t.committed)-1].Sequence
}
