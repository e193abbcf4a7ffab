// Package domain contains core concepts of the chat system.
// This file defines the Room aggregate: its members and its ordered log.
package domain

import (
	"chat-guard/errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
)

type RoomID string

// RoomSummary is a read-only snapshot used for listings.
type RoomSummary struct {
	ID           RoomID
	Name         string
	Participants int
	Tail         Sequence
	CreatedAt    time.Time
}

// Room holds members and the append-only log of committed messages.
// log[i] always carries Sequence i+1.
type Room struct {
	ID        RoomID
	Name      string
	CreatedAt time.Time

	mu           sync.RWMutex
	participants map[ParticipantID]Participant
	log          []Message
	next         Sequence
}

func NewRoom(id RoomID, name string, createdAt time.Time) *Room {
	return &Room{
		ID:           id,
		Name:         name,
		CreatedAt:    createdAt,
		participants: make(map[ParticipantID]Participant),
		log:          nil,
		next:         1,
	}
}

// Join adds a participant. Joining again refreshes the profile but keeps
// the delivery progress.
func (r *Room) Join(p Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.participants[p.ID]; ok {
		p.LastAck = existing.LastAck
	}
	if p.LastAck > r.next-1 {
		p.LastAck = r.next - 1
	}
	r.participants[p.ID] = p
}

// Leave removes a participant. History is left untouched.
func (r *Room) Leave(id ParticipantID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.participants[id]; !ok {
		return false
	}
	delete(r.participants, id)
	return true
}

func (r *Room) IsMember(id ParticipantID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.participants[id]
	return ok
}

func (r *Room) Participant(id ParticipantID) (Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.participants[id]
	return p, ok
}

// Participants returns members ordered by ID.
func (r *Room) Participants() []Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := lo.Values(r.participants)
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// Ack moves the participant high-water mark forward. It never moves back
// and never passes the log tail.
func (r *Room) Ack(id ParticipantID, seq Sequence) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[id]
	if !ok {
		return false
	}
	if seq > r.next-1 {
		seq = r.next - 1
	}
	if seq > p.LastAck {
		p.LastAck = seq
		r.participants[id] = p
	}
	return true
}

// Append assigns the next sequence number and appends the message.
// Callers must hold the room's commit exclusivity; a collision here means
// that exclusivity was broken and the log must not be renumbered.
func (r *Room) Append(msg Message, at time.Time) (Message, error) {
	if !msg.Verdict.Terminal() {
		return Message{}, errors.ErrNotClassified
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if msg.Sequence != 0 {
		return Message{}, fmt.Errorf("%w: message %s already holds sequence %d",
			errors.ErrSequencingConflict, msg.ID, msg.Sequence)
	}
	if r.next != Sequence(len(r.log)+1) {
		return Message{}, fmt.Errorf("%w: %d messages held, next %d",
			errors.ErrSequencingConflict, len(r.log), r.next)
	}

	msg.Sequence = r.next
	msg.CommittedAt = at
	msg.LocalAuthor = false
	r.log = append(r.log, msg)
	r.next++
	return msg, nil
}

// Since returns up to limit committed messages with a sequence strictly
// greater than after. A limit <= 0 means no limit.
func (r *Room) Since(after Sequence, limit int) []Message {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(after) >= len(r.log) {
		return nil
	}
	tail := r.log[after:]
	if limit > 0 && len(tail) > limit {
		tail = tail[:limit]
	}
	res := make([]Message, len(tail))
	copy(res, tail)
	return res
}

// Tail is the sequence of the last committed message, zero when empty.
func (r *Room) Tail() Sequence {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.next - 1
}

// Len is the number of messages held in the log, which trails Tail when the
// room has a hole.
func (r *Room) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.log)
}

// Verify checks that the log is gap free and matches the counter.
func (r *Room) Verify() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i, m := range r.log {
		if m.Sequence != Sequence(i+1) {
			return fmt.Errorf("%w: position %d holds sequence %d",
				errors.ErrSequencingConflict, i+1, m.Sequence)
		}
	}
	if r.next != Sequence(len(r.log)+1) {
		return fmt.Errorf("%w: counter %d for %d messages",
			errors.ErrSequencingConflict, r.next, len(r.log))
	}
	return nil
}

// Restore loads a previously committed log, typically read back from disk.
// The messages must be contiguous from sequence 1. The counter never moves
// back, so restoring a shorter log leaves the room unable to append.
func (r *Room) Restore(messages []Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, m := range messages {
		if m.Sequence != Sequence(i+1) {
			return fmt.Errorf("%w: restored position %d holds sequence %d",
				errors.ErrSequencingConflict, i+1, m.Sequence)
		}
	}
	r.log = append([]Message(nil), messages...)
	if next := Sequence(len(messages) + 1); next > r.next {
		r.next = next
	}
	return nil
}

// Reserve marks every sequence up to upTo as used, whether or not the log
// holds it. Reserving past the tail opens a hole: Append and Verify fail
// until the missing messages are restored.
func (r *Room) Reserve(upTo Sequence) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if upTo >= r.next {
		r.next = upTo + 1
	}
}

func (r *Room) Summary() RoomSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RoomSummary{
		ID:           r.ID,
		Name:         r.Name,
		Participants: len(r.participants),
		Tail:         r.next - 1,
		CreatedAt:    r.CreatedAt,
	}
}
