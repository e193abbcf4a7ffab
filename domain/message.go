// Package domain contains core concepts of the chat system.
// This file defines Message events and related rules.
// Messages are immutable once committed and validated by the domain.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Sequence is the per-room commit position. Zero means "not committed".
type Sequence uint64

type Verdict int

const (
	VerdictPending Verdict = iota
	VerdictClean
	VerdictFlagged
	VerdictClassificationFailed
)

func (v Verdict) String() string {
	switch v {
	case VerdictPending:
		return "pending"
	case VerdictClean:
		return "clean"
	case VerdictFlagged:
		return "flagged"
	case VerdictClassificationFailed:
		return "classification_failed"
	default:
		return "unknown"
	}
}

// ParseVerdict is the inverse of String; anything unknown reads as pending.
func ParseVerdict(s string) Verdict {
	for _, v := range []Verdict{VerdictClean, VerdictFlagged, VerdictClassificationFailed} {
		if v.String() == s {
			return v
		}
	}
	return VerdictPending
}

// Terminal reports whether a message holding this verdict may be committed.
func (v Verdict) Terminal() bool {
	return v == VerdictClean || v == VerdictFlagged || v == VerdictClassificationFailed
}

// Message represents one chat utterance.
// Submitted never changes; Displayed and Sequence are set once, at commit.
type Message struct {
	ID          uuid.UUID // unique identifier
	Room        RoomID
	Author      ParticipantID
	Submitted   string
	Displayed   string
	Verdict     Verdict
	Confidence  *float64
	Label       string
	Audit       bool // classification failed and the text went out unmasked
	Sequence    Sequence
	SubmittedAt time.Time
	CommittedAt time.Time
	LocalAuthor bool // set by the caller on its optimistic echo, never by the core
}

// Flagged reports whether the displayed text is a mask.
func (m Message) Flagged() bool {
	return m.Verdict == VerdictFlagged
}

// Committed reports whether the message went through the sequencer.
func (m Message) Committed() bool {
	return m.Sequence > 0
}

// NewPendingMessage builds the optimistic echo handed back to the author.
func NewPendingMessage(cmd SendMessageCommand, at time.Time) Message {
	return Message{
		ID:          uuid.New(),
		Room:        cmd.Room,
		Author:      cmd.Author,
		Submitted:   cmd.Content,
		Displayed:   cmd.Content,
		Verdict:     VerdictPending,
		SubmittedAt: at,
		LocalAuthor: true,
	}
}
