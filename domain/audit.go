package domain

import (
	"time"

	"github.com/google/uuid"
)

type AuditKind string

const (
	AuditFlagged              AuditKind = "flagged"
	AuditClassificationFailed AuditKind = "classification_failed"
	AuditRejected             AuditKind = "rejected"
)

// AuditEntry is the operator-side record of a moderated message.
// It keeps the submitted text, which participants never see once masked.
type AuditEntry struct {
	MessageID uuid.UUID
	Room      RoomID
	Author    ParticipantID
	Kind      AuditKind
	Text      string
	Label     string
	Language  string
	Sequence  Sequence
	At        time.Time
}

type AuditQuery struct {
	Text  string
	Room  RoomID
	Kind  AuditKind
	Limit int
}
