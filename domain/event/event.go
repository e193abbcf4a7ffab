package event

import (
	"chat-guard/domain"
	"time"
)

type DomainEvent interface {
	RoomID() domain.RoomID
}

// MessageCommitted is emitted by the sequencer once a message holds its
// sequence number. It is the only event carrying visible chat content.
type MessageCommitted struct {
	Message domain.Message
}

func (m MessageCommitted) RoomID() domain.RoomID {
	return m.Message.Room
}

// SendRejected is emitted when a fail-closed policy discards a message
// because classification could not complete.
type SendRejected struct {
	Message domain.Message
	Cause   string
	At      time.Time
}

func (s SendRejected) RoomID() domain.RoomID {
	return s.Message.Room
}
