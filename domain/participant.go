// Package domain contains core concepts of the chat system.
// This file defines Participant entities and related invariants.
// No runtime, network, or UI logic should be added here.
package domain

type ParticipantID string

// Participant is a room member with delivery progress.
// LastAck is the high-water mark of messages delivered to this participant.
type Participant struct {
	ID          ParticipantID
	DisplayName string
	AvatarURL   string
	LastAck     Sequence
}
