// Package chatv1 is the wire contract of chatguard.v1.ChatService.
// Messages travel as CBOR (content subtype "cbor"); field keys are part of
// the contract and must not be renamed.
package chatv1

import (
	"time"
)

type Empty struct{}

type CreateRoomRequest struct {
	Name string `cbor:"name"`
}

type Room struct {
	ID           string    `cbor:"id"`
	Name         string    `cbor:"name"`
	Participants int       `cbor:"participants"`
	Tail         uint64    `cbor:"tail"`
	CreatedAt    time.Time `cbor:"created_at"`
}

type ListRoomsRequest struct{}

type ListRoomsResponse struct {
	Rooms []Room `cbor:"rooms"`
}

// JoinRoomRequest joins as the participant named in the call metadata.
type JoinRoomRequest struct {
	Room        string `cbor:"room"`
	DisplayName string `cbor:"display_name,omitempty"`
	AvatarURL   string `cbor:"avatar_url,omitempty"`
}

type LeaveRoomRequest struct {
	Room string `cbor:"room"`
}

type ListParticipantsRequest struct {
	Room string `cbor:"room"`
}

type Participant struct {
	ID          string `cbor:"id"`
	DisplayName string `cbor:"display_name"`
	AvatarURL   string `cbor:"avatar_url,omitempty"`
	LastAck     uint64 `cbor:"last_ack"`
}

type ListParticipantsResponse struct {
	Participants []Participant `cbor:"participants"`
}

type SendMessageRequest struct {
	Room    string `cbor:"room"`
	Content string `cbor:"content"`
	Wait    bool   `cbor:"wait,omitempty"`
}

// Message is a chat line as a participant may see it. Text is the displayed
// text: never the submitted one for a flagged message.
type Message struct {
	ID          string    `cbor:"id"`
	Room        string    `cbor:"room"`
	Author      string    `cbor:"author"`
	Text        string    `cbor:"text"`
	Verdict     string    `cbor:"verdict"`
	Flagged     bool      `cbor:"flagged"`
	Confidence  *float64  `cbor:"confidence,omitempty"`
	Audit       bool      `cbor:"audit,omitempty"`
	Sequence    uint64    `cbor:"sequence,omitempty"`
	SubmittedAt time.Time `cbor:"submitted_at"`
	CommittedAt time.Time `cbor:"committed_at,omitempty"`
	LocalAuthor bool      `cbor:"local_author,omitempty"`
}

type AbortRequest struct {
	MessageID string `cbor:"message_id"`
}

// SubscribeRequest resumes after From, or after the last acknowledged
// sequence when From is absent.
type SubscribeRequest struct {
	Room string  `cbor:"room"`
	From *uint64 `cbor:"from,omitempty"`
}

type HistoryRequest struct {
	Room  string `cbor:"room"`
	After uint64 `cbor:"after,omitempty"`
	Limit int    `cbor:"limit,omitempty"`
}

type HistoryResponse struct {
	Messages []Message `cbor:"messages"`
}

type ClassifyRequest struct {
	Text string `cbor:"text"`
}

type ClassifyResponse struct {
	Verdict    string   `cbor:"verdict"`
	Confidence *float64 `cbor:"confidence,omitempty"`
	Label      string   `cbor:"label,omitempty"`
}

type SearchAuditRequest struct {
	Text  string `cbor:"text,omitempty"`
	Room  string `cbor:"room,omitempty"`
	Kind  string `cbor:"kind,omitempty"`
	Limit int    `cbor:"limit,omitempty"`
}

type AuditEntry struct {
	MessageID string    `cbor:"message_id"`
	Room      string    `cbor:"room"`
	Author    string    `cbor:"author"`
	Kind      string    `cbor:"kind"`
	Text      string    `cbor:"text"`
	Label     string    `cbor:"label"`
	Language  string    `cbor:"language"`
	Sequence  uint64    `cbor:"sequence,omitempty"`
	At        time.Time `cbor:"at"`
}

type SearchAuditResponse struct {
	Total   uint64       `cbor:"total"`
	Entries []AuditEntry `cbor:"entries"`
}

type RemediateRequest struct {
	Room string `cbor:"room"`
}
