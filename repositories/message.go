package repositories

import (
	"chat-guard/codec"
	"chat-guard/domain"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IMessageRepository interface {
	StoreMessage(message domain.Message) error
	GetMessages(room domain.RoomID, after domain.Sequence, limit int) ([]domain.Message, error)
	AllMessages(room domain.RoomID) ([]domain.Message, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

// DiskMessage is the stored form of a committed message. The submitted text
// of a flagged message is never written here: it lives in the audit index
// only.
type DiskMessage struct {
	ID          uuid.UUID `cbor:"id"`
	Room        string    `cbor:"room"`
	Author      string    `cbor:"author"`
	Submitted   string    `cbor:"submitted,omitempty"`
	Displayed   string    `cbor:"displayed"`
	Verdict     int       `cbor:"verdict"`
	Confidence  *float64  `cbor:"confidence,omitempty"`
	Label       string    `cbor:"label,omitempty"`
	Audit       bool      `cbor:"audit,omitempty"`
	Sequence    uint64    `cbor:"sequence"`
	SubmittedAt time.Time `cbor:"submitted_at"`
	CommittedAt time.Time `cbor:"committed_at"`
}

func messagePrefix(room domain.RoomID) string {
	return fmt.Sprintf("msg:%s:", room)
}

// MessageKey is formatted as "msg:{room_id}:{sequence_padded}".
// The 20-digit padding keeps lexicographical order equal to commit order,
// and storing the same commit twice overwrites the same key.
func MessageKey(room domain.RoomID, seq domain.Sequence) []byte {
	return []byte(fmt.Sprintf("%s%020d", messagePrefix(room), seq))
}

func (m MessageRepository) StoreMessage(message domain.Message) error {
	if !message.Committed() {
		return fmt.Errorf("store message %s: not committed", message.ID)
	}
	bytes, err := codec.Marshal(fromMessage(message))
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(MessageKey(message.Room, message.Sequence), bytes)
	})
}

// GetMessages returns committed messages strictly after the given sequence,
// oldest first. A limit <= 0 falls back to the configured limitMessages.
func (m MessageRepository) GetMessages(room domain.RoomID, after domain.Sequence, limit int) ([]domain.Message, error) {
	if limit <= 0 && m.limitMessages != nil {
		limit = *m.limitMessages
	}
	return m.scan(room, after, limit)
}

// AllMessages reads a whole room log, ignoring any limit. Used at startup.
func (m MessageRepository) AllMessages(room domain.RoomID) ([]domain.Message, error) {
	return m.scan(room, 0, 0)
}

func (m MessageRepository) scan(room domain.RoomID, after domain.Sequence, limit int) ([]domain.Message, error) {
	var messages []domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(messagePrefix(room))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(MessageKey(room, after+1)); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(messages) == limit {
				m.log.Debug(fmt.Sprintf("Maximum of %d message reached", limit))
				break
			}
			err := it.Item().Value(func(value []byte) error {
				var disk DiskMessage
				if err := codec.Unmarshal(value, &disk); err != nil {
					return err
				}
				messages = append(messages, toMessage(disk))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return messages, err
}

func fromMessage(message domain.Message) DiskMessage {
	submitted := message.Submitted
	if message.Flagged() {
		submitted = ""
	}
	return DiskMessage{
		ID:          message.ID,
		Room:        string(message.Room),
		Author:      string(message.Author),
		Submitted:   submitted,
		Displayed:   message.Displayed,
		Verdict:     int(message.Verdict),
		Confidence:  message.Confidence,
		Label:       message.Label,
		Audit:       message.Audit,
		Sequence:    uint64(message.Sequence),
		SubmittedAt: message.SubmittedAt,
		CommittedAt: message.CommittedAt,
	}
}

func toMessage(disk DiskMessage) domain.Message {
	return domain.Message{
		ID:          disk.ID,
		Room:        domain.RoomID(disk.Room),
		Author:      domain.ParticipantID(disk.Author),
		Submitted:   disk.Submitted,
		Displayed:   disk.Displayed,
		Verdict:     domain.Verdict(disk.Verdict),
		Confidence:  disk.Confidence,
		Label:       disk.Label,
		Audit:       disk.Audit,
		Sequence:    domain.Sequence(disk.Sequence),
		SubmittedAt: disk.SubmittedAt.UTC(),
		CommittedAt: disk.CommittedAt.UTC(),
	}
}

// DecodeMessage is used by the inspection tools.
func DecodeMessage(value []byte) (domain.Message, error) {
	var disk DiskMessage
	if err := codec.Unmarshal(value, &disk); err != nil {
		return domain.Message{}, err
	}
	return toMessage(disk), nil
}
