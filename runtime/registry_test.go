package runtime

import (
	"chat-guard/domain"
	"chat-guard/errors"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestRegistry_CreateRoom(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(logs.GetLoggerFromLevel(slog.LevelDebug))

	// Given no room exists
	req.Empty(registry.ListRooms())

	// When rooms are created
	first, err := registry.CreateRoom("  general ")
	req.NoError(err)
	second, err := registry.CreateRoom("random")
	req.NoError(err)
	req.NotEqual(first, second)

	// Then they are listed oldest first with a trimmed name
	rooms := registry.ListRooms()
	req.Len(rooms, 2)
	req.Equal(first, rooms[0].ID)
	req.Equal("general", rooms[0].Name)
	req.Equal(second, rooms[1].ID)

	// And a blank name is a validation error
	_, err = registry.CreateRoom("   ")
	req.ErrorIs(err, errors.ErrEmptyRoomName)
	req.ErrorIs(err, errors.ErrValidation)
}

func TestRegistry_Join_And_Leave(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(logs.GetLoggerFromLevel(slog.LevelDebug))
	room, err := registry.CreateRoom("general")
	req.NoError(err)

	// Rooms are never created implicitly
	req.ErrorIs(registry.Join("unknown", domain.Participant{ID: "alice"}), errors.ErrRoomNotFound)

	req.NoError(registry.Join(room, domain.Participant{ID: "bob", DisplayName: "Bob"}))
	req.NoError(registry.Join(room, domain.Participant{ID: "alice", DisplayName: "Alice"}))

	participants, err := registry.Participants(room)
	req.NoError(err)
	req.Len(participants, 2)
	req.Equal(domain.ParticipantID("alice"), participants[0].ID)

	summaries := registry.ListRooms()
	req.Equal(2, summaries[0].Participants)

	// When alice leaves
	req.NoError(registry.Leave(room, "alice"))

	// Then she is no longer a member and cannot leave twice
	member, err := registry.IsMember(room, "alice")
	req.NoError(err)
	req.False(member)
	req.ErrorIs(registry.Leave(room, "alice"), errors.ErrNotMember)
}

func TestRegistry_Ack(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(logs.GetLoggerFromLevel(slog.LevelDebug))
	room, err := registry.CreateRoom("general")
	req.NoError(err)
	req.NoError(registry.Join(room, domain.Participant{ID: "alice"}))

	r, err := registry.room(room)
	req.NoError(err)
	for i := 0; i < 3; i++ {
		_, err = r.Append(classified(room, "alice", "hello"), time.Now().UTC())
		req.NoError(err)
	}

	req.NoError(registry.Ack(room, "alice", 2))
	req.NoError(registry.Ack(room, "alice", 1))
	p, ok := r.Participant("alice")
	req.True(ok)
	req.Equal(domain.Sequence(2), p.LastAck)

	req.ErrorIs(registry.Ack(room, "carol", 1), errors.ErrNotMember)
	req.ErrorIs(registry.Ack("unknown", "alice", 1), errors.ErrRoomNotFound)
}

func TestRegistry_Messages_And_Restore(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(logs.GetLoggerFromLevel(slog.LevelDebug))
	at := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	var stored []domain.Message
	for seq := domain.Sequence(1); seq <= 4; seq++ {
		msg := classified("restored", "alice", "hello")
		msg.Sequence = seq
		stored = append(stored, msg)
	}

	// Given a room read back from disk
	req.NoError(registry.Restore("restored", "general", at, stored))

	// Then its history and tail are back
	messages, err := registry.Messages("restored", 1, 2)
	req.NoError(err)
	req.Equal([]domain.Sequence{2, 3}, sequences(messages))
	summary, err := registry.Summary("restored")
	req.NoError(err)
	req.Equal(domain.Sequence(4), summary.Tail)
	req.Equal(at, summary.CreatedAt)

	// And a log with a hole is refused
	req.ErrorIs(registry.Restore("holes", "broken", at, stored[1:]), errors.ErrSequencingConflict)
	_, err = registry.Messages("holes", 0, 0)
	req.ErrorIs(err, errors.ErrRoomNotFound)
}
