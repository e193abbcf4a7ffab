package runtime

import (
	"chat-guard/domain"
	"chat-guard/errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Registry owns every Room for the lifetime of the process.
// It answers membership and history questions; the log itself only grows
// through the Sequencer.
type Registry struct {
	mu    sync.RWMutex
	log   *slog.Logger
	rooms map[domain.RoomID]*domain.Room
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:   log,
		rooms: make(map[domain.RoomID]*domain.Room),
	}
}

// CreateRoom is the only way a room comes to life: rooms are never created
// implicitly by a join or a send.
func (r *Registry) CreateRoom(name string) (domain.RoomID, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.ErrEmptyRoomName
	}
	room := domain.NewRoom(domain.RoomID(uuid.NewString()), name, time.Now().UTC())

	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[room.ID] = room
	r.log.Info("Room created", "room_id", room.ID, "name", name)
	return room.ID, nil
}

// Restore registers a room read back from storage together with its log.
func (r *Registry) Restore(id domain.RoomID, name string, createdAt time.Time, messages []domain.Message) error {
	room := domain.NewRoom(id, name, createdAt)
	if err := room.Restore(messages); err != nil {
		return fmt.Errorf("restore room %s: %w", id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[id]; ok {
		r.log.Info(fmt.Sprintf("Room %s already exists", id))
		return nil
	}
	r.rooms[id] = room
	return nil
}

// Reserve keeps sequences up to upTo from ever being assigned again in the
// room, see domain.Room.Reserve.
func (r *Registry) Reserve(id domain.RoomID, upTo domain.Sequence) error {
	room, err := r.room(id)
	if err != nil {
		return err
	}
	room.Reserve(upTo)
	return nil
}

func (r *Registry) room(id domain.RoomID) (*domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrRoomNotFound, id)
	}
	return room, nil
}

// Summary describes a single room.
func (r *Registry) Summary(id domain.RoomID) (domain.RoomSummary, error) {
	room, err := r.room(id)
	if err != nil {
		return domain.RoomSummary{}, err
	}
	return room.Summary(), nil
}

// ListRooms returns every room, oldest first.
func (r *Registry) ListRooms() []domain.RoomSummary {
	r.mu.RLock()
	rooms := lo.Values(r.rooms)
	r.mu.RUnlock()

	summaries := lo.Map(rooms, func(item *domain.Room, _ int) domain.RoomSummary {
		return item.Summary()
	})
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].CreatedAt.Equal(summaries[j].CreatedAt) {
			return summaries[i].ID < summaries[j].ID
		}
		return summaries[i].CreatedAt.Before(summaries[j].CreatedAt)
	})
	return summaries
}

func (r *Registry) Join(roomID domain.RoomID, p domain.Participant) error {
	room, err := r.room(roomID)
	if err != nil {
		return err
	}
	room.Join(p)
	r.log.Debug("Participant joined", "room_id", roomID, "participant", p.ID)
	return nil
}

func (r *Registry) Leave(roomID domain.RoomID, id domain.ParticipantID) error {
	room, err := r.room(roomID)
	if err != nil {
		return err
	}
	if !room.Leave(id) {
		return errors.ErrNotMember
	}
	r.log.Debug("Participant left", "room_id", roomID, "participant", id)
	return nil
}

func (r *Registry) Participants(roomID domain.RoomID) ([]domain.Participant, error) {
	room, err := r.room(roomID)
	if err != nil {
		return nil, err
	}
	return room.Participants(), nil
}

func (r *Registry) IsMember(roomID domain.RoomID, id domain.ParticipantID) (bool, error) {
	room, err := r.room(roomID)
	if err != nil {
		return false, err
	}
	return room.IsMember(id), nil
}

// Messages reads committed messages after the given sequence.
func (r *Registry) Messages(roomID domain.RoomID, after domain.Sequence, limit int) ([]domain.Message, error) {
	room, err := r.room(roomID)
	if err != nil {
		return nil, err
	}
	return room.Since(after, limit), nil
}

// Ack records delivery progress for a participant.
func (r *Registry) Ack(roomID domain.RoomID, id domain.ParticipantID, seq domain.Sequence) error {
	room, err := r.room(roomID)
	if err != nil {
		return err
	}
	if !room.Ack(id, seq) {
		return errors.ErrNotMember
	}
	return nil
}
