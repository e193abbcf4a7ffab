package runtime

import (
	"chat-guard/domain"
	"chat-guard/errors"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const catchUpBatch = 256

// Fanout delivers committed messages to live subscribers.
// Every subscription owns a cursor into the room log and pulls from it, so a
// stalled reader never blocks the Sequencer nor another subscriber.
// Notify only wakes the readers of a room up.
type Fanout struct {
	mu          sync.Mutex
	log         *slog.Logger
	registry    *Registry
	subs        map[domain.RoomID]map[*Subscription]struct{}
	bufferSize  int
	slowTimeout time.Duration
}

func NewFanout(log *slog.Logger, registry *Registry, bufferSize int, slowTimeout time.Duration) *Fanout {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Fanout{
		log:         log,
		registry:    registry,
		subs:        make(map[domain.RoomID]map[*Subscription]struct{}),
		bufferSize:  bufferSize,
		slowTimeout: slowTimeout,
	}
}

// Subscribe opens a live stream of committed messages for a member.
// Delivery starts right after from; a nil from resumes after the
// participant's last acknowledged sequence.
func (f *Fanout) Subscribe(ctx context.Context, roomID domain.RoomID, id domain.ParticipantID, from *domain.Sequence) (*Subscription, error) {
	room, err := f.registry.room(roomID)
	if err != nil {
		return nil, err
	}
	participant, ok := room.Participant(id)
	if !ok {
		return nil, errors.ErrNotMember
	}
	cursor := participant.LastAck
	if from != nil {
		cursor = *from
	}

	sub := &Subscription{
		ID:          uuid.New(),
		Room:        roomID,
		Participant: id,
		room:        room,
		fanout:      f,
		cursor:      cursor,
		out:         make(chan domain.Message, f.bufferSize),
		wake:        make(chan struct{}, 1),
		done:        make(chan struct{}),
	}

	// Registered before the first read so no commit falls between the
	// catch-up and the first wake up.
	f.mu.Lock()
	if _, ok := f.subs[roomID]; !ok {
		f.subs[roomID] = make(map[*Subscription]struct{})
	}
	f.subs[roomID][sub] = struct{}{}
	f.mu.Unlock()

	f.log.Debug("Subscription opened", "room_id", roomID, "participant", id, "from", cursor)
	go sub.pump(ctx)
	return sub, nil
}

// Notify implements contract.Notifier.
func (f *Fanout) Notify(roomID domain.RoomID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for sub := range f.subs[roomID] {
		sub.signal()
	}
}

// Detach ends every subscription a participant holds in a room.
func (f *Fanout) Detach(roomID domain.RoomID, id domain.ParticipantID) {
	f.mu.Lock()
	var detached []*Subscription
	for sub := range f.subs[roomID] {
		if sub.Participant == id {
			detached = append(detached, sub)
		}
	}
	f.mu.Unlock()

	for _, sub := range detached {
		sub.stop(errors.ErrSubscriptionEnd)
	}
}

// Subscribers counts the live subscriptions of a room.
func (f *Fanout) Subscribers(roomID domain.RoomID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[roomID])
}

func (f *Fanout) remove(sub *Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	subs := f.subs[sub.Room]
	delete(subs, sub)
	if len(subs) == 0 {
		delete(f.subs, sub.Room)
	}
}

// Subscription is one live reader of a room log.
// Messages arrive on C in sequence order without gaps or duplicates. C is
// closed when the subscription ends; Err tells why.
type Subscription struct {
	ID          uuid.UUID
	Room        domain.RoomID
	Participant domain.ParticipantID

	room   *domain.Room
	fanout *Fanout
	cursor domain.Sequence
	out    chan domain.Message
	wake   chan struct{}

	done     chan struct{}
	stopOnce sync.Once
	mu       sync.Mutex
	err      error
}

func (s *Subscription) C() <-chan domain.Message { return s.out }

// Err is nil while the subscription is live or after a client Close.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) Close() { s.stop(nil) }

// Ack records that the subscriber has rendered everything up to seq.
func (s *Subscription) Ack(seq domain.Sequence) error {
	return s.fanout.registry.Ack(s.Room, s.Participant, seq)
}

func (s *Subscription) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) stop(err error) {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
	})
}

func (s *Subscription) pump(ctx context.Context) {
	defer close(s.out)
	defer s.fanout.remove(s)

	for {
		batch := s.room.Since(s.cursor, catchUpBatch)
		for _, msg := range batch {
			if !s.deliver(ctx, msg) {
				return
			}
			s.cursor = msg.Sequence
		}
		if len(batch) == catchUpBatch {
			continue
		}

		select {
		case <-s.wake:
		case <-s.done:
			return
		case <-ctx.Done():
			s.stop(ctx.Err())
			return
		}
	}
}

func (s *Subscription) deliver(ctx context.Context, msg domain.Message) bool {
	select {
	case s.out <- msg:
		return true
	default:
	}

	timer := time.NewTimer(s.fanout.slowTimeout)
	defer timer.Stop()
	select {
	case s.out <- msg:
		return true
	case <-timer.C:
		s.fanout.log.Warn("Slow subscriber disconnected",
			"room_id", s.Room,
			"participant", s.Participant,
			"cursor", s.cursor)
		s.stop(errors.ErrSlowSubscriber)
		return false
	case <-s.done:
		return false
	case <-ctx.Done():
		s.stop(ctx.Err())
		return false
	}
}
