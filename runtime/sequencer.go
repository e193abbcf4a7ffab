package runtime

import (
	"chat-guard/contract"
	"chat-guard/domain"
	"chat-guard/domain/event"
	"chat-guard/errors"
	"context"
	goerrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const sequencerTracer = "chat-guard/sequencer"

// Sequencer is the single writer of every room log.
// Commits to one room are serialized by that room's lane; rooms never wait
// on each other. Only the append runs under the lane lock, classification
// is always finished before Commit is called.
type Sequencer struct {
	log      *slog.Logger
	registry *Registry
	notifier contract.Notifier
	outbox   chan<- event.DomainEvent
	tracer   trace.Tracer

	mu    sync.Mutex
	lanes map[domain.RoomID]*commitLane
}

type commitLane struct {
	mu     sync.Mutex
	halted error
}

func NewSequencer(log *slog.Logger, registry *Registry, notifier contract.Notifier,
	outbox chan<- event.DomainEvent) *Sequencer {
	return &Sequencer{
		log:      log,
		registry: registry,
		notifier: notifier,
		outbox:   outbox,
		tracer:   otel.Tracer(sequencerTracer),
		lanes:    make(map[domain.RoomID]*commitLane),
	}
}

// WithTracerProvider sends commit spans to tp instead of the global provider.
func (s *Sequencer) WithTracerProvider(tp trace.TracerProvider) *Sequencer {
	s.tracer = tp.Tracer(sequencerTracer)
	return s
}

func (s *Sequencer) lane(id domain.RoomID) *commitLane {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lanes[id]
	if !ok {
		l = &commitLane{}
		s.lanes[id] = l
	}
	return l
}

// Commit appends a classified message to its room and returns it with its
// sequence number. A sequence collision halts the room: nothing is
// renumbered and every later commit fails until Remediate succeeds.
func (s *Sequencer) Commit(ctx context.Context, msg domain.Message) (domain.Message, error) {
	_, span := s.tracer.Start(ctx, "sequencer.Commit",
		trace.WithAttributes(attribute.String("room_id", string(msg.Room))))
	defer span.End()

	room, err := s.registry.room(msg.Room)
	if err != nil {
		return domain.Message{}, err
	}

	lane := s.lane(room.ID)
	lane.mu.Lock()
	defer lane.mu.Unlock()

	if lane.halted != nil {
		return domain.Message{}, fmt.Errorf("%w: %s", errors.ErrRoomHalted, room.ID)
	}

	committed, err := room.Append(msg, time.Now().UTC())
	if err != nil {
		if goerrors.Is(err, errors.ErrSequencingConflict) {
			lane.halted = err
			s.log.Error("Sequencing conflict, room halted until remediation",
				"room_id", room.ID,
				"message_id", msg.ID,
				"error", err)
		}
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return domain.Message{}, err
	}
	span.SetAttributes(attribute.Int64("sequence", int64(committed.Sequence)))

	s.notifier.Notify(room.ID)
	s.publish(event.MessageCommitted{Message: committed})
	return committed, nil
}

// Halted reports whether commits to the room are suspended.
func (s *Sequencer) Halted(id domain.RoomID) bool {
	lane := s.lane(id)
	lane.mu.Lock()
	defer lane.mu.Unlock()
	return lane.halted != nil
}

// Halt suspends commits to the room, for instance when its stored log was
// found with a hole at startup.
func (s *Sequencer) Halt(id domain.RoomID, reason error) {
	lane := s.lane(id)
	lane.mu.Lock()
	defer lane.mu.Unlock()
	lane.halted = reason
	s.log.Error("Room halted until remediation", "room_id", id, "error", reason)
}

// Remediate lifts a halt once the room log is verified gap free. On a halted
// room, reload runs first under the commit lock so the log can be read back
// from storage; it may be nil.
func (s *Sequencer) Remediate(id domain.RoomID, reload func(*domain.Room) error) error {
	room, err := s.registry.room(id)
	if err != nil {
		return err
	}
	lane := s.lane(id)
	lane.mu.Lock()
	defer lane.mu.Unlock()
	if lane.halted != nil && reload != nil {
		if err := reload(room); err != nil {
			return fmt.Errorf("reload room %s: %w", id, err)
		}
	}
	if err := room.Verify(); err != nil {
		s.log.Error("Remediation refused, log still inconsistent", "room_id", id, "error", err)
		return err
	}
	if lane.halted != nil {
		s.log.Info("Room remediated, commits resumed", "room_id", id, "tail", room.Tail())
	}
	lane.halted = nil
	return nil
}

func (s *Sequencer) publish(e event.DomainEvent) {
	if s.outbox == nil {
		return
	}
	select {
	case s.outbox <- e:
	default:
		s.log.Warn("Outbox full, committed event not forwarded to sinks", "room_id", e.RoomID())
	}
}
