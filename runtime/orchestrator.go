// Package runtime handles message admission, ordering and delivery.
// It wires the gate, the sequencer and the fan-out together without
// containing moderation rules itself.
package runtime

import (
	"chat-guard/contract"
	"chat-guard/domain"
	"chat-guard/domain/event"
	"chat-guard/errors"
	"chat-guard/moderation"
	"chat-guard/repositories"
	"chat-guard/runtime/workers"
	"chat-guard/sink"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Config struct {
	QueueDepth            int
	MaxContentLength      int
	Policy                domain.FallbackPolicy
	CharReplacement       rune
	SubscriberBufferSize  int
	SlowSubscriberTimeout time.Duration
	OutboxSize            int
	SinkTimeout           time.Duration
	MetricInterval        time.Duration
	LowCapacityThreshold  int
	HistoryLimit          int
}

type Orchestrator struct {
	mu                sync.Mutex
	log               *slog.Logger
	cfg               Config
	supervisor        contract.ISupervisor
	classifier        contract.Classifier
	registry          *Registry
	sequencer         *Sequencer
	gate              *Gate
	fanout            *Fanout
	outbox            chan event.DomainEvent
	permanentSinks    []contract.EventSink
	roomRepository    repositories.IRoomRepository
	messageRepository repositories.IMessageRepository
	auditRepository   repositories.IAuditRepository
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor,
	classifier contract.Classifier, cfg Config) *Orchestrator {
	outbox := make(chan event.DomainEvent, cfg.OutboxSize)
	registry := NewRegistry(log)
	fanout := NewFanout(log, registry, cfg.SubscriberBufferSize, cfg.SlowSubscriberTimeout)
	sequencer := NewSequencer(log, registry, fanout, outbox)
	gate := NewGate(log, registry, classifier, moderation.NewMasker(cfg.CharReplacement), sequencer, outbox,
		GateConfig{QueueDepth: cfg.QueueDepth, MaxContentLength: cfg.MaxContentLength, Policy: cfg.Policy})

	return &Orchestrator{
		log:        log,
		cfg:        cfg,
		supervisor: supervisor,
		classifier: classifier,
		registry:   registry,
		sequencer:  sequencer,
		gate:       gate,
		fanout:     fanout,
		outbox:     outbox,
	}
}

// WithStorage makes rooms and committed messages survive a restart.
func (o *Orchestrator) WithStorage(rooms repositories.IRoomRepository, messages repositories.IMessageRepository) *Orchestrator {
	o.roomRepository = rooms
	o.messageRepository = messages
	return o
}

// WithAudit enables the operator audit index.
func (o *Orchestrator) WithAudit(audit repositories.IAuditRepository) *Orchestrator {
	o.auditRepository = audit
	return o
}

func (o *Orchestrator) Add(sinks ...contract.EventSink) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.permanentSinks = append(o.permanentSinks, sinks...)
}

// Restore reloads persisted rooms and their logs. A log with a hole (a
// commit whose event never reached the disk) is restored up to the hole, the
// sequences stored past it stay reserved and the room is halted until an
// operator remediates it.
func (o *Orchestrator) Restore() error {
	if o.roomRepository == nil || o.messageRepository == nil {
		return nil
	}
	rooms, err := o.roomRepository.GetRooms()
	if err != nil {
		return fmt.Errorf("load rooms: %w", err)
	}
	for _, room := range rooms {
		id := domain.RoomID(room.ID)
		messages, err := o.messageRepository.AllMessages(id)
		if err != nil {
			return fmt.Errorf("load messages of room %s: %w", id, err)
		}
		contiguous := contiguousPrefix(messages)
		if err := o.registry.Restore(id, room.Name, room.CreatedAt, contiguous); err != nil {
			return err
		}
		if len(contiguous) < len(messages) {
			last := messages[len(messages)-1].Sequence
			o.log.Warn("Stored log has a hole, restoring its contiguous prefix",
				"room_id", id,
				"stored", len(messages),
				"restored", len(contiguous),
				"highest_sequence", last)
			if err := o.registry.Reserve(id, last); err != nil {
				return err
			}
			o.sequencer.Halt(id, fmt.Errorf("%w: stored log of room %s has a hole after sequence %d",
				errors.ErrSequencingConflict, id, len(contiguous)))
		}
	}
	o.log.Info(fmt.Sprintf("%d rooms restored", len(rooms)))
	return nil
}

func contiguousPrefix(messages []domain.Message) []domain.Message {
	for i, m := range messages {
		if m.Sequence != domain.Sequence(i+1) {
			return messages[:i]
		}
	}
	return messages
}

// Start prepares the sink pipeline and runs the supervised workers.
// It blocks until the context is canceled or Stop is called.
func (o *Orchestrator) Start(ctx context.Context) error {
	// 1. Preparation phase (No Lock)
	newSinks := o.prepareSinks()

	// 2. Critical Section (Short Lock)
	o.mu.Lock()
	o.permanentSinks = append(o.permanentSinks, newSinks...)
	fanoutWorker := workers.NewEventFanout(o.log, o.permanentSinks, o.outbox, o.cfg.SinkTimeout)
	o.supervisor.Add(fanoutWorker)
	if o.cfg.MetricInterval > 0 {
		o.supervisor.Add(workers.NewChannelCapacityWorker(o.log,
			[]workers.NamedChannel{{Name: "outbox", Channel: o.outbox}},
			o.cfg.MetricInterval, o.cfg.LowCapacityThreshold))
	}
	o.mu.Unlock()

	// 3. Execution phase (No Lock)
	o.log.Info("Starting orchestrator and all supervised workers")
	o.supervisor.Run(ctx)
	return nil
}

func (o *Orchestrator) prepareSinks() []contract.EventSink {
	var sinks []contract.EventSink
	if o.messageRepository != nil {
		sinks = append(sinks, sink.NewDiskSink(o.messageRepository, o.log))
	}
	if o.auditRepository != nil {
		sinks = append(sinks, sink.NewAuditSink(o.auditRepository, o.log))
	}
	return sinks
}

// Stop refuses new messages, drains the lanes then stops the workers.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.gate.Close()
	o.supervisor.Stop()
}

func (o *Orchestrator) CreateRoom(name string) (domain.RoomSummary, error) {
	id, err := o.registry.CreateRoom(name)
	if err != nil {
		return domain.RoomSummary{}, err
	}
	summary, err := o.registry.Summary(id)
	if err != nil {
		return domain.RoomSummary{}, err
	}
	if o.roomRepository != nil {
		err = o.roomRepository.StoreRoom(repositories.DiskRoom{
			ID:        string(summary.ID),
			Name:      summary.Name,
			CreatedAt: summary.CreatedAt,
		})
		if err != nil {
			o.log.Error("Room not persisted", "room_id", id, "error", err)
			return domain.RoomSummary{}, fmt.Errorf("persist room %s: %w", id, err)
		}
	}
	return summary, nil
}

func (o *Orchestrator) ListRooms() []domain.RoomSummary {
	return o.registry.ListRooms()
}

func (o *Orchestrator) JoinRoom(roomID domain.RoomID, p domain.Participant) error {
	return o.registry.Join(roomID, p)
}

// LeaveRoom removes the participant and ends its live subscriptions.
func (o *Orchestrator) LeaveRoom(roomID domain.RoomID, id domain.ParticipantID) error {
	if err := o.registry.Leave(roomID, id); err != nil {
		return err
	}
	o.fanout.Detach(roomID, id)
	return nil
}

func (o *Orchestrator) ListParticipants(roomID domain.RoomID) ([]domain.Participant, error) {
	return o.registry.Participants(roomID)
}

func (o *Orchestrator) SendMessage(cmd domain.SendMessageCommand) (*Ticket, error) {
	return o.gate.Submit(cmd)
}

func (o *Orchestrator) Abort(author domain.ParticipantID, messageID uuid.UUID) error {
	return o.gate.Abort(author, messageID)
}

func (o *Orchestrator) Subscribe(ctx context.Context, roomID domain.RoomID, id domain.ParticipantID, from *domain.Sequence) (*Subscription, error) {
	return o.fanout.Subscribe(ctx, roomID, id, from)
}

func (o *Orchestrator) Ack(roomID domain.RoomID, id domain.ParticipantID, seq domain.Sequence) error {
	return o.registry.Ack(roomID, id, seq)
}

// History pages through committed messages for a member of the room. The
// page size is capped by HistoryLimit.
func (o *Orchestrator) History(cmd domain.HistoryCommand) ([]domain.Message, error) {
	member, err := o.registry.IsMember(cmd.Room, cmd.Reader)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, fmt.Errorf("%w: %s in room %s", errors.ErrNotMember, cmd.Reader, cmd.Room)
	}
	limit := cmd.Limit
	if o.cfg.HistoryLimit > 0 && (limit <= 0 || limit > o.cfg.HistoryLimit) {
		limit = o.cfg.HistoryLimit
	}
	return o.registry.Messages(cmd.Room, cmd.After, limit)
}

// Classify runs the classifier on a text without sending anything.
func (o *Orchestrator) Classify(ctx context.Context, text string) (domain.Classification, error) {
	if strings.TrimSpace(text) == "" {
		return domain.Classification{}, errors.ErrEmptyMessage
	}
	return o.classifier.Classify(ctx, text)
}

func (o *Orchestrator) SearchAudit(ctx context.Context, query domain.AuditQuery) ([]domain.AuditEntry, uint64, error) {
	if o.auditRepository == nil {
		return nil, 0, nil
	}
	return o.auditRepository.Search(ctx, query)
}

// Remediate lifts a sequencing halt once the room log checks out. With
// storage wired the log is read back first, so messages that reached the
// disk late fill their hole.
func (o *Orchestrator) Remediate(roomID domain.RoomID) error {
	var reload func(*domain.Room) error
	if o.messageRepository != nil {
		reload = o.reload
	}
	return o.sequencer.Remediate(roomID, reload)
}

func (o *Orchestrator) reload(room *domain.Room) error {
	messages, err := o.messageRepository.AllMessages(room.ID)
	if err != nil {
		return err
	}
	// The sink may lag behind memory, never trade the log for a shorter one
	if prefix := contiguousPrefix(messages); len(prefix) > room.Len() {
		if err := room.Restore(prefix); err != nil {
			return err
		}
	}
	if len(messages) > 0 {
		room.Reserve(messages[len(messages)-1].Sequence)
	}
	return nil
}

func (o *Orchestrator) Halted(roomID domain.RoomID) bool {
	return o.sequencer.Halted(roomID)
}

// Stats is a point-in-time snapshot for the debug page.
func (o *Orchestrator) Stats() map[string]any {
	rooms := o.registry.ListRooms()
	halted, subscribers := 0, 0
	for _, r := range rooms {
		if o.sequencer.Halted(r.ID) {
			halted++
		}
		subscribers += o.fanout.Subscribers(r.ID)
	}
	return map[string]any{
		"rooms":        len(rooms),
		"halted_rooms": halted,
		"subscribers":  subscribers,
		"outbox":       fmt.Sprintf("%d / %d", len(o.outbox), cap(o.outbox)),
		"policy":       o.cfg.Policy.String(),
	}
}
