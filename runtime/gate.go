package runtime

import (
	"chat-guard/contract"
	"chat-guard/domain"
	"chat-guard/domain/event"
	"chat-guard/errors"
	"chat-guard/moderation"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

type GateConfig struct {
	QueueDepth       int
	MaxContentLength int
	Policy           domain.FallbackPolicy
}

// Gate admits submitted messages, classifies them and hands them to the
// Sequencer. Each (room, author) pair gets its own lane: one classification
// in flight at a time, so an author's messages commit in the order they were
// submitted while other authors proceed in parallel.
type Gate struct {
	log        *slog.Logger
	registry   *Registry
	classifier contract.Classifier
	masker     moderation.Masker
	sequencer  *Sequencer
	outbox     chan<- event.DomainEvent
	cfg        GateConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	lanes   map[laneKey]chan *Ticket
	tickets map[uuid.UUID]*Ticket
	closed  bool
}

type laneKey struct {
	room   domain.RoomID
	author domain.ParticipantID
}

func NewGate(log *slog.Logger, registry *Registry, classifier contract.Classifier,
	masker moderation.Masker, sequencer *Sequencer, outbox chan<- event.DomainEvent, cfg GateConfig) *Gate {
	if cfg.QueueDepth < 1 {
		cfg.QueueDepth = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Gate{
		log:        log,
		registry:   registry,
		classifier: classifier,
		masker:     masker,
		sequencer:  sequencer,
		outbox:     outbox,
		cfg:        cfg,
		ctx:        ctx,
		cancel:     cancel,
		lanes:      make(map[laneKey]chan *Ticket),
		tickets:    make(map[uuid.UUID]*Ticket),
	}
}

// Submit validates and enqueues a message. It never waits for the
// classifier: the returned Ticket carries the pending echo right away.
func (g *Gate) Submit(cmd domain.SendMessageCommand) (*Ticket, error) {
	if strings.TrimSpace(cmd.Content) == "" {
		return nil, errors.ErrEmptyMessage
	}
	if g.cfg.MaxContentLength > 0 && utf8.RuneCountInString(cmd.Content) > g.cfg.MaxContentLength {
		return nil, fmt.Errorf("%w: %d characters max", errors.ErrMessageTooLong, g.cfg.MaxContentLength)
	}
	room, err := g.registry.room(cmd.Room)
	if err != nil {
		return nil, err
	}
	if !room.IsMember(cmd.Author) {
		return nil, errors.ErrNotMember
	}
	at := cmd.CreatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	ticket := newTicket(g.ctx, domain.NewPendingMessage(cmd, at))
	key := laneKey{room: cmd.Room, author: cmd.Author}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		ticket.cancel()
		return nil, errors.ErrGateClosed
	}
	lane, running := g.lanes[key]
	if !running {
		lane = make(chan *Ticket, g.cfg.QueueDepth)
		g.lanes[key] = lane
	}
	select {
	case lane <- ticket:
	default:
		g.mu.Unlock()
		ticket.cancel()
		g.log.Debug("Author lane full, submission refused", "room_id", cmd.Room, "author", cmd.Author)
		return nil, errors.ErrBackpressure
	}
	g.tickets[ticket.ID()] = ticket
	if !running {
		g.wg.Add(1)
		go g.drain(key, lane)
	}
	g.mu.Unlock()

	return ticket, nil
}

// Abort withdraws a message that has not been committed yet. Only its author
// may abort it.
func (g *Gate) Abort(author domain.ParticipantID, id uuid.UUID) error {
	g.mu.Lock()
	ticket, ok := g.tickets[id]
	g.mu.Unlock()
	if !ok || ticket.Echo.Author != author {
		return fmt.Errorf("%w: %s", errors.ErrMessageNotFound, id)
	}
	if !ticket.abort() {
		return fmt.Errorf("%w: %s already resolved", errors.ErrMessageNotFound, id)
	}
	g.log.Debug("Message aborted", "room_id", ticket.Echo.Room, "message_id", id)
	return nil
}

// Close refuses new submissions, cancels in-flight classifications and waits
// for every lane to drain.
func (g *Gate) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
	g.cancel()
	g.wg.Wait()
}

// drain is the lane worker. The emptiness check and the lane removal happen
// under the gate lock so a concurrent Submit either lands in this lane
// before it stops or starts a new one.
func (g *Gate) drain(key laneKey, lane chan *Ticket) {
	defer g.wg.Done()
	for {
		g.mu.Lock()
		select {
		case ticket := <-lane:
			g.mu.Unlock()
			g.process(ticket)
		default:
			delete(g.lanes, key)
			g.mu.Unlock()
			return
		}
	}
}

func (g *Gate) process(t *Ticket) {
	defer g.forget(t.ID())

	if t.aborted() {
		t.resolve(domain.Message{}, errors.ErrAborted)
		return
	}

	result, err := g.classifier.Classify(t.ctx, t.Echo.Submitted)
	if err != nil {
		switch {
		case t.aborted():
			t.resolve(domain.Message{}, errors.ErrAborted)
			return
		case g.ctx.Err() != nil:
			t.resolve(domain.Message{}, errors.ErrGateClosed)
			return
		}
		if g.cfg.Policy == domain.FailClosed {
			g.log.Warn("Classification failed, message rejected",
				"room_id", t.Echo.Room, "message_id", t.Echo.ID, "error", err)
			g.publish(event.SendRejected{Message: t.Echo, Cause: err.Error(), At: time.Now().UTC()})
			t.resolve(domain.Message{}, fmt.Errorf("%w: %v", errors.ErrSendRejected, err))
			return
		}
		g.log.Warn("Classification failed, message committed unmasked for audit",
			"room_id", t.Echo.Room, "message_id", t.Echo.ID, "error", err)
		result = domain.Classification{Verdict: domain.VerdictClassificationFailed, Label: err.Error()}
	}

	display, err := g.masker.Mask(t.Echo.Submitted, result.Verdict)
	if err != nil {
		t.resolve(domain.Message{}, err)
		return
	}

	msg := t.Echo
	msg.Verdict = result.Verdict
	msg.Confidence = result.Confidence
	msg.Label = result.Label
	msg.Displayed = display.Text
	msg.Audit = display.Audit
	msg.LocalAuthor = false

	if !t.seal() {
		t.resolve(domain.Message{}, errors.ErrAborted)
		return
	}
	committed, err := g.sequencer.Commit(g.ctx, msg)
	if err != nil {
		g.log.Error("Commit failed", "room_id", msg.Room, "message_id", msg.ID, "error", err)
	}
	t.resolve(committed, err)
}

func (g *Gate) forget(id uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.tickets, id)
}

func (g *Gate) publish(e event.DomainEvent) {
	if g.outbox == nil {
		return
	}
	select {
	case g.outbox <- e:
	default:
		g.log.Warn("Outbox full, rejection not forwarded to sinks", "room_id", e.RoomID())
	}
}

type ticketState int

const (
	ticketQueued ticketState = iota
	ticketSealed
	ticketAborted
)

// Ticket tracks one submission from enqueue to commit or rejection.
type Ticket struct {
	// Echo is the pending copy the author renders right away.
	Echo domain.Message

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	state ticketState

	once   sync.Once
	done   chan struct{}
	result domain.Message
	err    error
}

func newTicket(parent context.Context, echo domain.Message) *Ticket {
	ctx, cancel := context.WithCancel(parent)
	return &Ticket{Echo: echo, ctx: ctx, cancel: cancel, done: make(chan struct{})}
}

func (t *Ticket) ID() uuid.UUID { return t.Echo.ID }

// Done is closed once the ticket is resolved.
func (t *Ticket) Done() <-chan struct{} { return t.done }

// Wait blocks until the message is committed or rejected. Giving up on ctx
// does not withdraw the message.
func (t *Ticket) Wait(ctx context.Context) (domain.Message, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		return domain.Message{}, ctx.Err()
	}
}

func (t *Ticket) abort() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == ticketSealed {
		return false
	}
	select {
	case <-t.done:
		return false
	default:
	}
	t.state = ticketAborted
	t.cancel()
	return true
}

func (t *Ticket) aborted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == ticketAborted
}

// seal forbids any later abort. It fails if the ticket was aborted first.
func (t *Ticket) seal() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == ticketAborted {
		return false
	}
	t.state = ticketSealed
	return true
}

func (t *Ticket) resolve(msg domain.Message, err error) {
	t.once.Do(func() {
		t.result = msg
		t.err = err
		t.cancel()
		close(t.done)
	})
}
