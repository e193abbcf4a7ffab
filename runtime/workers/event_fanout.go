package workers

import (
	"chat-guard/contract"
	"chat-guard/domain/event"
	"context"
	"fmt"
	"log/slog"
	"time"
)

// EventFanout forwards committed events from the outbox to the permanent
// sinks (disk, audit, telemetry).
//
// It runs off the commit path: a slow or failing sink delays the sinks, never
// a commit nor a live subscriber. Each Consume call is bounded by sinkTimeout
// and failures are logged, not retried. Sinks are called one after the other
// so each of them sees the events of a room in commit order.
type EventFanout struct {
	log         *slog.Logger
	outbox      <-chan event.DomainEvent
	sinks       []contract.EventSink
	sinkTimeout time.Duration
}

func NewEventFanout(log *slog.Logger, sinks []contract.EventSink,
	outbox <-chan event.DomainEvent, sinkTimeout time.Duration) *EventFanout {
	return &EventFanout{log: log, sinks: sinks, outbox: outbox, sinkTimeout: sinkTimeout}
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case evt, ok := <-w.outbox:
			if !ok {
				w.log.Debug("Outbox closed")
				return nil
			}
			w.Fanout(ctx, evt)
		case <-ctx.Done():
			w.log.Debug("Context done, stopping event fanout")
			return nil
		}
	}
}

// Fanout One sink for each event
func (w *EventFanout) Fanout(ctx context.Context, evt event.DomainEvent) {
	for _, sink := range w.sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
		if err := sink.Consume(sinkCtx, evt); err != nil {
			w.log.Warn("Sink failed to consume event",
				"sink", fmt.Sprintf("%T", sink),
				"room_id", evt.RoomID(),
				"error", err)
		}
		cancel()
	}
}
