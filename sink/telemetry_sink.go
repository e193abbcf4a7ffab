package sink

import (
	"chat-guard/domain/event"
	"context"
)

// TelemetrySink hands every event to the telemetry handlers.
type TelemetrySink struct {
	handlers []event.Handler
}

func NewTelemetrySink(handlers ...event.Handler) TelemetrySink {
	return TelemetrySink{handlers: handlers}
}

func (t TelemetrySink) Consume(_ context.Context, e event.DomainEvent) error {
	for _, h := range t.handlers {
		h.Handle(e)
	}
	return nil
}
