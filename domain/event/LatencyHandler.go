package event

import (
	"log/slog"
	"time"
)

// LatencyHandler reports the submission to commit lead time, which is
// dominated by the classifier call.
type LatencyHandler struct {
	log              *slog.Logger
	latencyThreshold time.Duration
}

func NewLatencyHandler(log *slog.Logger, latencyThreshold time.Duration) *LatencyHandler {
	return &LatencyHandler{log: log, latencyThreshold: latencyThreshold}
}

func (h *LatencyHandler) Handle(e DomainEvent) {
	payload, ok := e.(MessageCommitted)
	if !ok {
		return
	}
	msg := payload.Message
	leadTime := msg.CommittedAt.Sub(msg.SubmittedAt)

	h.log.Debug("telemetry: commit latency",
		"room_id", msg.Room,
		"author", msg.Author,
		"sequence", msg.Sequence,
		"lead_time_ms", leadTime.Milliseconds(),
	)

	if leadTime > h.latencyThreshold {
		h.log.Warn("high commit latency detected",
			"room_id", msg.Room,
			"lead_time", leadTime)
	}
}
