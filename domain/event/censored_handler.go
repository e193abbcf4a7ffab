package event

import (
	"chat-guard/domain"
	"log/slog"
	"sync"
)

// CensoredHandler counts verdicts of committed messages and rejections.
type CensoredHandler struct {
	mu       sync.Mutex
	log      *slog.Logger
	verdicts map[domain.Verdict]uint64
	rejected uint64
}

func NewCensoredHandler(log *slog.Logger) *CensoredHandler {
	return &CensoredHandler{
		log:      log,
		verdicts: make(map[domain.Verdict]uint64),
	}
}

func (h *CensoredHandler) Handle(e DomainEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch evt := e.(type) {
	case MessageCommitted:
		h.verdicts[evt.Message.Verdict]++
	case SendRejected:
		h.rejected++
		h.log.Debug("telemetry: send rejected", "room_id", evt.Message.Room, "total", h.rejected)
	}
}

// Count returns the number of committed messages holding the verdict.
func (h *CensoredHandler) Count(v domain.Verdict) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.verdicts[v]
}

func (h *CensoredHandler) Rejected() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rejected
}
