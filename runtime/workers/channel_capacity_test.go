package workers

import (
	"chat-guard/domain/event"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestChannelCapacityWorker_Sample(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	// Given an outbox filled up to 3 of 4 slots
	outbox := make(chan event.DomainEvent, 4)
	for i := 0; i < 3; i++ {
		outbox <- event.MessageCommitted{}
	}
	unbuffered := make(chan struct{})

	w := NewChannelCapacityWorker(log, []NamedChannel{
		{Name: "outbox", Channel: outbox},
		{Name: "unbuffered", Channel: unbuffered},
		{Name: "not a channel", Channel: 42},
	}, time.Second, 1)

	// When sampled
	left := w.Sample()

	// Then only buffered channels are reported
	req.Equal(map[string]int{"outbox": 1}, left)
}
