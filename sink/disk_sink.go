package sink

import (
	"chat-guard/domain/event"
	"chat-guard/repositories"
	"context"
	"fmt"
	"log/slog"
)

// DiskSink persists committed messages so a restart replays the room logs.
type DiskSink struct {
	repository repositories.IMessageRepository
	log        *slog.Logger
}

func NewDiskSink(repository repositories.IMessageRepository, log *slog.Logger) DiskSink {
	return DiskSink{repository: repository, log: log}
}

func (d DiskSink) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessageCommitted:
		return d.repository.StoreMessage(evt.Message)
	default:
		d.log.Debug(fmt.Sprintf("Not implemented event : %T", evt))
		return nil
	}
}
