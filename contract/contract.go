//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-guard/domain"
	"chat-guard/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Classifier produces a verdict for a submitted text.
// Implementations must honour ctx cancellation.
type Classifier interface {
	Classify(ctx context.Context, text string) (domain.Classification, error)
}

// EventSink receives committed events outside of the commit path.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// Notifier is told that a room's log has grown.
type Notifier interface {
	Notify(roomID domain.RoomID)
}
