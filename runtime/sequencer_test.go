package runtime

import (
	"chat-guard/domain"
	"chat-guard/domain/event"
	"chat-guard/errors"
	"chat-guard/mocks"
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/mock/gomock"
)

func newSequencer(t *testing.T, outboxSize int) (*Sequencer, *Registry, *mocks.MockNotifier, chan event.DomainEvent) {
	t.Helper()
	ctrl := gomock.NewController(t)
	notifier := mocks.NewMockNotifier(ctrl)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := NewRegistry(log)
	outbox := make(chan event.DomainEvent, outboxSize)
	return NewSequencer(log, registry, notifier, outbox), registry, notifier, outbox
}

func TestSequencer_Commit_ConcurrentWritersGetContiguousSequences(t *testing.T) {
	req := require.New(t)
	sequencer, registry, notifier, _ := newSequencer(t, 1000)
	room, err := registry.CreateRoom("general")
	req.NoError(err)
	notifier.EXPECT().Notify(room).Times(200)

	// Given 200 commits racing on the same room
	var wg sync.WaitGroup
	errs := make(chan error, 200)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := sequencer.Commit(context.Background(), classified(room, "alice", "hi"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		req.NoError(err)
	}

	// Then the log holds 1..200 without gaps
	messages, err := registry.Messages(room, 0, 0)
	req.NoError(err)
	req.Equal(seqRange(1, 200), sequences(messages))
	r, err := registry.room(room)
	req.NoError(err)
	req.NoError(r.Verify())
}

func TestSequencer_Commit_PublishesCommittedEvent(t *testing.T) {
	req := require.New(t)
	sequencer, registry, notifier, outbox := newSequencer(t, 10)
	room, err := registry.CreateRoom("general")
	req.NoError(err)
	notifier.EXPECT().Notify(room)

	committed, err := sequencer.Commit(context.Background(), classified(room, "alice", "hello"))
	req.NoError(err)
	req.Equal(domain.Sequence(1), committed.Sequence)
	req.False(committed.CommittedAt.IsZero())

	evt := <-outbox
	req.Equal(event.MessageCommitted{Message: committed}, evt)
}

func TestSequencer_Commit_RefusesPendingMessage(t *testing.T) {
	req := require.New(t)
	sequencer, registry, _, _ := newSequencer(t, 10)
	room, err := registry.CreateRoom("general")
	req.NoError(err)

	msg := classified(room, "alice", "hello")
	msg.Verdict = domain.VerdictPending

	_, err = sequencer.Commit(context.Background(), msg)
	req.ErrorIs(err, errors.ErrNotClassified)
	req.False(sequencer.Halted(room))
}

func TestSequencer_Commit_UnknownRoom(t *testing.T) {
	sequencer, _, _, _ := newSequencer(t, 10)
	_, err := sequencer.Commit(context.Background(), classified("unknown", "alice", "hello"))
	require.ErrorIs(t, err, errors.ErrRoomNotFound)
}

func TestSequencer_Conflict_HaltsOnlyThatRoom(t *testing.T) {
	req := require.New(t)
	sequencer, registry, notifier, _ := newSequencer(t, 10)
	room, err := registry.CreateRoom("general")
	req.NoError(err)
	other, err := registry.CreateRoom("random")
	req.NoError(err)
	notifier.EXPECT().Notify(room).Times(2)
	notifier.EXPECT().Notify(other)

	_, err = sequencer.Commit(context.Background(), classified(room, "alice", "first"))
	req.NoError(err)

	// Given a message that already carries a sequence number
	duplicate := classified(room, "alice", "again")
	duplicate.Sequence = 1

	// When it is committed
	_, err = sequencer.Commit(context.Background(), duplicate)

	// Then the room halts instead of renumbering
	req.ErrorIs(err, errors.ErrSequencingConflict)
	req.True(sequencer.Halted(room))
	_, err = sequencer.Commit(context.Background(), classified(room, "alice", "next"))
	req.ErrorIs(err, errors.ErrRoomHalted)

	// And other rooms keep committing
	_, err = sequencer.Commit(context.Background(), classified(other, "bob", "still fine"))
	req.NoError(err)
	req.False(sequencer.Halted(other))

	// When the operator remediates
	req.NoError(sequencer.Remediate(room, nil))

	// Then commits resume where the log stopped
	req.False(sequencer.Halted(room))
	committed, err := sequencer.Commit(context.Background(), classified(room, "alice", "resumed"))
	req.NoError(err)
	req.Equal(domain.Sequence(2), committed.Sequence)
}

func TestSequencer_FullOutbox_DoesNotBlockCommit(t *testing.T) {
	req := require.New(t)
	sequencer, registry, notifier, outbox := newSequencer(t, 1)
	room, err := registry.CreateRoom("general")
	req.NoError(err)
	notifier.EXPECT().Notify(room).Times(3)

	for i := 0; i < 3; i++ {
		_, err := sequencer.Commit(context.Background(), classified(room, "alice", "hello"))
		req.NoError(err)
	}

	// Only the first event fits, the log still holds every commit
	req.Len(outbox, 1)
	summary, err := registry.Summary(room)
	req.NoError(err)
	req.Equal(domain.Sequence(3), summary.Tail)
}

func TestSequencer_Commit_Span(t *testing.T) {
	req := require.New(t)
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()
	sequencer, registry, notifier, _ := newSequencer(t, 10)
	sequencer.WithTracerProvider(tp)
	room, err := registry.CreateRoom("general")
	req.NoError(err)
	notifier.EXPECT().Notify(room).Times(2)

	// Given two commits then one carrying a sequence already
	for i := 0; i < 2; i++ {
		_, err = sequencer.Commit(context.Background(), classified(room, "alice", "hi"))
		req.NoError(err)
	}
	replayed := classified(room, "alice", "again")
	replayed.Sequence = 1
	_, err = sequencer.Commit(context.Background(), replayed)
	req.ErrorIs(err, errors.ErrSequencingConflict)

	// Then every commit is a span carrying its room and assigned sequence
	spans := recorder.Ended()
	req.Len(spans, 3)
	for i, span := range spans {
		req.Equal("sequencer.Commit", span.Name())
		attrs := make(map[attribute.Key]attribute.Value)
		for _, kv := range span.Attributes() {
			attrs[kv.Key] = kv.Value
		}
		req.Equal(string(room), attrs["room_id"].AsString())
		if i < 2 {
			req.Equal(int64(i+1), attrs["sequence"].AsInt64())
			continue
		}
		// And the conflict is recorded as an error, without a sequence
		_, ok := attrs["sequence"]
		req.False(ok)
		req.Equal(otelcodes.Error, span.Status().Code)
	}
}
