package runtime

import (
	"chat-guard/contract"
	"chat-guard/domain"
	"chat-guard/domain/event"
	"chat-guard/moderation"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

type pipeline struct {
	log       *slog.Logger
	registry  *Registry
	fanout    *Fanout
	sequencer *Sequencer
	gate      *Gate
	outbox    chan event.DomainEvent
	room      domain.RoomID
}

// newPipeline wires a registry holding one room with alice and bob.
func newPipeline(t *testing.T, classifier contract.Classifier, cfg GateConfig) *pipeline {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	outbox := make(chan event.DomainEvent, 100)
	registry := NewRegistry(log)
	fanout := NewFanout(log, registry, 16, 200*time.Millisecond)
	sequencer := NewSequencer(log, registry, fanout, outbox)
	gate := NewGate(log, registry, classifier, moderation.NewMasker('*'), sequencer, outbox, cfg)
	t.Cleanup(gate.Close)

	room, err := registry.CreateRoom("general")
	require.NoError(t, err)
	require.NoError(t, registry.Join(room, domain.Participant{ID: "alice", DisplayName: "Alice"}))
	require.NoError(t, registry.Join(room, domain.Participant{ID: "bob", DisplayName: "Bob"}))

	return &pipeline{
		log:       log,
		registry:  registry,
		fanout:    fanout,
		sequencer: sequencer,
		gate:      gate,
		outbox:    outbox,
		room:      room,
	}
}

func classified(room domain.RoomID, author domain.ParticipantID, text string) domain.Message {
	return domain.Message{
		ID:          uuid.New(),
		Room:        room,
		Author:      author,
		Submitted:   text,
		Displayed:   text,
		Verdict:     domain.VerdictClean,
		SubmittedAt: time.Now().UTC(),
	}
}

func send(author domain.ParticipantID, room domain.RoomID, text string) domain.SendMessageCommand {
	return domain.SendMessageCommand{Room: room, Author: author, Content: text, CreatedAt: time.Now().UTC()}
}

func cleanResult() domain.Classification {
	c := 0.02
	return domain.Classification{Verdict: domain.VerdictClean, Confidence: &c, Label: "0"}
}

func flaggedResult() domain.Classification {
	c := 0.97
	return domain.Classification{Verdict: domain.VerdictFlagged, Confidence: &c, Label: "1"}
}

// receive reads exactly n messages from the subscription.
func receive(t *testing.T, sub *Subscription, n int) []domain.Message {
	t.Helper()
	var res []domain.Message
	for len(res) < n {
		select {
		case msg, ok := <-sub.C():
			if !ok {
				t.Fatalf("subscription closed after %d messages: %v", len(res), sub.Err())
			}
			res = append(res, msg)
		case <-time.After(waitFor):
			t.Fatalf("timeout after %d of %d messages", len(res), n)
		}
	}
	return res
}

// silent asserts that nothing is delivered for a short while.
func silent(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case msg, ok := <-sub.C():
		if ok {
			t.Fatalf("unexpected message %d", msg.Sequence)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func sequences(messages []domain.Message) []domain.Sequence {
	res := make([]domain.Sequence, len(messages))
	for i, m := range messages {
		res[i] = m.Sequence
	}
	return res
}

func seqRange(from, to domain.Sequence) []domain.Sequence {
	var res []domain.Sequence
	for s := from; s <= to; s++ {
		res = append(res, s)
	}
	return res
}
