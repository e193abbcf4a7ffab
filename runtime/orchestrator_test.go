package runtime_test

import (
	"chat-guard/classifier"
	"chat-guard/contract"
	"chat-guard/domain"
	"chat-guard/errors"
	"chat-guard/repositories"
	"chat-guard/runtime"
	"chat-guard/runtime/workers"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const waitFor = 3 * time.Second

type unreachable struct{}

func (unreachable) Classify(context.Context, string) (domain.Classification, error) {
	return domain.Classification{}, errors.ErrClassifierUnavailable
}

func testConfig(policy domain.FallbackPolicy) runtime.Config {
	return runtime.Config{
		QueueDepth:            16,
		MaxContentLength:      500,
		Policy:                policy,
		CharReplacement:       '*',
		SubscriberBufferSize:  64,
		SlowSubscriberTimeout: time.Second,
		OutboxSize:            256,
		SinkTimeout:           time.Second,
		HistoryLimit:          100,
	}
}

func lexicon(t *testing.T) contract.Classifier {
	t.Helper()
	data, err := classifier.LoadEmbeddedLexicons()
	require.NoError(t, err)
	c, err := classifier.NewLexiconClassifier(data.Words)
	require.NoError(t, err)
	return c
}

// start runs the orchestrator until the test ends.
func start(t *testing.T, o *runtime.Orchestrator) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = o.Start(ctx)
	}()
	t.Cleanup(func() {
		o.Stop()
		cancel()
		<-done
	})
}

func newOrchestrator(t *testing.T, c contract.Classifier, policy domain.FallbackPolicy) *runtime.Orchestrator {
	t.Helper()
	log := slog.New(slog.DiscardHandler)
	return runtime.NewOrchestrator(log, workers.NewSupervisor(log, 10*time.Millisecond), c, testConfig(policy))
}

func room(t *testing.T, o *runtime.Orchestrator, members ...domain.ParticipantID) domain.RoomID {
	t.Helper()
	summary, err := o.CreateRoom("general")
	require.NoError(t, err)
	for _, id := range members {
		require.NoError(t, o.JoinRoom(summary.ID, domain.Participant{ID: id, DisplayName: strings.ToUpper(string(id))}))
	}
	return summary.ID
}

func sendAndWait(t *testing.T, o *runtime.Orchestrator, roomID domain.RoomID, author domain.ParticipantID, text string) (domain.Message, error) {
	t.Helper()
	ticket, err := o.SendMessage(domain.SendMessageCommand{Room: roomID, Author: author, Content: text})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	return ticket.Wait(ctx)
}

func next(t *testing.T, sub *runtime.Subscription) domain.Message {
	t.Helper()
	select {
	case msg, ok := <-sub.C():
		require.True(t, ok, "subscription ended: %v", sub.Err())
		return msg
	case <-time.After(waitFor):
		t.Fatal("no message delivered")
		return domain.Message{}
	}
}

func TestOrchestrator_CleanAndFlaggedMessages(t *testing.T) {
	req := require.New(t)
	o := newOrchestrator(t, lexicon(t), domain.FailOpen)
	start(t, o)
	roomID := room(t, o, "alice", "bob")

	sub, err := o.Subscribe(context.Background(), roomID, "bob", nil)
	req.NoError(err)
	defer sub.Close()

	// Scenario A: a clean message is delivered as typed
	_, err = sendAndWait(t, o, roomID, "alice", "hello friends")
	req.NoError(err)
	msg := next(t, sub)
	req.False(msg.Flagged())
	req.Equal("hello friends", msg.Displayed)

	// Scenario B: a flagged message is masked as a whole
	text := "you are an idiot and a loser"
	_, err = sendAndWait(t, o, roomID, "alice", text)
	req.NoError(err)
	msg = next(t, sub)
	req.True(msg.Flagged())
	req.Equal(strings.Repeat("*", utf8.RuneCountInString(text)), msg.Displayed)
	req.Equal(domain.Sequence(2), msg.Sequence)
}

func TestOrchestrator_ClassifierUnreachable(t *testing.T) {
	t.Run("fail open commits unmasked for audit", func(t *testing.T) {
		req := require.New(t)
		o := newOrchestrator(t, unreachable{}, domain.FailOpen)
		start(t, o)
		roomID := room(t, o, "alice")

		msg, err := sendAndWait(t, o, roomID, "alice", "is anyone there")
		req.NoError(err)
		req.Equal(domain.VerdictClassificationFailed, msg.Verdict)
		req.Equal("is anyone there", msg.Displayed)
		req.True(msg.Audit)
	})

	t.Run("fail closed rejects and commits nothing", func(t *testing.T) {
		req := require.New(t)
		o := newOrchestrator(t, unreachable{}, domain.FailClosed)
		start(t, o)
		roomID := room(t, o, "alice")

		_, err := sendAndWait(t, o, roomID, "alice", "is anyone there")
		req.ErrorIs(err, errors.ErrSendRejected)
		history, err := o.History(domain.HistoryCommand{Room: roomID, Reader: "alice"})
		req.NoError(err)
		req.Empty(history)
	})
}

// slowFirst delays the first classification of each author.
type slowFirst struct {
	delay time.Duration
}

func (s slowFirst) Classify(ctx context.Context, text string) (domain.Classification, error) {
	if strings.HasSuffix(text, "#1") {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return domain.Classification{}, ctx.Err()
		}
	}
	return domain.Classification{Verdict: domain.VerdictClean}, nil
}

func TestOrchestrator_SameAuthorKeepsOrder(t *testing.T) {
	req := require.New(t)
	o := newOrchestrator(t, slowFirst{delay: 50 * time.Millisecond}, domain.FailOpen)
	start(t, o)
	roomID := room(t, o, "alice")

	// Scenario D: the faster second classification does not overtake the first
	first, err := o.SendMessage(domain.SendMessageCommand{Room: roomID, Author: "alice", Content: "message #1"})
	req.NoError(err)
	second, err := o.SendMessage(domain.SendMessageCommand{Room: roomID, Author: "alice", Content: "message #2"})
	req.NoError(err)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	m1, err := first.Wait(ctx)
	req.NoError(err)
	m2, err := second.Wait(ctx)
	req.NoError(err)
	req.Equal(domain.Sequence(1), m1.Sequence)
	req.Equal(domain.Sequence(2), m2.Sequence)
}

func TestOrchestrator_ReconnectResumesWithoutDuplicates(t *testing.T) {
	req := require.New(t)
	o := newOrchestrator(t, lexicon(t), domain.FailOpen)
	start(t, o)
	roomID := room(t, o, "alice", "bob")

	sub, err := o.Subscribe(context.Background(), roomID, "bob", nil)
	req.NoError(err)
	for i := 0; i < 5; i++ {
		_, err = sendAndWait(t, o, roomID, "alice", "ping")
		req.NoError(err)
	}
	for i := 1; i <= 5; i++ {
		req.Equal(domain.Sequence(i), next(t, sub).Sequence)
	}

	// Scenario E: bob drops after 5, three more messages commit meanwhile
	sub.Close()
	for i := 0; i < 3; i++ {
		_, err = sendAndWait(t, o, roomID, "alice", "pong")
		req.NoError(err)
	}

	from := domain.Sequence(5)
	again, err := o.Subscribe(context.Background(), roomID, "bob", &from)
	req.NoError(err)
	defer again.Close()
	for i := 6; i <= 8; i++ {
		req.Equal(domain.Sequence(i), next(t, again).Sequence)
	}
	select {
	case msg := <-again.C():
		t.Fatalf("duplicate delivery of %d", msg.Sequence)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestOrchestrator_LeaveRoom(t *testing.T) {
	req := require.New(t)
	o := newOrchestrator(t, lexicon(t), domain.FailOpen)
	start(t, o)
	roomID := room(t, o, "alice", "bob")

	sub, err := o.Subscribe(context.Background(), roomID, "bob", nil)
	req.NoError(err)

	req.NoError(o.LeaveRoom(roomID, "bob"))
	for range sub.C() {
	}
	req.ErrorIs(sub.Err(), errors.ErrSubscriptionEnd)

	_, err = o.SendMessage(domain.SendMessageCommand{Room: roomID, Author: "bob", Content: "still here?"})
	req.ErrorIs(err, errors.ErrNotMember)
	participants, err := o.ListParticipants(roomID)
	req.NoError(err)
	req.Len(participants, 1)
}

func TestOrchestrator_Classify(t *testing.T) {
	req := require.New(t)
	o := newOrchestrator(t, lexicon(t), domain.FailOpen)

	result, err := o.Classify(context.Background(), "what a moron")
	req.NoError(err)
	req.Equal(domain.VerdictFlagged, result.Verdict)

	_, err = o.Classify(context.Background(), "  ")
	req.ErrorIs(err, errors.ErrEmptyMessage)
}

func TestOrchestrator_History_IsCapped(t *testing.T) {
	req := require.New(t)
	log := slog.New(slog.DiscardHandler)
	cfg := testConfig(domain.FailOpen)
	cfg.HistoryLimit = 2
	o := runtime.NewOrchestrator(log, workers.NewSupervisor(log, time.Millisecond), lexicon(t), cfg)
	start(t, o)
	roomID := room(t, o, "alice")
	for i := 0; i < 4; i++ {
		_, err := sendAndWait(t, o, roomID, "alice", "hi")
		req.NoError(err)
	}

	history, err := o.History(domain.HistoryCommand{Room: roomID, Reader: "alice", After: 1, Limit: 50})
	req.NoError(err)
	req.Len(history, 2)
	req.Equal(domain.Sequence(2), history[0].Sequence)

	// A non-member reads nothing
	_, err = o.History(domain.HistoryCommand{Room: roomID, Reader: "mallory"})
	req.ErrorIs(err, errors.ErrNotMember)
}

func TestOrchestrator_PersistsAndRestores(t *testing.T) {
	req := require.New(t)
	log := slog.New(slog.DiscardHandler)
	dir := t.TempDir()

	db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })
	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	req.NoError(err)
	defer writer.Close()

	rooms := repositories.NewRoomRepository(db)
	messages := repositories.NewMessageRepository(db, log, nil)
	audit := repositories.NewAuditRepository(writer, log)

	// Given a running service with storage and audit enabled
	o := newOrchestrator(t, lexicon(t), domain.FailOpen).WithStorage(rooms, messages).WithAudit(audit)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = o.Start(ctx)
	}()
	roomID := room(t, o, "alice")
	_, err = sendAndWait(t, o, roomID, "alice", "good morning everyone")
	req.NoError(err)
	_, err = sendAndWait(t, o, roomID, "alice", "you stupid loser")
	req.NoError(err)

	// Then both messages reach the disk and the flagged one the audit index
	req.Eventually(func() bool {
		stored, err := messages.AllMessages(roomID)
		return err == nil && len(stored) == 2
	}, waitFor, 10*time.Millisecond)
	req.Eventually(func() bool {
		_, total, err := o.SearchAudit(context.Background(), domain.AuditQuery{Kind: domain.AuditFlagged})
		return err == nil && total == 1
	}, waitFor, 10*time.Millisecond)
	entries, _, err := o.SearchAudit(context.Background(), domain.AuditQuery{Text: "loser"})
	req.NoError(err)
	req.Len(entries, 1)
	req.Equal("you stupid loser", entries[0].Text)

	o.Stop()
	cancel()
	<-done

	// When a new process restores from the same database
	restored := newOrchestrator(t, lexicon(t), domain.FailOpen).WithStorage(rooms, messages)
	req.NoError(restored.Restore())
	start(t, restored)

	// Then the room and its log are back and numbering continues
	summaries := restored.ListRooms()
	req.Len(summaries, 1)
	req.Equal(roomID, summaries[0].ID)
	req.Equal(domain.Sequence(2), summaries[0].Tail)

	req.NoError(restored.JoinRoom(roomID, domain.Participant{ID: "alice"}))
	history, err := restored.History(domain.HistoryCommand{Room: roomID, Reader: "alice"})
	req.NoError(err)
	req.Equal("good morning everyone", history[0].Displayed)
	req.Equal("****************", history[1].Displayed)

	msg, err := sendAndWait(t, restored, roomID, "alice", "back again")
	req.NoError(err)
	req.Equal(domain.Sequence(3), msg.Sequence)
}

func TestOrchestrator_RestoreWithHole_NeverReusesSequences(t *testing.T) {
	req := require.New(t)
	log := slog.New(slog.DiscardHandler)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })
	rooms := repositories.NewRoomRepository(db)
	messages := repositories.NewMessageRepository(db, log, nil)

	// Given a stored log holding sequences 1, 2 and 4, the commit of 3 lost
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	roomID := domain.RoomID("general")
	req.NoError(rooms.StoreRoom(repositories.DiskRoom{ID: string(roomID), Name: "general", CreatedAt: at}))
	stored := func(seq domain.Sequence, text string) domain.Message {
		return domain.Message{
			ID: uuid.New(), Room: roomID, Author: "alice",
			Submitted: text, Displayed: text, Verdict: domain.VerdictClean,
			Sequence: seq, SubmittedAt: at, CommittedAt: at,
		}
	}
	fourth := stored(4, "four")
	for _, msg := range []domain.Message{stored(1, "one"), stored(2, "two"), fourth} {
		req.NoError(messages.StoreMessage(msg))
	}

	// When the service restores from it
	o := newOrchestrator(t, lexicon(t), domain.FailOpen).WithStorage(rooms, messages)
	req.NoError(o.Restore())
	start(t, o)
	req.NoError(o.JoinRoom(roomID, domain.Participant{ID: "alice"}))

	// Then the contiguous prefix is served, with clean text intact
	history, err := o.History(domain.HistoryCommand{Room: roomID, Reader: "alice"})
	req.NoError(err)
	req.Len(history, 2)
	req.Equal("one", history[0].Submitted)
	req.Equal(history[0].Submitted, history[0].Displayed)

	// And the room is halted instead of handing out 3 and 4 again
	req.True(o.Halted(roomID))
	req.Equal(domain.Sequence(4), o.ListRooms()[0].Tail)
	_, err = sendAndWait(t, o, roomID, "alice", "hello")
	req.ErrorIs(err, errors.ErrRoomHalted)
	req.ErrorIs(o.Remediate(roomID), errors.ErrSequencingConflict)

	onDisk, err := messages.AllMessages(roomID)
	req.NoError(err)
	req.Len(onDisk, 3)
	req.Equal(fourth.ID, onDisk[2].ID)

	// When the missing commit finally reaches the disk
	req.NoError(messages.StoreMessage(stored(3, "three")))

	// Then remediation reads the log back and numbering resumes after 4
	req.NoError(o.Remediate(roomID))
	req.False(o.Halted(roomID))
	msg, err := sendAndWait(t, o, roomID, "alice", "hello")
	req.NoError(err)
	req.Equal(domain.Sequence(5), msg.Sequence)
}

func TestOrchestrator_Stats(t *testing.T) {
	req := require.New(t)
	o := newOrchestrator(t, lexicon(t), domain.FailClosed)
	start(t, o)
	roomID := room(t, o, "alice")

	sub, err := o.Subscribe(context.Background(), roomID, "alice", nil)
	req.NoError(err)
	defer sub.Close()

	stats := o.Stats()
	req.Equal(1, stats["rooms"])
	req.Equal(0, stats["halted_rooms"])
	req.Equal(1, stats["subscribers"])
	req.Equal("fail-closed", stats["policy"])
}
