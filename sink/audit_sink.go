package sink

import (
	"chat-guard/domain"
	"chat-guard/domain/event"
	"chat-guard/repositories"
	"context"
	"log/slog"

	"github.com/abadojack/whatlanggo"
)

// AuditSink indexes every message moderation had a say on: masked messages,
// messages committed unmasked after a classifier failure, and rejected sends.
// Clean messages are not indexed.
type AuditSink struct {
	repository repositories.IAuditRepository
	log        *slog.Logger
}

func NewAuditSink(repository repositories.IAuditRepository, log *slog.Logger) AuditSink {
	return AuditSink{repository: repository, log: log}
}

func (a AuditSink) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessageCommitted:
		msg := evt.Message
		switch msg.Verdict {
		case domain.VerdictFlagged:
			return a.record(msg, domain.AuditFlagged, msg.Label)
		case domain.VerdictClassificationFailed:
			return a.record(msg, domain.AuditClassificationFailed, msg.Label)
		}
	case event.SendRejected:
		msg := evt.Message
		msg.CommittedAt = evt.At
		return a.record(msg, domain.AuditRejected, evt.Cause)
	}
	return nil
}

func (a AuditSink) record(msg domain.Message, kind domain.AuditKind, label string) error {
	at := msg.CommittedAt
	if at.IsZero() {
		at = msg.SubmittedAt
	}
	entry := domain.AuditEntry{
		MessageID: msg.ID,
		Room:      msg.Room,
		Author:    msg.Author,
		Kind:      kind,
		Text:      msg.Submitted,
		Label:     label,
		Language:  detectLanguage(msg.Submitted),
		Sequence:  msg.Sequence,
		At:        at,
	}
	a.log.Debug("Audit entry recorded", "room_id", msg.Room, "kind", kind, "lang", entry.Language)
	return a.repository.Record(entry)
}

// detectLanguage returns an ISO 639-1 code, or "und" when the guess is not
// reliable (short texts mostly).
func detectLanguage(text string) string {
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return "und"
	}
	return info.Lang.Iso6391()
}
