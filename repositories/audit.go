package repositories

import (
	"chat-guard/domain"
	"context"
	"fmt"
	"log/slog"

	"github.com/blugelabs/bluge"
	"github.com/blugelabs/bluge/search"
	"github.com/google/uuid"
)

const (
	fieldContent  = "content"
	fieldRoom     = "room"
	fieldAuthor   = "author"
	fieldKind     = "kind"
	fieldLabel    = "label"
	fieldLanguage = "language"
	fieldSequence = "sequence"
	fieldAt       = "at"

	defaultAuditLimit = 50
)

type IAuditRepository interface {
	Record(entry domain.AuditEntry) error
	Search(ctx context.Context, query domain.AuditQuery) ([]domain.AuditEntry, uint64, error)
}

// AuditRepository is a full-text index of moderated messages, for operators.
type AuditRepository struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewAuditRepository(writer *bluge.Writer, log *slog.Logger) *AuditRepository {
	return &AuditRepository{writer: writer, log: log}
}

// Record indexes an entry. The message ID is the document ID, so recording
// the same message twice keeps a single document.
func (a *AuditRepository) Record(entry domain.AuditEntry) error {
	doc := bluge.NewDocument(entry.MessageID.String()).
		AddField(bluge.NewTextField(fieldContent, entry.Text).StoreValue()).
		AddField(bluge.NewKeywordField(fieldRoom, string(entry.Room)).StoreValue()).
		AddField(bluge.NewKeywordField(fieldAuthor, string(entry.Author)).StoreValue()).
		AddField(bluge.NewKeywordField(fieldKind, string(entry.Kind)).StoreValue()).
		AddField(bluge.NewKeywordField(fieldLabel, entry.Label).StoreValue()).
		AddField(bluge.NewKeywordField(fieldLanguage, entry.Language).StoreValue()).
		AddField(bluge.NewNumericField(fieldSequence, float64(entry.Sequence)).StoreValue()).
		AddField(bluge.NewDateTimeField(fieldAt, entry.At).StoreValue().Sortable())

	if err := a.writer.Update(doc.ID(), doc); err != nil {
		return fmt.Errorf("index audit entry %s: %w", entry.MessageID, err)
	}
	return nil
}

// Search matches the text query against submitted content, optionally
// narrowed to one room and one kind. An empty text matches everything.
func (a *AuditRepository) Search(ctx context.Context, query domain.AuditQuery) ([]domain.AuditEntry, uint64, error) {
	reader, err := a.writer.Reader()
	if err != nil {
		return nil, 0, fmt.Errorf("open audit reader: %w", err)
	}
	defer func() { _ = reader.Close() }()

	q := bluge.NewBooleanQuery()
	if query.Text == "" {
		q.AddMust(bluge.NewMatchAllQuery())
	} else {
		q.AddMust(bluge.NewMatchQuery(query.Text).SetField(fieldContent))
	}
	if query.Room != "" {
		q.AddMust(bluge.NewTermQuery(string(query.Room)).SetField(fieldRoom))
	}
	if query.Kind != "" {
		q.AddMust(bluge.NewTermQuery(string(query.Kind)).SetField(fieldKind))
	}

	limit := query.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	request := bluge.NewTopNSearch(limit, q).
		SortBy([]string{"-" + fieldAt}).
		WithStandardAggregations()

	matches, err := reader.Search(ctx, request)
	if err != nil {
		return nil, 0, fmt.Errorf("search audit: %w", err)
	}

	var entries []domain.AuditEntry
	match, err := matches.Next()
	for err == nil && match != nil {
		entry, visitErr := toAuditEntry(match)
		if visitErr != nil {
			return nil, 0, visitErr
		}
		entries = append(entries, entry)
		match, err = matches.Next()
	}
	if err != nil {
		return nil, 0, fmt.Errorf("iterate audit matches: %w", err)
	}
	return entries, matches.Aggregations().Count(), nil
}

func toAuditEntry(match *search.DocumentMatch) (domain.AuditEntry, error) {
	var entry domain.AuditEntry
	var decodeErr error
	err := match.VisitStoredFields(func(field string, value []byte) bool {
		switch field {
		case "_id":
			entry.MessageID, decodeErr = uuid.ParseBytes(value)
		case fieldContent:
			entry.Text = string(value)
		case fieldRoom:
			entry.Room = domain.RoomID(value)
		case fieldAuthor:
			entry.Author = domain.ParticipantID(value)
		case fieldKind:
			entry.Kind = domain.AuditKind(value)
		case fieldLabel:
			entry.Label = string(value)
		case fieldLanguage:
			entry.Language = string(value)
		case fieldSequence:
			var seq float64
			seq, decodeErr = bluge.DecodeNumericFloat64(value)
			entry.Sequence = domain.Sequence(seq)
		case fieldAt:
			entry.At, decodeErr = bluge.DecodeDateTime(value)
		}
		return decodeErr == nil
	})
	if err != nil {
		return domain.AuditEntry{}, err
	}
	if decodeErr != nil {
		return domain.AuditEntry{}, fmt.Errorf("decode audit entry: %w", decodeErr)
	}
	entry.At = entry.At.UTC()
	return entry, nil
}
