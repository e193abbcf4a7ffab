package internal

import (
	"chat-guard/repositories"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

//go:embed inspect.html
var templatesFS embed.FS

const defaultPrefix = "msg:"

type InspectRow struct {
	Key       string
	Type      string
	Timestamp string
	EntityID  string
	Room      string
	Detail    string
	Verdict   string
}

type RowMapper func(key string, val []byte) InspectRow
type StatsProvider func() map[string]any

type PageData struct {
	Prefix string
	Items  []InspectRow
	Stats  map[string]any
	Limit  int
}

// DebugHandler serves a read-only page listing the badger keys under the
// "prefix" query parameter, at most limit rows.
func DebugHandler(db *badger.DB, log *slog.Logger, mapper RowMapper, statsProvider StatsProvider, limit int) http.Handler {
	tmpl := template.Must(template.ParseFS(templatesFS, "inspect.html"))
	if mapper == nil {
		mapper = DefaultMapper
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/inspect", func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = defaultPrefix
		}
		data := PageData{Prefix: prefix, Stats: make(map[string]any), Limit: limit}
		if statsProvider != nil {
			data.Stats = statsProvider()
		}

		err := db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)) && len(data.Items) < limit; it.Next() {
				item := it.Item()
				err := item.Value(func(val []byte) error {
					data.Items = append(data.Items, mapper(string(item.Key()), val))
					return nil
				})
				if err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			log.Error("Debug page scan failed", "prefix", prefix, "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			log.Error("Debug page rendering failed", "error", err)
		}
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/inspect?prefix="+defaultPrefix, http.StatusFound)
	})
	return mux
}

// NewDebugServer binds the debug page to every interface on port.
func NewDebugServer(db *badger.DB, log *slog.Logger, port int, statsProvider StatsProvider) *http.Server {
	return &http.Server{
		Addr:    fmt.Sprintf("0.0.0.0:%d", port),
		Handler: DebugHandler(db, log, ChatMapper, statsProvider, 500),
	}
}

// ChatMapper decodes message and room rows, falling back to DefaultMapper.
func ChatMapper(key string, val []byte) InspectRow {
	switch {
	case strings.HasPrefix(key, "msg:"):
		msg, err := repositories.DecodeMessage(val)
		if err != nil {
			return DefaultMapper(key, val)
		}
		return InspectRow{
			Key:       key,
			Type:      "MESSAGE",
			Timestamp: msg.CommittedAt.Format("15:04:05"),
			EntityID:  shortID(msg.ID.String()),
			Room:      string(msg.Room),
			Detail:    fmt.Sprintf("#%d %s: %s", msg.Sequence, msg.Author, msg.Displayed),
			Verdict:   msg.Verdict.String(),
		}
	case strings.HasPrefix(key, "room:"):
		room, err := repositories.DecodeRoom(val)
		if err != nil {
			return DefaultMapper(key, val)
		}
		return InspectRow{
			Key:       key,
			Type:      "ROOM",
			Timestamp: room.CreatedAt.Format("15:04:05"),
			EntityID:  shortID(room.ID),
			Room:      room.ID,
			Detail:    room.Name,
			Verdict:   "-",
		}
	default:
		return DefaultMapper(key, val)
	}
}

func DefaultMapper(key string, val []byte) InspectRow {
	row := InspectRow{
		Key:       key,
		Type:      "RAW",
		Timestamp: "--:--:--",
		EntityID:  "--------",
		Room:      "-",
		Detail:    "Size: " + strconv.Itoa(len(val)) + " bytes",
		Verdict:   "-",
	}
	if parts := strings.Split(key, ":"); len(parts) >= 2 {
		row.Room = parts[1]
	}
	return row
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
