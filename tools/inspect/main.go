// inspect dumps the rooms and messages of a chat-guard badger store.
package main

import (
	"chat-guard/repositories"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/pflag"
)

func main() {
	dbPath := pflag.String("db", "./data/badger", "Path to badger DB")
	prefix := pflag.String("prefix", "msg:", "Prefix to scan (msg:, msg:<room>:, room:)")
	limit := pflag.Int("limit", 0, "Stop after this many rows, 0 for all")
	pflag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	if err := dump(db, *prefix, *limit, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func dump(db *badger.DB, prefix string, limit int, out io.Writer) error {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Key", "Type", "Time", "ID", "Room", "Seq", "Author", "Verdict", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	rows := 0
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			if limit > 0 && rows >= limit {
				return nil
			}
			item := it.Item()
			key := string(item.Key())
			err := item.Value(func(v []byte) error {
				row, err := decode(key, v)
				if err != nil {
					// Keep going, a single bad row should not hide the rest
					fmt.Fprintf(out, "Error decoding key %s: %v\n", key, err)
					return nil
				}
				table.Append(row)
				rows++
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	table.Render()
	return nil
}

func decode(key string, v []byte) ([]string, error) {
	switch {
	case strings.HasPrefix(key, "msg:"):
		msg, err := repositories.DecodeMessage(v)
		if err != nil {
			return nil, err
		}
		return []string{
			key,
			"MESSAGE",
			msg.CommittedAt.Format("15:04:05"),
			short(msg.ID.String()),
			string(msg.Room),
			strconv.FormatUint(uint64(msg.Sequence), 10),
			string(msg.Author),
			paint(msg.Verdict.String()),
			msg.Displayed,
		}, nil
	case strings.HasPrefix(key, "room:"):
		room, err := repositories.DecodeRoom(v)
		if err != nil {
			return nil, err
		}
		return []string{key, "ROOM", room.CreatedAt.Format("15:04:05"), short(room.ID), room.ID, "-", "-", "-", room.Name}, nil
	default:
		return []string{key, "RAW", "--:--:--", "--------", "-", "-", "-", "-", fmt.Sprintf("Size: %d bytes", len(v))}, nil
	}
}

func paint(verdict string) string {
	switch verdict {
	case "flagged":
		return color.FgRed.Render(verdict)
	case "classification_failed":
		return color.FgYellow.Render(verdict)
	default:
		return color.FgGreen.Render(verdict)
	}
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)
	return badger.Open(opts)
}
