package classifier

import (
	"chat-guard/domain"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

// Startup cost of a large word list kept in badger, as an operator-managed
// lexicon would be.
func Test_Lexicon_Startup_With_Large_WordList(t *testing.T) {
	if testing.Short() {
		t.Skip("seeds 100k words")
	}
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	wordCount := 100_000

	// --- Phase 1: SEEDING ---
	startSeed := time.Now()
	wb := db.NewWriteBatch()
	for i := 0; i < wordCount; i++ {
		req.NoError(wb.Set([]byte(fmt.Sprintf("lexicon:word%d", i)), nil))
	}
	req.NoError(wb.Flush())
	t.Logf("Seeding %d words: %v", wordCount, time.Since(startSeed))

	// --- Phase 2: LOADING ---
	startLoad := time.Now()
	var words []string
	err = db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false // words live in the keys
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte("lexicon:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			words = append(words, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	req.NoError(err)
	req.Len(words, wordCount)
	t.Logf("Loading from Badger: %v", time.Since(startLoad))

	// --- Phase 3: BUILDING AHO-CORASICK ---
	startBuild := time.Now()
	c, err := NewLexiconClassifier(words)
	req.NoError(err)
	t.Logf("Building automaton: %v", time.Since(startBuild))

	result, err := c.Classify(context.Background(), "hello word4242 friends")
	req.NoError(err)
	req.Equal(domain.VerdictFlagged, result.Verdict)
	t.Logf("Total startup time: %v", time.Since(startLoad))
}

func BenchmarkLexiconClassifier_Classify(b *testing.B) {
	data, err := LoadEmbeddedLexicons()
	require.NoError(b, err)
	c, err := NewLexiconClassifier(data.Words)
	require.NoError(b, err)
	text := "this is a perfectly ordinary message about the weather, nothing to see"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.Classify(context.Background(), text)
	}
}
