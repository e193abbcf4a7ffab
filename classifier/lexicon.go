package classifier

import (
	"chat-guard/domain"
	"chat-guard/errors"
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
	"gopkg.in/yaml.v3"
)

//go:embed lexicon/*.yaml
var lexiconFolder embed.FS

const (
	lexiconFlaggedConfidence = 0.85
	lexiconCleanConfidence   = 0.05
)

// LexiconData carries the result of the loading process including metadata for logging.
type LexiconData struct {
	Words     []string
	Languages []string
}

type lexiconFile struct {
	Language string   `yaml:"language"`
	Words    []string `yaml:"words"`
}

// LoadLexicons reads every .yaml file of dir and merges their word lists.
func LoadLexicons(fsys fs.FS, dir string) (*LexiconData, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	var languages []string
	uniqueWords := make(map[string]struct{})
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".yaml" {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		var file lexiconFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("lexicon %s: %w", entry.Name(), err)
		}
		lang := file.Language
		if lang == "" {
			lang = strings.TrimSuffix(entry.Name(), ".yaml")
		}
		languages = append(languages, lang)
		for _, w := range file.Words {
			if w = strings.TrimSpace(w); w != "" {
				uniqueWords[w] = struct{}{}
			}
		}
	}

	if len(uniqueWords) == 0 {
		return nil, errors.ErrEmptyWords
	}
	words := make([]string, 0, len(uniqueWords))
	for w := range uniqueWords {
		words = append(words, w)
	}
	sort.Strings(words)
	return &LexiconData{Words: words, Languages: languages}, nil
}

// LoadEmbeddedLexicons loads the word lists shipped with the binary.
func LoadEmbeddedLexicons() (*LexiconData, error) {
	return LoadLexicons(lexiconFolder, "lexicon")
}

// LexiconClassifier is a local, offline classifier: any lexicon hit flags the
// whole message. It never calls the network and never fails transiently.
type LexiconClassifier struct {
	matcher *goahocorasick.Machine
}

// NewLexiconClassifier initializes the Aho-Corasick automaton with a normalized version of the provided words.
func NewLexiconClassifier(words []string) (*LexiconClassifier, error) {
	seen := make(map[string]struct{})
	var patterns [][]rune
	for _, word := range words {
		p := normalizeRunes([]rune(word))
		if len(p) == 0 {
			continue
		}
		if _, ok := seen[string(p)]; ok {
			continue
		}
		seen[string(p)] = struct{}{}
		patterns = append(patterns, p)
	}
	if len(patterns) == 0 {
		return nil, errors.ErrEmptyWords
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &LexiconClassifier{matcher: m}, nil
}

func (l *LexiconClassifier) Classify(ctx context.Context, text string) (domain.Classification, error) {
	if err := ctx.Err(); err != nil {
		return domain.Classification{}, err
	}
	hits := l.Matches(text)
	if len(hits) > 0 {
		confidence := lexiconFlaggedConfidence
		return domain.Classification{
			Verdict:    domain.VerdictFlagged,
			Confidence: &confidence,
			Label:      "lexicon:" + hits[0],
		}, nil
	}
	confidence := lexiconCleanConfidence
	return domain.Classification{Verdict: domain.VerdictClean, Confidence: &confidence, Label: "lexicon:clean"}, nil
}

// Matches returns the normalized lexicon words found in text, in order.
func (l *LexiconClassifier) Matches(text string) []string {
	normalized := normalizeRunes([]rune(text))
	if len(normalized) == 0 {
		return nil
	}
	terms := l.matcher.MultiPatternSearch(normalized, false)
	words := make([]string, 0, len(terms))
	for _, term := range terms {
		words = append(words, string(term.Word))
	}
	return words
}

// normalizeRunes applies simplification and noise removal to a slice of runes.
func normalizeRunes(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		out = append(out, unicode.ToLower(clean))
	}
	return out
}

// simplifyRune maps common Leet speak characters back to their standard alphabet counterparts.
func simplifyRune(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

// isNoise identifies characters that should be ignored during the pattern matching phase.
func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
