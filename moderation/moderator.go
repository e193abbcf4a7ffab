// Package moderation turns a classification verdict into the text shown to
// participants. Flagged messages are masked as a whole: no fragment of the
// submitted text survives, whatever the classifier matched.
package moderation

import (
	"chat-guard/domain"
	"chat-guard/errors"
	"strings"
	"unicode/utf8"
)

// Display is the outcome of masking.
type Display struct {
	Text  string
	Audit bool
}

// Mask maps (text, verdict) to the displayed text.
//   - Clean: identity.
//   - Flagged: maskChar repeated once per rune of text.
//   - ClassificationFailed: identity, flagged for audit.
//
// A pending verdict cannot be displayed.
func Mask(text string, verdict domain.Verdict, maskChar rune) (Display, error) {
	switch verdict {
	case domain.VerdictClean:
		return Display{Text: text}, nil
	case domain.VerdictFlagged:
		return Display{Text: strings.Repeat(string(maskChar), utf8.RuneCountInString(text))}, nil
	case domain.VerdictClassificationFailed:
		return Display{Text: text, Audit: true}, nil
	default:
		return Display{}, errors.ErrNotClassified
	}
}

// Masker binds the configured replacement character.
type Masker struct {
	censoredChar rune
}

func NewMasker(censoredChar rune) Masker {
	return Masker{censoredChar: censoredChar}
}

func (m Masker) Mask(text string, verdict domain.Verdict) (Display, error) {
	return Mask(text, verdict, m.censoredChar)
}

// Char is the rune used for masked messages.
func (m Masker) Char() rune {
	return m.censoredChar
}
