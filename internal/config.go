package internal

import (
	"chat-guard/domain"
	"fmt"
	"strings"
)

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}

// ParseFallbackPolicy reads "fail-open" or "fail-closed", case-insensitive.
func ParseFallbackPolicy(str string) (domain.FallbackPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(str)) {
	case domain.FailOpen.String():
		return domain.FailOpen, nil
	case domain.FailClosed.String():
		return domain.FailClosed, nil
	default:
		return domain.FailOpen, fmt.Errorf("FALLBACK_POLICY must be fail-open or fail-closed, got %q", str)
	}
}

// SplitList splits a comma separated value, dropping blanks.
func SplitList(str string) []string {
	var out []string
	for _, part := range strings.Split(str, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
