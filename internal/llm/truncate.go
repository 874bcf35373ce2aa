package llm

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// encodingName is fixed rather than derived per-model: the batch/pair
// character budgets in config are conservative enough that token-counting
// precision against the exact model encoding doesn't matter, and cl100k_base
// covers every model this package targets.
const encodingName = "cl100k_base"

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

func encoding() *tiktoken.Tiktoken {
	encOnce.Do(func() {
		e, err := tiktoken.GetEncoding(encodingName)
		if err != nil {
			// Falls back to rune counting via countTokens' nil check below;
			// a missing/corrupt encoding file must never abort reconciliation.
			enc = nil
			return
		}
		enc = e
	})
	return enc
}

// countTokens returns the token count of s under cl100k_base, or an
// approximation (runes/4) if the encoding failed to load.
func countTokens(s string) int {
	e := encoding()
	if e == nil {
		return len([]rune(s))/4 + 1
	}
	return len(e.Encode(s, nil, nil))
}

// TruncateToChars truncates s to maxChars runes at a sentence boundary when
// possible, falling back to a hard cut. Mirrors the teacher's truncateRunes
// (internal/conflicts/validator.go) but prefers "." / "\n" boundaries
// within the last 20% of the budget, per spec §4.6's "truncate at sentence
// boundaries" requirement, and reports whether truncation occurred so
// callers can set metadata.truncated.
func TruncateToChars(s string, maxChars int) (string, bool) {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s, false
	}
	cut := string(runes[:maxChars])

	searchFrom := maxChars * 80 / 100
	if searchFrom < 0 {
		searchFrom = 0
	}
	tail := string(runes[searchFrom:maxChars])
	if idx := strings.LastIndexAny(tail, ".\n"); idx >= 0 {
		boundary := searchFrom + utf8.RuneCountInString(tail[:idx]) + 1
		return string(runes[:boundary]), true
	}
	return cut, true
}
