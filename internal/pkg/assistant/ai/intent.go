package ai

import (
	"encoding/json"

	assistant "github.com/NurzhauganovA/aishop/internal/pkg/assistant/application/domain"
)

// ExtractSearchIntent scans model output for an embedded JSON object carrying
// the search_request marker. It returns (nil, false) for anything that is not
// a well-formed marked object: the caller then treats the text as a plain
// assistant reply. Malformed JSON must never fail a turn.
func ExtractSearchIntent(text string) (*assistant.SearchIntent, bool) {
	span, ok := firstBalancedObject(text)
	if !ok {
		return nil, false
	}

	var intent assistant.SearchIntent
	if err := json.Unmarshal([]byte(span), &intent); err != nil {
		return nil, false
	}
	if !intent.SearchRequest {
		return nil, false
	}
	return &intent, true
}

// firstBalancedObject returns the first outermost balanced {...} span in s.
// Brace counting is string-literal aware so braces inside JSON strings do not
// truncate the span. A first-{/last-} heuristic would cut nested objects short
// or swallow prose between two separate objects.
func firstBalancedObject(s string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue // stray closing brace before any object
			}
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
