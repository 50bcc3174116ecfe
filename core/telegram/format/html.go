package format

import (
	"html"
	"strings"
	"unicode/utf8"
)

// MaxTextLen caps user supplied text stored in orders and requests.
const MaxTextLen = 2000

// TruncationMarker is appended to text cut at MaxTextLen.
const TruncationMarker = "..."

// EscapeHTML escapes text for Telegram's HTML parse mode.
func EscapeHTML(s string) string {
	return html.EscapeString(s)
}

// Clean trims, escapes and caps raw user input at MaxTextLen runes.
func Clean(raw string) string {
	return CleanLimit(raw, MaxTextLen)
}

// CleanLimit is Clean with an explicit rune limit.
func CleanLimit(raw string, limit int) string {
	s := EscapeHTML(strings.TrimSpace(raw))
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit]) + TruncationMarker
}

// Sanitizer adapts Clean to interfaces that take a text cleaner.
type Sanitizer struct {
	Limit int
}

// Clean implements the sanitizer contract used by the dialogue engine.
func (s Sanitizer) Clean(raw string) string {
	if s.Limit <= 0 {
		return Clean(raw)
	}
	return CleanLimit(raw, s.Limit)
}
