package document

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Split breaks text into a primary segment of at most maxLen runes and the
// remaining continuation. The cut is made at the last whitespace at or before
// maxLen; without one the text is hard-cut at maxLen.
func Split(text string, maxLen int) (primary, continuation string) {
	if maxLen < 0 {
		maxLen = 0
	}
	if utf8.RuneCountInString(text) <= maxLen {
		return text, ""
	}

	runes := []rune(text)
	cut := maxLen
	// A cut at 0 would leave the primary empty; fall back to the hard cut.
	for i := maxLen; i > 0; i-- {
		if unicode.IsSpace(runes[i]) {
			cut = i
			break
		}
	}

	return string(runes[:cut]), strings.TrimSpace(string(runes[cut:]))
}

// Segments splits text into at most n consecutive segments of maxLen runes.
// Whatever does not fit into the last segment is dropped.
func Segments(text string, maxLen, n int) []string {
	segments := make([]string, 0, n)
	rest := text
	for len(segments) < n && rest != "" {
		var segment string
		segment, rest = Split(rest, maxLen)
		segments = append(segments, segment)
	}
	return segments
}
