package search

import (
	"strings"
	"unicode"
)

// Snippet returns at most maxLen characters of content centred on the first query word it
// contains (case-insensitive), with "..." marking cut ends. Without a match the snippet is
// the start of content. maxLen <= 0 returns content unchanged.
func Snippet(content, query string, maxLen int) string {
	runes := []rune(content)
	if maxLen <= 0 || len(runes) <= maxLen {
		return content
	}
	lower := []rune(strings.ToLower(content))
	start := 0
	for _, w := range strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if pos := indexRunes(lower, []rune(w)); pos >= 0 {
			start = pos - maxLen/3
			break
		}
	}
	if start < 0 {
		start = 0
	}
	if start+maxLen > len(runes) {
		start = len(runes) - maxLen
	}
	out := strings.TrimSpace(string(runes[start : start+maxLen]))
	if start > 0 {
		out = "..." + out
	}
	if start+maxLen < len(runes) {
		out += "..."
	}
	return out
}

func indexRunes(s, sub []rune) int {
	if len(sub) == 0 || len(sub) > len(s) {
		return -1
	}
outer:
	for i := 0; i+len(sub) <= len(s); i++ {
		for j := range sub {
			if s[i+j] != sub[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}
