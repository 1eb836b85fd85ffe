package indexer

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

var lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// Preprocess normalizes section text before segmentation: line endings become "\n",
// Unicode is NFKC-normalized (non-breaking spaces, full-width digits, ligatures) and
// trailing whitespace is stripped from every line. Blank lines are kept because the
// segmenter uses them as separators.
func Preprocess(text string) string {
	text = lineEndings.Replace(text)
	text = norm.NFKC.String(text)
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRightFunc(l, isTrailingSpace)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func isTrailingSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\v' || r == '\f'
}
