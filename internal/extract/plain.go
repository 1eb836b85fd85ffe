package extract

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// extractPlain returns a .txt or .md section as text without a leading byte order mark.
// Invalid UTF-8 sequences become U+FFFD.
func extractPlain(content []byte) (string, error) {
	content = bytes.TrimPrefix(content, utf8BOM)
	if utf8.Valid(content) {
		return string(content), nil
	}
	return strings.ToValidUTF8(string(content), "\ufffd"), nil
}
