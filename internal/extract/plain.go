package extract

import (
	"strings"
	"unicode/utf8"
)

// extractPlain returns content unchanged unless it holds invalid UTF-8, which is replaced
// with U+FFFD.
func extractPlain(content []byte) string {
	if utf8.Valid(content) {
		return string(content)
	}
	return strings.ToValidUTF8(string(content), "\ufffd")
}
