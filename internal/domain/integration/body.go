package integration

import (
	"strings"
	"unicode/utf8"
)

// MaxErrorBody caps the response body quoted in an UpstreamError
const MaxErrorBody = 2048

// ErrorBody trims body for quoting in an error. Bodies longer than
// MaxErrorBody are cut on a rune boundary and marked with "...".
func ErrorBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) <= MaxErrorBody {
		return s
	}
	cut := MaxErrorBody
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
