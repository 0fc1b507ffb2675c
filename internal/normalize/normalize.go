// CLAUDE:SUMMARY Applies a Watch's normalization toggles to extracted text and hashes the result with SHA-256.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/devindudeman/kto/internal/store"
)

// Normalize applies the toggles in n to text, in a fixed order:
// whitespace stripping first (so downstream patterns see collapsed
// spacing), then date stripping, then random-ID stripping.
func Normalize(text string, n store.Normalization) string {
	if n.StripWhitespace {
		text = stripWhitespace(text)
	}
	if n.StripDates {
		text = stripDates(text)
	}
	if n.StripRandomIDs {
		text = stripRandomIDs(text)
	}
	return text
}

// Hash returns the hex-encoded SHA-256 digest of normalized text. Two
// snapshots with the same Hash are considered unchanged for diffing
// purposes.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func stripWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	var out []string
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// The date pattern set is closed and fixed: ISO-8601 dates/timestamps,
// HH:MM(:SS) clock times, "N seconds/minutes/hours/days/weeks/months/years
// ago" relative times, and "Mon D, YYYY" style month names. Anything outside this set
// is left alone rather than risking stripping content that only looks
// date-like.
var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:?\d{2})?\b`),
	regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
	regexp.MustCompile(`\b\d{1,2}:\d{2}(:\d{2})?\s*(AM|PM|am|pm)?\b`),
	regexp.MustCompile(`\b\d+\s+(second|minute|hour|day|week|month|year)s?\s+ago\b`),
	regexp.MustCompile(`\b(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)[a-z]*\.?\s+\d{1,2},?\s+\d{4}\b`),
}

func stripDates(text string) string {
	for _, re := range datePatterns {
		text = re.ReplaceAllString(text, "<DATE>")
	}
	return text
}

// Random-ID patterns: UUIDs, long hex/base64-looking runs, and common
// tracking query parameters. Like dates, this is a closed set rather
// than a heuristic entropy check.
var (
	uuidPattern    = regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`)
	hexRunPattern  = regexp.MustCompile(`\b[0-9a-fA-F]{16,}\b`)
	base64Pattern  = regexp.MustCompile(`\b[A-Za-z0-9+/]{24,}={0,2}\b`)
	trackingParam  = regexp.MustCompile(`(?i)([?&](utm_[a-z]+|ref|session|token|sid)=)[^&\s]+`)
)

func stripRandomIDs(text string) string {
	text = uuidPattern.ReplaceAllString(text, "<ID>")
	text = hexRunPattern.ReplaceAllString(text, "<ID>")
	text = base64Pattern.ReplaceAllString(text, "<ID>")
	text = trackingParam.ReplaceAllString(text, "${1}<ID>")
	return text
}
