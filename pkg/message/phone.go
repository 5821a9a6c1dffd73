package message

import "strings"

// NormalizePhone strips hyphens and surrounding whitespace from a phone
// number. The provider rejects hyphenated recipient numbers, and sheet rows
// usually carry them in "010-1234-5678" form.
func NormalizePhone(number string) string {
	return strings.ReplaceAll(strings.TrimSpace(number), "-", "")
}
