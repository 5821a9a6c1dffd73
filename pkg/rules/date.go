package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// eightDigitRe matches an already-normalized YYYYMMDD date label.
var eightDigitRe = regexp.MustCompile(`^\d{8}$`)

// isoDateRe matches the date portion of ISO-like labels: "2025-08-25",
// "2025-08-25T00:00:00Z", "2025/8/25", "2025.08.25".
var isoDateRe = regexp.MustCompile(`^(\d{4})[-/.](\d{1,2})[-/.](\d{1,2})`)

// NormalizeDate reduces a sheet date label to its 8-digit YYYYMMDD form for
// scope comparison. Upstream date labels are heterogeneous, so three cases
// are accepted:
//
//   - an 8-digit string is returned unchanged
//   - an ISO-like date or datetime string is reduced to its date digits
//   - anything else is returned as-is, so an unrecognized format fails
//     scoping visibly instead of matching by accident
func NormalizeDate(label string) string {
	label = strings.TrimSpace(label)
	if eightDigitRe.MatchString(label) {
		return label
	}
	if m := isoDateRe.FindStringSubmatch(label); m != nil {
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		return fmt.Sprintf("%s%02d%02d", m[1], month, day)
	}
	return label
}
