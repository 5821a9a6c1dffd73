package message

// shortFormLimit is the provider's byte boundary between short-form SMS and
// long-form LMS billing.
const shortFormLimit = 90

// ByteLength counts message bytes the way the carrier bills them: every
// code point at or above U+0080 counts as 2 bytes, everything else as 1.
// This mirrors the provider's EUC-KR accounting and is intentionally not a
// UTF-8 byte count.
func ByteLength(text string) int {
	n := 0
	for _, r := range text {
		if r >= 0x80 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// IsLongForm reports whether a text exceeds the 90-byte short-message limit
// and must be sent as LMS.
func IsLongForm(text string) bool {
	return ByteLength(text) > shortFormLimit
}
