package util

import (
	"crypto/sha256"
	"encoding/hex"
	"unicode/utf8"
)

// Truncate cuts s to at most n bytes, marking the cut with "...". The cut
// backs off to a rune boundary so the result stays valid UTF-8.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

func SHA256Hex(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}
