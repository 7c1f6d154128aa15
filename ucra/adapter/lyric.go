package adapter

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeLyric returns the NFC form of a lyric with surrounding
// whitespace removed. Kana typed with combining marks and precomposed kana
// then compare equal.
func NormalizeLyric(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || norm.NFC.IsNormalString(s) {
		return s
	}
	return norm.NFC.String(s)
}
