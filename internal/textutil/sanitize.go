package textutil

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultMaxFileNameLength matches the length cap the server applies.
const DefaultMaxFileNameLength = 80

// Fold decomposes text and drops combining marks, so "Café" becomes "Cafe".
// Characters with no ASCII decomposition are kept as is.
func Fold(text string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	folded, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return folded
}

// SafeFileName converts a prompt into a short ASCII file name without an
// extension. Only letters, digits, spaces, underscores and hyphens survive;
// whitespace runs collapse to one space. Prompts with nothing left fall back
// to "audio-" plus a short hash so distinct prompts stay distinct.
func SafeFileName(prompt string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxFileNameLength
	}
	var b strings.Builder
	for _, r := range Fold(prompt) {
		switch {
		case r > unicode.MaxASCII:
			continue
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	name := strings.Join(strings.Fields(b.String()), " ")
	if len(name) > maxLen {
		name = strings.TrimRight(name[:maxLen], " ")
	}
	if name == "" {
		sum := sha1.Sum([]byte(prompt))
		return "audio-" + hex.EncodeToString(sum[:])[:8]
	}
	return name
}

// UniquePath returns dir/base+ext, or the first dir/base(n)+ext for which
// exists reports false.
func UniquePath(dir, base, ext string, exists func(string) bool) string {
	candidate := filepath.Join(dir, base+ext)
	for i := 1; exists(candidate); i++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s(%d)%s", base, i, ext))
	}
	return candidate
}
