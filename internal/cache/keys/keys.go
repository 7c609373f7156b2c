package keys

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const prefix = "digipin"

// Key builds the shared cache key for a payload kind and code. The code is
// normalized so hyphenated and lower-case spellings share one entry; the
// version lets a payload format change invalidate old entries without a
// flush. The trailing hash keeps keys of similar codes evenly spread when
// they are sharded by suffix.
func Key(kind, code, version string) string {
	k := sanitize(strings.ToLower(strings.TrimSpace(kind)))
	c := normalizeCode(code)
	v := sanitize(strings.TrimSpace(version))
	if v == "" {
		v = "0"
	}
	sum := xxhash.Sum64String(k + "\x00" + c + "\x00" + v)
	return fmt.Sprintf("%s:%s:%s:v=%s:h=%016x", prefix, k, c, v, sum)
}

func normalizeCode(s string) string {
	s = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", ""))
	return sanitize(s)
}

// keeps [A-Za-z0-9_.]; anything else collapses to a single '_'
func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prev := rune(0)
	for _, r := range s {
		out := r
		if !isKeyRune(r) {
			out = '_'
		}
		if out == '_' && prev == '_' {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isKeyRune(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') ||
		r == '.'
}
