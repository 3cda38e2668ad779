package match

import (
	"regexp"
	"strings"
)

var (
	nonAlphaNum = regexp.MustCompile(`[^\p{L}\p{N}]+`)
	multiSpace  = regexp.MustCompile(`\s+`)
)

// stopWords are dropped from token lists so "The Price" matches "price".
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "for": {}, "of": {}, "the": {}, "to": {}, "with": {},
}

// Normalize lowercases, strips punctuation and collapses whitespace.
func Normalize(input string) string {
	lower := strings.ToLower(strings.TrimSpace(input))
	lower = nonAlphaNum.ReplaceAllString(lower, " ")
	lower = multiSpace.ReplaceAllString(lower, " ")
	return strings.TrimSpace(lower)
}

// Key is Normalize without spaces, used for duplicate detection.
func Key(input string) string {
	return strings.ReplaceAll(Normalize(input), " ", "")
}

// Tokens splits normalized text into words, skipping stop words.
func Tokens(input string) []string {
	fields := strings.Fields(Normalize(input))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, skip := stopWords[f]; skip {
			continue
		}
		out = appendUnique(out, f)
	}
	if len(out) == 0 && len(fields) > 0 {
		return fields
	}
	return out
}

// KeySet indexes names by Key for quick duplicate checks.
type KeySet map[string]struct{}

// NewKeySet builds a KeySet from names.
func NewKeySet(names ...string) KeySet {
	set := make(KeySet, len(names))
	for _, n := range names {
		set.Add(n)
	}
	return set
}

// Add inserts a name and reports whether it was new.
func (s KeySet) Add(name string) bool {
	k := Key(name)
	if k == "" {
		return false
	}
	if _, ok := s[k]; ok {
		return false
	}
	s[k] = struct{}{}
	return true
}

// Has reports whether an equivalent name is present.
func (s KeySet) Has(name string) bool {
	_, ok := s[Key(name)]
	return ok
}

func appendUnique(s []string, v string) []string {
	if v == "" {
		return s
	}
	for _, existing := range s {
		if existing == v {
			return s
		}
	}
	return append(s, v)
}
