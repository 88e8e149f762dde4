package monitor

import "strings"

// Normalize lowercases text, replaces every non-alphanumeric rune with a
// space and collapses runs of whitespace. Speech engines punctuate
// unpredictably; matching happens in this normalized space.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// NormalizeList normalizes every entry and drops the ones that normalize
// to nothing.
func NormalizeList(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if n := Normalize(w); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// Matcher tests normalized text against a phrase list, either as
// whole-word (phrase boundaries must align with word boundaries) or as
// plain substring containment.
type Matcher struct {
	phrases   []string
	wholeWord bool
}

// NewMatcher builds a matcher from raw phrases.
func NewMatcher(phrases []string, wholeWord bool) *Matcher {
	return &Matcher{phrases: NormalizeList(phrases), wholeWord: wholeWord}
}

// Empty reports whether the matcher has no usable phrases.
func (m *Matcher) Empty() bool { return len(m.phrases) == 0 }

// Match returns the first configured phrase found in text.
func (m *Matcher) Match(text string) (string, bool) {
	norm := Normalize(text)
	if norm == "" {
		return "", false
	}
	if m.wholeWord {
		padded := " " + norm + " "
		for _, p := range m.phrases {
			if strings.Contains(padded, " "+p+" ") {
				return p, true
			}
		}
		return "", false
	}
	for _, p := range m.phrases {
		if strings.Contains(norm, p) {
			return p, true
		}
	}
	return "", false
}
