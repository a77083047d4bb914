package detect

import (
	"regexp"
	"strings"
)

// DefaultExtensionPatterns are the extension tokens flagged out of the box. Each entry is a
// regular expression fragment matched, case-insensitively, against the whole text after the
// final '.' of a file name.
var DefaultExtensionPatterns = []string{
	"locked",
	"encrypted",
	"crypto",
	"enc",
	`encrypted_\w+`,
	"deadbolt",
}

// ExtensionMatcher tests file names against a set of suspicious extension patterns.
type ExtensionMatcher struct {
	patterns []string
	re       *regexp.Regexp
}

// NewExtensionMatcher compiles patterns into a matcher. Leading dots are tolerated so that
// ".locked" and "locked" are equivalent. Blank entries are ignored. An empty set matches nothing.
func NewExtensionMatcher(patterns []string) (*ExtensionMatcher, error) {
	m := &ExtensionMatcher{patterns: make([]string, 0, len(patterns))}

	alts := make([]string, 0, len(patterns))
	for i, p := range patterns {
		p = strings.TrimPrefix(strings.TrimSpace(p), ".")
		if p == "" {
			continue
		}
		if _, err := regexp.Compile(p); err != nil {
			return nil, &ErrBadPattern{Index: i, Pattern: p, Err: err}
		}
		m.patterns = append(m.patterns, p)
		alts = append(alts, "(?:"+p+")")
	}

	if len(alts) == 0 {
		return m, nil
	}

	re, err := regexp.Compile(`(?i)^(?:` + strings.Join(alts, "|") + `)$`)
	if err != nil {
		return nil, &ErrBadPattern{Index: -1, Pattern: strings.Join(m.patterns, "|"), Err: err}
	}
	m.re = re

	return m, nil
}

// MustExtensionMatcher is like [NewExtensionMatcher] but panics on a bad pattern.
func MustExtensionMatcher(patterns []string) *ExtensionMatcher {
	m, err := NewExtensionMatcher(patterns)
	if err != nil {
		panic(err)
	}
	return m
}

// Patterns returns a copy of the normalized pattern list.
func (m *ExtensionMatcher) Patterns() []string {
	return append([]string(nil), m.patterns...)
}

// Extension returns the token after the final '.' of name, and false if there is none.
func Extension(name string) (string, bool) {
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 || idx == len(name)-1 {
		return "", false
	}
	return name[idx+1:], true
}

// Matches reports whether the extension of name is suspicious. name is a base name,
// not a path. Names without an extension never match.
func (m *ExtensionMatcher) Matches(name string) bool {
	if m == nil || m.re == nil {
		return false
	}
	ext, ok := Extension(name)
	if !ok {
		return false
	}
	return m.re.MatchString(ext)
}
