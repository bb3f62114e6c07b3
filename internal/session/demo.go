package session

import (
	"path"
	"strings"
)

// DemoMatcher decides whether an email belongs to a demo account.
type DemoMatcher interface {
	IsDemoEmail(email string) bool
}

// PatternMatcher matches emails against shell-style patterns such as
// "*@demo.wanzo.com" or exact addresses. Matching is case-insensitive.
type PatternMatcher struct {
	patterns []string
}

func NewPatternMatcher(patterns []string) *PatternMatcher {
	normalized := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			normalized = append(normalized, p)
		}
	}
	return &PatternMatcher{patterns: normalized}
}

func (m *PatternMatcher) IsDemoEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	for _, p := range m.patterns {
		if ok, err := path.Match(p, email); err == nil && ok {
			return true
		}
	}
	return false
}
