package trim

import "github.com/bmatcuk/doublestar/v4"

// ProtectedPatterns is a set of glob patterns (in doublestar syntax,
// e.g. "release/*" or "**/hotfix-*") that must never be deleted,
// regardless of classification.
type ProtectedPatterns []string

// Match reports whether name matches any of the patterns.
// An invalid pattern never matches anything; it doesn't panic or
// abort the trim run, since a single typo'd pattern shouldn't make
// every other branch unprotectable.
func (p ProtectedPatterns) Match(name string) bool {
	for _, pattern := range p {
		ok, err := doublestar.Match(pattern, name)
		if err != nil {
			continue
		}
		if ok {
			return true
		}
	}
	return false
}
