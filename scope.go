/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package rsauth

import (
	"github.com/vasayxtx/go-glob"
)

// scopeMatcher checks that the token scopes intersect the required ones.
// Required scopes may be glob patterns (e.g. "groups:*").
type scopeMatcher struct {
	matchers []func(scope string) bool
}

func newScopeMatcher(requiredScopes []string) *scopeMatcher {
	m := &scopeMatcher{}
	for i := range requiredScopes {
		if requiredScopes[i] == "" {
			continue
		}
		m.matchers = append(m.matchers, glob.Compile(requiredScopes[i]))
	}
	return m
}

// Match returns true if any of the scopes matches any of the required ones, or if nothing is required.
func (m *scopeMatcher) Match(scopes []string) bool {
	if len(m.matchers) == 0 {
		return true
	}
	for i := range scopes {
		for j := range m.matchers {
			if m.matchers[j](scopes[i]) {
				return true
			}
		}
	}
	return false
}
