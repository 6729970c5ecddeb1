// Package auth provides token-based authentication for the API.
//
// Tokens live in the store; the in-memory set is an explicit,
// injected dependency rather than module-level state so tests and
// multiple server instances stay isolated.
package auth

import (
	"sync"
)

// TokenSet is a mutex-guarded set of valid API tokens.
type TokenSet struct {
	mu     sync.RWMutex
	tokens map[string]struct{}
}

// NewTokenSet builds a set from the given tokens.
func NewTokenSet(tokens []string) *TokenSet {
	ts := &TokenSet{tokens: make(map[string]struct{}, len(tokens))}
	for _, t := range tokens {
		if t != "" {
			ts.tokens[t] = struct{}{}
		}
	}
	return ts
}

// Valid reports whether the token is known.
func (ts *TokenSet) Valid(token string) bool {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	_, ok := ts.tokens[token]
	return ok
}

// Add registers a token.
func (ts *TokenSet) Add(token string) {
	if token == "" {
		return
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.tokens[token] = struct{}{}
}

// Remove revokes a token.
func (ts *TokenSet) Remove(token string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	delete(ts.tokens, token)
}

// Len returns the number of registered tokens.
func (ts *TokenSet) Len() int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return len(ts.tokens)
}
