package store

import (
	"fmt"
	"time"
)

// AddToken registers an API token.
func (s *Store) AddToken(token, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT OR IGNORE INTO tokens (token, label, created_at) VALUES (?, ?, ?)",
		token, label, time.Now().UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// RemoveToken revokes an API token.
func (s *Store) RemoveToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM tokens WHERE token = ?", token); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

// ListTokens returns every registered token value.
func (s *Store) ListTokens() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT token FROM tokens ORDER BY created_at, token")
	if err != nil {
		return nil, fmt.Errorf("query tokens: %w", err)
	}
	defer rows.Close()

	tokens := make([]string, 0)
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}
