package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/codeforge-ai/codeforge/pkg/common/errors"
)

// Message roles. The assistant role covers both chat replies and
// builder completions.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one side of a chat exchange within a project.
type Message struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// AppendMessage stores a chat message for a project.
func (s *Store) AppendMessage(projectID, role, content string) (*Message, error) {
	if role != RoleUser && role != RoleAssistant {
		return nil, fmt.Errorf("%w: unknown role %q", errors.ErrInvalidInput, role)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m := &Message{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.Exec(
		"INSERT INTO messages (id, project_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)",
		m.ID, m.ProjectID, m.Role, m.Content, m.CreatedAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return m, nil
}

// ListMessages returns a project's messages in insertion order. A
// positive limit keeps only the newest N messages, still oldest first,
// so callers get a trailing window of the conversation. A non-positive
// limit returns everything.
func (s *Store) ListMessages(projectID string, limit int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT id, project_id, role, content, created_at FROM messages WHERE project_id = ? ORDER BY created_at, id"
	args := []any{projectID}
	if limit > 0 {
		query = `SELECT id, project_id, role, content, created_at FROM (
			SELECT id, project_id, role, content, created_at FROM messages
			WHERE project_id = ? ORDER BY created_at DESC, id DESC LIMIT ?
		) ORDER BY created_at, id`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		var (
			m  Message
			ts int64
		)
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Role, &m.Content, &ts); err != nil {
			return nil, err
		}
		m.CreatedAt = time.Unix(0, ts).UTC()
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// AllMessages returns every stored message across projects, oldest
// first. Used by the fuzzy search endpoint.
func (s *Store) AllMessages() ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT id, project_id, role, content, created_at FROM messages ORDER BY created_at, id",
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		var (
			m  Message
			ts int64
		)
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Role, &m.Content, &ts); err != nil {
			return nil, err
		}
		m.CreatedAt = time.Unix(0, ts).UTC()
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
