package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Execution is one sandboxed code run and its captured output.
type Execution struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id,omitempty"`
	Language  string    `json:"language"`
	Code      string    `json:"code"`
	Stdout    string    `json:"stdout"`
	Stderr    string    `json:"stderr"`
	ExitCode  int       `json:"exit_code"`
	CreatedAt time.Time `json:"created_at"`
}

// RecordExecution persists a completed code run.
func (s *Store) RecordExecution(e *Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO executions (id, project_id, language, code, stdout, stderr, exit_code, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ProjectID, e.Language, e.Code, e.Stdout, e.Stderr, e.ExitCode, e.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

// ListExecutions returns executions newest first, optionally filtered
// by project.
func (s *Store) ListExecutions(projectID string, limit int) ([]Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	query := "SELECT id, project_id, language, code, stdout, stderr, exit_code, created_at FROM executions"
	args := []any{}
	if projectID != "" {
		query += " WHERE project_id = ?"
		args = append(args, projectID)
	}
	query += " ORDER BY created_at DESC, id LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}
	defer rows.Close()

	executions := make([]Execution, 0)
	for rows.Next() {
		var (
			e  Execution
			ts int64
		)
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.Language, &e.Code, &e.Stdout, &e.Stderr, &e.ExitCode, &ts); err != nil {
			return nil, err
		}
		e.CreatedAt = time.Unix(0, ts).UTC()
		executions = append(executions, e)
	}
	return executions, rows.Err()
}
