package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/codeforge-ai/codeforge/pkg/common/errors"
)

// Project is one app-builder workspace.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Prompt      string    `json:"prompt,omitempty"`
	RawResponse string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateProject inserts a new project and returns it.
func (s *Store) CreateProject(name string) (*Project, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: project name required", errors.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := &Project{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.Exec(
		"INSERT INTO projects (id, name, prompt, raw_response, created_at) VALUES (?, ?, '', '', ?)",
		p.ID, p.Name, p.CreatedAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}
	return p, nil
}

// GetProject fetches a project by ID.
func (s *Store) GetProject(id string) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		p  Project
		ts int64
	)
	err := s.db.QueryRow(
		"SELECT id, name, prompt, raw_response, created_at FROM projects WHERE id = ?", id,
	).Scan(&p.ID, &p.Name, &p.Prompt, &p.RawResponse, &ts)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: project %s", errors.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query project: %w", err)
	}
	p.CreatedAt = time.Unix(ts, 0).UTC()
	return &p, nil
}

// ListProjects returns all projects, newest first.
func (s *Store) ListProjects() ([]Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT id, name, prompt, raw_response, created_at FROM projects ORDER BY created_at DESC, id",
	)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	projects := make([]Project, 0)
	for rows.Next() {
		var (
			p  Project
			ts int64
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Prompt, &p.RawResponse, &ts); err != nil {
			return nil, err
		}
		p.CreatedAt = time.Unix(ts, 0).UTC()
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// SaveBuild records the builder prompt and the raw model response for a
// project. The raw text is the durable artifact; extracted file lists
// are recomputed from it on demand.
func (s *Store) SaveBuild(projectID, prompt, rawResponse string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		"UPDATE projects SET prompt = ?, raw_response = ? WHERE id = ?",
		prompt, rawResponse, projectID,
	)
	if err != nil {
		return fmt.Errorf("update project build: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: project %s", errors.ErrNotFound, projectID)
	}
	return nil
}

// DeleteProject removes a project and, via foreign keys, its messages.
func (s *Store) DeleteProject(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: project %s", errors.ErrNotFound, id)
	}
	return nil
}
