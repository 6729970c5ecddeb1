package store

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// Migration adds a column to an existing table. Tables created by
// initSchema already carry every column; migrations only matter for
// databases created before a column existed.
type Migration struct {
	Table  string
	Column string
	Def    string
}

// pendingMigrations lists all column migrations to apply, oldest first.
var pendingMigrations = []Migration{
	// Builder output kept alongside the project so the raw model text
	// stays inspectable after extraction.
	{"projects", "prompt", "TEXT NOT NULL DEFAULT ''"},
	{"projects", "raw_response", "TEXT NOT NULL DEFAULT ''"},
	// Execution results were originally stdout-only.
	{"executions", "stderr", "TEXT NOT NULL DEFAULT ''"},
	{"executions", "exit_code", "INTEGER NOT NULL DEFAULT 0"},
	// Token labels for operator bookkeeping.
	{"tokens", "label", "TEXT NOT NULL DEFAULT ''"},
}

func (s *Store) runMigrations() error {
	applied := 0
	for _, m := range pendingMigrations {
		if !tableExists(s.db, m.Table) {
			continue
		}
		if columnExists(s.db, m.Table, m.Column) {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate %s.%s: %w", m.Table, m.Column, err)
		}
		applied++
	}
	if applied > 0 {
		s.log.Info("schema migrations applied", zap.Int("count", applied))
	}
	return nil
}

func tableExists(db *sql.DB, table string) bool {
	var name string
	err := db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
	).Scan(&name)
	return err == nil
}

func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notnull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}
