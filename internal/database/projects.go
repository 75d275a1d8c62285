package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ProjectStore reads and appends rows of the project_info table.
// Rows are never updated: the most recent row for a key is its current value.
type ProjectStore struct {
	db *sql.DB
}

// NewProjectStore wraps an initialized database handle.
func NewProjectStore(db *sql.DB) *ProjectStore {
	return &ProjectStore{db: db}
}

// UpdateProject records value for key on project.
func (s *ProjectStore) UpdateProject(ctx context.Context, projectName, key, value string) error {
	if strings.TrimSpace(projectName) == "" || strings.TrimSpace(key) == "" {
		return fmt.Errorf("project name and key are required")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO project_info (project_name, key, value) VALUES (?, ?, ?)`,
		projectName, key, value)
	if err != nil {
		return fmt.Errorf("failed to update project %s: %w", projectName, err)
	}

	return nil
}

// Get returns the current value of key for project.
func (s *ProjectStore) Get(ctx context.Context, projectName, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM project_info
		WHERE project_name = ? AND key = ?
		ORDER BY id DESC
		LIMIT 1
	`, projectName, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("project %q has no %s: %w", projectName, key, ErrNotFound)
		}
		return "", fmt.Errorf("failed to read %s of project %s: %w", key, projectName, err)
	}
	return value, nil
}

// GetVisitID returns the visit id recorded for project.
func (s *ProjectStore) GetVisitID(ctx context.Context, projectName string) (string, error) {
	return s.Get(ctx, projectName, KeyVisitID)
}

// GetMetadataPath returns the path of the export file recorded for project.
func (s *ProjectStore) GetMetadataPath(ctx context.Context, projectName string) (string, error) {
	return s.Get(ctx, projectName, KeyMetadataPath)
}

// ProjectInfo returns the current value of every key of project, ordered by key.
func (s *ProjectStore) ProjectInfo(ctx context.Context, projectName string) ([]ProjectEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.project_name, p.key, p.value, p.created_at
		FROM project_info p
		WHERE p.project_name = ?
		  AND p.id = (
			SELECT MAX(id) FROM project_info
			WHERE project_name = p.project_name AND key = p.key
		  )
		ORDER BY p.key
	`, projectName)
	if err != nil {
		return nil, fmt.Errorf("failed to query project %s: %w", projectName, err)
	}
	defer rows.Close()

	var entries []ProjectEntry
	for rows.Next() {
		var entry ProjectEntry
		var createdAt sql.NullTime
		if err := rows.Scan(&entry.ProjectName, &entry.Key, &entry.Value, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan project row: %w", err)
		}
		if createdAt.Valid {
			entry.CreatedAt = createdAt.Time
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate project rows: %w", err)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("project %q: %w", projectName, ErrNotFound)
	}
	return entries, nil
}
