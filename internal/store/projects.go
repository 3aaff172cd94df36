// ABOUTME: Project persistence with owner/member access lists stored as JSON
// ABOUTME: Deleting a project cascades to its container and lifecycle events

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const projectColumns = `id, name, description, language, repository_url, owner_id, members_json, tags_json, status, created_at, updated_at`

// CreateProject inserts a new project. Returns ErrDuplicate if the ID is taken.
func (s *SQLiteStore) CreateProject(ctx context.Context, p *Project) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	if p.Status == "" {
		p.Status = "active"
	}

	members, tags, err := encodeLists(p)
	if err != nil {
		return err
	}

	query := `INSERT INTO projects (` + projectColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query,
		p.ID, p.Name, p.Description, p.Language, p.RepositoryURL, p.OwnerID,
		members, tags, p.Status, formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting project: %w", err)
	}
	return nil
}

// GetProject retrieves a project by ID.
func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = ?`
	p, err := scanProject(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListProjects returns the projects a user owns or is a member of, newest first.
func (s *SQLiteStore) ListProjects(ctx context.Context, userID string) ([]*Project, error) {
	query := `
		SELECT ` + projectColumns + ` FROM projects
		WHERE owner_id = ?
		   OR EXISTS (SELECT 1 FROM json_each(projects.members_json) WHERE json_each.value = ?)
		ORDER BY created_at DESC, id
	`
	rows, err := s.db.QueryContext(ctx, query, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	defer rows.Close()

	projects := []*Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating projects: %w", err)
	}
	return projects, nil
}

// UpdateProject overwrites the mutable fields of an existing project.
func (s *SQLiteStore) UpdateProject(ctx context.Context, p *Project) error {
	p.UpdatedAt = time.Now().UTC()

	members, tags, err := encodeLists(p)
	if err != nil {
		return err
	}

	query := `
		UPDATE projects
		SET name = ?, description = ?, language = ?, repository_url = ?,
		    members_json = ?, tags_json = ?, status = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query,
		p.Name, p.Description, p.Language, p.RepositoryURL,
		members, tags, p.Status, formatTime(p.UpdatedAt), p.ID,
	)
	if err != nil {
		return fmt.Errorf("updating project: %w", err)
	}
	return requireAffected(result)
}

// DeleteProject removes a project along with its container state and events.
func (s *SQLiteStore) DeleteProject(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	return requireAffected(result)
}

func encodeLists(p *Project) (members, tags string, err error) {
	if p.Members == nil {
		p.Members = []string{}
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	m, err := json.Marshal(p.Members)
	if err != nil {
		return "", "", fmt.Errorf("marshaling members: %w", err)
	}
	t, err := json.Marshal(p.Tags)
	if err != nil {
		return "", "", fmt.Errorf("marshaling tags: %w", err)
	}
	return string(m), string(t), nil
}

func scanProject(scanner interface{ Scan(dest ...any) error }) (*Project, error) {
	var p Project
	var members, tags, createdAt, updatedAt string
	err := scanner.Scan(
		&p.ID, &p.Name, &p.Description, &p.Language, &p.RepositoryURL, &p.OwnerID,
		&members, &tags, &p.Status, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning project: %w", err)
	}

	if err := json.Unmarshal([]byte(members), &p.Members); err != nil {
		return nil, fmt.Errorf("unmarshaling members: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
		return nil, fmt.Errorf("unmarshaling tags: %w", err)
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// requireAffected maps a zero-row write to ErrNotFound.
func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
