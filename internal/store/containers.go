// ABOUTME: Container state and lifecycle event persistence keyed by project
// ABOUTME: Resource descriptors are opaque JSON owned by the containers package

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PutContainer inserts or replaces the container record for a project.
func (s *SQLiteStore) PutContainer(ctx context.Context, c *ContainerRecord) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	var lastStarted *string
	if c.LastStartedAt != nil {
		v := formatTime(*c.LastStartedAt)
		lastStarted = &v
	}

	query := `
		INSERT INTO containers (project_id, status, running, image, port, config_json, resources_json, created_at, last_started_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id) DO UPDATE SET
			status = excluded.status,
			running = excluded.running,
			image = excluded.image,
			port = excluded.port,
			config_json = excluded.config_json,
			resources_json = excluded.resources_json,
			last_started_at = excluded.last_started_at,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		c.ProjectID, c.Status, c.Running, c.Image, c.Port,
		nullableJSON(c.Config), nullableJSON(c.Resources),
		formatTime(c.CreatedAt), lastStarted, formatTime(c.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upserting container: %w", err)
	}
	return nil
}

// GetContainer retrieves the container record for a project.
func (s *SQLiteStore) GetContainer(ctx context.Context, projectID string) (*ContainerRecord, error) {
	query := `
		SELECT project_id, status, running, image, port, config_json, resources_json, created_at, last_started_at, updated_at
		FROM containers WHERE project_id = ?
	`
	var c ContainerRecord
	var config, resources, lastStarted sql.NullString
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx, query, projectID).Scan(
		&c.ProjectID, &c.Status, &c.Running, &c.Image, &c.Port,
		&config, &resources, &createdAt, &lastStarted, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying container: %w", err)
	}

	if config.Valid {
		c.Config = []byte(config.String)
	}
	if resources.Valid {
		c.Resources = []byte(resources.String)
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if lastStarted.Valid {
		t, err := parseTime(lastStarted.String)
		if err != nil {
			return nil, err
		}
		c.LastStartedAt = &t
	}
	return &c, nil
}

// DeleteContainer removes a project's container record. Events are kept.
func (s *SQLiteStore) DeleteContainer(ctx context.Context, projectID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM containers WHERE project_id = ?`, projectID)
	if err != nil {
		return fmt.Errorf("deleting container: %w", err)
	}
	return requireAffected(result)
}

// AppendContainerEvent records a lifecycle transition.
// Generates ID and CreatedAt if not set.
func (s *SQLiteStore) AppendContainerEvent(ctx context.Context, e *ContainerEvent) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO container_events (id, project_id, actor_id, action, status, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.ProjectID, e.ActorID, e.Action, e.Status, e.Message, formatTime(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting container event: %w", err)
	}
	return nil
}

// ListContainerEvents returns the most recent events for a project, oldest first.
// A non-positive limit defaults to 100.
func (s *SQLiteStore) ListContainerEvents(ctx context.Context, projectID string, limit int) ([]*ContainerEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, project_id, actor_id, action, status, message, created_at FROM (
			SELECT id, project_id, actor_id, action, status, message, created_at, rowid AS seq
			FROM container_events
			WHERE project_id = ?
			ORDER BY created_at DESC, rowid DESC
			LIMIT ?
		) ORDER BY created_at ASC, seq ASC
	`
	rows, err := s.db.QueryContext(ctx, query, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying container events: %w", err)
	}
	defer rows.Close()

	events := []*ContainerEvent{}
	for rows.Next() {
		var e ContainerEvent
		var createdAt string
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.ActorID, &e.Action, &e.Status, &e.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning container event: %w", err)
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating container events: %w", err)
	}
	return events, nil
}

func nullableJSON(b []byte) *string {
	if len(b) == 0 {
		return nil
	}
	s := string(b)
	return &s
}
