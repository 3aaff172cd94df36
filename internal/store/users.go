// ABOUTME: User persistence for identities created by OAuth and local login
// ABOUTME: Upserts refresh profile fields and bump last_login_at on every sign-in

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UpsertUser inserts the user or refreshes its profile fields.
// CreatedAt is preserved across upserts; LastLoginAt is set to now.
func (s *SQLiteStore) UpsertUser(ctx context.Context, u *User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.LastLoginAt = now

	query := `
		INSERT INTO users (id, provider, username, email, full_name, avatar_url, created_at, last_login_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			provider = excluded.provider,
			username = excluded.username,
			email = excluded.email,
			full_name = excluded.full_name,
			avatar_url = excluded.avatar_url,
			last_login_at = excluded.last_login_at
	`
	_, err := s.db.ExecContext(ctx, query,
		u.ID, u.Provider, u.Username, u.Email, u.FullName, u.AvatarURL,
		formatTime(u.CreatedAt), formatTime(u.LastLoginAt),
	)
	if err != nil {
		return fmt.Errorf("upserting user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	query := `
		SELECT id, provider, username, email, full_name, avatar_url, created_at, last_login_at
		FROM users WHERE id = ?
	`
	var u User
	var createdAt, lastLogin string
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.Provider, &u.Username, &u.Email, &u.FullName, &u.AvatarURL, &createdAt, &lastLogin,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if u.LastLoginAt, err = parseTime(lastLogin); err != nil {
		return nil, err
	}
	return &u, nil
}
