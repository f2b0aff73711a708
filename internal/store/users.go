// ABOUTME: User persistence for registration and credential lookup
// ABOUTME: Username uniqueness is enforced by the database constraint

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateUser inserts a user if the username is free. The UNIQUE constraint
// makes this an atomic create-if-absent; a taken name returns
// ErrUsernameExists.
func (q *Queries) CreateUser(ctx context.Context, username, passwordHash string) (*User, error) {
	now := time.Now().UTC()

	var id int64
	err := q.queryRow(ctx, `
		INSERT INTO users (username, password_hash, created_at)
		VALUES (?, ?, ?)
		RETURNING id
	`, username, passwordHash, formatTime(now)).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUsernameExists
		}
		return nil, fmt.Errorf("inserting user: %w", err)
	}

	return &User{
		ID:           id,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    now,
	}, nil
}

// GetUserByUsername retrieves a user by username.
// Returns ErrNotFound if no such user exists.
func (q *Queries) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return q.getUser(ctx, `WHERE username = ?`, username)
}

// GetUserByID retrieves a user by id.
// Returns ErrNotFound if no such user exists.
func (q *Queries) GetUserByID(ctx context.Context, id int64) (*User, error) {
	return q.getUser(ctx, `WHERE id = ?`, id)
}

func (q *Queries) getUser(ctx context.Context, where string, arg any) (*User, error) {
	var u User
	var createdAt string

	err := q.queryRow(ctx, `
		SELECT id, username, password_hash, created_at
		FROM users
		`+where, arg).Scan(&u.ID, &u.Username, &u.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	if u.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return nil, err
	}
	return &u, nil
}
