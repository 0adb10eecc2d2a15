// Package users stores registered accounts and their public profiles.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"emochat/internal/database"
	"emochat/internal/registration"
)

// ErrUserNotFound is returned when no profile exists for a uid
var ErrUserNotFound = errors.New("user not found")

// Repository reads and writes user profile documents
type Repository struct {
	db database.Service
}

// NewRepository creates a profile repository
func NewRepository(db database.Service) *Repository {
	return &Repository{db: db}
}

// FindUserByPhone returns the profile registered with phone, or nil, nil when
// the number is free.
func (r *Repository) FindUserByPhone(ctx context.Context, phone string) (*registration.User, error) {
	query := `
		SELECT uid, id, nickname, phone
		FROM users
		WHERE phone = $1
		ORDER BY created_at
		LIMIT 1
	`

	var u registration.User
	err := r.db.QueryRow(ctx, query, phone).Scan(&u.UID, &u.ID, &u.Nickname, &u.Phone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by phone: %w", err)
	}
	return &u, nil
}

// AddUser stores the profile document under its uid, replacing any previous one
func (r *Repository) AddUser(ctx context.Context, user registration.User) error {
	query := `
		INSERT INTO users (uid, id, nickname, phone)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (uid) DO UPDATE
		SET id = EXCLUDED.id,
			nickname = EXCLUDED.nickname,
			phone = EXCLUDED.phone,
			updated_at = NOW()
	`

	if _, err := r.db.Exec(ctx, query, user.UID, user.ID, user.Nickname, user.Phone); err != nil {
		return fmt.Errorf("failed to add user: %w", err)
	}
	return nil
}

// GetUser returns the profile stored under uid
func (r *Repository) GetUser(ctx context.Context, uid string) (*registration.User, error) {
	query := `SELECT uid, id, nickname, phone FROM users WHERE uid = $1`

	var u registration.User
	err := r.db.QueryRow(ctx, query, uid).Scan(&u.UID, &u.ID, &u.Nickname, &u.Phone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}
