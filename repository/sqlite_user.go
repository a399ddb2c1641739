package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ecemk/konvo/models"
	"github.com/ecemk/konvo/pkg"
)

// sqliteUserRepository, UserRepository'nin SQLite implementasyonu.
type sqliteUserRepository struct {
	db *sql.DB
}

// NewSQLiteUserRepository, yeni bir SQLite user repository oluşturur.
func NewSQLiteUserRepository(db *sql.DB) UserRepository {
	return &sqliteUserRepository{db: db}
}

const userColumns = `id, username, display_name, avatar_url, email, status, created_at`

func (r *sqliteUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = ?
	`, id)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pkg.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (r *sqliteUserRepository) ListByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	if len(ids) == 0 {
		return []*models.User{}, nil
	}

	// IN clause için placeholder üret (?, ?, ...)
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []*models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user rows: %w", err)
	}
	return users, nil
}

func (r *sqliteUserRepository) UpdateStatus(ctx context.Context, userID string, status models.UserStatus) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users SET status = ? WHERE id = ?
	`, status, userID)
	if err != nil {
		return fmt.Errorf("failed to update user status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check status update result: %w", err)
	}
	if affected == 0 {
		return pkg.ErrNotFound
	}
	return nil
}

func scanUser(s scanner) (*models.User, error) {
	var user models.User
	if err := s.Scan(
		&user.ID, &user.Username, &user.DisplayName, &user.AvatarURL,
		&user.Email, &user.Status, &user.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}
