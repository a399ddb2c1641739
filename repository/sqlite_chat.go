package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ecemk/konvo/models"
	"github.com/ecemk/konvo/pkg"
)

// sqliteChatRepository, ChatRepository'nin SQLite implementasyonu.
type sqliteChatRepository struct {
	db *sql.DB
}

// NewSQLiteChatRepository, yeni bir SQLite chat repository oluşturur.
func NewSQLiteChatRepository(db *sql.DB) ChatRepository {
	return &sqliteChatRepository{db: db}
}

func (r *sqliteChatRepository) GetByID(ctx context.Context, id string) (*models.Chat, error) {
	var chat models.Chat
	err := r.db.QueryRowContext(ctx, `
		SELECT id, kind, name, created_at FROM chats WHERE id = ?
	`, id).Scan(&chat.ID, &chat.Kind, &chat.Name, &chat.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pkg.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}
	return &chat, nil
}

func (r *sqliteChatRepository) IsParticipant(ctx context.Context, chatID, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM chat_members WHERE chat_id = ? AND user_id = ?)
	`, chatID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check chat membership: %w", err)
	}
	return exists, nil
}

func (r *sqliteChatRepository) CountParticipants(ctx context.Context, chatID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM chat_members WHERE chat_id = ?
	`, chatID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count chat members: %w", err)
	}
	return count, nil
}

func (r *sqliteChatRepository) ListParticipantIDs(ctx context.Context, chatID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id FROM chat_members WHERE chat_id = ? ORDER BY joined_at
	`, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat members: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan member row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate member rows: %w", err)
	}
	return ids, nil
}
