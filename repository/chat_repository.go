package repository

import (
	"context"

	"github.com/ecemk/konvo/models"
)

// ChatRepository, sohbet ve üyelik sorguları için interface.
// Bu servis sohbet verisinin sahibi değildir — sadece okur.
type ChatRepository interface {
	// GetByID, sohbeti getirir. Bulunamazsa pkg.ErrNotFound döner.
	GetByID(ctx context.Context, id string) (*models.Chat, error)

	// IsParticipant, kullanıcının sohbete üye olup olmadığını kontrol eder.
	IsParticipant(ctx context.Context, chatID, userID string) (bool, error)

	// CountParticipants, sohbetin üye sayısını döner
	// (reject eşiği hesabında kullanılır).
	CountParticipants(ctx context.Context, chatID string) (int, error)

	// ListParticipantIDs, sohbetin tüm üye ID'lerini döner
	// (arama davetinin fan-out'u için).
	ListParticipantIDs(ctx context.Context, chatID string) ([]string, error)
}
