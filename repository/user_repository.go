package repository

import (
	"context"

	"github.com/ecemk/konvo/models"
)

// UserRepository, kullanıcı sorguları ve presence güncellemesi için interface.
type UserRepository interface {
	// GetByID, kullanıcıyı getirir. Bulunamazsa pkg.ErrNotFound döner.
	GetByID(ctx context.Context, id string) (*models.User, error)

	// ListByIDs, verilen ID'lere karşılık gelen kullanıcıları döner.
	// Bulunamayan ID'ler sessizce atlanır.
	ListByIDs(ctx context.Context, ids []string) ([]*models.User, error)

	// UpdateStatus, kullanıcının online/offline durumunu günceller.
	UpdateStatus(ctx context.Context, userID string, status models.UserStatus) error
}
