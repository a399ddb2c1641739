package repository

import (
	"context"

	"github.com/ecemk/konvo/models"
)

// CallRepository, arama session'larının veritabanı işlemleri için interface.
// Interface sayesinde service katmanı concrete implementasyona bağımlı olmaz,
// testlerde fake implementasyon kullanılabilir.
type CallRepository interface {
	// Create, yeni bir arama session'ı kaydeder.
	Create(ctx context.Context, call *models.CallSession) error

	// GetByID, ID ile arama session'ını getirir.
	// Bulunamazsa pkg.ErrNotFound döner.
	GetByID(ctx context.Context, id string) (*models.CallSession, error)

	// Save, session'ın güncel halini bütün olarak yazar
	// (participants, rejected_by, peer_links, status, ended_at).
	Save(ctx context.Context, call *models.CallSession) error

	// ListForUser, kullanıcının katıldığı aramaları yeniden eskiye sıralı döner.
	ListForUser(ctx context.Context, userID string, limit int) ([]*models.CallSession, error)

	// ListForChat, sohbetteki aramaları yeniden eskiye sıralı döner.
	ListForChat(ctx context.Context, chatID string, limit int) ([]*models.CallSession, error)

	// ListOngoingByParticipant, kullanıcının halen içinde olduğu
	// "ongoing" aramaları döner (disconnect temizliği için).
	ListOngoingByParticipant(ctx context.Context, userID string) ([]*models.CallSession, error)
}
