// Package services — PresenceService: online/offline durum yönetimi.
//
// Hub, kullanıcının ilk bağlantısında ve son bağlantısı koptuğunda
// callback tetikler (init_callbacks.go); bu servis DB'deki status alanını
// günceller ve değişikliği tüm bağlı kullanıcılara broadcast eder.
package services

import (
	"context"
	"log"

	"github.com/ecemk/konvo/models"
	"github.com/ecemk/konvo/ws"
)

// UserStatusUpdater, presence güncellemesi için minimal interface.
// repository.UserRepository duck typing ile karşılar.
type UserStatusUpdater interface {
	UpdateStatus(ctx context.Context, userID string, status models.UserStatus) error
}

// PresenceService, presence geçişlerini işleyen interface.
type PresenceService interface {
	// HandleConnect, kullanıcının ilk WS bağlantısında çağrılır.
	HandleConnect(userID string)

	// HandleDisconnect, kullanıcının son WS bağlantısı koptuğunda çağrılır.
	HandleDisconnect(userID string)
}

// presenceService, PresenceService'in implementasyonu.
type presenceService struct {
	users UserStatusUpdater
	hub   ws.EventPublisher
}

// NewPresenceService, constructor.
func NewPresenceService(users UserStatusUpdater, hub ws.EventPublisher) PresenceService {
	return &presenceService{users: users, hub: hub}
}

func (s *presenceService) HandleConnect(userID string) {
	s.update(userID, models.UserStatusOnline)
}

func (s *presenceService) HandleDisconnect(userID string) {
	s.update(userID, models.UserStatusOffline)
}

// update, status'ü persist eder ve broadcast eder. DB hatası broadcast'i
// engellemez — presence bilgisi ephemeral, bağlı client'lar yine haber alır.
func (s *presenceService) update(userID string, status models.UserStatus) {
	if err := s.users.UpdateStatus(context.Background(), userID, status); err != nil {
		log.Printf("[presence] failed to persist status for user %s: %v", userID, err)
	}

	s.hub.BroadcastToAll(ws.Event{
		Op:   ws.OpPresence,
		Data: ws.PresenceData{UserID: userID, Status: string(status)},
	})

	log.Printf("[presence] user %s is now %s", userID, status)
}
