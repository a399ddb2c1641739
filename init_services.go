// Package main — Service katmanı başlatma.
//
// initServices, iş mantığı servislerini oluşturur. Servisler repository
// interface'lerine ve ws.EventPublisher'a bağımlıdır — concrete tiplere değil.
package main

import (
	"time"

	"github.com/ecemk/konvo/config"
	"github.com/ecemk/konvo/pkg/email"
	"github.com/ecemk/konvo/services"
	"github.com/ecemk/konvo/ws"
)

// Services, tüm service instance'larını tutan container struct.
type Services struct {
	Auth     services.AuthService
	Presence services.PresenceService
	Notifier services.CallNotifier
	Call     services.CallService
}

// initServices, repository'lerden ve hub'dan tüm servisleri oluşturur.
func initServices(cfg *config.Config, repos *Repositories, hub *ws.Hub) *Services {
	// Email gönderimi opsiyoneldir — API key yoksa notifier no-op çalışır.
	var sender email.EmailSender
	if cfg.Email.ResendAPIKey != "" && cfg.Email.FromEmail != "" {
		sender = email.NewResendSender(cfg.Email.ResendAPIKey, cfg.Email.FromEmail, cfg.Email.AppURL)
	}

	notifier := services.NewCallNotifier(repos.User, repos.Chat, hub, sender)

	// Üyelik sorguları cache'lenir — ICE event'leri aynı chat için
	// saniyede onlarca üyelik kontrolü tetikleyebilir.
	membership := services.NewCachedMembership(repos.Chat, 30*time.Second)

	return &Services{
		Auth:     services.NewAuthService(cfg.JWT.Secret),
		Presence: services.NewPresenceService(repos.User, hub),
		Notifier: notifier,
		Call:     services.NewCallService(repos.Call, membership, hub, notifier, cfg.Call.RingTimeout),
	}
}
