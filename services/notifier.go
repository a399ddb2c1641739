// Package services — CallNotifier: arama bildirim köprüsü.
//
// Aramaya WS üzerinden anlık haber verilemeyen (offline) sohbet üyelerine
// email bildirimi gönderir. Signaling çekirdeği bu interface'i çağırır,
// teslimat detayını bilmez.
package services

import (
	"context"
	"log"

	"github.com/ecemk/konvo/models"
	"github.com/ecemk/konvo/pkg/email"
	"github.com/ecemk/konvo/ws"
)

// ─── ISP Interface'leri ───
//
// Interface Segregation: notifier sadece ihtiyacı olan metotlara bağımlıdır.
// repository.UserRepository ve repository.ChatRepository bu interface'leri
// duck typing ile otomatik karşılar.

// UserInfoGetter, kullanıcı bilgisi almak için minimal interface.
type UserInfoGetter interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	ListByIDs(ctx context.Context, ids []string) ([]*models.User, error)
}

// ChatInfoGetter, sohbet bilgisi almak için minimal interface.
type ChatInfoGetter interface {
	GetByID(ctx context.Context, id string) (*models.Chat, error)
}

// ─── CallNotifier Interface ───

// CallNotifier, arama yaşam döngüsü bildirimleri için interface.
// Metotlar best-effort çalışır — bildirim hatası signaling akışını bozmaz,
// bu yüzden error dönmezler, sadece loglarlar.
type CallNotifier interface {
	// NotifyIncomingCall, arama başladığında offline davetlilere haber verir.
	NotifyIncomingCall(ctx context.Context, chatID, callID, callerID string, inviteeIDs []string)

	// NotifyMissedCall, ring timeout sonrası davetlilere cevapsız arama
	// bildirimi gönderir.
	NotifyMissedCall(ctx context.Context, chatID, callID, callerID string, inviteeIDs []string)
}

// callNotifier, CallNotifier'ın email tabanlı implementasyonu.
// Sadece o an offline olan davetlilere gönderir — online kullanıcılar
// call:incoming event'ini zaten WS üzerinden alır.
type callNotifier struct {
	users  UserInfoGetter
	chats  ChatInfoGetter
	hub    ws.EventPublisher
	sender email.EmailSender
}

// NewCallNotifier, constructor. sender nil olabilir (email devre dışı) —
// bu durumda notifier sessiz bir no-op'a düşer.
func NewCallNotifier(
	users UserInfoGetter,
	chats ChatInfoGetter,
	hub ws.EventPublisher,
	sender email.EmailSender,
) CallNotifier {
	return &callNotifier{
		users:  users,
		chats:  chats,
		hub:    hub,
		sender: sender,
	}
}

func (n *callNotifier) NotifyIncomingCall(ctx context.Context, chatID, callID, callerID string, inviteeIDs []string) {
	n.notify(ctx, chatID, callID, callerID, inviteeIDs, false)
}

func (n *callNotifier) NotifyMissedCall(ctx context.Context, chatID, callID, callerID string, inviteeIDs []string) {
	n.notify(ctx, chatID, callID, callerID, inviteeIDs, true)
}

// notify, ortak bildirim akışı: offline davetlileri bul, email adreslerini
// çek, tek tek gönder.
func (n *callNotifier) notify(ctx context.Context, chatID, callID, callerID string, inviteeIDs []string, missed bool) {
	if n.sender == nil {
		return
	}

	offline := make([]string, 0, len(inviteeIDs))
	for _, id := range inviteeIDs {
		if id == callerID {
			continue
		}
		if !n.hub.IsUserOnline(id) {
			offline = append(offline, id)
		}
	}
	if len(offline) == 0 {
		return
	}

	caller, err := n.users.GetByID(ctx, callerID)
	if err != nil {
		log.Printf("[notify] failed to load caller %s for call %s: %v", callerID, callID, err)
		return
	}
	callerName := caller.Username
	if caller.DisplayName != nil && *caller.DisplayName != "" {
		callerName = *caller.DisplayName
	}

	chat, err := n.chats.GetByID(ctx, chatID)
	if err != nil {
		log.Printf("[notify] failed to load chat %s for call %s: %v", chatID, callID, err)
		return
	}
	chatName := chat.Name
	if chatName == "" {
		chatName = "a chat"
	}

	recipients, err := n.users.ListByIDs(ctx, offline)
	if err != nil {
		log.Printf("[notify] failed to load recipients for call %s: %v", callID, err)
		return
	}

	for _, user := range recipients {
		if user.Email == "" {
			continue
		}

		var sendErr error
		if missed {
			sendErr = n.sender.SendMissedCall(ctx, user.Email, callerName, chatName)
		} else {
			sendErr = n.sender.SendIncomingCall(ctx, user.Email, callerName, chatName)
		}
		if sendErr != nil {
			log.Printf("[notify] failed to email user %s for call %s: %v", user.ID, callID, sendErr)
		}
	}

	log.Printf("[notify] call %s: emailed %d offline invitee(s) (missed=%t)", callID, len(recipients), missed)
}
