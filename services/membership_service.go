// cachedMembership — ChatMembership decorator'ı, chat üyelik sorgularını
// TTL cache ile sarar.
//
// Neden gerekli?
// Her signaling event'i (özellikle ICE candidate'lar) üyelik kontrolünden
// geçer. Bir arama boyunca aynı chat için aynı sorgular yüzlerce kez
// tekrarlanır — chat üyeliği ise saniyeler mertebesinde değişmez.
// Kısa bir TTL (30sn) database yükünü ciddi azaltır; stale pencere kabul
// edilebilir çünkü üyelikten çıkarılan kullanıcının mevcut araması zaten
// call:end / disconnect akışıyla sonlanır.
//
// Dikkat: Sadece başarılı sonuçlar cache'lenir — hata cache'lemek geçici
// bir DB hatasını TTL boyunca kalıcılaştırırdı.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/ecemk/konvo/pkg/cache"
)

type cachedMembership struct {
	inner   ChatMembership
	members *cache.TTLCache[string, bool]
	counts  *cache.TTLCache[string, int]
	ids     *cache.TTLCache[string, []string]
}

// NewCachedMembership, inner membership kaynağını TTL cache ile sarar.
// cleanupInterval TTL'e eşit seçilir — expired entry'ler en geç bir TTL
// sonra toplanır.
func NewCachedMembership(inner ChatMembership, ttl time.Duration) ChatMembership {
	return &cachedMembership{
		inner:   inner,
		members: cache.New[string, bool](ttl, ttl),
		counts:  cache.New[string, int](ttl, ttl),
		ids:     cache.New[string, []string](ttl, ttl),
	}
}

func (m *cachedMembership) IsParticipant(ctx context.Context, chatID, userID string) (bool, error) {
	key := fmt.Sprintf("%s|%s", chatID, userID)
	if ok, hit := m.members.Get(key); hit {
		return ok, nil
	}

	ok, err := m.inner.IsParticipant(ctx, chatID, userID)
	if err != nil {
		return false, err
	}

	m.members.Set(key, ok)
	return ok, nil
}

func (m *cachedMembership) CountParticipants(ctx context.Context, chatID string) (int, error) {
	if count, hit := m.counts.Get(chatID); hit {
		return count, nil
	}

	count, err := m.inner.CountParticipants(ctx, chatID)
	if err != nil {
		return 0, err
	}

	m.counts.Set(chatID, count)
	return count, nil
}

func (m *cachedMembership) ListParticipantIDs(ctx context.Context, chatID string) ([]string, error) {
	if list, hit := m.ids.Get(chatID); hit {
		return list, nil
	}

	list, err := m.inner.ListParticipantIDs(ctx, chatID)
	if err != nil {
		return nil, err
	}

	m.ids.Set(chatID, list)
	return list, nil
}
