// Package cache, TTL (time-to-live) tabanlı generic bir in-memory cache sağlar.
//
// Signaling tarafında her offer/answer/ICE event'i chat üyelik kontrolü
// gerektirir — ICE candidate'lar saniyede onlarca kez gelebilir. Her event'te
// database'e gitmek yerine üyelik sonuçları kısa süreliğine burada tutulur.
//
// Tasarım:
// - Generic (Go 1.18+): TTLCache[K comparable, V any] — her değer tipi için
//   ayrı struct yazmaya gerek yok.
// - Her entry kendi expiry zamanını taşır; Get expired entry'yi lazy siler.
// - Arka planda periyodik temizleme goroutine'i expired entry'leri toplar,
//   yoksa hiç Get edilmeyen entry'ler sonsuza kadar memory'de kalırdı.
package cache

import (
	"sync"
	"time"
)

// entry, cache'teki tek bir değeri expiry zamanıyla birlikte tutar.
type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache, süre sonu destekli thread-safe in-memory cache.
type TTLCache[K comparable, V any] struct {
	mu      sync.RWMutex
	items   map[K]entry[V]
	ttl     time.Duration
	stop    chan struct{}
	stopped bool
}

// New, verilen TTL ile yeni bir cache oluşturur ve temizleme
// goroutine'ini başlatır. cleanupInterval, expired entry taramasının
// sıklığıdır — TTL'den büyük seçmek memory'de ölü entry biriktirir.
func New[K comparable, V any](ttl, cleanupInterval time.Duration) *TTLCache[K, V] {
	c := &TTLCache[K, V]{
		items: make(map[K]entry[V]),
		ttl:   ttl,
		stop:  make(chan struct{}),
	}

	go c.cleanupLoop(cleanupInterval)
	return c
}

// Get, key'e ait değeri döner. Entry yoksa veya süresi dolmuşsa
// zero value ve false döner; expired entry bu sırada silinir.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		var zero V
		return zero, false
	}

	if time.Now().After(e.expiresAt) {
		c.mu.Lock()
		// RLock bırakıldıktan sonra entry değişmiş olabilir — tekrar kontrol.
		if cur, still := c.items[key]; still && time.Now().After(cur.expiresAt) {
			delete(c.items, key)
		}
		c.mu.Unlock()

		var zero V
		return zero, false
	}

	return e.value, true
}

// Set, değeri cache'in TTL'i ile yazar. Var olan entry üzerine yazılır.
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = entry[V]{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Delete, key'i cache'ten siler. Key yoksa no-op.
func (c *TTLCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Len, expired olanlar dahil mevcut entry sayısını döner (test amaçlı).
func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close, temizleme goroutine'ini durdurur. İkinci çağrı no-op.
func (c *TTLCache[K, V]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}
	c.stopped = true
	close(c.stop)
}

// cleanupLoop, cleanupInterval aralıklarla expired entry'leri siler.
func (c *TTLCache[K, V]) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.evictExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *TTLCache[K, V]) evictExpired() {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.items {
		if now.After(e.expiresAt) {
			delete(c.items, key)
		}
	}
}
