// Package ratelimit, signaling event'leri için kullanıcı bazlı rate limiting sağlar.
//
// WebRTC ICE gathering sırasında client saniyede onlarca candidate üretebilir —
// bu normaldir ve limite takılmamalıdır. Koruma hedefi, bozuk veya kötü niyetli
// bir client'ın event flood'u ile hub'ı ve database'i boğmasını engellemektir.
//
// Tasarım:
// - Key: userID (IP değil) — WS bağlantısı zaten authenticated.
// - Window içinde maxEvents event'e izin verilir; aşımda cooldown başlar.
// - Cooldown süresince tüm event'ler reddedilir; cooldown bitince sayaç sıfırlanır.
// - Window kısa (saniyeler), cooldown daha uzun — kısa patlamalara tolerans,
//   sürekli flood'a ceza.
package ratelimit

import (
	"sync"
	"time"
)

// bucket, bir kullanıcının event sayacını ve cooldown durumunu tutar.
type bucket struct {
	count         int
	windowStart   time.Time
	cooldownUntil time.Time // zero value = cooldown yok
}

// SignalRateLimiter, kullanıcı bazlı signaling event rate limiter'ı.
//
// Kullanım:
//
//	limiter := NewSignalRateLimiter(30, 5*time.Second, 10*time.Second)
//	if !limiter.Allow(userID) {
//	    // event reddedilir, client'a rate_limited ack'i döner
//	}
type SignalRateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	maxEvents int
	window    time.Duration
	cooldown  time.Duration
	stop      chan struct{}
}

// NewSignalRateLimiter, limiter'ı oluşturur ve arka plan temizleme
// goroutine'ini başlatır.
//
// maxEvents: Window başına izin verilen event sayısı.
// window: Sayaç pencere süresi.
// cooldown: Limit aşıldığında uygulanan bekleme süresi.
func NewSignalRateLimiter(maxEvents int, window, cooldown time.Duration) *SignalRateLimiter {
	l := &SignalRateLimiter{
		buckets:   make(map[string]*bucket),
		maxEvents: maxEvents,
		window:    window,
		cooldown:  cooldown,
		stop:      make(chan struct{}),
	}

	go l.cleanupLoop()
	return l
}

// Allow, kullanıcının bir event daha göndermesine izin verilip
// verilmediğini döner. İzin veriliyorsa sayaç artırılır.
func (l *SignalRateLimiter) Allow(userID string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[userID]
	if !ok {
		l.buckets[userID] = &bucket{count: 1, windowStart: now}
		return true
	}

	// Cooldown aktifse her şey reddedilir.
	if now.Before(b.cooldownUntil) {
		return false
	}

	// Cooldown bitti veya window doldu — sayaç sıfırlanır.
	if !b.cooldownUntil.IsZero() || now.Sub(b.windowStart) >= l.window {
		b.count = 1
		b.windowStart = now
		b.cooldownUntil = time.Time{}
		return true
	}

	if b.count >= l.maxEvents {
		b.cooldownUntil = now.Add(l.cooldown)
		return false
	}

	b.count++
	return true
}

// Reset, kullanıcının sayacını ve cooldown'unu temizler
// (örn: bağlantı koptuğunda).
func (l *SignalRateLimiter) Reset(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, userID)
}

// Close, temizleme goroutine'ini durdurur.
func (l *SignalRateLimiter) Close() {
	close(l.stop)
}

// cleanupLoop, uzun süredir event göndermeyen kullanıcıların bucket'larını
// periyodik olarak siler — aksi halde map sınırsız büyür.
func (l *SignalRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.evictStale()
		case <-l.stop:
			return
		}
	}
}

func (l *SignalRateLimiter) evictStale() {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for userID, b := range l.buckets {
		idle := now.Sub(b.windowStart) > 2*l.window
		cooled := b.cooldownUntil.IsZero() || now.After(b.cooldownUntil)
		if idle && cooled {
			delete(l.buckets, userID)
		}
	}
}
