package ratelimit

import (
	"testing"
	"time"
)

func TestAllowWithinLimit(t *testing.T) {
	l := NewSignalRateLimiter(3, time.Minute, time.Minute)
	defer l.Close()

	for i := 0; i < 3; i++ {
		if !l.Allow("user-1") {
			t.Fatalf("event %d should be allowed within the limit", i+1)
		}
	}
	if l.Allow("user-1") {
		t.Error("event over the limit must be rejected")
	}
}

func TestUsersAreIndependent(t *testing.T) {
	l := NewSignalRateLimiter(1, time.Minute, time.Minute)
	defer l.Close()

	if !l.Allow("user-1") {
		t.Fatal("first event for user-1 should be allowed")
	}
	if l.Allow("user-1") {
		t.Error("user-1 is over the limit")
	}
	if !l.Allow("user-2") {
		t.Error("user-2 must not be affected by user-1's limit")
	}
}

func TestCooldownBlocksThenResets(t *testing.T) {
	l := NewSignalRateLimiter(1, 10*time.Millisecond, 30*time.Millisecond)
	defer l.Close()

	if !l.Allow("user-1") {
		t.Fatal("first event should be allowed")
	}
	// Limit aşıldı → cooldown başlar.
	if l.Allow("user-1") {
		t.Fatal("second event must trigger cooldown")
	}
	// Cooldown süresince her şey reddedilir — window dolmuş olsa bile.
	time.Sleep(15 * time.Millisecond)
	if l.Allow("user-1") {
		t.Error("events during cooldown must be rejected")
	}

	// Cooldown bitti → sayaç sıfırlanır.
	time.Sleep(30 * time.Millisecond)
	if !l.Allow("user-1") {
		t.Error("events after cooldown must be allowed again")
	}
}

func TestWindowResetsCounter(t *testing.T) {
	l := NewSignalRateLimiter(2, 20*time.Millisecond, time.Minute)
	defer l.Close()

	l.Allow("user-1")
	l.Allow("user-1")

	// Window doldu, limit aşılmadı — yeni window'da sayaç sıfırdan başlar.
	time.Sleep(30 * time.Millisecond)
	if !l.Allow("user-1") {
		t.Error("new window must reset the counter")
	}
}

func TestReset(t *testing.T) {
	l := NewSignalRateLimiter(1, time.Minute, time.Minute)
	defer l.Close()

	l.Allow("user-1")
	if l.Allow("user-1") {
		t.Fatal("user-1 should be over the limit")
	}

	l.Reset("user-1")
	if !l.Allow("user-1") {
		t.Error("Reset must clear the user's bucket")
	}
}
