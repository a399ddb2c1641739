package cache

import (
	"testing"
	"time"
)

func TestSetAndGet(t *testing.T) {
	c := New[string, int](time.Minute, time.Minute)
	defer c.Close()

	c.Set("a", 1)

	got, ok := c.Get("a")
	if !ok || got != 1 {
		t.Fatalf("Get(a) = %d, %t; want 1, true", got, ok)
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("missing key must return false")
	}
}

func TestExpiry(t *testing.T) {
	c := New[string, string](20*time.Millisecond, time.Minute)
	defer c.Close()

	c.Set("k", "v")
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry must be present before TTL")
	}

	time.Sleep(40 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Error("entry must expire after TTL")
	}
	// Expired entry lazy silinir.
	if c.Len() != 0 {
		t.Errorf("expired entry must be deleted on Get, len = %d", c.Len())
	}
}

func TestDelete(t *testing.T) {
	c := New[string, int](time.Minute, time.Minute)
	defer c.Close()

	c.Set("a", 1)
	c.Delete("a")

	if _, ok := c.Get("a"); ok {
		t.Error("deleted key must not be returned")
	}
	// Olmayan key'i silmek panic'lememeli.
	c.Delete("missing")
}

func TestBackgroundCleanup(t *testing.T) {
	c := New[string, int](10*time.Millisecond, 20*time.Millisecond)
	defer c.Close()

	c.Set("a", 1)
	c.Set("b", 2)

	// Cleanup goroutine'i expired entry'leri Get olmadan toplamalı.
	deadline := time.Now().Add(time.Second)
	for c.Len() > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("cleanup never ran, len = %d", c.Len())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	c := New[string, int](time.Minute, time.Minute)
	c.Close()
	c.Close() // İkinci çağrı panic'lememeli.
}
