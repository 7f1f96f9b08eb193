package cache

import (
	"testing"
	"time"
)

func TestGetSetDelete(t *testing.T) {
	c := NewTTLCache[string](time.Minute)

	if _, ok := c.Get("k"); ok {
		t.Fatal("empty cache must miss")
	}

	c.Set("k", "v")
	got, ok := c.Get("k")
	if !ok || got != "v" {
		t.Fatalf("expected hit with %q, got %q (hit=%v)", "v", got, ok)
	}

	c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Fatal("deleted key must miss")
	}
}

func TestExpiry(t *testing.T) {
	c := NewTTLCache[int](10 * time.Millisecond)
	c.Set("k", 1)

	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expired entry must miss")
	}
	if c.Size() != 0 {
		t.Fatalf("expired entry should be dropped on read, size=%d", c.Size())
	}
}

func TestPurge(t *testing.T) {
	c := NewTTLCache[int](time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	c.Purge()
	if c.Size() != 0 {
		t.Fatalf("purge must drop everything, size=%d", c.Size())
	}
}

func TestCleanExpired(t *testing.T) {
	c := NewTTLCache[int](15 * time.Millisecond)
	c.Set("old", 1)
	time.Sleep(25 * time.Millisecond)
	c.Set("fresh", 2)

	removed := c.CleanExpired()
	if removed != 1 {
		t.Fatalf("expected one expired entry removed, got %d", removed)
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Fatal("fresh entry must survive cleanup")
	}
}

func TestSetRefreshesTTL(t *testing.T) {
	c := NewTTLCache[int](30 * time.Millisecond)
	c.Set("k", 1)
	time.Sleep(20 * time.Millisecond)
	c.Set("k", 2)
	time.Sleep(20 * time.Millisecond)

	got, ok := c.Get("k")
	if !ok || got != 2 {
		t.Fatalf("re-set entry must carry a fresh TTL, got %d (hit=%v)", got, ok)
	}
}
