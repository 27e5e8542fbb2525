package cache

import (
	"testing"
	"time"
)

func TestLRUCache_GetSet(t *testing.T) {
	c := NewLRUCache[string](10, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss on empty cache")
	}

	c.Set("a", "alpha")
	got, ok := c.Get("a")
	if !ok || got != "alpha" {
		t.Errorf("Get(a) = %q, %v, want alpha, true", got, ok)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}
}

func TestLRUCache_Overwrite(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)

	c.Set("k", 1)
	c.Set("k", 2)
	if got, _ := c.Get("k"); got != 2 {
		t.Errorf("Get(k) = %d, want 2", got)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}
}

func TestLRUCache_Expiry(t *testing.T) {
	c := NewLRUCache[string](10, 10*time.Millisecond)

	c.Set("a", "alpha")
	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Error("expected expired entry to miss")
	}
}

func TestLRUCache_EvictsOldest(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	if _, ok := c.Get("a"); ok {
		t.Error("oldest entry should have been evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("entry b should survive")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("entry c should survive")
	}
}

func TestLRUCache_GetRefreshesRecency(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // a becomes most recently used
	c.Set("c", 3)

	if _, ok := c.Get("a"); !ok {
		t.Error("recently used entry should survive eviction")
	}
	if _, ok := c.Get("b"); ok {
		t.Error("least recently used entry should have been evicted")
	}
}

func TestLRUCache_Delete(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)

	c.Set("a", 1)
	c.Delete("a")
	c.Delete("a") // deleting twice is fine
	if _, ok := c.Get("a"); ok {
		t.Error("deleted entry should miss")
	}
}

func TestLRUCache_CleanExpired(t *testing.T) {
	c := NewLRUCache[int](10, 10*time.Millisecond)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)
	time.Sleep(30 * time.Millisecond)

	if removed := c.CleanExpired(); removed != 3 {
		t.Errorf("CleanExpired() = %d, want 3", removed)
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d, want 0", c.Size())
	}
}

func TestManager_StopWithoutStart(t *testing.T) {
	m := NewManager()
	m.Stop() // must not block
}

func TestManager_CleansRegisteredCaches(t *testing.T) {
	c := NewLRUCache[int](10, 10*time.Millisecond)
	c.Set("a", 1)

	m := NewManager()
	m.Register(c)
	m.StartCleanup(20 * time.Millisecond)
	defer m.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for c.Size() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if c.Size() != 0 {
		t.Errorf("expected cleanup to empty the cache, size = %d", c.Size())
	}
}
