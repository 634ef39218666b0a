package cache

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func TestLRUCacheExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
	var evicted []string
	c := NewLRUCache[int](10, time.Minute,
		WithClock[int](clock.now),
		WithEvictHook(func(key string, _ int) { evicted = append(evicted, key) }),
	)

	c.Set("a", 1)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected hit, got %v %v", v, ok)
	}

	clock.advance(2 * time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected expiry")
	}
	if len(evicted) != 1 || evicted[0] != "a" {
		t.Fatalf("expected evict hook for a, got %v", evicted)
	}
}

func TestLRUCacheSlidingExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](10, time.Minute, WithClock[string](clock.now), WithSlidingExpiry[string]())

	c.Set("s", "x")
	for i := 0; i < 5; i++ {
		clock.advance(45 * time.Second)
		if _, ok := c.Get("s"); !ok {
			t.Fatalf("sliding entry expired on step %d", i)
		}
	}
	clock.advance(61 * time.Second)
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("expected 1 cleaned, got %d", n)
	}
}

func TestLRUCacheCapacity(t *testing.T) {
	var evicted []string
	c := NewLRUCache[int](2, time.Hour, WithEvictHook(func(key string, _ int) { evicted = append(evicted, key) }))
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatalf("b should have been evicted as least recently used")
	}
	if c.Size() != 2 {
		t.Fatalf("expected size 2, got %d", c.Size())
	}
	if len(evicted) != 1 || evicted[0] != "b" {
		t.Fatalf("unexpected evictions %v", evicted)
	}
}

func TestLRUCacheRangeSkipsExpired(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int](10, time.Minute, WithClock[int](clock.now))
	c.Set("old", 1)
	clock.advance(2 * time.Minute)
	c.Set("new", 2)

	var keys []string
	c.Range(func(key string, _ int) { keys = append(keys, key) })
	if len(keys) != 1 || keys[0] != "new" {
		t.Fatalf("unexpected range keys %v", keys)
	}
}

func TestManagerSweepAndStop(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int](10, time.Minute, WithClock[int](clock.now))
	c.Set("a", 1)
	c.Set("b", 2)
	clock.advance(time.Hour)

	m := NewManager(nil)
	m.Register("test", c)
	if n := m.Sweep(); n != 2 {
		t.Fatalf("expected 2 swept, got %d", n)
	}

	m.StartCleanup(time.Millisecond)
	m.Stop()
	m.Stop()
}
