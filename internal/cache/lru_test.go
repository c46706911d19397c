package cache

import (
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestLRU[T any](t *testing.T, size int, ttl time.Duration) (*LRU[T], *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	c := NewLRU[T](size, ttl)
	c.now = clock.now
	return c, clock
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestLRU[string](t, 3, time.Hour)
	c.Set("key1", "value1")
	c.Set("key2", "value2")
	c.Set("key3", "value3")
	if _, ok := c.Get("key1"); !ok {
		t.Fatal("key1 should be cached")
	}
	c.Set("key4", "value4")

	if _, ok := c.Get("key2"); ok {
		t.Fatal("key2 was least recently used and should be evicted")
	}
	for _, k := range []string{"key1", "key3", "key4"} {
		if _, ok := c.Get(k); !ok {
			t.Fatalf("%s should still be cached", k)
		}
	}
	if c.Len() != 3 {
		t.Fatalf("len = %d", c.Len())
	}
}

func TestLRUExpiry(t *testing.T) {
	c, clock := newTestLRU[int](t, 10, time.Second)
	c.Set("a", 1)
	c.Set("b", 2)

	clock.advance(500 * time.Millisecond)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("a = %v, %v", v, ok)
	}
	clock.advance(time.Second)
	if _, ok := c.Get("a"); ok {
		t.Fatal("a should have expired")
	}
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("CleanExpired removed %d, want 1", n)
	}
	if c.Len() != 0 {
		t.Fatalf("len = %d", c.Len())
	}
}

func TestRememberCachesFailures(t *testing.T) {
	c, clock := newTestLRU[error](t, 4, 5*time.Second)
	calls := 0
	load := func() error {
		calls++
		return errors.New("sheet unreachable")
	}

	for i := 0; i < 3; i++ {
		if err := c.Remember("sheets", load); err == nil {
			t.Fatal("expected the cached failure")
		}
	}
	if calls != 1 {
		t.Fatalf("load called %d times", calls)
	}

	clock.advance(6 * time.Second)
	c.Remember("sheets", load)
	if calls != 2 {
		t.Fatal("expired entry should reload")
	}

	c.Delete("sheets")
	c.Remember("sheets", load)
	if calls != 3 {
		t.Fatal("deleted entry should reload")
	}
}
