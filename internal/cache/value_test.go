package cache

import (
	"sync"
	"testing"
	"time"
)

// TestEmptyMisses verifies a fresh cache serves no hits.
func TestEmptyMisses(t *testing.T) {
	c := New[int](time.Minute)
	if v, ok := c.Get(); ok {
		t.Errorf("empty cache returned %d, want miss", v)
	}
}

// TestSetGet verifies a stored value is served back while fresh.
func TestSetGet(t *testing.T) {
	c := New[string](time.Minute)
	c.Set("catalog stats")

	v, ok := c.Get()
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if v != "catalog stats" {
		t.Errorf("Get() = %q, want %q", v, "catalog stats")
	}

	c.Set("fresher stats")
	if v, _ := c.Get(); v != "fresher stats" {
		t.Errorf("Get() after second Set = %q, want %q", v, "fresher stats")
	}
}

// TestExpiry verifies the value stops being served once the TTL passes.
func TestExpiry(t *testing.T) {
	c := New[int](20 * time.Millisecond)
	c.Set(42)

	if _, ok := c.Get(); !ok {
		t.Fatal("expected hit before expiry")
	}

	time.Sleep(30 * time.Millisecond)

	if v, ok := c.Get(); ok {
		t.Errorf("expired cache returned %d, want miss", v)
	}
}

// TestInvalidate verifies Invalidate forces the next Get to miss and
// that a later Set revives the cache.
func TestInvalidate(t *testing.T) {
	c := New[int](time.Minute)
	c.Set(7)
	c.Invalidate()

	if v, ok := c.Get(); ok {
		t.Errorf("invalidated cache returned %d, want miss", v)
	}

	c.Set(8)
	if v, ok := c.Get(); !ok || v != 8 {
		t.Errorf("Get() after revive = (%d, %v), want (8, true)", v, ok)
	}
}

// TestZeroTTLDisables verifies a non-positive TTL never serves hits.
func TestZeroTTLDisables(t *testing.T) {
	for _, ttl := range []time.Duration{0, -time.Second} {
		c := New[int](ttl)
		c.Set(1)
		if _, ok := c.Get(); ok {
			t.Errorf("ttl %v: expected miss, got hit", ttl)
		}
	}
}

// TestPointerValue verifies the cache round-trips pointer types, the
// shape the stats cache stores.
func TestPointerValue(t *testing.T) {
	type stats struct{ Videos int }

	c := New[*stats](time.Minute)
	if v, ok := c.Get(); ok {
		t.Errorf("empty cache returned %v, want miss", v)
	}

	c.Set(&stats{Videos: 12})
	v, ok := c.Get()
	if !ok || v == nil || v.Videos != 12 {
		t.Errorf("Get() = (%+v, %v), want Videos 12", v, ok)
	}

	c.Invalidate()
	if v, ok := c.Get(); ok {
		t.Errorf("invalidated cache returned %v, want miss", v)
	}
}

// TestConcurrentAccess hammers the cache from readers and writers to
// surface races under the race detector.
func TestConcurrentAccess(t *testing.T) {
	c := New[int](time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Set(n)
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Get()
				if j%25 == 0 {
					c.Invalidate()
				}
			}
		}()
	}
	wg.Wait()
}
