package cache

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// TestMemoryCacheBasic tests put, get and delete.
func TestMemoryCacheBasic(t *testing.T) {
	c := NewMemoryCache(1024)

	if err := c.Put("k", []byte("value")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if v, ok := c.Get("k"); !ok || string(v) != "value" {
		t.Errorf("Get = %q, %v", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) hit")
	}

	if err := c.Put("k", []byte("longer value")); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	st := c.Stats()
	if st.Size != int64(len("longer value")) || st.Items != 1 || st.Hits != 1 || st.Misses != 1 {
		t.Errorf("stats = %+v", st)
	}

	_ = c.Delete("k")
	if c.Contains("k") || c.Stats().Size != 0 {
		t.Error("Delete left the entry behind")
	}
}

// TestMemoryCacheLRU tests eviction order.
func TestMemoryCacheLRU(t *testing.T) {
	c := NewMemoryCache(30)
	for i := 0; i < 3; i++ {
		_ = c.Put(fmt.Sprintf("k%d", i), make([]byte, 10))
	}
	c.Get("k0") // k1 is now least recently used

	_ = c.Put("k3", make([]byte, 10))
	if c.Contains("k1") {
		t.Error("k1 should have been evicted")
	}
	for _, k := range []string{"k0", "k2", "k3"} {
		if !c.Contains(k) {
			t.Errorf("%s evicted", k)
		}
	}
	if c.Stats().Evictions != 1 {
		t.Errorf("Evictions = %d", c.Stats().Evictions)
	}

	if err := c.Put("huge", make([]byte, 31)); !errors.Is(err, ErrItemTooLarge) {
		t.Errorf("Put(huge) = %v", err)
	}
}

// TestMemoryCachePrune tests age-based removal.
func TestMemoryCachePrune(t *testing.T) {
	c := NewMemoryCache(100)
	_ = c.Put("old", []byte("x"))
	time.Sleep(20 * time.Millisecond)
	_ = c.Put("new", []byte("y"))

	if n := c.Prune(10 * time.Millisecond); n != 1 {
		t.Errorf("Prune = %d", n)
	}
	if c.Contains("old") || !c.Contains("new") {
		t.Error("wrong entry pruned")
	}
	_ = c.Clear()
	if c.Stats().Items != 0 {
		t.Error("Clear left entries")
	}
}

// TestMemoryCacheConcurrent tests concurrent access.
func TestMemoryCacheConcurrent(t *testing.T) {
	c := NewMemoryCache(1 << 16)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				key := fmt.Sprintf("%d-%d", g, i%10)
				_ = c.Put(key, make([]byte, 16))
				c.Get(key)
			}
		}(g)
	}
	wg.Wait()
	if st := c.Stats(); st.Items != 80 || st.Size != 80*16 {
		t.Errorf("stats = %+v", st)
	}
}
