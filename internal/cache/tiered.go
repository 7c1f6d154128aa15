package cache

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Tiered checks memory first and disk second, promoting disk hits into
// memory. Either tier may be absent.
type Tiered struct {
	memory *MemoryCache
	disk   *DiskCache

	mu         sync.Mutex
	promotions int64
}

// Open builds the tiers described by cfg.
func Open(cfg Config) (*Tiered, error) {
	t := &Tiered{}
	if cfg.MemoryCapacity > 0 {
		t.memory = NewMemoryCache(cfg.MemoryCapacity)
	}
	if cfg.DiskCapacity > 0 && cfg.Dir != "" {
		dc, err := NewDiskCache(cfg.Dir, cfg.DiskCapacity, cfg.CompressionLevel)
		if err != nil {
			return nil, err
		}
		if cfg.TTL > 0 {
			if n := dc.RemoveOlderThan(time.Now().Add(-cfg.TTL)); n > 0 {
				log.Debug("Pruned expired cache entries", "count", n)
			}
		}
		t.disk = dc
	}
	return t, nil
}

// Get looks key up in memory, then on disk.
func (t *Tiered) Get(key string) ([]byte, bool) {
	if t.memory != nil {
		if v, ok := t.memory.Get(key); ok {
			return v, true
		}
	}
	if t.disk != nil {
		if v, ok := t.disk.Get(key); ok {
			if t.memory != nil && t.memory.Put(key, v) == nil {
				t.mu.Lock()
				t.promotions++
				t.mu.Unlock()
			}
			return v, true
		}
	}
	return nil, false
}

// Put writes value to every tier it fits in.
func (t *Tiered) Put(key string, value []byte) error {
	var errs []error
	if t.memory != nil {
		if err := t.memory.Put(key, value); err != nil && !errors.Is(err, ErrItemTooLarge) {
			errs = append(errs, fmt.Errorf("L1: %w", err))
		}
	}
	if t.disk != nil {
		if err := t.disk.Put(key, value); err != nil && !errors.Is(err, ErrItemTooLarge) {
			errs = append(errs, fmt.Errorf("L2: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Delete removes key from every tier.
func (t *Tiered) Delete(key string) error {
	var errs []error
	if t.memory != nil {
		errs = append(errs, t.memory.Delete(key))
	}
	if t.disk != nil {
		errs = append(errs, t.disk.Delete(key))
	}
	return errors.Join(errs...)
}

// Clear empties every tier.
func (t *Tiered) Clear() error {
	var errs []error
	if t.memory != nil {
		errs = append(errs, t.memory.Clear())
	}
	if t.disk != nil {
		errs = append(errs, t.disk.Clear())
	}
	return errors.Join(errs...)
}

// Contains reports whether any tier holds key.
func (t *Tiered) Contains(key string) bool {
	return (t.memory != nil && t.memory.Contains(key)) || (t.disk != nil && t.disk.Contains(key))
}

// Stats sums the counters of both tiers. A disk hit that follows a memory
// miss counts once as a hit.
func (t *Tiered) Stats() Stats {
	var st Stats
	var mem Stats
	if t.memory != nil {
		mem = t.memory.Stats()
		st = mem
	}
	if t.disk != nil {
		d := t.disk.Stats()
		st.Capacity += d.Capacity
		st.Size += d.Size
		st.Items += d.Items
		st.Evictions += d.Evictions
		st.Hits += d.Hits
		if t.memory != nil {
			st.Misses = d.Misses
		} else {
			st.Misses += d.Misses
		}
	}
	return st
}

// Level returns the stats of one tier.
func (t *Tiered) Level(l Level) (Stats, bool) {
	switch {
	case l == LevelMemory && t.memory != nil:
		return t.memory.Stats(), true
	case l == LevelDisk && t.disk != nil:
		return t.disk.Stats(), true
	}
	return Stats{}, false
}

// Promotions returns the number of disk hits copied into memory.
func (t *Tiered) Promotions() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.promotions
}

// Close flushes the disk index.
func (t *Tiered) Close() error {
	if t.disk != nil {
		return t.disk.Close()
	}
	return nil
}
