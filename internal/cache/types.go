package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

var (
	// ErrItemTooLarge is returned when a value exceeds the cache capacity.
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrCorrupted is returned when a stored value cannot be decoded.
	ErrCorrupted = errors.New("cache data corrupted")
)

// Level identifies a cache tier.
type Level int

const (
	LevelMemory Level = iota
	LevelDisk
)

func (l Level) String() string {
	switch l {
	case LevelMemory:
		return "L1-Memory"
	case LevelDisk:
		return "L2-Disk"
	default:
		return "Unknown"
	}
}

// Stats holds cache counters.
type Stats struct {
	Capacity  int64
	Size      int64
	Items     int64
	Hits      int64
	Misses    int64
	Evictions int64
}

// HitRate returns hits over lookups.
func (s Stats) HitRate() float64 {
	if s.Hits+s.Misses == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Hits+s.Misses)
}

func (s Stats) String() string {
	return fmt.Sprintf("%d items, %s of %s, %.0f%% hits, %d evictions",
		s.Items, humanize.IBytes(uint64(s.Size)), humanize.IBytes(uint64(s.Capacity)),
		100*s.HitRate(), s.Evictions)
}

// Config sizes the cache tiers.
type Config struct {
	MemoryCapacity   int64         // L1 bytes, 0 disables L1
	DiskCapacity     int64         // L2 bytes, 0 disables L2
	Dir              string        // L2 directory
	CompressionLevel int           // zstd level, 0 stores values raw
	TTL              time.Duration // Entries older than this are pruned on open, 0 keeps all
}

// Store is a byte-oriented key/value cache.
type Store interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
	Delete(key string) error
	Clear() error
	Contains(key string) bool
	Stats() Stats
}
