package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	indexFile = "index.msgpack"

	// Values smaller than this are stored raw.
	compressThreshold = 1024
)

// DiskCache stores values as files under a directory, compressed with
// zstd, and keeps an index of them across runs.
type DiskCache struct {
	mu       sync.Mutex
	dir      string
	capacity int64
	size     int64
	index    map[string]*diskEntry
	stats    Stats

	enc *zstd.Encoder
	dec *zstd.Decoder
}

type diskEntry struct {
	Key        string    `msgpack:"key"`
	File       string    `msgpack:"file"`
	Size       int64     `msgpack:"size"` // bytes on disk
	Raw        int64     `msgpack:"raw"`  // bytes before compression
	Compressed bool      `msgpack:"z"`
	Stored     time.Time `msgpack:"stored"`
	Accessed   time.Time `msgpack:"accessed"`
}

// NewDiskCache opens or creates a disk cache in dir. level 0 disables
// compression.
func NewDiskCache(dir string, capacity int64, level int) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dc := &DiskCache{
		dir:      dir,
		capacity: capacity,
		index:    make(map[string]*diskEntry),
	}

	if level > 0 {
		var err error
		dc.enc, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
	}
	// Entries written at a non-zero level stay readable after the level
	// is changed to 0.
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	dc.dec = dec

	if err := dc.loadIndex(); err != nil {
		log.Warn("Discarding unreadable cache index", "dir", dir, "error", err)
		dc.index = make(map[string]*diskEntry)
	}
	for _, e := range dc.index {
		dc.size += e.Size
	}
	return dc, nil
}

// Get returns the value for key. Missing or unreadable files count as a
// miss and are dropped from the index.
func (dc *DiskCache) Get(key string) ([]byte, bool) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	e, ok := dc.index[key]
	if !ok {
		dc.stats.Misses++
		return nil, false
	}

	data, err := os.ReadFile(filepath.Join(dc.dir, e.File))
	if err == nil && e.Compressed {
		data, err = dc.dec.DecodeAll(data, nil)
	}
	if err != nil {
		log.Debug("Dropping unreadable cache entry", "key", key, "error", err)
		dc.drop(key)
		dc.stats.Misses++
		return nil, false
	}

	e.Accessed = time.Now()
	dc.stats.Hits++
	return data, true
}

// Put writes value under key, evicting least recently accessed entries to
// make room.
func (dc *DiskCache) Put(key string, value []byte) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	data := value
	compressed := false
	if dc.enc != nil && len(value) > compressThreshold {
		if z := dc.enc.EncodeAll(value, nil); len(z) < len(value) {
			data, compressed = z, true
		}
	}

	n := int64(len(data))
	if n > dc.capacity {
		return ErrItemTooLarge
	}
	if _, ok := dc.index[key]; ok {
		dc.drop(key)
	}
	dc.evict(dc.capacity - n)

	name := fileName(key)
	if err := writeAtomic(filepath.Join(dc.dir, name), data); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	now := time.Now()
	dc.index[key] = &diskEntry{
		Key:        key,
		File:       name,
		Size:       n,
		Raw:        int64(len(value)),
		Compressed: compressed,
		Stored:     now,
		Accessed:   now,
	}
	dc.size += n
	return nil
}

// Delete removes key.
func (dc *DiskCache) Delete(key string) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	dc.drop(key)
	return nil
}

// Clear removes every entry and its file.
func (dc *DiskCache) Clear() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	for key := range dc.index {
		dc.drop(key)
	}
	return dc.saveIndex()
}

// Contains reports whether key is indexed.
func (dc *DiskCache) Contains(key string) bool {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	_, ok := dc.index[key]
	return ok
}

// RemoveOlderThan drops entries stored before cutoff.
func (dc *DiskCache) RemoveOlderThan(cutoff time.Time) int {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	removed := 0
	for key, e := range dc.index {
		if e.Stored.Before(cutoff) {
			dc.drop(key)
			removed++
		}
	}
	return removed
}

// Stats returns the cache counters. Size counts bytes on disk.
func (dc *DiskCache) Stats() Stats {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	st := dc.stats
	st.Capacity = dc.capacity
	st.Size = dc.size
	st.Items = int64(len(dc.index))
	return st
}

// Close saves the index.
func (dc *DiskCache) Close() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if dc.enc != nil {
		_ = dc.enc.Close()
	}
	dc.dec.Close()
	return dc.saveIndex()
}

// evict drops least recently accessed entries until size <= limit. Must be
// called with mu held.
func (dc *DiskCache) evict(limit int64) {
	if dc.size <= limit {
		return
	}
	entries := make([]*diskEntry, 0, len(dc.index))
	for _, e := range dc.index {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Accessed.Before(entries[j].Accessed)
	})
	for _, e := range entries {
		if dc.size <= limit {
			break
		}
		dc.drop(e.Key)
		dc.stats.Evictions++
	}
}

// drop must be called with mu held.
func (dc *DiskCache) drop(key string) {
	e, ok := dc.index[key]
	if !ok {
		return
	}
	if err := os.Remove(filepath.Join(dc.dir, e.File)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Debug("Failed to remove cache file", "file", e.File, "error", err)
	}
	delete(dc.index, key)
	dc.size -= e.Size
}

func (dc *DiskCache) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(dc.dir, indexFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	var entries []*diskEntry
	if err := msgpack.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	for _, e := range entries {
		if _, err := os.Stat(filepath.Join(dc.dir, e.File)); err == nil {
			dc.index[e.Key] = e
		}
	}
	return nil
}

func (dc *DiskCache) saveIndex() error {
	entries := make([]*diskEntry, 0, len(dc.index))
	for _, e := range dc.index {
		entries = append(entries, e)
	}
	data, err := msgpack.Marshal(entries)
	if err != nil {
		return err
	}
	return writeAtomic(filepath.Join(dc.dir, indexFile), data)
}

func fileName(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:16]) + ".pcm"
}

// writeAtomic writes data to a temporary file and renames it over path.
func writeAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	_, err = f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
