package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/openucra/ucra-go/ucra"
	"github.com/vmihailenco/msgpack/v5"
)

// Key derives a cache key from the engine description and the render
// configuration. Option maps are encoded in sorted key order so equal
// configurations always hash the same.
func Key(engine string, cfg *ucra.RenderConfig) (string, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.EncodeString(engine); err != nil {
		return "", err
	}
	if err := enc.Encode(cfg); err != nil {
		return "", fmt.Errorf("failed to encode render config: %w", err)
	}
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:]), nil
}

// Renderer serves renders from a Store and falls through to the wrapped
// renderer on a miss. Like an engine, it owns the result it returns until
// its next call.
type Renderer struct {
	next   ucra.Renderer
	store  Store
	engine string
	result ucra.RenderResult

	hits   int64
	misses int64
}

// NewRenderer wraps next with store.
func NewRenderer(next ucra.Renderer, store Store) *Renderer {
	r := &Renderer{next: next, store: store}
	if in, ok := next.(ucra.Informer); ok {
		r.engine = in.Info()
	}
	return r
}

// Render returns a cached result for cfg or renders and stores it.
// Failed renders are not cached.
func (r *Renderer) Render(cfg *ucra.RenderConfig) (*ucra.RenderResult, error) {
	if cfg == nil {
		return r.next.Render(cfg)
	}
	keyed := cfg
	if sr, ok := r.next.(interface{ SampleRate() uint32 }); ok && cfg.SampleRate == 0 {
		c := *cfg
		c.SampleRate = sr.SampleRate()
		keyed = &c
	}
	key, err := Key(r.engine, keyed)
	if err != nil {
		return nil, ucra.NewError(ucra.ErrInternal, "cache", "key").WithCause(err)
	}

	if data, ok := r.store.Get(key); ok {
		var res ucra.RenderResult
		if err := msgpack.Unmarshal(data, &res); err == nil {
			r.hits++
			r.result = res
			return &r.result, nil
		}
		log.Warn("Dropping corrupted cache entry", "key", key[:12])
		_ = r.store.Delete(key)
	}

	res, err := r.next.Render(cfg)
	if err != nil {
		return nil, err
	}
	r.misses++

	data, err := msgpack.Marshal(res)
	if err == nil {
		err = r.store.Put(key, data)
	}
	if err != nil {
		log.Debug("Render not cached", "key", key[:12], "error", err)
	}
	return res, nil
}

// Info describes the wrapped renderer.
func (r *Renderer) Info() string { return r.engine }

// Capabilities forwards the wrapped renderer's capabilities, or reports
// streaming support with no format restriction.
func (r *Renderer) Capabilities() ucra.Capabilities {
	if c, ok := r.next.(ucra.Capable); ok {
		return c.Capabilities()
	}
	return ucra.Capabilities{Streaming: true}
}

// Counts returns how many renders were served from the store and how many
// reached the wrapped renderer.
func (r *Renderer) Counts() (hits, misses int64) {
	return r.hits, r.misses
}
