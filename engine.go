package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/openucra/ucra-go/internal/cache"
	"github.com/openucra/ucra-go/internal/score"
	"github.com/openucra/ucra-go/ucra"
	"github.com/openucra/ucra-go/ucra/adapter"
	"github.com/openucra/ucra-go/ucra/engines/reference"
	"github.com/openucra/ucra-go/ucra/flagmap"
	"github.com/openucra/ucra-go/ucra/manifest"
	"github.com/openucra/ucra-go/utils"
)

// openRenderer creates the engine described by c, wrapped in the render
// cache when it is enabled. The returned func releases both.
func openRenderer(c ucra.Config) (ucra.Renderer, func(), error) {
	engine, err := reference.Create(c.EngineOptions())
	if err != nil {
		return nil, nil, fmt.Errorf("unable to create engine: %w", err)
	}
	if !c.Cache.Enabled {
		return engine, engine.Destroy, nil
	}

	store, err := openCache(c.Cache)
	if err != nil {
		engine.Destroy()
		return nil, nil, err
	}
	r := cache.NewRenderer(engine, store)
	return r, func() {
		hits, misses := r.Counts()
		log.Debug("Render cache", "hits", hits, "misses", misses, "stats", store.Stats())
		if err := store.Close(); err != nil {
			log.Warn("Could not save render cache", "error", err)
		}
		engine.Destroy()
	}, nil
}

// openCache opens the render cache tiers.
func openCache(c ucra.CacheConfig) (*cache.Tiered, error) {
	dir, err := cacheDir(c)
	if err != nil {
		return nil, err
	}
	store, err := cache.Open(cache.Config{
		MemoryCapacity:   int64(c.MemoryMB) << 20,
		DiskCapacity:     int64(c.DiskMB) << 20,
		Dir:              dir,
		CompressionLevel: c.CompressionLevel,
		TTL:              30 * 24 * time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to open render cache: %w", err)
	}
	return store, nil
}

func cacheDir(c ucra.CacheConfig) (string, error) {
	if c.Dir != "" {
		return utils.ExpandPath(c.Dir), nil
	}
	dir, err := gap.NewScope(gap.User, "ucra").CacheDir()
	if err != nil {
		return "", fmt.Errorf("unable to find cache directory: %w", err)
	}
	return filepath.Join(dir, "renders"), nil
}

// dialRemote connects to the adapter server at remoteURL.
func dialRemote(ctx context.Context) (*adapter.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, adapter.DefaultHandshakeTimeout)
	defer cancel()
	c, err := adapter.Dial(ctx, remoteURL)
	if err != nil {
		return nil, fmt.Errorf("unable to reach %s: %w", remoteURL, err)
	}
	return c, nil
}

// loadScore reads a score and resolves its engine options: manifest
// defaults first, then the score's options, then its flags mapped through
// the configured flag rules, then extra flags from the command line.
func loadScore(path, extraFlags string) (*score.Score, map[string]string, error) {
	sc, err := score.Load(utils.ExpandPath(path))
	if err != nil {
		return nil, nil, err
	}

	opts := make(map[string]string)
	var m *manifest.Manifest
	if cfg.Engine.Manifest != "" {
		m, err = manifest.Load(utils.ExpandPath(cfg.Engine.Manifest))
		if err != nil {
			return nil, nil, err
		}
		for k, v := range m.DefaultOptions() {
			opts[k] = v
		}
	}
	for k, v := range sc.Options {
		opts[k] = v
	}

	flags := sc.Flags
	if extraFlags != "" {
		if flags != "" {
			flags += ";"
		}
		flags += extraFlags
	}
	mapped, err := mapFlags(flags)
	if err != nil {
		return nil, nil, err
	}
	for k, v := range mapped {
		opts[k] = v
	}

	if m != nil {
		keys := make([]string, 0, len(opts))
		for k := range opts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := m.CheckOption(k, opts[k]); err != nil {
				return nil, nil, ucra.NewError(ucra.ErrInvalidArgument, "score", "options").WithCause(err)
			}
		}
	}

	if sc.SampleRate == 0 {
		sc.SampleRate = uint32(cfg.Engine.SampleRate) //nolint:gosec
	}
	if sc.Channels == 0 {
		sc.Channels = uint32(cfg.Engine.Channels) //nolint:gosec
	}
	log.Debug("Loaded score", "score", sc.String(), "options", len(opts))
	return sc, opts, nil
}

// mapFlags turns legacy flags into engine options, through the flag rules
// when they are configured.
func mapFlags(flags string) (map[string]string, error) {
	if flags == "" {
		return nil, nil
	}
	if cfg.Engine.FlagRules == "" {
		out := make(map[string]string)
		for _, kv := range flagmap.ParseLegacy(flags) {
			out[kv.Key] = kv.Value
		}
		return out, nil
	}

	mapper, err := flagmap.Load(utils.ExpandPath(cfg.Engine.FlagRules))
	if err != nil {
		return nil, err
	}
	res := mapper.ApplyString(flags)
	for _, w := range res.Warnings {
		log.Warn("Flag mapping", "warning", w)
	}
	return res.Map(), nil
}
