package ucra

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Config contains all UCRA tooling options.
type Config struct {
	Engine EngineConfig `yaml:"engine"`
	Stream StreamConfig `yaml:"stream"`
	Cache  CacheConfig  `yaml:"cache"`
	Serve  ServeConfig  `yaml:"serve"`
	NATS   NATSConfig   `yaml:"nats"`
	Log    LogConfig    `yaml:"log"`
}

// EngineConfig contains engine creation settings.
type EngineConfig struct {
	SampleRate int    `yaml:"sample_rate" env:"UCRA_SAMPLE_RATE" envDefault:"44100"`
	Channels   int    `yaml:"channels" env:"UCRA_CHANNELS" envDefault:"1"`
	MaxSamples int64  `yaml:"max_samples" env:"UCRA_MAX_SAMPLES" envDefault:"0"`
	Manifest   string `yaml:"manifest" env:"UCRA_MANIFEST"`
	FlagRules  string `yaml:"flag_rules" env:"UCRA_FLAG_RULES"`
}

// StreamConfig contains streaming session settings.
type StreamConfig struct {
	BlockSize int  `yaml:"block_size" env:"UCRA_BLOCK_SIZE" envDefault:"512"`
	ReadSize  int  `yaml:"read_size" env:"UCRA_READ_SIZE" envDefault:"1024"`
	ChunkSize int  `yaml:"chunk_size" env:"UCRA_CHUNK_SIZE" envDefault:"4"`
	Realtime  bool `yaml:"realtime" env:"UCRA_REALTIME" envDefault:"false"`
}

// CacheConfig contains render cache settings.
type CacheConfig struct {
	Enabled          bool   `yaml:"enabled" env:"UCRA_CACHE_ENABLED" envDefault:"false"`
	Dir              string `yaml:"dir" env:"UCRA_CACHE_DIR"`
	MemoryMB         int    `yaml:"memory_mb" env:"UCRA_CACHE_MEMORY_MB" envDefault:"64"`
	DiskMB           int    `yaml:"disk_mb" env:"UCRA_CACHE_DISK_MB" envDefault:"512"`
	CompressionLevel int    `yaml:"compression_level" env:"UCRA_CACHE_COMPRESSION" envDefault:"3"`
}

// ServeConfig contains adapter server settings.
type ServeConfig struct {
	Addr         string        `yaml:"addr" env:"UCRA_SERVE_ADDR" envDefault:"127.0.0.1:7070"`
	Path         string        `yaml:"path" env:"UCRA_SERVE_PATH" envDefault:"/ucra"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"UCRA_SERVE_READ_TIMEOUT" envDefault:"30s"`
	MaxMessageMB int           `yaml:"max_message_mb" env:"UCRA_SERVE_MAX_MESSAGE_MB" envDefault:"16"`
}

// NATSConfig contains settings for the NATS block sink.
type NATSConfig struct {
	URL     string `yaml:"url" env:"UCRA_NATS_URL" envDefault:"nats://127.0.0.1:4222"`
	Subject string `yaml:"subject" env:"UCRA_NATS_SUBJECT" envDefault:"ucra.stream"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `yaml:"level" env:"UCRA_LOG_LEVEL" envDefault:"info"`
	File  string `yaml:"file" env:"UCRA_LOG_FILE"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Engine: EngineConfig{
			SampleRate: DefaultSampleRate,
			Channels:   1,
		},
		Stream: StreamConfig{
			BlockSize: 512,
			ReadSize:  1024,
			ChunkSize: 4,
		},
		Cache: CacheConfig{
			MemoryMB:         64,
			DiskMB:           512,
			CompressionLevel: 3,
		},
		Serve: ServeConfig{
			Addr:         "127.0.0.1:7070",
			Path:         "/ucra",
			ReadTimeout:  30 * time.Second,
			MaxMessageMB: 16,
		},
		NATS: NATSConfig{
			URL:     "nats://127.0.0.1:4222",
			Subject: "ucra.stream",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Engine.SampleRate <= 0 || c.Engine.SampleRate > 384000 {
		return fmt.Errorf("invalid sample rate: %d", c.Engine.SampleRate)
	}
	if c.Engine.Channels < 1 || c.Engine.Channels > 8 {
		return fmt.Errorf("invalid channel count: %d (must be 1-8)", c.Engine.Channels)
	}
	if c.Engine.MaxSamples < 0 {
		return fmt.Errorf("invalid max samples: %d", c.Engine.MaxSamples)
	}

	if c.Stream.BlockSize <= 0 {
		return fmt.Errorf("invalid block size: %d", c.Stream.BlockSize)
	}
	if c.Stream.ReadSize <= 0 {
		return fmt.Errorf("invalid read size: %d", c.Stream.ReadSize)
	}
	if c.Stream.ChunkSize <= 0 {
		return fmt.Errorf("invalid chunk size: %d", c.Stream.ChunkSize)
	}

	if c.Cache.Enabled {
		if c.Cache.MemoryMB < 0 || c.Cache.DiskMB < 0 {
			return fmt.Errorf("cache sizes must not be negative")
		}
		if c.Cache.CompressionLevel < 0 || c.Cache.CompressionLevel > 22 {
			return fmt.Errorf("invalid compression level: %d (must be 0-22)", c.Cache.CompressionLevel)
		}
		if c.Cache.Dir != "" && !filepath.IsAbs(c.Cache.Dir) && !strings.HasPrefix(c.Cache.Dir, "~") {
			return fmt.Errorf("cache dir must be absolute: %s", c.Cache.Dir)
		}
	}

	if c.Serve.Path == "" || !strings.HasPrefix(c.Serve.Path, "/") {
		return fmt.Errorf("serve path must start with '/': %q", c.Serve.Path)
	}
	if c.Serve.MaxMessageMB <= 0 {
		return fmt.Errorf("invalid max message size: %d", c.Serve.MaxMessageMB)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	return nil
}

// EngineOptions returns the option map passed to engine creation.
func (c *Config) EngineOptions() map[string]string {
	opts := map[string]string{
		"sample_rate": fmt.Sprint(c.Engine.SampleRate),
	}
	if c.Engine.MaxSamples > 0 {
		opts["max_samples"] = fmt.Sprint(c.Engine.MaxSamples)
	}
	if c.Engine.Manifest != "" {
		opts["manifest"] = c.Engine.Manifest
	}
	return opts
}
