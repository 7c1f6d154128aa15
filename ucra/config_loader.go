package ucra

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"
)

// LoadConfigFromEnv builds a Config from UCRA_* environment variables.
func LoadConfigFromEnv() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return DefaultConfig(), fmt.Errorf("error parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid UCRA configuration: %w", err)
	}
	return cfg, nil
}

// LoadConfigFromViper loads configuration from Viper, starting from base.
// Keys that Viper does not know keep the value from base.
func LoadConfigFromViper(base Config) (Config, error) {
	cfg := base

	// Engine settings
	if viper.IsSet("engine.sample_rate") {
		cfg.Engine.SampleRate = viper.GetInt("engine.sample_rate")
	}
	if viper.IsSet("engine.channels") {
		cfg.Engine.Channels = viper.GetInt("engine.channels")
	}
	if viper.IsSet("engine.max_samples") {
		cfg.Engine.MaxSamples = viper.GetInt64("engine.max_samples")
	}
	if viper.IsSet("engine.manifest") {
		cfg.Engine.Manifest = viper.GetString("engine.manifest")
	}
	if viper.IsSet("engine.flag_rules") {
		cfg.Engine.FlagRules = viper.GetString("engine.flag_rules")
	}

	// Streaming settings
	if viper.IsSet("stream.block_size") {
		cfg.Stream.BlockSize = viper.GetInt("stream.block_size")
	}
	if viper.IsSet("stream.read_size") {
		cfg.Stream.ReadSize = viper.GetInt("stream.read_size")
	}
	if viper.IsSet("stream.chunk_size") {
		cfg.Stream.ChunkSize = viper.GetInt("stream.chunk_size")
	}
	if viper.IsSet("stream.realtime") {
		cfg.Stream.Realtime = viper.GetBool("stream.realtime")
	}

	cfg.Cache = loadCacheConfig(cfg.Cache)

	// Server settings
	if viper.IsSet("serve.addr") {
		cfg.Serve.Addr = viper.GetString("serve.addr")
	}
	if viper.IsSet("serve.path") {
		cfg.Serve.Path = viper.GetString("serve.path")
	}
	if viper.IsSet("serve.read_timeout") {
		cfg.Serve.ReadTimeout = viper.GetDuration("serve.read_timeout")
	}
	if viper.IsSet("serve.max_message_mb") {
		cfg.Serve.MaxMessageMB = viper.GetInt("serve.max_message_mb")
	}

	// NATS sink
	if viper.IsSet("nats.url") {
		cfg.NATS.URL = viper.GetString("nats.url")
	}
	if viper.IsSet("nats.subject") {
		cfg.NATS.Subject = viper.GetString("nats.subject")
	}

	// Logging
	if viper.IsSet("log.level") {
		cfg.Log.Level = viper.GetString("log.level")
	}
	if viper.IsSet("log.file") {
		cfg.Log.File = viper.GetString("log.file")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid UCRA configuration: %w", err)
	}

	return cfg, nil
}

func loadCacheConfig(cfg CacheConfig) CacheConfig {
	if viper.IsSet("cache.enabled") {
		cfg.Enabled = viper.GetBool("cache.enabled")
	}
	if viper.IsSet("cache.dir") {
		cfg.Dir = viper.GetString("cache.dir")
	}
	if viper.IsSet("cache.memory_mb") {
		cfg.MemoryMB = viper.GetInt("cache.memory_mb")
	}
	if viper.IsSet("cache.disk_mb") {
		cfg.DiskMB = viper.GetInt("cache.disk_mb")
	}
	if viper.IsSet("cache.compression_level") {
		cfg.CompressionLevel = viper.GetInt("cache.compression_level")
	}
	return cfg
}

// SetDefaults registers the default configuration with Viper.
func SetDefaults() {
	d := DefaultConfig()

	viper.SetDefault("engine.sample_rate", d.Engine.SampleRate)
	viper.SetDefault("engine.channels", d.Engine.Channels)
	viper.SetDefault("engine.max_samples", d.Engine.MaxSamples)

	viper.SetDefault("stream.block_size", d.Stream.BlockSize)
	viper.SetDefault("stream.read_size", d.Stream.ReadSize)
	viper.SetDefault("stream.chunk_size", d.Stream.ChunkSize)
	viper.SetDefault("stream.realtime", d.Stream.Realtime)

	viper.SetDefault("cache.enabled", d.Cache.Enabled)
	viper.SetDefault("cache.memory_mb", d.Cache.MemoryMB)
	viper.SetDefault("cache.disk_mb", d.Cache.DiskMB)
	viper.SetDefault("cache.compression_level", d.Cache.CompressionLevel)

	viper.SetDefault("serve.addr", d.Serve.Addr)
	viper.SetDefault("serve.path", d.Serve.Path)
	viper.SetDefault("serve.read_timeout", d.Serve.ReadTimeout)
	viper.SetDefault("serve.max_message_mb", d.Serve.MaxMessageMB)

	viper.SetDefault("nats.url", d.NATS.URL)
	viper.SetDefault("nats.subject", d.NATS.Subject)

	viper.SetDefault("log.level", d.Log.Level)
}
