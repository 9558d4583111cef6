// Package config describes a cache pipeline declaratively, loads it from YAML
// (with CACHECHAIN_* environment overrides) and builds the levels it names.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/cachechain"
)

// Stage kinds.
const (
	KindRistretto = "ristretto"
	KindBigcache  = "bigcache"
	KindRedis     = "redis"
	KindBolt      = "bolt"
	KindS3        = "s3"
)

// Config is a whole pipeline: stages are tried first to last.
type Config struct {
	Namespace string        `mapstructure:"namespace" yaml:"namespace"`
	Populate  string        `mapstructure:"populate" yaml:"populate"` // all | previous | none
	Pool      bool          `mapstructure:"pool" yaml:"pool"`
	Log       LogConfig     `mapstructure:"log" yaml:"log"`
	Hooks     HooksConfig   `mapstructure:"hooks" yaml:"hooks"`
	Stages    []StageConfig `mapstructure:"stages" yaml:"stages"`
}

type LogConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"` // zap | logrus | slog | none
	Level   string `mapstructure:"level" yaml:"level"`
	Format  string `mapstructure:"format" yaml:"format"` // json | text
}

type HooksConfig struct {
	Log              bool   `mapstructure:"log" yaml:"log"` // slog backend only
	Metrics          bool   `mapstructure:"metrics" yaml:"metrics"`
	MetricsNamespace string `mapstructure:"metrics_namespace" yaml:"metrics_namespace"`
	AsyncQueue       int    `mapstructure:"async_queue" yaml:"async_queue"` // > 0 delivers hooks off the hot path
}

// StageConfig is one leaf level. Only the block matching Kind is read.
type StageConfig struct {
	Name         string        `mapstructure:"name" yaml:"name"`
	Kind         string        `mapstructure:"kind" yaml:"kind"`
	TTL          time.Duration `mapstructure:"ttl" yaml:"ttl"`
	ClearTimeout time.Duration `mapstructure:"clear_timeout" yaml:"clear_timeout,omitempty"`
	Compress     bool          `mapstructure:"compress" yaml:"compress,omitempty"` // zstd payloads in this stage

	Ristretto *RistrettoConfig `mapstructure:"ristretto" yaml:"ristretto,omitempty"`
	Bigcache  *BigcacheConfig  `mapstructure:"bigcache" yaml:"bigcache,omitempty"`
	Redis     *RedisConfig     `mapstructure:"redis" yaml:"redis,omitempty"`
	Bolt      *BoltConfig      `mapstructure:"bolt" yaml:"bolt,omitempty"`
	S3        *S3Config        `mapstructure:"s3" yaml:"s3,omitempty"`
}

type RistrettoConfig struct {
	NumCounters int64 `mapstructure:"num_counters" yaml:"num_counters"`
	MaxCost     int64 `mapstructure:"max_cost" yaml:"max_cost"`
	BufferItems int64 `mapstructure:"buffer_items" yaml:"buffer_items"`
	Metrics     bool  `mapstructure:"metrics" yaml:"metrics"`
}

type BigcacheConfig struct {
	LifeWindow         time.Duration `mapstructure:"life_window" yaml:"life_window"`
	Shards             int           `mapstructure:"shards" yaml:"shards"`
	MaxEntrySize       int           `mapstructure:"max_entry_size" yaml:"max_entry_size"`
	HardMaxCacheSizeMB int           `mapstructure:"hard_max_cache_size_mb" yaml:"hard_max_cache_size_mb"`
}

type RedisConfig struct {
	Addrs    []string `mapstructure:"addrs" yaml:"addrs"` // several addrs => cluster
	Password string   `mapstructure:"password" yaml:"password,omitempty"`
	DB       int      `mapstructure:"db" yaml:"db"`
	Prefix   string   `mapstructure:"prefix" yaml:"prefix"` // "" => "<namespace>:"
}

type BoltConfig struct {
	Path   string `mapstructure:"path" yaml:"path"`
	Bucket string `mapstructure:"bucket" yaml:"bucket"`
	NoSync bool   `mapstructure:"no_sync" yaml:"no_sync"`
}

type S3Config struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	Prefix          string `mapstructure:"prefix" yaml:"prefix"`
	Region          string `mapstructure:"region" yaml:"region"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`
}

// Default returns a single in-memory stage.
func Default() *Config {
	return &Config{
		Namespace: "cachechain",
		Populate:  "all",
		Log:       LogConfig{Backend: "none", Level: "info", Format: "json"},
		Stages: []StageConfig{{
			Name:      "memory",
			Kind:      KindRistretto,
			Ristretto: &RistrettoConfig{NumCounters: 1e5, MaxCost: 64 << 20, BufferItems: 64},
		}},
	}
}

// PopulatePolicy maps the populate setting onto the pipeline policy.
func (c *Config) PopulatePolicy() (cachechain.PopulatePolicy, error) {
	switch strings.ToLower(c.Populate) {
	case "", "all":
		return cachechain.PopulateAll, nil
	case "previous":
		return cachechain.PopulatePrevious, nil
	case "none":
		return cachechain.PopulateNone, nil
	default:
		return 0, fmt.Errorf("config: unknown populate policy %q", c.Populate)
	}
}

// Validate reports every problem found, not just the first.
func (c *Config) Validate() error {
	var errs []error
	if c.Namespace == "" {
		errs = append(errs, errors.New("namespace is required"))
	}
	if _, err := c.PopulatePolicy(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Backend) {
	case "", "none", "zap", "logrus", "slog":
	default:
		errs = append(errs, fmt.Errorf("unknown log backend %q", c.Log.Backend))
	}
	if c.Hooks.AsyncQueue < 0 {
		errs = append(errs, errors.New("hooks.async_queue must not be negative"))
	}
	if len(c.Stages) == 0 {
		errs = append(errs, errors.New("at least one stage is required"))
	}
	for i, s := range c.Stages {
		if err := s.validate(); err != nil {
			errs = append(errs, fmt.Errorf("stages[%d]: %w", i, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: invalid: %w", multierr.Combine(errs...))
	}
	return nil
}

func (s StageConfig) validate() error {
	if s.TTL < 0 {
		return fmt.Errorf("negative ttl %v", s.TTL)
	}
	switch s.Kind {
	case KindRistretto:
		if s.Ristretto == nil {
			return errors.New("ristretto block is required")
		}
	case KindBigcache:
		if s.Bigcache == nil || s.Bigcache.LifeWindow <= 0 {
			return errors.New("bigcache.life_window is required")
		}
	case KindRedis:
		if s.Redis == nil || len(s.Redis.Addrs) == 0 {
			return errors.New("redis.addrs is required")
		}
	case KindBolt:
		if s.Bolt == nil || s.Bolt.Path == "" {
			return errors.New("bolt.path is required")
		}
	case KindS3:
		if s.S3 == nil || s.S3.Bucket == "" {
			return errors.New("s3.bucket is required")
		}
	default:
		return fmt.Errorf("unknown kind %q", s.Kind)
	}
	return nil
}

// Save writes c as YAML.
func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
