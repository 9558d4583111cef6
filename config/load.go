package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/unkn0wn-root/cachechain"
)

// EnvPrefix prefixes environment overrides: CACHECHAIN_NAMESPACE,
// CACHECHAIN_LOG_LEVEL, CACHECHAIN_POPULATE and so on. Stages come from the
// file only.
const EnvPrefix = "CACHECHAIN"

// Loader keeps the current configuration of one file and, once watched,
// swaps it when the file changes.
type Loader struct {
	v   *viper.Viper
	log cachechain.Logger

	mu          sync.RWMutex
	cur         *Config
	subscribers []func(*Config)
}

// Load reads, validates and returns the configuration in path.
func Load(path string) (*Config, error) {
	l, err := NewLoader(path, nil)
	if err != nil {
		return nil, err
	}
	return l.Config(), nil
}

// NewLoader reads path once. log receives reload failures; nil disables it.
func NewLoader(path string, log cachechain.Logger) (*Loader, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType(strings.TrimPrefix(filepath.Ext(path), "."))
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = cachechain.NopLogger{}
	}
	return &Loader{v: v, log: log, cur: cfg}, nil
}

// setDefaults registers every scalar key so env overrides apply even when
// the file omits it.
func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("namespace", d.Namespace)
	v.SetDefault("populate", d.Populate)
	v.SetDefault("pool", d.Pool)
	v.SetDefault("log.backend", d.Log.Backend)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("hooks.log", false)
	v.SetDefault("hooks.metrics", false)
	v.SetDefault("hooks.metrics_namespace", "")
	v.SetDefault("hooks.async_queue", 0)
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Config returns the current configuration. Callers must not modify it.
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cur
}

// Subscribe registers fn to receive every configuration accepted by a reload.
func (l *Loader) Subscribe(fn func(*Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subscribers = append(l.subscribers, fn)
}

// Watch reloads on file changes. An invalid file is logged and the previous
// configuration stays current.
func (l *Loader) Watch() {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		l.reload(e.Name)
	})
	l.v.WatchConfig()
}

func (l *Loader) reload(name string) {
	cfg, err := decode(l.v)
	if err != nil {
		l.log.Error("config reload rejected", cachechain.Fields{"file": name, "err": err})
		return
	}
	l.mu.Lock()
	l.cur = cfg
	subs := make([]func(*Config), len(l.subscribers))
	copy(subs, l.subscribers)
	l.mu.Unlock()

	l.log.Info("config reloaded", cachechain.Fields{"file": name, "stages": len(cfg.Stages)})
	for _, fn := range subs {
		fn(cfg)
	}
}
