package config

import (
	"context"
	"fmt"
	stdslog "log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/unkn0wn-root/cachechain"
	"github.com/unkn0wn-root/cachechain/codec"
	asynchook "github.com/unkn0wn-root/cachechain/hooks/async"
	logruslog "github.com/unkn0wn-root/cachechain/log/logrus"
	sloglog "github.com/unkn0wn-root/cachechain/log/slog"
	zaplog "github.com/unkn0wn-root/cachechain/log/zap"
	"github.com/unkn0wn-root/cachechain/promhooks"
	pr "github.com/unkn0wn-root/cachechain/provider"
	bcprov "github.com/unkn0wn-root/cachechain/provider/bigcache"
	boltprov "github.com/unkn0wn-root/cachechain/provider/bolt"
	redisprov "github.com/unkn0wn-root/cachechain/provider/redis"
	rprov "github.com/unkn0wn-root/cachechain/provider/ristretto"
	s3prov "github.com/unkn0wn-root/cachechain/provider/s3"
	"github.com/unkn0wn-root/cachechain/sloghooks"
)

// maxDecompressed bounds a single decompressed payload of a compressed stage.
const maxDecompressed = 256 << 20

type buildOptions struct {
	reg    prometheus.Registerer
	logger cachechain.Logger
	s3api  s3prov.API
}

type BuildOption func(*buildOptions)

// WithRegisterer registers hook counters on reg instead of the default registry.
func WithRegisterer(reg prometheus.Registerer) BuildOption {
	return func(o *buildOptions) { o.reg = reg }
}

// WithLogger overrides the logger described by the log block.
func WithLogger(l cachechain.Logger) BuildOption {
	return func(o *buildOptions) { o.logger = l }
}

// WithS3Client uses api for s3 stages instead of a client from the AWS config chain.
func WithS3Client(api s3prov.API) BuildOption {
	return func(o *buildOptions) { o.s3api = api }
}

// Build constructs every stage of cfg and chains them. Closing the result
// closes every provider, flushes the logger and stops async hooks.
func Build(ctx context.Context, cfg *Config, opts ...BuildOption) (cachechain.ClosableLevel[string, []byte], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	bo := buildOptions{reg: prometheus.DefaultRegisterer}
	for _, o := range opts {
		o(&bo)
	}
	policy, _ := cfg.PopulatePolicy()

	var closers []func(context.Context) error
	cleanup := func() {
		for _, c := range closers {
			_ = c(context.Background())
		}
	}

	log, slogger, sync, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	if bo.logger != nil {
		log = bo.logger
	}
	if sync != nil {
		closers = append(closers, func(context.Context) error { return sync() })
	}

	hooks, stopHooks, err := newHooks(cfg.Hooks, slogger, bo.reg)
	if err != nil {
		cleanup()
		return nil, err
	}
	if stopHooks != nil {
		closers = append(closers, func(context.Context) error { stopHooks(); return nil })
	}

	levels := make([]cachechain.Level[string, []byte], 0, len(cfg.Stages))
	for i, sc := range cfg.Stages {
		p, err := newProvider(ctx, cfg.Namespace, sc, bo.s3api)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("config: stages[%d] (%s): %w", i, sc.Kind, err)
		}
		closers = append(closers, p.Close)
		name := stageName(sc, i)
		l, err := cachechain.NewProviderLevel(cachechain.ProviderOptions{
			Namespace:    cfg.Namespace,
			Provider:     p,
			Name:         name,
			Logger:       log,
			Hooks:        hooks,
			TTL:          sc.TTL,
			ClearTimeout: sc.ClearTimeout,
		})
		if err != nil {
			cleanup()
			return nil, err
		}
		if !sc.Compress {
			levels = append(levels, l)
			continue
		}
		z, err := codec.NewZstd(0, maxDecompressed)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("config: stages[%d] zstd: %w", i, err)
		}
		closers = append(closers, func(context.Context) error { z.Close(); return nil })
		zl := cachechain.TransformValues[string, []byte, []byte](l, cachechain.CodecTransformer[[]byte](z))
		levels = append(levels, cachechain.Named[string, []byte](name, zl))
	}

	pipe, err := cachechain.NewPipeline(cachechain.PipelineOptions[string]{
		Populate: policy,
		Logger:   log,
		Hooks:    hooks,
	}, levels...)
	if err != nil {
		cleanup()
		return nil, err
	}
	var top cachechain.Level[string, []byte] = pipe
	if cfg.Pool {
		top = cachechain.NewPool(top, cachechain.PoolOptions[string]{Logger: log, Hooks: hooks})
	}

	log.Info("cache built", cachechain.Fields{"namespace": cfg.Namespace, "stages": pipe.Stages(), "pool": cfg.Pool, "populate": policy.String()})
	return &cachechain.BasicCache[string, []byte]{
		GetFunc:           top.Get,
		SetFunc:           top.Set,
		ClearFunc:         top.Clear,
		MemoryWarningFunc: top.OnMemoryWarning,
		CloseFunc: func(ctx context.Context) error {
			var err error
			// providers first, then hooks and logger
			for i := len(closers) - 1; i >= 0; i-- {
				err = multierr.Append(err, closers[i](ctx))
			}
			return err
		},
	}, nil
}

func stageName(sc StageConfig, idx int) string {
	if sc.Name != "" {
		return sc.Name
	}
	return fmt.Sprintf("%s%d", sc.Kind, idx)
}

func newProvider(ctx context.Context, ns string, sc StageConfig, s3api s3prov.API) (pr.Provider, error) {
	switch sc.Kind {
	case KindRistretto:
		c := sc.Ristretto
		return rprov.New(rprov.Config{
			NumCounters: orDefault(c.NumCounters, 1e5),
			MaxCost:     orDefault(c.MaxCost, 64<<20),
			BufferItems: orDefault(c.BufferItems, 64),
			Metrics:     c.Metrics,
		})
	case KindBigcache:
		c := sc.Bigcache
		return bcprov.New(bcprov.Config{
			LifeWindow:         c.LifeWindow,
			Shards:             c.Shards,
			MaxEntrySize:       c.MaxEntrySize,
			HardMaxCacheSizeMB: c.HardMaxCacheSizeMB,
		})
	case KindRedis:
		c := sc.Redis
		prefix := c.Prefix
		if prefix == "" {
			prefix = ns + ":"
		}
		rdb := goredis.NewUniversalClient(&goredis.UniversalOptions{
			Addrs:    c.Addrs,
			Password: c.Password,
			DB:       c.DB,
		})
		p, err := redisprov.New(redisprov.Config{Client: rdb, Prefix: prefix, CloseClient: true})
		if err != nil {
			_ = rdb.Close()
			return nil, err
		}
		return p, nil
	case KindBolt:
		c := sc.Bolt
		return boltprov.New(boltprov.Config{Path: c.Path, Bucket: c.Bucket, NoSync: c.NoSync})
	case KindS3:
		c := sc.S3
		api := s3api
		if api == nil {
			client, err := s3prov.NewClient(ctx, s3prov.ClientConfig{
				Region:          c.Region,
				Endpoint:        c.Endpoint,
				AccessKeyID:     c.AccessKeyID,
				SecretAccessKey: c.SecretAccessKey,
			})
			if err != nil {
				return nil, err
			}
			api = client
		}
		return s3prov.New(s3prov.Config{Client: api, Bucket: c.Bucket, Prefix: c.Prefix})
	default:
		return nil, fmt.Errorf("unknown kind %q", sc.Kind)
	}
}

func orDefault(v, def int64) int64 {
	if v <= 0 {
		return def
	}
	return v
}

// newLogger returns the adapter, the underlying slog logger when the backend
// is slog, and a flush func when the backend buffers.
func newLogger(lc LogConfig) (cachechain.Logger, *stdslog.Logger, func() error, error) {
	json := !strings.EqualFold(lc.Format, "text")
	switch strings.ToLower(lc.Backend) {
	case "", "none":
		return cachechain.NopLogger{}, nil, nil, nil
	case "zap":
		zc := zap.NewProductionConfig()
		if !json {
			zc.Encoding = "console"
		}
		if lc.Level != "" {
			lvl, err := zap.ParseAtomicLevel(lc.Level)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("config: log level: %w", err)
			}
			zc.Level = lvl
		}
		zl, err := zc.Build()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("config: zap: %w", err)
		}
		return zaplog.New(zl), nil, func() error { _ = zl.Sync(); return nil }, nil
	case "logrus":
		ll := logrus.New()
		ll.SetOutput(os.Stderr)
		if json {
			ll.SetFormatter(&logrus.JSONFormatter{})
		}
		if lc.Level != "" {
			lvl, err := logrus.ParseLevel(lc.Level)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("config: log level: %w", err)
			}
			ll.SetLevel(lvl)
		}
		return logruslog.New(ll), nil, nil, nil
	case "slog":
		var lvl stdslog.Level
		if lc.Level != "" {
			if err := lvl.UnmarshalText([]byte(lc.Level)); err != nil {
				return nil, nil, nil, fmt.Errorf("config: log level: %w", err)
			}
		}
		hopts := &stdslog.HandlerOptions{Level: lvl}
		var h stdslog.Handler = stdslog.NewTextHandler(os.Stderr, hopts)
		if json {
			h = stdslog.NewJSONHandler(os.Stderr, hopts)
		}
		sl := stdslog.New(h).With("component", "cachechain")
		return sloglog.Logger{L: sl}, sl, nil, nil
	default:
		return nil, nil, nil, fmt.Errorf("config: unknown log backend %q", lc.Backend)
	}
}

func newHooks(hc HooksConfig, sl *stdslog.Logger, reg prometheus.Registerer) (cachechain.Hooks, func(), error) {
	var set fanout
	if hc.Log && sl != nil {
		set = append(set, sloghooks.New(sl, sloghooks.Options{SelfHealEvery: 10, PoolEvery: 100}))
	}
	if hc.Metrics {
		ph, err := promhooks.New(reg, hc.MetricsNamespace)
		if err != nil {
			return nil, nil, fmt.Errorf("config: metrics: %w", err)
		}
		set = append(set, ph)
	}
	var h cachechain.Hooks
	switch len(set) {
	case 0:
		return cachechain.NopHooks{}, nil, nil
	case 1:
		h = set[0]
	default:
		h = set
	}
	if hc.AsyncQueue > 0 {
		ah := asynchook.New(h, 1, hc.AsyncQueue)
		return ah, ah.Close, nil
	}
	return h, nil, nil
}
