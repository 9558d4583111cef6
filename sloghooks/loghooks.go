package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/cachechain"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SelfHealEvery uint64
	PoolEvery     uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	selfHealCtr atomic.Uint64
	poolCtr     atomic.Uint64
}

var _ cachechain.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) PoolJoined(key string) {
	if h.l == nil || !sample(h.opts.PoolEvery, &h.poolCtr) {
		return
	}
	h.l.Debug("cachechain.pool_joined", "key", h.redact(key))
}

func (h *Hooks) PoolFetch(key string) {
	if h.l == nil || !sample(h.opts.PoolEvery, &h.poolCtr) {
		return
	}
	h.l.Debug("cachechain.pool_fetch", "key", h.redact(key))
}

func (h *Hooks) PopulateFailed(stage, key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("cachechain.populate_failed",
		"stage", stage,
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) StageSetFailed(stage, key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("cachechain.stage_set_failed",
		"stage", stage,
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) SelfHeal(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("cachechain.self_heal",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) ProviderSetRejected(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("cachechain.provider_set_rejected", "key", h.redact(storageKey))
}
