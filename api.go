package cachechain

import (
	"time"

	pr "github.com/unkn0wn-root/cachechain/provider"
)

// SetCostFunc returns the cost charged to a capacity-bounded store for one write.
// raw is the framed value actually stored.
type SetCostFunc func(storageKey string, raw []byte) int64

// ProviderOptions configure a leaf level over a byte store.
// Only Namespace and Provider are required; others have sensible defaults.
type ProviderOptions struct {
	// Required
	Namespace string // logical namespace to avoid collisions. e.g. "img", "thumb", "profile"
	Provider  pr.Provider

	Name           string        // stage name for logs/hooks; "" => Namespace
	Logger         Logger        // if nil, NopLogger is used
	Hooks          Hooks         // if nil, NopHooks is used
	TTL            time.Duration // 0 => entries never expire
	ComputeSetCost SetCostFunc   // default len(raw)
	ClearTimeout   time.Duration // bound for Clear against remote stores; 0 => 30s
	Clock          func() time.Time
}

// NewProviderLevel builds a leaf level storing []byte values in a provider.
func NewProviderLevel(opts ProviderOptions) (*ProviderLevel, error) {
	return newProviderLevel(opts)
}
