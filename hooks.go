package cachechain

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// They are called on hot paths, sometimes while a future is completing.
type Hooks interface {
	// A pooled Get attached to a fetch already in flight for key.
	PoolJoined(key string)

	// A pooled Get started a fresh fetch on the wrapped level.
	PoolFetch(key string)

	// Writing a later-stage hit back into an earlier stage failed.
	PopulateFailed(stage, key string, err error)

	// One stage of a broadcast Set failed.
	StageSetFailed(stage, key string, err error)

	// A leaf level deleted an entry on read.
	// reason ∈ {"corrupt", "expired"}
	SelfHeal(storageKey, reason string)

	// Provider returned ok=false on Set (backpressure/eviction).
	ProviderSetRejected(storageKey string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) PoolJoined(string)                    {}
func (NopHooks) PoolFetch(string)                     {}
func (NopHooks) PopulateFailed(string, string, error) {}
func (NopHooks) StageSetFailed(string, string, error) {}
func (NopHooks) SelfHeal(string, string)              {}
func (NopHooks) ProviderSetRejected(string)           {}
