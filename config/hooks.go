package config

import "github.com/unkn0wn-root/cachechain"

// fanout delivers every event to each hook in order.
type fanout []cachechain.Hooks

var _ cachechain.Hooks = fanout(nil)

func (f fanout) PoolJoined(k string) {
	for _, h := range f {
		h.PoolJoined(k)
	}
}

func (f fanout) PoolFetch(k string) {
	for _, h := range f {
		h.PoolFetch(k)
	}
}

func (f fanout) PopulateFailed(stage, k string, err error) {
	for _, h := range f {
		h.PopulateFailed(stage, k, err)
	}
}

func (f fanout) StageSetFailed(stage, k string, err error) {
	for _, h := range f {
		h.StageSetFailed(stage, k, err)
	}
}

func (f fanout) SelfHeal(k, reason string) {
	for _, h := range f {
		h.SelfHeal(k, reason)
	}
}

func (f fanout) ProviderSetRejected(k string) {
	for _, h := range f {
		h.ProviderSetRejected(k)
	}
}
