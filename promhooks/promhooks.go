// Package promhooks counts cache events with Prometheus counters.
package promhooks

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/cachechain"
)

// Hooks increments one counter per event. Keys are never used as labels;
// stage and reason are, since both have small fixed sets of values.
type Hooks struct {
	poolJoined     prometheus.Counter
	poolFetch      prometheus.Counter
	populateFailed *prometheus.CounterVec
	setFailed      *prometheus.CounterVec
	selfHeal       *prometheus.CounterVec
	setRejected    prometheus.Counter
}

var _ cachechain.Hooks = (*Hooks)(nil)

// New registers the counters with reg under namespace ("cachechain" when empty).
func New(reg prometheus.Registerer, namespace string) (*Hooks, error) {
	if namespace == "" {
		namespace = "cachechain"
	}
	h := &Hooks{
		poolJoined: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_joined_total",
			Help:      "Gets served by joining a fetch already in flight.",
		}),
		poolFetch: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_fetch_total",
			Help:      "Gets that started a fetch on the pooled level.",
		}),
		populateFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "populate_failed_total",
			Help:      "Failed write-backs of a later-stage hit.",
		}, []string{"stage"}),
		setFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_set_failed_total",
			Help:      "Failed stage writes of a broadcast set.",
		}, []string{"stage"}),
		selfHeal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "self_heal_total",
			Help:      "Entries deleted on read.",
		}, []string{"reason"}),
		setRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_set_rejected_total",
			Help:      "Writes refused by a provider under pressure.",
		}),
	}
	for _, c := range []prometheus.Collector{
		h.poolJoined, h.poolFetch, h.populateFailed, h.setFailed, h.selfHeal, h.setRejected,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Hooks) PoolJoined(string) { h.poolJoined.Inc() }
func (h *Hooks) PoolFetch(string)  { h.poolFetch.Inc() }

func (h *Hooks) PopulateFailed(stage, _ string, _ error) {
	h.populateFailed.WithLabelValues(stage).Inc()
}

func (h *Hooks) StageSetFailed(stage, _ string, _ error) {
	h.setFailed.WithLabelValues(stage).Inc()
}

func (h *Hooks) SelfHeal(_, reason string) { h.selfHeal.WithLabelValues(reason).Inc() }

func (h *Hooks) ProviderSetRejected(string) { h.setRejected.Inc() }
