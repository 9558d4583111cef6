package promhooks

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	h, err := New(reg, "test")
	require.NoError(t, err)

	h.PoolFetch("k")
	h.PoolJoined("k")
	h.PoolJoined("k")
	h.PopulateFailed("mem", "k", errors.New("boom"))
	h.StageSetFailed("disk", "k", errors.New("boom"))
	h.StageSetFailed("disk", "k2", errors.New("boom"))
	h.SelfHeal("ns:k", "corrupt")
	h.SelfHeal("ns:k", "expired")
	h.SelfHeal("ns:k", "expired")
	h.ProviderSetRejected("ns:k")

	assert.Equal(t, 1.0, testutil.ToFloat64(h.poolFetch))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.poolJoined))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.populateFailed.WithLabelValues("mem")))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.setFailed.WithLabelValues("disk")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.selfHeal.WithLabelValues("corrupt")))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.selfHeal.WithLabelValues("expired")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.setRejected))
}

func TestDoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg, "")
	require.NoError(t, err)
	_, err = New(reg, "")
	require.Error(t, err)
}
