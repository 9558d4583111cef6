package zap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/unkn0wn-root/cachechain"
)

func TestFieldsAndLevels(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := New(zap.New(core))

	l.Debug("dropped", nil)
	l.Warn("populate failed", cachechain.Fields{"stage": "mem", "err": errors.New("full")})

	entries := logs.All()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, zapcore.WarnLevel, e.Level)
	assert.Equal(t, "cachechain", e.LoggerName)
	ctx := e.ContextMap()
	assert.Equal(t, "mem", ctx["stage"])
	assert.Equal(t, "full", ctx["err"])
}
