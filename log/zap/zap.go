package zap

import (
	"sort"

	"go.uber.org/zap"

	"github.com/unkn0wn-root/cachechain"
)

var _ cachechain.Logger = Logger{}

type Logger struct{ L *zap.Logger }

// New wraps l under the "cachechain" logger name.
func New(l *zap.Logger) Logger { return Logger{L: l.Named("cachechain")} }

func (z Logger) Debug(msg string, f cachechain.Fields) {
	if ce := z.L.Check(zap.DebugLevel, msg); ce != nil {
		ce.Write(zf(f)...)
	}
}
func (z Logger) Info(msg string, f cachechain.Fields)  { z.L.Info(msg, zf(f)...) }
func (z Logger) Warn(msg string, f cachechain.Fields)  { z.L.Warn(msg, zf(f)...) }
func (z Logger) Error(msg string, f cachechain.Fields) { z.L.Error(msg, zf(f)...) }

// zf converts fields in key order so output is stable.
func zf(f cachechain.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(f))
	for _, k := range keys {
		if err, ok := f[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}
