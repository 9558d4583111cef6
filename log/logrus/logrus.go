package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/cachechain"
)

var _ cachechain.Logger = Logger{}

// Logger adapts a logrus entry. Fields become logrus fields.
type Logger struct{ E *logrus.Entry }

// New wraps l, tagging every line with component=cachechain.
func New(l *logrus.Logger) Logger {
	return Logger{E: l.WithField("component", "cachechain")}
}

func (l Logger) Debug(msg string, f cachechain.Fields) { l.E.WithFields(logrus.Fields(f)).Debug(msg) }
func (l Logger) Info(msg string, f cachechain.Fields)  { l.E.WithFields(logrus.Fields(f)).Info(msg) }
func (l Logger) Warn(msg string, f cachechain.Fields)  { l.E.WithFields(logrus.Fields(f)).Warn(msg) }
func (l Logger) Error(msg string, f cachechain.Fields) { l.E.WithFields(logrus.Fields(f)).Error(msg) }
