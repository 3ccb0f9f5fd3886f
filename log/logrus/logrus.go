// Package logrus adapts a *logrus.Entry to outcall.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/outcall"
)

var _ outcall.Logger = LogrusLogger{}

type LogrusLogger struct{ E *logrus.Entry }

func New(l *logrus.Logger) LogrusLogger { return LogrusLogger{E: logrus.NewEntry(l)} }

func (l LogrusLogger) Debug(msg string, f outcall.Fields) { l.with(f).Debug(msg) }
func (l LogrusLogger) Info(msg string, f outcall.Fields)  { l.with(f).Info(msg) }
func (l LogrusLogger) Warn(msg string, f outcall.Fields)  { l.with(f).Warn(msg) }
func (l LogrusLogger) Error(msg string, f outcall.Fields) { l.with(f).Error(msg) }

// with moves an "err" field to logrus' error key.
func (l LogrusLogger) with(f outcall.Fields) *logrus.Entry {
	e := l.E
	fields := make(logrus.Fields, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok && k == "err" {
			e = e.WithError(err)
			continue
		}
		fields[k] = v
	}
	return e.WithFields(fields)
}
