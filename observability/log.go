package observability

import (
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"

	"github.com/unkn0wn-root/outcall"
)

type LogOptions struct {
	// Sampling to avoid floods on the success path; 0/1 = log all.
	// Failures are always logged.
	SuccessEvery uint64
	// Optional provider redactor, for providers named by URLs with embedded keys.
	Redact func(string) string
}

// LogSink writes one line per record: Debug on success, Warn on failure.
type LogSink struct {
	l    outcall.Logger
	opts LogOptions

	successCtr atomic.Uint64
}

var _ Sink = (*LogSink)(nil)

func NewLogSink(l outcall.Logger, opts LogOptions) *LogSink {
	return &LogSink{l: outcall.LoggerOrNop(l), opts: opts}
}

// HashRedact replaces s with a short SHA-256 prefix.
func HashRedact(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}

func (s *LogSink) redact(p string) string {
	if s.opts.Redact != nil {
		return s.opts.Redact(p)
	}
	return p
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (s *LogSink) Record(r Record) {
	f := outcall.Fields{
		"id":        r.ID,
		"method":    r.Method,
		"provider":  s.redact(r.Provider),
		"took":      r.Duration(),
		"bytes_out": r.BytesOut,
	}
	if r.OK() {
		if !sample(s.opts.SuccessEvery, &s.successCtr) {
			return
		}
		f["bytes_in"] = r.BytesIn
		s.l.Debug("outcall.call", f)
		return
	}
	f["outcome"] = r.Label
	f["err"] = r.Err
	s.l.Warn("outcall.call_failed", f)
}
