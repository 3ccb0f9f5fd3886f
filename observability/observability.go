// Package observability records every call passing through a pipeline.
//
// The layer is transparent: it measures the delegate call, hands one Record to
// a Sink and returns the delegate's result unchanged. Sinks run on the calling
// goroutine; wrap slow ones in Async.
package observability

import (
	"context"
	"time"

	"github.com/unkn0wn-root/outcall"
)

// Record describes one completed call.
type Record struct {
	ID       string
	Method   string
	Provider string
	Start    time.Time
	End      time.Time
	Outcome  outcall.Kind
	Label    string // outcall.Label of Err, "ok" on success
	BytesOut int    // request size
	BytesIn  int    // response size, 0 on failure
	Err      error
}

func (r Record) Duration() time.Duration { return r.End.Sub(r.Start) }

func (r Record) OK() bool { return r.Outcome == outcall.KindNone }

// Sink receives records. Implementations must be safe for concurrent use and
// should return quickly.
type Sink interface {
	Record(Record)
}

type SinkFunc func(Record)

func (f SinkFunc) Record(r Record) { f(r) }

// Describer extracts what the layer records from requests and responses of one
// pipeline level. jsonrpc.Describe and transport.Describe implement it.
type Describer[Req, Resp any] interface {
	RequestID(Req) string
	Method(Req) string
	RequestSize(Req) int
	ResponseSize(Resp) int
}

type Options[Req, Resp any] struct {
	// Provider labels every record, e.g. the provider name of a pipeline.
	Provider string

	OnRequest  func(ctx context.Context, req Req)
	OnResponse func(req Req, resp Resp, took time.Duration)
	OnError    func(req Req, err error, took time.Duration)

	// Now replaces time.Now.
	Now func() time.Time
}

// New returns the observability middleware. A nil sink only runs the callbacks.
func New[Req, Resp any](sink Sink, d Describer[Req, Resp], opts Options[Req, Resp]) outcall.Middleware[Req, Resp] {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return func(next outcall.Service[Req, Resp]) outcall.Service[Req, Resp] {
		return outcall.ServiceFunc[Req, Resp](func(ctx context.Context, req Req) (Resp, error) {
			if opts.OnRequest != nil {
				opts.OnRequest(ctx, req)
			}
			start := opts.Now()
			resp, err := next.Call(ctx, req)
			end := opts.Now()

			if err != nil {
				if opts.OnError != nil {
					opts.OnError(req, err, end.Sub(start))
				}
			} else if opts.OnResponse != nil {
				opts.OnResponse(req, resp, end.Sub(start))
			}

			if sink != nil {
				rec := Record{
					ID:       d.RequestID(req),
					Method:   d.Method(req),
					Provider: opts.Provider,
					Start:    start,
					End:      end,
					Outcome:  outcall.KindOf(err),
					Label:    outcall.Label(err),
					BytesOut: d.RequestSize(req),
					Err:      err,
				}
				if err == nil {
					rec.BytesIn = d.ResponseSize(resp)
				}
				sink.Record(rec)
			}
			return resp, err
		})
	}
}

// Fanout delivers each record to every non-nil sink in order.
type Fanout []Sink

func (f Fanout) Record(r Record) {
	for _, s := range f {
		if s != nil {
			s.Record(r)
		}
	}
}
