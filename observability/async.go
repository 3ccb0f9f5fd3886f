package observability

import (
	"sync"
	"sync/atomic"
)

// Async hands records to inner on background workers. When the queue is full
// the record is dropped and counted; the calling goroutine never blocks.
//
//	sink := observability.NewAsync(observability.NewLogSink(logger, observability.LogOptions{}), 1, 1000)
//	defer sink.Close()
type Async struct {
	inner   Sink
	q       chan Record
	wg      sync.WaitGroup
	once    sync.Once
	closed  atomic.Bool
	dropped atomic.Uint64
}

var _ Sink = (*Async)(nil)

func NewAsync(inner Sink, workers, qlen int) *Async {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	a := &Async{inner: inner, q: make(chan Record, qlen)}
	a.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer a.wg.Done()
			for r := range a.q {
				a.inner.Record(r)
			}
		}()
	}
	return a
}

// Close stops accepting records and waits until the queued ones are delivered.
func (a *Async) Close() {
	a.once.Do(func() {
		a.closed.Store(true)
		close(a.q)
		a.wg.Wait()
	})
}

// Dropped counts records lost to a full queue or to Close.
func (a *Async) Dropped() uint64 { return a.dropped.Load() }

func (a *Async) Record(r Record) {
	defer func() {
		// send on a queue closed concurrently by Close
		if recover() != nil {
			a.dropped.Add(1)
		}
	}()
	if a.closed.Load() {
		a.dropped.Add(1)
		return
	}
	select {
	case a.q <- r:
	default: // drop
		a.dropped.Add(1)
	}
}
