package observability

import (
	"time"

	"github.com/unkn0wn-root/outcall/timedsized"
)

// Recent keeps the last records seen within a time window, for status pages
// and debugging.
type Recent struct {
	buf *timedsized.Vec[Record]
}

var _ Sink = (*Recent)(nil)

// NewRecent keeps at most n records no older than window.
func NewRecent(n int, window time.Duration, opts ...timedsized.Option) *Recent {
	return &Recent{buf: timedsized.NewVec[Record](n, window, opts...)}
}

func (r *Recent) Record(rec Record) { r.buf.Insert(rec) }

// Records returns the retained records, oldest first.
func (r *Recent) Records() []Record { return r.buf.Values() }

// Failures returns the retained failed records, oldest first.
func (r *Recent) Failures() []Record {
	var out []Record
	for _, rec := range r.buf.Values() {
		if !rec.OK() {
			out = append(out, rec)
		}
	}
	return out
}

// Prune drops records older than the window at now.
func (r *Recent) Prune(now time.Time) int { return r.buf.Prune(now) }
