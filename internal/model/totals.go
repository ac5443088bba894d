package model

import (
	"sync/atomic"
	"time"
)

// Totals aggregates result counts. Safe for concurrent use.
type Totals struct {
	total   atomic.Int64
	deleted atomic.Int64
	skipped atomic.Int64
	errors  atomic.Int64
}

// Add counts one terminal result.
func (t *Totals) Add(r PathResult) {
	t.total.Add(1)
	switch r.Status {
	case StatusDeleted:
		t.deleted.Add(1)
	case StatusError:
		t.errors.Add(1)
	default:
		t.skipped.Add(1)
	}
}

// Errors returns the number of error results so far.
func (t *Totals) Errors() int64 {
	return t.errors.Load()
}

// Summary snapshots the counters.
func (t *Totals) Summary(elapsed time.Duration) Summary {
	return Summary{
		Total:          int(t.total.Load()),
		Deleted:        int(t.deleted.Load()),
		Skipped:        int(t.skipped.Load()),
		Errors:         int(t.errors.Load()),
		ElapsedSeconds: elapsed.Seconds(),
	}
}

// Summary is the aggregate outcome of a run.
type Summary struct {
	Total          int     `json:"total"`
	Deleted        int     `json:"deleted"`
	Skipped        int     `json:"skipped"`
	Errors         int     `json:"errors"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	Interrupted    bool    `json:"interrupted,omitempty"`
	Unprocessed    int     `json:"unprocessed,omitempty"`
}
