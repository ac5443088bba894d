package audit

import (
	"dirsweep/internal/model"
)

// TimestampFormat is the UTC, microsecond precision timestamp used in ts.
const TimestampFormat = "2006-01-02T15:04:05.000000Z"

// Entry is one line of the JSONL audit log. Field order is fixed by the
// struct so every line has the same shape. Reason and Message are null when
// absent.
type Entry struct {
	Path          string  `json:"path"`
	Exists        bool    `json:"exists"`
	IsDir         bool    `json:"is_dir"`
	IsSymlink     bool    `json:"is_symlink"`
	EntriesCount  int     `json:"entries_count"`
	EmptyVerified bool    `json:"empty_verified"`
	Deleted       bool    `json:"deleted"`
	Status        string  `json:"status"`
	Reason        *string `json:"reason"`
	DurationMs    float64 `json:"duration_ms"`
	Timestamp     string  `json:"ts"`
	PID           int     `json:"pid"`
	Host          string  `json:"host"`
	Cwd           string  `json:"cwd"`
	Message       *string `json:"message"`
}

// NewEntry flattens a result into its log form.
func NewEntry(r model.PathResult) Entry {
	e := Entry{
		Path:          r.Path,
		Exists:        r.Probe.Exists,
		IsDir:         r.Probe.IsDir,
		IsSymlink:     r.Probe.IsSymlink,
		EntriesCount:  r.Probe.EntriesCount,
		EmptyVerified: r.EmptyVerified,
		Deleted:       r.Deleted,
		Status:        string(r.Status),
		DurationMs:    r.DurationMs(),
		Timestamp:     r.Timestamp.UTC().Format(TimestampFormat),
		PID:           r.Host.PID,
		Host:          r.Host.Hostname,
		Cwd:           r.Host.Cwd,
	}
	if r.Reason != model.ReasonNone {
		reason := string(r.Reason)
		e.Reason = &reason
	}
	if r.Message != "" {
		msg := r.Message
		e.Message = &msg
	}
	return e
}

// ReasonString returns the reason or "" when null.
func (e Entry) ReasonString() string {
	if e.Reason == nil {
		return ""
	}
	return *e.Reason
}
