// Package model holds the value types exchanged between the deletion
// pipeline and its sinks.
package model

import (
	"time"
)

// Status is the high level outcome for one candidate path.
type Status string

const (
	StatusDeleted Status = "deleted"
	StatusSkipped Status = "skipped"
	StatusError   Status = "error"
)

// Reason explains why a path was skipped or errored. The zero value means
// "no reason" and is only valid on deleted results.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonNotExists         Reason = "not_exists"
	ReasonNotDir            Reason = "not_dir"
	ReasonNotEmpty          Reason = "not_empty"
	ReasonPermissionDenied  Reason = "permission_denied"
	ReasonIOError           Reason = "io_error"
	ReasonSymlinkDirRefused Reason = "symlink_dir_refused"
	ReasonProtectedRoot     Reason = "protected_root"
	ReasonPolicyBlocked     Reason = "policy_blocked"
	ReasonInvalidPath       Reason = "invalid_path"
)

// AllReasons lists every non-empty reason, in a stable order.
func AllReasons() []Reason {
	return []Reason{
		ReasonNotExists,
		ReasonNotDir,
		ReasonNotEmpty,
		ReasonPermissionDenied,
		ReasonIOError,
		ReasonSymlinkDirRefused,
		ReasonProtectedRoot,
		ReasonPolicyBlocked,
		ReasonInvalidPath,
	}
}

// EntryCountUnknown marks an entry count that could not be determined.
const EntryCountUnknown = -1

// Candidate is a raw input path and the index of its first occurrence.
// Path holds the normalized absolute form; it is empty when the raw input
// could not be normalized at all.
type Candidate struct {
	Index int
	Raw   string
	Path  string
}

// Valid reports whether the candidate was normalized successfully.
func (c Candidate) Valid() bool {
	return c.Path != ""
}

// DisplayPath returns the normalized path, or the raw input for invalid candidates.
func (c Candidate) DisplayPath() string {
	if c.Path != "" {
		return c.Path
	}
	return c.Raw
}

// Probe is a single point-in-time snapshot of a path.
type Probe struct {
	Exists       bool
	IsDir        bool
	IsSymlink    bool
	EntriesCount int
}

// UnknownProbe is the probe recorded before any filesystem access.
func UnknownProbe() Probe {
	return Probe{EntriesCount: EntryCountUnknown}
}

// Host identifies the process that produced a result.
type Host struct {
	PID      int
	Hostname string
	Cwd      string
}

// PathResult is the terminal record for one candidate.
type PathResult struct {
	Index         int
	Path          string
	Probe         Probe
	EmptyVerified bool
	Deleted       bool
	Status        Status
	Reason        Reason
	Message       string
	Duration      time.Duration
	Timestamp     time.Time
	Host          Host
}

// DurationMs is the processing time in fractional milliseconds.
func (r PathResult) DurationMs() float64 {
	return float64(r.Duration) / float64(time.Millisecond)
}

// Consistent checks the invariants every terminal result must satisfy.
func (r PathResult) Consistent() bool {
	if r.Status == StatusDeleted && (!r.EmptyVerified || !r.Deleted) {
		return false
	}
	if r.Deleted && r.Status != StatusDeleted {
		return false
	}
	if r.EmptyVerified && (r.Probe.EntriesCount != 0 || !r.Probe.IsDir) {
		return false
	}
	hasReason := r.Reason != ReasonNone
	needsReason := r.Status == StatusSkipped || r.Status == StatusError
	return hasReason == needsReason
}
