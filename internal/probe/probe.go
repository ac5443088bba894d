// Package probe verifies that a directory is empty at a single point in
// time. A probe is evidence for exactly one deletion attempt and must never
// be cached or reused.
package probe

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"dirsweep/internal/fsops"
	"dirsweep/internal/model"
)

// Verifier probes paths for emptiness.
type Verifier struct {
	FollowSymlinks bool
	// TargetCheck vets the resolved target of a followed symlink before it
	// is enumerated. It returns model.ReasonNone to permit it.
	TargetCheck func(path string) model.Reason
}

// Outcome is the result of one probe.
type Outcome struct {
	Probe model.Probe
	// Target is the directory that was enumerated and that a deletion must
	// act on. It differs from the probed path only for followed symlinks.
	Target        string
	EmptyVerified bool
	Reason        model.Reason
	Status        model.Status
	Message       string
}

// Terminal reports whether the probe already decided the path's fate.
func (o Outcome) Terminal() bool {
	return o.Reason != model.ReasonNone
}

// Probe examines path: existence, type, symlink-ness and whether the
// directory holds at least one entry.
func (v *Verifier) Probe(path string) Outcome {
	out := Outcome{Probe: model.UnknownProbe(), Target: path}

	linfo, err := os.Lstat(path)
	if err != nil {
		return out.statFailure(err)
	}
	out.Probe.Exists = true
	out.Probe.IsSymlink = linfo.Mode()&fs.ModeSymlink != 0

	expect := linfo
	if out.Probe.IsSymlink {
		tinfo, err := os.Stat(path)
		if err != nil || !tinfo.IsDir() {
			out = out.skip(model.ReasonNotDir)
			if err != nil {
				out.Message = fmt.Sprintf("symlink target unavailable: %v", err)
			}
			return out
		}
		out.Probe.IsDir = true
		if !v.FollowSymlinks {
			return out.skip(model.ReasonSymlinkDirRefused)
		}

		target, err := filepath.EvalSymlinks(path)
		if err != nil {
			return out.fail(model.ReasonIOError, err)
		}
		target = filepath.Clean(target)
		if v.TargetCheck != nil {
			if reason := v.TargetCheck(target); reason != model.ReasonNone {
				out = out.skip(reason)
				out.Message = "symlink target " + target + " is not permitted"
				return out
			}
		}
		out.Target = target
		expect = tinfo
	} else {
		if !linfo.IsDir() {
			return out.skip(model.ReasonNotDir)
		}
		out.Probe.IsDir = true
	}

	n, err := firstEntry(out.Target, expect)
	if err != nil {
		return out.enumFailure(err)
	}
	out.Probe.EntriesCount = n
	if n > 0 {
		return out.skip(model.ReasonNotEmpty)
	}

	out.EmptyVerified = true
	return out
}

// firstEntry opens dir and reads at most one name. It returns 0 for an
// empty directory and 1 when anything at all is present.
func firstEntry(dir string, expect fs.FileInfo) (int, error) {
	f, err := os.Open(dir)
	if err != nil {
		return model.EntryCountUnknown, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return model.EntryCountUnknown, err
	}
	if !info.IsDir() || (expect != nil && !os.SameFile(info, expect)) {
		return model.EntryCountUnknown, fmt.Errorf("%s: %w", dir, fsops.ErrChanged)
	}

	names, err := f.Readdirnames(1)
	if len(names) > 0 {
		return 1, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return 0, nil
	}
	return model.EntryCountUnknown, err
}

func (o Outcome) skip(reason model.Reason) Outcome {
	o.Reason = reason
	o.Status = model.StatusSkipped
	return o
}

func (o Outcome) fail(reason model.Reason, err error) Outcome {
	o.Reason = reason
	o.Status = model.StatusError
	o.Message = err.Error()
	return o
}

func (o Outcome) statFailure(err error) Outcome {
	switch {
	case fsops.IsNotExist(err):
		return o.skip(model.ReasonNotExists)
	case fsops.IsPermission(err):
		o = o.skip(model.ReasonPermissionDenied)
		o.Message = err.Error()
		return o
	default:
		return o.fail(model.ReasonIOError, err)
	}
}

func (o Outcome) enumFailure(err error) Outcome {
	o.Probe.EntriesCount = model.EntryCountUnknown
	switch {
	case errors.Is(err, fs.ErrNotExist):
		o.Probe.Exists = false
		o = o.skip(model.ReasonNotExists)
		o.Message = "directory no longer exists"
		return o
	case fsops.IsPermission(err):
		o = o.skip(model.ReasonPermissionDenied)
		o.Message = err.Error()
		return o
	default:
		// includes ENOTDIR and ErrChanged: the path changed type under us
		return o.fail(model.ReasonIOError, err)
	}
}
