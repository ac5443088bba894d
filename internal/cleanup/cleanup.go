package cleanup

import (
	"fmt"
	"os"
	"time"

	"dirsweep/internal/fsops"
	"dirsweep/internal/logging"
	"dirsweep/internal/model"
	"dirsweep/internal/probe"
	"dirsweep/internal/safety"
)

// Cleaner runs the per-path pipeline: policy guard, fresh emptiness probe,
// then a non-recursive removal. It holds no per-path state and is safe for
// concurrent use.
type Cleaner struct {
	policy   *safety.Policy
	verifier *probe.Verifier
	deleter  fsops.Deleter
	host     model.Host
	logger   *logging.Logger
}

// NewCleaner creates a Cleaner using the real filesystem deleter.
func NewCleaner(policy *safety.Policy, followSymlinks bool, host model.Host, logger *logging.Logger) *Cleaner {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Cleaner{
		policy: policy,
		verifier: &probe.Verifier{
			FollowSymlinks: followSymlinks,
			TargetCheck:    policy.Check,
		},
		deleter: fsops.OSDeleter{},
		host:    host,
		logger:  logger,
	}
}

// SetDeleter replaces the removal primitive (tests).
func (c *Cleaner) SetDeleter(d fsops.Deleter) {
	c.deleter = d
}

// CurrentHost captures pid, hostname and working directory for results.
func CurrentHost() model.Host {
	h := model.Host{PID: os.Getpid()}
	if name, err := os.Hostname(); err == nil {
		h.Hostname = name
	}
	if cwd, err := os.Getwd(); err == nil {
		h.Cwd = cwd
	}
	return h
}

// Process decides the fate of one candidate and returns its terminal result.
// It never panics and never returns without a status.
func (c *Cleaner) Process(cand model.Candidate) (res model.PathResult) {
	start := time.Now()
	res = model.PathResult{
		Index: cand.Index,
		Path:  cand.DisplayPath(),
		Probe: model.UnknownProbe(),
		Host:  c.host,
	}
	defer func() {
		res.Duration = time.Since(start)
		res.Timestamp = time.Now().UTC()
	}()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("panic while processing path", "path", res.Path, "panic", r)
			res.Deleted = false
			res.Status = model.StatusError
			res.Reason = model.ReasonIOError
			res.Message = fmt.Sprintf("internal error: %v", r)
		}
	}()

	if !cand.Valid() {
		res.Status = model.StatusSkipped
		res.Reason = model.ReasonInvalidPath
		res.Message = "path string could not be normalized"
		return res
	}

	if reason := c.policy.Check(cand.Path); reason != model.ReasonNone {
		res.Status = model.StatusSkipped
		res.Reason = reason
		if reason == model.ReasonPolicyBlocked {
			res.Message = "outside allowed restrict-to roots"
		}
		return res
	}

	// Always a fresh probe: this is the evidence for the removal below.
	out := c.verifier.Probe(cand.Path)
	res.Probe = out.Probe
	if out.Terminal() {
		res.Status = out.Status
		res.Reason = out.Reason
		res.Message = out.Message
		return res
	}
	res.EmptyVerified = out.EmptyVerified
	if !res.EmptyVerified {
		res.Status = model.StatusError
		res.Reason = model.ReasonIOError
		res.Message = "emptiness could not be verified"
		return res
	}

	if err := c.deleter.Rmdir(out.Target); err != nil {
		res.Status = model.StatusError
		res.Reason = fsops.RemovalReason(err)
		res.Message = err.Error()
		if fsops.IsNotEmpty(err) {
			res.Message = "directory not empty at deletion time: " + err.Error()
		}
		c.logger.Debug("rmdir failed", "path", out.Target, "error", err)
		return res
	}

	res.Deleted = true
	res.Status = model.StatusDeleted
	if out.Target != cand.Path {
		res.Message = "deleted symlink target: " + out.Target
	}
	return res
}
