// Package render presents the result stream to the operator, either as
// plain lines or as a live terminal view.
package render

import (
	"fmt"
	"io"

	"dirsweep/internal/logging"
	"dirsweep/internal/model"
)

// Plain writes one line per result and a final summary line. At normal
// verbosity only deletions and errors are shown; -v shows skips too and
// -q shows errors only.
type Plain struct {
	w         io.Writer
	verbosity int
	summary   bool
}

// NewPlain creates a plain renderer. When summary is false the final line is
// left to the caller (for example when --json prints it).
func NewPlain(w io.Writer, verbosity int, summary bool) *Plain {
	return &Plain{w: w, verbosity: verbosity, summary: summary}
}

func (p *Plain) Accept(r model.PathResult) error {
	if !p.shows(r.Status) {
		return nil
	}
	_, err := fmt.Fprintln(p.w, FormatResult(r))
	return err
}

func (p *Plain) Complete(s model.Summary) error {
	if !p.summary {
		return nil
	}
	_, err := fmt.Fprintln(p.w, FormatSummary(s))
	return err
}

func (p *Plain) shows(s model.Status) bool {
	switch {
	case s == model.StatusError:
		return true
	case p.verbosity <= logging.Quiet:
		return false
	case s == model.StatusDeleted:
		return true
	default:
		return p.verbosity >= logging.Verbose
	}
}

// FormatResult renders one result as a single line.
func FormatResult(r model.PathResult) string {
	line := fmt.Sprintf("%-7s %s", r.Status, r.Path)
	if r.Reason != model.ReasonNone {
		line += " (" + string(r.Reason) + ")"
	}
	if r.Message != "" {
		line += ": " + r.Message
	}
	return line
}

// FormatSummary renders the run summary as a single line.
func FormatSummary(s model.Summary) string {
	line := fmt.Sprintf("total=%d deleted=%d skipped=%d errors=%d elapsed=%.3fs",
		s.Total, s.Deleted, s.Skipped, s.Errors, s.ElapsedSeconds)
	if s.Interrupted {
		line += fmt.Sprintf(" interrupted unprocessed=%d", s.Unprocessed)
	}
	return line
}
