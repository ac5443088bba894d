// Package cli implements the dirsweep command line.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"dirsweep/internal/exitcodes"
	"dirsweep/internal/logging"
)

// Streams are the process's standard streams.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// StdStreams returns the real standard streams.
func StdStreams() Streams {
	return Streams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

type options struct {
	fromFiles      []string
	useStdin       bool
	followSymlinks bool
	noDedupe       bool
	restrictTo     []string
	allowRoots     []string
	workers        int
	logPath        string
	noLog          bool
	noRich         bool
	jsonOutput     bool
	quiet          bool
	verbose        int
	configPath     string
	dbPath         string
	metricsFile    string
	metricsListen  string
	maxCPUPercent  float64
}

func (o *options) verbosity() int {
	switch {
	case o.quiet:
		return logging.Quiet
	case o.verbose > 0:
		return logging.Verbose
	default:
		return logging.Normal
	}
}

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

// NewRootCommand builds the dirsweep command. The exit code of a completed
// run is stored in *code.
func NewRootCommand(version string, streams Streams, code *int) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "dirsweep [flags] PATH...",
		Short: "Delete directories that are verified empty",
		Long: `dirsweep deletes each candidate directory only if it is empty at the
moment of deletion. Nothing is ever removed recursively. Every decision is
appended to a JSON Lines audit log.

Candidates come from positional arguments, --from-file and --stdin.

Examples:
  dirsweep build/tmp/a build/tmp/b
  find . -type d -empty | dirsweep --stdin
  dirsweep -f candidates.txt --restrict-to ~/projects --json`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := run(cmd, opts, args, streams)
			*code = c
			return err
		},
	}
	cmd.SetIn(streams.In)
	cmd.SetOut(streams.Out)
	cmd.SetErr(streams.Err)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return withCode(exitcodes.InvalidUsage, err)
	})

	f := cmd.Flags()
	f.StringArrayVarP(&opts.fromFiles, "from-file", "f", nil, "read newline-delimited paths from file (repeatable)")
	f.BoolVar(&opts.useStdin, "stdin", false, "read newline-delimited paths from stdin")
	f.BoolVar(&opts.followSymlinks, "follow-symlinks", false, "probe and delete the target of a symlinked directory")
	f.BoolVar(&opts.noDedupe, "no-dedupe", false, "process repeated paths again instead of dropping them")
	f.StringArrayVar(&opts.restrictTo, "restrict-to", nil, "only delete inside this subtree (repeatable)")
	f.StringArrayVar(&opts.allowRoots, "allow-root", nil, "allow deleting this exact protected root (repeatable)")
	f.IntVarP(&opts.workers, "workers", "w", 0, "number of concurrent workers (default min(32, 4 x CPUs))")
	f.StringVar(&opts.logPath, "log", "", "audit log file (default ./.project_logs/empty_delete_<ts>.jsonl)")
	f.BoolVar(&opts.noLog, "no-log", false, "do not write the audit log")
	f.BoolVar(&opts.noRich, "no-rich", false, "plain line output even on a terminal")
	f.BoolVar(&opts.jsonOutput, "json", false, "print the summary as JSON on stdout")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "only report errors")
	f.CountVarP(&opts.verbose, "verbose", "v", "report every result and debug diagnostics")
	f.StringVar(&opts.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/dirsweep/config.yaml if present)")
	f.StringVar(&opts.dbPath, "db", "", "record the run in this SQLite history database")
	f.StringVar(&opts.metricsFile, "metrics-textfile", "", "write Prometheus metrics to this textfile at the end of the run")
	f.StringVar(&opts.metricsListen, "metrics-listen", "", "serve /metrics and /health on this address during the run")
	f.Float64Var(&opts.maxCPUPercent, "max-cpu", 0, "per-worker CPU budget in percent (0 = unlimited)")
	cmd.MarkFlagsMutuallyExclusive("quiet", "verbose")

	return cmd
}

// Execute runs the command line and returns the process exit code.
func Execute(version string, args []string, streams Streams) int {
	code := exitcodes.Success
	cmd := NewRootCommand(version, streams, &code)
	cmd.SetArgs(args)

	err := cmd.Execute()
	if err == nil {
		return code
	}

	fmt.Fprintln(streams.Err, "dirsweep:", err)
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	// cobra rejects unknown commands and bad arguments before RunE runs
	return exitcodes.InvalidUsage
}
