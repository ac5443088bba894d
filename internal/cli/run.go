package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"dirsweep/internal/audit"
	"dirsweep/internal/cleanup"
	"dirsweep/internal/config"
	"dirsweep/internal/database"
	"dirsweep/internal/exitcodes"
	"dirsweep/internal/logging"
	"dirsweep/internal/metrics"
	"dirsweep/internal/model"
	"dirsweep/internal/render"
	"dirsweep/internal/safety"
	"dirsweep/internal/scheduler"
	"dirsweep/internal/sink"
)

// eventBuffer bounds results waiting for the sink goroutine.
const eventBuffer = 1024

// settings is the merged view of the config file and the flags.
type settings struct {
	workers        int
	followSymlinks bool
	dedupe         bool
	restrictTo     []string
	allowRoots     []string
	protectedRoots []string
	logPath        string
	logDir         string
	logDisabled    bool
	retentionDays  int
	diagnostics    bool
	dbPath         string
	metricsFile    string
	metricsListen  string
	maxCPUPercent  float64
}

func mergeSettings(cmd *cobra.Command, opts *options, cfg *config.Config) settings {
	s := settings{
		workers:        cfg.Workers,
		followSymlinks: cfg.FollowSymlinks,
		dedupe:         cfg.DedupeEnabled(),
		restrictTo:     cfg.RestrictTo,
		allowRoots:     cfg.AllowRoots,
		protectedRoots: cfg.ProtectedRoots,
		logPath:        cfg.Log.Path,
		logDir:         cfg.Log.Dir,
		logDisabled:    cfg.Log.Disabled,
		retentionDays:  cfg.Log.RetentionDays,
		diagnostics:    cfg.Log.Diagnostics,
		dbPath:         cfg.DatabasePath,
		metricsFile:    cfg.Metrics.Textfile,
		metricsListen:  cfg.Metrics.Listen,
		maxCPUPercent:  cfg.ResourceLimits.MaxCPUPercent,
	}

	changed := cmd.Flags().Changed
	if changed("workers") {
		s.workers = opts.workers
	}
	if changed("follow-symlinks") {
		s.followSymlinks = opts.followSymlinks
	}
	if changed("no-dedupe") {
		s.dedupe = !opts.noDedupe
	}
	if changed("restrict-to") {
		s.restrictTo = opts.restrictTo
	}
	if changed("allow-root") {
		s.allowRoots = append(append([]string(nil), s.allowRoots...), opts.allowRoots...)
	}
	if changed("log") {
		s.logPath = opts.logPath
	}
	if changed("no-log") {
		s.logDisabled = opts.noLog
	}
	if changed("db") {
		s.dbPath = opts.dbPath
	}
	if changed("metrics-textfile") {
		s.metricsFile = opts.metricsFile
	}
	if changed("metrics-listen") {
		s.metricsListen = opts.metricsListen
	}
	if changed("max-cpu") {
		s.maxCPUPercent = opts.maxCPUPercent
	}
	return s
}

func (s settings) metricsEnabled() bool {
	return s.metricsFile != "" || s.metricsListen != ""
}

// normalizeRoots expands and absolutizes root flags the same way candidates
// are normalized. Invalid entries are a usage error.
func normalizeRoots(flag string, roots []string) ([]string, error) {
	out := make([]string, 0, len(roots))
	for _, r := range roots {
		p, err := safety.NormalizePath(r)
		if err != nil {
			return nil, fmt.Errorf("--%s %q: %w", flag, r, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func run(cmd *cobra.Command, opts *options, args []string, streams Streams) (int, error) {
	start := time.Now()

	cfg, err := config.LoadOptional(opts.configPath)
	if err != nil {
		return exitcodes.InvalidConfig, withCode(exitcodes.InvalidConfig, err)
	}
	st := mergeSettings(cmd, opts, cfg)
	if st.maxCPUPercent < 0 || st.maxCPUPercent > 100 {
		return exitcodes.InvalidUsage, withCode(exitcodes.InvalidUsage, errors.New("--max-cpu must be between 0 and 100"))
	}

	raw, err := collectInputs(args, opts.fromFiles, opts.useStdin, streams.In)
	if err != nil {
		return exitcodes.InvalidUsage, withCode(exitcodes.InvalidUsage, err)
	}
	if len(raw) == 0 {
		return exitcodes.InvalidUsage, withCode(exitcodes.InvalidUsage, errors.New("no paths given (use arguments, --from-file or --stdin)"))
	}

	restrictTo, err := normalizeRoots("restrict-to", st.restrictTo)
	if err != nil {
		return exitcodes.InvalidUsage, withCode(exitcodes.InvalidUsage, err)
	}
	allowRoots, err := normalizeRoots("allow-root", st.allowRoots)
	if err != nil {
		return exitcodes.InvalidUsage, withCode(exitcodes.InvalidUsage, err)
	}

	live := !opts.noRich && !opts.jsonOutput && !opts.quiet && isTerminal(streams.Out)

	// The live view owns the terminal; stderr then carries errors only.
	verbosity := opts.verbosity()
	if live {
		verbosity = logging.Quiet
	}
	host := cleanup.CurrentHost()
	logger := newLogger(streams, verbosity, st, host.Cwd)
	defer logger.Close()

	candidates := safety.BuildCandidates(raw, st.dedupe)
	logger.Debug("collected candidates", "inputs", len(raw), "candidates", len(candidates))

	policy := safety.NewPolicy(safety.PolicyOptions{
		RepoRoot:       safety.DetectRepoRoot(host.Cwd),
		ProtectedRoots: st.protectedRoots,
		AllowRoots:     allowRoots,
		RestrictTo:     restrictTo,
	})

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, finishing paths in progress", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	workers := scheduler.ClampWorkers(st.workers)
	var sinks []sink.Sink

	var auditLog *audit.Log
	if !st.logDisabled {
		auditLog, err = openAuditLog(st, host.Cwd, start)
		if err != nil {
			return exitcodes.RuntimeError, withCode(exitcodes.RuntimeError, err)
		}
		defer auditLog.Close()
		if n := audit.Prune(filepath.Dir(auditLog.Path()), st.retentionDays); n > 0 {
			logger.Debug("pruned old audit logs", "removed", n)
		}
		logger.Info("audit log", "path", auditLog.Path())
		sinks = append(sinks, auditLog)
	}

	if st.dbPath != "" {
		db, err := database.NewHistoryDB(st.dbPath)
		if err != nil {
			return exitcodes.RuntimeError, withCode(exitcodes.RuntimeError, err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Error("failed to close database", "error", err)
			}
		}()
		info := database.RunInfo{
			StartedAt:      start,
			Host:           host,
			Workers:        workers,
			FollowSymlinks: st.followSymlinks,
			Candidates:     len(candidates),
		}
		if auditLog != nil {
			info.LogPath = auditLog.Path()
		}
		runID, err := db.BeginRun(info)
		if err != nil {
			return exitcodes.RuntimeError, withCode(exitcodes.RuntimeError, err)
		}
		logger.Debug("recording run", "db", st.dbPath, "run_id", runID)
		sinks = append(sinks, db.Recorder(runID))
	}

	schedOpts := scheduler.Options{
		Workers:       workers,
		MaxCPUPercent: st.maxCPUPercent,
	}
	if st.metricsEnabled() {
		sinks = append(sinks, metrics.NewSink())
		schedOpts.OnActive = metrics.SetActiveWorkers
		if st.metricsListen != "" {
			if err := metrics.StartServer(st.metricsListen, logger); err != nil {
				return exitcodes.RuntimeError, withCode(exitcodes.RuntimeError, err)
			}
			defer metrics.Shutdown(context.Background(), logger)
		}
		metrics.SetRunning(true)
		defer metrics.SetRunning(false)
	}

	if live {
		in := streams.In
		if opts.useStdin {
			// stdin carried the paths
			in = nil
		}
		sinks = append(sinks, render.NewLive(streams.Out, in, len(candidates), cancel))
	} else {
		sinks = append(sinks, render.NewPlain(streams.Out, opts.verbosity(), !opts.jsonOutput))
	}

	var sinkFailures atomic.Int64
	dispatcher := sink.NewDispatcher(eventBuffer, logger, sinks...)
	dispatcher.OnError(func(error) {
		sinkFailures.Add(1)
		if st.metricsEnabled() {
			metrics.IncSinkErrors()
		}
	})

	cleaner := cleanup.NewCleaner(policy, st.followSymlinks, host, logger)
	summary := scheduler.RunOnce(ctx, candidates, cleaner, dispatcher.Publish, schedOpts, logger)

	if err := dispatcher.Close(summary); err != nil {
		logger.Error("result sinks reported errors on completion", "error", err)
	}

	if st.metricsFile != "" {
		if err := metrics.WriteTextfile(st.metricsFile); err != nil {
			logger.Error("failed to write metrics textfile", "error", err)
		}
	}

	if opts.jsonOutput {
		enc := json.NewEncoder(streams.Out)
		if err := enc.Encode(summary); err != nil {
			return exitcodes.RuntimeError, withCode(exitcodes.RuntimeError, err)
		}
	}

	if n := sinkFailures.Load(); n > 0 {
		logger.Error("result sinks failed during the run", "failures", n)
	}

	return exitCode(summary), nil
}

// exitCode maps a finished run to the process exit status. An interrupted
// run did not finish its input and never reports success.
func exitCode(s model.Summary) int {
	if s.Interrupted || s.Errors > 0 {
		return exitcodes.PathErrors
	}
	return exitcodes.Success
}

func newLogger(streams Streams, verbosity int, st settings, cwd string) *logging.Logger {
	if !st.diagnostics {
		return logging.New(streams.Err, verbosity)
	}
	dir := st.logDir
	if dir == "" {
		dir = filepath.Join(cwd, audit.DefaultDirName)
	}
	return logging.NewWithFile(streams.Err, verbosity, dir, st.retentionDays)
}

// openAuditLog opens the explicit log path as given, or the default
// timestamped file with a fallback to the user's state directory.
func openAuditLog(st settings, cwd string, now time.Time) (*audit.Log, error) {
	if st.logPath != "" {
		p, err := safety.NormalizePath(st.logPath)
		if err != nil {
			return nil, fmt.Errorf("--log %q: %w", st.logPath, err)
		}
		return audit.Open(p)
	}
	if st.logDir != "" {
		return audit.OpenWithFallback(filepath.Join(st.logDir, audit.FileName(now)))
	}
	return audit.OpenWithFallback(audit.DefaultPath(cwd, now))
}

func isTerminal(w interface{}) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
