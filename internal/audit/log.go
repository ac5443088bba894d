package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"dirsweep/internal/logging"
	"dirsweep/internal/model"
)

const (
	// DefaultDirName is the project-local log directory under the cwd.
	DefaultDirName = ".project_logs"
	// FilePrefix starts every audit log file name.
	FilePrefix = "empty_delete_"

	appName = "dirsweep"
)

var errClosed = errors.New("audit: log closed")

// Log is an append-only JSON Lines audit log. Every Record writes one
// complete line and syncs it to disk before returning.
type Log struct {
	path string
	file *os.File
	mu   sync.Mutex
}

// Open opens (or creates) an audit log for appending, creating parent
// directories as needed.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("audit: create directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("audit: open file: %w", err)
	}
	return &Log{path: path, file: file}, nil
}

// OpenWithFallback opens path, or a file of the same name in the user's
// state directory when path cannot be opened.
func OpenWithFallback(path string) (*Log, error) {
	l, err := Open(path)
	if err == nil {
		return l, nil
	}

	dir, dirErr := FallbackDir()
	if dirErr != nil {
		return nil, errors.Join(err, dirErr)
	}
	fallback := filepath.Join(dir, filepath.Base(path))
	l, fbErr := Open(fallback)
	if fbErr != nil {
		return nil, errors.Join(err, fbErr)
	}
	return l, nil
}

// DefaultPath is cwd/.project_logs/empty_delete_<UTC timestamp>.jsonl.
func DefaultPath(cwd string, now time.Time) string {
	return filepath.Join(cwd, DefaultDirName, FileName(now))
}

// FileName is the audit log file name for a run started at now.
func FileName(now time.Time) string {
	return FilePrefix + now.UTC().Format("20060102_150405") + ".jsonl"
}

// FallbackDir is $XDG_STATE_HOME/dirsweep/logs, defaulting to
// ~/.local/state/dirsweep/logs.
func FallbackDir() (string, error) {
	stateHome := os.Getenv("XDG_STATE_HOME")
	if stateHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("audit: resolve home: %w", err)
		}
		stateHome = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(stateHome, appName, "logs"), nil
}

// Prune removes audit logs in dir older than days.
func Prune(dir string, days int) int {
	return logging.PruneOld(dir, FilePrefix, days)
}

// Path is the file being written.
func (l *Log) Path() string {
	return l.path
}

// Record appends one entry as a single line and syncs it.
func (l *Log) Record(entry Entry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("audit: marshal entry: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return errClosed
	}
	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("audit: write entry: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("audit: sync: %w", err)
	}
	return nil
}

// Accept implements sink.Sink.
func (l *Log) Accept(r model.PathResult) error {
	return l.Record(NewEntry(r))
}

// Complete implements sink.Sink; the file stays open until Close.
func (l *Log) Complete(model.Summary) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	return l.file.Sync()
}

// Close flushes and closes the underlying file. Safe to call twice.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// ReadEntries parses every line of an audit log.
func ReadEntries(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audit: open: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return entries, fmt.Errorf("audit: line %d: %w", line, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("audit: scan: %w", err)
	}
	return entries, nil
}
