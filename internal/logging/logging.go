package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const diagnosticsFile = "dirsweep.log"

// Verbosity levels as set by -q and -v.
const (
	Quiet   = -1
	Normal  = 0
	Verbose = 1
)

// Logger is a leveled wrapper around the standard logger.
// Output format: [LEVEL] msg key=value ...
type Logger struct {
	*log.Logger
	verbosity int

	mu     sync.Mutex
	closer io.Closer
}

// New creates a logger writing to w.
func New(w io.Writer, verbosity int) *Logger {
	return &Logger{
		Logger:    log.New(w, "", log.LstdFlags|log.Lmicroseconds),
		verbosity: verbosity,
	}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return New(io.Discard, Quiet)
}

// NewWithFile creates a logger writing to w and to dir/dirsweep.log.
// The diagnostics file is rotated once it is older than rotationDays. If the
// file cannot be opened the logger falls back to w alone.
func NewWithFile(w io.Writer, verbosity int, dir string, rotationDays int) *Logger {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		l := New(w, verbosity)
		l.Error("failed to ensure log directory", "dir", dir, "error", err)
		return l
	}

	filePath := filepath.Join(dir, diagnosticsFile)
	if rotationDays <= 0 {
		rotationDays = 30
	}
	rotateLogsIfNeeded(filePath, rotationDays)

	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		l := New(w, verbosity)
		l.Error("failed to open log file", "path", filePath, "error", err)
		return l
	}

	l := New(io.MultiWriter(w, f), verbosity)
	l.closer = f
	return l
}

// Close releases the diagnostics file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closer == nil {
		return nil
	}
	err := l.closer.Close()
	l.closer = nil
	return err
}

// Verbosity returns the configured level.
func (l *Logger) Verbosity() int {
	return l.verbosity
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	if l.verbosity >= Verbose {
		l.logWithLevel("DEBUG", msg, args...)
	}
}

func (l *Logger) Info(msg string, args ...interface{}) {
	if l.verbosity >= Normal {
		l.logWithLevel("INFO", msg, args...)
	}
}

func (l *Logger) Error(msg string, args ...interface{}) {
	l.logWithLevel("ERROR", msg, args...)
}

func (l *Logger) logWithLevel(level, msg string, args ...interface{}) {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(level)
	b.WriteString("] ")
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
		} else {
			fmt.Fprintf(&b, " %v", args[i])
		}
	}
	l.Logger.Println(b.String())
}

// rotateLogsIfNeeded renames the log once it is older than rotationDays and
// prunes rotated copies past the same age.
func rotateLogsIfNeeded(logPath string, rotationDays int) {
	info, err := os.Stat(logPath)
	if err != nil {
		return
	}

	cutoffTime := time.Now().AddDate(0, 0, -rotationDays)
	if info.ModTime().Before(cutoffTime) {
		timestamp := info.ModTime().Format("20060102-150405")
		rotatedPath := logPath + "." + timestamp

		if err := os.Rename(logPath, rotatedPath); err != nil {
			log.Printf("failed to rotate log file: %v", err)
			return
		}

		PruneOld(filepath.Dir(logPath), filepath.Base(logPath)+".", rotationDays)
	}
}

// PruneOld removes regular files in dir whose name starts with prefix and
// whose modification time is older than days. It returns how many were
// removed.
func PruneOld(dir, prefix string, days int) int {
	if days <= 0 {
		return 0
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}

	cutoffTime := time.Now().AddDate(0, 0, -days)
	removed := 0

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, prefix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoffTime) {
			fullPath := filepath.Join(dir, name)
			if err := os.Remove(fullPath); err != nil {
				log.Printf("failed to remove old log file %s: %v", fullPath, err)
				continue
			}
			removed++
		}
	}
	return removed
}
