package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"dirsweep/internal/model"
)

// flushEvery is how many results a Recorder buffers per transaction.
const flushEvery = 256

// HistoryDB stores every run and every per-path decision in SQLite.
type HistoryDB struct {
	db *sql.DB
}

// RunInfo describes a run when it starts.
type RunInfo struct {
	StartedAt      time.Time
	Host           model.Host
	Workers        int
	FollowSymlinks bool
	Candidates     int
	LogPath        string
}

// NewHistoryDB creates a new database connection and initializes schema
func NewHistoryDB(dbPath string) (*HistoryDB, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	// A query rather than Ping so the file is created immediately.
	if _, err = db.Exec("SELECT 1"); err != nil {
		return nil, fmt.Errorf("failed to initialize database (check permissions on %s): %w", dbPath, err)
	}

	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err = db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	hdb := &HistoryDB{db: db}
	if err = hdb.initSchema(); err != nil {
		return nil, err
	}
	return hdb, nil
}

// initSchema creates tables and indexes if they don't exist
func (d *HistoryDB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		host TEXT,
		cwd TEXT,
		pid INTEGER,
		workers INTEGER NOT NULL,
		follow_symlinks INTEGER NOT NULL,
		candidates INTEGER NOT NULL,
		total INTEGER NOT NULL DEFAULT 0,
		deleted INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		errors INTEGER NOT NULL DEFAULT 0,
		elapsed_seconds REAL NOT NULL DEFAULT 0,
		interrupted INTEGER NOT NULL DEFAULT 0,
		log_path TEXT
	);

	CREATE TABLE IF NOT EXISTS results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id),
		ts TEXT NOT NULL,
		path TEXT NOT NULL,
		status TEXT NOT NULL,
		reason TEXT,
		exists_flag INTEGER NOT NULL,
		is_dir INTEGER NOT NULL,
		is_symlink INTEGER NOT NULL,
		entries_count INTEGER NOT NULL,
		empty_verified INTEGER NOT NULL,
		deleted INTEGER NOT NULL,
		duration_ms REAL NOT NULL,
		message TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_results_run ON results(run_id);
	CREATE INDEX IF NOT EXISTS idx_results_ts ON results(ts);
	CREATE INDEX IF NOT EXISTS idx_results_status ON results(status);
	CREATE INDEX IF NOT EXISTS idx_results_reason ON results(reason);
	CREATE INDEX IF NOT EXISTS idx_results_path ON results(path);

	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := d.db.Exec(schema)
	return err
}

// BeginRun inserts a run row and returns its id.
func (d *HistoryDB) BeginRun(info RunInfo) (int64, error) {
	res, err := d.db.Exec(`
		INSERT INTO runs (started_at, host, cwd, pid, workers, follow_symlinks, candidates, log_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		formatTime(info.StartedAt),
		info.Host.Hostname,
		info.Host.Cwd,
		info.Host.PID,
		info.Workers,
		info.FollowSymlinks,
		info.Candidates,
		nullString(info.LogPath),
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	return res.LastInsertId()
}

// FinishRun stores the summary of a run.
func (d *HistoryDB) FinishRun(runID int64, s model.Summary, finishedAt time.Time) error {
	_, err := d.db.Exec(`
		UPDATE runs
		SET finished_at = ?, total = ?, deleted = ?, skipped = ?, errors = ?,
		    elapsed_seconds = ?, interrupted = ?
		WHERE id = ?`,
		formatTime(finishedAt), s.Total, s.Deleted, s.Skipped, s.Errors,
		s.ElapsedSeconds, s.Interrupted, runID,
	)
	if err != nil {
		return fmt.Errorf("update run %d: %w", runID, err)
	}
	return nil
}

const insertResult = `
	INSERT INTO results (
		run_id, ts, path, status, reason,
		exists_flag, is_dir, is_symlink, entries_count,
		empty_verified, deleted, duration_ms, message
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// RecordResults inserts results for a run in one transaction.
func (d *HistoryDB) RecordResults(runID int64, results []model.PathResult) error {
	if len(results) == 0 {
		return nil
	}
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.Prepare(insertResult)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range results {
		_, err := stmt.Exec(
			runID,
			formatTime(r.Timestamp),
			r.Path,
			string(r.Status),
			nullString(string(r.Reason)),
			r.Probe.Exists,
			r.Probe.IsDir,
			r.Probe.IsSymlink,
			r.Probe.EntriesCount,
			r.EmptyVerified,
			r.Deleted,
			r.DurationMs(),
			nullString(r.Message),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("insert result %s: %w", r.Path, err)
		}
	}
	return tx.Commit()
}

// Recorder adapts a run in the database to the result sink interface.
// Results are buffered and written in batches.
type Recorder struct {
	db      *HistoryDB
	runID   int64
	pending []model.PathResult
}

// Recorder returns a sink that records into run runID.
func (d *HistoryDB) Recorder(runID int64) *Recorder {
	return &Recorder{db: d, runID: runID}
}

// RunID is the run this recorder writes to.
func (r *Recorder) RunID() int64 {
	return r.runID
}

func (r *Recorder) Accept(res model.PathResult) error {
	r.pending = append(r.pending, res)
	if len(r.pending) < flushEvery {
		return nil
	}
	return r.flush()
}

func (r *Recorder) Complete(s model.Summary) error {
	if err := r.flush(); err != nil {
		return err
	}
	return r.db.FinishRun(r.runID, s, time.Now())
}

func (r *Recorder) flush() error {
	batch := r.pending
	r.pending = nil
	return r.db.RecordResults(r.runID, batch)
}

// Close closes the database connection
func (d *HistoryDB) Close() error {
	return d.db.Close()
}

// Vacuum optimizes the database (run periodically)
func (d *HistoryDB) Vacuum() error {
	_, err := d.db.Exec("VACUUM")
	return err
}

// timeLayout has fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
