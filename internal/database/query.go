package database

import (
	"database/sql"
	"time"
)

// ResultRecord is one stored per-path decision.
type ResultRecord struct {
	ID            int64     `json:"id"`
	RunID         int64     `json:"run_id"`
	Timestamp     time.Time `json:"ts"`
	Path          string    `json:"path"`
	Status        string    `json:"status"`
	Reason        string    `json:"reason,omitempty"`
	Exists        bool      `json:"exists"`
	IsDir         bool      `json:"is_dir"`
	IsSymlink     bool      `json:"is_symlink"`
	EntriesCount  int       `json:"entries_count"`
	EmptyVerified bool      `json:"empty_verified"`
	Deleted       bool      `json:"deleted"`
	DurationMs    float64   `json:"duration_ms"`
	Message       string    `json:"message,omitempty"`
}

// RunRecord is one stored run.
type RunRecord struct {
	ID             int64     `json:"id"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	Host           string    `json:"host"`
	Cwd            string    `json:"cwd"`
	PID            int       `json:"pid"`
	Workers        int       `json:"workers"`
	FollowSymlinks bool      `json:"follow_symlinks"`
	Candidates     int       `json:"candidates"`
	Total          int       `json:"total"`
	Deleted        int       `json:"deleted"`
	Skipped        int       `json:"skipped"`
	Errors         int       `json:"errors"`
	ElapsedSeconds float64   `json:"elapsed_seconds"`
	Interrupted    bool      `json:"interrupted"`
	LogPath        string    `json:"log_path,omitempty"`
}

const resultColumns = `
	SELECT id, run_id, ts, path, status, reason, exists_flag, is_dir, is_symlink,
	       entries_count, empty_verified, deleted, duration_ms, message
	FROM results
`

// GetRecentResults returns the N most recent results
func (d *HistoryDB) GetRecentResults(limit int) ([]ResultRecord, error) {
	return d.queryResults(resultColumns+`ORDER BY ts DESC, id DESC LIMIT ?`, limit)
}

// GetResultsByRun returns every result of one run in insertion order
func (d *HistoryDB) GetResultsByRun(runID int64) ([]ResultRecord, error) {
	return d.queryResults(resultColumns+`WHERE run_id = ? ORDER BY id`, runID)
}

// GetResultsByStatus returns results filtered by status (deleted, skipped, error)
func (d *HistoryDB) GetResultsByStatus(status string) ([]ResultRecord, error) {
	return d.queryResults(resultColumns+`WHERE status = ? ORDER BY ts DESC, id DESC`, status)
}

// GetResultsByReason returns results filtered by reason
func (d *HistoryDB) GetResultsByReason(reason string) ([]ResultRecord, error) {
	return d.queryResults(resultColumns+`WHERE reason = ? ORDER BY ts DESC, id DESC`, reason)
}

// GetResultsByPath returns results matching a path pattern (SQL LIKE syntax)
func (d *HistoryDB) GetResultsByPath(pathPattern string) ([]ResultRecord, error) {
	return d.queryResults(resultColumns+`WHERE path LIKE ? ORDER BY ts DESC, id DESC`, pathPattern)
}

// GetResultsByDateRange returns results within a time range
func (d *HistoryDB) GetResultsByDateRange(start, end time.Time) ([]ResultRecord, error) {
	return d.queryResults(resultColumns+`WHERE ts BETWEEN ? AND ? ORDER BY ts DESC, id DESC`,
		formatTime(start), formatTime(end))
}

// GetCountByReason returns count of results grouped by reason since a time
func (d *HistoryDB) GetCountByReason(since time.Time) (map[string]int, error) {
	return d.countBy(`
	SELECT COALESCE(reason, ''), COUNT(*)
	FROM results
	WHERE ts >= ? AND reason IS NOT NULL
	GROUP BY reason
	`, formatTime(since))
}

// GetCountByStatus returns count of results grouped by status since a time
func (d *HistoryDB) GetCountByStatus(since time.Time) (map[string]int, error) {
	return d.countBy(`
	SELECT status, COUNT(*)
	FROM results
	WHERE ts >= ?
	GROUP BY status
	`, formatTime(since))
}

// Stats holds aggregated statistics
type Stats struct {
	Runs         int            `json:"runs"`
	TotalDeleted int            `json:"total_deleted"`
	TotalSkipped int            `json:"total_skipped"`
	TotalErrors  int            `json:"total_errors"`
	ByReason     map[string]int `json:"by_reason"`
	StartDate    time.Time      `json:"start_date"`
	EndDate      time.Time      `json:"end_date"`
}

// GetStats returns statistics for the last N days
func (d *HistoryDB) GetStats(days int) (*Stats, error) {
	now := time.Now()
	since := now.AddDate(0, 0, -days)

	stats := &Stats{
		StartDate: since,
		EndDate:   now,
	}

	if err := d.db.QueryRow(`SELECT COUNT(*) FROM runs WHERE started_at >= ?`,
		formatTime(since)).Scan(&stats.Runs); err != nil {
		return nil, err
	}

	byStatus, err := d.GetCountByStatus(since)
	if err != nil {
		return nil, err
	}
	stats.TotalDeleted = byStatus["deleted"]
	stats.TotalSkipped = byStatus["skipped"]
	stats.TotalErrors = byStatus["error"]

	stats.ByReason, err = d.GetCountByReason(since)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// GetRecentRuns returns the N most recent runs
func (d *HistoryDB) GetRecentRuns(limit int) ([]RunRecord, error) {
	rows, err := d.db.Query(`
	SELECT id, started_at, finished_at, host, cwd, pid, workers, follow_symlinks,
	       candidates, total, deleted, skipped, errors, elapsed_seconds, interrupted, log_path
	FROM runs
	ORDER BY started_at DESC, id DESC
	LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var started string
		var finished, host, cwd, logPath sql.NullString
		var pid sql.NullInt64
		if err := rows.Scan(
			&r.ID, &started, &finished, &host, &cwd, &pid, &r.Workers, &r.FollowSymlinks,
			&r.Candidates, &r.Total, &r.Deleted, &r.Skipped, &r.Errors,
			&r.ElapsedSeconds, &r.Interrupted, &logPath,
		); err != nil {
			return nil, err
		}
		r.StartedAt = parseTime(started)
		if finished.Valid {
			r.FinishedAt = parseTime(finished.String)
		}
		r.Host = host.String
		r.Cwd = cwd.String
		r.PID = int(pid.Int64)
		r.LogPath = logPath.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// DeleteOldRecords removes results and runs older than specified days
func (d *HistoryDB) DeleteOldRecords(olderThanDays int) (int64, error) {
	cutoff := formatTime(time.Now().AddDate(0, 0, -olderThanDays))

	result, err := d.db.Exec(`DELETE FROM results WHERE ts < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	if _, err := d.db.Exec(`
		DELETE FROM runs
		WHERE started_at < ? AND id NOT IN (SELECT DISTINCT run_id FROM results)
	`, cutoff); err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (d *HistoryDB) countBy(query string, args ...interface{}) (map[string]int, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		counts[key] = count
	}
	return counts, rows.Err()
}

// queryResults executes a result query and scans every row
func (d *HistoryDB) queryResults(query string, args ...interface{}) ([]ResultRecord, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ResultRecord
	for rows.Next() {
		var r ResultRecord
		var ts string
		var reason, msg sql.NullString

		err := rows.Scan(
			&r.ID, &r.RunID, &ts, &r.Path, &r.Status, &reason,
			&r.Exists, &r.IsDir, &r.IsSymlink, &r.EntriesCount,
			&r.EmptyVerified, &r.Deleted, &r.DurationMs, &msg,
		)
		if err != nil {
			return nil, err
		}
		r.Timestamp = parseTime(ts)
		r.Reason = reason.String
		r.Message = msg.String

		records = append(records, r)
	}

	return records, rows.Err()
}
