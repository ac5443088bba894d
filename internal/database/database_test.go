package database

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"dirsweep/internal/model"
)

func newTestDB(t *testing.T) *HistoryDB {
	t.Helper()
	db, err := NewHistoryDB(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close database: %v", err)
		}
	})
	return db
}

func beginTestRun(t *testing.T, db *HistoryDB, candidates int) int64 {
	t.Helper()
	id, err := db.BeginRun(RunInfo{
		StartedAt:  time.Now(),
		Host:       model.Host{PID: 42, Hostname: "testhost", Cwd: "/work"},
		Workers:    4,
		Candidates: candidates,
	})
	if err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	return id
}

func result(path string, status model.Status, reason model.Reason) model.PathResult {
	r := model.PathResult{
		Path:      path,
		Probe:     model.Probe{Exists: true, IsDir: true, EntriesCount: 0},
		Status:    status,
		Reason:    reason,
		Duration:  1500 * time.Microsecond,
		Timestamp: time.Now(),
	}
	if status == model.StatusDeleted {
		r.EmptyVerified = true
		r.Deleted = true
	}
	return r
}

// TestDatabaseCreation verifies database file creation and initialization
func TestDatabaseCreation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")

	db, err := NewHistoryDB(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("Database file not created at %s", dbPath)
	}
}

// TestWALModeEnabled verifies that WAL mode is properly configured
func TestWALModeEnabled(t *testing.T) {
	db := newTestDB(t)

	var journalMode string
	if err := db.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("Failed to query journal mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("Expected journal_mode=wal, got %s", journalMode)
	}

	// NORMAL = 1
	var synchronous int
	if err := db.db.QueryRow("PRAGMA synchronous").Scan(&synchronous); err != nil {
		t.Fatalf("Failed to query synchronous mode: %v", err)
	}
	if synchronous != 1 {
		t.Errorf("Expected synchronous=1 (NORMAL), got %d", synchronous)
	}
}

func TestSchemaIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "again.db")
	for i := 0; i < 2; i++ {
		db, err := NewHistoryDB(dbPath)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		db.Close()
	}
}

func TestRecordAndQueryRun(t *testing.T) {
	db := newTestDB(t)
	runID := beginTestRun(t, db, 3)

	results := []model.PathResult{
		result("/tmp/a", model.StatusDeleted, model.ReasonNone),
		result("/tmp/b", model.StatusSkipped, model.ReasonNotEmpty),
		result("/tmp/c", model.StatusError, model.ReasonIOError),
	}
	results[2].Message = "input/output error"

	if err := db.RecordResults(runID, results); err != nil {
		t.Fatalf("RecordResults failed: %v", err)
	}

	got, err := db.GetResultsByRun(runID)
	if err != nil {
		t.Fatalf("GetResultsByRun failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(got))
	}

	if got[0].Path != "/tmp/a" || !got[0].Deleted || !got[0].EmptyVerified || got[0].Reason != "" {
		t.Errorf("Unexpected first record: %+v", got[0])
	}
	if got[1].Reason != "not_empty" || got[1].Status != "skipped" {
		t.Errorf("Unexpected second record: %+v", got[1])
	}
	if got[2].Message != "input/output error" {
		t.Errorf("Expected message to round-trip, got %q", got[2].Message)
	}
	if got[0].DurationMs != 1.5 {
		t.Errorf("Expected duration 1.5ms, got %v", got[0].DurationMs)
	}
	if got[0].Timestamp.IsZero() {
		t.Error("Expected timestamp to be parsed")
	}

	// NULL reason is stored for results without one
	var nulls int
	if err := db.db.QueryRow(`SELECT COUNT(*) FROM results WHERE reason IS NULL`).Scan(&nulls); err != nil {
		t.Fatalf("count nulls: %v", err)
	}
	if nulls != 1 {
		t.Errorf("Expected 1 NULL reason, got %d", nulls)
	}
}

func TestRecorderBatchesAndFinishes(t *testing.T) {
	db := newTestDB(t)
	n := flushEvery + 10
	runID := beginTestRun(t, db, n)
	rec := db.Recorder(runID)

	if rec.RunID() != runID {
		t.Fatalf("RunID = %d, want %d", rec.RunID(), runID)
	}

	for i := 0; i < n; i++ {
		if err := rec.Accept(result(fmt.Sprintf("/tmp/dir%d", i), model.StatusDeleted, model.ReasonNone)); err != nil {
			t.Fatalf("Accept %d: %v", i, err)
		}
	}

	// the first batch is already flushed, the remainder is pending
	got, err := db.GetResultsByRun(runID)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != flushEvery {
		t.Errorf("Expected %d flushed results before Complete, got %d", flushEvery, len(got))
	}

	summary := model.Summary{Total: n, Deleted: n, ElapsedSeconds: 0.25}
	if err := rec.Complete(summary); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	got, err = db.GetResultsByRun(runID)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != n {
		t.Errorf("Expected %d results after Complete, got %d", n, len(got))
	}

	runs, err := db.GetRecentRuns(10)
	if err != nil {
		t.Fatalf("GetRecentRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("Expected 1 run, got %d", len(runs))
	}
	run := runs[0]
	if run.Total != n || run.Deleted != n || run.Candidates != n {
		t.Errorf("Unexpected run totals: %+v", run)
	}
	if run.FinishedAt.IsZero() {
		t.Error("Expected finished_at to be set")
	}
	if run.Host != "testhost" || run.PID != 42 || run.Cwd != "/work" {
		t.Errorf("Unexpected host fields: %+v", run)
	}
}

func TestQueryFilters(t *testing.T) {
	db := newTestDB(t)
	runID := beginTestRun(t, db, 4)

	err := db.RecordResults(runID, []model.PathResult{
		result("/srv/cache/a", model.StatusDeleted, model.ReasonNone),
		result("/srv/cache/b", model.StatusSkipped, model.ReasonNotEmpty),
		result("/home/u/c", model.StatusSkipped, model.ReasonProtectedRoot),
		result("/home/u/d", model.StatusSkipped, model.ReasonNotEmpty),
	})
	if err != nil {
		t.Fatalf("RecordResults: %v", err)
	}

	tests := []struct {
		name  string
		query func() ([]ResultRecord, error)
		want  int
	}{
		{"by status deleted", func() ([]ResultRecord, error) { return db.GetResultsByStatus("deleted") }, 1},
		{"by status skipped", func() ([]ResultRecord, error) { return db.GetResultsByStatus("skipped") }, 3},
		{"by reason", func() ([]ResultRecord, error) { return db.GetResultsByReason("not_empty") }, 2},
		{"by path", func() ([]ResultRecord, error) { return db.GetResultsByPath("/srv/%") }, 2},
		{"recent limited", func() ([]ResultRecord, error) { return db.GetRecentResults(3) }, 3},
		{"date range", func() ([]ResultRecord, error) {
			return db.GetResultsByDateRange(time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
		}, 4},
		{"empty date range", func() ([]ResultRecord, error) {
			return db.GetResultsByDateRange(time.Now().Add(-2*time.Hour), time.Now().Add(-time.Hour))
		}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.query()
			if err != nil {
				t.Fatalf("query failed: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d records, want %d", len(got), tt.want)
			}
		})
	}
}

func TestGetStats(t *testing.T) {
	db := newTestDB(t)
	runID := beginTestRun(t, db, 3)
	err := db.RecordResults(runID, []model.PathResult{
		result("/a", model.StatusDeleted, model.ReasonNone),
		result("/b", model.StatusSkipped, model.ReasonNotExists),
		result("/c", model.StatusError, model.ReasonPermissionDenied),
	})
	if err != nil {
		t.Fatalf("RecordResults: %v", err)
	}

	stats, err := db.GetStats(7)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.Runs != 1 {
		t.Errorf("Runs = %d, want 1", stats.Runs)
	}
	if stats.TotalDeleted != 1 || stats.TotalSkipped != 1 || stats.TotalErrors != 1 {
		t.Errorf("Unexpected totals: %+v", stats)
	}
	if stats.ByReason["not_exists"] != 1 || stats.ByReason["permission_denied"] != 1 {
		t.Errorf("Unexpected reason counts: %v", stats.ByReason)
	}
	if _, ok := stats.ByReason[""]; ok {
		t.Error("results without a reason must not be counted by reason")
	}
}

func TestDeleteOldRecords(t *testing.T) {
	db := newTestDB(t)
	runID := beginTestRun(t, db, 2)

	old := result("/old", model.StatusDeleted, model.ReasonNone)
	old.Timestamp = time.Now().AddDate(0, 0, -40)
	fresh := result("/fresh", model.StatusDeleted, model.ReasonNone)
	if err := db.RecordResults(runID, []model.PathResult{old, fresh}); err != nil {
		t.Fatalf("RecordResults: %v", err)
	}

	removed, err := db.DeleteOldRecords(30)
	if err != nil {
		t.Fatalf("DeleteOldRecords: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	got, err := db.GetRecentResults(10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || got[0].Path != "/fresh" {
		t.Errorf("Unexpected remaining records: %+v", got)
	}
}

// TestConcurrentRuns verifies that concurrent writers don't corrupt the database
func TestConcurrentRuns(t *testing.T) {
	db := newTestDB(t)

	const writers = 5
	const perWriter = 20

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			runID, err := db.BeginRun(RunInfo{StartedAt: time.Now(), Workers: 1, Candidates: perWriter})
			if err != nil {
				errs <- err
				return
			}
			rec := db.Recorder(runID)
			for i := 0; i < perWriter; i++ {
				if err := rec.Accept(result(fmt.Sprintf("/w%d/%d", w, i), model.StatusDeleted, model.ReasonNone)); err != nil {
					errs <- err
					return
				}
			}
			errs <- rec.Complete(model.Summary{Total: perWriter, Deleted: perWriter})
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("writer failed: %v", err)
		}
	}

	var count int
	if err := db.db.QueryRow(`SELECT COUNT(*) FROM results`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != writers*perWriter {
		t.Errorf("Expected %d results, got %d", writers*perWriter, count)
	}
}

func TestTimeLayoutSortsLexically(t *testing.T) {
	a := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	b := a.Add(500 * time.Millisecond)
	if !(formatTime(a) < formatTime(b)) {
		t.Errorf("expected %s < %s", formatTime(a), formatTime(b))
	}
	if !parseTime(formatTime(b)).Equal(b) {
		t.Errorf("round trip mismatch: %v", parseTime(formatTime(b)))
	}
	if !parseTime("garbage").IsZero() {
		t.Error("expected zero time for unparsable input")
	}
}
