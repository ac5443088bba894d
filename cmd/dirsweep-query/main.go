package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"text/tabwriter"

	"dirsweep/internal/audit"
	"dirsweep/internal/database"
	"dirsweep/internal/exitcodes"
)

func main() {
	// Parse command-line flags
	dbPath := flag.String("db", "dirsweep.db", "Path to history database")
	recent := flag.Int("recent", 0, "Show N most recent results")
	runs := flag.Int("runs", 0, "Show N most recent runs")
	run := flag.Int64("run", 0, "Show every result of one run")
	stats := flag.Bool("stats", false, "Show statistics")
	reason := flag.String("reason", "", "Filter by reason (not_empty, protected_root, ...)")
	status := flag.String("status", "", "Filter by status (deleted, skipped, error)")
	pathPattern := flag.String("path", "", "Filter by path pattern (SQL LIKE syntax)")
	days := flag.Int("days", 30, "Number of days for statistics")
	prune := flag.Int("prune", 0, "Delete records older than N days and vacuum")
	auditFile := flag.String("audit", "", "Summarize a JSONL audit log instead of the database")
	jsonOutput := flag.Bool("json", false, "Output in JSON format")
	flag.Parse()

	if *auditFile != "" {
		showAudit(*auditFile, *jsonOutput)
		return
	}

	// Open database
	db, err := database.NewHistoryDB(*dbPath)
	if err != nil {
		log.Fatalf("ERROR: Failed to open database %s: %v", *dbPath, err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("ERROR: Failed to close database: %v", err)
		}
	}()

	// Handle different query modes
	switch {
	case *prune > 0:
		pruneRecords(db, *prune)
	case *stats:
		showStats(db, *days, *jsonOutput)
	case *runs > 0:
		showRuns(db, *runs, *jsonOutput)
	case *run > 0:
		showResults(db.GetResultsByRun(*run))(fmt.Sprintf("Results of run %d", *run), *jsonOutput)
	case *recent > 0:
		showResults(db.GetRecentResults(*recent))("", *jsonOutput)
	case *reason != "":
		showResults(db.GetResultsByReason(*reason))("Results with reason: "+*reason, *jsonOutput)
	case *status != "":
		showResults(db.GetResultsByStatus(*status))("Results with status: "+*status, *jsonOutput)
	case *pathPattern != "":
		showResults(db.GetResultsByPath(*pathPattern))("Results matching path pattern: "+*pathPattern, *jsonOutput)
	default:
		flag.Usage()
		fmt.Println("\nExamples:")
		fmt.Println("  dirsweep-query --recent 10            # Show 10 most recent results")
		fmt.Println("  dirsweep-query --runs 5               # Show the last 5 runs")
		fmt.Println("  dirsweep-query --stats --days 7       # Show statistics for a week")
		fmt.Println("  dirsweep-query --reason not_empty     # Show directories that were not empty")
		fmt.Println("  dirsweep-query --status error         # Show only errors")
		fmt.Println("  dirsweep-query --path '/srv/cache/%'  # Show results under /srv/cache")
		fmt.Println("  dirsweep-query --audit .project_logs/empty_delete_20250101_120000.jsonl")
		os.Exit(exitcodes.InvalidUsage)
	}
}

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}

func pruneRecords(db *database.HistoryDB, days int) {
	removed, err := db.DeleteOldRecords(days)
	if err != nil {
		log.Fatalf("ERROR: Failed to prune records: %v", err)
	}
	if err := db.Vacuum(); err != nil {
		log.Fatalf("ERROR: Failed to vacuum database: %v", err)
	}
	fmt.Printf("Removed %d results older than %d days\n", removed, days)
}

func showStats(db *database.HistoryDB, days int, jsonOutput bool) {
	stats, err := db.GetStats(days)
	if err != nil {
		log.Fatalf("ERROR: Failed to get statistics: %v", err)
	}

	if jsonOutput {
		printJSON(stats)
		return
	}

	fmt.Printf("Statistics (Last %d days)\n", days)
	fmt.Printf("Period: %s to %s\n\n", stats.StartDate.Format("2006-01-02"), stats.EndDate.Format("2006-01-02"))
	fmt.Printf("Runs:           %d\n", stats.Runs)
	fmt.Printf("Total Deleted:  %d\n", stats.TotalDeleted)
	fmt.Printf("Total Skipped:  %d\n", stats.TotalSkipped)
	fmt.Printf("Total Errors:   %d\n\n", stats.TotalErrors)

	printCounts("By Reason:", stats.ByReason)
}

func printCounts(title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Println(title)
	for _, k := range keys {
		fmt.Printf("  %-20s %d\n", k, counts[k])
	}
	fmt.Println()
}

func showRuns(db *database.HistoryDB, limit int, jsonOutput bool) {
	runs, err := db.GetRecentRuns(limit)
	if err != nil {
		log.Fatalf("ERROR: Failed to get runs: %v", err)
	}

	if jsonOutput {
		printJSON(runs)
		return
	}
	if len(runs) == 0 {
		fmt.Println("No runs found")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tStarted\tHost\tWorkers\tTotal\tDeleted\tSkipped\tErrors\tElapsed\tInterrupted")
	_, _ = fmt.Fprintln(w, "--\t-------\t----\t-------\t-----\t-------\t-------\t------\t-------\t-----------")
	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%.2fs\t%t\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Host, r.Workers,
			r.Total, r.Deleted, r.Skipped, r.Errors, r.ElapsedSeconds, r.Interrupted)
	}
	_ = w.Flush()
}

// showResults prints a query result, or exits on a query error.
func showResults(records []database.ResultRecord, err error) func(title string, jsonOutput bool) {
	return func(title string, jsonOutput bool) {
		if err != nil {
			log.Fatalf("ERROR: Query failed: %v", err)
		}
		if jsonOutput {
			printJSON(records)
			return
		}
		if title != "" {
			fmt.Printf("%s\n\n", title)
		}
		printRecords(records)
	}
}

func printRecords(records []database.ResultRecord) {
	if len(records) == 0 {
		fmt.Println("No records found")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tRun\tTimestamp\tStatus\tReason\tms\tPath")
	_, _ = fmt.Fprintln(w, "--\t---\t---------\t------\t------\t--\t----")

	for _, r := range records {
		_, _ = fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%.2f\t%s\n",
			r.ID, r.RunID, r.Timestamp.Local().Format("2006-01-02 15:04:05"),
			r.Status, r.Reason, r.DurationMs, r.Path)
	}
	_ = w.Flush()
}

func showAudit(path string, jsonOutput bool) {
	entries, err := audit.ReadEntries(path)
	if err != nil {
		log.Fatalf("ERROR: Failed to read audit log: %v", err)
	}

	byStatus := make(map[string]int)
	byReason := make(map[string]int)
	for _, e := range entries {
		byStatus[e.Status]++
		if r := e.ReasonString(); r != "" {
			byReason[r]++
		}
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"path":      path,
			"entries":   len(entries),
			"by_status": byStatus,
			"by_reason": byReason,
		})
		return
	}

	fmt.Printf("Audit log: %s\n", path)
	fmt.Printf("Entries:   %d\n\n", len(entries))
	printCounts("By Status:", byStatus)
	printCounts("By Reason:", byReason)
}
