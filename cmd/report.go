package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/semcache/semcache/pkg/analytics"
	"github.com/semcache/semcache/pkg/journal"
	"github.com/semcache/semcache/pkg/types"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Aggregate operation records into a savings report",
	Long: `Reads operation records from a journal database or a JSONL export
and prints hit rates, token and cost savings, ROI trend, and
recommendations for the selected window.

Example:
  semcache report --journal semcache-journal.db --window 24h
  semcache report --file records.jsonl`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringP("journal", "j", "", "path to a journal SQLite database")
	reportCmd.Flags().StringP("file", "f", "", "path to a JSONL file of operation records")
	reportCmd.Flags().StringP("window", "w", "24h", "report window ending now (e.g. 1h, 24h, 7d as 168h)")
	reportCmd.Flags().Float64("trend-threshold", 0.05, "ROI delta that counts as a trend")

	_ = viper.BindPFlag("report.window", reportCmd.Flags().Lookup("window"))
}

func runReport(cmd *cobra.Command, args []string) error {
	journalPath, _ := cmd.Flags().GetString("journal")
	filePath, _ := cmd.Flags().GetString("file")
	windowStr, _ := cmd.Flags().GetString("window")
	trendThreshold, _ := cmd.Flags().GetFloat64("trend-threshold")
	verbose := viper.GetBool("verbose")

	if journalPath == "" && filePath == "" {
		return fmt.Errorf("a record source is required: --journal or --file")
	}
	if journalPath != "" && filePath != "" {
		return fmt.Errorf("--journal and --file are mutually exclusive")
	}

	window, err := time.ParseDuration(windowStr)
	if err != nil || window <= 0 {
		return fmt.Errorf("invalid window %q", windowStr)
	}

	to := time.Now()
	from := to.Add(-window)

	ctx := context.Background()

	var records []types.OperationRecord
	if journalPath != "" {
		store, err := journal.NewSQLiteStore(journalPath)
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		defer func() { _ = store.Close() }()

		records, err = store.Query(ctx, from, to)
		if err != nil {
			return fmt.Errorf("failed to query records: %w", err)
		}
	} else {
		all, err := loadRecordsFromFile(filePath)
		if err != nil {
			return fmt.Errorf("failed to load records: %w", err)
		}
		for _, r := range all {
			if !r.Timestamp.Before(from) && r.Timestamp.Before(to) {
				records = append(records, r)
			}
		}
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Loaded %d records in window [%s, %s)\n",
			len(records), from.Format(time.RFC3339), to.Format(time.RFC3339))
	}

	if len(records) == 0 {
		fmt.Println("No operation records in the selected window.")
		return nil
	}

	cfg := analytics.DefaultConfig()
	if trendThreshold > 0 {
		cfg.TrendThreshold = trendThreshold
	}

	snapshot := analytics.Aggregate(records, from, to, cfg)
	recommendations := analytics.Recommend(snapshot, cfg)

	printReport(os.Stdout, snapshot, recommendations)
	return nil
}

// loadRecordsFromFile reads operation records from a JSONL file, one record
// per line. Malformed lines are skipped with a warning.
func loadRecordsFromFile(filePath string) ([]types.OperationRecord, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var records []types.OperationRecord
	scanner := bufio.NewScanner(file)

	// Increase buffer for large lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var r types.OperationRecord
		if err := json.Unmarshal(line, &r); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: skipping malformed line %d: %v\n", lineNum, err)
			continue
		}

		if r.OperationID == "" || r.Timestamp.IsZero() {
			continue
		}

		records = append(records, r)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// printReport renders a snapshot. Snapshot rates are already percentages.
func printReport(w io.Writer, snap types.AnalyticsSnapshot, recommendations []string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Semcache Savings Report ===")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Window:              %s to %s\n",
		snap.PeriodStart.Format(time.RFC3339), snap.PeriodEnd.Format(time.RFC3339))
	fmt.Fprintf(w, "Total operations:    %d\n", snap.TotalOperations)
	fmt.Fprintf(w, "Hit rate:            %.1f%%\n", snap.HitRate)
	fmt.Fprintf(w, "Semantic hit rate:   %.1f%%\n", snap.SemanticHitRate)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Tokens saved:        %d (avg %.1f/op)\n", snap.TotalTokensSaved, snap.AvgTokensSaved)
	fmt.Fprintf(w, "Cost saved:          $%.4f (avg $%.6f/op)\n", snap.TotalCostSaved, snap.AvgCostSaved)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Average ROI:         %.3f\n", snap.AvgROI)
	fmt.Fprintf(w, "Trend:               %s (magnitude %.3f)\n", snap.Trend, snap.TrendMagnitude)
	fmt.Fprintln(w)

	if len(snap.Counts) > 0 {
		fmt.Fprintln(w, "Operations by type:")
		for _, op := range []types.OperationType{
			types.OpExactHit, types.OpSemanticHit, types.OpIntentHit,
			types.OpExactMiss, types.OpSemanticMiss, types.OpCacheError,
		} {
			if n := snap.Counts[op]; n > 0 {
				fmt.Fprintf(w, "  %-15s %d\n", op, n)
			}
		}
		fmt.Fprintln(w)
	}

	if len(recommendations) > 0 {
		fmt.Fprintln(w, "Recommendations:")
		for _, rec := range recommendations {
			fmt.Fprintf(w, "  - %s\n", rec)
		}
	} else {
		fmt.Fprintln(w, "No recommendations. Cache performance looks healthy.")
	}
}
