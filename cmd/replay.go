package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/semcache/semcache/pkg/journal"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Import operation records from a JSONL export into a journal",
	Long: `Reads operation records from a JSONL file and appends them to a
journal database, so historical decisions can be analyzed with
'semcache report'. Records already present (same operation ID) are
skipped, preserving immutability.

Example:
  semcache replay --file records.jsonl --journal semcache-journal.db`,
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().StringP("file", "f", "", "path to a JSONL file of operation records (required)")
	replayCmd.Flags().StringP("journal", "j", "", "path to the journal SQLite database (required)")

	_ = replayCmd.MarkFlagRequired("file")
	_ = replayCmd.MarkFlagRequired("journal")
}

func runReplay(cmd *cobra.Command, args []string) error {
	filePath, _ := cmd.Flags().GetString("file")
	journalPath, _ := cmd.Flags().GetString("journal")

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nInterrupted, cleaning up...")
		cancel()
	}()

	// Load records
	fmt.Fprintf(os.Stderr, "Loading records from %s...\n", filePath)
	loadStart := time.Now()
	records, err := loadRecordsFromFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to load records: %w", err)
	}
	loadDuration := time.Since(loadStart)

	if len(records) == 0 {
		fmt.Println("No records found in file.")
		return nil
	}

	fmt.Fprintf(os.Stderr, "Loaded %d records in %v\n", len(records), loadDuration)

	// Open journal
	store, err := journal.NewSQLiteStore(journalPath)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer func() { _ = store.Close() }()

	// Create progress bar
	bar := progressbar.NewOptions64(
		int64(len(records)),
		progressbar.OptionSetDescription("Importing"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("records"),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)

	// Import
	importStart := time.Now()
	imported := 0
	skipped := 0

	for _, record := range records {
		select {
		case <-ctx.Done():
			_ = bar.Finish()
			fmt.Fprintln(os.Stderr)
			return ctx.Err()
		default:
		}

		if err := store.Append(ctx, record); err != nil {
			// Duplicate operation IDs are expected on re-runs.
			skipped++
		} else {
			imported++
		}
		_ = bar.Add(1)
	}

	_ = bar.Finish()
	fmt.Fprintln(os.Stderr)

	duration := time.Since(importStart)

	fmt.Println()
	fmt.Println("=== Replay Complete ===")
	fmt.Println()
	fmt.Printf("Records imported:    %d\n", imported)
	fmt.Printf("Records skipped:     %d\n", skipped)
	fmt.Printf("Duration:            %v\n", duration.Round(time.Millisecond))
	if secs := duration.Seconds(); secs > 0 {
		fmt.Printf("Throughput:          %.0f records/sec\n", float64(imported+skipped)/secs)
	}
	fmt.Println()

	return nil
}
