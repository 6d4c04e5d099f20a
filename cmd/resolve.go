package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/semcache/semcache/pkg/config"
	"github.com/semcache/semcache/pkg/engine"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [text]",
	Short: "Resolve a query against the cache",
	Long: `Resolves a single query against the configured cache backends and
prints the decision record. Useful for testing and tuning the
semantic threshold.

Persistent backends (sqlite storage, a journal path) make one-shot
resolution meaningful across runs; with memory backends the cache
starts empty.

Example:
  semcache resolve "How do I configure authentication?"
  semcache resolve "what is the capital of france" --model gpt-4o`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResolve,
}

var putCmd = &cobra.Command{
	Use:   "put [text]",
	Short: "Store a cache entry for a query",
	Long: `Caches a value under the given query using the configured backends.

Example:
  semcache put "what is the capital of france" --value "Paris"
  semcache put "list open incidents" --value "$(cat answer.txt)" --ttl 30m`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPut,
}

var invalidateCmd = &cobra.Command{
	Use:   "invalidate [text]",
	Short: "Remove a query's cache entry",
	Long: `Removes the cache entry for the given query from the store, the
vector index, and the live table.

Example:
  semcache invalidate "what is the capital of france"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInvalidate,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(invalidateCmd)

	resolveCmd.Flags().String("model", "", "model name for cost accounting")
	resolveCmd.Flags().Int("prompt-tokens", 0, "known prompt token count of the avoided call")
	resolveCmd.Flags().Int("completion-tokens", 0, "known completion token count of the avoided call")
	resolveCmd.Flags().Bool("show-record", true, "show the decision record")

	putCmd.Flags().String("value", "", "value to cache (required)")
	putCmd.Flags().String("ttl", "", "entry TTL (e.g. 30m, 2h); empty uses the policy default")
	putCmd.Flags().StringSlice("tags", nil, "additional lookup tags")
	_ = putCmd.MarkFlagRequired("value")
}

// withStack loads config, builds the component stack, warm-starts the
// engine, and runs fn, closing everything afterwards.
func withStack(fn func(ctx context.Context, st *stack) error) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nCancelled")
		cancel()
	}()

	st, err := buildStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close(context.Background())

	if err := st.engine.Load(ctx); err != nil {
		return fmt.Errorf("warm start failed: %w", err)
	}

	return fn(ctx, st)
}

func runResolve(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	model, _ := cmd.Flags().GetString("model")
	promptTokens, _ := cmd.Flags().GetInt("prompt-tokens")
	completionTokens, _ := cmd.Flags().GetInt("completion-tokens")
	showRecord, _ := cmd.Flags().GetBool("show-record")

	return withStack(func(ctx context.Context, st *stack) error {
		result, err := st.engine.Resolve(ctx, engine.ResolveRequest{
			Query:            query,
			Model:            model,
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
		})
		if err != nil {
			return fmt.Errorf("resolution failed: %w", err)
		}

		rec := result.Record

		if result.Hit {
			fmt.Printf("HIT (%s)\n\n", rec.Type)
			fmt.Println(string(result.Value))
		} else {
			fmt.Printf("MISS (%s)\n", rec.Type)
		}

		if showRecord {
			fmt.Println()
			fmt.Println("=== Decision ===")
			fmt.Printf("Operation:    %s\n", rec.OperationID)
			fmt.Printf("Strategy:     %s\n", rec.Strategy)
			fmt.Printf("Duration:     %v\n", rec.Duration)
			fmt.Printf("Query hash:   %s\n", rec.Query.Hash)
			if rec.Query.Intent != "" {
				fmt.Printf("Intent:       %s\n", rec.Query.Intent)
			}
			if rec.Semantic != nil {
				fmt.Printf("Similarity:   %.4f (threshold %.2f, met=%v)\n",
					rec.Semantic.Similarity, rec.Semantic.ThresholdUsed, rec.Semantic.ThresholdMet)
				if rec.Semantic.SimilarQueries > 0 {
					fmt.Printf("Similar:      %d queries at or above threshold\n", rec.Semantic.SimilarQueries)
				}
			}
			fmt.Printf("Tokens saved: %d (%.1f%%)\n", rec.Tokens.Saved, rec.Tokens.SavedPercent)
			fmt.Printf("Cost saved:   $%.6f\n", rec.Tokens.CostSaved)
			fmt.Printf("ROI score:    %.3f (%s)\n", rec.Insight.ROIScore, rec.Insight.Level)

			if texts := rec.SuggestionTexts(); len(texts) > 0 {
				fmt.Println("Suggestions:")
				for _, s := range texts {
					fmt.Printf("  - %s\n", s)
				}
			}
		}

		return nil
	})
}

func runPut(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	value, _ := cmd.Flags().GetString("value")
	ttlStr, _ := cmd.Flags().GetString("ttl")
	tags, _ := cmd.Flags().GetStringSlice("tags")

	var ttl time.Duration
	if ttlStr != "" {
		var err error
		ttl, err = time.ParseDuration(ttlStr)
		if err != nil {
			return fmt.Errorf("invalid ttl %q: %w", ttlStr, err)
		}
	}

	return withStack(func(ctx context.Context, st *stack) error {
		err := st.engine.Store(ctx, engine.StoreRequest{
			Query: query,
			Value: []byte(value),
			TTL:   ttl,
			Tags:  tags,
		})
		if err != nil {
			return fmt.Errorf("store failed: %w", err)
		}

		stats := st.engine.Stats()
		fmt.Fprintf(os.Stderr, "Stored. Cache now holds %d entries (%d bytes).\n",
			stats.Entries, stats.TotalBytes)
		return nil
	})
}

func runInvalidate(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	return withStack(func(ctx context.Context, st *stack) error {
		if err := st.engine.Invalidate(ctx, query); err != nil {
			return fmt.Errorf("invalidation failed: %w", err)
		}
		fmt.Fprintln(os.Stderr, "Invalidated.")
		return nil
	})
}
