package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/semcache/semcache/pkg/analytics"
	"github.com/semcache/semcache/pkg/config"
	"github.com/semcache/semcache/pkg/engine"
	"github.com/semcache/semcache/pkg/types"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start semcache as an MCP server",
	Long: `Starts semcache as a Model Context Protocol (MCP) server.

This lets AI assistants answer repeated questions from the semantic
cache instead of regenerating them, and store fresh answers for reuse.

Transports:
  stdio (default) - For local desktop apps (Claude Desktop, Cursor)
  http            - For remote/cloud deployments (hosted MCP server)

Tools exposed:
  resolve_query      - Answer a query from the cache
  store_entry        - Cache an answer for later queries
  invalidate_entry   - Remove a cached answer
  cache_analytics    - Savings summary and recommendations

Resources exposed:
  semcache://system-prompt - System prompt for AI assistants
  semcache://config        - Active cache policy

Example:
  # Local stdio server (Claude Desktop, Cursor, Amp)
  semcache mcp

  # Remote HTTP server (hosted deployment)
  semcache mcp --transport http --port 8081

Configure in Claude Desktop (claude_desktop_config.json):
  {
    "mcpServers": {
      "semcache": {
        "command": "semcache",
        "args": ["mcp"]
      }
    }
  }`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	// Transport settings
	mcpCmd.Flags().String("transport", "stdio", "Transport type: stdio or http")
	mcpCmd.Flags().Int("port", 8081, "HTTP server port (for http transport)")
	mcpCmd.Flags().String("host", "0.0.0.0", "HTTP server host (for http transport)")
}

// MCPServer wraps the MCP server around the cache engine.
type MCPServer struct {
	stack *stack
}

func runMCP(cmd *cobra.Command, args []string) error {
	transport, _ := cmd.Flags().GetString("transport")
	port, _ := cmd.Flags().GetInt("port")
	host, _ := cmd.Flags().GetString("host")

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	ctx := context.Background()

	st, err := buildStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close(context.Background())

	if err := st.engine.Load(ctx); err != nil {
		return fmt.Errorf("warm start failed: %w", err)
	}

	mcpSrv := &MCPServer{stack: st}

	// Create MCP server with capabilities
	s := server.NewMCPServer(
		"Semcache",
		"0.1.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(false),
	)

	mcpSrv.registerTools(s)
	mcpSrv.registerResources(s)
	mcpSrv.registerPrompts(s)

	// Start server based on transport
	switch transport {
	case "stdio":
		if err := server.ServeStdio(s); err != nil {
			return fmt.Errorf("MCP server error: %w", err)
		}

	case "http":
		addr := fmt.Sprintf("%s:%d", host, port)
		fmt.Printf("Semcache MCP server starting on http://%s\n", addr)
		fmt.Printf("  Endpoint: http://%s/mcp\n", addr)
		fmt.Printf("  Health:   http://%s/health\n", addr)
		fmt.Println()

		mux := http.NewServeMux()

		// Health check endpoint
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"ok","server":"semcache-mcp"}`))
		})

		// MCP endpoint with stateful sessions
		mcpHandler := server.NewStreamableHTTPServer(s, server.WithStateful(true))
		mux.Handle("/mcp", mcpHandler)

		httpServer := &http.Server{
			Addr:    addr,
			Handler: mux,
		}

		if err := httpServer.ListenAndServe(); err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}

	default:
		return fmt.Errorf("unsupported transport: %s (use 'stdio' or 'http')", transport)
	}

	return nil
}

func (m *MCPServer) registerTools(s *server.MCPServer) {
	// Tool 1: resolve_query
	resolveTool := mcp.NewTool("resolve_query",
		mcp.WithDescription(`Answer a query from the semantic cache instead of calling an LLM.

WHEN TO USE: Before generating an answer to a question you may have
answered before. The cache matches exactly, by semantic similarity, or
by classified intent, and reports the tokens and cost the hit saved.

OUTPUT: hit/miss, the cached answer on a hit, and the decision record
(strategy, similarity, savings, suggestions).`),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The query text to resolve"),
		),
		mcp.WithString("model",
			mcp.Description("Model name whose call the cache would replace, for cost accounting (e.g. gpt-4o)"),
		),
	)

	s.AddTool(resolveTool, m.handleResolveQuery)

	// Tool 2: store_entry
	storeTool := mcp.NewTool("store_entry",
		mcp.WithDescription(`Cache an answer under a query for later reuse.

USE THIS after generating an answer that future queries are likely to
repeat. Semantically similar phrasings of the same question will hit
this entry.`),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The query text the answer belongs to"),
		),
		mcp.WithString("value",
			mcp.Required(),
			mcp.Description("The answer to cache"),
		),
		mcp.WithString("ttl",
			mcp.Description("Entry lifetime as a duration string (e.g. 30m, 2h). Empty uses the policy default."),
		),
	)

	s.AddTool(storeTool, m.handleStoreEntry)

	// Tool 3: invalidate_entry
	invalidateTool := mcp.NewTool("invalidate_entry",
		mcp.WithDescription(`Remove a cached answer when it is stale or wrong.`),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The query whose cached answer should be removed"),
		),
	)

	s.AddTool(invalidateTool, m.handleInvalidateEntry)

	// Tool 4: cache_analytics
	analyticsTool := mcp.NewTool("cache_analytics",
		mcp.WithDescription(`Summarize recent cache performance: hit rates, tokens and cost
saved, ROI trend, and tuning recommendations.`),
		mcp.WithString("window",
			mcp.Description("Window ending now as a duration string (default: 1h)"),
		),
	)

	s.AddTool(analyticsTool, m.handleCacheAnalytics)
}

// System prompt that guides AI assistants to use the cache
const systemPromptContent = `You have access to Semcache, a semantic cache for LLM answers.

IMPORTANT: Before answering a question:
1. Call resolve_query with the question text
2. On a hit, reuse the cached answer instead of regenerating it
3. On a miss, answer normally, then call store_entry so the next
   occurrence of this question (or a paraphrase of it) is free

The cache matches paraphrases by embedding similarity, so store answers
under the natural question text rather than keywords. Use
cache_analytics to see how much the cache is saving.`

func (m *MCPServer) registerResources(s *server.MCPServer) {
	// System prompt resource - hosts can include this in context
	systemPrompt := mcp.NewResource(
		"semcache://system-prompt",
		"Semcache System Prompt",
		mcp.WithResourceDescription("System prompt that guides AI to use the cache effectively"),
		mcp.WithMIMEType("text/plain"),
	)

	s.AddResource(systemPrompt, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "semcache://system-prompt",
				MIMEType: "text/plain",
				Text:     systemPromptContent,
			},
		}, nil
	})

	// Configuration resource - shows the active policy
	configResource := mcp.NewResource(
		"semcache://config",
		"Semcache Configuration",
		mcp.WithResourceDescription("Active cache policy and live stats"),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(configResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		policy := m.stack.engine.Policy()
		stats := m.stack.engine.Stats()
		cfg := map[string]interface{}{
			"policy": map[string]interface{}{
				"max_size_bytes":     policy.MaxSizeBytes,
				"default_ttl":        policy.DefaultTTL.String(),
				"eviction_policy":    string(policy.Eviction),
				"semantic_enabled":   policy.SemanticEnabled,
				"semantic_threshold": policy.SemanticThreshold,
			},
			"stats": map[string]interface{}{
				"entries":     stats.Entries,
				"total_bytes": stats.TotalBytes,
			},
		}
		cfgJSON, _ := json.MarshalIndent(cfg, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "semcache://config",
				MIMEType: "application/json",
				Text:     string(cfgJSON),
			},
		}, nil
	})
}

func (m *MCPServer) registerPrompts(s *server.MCPServer) {
	// Prompt for cache-first answering
	cacheFirstPrompt := mcp.NewPrompt(
		"cache-first-answer",
		mcp.WithPromptDescription("Answer a question cache-first: resolve it, reuse a hit, store a fresh answer on a miss"),
		mcp.WithArgument("question", mcp.ArgumentDescription("The user's question to answer")),
	)

	s.AddPrompt(cacheFirstPrompt, func(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		question := request.Params.Arguments["question"]

		return &mcp.GetPromptResult{
			Description: "Answer cache-first",
			Messages: []mcp.PromptMessage{
				{
					Role: mcp.RoleUser,
					Content: mcp.TextContent{
						Type: "text",
						Text: fmt.Sprintf(`I need to answer this question: %s

Please:
1. First, call resolve_query with the question
2. If it hits, present the cached answer
3. If it misses, answer the question yourself, then call store_entry
   with the question and your answer so future occurrences are cached`, question),
					},
				},
			},
		}, nil
	})
}

func (m *MCPServer) handleResolveQuery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query parameter is required"), nil
	}

	model := request.GetString("model", "")

	result, err := m.stack.engine.Resolve(ctx, engine.ResolveRequest{
		Query: query,
		Model: model,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("resolution failed: %v", err)), nil
	}

	rec := result.Record
	out := map[string]interface{}{
		"hit":            result.Hit,
		"operation_type": string(rec.Type),
		"strategy":       rec.Strategy,
		"tokens_saved":   rec.Tokens.Saved,
		"cost_saved":     rec.Tokens.CostSaved,
		"roi_score":      rec.Insight.ROIScore,
	}
	if result.Hit {
		out["value"] = string(result.Value)
	}
	if rec.Semantic != nil {
		out["similarity"] = rec.Semantic.Similarity
		out["threshold"] = rec.Semantic.ThresholdUsed
	}
	if texts := rec.SuggestionTexts(); len(texts) > 0 {
		out["suggestions"] = texts
	}

	outJSON, _ := json.MarshalIndent(out, "", "  ")
	return mcp.NewToolResultText(string(outJSON)), nil
}

func (m *MCPServer) handleStoreEntry(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query parameter is required"), nil
	}
	value, err := request.RequireString("value")
	if err != nil {
		return mcp.NewToolResultError("value parameter is required"), nil
	}

	var ttl time.Duration
	if ttlStr := request.GetString("ttl", ""); ttlStr != "" {
		ttl, err = time.ParseDuration(ttlStr)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid ttl: %v", err)), nil
		}
	}

	err = m.stack.engine.Store(ctx, engine.StoreRequest{
		Query: query,
		Value: []byte(value),
		TTL:   ttl,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("store failed: %v", err)), nil
	}

	stats := m.stack.engine.Stats()
	out := map[string]interface{}{
		"status":      "stored",
		"entries":     stats.Entries,
		"total_bytes": stats.TotalBytes,
	}
	outJSON, _ := json.MarshalIndent(out, "", "  ")
	return mcp.NewToolResultText(string(outJSON)), nil
}

func (m *MCPServer) handleInvalidateEntry(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query parameter is required"), nil
	}

	if err := m.stack.engine.Invalidate(ctx, query); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalidation failed: %v", err)), nil
	}

	return mcp.NewToolResultText(`{"status":"invalidated"}`), nil
}

func (m *MCPServer) handleCacheAnalytics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	window := time.Hour
	if raw := request.GetString("window", ""); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			return mcp.NewToolResultError(fmt.Sprintf("invalid window: %q", raw)), nil
		}
		window = parsed
	}

	if err := m.stack.journal.Flush(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("journal flush failed: %v", err)), nil
	}

	to := time.Now()
	from := to.Add(-window)

	records, err := m.stack.records.Query(ctx, from, to)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("record query failed: %v", err)), nil
	}

	cfg := analytics.DefaultConfig()
	snapshot := analytics.Aggregate(records, from, to, cfg)
	recommendations := analytics.Recommend(snapshot, cfg)

	out := map[string]interface{}{
		"window":             window.String(),
		"total_operations":   snapshot.TotalOperations,
		"hit_rate":           snapshot.HitRate,
		"semantic_hit_rate":  snapshot.SemanticHitRate,
		"total_tokens_saved": snapshot.TotalTokensSaved,
		"total_cost_saved":   snapshot.TotalCostSaved,
		"avg_roi":            snapshot.AvgROI,
		"trend":              string(snapshot.Trend),
		"counts":             countsByName(snapshot.Counts),
	}
	if len(recommendations) > 0 {
		out["recommendations"] = recommendations
	}

	outJSON, _ := json.MarshalIndent(out, "", "  ")
	return mcp.NewToolResultText(string(outJSON)), nil
}

func countsByName(counts map[types.OperationType]int) map[string]int {
	out := make(map[string]int, len(counts))
	for op, n := range counts {
		out[string(op)] = n
	}
	return out
}
