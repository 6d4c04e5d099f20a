package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/semcache/semcache/pkg/analytics"
	"github.com/semcache/semcache/pkg/config"
	"github.com/semcache/semcache/pkg/embedding"
	"github.com/semcache/semcache/pkg/embedding/openai"
	"github.com/semcache/semcache/pkg/engine"
	"github.com/semcache/semcache/pkg/index"
	pcindex "github.com/semcache/semcache/pkg/index/pinecone"
	qdindex "github.com/semcache/semcache/pkg/index/qdrant"
	"github.com/semcache/semcache/pkg/journal"
	"github.com/semcache/semcache/pkg/metrics"
	"github.com/semcache/semcache/pkg/recorder"
	"github.com/semcache/semcache/pkg/storage"
	"github.com/semcache/semcache/pkg/telemetry"
	"github.com/semcache/semcache/pkg/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the semcache HTTP server",
	Long: `Starts an HTTP server that resolves queries against the semantic cache.

Example:
  semcache serve --port 8080
  semcache serve --config semcache.yaml

The server exposes:
  POST   /v1/resolve    - Resolve a query (exact/semantic/intent)
  POST   /v1/entries    - Store a cache entry
  DELETE /v1/entries    - Invalidate a cached query
  GET    /v1/analytics  - Aggregated savings and recommendations
  GET    /v1/stats      - Live entry count and size
  GET    /health        - Health check
  GET    /metrics       - Prometheus metrics`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 0, "HTTP server port (overrides config)")
	serveCmd.Flags().String("host", "", "HTTP server host (overrides config)")

	_ = viper.BindPFlag("serve.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("serve.host", serveCmd.Flags().Lookup("host"))
}

// hashEmbeddingDim is the vector dimension of the offline hash provider.
const hashEmbeddingDim = 256

// stack bundles the wired components behind one Close.
type stack struct {
	cfg     *config.Config
	engine  *engine.Engine
	journal *journal.Journal
	records journal.RecordStore
	metrics *metrics.Metrics
	tracer  *telemetry.Provider
}

// buildStack wires storage, index, embedder, journal, recorder, metrics,
// and tracing into an engine per the loaded configuration.
func buildStack(ctx context.Context, cfg *config.Config) (*stack, error) {
	// Backing store
	var store storage.Store
	switch cfg.Storage.Backend {
	case "sqlite":
		var err error
		store, err = storage.NewSQLite(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
	default:
		store = storage.NewMemory()
	}

	// Vector index
	var idx index.Index
	switch cfg.Index.Backend {
	case "qdrant":
		var err error
		idx, err = qdindex.NewClient(ctx, qdindex.Config{
			Host:       cfg.Index.Host,
			Collection: cfg.Index.Collection,
			APIKey:     cfg.Index.APIKey,
			UseTLS:     cfg.Index.UseTLS,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
		}
	case "pinecone":
		var err error
		idx, err = pcindex.NewClient(ctx, pcindex.Config{
			APIKey:    cfg.Index.APIKey,
			IndexName: cfg.Index.Collection,
			Namespace: cfg.Index.Namespace,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to pinecone: %w", err)
		}
	default:
		idx = index.NewMemory()
	}

	// Embedding provider
	var provider embedding.Provider
	switch cfg.Embedding.Provider {
	case "openai":
		apiKey := cfg.Embedding.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		var err error
		provider, err = openai.NewClient(openai.Config{
			APIKey: apiKey,
			Model:  cfg.Embedding.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create embedding provider: %w", err)
		}
	default:
		provider = embedding.NewHash(hashEmbeddingDim)
	}
	embedder := embedding.NewCached(provider, cfg.Embedding.CacheSize)

	// Operation record journal
	var records journal.RecordStore
	if cfg.Journal.Path != "" {
		var err error
		records, err = journal.NewSQLiteStore(cfg.Journal.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal store: %w", err)
		}
	} else {
		records = journal.NewMemoryStore()
	}

	journalCfg := journal.DefaultConfig()
	if cfg.Journal.QueueSize > 0 {
		journalCfg.QueueSize = cfg.Journal.QueueSize
	}
	jnl, err := journal.New(records, journalCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create journal: %w", err)
	}

	// Recorder
	recCfg := recorder.DefaultConfig()
	if cfg.Recorder.ROISavedWeight > 0 || cfg.Recorder.ROIConfidenceWeight > 0 {
		recCfg.ROISavedWeight = cfg.Recorder.ROISavedWeight
		recCfg.ROIConfidenceWeight = cfg.Recorder.ROIConfidenceWeight
	}
	if cfg.Recorder.MaxSuggestions > 0 {
		recCfg.MaxSuggestions = cfg.Recorder.MaxSuggestions
	}
	rec, err := recorder.New(recCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create recorder: %w", err)
	}

	// Observability
	m := metrics.New()
	jnl.OnDrop = func(int64) { m.JournalDropOccurred() }

	tracer, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Tracing.Enabled,
		Exporter:    cfg.Telemetry.Tracing.Exporter,
		Endpoint:    cfg.Telemetry.Tracing.Endpoint,
		SampleRate:  cfg.Telemetry.Tracing.SampleRate,
		ServiceName: "semcache",
		Insecure:    cfg.Telemetry.Tracing.Insecure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	eng, err := engine.New(cfg.Policy(), engine.Deps{
		Store:    store,
		Index:    idx,
		Embedder: embedder,
		Recorder: rec,
		Journal:  jnl,
		Events:   m,
		Tracer:   tracer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	return &stack{
		cfg:     cfg,
		engine:  eng,
		journal: jnl,
		records: records,
		metrics: m,
		tracer:  tracer,
	}, nil
}

// Close shuts components down in dependency order: the engine first (it
// writes to the journal), then the journal (draining queued records into
// the record store), then tracing.
func (s *stack) Close(ctx context.Context) {
	if err := s.engine.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Engine shutdown error: %v\n", err)
	}
	if err := s.journal.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Journal shutdown error: %v\n", err)
	}
	if err := s.tracer.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Tracer shutdown error: %v\n", err)
	}
}

// Server holds the HTTP server state.
type Server struct {
	stack *stack
}

// ResolveAPIRequest is the JSON request body for /v1/resolve.
type ResolveAPIRequest struct {
	Query            string `json:"query"`
	Model            string `json:"model,omitempty"`
	PromptTokens     int    `json:"prompt_tokens,omitempty"`
	CompletionTokens int    `json:"completion_tokens,omitempty"`
}

// ResolveAPIResponse is the JSON response for /v1/resolve.
type ResolveAPIResponse struct {
	Hit    bool                  `json:"hit"`
	Value  string                `json:"value,omitempty"`
	Record types.OperationRecord `json:"record"`
}

// StoreAPIRequest is the JSON request body for POST /v1/entries.
type StoreAPIRequest struct {
	Query string   `json:"query"`
	Value string   `json:"value"`
	TTL   string   `json:"ttl,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

// InvalidateAPIRequest is the JSON request body for DELETE /v1/entries.
type InvalidateAPIRequest struct {
	Query string `json:"query"`
}

// AnalyticsAPIResponse is the JSON response for /v1/analytics.
type AnalyticsAPIResponse struct {
	Snapshot        types.AnalyticsSnapshot `json:"snapshot"`
	Recommendations []string                `json:"recommendations,omitempty"`
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Server.Port = port
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Server.Host = host
	}

	ctx := context.Background()

	st, err := buildStack(ctx, cfg)
	if err != nil {
		return err
	}

	// Warm start from the backing store.
	if err := st.engine.Load(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Warm start failed: %v\n", err)
	}

	server := &Server{stack: st}

	// Setup routes
	m := st.metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/resolve", m.Middleware("/v1/resolve", server.handleResolve))
	mux.HandleFunc("/v1/entries", m.Middleware("/v1/entries", server.handleEntries))
	mux.HandleFunc("/v1/analytics", m.Middleware("/v1/analytics", server.handleAnalytics))
	mux.HandleFunc("/v1/stats", m.Middleware("/v1/stats", server.handleStats))
	mux.HandleFunc("/health", server.handleHealth)
	mux.Handle("/metrics", m.Handler())

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-quit
		fmt.Fprintln(os.Stderr, "\nShutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "Server shutdown error: %v\n", err)
		}
		st.Close(shutdownCtx)
		close(done)
	}()

	// Start server
	stats := st.engine.Stats()
	fmt.Printf("Semcache server starting on %s\n", addr)
	fmt.Printf("  Storage: %s\n", orDefault(cfg.Storage.Backend, "memory"))
	fmt.Printf("  Index: %s\n", orDefault(cfg.Index.Backend, "memory"))
	fmt.Printf("  Embeddings: %s (%s)\n", orDefault(cfg.Embedding.Provider, "hash"), cfg.Embedding.Model)
	fmt.Printf("  Warm entries: %d\n", stats.Entries)
	fmt.Println()
	fmt.Println("Endpoints:")
	fmt.Printf("  POST http://%s/v1/resolve\n", addr)
	fmt.Printf("  POST http://%s/v1/entries\n", addr)
	fmt.Printf("  GET  http://%s/v1/analytics\n", addr)
	fmt.Printf("  GET  http://%s/health\n", addr)
	fmt.Println()

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	fmt.Println("Server stopped")
	return nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, span := s.stack.tracer.StartRequest(r.Context(), "/v1/resolve")
	defer span.End()

	var req ResolveAPIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		http.Error(w, "'query' is required", http.StatusBadRequest)
		return
	}

	result, err := s.stack.engine.Resolve(ctx, engine.ResolveRequest{
		Query:            req.Query,
		Model:            req.Model,
		PromptTokens:     req.PromptTokens,
		CompletionTokens: req.CompletionTokens,
	})
	if err != nil {
		if errors.Is(err, engine.ErrEmptyQuery) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, fmt.Sprintf("Resolution failed: %v", err), http.StatusInternalServerError)
		return
	}

	resp := ResolveAPIResponse{
		Hit:    result.Hit,
		Value:  string(result.Value),
		Record: result.Record,
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleStore(w, r)
	case http.MethodDelete:
		s.handleInvalidate(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleStore(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.stack.tracer.StartRequest(r.Context(), "/v1/entries")
	defer span.End()

	var req StoreAPIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		http.Error(w, "'query' is required", http.StatusBadRequest)
		return
	}

	var ttl time.Duration
	if req.TTL != "" {
		var err error
		ttl, err = time.ParseDuration(req.TTL)
		if err != nil {
			http.Error(w, fmt.Sprintf("Invalid TTL: %v", err), http.StatusBadRequest)
			return
		}
	}

	err := s.stack.engine.Store(ctx, engine.StoreRequest{
		Query: req.Query,
		Value: []byte(req.Value),
		TTL:   ttl,
		Tags:  req.Tags,
	})
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrEmptyQuery), errors.Is(err, engine.ErrEntryTooLarge):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			http.Error(w, fmt.Sprintf("Store failed: %v", err), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "stored"})
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.stack.tracer.StartRequest(r.Context(), "/v1/entries")
	defer span.End()

	var req InvalidateAPIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		http.Error(w, "'query' is required", http.StatusBadRequest)
		return
	}

	if err := s.stack.engine.Invalidate(ctx, req.Query); err != nil {
		http.Error(w, fmt.Sprintf("Invalidation failed: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "invalidated"})
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	window := time.Hour
	if raw := r.URL.Query().Get("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "Invalid 'window' duration", http.StatusBadRequest)
			return
		}
		window = parsed
	}

	// Drain pending records so the snapshot covers this instant.
	if err := s.stack.journal.Flush(r.Context()); err != nil {
		http.Error(w, fmt.Sprintf("Journal flush failed: %v", err), http.StatusInternalServerError)
		return
	}

	to := time.Now()
	from := to.Add(-window)

	records, err := s.stack.records.Query(r.Context(), from, to)
	if err != nil {
		http.Error(w, fmt.Sprintf("Record query failed: %v", err), http.StatusInternalServerError)
		return
	}

	cfg := analytics.DefaultConfig()
	if s.stack.cfg.Analytics.TrendThreshold > 0 {
		cfg.TrendThreshold = s.stack.cfg.Analytics.TrendThreshold
	}
	if s.stack.cfg.Analytics.MaxRecommendations > 0 {
		cfg.MaxRecommendations = s.stack.cfg.Analytics.MaxRecommendations
	}

	snapshot := analytics.Aggregate(records, from, to, cfg)
	resp := AnalyticsAPIResponse{
		Snapshot:        snapshot,
		Recommendations: analytics.Recommend(snapshot, cfg),
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := s.stack.engine.Stats()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"entries":     stats.Entries,
		"total_bytes": stats.TotalBytes,
		"max_bytes":   stats.MaxBytes,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
