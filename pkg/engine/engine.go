// Package engine implements the cache decision engine: it resolves queries
// through exact, semantic, and intent matching, enforces the cache policy,
// and emits an immutable operation record for every decision.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/semcache/semcache/pkg/economics"
	"github.com/semcache/semcache/pkg/embedding"
	"github.com/semcache/semcache/pkg/eviction"
	"github.com/semcache/semcache/pkg/index"
	"github.com/semcache/semcache/pkg/journal"
	"github.com/semcache/semcache/pkg/normalize"
	"github.com/semcache/semcache/pkg/recorder"
	"github.com/semcache/semcache/pkg/storage"
	"github.com/semcache/semcache/pkg/telemetry"
	"github.com/semcache/semcache/pkg/tokenizer"
	"github.com/semcache/semcache/pkg/types"
)

// Common errors returned by the engine.
var (
	ErrEntryTooLarge = errors.New("entry exceeds cache capacity")
	ErrEmptyQuery    = errors.New("empty query")
	ErrStorage       = errors.New("storage failure")
)

// searchTopK bounds semantic candidates considered per resolution.
const searchTopK = 10

// EventSink receives fire-and-forget engine events. pkg/metrics implements
// it; a nil sink is replaced by a no-op.
type EventSink interface {
	OperationResolved(opType, strategy string, duration time.Duration, tokensSaved int, costSaved float64)
	EntriesEvicted(policy string, count int)
	SemanticDegraded()
	CacheSized(entries int, bytes int64)
}

// Deps carries the engine's collaborators. Store is required; Index and
// Embedder are required when the policy enables semantic matching. Nil
// optional fields get working defaults.
type Deps struct {
	Store      storage.Store
	Index      index.Index
	Embedder   embedding.Provider
	Normalizer normalize.Normalizer
	Tokens     tokenizer.Counter
	Recorder   *recorder.Recorder
	Journal    *journal.Journal
	Events     EventSink
	Tracer     *telemetry.Provider
	Clock      func() time.Time
}

// Engine is the cache decision engine. Safe for concurrent use.
type Engine struct {
	policy types.CachePolicy
	deps   Deps
	evict  *eviction.Manager

	sf singleflight.Group

	mu         sync.RWMutex
	entries    map[string]types.CacheEntry
	tagIndex   map[string]map[string]struct{}
	expired    map[string]struct{}
	totalBytes int64
}

// New validates the policy and dependencies and builds an engine.
func New(policy types.CachePolicy, deps Deps) (*Engine, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if policy.SemanticEnabled {
		if deps.Embedder == nil {
			return nil, fmt.Errorf("embedding provider is required when semantic matching is enabled")
		}
		if deps.Index == nil {
			return nil, fmt.Errorf("vector index is required when semantic matching is enabled")
		}
	}
	if deps.Normalizer == nil {
		deps.Normalizer = normalize.NewRuleNormalizer()
	}
	if deps.Tokens == nil {
		deps.Tokens = tokenizer.NewHeuristic()
	}
	if deps.Recorder == nil {
		rec, err := recorder.New(recorder.DefaultConfig())
		if err != nil {
			return nil, err
		}
		deps.Recorder = rec
	}
	if deps.Events == nil {
		deps.Events = noopSink{}
	}
	if deps.Tracer == nil {
		tracer, err := telemetry.Init(context.Background(), telemetry.DefaultConfig())
		if err != nil {
			return nil, err
		}
		deps.Tracer = tracer
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	mgr, err := eviction.NewManager(policy.Eviction, policy.EvictionBatchLimit)
	if err != nil {
		return nil, err
	}

	return &Engine{
		policy:   policy,
		deps:     deps,
		evict:    mgr,
		entries:  make(map[string]types.CacheEntry),
		tagIndex: make(map[string]map[string]struct{}),
		expired:  make(map[string]struct{}),
	}, nil
}

// Policy returns the engine's immutable policy.
func (e *Engine) Policy() types.CachePolicy { return e.policy }

// ResolveRequest is one query to answer from the cache.
type ResolveRequest struct {
	// Query is the raw query text.
	Query string

	// Model names the LLM whose call the cache would replace, for cost
	// accounting. Empty uses default pricing.
	Model string

	// PromptTokens and CompletionTokens are the known token counts of the
	// avoided call. Zero values are estimated heuristically.
	PromptTokens     int
	CompletionTokens int
}

// ResolveResult is the outcome of one resolution.
type ResolveResult struct {
	// Hit reports whether the cache answered the query.
	Hit bool

	// Value is the cached payload on a hit.
	Value []byte

	// Record is the immutable audit record of this decision.
	Record types.OperationRecord
}

// Resolve answers a query from the cache: exact match first, then semantic
// similarity, then intent. Every path, including failures, produces an
// operation record. Storage failures are returned as errors wrapping
// ErrStorage and recorded as cache_error.
func (e *Engine) Resolve(ctx context.Context, req ResolveRequest) (ResolveResult, error) {
	start := e.deps.Clock()

	if req.Query == "" {
		return ResolveResult{}, ErrEmptyQuery
	}

	norm, err := e.deps.Normalizer.Normalize(ctx, req.Query)
	if err != nil {
		return ResolveResult{}, fmt.Errorf("normalize query: %w", err)
	}

	ctx, span := e.deps.Tracer.StartResolve(ctx, norm.Hash)
	defer span.End()

	query := types.QueryInfo{
		Original:   req.Query,
		Normalized: norm.Text,
		Hash:       norm.Hash,
		Intent:     norm.Intent,
	}

	// Exact match by normalized-key hash.
	if entry, ok := e.lookup(norm.Hash); ok {
		return e.finishHit(ctx, span, req, query, entry, types.OpExactHit, types.StrategyExact, nil, start), nil
	}

	// Read-through: the table may have been cold-started without this key.
	entry, err := e.readThrough(ctx, norm.Hash)
	if err != nil {
		res := e.finishError(ctx, span, req, query, err, start)
		return res, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if entry != nil {
		return e.finishHit(ctx, span, req, query, *entry, types.OpExactHit, types.StrategyExact, nil, start), nil
	}

	// Semantic similarity.
	strategy := types.StrategyExact
	var semantic *types.SemanticMatch
	if e.policy.SemanticEnabled {
		match, matched, degraded := e.resolveSemantic(ctx, norm.Text)
		switch {
		case degraded:
			strategy = types.StrategyExactDegraded
			e.deps.Events.SemanticDegraded()
		case matched != nil:
			return e.finishHit(ctx, span, req, query, *matched, types.OpSemanticHit, types.StrategySemantic, match, start), nil
		default:
			strategy = types.StrategySemantic
			semantic = match
		}
	}

	// Intent match: same classified intent, most recently accessed wins.
	if norm.Intent != "" {
		if entry, ok := e.lookupByTag(norm.Intent); ok {
			return e.finishHit(ctx, span, req, query, entry, types.OpIntentHit, types.StrategyIntent, nil, start), nil
		}
	}

	opType := types.OpExactMiss
	if strategy == types.StrategySemantic {
		opType = types.OpSemanticMiss
	}
	return e.finishMiss(ctx, span, req, query, opType, strategy, semantic, start), nil
}

// StoreRequest is one entry to cache.
type StoreRequest struct {
	// Query is the raw query text the value answers.
	Query string

	// Value is the payload to cache.
	Value []byte

	// TTL overrides the policy default when positive.
	TTL time.Duration

	// Tags are additional lookup tags; the classified intent is always added.
	Tags []string
}

// Store caches a value under the query's normalized key. Concurrent stores
// for the same key are serialized so exactly one live entry results. The
// eviction pass runs before insertion when the entry would exceed capacity.
func (e *Engine) Store(ctx context.Context, req StoreRequest) error {
	if req.Query == "" {
		return ErrEmptyQuery
	}

	norm, err := e.deps.Normalizer.Normalize(ctx, req.Query)
	if err != nil {
		return fmt.Errorf("normalize query: %w", err)
	}

	ctx, span := e.deps.Tracer.StartStore(ctx, norm.Hash)
	defer span.End()

	_, err, _ = e.sf.Do(norm.Hash, func() (any, error) {
		return nil, e.storeOne(ctx, req, norm)
	})
	if err != nil {
		telemetry.RecordError(span, err)
	}
	return err
}

func (e *Engine) storeOne(ctx context.Context, req StoreRequest, norm normalize.Normalized) error {
	now := e.deps.Clock()

	ttl := req.TTL
	if ttl <= 0 {
		ttl = e.policy.DefaultTTL
	}

	tags := append([]string(nil), req.Tags...)
	if norm.Intent != "" && !containsString(tags, norm.Intent) {
		tags = append(tags, norm.Intent)
	}

	entry := types.CacheEntry{
		Key:          norm.Hash,
		Value:        append([]byte(nil), req.Value...),
		CreatedAt:    now,
		LastAccessed: now,
		TTL:          ttl,
		Tags:         tags,
	}

	// Embed the normalized text so semantically similar queries can find
	// this entry. Failure degrades to exact-only for this entry.
	if e.policy.SemanticEnabled {
		vector, err := e.embed(ctx, norm.Text)
		if err != nil {
			e.deps.Events.SemanticDegraded()
		} else {
			entry.Embedding = vector
		}
	}

	if entry.SizeBytes() > e.policy.MaxSizeBytes {
		return fmt.Errorf("%w: entry is %d bytes, capacity is %d",
			ErrEntryTooLarge, entry.SizeBytes(), e.policy.MaxSizeBytes)
	}

	victims := e.insert(ctx, entry, now)

	// Persist before indexing so the index never points at a key the
	// store cannot serve.
	storeCtx, cancel := e.storeCtx(ctx)
	err := e.deps.Store.Put(storeCtx, entry)
	cancel()
	if err != nil {
		e.remove(entry.Key)
		return fmt.Errorf("%w: put %s: %v", ErrStorage, entry.Key, err)
	}

	if len(entry.Embedding) > 0 {
		if err := e.deps.Index.Upsert(ctx, entry.Key, entry.Embedding); err != nil {
			// The entry still serves exact lookups.
			e.deps.Events.SemanticDegraded()
		}
	}

	if len(victims) > 0 {
		e.deps.Events.EntriesEvicted(string(e.evict.Policy()), len(victims))
	}
	e.publishSize()
	return nil
}

// insert sweeps marked-expired keys, evicts under pressure, and places the
// entry in the table. It returns the evicted keys.
func (e *Engine) insert(ctx context.Context, entry types.CacheEntry, now time.Time) []string {
	e.mu.Lock()

	// Lazy TTL: expired entries discovered by reads are reclaimed here,
	// on the next write path.
	for key := range e.expired {
		if old, ok := e.entries[key]; ok && old.IsExpired(now) {
			e.dropLocked(old)
		}
		delete(e.expired, key)
	}

	// Replacing an existing entry frees its accounted bytes first.
	if old, ok := e.entries[entry.Key]; ok {
		e.dropLocked(old)
	}

	var victims []string
	if e.totalBytes+entry.SizeBytes() > e.policy.MaxSizeBytes {
		_, span := e.deps.Tracer.StartEviction(ctx, string(e.evict.Policy()),
			e.totalBytes+entry.SizeBytes()-e.policy.MaxSizeBytes)

		snapshot := make([]types.CacheEntry, 0, len(e.entries))
		for _, existing := range e.entries {
			snapshot = append(snapshot, existing)
		}
		victims = e.evict.SelectVictims(snapshot, e.totalBytes, entry.SizeBytes(), e.policy.MaxSizeBytes)
		for _, key := range victims {
			if victim, ok := e.entries[key]; ok {
				e.dropLocked(victim)
			}
		}
		span.End()
	}

	e.entries[entry.Key] = entry
	e.totalBytes += entry.SizeBytes()
	for _, tag := range entry.Tags {
		if e.tagIndex[tag] == nil {
			e.tagIndex[tag] = make(map[string]struct{})
		}
		e.tagIndex[tag][entry.Key] = struct{}{}
	}
	e.mu.Unlock()

	// Backing store and index cleanup happen outside the table lock.
	for _, key := range victims {
		e.deleteEverywhere(ctx, key)
	}
	return victims
}

// dropLocked removes an entry from the table and tag index. Caller holds mu.
func (e *Engine) dropLocked(entry types.CacheEntry) {
	delete(e.entries, entry.Key)
	e.totalBytes -= entry.SizeBytes()
	for _, tag := range entry.Tags {
		if keys, ok := e.tagIndex[tag]; ok {
			delete(keys, entry.Key)
			if len(keys) == 0 {
				delete(e.tagIndex, tag)
			}
		}
	}
}

// remove deletes a key from the table only, used to undo a failed insert.
func (e *Engine) remove(key string) {
	e.mu.Lock()
	if entry, ok := e.entries[key]; ok {
		e.dropLocked(entry)
	}
	e.mu.Unlock()
}

// deleteEverywhere removes an evicted key from the index and the backing
// store. Store deletes retry a bounded number of times; a key that cannot
// be deleted stays orphaned in the store and is ignored by lookups.
func (e *Engine) deleteEverywhere(ctx context.Context, key string) {
	if e.deps.Index != nil {
		_ = e.deps.Index.Delete(ctx, key)
	}
	for attempt := 0; attempt <= e.policy.EvictionDeleteRetries; attempt++ {
		storeCtx, cancel := e.storeCtx(ctx)
		err := e.deps.Store.Delete(storeCtx, key)
		cancel()
		if err == nil {
			return
		}
	}
}

// Invalidate removes an entry by its raw query text.
func (e *Engine) Invalidate(ctx context.Context, query string) error {
	norm, err := e.deps.Normalizer.Normalize(ctx, query)
	if err != nil {
		return fmt.Errorf("normalize query: %w", err)
	}
	e.remove(norm.Hash)
	e.deleteEverywhere(ctx, norm.Hash)
	e.publishSize()
	return nil
}

// Load warms the entry table from the backing store, skipping entries that
// expired while the engine was down.
func (e *Engine) Load(ctx context.Context) error {
	stored, err := e.deps.Store.List(ctx)
	if err != nil {
		return fmt.Errorf("%w: list entries: %v", ErrStorage, err)
	}
	now := e.deps.Clock()

	e.mu.Lock()
	for _, entry := range stored {
		if entry.IsExpired(now) {
			continue
		}
		e.entries[entry.Key] = entry
		e.totalBytes += entry.SizeBytes()
		for _, tag := range entry.Tags {
			if e.tagIndex[tag] == nil {
				e.tagIndex[tag] = make(map[string]struct{})
			}
			e.tagIndex[tag][entry.Key] = struct{}{}
		}
	}
	e.mu.Unlock()

	if e.policy.SemanticEnabled {
		for _, entry := range stored {
			if len(entry.Embedding) > 0 && !entry.IsExpired(now) {
				if err := e.deps.Index.Upsert(ctx, entry.Key, entry.Embedding); err != nil {
					return fmt.Errorf("index entry %s: %w", entry.Key, err)
				}
			}
		}
	}

	e.publishSize()
	return nil
}

// Stats is a point-in-time view of the entry table.
type Stats struct {
	Entries    int
	TotalBytes int64
	MaxBytes   int64
}

// Stats returns the live entry count and accounted size.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Stats{
		Entries:    len(e.entries),
		TotalBytes: e.totalBytes,
		MaxBytes:   e.policy.MaxSizeBytes,
	}
}

// Close releases the store and index.
func (e *Engine) Close() error {
	var errs []error
	if e.deps.Index != nil {
		if err := e.deps.Index.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.deps.Store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// --- resolution internals ---

// lookup finds a live entry by key, marking expired ones for the next
// write-path sweep.
func (e *Engine) lookup(key string) (types.CacheEntry, bool) {
	now := e.deps.Clock()

	e.mu.RLock()
	entry, ok := e.entries[key]
	e.mu.RUnlock()
	if !ok {
		return types.CacheEntry{}, false
	}
	if entry.IsExpired(now) {
		e.markExpired(key)
		return types.CacheEntry{}, false
	}
	return entry, true
}

// lookupByTag returns the live entry carrying the tag that was accessed most
// recently, ties broken by smallest key.
func (e *Engine) lookupByTag(tag string) (types.CacheEntry, bool) {
	now := e.deps.Clock()

	e.mu.RLock()
	defer e.mu.RUnlock()

	var best types.CacheEntry
	found := false
	for key := range e.tagIndex[tag] {
		entry, ok := e.entries[key]
		if !ok || entry.IsExpired(now) {
			continue
		}
		if !found ||
			entry.LastAccessed.After(best.LastAccessed) ||
			(entry.LastAccessed.Equal(best.LastAccessed) && entry.Key < best.Key) {
			best = entry
			found = true
		}
	}
	return best, found
}

func (e *Engine) markExpired(key string) {
	e.mu.Lock()
	e.expired[key] = struct{}{}
	e.mu.Unlock()
}

// readThrough consults the backing store for a key missing from the table.
func (e *Engine) readThrough(ctx context.Context, key string) (*types.CacheEntry, error) {
	storeCtx, cancel := e.storeCtx(ctx)
	defer cancel()

	entry, err := e.deps.Store.Get(storeCtx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if entry.IsExpired(e.deps.Clock()) {
		return nil, nil
	}

	e.mu.Lock()
	if _, exists := e.entries[key]; !exists {
		e.entries[key] = entry
		e.totalBytes += entry.SizeBytes()
		for _, tag := range entry.Tags {
			if e.tagIndex[tag] == nil {
				e.tagIndex[tag] = make(map[string]struct{})
			}
			e.tagIndex[tag][key] = struct{}{}
		}
	}
	e.mu.Unlock()

	return &entry, nil
}

// resolveSemantic embeds the normalized text and searches the index.
// Returns the match details, the winning entry (nil if below threshold),
// and whether semantic matching degraded.
func (e *Engine) resolveSemantic(ctx context.Context, text string) (*types.SemanticMatch, *types.CacheEntry, bool) {
	vector, err := e.embed(ctx, text)
	if err != nil {
		return nil, nil, true
	}

	searchCtx, span := e.deps.Tracer.StartIndexSearch(ctx, searchTopK, e.policy.SemanticThreshold)
	matches, err := e.deps.Index.Search(searchCtx, vector, searchTopK)
	span.End()
	if err != nil {
		return nil, nil, true
	}
	if len(matches) == 0 {
		return nil, nil, false
	}

	// Count candidates at or above threshold and find the winner among the
	// top-scoring ones: most recently accessed, then smallest key.
	similar := 0
	var winner *types.CacheEntry
	bestScore := float32(-1)
	for _, m := range matches {
		if float64(m.Score) < e.policy.SemanticThreshold {
			continue
		}
		entry, ok := e.lookup(m.Key)
		if !ok {
			continue
		}
		similar++
		switch {
		case m.Score > bestScore:
			bestScore = m.Score
			cloned := entry
			winner = &cloned
		case m.Score == bestScore && winner != nil:
			if entry.LastAccessed.After(winner.LastAccessed) ||
				(entry.LastAccessed.Equal(winner.LastAccessed) && entry.Key < winner.Key) {
				cloned := entry
				winner = &cloned
			}
		}
	}

	top := float64(matches[0].Score)
	match := &types.SemanticMatch{
		Similarity:     top,
		Confidence:     top,
		ThresholdUsed:  e.policy.SemanticThreshold,
		ThresholdMet:   winner != nil,
		SimilarQueries: similar,
	}
	if winner != nil {
		match.Similarity = float64(bestScore)
		match.Confidence = float64(bestScore)
	}
	return match, winner, false
}

func (e *Engine) embed(ctx context.Context, text string) ([]float32, error) {
	embedCtx := ctx
	if e.policy.EmbedTimeout > 0 {
		var cancel context.CancelFunc
		embedCtx, cancel = context.WithTimeout(ctx, e.policy.EmbedTimeout)
		defer cancel()
	}
	embedCtx, span := e.deps.Tracer.StartEmbedding(embedCtx, e.deps.Embedder.ModelName())
	defer span.End()

	vector, err := e.deps.Embedder.Embed(embedCtx, text)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return vector, nil
}

// touch advances access metadata for a hit, replacing the table entry, and
// returns the touched copy along with the pre-touch metadata snapshot.
func (e *Engine) touch(ctx context.Context, entry types.CacheEntry) (types.CacheEntry, types.CacheMetadata) {
	now := e.deps.Clock()
	meta := types.CacheMetadata{
		Age:          entry.Age(now),
		TTLRemaining: entry.TTLRemaining(now),
		AccessCount:  entry.AccessCount + 1,
	}

	touched := entry.Touch(now)
	e.mu.Lock()
	if current, ok := e.entries[entry.Key]; ok {
		// Concurrent hits both count: keep the larger access count.
		if current.AccessCount >= touched.AccessCount {
			touched = current.Touch(now)
		}
		e.entries[entry.Key] = touched
	}
	e.mu.Unlock()

	// Touch persistence is best effort; a failed write costs at most one
	// access-count increment after a restart.
	storeCtx, cancel := e.storeCtx(ctx)
	_ = e.deps.Store.Put(storeCtx, touched)
	cancel()

	return touched, meta
}

func (e *Engine) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.policy.StoreTimeout > 0 {
		return context.WithTimeout(ctx, e.policy.StoreTimeout)
	}
	return context.WithCancel(ctx)
}

// usage derives the avoided call's token split, estimating what the caller
// did not supply.
func (e *Engine) usage(req ResolveRequest, hitValue []byte) economics.Usage {
	u := economics.Usage{Prompt: req.PromptTokens, Completion: req.CompletionTokens}
	if u.Prompt == 0 {
		u.Prompt = e.deps.Tokens.Count(req.Query, req.Model)
	}
	if u.Completion == 0 && len(hitValue) > 0 {
		u.Completion = e.deps.Tokens.Count(string(hitValue), req.Model)
	}
	return u
}

func (e *Engine) costFn(model string) economics.CostFn {
	return func(prompt, completion int) float64 {
		return e.deps.Tokens.Cost(model, prompt, completion)
	}
}

func (e *Engine) finishHit(ctx context.Context, span trace.Span, req ResolveRequest, query types.QueryInfo, entry types.CacheEntry, opType types.OperationType, strategy string, semantic *types.SemanticMatch, start time.Time) ResolveResult {
	touched, meta := e.touch(ctx, entry)

	delta := economics.Compute(e.usage(req, entry.Value), true, e.costFn(req.Model))
	rec := e.deps.Recorder.Build(recorder.Input{
		Type:     opType,
		Strategy: strategy,
		Duration: e.deps.Clock().Sub(start),
		Query:    query,
		Tokens:   delta,
		Semantic: semantic,
		Cache:    &meta,
		EntryTTL: entry.TTL,
	})
	e.emit(rec)
	telemetry.RecordDecision(span, string(opType), strategy, similarityOf(semantic), delta.Saved, rec.Duration)

	return ResolveResult{Hit: true, Value: touched.Clone().Value, Record: rec}
}

func (e *Engine) finishMiss(ctx context.Context, span trace.Span, req ResolveRequest, query types.QueryInfo, opType types.OperationType, strategy string, semantic *types.SemanticMatch, start time.Time) ResolveResult {
	delta := economics.Compute(e.usage(req, nil), false, e.costFn(req.Model))
	rec := e.deps.Recorder.Build(recorder.Input{
		Type:     opType,
		Strategy: strategy,
		Duration: e.deps.Clock().Sub(start),
		Query:    query,
		Tokens:   delta,
		Semantic: semantic,
	})
	e.emit(rec)
	telemetry.RecordDecision(span, string(opType), strategy, similarityOf(semantic), 0, rec.Duration)

	return ResolveResult{Record: rec}
}

func (e *Engine) finishError(ctx context.Context, span trace.Span, req ResolveRequest, query types.QueryInfo, cause error, start time.Time) ResolveResult {
	delta := economics.Compute(e.usage(req, nil), false, e.costFn(req.Model))
	rec := e.deps.Recorder.Build(recorder.Input{
		Type:     types.OpCacheError,
		Strategy: types.StrategyExact,
		Duration: e.deps.Clock().Sub(start),
		Query:    query,
		Tokens:   delta,
		Err:      cause,
	})
	e.emit(rec)
	telemetry.RecordError(span, cause)

	return ResolveResult{Record: rec}
}

// emit publishes a finished record to the journal and event sink.
func (e *Engine) emit(rec types.OperationRecord) {
	if e.deps.Journal != nil {
		e.deps.Journal.Record(rec)
	}
	e.deps.Events.OperationResolved(string(rec.Type), rec.Strategy, rec.Duration, rec.Tokens.Saved, rec.Tokens.CostSaved)
}

func similarityOf(m *types.SemanticMatch) float64 {
	if m == nil {
		return 0
	}
	return m.Similarity
}

type noopSink struct{}

func (noopSink) OperationResolved(string, string, time.Duration, int, float64) {}
func (noopSink) EntriesEvicted(string, int)                                    {}
func (noopSink) SemanticDegraded()                                             {}
func (noopSink) CacheSized(int, int64)                                         {}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (e *Engine) publishSize() {
	stats := e.Stats()
	e.deps.Events.CacheSized(stats.Entries, stats.TotalBytes)
}
