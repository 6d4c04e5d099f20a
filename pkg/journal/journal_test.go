package journal

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/semcache/semcache/pkg/types"
)

func record(id string, ts time.Time, opType types.OperationType) types.OperationRecord {
	return types.OperationRecord{
		OperationID: id,
		Timestamp:   ts,
		Type:        opType,
		Strategy:    types.StrategyExact,
		Query:       types.QueryInfo{Normalized: "what is a goroutine", Hash: "abc123"},
		Tokens:      types.TokenDelta{WithoutCache: 100, Saved: 100, SavedPercent: 100},
		Insight:     types.OptimizationInsight{Level: types.LevelCritical, ROIScore: 0.9, EvictionRisk: types.RiskLow},
	}
}

func TestJournal_WritesInOrder(t *testing.T) {
	store := NewMemoryStore()
	j, err := New(store, DefaultConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		j.Record(record(fmt.Sprintf("op-%02d", i), base.Add(time.Duration(i)*time.Second), types.OpExactHit))
	}

	if err := j.Flush(context.Background()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if store.Len() != 10 {
		t.Fatalf("stored %d records, want 10", store.Len())
	}

	got, err := store.Query(context.Background(), base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	for i, r := range got {
		if want := fmt.Sprintf("op-%02d", i); r.OperationID != want {
			t.Errorf("record %d = %s, want %s", i, r.OperationID, want)
		}
	}

	if err := j.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestJournal_DropsOnFullQueue(t *testing.T) {
	// A store that blocks until released, so the queue fills.
	release := make(chan struct{})
	store := &blockingStore{release: release}

	cfg := DefaultConfig()
	cfg.QueueSize = 1
	j, err := New(store, cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var dropTotal int64
	j.OnDrop = func(total int64) { dropTotal = total }

	ts := time.Now()
	// First record occupies the worker, second fills the queue, the rest drop.
	for i := 0; i < 5; i++ {
		j.Record(record(fmt.Sprintf("op-%d", i), ts, types.OpExactHit))
	}
	// Queue of 1 plus the in-flight record: at least 3 drops.
	if j.Dropped() < 3 {
		t.Errorf("Dropped = %d, want >= 3", j.Dropped())
	}
	if dropTotal != j.Dropped() {
		t.Errorf("OnDrop saw %d, counter says %d", dropTotal, j.Dropped())
	}

	close(release)
	_ = j.Close()
}

func TestJournal_RetriesThenAbandons(t *testing.T) {
	store := &failingStore{}
	cfg := DefaultConfig()
	cfg.MaxRetries = 2
	cfg.RetryBackoff = time.Millisecond
	j, err := New(store, cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	j.Record(record("op-1", time.Now(), types.OpExactHit))
	_ = j.Flush(context.Background())

	if store.attempts != 3 {
		t.Errorf("attempts = %d, want 3 (1 + 2 retries)", store.attempts)
	}
	if j.Failed() != 1 {
		t.Errorf("Failed = %d, want 1", j.Failed())
	}
	_ = j.Close()
}

func TestJournal_RecordAfterClose(t *testing.T) {
	j, _ := New(NewMemoryStore(), DefaultConfig())
	_ = j.Close()

	j.Record(record("late", time.Now(), types.OpExactHit))
	if j.Dropped() != 1 {
		t.Errorf("record after close should drop, Dropped = %d", j.Dropped())
	}
	if err := j.Flush(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Flush after close = %v, want ErrClosed", err)
	}
	// Close is idempotent.
	if err := j.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestJournal_ConcurrentRecordAndClose(t *testing.T) {
	const writers = 8
	const perWriter = 200

	store := NewMemoryStore()
	j, err := New(store, DefaultConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	start := make(chan struct{})
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			<-start
			for i := 0; i < perWriter; i++ {
				// Must never panic, even when Close lands mid-send.
				j.Record(record(fmt.Sprintf("op-%d-%d", w, i), time.Now(), types.OpExactHit))
			}
		}(w)
	}

	close(start)
	if err := j.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	wg.Wait()

	// Every record is accounted for: persisted or dropped.
	if got := int64(store.Len()) + j.Dropped(); got != writers*perWriter {
		t.Errorf("stored+dropped = %d, want %d", got, writers*perWriter)
	}
}

func TestSQLiteStore_AppendQuery(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	full := record("op-1", base.Add(time.Minute), types.OpSemanticHit)
	full.Semantic = &types.SemanticMatch{Similarity: 0.92, Confidence: 0.92, ThresholdUsed: 0.85, ThresholdMet: true}
	full.Cache = &types.CacheMetadata{Age: 5 * time.Minute, TTLRemaining: 55 * time.Minute, AccessCount: 7}
	full.Insight.Suggestions = []types.Suggestion{{Kind: types.SuggestReviewThreshold, Similarity: 0.92, Threshold: 0.85}}

	if err := store.Append(ctx, full); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := store.Append(ctx, record("op-0", base.Add(30*time.Second), types.OpExactHit)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	// Immutability: re-appending the same operation ID fails.
	if err := store.Append(ctx, full); err == nil {
		t.Error("duplicate operation ID must be rejected")
	}

	got, err := store.Query(ctx, base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[0].OperationID != "op-0" || got[1].OperationID != "op-1" {
		t.Errorf("wrong order: %s, %s", got[0].OperationID, got[1].OperationID)
	}

	round := got[1]
	if round.Semantic == nil || round.Semantic.Similarity != 0.92 {
		t.Errorf("semantic match lost in round trip: %+v", round.Semantic)
	}
	if round.Cache == nil || round.Cache.AccessCount != 7 {
		t.Errorf("cache metadata lost in round trip: %+v", round.Cache)
	}
	if len(round.Insight.Suggestions) != 1 || round.Insight.Suggestions[0].Kind != types.SuggestReviewThreshold {
		t.Errorf("suggestions lost in round trip: %+v", round.Insight.Suggestions)
	}
	if round.Tokens.SavedPercent != 100 {
		t.Errorf("economics lost in round trip: %+v", round.Tokens)
	}
}

func TestSQLiteStore_WindowBounds(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	_ = store.Append(ctx, record("at-from", base, types.OpExactHit))
	_ = store.Append(ctx, record("at-to", base.Add(time.Hour), types.OpExactHit))

	got, err := store.Query(ctx, base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	// Window is half-open: [from, to).
	if len(got) != 1 || got[0].OperationID != "at-from" {
		t.Errorf("half-open window violated: %v", got)
	}
}

type blockingStore struct {
	release chan struct{}
}

func (b *blockingStore) Append(ctx context.Context, _ types.OperationRecord) error {
	<-b.release
	return nil
}

func (b *blockingStore) Query(ctx context.Context, from, to time.Time) ([]types.OperationRecord, error) {
	return nil, nil
}

func (b *blockingStore) Close() error { return nil }

type failingStore struct {
	attempts int
}

func (f *failingStore) Append(ctx context.Context, _ types.OperationRecord) error {
	f.attempts++
	return errors.New("disk full")
}

func (f *failingStore) Query(ctx context.Context, from, to time.Time) ([]types.OperationRecord, error) {
	return nil, nil
}

func (f *failingStore) Close() error { return nil }
