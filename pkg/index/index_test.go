package index

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestMemory_SearchOrdering(t *testing.T) {
	idx := NewMemory()
	defer func() { _ = idx.Close() }()
	ctx := context.Background()

	// Unit vectors at increasing angles from the query.
	_ = idx.Upsert(ctx, "close", []float32{0.99, 0.14})
	_ = idx.Upsert(ctx, "closer", []float32{1, 0})
	_ = idx.Upsert(ctx, "far", []float32{0, 1})

	matches, err := idx.Search(ctx, []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("got %d matches, want 3", len(matches))
	}
	if matches[0].Key != "closer" || matches[1].Key != "close" || matches[2].Key != "far" {
		t.Errorf("wrong order: %v", matches)
	}
	if matches[0].Score < 0.999 {
		t.Errorf("identical vector score = %f, want ~1", matches[0].Score)
	}
}

func TestMemory_SearchScoreValue(t *testing.T) {
	idx := NewMemory()
	defer func() { _ = idx.Close() }()
	ctx := context.Background()

	// 45 degrees from the query: cosine is 1/sqrt(2).
	_ = idx.Upsert(ctx, "diag", []float32{1, 1})

	matches, err := idx.Search(ctx, []float32{1, 0}, 1)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	want := float32(math.Sqrt2 / 2)
	if got := matches[0].Score; got < want-1e-6 || got > want+1e-6 {
		t.Errorf("Score = %f, want %f", got, want)
	}
}

func TestMemory_SearchTopK(t *testing.T) {
	idx := NewMemory()
	defer func() { _ = idx.Close() }()
	ctx := context.Background()

	_ = idx.Upsert(ctx, "a", []float32{1, 0})
	_ = idx.Upsert(ctx, "b", []float32{0.9, 0.1})
	_ = idx.Upsert(ctx, "c", []float32{0, 1})

	matches, err := idx.Search(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("got %d matches, want topK=2", len(matches))
	}
}

func TestMemory_TieBreakByKey(t *testing.T) {
	idx := NewMemory()
	defer func() { _ = idx.Close() }()
	ctx := context.Background()

	// Identical vectors: the tie must break lexicographically.
	_ = idx.Upsert(ctx, "zeta", []float32{1, 0})
	_ = idx.Upsert(ctx, "alpha", []float32{1, 0})

	matches, _ := idx.Search(ctx, []float32{1, 0}, 10)
	if matches[0].Key != "alpha" || matches[1].Key != "zeta" {
		t.Errorf("tie not broken by key: %v", matches)
	}
}

func TestMemory_UpsertReplaces(t *testing.T) {
	idx := NewMemory()
	defer func() { _ = idx.Close() }()
	ctx := context.Background()

	_ = idx.Upsert(ctx, "k", []float32{1, 0})
	_ = idx.Upsert(ctx, "k", []float32{0, 1})

	if idx.Len() != 1 {
		t.Fatalf("Len = %d, want 1 after replace", idx.Len())
	}
	matches, _ := idx.Search(ctx, []float32{0, 1}, 1)
	if matches[0].Score < 0.999 {
		t.Errorf("replaced vector not in effect: %v", matches)
	}
}

func TestMemory_Delete(t *testing.T) {
	idx := NewMemory()
	defer func() { _ = idx.Close() }()
	ctx := context.Background()

	_ = idx.Upsert(ctx, "k", []float32{1, 0})
	if err := idx.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := idx.Delete(ctx, "absent"); err != nil {
		t.Errorf("Delete of absent key failed: %v", err)
	}

	matches, _ := idx.Search(ctx, []float32{1, 0}, 10)
	if len(matches) != 0 {
		t.Errorf("deleted vector still returned: %v", matches)
	}
}

func TestMemory_InvalidVector(t *testing.T) {
	idx := NewMemory()
	defer func() { _ = idx.Close() }()
	ctx := context.Background()

	if err := idx.Upsert(ctx, "k", nil); !errors.Is(err, ErrInvalidVector) {
		t.Errorf("Upsert(nil) = %v, want ErrInvalidVector", err)
	}
	if _, err := idx.Search(ctx, nil, 5); !errors.Is(err, ErrInvalidVector) {
		t.Errorf("Search(nil) = %v, want ErrInvalidVector", err)
	}
}

func TestMemory_Closed(t *testing.T) {
	idx := NewMemory()
	_ = idx.Close()

	if err := idx.Upsert(context.Background(), "k", []float32{1}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if _, err := idx.Search(context.Background(), []float32{1}, 1); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
