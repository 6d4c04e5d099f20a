package eviction

import (
	"testing"
	"time"

	"github.com/semcache/semcache/pkg/types"
)

func entry(key string, created, accessed time.Time, count int64, valueSize int) types.CacheEntry {
	return types.CacheEntry{
		Key:          key,
		Value:        make([]byte, valueSize),
		CreatedAt:    created,
		LastAccessed: accessed,
		AccessCount:  count,
	}
}

func TestNewManager_RejectsBadPolicy(t *testing.T) {
	if _, err := NewManager("random", 0); err == nil {
		t.Error("expected error for unknown policy")
	}
	if _, err := NewManager(types.EvictLRU, -1); err == nil {
		t.Error("expected error for negative batch limit")
	}
}

func TestSelectVictims_UnderBudget(t *testing.T) {
	m, _ := NewManager(types.EvictLRU, 0)
	now := time.Now()
	entries := []types.CacheEntry{entry("a", now, now, 1, 100)}

	if victims := m.SelectVictims(entries, 200, 50, 1000); victims != nil {
		t.Errorf("expected no victims when under budget, got %v", victims)
	}
}

func TestSelectVictims_LRUScenario(t *testing.T) {
	// policy=LRU, capacity for two entries; insert A, insert B, access A,
	// insert C -> B is the victim.
	m, _ := NewManager(types.EvictLRU, 0)
	base := time.Now()

	a := entry("a", base, base.Add(3*time.Second), 2, 100) // accessed after B
	b := entry("b", base.Add(time.Second), base.Add(time.Second), 1, 100)

	// Each entry accounts ~101 bytes; budget fits two.
	victims := m.SelectVictims([]types.CacheEntry{a, b}, 202, 101, 250)

	if len(victims) != 1 || victims[0] != "b" {
		t.Errorf("expected [b], got %v", victims)
	}
}

func TestSelectVictims_LFUTieBrokenByOldestCreated(t *testing.T) {
	m, _ := NewManager(types.EvictLFU, 0)
	base := time.Now()

	older := entry("young-key", base, base, 5, 100)
	newer := entry("old-key", base.Add(time.Minute), base, 5, 100)

	victims := m.SelectVictims([]types.CacheEntry{newer, older}, 202, 101, 250)

	if len(victims) != 1 || victims[0] != "young-key" {
		t.Errorf("LFU tie should evict oldest created, got %v", victims)
	}
}

func TestSelectVictims_LFULowestCount(t *testing.T) {
	m, _ := NewManager(types.EvictLFU, 0)
	base := time.Now()

	hot := entry("hot", base, base.Add(time.Hour), 50, 100)
	cold := entry("cold", base.Add(time.Minute), base.Add(2*time.Hour), 1, 100)

	victims := m.SelectVictims([]types.CacheEntry{hot, cold}, 202, 101, 250)

	if len(victims) != 1 || victims[0] != "cold" {
		t.Errorf("LFU should evict lowest access count, got %v", victims)
	}
}

func TestSelectVictims_FIFO(t *testing.T) {
	m, _ := NewManager(types.EvictFIFO, 0)
	base := time.Now()

	first := entry("first", base, base.Add(time.Hour), 100, 100)
	second := entry("second", base.Add(time.Second), base, 1, 100)

	victims := m.SelectVictims([]types.CacheEntry{second, first}, 202, 101, 250)

	if len(victims) != 1 || victims[0] != "first" {
		t.Errorf("FIFO should evict oldest created regardless of use, got %v", victims)
	}
}

func TestSelectVictims_NeverOverEvicts(t *testing.T) {
	m, _ := NewManager(types.EvictLRU, 0)
	base := time.Now()

	var entries []types.CacheEntry
	var total int64
	for i := 0; i < 10; i++ {
		e := entry(string(rune('a'+i)), base.Add(time.Duration(i)*time.Second), base.Add(time.Duration(i)*time.Second), 1, 99)
		entries = append(entries, e)
		total += e.SizeBytes()
	}

	// Needs exactly one entry's worth of space.
	victims := m.SelectVictims(entries, total, 50, total)

	if len(victims) != 1 {
		t.Errorf("expected exactly 1 victim, got %d", len(victims))
	}
	if victims[0] != "a" {
		t.Errorf("expected oldest entry evicted first, got %v", victims)
	}
}

func TestSelectVictims_EvictsEnough(t *testing.T) {
	m, _ := NewManager(types.EvictFIFO, 0)
	base := time.Now()

	var entries []types.CacheEntry
	var total int64
	for i := 0; i < 5; i++ {
		e := entry(string(rune('a'+i)), base.Add(time.Duration(i)*time.Second), base, 1, 99)
		entries = append(entries, e)
		total += e.SizeBytes()
	}

	// Incoming entry needs 3 victims' worth of space.
	victims := m.SelectVictims(entries, total, 299, total)

	var freed int64
	for _, k := range victims {
		for _, e := range entries {
			if e.Key == k {
				freed += e.SizeBytes()
			}
		}
	}
	if total+299-freed > total {
		t.Errorf("under-evicted: freed %d of needed 299", freed)
	}
}

func TestSelectVictims_BatchLimit(t *testing.T) {
	m, _ := NewManager(types.EvictLRU, 2)
	base := time.Now()

	var entries []types.CacheEntry
	for i := 0; i < 10; i++ {
		entries = append(entries, entry(string(rune('a'+i)), base, base.Add(time.Duration(i)*time.Second), 1, 99))
	}

	// Needs far more than two victims, but the batch cap holds.
	victims := m.SelectVictims(entries, 1000, 900, 1000)

	if len(victims) != 2 {
		t.Errorf("batch limit 2 violated: got %d victims", len(victims))
	}
}

func TestSelectVictims_Deterministic(t *testing.T) {
	m, _ := NewManager(types.EvictLRU, 0)
	base := time.Now()

	// Identical timestamps force the key tie-break.
	entries := []types.CacheEntry{
		entry("b", base, base, 1, 100),
		entry("a", base, base, 1, 100),
		entry("c", base, base, 1, 100),
	}

	first := m.SelectVictims(entries, 303, 101, 303)
	second := m.SelectVictims(entries, 303, 101, 303)

	if len(first) != 1 || first[0] != "a" {
		t.Errorf("expected key tie-break to pick 'a', got %v", first)
	}
	if first[0] != second[0] {
		t.Error("selection must be reproducible")
	}
}
