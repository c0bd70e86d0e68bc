package text

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ricesearch/complaint-classifier/internal/pkg/errors"
)

func TestCache_SetGet(t *testing.T) {
	cache := NewCache(100)

	cache.Set("The collector CALLED me", "collector call")

	got, ok := cache.Get("The collector CALLED me")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got != "collector call" {
		t.Errorf("got %q, want %q", got, "collector call")
	}

	if _, ok := cache.Get("not in cache"); ok {
		t.Error("expected cache miss")
	}

	stats := cache.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Size != 1 || stats.MaxSize != 100 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestCache_LRU(t *testing.T) {
	cache := NewCache(3)

	cache.Set("a", "1")
	cache.Set("b", "2")
	cache.Set("c", "3")

	// Access "a" to make it recently used
	cache.Get("a")

	// Add one more (should evict "b" as LRU)
	cache.Set("d", "4")

	if _, ok := cache.Get("a"); !ok {
		t.Error("expected 'a' to be present after LRU access")
	}
	if _, ok := cache.Get("b"); ok {
		t.Error("expected 'b' to be evicted")
	}
	if cache.Size() != 3 {
		t.Errorf("size = %d, want 3", cache.Size())
	}
}

func TestCache_UpdateAndClear(t *testing.T) {
	cache := NewCache(0)

	cache.Set("test", "old")
	cache.Set("test", "new")
	if got, _ := cache.Get("test"); got != "new" {
		t.Errorf("expected updated value, got %q", got)
	}
	if cache.Size() != 1 {
		t.Errorf("size = %d, want 1", cache.Size())
	}

	cache.Clear()
	if cache.Size() != 0 {
		t.Errorf("size after clear = %d, want 0", cache.Size())
	}
	if stats := cache.Stats(); stats.Hits != 0 || stats.MaxSize != 10000 {
		t.Errorf("Stats() after clear = %+v", stats)
	}
}

func TestCache_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "normalized.json")

	cache := NewCache(10)
	cache.SetPersistPath(path)

	// Nothing to flush and nothing to load yet
	if err := cache.Flush(); err != nil {
		t.Fatalf("Flush() empty error = %v", err)
	}
	if err := cache.Load(); err != nil {
		t.Fatalf("Load() missing file error = %v", err)
	}

	cache.Set("first", "one")
	cache.Set("second", "two")
	if err := cache.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	restored := NewCache(10)
	restored.SetPersistPath(path)
	if err := restored.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got, ok := restored.Get("second"); !ok || got != "two" {
		t.Errorf("Get(second) = %q, %v", got, ok)
	}

	// Restored order is preserved: a cache of one keeps the newest entry
	small := NewCache(1)
	small.SetPersistPath(path)
	if err := small.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, ok := small.Get("first"); ok {
		t.Error("expected oldest entry to be evicted on load")
	}

	if err := os.WriteFile(path, []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := restored.Load(); !errors.IsValidation(err) {
		t.Errorf("Load() corrupt error = %v, want validation error", err)
	}
}

func TestCachedNormalizer(t *testing.T) {
	n := newTestNormalizer(t)
	cache := NewCache(10)
	cached := NewCachedNormalizer(n, cache)

	raw := "The debt collectors keep calling me about debts I do not owe!"
	want := n.Normalize(raw)

	if got := cached.Normalize(raw); got != want {
		t.Errorf("Normalize() = %q, want %q", got, want)
	}
	if got := cached.NormalizeAll([]string{raw})[0]; got != want {
		t.Errorf("NormalizeAll() = %q, want %q", got, want)
	}

	stats := cache.Stats()
	if stats.Misses != 1 || stats.Hits != 1 || stats.Size != 1 {
		t.Errorf("Stats() = %+v, want one miss then one hit", stats)
	}

	uncached := NewCachedNormalizer(n, nil)
	if got := uncached.Normalize(raw); got != want {
		t.Errorf("uncached Normalize() = %q, want %q", got, want)
	}
	if uncached.Cache() != nil {
		t.Error("expected nil cache")
	}
}
