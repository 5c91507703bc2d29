package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/deckcheck/internal/model"
)

func TestCacheKey_Normalizes(t *testing.T) {
	a := CacheKey("Market size is $4.2B")
	b := CacheKey("  market   SIZE is $4.2B ")
	if a != b {
		t.Errorf("Expected equal keys, got %s and %s", a, b)
	}
	if !strings.HasPrefix(a, keyPrefix) {
		t.Errorf("Expected prefix %s, got %s", keyPrefix, a)
	}
	if CacheKey("Market size is $4.3B") == a {
		t.Error("Different claims must not share a key")
	}
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	_ = c.Set("k", []byte("v"), 0)
	if got, ok := c.Get("k"); !ok || string(got) != "v" {
		t.Fatalf("Get = %q, %v", got, ok)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}

	_ = c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Error("Expected entry deleted")
	}
}

func TestDiskCache_RoundTripAndExpiry(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if err := c.Set(CacheKey("claim"), []byte(`{"verdict":"Verified"}`), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if got, ok := c.Get(CacheKey("claim")); !ok || string(got) != `{"verdict":"Verified"}` {
		t.Fatalf("Get = %s, %v", got, ok)
	}

	now = now.Add(2 * time.Hour)
	if _, ok := c.Get(CacheKey("claim")); ok {
		t.Error("Expected expired entry")
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("Expected expired file removed, found %d files", len(entries))
	}
}

func TestDiskCache_RejectsNonJSON(t *testing.T) {
	c := NewDiskCache(t.TempDir(), time.Hour)
	if err := c.Set("k", []byte("not json"), 0); err == nil {
		t.Error("Expected error for non-JSON value")
	}
}

func TestDiskCache_CorruptEntry(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	path := c.path("k")
	if err := os.WriteFile(path, []byte("{garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get("k"); ok {
		t.Error("Expected miss on corrupt entry")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Expected corrupt file removed")
	}
	if filepath.Dir(path) != dir {
		t.Errorf("Entry path escaped cache dir: %s", path)
	}
}

func TestLayeredCache_PromotesDiskHits(t *testing.T) {
	dir := t.TempDir()

	first := NewLayeredCache(time.Minute, dir, time.Hour)
	if err := first.Set("k", []byte(`"v"`), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// A fresh process sees only the disk layer
	second := NewLayeredCache(time.Minute, dir, time.Hour)
	if got, ok := second.Get("k"); !ok || string(got) != `"v"` {
		t.Fatalf("Get = %s, %v", got, ok)
	}
	if _, ok := second.memory.Get("k"); !ok {
		t.Error("Expected disk hit promoted to memory")
	}
}

func TestVerifications(t *testing.T) {
	v := NewVerifications(NewMemoryCache(time.Minute, time.Minute), 0)

	result := model.Verification{
		Verified:    true,
		Verdict:     model.VerdictVerified,
		Explanation: "Matches industry reports",
		Sources:     []model.Source{{Title: "Report", URL: "https://example.com"}},
		Backend:     "perplexity",
	}
	if err := v.Store("Market size is $4.2B", result); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	got, ok := v.Lookup("market size is $4.2B")
	if !ok {
		t.Fatal("Expected cache hit")
	}
	if got.Verdict != result.Verdict || got.Explanation != result.Explanation || len(got.Sources) != 1 {
		t.Errorf("Lookup = %+v", got)
	}
}

func TestVerifications_SkipsBuiltinDefaults(t *testing.T) {
	v := NewVerifications(NewMemoryCache(time.Minute, time.Minute), 0)

	_ = v.Store("claim", model.Verification{Verdict: model.VerdictCannotVerify, Explanation: "No verification backend configured."})
	if _, ok := v.Lookup("claim"); ok {
		t.Error("Built-in defaults must not be cached")
	}
}

func TestVerifications_Nil(t *testing.T) {
	var v *Verifications
	if _, ok := v.Lookup("claim"); ok {
		t.Error("nil cache must miss")
	}
	if err := v.Store("claim", model.Verification{Backend: "x"}); err != nil {
		t.Errorf("nil cache Store: %v", err)
	}
	if FromConfig(model.CacheConfig{Enabled: false}) != nil {
		t.Error("Expected nil cache when disabled")
	}
}
