package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func sig(n int64) Signature {
	return Signature{Size: n, ModTime: n}
}

func TestExtractCache(t *testing.T) {
	t.Run("Get_After_Put", func(t *testing.T) {
		c := NewExtractCache(50)
		c.Put(sig(1), "text")
		if got, ok := c.Get(sig(1)); !ok || got != "text" {
			t.Errorf("miss or wrong value: %q %v", got, ok)
		}
	})

	t.Run("Miss_On_Unknown_Signature", func(t *testing.T) {
		c := NewExtractCache(50)
		if _, ok := c.Get(sig(99)); ok {
			t.Error("unexpected hit")
		}
	})

	t.Run("Evicts_Oldest_Insertion", func(t *testing.T) {
		c := NewExtractCache(50)
		for i := int64(0); i < 51; i++ {
			c.Put(sig(i), fmt.Sprintf("doc-%d", i))
		}

		if c.Len() != 50 {
			t.Fatalf("expected 50 entries after overflow, got %d", c.Len())
		}
		if _, ok := c.Get(sig(0)); ok {
			t.Error("oldest insertion should have been evicted")
		}
		if _, ok := c.Get(sig(50)); !ok {
			t.Error("newest insertion missing")
		}
	})

	t.Run("Update_Keeps_Insertion_Position", func(t *testing.T) {
		c := NewExtractCache(2)
		c.Put(sig(1), "one")
		c.Put(sig(2), "two")
		c.Put(sig(1), "one-updated") // update, not reinsert
		c.Put(sig(3), "three")       // evicts sig(1), still the oldest

		if _, ok := c.Get(sig(1)); ok {
			t.Error("updated entry should keep its insertion position and be evicted first")
		}
		if got, _ := c.Get(sig(2)); got != "two" {
			t.Error("second insertion should survive")
		}
	})

	t.Run("Zero_Capacity_Clamped", func(t *testing.T) {
		c := NewExtractCache(0)
		c.Put(sig(1), "x")
		if c.Len() != 1 {
			t.Errorf("expected clamp to capacity 1, got len %d", c.Len())
		}
	})
}

func TestFileSignature(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	s1, err := FileSignature(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s1.Size != 5 {
		t.Errorf("expected size 5, got %d", s1.Size)
	}

	s2, _ := FileSignature(path)
	if s1 != s2 {
		t.Error("signature must be stable for an unchanged file")
	}

	if _, err := FileSignature(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestPurgeStaging(t *testing.T) {
	dir := t.TempDir()

	stale := filepath.Join(dir, "stale.pdf")
	fresh := filepath.Join(dir, "fresh.pdf")
	for _, p := range []string{stale, fresh} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}

	if removed := PurgeStaging(dir, time.Hour); removed != 1 {
		t.Errorf("expected 1 removal, got %d", removed)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale file should be gone")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh file should survive")
	}

	t.Run("Missing_Dir_Is_Noop", func(t *testing.T) {
		if removed := PurgeStaging(filepath.Join(dir, "nope"), time.Hour); removed != 0 {
			t.Errorf("expected 0, got %d", removed)
		}
	})
}
