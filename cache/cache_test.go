package cache

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveThenContains(t *testing.T) {
	c := New(t.TempDir())
	data := []byte("hello world")
	digest := "e.g.digest-does-not-need-to-be-a-real-sha-for-this-store"

	if c.Contains("pkg.whl", digest) {
		t.Fatalf("should not contain before Save")
	}
	if _, err := c.Save("pkg.whl", digest, data); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !c.Contains("pkg.whl", digest) {
		t.Fatalf("should contain after Save")
	}
}

func TestSaveIsAtomicNoTempFilesLeftBehind(t *testing.T) {
	c := New(t.TempDir())
	if _, err := c.Save("pkg.whl", "digest1", []byte("data")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(c.Root(), "digest1"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "pkg.whl" {
		t.Errorf("expected exactly one file named pkg.whl, got %v", entries)
	}
}

func TestMaterializeHardlinksOrCopies(t *testing.T) {
	c := New(t.TempDir())
	data := []byte("payload bytes")
	if _, err := c.Save("pkg.whl", "digest1", data); err != nil {
		t.Fatalf("Save: %v", err)
	}

	dst := t.TempDir()
	if err := c.Materialize("pkg.whl", "digest1", dst); err != nil {
		t.Fatalf("Materialize: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dst, "pkg.whl"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("materialized bytes = %q, want %q", got, data)
	}
}

func TestMaterializeIsNoOpIfDestinationExists(t *testing.T) {
	c := New(t.TempDir())
	if _, err := c.Save("pkg.whl", "digest1", []byte("v1")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	dst := t.TempDir()
	if err := c.Materialize("pkg.whl", "digest1", dst); err != nil {
		t.Fatalf("Materialize: %v", err)
	}

	// Overwrite the materialized copy; a second Materialize must not touch it.
	if err := os.WriteFile(filepath.Join(dst, "pkg.whl"), []byte("mutated"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := c.Materialize("pkg.whl", "digest1", dst); err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	got, _ := os.ReadFile(filepath.Join(dst, "pkg.whl"))
	if string(got) != "mutated" {
		t.Errorf("second Materialize should be a no-op, got %q", got)
	}
}

func TestClearRemovesEverything(t *testing.T) {
	c := New(t.TempDir())
	if _, err := c.Save("pkg.whl", "digest1", []byte("data")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if c.Contains("pkg.whl", "digest1") {
		t.Errorf("expected cache to be empty after Clear")
	}
}
