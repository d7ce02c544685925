// Package cache implements the Cache component (spec.md §4.2): a
// content-addressed local store of artifact bytes keyed by digest, at
// <user-home>/<app-dir>/cache/<sha256>/<filename>.
//
// Cache is a value type cheap to clone (design note in spec.md §9): it
// holds only a root path, so every concurrent installer task in the
// Synchronizer's fan-out can carry its own copy without sharing a mutex.
package cache

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	homedir "github.com/mitchellh/go-homedir"
)

// appDirName is the per-user directory this tool's state lives under,
// mirroring the reference implementation's ".wovensnake" home directory.
const appDirName = ".depctl"

// Cache is the content-addressed artifact store.
type Cache struct {
	root string
}

// New returns a Cache rooted at root.
func New(root string) Cache {
	return Cache{root: root}
}

// Default resolves the cache to <user-home>/.depctl/cache, honouring
// HOME/USERPROFILE the way spec.md §6 requires.
func Default() (Cache, error) {
	home, err := homedir.Dir()
	if err != nil {
		return Cache{}, fmt.Errorf("cache: resolve home directory: %w", err)
	}
	return New(filepath.Join(home, appDirName, "cache")), nil
}

// Root returns the cache's root directory.
func (c Cache) Root() string { return c.root }

// path returns the on-disk path for (filename, digest).
func (c Cache) path(filename, digest string) string {
	return filepath.Join(c.root, digest, filename)
}

// Contains is a pure filesystem check: does a file already sit at
// <root>/<digest>/<filename>?
func (c Cache) Contains(filename, digest string) bool {
	_, err := os.Stat(c.path(filename, digest))
	return err == nil
}

// Save writes bytes atomically: to a sibling temp file, then renamed into
// place. After Save returns without error, Contains(filename, digest) is
// guaranteed true. Save does not hash data: the caller must have verified
// that data matches digest before calling it (syncer does this after every
// download).
func (c Cache) Save(filename, digest string, data []byte) (string, error) {
	dir := filepath.Join(c.root, digest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("cache: create %s: %w", dir, err)
	}

	dst := filepath.Join(dir, filename)
	tmp := filepath.Join(dir, "."+filename+"."+uuid.NewString()+".tmp")

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("cache: create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("cache: write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("cache: close temp file: %w", err)
	}

	// Concurrent writers to the same key race harmlessly: each writes
	// identical bytes (already digest-verified by the caller) to its own
	// temp file, and the rename is commutative (spec.md §5).
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("cache: rename into place: %w", err)
	}
	return dst, nil
}

// Materialize places the cached (filename, digest) file into dstDir,
// hard-linking first and falling back to a byte copy. It is a no-op if the
// destination already exists.
func (c Cache) Materialize(filename, digest, dstDir string) error {
	src := c.path(filename, digest)
	dst := filepath.Join(dstDir, filename)

	if _, err := os.Stat(dst); err == nil {
		return nil
	}

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("cache: create %s: %w", dstDir, err)
	}

	if err := os.Link(src, dst); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrExist) {
		// Hard-link can fail for many reasons (cross-device, unsupported
		// filesystem); fall back to a byte copy rather than surfacing it.
	}

	return copyFile(src, dst)
}

// Clear removes the whole cache tree.
func (c Cache) Clear() error {
	return os.RemoveAll(c.root)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("cache: open %s: %w", src, err)
	}
	defer in.Close()

	tmp := dst + "." + uuid.NewString() + ".tmp"
	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("cache: create %s: %w", tmp, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("cache: copy to %s: %w", tmp, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("cache: rename %s into place: %w", tmp, err)
	}
	return nil
}
