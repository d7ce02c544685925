// Package lockfile implements the Lockfile component (spec.md §4.6): a
// deterministic JSON document describing every resolved package and every
// platform artifact available for it, built from a DependencyGraph and
// read back before Synchronizer runs.
package lockfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/distribution/depctl/index"
	"github.com/distribution/depctl/model"
	"github.com/distribution/depctl/selector"
)

// LockedPackage is one lockfile entry: a resolved version, at least one
// Artifact, and the direct-dependency canonical names.
type LockedPackage struct {
	Version      string           `json:"version"`
	Artifacts    []model.Artifact `json:"artifacts"`
	Dependencies []string         `json:"dependencies"`
}

// Lockfile is the top-level document, §4.6: keys "name", "version",
// "python_version", "packages" in that order, packages keyed by display
// name. encoding/json marshals map[string]T with keys sorted
// lexicographically, which is exactly the ordering spec.md §4.6 requires.
type Lockfile struct {
	Name          string                    `json:"name"`
	Version       string                    `json:"version"`
	PythonVersion string                    `json:"python_version"`
	Packages      map[string]LockedPackage  `json:"packages"`
}

// wireLockfile mirrors Lockfile but keeps PythonVersion as a pointer so
// Load can tell "missing" apart from "empty string".
type wireLockfile struct {
	Name          string                   `json:"name"`
	Version       string                   `json:"version"`
	PythonVersion *string                  `json:"python_version"`
	Packages      map[string]LockedPackage `json:"packages"`
}

// ErrMissingPythonVersion is returned by Load when an older lockfile omits
// python_version; spec.md §4.6 treats this as an error, forcing the caller
// to delete the file and re-resolve.
var ErrMissingPythonVersion = fmt.Errorf("lockfile: missing python_version (delete the lockfile and re-resolve)")

// Build assembles a Lockfile from a resolved DependencyGraph, fetching
// each node's release metadata again to obtain its artifact list (spec.md
// §4.6: "for each node, call IndexClient.fetch_version").
func Build(ctx context.Context, projectName, projectVersion, pythonVersion string, graph *model.DependencyGraph, idx index.Client) (*Lockfile, error) {
	lf := &Lockfile{
		Name:          projectName,
		Version:       projectVersion,
		PythonVersion: pythonVersion,
		Packages:      make(map[string]LockedPackage, graph.Len()),
	}

	for _, node := range graph.Nodes() {
		info, err := idx.FetchVersion(ctx, node.DisplayName, node.Version)
		if err != nil {
			return nil, err
		}

		artifacts := make([]model.Artifact, 0, len(info.Artifacts))
		for _, ref := range info.Artifacts {
			tag := selector.DeriveTag(ref.Filename)
			if ref.Kind == index.KindSource {
				tag = model.PlatformSource
			}
			artifacts = append(artifacts, model.Artifact{
				URL:      ref.URL,
				Filename: ref.Filename,
				SHA256:   ref.SHA256,
				Platform: tag,
			})
		}
		if len(artifacts) == 0 {
			return nil, fmt.Errorf("lockfile: %s@%s resolved with no artifacts", node.DisplayName, node.Version)
		}

		lf.Packages[info.DisplayName] = LockedPackage{
			Version:      info.Version,
			Artifacts:    artifacts,
			Dependencies: append([]string(nil), node.Dependencies...),
		}
	}

	return lf, nil
}

// Save writes the lockfile atomically: a sibling temp file, then rename,
// the same write discipline cache.Cache.Save uses.
func Save(path string, lf *Lockfile) error {
	data, err := json.MarshalIndent(lf, "", "  ")
	if err != nil {
		return fmt.Errorf("lockfile: marshal: %w", err)
	}

	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("lockfile: write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("lockfile: rename into place: %w", err)
	}
	return nil
}

// Load reads and validates a lockfile, rejecting one missing
// python_version.
func Load(path string) (*Lockfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var wire wireLockfile
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("lockfile: parse %s: %w", path, err)
	}
	if wire.PythonVersion == nil {
		return nil, ErrMissingPythonVersion
	}

	return &Lockfile{
		Name:          wire.Name,
		Version:       wire.Version,
		PythonVersion: *wire.PythonVersion,
		Packages:      wire.Packages,
	}, nil
}

// Exists reports whether a lockfile is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Delete removes the lockfile at path, tolerating its absence.
func Delete(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// CanonicalNames returns the canonical name of every locked package, the
// set prune (syncer package) must preserve.
func (lf *Lockfile) CanonicalNames() map[string]bool {
	out := make(map[string]bool, len(lf.Packages))
	for name := range lf.Packages {
		out[model.CanonicalName(name)] = true
	}
	return out
}
