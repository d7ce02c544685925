// Package orchestrator implements the Orchestrator (spec.md §4.9): the
// short public operations (init, install, add, remove, update, list,
// clean) that compose every other component. It is the single place
// spec.md §7 designates for converting typed component errors into the
// user-facing messages the CLI prints, the same separation the teacher
// keeps between registry/storage (typed errors) and registry/handlers
// (HTTP-facing translation).
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/distribution/depctl/cache"
	"github.com/distribution/depctl/index"
	"github.com/distribution/depctl/interp"
	"github.com/distribution/depctl/lockfile"
	"github.com/distribution/depctl/manifest"
	"github.com/distribution/depctl/marker"
	"github.com/distribution/depctl/model"
	"github.com/distribution/depctl/platform"
	"github.com/distribution/depctl/resolver"
	"github.com/distribution/depctl/syncer"
)

// manifestFilename and lockfileFilename are the fixed project-relative
// paths spec.md §6 names.
const (
	manifestFilename = "manifest.json"
	lockfileFilename = "manifest.lock"
)

// Orchestrator composes C1-C8 over a single project directory.
type Orchestrator struct {
	ProjectDir  string
	Index       index.Client
	Cache       cache.Cache
	EnvBuilder  interp.EnvBuilder
	Extractor   interp.Extractor
	Interpreter interp.InterpreterProvider
	Host        platform.Host
	Concurrency int
	Log         *logrus.Entry
}

func (o *Orchestrator) manifestPath() string { return filepath.Join(o.ProjectDir, manifestFilename) }
func (o *Orchestrator) lockfilePath() string { return filepath.Join(o.ProjectDir, lockfileFilename) }

// Init writes a default Manifest if none exists.
func (o *Orchestrator) Init() error {
	path := o.manifestPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	name := filepath.Base(o.ProjectDir)
	return manifest.Save(path, manifest.Default(name))
}

// Install loads the Manifest, validates the interpreter, ensures the
// Environment, and either syncs from the existing Lockfile or resolves a
// new one first (spec.md §4.9).
func (o *Orchestrator) Install(ctx context.Context, forceResolve bool) (int, error) {
	m, err := manifest.Load(o.manifestPath())
	if err != nil {
		return 0, fmt.Errorf("install: load manifest: %w", err)
	}

	if _, err := o.Interpreter.Ensure(ctx, m.PythonVersion); err != nil {
		return 0, fmt.Errorf("install: interpreter: %w", err)
	}

	env, err := o.EnvBuilder.Ensure(filepath.Join(o.ProjectDir, m.VirtualEnvironment), m.PythonVersion, o.Host)
	if err != nil {
		return 0, fmt.Errorf("install: environment: %w", err)
	}

	lockPath := o.lockfilePath()

	var lf *lockfile.Lockfile
	if !forceResolve && lockfile.Exists(lockPath) {
		lf, err = lockfile.Load(lockPath)
		if err != nil {
			return 0, fmt.Errorf("install: load lockfile: %w", err)
		}
	} else {
		lf, err = o.resolveAndLock(ctx, m)
		if err != nil {
			return 0, err
		}
	}

	s := syncer.New(o.Cache, o.Index, o.Extractor, o.Host, o.Concurrency, o.Log)
	count, err := s.Sync(ctx, lf, env)
	if err != nil {
		return count, fmt.Errorf("install: sync: %w", err)
	}
	return count, nil
}

func (o *Orchestrator) resolveAndLock(ctx context.Context, m *manifest.Manifest) (*lockfile.Lockfile, error) {
	env := marker.NewEnv(m.PythonVersion, o.Host)
	res := resolver.New(o.Index, env, o.Concurrency, o.Log)

	graph, err := res.Resolve(ctx, m.Dependencies)
	if err != nil {
		return nil, fmt.Errorf("install: resolve: %w", err)
	}

	lf, err := lockfile.Build(ctx, m.Name, m.Version, m.PythonVersion, graph, o.Index)
	if err != nil {
		return nil, fmt.Errorf("install: build lockfile: %w", err)
	}

	if err := lockfile.Save(o.lockfilePath(), lf); err != nil {
		return nil, fmt.Errorf("install: save lockfile: %w", err)
	}
	return lf, nil
}

// Add declares a new direct dependency, re-resolving afterward.
func (o *Orchestrator) Add(ctx context.Context, name, version string) (int, error) {
	m, err := manifest.Load(o.manifestPath())
	if err != nil {
		return 0, fmt.Errorf("add: load manifest: %w", err)
	}

	canon := model.CanonicalName(name)
	for existing := range m.Dependencies {
		if model.CanonicalName(existing) == canon {
			return 0, &AlreadyPresentError{Name: name}
		}
	}

	var info *index.PackageInfo
	if version == "" {
		info, err = o.Index.FetchLatest(ctx, name)
	} else {
		info, err = o.Index.FetchVersion(ctx, name, version)
	}
	if err != nil {
		return 0, fmt.Errorf("add: fetch metadata: %w", err)
	}

	if err := m.AddDep(info.DisplayName, "=="+info.Version); err != nil {
		return 0, fmt.Errorf("add: %w", err)
	}
	if err := manifest.Save(o.manifestPath(), m); err != nil {
		return 0, fmt.Errorf("add: save manifest: %w", err)
	}
	if err := lockfile.Delete(o.lockfilePath()); err != nil {
		return 0, fmt.Errorf("add: delete lockfile: %w", err)
	}

	return o.Install(ctx, true)
}

// Remove undeclares a dependency and re-resolves with force_resolve=true.
func (o *Orchestrator) Remove(ctx context.Context, name string) (int, error) {
	m, err := manifest.Load(o.manifestPath())
	if err != nil {
		return 0, fmt.Errorf("remove: load manifest: %w", err)
	}

	if !m.RemoveDep(name) {
		return 0, &NotPresentError{Name: name}
	}
	if err := manifest.Save(o.manifestPath(), m); err != nil {
		return 0, fmt.Errorf("remove: save manifest: %w", err)
	}
	if err := lockfile.Delete(o.lockfilePath()); err != nil {
		return 0, fmt.Errorf("remove: delete lockfile: %w", err)
	}

	return o.Install(ctx, true)
}

// Update deletes the lockfile and re-resolves from scratch.
func (o *Orchestrator) Update(ctx context.Context) (int, error) {
	if err := lockfile.Delete(o.lockfilePath()); err != nil {
		return 0, fmt.Errorf("update: delete lockfile: %w", err)
	}
	return o.Install(ctx, true)
}

// Summary is the printable state List returns.
type Summary struct {
	Manifest *manifest.Manifest
	Lockfile *lockfile.Lockfile // nil if no lockfile exists
}

// List loads and returns the Manifest and, if present, the Lockfile.
func (o *Orchestrator) List() (*Summary, error) {
	m, err := manifest.Load(o.manifestPath())
	if err != nil {
		return nil, fmt.Errorf("list: load manifest: %w", err)
	}

	s := &Summary{Manifest: m}
	if lockfile.Exists(o.lockfilePath()) {
		lf, err := lockfile.Load(o.lockfilePath())
		if err != nil {
			return nil, fmt.Errorf("list: load lockfile: %w", err)
		}
		s.Lockfile = lf
	}
	return s, nil
}

// Clean removes the Environment, the project staging directory and the
// Lockfile; all additionally clears the Cache; includeInterpreter asks the
// InterpreterProvider to discard managed interpreters.
func (o *Orchestrator) Clean(ctx context.Context, all, includeInterpreter bool) error {
	m, err := manifest.Load(o.manifestPath())
	if err != nil {
		return fmt.Errorf("clean: load manifest: %w", err)
	}

	envRoot := filepath.Join(o.ProjectDir, m.VirtualEnvironment)
	if err := os.RemoveAll(envRoot); err != nil {
		return fmt.Errorf("clean: remove environment: %w", err)
	}
	if err := lockfile.Delete(o.lockfilePath()); err != nil {
		return fmt.Errorf("clean: delete lockfile: %w", err)
	}

	if all {
		if err := o.Cache.Clear(); err != nil {
			return fmt.Errorf("clean: clear cache: %w", err)
		}
	}
	if includeInterpreter {
		if err := o.Interpreter.DiscardManaged(ctx); err != nil {
			return fmt.Errorf("clean: discard interpreters: %w", err)
		}
	}
	return nil
}
