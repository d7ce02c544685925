// Package syncer implements the Synchronizer (spec.md §4.7): it reconciles
// the on-disk environment with a Lockfile via a bounded-concurrency install
// fan-out, then prunes entries the lockfile no longer names.
//
// The fan-out shape mirrors resolver.Resolve's bounded-concurrency pattern,
// itself grounded on the teacher's client/pull.go window and
// registry/storage/garbagecollect.go's errgroup mark phase; here tasks
// never share a cancellation signal because spec.md §4.7 step 3 requires
// every install task to run to completion even after an early failure, so
// a semaphore plus WaitGroup stands in for errgroup's cancel-on-first-error
// behaviour.
package syncer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/karrick/godirwalk"
	digest "github.com/opencontainers/go-digest"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/distribution/depctl/cache"
	"github.com/distribution/depctl/index"
	"github.com/distribution/depctl/interp"
	"github.com/distribution/depctl/lockfile"
	"github.com/distribution/depctl/model"
	"github.com/distribution/depctl/platform"
	"github.com/distribution/depctl/selector"
)

// DefaultConcurrency is the recommended bound on simultaneous install tasks
// (spec.md §4.7 step 3: "recommended 8").
const DefaultConcurrency = 8

// protected is the bootstrapping package set prune must never delete
// (Glossary: "the bootstrapping installer, the bootstrapping builder, the
// package-resources helper, the distutils shim, the wheel tool").
var protected = map[string]bool{
	"pip":          true,
	"setuptools":   true,
	"pkg_resources": true,
	"distutils":    true,
	"wheel":        true,
}

// Synchronizer reconciles an Environment against a Lockfile.
type Synchronizer struct {
	Cache       cache.Cache
	Index       index.Client
	Extractor   interp.Extractor
	Host        platform.Host
	Concurrency int
	Log         *logrus.Entry
}

// New returns a Synchronizer. concurrency <= 0 uses DefaultConcurrency.
func New(c cache.Cache, idx index.Client, x interp.Extractor, host platform.Host, concurrency int, log *logrus.Entry) *Synchronizer {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Synchronizer{Cache: c, Index: idx, Extractor: x, Host: host, Concurrency: concurrency, Log: log}
}

// Sync brings env into agreement with lf, returning the count of packages
// newly installed this run. A non-nil, non-*PartialError error means sync
// could not even begin (e.g. the site directory could not be scanned); a
// *PartialError means every task ran but one or more failed.
func (s *Synchronizer) Sync(ctx context.Context, lf *lockfile.Lockfile, env interp.Environment) (int, error) {
	alreadyInstalled, err := scanInstalled(env.SiteDir)
	if err != nil {
		return 0, fmt.Errorf("sync: scan site directory: %w", err)
	}

	type job struct {
		name string
		pkg  lockfile.LockedPackage
	}
	var toInstall []job
	for name, pkg := range lf.Packages {
		if !alreadyInstalled[model.CanonicalName(name)] {
			toInstall = append(toInstall, job{name: name, pkg: pkg})
		}
	}
	sort.Slice(toInstall, func(i, j int) bool { return toInstall[i].name < toInstall[j].name })

	var (
		mu       sync.Mutex
		failures []Failure
		count    int
		wg       sync.WaitGroup
	)
	sem := semaphore.NewWeighted(int64(s.Concurrency))

	for _, j := range toInstall {
		j := j
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			failures = append(failures, Failure{Package: j.name, Operation: "sync", Cause: ctx.Err()})
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			if err := s.installOne(ctx, j.name, j.pkg, env); err != nil {
				mu.Lock()
				failures = append(failures, Failure{Package: j.name, Operation: "install", Cause: err})
				mu.Unlock()
				return
			}
			mu.Lock()
			count++
			mu.Unlock()
			s.Log.WithField("package", j.name).Info("installed package")
		}()
	}
	wg.Wait()

	if err := s.Prune(env, lf); err != nil {
		mu.Lock()
		failures = append(failures, Failure{Package: "", Operation: "prune", Cause: err})
		mu.Unlock()
	}

	if len(failures) > 0 {
		sort.Slice(failures, func(i, j int) bool { return failures[i].Package < failures[j].Package })
		return count, &PartialError{Failures: failures}
	}
	return count, nil
}

// installOne runs the Install Pipeline (spec.md §4.7) for a single package.
func (s *Synchronizer) installOne(ctx context.Context, name string, pkg lockfile.LockedPackage, env interp.Environment) error {
	chosen, ok := selector.Select(pkg.Artifacts, s.Host)
	if !ok {
		return &NoCompatibleArtifactError{Package: name}
	}

	stagingPath := filepath.Join(env.StagingDir, chosen.Filename)

	if s.Cache.Contains(chosen.Filename, chosen.SHA256) {
		if err := s.Cache.Materialize(chosen.Filename, chosen.SHA256, env.StagingDir); err != nil {
			return fmt.Errorf("materialize cached artifact: %w", err)
		}
	} else {
		data, err := s.Index.Download(ctx, chosen.URL)
		if err != nil {
			return fmt.Errorf("download: %w", err)
		}

		actual := digest.FromBytes(data)
		if actual != chosen.Digest() {
			return &DigestMismatchError{Package: name, Expected: chosen.SHA256, Actual: actual.Encoded()}
		}

		if _, err := s.Cache.Save(chosen.Filename, chosen.SHA256, data); err != nil {
			return fmt.Errorf("cache save: %w", err)
		}
		if err := s.Cache.Materialize(chosen.Filename, chosen.SHA256, env.StagingDir); err != nil {
			return fmt.Errorf("materialize downloaded artifact: %w", err)
		}
	}

	if err := interp.DispatchExtract(s.Extractor, chosen.Filename, stagingPath, env); err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	return nil
}

// Prune deletes site-directory subdirectories (package directories and
// *.dist-info directories) whose canonical base name is neither a lockfile
// key nor in the protected set; plain files in the site directory are left
// alone.
func (s *Synchronizer) Prune(env interp.Environment, lf *lockfile.Lockfile) error {
	wanted := lf.CanonicalNames()

	names, err := godirwalk.ReadDirnames(env.SiteDir, nil)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("prune: scan site directory: %w", err)
	}

	for _, name := range names {
		full := filepath.Join(env.SiteDir, name)
		if fi, err := os.Lstat(full); err != nil || !fi.IsDir() {
			continue
		}

		base := name
		if strings.HasSuffix(name, ".dist-info") {
			if idx := strings.Index(name, "-"); idx >= 0 {
				base = name[:idx]
			}
		}
		canon := model.CanonicalName(base)
		if wanted[canon] || protected[canon] {
			continue
		}

		if err := os.RemoveAll(full); err != nil {
			return fmt.Errorf("prune: remove %s: %w", full, err)
		}
		s.Log.WithField("entry", name).Info("pruned stale entry")
	}
	return nil
}

// scanInstalled builds the already_installed set (spec.md §4.7 step 1)
// from *.dist-info directory base names.
func scanInstalled(siteDir string) (map[string]bool, error) {
	installed := map[string]bool{}

	names, err := godirwalk.ReadDirnames(siteDir, nil)
	if err != nil {
		if os.IsNotExist(err) {
			return installed, nil
		}
		return nil, err
	}

	for _, name := range names {
		if !strings.HasSuffix(name, ".dist-info") {
			continue
		}
		base := name
		if idx := strings.Index(name, "-"); idx >= 0 {
			base = name[:idx]
		}
		installed[model.CanonicalName(base)] = true
	}
	return installed, nil
}
