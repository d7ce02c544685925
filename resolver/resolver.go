// Package resolver computes the transitive dependency graph (spec.md
// §4.5): a breadth-first walk over the index seeded from the Manifest's
// direct dependencies, first-seen-wins, with a forward-constraint check
// instead of backtracking.
//
// The fan-out shape is the bounded-window concurrent-pull pattern the
// teacher's client/pull.go uses for layer downloads, generalized from a
// fixed window into an errgroup + weighted semaphore so that dynamically
// discovered work (sub-dependencies found while a fetch is in flight) can
// still join the same bounded pool — the same pattern
// registry/storage/garbagecollect.go uses errgroup for its mark phase.
package resolver

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/Masterminds/semver"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/distribution/depctl/index"
	"github.com/distribution/depctl/marker"
	"github.com/distribution/depctl/model"
)

// DefaultConcurrency is the recommended bound on simultaneous metadata
// fetches (spec.md §4.5: "recommended 5-8").
const DefaultConcurrency = 6

// blockList names historical modules folded into the interpreter itself;
// a requirement on one of these is silently skipped (spec.md §4.5).
var blockList = map[string]bool{
	"argparse":    true,
	"ordereddict": true,
	"distribute":  true,
}

// Resolver computes a DependencyGraph against an index, filtering
// dependencies through a MarkerFilter environment.
type Resolver struct {
	idx         index.Client
	env         marker.Env
	concurrency int64
	log         *logrus.Entry
}

// New returns a Resolver. concurrency <= 0 uses DefaultConcurrency.
func New(idx index.Client, env marker.Env, concurrency int, log *logrus.Entry) *Resolver {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Resolver{idx: idx, env: env, concurrency: int64(concurrency), log: log}
}

type pending struct {
	done chan struct{}
}

type state struct {
	mu      sync.Mutex
	pending map[string]*pending
	graph   *model.DependencyGraph
}

// Resolve computes the DependencyGraph for the given direct dependencies
// (name -> constraint). Seeds are started in canonical-name order, but the
// seeds and the sub-dependencies they discover are fetched concurrently, so
// when two paths reach the same package with different constraints, which
// version is chosen first (and so whether and how a conflict is reported)
// depends on the order in which fetches complete.
func (r *Resolver) Resolve(ctx context.Context, deps map[string]string) (*model.DependencyGraph, error) {
	st := &state{
		pending: make(map[string]*pending),
		graph:   model.NewDependencyGraph(),
	}

	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return model.CanonicalName(names[i]) < model.CanonicalName(names[j])
	})

	sem := semaphore.NewWeighted(r.concurrency)
	g, ctx := errgroup.WithContext(ctx)

	for _, name := range names {
		name, constraint := name, deps[name]
		g.Go(func() error {
			return r.resolveOne(ctx, st, sem, g, name, constraint, "")
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return st.graph, nil
}

// resolveOne processes one (name, constraint) work item, inserting a node
// into the graph and fanning out over its survived dependencies. selfCanon
// is the canonical name of the node whose requirement list produced this
// call, used to silently drop self-referential requirements.
func (r *Resolver) resolveOne(ctx context.Context, st *state, sem *semaphore.Weighted, g *errgroup.Group, name, constraint, selfCanon string) error {
	if ctx.Err() != nil {
		return nil
	}

	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil
	}
	canonical := model.CanonicalName(trimmed)
	if canonical == "" || canonical == selfCanon || blockList[canonical] {
		return nil
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		st.mu.Lock()
		if node, ok := st.graph.Get(canonical); ok {
			st.mu.Unlock()
			return checkConflict(node, canonical, constraint)
		}
		if p, ok := st.pending[canonical]; ok {
			st.mu.Unlock()
			select {
			case <-p.done:
				continue // re-check now that the other fetch has landed
			case <-ctx.Done():
				return nil
			}
		}
		p := &pending{done: make(chan struct{})}
		st.pending[canonical] = p
		st.mu.Unlock()

		return r.fetchAndInsert(ctx, st, sem, g, trimmed, canonical, constraint, p)
	}
}

func checkConflict(node *model.ResolutionNode, canonical, constraint string) error {
	if constraint == "" {
		return nil
	}
	if satisfiesConstraint(node.Version, constraint) {
		return nil
	}
	return &ConflictError{Name: canonical, Chosen: node.Version, NewConstraint: constraint}
}

func (r *Resolver) fetchAndInsert(ctx context.Context, st *state, sem *semaphore.Weighted, g *errgroup.Group, displayName, canonical, constraint string, p *pending) (err error) {
	defer close(p.done)

	if err := sem.Acquire(ctx, 1); err != nil {
		return nil
	}

	var info *index.PackageInfo
	if pinned, ok := pinnedVersion(constraint); ok {
		info, err = r.idx.FetchVersion(ctx, displayName, pinned)
	} else {
		info, err = r.idx.FetchLatest(ctx, displayName)
	}
	sem.Release(1)
	if err != nil {
		return err
	}

	if len(info.Artifacts) == 0 {
		return &NoArtifactsError{Name: info.DisplayName, Version: info.Version}
	}

	if constraint != "" && !satisfiesConstraint(info.Version, constraint) {
		return &ConflictError{Name: canonical, Chosen: info.Version, NewConstraint: constraint}
	}

	subNames := make([]string, 0, len(info.RequiresDist))
	subConstraints := make(map[string]string, len(info.RequiresDist))
	for _, raw := range info.RequiresDist {
		if !marker.Applies(raw, r.env, r.log) {
			continue
		}
		req := model.ParseRequirement(raw)
		subCanon := req.CanonicalName()
		if subCanon == "" || subCanon == canonical || blockList[subCanon] {
			continue
		}
		if _, seen := subConstraints[subCanon]; !seen {
			subNames = append(subNames, req.Name)
		}
		subConstraints[subCanon] = req.Constraint
	}

	node := &model.ResolutionNode{
		CanonicalName: canonical,
		DisplayName:   info.DisplayName,
		Version:       info.Version,
		Dependencies:  make([]string, 0, len(subNames)),
	}
	for _, n := range subNames {
		node.Dependencies = append(node.Dependencies, model.CanonicalName(n))
	}

	r.log.WithFields(logrus.Fields{"package": canonical, "version": info.Version}).Debug("resolved package")
	st.graph.Insert(node)

	for _, subName := range subNames {
		subName, subConstraint := subName, subConstraints[model.CanonicalName(subName)]
		g.Go(func() error {
			return r.resolveOne(ctx, st, sem, g, subName, subConstraint, canonical)
		})
	}
	return nil
}

// pinnedVersion reports whether constraint pins a single exact version
// ("==1.2.3", "=1.2.3", or a bare version with no operator), per spec.md
// §4.5 step 2.
func pinnedVersion(constraint string) (string, bool) {
	c := strings.TrimSpace(constraint)
	if c == "" {
		return "", false
	}
	c = strings.TrimPrefix(c, "==")
	c = strings.TrimPrefix(c, "=")
	c = strings.TrimSpace(c)
	if strings.ContainsAny(c, "<>!,*") || strings.Contains(c, "==") {
		return "", false
	}
	if _, err := semver.NewVersion(c); err != nil {
		return "", false
	}
	return c, true
}

// satisfiesConstraint checks version against constraint using semver
// ranges, best-effort: if either fails to parse under semver rules (the
// index's versioning scheme need not be strict semver), the check passes
// rather than blocking resolution, consistent with the "first-seen wins,
// no backtracking" policy of spec.md §1.
func satisfiesConstraint(version, constraint string) bool {
	v, err := semver.NewVersion(version)
	if err != nil {
		return true
	}
	c, err := semver.NewConstraint(normalizeConstraint(constraint))
	if err != nil {
		return true
	}
	return c.Check(v)
}

// normalizeConstraint adapts the index's "==" equality operator to the
// single '=' that Masterminds/semver expects.
func normalizeConstraint(c string) string {
	c = strings.TrimSpace(c)
	if strings.HasPrefix(c, "==") {
		return "=" + strings.TrimPrefix(c, "==")
	}
	return c
}
