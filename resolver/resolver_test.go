package resolver

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/distribution/depctl/index"
	"github.com/distribution/depctl/marker"
	"github.com/distribution/depctl/platform"
)

// fixtureIndex serves a fixed package universe keyed by canonical name.
type fixtureIndex struct {
	mu       sync.Mutex
	releases map[string]*index.PackageInfo
	calls    map[string]int
}

func newFixtureIndex(releases map[string]*index.PackageInfo) *fixtureIndex {
	return &fixtureIndex{releases: releases, calls: map[string]int{}}
}

func (f *fixtureIndex) FetchLatest(ctx context.Context, name string) (*index.PackageInfo, error) {
	return f.lookup(name)
}

func (f *fixtureIndex) FetchVersion(ctx context.Context, name, version string) (*index.PackageInfo, error) {
	return f.lookup(name)
}

func (f *fixtureIndex) lookup(name string) (*index.PackageInfo, error) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()

	info, ok := f.releases[name]
	if !ok {
		return nil, fmt.Errorf("no such package: %s", name)
	}
	return info, nil
}

func (f *fixtureIndex) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fixtureIndex) Download(ctx context.Context, url string) ([]byte, error) { return nil, nil }

func testEnv() marker.Env {
	return marker.NewEnv("3.12", platform.Manylinux)
}

func testLog() *logrus.Entry {
	return logrus.NewEntry(logrus.New())
}

func pkg(name, version string, requires ...string) *index.PackageInfo {
	return &index.PackageInfo{
		DisplayName:  name,
		Version:      version,
		Artifacts:    []index.ArtifactRef{{URL: "https://example.test/" + name, Filename: name + ".whl", Kind: index.KindBinary, SHA256: "abc"}},
		RequiresDist: requires,
	}
}

func TestResolveSimpleChain(t *testing.T) {
	idx := newFixtureIndex(map[string]*index.PackageInfo{
		"a": pkg("a", "1.0.0", "b"),
		"b": pkg("b", "1.0.0"),
	})

	r := New(idx, testEnv(), 4, testLog())
	graph, err := r.Resolve(context.Background(), map[string]string{"a": ""})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if graph.Len() != 2 {
		t.Fatalf("graph.Len() = %d, want 2", graph.Len())
	}
	if !graph.Complete() {
		t.Fatalf("graph should be complete")
	}
}

func TestResolveToleratesCycles(t *testing.T) {
	idx := newFixtureIndex(map[string]*index.PackageInfo{
		"a": pkg("a", "1.0.0", "b"),
		"b": pkg("b", "1.0.0", "a"),
	})

	r := New(idx, testEnv(), 4, testLog())
	graph, err := r.Resolve(context.Background(), map[string]string{"a": ""})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if graph.Len() != 2 {
		t.Fatalf("graph.Len() = %d, want 2", graph.Len())
	}

	// Each name is fetched exactly once despite the cycle.
	if idx.callCount("a") != 1 || idx.callCount("b") != 1 {
		t.Errorf("expected one fetch each, got a=%d b=%d", idx.callCount("a"), idx.callCount("b"))
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	idx := newFixtureIndex(map[string]*index.PackageInfo{
		"a": pkg("a", "1.0.0", "b", "c"),
		"b": pkg("b", "1.0.0"),
		"c": pkg("c", "1.0.0"),
	})

	r := New(idx, testEnv(), 4, testLog())
	g1, err := r.Resolve(context.Background(), map[string]string{"a": ""})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	g2, err := r.Resolve(context.Background(), map[string]string{"a": ""})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if g1.Len() != g2.Len() {
		t.Fatalf("resolving twice gave different sizes: %d vs %d", g1.Len(), g2.Len())
	}
	for _, name := range g1.CanonicalNames() {
		n1, _ := g1.Get(name)
		n2, ok := g2.Get(name)
		if !ok || n1.Version != n2.Version {
			t.Errorf("node %s differs between runs", name)
		}
	}
}

func TestResolveConflictSurfaced(t *testing.T) {
	idx := newFixtureIndex(map[string]*index.PackageInfo{
		"c": pkg("c", "1.9.0"),
	})

	r := New(idx, testEnv(), 4, testLog())
	_, err := r.Resolve(context.Background(), map[string]string{"c": ">=2.0.0"})
	if err == nil {
		t.Fatalf("expected a conflict error")
	}
	var conflict *ConflictError
	if !asConflictError(err, &conflict) {
		t.Fatalf("expected *ConflictError, got %T: %v", err, err)
	}
}

func asConflictError(err error, target **ConflictError) bool {
	e, ok := err.(*ConflictError)
	if ok {
		*target = e
	}
	return ok
}

func TestResolveNoArtifactsError(t *testing.T) {
	idx := newFixtureIndex(map[string]*index.PackageInfo{
		"empty": {DisplayName: "empty", Version: "1.0.0"},
	})

	r := New(idx, testEnv(), 4, testLog())
	_, err := r.Resolve(context.Background(), map[string]string{"empty": ""})
	if err == nil {
		t.Fatalf("expected a NoArtifactsError")
	}
}

func TestResolveSkipsSelfReferenceAndBlockList(t *testing.T) {
	idx := newFixtureIndex(map[string]*index.PackageInfo{
		"a": pkg("a", "1.0.0", "a", "argparse"),
	})

	r := New(idx, testEnv(), 4, testLog())
	graph, err := r.Resolve(context.Background(), map[string]string{"a": ""})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if graph.Len() != 1 {
		t.Fatalf("graph.Len() = %d, want 1 (self-ref and blocklist skipped)", graph.Len())
	}
}
