package model

import (
	"sort"
	"sync"
)

// ResolutionNode is one entry in the resolved dependency graph.
type ResolutionNode struct {
	// CanonicalName is the key this node is stored under in the enclosing
	// DependencyGraph.
	CanonicalName string

	// DisplayName is the name as supplied by the index.
	DisplayName string

	// Version is the chosen version for this package.
	Version string

	// Dependencies lists the canonical names of direct dependencies that
	// survived marker filtering. Every entry must be resolvable from the
	// enclosing graph alone.
	Dependencies []string
}

// DependencyGraph is a mapping from canonical name to ResolutionNode. It
// tolerates cycles (spec.md §3): nodes only reference each other by
// canonical name, never by pointer, so a cycle is just two map entries that
// name each other.
type DependencyGraph struct {
	mu    sync.Mutex
	nodes map[string]*ResolutionNode
}

// NewDependencyGraph returns an empty graph ready for concurrent inserts.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{nodes: make(map[string]*ResolutionNode)}
}

// Insert adds a node, keyed by its CanonicalName. Insert is safe to call
// concurrently; the resolver serializes all graph mutation through it.
func (g *DependencyGraph) Insert(n *ResolutionNode) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes[n.CanonicalName] = n
}

// Get returns the node for canonicalName, if any.
func (g *DependencyGraph) Get(canonicalName string) (*ResolutionNode, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[canonicalName]
	return n, ok
}

// Len returns the number of nodes in the graph.
func (g *DependencyGraph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.nodes)
}

// CanonicalNames returns every canonical name in the graph, sorted, so
// callers that need deterministic iteration (lockfile building, tests)
// don't depend on map order.
func (g *DependencyGraph) CanonicalNames() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Nodes returns a snapshot slice of every node, ordered by canonical name.
func (g *DependencyGraph) Nodes() []*ResolutionNode {
	names := g.CanonicalNames()
	g.mu.Lock()
	defer g.mu.Unlock()
	nodes := make([]*ResolutionNode, 0, len(names))
	for _, name := range names {
		nodes = append(nodes, g.nodes[name])
	}
	return nodes
}

// Complete reports whether every dependency named by every node resolves
// to a key in the graph — the completeness invariant of spec.md §8.3.
func (g *DependencyGraph) Complete() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, n := range g.nodes {
		for _, dep := range n.Dependencies {
			if _, ok := g.nodes[dep]; !ok {
				return false
			}
		}
	}
	return true
}
