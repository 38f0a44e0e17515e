package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/OpenTwinHQ/opentwin/backend/pkg/graph"
	"github.com/OpenTwinHQ/opentwin/backend/pkg/logger"
	"github.com/OpenTwinHQ/opentwin/backend/pkg/store"
)

const artifactFileName = "graph.json"

// Store is the embedded graph backend. Each job's artifact lives as a JSON
// document under dataDir and is parsed into an in-memory directed multigraph
// on first read. Parsed graphs are cached per job, keyed by a fingerprint of
// the source file (size + modification time), so a rebuilt artifact is picked
// up without an explicit invalidation and an unchanged one is never re-parsed.
type Store struct {
	dataDir string

	mu    sync.RWMutex
	cache map[string]*cachedGraph
}

type cachedGraph struct {
	fingerprint string
	graph       *jobGraph
}

// jobGraph is a parsed artifact with a precomputed adjacency index so
// traversal-style queries never re-scan the edge list per hop. Incident edge
// lists are sorted by (type, key) which gives shortest-path expansion its
// smallest-edge-type tie-break for free.
type jobGraph struct {
	doc      *graph.Document
	nodes    map[string]graph.Node
	incident map[string][]graph.Edge
}

// New creates an embedded store rooted at dataDir.
func New(dataDir string) *Store {
	return &Store{
		dataDir: dataDir,
		cache:   make(map[string]*cachedGraph),
	}
}

func (s *Store) artifactPath(jobID string) string {
	return filepath.Join(s.dataDir, jobID, artifactFileName)
}

// SyncGraph writes the artifact atomically and drops any cached parse.
func (s *Store) SyncGraph(ctx context.Context, jobID string, doc *graph.Document) error {
	dir := filepath.Join(s.dataDir, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create graph directory: %w", err)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to serialize graph artifact: %w", err)
	}

	tmp := filepath.Join(dir, artifactFileName+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write graph artifact: %w", err)
	}
	if err := os.Rename(tmp, s.artifactPath(jobID)); err != nil {
		return fmt.Errorf("failed to publish graph artifact: %w", err)
	}

	s.Invalidate(jobID)
	logger.Debug("[GraphStore] Artifact synced", "job_id", jobID, "nodes", len(doc.Nodes), "edges", len(doc.Edges))
	return nil
}

// DeleteGraph removes the job's artifact and cache entry.
func (s *Store) DeleteGraph(ctx context.Context, jobID string) error {
	if err := os.RemoveAll(filepath.Join(s.dataDir, jobID)); err != nil {
		return fmt.Errorf("failed to delete graph artifact: %w", err)
	}
	s.Invalidate(jobID)
	return nil
}

// Invalidate drops the cached parse for one job.
func (s *Store) Invalidate(jobID string) {
	s.mu.Lock()
	delete(s.cache, jobID)
	s.mu.Unlock()
}

// load returns the parsed graph for a job, reusing the cache while the
// artifact fingerprint is unchanged.
func (s *Store) load(jobID string) (*jobGraph, error) {
	path := s.artifactPath(jobID)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, store.ErrGraphNotFound
		}
		return nil, fmt.Errorf("failed to stat graph artifact: %w", err)
	}
	fingerprint := fmt.Sprintf("%d:%d", info.Size(), info.ModTime().UnixNano())

	s.mu.RLock()
	cached, ok := s.cache[jobID]
	s.mu.RUnlock()
	if ok && cached.fingerprint == fingerprint {
		return cached.graph, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, store.ErrGraphNotFound
		}
		return nil, fmt.Errorf("failed to read graph artifact: %w", err)
	}

	var doc graph.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrMalformedArtifact, err)
	}
	// An artifact with no nodes reports the same way a missing one does,
	// matching the database backend's existence check.
	if len(doc.Nodes) == 0 {
		return nil, store.ErrGraphNotFound
	}

	g := indexDocument(&doc)

	s.mu.Lock()
	s.cache[jobID] = &cachedGraph{fingerprint: fingerprint, graph: g}
	s.mu.Unlock()

	return g, nil
}

func indexDocument(doc *graph.Document) *jobGraph {
	g := &jobGraph{
		doc:      doc,
		nodes:    make(map[string]graph.Node, len(doc.Nodes)),
		incident: make(map[string][]graph.Edge),
	}
	for _, n := range doc.Nodes {
		g.nodes[n.ID] = n
	}
	for _, e := range doc.Edges {
		g.incident[e.Source] = append(g.incident[e.Source], e)
		if e.Target != e.Source {
			g.incident[e.Target] = append(g.incident[e.Target], e)
		}
	}
	for id := range g.incident {
		edges := g.incident[id]
		sort.Slice(edges, func(i, j int) bool {
			if edges[i].Type != edges[j].Type {
				return edges[i].Type < edges[j].Type
			}
			return edges[i].Key() < edges[j].Key()
		})
	}
	return g
}

func (g *jobGraph) otherEnd(e graph.Edge, id string) string {
	if e.Source == id {
		return e.Target
	}
	return e.Source
}

// GetStats implements store.GraphStore.
func (s *Store) GetStats(ctx context.Context, jobID string) (*store.Stats, error) {
	g, err := s.load(jobID)
	if err != nil {
		return nil, err
	}

	stats := &store.Stats{
		NodeCount: len(g.doc.Nodes),
		EdgeCount: len(g.doc.Edges),
		NodeKinds: make(map[string]int),
		EdgeTypes: make(map[string]int),
	}

	storeys := make(map[string]struct{})
	materials := make(map[string]struct{})
	for _, n := range g.doc.Nodes {
		stats.NodeKinds[n.Kind]++
		if n.Storey != "" {
			storeys[n.Storey] = struct{}{}
		}
		for _, m := range n.Materials {
			materials[m] = struct{}{}
		}
	}
	for _, e := range g.doc.Edges {
		stats.EdgeTypes[e.Type]++
	}

	stats.Storeys = sortedSet(storeys)
	stats.Materials = sortedSet(materials)
	return stats, nil
}

// GetNeighbors implements store.GraphStore.
func (s *Store) GetNeighbors(ctx context.Context, jobID, nodeID string) (*store.Neighborhood, error) {
	g, err := s.load(jobID)
	if err != nil {
		return nil, err
	}
	center, ok := g.nodes[nodeID]
	if !ok {
		return nil, store.ErrNodeNotFound
	}

	edges := store.DedupeEdges(g.incident[nodeID])

	var neighbors []graph.Node
	seen := map[string]struct{}{nodeID: {}}
	for _, e := range edges {
		other := g.otherEnd(e, nodeID)
		if _, ok := seen[other]; ok {
			continue
		}
		seen[other] = struct{}{}
		if n, ok := g.nodes[other]; ok {
			neighbors = append(neighbors, n)
		}
	}
	store.SortNeighbors(neighbors)

	nodes := append([]graph.Node{center}, neighbors...)
	return &store.Neighborhood{
		Nodes:  nodes,
		Edges:  edges,
		Total:  len(nodes),
		Center: nodeID,
	}, nil
}

// GetPath implements store.GraphStore. The search runs over the undirected
// view of the graph; incident edges are pre-sorted by type, so when several
// parallel edges reach a node in the same hop the lexicographically smallest
// edge type wins.
func (s *Store) GetPath(ctx context.Context, jobID, sourceID, targetID string) (*store.Path, error) {
	g, err := s.load(jobID)
	if err != nil {
		return nil, err
	}
	if _, ok := g.nodes[sourceID]; !ok {
		return nil, store.ErrNodeNotFound
	}
	if _, ok := g.nodes[targetID]; !ok {
		return nil, store.ErrNodeNotFound
	}

	if sourceID == targetID {
		return &store.Path{
			Nodes: []graph.Node{g.nodes[sourceID]},
			Edges: []graph.Edge{},
			Total: 1,
			Hops:  0,
		}, nil
	}

	parentEdge := make(map[string]graph.Edge)
	parentNode := make(map[string]string)
	visited := map[string]struct{}{sourceID: {}}
	queue := []string{sourceID}
	found := false

	for len(queue) > 0 && !found {
		current := queue[0]
		queue = queue[1:]
		for _, e := range g.incident[current] {
			next := g.otherEnd(e, current)
			if _, ok := visited[next]; ok {
				continue
			}
			visited[next] = struct{}{}
			parentEdge[next] = e
			parentNode[next] = current
			if next == targetID {
				found = true
				break
			}
			queue = append(queue, next)
		}
	}

	if !found {
		return nil, store.ErrNoPath
	}

	var edges []graph.Edge
	var nodeIDs []string
	for at := targetID; at != sourceID; at = parentNode[at] {
		edges = append(edges, parentEdge[at])
		nodeIDs = append(nodeIDs, at)
	}
	nodeIDs = append(nodeIDs, sourceID)

	// Reverse into source-to-target order.
	for i, j := 0, len(edges)-1; i < j; i, j = i+1, j-1 {
		edges[i], edges[j] = edges[j], edges[i]
	}
	for i, j := 0, len(nodeIDs)-1; i < j; i, j = i+1, j-1 {
		nodeIDs[i], nodeIDs[j] = nodeIDs[j], nodeIDs[i]
	}

	nodes := make([]graph.Node, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		nodes = append(nodes, g.nodes[id])
	}

	return &store.Path{
		Nodes: nodes,
		Edges: edges,
		Total: len(nodes),
		Hops:  len(edges),
	}, nil
}

// Query implements store.GraphStore.
func (s *Store) Query(ctx context.Context, jobID string, filters store.QueryFilters) (*store.QueryResult, error) {
	g, err := s.load(jobID)
	if err != nil {
		return nil, err
	}

	var candidateIDs map[string]struct{}
	if filters.RelatedTo != "" {
		if _, ok := g.nodes[filters.RelatedTo]; !ok {
			return nil, store.ErrNodeNotFound
		}
		candidateIDs = g.reachableWithin(filters.RelatedTo, filters.RelationshipType, clampDepth(filters.MaxDepth))
	}

	var filtered []graph.Node
	for _, n := range g.doc.Nodes {
		if candidateIDs != nil {
			if _, ok := candidateIDs[n.ID]; !ok {
				continue
			}
		}
		if !store.MatchesFilters(n, filters) {
			continue
		}
		filtered = append(filtered, n)
	}
	store.SortNodesByNameKindID(filtered)

	total := len(filtered)
	start, end := store.PageBounds(total, filters.Limit, filters.Offset)
	page := filtered[start:end]

	pageIDs := make(map[string]struct{}, len(page))
	for _, n := range page {
		pageIDs[n.ID] = struct{}{}
	}
	var edges []graph.Edge
	for _, e := range g.doc.Edges {
		if _, ok := pageIDs[e.Source]; !ok {
			continue
		}
		if _, ok := pageIDs[e.Target]; !ok {
			continue
		}
		edges = append(edges, e)
	}

	return &store.QueryResult{
		Nodes: page,
		Edges: store.DedupeEdges(edges),
		Total: total,
	}, nil
}

// GetExistingNodeIds implements store.GraphStore.
func (s *Store) GetExistingNodeIds(ctx context.Context, jobID string, candidates []string) ([]string, error) {
	g, err := s.load(jobID)
	if err != nil {
		return nil, err
	}
	existing := make(map[string]struct{}, len(candidates))
	for _, id := range candidates {
		if _, ok := g.nodes[id]; ok {
			existing[id] = struct{}{}
		}
	}
	return store.OrderByInput(candidates, existing), nil
}

// reachableWithin collects node ids reachable from seed within maxDepth hops,
// seed included. When edgeType is non-empty every hop must use that type.
func (g *jobGraph) reachableWithin(seed, edgeType string, maxDepth int) map[string]struct{} {
	reachable := map[string]struct{}{seed: {}}
	type entry struct {
		id    string
		depth int
	}
	queue := []entry{{id: seed, depth: 0}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}
		for _, e := range g.incident[cur.id] {
			if edgeType != "" && e.Type != edgeType {
				continue
			}
			next := g.otherEnd(e, cur.id)
			if _, ok := reachable[next]; ok {
				continue
			}
			reachable[next] = struct{}{}
			queue = append(queue, entry{id: next, depth: cur.depth + 1})
		}
	}
	return reachable
}

func clampDepth(depth int) int {
	if depth < 1 {
		return 1
	}
	if depth > 4 {
		return 4
	}
	return depth
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
