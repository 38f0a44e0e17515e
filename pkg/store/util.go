package store

import (
	"sort"
	"strings"

	"github.com/OpenTwinHQ/opentwin/backend/pkg/graph"
)

// ChunkRange invokes fn over [start, end) windows of at most chunkSize.
func ChunkRange(total, chunkSize int, fn func(start, end int) error) error {
	if total <= 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = total
	}
	for start := 0; start < total; start += chunkSize {
		end := min(start+chunkSize, total)
		if err := fn(start, end); err != nil {
			return err
		}
	}
	return nil
}

// DedupeStrings drops empty strings and duplicates, preserving first-seen order.
func DedupeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// SortNodesByNameKindID orders nodes for subgraph query responses.
func SortNodesByNameKindID(nodes []graph.Node) {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Name != nodes[j].Name {
			return nodes[i].Name < nodes[j].Name
		}
		if nodes[i].Kind != nodes[j].Kind {
			return nodes[i].Kind < nodes[j].Kind
		}
		return nodes[i].ID < nodes[j].ID
	})
}

// SortNeighbors orders neighbor nodes by lowercased name, lowercased kind,
// then id, as returned around a center node.
func SortNeighbors(nodes []graph.Node) {
	sort.Slice(nodes, func(i, j int) bool {
		ni, nj := strings.ToLower(nodes[i].Name), strings.ToLower(nodes[j].Name)
		if ni != nj {
			return ni < nj
		}
		ki, kj := strings.ToLower(nodes[i].Kind), strings.ToLower(nodes[j].Kind)
		if ki != kj {
			return ki < kj
		}
		return nodes[i].ID < nodes[j].ID
	})
}

// MatchesFilters applies the attribute filters of a subgraph query to one
// node. Relationship filters (RelatedTo and friends) are handled by the
// backends, not here.
func MatchesFilters(n graph.Node, f QueryFilters) bool {
	if f.Kind != "" && n.Kind != f.Kind {
		return false
	}
	if f.Storey != "" && n.Storey != f.Storey {
		return false
	}
	if f.Material != "" {
		found := false
		for _, m := range n.Materials {
			if m == f.Material {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.NameContains != "" && !strings.Contains(strings.ToLower(n.Name), strings.ToLower(f.NameContains)) {
		return false
	}
	return true
}

// DedupeEdges removes repeated (source, target, type) triples, preserving
// first-seen order.
func DedupeEdges(edges []graph.Edge) []graph.Edge {
	if len(edges) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(edges))
	out := make([]graph.Edge, 0, len(edges))
	for _, e := range edges {
		key := e.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	return out
}

// OrderByInput intersects existing against the caller's candidate order,
// dropping duplicates.
func OrderByInput(candidates []string, existing map[string]struct{}) []string {
	out := make([]string, 0, len(existing))
	seen := make(map[string]struct{}, len(existing))
	for _, id := range candidates {
		if _, ok := existing[id]; !ok {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// PageBounds clamps offset/limit against total and returns the page window.
func PageBounds(total, limit, offset int) (start, end int) {
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	if limit <= 0 {
		return offset, total
	}
	end = offset + limit
	if end > total {
		end = total
	}
	return offset, end
}
