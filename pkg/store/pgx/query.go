package pgx

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pgxv5 "github.com/jackc/pgx/v5"

	"github.com/OpenTwinHQ/opentwin/backend/pkg/graph"
	"github.com/OpenTwinHQ/opentwin/backend/pkg/store"
)

const nodeColumns = `node_id, label, kind, name, storey, materials, pset_name, prop_name, value, value_type`

func scanNode(row pgxv5.Row) (graph.Node, error) {
	var n graph.Node
	err := row.Scan(&n.ID, &n.Label, &n.Kind, &n.Name, &n.Storey, &n.Materials, &n.PsetName, &n.PropName, &n.Value, &n.ValueType)
	return n, err
}

func (s *GraphDBStore) getNode(ctx context.Context, jobID, nodeID string) (graph.Node, error) {
	row := s.conn.QueryRow(ctx,
		`SELECT `+nodeColumns+` FROM graph_nodes WHERE job_id = $1 AND node_id = $2`,
		jobID, nodeID,
	)
	n, err := scanNode(row)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return graph.Node{}, store.ErrNodeNotFound
	}
	if err != nil {
		return graph.Node{}, dbErr(err)
	}
	return n, nil
}

func (s *GraphDBStore) getNodes(ctx context.Context, jobID string, ids []string) (map[string]graph.Node, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT `+nodeColumns+` FROM graph_nodes WHERE job_id = $1 AND node_id = ANY($2)`,
		jobID, ids,
	)
	if err != nil {
		return nil, dbErr(err)
	}
	defer rows.Close()

	out := make(map[string]graph.Node, len(ids))
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, dbErr(err)
		}
		out[n.ID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(err)
	}
	return out, nil
}

// incidentEdges returns every edge touching any of the given nodes, ordered
// by edge type then key so traversal tie-breaks are deterministic.
func (s *GraphDBStore) incidentEdges(ctx context.Context, jobID string, ids []string, edgeType string) ([]graph.Edge, error) {
	query := `SELECT source_id, target_id, edge_type FROM graph_edges
		WHERE job_id = $1 AND (source_id = ANY($2) OR target_id = ANY($2))`
	args := []any{jobID, ids}
	if edgeType != "" {
		query += ` AND edge_type = $3`
		args = append(args, edgeType)
	}
	query += ` ORDER BY edge_type COLLATE "C", edge_key COLLATE "C"`

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, dbErr(err)
	}
	defer rows.Close()

	var edges []graph.Edge
	for rows.Next() {
		var e graph.Edge
		if err := rows.Scan(&e.Source, &e.Target, &e.Type); err != nil {
			return nil, dbErr(err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(err)
	}
	return edges, nil
}

func otherEnd(e graph.Edge, id string) string {
	if e.Source == id {
		return e.Target
	}
	return e.Source
}

// GetStats implements store.GraphStore.
func (s *GraphDBStore) GetStats(ctx context.Context, jobID string) (*store.Stats, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	if ok, err := s.hasGraph(ctx, jobID); err != nil {
		return nil, err
	} else if !ok {
		return nil, store.ErrGraphNotFound
	}

	stats := &store.Stats{
		NodeKinds: make(map[string]int),
		EdgeTypes: make(map[string]int),
	}

	rows, err := s.conn.Query(ctx,
		`SELECT kind, COUNT(*) FROM graph_nodes WHERE job_id = $1 GROUP BY kind`, jobID)
	if err != nil {
		return nil, dbErr(err)
	}
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			rows.Close()
			return nil, dbErr(err)
		}
		stats.NodeKinds[kind] = count
		stats.NodeCount += count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, dbErr(err)
	}

	rows, err = s.conn.Query(ctx,
		`SELECT edge_type, COUNT(*) FROM graph_edges WHERE job_id = $1 GROUP BY edge_type`, jobID)
	if err != nil {
		return nil, dbErr(err)
	}
	for rows.Next() {
		var edgeType string
		var count int
		if err := rows.Scan(&edgeType, &count); err != nil {
			rows.Close()
			return nil, dbErr(err)
		}
		stats.EdgeTypes[edgeType] = count
		stats.EdgeCount += count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, dbErr(err)
	}

	stats.Storeys, err = s.distinctStrings(ctx,
		`SELECT DISTINCT storey FROM graph_nodes WHERE job_id = $1 AND storey <> '' ORDER BY storey COLLATE "C"`, jobID)
	if err != nil {
		return nil, err
	}
	stats.Materials, err = s.distinctStrings(ctx,
		`SELECT DISTINCT unnest(materials) AS material FROM graph_nodes WHERE job_id = $1 ORDER BY material COLLATE "C"`, jobID)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

func (s *GraphDBStore) distinctStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, dbErr(err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, dbErr(err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(err)
	}
	return out, nil
}

// GetNeighbors implements store.GraphStore.
func (s *GraphDBStore) GetNeighbors(ctx context.Context, jobID, nodeID string) (*store.Neighborhood, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	if ok, err := s.hasGraph(ctx, jobID); err != nil {
		return nil, err
	} else if !ok {
		return nil, store.ErrGraphNotFound
	}

	center, err := s.getNode(ctx, jobID, nodeID)
	if err != nil {
		return nil, err
	}

	edges, err := s.incidentEdges(ctx, jobID, []string{nodeID}, "")
	if err != nil {
		return nil, err
	}

	var otherIDs []string
	seen := map[string]struct{}{nodeID: {}}
	for _, e := range edges {
		other := otherEnd(e, nodeID)
		if _, ok := seen[other]; ok {
			continue
		}
		seen[other] = struct{}{}
		otherIDs = append(otherIDs, other)
	}

	var neighbors []graph.Node
	if len(otherIDs) > 0 {
		byID, err := s.getNodes(ctx, jobID, otherIDs)
		if err != nil {
			return nil, err
		}
		for _, id := range otherIDs {
			if n, ok := byID[id]; ok {
				neighbors = append(neighbors, n)
			}
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

// GetPath implements store.GraphStore. The search expands frontier by
// frontier, one round trip per hop, over the undirected view of the edges.
func (s *GraphDBStore) GetPath(ctx context.Context, jobID, sourceID, targetID string) (*store.Path, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	if ok, err := s.hasGraph(ctx, jobID); err != nil {
		return nil, err
	} else if !ok {
		return nil, store.ErrGraphNotFound
	}

	endpoints, err := s.getNodes(ctx, jobID, []string{sourceID, targetID})
	if err != nil {
		return nil, err
	}
	if _, ok := endpoints[sourceID]; !ok {
		return nil, store.ErrNodeNotFound
	}
	if _, ok := endpoints[targetID]; !ok {
		return nil, store.ErrNodeNotFound
	}

	if sourceID == targetID {
		return &store.Path{
			Nodes: []graph.Node{endpoints[sourceID]},
			Edges: []graph.Edge{},
			Total: 1,
			Hops:  0,
		}, nil
	}

	parentEdge := make(map[string]graph.Edge)
	parentNode := make(map[string]string)
	visited := map[string]struct{}{sourceID: {}}
	frontier := []string{sourceID}
	found := false

	for len(frontier) > 0 && !found {
		edges, err := s.incidentEdges(ctx, jobID, frontier, "")
		if err != nil {
			return nil, err
		}

		incident := make(map[string][]graph.Edge, len(frontier))
		for _, e := range edges {
			incident[e.Source] = append(incident[e.Source], e)
			if e.Target != e.Source {
				incident[e.Target] = append(incident[e.Target], e)
			}
		}

		var next []string
		for _, current := range frontier {
			for _, e := range incident[current] {
				other := otherEnd(e, current)
				if _, ok := visited[other]; ok {
					continue
				}
				visited[other] = struct{}{}
				parentEdge[other] = e
				parentNode[other] = current
				if other == targetID {
					found = true
					break
				}
				next = append(next, other)
			}
			if found {
				break
			}
		}
		frontier = next
	}

	if !found {
		return nil, store.ErrNoPath
	}

	var pathEdges []graph.Edge
	var nodeIDs []string
	for at := targetID; at != sourceID; at = parentNode[at] {
		pathEdges = append(pathEdges, parentEdge[at])
		nodeIDs = append(nodeIDs, at)
	}
	nodeIDs = append(nodeIDs, sourceID)

	for i, j := 0, len(pathEdges)-1; i < j; i, j = i+1, j-1 {
		pathEdges[i], pathEdges[j] = pathEdges[j], pathEdges[i]
	}
	for i, j := 0, len(nodeIDs)-1; i < j; i, j = i+1, j-1 {
		nodeIDs[i], nodeIDs[j] = nodeIDs[j], nodeIDs[i]
	}

	byID, err := s.getNodes(ctx, jobID, nodeIDs)
	if err != nil {
		return nil, err
	}
	nodes := make([]graph.Node, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		if n, ok := byID[id]; ok {
			nodes = append(nodes, n)
		} else {
			nodes = append(nodes, graph.Node{ID: id})
		}
	}

	return &store.Path{
		Nodes: nodes,
		Edges: pathEdges,
		Total: len(nodes),
		Hops:  len(pathEdges),
	}, nil
}

// Query implements store.GraphStore.
func (s *GraphDBStore) Query(ctx context.Context, jobID string, filters store.QueryFilters) (*store.QueryResult, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	if ok, err := s.hasGraph(ctx, jobID); err != nil {
		return nil, err
	} else if !ok {
		return nil, store.ErrGraphNotFound
	}

	where := []string{"job_id = $1"}
	args := []any{jobID}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.RelatedTo != "" {
		if _, err := s.getNode(ctx, jobID, filters.RelatedTo); err != nil {
			return nil, err
		}
		reachable, err := s.reachableWithin(ctx, jobID, filters.RelatedTo, filters.RelationshipType, clampDepth(filters.MaxDepth))
		if err != nil {
			return nil, err
		}
		where = append(where, "node_id = ANY("+arg(reachable)+")")
	}
	if filters.Kind != "" {
		where = append(where, "kind = "+arg(filters.Kind))
	}
	if filters.Storey != "" {
		where = append(where, "storey = "+arg(filters.Storey))
	}
	if filters.Material != "" {
		where = append(where, arg(filters.Material)+" = ANY(materials)")
	}
	if filters.NameContains != "" {
		where = append(where, "name ILIKE "+arg("%"+escapeLike(filters.NameContains)+"%"))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM graph_nodes WHERE `+cond, args...,
	).Scan(&total); err != nil {
		return nil, dbErr(err)
	}

	pageQuery := `SELECT ` + nodeColumns + ` FROM graph_nodes WHERE ` + cond +
		` ORDER BY name COLLATE "C", kind COLLATE "C", node_id COLLATE "C"`
	if filters.Limit > 0 {
		pageQuery += " LIMIT " + arg(filters.Limit)
	}
	if filters.Offset > 0 {
		pageQuery += " OFFSET " + arg(filters.Offset)
	}

	rows, err := s.conn.Query(ctx, pageQuery, args...)
	if err != nil {
		return nil, dbErr(err)
	}
	defer rows.Close()

	var page []graph.Node
	var pageIDs []string
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, dbErr(err)
		}
		page = append(page, n)
		pageIDs = append(pageIDs, n.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(err)
	}

	var edges []graph.Edge
	if len(pageIDs) > 0 {
		edges, err = s.edgesWithin(ctx, jobID, pageIDs)
		if err != nil {
			return nil, err
		}
	}

	return &store.QueryResult{Nodes: page, Edges: edges, Total: total}, nil
}

// edgesWithin returns the edges whose both endpoints are in ids.
func (s *GraphDBStore) edgesWithin(ctx context.Context, jobID string, ids []string) ([]graph.Edge, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT source_id, target_id, edge_type FROM graph_edges
		WHERE job_id = $1 AND source_id = ANY($2) AND target_id = ANY($2)
		ORDER BY edge_type COLLATE "C", edge_key COLLATE "C"`,
		jobID, ids,
	)
	if err != nil {
		return nil, dbErr(err)
	}
	defer rows.Close()

	var edges []graph.Edge
	for rows.Next() {
		var e graph.Edge
		if err := rows.Scan(&e.Source, &e.Target, &e.Type); err != nil {
			return nil, dbErr(err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(err)
	}
	return edges, nil
}

// reachableWithin collects node ids reachable from seed within maxDepth hops,
// seed included, one incident-edge query per hop.
func (s *GraphDBStore) reachableWithin(ctx context.Context, jobID, seed, edgeType string, maxDepth int) ([]string, error) {
	reachable := map[string]struct{}{seed: {}}
	ids := []string{seed}
	frontier := []string{seed}

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		edges, err := s.incidentEdges(ctx, jobID, frontier, edgeType)
		if err != nil {
			return nil, err
		}
		inFrontier := make(map[string]struct{}, len(frontier))
		for _, id := range frontier {
			inFrontier[id] = struct{}{}
		}

		var next []string
		for _, e := range edges {
			for _, end := range []string{e.Source, e.Target} {
				if _, ok := inFrontier[end]; !ok {
					continue
				}
				other := otherEnd(e, end)
				if _, ok := reachable[other]; ok {
					continue
				}
				reachable[other] = struct{}{}
				ids = append(ids, other)
				next = append(next, other)
			}
		}
		frontier = next
	}

	return ids, nil
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

// GetExistingNodeIds implements store.GraphStore.
func (s *GraphDBStore) GetExistingNodeIds(ctx context.Context, jobID string, candidates []string) ([]string, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	if ok, err := s.hasGraph(ctx, jobID); err != nil {
		return nil, err
	} else if !ok {
		return nil, store.ErrGraphNotFound
	}

	rows, err := s.conn.Query(ctx,
		`SELECT node_id FROM graph_nodes WHERE job_id = $1 AND node_id = ANY($2)`,
		jobID, store.DedupeStrings(candidates),
	)
	if err != nil {
		return nil, dbErr(err)
	}
	defer rows.Close()

	existing := make(map[string]struct{}, len(candidates))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, dbErr(err)
		}
		existing[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(err)
	}

	return store.OrderByInput(candidates, existing), nil
}
