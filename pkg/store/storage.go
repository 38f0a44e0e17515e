package store

import (
	"context"
	"errors"

	"github.com/OpenTwinHQ/opentwin/backend/pkg/graph"
)

// Sentinel errors shared by all backends. Handlers map these to client-facing
// status codes; everything else is an internal failure.
var (
	ErrGraphNotFound     = errors.New("graph not built for this job")
	ErrNodeNotFound      = errors.New("node not found in graph")
	ErrNoPath            = errors.New("no path between the given nodes")
	ErrMalformedArtifact = errors.New("malformed graph artifact")
)

// Stats summarizes a job's graph.
type Stats struct {
	NodeCount int            `json:"node_count"`
	EdgeCount int            `json:"edge_count"`
	NodeKinds map[string]int `json:"node_kinds"`
	EdgeTypes map[string]int `json:"edge_types"`
	Storeys   []string       `json:"storeys"`
	Materials []string       `json:"materials"`
}

// Neighborhood is a node with every node one incident edge away, in either
// direction. The center node is ordered first.
type Neighborhood struct {
	Nodes  []graph.Node `json:"nodes"`
	Edges  []graph.Edge `json:"edges"`
	Total  int          `json:"total"`
	Center string       `json:"center"`
}

// Path is a shortest path on the undirected view of the graph.
type Path struct {
	Nodes []graph.Node `json:"nodes"`
	Edges []graph.Edge `json:"edges"`
	Total int          `json:"total"`
	Hops  int          `json:"hops"`
}

// QueryFilters selects and pages a subgraph. Zero values mean "no filter".
// When RelatedTo is set, candidates are restricted to nodes reachable from it
// within MaxDepth hops; RelationshipType additionally constrains every hop's
// edge type.
type QueryFilters struct {
	Kind         string
	Storey       string
	Material     string
	NameContains string

	RelatedTo        string
	RelationshipType string
	MaxDepth         int

	Limit  int
	Offset int
}

// QueryResult is one page of a filtered subgraph. Edges are restricted to
// pairs whose both endpoints are in the returned page.
type QueryResult struct {
	Nodes []graph.Node `json:"nodes"`
	Edges []graph.Edge `json:"edges"`
	Total int          `json:"total"`
}

// GraphStore is the read/query surface over one job's graph, implemented by
// the embedded file-backed backend and the persisted Postgres backend with
// identical semantics. The backend is chosen once at startup and injected.
type GraphStore interface {
	// SyncGraph replaces the job's graph with doc. Never partial: prior
	// graph data for the job is removed first.
	SyncGraph(ctx context.Context, jobID string, doc *graph.Document) error
	// DeleteGraph removes the job's graph entirely.
	DeleteGraph(ctx context.Context, jobID string) error

	GetStats(ctx context.Context, jobID string) (*Stats, error)
	GetNeighbors(ctx context.Context, jobID, nodeID string) (*Neighborhood, error)
	GetPath(ctx context.Context, jobID, sourceID, targetID string) (*Path, error)
	Query(ctx context.Context, jobID string, filters QueryFilters) (*QueryResult, error)
	// GetExistingNodeIds intersects candidate ids against the graph,
	// preserving input order and dropping duplicates.
	GetExistingNodeIds(ctx context.Context, jobID string, candidates []string) ([]string, error)
}
