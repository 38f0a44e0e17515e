package pgx

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	pgxv5 "github.com/jackc/pgx/v5"

	"github.com/OpenTwinHQ/opentwin/backend/pkg/store"
)

func TestGetStats(t *testing.T) {
	conn := &fakeConn{
		rowQueue: []*fakeRow{{vals: []any{true}}},
		rowsQueue: []*fakeRows{
			{rows: [][]any{{"IfcSpace", 2}, {"IfcWall", 1}}},
			{rows: [][]any{{"SERVES", 2}}},
			{rows: [][]any{{"Level 1"}}},
			{rows: [][]any{{"Concrete"}}},
		},
	}
	s := New(conn)

	stats, err := s.GetStats(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.NodeCount != 3 || stats.EdgeCount != 2 {
		t.Fatalf("counts = %d/%d, want 3/2", stats.NodeCount, stats.EdgeCount)
	}
	if stats.NodeKinds["IfcWall"] != 1 || stats.EdgeTypes["SERVES"] != 2 {
		t.Fatalf("histograms = %v / %v", stats.NodeKinds, stats.EdgeTypes)
	}
	if !reflect.DeepEqual(stats.Storeys, []string{"Level 1"}) {
		t.Fatalf("storeys = %v", stats.Storeys)
	}
	if !reflect.DeepEqual(stats.Materials, []string{"Concrete"}) {
		t.Fatalf("materials = %v", stats.Materials)
	}
}

func TestGetStatsGraphNotFound(t *testing.T) {
	conn := &fakeConn{rowQueue: []*fakeRow{{vals: []any{false}}}}
	s := New(conn)

	_, err := s.GetStats(context.Background(), "empty-job")
	if !errors.Is(err, store.ErrGraphNotFound) {
		t.Fatalf("err = %v, want ErrGraphNotFound", err)
	}
}

func TestQueryStatementConstruction(t *testing.T) {
	conn := &fakeConn{
		rowQueue: []*fakeRow{
			{vals: []any{true}}, // graph exists
			{vals: []any{3}},    // total count
		},
		rowsQueue: []*fakeRows{
			{rows: [][]any{{"w1", "Wall", "IfcWall", "North Wall", "Level 1", []string{"Concrete"}, "", "", "", ""}}},
			{}, // no edges within the page
		},
	}
	s := New(conn)

	res, err := s.Query(context.Background(), "job-1", store.QueryFilters{
		Kind:         "IfcWall",
		Storey:       "Level 1",
		Material:     "Concrete",
		NameContains: "50%_x",
		Limit:        10,
		Offset:       5,
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if res.Total != 3 || len(res.Nodes) != 1 || res.Nodes[0].ID != "w1" {
		t.Fatalf("result = %+v", res)
	}

	countCall := conn.queryRows[1]
	for _, clause := range []string{
		"kind = $2",
		"storey = $3",
		"$4 = ANY(materials)",
		"name ILIKE $5",
	} {
		if !strings.Contains(countCall.sql, clause) {
			t.Errorf("count query missing %q:\n%s", clause, countCall.sql)
		}
	}
	if got := countCall.args[4]; got != `%50\%\_x%` {
		t.Errorf("ILIKE pattern = %q, want escaped metacharacters", got)
	}

	pageCall := conn.queries[0]
	if !strings.Contains(pageCall.sql, `ORDER BY name COLLATE "C", kind COLLATE "C", node_id COLLATE "C"`) {
		t.Errorf("page query must order bytewise:\n%s", pageCall.sql)
	}
	if !strings.Contains(pageCall.sql, "LIMIT $6") || !strings.Contains(pageCall.sql, "OFFSET $7") {
		t.Errorf("page query missing limit/offset:\n%s", pageCall.sql)
	}
	if len(pageCall.args) != 7 || pageCall.args[5] != 10 || pageCall.args[6] != 5 {
		t.Errorf("page args = %v", pageCall.args)
	}
}

func TestQueryRelatedToMissingNode(t *testing.T) {
	conn := &fakeConn{
		rowQueue: []*fakeRow{
			{vals: []any{true}},
			{err: pgxv5.ErrNoRows}, // seed node lookup
		},
	}
	s := New(conn)

	_, err := s.Query(context.Background(), "job-1", store.QueryFilters{RelatedTo: "missing"})
	if !errors.Is(err, store.ErrNodeNotFound) {
		t.Fatalf("err = %v, want ErrNodeNotFound", err)
	}
}

func TestIncidentEdgesStatement(t *testing.T) {
	conn := &fakeConn{}
	s := New(conn)

	if _, err := s.incidentEdges(context.Background(), "job-1", []string{"a"}, "SERVES"); err != nil {
		t.Fatalf("incidentEdges: %v", err)
	}

	call := conn.queries[0]
	if !strings.Contains(call.sql, "AND edge_type = $3") {
		t.Errorf("edge type filter missing:\n%s", call.sql)
	}
	if !strings.Contains(call.sql, `ORDER BY edge_type COLLATE "C", edge_key COLLATE "C"`) {
		t.Errorf("incident edges must order bytewise:\n%s", call.sql)
	}
}
