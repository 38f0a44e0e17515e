package pgx

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/OpenTwinHQ/opentwin/backend/pkg/graph"
)

func TestSyncGraphDeleteThenUpsert(t *testing.T) {
	conn := &fakeConn{}
	s := New(conn)

	doc := &graph.Document{
		Nodes: []graph.Node{
			{ID: "a", Label: "UnitaryEquipment", Kind: "IfcUnitaryEquipment", Name: "Fan\x00Coil"},
			{ID: "b", Label: "Space", Kind: "IfcSpace", Name: "Office 101"},
		},
		Edges: []graph.Edge{
			{Source: "a", Target: "b", Type: graph.EdgeServes},
		},
	}
	if err := s.SyncGraph(context.Background(), "job-1", doc); err != nil {
		t.Fatalf("SyncGraph: %v", err)
	}

	if len(conn.execs) != 1 || !strings.Contains(conn.execs[0].sql, "CREATE TABLE IF NOT EXISTS graph_nodes") {
		t.Fatalf("schema DDL must run before the sync, got %d execs", len(conn.execs))
	}

	tx := conn.tx
	if tx == nil {
		t.Fatal("sync must run in a transaction")
	}
	if len(tx.execs) != 2 ||
		!strings.Contains(tx.execs[0].sql, "DELETE FROM graph_edges") ||
		!strings.Contains(tx.execs[1].sql, "DELETE FROM graph_nodes") {
		t.Fatalf("sync must delete edges then nodes, got %+v", tx.execs)
	}

	if len(tx.batches) != 2 {
		t.Fatalf("batches = %d, want nodes + edges", len(tx.batches))
	}
	nodeBatch := tx.batches[0].QueuedQueries
	if len(nodeBatch) != 2 || nodeBatch[0].SQL != upsertNodeSQL {
		t.Fatalf("node batch = %d statements", len(nodeBatch))
	}
	if got := nodeBatch[0].Arguments[4]; got != "FanCoil" {
		t.Errorf("node name must be sanitized, got %q", got)
	}
	edgeBatch := tx.batches[1].QueuedQueries
	if len(edgeBatch) != 1 || edgeBatch[0].SQL != upsertEdgeSQL {
		t.Fatalf("edge batch = %d statements", len(edgeBatch))
	}
	if got := edgeBatch[0].Arguments[1]; got != "a|SERVES|b" {
		t.Errorf("edge key = %q", got)
	}

	if !tx.committed {
		t.Fatal("sync must commit")
	}
}

func TestEnsureSchemaRetriesAfterFailure(t *testing.T) {
	conn := &fakeConn{execErrs: []error{errors.New("connection refused")}}
	s := New(conn)
	ctx := context.Background()

	err := s.ensureSchema(ctx)
	if err == nil || !strings.Contains(err.Error(), "graph database unavailable") {
		t.Fatalf("first attempt err = %v", err)
	}
	if err := s.ensureSchema(ctx); err != nil {
		t.Fatalf("second attempt must retry the DDL, got %v", err)
	}
	if err := s.ensureSchema(ctx); err != nil {
		t.Fatalf("third attempt: %v", err)
	}
	if len(conn.execs) != 2 {
		t.Fatalf("DDL ran %d times, want 2 (one failure, one success, then cached)", len(conn.execs))
	}
}
