package pgx

import (
	"context"
	"fmt"
	"strings"
	"sync"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// GraphDBStore implements the GraphStore interface on PostgreSQL. Nodes and
// edges are stored per job in two flat tables; queries and traversals run as
// SQL so the working set never has to fit in process memory.
type GraphDBStore struct {
	conn pgxIConn

	schemaMu   sync.Mutex
	schemaDone bool
}

// New creates a GraphDBStore on an existing connection or pool. The schema is
// created lazily on first use and retried until it succeeds.
func New(conn pgxIConn) *GraphDBStore {
	return &GraphDBStore{conn: conn}
}

// Text ordering uses COLLATE "C" throughout so SQL sorts bytewise, matching
// the ordering the embedded backend produces with Go string comparison.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS graph_nodes (
	job_id     TEXT NOT NULL,
	node_id    TEXT NOT NULL,
	label      TEXT NOT NULL DEFAULT '',
	kind       TEXT NOT NULL DEFAULT '',
	name       TEXT NOT NULL DEFAULT '',
	storey     TEXT NOT NULL DEFAULT '',
	materials  TEXT[] NOT NULL DEFAULT '{}',
	pset_name  TEXT NOT NULL DEFAULT '',
	prop_name  TEXT NOT NULL DEFAULT '',
	value      TEXT NOT NULL DEFAULT '',
	value_type TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (job_id, node_id)
);
CREATE INDEX IF NOT EXISTS graph_nodes_kind_idx ON graph_nodes (job_id, kind);
CREATE INDEX IF NOT EXISTS graph_nodes_storey_idx ON graph_nodes (job_id, storey);

CREATE TABLE IF NOT EXISTS graph_edges (
	job_id    TEXT NOT NULL,
	edge_key  TEXT NOT NULL,
	source_id TEXT NOT NULL,
	target_id TEXT NOT NULL,
	edge_type TEXT NOT NULL,
	PRIMARY KEY (job_id, edge_key)
);
CREATE INDEX IF NOT EXISTS graph_edges_source_idx ON graph_edges (job_id, source_id);
CREATE INDEX IF NOT EXISTS graph_edges_target_idx ON graph_edges (job_id, target_id);
`

// ensureSchema creates the graph tables on first use. A failed attempt is not
// latched: the next caller runs the DDL again, so a database that was briefly
// unreachable does not poison the store for the life of the process.
func (s *GraphDBStore) ensureSchema(ctx context.Context) error {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()
	if s.schemaDone {
		return nil
	}
	if _, err := s.conn.Exec(ctx, schemaSQL); err != nil {
		return dbErr(err)
	}
	s.schemaDone = true
	return nil
}

// dbErr marks driver-level failures so handlers can distinguish an
// unavailable database from a missing graph.
func dbErr(err error) error {
	return fmt.Errorf("graph database unavailable: %w", err)
}

func (s *GraphDBStore) hasGraph(ctx context.Context, jobID string) (bool, error) {
	var exists bool
	err := s.conn.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM graph_nodes WHERE job_id = $1)`, jobID,
	).Scan(&exists)
	if err != nil {
		return false, dbErr(err)
	}
	return exists, nil
}

// escapeLike escapes LIKE metacharacters so user input only ever matches
// literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
