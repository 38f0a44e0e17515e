package pgx

import (
	"context"

	pgxv5 "github.com/jackc/pgx/v5"

	"github.com/OpenTwinHQ/opentwin/backend/internal/util"
	"github.com/OpenTwinHQ/opentwin/backend/pkg/graph"
	"github.com/OpenTwinHQ/opentwin/backend/pkg/logger"
	"github.com/OpenTwinHQ/opentwin/backend/pkg/store"
)

const (
	nodeChunk = 500
	edgeChunk = 1000
)

const upsertNodeSQL = `
INSERT INTO graph_nodes (job_id, node_id, label, kind, name, storey, materials, pset_name, prop_name, value, value_type)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (job_id, node_id) DO UPDATE SET
	label = EXCLUDED.label,
	kind = EXCLUDED.kind,
	name = EXCLUDED.name,
	storey = EXCLUDED.storey,
	materials = EXCLUDED.materials,
	pset_name = EXCLUDED.pset_name,
	prop_name = EXCLUDED.prop_name,
	value = EXCLUDED.value,
	value_type = EXCLUDED.value_type`

const upsertEdgeSQL = `
INSERT INTO graph_edges (job_id, edge_key, source_id, target_id, edge_type)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (job_id, edge_key) DO NOTHING`

// SyncGraph replaces the job's stored graph with doc in one transaction.
func (s *GraphDBStore) SyncGraph(ctx context.Context, jobID string, doc *graph.Document) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return dbErr(err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM graph_edges WHERE job_id = $1`, jobID); err != nil {
		return dbErr(err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM graph_nodes WHERE job_id = $1`, jobID); err != nil {
		return dbErr(err)
	}

	err = store.ChunkRange(len(doc.Nodes), nodeChunk, func(start, end int) error {
		batch := &pgxv5.Batch{}
		for _, n := range doc.Nodes[start:end] {
			batch.Queue(upsertNodeSQL,
				jobID,
				n.ID,
				util.SanitizePostgresText(n.Label),
				util.SanitizePostgresText(n.Kind),
				util.SanitizePostgresText(n.Name),
				util.SanitizePostgresText(n.Storey),
				sanitizeAll(n.Materials),
				util.SanitizePostgresText(n.PsetName),
				util.SanitizePostgresText(n.PropName),
				util.SanitizePostgresText(n.Value),
				n.ValueType,
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return dbErr(err)
	}

	err = store.ChunkRange(len(doc.Edges), edgeChunk, func(start, end int) error {
		batch := &pgxv5.Batch{}
		for _, e := range doc.Edges[start:end] {
			batch.Queue(upsertEdgeSQL, jobID, e.Key(), e.Source, e.Target, e.Type)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return dbErr(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return dbErr(err)
	}

	logger.Debug("[GraphStore] Graph synced", "job_id", jobID, "nodes", len(doc.Nodes), "edges", len(doc.Edges))
	return nil
}

// DeleteGraph removes every stored node and edge of the job.
func (s *GraphDBStore) DeleteGraph(ctx context.Context, jobID string) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	if _, err := s.conn.Exec(ctx, `DELETE FROM graph_edges WHERE job_id = $1`, jobID); err != nil {
		return dbErr(err)
	}
	if _, err := s.conn.Exec(ctx, `DELETE FROM graph_nodes WHERE job_id = $1`, jobID); err != nil {
		return dbErr(err)
	}
	return nil
}

func sanitizeAll(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = util.SanitizePostgresText(v)
	}
	return out
}
