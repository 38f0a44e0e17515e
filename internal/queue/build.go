package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"

	"github.com/OpenTwinHQ/opentwin/backend/internal/jobs"
	"github.com/OpenTwinHQ/opentwin/backend/internal/storage"
	"github.com/OpenTwinHQ/opentwin/backend/internal/timing"
	"github.com/OpenTwinHQ/opentwin/backend/internal/util"
	"github.com/OpenTwinHQ/opentwin/backend/pkg/graph"
	"github.com/OpenTwinHQ/opentwin/backend/pkg/leaselock"
	"github.com/OpenTwinHQ/opentwin/backend/pkg/logger"
	"github.com/OpenTwinHQ/opentwin/backend/pkg/model"
	"github.com/OpenTwinHQ/opentwin/backend/pkg/store"
	"github.com/OpenTwinHQ/opentwin/backend/pkg/traversal"
)

const buildStatType = "graph_build"

// ProcessBuildMessage builds the connectivity graph for one job: it loads the
// extract, discovers HVAC equipment, traverses the distribution network per
// unit, assembles the node/edge document and syncs it into the graph store.
func ProcessBuildMessage(
	ctx context.Context,
	s3Client *awss3.Client,
	ch *amqp091.Channel,
	conn *pgxpool.Pool,
	graphStore store.GraphStore,
	msg string,
) (err error) {
	data := new(BuildGraphMsg)
	if err = json.Unmarshal([]byte(msg), data); err != nil {
		return err
	}
	jobID := data.JobID

	claimed := false
	defer func() {
		if err == nil || !claimed {
			return
		}
		updateCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if updateErr := jobs.MarkJobFailed(updateCtx, conn, jobID, err.Error()); updateErr != nil {
			logger.Warn("[Queue] Failed to mark job as failed", "job_id", jobID, "err", updateErr)
		}
		publishJobState(ch, jobID, jobs.StateFailed, err.Error())
	}()

	if err = jobs.UpdateJobState(ctx, conn, jobID, jobs.StateBuilding); err != nil {
		return fmt.Errorf("failed to claim job: %w", err)
	}
	claimed = true
	publishJobState(ch, jobID, jobs.StateBuilding, "")

	raw, err := util.RetryWithContext(ctx, 3, func(ctx context.Context) (*[]byte, error) {
		return storage.GetFile(ctx, s3Client, data.ExtractKey)
	})
	if err != nil {
		return fmt.Errorf("failed to load extract: %w", err)
	}

	ex := new(model.Extract)
	if err = json.Unmarshal(*raw, ex); err != nil {
		return fmt.Errorf("failed to parse extract: %w", err)
	}

	if prediction, predictErr := timing.PredictBuildTime(ctx, conn, int64(len(ex.Elements)), buildStatType); predictErr == nil && prediction > 0 {
		logger.Info("[Queue] Build time prediction", "job_id", jobID, "elements", len(ex.Elements), "time_ms", prediction)
	}

	start := time.Now()

	equipment := traversal.DiscoverEquipment(ex)
	logger.Info("[Queue] Discovered equipment", "job_id", jobID, "count", len(equipment), "elements", len(ex.Elements))

	net := traversal.NewNetwork(ex)
	equipmentIDs := traversal.EquipmentIDSet(equipment)
	opts := traversal.Options{
		MaxDepth: int(util.GetEnvNumeric("TRAVERSAL_MAX_DEPTH", traversal.DefaultMaxDepth)),
		MaxNodes: int(util.GetEnvNumeric("TRAVERSAL_MAX_NODES", traversal.DefaultMaxNodes)),
	}

	results := make([]traversal.Result, len(equipment))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(int(util.GetEnvNumeric("TRAVERSAL_PARALLEL", 4)))
	for i, unit := range equipment {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			results[i] = traversal.Traverse(net, unit.ID, equipmentIDs, opts)
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return fmt.Errorf("traversal failed: %w", err)
	}

	warnings := make([]string, 0)
	for _, res := range results {
		warnings = append(warnings, res.Warnings...)
	}

	doc := graph.Build(ex, results)
	logger.Info("[Queue] Graph assembled", "job_id", jobID, "nodes", len(doc.Nodes), "edges", len(doc.Edges), "warnings", len(warnings))

	// Serialize syncs per job: a rebuild racing an earlier build of the same
	// job must not interleave partial writes.
	lockClient := leaselock.New(conn)
	lease, err := lockClient.Acquire(ctx, "job:"+jobID, leaselock.Options{
		TTL:         10 * time.Minute,
		RenewEvery:  4 * time.Minute,
		Wait:        true,
		TokenPrefix: "graph-sync/" + jobID + "/",
	})
	if err != nil {
		return fmt.Errorf("failed to acquire job lock: %w", err)
	}
	defer func() {
		if releaseErr := lease.Release(context.Background()); releaseErr != nil {
			logger.Warn("[Queue] Failed to release job lock", "job_id", jobID, "err", releaseErr)
		}
	}()

	if err = graphStore.SyncGraph(lease.Context, jobID, doc); err != nil {
		return fmt.Errorf("failed to sync graph: %w", err)
	}

	duration := time.Since(start)
	if statErr := timing.AddBuildTime(ctx, conn, jobID, int64(len(ex.Elements)), duration.Milliseconds(), buildStatType); statErr != nil {
		logger.Warn("[Queue] Failed to record build time", "job_id", jobID, "err", statErr)
	}

	if err = jobs.SetJobResult(ctx, conn, jobID, data.ExtractKey, warnings); err != nil {
		return fmt.Errorf("failed to finalize job: %w", err)
	}
	publishJobState(ch, jobID, jobs.StateReady, "")

	logger.Info("[Queue] Build completed", "job_id", jobID, "duration_ms", duration.Milliseconds())
	return nil
}

func publishJobState(ch *amqp091.Channel, jobID, state, errMsg string) {
	event, err := json.Marshal(JobStateEvent{JobID: jobID, State: state, Error: errMsg})
	if err != nil {
		return
	}
	if err := PublishTopic(ch, "jobs.state."+jobID, event); err != nil {
		logger.Warn("[Queue] Failed to publish job state event", "job_id", jobID, "state", state, "err", err)
	}
}
