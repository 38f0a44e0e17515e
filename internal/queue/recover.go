package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rabbitmq/amqp091-go"

	"github.com/OpenTwinHQ/opentwin/backend/internal/jobs"
	"github.com/OpenTwinHQ/opentwin/backend/internal/util"
	"github.com/OpenTwinHQ/opentwin/backend/pkg/logger"
)

const staleJobAge = 30 * time.Minute

// RecoverStaleJobs requeues jobs that were claimed by a worker that never
// finished. It runs once at worker startup.
func RecoverStaleJobs(
	ctx context.Context,
	ch *amqp091.Channel,
	conn *pgxpool.Pool,
) error {
	staleJobs, err := jobs.ListStaleBuildingJobs(ctx, conn, staleJobAge)
	if err != nil {
		return fmt.Errorf("failed to list stale jobs: %w", err)
	}

	if len(staleJobs) == 0 {
		logger.Debug("[Queue] No stale jobs found")
		return nil
	}

	logger.Info("[Queue] Found stale jobs", "count", len(staleJobs))

	for _, job := range staleJobs {
		if err := jobs.UpdateJobState(ctx, conn, job.ID, jobs.StatePending); err != nil {
			logger.Error("[Queue] Failed to reset stale job", "job_id", job.ID, "err", err)
			continue
		}

		extractKey := job.ExtractKey
		if extractKey == "" {
			extractKey = job.ModelKey
		}
		msgBytes, err := json.Marshal(BuildGraphMsg{
			JobID:      job.ID,
			ExtractKey: extractKey,
			Operation:  "rebuild",
		})
		if err != nil {
			logger.Error("[Queue] Failed to marshal build message", "job_id", job.ID, "err", err)
			continue
		}

		if err := util.RetryErr(3, func() error {
			return PublishFIFO(ch, BuildQueue, msgBytes)
		}); err != nil {
			logger.Error("[Queue] Failed to republish stale job", "job_id", job.ID, "err", err)
			continue
		}

		logger.Info("[Queue] Recovered stale job", "job_id", job.ID)
	}

	return nil
}
