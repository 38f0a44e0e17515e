package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rabbitmq/amqp091-go"

	"github.com/OpenTwinHQ/opentwin/backend/internal/jobs"
	"github.com/OpenTwinHQ/opentwin/backend/internal/storage"
	"github.com/OpenTwinHQ/opentwin/backend/internal/util"
	"github.com/OpenTwinHQ/opentwin/backend/pkg/logger"
	"github.com/OpenTwinHQ/opentwin/backend/pkg/store"
)

// ProcessDeleteMessage removes everything belonging to a job: its graph in
// the store, its files in object storage, and finally the job record.
func ProcessDeleteMessage(
	ctx context.Context,
	s3Client *awss3.Client,
	ch *amqp091.Channel,
	conn *pgxpool.Pool,
	graphStore store.GraphStore,
	msg string,
) error {
	data := new(DeleteGraphMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return err
	}
	jobID := data.JobID

	if err := graphStore.DeleteGraph(ctx, jobID); err != nil {
		return fmt.Errorf("failed to delete graph: %w", err)
	}

	if err := util.RetryErrWithContext(ctx, 3, func(ctx context.Context) error {
		return storage.DeleteFolder(ctx, s3Client, jobID+"/")
	}); err != nil {
		return fmt.Errorf("failed to delete job files: %w", err)
	}

	if err := jobs.DeleteJob(ctx, conn, jobID); err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			logger.Warn("[Queue] Job already deleted", "job_id", jobID)
			return nil
		}
		return fmt.Errorf("failed to delete job: %w", err)
	}

	logger.Info("[Queue] Job deleted", "job_id", jobID)
	return nil
}
