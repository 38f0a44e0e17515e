package routes

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/OpenTwinHQ/opentwin/backend/internal/jobs"
	"github.com/OpenTwinHQ/opentwin/backend/internal/queue"
	"github.com/OpenTwinHQ/opentwin/backend/internal/server/middleware"
	"github.com/OpenTwinHQ/opentwin/backend/internal/storage"
	"github.com/OpenTwinHQ/opentwin/backend/pkg/logger"
)

// CreateJobHandler accepts a model extract upload, stores it, creates the job
// and enqueues the graph build.
func CreateJobHandler(c echo.Context) error {
	type createJobParams struct {
		Name string `form:"name" validate:"required"`
	}

	params := new(createJobParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request params"})
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "Unauthorized"})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Missing model extract file"})
	}
	file, err := fileHeader.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Failed to read uploaded file"})
	}
	defer file.Close()

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	jobID, err := jobs.NewJobID()
	if err != nil {
		logger.Error("[API] Failed to generate job id", "err", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
	}

	modelKey, err := storage.PutFile(ctx, app.S3, jobID, fileHeader.Filename, "extract", file)
	if err != nil {
		logger.Error("[API] Failed to store model extract", "job_id", jobID, "err", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Failed to store uploaded file"})
	}

	job, err := jobs.CreateJob(ctx, app.DBConn, jobID, params.Name, modelKey, user.UserID)
	if err != nil {
		logger.Error("[API] Failed to create job", "job_id", jobID, "err", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
	}

	msgBytes, err := json.Marshal(queue.BuildGraphMsg{
		JobID:      job.ID,
		ExtractKey: modelKey,
		Operation:  "build",
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
	}
	if err := queue.PublishFIFO(app.Queue, queue.BuildQueue, msgBytes); err != nil {
		logger.Error("[API] Failed to enqueue build", "job_id", job.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Failed to enqueue build"})
	}

	return c.JSON(http.StatusCreated, job)
}

// RebuildJobHandler re-enqueues the graph build from the stored extract.
func RebuildJobHandler(c echo.Context) error {
	type rebuildJobParams struct {
		JobID string `param:"id" validate:"required"`
	}

	params := new(rebuildJobParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request params"})
	}

	job, errResp := requireJobAccess(c, params.JobID)
	if errResp != nil {
		return errResp
	}

	if job.State == jobs.StateBuilding {
		return c.JSON(http.StatusConflict, errorResponse{Error: "Job is already building"})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	extractKey := job.ExtractKey
	if extractKey == "" {
		extractKey = job.ModelKey
	}
	msgBytes, err := json.Marshal(queue.BuildGraphMsg{
		JobID:      job.ID,
		ExtractKey: extractKey,
		Operation:  "rebuild",
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
	}

	if err := jobs.UpdateJobState(ctx, app.DBConn, job.ID, jobs.StatePending); err != nil {
		logger.Error("[API] Failed to reset job state", "job_id", job.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
	}
	if err := queue.PublishFIFO(app.Queue, queue.BuildQueue, msgBytes); err != nil {
		logger.Error("[API] Failed to enqueue rebuild", "job_id", job.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Failed to enqueue rebuild"})
	}

	return c.JSON(http.StatusAccepted, map[string]string{"message": "Rebuild enqueued"})
}
