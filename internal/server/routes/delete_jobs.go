package routes

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/OpenTwinHQ/opentwin/backend/internal/queue"
	"github.com/OpenTwinHQ/opentwin/backend/internal/server/middleware"
	"github.com/OpenTwinHQ/opentwin/backend/pkg/logger"
)

// DeleteJobHandler enqueues the removal of a job, its graph and its files.
// Deletion is asynchronous: the worker does the actual cleanup.
func DeleteJobHandler(c echo.Context) error {
	type deleteJobParams struct {
		JobID string `param:"id" validate:"required"`
	}

	params := new(deleteJobParams)
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

	app := c.(*middleware.AppContext).App

	msgBytes, err := json.Marshal(queue.DeleteGraphMsg{JobID: job.ID})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
	}
	if err := queue.PublishFIFO(app.Queue, queue.DeleteQueue, msgBytes); err != nil {
		logger.Error("[API] Failed to enqueue delete", "job_id", job.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Failed to enqueue delete"})
	}

	return c.JSON(http.StatusAccepted, map[string]string{"message": "Delete enqueued"})
}
