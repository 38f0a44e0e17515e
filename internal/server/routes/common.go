package routes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/OpenTwinHQ/opentwin/backend/internal/jobs"
	"github.com/OpenTwinHQ/opentwin/backend/internal/server/middleware"
	"github.com/OpenTwinHQ/opentwin/backend/pkg/logger"
	"github.com/OpenTwinHQ/opentwin/backend/pkg/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

// requireJobAccess loads the job and enforces that the caller owns it or may
// view all jobs. On failure it writes the response and returns a non-nil
// error the handler should return as-is.
func requireJobAccess(c echo.Context, jobID string) (jobs.Job, error) {
	user := c.(*middleware.AppContext).User
	if user == nil {
		return jobs.Job{}, c.JSON(http.StatusUnauthorized, errorResponse{Error: "Unauthorized"})
	}

	ctx := c.Request().Context()
	conn := c.(*middleware.AppContext).App.DBConn

	job, err := jobs.GetJob(ctx, conn, jobID)
	if errors.Is(err, jobs.ErrJobNotFound) {
		return jobs.Job{}, c.JSON(http.StatusNotFound, errorResponse{Error: "Job not found"})
	}
	if err != nil {
		logger.Error("[API] Failed to load job", "job_id", jobID, "err", err)
		return jobs.Job{}, c.JSON(http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
	}

	if job.OwnerID != user.UserID && !middleware.IsAdmin(user) && !middleware.HasPermission(user, "job.view:all") {
		return jobs.Job{}, c.JSON(http.StatusForbidden, errorResponse{Error: "You do not have access to this job"})
	}

	return job, nil
}

// graphError maps store errors to responses. Missing graphs, nodes and paths
// are not-found conditions; everything else is an internal failure.
func graphError(c echo.Context, jobID string, err error) error {
	switch {
	case errors.Is(err, store.ErrGraphNotFound),
		errors.Is(err, store.ErrNodeNotFound),
		errors.Is(err, store.ErrNoPath):
		return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	default:
		logger.Error("[API] Graph query failed", "job_id", jobID, "err", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
	}
}
