package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/OpenTwinHQ/opentwin/backend/internal/jobs"
	"github.com/OpenTwinHQ/opentwin/backend/internal/server/middleware"
	"github.com/OpenTwinHQ/opentwin/backend/internal/storage"
	"github.com/OpenTwinHQ/opentwin/backend/pkg/logger"
)

func GetJobsHandler(c echo.Context) error {
	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "Unauthorized"})
	}

	ctx := c.Request().Context()
	conn := c.(*middleware.AppContext).App.DBConn

	var (
		list []jobs.Job
		err  error
	)
	if middleware.HasPermission(user, "job.view:all") {
		list, err = jobs.ListJobs(ctx, conn)
	} else {
		list, err = jobs.ListJobsForUser(ctx, conn, user.UserID)
	}
	if err != nil {
		logger.Error("[API] Failed to list jobs", "err", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
	}

	return c.JSON(http.StatusOK, list)
}

func GetJobHandler(c echo.Context) error {
	type getJobParams struct {
		JobID string `param:"id" validate:"required"`
	}

	params := new(getJobParams)
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

	return c.JSON(http.StatusOK, job)
}

// GetJobFileHandler returns a presigned download link for the job's uploaded
// model extract.
func GetJobFileHandler(c echo.Context) error {
	type getJobFileParams struct {
		JobID string `param:"id" validate:"required"`
	}

	params := new(getJobFileParams)
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

	ctx := c.Request().Context()
	s3Client := c.(*middleware.AppContext).App.S3

	url, err := storage.GenerateDownloadLink(ctx, s3Client, job.ModelKey)
	if err != nil {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "File does not exist"})
	}

	return c.JSON(http.StatusOK, map[string]string{"url": url})
}
