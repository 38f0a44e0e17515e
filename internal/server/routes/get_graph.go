package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/OpenTwinHQ/opentwin/backend/internal/server/middleware"
)

// GetGraphStatsHandler summarizes a job's graph: counts, kind and edge-type
// histograms, distinct storeys and materials.
func GetGraphStatsHandler(c echo.Context) error {
	type statsParams struct {
		JobID string `param:"id" validate:"required"`
	}

	params := new(statsParams)
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
	graph := c.(*middleware.AppContext).App.Graph

	stats, err := graph.GetStats(ctx, job.ID)
	if err != nil {
		return graphError(c, job.ID, err)
	}

	return c.JSON(http.StatusOK, stats)
}

// GetGraphNeighborsHandler returns a node and everything one incident edge
// away, in either direction.
func GetGraphNeighborsHandler(c echo.Context) error {
	type neighborsParams struct {
		JobID  string `param:"id" validate:"required"`
		NodeID string `param:"node_id" validate:"required"`
	}

	params := new(neighborsParams)
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
	graph := c.(*middleware.AppContext).App.Graph

	neighborhood, err := graph.GetNeighbors(ctx, job.ID, params.NodeID)
	if err != nil {
		return graphError(c, job.ID, err)
	}

	return c.JSON(http.StatusOK, neighborhood)
}

// GetGraphPathHandler returns a shortest undirected path between two nodes.
func GetGraphPathHandler(c echo.Context) error {
	type pathParams struct {
		JobID    string `param:"id" validate:"required"`
		SourceID string `query:"source_id" validate:"required"`
		TargetID string `query:"target_id" validate:"required"`
	}

	params := new(pathParams)
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
	graph := c.(*middleware.AppContext).App.Graph

	path, err := graph.GetPath(ctx, job.ID, params.SourceID, params.TargetID)
	if err != nil {
		return graphError(c, job.ID, err)
	}

	return c.JSON(http.StatusOK, path)
}
