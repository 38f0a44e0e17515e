package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/OpenTwinHQ/opentwin/backend/internal/server/middleware"
	"github.com/OpenTwinHQ/opentwin/backend/pkg/store"
)

const (
	defaultQueryLimit = 100
	maxQueryLimit     = 500
)

// QueryGraphHandler returns one page of a filtered subgraph.
func QueryGraphHandler(c echo.Context) error {
	type queryParams struct {
		JobID string `param:"id" validate:"required"`

		Kind         string `json:"kind"`
		Storey       string `json:"storey"`
		Material     string `json:"material"`
		NameContains string `json:"name_contains"`

		RelatedTo        string `json:"related_to"`
		RelationshipType string `json:"relationship_type"`
		MaxDepth         int    `json:"max_depth" validate:"omitempty,min=1,max=4"`

		Limit  int `json:"limit" validate:"omitempty,min=1,max=500"`
		Offset int `json:"offset" validate:"omitempty,min=0"`
	}

	params := new(queryParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request params"})
	}
	if params.RelationshipType != "" && params.RelatedTo == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "relationship_type requires related_to"})
	}

	job, errResp := requireJobAccess(c, params.JobID)
	if errResp != nil {
		return errResp
	}

	limit := params.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	if limit > maxQueryLimit {
		limit = maxQueryLimit
	}

	ctx := c.Request().Context()
	graph := c.(*middleware.AppContext).App.Graph

	result, err := graph.Query(ctx, job.ID, store.QueryFilters{
		Kind:             params.Kind,
		Storey:           params.Storey,
		Material:         params.Material,
		NameContains:     params.NameContains,
		RelatedTo:        params.RelatedTo,
		RelationshipType: params.RelationshipType,
		MaxDepth:         params.MaxDepth,
		Limit:            limit,
		Offset:           params.Offset,
	})
	if err != nil {
		return graphError(c, job.ID, err)
	}

	return c.JSON(http.StatusOK, result)
}

// ValidateNodeIdsHandler intersects candidate node ids against the graph,
// preserving input order.
func ValidateNodeIdsHandler(c echo.Context) error {
	type validateParams struct {
		JobID   string   `param:"id" validate:"required"`
		NodeIds []string `json:"node_ids" validate:"required,min=1,max=1000"`
	}

	type validateResponse struct {
		ExistingIds []string `json:"existing_ids"`
	}

	params := new(validateParams)
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

	existing, err := graph.GetExistingNodeIds(ctx, job.ID, params.NodeIds)
	if err != nil {
		return graphError(c, job.ID, err)
	}
	if existing == nil {
		existing = []string{}
	}

	return c.JSON(http.StatusOK, validateResponse{ExistingIds: existing})
}
