package server

import (
	"github.com/OpenTwinHQ/opentwin/backend/internal/server/middleware"
	"github.com/OpenTwinHQ/opentwin/backend/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Job routes
	apiRoutes.GET("/jobs", routes.GetJobsHandler)
	apiRoutes.POST("/jobs", routes.CreateJobHandler, middleware.RequirePermission("job.create"))
	apiRoutes.GET("/jobs/:id", routes.GetJobHandler)
	apiRoutes.POST("/jobs/:id/rebuild", routes.RebuildJobHandler, middleware.RequirePermission("job.update"))
	apiRoutes.DELETE("/jobs/:id", routes.DeleteJobHandler, middleware.RequirePermission("job.delete"))
	apiRoutes.GET("/jobs/:id/file", routes.GetJobFileHandler)

	// Graph query routes
	apiRoutes.GET("/jobs/:id/graph/stats", routes.GetGraphStatsHandler)
	apiRoutes.GET("/jobs/:id/graph/nodes/:node_id/neighbors", routes.GetGraphNeighborsHandler)
	apiRoutes.GET("/jobs/:id/graph/path", routes.GetGraphPathHandler)
	apiRoutes.POST("/jobs/:id/graph/query", routes.QueryGraphHandler, middleware.RequirePermission("job.query"))
	apiRoutes.POST("/jobs/:id/graph/validate-ids", routes.ValidateNodeIdsHandler, middleware.RequirePermission("job.query"))
}
