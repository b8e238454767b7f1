package server

import (
	"github.com/iou-concept/kompas/internal/server/middleware"
	"github.com/iou-concept/kompas/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Document ingestion
	apiRoutes.POST("/documents", routes.IngestDocumentHandler)

	// Domain routes
	apiRoutes.GET("/domains/:id/relations", routes.GetDomainRelationsHandler)
	apiRoutes.GET("/domains/:id/context", routes.GetDomainContextHandler)
	apiRoutes.PUT("/domains/:id/meta", routes.PutDomainMetaHandler)

	// Entity routes
	apiRoutes.GET("/entities/:id/network", routes.GetEntityNetworkHandler)

	// Community routes
	apiRoutes.POST("/communities/detect", routes.DetectCommunitiesHandler)
	apiRoutes.GET("/communities", routes.GetCommunitiesHandler)
}
