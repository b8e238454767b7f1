package routes

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/iou-concept/kompas/internal/server/middleware"
	"github.com/iou-concept/kompas/pkg/logger"
	"github.com/iou-concept/kompas/pkg/store"

	"github.com/labstack/echo/v4"
)

const defaultNetworkDepth = 2

// GetEntityNetworkHandler returns the neighborhood subgraph of an entity
// for visualization, bounded by the max_depth query parameter.
func GetEntityNetworkHandler(c echo.Context) error {
	entityID := c.Param("id")
	if entityID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Missing entity id"})
	}

	maxDepth := defaultNetworkDepth
	if raw := c.QueryParam("max_depth"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return c.JSON(http.StatusBadRequest, map[string]string{"message": "max_depth must be a positive integer"})
		}
		maxDepth = parsed
	}

	app := c.(*middleware.AppContext).App
	network, err := app.Discoverer.GetEntityNetwork(c.Request().Context(), entityID, maxDepth)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"message": "Entity not found"})
		}
		logger.Error("Failed to build entity network", "entityId", entityID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}
	return c.JSON(http.StatusOK, network)
}
