package routes

import (
	"net/http"
	"strconv"

	"github.com/iou-concept/kompas/internal/server/middleware"
	"github.com/iou-concept/kompas/pkg/logger"

	"github.com/labstack/echo/v4"
)

const defaultMinStrength = 0.3

// GetDomainRelationsHandler returns the discovered relations of a domain,
// filtered by the min_strength query parameter.
func GetDomainRelationsHandler(c echo.Context) error {
	domainID := c.Param("id")
	if domainID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Missing domain id"})
	}

	minStrength := defaultMinStrength
	if raw := c.QueryParam("min_strength"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 || parsed > 1 {
			return c.JSON(http.StatusBadRequest, map[string]string{"message": "min_strength must be a number between 0 and 1"})
		}
		minStrength = parsed
	}

	app := c.(*middleware.AppContext).App
	relations, err := app.Discoverer.Discover(c.Request().Context(), domainID, minStrength)
	if err != nil {
		logger.Error("Failed to discover domain relations", "domainId", domainID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}
	return c.JSON(http.StatusOK, relations)
}

// GetDomainContextHandler returns the aggregated graph context of a domain.
func GetDomainContextHandler(c echo.Context) error {
	domainID := c.Param("id")
	if domainID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Missing domain id"})
	}

	app := c.(*middleware.AppContext).App
	context, err := app.Discoverer.GetDomainGraphContext(c.Request().Context(), domainID)
	if err != nil {
		logger.Error("Failed to build domain context", "domainId", domainID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}
	return c.JSON(http.StatusOK, context)
}
