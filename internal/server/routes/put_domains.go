package routes

import (
	"net/http"
	"time"

	"github.com/iou-concept/kompas/internal/server/middleware"
	"github.com/iou-concept/kompas/pkg/common"
	"github.com/iou-concept/kompas/pkg/logger"

	"github.com/labstack/echo/v4"
)

// PutDomainMetaHandler stores the period and stakeholder metadata of a
// domain, consumed by the temporal and stakeholder discovery signals.
func PutDomainMetaHandler(c echo.Context) error {
	type domainMetaBody struct {
		PeriodStart  time.Time `json:"period_start"`
		PeriodEnd    time.Time `json:"period_end"`
		Stakeholders []string  `json:"stakeholders"`
	}

	domainID := c.Param("id")
	if domainID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Missing domain id"})
	}

	data := new(domainMetaBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
	}

	app := c.(*middleware.AppContext).App
	err := app.Store.UpsertDomainMeta(c.Request().Context(), common.DomainMeta{
		DomainID:     domainID,
		PeriodStart:  data.PeriodStart,
		PeriodEnd:    data.PeriodEnd,
		Stakeholders: data.Stakeholders,
	})
	if err != nil {
		logger.Error("Failed to store domain meta", "domainId", domainID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Domain metadata stored"})
}
