package routes

import (
	"encoding/json"
	"net/http"

	"github.com/iou-concept/kompas/internal/queue"
	"github.com/iou-concept/kompas/internal/server/middleware"
	"github.com/iou-concept/kompas/pkg/logger"

	"github.com/labstack/echo/v4"
)

// DetectCommunitiesHandler queues a community detection run. Detection is
// a batch job; concurrent requests collapse into one run on the worker.
func DetectCommunitiesHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App
	user := c.(*middleware.AppContext).User

	requestedBy := ""
	if user != nil {
		requestedBy = user.UserID
	}
	msg, err := json.Marshal(queue.DetectCommunitiesMsg{RequestedBy: requestedBy})
	if err != nil {
		logger.Error("Failed to marshal detect message", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}
	if err := queue.PublishFIFO(app.Queue, queue.DetectQueue, msg); err != nil {
		logger.Error("Failed to publish detect message", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}
	return c.JSON(http.StatusAccepted, map[string]string{"message": "Community detection queued"})
}

// GetCommunitiesHandler returns the current community snapshot.
func GetCommunitiesHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App
	communities, err := app.Store.Communities(c.Request().Context())
	if err != nil {
		logger.Error("Failed to load communities", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}
	return c.JSON(http.StatusOK, communities)
}
