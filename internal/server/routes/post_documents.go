package routes

import (
	"encoding/json"
	"net/http"

	"github.com/iou-concept/kompas/internal/queue"
	"github.com/iou-concept/kompas/internal/server/middleware"
	"github.com/iou-concept/kompas/pkg/logger"

	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// IngestDocumentHandler accepts a document for graph ingestion. Inline
// content is processed synchronously and returns the pipeline result;
// object-store references and async requests are queued for the worker.
func IngestDocumentHandler(c echo.Context) error {
	type ingestDocumentBody struct {
		DocumentID string `json:"document_id"`
		DomainID   string `json:"domain_id" validate:"required"`
		Content    string `json:"content"`
		S3Key      string `json:"s3_key"`
		MimeType   string `json:"mime_type"`
		Async      bool   `json:"async"`
	}

	data := new(ingestDocumentBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
	}
	if data.Content == "" && data.S3Key == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Either content or s3_key is required"})
	}

	if data.DocumentID == "" {
		id, err := gonanoid.New()
		if err != nil {
			logger.Error("Failed to generate document id", "err", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
		}
		data.DocumentID = id
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	// documents in the object store go through the worker, which owns
	// fetching and normalization
	if data.Async || data.S3Key != "" {
		msg, err := json.Marshal(queue.IngestDocumentMsg{
			DocumentID: data.DocumentID,
			DomainID:   data.DomainID,
			Content:    data.Content,
			S3Key:      data.S3Key,
			MimeType:   data.MimeType,
		})
		if err != nil {
			logger.Error("Failed to marshal ingest message", "err", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
		}
		if err := queue.PublishFIFO(app.Queue, queue.IngestQueue, msg); err != nil {
			logger.Error("Failed to publish ingest message", "err", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
		}
		return c.JSON(http.StatusAccepted, map[string]string{
			"message":     "Document queued for processing",
			"document_id": data.DocumentID,
		})
	}

	result, err := app.Pipeline.ProcessDocument(ctx, data.DocumentID, data.Content, data.DomainID)
	if err != nil {
		logger.Error("Failed to process document", "documentId", data.DocumentID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}
	return c.JSON(http.StatusOK, result)
}
