package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iou-concept/kompas/internal/loader"
	"github.com/iou-concept/kompas/internal/storage"
	"github.com/iou-concept/kompas/pkg/graph"
	"github.com/iou-concept/kompas/pkg/logger"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
)

// ProcessIngestMessage handles one ingest_queue delivery: fetch and
// normalize the document content, then run it through the pipeline.
// Unsupported content types and degraded extractions are terminal for the
// message (logged, acked); transient failures return an error so the
// delivery goes through the retry queue.
func ProcessIngestMessage(
	ctx context.Context,
	s3Client *awss3.Client,
	pipeline *graph.Pipeline,
	msg string,
) error {
	data := new(IngestDocumentMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return fmt.Errorf("unmarshal ingest message: %w", err)
	}
	if data.DocumentID == "" || data.DomainID == "" {
		return fmt.Errorf("ingest message missing document or domain id")
	}

	content := data.Content
	mimeType := data.MimeType
	if content == "" && data.S3Key != "" {
		raw, storedType, err := storage.GetDocument(ctx, s3Client, data.S3Key)
		if err != nil {
			return fmt.Errorf("fetch document %s: %w", data.S3Key, err)
		}
		if mimeType == "" {
			mimeType = storedType
		}
		normalized, err := loader.Normalize(raw, mimeType)
		if err != nil {
			var unsupported loader.ErrUnsupportedType
			if errors.As(err, &unsupported) {
				logger.Warn("[Queue] Skipping document with unsupported content type",
					"documentId", data.DocumentID, "contentType", unsupported.ContentType)
				return nil
			}
			return fmt.Errorf("normalize document %s: %w", data.DocumentID, err)
		}
		content = normalized
	}

	result, err := pipeline.ProcessDocument(ctx, data.DocumentID, content, data.DomainID)
	if err != nil {
		return err
	}
	if result.Degraded {
		logger.Warn("[Queue] Document processed degraded",
			"documentId", data.DocumentID, "reason", result.FailureReason)
		return nil
	}

	logger.Info("[Queue] Document ingested",
		"documentId", data.DocumentID,
		"domainId", data.DomainID,
		"entities", result.EntitiesExtracted,
		"relationships", result.RelationshipsDiscovered,
		"elapsedMs", result.ProcessingTimeMs,
	)
	return nil
}
