package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iou-concept/kompas/pkg/graph"
	"github.com/iou-concept/kompas/pkg/leaselock"
	"github.com/iou-concept/kompas/pkg/logger"
)

// DetectLockKey serializes community detection across worker instances.
const DetectLockKey = "community_detection"

// ProcessDetectMessage handles one detect_queue delivery: recompute the
// community snapshot under a lease lock. When another worker already holds
// the lock, the message is dropped; that run covers this request.
func ProcessDetectMessage(
	ctx context.Context,
	locks *leaselock.Client,
	detector *graph.Detector,
	msg string,
) error {
	data := new(DetectCommunitiesMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return fmt.Errorf("unmarshal detect message: %w", err)
	}

	err := locks.WithLease(ctx, DetectLockKey, leaselock.Options{}, func(ctx context.Context) error {
		_, err := detector.Run(ctx)
		return err
	})
	if errors.Is(err, leaselock.ErrBusy) {
		logger.Info("[Queue] Community detection already running elsewhere, skipping")
		return nil
	}
	return err
}
