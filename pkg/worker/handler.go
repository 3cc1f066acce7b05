package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/byteberry/statsync/pkg/engine"
	"github.com/byteberry/statsync/pkg/tasks"
)

// syncHandler unmarshals sync task payloads and hands them to the engine
type syncHandler struct {
	log    logrus.FieldLogger
	engine engine.Service
}

func newSyncHandler(log logrus.FieldLogger, eng engine.Service) *syncHandler {
	return &syncHandler{
		log:    log.WithField("component", "sync_handler"),
		engine: eng,
	}
}

// HandleSync processes one target sync task
func (h *syncHandler) HandleSync(ctx context.Context, task *asynq.Task) error {
	var payload tasks.TaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		// Malformed payloads can never succeed; skip retry entirely.
		return fmt.Errorf("failed to unmarshal sync payload: %v: %w", err, asynq.SkipRetry)
	}

	if err := payload.Validate(); err != nil {
		return fmt.Errorf("invalid sync payload: %v: %w", err, asynq.SkipRetry)
	}

	queueLatency := time.Since(payload.EnqueuedAt)

	h.log.WithFields(logrus.Fields{
		"target":        payload.TargetName,
		"queue_latency": queueLatency,
	}).Info("Processing sync task")

	result, err := h.engine.SyncByName(ctx, payload.TargetName)
	if err != nil {
		return err
	}

	h.log.WithFields(logrus.Fields{
		"target":       payload.TargetName,
		"run_id":       result.RunID,
		"mode":         result.Mode,
		"rows_written": result.RowsWritten,
		"duration":     result.Duration,
	}).Info("Sync task completed")

	return nil
}
