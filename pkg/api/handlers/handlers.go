// Package handlers implements the request handlers for the status API.
package handlers

import (
	"context"

	"github.com/gofiber/fiber/v3"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/byteberry/statsync/pkg/checkpoint"
	"github.com/byteberry/statsync/pkg/engine"
	"github.com/byteberry/statsync/pkg/targets"
	"github.com/byteberry/statsync/pkg/tasks"
)

// SyncQueue is the slice of the queue manager the API needs for manually
// triggered syncs and queue introspection
type SyncQueue interface {
	EnqueueSync(ctx context.Context, payload tasks.TaskPayload, opts ...asynq.Option) error
	IsTaskPendingOrRunning(task tasks.TaskPayload) (bool, error)
	GetQueueStats(queueName string) (*asynq.QueueInfo, error)
}

// Server holds the handler dependencies
type Server struct {
	catalog     *targets.Config
	titles      *targets.TitleEngine
	results     engine.ResultStore
	checkpoints checkpoint.Store
	queue       SyncQueue
	log         logrus.FieldLogger
}

// NewServer creates a new API server instance
func NewServer(
	catalog *targets.Config,
	titles *targets.TitleEngine,
	results engine.ResultStore,
	checkpoints checkpoint.Store,
	queue SyncQueue,
	log logrus.FieldLogger,
) *Server {
	return &Server{
		catalog:     catalog,
		titles:      titles,
		results:     results,
		checkpoints: checkpoints,
		queue:       queue,
		log:         log.WithField("component", "api.handlers"),
	}
}

// Register wires the handler routes onto a router group
func (s *Server) Register(router fiber.Router) {
	router.Get("/targets", s.ListTargets)
	router.Get("/targets/:metric/:org", s.GetTarget)
	router.Get("/targets/:metric/:org/checkpoint", s.GetCheckpoint)
	router.Post("/targets/:metric/:org/sync", s.TriggerSync)
	router.Get("/results", s.ListResults)
	router.Get("/queue", s.GetQueueStatus)
}

// ErrTargetNotFound is returned when no configured target matches the path
var ErrTargetNotFound = fiber.NewError(fiber.StatusNotFound, "target not found")

// ErrSyncAlreadyQueued is returned when a sync for the target is already pending or running
var ErrSyncAlreadyQueued = fiber.NewError(fiber.StatusConflict, "sync already queued for target")

// findTarget resolves the :metric/:org path parameters to a configured target
func (s *Server) findTarget(c fiber.Ctx) (*targets.Target, error) {
	name := c.Params("metric") + ":" + c.Params("org")

	target := s.catalog.Find(name)
	if target == nil {
		return nil, ErrTargetNotFound
	}

	return target, nil
}
