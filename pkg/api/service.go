package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/sirupsen/logrus"

	"github.com/byteberry/statsync/pkg/api/handlers"
	"github.com/byteberry/statsync/pkg/checkpoint"
	"github.com/byteberry/statsync/pkg/engine"
	"github.com/byteberry/statsync/pkg/targets"
)

// Service defines the API service interface
type Service interface {
	Start(ctx context.Context) error
	Stop() error
}

type service struct {
	app    *fiber.App
	server *http.Server
	config *Config

	catalog     *targets.Config
	titles      *targets.TitleEngine
	results     engine.ResultStore
	checkpoints checkpoint.Store
	queue       handlers.SyncQueue

	log logrus.FieldLogger
}

// NewService creates a new status API service
func NewService(
	cfg *Config,
	catalog *targets.Config,
	titles *targets.TitleEngine,
	results engine.ResultStore,
	checkpoints checkpoint.Store,
	queue handlers.SyncQueue,
	log logrus.FieldLogger,
) Service {
	return &service{
		config:      cfg,
		catalog:     catalog,
		titles:      titles,
		results:     results,
		checkpoints: checkpoints,
		queue:       queue,
		log:         log.WithField("service", "api"),
	}
}

// Start initializes and starts the API server
func (s *service) Start(_ context.Context) error {
	if !s.config.Enabled {
		s.log.Info("API service is disabled")
		return nil
	}

	s.app = fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
		AppName:      "statsync API",
	})

	setupMiddleware(s.app)

	server := handlers.NewServer(s.catalog, s.titles, s.results, s.checkpoints, s.queue, s.log)
	server.Register(s.app.Group("/api/v1"))

	s.server = &http.Server{
		Addr:              s.config.Addr,
		Handler:           adaptor.FiberApp(s.app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		s.log.WithField("addr", s.config.Addr).Info("Starting API server")

		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("Server failed to start")
		}
	}()

	return nil
}

// Stop gracefully shuts down the API server
func (s *service) Stop() error {
	if s.server == nil {
		return nil
	}

	s.log.Info("Stopping API server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}
