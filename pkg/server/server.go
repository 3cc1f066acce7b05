package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	//nolint:gosec // only exposed if pprofAddr config is set
	_ "net/http/pprof"

	r "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/byteberry/statsync/pkg/api"
	"github.com/byteberry/statsync/pkg/checkpoint"
	"github.com/byteberry/statsync/pkg/engine"
	"github.com/byteberry/statsync/pkg/gridstore"
	"github.com/byteberry/statsync/pkg/observability"
	"github.com/byteberry/statsync/pkg/planner"
	"github.com/byteberry/statsync/pkg/quota"
	"github.com/byteberry/statsync/pkg/reconcile"
	"github.com/byteberry/statsync/pkg/redis"
	"github.com/byteberry/statsync/pkg/retry"
	"github.com/byteberry/statsync/pkg/scheduler"
	"github.com/byteberry/statsync/pkg/source"
	"github.com/byteberry/statsync/pkg/targets"
	"github.com/byteberry/statsync/pkg/tasks"
	"github.com/byteberry/statsync/pkg/worker"
	"github.com/byteberry/statsync/pkg/writer"
)

// Server composes the sync services and manages their lifecycle
type Server struct {
	log    logrus.FieldLogger
	config *Config

	redis *r.Client

	source source.ClientInterface
	store  gridstore.ClientInterface
	queue  *tasks.QueueManager

	engine    engine.Service
	scheduler scheduler.Service
	worker    worker.Service
	api       api.Service

	pprofServer  *http.Server
	healthServer *http.Server
}

// NewServer creates a new server instance with all services wired
func NewServer(_ context.Context, log logrus.FieldLogger, config *Config) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	redisClient, err := redis.New(config.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}

	sourceClient, err := source.NewClient(log, config.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to create source client: %w", err)
	}

	storeClient, err := gridstore.NewClient(log, config.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to create store client: %w", err)
	}

	sourceExec := retry.NewExecutor(log, &config.SourceRetry,
		quota.NewGovernor(log, quota.NewWindow(&config.SourceQuota)), "source")
	storeExec := retry.NewExecutor(log, &config.StoreRetry,
		quota.NewGovernor(log, quota.NewWindow(&config.StoreQuota)), "store")

	plan, err := planner.New(log, &config.Planner)
	if err != nil {
		return nil, fmt.Errorf("failed to create planner: %w", err)
	}

	reconciler, err := reconcile.New(log, &config.Reconcile, storeClient, storeExec)
	if err != nil {
		return nil, fmt.Errorf("failed to create reconciler: %w", err)
	}

	checkpoints := checkpoint.NewRedisStore(log, redisClient, config.Redis)

	rowWriter, err := writer.New(log, &config.Writer, storeClient, storeExec, checkpoints)
	if err != nil {
		return nil, fmt.Errorf("failed to create writer: %w", err)
	}

	titles := targets.NewTitleEngine()
	results := engine.NewRedisResultStore(log, redisClient, config.Redis, config.Engine.ResultTTL)

	eng, err := engine.NewService(log, &config.Engine, engine.Dependencies{
		Catalog:     &config.Targets,
		Titles:      titles,
		Source:      sourceClient,
		Store:       storeClient,
		SourceExec:  sourceExec,
		StoreExec:   storeExec,
		Planner:     plan,
		Reconciler:  reconciler,
		Writer:      rowWriter,
		Checkpoints: checkpoints,
		Results:     results,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	queue := tasks.NewQueueManager(redis.NewAsynqRedisOptions(config.Redis.Options()))

	sched, err := scheduler.NewService(log, &config.Scheduler, redisClient, queue, &config.Targets)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	wrk, err := worker.NewService(log, &config.Worker, eng, config.Redis.Options())
	if err != nil {
		return nil, fmt.Errorf("failed to create worker: %w", err)
	}

	apiService := api.NewService(&config.API, &config.Targets, titles, results, checkpoints, queue, log)

	return &Server{
		log:       log,
		config:    config,
		redis:     redisClient,
		source:    sourceClient,
		store:     storeClient,
		queue:     queue,
		engine:    eng,
		scheduler: sched,
		worker:    wrk,
		api:       apiService,
	}, nil
}

// RunOnce performs a single sync pass and releases all resources.
// When targetName is empty every cataloged target is synced.
func (s *Server) RunOnce(ctx context.Context, targetName string) (*engine.RunReport, error) {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := s.source.Start(); err != nil {
		return nil, fmt.Errorf("failed to start source client: %w", err)
	}

	if err := s.store.Start(); err != nil {
		return nil, fmt.Errorf("failed to start store client: %w", err)
	}

	defer func() {
		if err := s.source.Stop(); err != nil {
			s.log.WithError(err).Error("failed to stop source client")
		}

		if err := s.store.Stop(); err != nil {
			s.log.WithError(err).Error("failed to stop store client")
		}

		if err := s.queue.Close(); err != nil {
			s.log.WithError(err).Error("failed to close queue manager")
		}

		if err := s.redis.Close(); err != nil {
			s.log.WithError(err).Error("failed to close redis")
		}
	}()

	if targetName != "" {
		result, err := s.engine.SyncByName(ctx, targetName)
		if err != nil {
			return nil, err
		}

		return &engine.RunReport{
			RunID:     result.RunID,
			Results:   []engine.SyncResult{*result},
			Succeeded: 1,
			Duration:  result.Duration,
		}, nil
	}

	return s.engine.RunAll(ctx)
}

// Start starts the server and all its components.
// Blocks until the context is canceled or a termination signal arrives.
func (s *Server) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := s.source.Start(); err != nil {
		return fmt.Errorf("failed to start source client: %w", err)
	}

	if err := s.store.Start(); err != nil {
		return fmt.Errorf("failed to start store client: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	// Start metrics server
	g.Go(func() error {
		observability.StartMetricsServer(s.config.MetricsAddr)
		<-ctx.Done()

		return nil
	})

	// Start pprof server if configured
	if s.config.PProfAddr != nil {
		g.Go(func() error {
			if err := s.startPProf(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}

			<-ctx.Done()

			return nil
		})
	}

	// Start health check server if configured
	if s.config.HealthCheckAddr != nil {
		g.Go(func() error {
			if err := s.startHealthCheck(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}

			<-ctx.Done()

			return nil
		})
	}

	if err := s.api.Start(ctx); err != nil {
		return fmt.Errorf("failed to start API service: %w", err)
	}

	if err := s.worker.Start(ctx); err != nil {
		return fmt.Errorf("failed to start worker service: %w", err)
	}

	if err := s.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler service: %w", err)
	}

	// Wait for shutdown signal
	g.Go(func() error {
		<-ctx.Done()

		// Use a fresh context for cleanup since the current one is canceled
		return s.stopAll(context.Background())
	})

	return g.Wait()
}

func (s *Server) stopAll(ctx context.Context) error {
	cleanupCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.log.Info("Starting graceful shutdown...")

	// Stop producers before consumers so queued work drains
	if err := s.scheduler.Stop(); err != nil {
		s.log.WithError(err).Error("failed to stop scheduler")
	}

	if err := s.worker.Stop(); err != nil {
		s.log.WithError(err).Error("failed to stop worker")
	}

	if err := s.api.Stop(); err != nil {
		s.log.WithError(err).Error("failed to stop API service")
	}

	if err := s.queue.Close(); err != nil {
		s.log.WithError(err).Error("failed to close queue manager")
	}

	if err := s.source.Stop(); err != nil {
		s.log.WithError(err).Error("failed to stop source client")
	}

	if err := s.store.Stop(); err != nil {
		s.log.WithError(err).Error("failed to stop store client")
	}

	if s.redis != nil {
		s.log.Info("Closing Redis connection...")

		if err := s.redis.Close(); err != nil {
			s.log.WithError(err).Error("failed to close redis")
		}
	}

	if s.pprofServer != nil {
		if err := s.pprofServer.Shutdown(cleanupCtx); err != nil {
			s.log.WithError(err).Error("failed to shutdown pprof server")
		}
	}

	if s.healthServer != nil {
		if err := s.healthServer.Shutdown(cleanupCtx); err != nil {
			s.log.WithError(err).Error("failed to shutdown health server")
		}
	}

	if err := observability.StopMetricsServer(cleanupCtx); err != nil {
		s.log.WithError(err).Error("failed to stop metrics server")
	}

	s.log.Info("Server stopped gracefully")

	return nil
}

func (s *Server) startPProf() error {
	s.log.WithField("addr", *s.config.PProfAddr).Info("Starting pprof server")

	s.pprofServer = &http.Server{
		Addr:              *s.config.PProfAddr,
		ReadHeaderTimeout: 120 * time.Second,
	}

	return s.pprofServer.ListenAndServe()
}

func (s *Server) startHealthCheck() error {
	s.log.WithField("addr", *s.config.HealthCheckAddr).Info("Starting healthcheck server")

	s.healthServer = &http.Server{
		Addr:              *s.config.HealthCheckAddr,
		ReadHeaderTimeout: 120 * time.Second,
	}

	s.healthServer.Handler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return s.healthServer.ListenAndServe()
}
