package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/byteberry/statsync/pkg/targets"
)

// Service defines the public interface for the scheduler
type Service interface {
	// Start registers target schedules and begins the ticker loop
	Start(ctx context.Context) error

	// Stop gracefully shuts down the scheduler service
	Stop() error
}

// service drives scheduled syncs for the configured targets
type service struct {
	log logrus.FieldLogger
	cfg *Config

	tracker scheduleTracker
	ticker  tickerService
	catalog *targets.Config

	done chan struct{}
	wg   sync.WaitGroup
}

// NewService creates a new scheduler service.
// Targets without a schedule are left to manual runs.
func NewService(
	log logrus.FieldLogger,
	cfg *Config,
	redisClient *redis.Client,
	queue SyncEnqueuer,
	catalog *targets.Config,
) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	scheduled, err := buildScheduledTargets(catalog)
	if err != nil {
		return nil, err
	}

	slog := log.WithField("component", "scheduler")
	tracker := newScheduleTracker(slog, redisClient)

	return &service{
		log:     slog,
		cfg:     cfg,
		tracker: tracker,
		ticker:  newTickerService(slog, tracker, queue, scheduled, cfg.CheckInterval),
		catalog: catalog,
		done:    make(chan struct{}),
	}, nil
}

func (s *service) Start(ctx context.Context) error {
	s.log.Info("Starting scheduler service")

	if err := s.cleanupStaleTargets(ctx); err != nil {
		// Stale keys are harmless; the scheduler still runs
		s.log.WithError(err).Warn("Failed to clean up stale schedule entries")
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		if err := s.ticker.Start(ctx); err != nil && ctx.Err() == nil {
			s.log.WithError(err).Error("Ticker exited unexpectedly")
		}
	}()

	return nil
}

func (s *service) Stop() error {
	s.log.Info("Stopping scheduler service")

	if err := s.ticker.Stop(); err != nil {
		return err
	}

	s.wg.Wait()

	return nil
}

// cleanupStaleTargets removes last-run entries for targets that are no
// longer in the configuration.
func (s *service) cleanupStaleTargets(ctx context.Context) error {
	tracked, err := s.tracker.GetAllTargets(ctx)
	if err != nil {
		return err
	}

	for _, name := range tracked {
		if s.catalog.Find(name) != nil {
			continue
		}

		if err := s.tracker.DeleteLastRun(ctx, name); err != nil {
			s.log.WithError(err).
				WithField("target", name).
				Warn("Failed to delete stale schedule entry")

			continue
		}

		s.log.WithField("target", name).Info("Removed schedule entry for dropped target")
	}

	return nil
}

// buildScheduledTargets parses each configured schedule up front so bad
// cron expressions fail at startup, not on a tick.
func buildScheduledTargets(catalog *targets.Config) ([]scheduledTarget, error) {
	var scheduled []scheduledTarget

	for i := range catalog.Targets {
		t := &catalog.Targets[i]
		if t.Schedule == "" {
			continue
		}

		interval, err := parseScheduleInterval(t.Schedule)
		if err != nil {
			return nil, fmt.Errorf("target %s: %w", t.Name(), err)
		}

		scheduled = append(scheduled, scheduledTarget{
			Name:     t.Name(),
			Schedule: t.Schedule,
			Interval: interval,
		})
	}

	return scheduled, nil
}
