package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/byteberry/statsync/pkg/observability"
	"github.com/byteberry/statsync/pkg/tasks"
)

// SyncEnqueuer is the slice of the queue manager the scheduler needs
type SyncEnqueuer interface {
	EnqueueSync(ctx context.Context, payload tasks.TaskPayload, opts ...asynq.Option) error
}

// tickerService periodically checks target schedules and enqueues due syncs
type tickerService interface {
	// Start begins the ticker loop.
	// Blocks until context is canceled or Stop is called.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the ticker
	Stop() error
}

type tickerServiceImpl struct {
	log      logrus.FieldLogger
	tracker  scheduleTracker
	queue    SyncEnqueuer
	targets  []scheduledTarget
	interval time.Duration
	mu       sync.RWMutex // protects nextRun fields
	done     chan struct{}
	now      func() time.Time
}

// scheduledTarget is a target with a parsed schedule
type scheduledTarget struct {
	Name     string        // Target name, e.g. "linkedin:123"
	Schedule string        // Cron expression, e.g. "@every 6h" or "0 6 * * *"
	Interval time.Duration // Parsed interval from schedule
	nextRun  *time.Time    // Cached next run time to avoid Redis lookups
}

func newTickerService(
	log logrus.FieldLogger,
	tracker scheduleTracker,
	queue SyncEnqueuer,
	targets []scheduledTarget,
	checkInterval time.Duration,
) tickerService {
	return &tickerServiceImpl{
		log:      log.WithField("component", "ticker"),
		tracker:  tracker,
		queue:    queue,
		targets:  targets,
		interval: checkInterval,
		done:     make(chan struct{}),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (t *tickerServiceImpl) Start(ctx context.Context) error {
	t.log.WithField("targets", len(t.targets)).Info("Starting schedule ticker")

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.log.Info("Ticker context canceled, stopping")
			return ctx.Err()
		case <-t.done:
			t.log.Info("Ticker stopped via Stop()")
			return nil
		case <-ticker.C:
			t.checkSchedules(ctx)
		}
	}
}

func (t *tickerServiceImpl) checkSchedules(ctx context.Context) {
	now := t.now()

	for i := range t.targets {
		target := &t.targets[i]

		// Fast path: skip targets we already know aren't due, without a
		// Redis round trip.
		t.mu.RLock()
		cachedNextRun := target.nextRun
		t.mu.RUnlock()

		if cachedNextRun != nil && now.Before(*cachedNextRun) {
			continue
		}

		lastRun, err := t.tracker.GetLastRun(ctx, target.Name)
		if err != nil {
			t.log.WithError(err).
				WithField("target", target.Name).
				Error("Failed to read last run")

			continue
		}

		nextRun := lastRun.Add(target.Interval)
		if !lastRun.IsZero() && now.Before(nextRun) {
			t.mu.Lock()
			target.nextRun = &nextRun
			t.mu.Unlock()

			continue
		}

		if err := t.enqueueTarget(ctx, target.Name, now); err != nil {
			observability.ScheduledRunsTotal.WithLabelValues(target.Name, "failed").Inc()
			t.log.WithError(err).
				WithField("target", target.Name).
				Error("Failed to enqueue sync task")

			continue
		}

		if err := t.tracker.SetLastRun(ctx, target.Name, now); err != nil {
			t.log.WithError(err).
				WithField("target", target.Name).
				Error("Failed to update last run timestamp")
		}

		updatedNextRun := now.Add(target.Interval)

		t.mu.Lock()
		target.nextRun = &updatedNextRun
		t.mu.Unlock()
	}
}

func (t *tickerServiceImpl) enqueueTarget(ctx context.Context, name string, enqueuedAt time.Time) error {
	payload := tasks.TaskPayload{TargetName: name, EnqueuedAt: enqueuedAt}

	if err := t.queue.EnqueueSync(ctx, payload); err != nil {
		// A previous sync for this target is still queued or running.
		// Expected when processing is slower than the schedule.
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			observability.ScheduledRunsTotal.WithLabelValues(name, "skipped").Inc()
			t.log.WithField("target", name).Debug("Sync already queued, skipping")

			return nil
		}

		return fmt.Errorf("failed to enqueue sync: %w", err)
	}

	observability.ScheduledRunsTotal.WithLabelValues(name, "enqueued").Inc()

	t.log.WithFields(logrus.Fields{
		"target":      name,
		"enqueued_at": enqueuedAt,
	}).Info("Enqueued scheduled sync")

	return nil
}

func (t *tickerServiceImpl) Stop() error {
	t.log.Info("Stopping schedule ticker")
	close(t.done)

	return nil
}

// parseScheduleInterval converts a cron schedule string to a duration.
// Supports the @every form directly and derives the interval between two
// consecutive fire times for standard five-field cron expressions.
func parseScheduleInterval(schedule string) (time.Duration, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

	sched, err := parser.Parse(schedule)
	if err != nil {
		return 0, fmt.Errorf("invalid schedule format: %w", err)
	}

	if strings.HasPrefix(schedule, "@every ") {
		duration, err := time.ParseDuration(strings.TrimPrefix(schedule, "@every "))
		if err != nil {
			return 0, fmt.Errorf("failed to parse @every duration: %w", err)
		}

		return duration, nil
	}

	now := time.Now()
	next1 := sched.Next(now)
	next2 := sched.Next(next1)

	return next2.Sub(next1), nil
}

// Verify interface compliance at compile time
var _ tickerService = (*tickerServiceImpl)(nil)
