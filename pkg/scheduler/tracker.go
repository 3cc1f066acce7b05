package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	scheduleKeyPrefix = "statsync:scheduler:target:" // Redis key prefix
	// Full key pattern: statsync:scheduler:target:{targetName}
	// Example: statsync:scheduler:target:linkedin:123
)

// scheduleTracker manages last-run timestamps for scheduled targets in Redis
type scheduleTracker interface {
	// GetLastRun retrieves the last enqueue timestamp for a target.
	// Returns zero time if the target has never run.
	GetLastRun(ctx context.Context, targetName string) (time.Time, error)

	// SetLastRun updates the last enqueue timestamp for a target.
	// Persists to Redis with no TTL.
	SetLastRun(ctx context.Context, targetName string, timestamp time.Time) error

	// DeleteLastRun removes the timestamp for a target.
	// Used for cleanup when targets are removed from config.
	DeleteLastRun(ctx context.Context, targetName string) error

	// GetAllTargets returns all target names currently tracked in Redis
	GetAllTargets(ctx context.Context) ([]string, error)
}

type redisScheduleTracker struct {
	log   logrus.FieldLogger
	redis *redis.Client
}

// newScheduleTracker creates a Redis-backed schedule tracker.
// The tracker does not own the client; the caller closes it.
func newScheduleTracker(log logrus.FieldLogger, redisClient *redis.Client) scheduleTracker {
	return &redisScheduleTracker{
		log:   log.WithField("component", "schedule_tracker"),
		redis: redisClient,
	}
}

func (r *redisScheduleTracker) GetLastRun(ctx context.Context, targetName string) (time.Time, error) {
	key := scheduleKeyPrefix + targetName

	val, err := r.redis.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Key doesn't exist, return zero time (not an error)
			r.log.WithField("target", targetName).Debug("No last run found for target")
			return time.Time{}, nil
		}

		return time.Time{}, fmt.Errorf("failed to get last run for target %s: %w", targetName, err)
	}

	timestamp, err := time.Parse(time.RFC3339, val)
	if err != nil {
		r.log.WithError(err).
			WithFields(logrus.Fields{
				"target":    targetName,
				"raw_value": val,
			}).
			Error("Failed to parse last run timestamp")

		return time.Time{}, fmt.Errorf("failed to parse timestamp for target %s: %w", targetName, err)
	}

	return timestamp, nil
}

func (r *redisScheduleTracker) SetLastRun(ctx context.Context, targetName string, timestamp time.Time) error {
	key := scheduleKeyPrefix + targetName
	val := timestamp.Format(time.RFC3339)

	if err := r.redis.Set(ctx, key, val, 0).Err(); err != nil {
		return fmt.Errorf("failed to set last run for target %s: %w", targetName, err)
	}

	r.log.WithFields(logrus.Fields{
		"target":    targetName,
		"timestamp": timestamp,
	}).Debug("Updated last run for target")

	return nil
}

func (r *redisScheduleTracker) DeleteLastRun(ctx context.Context, targetName string) error {
	key := scheduleKeyPrefix + targetName

	if err := r.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete last run for target %s: %w", targetName, err)
	}

	r.log.WithField("target", targetName).Debug("Deleted last run for target")

	return nil
}

func (r *redisScheduleTracker) GetAllTargets(ctx context.Context) ([]string, error) {
	pattern := scheduleKeyPrefix + "*"

	// Use SCAN instead of Keys() to avoid blocking Redis. The count hint
	// is keys per iteration, not a total limit.
	const scanBatchSize = 100

	var names []string

	iter := r.redis.Scan(ctx, 0, pattern, scanBatchSize).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		names = append(names, key[len(scheduleKeyPrefix):])
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan tracked targets: %w", err)
	}

	return names, nil
}

// Verify interface compliance at compile time
var _ scheduleTracker = (*redisScheduleTracker)(nil)
