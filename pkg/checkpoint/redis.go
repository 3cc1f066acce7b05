package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/byteberry/statsync/pkg/metrics"
	sredis "github.com/byteberry/statsync/pkg/redis"
)

// RedisStore keeps checkpoints in Redis as JSON arrays of date strings
type RedisStore struct {
	log    logrus.FieldLogger
	client redis.UniversalClient
	cfg    *sredis.Config
}

// NewRedisStore creates a Redis-backed checkpoint store
func NewRedisStore(log logrus.FieldLogger, client redis.UniversalClient, cfg *sredis.Config) *RedisStore {
	return &RedisStore{
		log:    log.WithField("component", "checkpoint"),
		client: client,
		cfg:    cfg,
	}
}

// Load implements Store
func (s *RedisStore) Load(ctx context.Context, key Key) (map[metrics.Date]struct{}, error) {
	raw, err := s.client.Get(ctx, s.cfg.PrefixKey(key.String())).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return map[metrics.Date]struct{}{}, nil
		}

		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	var dates []string
	if err := json.Unmarshal([]byte(raw), &dates); err != nil {
		// An unreadable checkpoint is treated as absent; the worst case is
		// rewriting rows that were already correct.
		s.log.WithError(err).WithField("key", key.String()).Warn("Discarding corrupt checkpoint")

		return map[metrics.Date]struct{}{}, nil
	}

	set := make(map[metrics.Date]struct{}, len(dates))

	for _, d := range dates {
		date, err := metrics.ParseDate(d)
		if err != nil {
			s.log.WithField("date", d).Warn("Skipping unparsable checkpoint date")

			continue
		}

		set[date] = struct{}{}
	}

	return set, nil
}

// Save implements Store, merging with whatever is already recorded
func (s *RedisStore) Save(ctx context.Context, key Key, dates []metrics.Date) error {
	existing, err := s.Load(ctx, key)
	if err != nil {
		return err
	}

	for _, d := range dates {
		existing[d] = struct{}{}
	}

	merged := make([]string, 0, len(existing))
	for d := range existing {
		merged = append(merged, d.String())
	}

	sort.Strings(merged)

	payload, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	if err := s.client.Set(ctx, s.cfg.PrefixKey(key.String()), payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	return nil
}

// Clear implements Store
func (s *RedisStore) Clear(ctx context.Context, key Key) error {
	if err := s.client.Del(ctx, s.cfg.PrefixKey(key.String())).Err(); err != nil {
		return fmt.Errorf("failed to clear checkpoint: %w", err)
	}

	return nil
}
