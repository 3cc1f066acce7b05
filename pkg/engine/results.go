package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	sredis "github.com/byteberry/statsync/pkg/redis"
)

// SyncResult records the outcome of one target sync
type SyncResult struct {
	RunID       string        `json:"runId"`
	Target      string        `json:"target"`
	Tab         string        `json:"tab"`
	Mode        string        `json:"mode"`
	RowsWritten int           `json:"rowsWritten"`
	RowsUpdated int           `json:"rowsUpdated"`
	Resumed     bool          `json:"resumed"`
	Warnings    []string      `json:"warnings,omitempty"`
	Error       string        `json:"error,omitempty"`
	StartedAt   time.Time     `json:"startedAt"`
	Duration    time.Duration `json:"duration"`
}

// ResultStore caches the latest sync result per target for the status API
type ResultStore interface {
	Save(ctx context.Context, result *SyncResult) error
	List(ctx context.Context) ([]SyncResult, error)
}

// RedisResultStore keeps results in Redis, one key per target, with a TTL
type RedisResultStore struct {
	log    logrus.FieldLogger
	client redis.UniversalClient
	cfg    *sredis.Config
	ttl    time.Duration
}

// NewRedisResultStore creates a Redis-backed result store
func NewRedisResultStore(log logrus.FieldLogger, client redis.UniversalClient, cfg *sredis.Config, ttl time.Duration) *RedisResultStore {
	return &RedisResultStore{
		log:    log.WithField("component", "result_store"),
		client: client,
		cfg:    cfg,
		ttl:    ttl,
	}
}

// Save implements ResultStore
func (s *RedisResultStore) Save(ctx context.Context, result *SyncResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	key := s.cfg.PrefixKey("result:" + result.Target)

	if err := s.client.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}

	return nil
}

// List implements ResultStore, returning results sorted by target name
func (s *RedisResultStore) List(ctx context.Context) ([]SyncResult, error) {
	pattern := s.cfg.PrefixKey("result:*")

	var results []SyncResult

	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		raw, err := s.client.Get(ctx, iter.Val()).Result()
		if err != nil {
			// Key may have expired between SCAN and GET
			continue
		}

		var result SyncResult
		if err := json.Unmarshal([]byte(raw), &result); err != nil {
			s.log.WithError(err).WithField("key", iter.Val()).Warn("Skipping unreadable result")

			continue
		}

		results = append(results, result)
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan results: %w", err)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Target < results[j].Target
	})

	return results, nil
}

// MemoryResultStore is an in-process ResultStore for tests and one-shot runs
type MemoryResultStore struct {
	results map[string]SyncResult
}

// NewMemoryResultStore creates an empty in-memory result store
func NewMemoryResultStore() *MemoryResultStore {
	return &MemoryResultStore{results: make(map[string]SyncResult)}
}

// Save implements ResultStore
func (s *MemoryResultStore) Save(_ context.Context, result *SyncResult) error {
	s.results[result.Target] = *result
	return nil
}

// List implements ResultStore
func (s *MemoryResultStore) List(_ context.Context) ([]SyncResult, error) {
	out := make([]SyncResult, 0, len(s.results))
	for _, r := range s.results {
		out = append(out, r)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Target < out[j].Target })

	return out, nil
}
