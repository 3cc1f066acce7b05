package checkpoint

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byteberry/statsync/internal/testutil"
	"github.com/byteberry/statsync/pkg/metrics"
	sredis "github.com/byteberry/statsync/pkg/redis"
)

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()

	_, client := testutil.NewMiniredisClient(t)

	cfg := &sredis.Config{Address: "unused", Prefix: "statsync"}

	return NewRedisStore(logrus.New(), client, cfg)
}

func mustDate(t *testing.T, s string) metrics.Date {
	t.Helper()

	d, err := metrics.ParseDate(s)
	require.NoError(t, err)

	return d
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()
	key := Key{OrgID: "123", MetricType: "followers"}

	// No checkpoint yet
	dates, err := store.Load(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, dates)

	require.NoError(t, store.Save(ctx, key, []metrics.Date{
		mustDate(t, "2024-03-01"),
		mustDate(t, "2024-03-02"),
	}))

	dates, err = store.Load(ctx, key)
	require.NoError(t, err)
	assert.Len(t, dates, 2)
	assert.Contains(t, dates, mustDate(t, "2024-03-01"))

	require.NoError(t, store.Clear(ctx, key))

	dates, err = store.Load(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, dates)
}

func TestRedisStoreSaveMerges(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()
	key := Key{OrgID: "123", MetricType: "followers"}

	require.NoError(t, store.Save(ctx, key, []metrics.Date{mustDate(t, "2024-03-01")}))
	require.NoError(t, store.Save(ctx, key, []metrics.Date{
		mustDate(t, "2024-03-01"),
		mustDate(t, "2024-03-02"),
	}))

	dates, err := store.Load(ctx, key)
	require.NoError(t, err)
	assert.Len(t, dates, 2)
}

func TestRedisStoreKeysAreIsolated(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, Key{OrgID: "123", MetricType: "followers"},
		[]metrics.Date{mustDate(t, "2024-03-01")}))

	dates, err := store.Load(ctx, Key{OrgID: "456", MetricType: "followers"})
	require.NoError(t, err)
	assert.Empty(t, dates)
}

func TestRedisStoreCorruptPayloadDiscarded(t *testing.T) {
	mr, client := testutil.NewMiniredisClient(t)

	cfg := &sredis.Config{Address: "unused", Prefix: "statsync"}
	store := NewRedisStore(logrus.New(), client, cfg)
	key := Key{OrgID: "123", MetricType: "followers"}

	require.NoError(t, mr.Set(cfg.PrefixKey(key.String()), "{not json"))

	dates, err := store.Load(context.Background(), key)
	require.NoError(t, err)
	assert.Empty(t, dates)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	key := Key{OrgID: "org", MetricType: "shares"}

	require.NoError(t, store.Save(ctx, key, []metrics.Date{mustDate(t, "2024-01-05")}))

	dates, err := store.Load(ctx, key)
	require.NoError(t, err)
	assert.Len(t, dates, 1)

	// Load hands back a copy; mutating it must not touch the store.
	dates[mustDate(t, "2024-01-06")] = struct{}{}

	again, err := store.Load(ctx, key)
	require.NoError(t, err)
	assert.Len(t, again, 1)

	require.NoError(t, store.Clear(ctx, key))

	empty, err := store.Load(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
