package engine

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byteberry/statsync/internal/testutil"
	sredis "github.com/byteberry/statsync/pkg/redis"
)

func TestRedisResultStoreRoundTrip(t *testing.T) {
	_, client := testutil.NewMiniredisClient(t)

	cfg := &sredis.Config{Address: "unused", Prefix: "statsync"}
	store := NewRedisResultStore(logrus.New(), client, cfg, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &SyncResult{
		RunID:       "run-2",
		Target:      "linkedin:456",
		Mode:        "full",
		RowsWritten: 400,
	}))
	require.NoError(t, store.Save(ctx, &SyncResult{
		RunID:       "run-1",
		Target:      "linkedin:123",
		Mode:        "incremental",
		RowsWritten: 2,
		RowsUpdated: 1,
	}))

	results, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "linkedin:123", results[0].Target)
	assert.Equal(t, "incremental", results[0].Mode)
	assert.Equal(t, "linkedin:456", results[1].Target)
	assert.Equal(t, 400, results[1].RowsWritten)
}

func TestRedisResultStoreOverwritesPerTarget(t *testing.T) {
	_, client := testutil.NewMiniredisClient(t)

	cfg := &sredis.Config{Address: "unused", Prefix: "statsync"}
	store := NewRedisResultStore(logrus.New(), client, cfg, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &SyncResult{RunID: "old", Target: "linkedin:123"}))
	require.NoError(t, store.Save(ctx, &SyncResult{RunID: "new", Target: "linkedin:123"}))

	results, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "new", results[0].RunID)
}
