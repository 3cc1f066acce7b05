package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byteberry/statsync/internal/testutil"
	"github.com/byteberry/statsync/pkg/source"
	"github.com/byteberry/statsync/pkg/targets"
)

func testCatalog() *targets.Config {
	return &targets.Config{
		Targets: []targets.Target{
			{
				OrgID:      "123",
				OrgName:    "Acme",
				MetricType: "linkedin",
				Schedule:   "@every 6h",
				Streams:    []source.StreamSpec{{Name: "followers", Path: "/v2/followers"}},
			},
			{
				// Manual-only target, no schedule.
				OrgID:      "456",
				OrgName:    "Globex",
				MetricType: "facebook",
				Streams:    []source.StreamSpec{{Name: "fans", Path: "/v2/fans"}},
			},
		},
	}
}

func newTestService(t *testing.T) (*service, *fakeEnqueuer) {
	t.Helper()

	_, client := testutil.NewMiniredisClient(t)
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	queue := &fakeEnqueuer{}

	svc, err := NewService(log, &Config{CheckInterval: 10 * time.Millisecond}, client, queue, testCatalog())
	require.NoError(t, err)

	return svc.(*service), queue
}

func TestNewServiceRegistersOnlyScheduledTargets(t *testing.T) {
	svc, _ := newTestService(t)

	ticker := svc.ticker.(*tickerServiceImpl)
	require.Len(t, ticker.targets, 1)
	assert.Equal(t, "linkedin:123", ticker.targets[0].Name)
	assert.Equal(t, 6*time.Hour, ticker.targets[0].Interval)
}

func TestNewServiceRejectsBadSchedule(t *testing.T) {
	_, client := testutil.NewMiniredisClient(t)
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	catalog := testCatalog()
	catalog.Targets[0].Schedule = "every so often"

	_, err := NewService(log, &Config{CheckInterval: time.Second}, client, &fakeEnqueuer{}, catalog)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "linkedin:123")
}

func TestNewServiceRejectsBadConfig(t *testing.T) {
	_, client := testutil.NewMiniredisClient(t)
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	_, err := NewService(log, &Config{}, client, &fakeEnqueuer{}, testCatalog())
	require.ErrorIs(t, err, ErrCheckIntervalRequired)
}

func TestCleanupStaleTargets(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// One entry for a live target, one for a target since removed.
	require.NoError(t, svc.tracker.SetLastRun(ctx, "linkedin:123", time.Now()))
	require.NoError(t, svc.tracker.SetLastRun(ctx, "twitter:999", time.Now()))

	require.NoError(t, svc.cleanupStaleTargets(ctx))

	names, err := svc.tracker.GetAllTargets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"linkedin:123"}, names)
}

func TestServiceStartEnqueuesAndStops(t *testing.T) {
	svc, queue := newTestService(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, svc.Start(ctx))

	// The first tick fires the never-run scheduled target.
	require.Eventually(t, func() bool {
		return len(queue.payloads()) == 1
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, "linkedin:123", queue.payloads()[0].TargetName)

	require.NoError(t, svc.Stop())
}
