package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byteberry/statsync/pkg/tasks"
)

// fakeTracker keeps last-run timestamps in memory
type fakeTracker struct {
	mu       sync.Mutex
	lastRuns map[string]time.Time
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{lastRuns: make(map[string]time.Time)}
}

func (f *fakeTracker) GetLastRun(_ context.Context, name string) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.lastRuns[name], nil
}

func (f *fakeTracker) SetLastRun(_ context.Context, name string, ts time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastRuns[name] = ts

	return nil
}

func (f *fakeTracker) DeleteLastRun(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.lastRuns, name)

	return nil
}

func (f *fakeTracker) GetAllTargets(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	names := make([]string, 0, len(f.lastRuns))
	for name := range f.lastRuns {
		names = append(names, name)
	}

	return names, nil
}

// fakeEnqueuer records enqueued payloads and can simulate ID conflicts
type fakeEnqueuer struct {
	mu       sync.Mutex
	enqueued []tasks.TaskPayload
	err      error
}

func (f *fakeEnqueuer) EnqueueSync(_ context.Context, payload tasks.TaskPayload, _ ...asynq.Option) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}

	f.enqueued = append(f.enqueued, payload)

	return nil
}

func (f *fakeEnqueuer) payloads() []tasks.TaskPayload {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]tasks.TaskPayload(nil), f.enqueued...)
}

func newTestTicker(tracker scheduleTracker, queue SyncEnqueuer, targets []scheduledTarget, now time.Time) *tickerServiceImpl {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	t := newTickerService(log, tracker, queue, targets, time.Second).(*tickerServiceImpl)
	t.now = func() time.Time { return now }

	return t
}

func TestCheckSchedulesEnqueuesDueTarget(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	tracker := newFakeTracker()
	queue := &fakeEnqueuer{}

	ticker := newTestTicker(tracker, queue, []scheduledTarget{
		{Name: "linkedin:123", Schedule: "@every 6h", Interval: 6 * time.Hour},
	}, now)

	// Never run before, so the first tick fires immediately.
	ticker.checkSchedules(context.Background())

	payloads := queue.payloads()
	require.Len(t, payloads, 1)
	assert.Equal(t, "linkedin:123", payloads[0].TargetName)
	assert.True(t, payloads[0].EnqueuedAt.Equal(now))

	lastRun, err := tracker.GetLastRun(context.Background(), "linkedin:123")
	require.NoError(t, err)
	assert.True(t, lastRun.Equal(now))
}

func TestCheckSchedulesSkipsTargetNotDue(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	tracker := newFakeTracker()
	queue := &fakeEnqueuer{}

	// Ran one hour ago with a 6h interval.
	require.NoError(t, tracker.SetLastRun(context.Background(), "linkedin:123", now.Add(-time.Hour)))

	ticker := newTestTicker(tracker, queue, []scheduledTarget{
		{Name: "linkedin:123", Schedule: "@every 6h", Interval: 6 * time.Hour},
	}, now)

	ticker.checkSchedules(context.Background())
	assert.Empty(t, queue.payloads())

	// The not-due result is cached so the next tick skips Redis entirely.
	require.NotNil(t, ticker.targets[0].nextRun)
	assert.True(t, ticker.targets[0].nextRun.Equal(now.Add(5*time.Hour)))
}

func TestCheckSchedulesFiresAfterInterval(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	tracker := newFakeTracker()
	queue := &fakeEnqueuer{}

	require.NoError(t, tracker.SetLastRun(context.Background(), "linkedin:123", now.Add(-7*time.Hour)))

	ticker := newTestTicker(tracker, queue, []scheduledTarget{
		{Name: "linkedin:123", Schedule: "@every 6h", Interval: 6 * time.Hour},
	}, now)

	ticker.checkSchedules(context.Background())
	require.Len(t, queue.payloads(), 1)
}

func TestCheckSchedulesTaskConflictIsNotAnError(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	tracker := newFakeTracker()
	queue := &fakeEnqueuer{err: asynq.ErrTaskIDConflict}

	ticker := newTestTicker(tracker, queue, []scheduledTarget{
		{Name: "linkedin:123", Schedule: "@every 6h", Interval: 6 * time.Hour},
	}, now)

	ticker.checkSchedules(context.Background())

	// The conflict still advances last run; the queued task covers this slot.
	lastRun, err := tracker.GetLastRun(context.Background(), "linkedin:123")
	require.NoError(t, err)
	assert.True(t, lastRun.Equal(now))
}

func TestParseScheduleInterval(t *testing.T) {
	tests := []struct {
		name     string
		schedule string
		want     time.Duration
		wantErr  bool
	}{
		{name: "every seconds", schedule: "@every 30s", want: 30 * time.Second},
		{name: "every hours", schedule: "@every 6h", want: 6 * time.Hour},
		{name: "hourly cron", schedule: "0 * * * *", want: time.Hour},
		{name: "daily cron", schedule: "30 6 * * *", want: 24 * time.Hour},
		{name: "garbage", schedule: "whenever", wantErr: true},
		{name: "empty", schedule: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseScheduleInterval(tt.schedule)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
