package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byteberry/statsync/pkg/quota"
)

func newTestExecutor(t *testing.T, cfg *Config) (*Executor, *[]time.Duration) {
	t.Helper()

	window := quota.NewWindow(&quota.Config{
		WindowLimit:     1000,
		WindowDuration:  time.Minute,
		MinDelay:        time.Second,
		MinDelayFloor:   500 * time.Millisecond,
		MinDelayCeiling: time.Minute,
	})

	noSleep := func(_ context.Context, _ time.Duration) error { return nil }
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	gov := quota.NewGovernor(logrus.New(), window).WithClock(
		func() time.Time { return now },
		noSleep,
	)

	var waits []time.Duration
	exec := NewExecutor(logrus.New(), cfg, gov, "test").WithClock(
		func(_ context.Context, d time.Duration) error {
			waits = append(waits, d)
			return nil
		},
		func() float64 { return 0.5 }, // jitter factor fixed at 1.0x
	)

	return exec, &waits
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"nil", nil, ClassNone},
		{"quota", fmt.Errorf("write: %w", ErrQuotaExceeded), ClassQuota},
		{"server", fmt.Errorf("read: %w", ErrServerError), ClassTransient},
		{"unavailable", fmt.Errorf("read: %w", ErrUnavailable), ClassUnavailable},
		{"permanent", fmt.Errorf("bad request: %w", ErrPermanent), ClassPermanent},
		{"network", &net.DNSError{Err: "timeout", IsTimeout: true}, ClassTransient},
		{"unknown", errors.New("something else"), ClassPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestExecutorSucceedsAfterTransientFailures(t *testing.T) {
	exec, _ := newTestExecutor(t, &Config{
		MaxRetries:          5,
		BaseDelay:           time.Second,
		TransientDelayCap:   time.Minute,
		QuotaDelayCap:       time.Minute,
		UnavailableDelayCap: time.Minute,
	})

	attempts := 0
	err := exec.Do(context.Background(), "fetch", func(_ context.Context) error {
		attempts++
		if attempts <= 3 {
			return fmt.Errorf("attempt %d: %w", attempts, ErrServerError)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 4, attempts)
}

func TestExecutorExhaustsRetries(t *testing.T) {
	exec, _ := newTestExecutor(t, &Config{
		MaxRetries:          3,
		BaseDelay:           time.Second,
		TransientDelayCap:   time.Minute,
		QuotaDelayCap:       time.Minute,
		UnavailableDelayCap: time.Minute,
	})

	attempts := 0
	err := exec.Do(context.Background(), "fetch", func(_ context.Context) error {
		attempts++
		return fmt.Errorf("boom: %w", ErrServerError)
	})

	require.ErrorIs(t, err, ErrRetriesExhausted)
	require.ErrorIs(t, err, ErrServerError)
	assert.Equal(t, 3, attempts, "exactly max retries attempts")
	assert.Contains(t, err.Error(), "fetch")
	assert.Contains(t, err.Error(), "3 attempts")
}

func TestExecutorFailsFastOnPermanentError(t *testing.T) {
	exec, waits := newTestExecutor(t, &Config{
		MaxRetries:          5,
		BaseDelay:           time.Second,
		TransientDelayCap:   time.Minute,
		QuotaDelayCap:       time.Minute,
		UnavailableDelayCap: time.Minute,
	})

	attempts := 0
	err := exec.Do(context.Background(), "write", func(_ context.Context) error {
		attempts++
		return fmt.Errorf("invalid range: %w", ErrPermanent)
	})

	require.ErrorIs(t, err, ErrPermanent)
	assert.NotErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, 1, attempts)
	assert.Empty(t, *waits)
}

func TestExecutorQuotaFailureWidensDelay(t *testing.T) {
	exec, waits := newTestExecutor(t, &Config{
		MaxRetries:          4,
		BaseDelay:           2 * time.Second,
		TransientDelayCap:   time.Minute,
		QuotaDelayCap:       time.Minute,
		UnavailableDelayCap: time.Minute,
	})

	before := exec.governor.Window().MinDelay()

	attempts := 0
	err := exec.Do(context.Background(), "write", func(_ context.Context) error {
		attempts++
		if attempts == 1 {
			return fmt.Errorf("429: %w", ErrQuotaExceeded)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Greater(t, exec.governor.Window().MinDelay(), before,
		"quota violation should widen the governor delay")
	require.Len(t, *waits, 1)
	assert.Equal(t, 2*time.Second, (*waits)[0], "first backoff is the base delay")
	assert.Equal(t, 0, exec.governor.Window().CallCount()-1,
		"window counters reset after the quota wait")
}

func TestExecutorBackoffGrowsAndCaps(t *testing.T) {
	exec, waits := newTestExecutor(t, &Config{
		MaxRetries:          6,
		BaseDelay:           time.Second,
		TransientDelayCap:   8 * time.Second,
		QuotaDelayCap:       time.Minute,
		UnavailableDelayCap: time.Minute,
	})

	err := exec.Do(context.Background(), "read", func(_ context.Context) error {
		return fmt.Errorf("500: %w", ErrServerError)
	})

	require.ErrorIs(t, err, ErrRetriesExhausted)
	// 1s, 2s, 4s, then capped at 8s; no backoff after the final attempt
	assert.Equal(t, []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second,
		8 * time.Second, 8 * time.Second,
	}, *waits)
}

func TestExecutorSuccessRelaxesDelay(t *testing.T) {
	window := quota.NewWindow(&quota.Config{
		WindowLimit:     1000,
		WindowDuration:  time.Minute,
		MinDelay:        10 * time.Second,
		MinDelayFloor:   time.Second,
		MinDelayCeiling: time.Minute,
	})

	noSleep := func(_ context.Context, _ time.Duration) error { return nil }
	gov := quota.NewGovernor(logrus.New(), window).WithClock(time.Now, noSleep)
	exec := NewExecutor(logrus.New(), &Config{MaxRetries: 3, BaseDelay: time.Second,
		TransientDelayCap: time.Minute, QuotaDelayCap: time.Minute, UnavailableDelayCap: time.Minute},
		gov, "test").WithClock(noSleep, func() float64 { return 0.5 })

	require.NoError(t, exec.Do(context.Background(), "read", func(_ context.Context) error { return nil }))
	assert.Less(t, window.MinDelay(), 10*time.Second)
}

func TestDoValue(t *testing.T) {
	exec, _ := newTestExecutor(t, &Config{
		MaxRetries:          3,
		BaseDelay:           time.Second,
		TransientDelayCap:   time.Minute,
		QuotaDelayCap:       time.Minute,
		UnavailableDelayCap: time.Minute,
	})

	attempts := 0
	got, err := DoValue(context.Background(), exec, "count", func(_ context.Context) (int, error) {
		attempts++
		if attempts == 1 {
			return 0, fmt.Errorf("flaky: %w", ErrServerError)
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestExecutorContextCancellation(t *testing.T) {
	exec, _ := newTestExecutor(t, &Config{
		MaxRetries:          3,
		BaseDelay:           time.Second,
		TransientDelayCap:   time.Minute,
		QuotaDelayCap:       time.Minute,
		UnavailableDelayCap: time.Minute,
	})

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := exec.Do(ctx, "read", func(_ context.Context) error {
		attempts++
		cancel()
		return fmt.Errorf("boom: %w", ErrServerError)
	})

	// Backoff sleeper in tests ignores ctx; the governor surfaces the
	// cancellation on the next acquire instead.
	require.Error(t, err)
	assert.LessOrEqual(t, attempts, 3)
}
