package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/byteberry/statsync/pkg/quota"
	"github.com/byteberry/statsync/pkg/retry"
)

// NewNopExecutor returns a retry executor whose governor and backoff never
// actually sleep, so retry paths run instantly in unit tests.
func NewNopExecutor(t *testing.T, system string) *retry.Executor {
	t.Helper()

	window := quota.NewWindow(&quota.Config{
		WindowLimit:     100000,
		WindowDuration:  time.Minute,
		MinDelayFloor:   time.Millisecond,
		MinDelayCeiling: time.Second,
	})

	governor := quota.NewGovernor(logrus.New(), window).
		WithClock(time.Now, func(_ context.Context, _ time.Duration) error { return nil })

	return retry.NewExecutor(logrus.New(), &retry.Config{
		MaxRetries:          3,
		BaseDelay:           time.Millisecond,
		QuotaDelayCap:       time.Millisecond,
		TransientDelayCap:   time.Millisecond,
		UnavailableDelayCap: time.Millisecond,
	}, governor, system).
		WithClock(func(_ context.Context, _ time.Duration) error { return nil }, func() float64 { return 0.5 })
}
