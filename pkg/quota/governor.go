package quota

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Governor blocks callers until it is safe to issue one more call against
// the governed remote system. It is a pure scheduling primitive: Acquire
// only fails when the context is canceled mid-wait.
type Governor struct {
	log    logrus.FieldLogger
	window *Window

	// Injectable for tests; default to the real clock
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGovernor creates a governor over the given shared quota window
func NewGovernor(log logrus.FieldLogger, window *Window) *Governor {
	return &Governor{
		log:    log.WithField("component", "quota_governor"),
		window: window,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// Acquire blocks until one more call may be issued, then records the call
func (g *Governor) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	wait := g.window.reserve(g.now())
	if wait <= 0 {
		return nil
	}

	g.log.WithFields(logrus.Fields{
		"wait":       wait,
		"call_count": g.window.CallCount(),
	}).Debug("Throttling remote call")

	return g.sleep(ctx, wait)
}

// Window returns the shared quota state governed by this governor
func (g *Governor) Window() *Window {
	return g.window
}

// WithClock overrides the time source and sleeper, for tests
func (g *Governor) WithClock(now func() time.Time, sleep func(context.Context, time.Duration) error) *Governor {
	g.now = now
	g.sleep = sleep

	return g
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
