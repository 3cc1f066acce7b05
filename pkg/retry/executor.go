package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/byteberry/statsync/pkg/observability"
	"github.com/byteberry/statsync/pkg/quota"
)

// Define static errors
var (
	ErrMaxRetriesRequired = errors.New("max retries must be greater than zero")
)

// Config holds retry policy for one remote system
type Config struct {
	// MaxRetries is the number of attempts permitted for retriable failures
	MaxRetries int `yaml:"maxRetries" default:"5"`
	// BaseDelay seeds the exponential backoff schedule
	BaseDelay time.Duration `yaml:"baseDelay" default:"2s"`
	// QuotaDelayCap bounds backoff waits after quota violations
	QuotaDelayCap time.Duration `yaml:"quotaDelayCap" default:"1m"`
	// TransientDelayCap bounds backoff waits after server errors
	TransientDelayCap time.Duration `yaml:"transientDelayCap" default:"1m"`
	// UnavailableDelayCap bounds backoff waits while the remote is down
	UnavailableDelayCap time.Duration `yaml:"unavailableDelayCap" default:"2m"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.MaxRetries <= 0 {
		return ErrMaxRetriesRequired
	}

	return nil
}

// Executor runs remote operations under the rate governor, absorbing
// retriable failures up to the configured attempt cap
type Executor struct {
	log      logrus.FieldLogger
	cfg      *Config
	governor *quota.Governor
	system   string

	// Injectable for tests
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64
}

// NewExecutor creates an executor for the named remote system
func NewExecutor(log logrus.FieldLogger, cfg *Config, governor *quota.Governor, system string) *Executor {
	return &Executor{
		log:      log.WithField("component", "retry_executor").WithField("system", system),
		cfg:      cfg,
		governor: governor,
		system:   system,
		sleep:    sleepCtx,
		jitter:   rand.Float64,
	}
}

// WithClock overrides the sleeper and jitter source, for tests
func (e *Executor) WithClock(sleep func(context.Context, time.Duration) error, jitter func() float64) *Executor {
	e.sleep = sleep
	e.jitter = jitter

	return e
}

// Do executes op under the governor, retrying retriable failures with
// exponential backoff. The operation name only appears in errors and logs.
func (e *Executor) Do(ctx context.Context, opName string, op func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt < e.cfg.MaxRetries; attempt++ {
		acquireStart := time.Now()

		if err := e.governor.Acquire(ctx); err != nil {
			return err
		}

		if waited := time.Since(acquireStart); waited >= time.Millisecond {
			observability.QuotaWaitSeconds.WithLabelValues(e.system).Add(waited.Seconds())
		}

		lastErr = op(ctx)
		if lastErr == nil {
			// Healthy throughput: relax the inter-call spacing a little
			e.governor.Window().Relax()
			return nil
		}

		class := Classify(lastErr)
		observability.RetryAttemptsTotal.WithLabelValues(e.system, class.String()).Inc()

		if !class.Retriable() {
			return fmt.Errorf("%s: %w", opName, lastErr)
		}

		if attempt == e.cfg.MaxRetries-1 {
			// No point backing off after the final attempt
			break
		}

		wait := e.backoff(class, attempt)

		e.log.WithError(lastErr).WithFields(logrus.Fields{
			"operation": opName,
			"class":     class.String(),
			"attempt":   attempt + 1,
			"max":       e.cfg.MaxRetries,
			"wait":      wait,
		}).Warn("Remote operation failed, backing off")

		if class == ClassQuota {
			// The remote says we are calling too fast: widen the spacing
			// and start a fresh quota window after the wait.
			e.governor.Window().Widen()
		}

		if err := e.sleep(ctx, wait); err != nil {
			return err
		}

		if class == ClassQuota {
			e.governor.Window().Reset(time.Now())
		}
	}

	return fmt.Errorf("%w: %s failed after %d attempts: %w", ErrRetriesExhausted, opName, e.cfg.MaxRetries, lastErr)
}

// DoValue is Do for operations that produce a value
func DoValue[T any](ctx context.Context, e *Executor, opName string, op func(ctx context.Context) (T, error)) (T, error) {
	var out T

	err := e.Do(ctx, opName, func(ctx context.Context) error {
		var opErr error
		out, opErr = op(ctx)
		return opErr
	})

	return out, err
}

// backoff computes the jittered exponential wait for a failure class.
// The per-class caps mirror how the different failure modes are priced:
// quota violations and plain server faults back off on the same scale,
// a remote that reports itself unavailable gets more headroom.
func (e *Executor) backoff(class Class, attempt int) time.Duration {
	base := e.cfg.BaseDelay
	ceiling := e.cfg.TransientDelayCap

	switch class {
	case ClassQuota:
		ceiling = e.cfg.QuotaDelayCap
	case ClassUnavailable:
		ceiling = e.cfg.UnavailableDelayCap
		base *= 2
	}

	wait := base << uint(attempt) //nolint:gosec // attempt is bounded by MaxRetries
	if wait > ceiling || wait <= 0 {
		wait = ceiling
	}

	// 0.5x..1.5x jitter keeps concurrent processes from thundering back
	factor := 0.5 + e.jitter()

	return time.Duration(float64(wait) * factor)
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
