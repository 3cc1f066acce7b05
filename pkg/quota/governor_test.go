package quota

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances only when a governor sleeps, so tests are deterministic
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestGovernor(cfg *Config) (*Governor, *fakeClock) {
	clock := newFakeClock()
	gov := NewGovernor(logrus.New(), NewWindow(cfg)).WithClock(clock.Now, clock.Sleep)
	return gov, clock
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{
			name: "valid",
			cfg:  Config{WindowLimit: 60, WindowDuration: time.Minute, MinDelayFloor: time.Second, MinDelayCeiling: 10 * time.Second},
		},
		{
			name:    "zero limit",
			cfg:     Config{WindowDuration: time.Minute},
			wantErr: ErrWindowLimitRequired,
		},
		{
			name:    "zero duration",
			cfg:     Config{WindowLimit: 10},
			wantErr: ErrWindowDurationNeeded,
		},
		{
			name:    "inverted delay bounds",
			cfg:     Config{WindowLimit: 10, WindowDuration: time.Minute, MinDelayFloor: time.Minute, MinDelayCeiling: time.Second},
			wantErr: ErrDelayBoundsInverted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestGovernorWindowCap(t *testing.T) {
	cfg := &Config{
		WindowLimit:     5,
		WindowDuration:  time.Minute,
		SafetyMargin:    2 * time.Second,
		MinDelayCeiling: time.Minute,
	}
	gov, clock := newTestGovernor(cfg)
	ctx := context.Background()

	// First five calls pass without sleeping
	for i := 0; i < 5; i++ {
		require.NoError(t, gov.Acquire(ctx))
	}
	assert.Empty(t, clock.sleeps)

	// Sixth call must wait out the remaining window plus the safety margin
	require.NoError(t, gov.Acquire(ctx))
	require.Len(t, clock.sleeps, 1)
	assert.Equal(t, time.Minute+2*time.Second, clock.sleeps[0])
}

func TestGovernorNeverExceedsWindowLimit(t *testing.T) {
	cfg := &Config{
		WindowLimit:     10,
		WindowDuration:  time.Minute,
		SafetyMargin:    time.Second,
		MinDelayCeiling: time.Minute,
	}
	gov, clock := newTestGovernor(cfg)
	ctx := context.Background()

	// Record the effective time of each call and verify no sliding
	// minute-long interval ever contains more than the limit.
	var callTimes []time.Time
	for i := 0; i < 35; i++ {
		require.NoError(t, gov.Acquire(ctx))
		callTimes = append(callTimes, clock.Now())
	}

	for i := range callTimes {
		count := 1
		for j := i + 1; j < len(callTimes); j++ {
			if callTimes[j].Sub(callTimes[i]) <= time.Minute {
				count++
			}
		}
		assert.LessOrEqual(t, count, cfg.WindowLimit,
			"window starting at call %d holds %d calls", i, count)
	}
}

func TestGovernorMinDelay(t *testing.T) {
	cfg := &Config{
		WindowLimit:     100,
		WindowDuration:  time.Minute,
		MinDelay:        2 * time.Second,
		MinDelayFloor:   time.Second,
		MinDelayCeiling: 30 * time.Second,
	}
	gov, clock := newTestGovernor(cfg)
	ctx := context.Background()

	require.NoError(t, gov.Acquire(ctx))
	assert.Empty(t, clock.sleeps, "first call should not wait")

	// Immediate second call sleeps the full spacing
	require.NoError(t, gov.Acquire(ctx))
	require.Len(t, clock.sleeps, 1)
	assert.Equal(t, 2*time.Second, clock.sleeps[0])

	// A call after half the spacing sleeps only the difference
	clock.Advance(time.Second)
	require.NoError(t, gov.Acquire(ctx))
	require.Len(t, clock.sleeps, 2)
	assert.Equal(t, time.Second, clock.sleeps[1])

	// A call after more than the spacing does not wait
	clock.Advance(5 * time.Second)
	require.NoError(t, gov.Acquire(ctx))
	assert.Len(t, clock.sleeps, 2)
}

func TestGovernorWindowExpiryResets(t *testing.T) {
	cfg := &Config{
		WindowLimit:     2,
		WindowDuration:  time.Minute,
		SafetyMargin:    time.Second,
		MinDelayCeiling: time.Minute,
	}
	gov, clock := newTestGovernor(cfg)
	ctx := context.Background()

	require.NoError(t, gov.Acquire(ctx))
	require.NoError(t, gov.Acquire(ctx))

	// Let the window lapse entirely; the next call starts a fresh window
	clock.Advance(2 * time.Minute)
	require.NoError(t, gov.Acquire(ctx))
	assert.Empty(t, clock.sleeps)
	assert.Equal(t, 1, gov.Window().CallCount())
}

func TestWindowWidenRelaxBounds(t *testing.T) {
	w := NewWindow(&Config{
		WindowLimit:     10,
		WindowDuration:  time.Minute,
		MinDelay:        time.Second,
		MinDelayFloor:   500 * time.Millisecond,
		MinDelayCeiling: 4 * time.Second,
	})

	assert.Equal(t, 2*time.Second, w.Widen())
	assert.Equal(t, 4*time.Second, w.Widen())
	// Ceiling holds
	assert.Equal(t, 4*time.Second, w.Widen())

	for i := 0; i < 100; i++ {
		w.Relax()
	}
	// Floor holds
	assert.Equal(t, 500*time.Millisecond, w.MinDelay())
}

func TestGovernorSharedWindow(t *testing.T) {
	cfg := &Config{
		WindowLimit:     3,
		WindowDuration:  time.Minute,
		SafetyMargin:    time.Second,
		MinDelayCeiling: time.Minute,
	}
	window := NewWindow(cfg)
	clock := newFakeClock()

	// Two governors over the same window share one budget
	g1 := NewGovernor(logrus.New(), window).WithClock(clock.Now, clock.Sleep)
	g2 := NewGovernor(logrus.New(), window).WithClock(clock.Now, clock.Sleep)
	ctx := context.Background()

	require.NoError(t, g1.Acquire(ctx))
	require.NoError(t, g2.Acquire(ctx))
	require.NoError(t, g1.Acquire(ctx))
	assert.Empty(t, clock.sleeps)

	require.NoError(t, g2.Acquire(ctx))
	assert.Len(t, clock.sleeps, 1, "fourth call across governors should block")
}
