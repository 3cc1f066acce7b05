package quota

import (
	"sync"
	"time"
)

// Window is the shared quota state for one remote system. The quota is
// account-wide, so every governor talking to the same system must be handed
// the same *Window instance; construct one per system and inject it rather
// than relying on package-level state.
type Window struct {
	mu sync.Mutex

	limit         int
	duration      time.Duration
	minDelay      time.Duration
	minDelayFloor time.Duration
	minDelayCeil  time.Duration
	safetyMargin  time.Duration
	callCount     int
	windowStart   time.Time
	lastCall      time.Time
}

// NewWindow creates quota window state from the given config
func NewWindow(cfg *Config) *Window {
	minDelay := cfg.MinDelay
	if minDelay < cfg.MinDelayFloor {
		minDelay = cfg.MinDelayFloor
	}

	return &Window{
		limit:         cfg.WindowLimit,
		duration:      cfg.WindowDuration,
		minDelay:      minDelay,
		minDelayFloor: cfg.MinDelayFloor,
		minDelayCeil:  cfg.MinDelayCeiling,
		safetyMargin:  cfg.SafetyMargin,
	}
}

// MinDelay returns the current minimum spacing between calls
func (w *Window) MinDelay() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.minDelay
}

// CallCount returns the number of calls recorded in the current window
func (w *Window) CallCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.callCount
}

// Widen doubles the minimum spacing between calls, capped at the configured
// ceiling. Called when the remote system signals a quota violation.
func (w *Window) Widen() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()

	widened := w.minDelay * 2
	if widened > w.minDelayCeil {
		widened = w.minDelayCeil
	}
	w.minDelay = widened

	return widened
}

// Relax shrinks the minimum spacing by 10%, bounded below by the floor.
// Called after successful calls as a sign of healthy throughput.
func (w *Window) Relax() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()

	relaxed := w.minDelay - w.minDelay/10
	if relaxed < w.minDelayFloor {
		relaxed = w.minDelayFloor
	}
	w.minDelay = relaxed

	return relaxed
}

// Reset clears the window counters so the next call starts a fresh window
func (w *Window) Reset(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.callCount = 0
	w.windowStart = now
}

// reserve computes how long the caller must wait before issuing the next
// call, then records the call. Both the window cap and the inter-call
// spacing are applied; the returned duration may be zero.
func (w *Window) reserve(now time.Time) time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()

	// Expired window: start a new one
	if w.windowStart.IsZero() || now.Sub(w.windowStart) > w.duration {
		w.callCount = 0
		w.windowStart = now
	}

	var wait time.Duration

	if w.callCount >= w.limit {
		// Window exhausted: wait out the remainder plus the safety margin
		wait = w.duration - now.Sub(w.windowStart) + w.safetyMargin
		if wait < 0 {
			wait = w.safetyMargin
		}
		w.callCount = 0
		w.windowStart = now.Add(wait)
	}

	// Inter-call spacing, independent of the window cap
	if !w.lastCall.IsZero() {
		if spacing := w.minDelay - now.Sub(w.lastCall); spacing > wait {
			wait = spacing
		}
	}

	w.callCount++
	w.lastCall = now.Add(wait)

	return wait
}
