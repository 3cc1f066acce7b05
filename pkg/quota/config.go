// Package quota enforces per-remote-system call budgets: a rolling window
// call cap plus a minimum spacing between individual calls.
package quota

import (
	"errors"
	"time"
)

// Define static errors
var (
	ErrWindowLimitRequired  = errors.New("window limit must be greater than zero")
	ErrWindowDurationNeeded = errors.New("window duration must be greater than zero")
	ErrDelayBoundsInverted  = errors.New("minimum delay floor exceeds ceiling")
)

// Config holds the quota parameters for one remote system
type Config struct {
	// WindowLimit is the maximum number of calls permitted per window
	WindowLimit int `yaml:"windowLimit" default:"60"`
	// WindowDuration is the length of the rolling quota window
	WindowDuration time.Duration `yaml:"windowDuration" default:"1m"`
	// MinDelay is the initial minimum spacing between consecutive calls
	MinDelay time.Duration `yaml:"minDelay" default:"1s"`
	// MinDelayFloor bounds how far the spacing may be relaxed
	MinDelayFloor time.Duration `yaml:"minDelayFloor" default:"500ms"`
	// MinDelayCeiling bounds how far the spacing may be widened
	MinDelayCeiling time.Duration `yaml:"minDelayCeiling" default:"30s"`
	// SafetyMargin is slack added when sleeping out an exhausted window
	SafetyMargin time.Duration `yaml:"safetyMargin" default:"2s"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.WindowLimit <= 0 {
		return ErrWindowLimitRequired
	}

	if c.WindowDuration <= 0 {
		return ErrWindowDurationNeeded
	}

	if c.MinDelayFloor > c.MinDelayCeiling {
		return ErrDelayBoundsInverted
	}

	return nil
}
