// Package engine orchestrates target synchronization: pull, merge, plan,
// reconcile, write, one target at a time.
package engine

import (
	"errors"
	"time"
)

// Define static errors
var (
	ErrCooldownNegative = errors.New("target cooldown cannot be negative")
)

// Config holds engine orchestration settings
type Config struct {
	// TargetCooldown is the pause between consecutive target syncs, giving
	// remote quota windows room to breathe
	TargetCooldown time.Duration `yaml:"targetCooldown" default:"30s"`
	// ResultTTL bounds how long sync results stay readable via the API
	ResultTTL time.Duration `yaml:"resultTTL" default:"72h"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.TargetCooldown < 0 {
		return ErrCooldownNegative
	}

	return nil
}
