// Package scheduler enqueues sync tasks for targets whose schedule is due
package scheduler

import (
	"errors"
	"time"
)

var (
	// ErrCheckIntervalRequired is returned when the check interval is not positive
	ErrCheckIntervalRequired = errors.New("check interval must be positive")
)

// Config defines scheduler configuration
type Config struct {
	CheckInterval   time.Duration `yaml:"checkInterval" default:"1s"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" default:"10s"`
}

// Validate checks if the scheduler configuration is valid
func (c *Config) Validate() error {
	if c.CheckInterval <= 0 {
		return ErrCheckIntervalRequired
	}

	return nil
}
