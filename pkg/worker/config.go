// Package worker processes queued sync tasks against the engine
package worker

import (
	"errors"
)

var (
	// ErrInvalidConcurrency is returned when concurrency is not positive
	ErrInvalidConcurrency = errors.New("concurrency must be positive")
)

// Config contains worker-specific settings
type Config struct {
	// Concurrency stays at 1 unless targets live in separate documents;
	// concurrent writers to one document fight over the write quota.
	Concurrency     int `yaml:"concurrency" default:"1"`
	ShutdownTimeout int `yaml:"shutdownTimeout" default:"30"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	return nil
}
