// Package source provides the client for the upstream metric source API
package source

import (
	"errors"
	"time"
)

// Static errors for configuration validation
var (
	ErrURLRequired = errors.New("URL is required")
)

// Config contains metric source connection settings
type Config struct {
	URL          string        `yaml:"url" validate:"required,url"`
	Token        string        `yaml:"token"`
	PageSize     int           `yaml:"pageSize" default:"100"`
	QueryTimeout time.Duration `yaml:"queryTimeout" default:"30s"`
	KeepAlive    time.Duration `yaml:"keepAlive" default:"30s"`
	Debug        bool          `yaml:"debug"`

	// Breaker tuning; zero values fall back to the defaults below
	BreakerMinRequests  uint32        `yaml:"breakerMinRequests" default:"10"`
	BreakerFailureRatio float64       `yaml:"breakerFailureRatio" default:"0.6"`
	BreakerTimeout      time.Duration `yaml:"breakerTimeout" default:"2m"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.URL == "" {
		return ErrURLRequired
	}

	return nil
}
