// Package gridstore provides an HTTP client for the remote tabular store
package gridstore

import (
	"errors"
	"time"
)

// Static errors for configuration validation
var (
	ErrURLRequired = errors.New("URL is required")
)

// Config contains tabular store connection settings
type Config struct {
	URL          string        `yaml:"url" validate:"required,url"`
	APIKey       string        `yaml:"apiKey"`
	Document     string        `yaml:"document"`
	QueryTimeout time.Duration `yaml:"queryTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	KeepAlive    time.Duration `yaml:"keepAlive"`
	Debug        bool          `yaml:"debug"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.URL == "" {
		return ErrURLRequired
	}

	return nil
}

// SetDefaults sets default values for the configuration
func (c *Config) SetDefaults() {
	if c.QueryTimeout == 0 {
		c.QueryTimeout = 30 * time.Second
	}

	if c.WriteTimeout == 0 {
		c.WriteTimeout = 2 * time.Minute
	}

	if c.KeepAlive == 0 {
		c.KeepAlive = 30 * time.Second
	}
}
