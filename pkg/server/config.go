// Package server wires the sync services together and manages their lifecycle
package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/byteberry/statsync/pkg/api"
	"github.com/byteberry/statsync/pkg/engine"
	"github.com/byteberry/statsync/pkg/gridstore"
	"github.com/byteberry/statsync/pkg/planner"
	"github.com/byteberry/statsync/pkg/quota"
	"github.com/byteberry/statsync/pkg/reconcile"
	"github.com/byteberry/statsync/pkg/redis"
	"github.com/byteberry/statsync/pkg/retry"
	"github.com/byteberry/statsync/pkg/scheduler"
	"github.com/byteberry/statsync/pkg/source"
	"github.com/byteberry/statsync/pkg/targets"
	"github.com/byteberry/statsync/pkg/worker"
	"github.com/byteberry/statsync/pkg/writer"
)

// Define static errors
var (
	ErrRedisConfigRequired  = errors.New("redis configuration is required")
	ErrSourceConfigRequired = errors.New("source configuration is required")
	ErrStoreConfigRequired  = errors.New("store configuration is required")
)

// Config holds the full service configuration
type Config struct {
	// MetricsAddr is the address to listen on for metrics.
	MetricsAddr string `yaml:"metricsAddr" default:":9090"`
	// HealthCheckAddr is the address to listen on for healthcheck.
	HealthCheckAddr *string `yaml:"healthCheckAddr"`
	// PProfAddr is the address to listen on for pprof.
	PProfAddr *string `yaml:"pprofAddr"`
	// LoggingLevel is the logging level to use.
	LoggingLevel string `yaml:"logging" default:"info"`
	// ShutdownTimeout is the timeout for shutting down the server.
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" default:"10s"`

	// Redis is the redis configuration.
	Redis *redis.Config `yaml:"redis"`
	// Source is the metrics source API configuration.
	Source *source.Config `yaml:"source"`
	// Store is the destination grid store configuration.
	Store *gridstore.Config `yaml:"store"`

	// SourceQuota and StoreQuota bound request rates per remote system.
	SourceQuota quota.Config `yaml:"sourceQuota"`
	StoreQuota  quota.Config `yaml:"storeQuota"`

	// SourceRetry and StoreRetry shape backoff per remote system.
	SourceRetry retry.Config `yaml:"sourceRetry"`
	StoreRetry  retry.Config `yaml:"storeRetry"`

	Planner   planner.Config   `yaml:"planner"`
	Reconcile reconcile.Config `yaml:"reconcile"`
	Writer    writer.Config    `yaml:"writer"`
	Engine    engine.Config    `yaml:"engine"`
	Scheduler scheduler.Config `yaml:"scheduler"`
	Worker    worker.Config    `yaml:"worker"`
	API       api.Config       `yaml:"api"`

	// Targets is the sync target catalog.
	Targets targets.Config `yaml:",inline"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Redis == nil {
		return ErrRedisConfigRequired
	}

	if err := c.Redis.Validate(); err != nil {
		return fmt.Errorf("invalid redis configuration: %w", err)
	}

	if c.Source == nil {
		return ErrSourceConfigRequired
	}

	if c.Store == nil {
		return ErrStoreConfigRequired
	}

	if err := c.Targets.Validate(); err != nil {
		return fmt.Errorf("invalid target configuration: %w", err)
	}

	return nil
}
