package redis

import (
	"github.com/redis/go-redis/v9"
)

// Options converts the configuration to go-redis client options
func (c *Config) Options() *redis.Options {
	return &redis.Options{
		Addr: c.Address,
	}
}

// New creates a Redis client from the configuration
func New(cfg *Config) (*redis.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return redis.NewClient(cfg.Options()), nil
}
