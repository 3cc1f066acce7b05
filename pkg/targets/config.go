// Package targets holds the catalog of sync targets: which organizations
// are pulled, from which metric streams, and where their rows land.
package targets

import (
	"errors"
	"fmt"

	"github.com/byteberry/statsync/pkg/checkpoint"
	"github.com/byteberry/statsync/pkg/source"
)

// Define static errors
var (
	ErrNoTargets          = errors.New("at least one target is required")
	ErrOrgIDRequired      = errors.New("target orgId is required")
	ErrMetricTypeRequired = errors.New("target metricType is required")
	ErrNoStreams          = errors.New("target needs at least one stream")
	ErrDuplicateTarget    = errors.New("duplicate target")
)

// DefaultTabTemplate names destination tabs the way the historical exports
// did, e.g. "LinkedIn_Stats_Acme_123".
const DefaultTabTemplate = "{{ .MetricType | title }}_Stats_{{ .OrgName | replace \" \" \"_\" }}_{{ .OrgID }}"

// Target describes one organization/metric-type pair to synchronize
type Target struct {
	// OrgID is the organization identifier at the metric source
	OrgID string `yaml:"orgId"`
	// OrgName is the human-readable organization name, used in tab titles
	OrgName string `yaml:"orgName"`
	// MetricType groups targets by source platform, e.g. linkedin, facebook
	MetricType string `yaml:"metricType"`
	// TabTemplate overrides the destination tab title template
	TabTemplate string `yaml:"tabTemplate"`
	// Streams are the source endpoints merged into this target's rows
	Streams []source.StreamSpec `yaml:"streams"`
	// ExpectedHeaders is the canonical destination header row
	ExpectedHeaders []string `yaml:"expectedHeaders"`
	// HeaderRenames maps legacy header spellings to canonical ones
	HeaderRenames map[string]string `yaml:"headerRenames"`
	// RetentionDays bounds how far back the source can still provide data
	RetentionDays int `yaml:"retentionDays" default:"365"`
	// Schedule is a cron expression for periodic syncs; empty disables them
	Schedule string `yaml:"schedule"`
}

// Name returns the stable identifier used in logs, metrics, and task IDs
func (t *Target) Name() string {
	return fmt.Sprintf("%s:%s", t.MetricType, t.OrgID)
}

// CheckpointKey returns the progress checkpoint key for this target
func (t *Target) CheckpointKey() checkpoint.Key {
	return checkpoint.Key{OrgID: t.OrgID, MetricType: t.MetricType}
}

// Config is the target catalog
type Config struct {
	Targets []Target `yaml:"targets"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTargets
	}

	seen := make(map[string]struct{}, len(c.Targets))

	for i := range c.Targets {
		t := &c.Targets[i]

		if t.OrgID == "" {
			return fmt.Errorf("%w (index %d)", ErrOrgIDRequired, i)
		}

		if t.MetricType == "" {
			return fmt.Errorf("%w (%s)", ErrMetricTypeRequired, t.OrgID)
		}

		if len(t.Streams) == 0 {
			return fmt.Errorf("%w (%s)", ErrNoStreams, t.Name())
		}

		if _, ok := seen[t.Name()]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateTarget, t.Name())
		}

		seen[t.Name()] = struct{}{}
	}

	return nil
}

// Find returns the target with the given name, or nil
func (c *Config) Find(name string) *Target {
	for i := range c.Targets {
		if c.Targets[i].Name() == name {
			return &c.Targets[i]
		}
	}

	return nil
}
