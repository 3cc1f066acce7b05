// Package planner decides, per sync target, between rebuilding the
// destination from scratch and appending incrementally to what is already
// stored.
package planner

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/byteberry/statsync/pkg/metrics"
)

// Define static errors
var (
	ErrToleranceRequired = errors.New("tolerance days must be greater than zero")
	ErrUnknownTimezone   = errors.New("unknown timezone")
)

// Mode is the chosen synchronization strategy
type Mode string

// Sync modes
const (
	// ModeFull clears the destination and rewrites it from the earliest
	// available source date
	ModeFull Mode = "full"
	// ModeIncremental updates the last stored date in place and appends
	// everything after it
	ModeIncremental Mode = "incremental"
	// ModeNoop means the destination is already current
	ModeNoop Mode = "noop"
)

// Extent describes what a destination currently holds, as read at the
// start of a sync. It may be stale relative to destination reality only up
// to the last successful reconciliation.
type Extent struct {
	// Empty is true when the destination has no data rows
	Empty bool
	// Corrupted is true when stored date keys could not be parsed
	Corrupted bool
	// Min and Max bound the stored date keys (undefined when Empty)
	Min metrics.Date
	Max metrics.Date
	// RowCount is the number of stored data rows
	RowCount int
}

// Plan is the planner's verdict for one target
type Plan struct {
	Mode Mode
	// Boundary is the first date to (re)write. For ModeIncremental this is
	// the last stored date, which may hold partial values and is rewritten
	// in place.
	Boundary metrics.Date
	// Reason records why the mode was chosen, for the sync report
	Reason string
}

// Config holds the planning policy knobs
type Config struct {
	// ToleranceDays is the largest backward gap between what the
	// destination holds and what the source can still provide before the
	// destination is considered too stale to patch incrementally
	ToleranceDays int `yaml:"toleranceDays" default:"30"`
	// Timezone decides which calendar day counts as "today" when the
	// caller does not pin the latest source date. Destination-local by
	// convention; defaults to UTC.
	Timezone string `yaml:"timezone" default:"UTC"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.ToleranceDays <= 0 {
		return ErrToleranceRequired
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return ErrUnknownTimezone
	}

	return nil
}

// Planner applies the full-vs-incremental decision table
type Planner struct {
	log logrus.FieldLogger
	cfg *Config
	loc *time.Location

	// Injectable for tests
	now func() time.Time
}

// New creates a planner with the given policy
func New(log logrus.FieldLogger, cfg *Config) (*Planner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, ErrUnknownTimezone
	}

	return &Planner{
		log: log.WithField("component", "planner"),
		cfg: cfg,
		loc: loc,
		now: time.Now,
	}, nil
}

// WithNow overrides the time source, for tests
func (p *Planner) WithNow(now func() time.Time) *Planner {
	p.now = now
	return p
}

// Today returns the current calendar day in the configured timezone
func (p *Planner) Today() metrics.Date {
	return metrics.DateOf(p.now(), p.loc)
}

// PlanFor picks a mode and boundary date for a destination with the given
// extent, against a source able to provide [earliest, latest]. A zero
// latest means "through today".
//
// The ordering below matters: the stale-destination check must precede the
// irreplaceable-history check, because a gap larger than the tolerance
// invalidates the preserve-history heuristic.
func (p *Planner) PlanFor(extent Extent, earliest, latest metrics.Date) Plan {
	if latest.IsZero() {
		latest = p.Today()
	}

	plan := p.decide(extent, earliest)

	// Nothing new to write
	if plan.Mode == ModeIncremental && plan.Boundary.After(latest) {
		return Plan{Mode: ModeNoop, Reason: "destination already current"}
	}

	p.log.WithFields(logrus.Fields{
		"mode":     plan.Mode,
		"boundary": plan.Boundary.String(),
		"reason":   plan.Reason,
	}).Debug("Planned sync")

	return plan
}

func (p *Planner) decide(extent Extent, earliest metrics.Date) Plan {
	if extent.Empty {
		return Plan{Mode: ModeFull, Boundary: earliest, Reason: "destination empty"}
	}

	if extent.Corrupted {
		return Plan{Mode: ModeFull, Boundary: earliest, Reason: "stored dates unparsable"}
	}

	if extent.Min.DaysSince(earliest) > p.cfg.ToleranceDays {
		return Plan{Mode: ModeFull, Boundary: earliest, Reason: "historical gap exceeds tolerance"}
	}

	if extent.Min.Before(earliest) {
		// The destination holds history the source can no longer provide;
		// a rebuild would destroy it.
		return Plan{Mode: ModeIncremental, Boundary: extent.Max, Reason: "preserving irreplaceable history"}
	}

	return Plan{Mode: ModeIncremental, Boundary: extent.Max, Reason: "destination within source range"}
}
