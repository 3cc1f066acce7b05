// Package reconcile repairs destination header rows so metric values land
// in the columns a reader expects.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/byteberry/statsync/pkg/gridstore"
	"github.com/byteberry/statsync/pkg/observability"
	"github.com/byteberry/statsync/pkg/retry"
)

// Define static errors
var (
	ErrMaxColumnsRequired = errors.New("max columns must be greater than zero")
)

// Config holds header reconciliation settings
type Config struct {
	// MaxColumns caps the header width; appends beyond it are skipped with
	// a warning
	MaxColumns int `yaml:"maxColumns" default:"50"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.MaxColumns <= 0 {
		return ErrMaxColumnsRequired
	}

	return nil
}

// Reconciler aligns a tab's header row with the expected schema. Legacy
// header spellings are renamed in place and missing columns are appended;
// columns that are present but unexpected are left alone.
type Reconciler struct {
	log   logrus.FieldLogger
	cfg   *Config
	store gridstore.ClientInterface
	exec  *retry.Executor
}

// New creates a header reconciler
func New(log logrus.FieldLogger, cfg *Config, store gridstore.ClientInterface, exec *retry.Executor) (*Reconciler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Reconciler{
		log:   log.WithField("component", "reconciler"),
		cfg:   cfg,
		store: store,
		exec:  exec,
	}, nil
}

// Reconcile reads the header row of a tab, applies renames, and appends
// expected headers that are missing. It returns the header row now in
// effect, whether it was rewritten, and warnings for anything it had to
// leave broken. All store calls go through the retry executor.
func (r *Reconciler) Reconcile(ctx context.Context, tab string, expected []string, renames map[string]string) ([]string, bool, []string, error) {
	headers, err := retry.DoValue(ctx, r.exec, "list headers", func(ctx context.Context) ([]string, error) {
		return r.store.ListHeaders(ctx, tab)
	})
	if err != nil {
		return nil, false, nil, fmt.Errorf("reconcile %s: %w", tab, err)
	}

	repaired, warnings := r.repair(tab, headers, expected, renames)
	if repaired == nil {
		return headers, false, warnings, nil
	}

	err = r.exec.Do(ctx, "write headers", func(ctx context.Context) error {
		return r.store.WriteHeaders(ctx, tab, repaired)
	})
	if err != nil {
		return headers, false, warnings, fmt.Errorf("reconcile %s: %w", tab, err)
	}

	observability.HeaderRepairsTotal.WithLabelValues(tab).Inc()

	r.log.WithFields(logrus.Fields{
		"tab":     tab,
		"columns": len(repaired),
	}).Info("Repaired header row")

	return repaired, true, warnings, nil
}

// repair computes the corrected header row, or nil when nothing changed
func (r *Reconciler) repair(tab string, headers, expected []string, renames map[string]string) ([]string, []string) {
	changed := false

	repaired := make([]string, len(headers))
	copy(repaired, headers)

	// Legacy spellings first, so the presence check below sees the
	// canonical names.
	for i, h := range repaired {
		if canonical, ok := renames[h]; ok && canonical != h {
			r.log.WithFields(logrus.Fields{
				"tab":    tab,
				"from":   h,
				"to":     canonical,
				"column": gridstore.ColumnLetter(i + 1),
			}).Info("Renaming legacy header")

			repaired[i] = canonical
			changed = true
		}
	}

	present := make(map[string]int, len(repaired))
	for i, h := range repaired {
		if _, ok := present[h]; !ok {
			present[h] = i
		}
	}

	var warnings []string

	for _, want := range expected {
		if _, ok := present[want]; ok {
			continue
		}

		if len(repaired) >= r.cfg.MaxColumns {
			warnings = append(warnings, fmt.Sprintf("%s: column %q not added, header at %d-column cap", tab, want, r.cfg.MaxColumns))

			continue
		}

		repaired = append(repaired, want)
		present[want] = len(repaired) - 1
		changed = true
	}

	sort.Strings(warnings)

	if !changed {
		return nil, warnings
	}

	return repaired, warnings
}

// ColumnIndex maps each header name to its 0-based column position,
// keeping the first occurrence when a name repeats.
func ColumnIndex(headers []string) map[string]int {
	index := make(map[string]int, len(headers))

	for i, h := range headers {
		if _, ok := index[h]; !ok {
			index[h] = i
		}
	}

	return index
}
