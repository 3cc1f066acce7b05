package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/byteberry/statsync/pkg/checkpoint"
	"github.com/byteberry/statsync/pkg/gridstore"
	"github.com/byteberry/statsync/pkg/metrics"
	"github.com/byteberry/statsync/pkg/observability"
	"github.com/byteberry/statsync/pkg/planner"
	"github.com/byteberry/statsync/pkg/reconcile"
	"github.com/byteberry/statsync/pkg/retry"
	"github.com/byteberry/statsync/pkg/source"
	"github.com/byteberry/statsync/pkg/targets"
	"github.com/byteberry/statsync/pkg/writer"
)

// ErrUnknownTarget is returned when a sync is requested for a target that
// is not in the catalog
var ErrUnknownTarget = errors.New("unknown target")

// Service orchestrates metric synchronization
type Service interface {
	// SyncTarget runs one full sync pass for a single target
	SyncTarget(ctx context.Context, target *targets.Target) (*SyncResult, error)
	// SyncByName looks a target up in the catalog and syncs it
	SyncByName(ctx context.Context, name string) (*SyncResult, error)
	// RunAll syncs every cataloged target sequentially
	RunAll(ctx context.Context) (*RunReport, error)
	// Results returns the cached outcome of recent syncs
	Results(ctx context.Context) ([]SyncResult, error)
}

// RunReport summarizes one pass over the whole catalog
type RunReport struct {
	RunID     string        `json:"runId"`
	Results   []SyncResult  `json:"results"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// Dependencies bundles the collaborators the engine drives
type Dependencies struct {
	Catalog     *targets.Config
	Titles      *targets.TitleEngine
	Source      source.ClientInterface
	Store       gridstore.ClientInterface
	SourceExec  *retry.Executor
	StoreExec   *retry.Executor
	Planner     *planner.Planner
	Reconciler  *reconcile.Reconciler
	Writer      *writer.Writer
	Checkpoints checkpoint.Store
	Results     ResultStore
}

type service struct {
	log  logrus.FieldLogger
	cfg  *Config
	deps Dependencies

	// Injectable for tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewService creates the sync engine
func NewService(log logrus.FieldLogger, cfg *Config, deps Dependencies) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &service{
		log:   log.WithField("component", "engine"),
		cfg:   cfg,
		deps:  deps,
		now:   time.Now,
		sleep: sleepCtx,
	}, nil
}

// NewServiceWithClock creates the sync engine with a fixed clock, for tests
func NewServiceWithClock(log logrus.FieldLogger, cfg *Config, deps Dependencies, now func() time.Time, sleep func(context.Context, time.Duration) error) (Service, error) {
	svc, err := NewService(log, cfg, deps)
	if err != nil {
		return nil, err
	}

	impl, ok := svc.(*service)
	if !ok {
		return nil, errors.New("unexpected service type")
	}

	impl.now = now
	impl.sleep = sleep

	return impl, nil
}

func (s *service) SyncByName(ctx context.Context, name string) (*SyncResult, error) {
	target := s.deps.Catalog.Find(name)
	if target == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTarget, name)
	}

	return s.SyncTarget(ctx, target)
}

func (s *service) SyncTarget(ctx context.Context, target *targets.Target) (*SyncResult, error) {
	started := s.now()

	result := &SyncResult{
		RunID:     uuid.New().String(),
		Target:    target.Name(),
		StartedAt: started,
	}

	log := s.log.WithFields(logrus.Fields{
		"target": target.Name(),
		"run_id": result.RunID,
	})

	err := s.sync(ctx, target, result, log)

	result.Duration = s.now().Sub(started)

	status := "success"

	if err != nil {
		status = "failed"
		result.Error = err.Error()
	} else if result.Mode == string(planner.ModeNoop) {
		status = "noop"
	}

	observability.RecordSync(result.Target, result.Mode, status, result.Duration.Seconds())

	if saveErr := s.deps.Results.Save(ctx, result); saveErr != nil {
		log.WithError(saveErr).Warn("Failed to cache sync result")
	}

	if err != nil {
		log.WithError(err).Error("Target sync failed")

		return result, fmt.Errorf("sync %s: %w", target.Name(), err)
	}

	log.WithFields(logrus.Fields{
		"mode":     result.Mode,
		"written":  result.RowsWritten,
		"updated":  result.RowsUpdated,
		"duration": result.Duration,
	}).Info("Target sync complete")

	return result, nil
}

func (s *service) sync(ctx context.Context, target *targets.Target, result *SyncResult, log logrus.FieldLogger) error {
	tab, err := s.deps.Titles.TabName(target)
	if err != nil {
		return err
	}

	result.Tab = tab

	today := s.deps.Planner.Today()
	earliest := today.AddDays(-target.RetentionDays)

	// Pull every stream for the full available range; the plan decides how
	// much of the merged output is actually written.
	streams := make([]metrics.MetricStream, 0, len(target.Streams))

	for _, spec := range target.Streams {
		stream, err := retry.DoValue(ctx, s.deps.SourceExec, "fetch "+spec.Name, func(ctx context.Context) (*metrics.MetricStream, error) {
			return s.deps.Source.FetchStream(ctx, spec, earliest, today)
		})
		if err != nil {
			return err
		}

		streams = append(streams, *stream)
	}

	rows, warnings := metrics.Merge(streams)
	result.Warnings = append(result.Warnings, warnings...)

	extent, err := s.readExtent(ctx, tab, log)
	if err != nil {
		return err
	}

	plan := s.deps.Planner.PlanFor(extent, earliest, today)
	result.Mode = string(plan.Mode)

	if plan.Mode == planner.ModeNoop {
		log.WithField("reason", plan.Reason).Info("Destination already current")

		// An earlier failed run may have left a checkpoint behind; an
		// already-current destination completes the sync, so drop it.
		return s.deps.Checkpoints.Clear(ctx, target.CheckpointKey())
	}

	headers, repaired, reconWarnings, err := s.deps.Reconciler.Reconcile(ctx, tab, target.ExpectedHeaders, target.HeaderRenames)
	if err != nil {
		return err
	}

	result.Warnings = append(result.Warnings, reconWarnings...)

	if repaired {
		log.Info("Header row reconciled")
	}

	if plan.Mode == planner.ModeIncremental {
		rows = fromBoundary(rows, plan.Boundary)
	}

	writeResult, err := s.deps.Writer.Write(ctx, tab, target.CheckpointKey(), headers, rows, plan)

	result.RowsWritten = writeResult.RowsWritten
	result.RowsUpdated = writeResult.RowsUpdated
	result.Resumed = writeResult.Resumed

	if err != nil {
		return err
	}

	// Progress bookkeeping is only useful mid-flight
	if err := s.deps.Checkpoints.Clear(ctx, target.CheckpointKey()); err != nil {
		return err
	}

	return nil
}

// readExtent inspects what the destination currently holds
func (s *service) readExtent(ctx context.Context, tab string, log logrus.FieldLogger) (planner.Extent, error) {
	var extent planner.Extent

	count, err := retry.DoValue(ctx, s.deps.StoreExec, "count rows", func(ctx context.Context) (int, error) {
		return s.deps.Store.RowCount(ctx, tab)
	})
	if err != nil {
		return extent, err
	}

	extent.RowCount = count

	if count == 0 {
		extent.Empty = true

		return extent, nil
	}

	rows, err := retry.DoValue(ctx, s.deps.StoreExec, "read date column", func(ctx context.Context) ([][]any, error) {
		return s.deps.Store.ReadRange(ctx, tab, 1, 0)
	})
	if err != nil {
		return extent, err
	}

	for _, row := range rows {
		if len(row) == 0 {
			continue
		}

		date, err := metrics.ParseDate(fmt.Sprint(row[0]))
		if err != nil {
			log.WithField("cell", row[0]).Warn("Unparsable stored date, forcing rebuild")

			extent.Corrupted = true

			return extent, nil
		}

		if extent.Min.IsZero() || date.Before(extent.Min) {
			extent.Min = date
		}

		if extent.Max.IsZero() || date.After(extent.Max) {
			extent.Max = date
		}
	}

	if extent.Min.IsZero() {
		// Rows exist but none carried a date cell
		extent.Corrupted = true
	}

	return extent, nil
}

func (s *service) RunAll(ctx context.Context) (*RunReport, error) {
	started := s.now()

	report := &RunReport{RunID: uuid.New().String()}

	log := s.log.WithField("run_id", report.RunID)
	log.WithField("targets", len(s.deps.Catalog.Targets)).Info("Starting catalog sync")

	for i := range s.deps.Catalog.Targets {
		target := &s.deps.Catalog.Targets[i]

		// One failed target never blocks the rest of the catalog
		result, err := s.SyncTarget(ctx, target)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}

			report.Failed++
		} else {
			report.Succeeded++
		}

		if result != nil {
			report.Results = append(report.Results, *result)
		}

		if i < len(s.deps.Catalog.Targets)-1 {
			if err := s.sleep(ctx, s.cfg.TargetCooldown); err != nil {
				return report, err
			}
		}
	}

	report.Duration = s.now().Sub(started)

	log.WithFields(logrus.Fields{
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
		"duration":  report.Duration,
	}).Info("Catalog sync complete")

	return report, nil
}

func (s *service) Results(ctx context.Context) ([]SyncResult, error) {
	return s.deps.Results.List(ctx)
}

// fromBoundary drops rows before the boundary date
func fromBoundary(rows []metrics.MergedRow, boundary metrics.Date) []metrics.MergedRow {
	for i, row := range rows {
		if !row.Date.Before(boundary) {
			return rows[i:]
		}
	}

	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
