// Package writer lands merged metric rows in the destination store in
// quota-friendly chunks, checkpointing progress so interrupted runs resume
// instead of rewriting.
package writer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/byteberry/statsync/pkg/checkpoint"
	"github.com/byteberry/statsync/pkg/gridstore"
	"github.com/byteberry/statsync/pkg/metrics"
	"github.com/byteberry/statsync/pkg/observability"
	"github.com/byteberry/statsync/pkg/planner"
	"github.com/byteberry/statsync/pkg/reconcile"
	"github.com/byteberry/statsync/pkg/retry"
)

// Define static errors
var (
	ErrChunkSizeRequired = errors.New("chunk size must be greater than zero")
	ErrDateHeaderMissing = errors.New("headers do not include the date column")
)

// DateHeader names the column that keys every destination row. Legacy tabs
// may carry it anywhere in the header row, not just first.
const DateHeader = "Date"

// Config holds chunked write settings
type Config struct {
	// ChunkSize is the maximum number of rows per store write
	ChunkSize int `yaml:"chunkSize" default:"1000"`
	// ChunkCooldown is the pause between consecutive chunk writes
	ChunkCooldown time.Duration `yaml:"chunkCooldown" default:"3s"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return ErrChunkSizeRequired
	}

	return nil
}

// Result summarizes what one write pass did
type Result struct {
	// RowsWritten counts rows newly written or rewritten in bulk
	RowsWritten int
	// RowsUpdated counts existing rows overwritten in place
	RowsUpdated int
	// Resumed is true when a prior checkpoint skipped already-landed rows
	Resumed bool
}

// Writer pushes merged rows into a destination tab
type Writer struct {
	log         logrus.FieldLogger
	cfg         *Config
	store       gridstore.ClientInterface
	exec        *retry.Executor
	checkpoints checkpoint.Store

	// Injectable for tests
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a chunked writer
func New(log logrus.FieldLogger, cfg *Config, store gridstore.ClientInterface, exec *retry.Executor, checkpoints checkpoint.Store) (*Writer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Writer{
		log:         log.WithField("component", "writer"),
		cfg:         cfg,
		store:       store,
		exec:        exec,
		checkpoints: checkpoints,
		sleep:       sleepCtx,
	}, nil
}

// WithSleep overrides the cooldown sleeper, for tests
func (w *Writer) WithSleep(sleep func(context.Context, time.Duration) error) *Writer {
	w.sleep = sleep
	return w
}

// Write lands rows in a tab according to the plan. Full mode clears the
// data region and rewrites everything; incremental mode overwrites the
// boundary row in place and appends the rest. Rows must be date-sorted.
// Every chunk that lands is checkpointed, and dates found in an existing
// checkpoint are not written again; the checkpoint is left in place on
// failure so the caller can retry the target later.
func (w *Writer) Write(ctx context.Context, tab string, key checkpoint.Key, headers []string, rows []metrics.MergedRow, plan planner.Plan) (Result, error) {
	var result Result

	if len(rows) == 0 || plan.Mode == planner.ModeNoop {
		return result, nil
	}

	dateIdx, ok := reconcile.ColumnIndex(headers)[DateHeader]
	if !ok {
		return result, fmt.Errorf("%s: %w", tab, ErrDateHeaderMissing)
	}

	done, err := w.checkpoints.Load(ctx, key)
	if err != nil {
		return result, fmt.Errorf("write %s: %w", tab, err)
	}

	if len(done) > 0 {
		result.Resumed = true

		observability.CheckpointResumesTotal.WithLabelValues(key.MetricType + ":" + key.OrgID).Inc()

		w.log.WithFields(logrus.Fields{
			"tab":    tab,
			"logged": len(done),
		}).Info("Resuming from checkpoint")
	}

	switch plan.Mode {
	case planner.ModeFull:
		err = w.writeFull(ctx, tab, key, headers, dateIdx, rows, done, &result)
	case planner.ModeIncremental:
		err = w.writeIncremental(ctx, tab, key, headers, dateIdx, rows, plan.Boundary, done, &result)
	}

	if err != nil {
		return result, fmt.Errorf("write %s: %w", tab, err)
	}

	return result, nil
}

func (w *Writer) writeFull(ctx context.Context, tab string, key checkpoint.Key, headers []string, dateIdx int, rows []metrics.MergedRow, done map[metrics.Date]struct{}, result *Result) error {
	// Only clear on a fresh start; a resumed run already holds partial data
	// that the checkpoint accounts for.
	if len(done) == 0 {
		err := w.exec.Do(ctx, "clear data region", func(ctx context.Context) error {
			return w.store.ClearRange(ctx, tab)
		})
		if err != nil {
			return err
		}
	}

	return w.writeChunks(ctx, tab, key, headers, dateIdx, rows, 1, done, result)
}

func (w *Writer) writeIncremental(ctx context.Context, tab string, key checkpoint.Key, headers []string, dateIdx int, rows []metrics.MergedRow, boundary metrics.Date, done map[metrics.Date]struct{}, result *Result) error {
	stored, err := retry.DoValue(ctx, w.exec, "count rows", func(ctx context.Context) (int, error) {
		return w.store.RowCount(ctx, tab)
	})
	if err != nil {
		return err
	}

	// Rows a prior interrupted run appended are already counted in stored,
	// so anchor offsets to where that run started appending. Otherwise the
	// resumed rows would stack past the landed ones, leaving blank gaps and
	// shifting every later date off its row.
	appended := 0

	for _, row := range rows {
		if row.Date.Equal(boundary) {
			continue
		}

		if _, ok := done[row.Date]; ok {
			appended++
		}
	}

	appendAt := stored - appended + 1

	// The last stored day may have been written mid-day with partial
	// values; overwrite it in place before appending anything new.
	if len(rows) > 0 && rows[0].Date.Equal(boundary) && stored > 0 {
		if _, skip := done[boundary]; !skip {
			cells := projectRow(headers, dateIdx, rows[0])

			err := w.exec.Do(ctx, "overwrite boundary row", func(ctx context.Context) error {
				return w.store.WriteRange(ctx, tab, appendAt-1, [][]any{cells})
			})
			if err != nil {
				return err
			}

			if err := w.checkpoints.Save(ctx, key, []metrics.Date{boundary}); err != nil {
				return err
			}

			result.RowsUpdated++
		}

		rows = rows[1:]
	}

	return w.writeChunks(ctx, tab, key, headers, dateIdx, rows, appendAt, done, result)
}

// writeChunks writes pending rows positionally from startOffset, one store
// call per chunk, skipping dates that already landed.
func (w *Writer) writeChunks(ctx context.Context, tab string, key checkpoint.Key, headers []string, dateIdx int, rows []metrics.MergedRow, startOffset int, done map[metrics.Date]struct{}, result *Result) error {
	type pending struct {
		offset int
		row    metrics.MergedRow
	}

	queue := make([]pending, 0, len(rows))

	for i, row := range rows {
		if _, ok := done[row.Date]; ok {
			continue
		}

		queue = append(queue, pending{offset: startOffset + i, row: row})
	}

	for len(queue) > 0 {
		// A chunk covers a contiguous run of offsets so it lands in one
		// range write.
		run := 1
		for run < len(queue) && run < w.cfg.ChunkSize && queue[run].offset == queue[run-1].offset+1 {
			run++
		}

		chunk := queue[:run]
		queue = queue[run:]

		cells := make([][]any, 0, len(chunk))
		dates := make([]metrics.Date, 0, len(chunk))

		for _, p := range chunk {
			cells = append(cells, projectRow(headers, dateIdx, p.row))
			dates = append(dates, p.row.Date)
		}

		offset := chunk[0].offset

		err := w.exec.Do(ctx, "write chunk", func(ctx context.Context) error {
			return w.store.WriteRange(ctx, tab, offset, cells)
		})
		if err != nil {
			return err
		}

		if err := w.checkpoints.Save(ctx, key, dates); err != nil {
			return err
		}

		result.RowsWritten += len(chunk)

		observability.RowsWrittenTotal.WithLabelValues(key.MetricType + ":" + key.OrgID).Add(float64(len(chunk)))

		w.log.WithFields(logrus.Fields{
			"tab":    tab,
			"offset": offset,
			"rows":   len(chunk),
		}).Debug("Wrote chunk")

		if len(queue) > 0 {
			if err := w.sleep(ctx, w.cfg.ChunkCooldown); err != nil {
				return err
			}
		}
	}

	return nil
}

// projectRow lays a merged row out in live header order, with the date in
// whichever column carries the date header
func projectRow(headers []string, dateIdx int, row metrics.MergedRow) []any {
	cells := make([]any, len(headers))

	for i, h := range headers {
		if i == dateIdx {
			cells[i] = row.Date.String()
			continue
		}

		value, ok := row.Values[h]
		if !ok {
			cells[i] = ""
			continue
		}

		cells[i] = value
	}

	return cells
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
