// Package checkpoint persists per-target write progress so an interrupted
// sync can resume without rewriting rows that already landed.
package checkpoint

import (
	"context"
	"fmt"

	"github.com/byteberry/statsync/pkg/metrics"
)

// Key identifies the checkpoint for one sync target
type Key struct {
	OrgID      string
	MetricType string
}

// String renders the storage key, sans prefix
func (k Key) String() string {
	return fmt.Sprintf("checkpoint:%s:%s", k.OrgID, k.MetricType)
}

// Store records which dates have already been written for a target.
// Implementations must tolerate concurrent readers but callers serialize
// writes per key.
type Store interface {
	// Load returns the set of dates already written, empty when no
	// checkpoint exists
	Load(ctx context.Context, key Key) (map[metrics.Date]struct{}, error)
	// Save merges dates into the checkpoint
	Save(ctx context.Context, key Key, dates []metrics.Date) error
	// Clear removes the checkpoint
	Clear(ctx context.Context, key Key) error
}
