// Package sync orchestrates an incremental highlight sync run: load the
// watermark, fetch newer records, transform them, deliver the batch, and
// advance the watermark only after confirmed delivery.
package sync

import (
	"context"

	"github.com/hlsync/hlsync/internal/highlight"
)

// Source is the change query contract the runner consumes. FetchSince
// returns records with a commit time strictly greater than since (all
// records when since is nil), ascending by commit time. The last element
// must carry the maximum commit time of the result: the runner uses it as
// the new watermark.
type Source interface {
	FetchSince(ctx context.Context, since *float64) ([]highlight.Record, error)
}

// Deliverer submits one transformed batch in a single request. A nil return
// means the whole batch was accepted. Implementations must not retry
// internally; a failed run leaves the watermark untouched and the next
// invocation replays the same records.
type Deliverer interface {
	Submit(ctx context.Context, batch highlight.Batch) error
	HasToken() bool
}

// RunOptions controls a single run.
type RunOptions struct {
	// DryRun previews the batch and the would-be watermark without any
	// delivery call or watermark write.
	DryRun bool
}

// Result describes a completed run.
type Result struct {
	// Fetched is the number of records newer than the watermark.
	Fetched int

	// Batch is the transformed payload, in fetch order. Populated whenever
	// Fetched > 0, including dry runs.
	Batch highlight.Batch

	// PrevWatermark is the watermark loaded at the start of the run, nil if
	// none was recorded.
	PrevWatermark *float64

	// NewWatermark is the commit time of the last fetched record. On a
	// committed run it has been persisted; on a dry run it is the value that
	// would have been. Nil when nothing was fetched.
	NewWatermark *float64

	// DryRun reports whether this was a preview run.
	DryRun bool

	// Delivered reports whether the batch was submitted and accepted.
	Delivered bool
}
