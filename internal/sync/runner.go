package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/hlsync/hlsync/internal/highlight"
	"github.com/hlsync/hlsync/internal/readwise"
	"github.com/hlsync/hlsync/internal/watermark"
	"go.uber.org/zap"
)

// Runner executes sync runs. All collaborators are injected so tests can
// substitute fakes for the database, the remote API, and the watermark file.
type Runner struct {
	source    Source
	deliverer Deliverer
	marks     watermark.Store
	loc       *time.Location
	logger    *zap.Logger
}

// NewRunner creates a Runner. loc controls timestamp rendering and defaults
// to time.Local; logger defaults to a no-op logger.
func NewRunner(source Source, deliverer Deliverer, marks watermark.Store, loc *time.Location, logger *zap.Logger) *Runner {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		source:    source,
		deliverer: deliverer,
		marks:     marks,
		loc:       loc,
		logger:    logger,
	}
}

// Run performs one sync invocation.
//
// The run is strictly sequential: one watermark load, one source query, at
// most one delivery call, at most one watermark write. The watermark is
// advanced only after the deliverer confirms the batch, so a failed or
// interrupted run replays the same records next time. A crash between
// confirmed delivery and the watermark write can redeliver one batch; the
// remote API tolerates duplicate submissions of identical content.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (*Result, error) {
	result := &Result{DryRun: opts.DryRun}

	// Missing credential is a configuration error, checked before any I/O.
	if !opts.DryRun && !r.deliverer.HasToken() {
		return nil, readwise.ErrMissingToken
	}

	prev, present, err := r.marks.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load watermark: %w", err)
	}

	var since *float64
	if present {
		since = &prev
		result.PrevWatermark = &prev
		r.logger.Info("loaded watermark",
			zap.Float64("last_synced_at", prev),
			zap.String("last_synced_at_iso", highlight.FormatTimestamp(prev, r.loc)))
	} else {
		r.logger.Info("no previous sync recorded, processing full history")
	}

	records, err := r.source.FetchSince(ctx, since)
	if err != nil {
		return nil, err
	}

	result.Fetched = len(records)
	if len(records) == 0 {
		r.logger.Info("no new highlights found")
		return result, nil
	}

	// FetchSince returns records ascending by commit time, so the last
	// record carries the new watermark.
	newMark := records[len(records)-1].CommittedAt
	result.NewWatermark = &newMark
	result.Batch = highlight.NewBatch(records, r.loc)

	if opts.DryRun {
		r.logger.Info("dry run, skipping delivery and watermark write",
			zap.Int("fetched", result.Fetched),
			zap.Float64("would_be_watermark", newMark))
		return result, nil
	}

	if err := r.deliverer.Submit(ctx, result.Batch); err != nil {
		r.logger.Error("delivery failed, watermark left untouched",
			zap.Int("fetched", result.Fetched),
			zap.Error(err))
		return nil, err
	}
	result.Delivered = true

	// Deliver-then-commit: the watermark only moves after the batch was
	// accepted in full.
	if err := r.marks.Save(newMark); err != nil {
		return nil, fmt.Errorf("batch delivered but watermark write failed: %w", err)
	}

	r.logger.Info("sync committed",
		zap.Int("synced", result.Fetched),
		zap.Float64("last_synced_at", newMark))
	return result, nil
}
