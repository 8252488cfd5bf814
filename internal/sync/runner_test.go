package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hlsync/hlsync/internal/highlight"
	"github.com/hlsync/hlsync/internal/readwise"
	"github.com/hlsync/hlsync/internal/watermark"
)

// fakeSource serves records with commit times strictly greater than since.
type fakeSource struct {
	records []highlight.Record
	err     error
	calls   int
}

func (s *fakeSource) FetchSince(ctx context.Context, since *float64) ([]highlight.Record, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	var out []highlight.Record
	for _, rec := range s.records {
		if since == nil || rec.CommittedAt > *since {
			out = append(out, rec)
		}
	}
	return out, nil
}

// fakeDeliverer records submissions and can simulate failures.
type fakeDeliverer struct {
	token   string
	err     error
	batches []highlight.Batch
}

func (d *fakeDeliverer) Submit(ctx context.Context, batch highlight.Batch) error {
	if d.token == "" {
		return readwise.ErrMissingToken
	}
	if d.err != nil {
		return d.err
	}
	d.batches = append(d.batches, batch)
	return nil
}

func (d *fakeDeliverer) HasToken() bool {
	return d.token != ""
}

func threeRecords() []highlight.Record {
	return []highlight.Record{
		{ID: "a", LinkID: "l", Text: "first", CommittedAt: 100},
		{ID: "b", LinkID: "l", Text: "second", CommittedAt: 200},
		{ID: "c", LinkID: "l", Text: "third", CommittedAt: 300},
	}
}

func newTestRunner(source *fakeSource, deliverer *fakeDeliverer, marks watermark.Store) *Runner {
	return NewRunner(source, deliverer, marks, time.UTC, nil)
}

func TestRun_FullHistoryThenCommit(t *testing.T) {
	source := &fakeSource{records: threeRecords()}
	deliverer := &fakeDeliverer{token: "tok"}
	marks := &watermark.MemStore{}

	result, err := newTestRunner(source, deliverer, marks).Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Fetched != 3 {
		t.Errorf("Fetched = %d, want 3", result.Fetched)
	}
	if !result.Delivered {
		t.Error("expected Delivered = true")
	}
	if result.NewWatermark == nil || *result.NewWatermark != 300 {
		t.Errorf("NewWatermark = %v, want 300", result.NewWatermark)
	}
	if !marks.Present || marks.Value != 300 {
		t.Errorf("persisted watermark = (%v, %v), want (300, true)", marks.Value, marks.Present)
	}
	if len(deliverer.batches) != 1 || deliverer.batches[0].Len() != 3 {
		t.Errorf("expected one delivery of 3 items, got %+v", deliverer.batches)
	}
}

func TestRun_WatermarkFiltersOldRecords(t *testing.T) {
	source := &fakeSource{records: threeRecords()}
	deliverer := &fakeDeliverer{token: "tok"}
	marks := &watermark.MemStore{Value: 200, Present: true}

	result, err := newTestRunner(source, deliverer, marks).Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Fetched != 1 {
		t.Fatalf("Fetched = %d, want exactly the record at 300", result.Fetched)
	}
	if result.PrevWatermark == nil || *result.PrevWatermark != 200 {
		t.Errorf("PrevWatermark = %v, want 200", result.PrevWatermark)
	}
	if marks.Value != 300 {
		t.Errorf("watermark = %v, want 300", marks.Value)
	}
	if batch := deliverer.batches[0]; batch.Highlights[0].Text != "third" {
		t.Errorf("delivered wrong record: %+v", batch.Highlights[0])
	}
}

func TestRun_EmptyChangeSetIsTerminal(t *testing.T) {
	source := &fakeSource{records: threeRecords()}
	deliverer := &fakeDeliverer{token: "tok"}
	marks := &watermark.MemStore{Value: 300, Present: true}

	result, err := newTestRunner(source, deliverer, marks).Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Fetched != 0 {
		t.Errorf("Fetched = %d, want 0", result.Fetched)
	}
	if len(deliverer.batches) != 0 {
		t.Error("no delivery call expected for empty change set")
	}
	if marks.SaveCount != 0 {
		t.Error("watermark must not be written on an empty run")
	}
	if marks.Value != 300 {
		t.Errorf("watermark changed to %v", marks.Value)
	}
}

func TestRun_DeliveryFailureLeavesWatermark(t *testing.T) {
	source := &fakeSource{records: threeRecords()}
	deliveryErr := &readwise.DeliveryError{StatusCode: 500, Body: "boom"}
	deliverer := &fakeDeliverer{token: "tok", err: deliveryErr}
	marks := &watermark.MemStore{Value: 100, Present: true}

	_, err := newTestRunner(source, deliverer, marks).Run(context.Background(), RunOptions{})
	if err == nil {
		t.Fatal("expected delivery error to surface")
	}

	var delivery *readwise.DeliveryError
	if !errors.As(err, &delivery) {
		t.Fatalf("expected *DeliveryError, got %T: %v", err, err)
	}
	if marks.SaveCount != 0 || marks.Value != 100 {
		t.Errorf("watermark must be untouched on failure, got value=%v saves=%d",
			marks.Value, marks.SaveCount)
	}
}

func TestRun_DryRunIsPure(t *testing.T) {
	source := &fakeSource{records: threeRecords()}
	deliverer := &fakeDeliverer{} // no token: dry run must not need one
	marks := &watermark.MemStore{}

	result, err := newTestRunner(source, deliverer, marks).Run(context.Background(), RunOptions{DryRun: true})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !result.DryRun {
		t.Error("expected DryRun = true")
	}
	if result.Batch.Len() != 3 {
		t.Errorf("reported batch size = %d, want 3", result.Batch.Len())
	}
	if result.NewWatermark == nil || *result.NewWatermark != 300 {
		t.Errorf("would-be watermark = %v, want 300", result.NewWatermark)
	}
	if result.Delivered {
		t.Error("dry run must not deliver")
	}
	if len(deliverer.batches) != 0 {
		t.Error("dry run performed a delivery call")
	}
	if marks.SaveCount != 0 {
		t.Error("dry run wrote the watermark")
	}
}

func TestRun_MissingTokenFailsBeforeAnyIO(t *testing.T) {
	source := &fakeSource{records: threeRecords()}
	deliverer := &fakeDeliverer{}
	marks := &watermark.MemStore{}

	_, err := newTestRunner(source, deliverer, marks).Run(context.Background(), RunOptions{})
	if !errors.Is(err, readwise.ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
	if source.calls != 0 {
		t.Error("source must not be queried when the credential is missing")
	}
	if marks.SaveCount != 0 {
		t.Error("watermark must not be written when the credential is missing")
	}
}

func TestRun_SourceErrorAborts(t *testing.T) {
	sourceErr := errors.New("database locked")
	source := &fakeSource{err: sourceErr}
	deliverer := &fakeDeliverer{token: "tok"}
	marks := &watermark.MemStore{}

	_, err := newTestRunner(source, deliverer, marks).Run(context.Background(), RunOptions{})
	if !errors.Is(err, sourceErr) {
		t.Fatalf("expected source error to surface, got %v", err)
	}
	if len(deliverer.batches) != 0 {
		t.Error("no delivery expected after a source failure")
	}
	if marks.SaveCount != 0 {
		t.Error("watermark must not be written after a source failure")
	}
}

func TestRun_WatermarkMonotonic(t *testing.T) {
	source := &fakeSource{records: threeRecords()}
	deliverer := &fakeDeliverer{token: "tok"}
	marks := &watermark.MemStore{Value: 150, Present: true}

	before := marks.Value
	result, err := newTestRunner(source, deliverer, marks).Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if marks.Value < before {
		t.Errorf("watermark decreased: %v -> %v", before, marks.Value)
	}
	if result.Fetched != 2 {
		t.Errorf("Fetched = %d, want 2 (records at 200 and 300)", result.Fetched)
	}
}

func TestRun_RerunAfterCommitIsIdempotent(t *testing.T) {
	source := &fakeSource{records: threeRecords()}
	deliverer := &fakeDeliverer{token: "tok"}
	marks := &watermark.MemStore{}
	runner := newTestRunner(source, deliverer, marks)

	if _, err := runner.Run(context.Background(), RunOptions{}); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}

	result, err := runner.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if result.Fetched != 0 {
		t.Errorf("second run fetched %d records, want 0", result.Fetched)
	}
	if len(deliverer.batches) != 1 {
		t.Errorf("expected exactly one delivery across both runs, got %d", len(deliverer.batches))
	}
}
