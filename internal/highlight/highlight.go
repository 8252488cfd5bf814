// Package highlight provides the data structures for highlight records and
// their outbound Readwise representation.
package highlight

import (
	"fmt"
	"time"
)

// Record is a single highlight as read from the GoodLinks database, joined
// with its parent link's metadata. Optional columns are pointers: nil means
// the column was NULL at the source.
type Record struct {
	ID     string
	LinkID string

	// Highlight content
	Text string
	Note *string

	// CommittedAt is the creation time in fractional seconds since the Unix
	// epoch. It is assigned once at creation and never mutated, which is what
	// makes it safe as an incremental sync watermark.
	CommittedAt float64

	Color *string

	// Joined link fields
	SourceURL *string
	Title     *string
	Author    *string
}

// Item is one highlight in the shape the Readwise API expects. Optional
// fields absent at the source are omitted from the JSON entirely, never sent
// as null.
type Item struct {
	Text          string  `json:"text"`
	SourceURL     *string `json:"source_url,omitempty"`
	Title         *string `json:"title,omitempty"`
	Author        *string `json:"author,omitempty"`
	HighlightedAt string  `json:"highlighted_at"`
	Note          *string `json:"note,omitempty"`
}

// Batch wraps an ordered sequence of items as a single submission unit.
// Items are ascending by the source record's commit time.
type Batch struct {
	Highlights []Item `json:"highlights"`
}

// Len returns the number of items in the batch.
func (b Batch) Len() int {
	return len(b.Highlights)
}

// FromRecord maps a source record into its outbound representation.
// It is a pure function with no failure modes: absent optional source fields
// simply produce absent output fields, and the note is carried only when
// non-empty.
//
// The commit timestamp is rendered as ISO 8601 in loc. Production passes
// time.Local to match the behavior of prior tooling; tests pin a fixed zone.
func FromRecord(rec Record, loc *time.Location) Item {
	item := Item{
		Text:          rec.Text,
		SourceURL:     nonEmpty(rec.SourceURL),
		Title:         nonEmpty(rec.Title),
		Author:        nonEmpty(rec.Author),
		HighlightedAt: FormatTimestamp(rec.CommittedAt, loc),
	}
	item.Note = nonEmpty(rec.Note)
	return item
}

// NewBatch transforms records into a batch, preserving their order.
func NewBatch(records []Record, loc *time.Location) Batch {
	items := make([]Item, 0, len(records))
	for _, rec := range records {
		items = append(items, FromRecord(rec, loc))
	}
	return Batch{Highlights: items}
}

// FormatTimestamp renders a fractional Unix timestamp as an ISO 8601 string
// with a UTC offset in the given location.
func FormatTimestamp(ts float64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).In(loc).Format("2006-01-02T15:04:05-07:00")
}

// Validate checks the fields this system relies on. Source rows are expected
// to satisfy this by construction; it exists to catch corrupt fixtures early.
func (r Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("id is required")
	}
	if r.Text == "" {
		return fmt.Errorf("text is required")
	}
	if r.CommittedAt <= 0 {
		return fmt.Errorf("committed_at must be positive (got %v)", r.CommittedAt)
	}
	return nil
}

// nonEmpty normalizes optional strings: nil or empty both map to absent.
func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
