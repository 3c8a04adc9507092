package domain

import (
	"context"
	"time"
)

// FeedSource returns a full snapshot of raw rows.
// The series identifier lets per-series sources pick their URL or file.
type FeedSource interface {
	Fetch(ctx context.Context, series string) ([]RawRow, error)
	Name() string
}

// RenderSink draws a frame. Pixel-level drawing is up to the implementation.
type RenderSink interface {
	Render(ctx context.Context, frame Frame) error
}

// StatusSink consumes advisory diagnostics. Implementations must not block for long.
type StatusSink interface {
	Report(ctx context.Context, evt StatusEvent)
}

// PreferenceRepository remembers the selected range per series.
type PreferenceRepository interface {
	SaveRange(ctx context.Context, series string, key RangeKey) error
	GetRange(ctx context.Context, series string) (RangeKey, error)
}

// StatusRepository is the persistent journal of status events.
type StatusRepository interface {
	SaveStatus(ctx context.Context, evt StatusEvent) error
	ListStatus(ctx context.Context, limit int) ([]StatusEvent, error)
	PruneStatus(ctx context.Context, before time.Time) (int64, error)
}
