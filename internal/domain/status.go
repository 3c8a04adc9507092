package domain

import (
	"errors"
	"time"
)

var (
	ErrNoDataForSeries   = errors.New("no data for series")
	ErrNoPlottablePoints = errors.New("no plottable points")
	ErrFetchCancelled    = errors.New("fetch cancelled")
	ErrFetchFailed       = errors.New("fetch failed")
	ErrUnknownRange      = errors.New("unknown range")
	ErrDriverRunning     = errors.New("poll driver already running")
	ErrDriverStopped     = errors.New("poll driver not running")
)

type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityError Severity = "error"
)

// StatusKind classifies a status event for consumers that filter.
type StatusKind string

const (
	StatusStarted      StatusKind = "started"
	StatusRangeChanged StatusKind = "range_changed"
	StatusNoData       StatusKind = "no_data"
	StatusNoPoints     StatusKind = "no_points"
	StatusFetchFailed  StatusKind = "fetch_failed"
)

// StatusEvent is an advisory diagnostic emitted by the core.
type StatusEvent struct {
	ID       int64      `json:"id,omitempty"`
	Series   string     `json:"series"`
	Kind     StatusKind `json:"kind"`
	Severity Severity   `json:"severity"`
	Message  string     `json:"message"`
	At       time.Time  `json:"at"`
}
