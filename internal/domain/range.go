package domain

import (
	"fmt"
	"strings"
	"time"
)

type RangeKey string

const (
	Range1H  RangeKey = "1H"
	Range6H  RangeKey = "6H"
	Range12H RangeKey = "12H"
	Range1D  RangeKey = "1D"
	Range5D  RangeKey = "5D"
	Range10D RangeKey = "10D"
	RangeAll RangeKey = "ALL"
)

// Window is a lookback duration. Unbounded windows retain the whole series.
type Window struct {
	Duration  time.Duration
	Unbounded bool
}

// Millis returns the window length in milliseconds, or -1 when unbounded.
func (w Window) Millis() int64 {
	if w.Unbounded {
		return -1
	}
	return w.Duration.Milliseconds()
}

// RangeCatalog maps range keys to windows and keeps their display order.
type RangeCatalog struct {
	order   []RangeKey
	windows map[RangeKey]Window
}

// RangeOption is one entry of a catalog, used for construction and listing.
type RangeOption struct {
	Key       RangeKey `json:"key"`
	Millis    int64    `json:"millis"`
	Unbounded bool     `json:"unbounded"`
}

func DefaultRanges() *RangeCatalog {
	c, _ := NewRangeCatalog([]RangeOption{
		{Key: Range1H, Millis: time.Hour.Milliseconds()},
		{Key: Range6H, Millis: (6 * time.Hour).Milliseconds()},
		{Key: Range12H, Millis: (12 * time.Hour).Milliseconds()},
		{Key: Range1D, Millis: (24 * time.Hour).Milliseconds()},
		{Key: Range5D, Millis: (5 * 24 * time.Hour).Milliseconds()},
		{Key: Range10D, Millis: (10 * 24 * time.Hour).Milliseconds()},
		{Key: RangeAll, Unbounded: true},
	})
	return c
}

func NewRangeCatalog(options []RangeOption) (*RangeCatalog, error) {
	if len(options) == 0 {
		return nil, fmt.Errorf("range catalog is empty")
	}
	c := &RangeCatalog{windows: make(map[RangeKey]Window, len(options))}
	for _, o := range options {
		key := RangeKey(strings.TrimSpace(string(o.Key)))
		if key == "" {
			return nil, fmt.Errorf("range key is empty")
		}
		if _, dup := c.windows[key]; dup {
			return nil, fmt.Errorf("duplicate range key %q", key)
		}
		if !o.Unbounded && o.Millis <= 0 {
			return nil, fmt.Errorf("range %q: duration must be positive", key)
		}
		w := Window{Unbounded: o.Unbounded}
		if !o.Unbounded {
			w.Duration = time.Duration(o.Millis) * time.Millisecond
		}
		c.windows[key] = w
		c.order = append(c.order, key)
	}
	return c, nil
}

func (c *RangeCatalog) Lookup(key RangeKey) (Window, bool) {
	w, ok := c.windows[key]
	return w, ok
}

func (c *RangeCatalog) Has(key RangeKey) bool {
	_, ok := c.windows[key]
	return ok
}

// Options lists the catalog in display order.
func (c *RangeCatalog) Options() []RangeOption {
	out := make([]RangeOption, 0, len(c.order))
	for _, k := range c.order {
		w := c.windows[k]
		out = append(out, RangeOption{Key: k, Millis: w.Millis(), Unbounded: w.Unbounded})
	}
	return out
}
