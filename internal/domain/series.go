package domain

import (
	"encoding/json"
	"strings"
)

// FeedValue holds a feed field that may arrive as a JSON string or a JSON number.
// Any other JSON kind decodes to the empty value, which normalization drops.
type FeedValue string

func (v *FeedValue) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	*v = ""
	if s == "" || s == "null" || s == "true" || s == "false" || s[0] == '{' || s[0] == '[' {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*v = FeedValue(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*v = FeedValue(num.String())
	return nil
}

// RawRow is a single untrusted record from the feed.
type RawRow struct {
	Ticker    string    `json:"ticker"`
	Exchange  string    `json:"exchange,omitempty"`
	Timestamp FeedValue `json:"timestamp"`
	Price     FeedValue `json:"price"`
}

// Point is a validated sample of the series.
type Point struct {
	TS    int64   `json:"ts"` // Unix milliseconds
	Price float64 `json:"price"`
}

// Cursor marks the last point handed to the render sink.
type Cursor struct {
	TS    int64   `json:"ts"`
	Price float64 `json:"price"`
}

// SeriesState is the currently rendered series of one chart.
type SeriesState struct {
	Points      []Point
	LastPlotted *Cursor
	ActiveRange RangeKey
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s *SeriesState) Clone() SeriesState {
	out := SeriesState{ActiveRange: s.ActiveRange}
	if s.Points != nil {
		out.Points = make([]Point, len(s.Points))
		copy(out.Points, s.Points)
	}
	if s.LastPlotted != nil {
		c := *s.LastPlotted
		out.LastPlotted = &c
	}
	return out
}

// Reset empties the state, forcing the next merge to be a full replace.
func (s *SeriesState) Reset() {
	s.Points = nil
	s.LastPlotted = nil
	s.ActiveRange = ""
}

type RenderMode string

const (
	RenderFull   RenderMode = "full"
	RenderAppend RenderMode = "append"
)

// Frame is what a render sink receives after a merge.
// Timestamps and Values always describe the complete displayed series.
type Frame struct {
	Series     string     `json:"series"`
	Range      RangeKey   `json:"range"`
	Mode       RenderMode `json:"mode"`
	Timestamps []int64    `json:"timestamps"`
	Values     []float64  `json:"values"`
	Appended   int        `json:"appended"`
}

// NewFrame splits points into the parallel arrays the sink consumes.
func NewFrame(series string, key RangeKey, mode RenderMode, points []Point, appended int) Frame {
	f := Frame{
		Series:     series,
		Range:      key,
		Mode:       mode,
		Timestamps: make([]int64, len(points)),
		Values:     make([]float64, len(points)),
		Appended:   appended,
	}
	for i, p := range points {
		f.Timestamps[i] = p.TS
		f.Values[i] = p.Price
	}
	return f
}
