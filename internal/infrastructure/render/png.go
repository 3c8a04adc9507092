package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vitos/live_price_chart/internal/domain"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	DefaultWidth  = 1024
	DefaultHeight = 400
)

var ErrEmptyFrame = errors.New("frame has no points")

var lineColor = drawing.ColorFromHex("2563eb")

// PNGSink renders every frame to a PNG and keeps the latest image.
type PNGSink struct {
	width  int
	height int
	loc    *time.Location

	mu       sync.RWMutex
	latest   []byte
	latestAt time.Time
	timeNow  func() time.Time // For testing
}

func NewPNGSink(width, height int, loc *time.Location) *PNGSink {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	if loc == nil {
		loc = time.Local
	}
	return &PNGSink{width: width, height: height, loc: loc, timeNow: time.Now}
}

func (s *PNGSink) Render(ctx context.Context, f domain.Frame) error {
	img, err := s.draw(f)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.latest = img
	s.latestAt = s.timeNow()
	s.mu.Unlock()
	return nil
}

// Latest returns the most recent image and when it was drawn.
func (s *PNGSink) Latest() ([]byte, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return nil, time.Time{}, false
	}
	return s.latest, s.latestAt, true
}

func (s *PNGSink) draw(f domain.Frame) ([]byte, error) {
	if len(f.Timestamps) == 0 || len(f.Timestamps) != len(f.Values) {
		return nil, ErrEmptyFrame
	}

	times := make([]time.Time, len(f.Timestamps))
	for i, ts := range f.Timestamps {
		times[i] = time.UnixMilli(ts).In(s.loc)
	}
	ys := append([]float64(nil), f.Values...)

	// Pad to at least two X values for go-chart
	if len(times) == 1 {
		times = append(times, times[0].Add(time.Second))
		ys = append(ys, ys[0])
	}

	minY, maxY := ys[0], ys[0]
	for _, y := range ys {
		if y < minY {
			minY = y
		}
		if y > maxY {
			maxY = y
		}
	}
	if maxY <= minY {
		minY, maxY = minY-1, maxY+1
	}
	pad := (maxY - minY) * 0.05

	ch := chart.Chart{
		Title:      fmt.Sprintf("%s (%s)", f.Series, f.Range),
		Width:      s.width,
		Height:     s.height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis: chart.XAxis{
			Name:           "Time",
			ValueFormatter: chart.TimeValueFormatterWithFormat(timeFormat(f.Range)),
		},
		YAxis: chart.YAxis{
			Name:  "Price",
			Range: &chart.ContinuousRange{Min: minY - pad, Max: maxY + pad},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    f.Series,
				XValues: times,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: lineColor,
					StrokeWidth: 2,
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}
	return buf.Bytes(), nil
}

func timeFormat(key domain.RangeKey) string {
	switch key {
	case domain.Range1H, domain.Range6H, domain.Range12H:
		return "15:04"
	case domain.Range1D:
		return "01-02 15:04"
	default:
		return "2006-01-02"
	}
}
