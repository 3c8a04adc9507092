package usecase

import (
	"fmt"
	"math"
	"sort"

	"github.com/vitos/live_price_chart/internal/domain"
)

const (
	DefaultEpsilon   = 1e-9
	DefaultMaxPoints = 200
)

func nearlyEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

type SeriesReducer struct {
	ranges    *domain.RangeCatalog
	epsilon   float64
	maxPoints int
}

func NewSeriesReducer(ranges *domain.RangeCatalog, epsilon float64, maxPoints int) *SeriesReducer {
	if ranges == nil {
		ranges = domain.DefaultRanges()
	}
	if epsilon < 0 {
		epsilon = DefaultEpsilon
	}
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}
	return &SeriesReducer{ranges: ranges, epsilon: epsilon, maxPoints: maxPoints}
}

func (r *SeriesReducer) Ranges() *domain.RangeCatalog { return r.ranges }
func (r *SeriesReducer) Epsilon() float64             { return r.epsilon }
func (r *SeriesReducer) MaxPoints() int               { return r.maxPoints }

// Reduce windows the points to the range ending at the newest sample, sorts them,
// collapses runs of nearly-equal prices and keeps the newest maxPoints.
// The input slice is not modified.
func (r *SeriesReducer) Reduce(points []domain.Point, key domain.RangeKey) ([]domain.Point, error) {
	window, ok := r.ranges.Lookup(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownRange, key)
	}
	if len(points) == 0 {
		return nil, domain.ErrNoPlottablePoints
	}

	// The newest sample anchors the window, not the wall clock.
	latest := points[0].TS
	for _, p := range points[1:] {
		if p.TS > latest {
			latest = p.TS
		}
	}

	retained := make([]domain.Point, 0, len(points))
	if window.Unbounded {
		retained = append(retained, points...)
	} else {
		cutoff := latest - window.Duration.Milliseconds()
		for _, p := range points {
			if p.TS >= cutoff {
				retained = append(retained, p)
			}
		}
	}

	sort.SliceStable(retained, func(i, j int) bool { return retained[i].TS < retained[j].TS })

	kept := retained[:0]
	for _, p := range retained {
		if len(kept) > 0 && nearlyEqual(p.Price, kept[len(kept)-1].Price, r.epsilon) {
			continue
		}
		kept = append(kept, p)
	}

	if len(kept) == 0 {
		return nil, domain.ErrNoPlottablePoints
	}
	if len(kept) > r.maxPoints {
		kept = kept[len(kept)-r.maxPoints:]
	}

	out := make([]domain.Point, len(kept))
	copy(out, kept)
	return out, nil
}
