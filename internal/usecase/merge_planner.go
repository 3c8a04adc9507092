package usecase

import "github.com/vitos/live_price_chart/internal/domain"

// MergePlan is the outcome of merging one cycle's reduced series into the state.
type MergePlan struct {
	Mode     domain.RenderMode
	Appended []domain.Point
	Render   bool
}

type MergePlanner struct {
	epsilon   float64
	maxPoints int
}

func NewMergePlanner(epsilon float64, maxPoints int) *MergePlanner {
	if epsilon < 0 {
		epsilon = DefaultEpsilon
	}
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}
	return &MergePlanner{epsilon: epsilon, maxPoints: maxPoints}
}

// NeedsFull reports whether the next merge must replace the displayed series.
func (m *MergePlanner) NeedsFull(state *domain.SeriesState, key domain.RangeKey, force bool) bool {
	return force || state.LastPlotted == nil || state.ActiveRange != key
}

// Merge applies reduced to state and reports what has to be drawn.
// reduced must be non-empty output of SeriesReducer.Reduce.
func (m *MergePlanner) Merge(state *domain.SeriesState, reduced []domain.Point, key domain.RangeKey, force bool) MergePlan {
	if len(reduced) == 0 {
		return MergePlan{Mode: domain.RenderAppend}
	}
	tail := reduced[len(reduced)-1]

	if m.NeedsFull(state, key, force) {
		points := make([]domain.Point, len(reduced))
		copy(points, reduced)
		state.Points = points
		state.LastPlotted = &domain.Cursor{TS: tail.TS, Price: tail.Price}
		state.ActiveRange = key
		return MergePlan{Mode: domain.RenderFull, Render: true}
	}

	cursor := *state.LastPlotted
	// Each candidate is compared with the newest displayed price so the
	// appended run never shows two equal neighbours.
	ref := cursor.Price
	var appended []domain.Point
	for _, p := range reduced {
		if p.TS <= cursor.TS {
			continue
		}
		if nearlyEqual(p.Price, ref, m.epsilon) {
			continue
		}
		appended = append(appended, p)
		ref = p.Price
	}

	if len(appended) > 0 {
		points := make([]domain.Point, 0, len(state.Points)+len(appended))
		points = append(points, state.Points...)
		points = append(points, appended...)
		if overflow := len(points) - m.maxPoints; overflow > 0 {
			points = points[overflow:]
		}
		state.Points = points
	}
	// A snapshot missing its newest rows must not pull the cursor back.
	if tail.TS > cursor.TS {
		state.LastPlotted = &domain.Cursor{TS: tail.TS, Price: tail.Price}
	}
	state.ActiveRange = key

	return MergePlan{Mode: domain.RenderAppend, Appended: appended, Render: len(appended) > 0}
}
