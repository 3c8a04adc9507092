package usecase

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/vitos/live_price_chart/internal/domain"
)

// Layouts tried in order. Zone-less layouts are read in the normalizer's location.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

type RowNormalizer struct {
	loc *time.Location
}

func NewRowNormalizer(loc *time.Location) *RowNormalizer {
	if loc == nil {
		loc = time.Local
	}
	return &RowNormalizer{loc: loc}
}

// Normalize keeps the rows of one series and converts them to points in feed order.
// Malformed rows are dropped. ErrNoDataForSeries is returned when no row carries the identifier.
func (n *RowNormalizer) Normalize(rows []domain.RawRow, series string) ([]domain.Point, error) {
	matched := 0
	points := make([]domain.Point, 0, len(rows))
	for _, r := range rows {
		if r.Ticker != series {
			continue
		}
		matched++

		ts, ok := n.ParseTimestamp(string(r.Timestamp))
		if !ok {
			continue
		}
		price, ok := parsePrice(string(r.Price))
		if !ok {
			continue
		}
		points = append(points, domain.Point{TS: ts, Price: price})
	}
	if matched == 0 {
		return nil, fmt.Errorf("%w: %q", domain.ErrNoDataForSeries, series)
	}
	return points, nil
}

// ParseTimestamp returns Unix milliseconds. An all-digit value is taken as epoch milliseconds.
func (n *RowNormalizer) ParseTimestamp(raw string) (int64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, true
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, n.loc); err == nil {
			return t.UnixMilli(), true
		}
	}
	return 0, false
}

func parsePrice(raw string) (float64, bool) {
	p, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(p) || math.IsInf(p, 0) {
		return 0, false
	}
	return p, true
}
