package usecase

import (
	"context"

	"github.com/vitos/live_price_chart/internal/domain"
)

// StatusFanout forwards every status event to all sinks in order.
type StatusFanout []domain.StatusSink

func (f StatusFanout) Report(ctx context.Context, evt domain.StatusEvent) {
	for _, s := range f {
		if s != nil {
			s.Report(ctx, evt)
		}
	}
}
