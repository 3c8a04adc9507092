package render

import (
	"context"
	"errors"

	"github.com/vitos/live_price_chart/internal/domain"
)

// Fanout delivers each frame to every sink, even when one of them fails.
type Fanout []domain.RenderSink

func (f Fanout) Render(ctx context.Context, frame domain.Frame) error {
	var errs []error
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.Render(ctx, frame); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
