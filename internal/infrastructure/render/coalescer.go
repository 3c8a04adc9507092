package render

import (
	"context"
	"sync"

	"github.com/vitos/live_price_chart/internal/domain"
	"go.uber.org/zap"
)

// Coalescer decouples the poll loop from a slow sink. While a draw is pending
// new frames replace the pending one, so at most one draw is queued.
type Coalescer struct {
	next   domain.RenderSink
	logger *zap.Logger

	mu      sync.Mutex
	pending *domain.Frame
	wake    chan struct{}
}

func NewCoalescer(next domain.RenderSink, logger *zap.Logger) *Coalescer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coalescer{
		next:   next,
		logger: logger,
		wake:   make(chan struct{}, 1),
	}
}

// Render never blocks on the downstream sink.
func (c *Coalescer) Render(ctx context.Context, f domain.Frame) error {
	c.mu.Lock()
	if c.pending != nil {
		f = mergeFrames(*c.pending, f)
	}
	c.pending = &f
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return nil
}

// Run draws pending frames until ctx is done.
func (c *Coalescer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.wake:
			c.Flush(ctx)
		}
	}
}

// Flush draws the pending frame, if any, on the calling goroutine.
func (c *Coalescer) Flush(ctx context.Context) {
	c.mu.Lock()
	f := c.pending
	c.pending = nil
	c.mu.Unlock()

	if f == nil {
		return
	}
	if err := c.next.Render(ctx, *f); err != nil {
		c.logger.Error("Render failed", zap.String("series", f.Series), zap.Error(err))
	}
}

// mergeFrames folds an undrawn frame into its successor. Frames always carry
// the whole series, so only the mode and append count need combining.
func mergeFrames(prev, next domain.Frame) domain.Frame {
	if prev.Mode == domain.RenderFull || prev.Series != next.Series || prev.Range != next.Range {
		next.Mode = domain.RenderFull
	}
	if next.Mode == domain.RenderFull {
		next.Appended = 0
		return next
	}
	next.Appended += prev.Appended
	if next.Appended > len(next.Values) {
		next.Appended = len(next.Values)
	}
	return next
}
