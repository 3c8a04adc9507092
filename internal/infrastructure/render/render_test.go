package render

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/live_price_chart/internal/domain"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

type MockSink struct {
	mu      sync.Mutex
	frames  []domain.Frame
	block   chan struct{}
	entered chan struct{}
	err     error
}

func (m *MockSink) Render(ctx context.Context, f domain.Frame) error {
	if m.entered != nil {
		m.entered <- struct{}{}
	}
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = append(m.frames, f)
	return m.err
}

func (m *MockSink) Frames() []domain.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Frame(nil), m.frames...)
}

func frame(mode domain.RenderMode, appended int, values ...float64) domain.Frame {
	points := make([]domain.Point, len(values))
	for i, v := range values {
		points[i] = domain.Point{TS: int64(i) * 60_000, Price: v}
	}
	return domain.NewFrame("TCS", domain.Range6H, mode, points, appended)
}

func TestCoalescer_DrawsLatestPendingFrame(t *testing.T) {
	sink := &MockSink{block: make(chan struct{}), entered: make(chan struct{}, 8)}
	c := NewCoalescer(sink, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	require.NoError(t, c.Render(ctx, frame(domain.RenderFull, 0, 1)))
	<-sink.entered

	// The sink is busy; these collapse into one pending draw.
	require.NoError(t, c.Render(ctx, frame(domain.RenderAppend, 1, 1, 2)))
	require.NoError(t, c.Render(ctx, frame(domain.RenderAppend, 1, 1, 2, 3)))
	require.NoError(t, c.Render(ctx, frame(domain.RenderAppend, 1, 1, 2, 3, 4)))

	close(sink.block)
	require.Eventually(t, func() bool { return len(sink.Frames()) == 2 }, time.Second, 5*time.Millisecond)
	require.Never(t, func() bool { return len(sink.Frames()) > 2 }, 50*time.Millisecond, 5*time.Millisecond)

	last := sink.Frames()[1]
	assert.Equal(t, []float64{1, 2, 3, 4}, last.Values)
	assert.Equal(t, domain.RenderAppend, last.Mode)
	assert.Equal(t, 3, last.Appended)
}

func TestMergeFrames(t *testing.T) {
	tests := []struct {
		name         string
		prev, next   domain.Frame
		wantMode     domain.RenderMode
		wantAppended int
	}{
		{"Append after append", frame(domain.RenderAppend, 1, 1, 2), frame(domain.RenderAppend, 1, 1, 2, 3), domain.RenderAppend, 2},
		{"Full pending wins", frame(domain.RenderFull, 0, 1, 2), frame(domain.RenderAppend, 1, 1, 2, 3), domain.RenderFull, 0},
		{"Full next wins", frame(domain.RenderAppend, 1, 1, 2), frame(domain.RenderFull, 0, 5), domain.RenderFull, 0},
		{"Count capped at series length", frame(domain.RenderAppend, 5, 1), frame(domain.RenderAppend, 1, 1, 2), domain.RenderAppend, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mergeFrames(tt.prev, tt.next)
			assert.Equal(t, tt.wantMode, got.Mode)
			assert.Equal(t, tt.wantAppended, got.Appended)
			assert.Equal(t, tt.next.Values, got.Values)
		})
	}

	other := frame(domain.RenderAppend, 1, 1, 2)
	other.Range = domain.Range1D
	assert.Equal(t, domain.RenderFull, mergeFrames(frame(domain.RenderAppend, 1, 1), other).Mode)
}

func TestCoalescer_FlushWithoutPendingIsNoop(t *testing.T) {
	sink := &MockSink{}
	c := NewCoalescer(sink, nil)
	c.Flush(context.Background())
	assert.Empty(t, sink.Frames())
}

func TestFanout_DeliversToAllSinks(t *testing.T) {
	a := &MockSink{err: errors.New("boom")}
	b := &MockSink{}

	err := Fanout{a, nil, b}.Render(context.Background(), frame(domain.RenderFull, 0, 1))
	assert.ErrorContains(t, err, "boom")
	assert.Len(t, a.Frames(), 1)
	assert.Len(t, b.Frames(), 1)
}

func TestPNGSink_Render(t *testing.T) {
	s := NewPNGSink(400, 200, time.UTC)

	_, _, ok := s.Latest()
	assert.False(t, ok)

	tests := []struct {
		name string
		f    domain.Frame
	}{
		{"Series", frame(domain.RenderFull, 0, 100, 101, 99.5, 102)},
		{"Single point", frame(domain.RenderFull, 0, 100)},
		{"Flat series", frame(domain.RenderFull, 0, 100, 100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, s.Render(context.Background(), tt.f))
			img, at, ok := s.Latest()
			require.True(t, ok)
			assert.False(t, at.IsZero())
			assert.True(t, bytes.HasPrefix(img, pngMagic))
		})
	}

	assert.ErrorIs(t, s.Render(context.Background(), domain.Frame{}), ErrEmptyFrame)
}
