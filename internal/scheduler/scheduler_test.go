package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/live_price_chart/internal/domain"
	"go.uber.org/zap"
)

type MockStatusRepo struct {
	mu      sync.Mutex
	befores []time.Time
	err     error
}

func (m *MockStatusRepo) SaveStatus(ctx context.Context, evt domain.StatusEvent) error { return nil }

func (m *MockStatusRepo) ListStatus(ctx context.Context, limit int) ([]domain.StatusEvent, error) {
	return nil, nil
}

func (m *MockStatusRepo) PruneStatus(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.befores = append(m.befores, before)
	return 3, m.err
}

func (m *MockStatusRepo) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.befores)
}

func TestScheduler_PruneNow(t *testing.T) {
	repo := &MockStatusRepo{}
	s := NewScheduler(context.Background(), repo, 48*time.Hour, zap.NewNop())
	now := time.Date(2024, 3, 10, 3, 0, 0, 0, time.UTC)
	s.timeNow = func() time.Time { return now }

	n, err := s.PruneNow()
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.Len(t, repo.befores, 1)
	assert.Equal(t, now.Add(-48*time.Hour), repo.befores[0])

	repo.err = errors.New("disk full")
	_, err = s.PruneNow()
	assert.ErrorContains(t, err, "disk full")
}

func TestScheduler_RegisterPrune(t *testing.T) {
	repo := &MockStatusRepo{}
	s := NewScheduler(context.Background(), repo, time.Hour, zap.NewNop())

	assert.Error(t, s.RegisterPrune("not a cron"))

	require.NoError(t, s.RegisterPrune("* * * * * *"))
	s.Start()
	require.Eventually(t, func() bool { return repo.Calls() >= 1 }, 3*time.Second, 20*time.Millisecond)
	s.Stop()
}

func TestScheduler_RetentionDisabled(t *testing.T) {
	s := NewScheduler(context.Background(), &MockStatusRepo{}, 0, zap.NewNop())
	require.NoError(t, s.RegisterPrune("* * * * * *"))
	assert.Empty(t, s.Cron.Entries())
}
