package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/vitos/live_price_chart/internal/domain"
	"go.uber.org/zap"
)

// Scheduler runs housekeeping jobs next to the poll loop.
type Scheduler struct {
	Cron      *cron.Cron
	repo      domain.StatusRepository
	retention time.Duration
	logger    *zap.Logger
	ctx       context.Context
	timeNow   func() time.Time // For testing
}

func NewScheduler(ctx context.Context, repo domain.StatusRepository, retention time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		repo:      repo,
		retention: retention,
		logger:    logger,
		ctx:       ctx,
		timeNow:   time.Now,
	}
}

// RegisterPrune schedules the status journal cleanup. A zero retention keeps everything.
func (s *Scheduler) RegisterPrune(spec string) error {
	if s.retention <= 0 {
		s.logger.Info("Status retention disabled")
		return nil
	}
	if _, err := s.Cron.AddFunc(spec, func() {
		if _, err := s.PruneNow(); err != nil {
			s.logger.Error("Failed to prune status events", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("register prune task: %w", err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.Cron.Start()
	s.logger.Info("Scheduler started", zap.Int("jobs", len(s.Cron.Entries())))
}

// Stop waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// PruneNow deletes status events older than the retention window.
func (s *Scheduler) PruneNow() (int64, error) {
	before := s.timeNow().Add(-s.retention)
	n, err := s.repo.PruneStatus(s.ctx, before)
	if err != nil {
		return 0, err
	}
	s.logger.Info("Pruned status events", zap.Int64("deleted", n), zap.Time("before", before))
	return n, nil
}
