package storage

import (
	"context"
	"time"

	"github.com/vitos/live_price_chart/internal/domain"
	"go.uber.org/zap"
)

// StatusJournal persists status events. Write failures are logged and dropped.
type StatusJournal struct {
	repo   domain.StatusRepository
	logger *zap.Logger
}

func NewStatusJournal(repo domain.StatusRepository, logger *zap.Logger) *StatusJournal {
	return &StatusJournal{repo: repo, logger: logger}
}

func (j *StatusJournal) Report(ctx context.Context, evt domain.StatusEvent) {
	// Detached so a cancelled cycle still records why it ended.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := j.repo.SaveStatus(wctx, evt); err != nil {
		j.logger.Error("Failed to save status event", zap.String("kind", string(evt.Kind)), zap.Error(err))
	}
}
