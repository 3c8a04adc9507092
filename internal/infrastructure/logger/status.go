package logger

import (
	"context"

	"github.com/vitos/live_price_chart/internal/domain"
	"go.uber.org/zap"
)

// StatusLogger writes chart status messages to the application log.
type StatusLogger struct {
	logger *zap.Logger
}

func NewStatusLogger(logger *zap.Logger) *StatusLogger {
	return &StatusLogger{logger: logger.Named("status")}
}

func (s *StatusLogger) Report(ctx context.Context, evt domain.StatusEvent) {
	fields := []zap.Field{
		zap.String("series", evt.Series),
		zap.String("kind", string(evt.Kind)),
	}
	if evt.Severity == domain.SeverityError {
		s.logger.Error(evt.Message, fields...)
		return
	}
	s.logger.Info(evt.Message, fields...)
}
