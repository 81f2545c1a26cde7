package services

import (
	"context"
	"time"

	"servicecrm/internal/models"

	"go.uber.org/zap"
)

// ActionLogger records user-visible actions. Where the events end up is the
// implementation's business.
type ActionLogger interface {
	LogAction(ctx context.Context, event models.ActionEvent)
}

type zapActionLogger struct {
	log *zap.Logger
}

// NewActionLogger writes action events as structured log entries.
func NewActionLogger(log *zap.Logger) ActionLogger {
	return &zapActionLogger{log: log.Named("actions")}
}

func (l *zapActionLogger) LogAction(ctx context.Context, event models.ActionEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	fields := []zap.Field{
		zap.String("action", event.Action),
		zap.Stringer("service_center_id", event.ServiceCenterID),
		zap.Stringer("actor_id", event.ActorID),
		zap.Time("occurred_at", event.OccurredAt),
	}
	if len(event.Details) > 0 {
		fields = append(fields, zap.Any("details", event.Details))
	}
	l.log.Info("action", fields...)
}
