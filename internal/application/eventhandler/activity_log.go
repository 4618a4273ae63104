package eventhandler

import (
	"github.com/wakeup-hub/wakeup-hub/internal/domain/shared"
	"github.com/wakeup-hub/wakeup-hub/pkg/logger"
)

// ActivityLog writes every domain event as one structured log line. Level-ups
// are logged at info, the rest at debug.
type ActivityLog struct {
	logger *logger.Logger
}

// NewActivityLog creates an ActivityLog.
func NewActivityLog(log *logger.Logger) *ActivityLog {
	if log == nil {
		log = logger.Nop()
	}
	return &ActivityLog{logger: log.Named("activity")}
}

// Handle implements shared.EventHandler.
func (a *ActivityLog) Handle(event shared.Event) error {
	fields := []logger.Field{
		logger.UserID(event.AggregateID()),
		logger.String("event_type", string(event.EventType())),
		logger.Time("occurred_at", event.OccurredAt()),
		logger.Any("payload", event.Payload()),
	}
	if event.EventType() == shared.EventLevelUp {
		a.logger.Info("level up", fields...)
		return nil
	}
	a.logger.Debug("event", fields...)
	return nil
}
