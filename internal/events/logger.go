package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"erp-connector-service/internal/models"
	"erp-connector-service/internal/repository"
)

// Recorder is the sink the gateway and adapters emit integration events
// into. Implementations must never let a sink failure propagate back
// into the caller's control flow.
type Recorder interface {
	Record(ctx context.Context, event models.IntegrationEvent)
}

// Logger is the append-only integration event sink: every event is
// persisted for external consumers (dashboards, alerting) and mirrored
// to the structured log. Persistence failures are logged and swallowed;
// an integration event is a side channel, not part of the operation.
type Logger struct {
	repo *repository.EventRepository
	log  *logrus.Entry
}

// NewLogger creates an event logger. repo may be nil, in which case
// events only reach the structured log.
func NewLogger(repo *repository.EventRepository) *Logger {
	return &Logger{
		repo: repo,
		log:  logrus.WithField("component", "integration-events"),
	}
}

// Record appends one integration event
func (l *Logger) Record(ctx context.Context, event models.IntegrationEvent) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	entry := l.log.WithFields(logrus.Fields{
		"provider": event.Provider,
		"kind":     event.Kind,
	})
	if event.EntityType != "" {
		entry = entry.WithField("entityType", event.EntityType)
	}
	if event.RecordKey != "" {
		entry = entry.WithField("recordKey", event.RecordKey)
	}

	switch event.Kind {
	case models.EventAuthenticationFailure, models.EventSyncFailed, models.EventRecordFailed:
		entry.Warn("integration event")
	default:
		entry.Info("integration event")
	}

	if l.repo == nil {
		return
	}
	if err := l.repo.Create(ctx, &event); err != nil {
		entry.WithError(err).Warn("failed to persist integration event")
	}
}
