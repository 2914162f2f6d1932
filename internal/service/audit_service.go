package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/contact-service/internal/events"
	"github.com/spec-kit/contact-service/internal/observability"
)

// AuditService records domain events as structured log lines and metrics.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger.Named("audit"),
		metrics:    metrics,
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	for _, t := range events.AuthEventTypes {
		a.dispatcher.Subscribe(t, a.handleAuthEvent)
	}
	for _, t := range events.ContactEventTypes {
		a.dispatcher.Subscribe(t, a.handleContactEvent)
	}
}

func (a *AuditService) handleAuthEvent(_ context.Context, event events.Event) error {
	a.metrics.RecordEvent(string(event.Type))

	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("event", string(event.Type)),
		zap.String("user_id", event.UserID),
		zap.Time("at", event.Timestamp),
	}
	if event.Payload != nil {
		fields = append(fields, zap.Any("payload", event.Payload))
	}

	switch event.Type {
	case events.EventLoginFailed, events.EventRefreshRejected:
		a.logger.Warn("auth", fields...)
	default:
		a.logger.Info("auth", fields...)
	}
	return nil
}

func (a *AuditService) handleContactEvent(_ context.Context, event events.Event) error {
	a.metrics.RecordEvent(string(event.Type))
	a.logger.Debug("contact",
		zap.String("event", string(event.Type)),
		zap.String("user_id", event.UserID),
		zap.Any("payload", event.Payload))
	return nil
}
