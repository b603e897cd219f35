package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/crm-service/internal/events"
)

// AuditedEvents lists every event written to the audit trail.
var AuditedEvents = []events.EventType{
	events.EventUserRegistered,
	events.EventUserUpdated,
	events.EventUserRoleChanged,
	events.EventUserDeleted,
	events.EventUserAvatarChanged,
	events.EventCustomerCreated,
	events.EventCustomerUpdated,
	events.EventCustomerDeleted,
}

// AuditService writes an audit trail of account and customer changes.
type AuditService struct {
	logger *zap.Logger
}

// NewAuditService creates the service.
func NewAuditService(logger *zap.Logger) *AuditService {
	return &AuditService{logger: orNop(logger).Named("audit")}
}

// Record writes one event. Privilege changes are logged at warn.
func (a *AuditService) Record(_ context.Context, event events.Event) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.Int64("actor_id", event.ActorID),
		zap.Int64("subject_id", event.SubjectID),
		zap.Time("at", event.Timestamp),
	}
	if event.Payload != nil {
		fields = append(fields, zap.Any("payload", event.Payload))
	}

	switch event.Type {
	case events.EventUserRoleChanged, events.EventUserDeleted:
		a.logger.Warn(string(event.Type), fields...)
	default:
		a.logger.Info(string(event.Type), fields...)
	}
	return nil
}
