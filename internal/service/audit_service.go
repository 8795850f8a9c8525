package service

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/expense-claim-service/internal/domain"
	"github.com/spec-kit/expense-claim-service/internal/events"
	"github.com/spec-kit/expense-claim-service/internal/observability"
	"github.com/spec-kit/expense-claim-service/internal/repository"
)

// AuditService turns domain events into append-only audit entries. Writes
// are best-effort: a failed write never propagates back to the action that
// triggered it, it is only logged and counted.
type AuditService struct {
	audits  repository.AuditRepository
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewAuditService constructs the service.
func NewAuditService(audits repository.AuditRepository, logger *zap.Logger, metrics *observability.Metrics) *AuditService {
	return &AuditService{audits: audits, logger: logger, metrics: metrics}
}

// HandleEvent records an audit entry for the event.
func (s *AuditService) HandleEvent(ctx context.Context, event events.Event) error {
	entry := &domain.AuditEntry{
		Action:     actionForEvent(event),
		ActorID:    event.Actor.ID,
		ActorName:  event.Actor.Name,
		ActorRole:  string(event.Actor.Role),
		EntityType: event.EntityType,
		EntityID:   event.EntityID,
		Detail:     detailForEvent(event),
		IP:         event.Origin.IP,
		UserAgent:  event.Origin.UserAgent,
	}

	if err := s.audits.Create(ctx, entry); err != nil {
		s.logger.Error("failed to persist audit entry",
			zap.String("action", string(entry.Action)),
			zap.String("entity_id", entry.EntityID),
			zap.Error(err))
		s.metrics.RecordAuditFailure()
	}
	return nil
}

func actionForEvent(event events.Event) domain.AuditAction {
	switch event.Type {
	case events.EventUserLoggedIn:
		return domain.AuditActionLogin
	case events.EventUserLoggedOut:
		return domain.AuditActionLogout
	case events.EventUserCreated, events.EventClaimCreated:
		return domain.AuditActionCreate
	case events.EventUserUpdated, events.EventClaimUpdated, events.EventPasswordChanged:
		return domain.AuditActionUpdate
	case events.EventUserDeleted, events.EventClaimDeleted:
		return domain.AuditActionDelete
	case events.EventUserStatusChanged:
		return domain.AuditActionStatusChange
	case events.EventClaimStatusChanged:
		if payload, ok := event.Payload.(events.ClaimStatusChangedPayload); ok {
			return payload.Action
		}
		return domain.AuditActionStatusChange
	default:
		return domain.AuditActionUpdate
	}
}

func detailForEvent(event events.Event) string {
	switch payload := event.Payload.(type) {
	case events.ClaimStatusChangedPayload:
		detail := fmt.Sprintf("%s -> %s (%.2f %s)", payload.OldStatus, payload.NewStatus, payload.Amount, payload.Currency)
		if payload.Reason != "" {
			detail += ": " + payload.Reason
		}
		if payload.Reference != "" {
			detail += " (ref " + payload.Reference + ")"
		}
		return detail
	case nil:
		return string(event.Type)
	default:
		encoded, err := json.Marshal(payload)
		if err != nil {
			return string(event.Type)
		}
		return string(encoded)
	}
}
