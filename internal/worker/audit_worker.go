package worker

import (
	"github.com/spec-kit/expense-claim-service/internal/events"
	"github.com/spec-kit/expense-claim-service/internal/service"
)

var auditedEventTypes = []events.EventType{
	events.EventUserLoggedIn,
	events.EventUserLoggedOut,
	events.EventUserCreated,
	events.EventUserUpdated,
	events.EventUserStatusChanged,
	events.EventUserDeleted,
	events.EventPasswordChanged,
	events.EventClaimCreated,
	events.EventClaimUpdated,
	events.EventClaimDeleted,
	events.EventClaimStatusChanged,
}

// RegisterAuditWorker subscribes the audit service to every audited event
// type so sensitive actions land in the audit log asynchronously.
func RegisterAuditWorker(dispatcher events.Dispatcher, audits *service.AuditService) {
	for _, eventType := range auditedEventTypes {
		dispatcher.Subscribe(eventType, audits.HandleEvent)
	}
}
