package events

import (
	"time"

	"github.com/spec-kit/expense-claim-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserLoggedIn       EventType = "user_logged_in"
	EventUserLoggedOut      EventType = "user_logged_out"
	EventUserCreated        EventType = "user_created"
	EventUserUpdated        EventType = "user_updated"
	EventUserStatusChanged  EventType = "user_status_changed"
	EventUserDeleted        EventType = "user_deleted"
	EventPasswordChanged    EventType = "password_changed"
	EventClaimCreated       EventType = "claim_created"
	EventClaimUpdated       EventType = "claim_updated"
	EventClaimDeleted       EventType = "claim_deleted"
	EventClaimStatusChanged EventType = "claim_status_changed"
)

// Actor encapsulates actor metadata for an event. Name and role are
// denormalized so audit entries survive later account changes.
type Actor struct {
	ID   *string     `json:"id,omitempty"`
	Name string      `json:"name"`
	Role domain.Role `json:"role"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID         string               `json:"id"`
	Type       EventType            `json:"type"`
	EntityType string               `json:"entity_type"`
	EntityID   string               `json:"entity_id"`
	Actor      Actor                `json:"actor"`
	Origin     domain.RequestOrigin `json:"origin"`
	Timestamp  time.Time            `json:"timestamp"`
	Payload    interface{}          `json:"payload"`
}

// ClaimCreatedPayload payload.
type ClaimCreatedPayload struct {
	Status   domain.ClaimStatus `json:"status"`
	Category string             `json:"category"`
	Amount   float64            `json:"amount"`
	Currency string             `json:"currency"`
}

// ClaimStatusChangedPayload payload.
type ClaimStatusChangedPayload struct {
	Action    domain.AuditAction `json:"action"`
	OldStatus domain.ClaimStatus `json:"old_status"`
	NewStatus domain.ClaimStatus `json:"new_status"`
	Amount    float64            `json:"amount"`
	Currency  string             `json:"currency"`
	Reason    string             `json:"reason,omitempty"`
	Reference string             `json:"reference,omitempty"`
}

// ClaimUpdatedPayload payload.
type ClaimUpdatedPayload struct {
	Status    domain.ClaimStatus `json:"status"`
	Amount    float64            `json:"amount"`
	Escalated bool               `json:"escalated"`
}

// ClaimDeletedPayload payload.
type ClaimDeletedPayload struct {
	Status domain.ClaimStatus `json:"status"`
	Amount float64            `json:"amount"`
}

// UserChangedPayload payload for user management events.
type UserChangedPayload struct {
	EmployeeID string            `json:"employee_id"`
	Role       domain.Role       `json:"role,omitempty"`
	Status     domain.UserStatus `json:"status,omitempty"`
}
