package domain

import "time"

// AuditAction captures what kind of sensitive action occurred.
type AuditAction string

const (
	AuditActionLogin        AuditAction = "login"
	AuditActionLogout       AuditAction = "logout"
	AuditActionCreate       AuditAction = "create"
	AuditActionUpdate       AuditAction = "update"
	AuditActionDelete       AuditAction = "delete"
	AuditActionApprove      AuditAction = "approve"
	AuditActionReject       AuditAction = "reject"
	AuditActionRecommend    AuditAction = "recommend"
	AuditActionPay          AuditAction = "pay"
	AuditActionStatusChange AuditAction = "status_change"
)

// RequestOrigin identifies where a request came from.
type RequestOrigin struct {
	IP        string
	UserAgent string
}

// AuditEntry is an immutable record of a sensitive action. Entries are
// append-only; no update or delete path exists.
type AuditEntry struct {
	ID         string
	Action     AuditAction
	ActorID    *string
	ActorName  string
	ActorRole  string
	EntityType string
	EntityID   string
	Detail     string
	IP         string
	UserAgent  string
	CreatedAt  time.Time
}
