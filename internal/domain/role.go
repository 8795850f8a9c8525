package domain

import "strings"

// Role enumerates account roles. Legacy deployments used a looser set of
// role strings; NormalizeRole folds them into this one.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleWorker     Role = "worker"
	RoleAccountant Role = "accountant"
)

// Capability is a permitted action category granted via role.
type Capability string

const (
	CapCreateClaim Capability = "create_claim"
	CapRecommend   Capability = "recommend_claim"
	CapApprove     Capability = "approve_claim"
	CapPay         Capability = "pay_claim"
	CapManageUsers Capability = "manage_users"
)

var roleCapabilities = map[Role]map[Capability]struct{}{
	RoleAdmin: {
		CapCreateClaim: {},
		CapRecommend:   {},
		CapApprove:     {},
		CapPay:         {},
		CapManageUsers: {},
	},
	RoleAccountant: {
		CapCreateClaim: {},
		CapRecommend:   {},
		CapApprove:     {},
		CapPay:         {},
	},
	RoleWorker: {
		CapCreateClaim: {},
	},
}

// NormalizeRole maps a raw role string to its canonical Role.
func NormalizeRole(raw string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "admin", "administrator":
		return RoleAdmin, true
	case "worker", "employee":
		return RoleWorker, true
	case "accountant", "approver", "manager":
		return RoleAccountant, true
	default:
		return "", false
	}
}

// Has reports whether the role grants the capability.
func (r Role) Has(cap Capability) bool {
	caps, ok := roleCapabilities[r]
	if !ok {
		return false
	}
	_, ok = caps[cap]
	return ok
}

// IsAdmin reports whether the role carries full administrative rights.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}
