package domain

import (
	"strings"
	"time"
)

// ClaimStatus enumerates lifecycle states for expense claims.
type ClaimStatus string

const (
	ClaimStatusNew            ClaimStatus = "new"
	ClaimStatusPending        ClaimStatus = "pending"
	ClaimStatusRecommendation ClaimStatus = "recommendation"
	ClaimStatusVerified       ClaimStatus = "verified"
	ClaimStatusUnderReview    ClaimStatus = "under_review"
	ClaimStatusApproved       ClaimStatus = "approved"
	ClaimStatusRejected       ClaimStatus = "rejected"
	ClaimStatusPaid           ClaimStatus = "paid"
)

// AllClaimStatuses is the full superset of supported states. Deployments may
// enable a subset via configuration.
var AllClaimStatuses = []ClaimStatus{
	ClaimStatusNew,
	ClaimStatusPending,
	ClaimStatusRecommendation,
	ClaimStatusVerified,
	ClaimStatusUnderReview,
	ClaimStatusApproved,
	ClaimStatusRejected,
	ClaimStatusPaid,
}

// ValidClaimStatus reports whether the raw value names a known status.
func ValidClaimStatus(raw string) (ClaimStatus, bool) {
	candidate := ClaimStatus(strings.ToLower(strings.TrimSpace(raw)))
	for _, status := range AllClaimStatuses {
		if status == candidate {
			return status, true
		}
	}
	return "", false
}

// IsDecided reports whether a decision has been recorded for the status.
func (s ClaimStatus) IsDecided() bool {
	return s == ClaimStatusApproved || s == ClaimStatusRejected || s == ClaimStatusPaid
}

// ClaimKind distinguishes the simple expense form from the richer
// reimbursement form. Both share one lifecycle.
type ClaimKind string

const (
	ClaimKindSimple        ClaimKind = "simple"
	ClaimKindReimbursement ClaimKind = "reimbursement"
)

// ReimbursementDetail carries the breakdown fields used by the
// reimbursement claim kind.
type ReimbursementDetail struct {
	BankAmount  float64
	CashAmount  float64
	VATAmount   float64
	BankAccount string
}

// Claim is the aggregate for employee expense claims.
type Claim struct {
	ID                  string
	OwnerID             string
	SubmitterName       string
	SubmitterEmployeeID string
	Kind                ClaimKind
	ExpenseDate         time.Time
	Category            string
	Amount              float64
	Currency            string
	Description         string
	ReceiptFileName     *string
	ReceiptURL          *string
	Status              ClaimStatus
	RecommendedBy       *string
	RecommendedAt       *time.Time
	ApprovedBy          *string
	ApprovedAt          *time.Time
	RejectedBy          *string
	RejectedAt          *time.Time
	RejectionReason     *string
	PaidBy              *string
	PaidAt              *time.Time
	PaymentReference    *string
	Reimbursement       *ReimbursementDetail
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
