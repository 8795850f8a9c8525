package dto

import (
	"time"

	"github.com/spec-kit/expense-claim-service/internal/domain"
	"github.com/spec-kit/expense-claim-service/internal/service"
)

// ReimbursementRequest is the breakdown block for reimbursement claims.
type ReimbursementRequest struct {
	BankAmount  float64 `json:"bank_amount"`
	CashAmount  float64 `json:"cash_amount"`
	VATAmount   float64 `json:"vat_amount"`
	BankAccount string  `json:"bank_account"`
}

// CreateClaimRequest submits a new expense claim. Dates arrive as text so
// both JSON and multipart form submissions decode the same way.
type CreateClaimRequest struct {
	Kind          string                `json:"kind" form:"kind"`
	ExpenseDate   string                `json:"expense_date" form:"expense_date"`
	Category      string                `json:"category" form:"category"`
	Amount        float64               `json:"amount" form:"amount"`
	Currency      string                `json:"currency" form:"currency"`
	Description   string                `json:"description" form:"description"`
	Reimbursement *ReimbursementRequest `json:"reimbursement"`
	OnBehalfOf    string                `json:"on_behalf_of" form:"on_behalf_of"`
}

// UpdateClaimRequest edits a claim. Omitted fields are untouched.
type UpdateClaimRequest struct {
	ExpenseDate   *string               `json:"expense_date" form:"expense_date"`
	Category      *string               `json:"category" form:"category"`
	Amount        *float64              `json:"amount" form:"amount"`
	Currency      *string               `json:"currency" form:"currency"`
	Description   *string               `json:"description" form:"description"`
	Reimbursement *ReimbursementRequest `json:"reimbursement"`
}

// RejectClaimRequest carries the mandatory rejection reason.
type RejectClaimRequest struct {
	Reason string `json:"reason"`
}

// PayClaimRequest carries the mandatory payment reference.
type PayClaimRequest struct {
	PaymentReference string `json:"payment_reference"`
}

// SetClaimStatusRequest is the admin status override payload.
type SetClaimStatusRequest struct {
	Status           string `json:"status"`
	Reason           string `json:"reason"`
	PaymentReference string `json:"payment_reference"`
}

// ReimbursementResponse mirrors ReimbursementRequest on the way out.
type ReimbursementResponse struct {
	BankAmount  float64 `json:"bank_amount"`
	CashAmount  float64 `json:"cash_amount"`
	VATAmount   float64 `json:"vat_amount"`
	BankAccount string  `json:"bank_account"`
}

// ClaimResponse is the public claim shape.
type ClaimResponse struct {
	ID                  string                 `json:"id"`
	OwnerID             string                 `json:"owner_id"`
	SubmitterName       string                 `json:"submitter_name"`
	SubmitterEmployeeID string                 `json:"submitter_employee_id"`
	Kind                string                 `json:"kind"`
	ExpenseDate         time.Time              `json:"expense_date"`
	Category            string                 `json:"category"`
	Amount              float64                `json:"amount"`
	Currency            string                 `json:"currency"`
	Description         string                 `json:"description,omitempty"`
	ReceiptFileName     *string                `json:"receipt_file_name,omitempty"`
	ReceiptURL          *string                `json:"receipt_url,omitempty"`
	Status              string                 `json:"status"`
	RecommendedBy       *string                `json:"recommended_by,omitempty"`
	RecommendedAt       *time.Time             `json:"recommended_at,omitempty"`
	ApprovedBy          *string                `json:"approved_by,omitempty"`
	ApprovedAt          *time.Time             `json:"approved_at,omitempty"`
	RejectedBy          *string                `json:"rejected_by,omitempty"`
	RejectedAt          *time.Time             `json:"rejected_at,omitempty"`
	RejectionReason     *string                `json:"rejection_reason,omitempty"`
	PaidBy              *string                `json:"paid_by,omitempty"`
	PaidAt              *time.Time             `json:"paid_at,omitempty"`
	PaymentReference    *string                `json:"payment_reference,omitempty"`
	Reimbursement       *ReimbursementResponse `json:"reimbursement,omitempty"`
	CreatedAt           time.Time              `json:"created_at"`
	UpdatedAt           time.Time              `json:"updated_at"`
}

// NewClaimResponse maps a domain claim.
func NewClaimResponse(claim *domain.Claim) ClaimResponse {
	resp := ClaimResponse{
		ID:                  claim.ID,
		OwnerID:             claim.OwnerID,
		SubmitterName:       claim.SubmitterName,
		SubmitterEmployeeID: claim.SubmitterEmployeeID,
		Kind:                string(claim.Kind),
		ExpenseDate:         claim.ExpenseDate,
		Category:            claim.Category,
		Amount:              claim.Amount,
		Currency:            claim.Currency,
		Description:         claim.Description,
		ReceiptFileName:     claim.ReceiptFileName,
		ReceiptURL:          claim.ReceiptURL,
		Status:              string(claim.Status),
		RecommendedBy:       claim.RecommendedBy,
		RecommendedAt:       claim.RecommendedAt,
		ApprovedBy:          claim.ApprovedBy,
		ApprovedAt:          claim.ApprovedAt,
		RejectedBy:          claim.RejectedBy,
		RejectedAt:          claim.RejectedAt,
		RejectionReason:     claim.RejectionReason,
		PaidBy:              claim.PaidBy,
		PaidAt:              claim.PaidAt,
		PaymentReference:    claim.PaymentReference,
		CreatedAt:           claim.CreatedAt,
		UpdatedAt:           claim.UpdatedAt,
	}
	if claim.Reimbursement != nil {
		resp.Reimbursement = &ReimbursementResponse{
			BankAmount:  claim.Reimbursement.BankAmount,
			CashAmount:  claim.Reimbursement.CashAmount,
			VATAmount:   claim.Reimbursement.VATAmount,
			BankAccount: claim.Reimbursement.BankAccount,
		}
	}
	return resp
}

// NewClaimListResponse maps a slice of claims.
func NewClaimListResponse(claims []domain.Claim) []ClaimResponse {
	out := make([]ClaimResponse, 0, len(claims))
	for i := range claims {
		out = append(out, NewClaimResponse(&claims[i]))
	}
	return out
}

// StatusStatResponse is one row of the by-status aggregate.
type StatusStatResponse struct {
	Status      string  `json:"status"`
	Count       int64   `json:"count"`
	TotalAmount float64 `json:"total_amount"`
}

// CategoryStatResponse is one row of the top-categories aggregate.
type CategoryStatResponse struct {
	Category    string  `json:"category"`
	Count       int64   `json:"count"`
	TotalAmount float64 `json:"total_amount"`
}

// ClaimStatsResponse is the 30-day projection.
type ClaimStatsResponse struct {
	Since         time.Time              `json:"since"`
	ByStatus      []StatusStatResponse   `json:"by_status"`
	TopCategories []CategoryStatResponse `json:"top_categories,omitempty"`
}

// NewClaimStatsResponse maps service stats.
func NewClaimStatsResponse(stats *service.ClaimStats) ClaimStatsResponse {
	resp := ClaimStatsResponse{Since: stats.Since}
	for _, row := range stats.ByStatus {
		resp.ByStatus = append(resp.ByStatus, StatusStatResponse{
			Status:      string(row.Status),
			Count:       row.Count,
			TotalAmount: row.Total,
		})
	}
	for _, row := range stats.TopCategories {
		resp.TopCategories = append(resp.TopCategories, CategoryStatResponse{
			Category:    row.Category,
			Count:       row.Count,
			TotalAmount: row.Total,
		})
	}
	return resp
}

// ToDetail converts the request block to the domain type.
func (r *ReimbursementRequest) ToDetail() *domain.ReimbursementDetail {
	if r == nil {
		return nil
	}
	return &domain.ReimbursementDetail{
		BankAmount:  r.BankAmount,
		CashAmount:  r.CashAmount,
		VATAmount:   r.VATAmount,
		BankAccount: r.BankAccount,
	}
}
