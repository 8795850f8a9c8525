package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/expense-claim-service/internal/config"
	"github.com/spec-kit/expense-claim-service/internal/domain"
	"github.com/spec-kit/expense-claim-service/internal/events"
	"github.com/spec-kit/expense-claim-service/internal/repository"
	apperrors "github.com/spec-kit/expense-claim-service/pkg/util"
)

// ClaimService is the lifecycle engine for expense claims. All status
// transitions funnel through it; the per-action methods are the canonical
// transition surface and SetStatus is a deprecated admin override that
// delegates to them.
type ClaimService struct {
	claims     repository.ClaimRepository
	users      repository.UserRepository
	dispatcher events.Dispatcher
	cfg        config.ClaimsConfig
	enabled    map[domain.ClaimStatus]struct{}
}

// ClaimDependencies bundles repositories for the claim service.
type ClaimDependencies struct {
	ClaimRepo  repository.ClaimRepository
	UserRepo   repository.UserRepository
	Dispatcher events.Dispatcher
}

// ClaimCreateInput describes claim creation payload.
type ClaimCreateInput struct {
	Kind                 domain.ClaimKind
	ExpenseDate          time.Time
	Category             string
	Amount               float64
	Currency             string
	Description          string
	ReceiptFileName      *string
	ReceiptURL           *string
	Reimbursement        *domain.ReimbursementDetail
	OnBehalfOfEmployeeID string
}

// ClaimUpdateInput describes editable claim fields. Nil pointers leave the
// stored value untouched.
type ClaimUpdateInput struct {
	ExpenseDate     *time.Time
	Category        *string
	Amount          *float64
	Currency        *string
	Description     *string
	ReceiptFileName *string
	ReceiptURL      *string
	Reimbursement   *domain.ReimbursementDetail
}

// ClaimListFilter describes listing filters.
type ClaimListFilter struct {
	Statuses []domain.ClaimStatus
	Category *string
	OwnerID  *string
	DateFrom *time.Time
	DateTo   *time.Time
	Limit    int
	Offset   int
}

// ClaimStats is the 30-day rolling projection returned by Stats.
type ClaimStats struct {
	Since         time.Time
	ByStatus      []repository.StatusStat
	TopCategories []repository.CategoryStat
}

// NewClaimService constructs the service.
func NewClaimService(cfg config.ClaimsConfig, deps ClaimDependencies) *ClaimService {
	enabled := make(map[domain.ClaimStatus]struct{}, len(cfg.EnabledStatuses))
	for _, status := range cfg.EnabledStatuses {
		enabled[status] = struct{}{}
	}
	if len(enabled) == 0 {
		for _, status := range domain.AllClaimStatuses {
			enabled[status] = struct{}{}
		}
	}
	return &ClaimService{
		claims:     deps.ClaimRepo,
		users:      deps.UserRepo,
		dispatcher: deps.Dispatcher,
		cfg:        cfg,
		enabled:    enabled,
	}
}

var (
	recommendFromStatuses = []domain.ClaimStatus{
		domain.ClaimStatusNew,
		domain.ClaimStatusPending,
	}
	decisionFromStatuses = []domain.ClaimStatus{
		domain.ClaimStatusNew,
		domain.ClaimStatusPending,
		domain.ClaimStatusRecommendation,
		domain.ClaimStatusVerified,
		domain.ClaimStatusUnderReview,
	}
	editableStatuses = []domain.ClaimStatus{
		domain.ClaimStatusNew,
		domain.ClaimStatusPending,
		domain.ClaimStatusRecommendation,
	}
	deletableStatuses = []domain.ClaimStatus{
		domain.ClaimStatusNew,
	}
)

// CreateClaim creates a claim for the actor, or on behalf of another
// employee when the actor is an admin. Claims above the escalation
// threshold start in pending rather than new.
func (s *ClaimService) CreateClaim(ctx context.Context, actor *domain.User, input ClaimCreateInput, origin domain.RequestOrigin) (*domain.Claim, error) {
	if !actor.Role.Has(domain.CapCreateClaim) {
		return nil, apperrors.NewForbidden("cannot create claims")
	}
	if input.Amount < 0 {
		return nil, apperrors.NewValidationError("amount must not be negative", map[string]any{"amount": "must be >= 0"})
	}
	if strings.TrimSpace(input.Category) == "" {
		return nil, apperrors.NewValidationError("category required", map[string]any{"category": "required"})
	}
	if input.ExpenseDate.IsZero() {
		return nil, apperrors.NewValidationError("expense date required", map[string]any{"date": "required"})
	}

	owner := actor
	if input.OnBehalfOfEmployeeID != "" {
		if !actor.Role.IsAdmin() {
			return nil, apperrors.NewForbidden("cannot create claims for other employees")
		}
		resolved, err := s.users.GetByEmployeeID(ctx, domain.NormalizeEmployeeID(input.OnBehalfOfEmployeeID))
		if err != nil {
			if err == pgx.ErrNoRows {
				return nil, apperrors.NewNotFound("employee", nil)
			}
			return nil, apperrors.MapError(err)
		}
		owner = resolved
	}

	kind := input.Kind
	if kind == "" {
		kind = domain.ClaimKindSimple
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "USD"
	}

	seq, err := s.claims.NextSequence(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	claim := &domain.Claim{
		ID:                  formatClaimID(s.cfg.IDPrefix, seq),
		OwnerID:             owner.ID,
		SubmitterName:       owner.Name,
		SubmitterEmployeeID: owner.EmployeeID,
		Kind:                kind,
		ExpenseDate:         input.ExpenseDate,
		Category:            strings.TrimSpace(input.Category),
		Amount:              input.Amount,
		Currency:            currency,
		Description:         strings.TrimSpace(input.Description),
		ReceiptFileName:     input.ReceiptFileName,
		ReceiptURL:          input.ReceiptURL,
		Status:              s.initialStatus(input.Amount),
	}
	if kind == domain.ClaimKindReimbursement {
		claim.Reimbursement = input.Reimbursement
		if claim.Reimbursement == nil {
			claim.Reimbursement = &domain.ReimbursementDetail{}
		}
	}

	if err := s.claims.Create(ctx, claim); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:       events.EventClaimCreated,
		EntityType: "claim",
		EntityID:   claim.ID,
		Actor:      actorRef(actor),
		Origin:     origin,
		Payload: events.ClaimCreatedPayload{
			Status:   claim.Status,
			Category: claim.Category,
			Amount:   claim.Amount,
			Currency: claim.Currency,
		},
	})
	return claim, nil
}

// ListClaims returns claims matching the filter. Non-admin callers are
// always scoped to their own records.
func (s *ClaimService) ListClaims(ctx context.Context, actor *domain.User, filter ClaimListFilter) ([]domain.Claim, error) {
	repoFilter := repository.ClaimFilter{
		Statuses: filter.Statuses,
		Category: filter.Category,
		DateFrom: filter.DateFrom,
		DateTo:   filter.DateTo,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	}
	if actor.Role.IsAdmin() {
		repoFilter.OwnerID = filter.OwnerID
	} else {
		ownerID := actor.ID
		repoFilter.OwnerID = &ownerID
	}
	return s.claims.ListWithFilter(ctx, repoFilter)
}

// GetClaim fetches a single claim, ensuring owner-or-admin access. The
// denial is generic so existence is not leaked to unauthorized callers.
func (s *ClaimService) GetClaim(ctx context.Context, actor *domain.User, claimID string) (*domain.Claim, error) {
	claim, err := s.getClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if err := requireOwnerOrAdmin(actor, claim); err != nil {
		return nil, err
	}
	return claim, nil
}

// UpdateClaim edits mutable fields while the claim is still in an early
// status. Crossing the escalation threshold while new promotes to pending.
func (s *ClaimService) UpdateClaim(ctx context.Context, actor *domain.User, claimID string, input ClaimUpdateInput, origin domain.RequestOrigin) (*domain.Claim, error) {
	claim, err := s.getClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if err := requireOwnerOrAdmin(actor, claim); err != nil {
		return nil, err
	}
	editable := s.enabledSubset(editableStatuses)
	if !statusIn(claim.Status, editable) {
		return nil, apperrors.NewConflict("claim can no longer be edited", map[string]any{"status": claim.Status})
	}

	if input.Amount != nil {
		if *input.Amount < 0 {
			return nil, apperrors.NewValidationError("amount must not be negative", map[string]any{"amount": "must be >= 0"})
		}
		claim.Amount = *input.Amount
	}
	if input.ExpenseDate != nil {
		claim.ExpenseDate = *input.ExpenseDate
	}
	if input.Category != nil {
		if strings.TrimSpace(*input.Category) == "" {
			return nil, apperrors.NewValidationError("category required", map[string]any{"category": "required"})
		}
		claim.Category = strings.TrimSpace(*input.Category)
	}
	if input.Currency != nil && strings.TrimSpace(*input.Currency) != "" {
		claim.Currency = strings.ToUpper(strings.TrimSpace(*input.Currency))
	}
	if input.Description != nil {
		claim.Description = strings.TrimSpace(*input.Description)
	}
	if input.ReceiptFileName != nil {
		claim.ReceiptFileName = input.ReceiptFileName
	}
	if input.ReceiptURL != nil {
		claim.ReceiptURL = input.ReceiptURL
	}
	if input.Reimbursement != nil && claim.Kind == domain.ClaimKindReimbursement {
		claim.Reimbursement = input.Reimbursement
	}

	escalated := false
	if claim.Status == domain.ClaimStatusNew && s.shouldEscalate(claim.Amount) {
		claim.Status = domain.ClaimStatusPending
		escalated = true
	}

	if err := s.claims.UpdateFields(ctx, claim, editable); err != nil {
		if err == pgx.ErrNoRows {
			return nil, s.explainStaleWrite(ctx, claim.ID, "claim can no longer be edited")
		}
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:       events.EventClaimUpdated,
		EntityType: "claim",
		EntityID:   claim.ID,
		Actor:      actorRef(actor),
		Origin:     origin,
		Payload: events.ClaimUpdatedPayload{
			Status:    claim.Status,
			Amount:    claim.Amount,
			Escalated: escalated,
		},
	})
	return claim, nil
}

// DeleteClaim removes a claim while no decision has been made yet.
func (s *ClaimService) DeleteClaim(ctx context.Context, actor *domain.User, claimID string, origin domain.RequestOrigin) error {
	claim, err := s.getClaim(ctx, claimID)
	if err != nil {
		return err
	}
	if err := requireOwnerOrAdmin(actor, claim); err != nil {
		return err
	}
	if err := s.claims.Delete(ctx, claim.ID, deletableStatuses); err != nil {
		if err == pgx.ErrNoRows {
			return s.explainStaleWrite(ctx, claim.ID, "only unreviewed claims can be deleted")
		}
		return apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:       events.EventClaimDeleted,
		EntityType: "claim",
		EntityID:   claim.ID,
		Actor:      actorRef(actor),
		Origin:     origin,
		Payload: events.ClaimDeletedPayload{
			Status: claim.Status,
			Amount: claim.Amount,
		},
	})
	return nil
}

// RecommendClaim submits a claim for review.
func (s *ClaimService) RecommendClaim(ctx context.Context, actor *domain.User, claimID string, origin domain.RequestOrigin) (*domain.Claim, error) {
	if !actor.Role.Has(domain.CapRecommend) {
		return nil, apperrors.NewForbidden("insufficient role")
	}
	if !s.statusEnabled(domain.ClaimStatusRecommendation) {
		return nil, apperrors.NewConflict("recommendation stage is not enabled", nil)
	}
	claim, err := s.getClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	allowed := s.enabledSubset(recommendFromStatuses)
	if !statusIn(claim.Status, allowed) {
		return nil, apperrors.NewConflict("claim cannot be recommended in current status", map[string]any{"status": claim.Status})
	}

	now := time.Now()
	oldStatus := claim.Status
	claim.Status = domain.ClaimStatusRecommendation
	claim.RecommendedBy = &actor.ID
	claim.RecommendedAt = &now

	if err := s.applyTransition(ctx, claim, allowed); err != nil {
		return nil, err
	}
	s.publishStatusChange(ctx, actor, claim, origin, domain.AuditActionRecommend, oldStatus, "", "")
	return claim, nil
}

// ApproveClaim approves a claim that has not yet received a decision.
func (s *ClaimService) ApproveClaim(ctx context.Context, actor *domain.User, claimID string, origin domain.RequestOrigin) (*domain.Claim, error) {
	if !actor.Role.Has(domain.CapApprove) {
		return nil, apperrors.NewForbidden("insufficient role")
	}
	claim, err := s.getClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if claim.Status == domain.ClaimStatusApproved {
		return nil, apperrors.NewConflict("claim is already approved", nil)
	}
	allowed := s.enabledSubset(decisionFromStatuses)
	if !statusIn(claim.Status, allowed) {
		return nil, apperrors.NewConflict("claim cannot be approved in current status", map[string]any{"status": claim.Status})
	}

	now := time.Now()
	oldStatus := claim.Status
	claim.Status = domain.ClaimStatusApproved
	claim.ApprovedBy = &actor.ID
	claim.ApprovedAt = &now

	if err := s.applyTransition(ctx, claim, allowed); err != nil {
		return nil, err
	}
	s.publishStatusChange(ctx, actor, claim, origin, domain.AuditActionApprove, oldStatus, "", "")
	return claim, nil
}

// RejectClaim rejects a claim; a non-empty reason is required.
func (s *ClaimService) RejectClaim(ctx context.Context, actor *domain.User, claimID, reason string, origin domain.RequestOrigin) (*domain.Claim, error) {
	if !actor.Role.Has(domain.CapApprove) {
		return nil, apperrors.NewForbidden("insufficient role")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.NewValidationError("rejection reason required", map[string]any{"reason": "required"})
	}
	claim, err := s.getClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	allowed := s.enabledSubset(decisionFromStatuses)
	if !statusIn(claim.Status, allowed) {
		return nil, apperrors.NewConflict("claim cannot be rejected in current status", map[string]any{"status": claim.Status})
	}

	now := time.Now()
	oldStatus := claim.Status
	claim.Status = domain.ClaimStatusRejected
	claim.RejectedBy = &actor.ID
	claim.RejectedAt = &now
	claim.RejectionReason = &reason

	if err := s.applyTransition(ctx, claim, allowed); err != nil {
		return nil, err
	}
	s.publishStatusChange(ctx, actor, claim, origin, domain.AuditActionReject, oldStatus, reason, "")
	return claim, nil
}

// PayClaim marks an approved claim as paid; a payment reference is required.
func (s *ClaimService) PayClaim(ctx context.Context, actor *domain.User, claimID, paymentRef string, origin domain.RequestOrigin) (*domain.Claim, error) {
	if !actor.Role.Has(domain.CapPay) {
		return nil, apperrors.NewForbidden("insufficient role")
	}
	paymentRef = strings.TrimSpace(paymentRef)
	if paymentRef == "" {
		return nil, apperrors.NewValidationError("payment reference required", map[string]any{"payment_reference": "required"})
	}
	claim, err := s.getClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	allowed := []domain.ClaimStatus{domain.ClaimStatusApproved}
	if claim.Status != domain.ClaimStatusApproved {
		return nil, apperrors.NewConflict("only approved claims can be paid", map[string]any{"status": claim.Status})
	}

	now := time.Now()
	oldStatus := claim.Status
	claim.Status = domain.ClaimStatusPaid
	claim.PaidBy = &actor.ID
	claim.PaidAt = &now
	claim.PaymentReference = &paymentRef

	if err := s.applyTransition(ctx, claim, allowed); err != nil {
		return nil, err
	}
	s.publishStatusChange(ctx, actor, claim, origin, domain.AuditActionPay, oldStatus, "", paymentRef)
	return claim, nil
}

// SetStatus is the deprecated admin override for direct status changes. It
// delegates to the per-action methods so every transition guard and
// required field still applies.
func (s *ClaimService) SetStatus(ctx context.Context, actor *domain.User, claimID string, target domain.ClaimStatus, reason, paymentRef string, origin domain.RequestOrigin) (*domain.Claim, error) {
	if !actor.Role.IsAdmin() {
		return nil, apperrors.NewForbidden("admin role required")
	}
	claim, err := s.getClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if claim.Status == target {
		return nil, apperrors.NewConflict("claim is already in requested status", map[string]any{"status": target})
	}

	switch target {
	case domain.ClaimStatusApproved:
		return s.ApproveClaim(ctx, actor, claimID, origin)
	case domain.ClaimStatusRejected:
		return s.RejectClaim(ctx, actor, claimID, reason, origin)
	case domain.ClaimStatusPaid:
		return s.PayClaim(ctx, actor, claimID, paymentRef, origin)
	case domain.ClaimStatusPending:
		return s.escalateToPending(ctx, actor, claim, origin)
	default:
		return nil, apperrors.NewValidationError("unsupported target status", map[string]any{"status": target})
	}
}

// Stats returns the 30-day rolling aggregate projection. Non-admin callers
// see only their own claims; admins also get the top categories by amount.
func (s *ClaimService) Stats(ctx context.Context, actor *domain.User) (*ClaimStats, error) {
	since := time.Now().AddDate(0, 0, -30)

	var ownerID *string
	if !actor.Role.IsAdmin() {
		id := actor.ID
		ownerID = &id
	}
	byStatus, err := s.claims.StatsByStatus(ctx, since, ownerID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	stats := &ClaimStats{Since: since, ByStatus: byStatus}

	if actor.Role.IsAdmin() {
		top, err := s.claims.TopCategories(ctx, since, 5)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		stats.TopCategories = top
	}
	return stats, nil
}

func (s *ClaimService) escalateToPending(ctx context.Context, actor *domain.User, claim *domain.Claim, origin domain.RequestOrigin) (*domain.Claim, error) {
	allowed := []domain.ClaimStatus{domain.ClaimStatusNew}
	if claim.Status != domain.ClaimStatusNew {
		return nil, apperrors.NewConflict("only new claims can be moved to pending", map[string]any{"status": claim.Status})
	}
	oldStatus := claim.Status
	claim.Status = domain.ClaimStatusPending
	if err := s.applyTransition(ctx, claim, allowed); err != nil {
		return nil, err
	}
	s.publishStatusChange(ctx, actor, claim, origin, domain.AuditActionStatusChange, oldStatus, "", "")
	return claim, nil
}

func (s *ClaimService) getClaim(ctx context.Context, claimID string) (*domain.Claim, error) {
	claim, err := s.claims.GetByID(ctx, claimID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("claim", nil)
		}
		return nil, apperrors.MapError(err)
	}
	return claim, nil
}

// applyTransition performs the conditional status write. A zero-row result
// means the claim changed (or vanished) between read and write; the loser
// of a race observes a conflict, never a silent overwrite.
func (s *ClaimService) applyTransition(ctx context.Context, claim *domain.Claim, expected []domain.ClaimStatus) error {
	if err := s.claims.UpdateStatusFrom(ctx, claim, expected); err != nil {
		if err == pgx.ErrNoRows {
			return s.explainStaleWrite(ctx, claim.ID, "claim status changed concurrently")
		}
		return apperrors.MapError(err)
	}
	return nil
}

func (s *ClaimService) explainStaleWrite(ctx context.Context, claimID, conflictMsg string) error {
	current, err := s.claims.GetByID(ctx, claimID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.NewNotFound("claim", nil)
		}
		return apperrors.MapError(err)
	}
	return apperrors.NewConflict(conflictMsg, map[string]any{"status": current.Status})
}

func (s *ClaimService) publishStatusChange(ctx context.Context, actor *domain.User, claim *domain.Claim, origin domain.RequestOrigin, action domain.AuditAction, oldStatus domain.ClaimStatus, reason, reference string) {
	s.publishEvent(ctx, events.Event{
		Type:       events.EventClaimStatusChanged,
		EntityType: "claim",
		EntityID:   claim.ID,
		Actor:      actorRef(actor),
		Origin:     origin,
		Payload: events.ClaimStatusChangedPayload{
			Action:    action,
			OldStatus: oldStatus,
			NewStatus: claim.Status,
			Amount:    claim.Amount,
			Currency:  claim.Currency,
			Reason:    reason,
			Reference: reference,
		},
	})
}

func (s *ClaimService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func (s *ClaimService) initialStatus(amount float64) domain.ClaimStatus {
	if s.shouldEscalate(amount) {
		return domain.ClaimStatusPending
	}
	return domain.ClaimStatusNew
}

func (s *ClaimService) shouldEscalate(amount float64) bool {
	return s.cfg.EscalationThreshold > 0 &&
		amount > s.cfg.EscalationThreshold &&
		s.statusEnabled(domain.ClaimStatusPending)
}

func (s *ClaimService) statusEnabled(status domain.ClaimStatus) bool {
	_, ok := s.enabled[status]
	return ok
}

func (s *ClaimService) enabledSubset(statuses []domain.ClaimStatus) []domain.ClaimStatus {
	subset := make([]domain.ClaimStatus, 0, len(statuses))
	for _, status := range statuses {
		if s.statusEnabled(status) {
			subset = append(subset, status)
		}
	}
	return subset
}

func requireOwnerOrAdmin(actor *domain.User, claim *domain.Claim) error {
	if claim.OwnerID == actor.ID || actor.Role.IsAdmin() {
		return nil
	}
	return apperrors.NewForbidden("access denied")
}

func statusIn(status domain.ClaimStatus, set []domain.ClaimStatus) bool {
	for _, candidate := range set {
		if candidate == status {
			return true
		}
	}
	return false
}

func formatClaimID(prefix string, seq int64) string {
	if prefix == "" {
		prefix = "EXP"
	}
	return strings.ToUpper(prefix) + "-" + padSequence(seq)
}

func padSequence(seq int64) string {
	digits := []byte{}
	for seq > 0 {
		digits = append([]byte{byte('0' + seq%10)}, digits...)
		seq /= 10
	}
	for len(digits) < 4 {
		digits = append([]byte{'0'}, digits...)
	}
	return string(digits)
}

func actorRef(actor *domain.User) events.Actor {
	id := actor.ID
	return events.Actor{
		ID:   &id,
		Name: actor.Name,
		Role: actor.Role,
	}
}
