package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/expense-claim-service/internal/api/dto"
	"github.com/spec-kit/expense-claim-service/internal/domain"
	"github.com/spec-kit/expense-claim-service/internal/service"
	"github.com/spec-kit/expense-claim-service/internal/storage"
	apperrors "github.com/spec-kit/expense-claim-service/pkg/util"
)

// ClaimsHandler exposes the expense claim endpoints.
type ClaimsHandler struct {
	claims   *service.ClaimService
	receipts storage.ReceiptStore
}

// NewClaimsHandler constructs handler.
func NewClaimsHandler(claims *service.ClaimService, receipts storage.ReceiptStore) *ClaimsHandler {
	return &ClaimsHandler{claims: claims, receipts: receipts}
}

// Create submits a new claim. Accepts JSON or multipart form; a multipart
// "receipt" file is stored and linked in the same request.
func (h *ClaimsHandler) Create(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.CreateClaimRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	kind := domain.ClaimKind(req.Kind)
	if req.Kind != "" && kind != domain.ClaimKindSimple && kind != domain.ClaimKindReimbursement {
		return apperrors.NewValidationError("unknown claim kind", map[string]any{"kind": req.Kind})
	}
	expenseDate, err := parseExpenseDate(req.ExpenseDate)
	if err != nil {
		return err
	}

	input := service.ClaimCreateInput{
		Kind:                 kind,
		ExpenseDate:          expenseDate,
		Category:             req.Category,
		Amount:               req.Amount,
		Currency:             req.Currency,
		Description:          req.Description,
		Reimbursement:        req.Reimbursement.ToDetail(),
		OnBehalfOfEmployeeID: req.OnBehalfOf,
	}
	fileName, fileURL, err := h.saveReceiptIfAttached(c)
	if err != nil {
		return err
	}
	if fileName != nil {
		input.ReceiptFileName = fileName
		input.ReceiptURL = fileURL
	}

	claim, err := h.claims.CreateClaim(c.Context(), p.User, input, requestOrigin(c))
	if err != nil {
		return err
	}
	return respondCreated(c, dto.NewClaimResponse(claim))
}

// List returns claims matching query filters. Non-admins always see only
// their own.
func (h *ClaimsHandler) List(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}

	filter := service.ClaimListFilter{
		Limit:  queryInt(c, "limit", 50),
		Offset: queryInt(c, "offset", 0),
	}
	if raw := c.Query("status"); raw != "" {
		status, ok := domain.ValidClaimStatus(raw)
		if !ok {
			return apperrors.NewValidationError("unknown status", map[string]any{"status": raw})
		}
		filter.Statuses = []domain.ClaimStatus{status}
	}
	if raw := c.Query("category"); raw != "" {
		filter.Category = &raw
	}
	if raw := c.Query("owner_id"); raw != "" {
		filter.OwnerID = &raw
	}
	if raw := c.Query("date_from"); raw != "" {
		parsed, parseErr := time.Parse("2006-01-02", raw)
		if parseErr != nil {
			return apperrors.NewValidationError("invalid date_from", map[string]any{"date_from": raw})
		}
		filter.DateFrom = &parsed
	}
	if raw := c.Query("date_to"); raw != "" {
		parsed, parseErr := time.Parse("2006-01-02", raw)
		if parseErr != nil {
			return apperrors.NewValidationError("invalid date_to", map[string]any{"date_to": raw})
		}
		filter.DateTo = &parsed
	}

	claims, err := h.claims.ListClaims(c.Context(), p.User, filter)
	if err != nil {
		return err
	}
	return respondOK(c, dto.NewClaimListResponse(claims))
}

// Stats returns the 30-day aggregate projection.
func (h *ClaimsHandler) Stats(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	stats, err := h.claims.Stats(c.Context(), p.User)
	if err != nil {
		return err
	}
	return respondOK(c, dto.NewClaimStatsResponse(stats))
}

// Get returns one claim.
func (h *ClaimsHandler) Get(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	claim, err := h.claims.GetClaim(c.Context(), p.User, c.Params("id"))
	if err != nil {
		return err
	}
	return respondOK(c, dto.NewClaimResponse(claim))
}

// Update edits an early-status claim.
func (h *ClaimsHandler) Update(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.UpdateClaimRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	input := service.ClaimUpdateInput{
		Category:      req.Category,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Description:   req.Description,
		Reimbursement: req.Reimbursement.ToDetail(),
	}
	if req.ExpenseDate != nil {
		parsed, parseErr := parseExpenseDate(*req.ExpenseDate)
		if parseErr != nil {
			return parseErr
		}
		input.ExpenseDate = &parsed
	}
	fileName, fileURL, err := h.saveReceiptIfAttached(c)
	if err != nil {
		return err
	}
	if fileName != nil {
		input.ReceiptFileName = fileName
		input.ReceiptURL = fileURL
	}

	claim, err := h.claims.UpdateClaim(c.Context(), p.User, c.Params("id"), input, requestOrigin(c))
	if err != nil {
		return err
	}
	return respondOK(c, dto.NewClaimResponse(claim))
}

// Delete removes an unreviewed claim.
func (h *ClaimsHandler) Delete(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	if err := h.claims.DeleteClaim(c.Context(), p.User, c.Params("id"), requestOrigin(c)); err != nil {
		return err
	}
	return respondMessage(c, "claim deleted")
}

// Recommend submits a claim for review.
func (h *ClaimsHandler) Recommend(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	claim, err := h.claims.RecommendClaim(c.Context(), p.User, c.Params("id"), requestOrigin(c))
	if err != nil {
		return err
	}
	return respondOK(c, dto.NewClaimResponse(claim))
}

// Approve approves a claim.
func (h *ClaimsHandler) Approve(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	claim, err := h.claims.ApproveClaim(c.Context(), p.User, c.Params("id"), requestOrigin(c))
	if err != nil {
		return err
	}
	return respondOK(c, dto.NewClaimResponse(claim))
}

// Reject rejects a claim with a mandatory reason.
func (h *ClaimsHandler) Reject(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.RejectClaimRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	claim, err := h.claims.RejectClaim(c.Context(), p.User, c.Params("id"), req.Reason, requestOrigin(c))
	if err != nil {
		return err
	}
	return respondOK(c, dto.NewClaimResponse(claim))
}

// Pay marks an approved claim as paid.
func (h *ClaimsHandler) Pay(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.PayClaimRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	claim, err := h.claims.PayClaim(c.Context(), p.User, c.Params("id"), req.PaymentReference, requestOrigin(c))
	if err != nil {
		return err
	}
	return respondOK(c, dto.NewClaimResponse(claim))
}

// SetStatus is the admin status override.
//
// Deprecated: prefer the per-action endpoints; this exists for older clients.
func (h *ClaimsHandler) SetStatus(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.SetClaimStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	status, ok := domain.ValidClaimStatus(req.Status)
	if !ok {
		return apperrors.NewValidationError("unknown status", map[string]any{"status": req.Status})
	}

	claim, err := h.claims.SetStatus(c.Context(), p.User, c.Params("id"), status, req.Reason, req.PaymentReference, requestOrigin(c))
	if err != nil {
		return err
	}
	return respondOK(c, dto.NewClaimResponse(claim))
}

// UploadReceipt stores a receipt file and returns its reference. The claim
// itself is linked by a follow-up update.
func (h *ClaimsHandler) UploadReceipt(c *fiber.Ctx) error {
	if _, err := principal(c); err != nil {
		return err
	}
	fileHeader, err := c.FormFile("receipt")
	if err != nil {
		return apperrors.NewValidationError("receipt file required", map[string]any{"receipt": "required"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return apperrors.MapError(err)
	}
	defer file.Close()

	name, url, err := h.receipts.Save(c.Context(), fileHeader.Filename, file)
	if err != nil {
		return apperrors.MapError(err)
	}
	return respondCreated(c, fiber.Map{
		"file_name": name,
		"url":       url,
	})
}

// saveReceiptIfAttached stores a multipart "receipt" file when one was sent.
// JSON requests simply have no file and fall through.
func (h *ClaimsHandler) saveReceiptIfAttached(c *fiber.Ctx) (*string, *string, error) {
	fileHeader, err := c.FormFile("receipt")
	if err != nil || fileHeader == nil {
		return nil, nil, nil
	}
	file, err := fileHeader.Open()
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	defer file.Close()

	name, url, err := h.receipts.Save(c.Context(), fileHeader.Filename, file)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	return &name, &url, nil
}

func parseExpenseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, apperrors.NewValidationError("invalid expense date", map[string]any{"expense_date": raw})
}
