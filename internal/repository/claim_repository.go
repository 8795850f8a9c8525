package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/expense-claim-service/internal/domain"
)

// ClaimFilter captures claim search parameters.
type ClaimFilter struct {
	OwnerID  *string
	Statuses []domain.ClaimStatus
	Category *string
	DateFrom *time.Time
	DateTo   *time.Time
	Limit    int
	Offset   int
}

// StatusStat is an aggregate row of the stats projection.
type StatusStat struct {
	Status domain.ClaimStatus
	Count  int64
	Total  float64
}

// CategoryStat is a per-category aggregate for the stats projection.
type CategoryStat struct {
	Category string
	Count    int64
	Total    float64
}

// ClaimRepository encapsulates claim persistence. Status transitions use
// conditional writes keyed on the previously observed status so concurrent
// decisions on one claim cannot silently overwrite each other.
type ClaimRepository interface {
	Create(ctx context.Context, claim *domain.Claim) error
	GetByID(ctx context.Context, id string) (*domain.Claim, error)
	UpdateFields(ctx context.Context, claim *domain.Claim, expected []domain.ClaimStatus) error
	UpdateStatusFrom(ctx context.Context, claim *domain.Claim, expected []domain.ClaimStatus) error
	Delete(ctx context.Context, id string, expected []domain.ClaimStatus) error
	ListWithFilter(ctx context.Context, filter ClaimFilter) ([]domain.Claim, error)
	NextSequence(ctx context.Context) (int64, error)
	StatsByStatus(ctx context.Context, since time.Time, ownerID *string) ([]StatusStat, error)
	TopCategories(ctx context.Context, since time.Time, limit int) ([]CategoryStat, error)
}

type claimRepository struct {
	pool *pgxpool.Pool
}

// NewClaimRepository instantiates repository.
func NewClaimRepository(pool *pgxpool.Pool) ClaimRepository {
	return &claimRepository{pool: pool}
}

const claimColumns = `id, owner_id, submitter_name, submitter_employee_id, kind, expense_date,
    category, amount, currency, description, receipt_file, receipt_url, status,
    recommended_by, recommended_at, approved_by, approved_at,
    rejected_by, rejected_at, rejection_reason, paid_by, paid_at, payment_reference,
    bank_amount, cash_amount, vat_amount, bank_account, created_at, updated_at`

func (r *claimRepository) Create(ctx context.Context, claim *domain.Claim) error {
	const query = `
        INSERT INTO claims (id, owner_id, submitter_name, submitter_employee_id, kind, expense_date,
            category, amount, currency, description, receipt_file, receipt_url, status,
            bank_amount, cash_amount, vat_amount, bank_account)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
        RETURNING created_at, updated_at`

	var bankAmount, cashAmount, vatAmount *float64
	var bankAccount *string
	if claim.Reimbursement != nil {
		bankAmount = &claim.Reimbursement.BankAmount
		cashAmount = &claim.Reimbursement.CashAmount
		vatAmount = &claim.Reimbursement.VATAmount
		bankAccount = &claim.Reimbursement.BankAccount
	}

	return r.pool.QueryRow(ctx, query,
		claim.ID,
		claim.OwnerID,
		claim.SubmitterName,
		claim.SubmitterEmployeeID,
		claim.Kind,
		claim.ExpenseDate,
		claim.Category,
		claim.Amount,
		claim.Currency,
		claim.Description,
		claim.ReceiptFileName,
		claim.ReceiptURL,
		claim.Status,
		bankAmount,
		cashAmount,
		vatAmount,
		bankAccount,
	).Scan(&claim.CreatedAt, &claim.UpdatedAt)
}

func (r *claimRepository) GetByID(ctx context.Context, id string) (*domain.Claim, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+claimColumns+` FROM claims WHERE id=$1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	claims, err := scanClaims(rows)
	if err != nil {
		return nil, err
	}
	if len(claims) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &claims[0], nil
}

// UpdateFields persists mutable claim fields; the write only lands while the
// claim is still in one of the expected statuses.
func (r *claimRepository) UpdateFields(ctx context.Context, claim *domain.Claim, expected []domain.ClaimStatus) error {
	const query = `
        UPDATE claims
        SET expense_date=$1, category=$2, amount=$3, currency=$4, description=$5,
            receipt_file=$6, receipt_url=$7, status=$8,
            bank_amount=$9, cash_amount=$10, vat_amount=$11, bank_account=$12, updated_at=NOW()
        WHERE id=$13 AND status = ANY($14)`

	var bankAmount, cashAmount, vatAmount *float64
	var bankAccount *string
	if claim.Reimbursement != nil {
		bankAmount = &claim.Reimbursement.BankAmount
		cashAmount = &claim.Reimbursement.CashAmount
		vatAmount = &claim.Reimbursement.VATAmount
		bankAccount = &claim.Reimbursement.BankAccount
	}

	cmd, err := r.pool.Exec(ctx, query,
		claim.ExpenseDate,
		claim.Category,
		claim.Amount,
		claim.Currency,
		claim.Description,
		claim.ReceiptFileName,
		claim.ReceiptURL,
		claim.Status,
		bankAmount,
		cashAmount,
		vatAmount,
		bankAccount,
		claim.ID,
		statusStrings(expected),
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// UpdateStatusFrom performs the compare-and-swap write for a lifecycle
// transition: the status and decision stamps land only if the stored status
// is still one of the expected values.
func (r *claimRepository) UpdateStatusFrom(ctx context.Context, claim *domain.Claim, expected []domain.ClaimStatus) error {
	const query = `
        UPDATE claims
        SET status=$1,
            recommended_by=$2, recommended_at=$3,
            approved_by=$4, approved_at=$5,
            rejected_by=$6, rejected_at=$7, rejection_reason=$8,
            paid_by=$9, paid_at=$10, payment_reference=$11,
            updated_at=NOW()
        WHERE id=$12 AND status = ANY($13)`

	cmd, err := r.pool.Exec(ctx, query,
		claim.Status,
		claim.RecommendedBy,
		claim.RecommendedAt,
		claim.ApprovedBy,
		claim.ApprovedAt,
		claim.RejectedBy,
		claim.RejectedAt,
		claim.RejectionReason,
		claim.PaidBy,
		claim.PaidAt,
		claim.PaymentReference,
		claim.ID,
		statusStrings(expected),
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *claimRepository) Delete(ctx context.Context, id string, expected []domain.ClaimStatus) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM claims WHERE id=$1 AND status = ANY($2)`, id, statusStrings(expected))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *claimRepository) ListWithFilter(ctx context.Context, filter ClaimFilter) ([]domain.Claim, error) {
	base := `SELECT ` + claimColumns + ` FROM claims`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		clauses = append(clauses, fmt.Sprintf("owner_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		args = append(args, statusStrings(filter.Statuses))
		clauses = append(clauses, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if filter.Category != nil {
		args = append(args, *filter.Category)
		clauses = append(clauses, fmt.Sprintf("category=$%d", len(args)))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		clauses = append(clauses, fmt.Sprintf("expense_date >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		clauses = append(clauses, fmt.Sprintf("expense_date <= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanClaims(rows)
}

// NextSequence allocates the next claim number from the database sequence.
func (r *claimRepository) NextSequence(ctx context.Context) (int64, error) {
	var next int64
	err := r.pool.QueryRow(ctx, `SELECT nextval('claim_id_seq')`).Scan(&next)
	return next, err
}

func (r *claimRepository) StatsByStatus(ctx context.Context, since time.Time, ownerID *string) ([]StatusStat, error) {
	query := `
        SELECT status, COUNT(*), COALESCE(SUM(amount), 0)
        FROM claims WHERE created_at >= $1`
	args := []any{since}
	if ownerID != nil {
		args = append(args, *ownerID)
		query += fmt.Sprintf(" AND owner_id=$%d", len(args))
	}
	query += " GROUP BY status"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []StatusStat
	for rows.Next() {
		var stat StatusStat
		if err := rows.Scan(&stat.Status, &stat.Count, &stat.Total); err != nil {
			return nil, err
		}
		result = append(result, stat)
	}
	return result, rows.Err()
}

func (r *claimRepository) TopCategories(ctx context.Context, since time.Time, limit int) ([]CategoryStat, error) {
	if limit <= 0 {
		limit = 5
	}
	query := fmt.Sprintf(`
        SELECT category, COUNT(*), COALESCE(SUM(amount), 0)
        FROM claims WHERE created_at >= $1
        GROUP BY category ORDER BY SUM(amount) DESC LIMIT %d`, limit)

	rows, err := r.pool.Query(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []CategoryStat
	for rows.Next() {
		var stat CategoryStat
		if err := rows.Scan(&stat.Category, &stat.Count, &stat.Total); err != nil {
			return nil, err
		}
		result = append(result, stat)
	}
	return result, rows.Err()
}

func statusStrings(statuses []domain.ClaimStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, string(status))
	}
	return out
}

func scanClaims(rows pgx.Rows) ([]domain.Claim, error) {
	var result []domain.Claim
	for rows.Next() {
		var claim domain.Claim
		var bankAmount, cashAmount, vatAmount *float64
		var bankAccount *string
		if err := rows.Scan(
			&claim.ID,
			&claim.OwnerID,
			&claim.SubmitterName,
			&claim.SubmitterEmployeeID,
			&claim.Kind,
			&claim.ExpenseDate,
			&claim.Category,
			&claim.Amount,
			&claim.Currency,
			&claim.Description,
			&claim.ReceiptFileName,
			&claim.ReceiptURL,
			&claim.Status,
			&claim.RecommendedBy,
			&claim.RecommendedAt,
			&claim.ApprovedBy,
			&claim.ApprovedAt,
			&claim.RejectedBy,
			&claim.RejectedAt,
			&claim.RejectionReason,
			&claim.PaidBy,
			&claim.PaidAt,
			&claim.PaymentReference,
			&bankAmount,
			&cashAmount,
			&vatAmount,
			&bankAccount,
			&claim.CreatedAt,
			&claim.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if claim.Kind == domain.ClaimKindReimbursement {
			detail := domain.ReimbursementDetail{}
			if bankAmount != nil {
				detail.BankAmount = *bankAmount
			}
			if cashAmount != nil {
				detail.CashAmount = *cashAmount
			}
			if vatAmount != nil {
				detail.VATAmount = *vatAmount
			}
			if bankAccount != nil {
				detail.BankAccount = *bankAccount
			}
			claim.Reimbursement = &detail
		}
		result = append(result, claim)
	}
	return result, rows.Err()
}
