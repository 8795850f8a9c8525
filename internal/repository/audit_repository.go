package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/expense-claim-service/internal/domain"
)

// AuditRepository stores immutable audit entries. Append-only: there is no
// update or delete operation, and the core exposes no read path.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditEntry) error
}

type auditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository builds repository.
func NewAuditRepository(pool *pgxpool.Pool) AuditRepository {
	return &auditRepository{pool: pool}
}

func (r *auditRepository) Create(ctx context.Context, entry *domain.AuditEntry) error {
	const query = `
        INSERT INTO audit_log (action, actor_id, actor_name, actor_role, entity_type, entity_id, detail, ip, user_agent)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		entry.Action,
		entry.ActorID,
		entry.ActorName,
		entry.ActorRole,
		entry.EntityType,
		entry.EntityID,
		entry.Detail,
		entry.IP,
		entry.UserAgent,
	).Scan(&entry.ID, &entry.CreatedAt)
}
