package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// AuditLogRepository stores the append-only audit ledger. Nothing updates or
// deletes a row once written.
type AuditLogRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
	// CreateOnce inserts the entry unless a row with the same (ticket, action)
	// already exists; the partial unique index backs this for the SLA kinds.
	// Returns false when the entry was already present.
	CreateOnce(ctx context.Context, entry *domain.AuditLog) (bool, error)
	HasAction(ctx context.Context, ticketID int64, action domain.AuditAction) (bool, error)
	ListByTicket(ctx context.Context, ticketID int64, limit, offset int) ([]domain.AuditLog, error)
}

type auditLogRepository struct {
	pool *pgxpool.Pool
}

// NewAuditLogRepository builds repository.
func NewAuditLogRepository(pool *pgxpool.Pool) AuditLogRepository {
	return &auditLogRepository{pool: pool}
}

func (r *auditLogRepository) Create(ctx context.Context, entry *domain.AuditLog) error {
	const query = `
        INSERT INTO audit_logs (ticket_id, actor_id, action, meta)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return querierFrom(ctx, r.pool).QueryRow(ctx, query,
		entry.TicketID,
		entry.ActorID,
		entry.Action,
		entry.Meta,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *auditLogRepository) CreateOnce(ctx context.Context, entry *domain.AuditLog) (bool, error) {
	// ON CONFLICT keeps the surrounding transaction usable when the entry
	// already exists; a raw unique violation would abort it.
	const query = `
        INSERT INTO audit_logs (ticket_id, actor_id, action, meta)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (ticket_id, action) WHERE action IN ('SLA_WARN','SLA_BREACH') DO NOTHING
        RETURNING id, created_at`
	err := querierFrom(ctx, r.pool).QueryRow(ctx, query,
		entry.TicketID,
		entry.ActorID,
		entry.Action,
		entry.Meta,
	).Scan(&entry.ID, &entry.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *auditLogRepository) HasAction(ctx context.Context, ticketID int64, action domain.AuditAction) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM audit_logs WHERE ticket_id=$1 AND action=$2)`
	var exists bool
	if err := querierFrom(ctx, r.pool).QueryRow(ctx, query, ticketID, action).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *auditLogRepository) ListByTicket(ctx context.Context, ticketID int64, limit, offset int) ([]domain.AuditLog, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT a.id, a.ticket_id, a.actor_id, COALESCE(u.username, ''), a.action, a.meta, a.created_at
        FROM audit_logs a
        LEFT JOIN users u ON u.id = a.actor_id
        WHERE a.ticket_id=$1
        ORDER BY a.created_at DESC, a.id DESC
        LIMIT $2 OFFSET $3`
	rows, err := querierFrom(ctx, r.pool).Query(ctx, query, ticketID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AuditLog
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.ActorID,
			&entry.ActorName,
			&entry.Action,
			&entry.Meta,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
