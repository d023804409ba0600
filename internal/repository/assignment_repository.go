package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// AssignmentRepository stores append-only assignment history.
type AssignmentRepository interface {
	Create(ctx context.Context, assignment *domain.Assignment) error
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.Assignment, error)
}

type assignmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssignmentRepository builds repository.
func NewAssignmentRepository(pool *pgxpool.Pool) AssignmentRepository {
	return &assignmentRepository{pool: pool}
}

func (r *assignmentRepository) Create(ctx context.Context, assignment *domain.Assignment) error {
	const query = `
        INSERT INTO ticket_assignments (ticket_id, from_user_id, to_user_id, reason)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return querierFrom(ctx, r.pool).QueryRow(ctx, query,
		assignment.TicketID,
		assignment.FromUserID,
		assignment.ToUserID,
		assignment.Reason,
	).Scan(&assignment.ID, &assignment.CreatedAt)
}

func (r *assignmentRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.Assignment, error) {
	const query = `
        SELECT id, ticket_id, from_user_id, to_user_id, reason, created_at
        FROM ticket_assignments WHERE ticket_id=$1 ORDER BY created_at DESC, id DESC`
	rows, err := querierFrom(ctx, r.pool).Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Assignment
	for rows.Next() {
		var assignment domain.Assignment
		if err := rows.Scan(
			&assignment.ID,
			&assignment.TicketID,
			&assignment.FromUserID,
			&assignment.ToUserID,
			&assignment.Reason,
			&assignment.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, assignment)
	}
	return result, rows.Err()
}
