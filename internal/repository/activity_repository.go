package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// ActivityEventRepository stores the derived, append-only global activity feed.
type ActivityEventRepository interface {
	Create(ctx context.Context, event *domain.ActivityEvent) error
	ListRecent(ctx context.Context, limit, offset int) ([]domain.ActivityEvent, error)
}

type activityEventRepository struct {
	pool *pgxpool.Pool
}

// NewActivityEventRepository builds repository.
func NewActivityEventRepository(pool *pgxpool.Pool) ActivityEventRepository {
	return &activityEventRepository{pool: pool}
}

func (r *activityEventRepository) Create(ctx context.Context, event *domain.ActivityEvent) error {
	const query = `
        INSERT INTO activity_events (actor_id, model, object_id, action, message)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return querierFrom(ctx, r.pool).QueryRow(ctx, query,
		event.ActorID,
		event.Model,
		event.ObjectID,
		event.Action,
		event.Message,
	).Scan(&event.ID, &event.CreatedAt)
}

func (r *activityEventRepository) ListRecent(ctx context.Context, limit, offset int) ([]domain.ActivityEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT id, actor_id, model, object_id, action, message, created_at
        FROM activity_events
        ORDER BY created_at DESC, id DESC
        LIMIT $1 OFFSET $2`
	rows, err := querierFrom(ctx, r.pool).Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ActivityEvent
	for rows.Next() {
		var event domain.ActivityEvent
		if err := rows.Scan(
			&event.ID,
			&event.ActorID,
			&event.Model,
			&event.ObjectID,
			&event.Action,
			&event.Message,
			&event.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, event)
	}
	return result, rows.Err()
}
