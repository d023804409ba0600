package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// CatalogRepository reads the category/priority/area catalogs.
type CatalogRepository interface {
	GetCategory(ctx context.Context, id int64) (*domain.Category, error)
	GetPriority(ctx context.Context, id int64) (*domain.Priority, error)
	GetArea(ctx context.Context, id int64) (*domain.Area, error)
}

type catalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository instantiates repository.
func NewCatalogRepository(pool *pgxpool.Pool) CatalogRepository {
	return &catalogRepository{pool: pool}
}

func (r *catalogRepository) GetCategory(ctx context.Context, id int64) (*domain.Category, error) {
	const query = `SELECT id, name, description, is_active FROM categories WHERE id=$1`
	var category domain.Category
	if err := querierFrom(ctx, r.pool).QueryRow(ctx, query, id).Scan(
		&category.ID,
		&category.Name,
		&category.Description,
		&category.IsActive,
	); err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *catalogRepository) GetPriority(ctx context.Context, id int64) (*domain.Priority, error) {
	const query = `SELECT id, name, sla_hours FROM priorities WHERE id=$1`
	var priority domain.Priority
	if err := querierFrom(ctx, r.pool).QueryRow(ctx, query, id).Scan(
		&priority.ID,
		&priority.Name,
		&priority.SLAHours,
	); err != nil {
		return nil, err
	}
	return &priority, nil
}

func (r *catalogRepository) GetArea(ctx context.Context, id int64) (*domain.Area, error) {
	const query = `SELECT id, name FROM areas WHERE id=$1`
	var area domain.Area
	if err := querierFrom(ctx, r.pool).QueryRow(ctx, query, id).Scan(
		&area.ID,
		&area.Name,
	); err != nil {
		return nil, err
	}
	return &area, nil
}
