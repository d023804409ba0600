package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// AutoAssignRuleRepository stores (category, area) -> technician rules.
type AutoAssignRuleRepository interface {
	Create(ctx context.Context, rule *domain.AutoAssignRule) error
	// FindMatch resolves the active rule for a ticket, most specific first:
	// exact (category, area), then (category, no area), then (no category, area).
	// Returns nil when no rule applies.
	FindMatch(ctx context.Context, categoryID int64, areaID *int64) (*domain.AutoAssignRule, error)
	ListActive(ctx context.Context) ([]domain.AutoAssignRule, error)
}

type autoAssignRuleRepository struct {
	pool *pgxpool.Pool
}

// NewAutoAssignRuleRepository builds repository.
func NewAutoAssignRuleRepository(pool *pgxpool.Pool) AutoAssignRuleRepository {
	return &autoAssignRuleRepository{pool: pool}
}

const ruleColumns = `id, category_id, area_id, tech_id, is_active, created_at`

func (r *autoAssignRuleRepository) Create(ctx context.Context, rule *domain.AutoAssignRule) error {
	const query = `
        INSERT INTO auto_assign_rules (category_id, area_id, tech_id, is_active)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return querierFrom(ctx, r.pool).QueryRow(ctx, query,
		rule.CategoryID,
		rule.AreaID,
		rule.TechID,
		rule.IsActive,
	).Scan(&rule.ID, &rule.CreatedAt)
}

func (r *autoAssignRuleRepository) FindMatch(ctx context.Context, categoryID int64, areaID *int64) (*domain.AutoAssignRule, error) {
	// rank 1: exact pair, rank 2: category only, rank 3: area only
	const query = `
        SELECT ` + ruleColumns + `
        FROM auto_assign_rules
        WHERE is_active = TRUE AND (
              (category_id = $1 AND area_id IS NOT DISTINCT FROM $2)
           OR (category_id = $1 AND area_id IS NULL)
           OR (category_id IS NULL AND $2 IS NOT NULL AND area_id = $2))
        ORDER BY CASE
              WHEN category_id = $1 AND area_id IS NOT DISTINCT FROM $2 THEN 1
              WHEN category_id = $1 AND area_id IS NULL THEN 2
              ELSE 3
        END
        LIMIT 1`
	var rule domain.AutoAssignRule
	err := querierFrom(ctx, r.pool).QueryRow(ctx, query, categoryID, areaID).Scan(
		&rule.ID,
		&rule.CategoryID,
		&rule.AreaID,
		&rule.TechID,
		&rule.IsActive,
		&rule.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *autoAssignRuleRepository) ListActive(ctx context.Context) ([]domain.AutoAssignRule, error) {
	const query = `SELECT ` + ruleColumns + ` FROM auto_assign_rules WHERE is_active = TRUE ORDER BY id ASC`
	rows, err := querierFrom(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AutoAssignRule
	for rows.Next() {
		var rule domain.AutoAssignRule
		if err := rows.Scan(
			&rule.ID,
			&rule.CategoryID,
			&rule.AreaID,
			&rule.TechID,
			&rule.IsActive,
			&rule.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, rule)
	}
	return result, rows.Err()
}
