package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	gerrors "github.com/go-faster/errors"

	"github.com/buildflow/buildflow/modules/construction/domain/entities/budget"
	"github.com/buildflow/buildflow/modules/construction/infrastructure/persistence/models"
	"github.com/buildflow/buildflow/pkg/composables"
	"github.com/buildflow/buildflow/pkg/repo"
)

const (
	selectBudgetQuery = `
		SELECT id, project_id, category, description, planned_amount, actual_amount, budget_date,
		       created_at, updated_at
		FROM budgets`

	insertBudgetQuery = `
		INSERT INTO budgets (project_id, category, description, planned_amount, actual_amount, budget_date,
		                     created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING id`

	updateBudgetQuery = `
		UPDATE budgets
		SET category = $1, description = $2, planned_amount = $3, actual_amount = $4, budget_date = $5,
		    updated_at = $6
		WHERE id = $7`
)

type BudgetRepository struct{}

func NewBudgetRepository() budget.Repository {
	return &BudgetRepository{}
}

func buildBudgetFilters(params *budget.FindParams) ([]string, []any) {
	where := []string{"1 = 1"}
	var args []any
	if params == nil {
		return where, args
	}
	if len(params.IDs) > 0 {
		args = append(args, idsArg(params.IDs))
		where = append(where, "id = ANY("+repo.Placeholder(len(args))+")")
	}
	if params.ProjectID != 0 {
		args = append(args, params.ProjectID)
		where = append(where, "project_id = "+repo.Placeholder(len(args)))
	}
	if category := strings.TrimSpace(params.Category); category != "" {
		args = append(args, category)
		where = append(where, "lower(category) = lower("+repo.Placeholder(len(args))+")")
	}
	return where, args
}

func (r *BudgetRepository) queryBudgets(ctx context.Context, query string, args ...any) ([]*budget.Budget, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, gerrors.Wrap(err, "failed to query budgets")
	}
	defer rows.Close()

	var out []*budget.Budget
	for rows.Next() {
		var m models.Budget
		if err := rows.Scan(
			&m.ID, &m.ProjectID, &m.Category, &m.Description, &m.PlannedAmount, &m.ActualAmount, &m.BudgetDate,
			&m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, gerrors.Wrap(err, "failed to scan budget")
		}
		out = append(out, toDomainBudget(&m))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *BudgetRepository) Count(ctx context.Context, params *budget.FindParams) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	where, args := buildBudgetFilters(params)
	var count int64
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM budgets WHERE `+strings.Join(where, " AND "), args...).Scan(&count); err != nil {
		return 0, gerrors.Wrap(err, "failed to count budgets")
	}
	return count, nil
}

func (r *BudgetRepository) GetPaginated(ctx context.Context, params *budget.FindParams) ([]*budget.Budget, error) {
	where, args := buildBudgetFilters(params)
	query := selectBudgetQuery + ` WHERE ` + strings.Join(where, " AND ") + ` ORDER BY id`
	if params != nil {
		query += " " + repo.FormatLimitOffset(params.Limit, params.Offset)
	}
	return r.queryBudgets(ctx, query, args...)
}

func (r *BudgetRepository) GetByID(ctx context.Context, id uint) (*budget.Budget, error) {
	budgets, err := r.queryBudgets(ctx, selectBudgetQuery+` WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(budgets) == 0 {
		return nil, fmt.Errorf("%w: id %d", budget.ErrNotFound, id)
	}
	return budgets[0], nil
}

func (r *BudgetRepository) Create(ctx context.Context, data *budget.Budget) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if data.BudgetDate.IsZero() {
		data.BudgetDate = now
	}
	if err := tx.QueryRow(ctx, insertBudgetQuery,
		data.ProjectID, data.Category, data.Description, data.PlannedAmount, data.ActualAmount, data.BudgetDate, now,
	).Scan(&data.ID); err != nil {
		return gerrors.Wrap(err, "failed to create budget")
	}
	data.CreatedAt = now
	data.UpdatedAt = now
	return nil
}

func (r *BudgetRepository) Update(ctx context.Context, data *budget.Budget) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	tag, err := tx.Exec(ctx, updateBudgetQuery,
		data.Category, data.Description, data.PlannedAmount, data.ActualAmount, data.BudgetDate, now, data.ID,
	)
	if err != nil {
		return gerrors.Wrap(err, "failed to update budget")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", budget.ErrNotFound, data.ID)
	}
	data.UpdatedAt = now
	return nil
}

func (r *BudgetRepository) Delete(ctx context.Context, id uint) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM budgets WHERE id = $1`, id)
	if err != nil {
		return gerrors.Wrap(err, "failed to delete budget")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", budget.ErrNotFound, id)
	}
	return nil
}
