package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	gerrors "github.com/go-faster/errors"

	"github.com/buildflow/buildflow/modules/construction/domain/entities/resource"
	"github.com/buildflow/buildflow/modules/construction/infrastructure/persistence/models"
	"github.com/buildflow/buildflow/pkg/composables"
	"github.com/buildflow/buildflow/pkg/repo"
)

const (
	selectResourceQuery = `
		SELECT id, project_id, name, resource_type, status, quantity, unit, unit_cost, total_cost,
		       supplier, created_at, updated_at
		FROM resources`

	insertResourceQuery = `
		INSERT INTO resources (project_id, name, resource_type, status, quantity, unit, unit_cost, total_cost,
		                       supplier, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING id`

	updateResourceQuery = `
		UPDATE resources
		SET name = $1, resource_type = $2, status = $3, quantity = $4, unit = $5, unit_cost = $6,
		    total_cost = $7, supplier = $8, updated_at = $9
		WHERE id = $10`
)

type ResourceRepository struct{}

func NewResourceRepository() resource.Repository {
	return &ResourceRepository{}
}

func buildResourceFilters(params *resource.FindParams) ([]string, []any) {
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
	if params.ResourceType != "" {
		args = append(args, string(params.ResourceType))
		where = append(where, "resource_type = "+repo.Placeholder(len(args)))
	}
	return where, args
}

func (r *ResourceRepository) queryResources(ctx context.Context, query string, args ...any) ([]*resource.Resource, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, gerrors.Wrap(err, "failed to query resources")
	}
	defer rows.Close()

	var out []*resource.Resource
	for rows.Next() {
		var m models.Resource
		if err := rows.Scan(
			&m.ID, &m.ProjectID, &m.Name, &m.ResourceType, &m.Status, &m.Quantity, &m.Unit, &m.UnitCost,
			&m.TotalCost, &m.Supplier, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, gerrors.Wrap(err, "failed to scan resource")
		}
		out = append(out, toDomainResource(&m))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ResourceRepository) Count(ctx context.Context, params *resource.FindParams) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	where, args := buildResourceFilters(params)
	var count int64
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM resources WHERE `+strings.Join(where, " AND "), args...).Scan(&count); err != nil {
		return 0, gerrors.Wrap(err, "failed to count resources")
	}
	return count, nil
}

func (r *ResourceRepository) GetPaginated(ctx context.Context, params *resource.FindParams) ([]*resource.Resource, error) {
	where, args := buildResourceFilters(params)
	query := selectResourceQuery + ` WHERE ` + strings.Join(where, " AND ") + ` ORDER BY id`
	if params != nil {
		query += " " + repo.FormatLimitOffset(params.Limit, params.Offset)
	}
	return r.queryResources(ctx, query, args...)
}

func (r *ResourceRepository) GetByID(ctx context.Context, id uint) (*resource.Resource, error) {
	resources, err := r.queryResources(ctx, selectResourceQuery+` WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(resources) == 0 {
		return nil, fmt.Errorf("%w: id %d", resource.ErrNotFound, id)
	}
	return resources[0], nil
}

// Create persists data with its total cost recomputed.
func (r *ResourceRepository) Create(ctx context.Context, data *resource.Resource) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	data.RecalculateTotalCost()
	now := time.Now().UTC()
	if err := tx.QueryRow(ctx, insertResourceQuery,
		data.ProjectID, data.Name, string(data.ResourceType), string(data.Status), data.Quantity, data.Unit,
		data.UnitCost, data.TotalCost, data.Supplier, now,
	).Scan(&data.ID); err != nil {
		return gerrors.Wrap(err, "failed to create resource")
	}
	data.CreatedAt = now
	data.UpdatedAt = now
	return nil
}

// Update persists data with its total cost recomputed.
func (r *ResourceRepository) Update(ctx context.Context, data *resource.Resource) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	data.RecalculateTotalCost()
	now := time.Now().UTC()
	tag, err := tx.Exec(ctx, updateResourceQuery,
		data.Name, string(data.ResourceType), string(data.Status), data.Quantity, data.Unit, data.UnitCost,
		data.TotalCost, data.Supplier, now, data.ID,
	)
	if err != nil {
		return gerrors.Wrap(err, "failed to update resource")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", resource.ErrNotFound, data.ID)
	}
	data.UpdatedAt = now
	return nil
}

func (r *ResourceRepository) Delete(ctx context.Context, id uint) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM resources WHERE id = $1`, id)
	if err != nil {
		return gerrors.Wrap(err, "failed to delete resource")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", resource.ErrNotFound, id)
	}
	return nil
}
