package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	gerrors "github.com/go-faster/errors"

	"github.com/buildflow/buildflow/modules/construction/domain/entities/project"
	"github.com/buildflow/buildflow/modules/construction/infrastructure/persistence/models"
	"github.com/buildflow/buildflow/pkg/composables"
	"github.com/buildflow/buildflow/pkg/repo"
)

const (
	selectProjectQuery = `
		SELECT id, name, description, status, start_date, planned_end_date, actual_end_date,
		       total_budget, spent_amount, location, created_at, updated_at
		FROM projects`

	insertProjectQuery = `
		INSERT INTO projects (name, description, status, start_date, planned_end_date, actual_end_date,
		                      total_budget, spent_amount, location, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING id`

	updateProjectQuery = `
		UPDATE projects
		SET name = $1, description = $2, status = $3, start_date = $4, planned_end_date = $5,
		    actual_end_date = $6, total_budget = $7, spent_amount = $8, location = $9, updated_at = $10
		WHERE id = $11`
)

type ProjectRepository struct{}

func NewProjectRepository() project.Repository {
	return &ProjectRepository{}
}

func buildProjectFilters(params *project.FindParams) ([]string, []any) {
	where := []string{"1 = 1"}
	var args []any
	if params == nil {
		return where, args
	}
	if len(params.IDs) > 0 {
		args = append(args, idsArg(params.IDs))
		where = append(where, "id = ANY("+repo.Placeholder(len(args))+")")
	}
	if name := strings.TrimSpace(params.Name); name != "" {
		args = append(args, name)
		where = append(where, "lower(name) = lower("+repo.Placeholder(len(args))+")")
	}
	if params.Status != "" {
		args = append(args, string(params.Status))
		where = append(where, "status = "+repo.Placeholder(len(args)))
	}
	return where, args
}

func (r *ProjectRepository) queryProjects(ctx context.Context, query string, args ...any) ([]*project.Project, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, gerrors.Wrap(err, "failed to query projects")
	}
	defer rows.Close()

	var out []*project.Project
	for rows.Next() {
		var m models.Project
		if err := rows.Scan(
			&m.ID, &m.Name, &m.Description, &m.Status, &m.StartDate, &m.PlannedEndDate, &m.ActualEndDate,
			&m.TotalBudget, &m.SpentAmount, &m.Location, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, gerrors.Wrap(err, "failed to scan project")
		}
		out = append(out, toDomainProject(&m))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ProjectRepository) Count(ctx context.Context, params *project.FindParams) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	where, args := buildProjectFilters(params)
	var count int64
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM projects WHERE `+strings.Join(where, " AND "), args...).Scan(&count); err != nil {
		return 0, gerrors.Wrap(err, "failed to count projects")
	}
	return count, nil
}

func (r *ProjectRepository) GetAll(ctx context.Context) ([]*project.Project, error) {
	return r.queryProjects(ctx, selectProjectQuery+` ORDER BY id`)
}

func (r *ProjectRepository) GetPaginated(ctx context.Context, params *project.FindParams) ([]*project.Project, error) {
	where, args := buildProjectFilters(params)
	query := selectProjectQuery + ` WHERE ` + strings.Join(where, " AND ") + ` ORDER BY id`
	if params != nil {
		query += " " + repo.FormatLimitOffset(params.Limit, params.Offset)
	}
	return r.queryProjects(ctx, query, args...)
}

func (r *ProjectRepository) GetByID(ctx context.Context, id uint) (*project.Project, error) {
	projects, err := r.queryProjects(ctx, selectProjectQuery+` WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return nil, fmt.Errorf("%w: id %d", project.ErrNotFound, id)
	}
	return projects[0], nil
}

func (r *ProjectRepository) Exists(ctx context.Context, id uint) (bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM projects WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, gerrors.Wrap(err, "failed to check project existence")
	}
	return exists, nil
}

func (r *ProjectRepository) Create(ctx context.Context, data *project.Project) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if err := tx.QueryRow(ctx, insertProjectQuery,
		data.Name, data.Description, string(data.Status), data.StartDate, data.PlannedEndDate, data.ActualEndDate,
		data.TotalBudget, data.SpentAmount, data.Location, now,
	).Scan(&data.ID); err != nil {
		return gerrors.Wrap(err, "failed to create project")
	}
	data.CreatedAt = now
	data.UpdatedAt = now
	return nil
}

func (r *ProjectRepository) Update(ctx context.Context, data *project.Project) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	tag, err := tx.Exec(ctx, updateProjectQuery,
		data.Name, data.Description, string(data.Status), data.StartDate, data.PlannedEndDate, data.ActualEndDate,
		data.TotalBudget, data.SpentAmount, data.Location, now, data.ID,
	)
	if err != nil {
		return gerrors.Wrap(err, "failed to update project")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", project.ErrNotFound, data.ID)
	}
	data.UpdatedAt = now
	return nil
}

// Delete removes the project; tasks, resources and budgets follow through
// ON DELETE CASCADE.
func (r *ProjectRepository) Delete(ctx context.Context, id uint) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return gerrors.Wrap(err, "failed to delete project")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", project.ErrNotFound, id)
	}
	return nil
}
