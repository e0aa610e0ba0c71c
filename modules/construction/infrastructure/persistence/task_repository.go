package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	gerrors "github.com/go-faster/errors"

	"github.com/buildflow/buildflow/modules/construction/domain/entities/task"
	"github.com/buildflow/buildflow/modules/construction/infrastructure/persistence/models"
	"github.com/buildflow/buildflow/pkg/composables"
	"github.com/buildflow/buildflow/pkg/repo"
)

const (
	selectTaskQuery = `
		SELECT id, project_id, name, description, status, priority, start_date, planned_end_date,
		       actual_end_date, progress_percentage, assigned_to, depends_on_task_id, created_at, updated_at
		FROM tasks`

	insertTaskQuery = `
		INSERT INTO tasks (project_id, name, description, status, priority, start_date, planned_end_date,
		                   actual_end_date, progress_percentage, assigned_to, depends_on_task_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		RETURNING id`

	updateTaskQuery = `
		UPDATE tasks
		SET name = $1, description = $2, status = $3, priority = $4, start_date = $5, planned_end_date = $6,
		    actual_end_date = $7, progress_percentage = $8, assigned_to = $9, depends_on_task_id = $10, updated_at = $11
		WHERE id = $12`
)

type TaskRepository struct{}

func NewTaskRepository() task.Repository {
	return &TaskRepository{}
}

func buildTaskFilters(params *task.FindParams) ([]string, []any) {
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
	if assignee := strings.TrimSpace(params.AssignedTo); assignee != "" {
		args = append(args, assignee)
		where = append(where, "lower(assigned_to) = lower("+repo.Placeholder(len(args))+")")
	}
	if params.Status != "" {
		args = append(args, string(params.Status))
		where = append(where, "status = "+repo.Placeholder(len(args)))
	}
	return where, args
}

func (r *TaskRepository) queryTasks(ctx context.Context, query string, args ...any) ([]*task.Task, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, gerrors.Wrap(err, "failed to query tasks")
	}
	defer rows.Close()

	var out []*task.Task
	for rows.Next() {
		var m models.Task
		if err := rows.Scan(
			&m.ID, &m.ProjectID, &m.Name, &m.Description, &m.Status, &m.Priority, &m.StartDate,
			&m.PlannedEndDate, &m.ActualEndDate, &m.ProgressPercentage, &m.AssignedTo, &m.DependsOnTaskID,
			&m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, gerrors.Wrap(err, "failed to scan task")
		}
		out = append(out, toDomainTask(&m))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *TaskRepository) Count(ctx context.Context, params *task.FindParams) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	where, args := buildTaskFilters(params)
	var count int64
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM tasks WHERE `+strings.Join(where, " AND "), args...).Scan(&count); err != nil {
		return 0, gerrors.Wrap(err, "failed to count tasks")
	}
	return count, nil
}

func (r *TaskRepository) GetPaginated(ctx context.Context, params *task.FindParams) ([]*task.Task, error) {
	where, args := buildTaskFilters(params)
	query := selectTaskQuery + ` WHERE ` + strings.Join(where, " AND ") + ` ORDER BY start_date NULLS LAST, id`
	if params != nil {
		query += " " + repo.FormatLimitOffset(params.Limit, params.Offset)
	}
	return r.queryTasks(ctx, query, args...)
}

func (r *TaskRepository) GetByID(ctx context.Context, id uint) (*task.Task, error) {
	tasks, err := r.queryTasks(ctx, selectTaskQuery+` WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("%w: id %d", task.ErrNotFound, id)
	}
	return tasks[0], nil
}

func (r *TaskRepository) Exists(ctx context.Context, id uint) (bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tasks WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, gerrors.Wrap(err, "failed to check task existence")
	}
	return exists, nil
}

func (r *TaskRepository) Create(ctx context.Context, data *task.Task) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if err := tx.QueryRow(ctx, insertTaskQuery,
		data.ProjectID, data.Name, data.Description, string(data.Status), string(data.Priority), data.StartDate,
		data.PlannedEndDate, data.ActualEndDate, data.ProgressPercentage, data.AssignedTo, data.DependsOnTaskID, now,
	).Scan(&data.ID); err != nil {
		return gerrors.Wrap(err, "failed to create task")
	}
	data.CreatedAt = now
	data.UpdatedAt = now
	return nil
}

func (r *TaskRepository) Update(ctx context.Context, data *task.Task) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	tag, err := tx.Exec(ctx, updateTaskQuery,
		data.Name, data.Description, string(data.Status), string(data.Priority), data.StartDate, data.PlannedEndDate,
		data.ActualEndDate, data.ProgressPercentage, data.AssignedTo, data.DependsOnTaskID, now, data.ID,
	)
	if err != nil {
		return gerrors.Wrap(err, "failed to update task")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", task.ErrNotFound, data.ID)
	}
	data.UpdatedAt = now
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, id uint) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return gerrors.Wrap(err, "failed to delete task")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", task.ErrNotFound, id)
	}
	return nil
}
