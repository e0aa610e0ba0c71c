package dataimport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/buildflow/buildflow/modules/construction/domain/entities/budget"
	"github.com/buildflow/buildflow/modules/construction/domain/entities/project"
	"github.com/buildflow/buildflow/modules/construction/domain/entities/resource"
	"github.com/buildflow/buildflow/modules/construction/domain/entities/task"
)

// UnitOfWork is the transaction contract the importers need from the store.
// Begin returns a context carrying the transaction; Rollback must be safe
// after Commit. Savepoint discards the writes of fn when it fails.
type UnitOfWork interface {
	Begin(ctx context.Context) (context.Context, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Savepoint(ctx context.Context, fn func(context.Context) error) error
}

// Repositories groups the stores written by an import.
type Repositories struct {
	Projects  project.Repository
	Tasks     task.Repository
	Resources resource.Repository
	Budgets   budget.Repository
}

// skipError marks a row rejected for a known reason.
type skipError struct {
	field  string
	reason string
}

func (e *skipError) Error() string { return e.reason }

func skip(field, format string, args ...any) error {
	return &skipError{field: field, reason: fmt.Sprintf(format, args...)}
}

type rowFunc func(ctx context.Context, row Row, emit func(Diagnostic)) error

// importSheet runs fn for every non-blank row inside its own savepoint
// and commits once at the end. A failing or panicking row is reported and
// skipped; it never stops the loop.
func importSheet(ctx context.Context, uow UnitOfWork, kind Kind, sheet *Sheet, emit func(Diagnostic), fn rowFunc) (int, error) {
	txCtx, err := uow.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin import of sheet %q: %w", sheet.Name, err)
	}
	defer func() { _ = uow.Rollback(txCtx) }()

	count := 0
	for _, row := range sheet.Rows {
		if row.Blank() {
			continue
		}
		err := uow.Savepoint(txCtx, func(ctx context.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("unexpected failure: %v", r)
				}
			}()
			return fn(ctx, row, emit)
		})
		if err != nil {
			d := Diagnostic{Row: row.Number, Reason: err.Error(), Level: LevelError}
			var se *skipError
			if errors.As(err, &se) {
				d.Field = se.field
			}
			emit(d)
			rowsTotal.WithLabelValues(string(kind), "skipped").Inc()
			continue
		}
		count++
	}

	if err := uow.Commit(txCtx); err != nil {
		return 0, fmt.Errorf("commit import of sheet %q: %w", sheet.Name, err)
	}
	rowsTotal.WithLabelValues(string(kind), "imported").Add(float64(count))
	return count, nil
}

func emitAll(emit func(Diagnostic), diags []Diagnostic) {
	for _, d := range diags {
		emit(d)
	}
}

// rowImporters holds the per-kind row handlers for one import call.
type rowImporters struct {
	repos    Repositories
	resolver *projectResolver
	now      time.Time
}

func (ri *rowImporters) forKind(kind Kind) rowFunc {
	switch kind {
	case KindProject:
		return ri.project
	case KindTask:
		return ri.task
	case KindResource:
		return ri.resource
	case KindBudget:
		return ri.budget
	}
	return nil
}

func (ri *rowImporters) project(ctx context.Context, row Row, emit func(Diagnostic)) error {
	if row.Value(colProjectName...) == "" {
		return skip("name", "missing required field name")
	}
	p, diags := CoerceProject(row)
	emitAll(emit, diags)
	if err := ri.repos.Projects.Create(ctx, p); err != nil {
		return fmt.Errorf("create project %q: %w", p.Name, err)
	}
	return nil
}

// owner resolves the owning project of a dependent row.
func (ri *rowImporters) owner(ctx context.Context, row Row, emit func(Diagnostic)) (uint, error) {
	id, diags, err := ri.resolver.Resolve(ctx, row)
	emitAll(emit, diags)
	if err != nil {
		return 0, fmt.Errorf("resolve project: %w", err)
	}
	if id == 0 {
		return 0, skip("project_id", "unresolved project reference")
	}
	return id, nil
}

func (ri *rowImporters) task(ctx context.Context, row Row, emit func(Diagnostic)) error {
	if row.Value(colTaskName...) == "" {
		return skip("name", "missing required field name")
	}
	projectID, err := ri.owner(ctx, row, emit)
	if err != nil {
		return err
	}
	t, diags := CoerceTask(row)
	emitAll(emit, diags)
	t.ProjectID = projectID
	if t.DependsOnTaskID != nil {
		ok, err := ri.repos.Tasks.Exists(ctx, *t.DependsOnTaskID)
		if err != nil {
			return fmt.Errorf("check task dependency: %w", err)
		}
		if !ok {
			emit(Diagnostic{
				Row:    row.Number,
				Field:  "depends_on_task_id",
				Reason: fmt.Sprintf("task %d does not exist, dependency dropped", *t.DependsOnTaskID),
				Level:  LevelWarning,
			})
			t.DependsOnTaskID = nil
		}
	}
	if err := ri.repos.Tasks.Create(ctx, t); err != nil {
		return fmt.Errorf("create task %q: %w", t.Name, err)
	}
	return nil
}

func (ri *rowImporters) resource(ctx context.Context, row Row, emit func(Diagnostic)) error {
	if row.Value(colResourceName...) == "" {
		return skip("name", "missing required field name")
	}
	projectID, err := ri.owner(ctx, row, emit)
	if err != nil {
		return err
	}
	r, diags := CoerceResource(row)
	emitAll(emit, diags)
	r.ProjectID = projectID
	if err := ri.repos.Resources.Create(ctx, r); err != nil {
		return fmt.Errorf("create resource %q: %w", r.Name, err)
	}
	return nil
}

func (ri *rowImporters) budget(ctx context.Context, row Row, emit func(Diagnostic)) error {
	if row.Value(colCategory...) == "" {
		return skip("category", "missing required field category")
	}
	projectID, err := ri.owner(ctx, row, emit)
	if err != nil {
		return err
	}
	b, diags := CoerceBudget(row, ri.now)
	emitAll(emit, diags)
	b.ProjectID = projectID
	if err := ri.repos.Budgets.Create(ctx, b); err != nil {
		return fmt.Errorf("create budget %q: %w", b.Category, err)
	}
	return nil
}
