package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/buildflow/buildflow/modules/construction/domain/entities/project"
	"github.com/buildflow/buildflow/modules/construction/domain/entities/task"
	"github.com/buildflow/buildflow/pkg/authz"
	"github.com/buildflow/buildflow/pkg/eventbus"
)

var ErrInvalidDependency = errors.New("invalid task dependency")

type TaskService struct {
	repo      task.Repository
	projects  project.Repository
	publisher eventbus.EventBus
	now       func() time.Time
}

func NewTaskService(repo task.Repository, projects project.Repository, publisher eventbus.EventBus) *TaskService {
	return &TaskService{
		repo:      repo,
		projects:  projects,
		publisher: publisher,
		now:       time.Now,
	}
}

// scopeTaskParams pins workers to their own tasks and managers to their
// projects. The bool is false when the caller can see nothing.
func scopeTaskParams(ctx context.Context, params *task.FindParams) (*task.FindParams, bool, error) {
	u, err := currentUser(ctx)
	if err != nil {
		return nil, false, err
	}
	out := task.FindParams{}
	if params != nil {
		out = *params
	}
	switch {
	case u.IsWorker():
		if u.WorkerName == "" {
			return &out, false, nil
		}
		out.AssignedTo = u.WorkerName
	case u.IsManager():
		if out.ProjectID != 0 && !u.Manages(out.ProjectID) {
			return &out, false, nil
		}
		if out.ProjectID == 0 && len(u.ManagedProjects) == 0 {
			return &out, false, nil
		}
	}
	return &out, true, nil
}

func (s *TaskService) GetPaginated(ctx context.Context, params *task.FindParams) ([]*task.Task, error) {
	if err := authorizeConstruction(ctx, TasksAuthzObject, "read"); err != nil {
		return nil, err
	}
	scopedParams, ok, err := scopeTaskParams(ctx, params)
	if err != nil || !ok {
		return nil, err
	}
	u, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if !u.IsManager() || scopedParams.ProjectID != 0 {
		return s.repo.GetPaginated(ctx, scopedParams)
	}
	// Managers without a project filter are narrowed after the query.
	limit, offset := scopedParams.Limit, scopedParams.Offset
	scopedParams.Limit, scopedParams.Offset = 0, 0
	all, err := s.repo.GetPaginated(ctx, scopedParams)
	if err != nil {
		return nil, err
	}
	visible := make([]*task.Task, 0, len(all))
	for _, t := range all {
		if u.Manages(t.ProjectID) {
			visible = append(visible, t)
		}
	}
	if offset >= len(visible) {
		return nil, nil
	}
	visible = visible[offset:]
	if limit > 0 && limit < len(visible) {
		visible = visible[:limit]
	}
	return visible, nil
}

func (s *TaskService) GetByID(ctx context.Context, id uint) (*task.Task, error) {
	if err := authorizeConstruction(ctx, TasksAuthzObject, "read"); err != nil {
		return nil, err
	}
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireTaskScope(ctx, t.ProjectID, t.AssignedTo); err != nil {
		return nil, err
	}
	return t, nil
}

// Overdue lists unfinished tasks of a project whose planned end has passed.
func (s *TaskService) Overdue(ctx context.Context, projectID uint) ([]*task.Task, error) {
	tasks, err := s.GetPaginated(ctx, &task.FindParams{ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]*task.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.IsOverdue(now) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *TaskService) checkDependency(ctx context.Context, self, projectID uint, dep *uint) error {
	if dep == nil {
		return nil
	}
	if *dep == self && self != 0 {
		return fmt.Errorf("%w: task %d cannot depend on itself", ErrInvalidDependency, self)
	}
	other, err := s.repo.GetByID(ctx, *dep)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			return fmt.Errorf("%w: task %d does not exist", ErrInvalidDependency, *dep)
		}
		return err
	}
	if other.ProjectID != projectID {
		return fmt.Errorf("%w: task %d belongs to another project", ErrInvalidDependency, *dep)
	}
	return nil
}

func (s *TaskService) Create(ctx context.Context, dto *task.CreateDTO) (*task.Task, error) {
	if err := authorizeConstruction(ctx, TasksAuthzObject, "create"); err != nil {
		return nil, err
	}
	if errs, ok := dto.Ok(); !ok {
		return nil, errs
	}
	if err := requireProjectScope(ctx, dto.ProjectID); err != nil {
		return nil, err
	}
	if _, err := s.projects.GetByID(ctx, dto.ProjectID); err != nil {
		return nil, err
	}
	if err := s.checkDependency(ctx, 0, dto.ProjectID, dto.DependsOnTaskID); err != nil {
		return nil, err
	}
	t := dto.ToEntity()
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	s.publisher.Publish("task.created", t)
	return t, nil
}

// Update applies dto to the task. Workers may only move progress and status
// of tasks assigned to them.
func (s *TaskService) Update(ctx context.Context, id uint, dto *task.UpdateDTO) (*task.Task, error) {
	if err := authorizeConstruction(ctx, TasksAuthzObject, "update"); err != nil {
		return nil, err
	}
	if errs, ok := dto.Ok(); !ok {
		return nil, errs
	}
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireTaskScope(ctx, t.ProjectID, t.AssignedTo); err != nil {
		return nil, err
	}
	u, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if u.IsWorker() && !dto.WorkerOnly() {
		return nil, fmt.Errorf("%w: workers may only update progress and status", authz.ErrForbidden)
	}
	if err := s.checkDependency(ctx, t.ID, t.ProjectID, dto.DependsOnTaskID); err != nil {
		return nil, err
	}
	dto.Apply(t)
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}
	s.publisher.Publish("task.updated", t)
	return t, nil
}

func (s *TaskService) Delete(ctx context.Context, id uint) error {
	if err := authorizeConstruction(ctx, TasksAuthzObject, "delete"); err != nil {
		return err
	}
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := requireProjectScope(ctx, t.ProjectID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publisher.Publish("task.deleted", id)
	return nil
}
