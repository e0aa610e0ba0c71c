package services

import (
	"context"

	"github.com/buildflow/buildflow/modules/construction/domain/entities/project"
	"github.com/buildflow/buildflow/modules/construction/domain/entities/task"
	"github.com/buildflow/buildflow/modules/construction/domain/enums"
	"github.com/buildflow/buildflow/pkg/eventbus"
)

type ProjectService struct {
	repo      project.Repository
	tasks     task.Repository
	publisher eventbus.EventBus
}

func NewProjectService(repo project.Repository, tasks task.Repository, publisher eventbus.EventBus) *ProjectService {
	return &ProjectService{
		repo:      repo,
		tasks:     tasks,
		publisher: publisher,
	}
}

// ProjectSummary is the list view row with task-based progress.
type ProjectSummary struct {
	ID                uint                `json:"id"`
	Name              string              `json:"name"`
	Status            enums.ProjectStatus `json:"status"`
	BudgetUtilization float64             `json:"budget_utilization"`
	Progress          float64             `json:"progress"`
}

// scoped narrows params to the caller's managed projects.
func scoped(ctx context.Context, params *project.FindParams) (*project.FindParams, bool, error) {
	u, err := currentUser(ctx)
	if err != nil {
		return nil, false, err
	}
	if params == nil {
		params = &project.FindParams{}
	}
	if !u.IsManager() {
		return params, true, nil
	}
	if len(u.ManagedProjects) == 0 {
		return params, false, nil
	}
	out := *params
	if len(out.IDs) == 0 {
		out.IDs = u.ManagedProjects
	} else {
		var ids []uint
		for _, id := range out.IDs {
			if u.Manages(id) {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			return &out, false, nil
		}
		out.IDs = ids
	}
	return &out, true, nil
}

func (s *ProjectService) Count(ctx context.Context, params *project.FindParams) (int64, error) {
	if err := authorizeConstruction(ctx, ProjectsAuthzObject, "read"); err != nil {
		return 0, err
	}
	params, ok, err := scoped(ctx, params)
	if err != nil || !ok {
		return 0, err
	}
	return s.repo.Count(ctx, params)
}

func (s *ProjectService) GetPaginated(ctx context.Context, params *project.FindParams) ([]*project.Project, error) {
	if err := authorizeConstruction(ctx, ProjectsAuthzObject, "read"); err != nil {
		return nil, err
	}
	params, ok, err := scoped(ctx, params)
	if err != nil || !ok {
		return nil, err
	}
	return s.repo.GetPaginated(ctx, params)
}

func (s *ProjectService) GetByID(ctx context.Context, id uint) (*project.Project, error) {
	if err := authorizeConstruction(ctx, ProjectsAuthzObject, "read"); err != nil {
		return nil, err
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireProjectScope(ctx, p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ProjectService) Summaries(ctx context.Context) ([]*ProjectSummary, error) {
	projects, err := s.GetPaginated(ctx, nil)
	if err != nil {
		return nil, err
	}
	out := make([]*ProjectSummary, 0, len(projects))
	for _, p := range projects {
		total, err := s.tasks.Count(ctx, &task.FindParams{ProjectID: p.ID})
		if err != nil {
			return nil, err
		}
		done, err := s.tasks.Count(ctx, &task.FindParams{ProjectID: p.ID, Status: enums.TaskCompleted})
		if err != nil {
			return nil, err
		}
		out = append(out, &ProjectSummary{
			ID:                p.ID,
			Name:              p.Name,
			Status:            p.Status,
			BudgetUtilization: round2(p.BudgetUtilization()),
			Progress:          percent(done, total),
		})
	}
	return out, nil
}

func (s *ProjectService) Create(ctx context.Context, dto *project.CreateDTO) (*project.Project, error) {
	if err := authorizeConstruction(ctx, ProjectsAuthzObject, "create"); err != nil {
		return nil, err
	}
	if errs, ok := dto.Ok(); !ok {
		return nil, errs
	}
	p := dto.ToEntity()
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.publisher.Publish("project.created", p)
	return p, nil
}

func (s *ProjectService) Update(ctx context.Context, id uint, dto *project.UpdateDTO) (*project.Project, error) {
	if err := authorizeConstruction(ctx, ProjectsAuthzObject, "update"); err != nil {
		return nil, err
	}
	if err := requireProjectScope(ctx, id); err != nil {
		return nil, err
	}
	if errs, ok := dto.Ok(); !ok {
		return nil, errs
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	dto.Apply(p)
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	s.publisher.Publish("project.updated", p)
	return p, nil
}

// Delete removes the project together with its tasks, resources and budgets.
func (s *ProjectService) Delete(ctx context.Context, id uint) error {
	if err := authorizeConstruction(ctx, ProjectsAuthzObject, "delete"); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publisher.Publish("project.deleted", id)
	return nil
}
