package services

import (
	"context"
	"time"

	"github.com/buildflow/buildflow/modules/construction/domain/entities/budget"
	"github.com/buildflow/buildflow/modules/construction/domain/entities/project"
	"github.com/buildflow/buildflow/pkg/eventbus"
)

type BudgetService struct {
	repo      budget.Repository
	projects  project.Repository
	publisher eventbus.EventBus
	now       func() time.Time
}

func NewBudgetService(repo budget.Repository, projects project.Repository, publisher eventbus.EventBus) *BudgetService {
	return &BudgetService{
		repo:      repo,
		projects:  projects,
		publisher: publisher,
		now:       time.Now,
	}
}

func (s *BudgetService) GetPaginated(ctx context.Context, params *budget.FindParams) ([]*budget.Budget, error) {
	if err := authorizeConstruction(ctx, BudgetsAuthzObject, "read"); err != nil {
		return nil, err
	}
	if params != nil && params.ProjectID != 0 {
		if err := requireProjectScope(ctx, params.ProjectID); err != nil {
			return nil, err
		}
		return s.repo.GetPaginated(ctx, params)
	}
	items, err := s.repo.GetPaginated(ctx, params)
	if err != nil {
		return nil, err
	}
	u, err := currentUser(ctx)
	if err != nil || !u.IsManager() {
		return items, err
	}
	visible := items[:0]
	for _, b := range items {
		if u.Manages(b.ProjectID) {
			visible = append(visible, b)
		}
	}
	return visible, nil
}

func (s *BudgetService) GetByID(ctx context.Context, id uint) (*budget.Budget, error) {
	if err := authorizeConstruction(ctx, BudgetsAuthzObject, "read"); err != nil {
		return nil, err
	}
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireProjectScope(ctx, b.ProjectID); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *BudgetService) Create(ctx context.Context, dto *budget.CreateDTO) (*budget.Budget, error) {
	if err := authorizeConstruction(ctx, BudgetsAuthzObject, "create"); err != nil {
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
	b := dto.ToEntity(s.now().UTC())
	if err := s.repo.Create(ctx, b); err != nil {
		return nil, err
	}
	s.publisher.Publish("budget.created", b)
	return b, nil
}

func (s *BudgetService) Update(ctx context.Context, id uint, dto *budget.UpdateDTO) (*budget.Budget, error) {
	if err := authorizeConstruction(ctx, BudgetsAuthzObject, "update"); err != nil {
		return nil, err
	}
	if errs, ok := dto.Ok(); !ok {
		return nil, errs
	}
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireProjectScope(ctx, b.ProjectID); err != nil {
		return nil, err
	}
	dto.Apply(b)
	if err := s.repo.Update(ctx, b); err != nil {
		return nil, err
	}
	s.publisher.Publish("budget.updated", b)
	return b, nil
}

func (s *BudgetService) Delete(ctx context.Context, id uint) error {
	if err := authorizeConstruction(ctx, BudgetsAuthzObject, "delete"); err != nil {
		return err
	}
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := requireProjectScope(ctx, b.ProjectID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publisher.Publish("budget.deleted", id)
	return nil
}
