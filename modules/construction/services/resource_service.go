package services

import (
	"context"

	"github.com/buildflow/buildflow/modules/construction/domain/entities/project"
	"github.com/buildflow/buildflow/modules/construction/domain/entities/resource"
	"github.com/buildflow/buildflow/pkg/eventbus"
)

type ResourceService struct {
	repo      resource.Repository
	projects  project.Repository
	publisher eventbus.EventBus
}

func NewResourceService(repo resource.Repository, projects project.Repository, publisher eventbus.EventBus) *ResourceService {
	return &ResourceService{
		repo:      repo,
		projects:  projects,
		publisher: publisher,
	}
}

func (s *ResourceService) GetPaginated(ctx context.Context, params *resource.FindParams) ([]*resource.Resource, error) {
	if err := authorizeConstruction(ctx, ResourcesAuthzObject, "read"); err != nil {
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
	for _, r := range items {
		if u.Manages(r.ProjectID) {
			visible = append(visible, r)
		}
	}
	return visible, nil
}

func (s *ResourceService) GetByID(ctx context.Context, id uint) (*resource.Resource, error) {
	if err := authorizeConstruction(ctx, ResourcesAuthzObject, "read"); err != nil {
		return nil, err
	}
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireProjectScope(ctx, r.ProjectID); err != nil {
		return nil, err
	}
	return r, nil
}

// Create stores the resource with its total cost derived from quantity and
// unit cost.
func (s *ResourceService) Create(ctx context.Context, dto *resource.CreateDTO) (*resource.Resource, error) {
	if err := authorizeConstruction(ctx, ResourcesAuthzObject, "create"); err != nil {
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
	r := dto.ToEntity()
	if err := s.repo.Create(ctx, r); err != nil {
		return nil, err
	}
	s.publisher.Publish("resource.created", r)
	return r, nil
}

func (s *ResourceService) Update(ctx context.Context, id uint, dto *resource.UpdateDTO) (*resource.Resource, error) {
	if err := authorizeConstruction(ctx, ResourcesAuthzObject, "update"); err != nil {
		return nil, err
	}
	if errs, ok := dto.Ok(); !ok {
		return nil, errs
	}
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireProjectScope(ctx, r.ProjectID); err != nil {
		return nil, err
	}
	dto.Apply(r)
	if err := s.repo.Update(ctx, r); err != nil {
		return nil, err
	}
	s.publisher.Publish("resource.updated", r)
	return r, nil
}

func (s *ResourceService) Delete(ctx context.Context, id uint) error {
	if err := authorizeConstruction(ctx, ResourcesAuthzObject, "delete"); err != nil {
		return err
	}
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := requireProjectScope(ctx, r.ProjectID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publisher.Publish("resource.deleted", id)
	return nil
}
