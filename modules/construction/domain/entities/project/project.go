package project

import (
	"context"
	"errors"
	"time"

	"github.com/buildflow/buildflow/modules/construction/domain/enums"
)

var ErrNotFound = errors.New("project not found")

type Project struct {
	ID             uint
	Name           string
	Description    string
	Status         enums.ProjectStatus
	StartDate      *time.Time
	PlannedEndDate *time.Time
	ActualEndDate  *time.Time
	TotalBudget    float64
	SpentAmount    float64
	Location       string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// BudgetUtilization is spent/total as a percentage, 0 for an empty budget.
func (p *Project) BudgetUtilization() float64 {
	if p.TotalBudget <= 0 {
		return 0
	}
	return p.SpentAmount / p.TotalBudget * 100
}

func (p *Project) RemainingBudget() float64 {
	return p.TotalBudget - p.SpentAmount
}

type FindParams struct {
	IDs    []uint
	Name   string // case-insensitive equality
	Status enums.ProjectStatus
	Limit  int
	Offset int
}

type Repository interface {
	Count(ctx context.Context, params *FindParams) (int64, error)
	GetAll(ctx context.Context) ([]*Project, error)
	GetPaginated(ctx context.Context, params *FindParams) ([]*Project, error)
	GetByID(ctx context.Context, id uint) (*Project, error)
	Exists(ctx context.Context, id uint) (bool, error)
	Create(ctx context.Context, data *Project) error
	Update(ctx context.Context, data *Project) error
	Delete(ctx context.Context, id uint) error
}
