package resource

import (
	"context"
	"errors"
	"time"

	"github.com/buildflow/buildflow/modules/construction/domain/enums"
)

var ErrNotFound = errors.New("resource not found")

// DefaultUnit labels quantities when no unit is supplied.
const DefaultUnit = "units"

type Resource struct {
	ID           uint
	ProjectID    uint
	Name         string
	ResourceType enums.ResourceType
	Status       enums.ResourceStatus
	Quantity     float64
	Unit         string
	UnitCost     float64
	TotalCost    float64
	Supplier     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RecalculateTotalCost sets TotalCost from Quantity and UnitCost. Every
// create and update path calls it before persisting.
func (r *Resource) RecalculateTotalCost() {
	r.TotalCost = r.Quantity * r.UnitCost
}

type FindParams struct {
	IDs          []uint
	ProjectID    uint
	ResourceType enums.ResourceType
	Limit        int
	Offset       int
}

type Repository interface {
	Count(ctx context.Context, params *FindParams) (int64, error)
	GetPaginated(ctx context.Context, params *FindParams) ([]*Resource, error)
	GetByID(ctx context.Context, id uint) (*Resource, error)
	Create(ctx context.Context, data *Resource) error
	Update(ctx context.Context, data *Resource) error
	Delete(ctx context.Context, id uint) error
}
