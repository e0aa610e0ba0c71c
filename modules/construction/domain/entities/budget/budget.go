package budget

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("budget not found")

type Budget struct {
	ID            uint
	ProjectID     uint
	Category      string
	Description   string
	PlannedAmount float64
	ActualAmount  float64
	BudgetDate    time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (b *Budget) Variance() float64 {
	return b.PlannedAmount - b.ActualAmount
}

// VariancePercentage is variance relative to plan, 0 when nothing was planned.
func (b *Budget) VariancePercentage() float64 {
	if b.PlannedAmount == 0 {
		return 0
	}
	return b.Variance() / b.PlannedAmount * 100
}

type FindParams struct {
	IDs       []uint
	ProjectID uint
	Category  string
	Limit     int
	Offset    int
}

type Repository interface {
	Count(ctx context.Context, params *FindParams) (int64, error)
	GetPaginated(ctx context.Context, params *FindParams) ([]*Budget, error)
	GetByID(ctx context.Context, id uint) (*Budget, error)
	Create(ctx context.Context, data *Budget) error
	Update(ctx context.Context, data *Budget) error
	Delete(ctx context.Context, id uint) error
}
