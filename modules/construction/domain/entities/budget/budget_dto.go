package budget

import (
	"strings"
	"time"

	"github.com/buildflow/buildflow/pkg/constants"
	"github.com/buildflow/buildflow/pkg/serrors"
)

type CreateDTO struct {
	ProjectID     uint       `json:"project_id" validate:"required"`
	Category      string     `json:"category" validate:"required,max=255"`
	Description   string     `json:"description"`
	PlannedAmount float64    `json:"planned_amount" validate:"gte=0"`
	ActualAmount  float64    `json:"actual_amount" validate:"gte=0"`
	BudgetDate    *time.Time `json:"budget_date"`
}

func (d *CreateDTO) Ok() (serrors.ValidationErrors, bool) {
	d.Category = strings.TrimSpace(d.Category)
	if err := constants.Validate.Struct(d); err != nil {
		return serrors.FromValidator(err), false
	}
	return nil, true
}

func (d *CreateDTO) ToEntity(now time.Time) *Budget {
	date := now
	if d.BudgetDate != nil {
		date = *d.BudgetDate
	}
	return &Budget{
		ProjectID:     d.ProjectID,
		Category:      d.Category,
		Description:   d.Description,
		PlannedAmount: d.PlannedAmount,
		ActualAmount:  d.ActualAmount,
		BudgetDate:    date,
	}
}

type UpdateDTO struct {
	Category      *string    `json:"category" validate:"omitempty,min=1,max=255"`
	Description   *string    `json:"description"`
	PlannedAmount *float64   `json:"planned_amount" validate:"omitempty,gte=0"`
	ActualAmount  *float64   `json:"actual_amount" validate:"omitempty,gte=0"`
	BudgetDate    *time.Time `json:"budget_date"`
}

func (d *UpdateDTO) Ok() (serrors.ValidationErrors, bool) {
	if d.Category != nil {
		trimmed := strings.TrimSpace(*d.Category)
		d.Category = &trimmed
	}
	if err := constants.Validate.Struct(d); err != nil {
		return serrors.FromValidator(err), false
	}
	return nil, true
}

func (d *UpdateDTO) Apply(b *Budget) {
	if d.Category != nil {
		b.Category = *d.Category
	}
	if d.Description != nil {
		b.Description = *d.Description
	}
	if d.PlannedAmount != nil {
		b.PlannedAmount = *d.PlannedAmount
	}
	if d.ActualAmount != nil {
		b.ActualAmount = *d.ActualAmount
	}
	if d.BudgetDate != nil {
		b.BudgetDate = *d.BudgetDate
	}
}
