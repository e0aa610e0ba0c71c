package project

import (
	"strings"
	"time"

	"github.com/buildflow/buildflow/modules/construction/domain/enums"
	"github.com/buildflow/buildflow/pkg/constants"
	"github.com/buildflow/buildflow/pkg/serrors"
)

type CreateDTO struct {
	Name           string     `json:"name" validate:"required,max=255"`
	Description    string     `json:"description"`
	Status         string     `json:"status" validate:"omitempty,project_status"`
	StartDate      *time.Time `json:"start_date"`
	PlannedEndDate *time.Time `json:"planned_end_date"`
	ActualEndDate  *time.Time `json:"actual_end_date"`
	TotalBudget    float64    `json:"total_budget" validate:"gte=0"`
	SpentAmount    float64    `json:"spent_amount" validate:"gte=0"`
	Location       string     `json:"location"`
}

func (d *CreateDTO) Normalize() {
	d.Name = strings.TrimSpace(d.Name)
	d.Description = strings.TrimSpace(d.Description)
	d.Location = strings.TrimSpace(d.Location)
}

func (d *CreateDTO) Ok() (serrors.ValidationErrors, bool) {
	d.Normalize()
	if err := constants.Validate.Struct(d); err != nil {
		return serrors.FromValidator(err), false
	}
	return nil, true
}

func (d *CreateDTO) ToEntity() *Project {
	return &Project{
		Name:           d.Name,
		Description:    d.Description,
		Status:         enums.CoerceProjectStatus(d.Status),
		StartDate:      d.StartDate,
		PlannedEndDate: d.PlannedEndDate,
		ActualEndDate:  d.ActualEndDate,
		TotalBudget:    d.TotalBudget,
		SpentAmount:    d.SpentAmount,
		Location:       d.Location,
	}
}

type UpdateDTO struct {
	Name           *string    `json:"name" validate:"omitempty,min=1,max=255"`
	Description    *string    `json:"description"`
	Status         *string    `json:"status" validate:"omitempty,project_status"`
	StartDate      *time.Time `json:"start_date"`
	PlannedEndDate *time.Time `json:"planned_end_date"`
	ActualEndDate  *time.Time `json:"actual_end_date"`
	TotalBudget    *float64   `json:"total_budget" validate:"omitempty,gte=0"`
	SpentAmount    *float64   `json:"spent_amount" validate:"omitempty,gte=0"`
	Location       *string    `json:"location"`
}

func (d *UpdateDTO) Ok() (serrors.ValidationErrors, bool) {
	if d.Name != nil {
		trimmed := strings.TrimSpace(*d.Name)
		d.Name = &trimmed
	}
	if err := constants.Validate.Struct(d); err != nil {
		return serrors.FromValidator(err), false
	}
	return nil, true
}

// Apply copies the set fields onto p.
func (d *UpdateDTO) Apply(p *Project) {
	if d.Name != nil {
		p.Name = *d.Name
	}
	if d.Description != nil {
		p.Description = *d.Description
	}
	if d.Status != nil {
		p.Status = enums.CoerceProjectStatus(*d.Status)
	}
	if d.StartDate != nil {
		p.StartDate = d.StartDate
	}
	if d.PlannedEndDate != nil {
		p.PlannedEndDate = d.PlannedEndDate
	}
	if d.ActualEndDate != nil {
		p.ActualEndDate = d.ActualEndDate
	}
	if d.TotalBudget != nil {
		p.TotalBudget = *d.TotalBudget
	}
	if d.SpentAmount != nil {
		p.SpentAmount = *d.SpentAmount
	}
	if d.Location != nil {
		p.Location = *d.Location
	}
}
