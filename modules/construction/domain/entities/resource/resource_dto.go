package resource

import (
	"strings"

	"github.com/buildflow/buildflow/modules/construction/domain/enums"
	"github.com/buildflow/buildflow/pkg/constants"
	"github.com/buildflow/buildflow/pkg/serrors"
)

type CreateDTO struct {
	ProjectID    uint    `json:"project_id" validate:"required"`
	Name         string  `json:"name" validate:"required,max=255"`
	ResourceType string  `json:"resource_type" validate:"omitempty,resource_type"`
	Status       string  `json:"status" validate:"omitempty,resource_status"`
	Quantity     float64 `json:"quantity" validate:"gte=0"`
	Unit         string  `json:"unit" validate:"max=50"`
	UnitCost     float64 `json:"unit_cost" validate:"gte=0"`
	Supplier     string  `json:"supplier"`
}

func (d *CreateDTO) Ok() (serrors.ValidationErrors, bool) {
	d.Name = strings.TrimSpace(d.Name)
	d.Unit = strings.TrimSpace(d.Unit)
	if err := constants.Validate.Struct(d); err != nil {
		return serrors.FromValidator(err), false
	}
	return nil, true
}

func (d *CreateDTO) ToEntity() *Resource {
	unit := d.Unit
	if unit == "" {
		unit = DefaultUnit
	}
	r := &Resource{
		ProjectID:    d.ProjectID,
		Name:         d.Name,
		ResourceType: enums.CoerceResourceType(d.ResourceType),
		Status:       enums.CoerceResourceStatus(d.Status),
		Quantity:     d.Quantity,
		Unit:         unit,
		UnitCost:     d.UnitCost,
		Supplier:     strings.TrimSpace(d.Supplier),
	}
	r.RecalculateTotalCost()
	return r
}

type UpdateDTO struct {
	Name         *string  `json:"name" validate:"omitempty,min=1,max=255"`
	ResourceType *string  `json:"resource_type" validate:"omitempty,resource_type"`
	Status       *string  `json:"status" validate:"omitempty,resource_status"`
	Quantity     *float64 `json:"quantity" validate:"omitempty,gte=0"`
	Unit         *string  `json:"unit" validate:"omitempty,max=50"`
	UnitCost     *float64 `json:"unit_cost" validate:"omitempty,gte=0"`
	Supplier     *string  `json:"supplier"`
}

func (d *UpdateDTO) Ok() (serrors.ValidationErrors, bool) {
	if err := constants.Validate.Struct(d); err != nil {
		return serrors.FromValidator(err), false
	}
	return nil, true
}

// Apply copies the set fields onto r and recomputes the total cost.
func (d *UpdateDTO) Apply(r *Resource) {
	if d.Name != nil {
		r.Name = strings.TrimSpace(*d.Name)
	}
	if d.ResourceType != nil {
		r.ResourceType = enums.CoerceResourceType(*d.ResourceType)
	}
	if d.Status != nil {
		r.Status = enums.CoerceResourceStatus(*d.Status)
	}
	if d.Quantity != nil {
		r.Quantity = *d.Quantity
	}
	if d.Unit != nil {
		r.Unit = strings.TrimSpace(*d.Unit)
		if r.Unit == "" {
			r.Unit = DefaultUnit
		}
	}
	if d.UnitCost != nil {
		r.UnitCost = *d.UnitCost
	}
	if d.Supplier != nil {
		r.Supplier = strings.TrimSpace(*d.Supplier)
	}
	r.RecalculateTotalCost()
}
