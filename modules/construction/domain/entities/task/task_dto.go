package task

import (
	"strings"
	"time"

	"github.com/buildflow/buildflow/modules/construction/domain/enums"
	"github.com/buildflow/buildflow/pkg/constants"
	"github.com/buildflow/buildflow/pkg/serrors"
)

type CreateDTO struct {
	ProjectID          uint       `json:"project_id" validate:"required"`
	Name               string     `json:"name" validate:"required,max=255"`
	Description        string     `json:"description"`
	Status             string     `json:"status" validate:"omitempty,task_status"`
	Priority           string     `json:"priority" validate:"omitempty,task_priority"`
	StartDate          *time.Time `json:"start_date"`
	PlannedEndDate     *time.Time `json:"planned_end_date"`
	ActualEndDate      *time.Time `json:"actual_end_date"`
	ProgressPercentage float64    `json:"progress_percentage" validate:"gte=0,lte=100"`
	AssignedTo         string     `json:"assigned_to"`
	DependsOnTaskID    *uint      `json:"depends_on_task_id"`
}

func (d *CreateDTO) Ok() (serrors.ValidationErrors, bool) {
	d.Name = strings.TrimSpace(d.Name)
	d.AssignedTo = strings.TrimSpace(d.AssignedTo)
	if err := constants.Validate.Struct(d); err != nil {
		return serrors.FromValidator(err), false
	}
	return nil, true
}

func (d *CreateDTO) ToEntity() *Task {
	return &Task{
		ProjectID:          d.ProjectID,
		Name:               d.Name,
		Description:        d.Description,
		Status:             enums.CoerceTaskStatus(d.Status),
		Priority:           enums.CoerceTaskPriority(d.Priority),
		StartDate:          d.StartDate,
		PlannedEndDate:     d.PlannedEndDate,
		ActualEndDate:      d.ActualEndDate,
		ProgressPercentage: ClampProgress(d.ProgressPercentage),
		AssignedTo:         d.AssignedTo,
		DependsOnTaskID:    d.DependsOnTaskID,
	}
}

type UpdateDTO struct {
	Name               *string    `json:"name" validate:"omitempty,min=1,max=255"`
	Description        *string    `json:"description"`
	Status             *string    `json:"status" validate:"omitempty,task_status"`
	Priority           *string    `json:"priority" validate:"omitempty,task_priority"`
	StartDate          *time.Time `json:"start_date"`
	PlannedEndDate     *time.Time `json:"planned_end_date"`
	ActualEndDate      *time.Time `json:"actual_end_date"`
	ProgressPercentage *float64   `json:"progress_percentage" validate:"omitempty,gte=0,lte=100"`
	AssignedTo         *string    `json:"assigned_to"`
	DependsOnTaskID    *uint      `json:"depends_on_task_id"`
}

func (d *UpdateDTO) Ok() (serrors.ValidationErrors, bool) {
	if err := constants.Validate.Struct(d); err != nil {
		return serrors.FromValidator(err), false
	}
	return nil, true
}

// WorkerOnly reports whether the update touches only progress and status.
func (d *UpdateDTO) WorkerOnly() bool {
	return d.Name == nil && d.Description == nil && d.Priority == nil &&
		d.StartDate == nil && d.PlannedEndDate == nil && d.ActualEndDate == nil &&
		d.AssignedTo == nil && d.DependsOnTaskID == nil
}

// Apply copies the set fields onto t.
func (d *UpdateDTO) Apply(t *Task) {
	if d.Name != nil {
		t.Name = strings.TrimSpace(*d.Name)
	}
	if d.Description != nil {
		t.Description = *d.Description
	}
	if d.Status != nil {
		t.Status = enums.CoerceTaskStatus(*d.Status)
	}
	if d.Priority != nil {
		t.Priority = enums.CoerceTaskPriority(*d.Priority)
	}
	if d.StartDate != nil {
		t.StartDate = d.StartDate
	}
	if d.PlannedEndDate != nil {
		t.PlannedEndDate = d.PlannedEndDate
	}
	if d.ActualEndDate != nil {
		t.ActualEndDate = d.ActualEndDate
	}
	if d.ProgressPercentage != nil {
		t.ProgressPercentage = ClampProgress(*d.ProgressPercentage)
	}
	if d.AssignedTo != nil {
		t.AssignedTo = strings.TrimSpace(*d.AssignedTo)
	}
	if d.DependsOnTaskID != nil {
		t.DependsOnTaskID = d.DependsOnTaskID
	}
}
