// Package viewmodels holds the JSON shapes served by the construction API.
package viewmodels

import (
	"time"

	"github.com/buildflow/buildflow/modules/construction/domain/entities/budget"
	"github.com/buildflow/buildflow/modules/construction/domain/entities/project"
	"github.com/buildflow/buildflow/modules/construction/domain/entities/resource"
	"github.com/buildflow/buildflow/modules/construction/domain/entities/task"
)

const dateLayout = "2006-01-02"

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

type Project struct {
	ID                uint    `json:"id"`
	Name              string  `json:"name"`
	Description       string  `json:"description"`
	Status            string  `json:"status"`
	StartDate         *string `json:"start_date"`
	PlannedEndDate    *string `json:"planned_end_date"`
	ActualEndDate     *string `json:"actual_end_date"`
	TotalBudget       float64 `json:"total_budget"`
	SpentAmount       float64 `json:"spent_amount"`
	RemainingBudget   float64 `json:"remaining_budget"`
	BudgetUtilization float64 `json:"budget_utilization"`
	Location          string  `json:"location"`
	CreatedAt         string  `json:"created_at"`
	UpdatedAt         string  `json:"updated_at"`
}

func ProjectToViewModel(p *project.Project) *Project {
	return &Project{
		ID:                p.ID,
		Name:              p.Name,
		Description:       p.Description,
		Status:            string(p.Status),
		StartDate:         formatDate(p.StartDate),
		PlannedEndDate:    formatDate(p.PlannedEndDate),
		ActualEndDate:     formatDate(p.ActualEndDate),
		TotalBudget:       p.TotalBudget,
		SpentAmount:       p.SpentAmount,
		RemainingBudget:   p.RemainingBudget(),
		BudgetUtilization: p.BudgetUtilization(),
		Location:          p.Location,
		CreatedAt:         p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         p.UpdatedAt.Format(time.RFC3339),
	}
}

type Task struct {
	ID                 uint    `json:"id"`
	ProjectID          uint    `json:"project_id"`
	Name               string  `json:"name"`
	Description        string  `json:"description"`
	Status             string  `json:"status"`
	Priority           string  `json:"priority"`
	StartDate          *string `json:"start_date"`
	PlannedEndDate     *string `json:"planned_end_date"`
	ActualEndDate      *string `json:"actual_end_date"`
	ProgressPercentage float64 `json:"progress_percentage"`
	AssignedTo         string  `json:"assigned_to"`
	DependsOnTaskID    *uint   `json:"depends_on_task_id"`
	IsOverdue          bool    `json:"is_overdue"`
}

func TaskToViewModel(t *task.Task, now time.Time) *Task {
	return &Task{
		ID:                 t.ID,
		ProjectID:          t.ProjectID,
		Name:               t.Name,
		Description:        t.Description,
		Status:             string(t.Status),
		Priority:           string(t.Priority),
		StartDate:          formatDate(t.StartDate),
		PlannedEndDate:     formatDate(t.PlannedEndDate),
		ActualEndDate:      formatDate(t.ActualEndDate),
		ProgressPercentage: t.ProgressPercentage,
		AssignedTo:         t.AssignedTo,
		DependsOnTaskID:    t.DependsOnTaskID,
		IsOverdue:          t.IsOverdue(now),
	}
}

type Resource struct {
	ID           uint    `json:"id"`
	ProjectID    uint    `json:"project_id"`
	Name         string  `json:"name"`
	ResourceType string  `json:"resource_type"`
	Status       string  `json:"status"`
	Quantity     float64 `json:"quantity"`
	Unit         string  `json:"unit"`
	UnitCost     float64 `json:"unit_cost"`
	TotalCost    float64 `json:"total_cost"`
	Supplier     string  `json:"supplier"`
}

func ResourceToViewModel(r *resource.Resource) *Resource {
	return &Resource{
		ID:           r.ID,
		ProjectID:    r.ProjectID,
		Name:         r.Name,
		ResourceType: string(r.ResourceType),
		Status:       string(r.Status),
		Quantity:     r.Quantity,
		Unit:         r.Unit,
		UnitCost:     r.UnitCost,
		TotalCost:    r.TotalCost,
		Supplier:     r.Supplier,
	}
}

type Budget struct {
	ID                 uint    `json:"id"`
	ProjectID          uint    `json:"project_id"`
	Category           string  `json:"category"`
	Description        string  `json:"description"`
	PlannedAmount      float64 `json:"planned_amount"`
	ActualAmount       float64 `json:"actual_amount"`
	Variance           float64 `json:"variance"`
	VariancePercentage float64 `json:"variance_percentage"`
	BudgetDate         string  `json:"budget_date"`
}

func BudgetToViewModel(b *budget.Budget) *Budget {
	return &Budget{
		ID:                 b.ID,
		ProjectID:          b.ProjectID,
		Category:           b.Category,
		Description:        b.Description,
		PlannedAmount:      b.PlannedAmount,
		ActualAmount:       b.ActualAmount,
		Variance:           b.Variance(),
		VariancePercentage: b.VariancePercentage(),
		BudgetDate:         b.BudgetDate.Format(dateLayout),
	}
}

// Map converts a slice with fn, never returning nil.
func Map[T any, V any](items []T, fn func(T) V) []V {
	out := make([]V, 0, len(items))
	for _, item := range items {
		out = append(out, fn(item))
	}
	return out
}
