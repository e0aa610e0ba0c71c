package persistence

import (
	"github.com/buildflow/buildflow/modules/construction/domain/entities/budget"
	"github.com/buildflow/buildflow/modules/construction/domain/entities/project"
	"github.com/buildflow/buildflow/modules/construction/domain/entities/resource"
	"github.com/buildflow/buildflow/modules/construction/domain/entities/task"
	"github.com/buildflow/buildflow/modules/construction/domain/enums"
	"github.com/buildflow/buildflow/modules/construction/infrastructure/persistence/models"
)

// Stored enum values pass through the same coercion as imported ones, so a
// legacy spelling in the database still reads back as a canonical value.

func toDomainProject(m *models.Project) *project.Project {
	return &project.Project{
		ID:             m.ID,
		Name:           m.Name,
		Description:    m.Description,
		Status:         enums.CoerceProjectStatus(m.Status),
		StartDate:      m.StartDate,
		PlannedEndDate: m.PlannedEndDate,
		ActualEndDate:  m.ActualEndDate,
		TotalBudget:    m.TotalBudget,
		SpentAmount:    m.SpentAmount,
		Location:       m.Location,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func toDomainTask(m *models.Task) *task.Task {
	return &task.Task{
		ID:                 m.ID,
		ProjectID:          m.ProjectID,
		Name:               m.Name,
		Description:        m.Description,
		Status:             enums.CoerceTaskStatus(m.Status),
		Priority:           enums.CoerceTaskPriority(m.Priority),
		StartDate:          m.StartDate,
		PlannedEndDate:     m.PlannedEndDate,
		ActualEndDate:      m.ActualEndDate,
		ProgressPercentage: m.ProgressPercentage,
		AssignedTo:         m.AssignedTo,
		DependsOnTaskID:    m.DependsOnTaskID,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

func toDomainResource(m *models.Resource) *resource.Resource {
	return &resource.Resource{
		ID:           m.ID,
		ProjectID:    m.ProjectID,
		Name:         m.Name,
		ResourceType: enums.CoerceResourceType(m.ResourceType),
		Status:       enums.CoerceResourceStatus(m.Status),
		Quantity:     m.Quantity,
		Unit:         m.Unit,
		UnitCost:     m.UnitCost,
		TotalCost:    m.TotalCost,
		Supplier:     m.Supplier,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func toDomainBudget(m *models.Budget) *budget.Budget {
	return &budget.Budget{
		ID:            m.ID,
		ProjectID:     m.ProjectID,
		Category:      m.Category,
		Description:   m.Description,
		PlannedAmount: m.PlannedAmount,
		ActualAmount:  m.ActualAmount,
		BudgetDate:    m.BudgetDate,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}
