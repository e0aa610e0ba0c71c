package models

import "time"

type Project struct {
	ID             uint
	Name           string
	Description    string
	Status         string
	StartDate      *time.Time
	PlannedEndDate *time.Time
	ActualEndDate  *time.Time
	TotalBudget    float64
	SpentAmount    float64
	Location       string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Task struct {
	ID                 uint
	ProjectID          uint
	Name               string
	Description        string
	Status             string
	Priority           string
	StartDate          *time.Time
	PlannedEndDate     *time.Time
	ActualEndDate      *time.Time
	ProgressPercentage float64
	AssignedTo         string
	DependsOnTaskID    *uint
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type Resource struct {
	ID           uint
	ProjectID    uint
	Name         string
	ResourceType string
	Status       string
	Quantity     float64
	Unit         string
	UnitCost     float64
	TotalCost    float64
	Supplier     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

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
