package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/buildflow/buildflow/modules/construction/domain/entities/budget"
	"github.com/buildflow/buildflow/modules/construction/domain/entities/project"
	"github.com/buildflow/buildflow/modules/construction/domain/entities/resource"
	"github.com/buildflow/buildflow/modules/construction/domain/entities/task"
	"github.com/buildflow/buildflow/modules/construction/domain/enums"
)

const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
)

// completedForMedium is the number of finished tasks above which a forecast
// is reported with medium confidence.
const completedForMedium = 3

type DashboardStats struct {
	TotalProjects      int64   `json:"total_projects"`
	ActiveProjects     int64   `json:"active_projects"`
	CompletedProjects  int64   `json:"completed_projects"`
	TotalBudget        float64 `json:"total_budget"`
	TotalSpent         float64 `json:"total_spent"`
	BudgetUtilization  float64 `json:"budget_utilization"`
	TotalTasks         int64   `json:"total_tasks"`
	CompletedTasks     int64   `json:"completed_tasks"`
	OverdueTasks       int64   `json:"overdue_tasks"`
	TaskCompletionRate float64 `json:"task_completion_rate"`
}

type ProjectKPI struct {
	ProjectName       string              `json:"project_name"`
	Status            enums.ProjectStatus `json:"status"`
	Progress          float64             `json:"progress"`
	BudgetTotal       float64             `json:"budget_total"`
	BudgetSpent       float64             `json:"budget_spent"`
	BudgetRemaining   float64             `json:"budget_remaining"`
	BudgetUtilization float64             `json:"budget_utilization"`
	TotalTasks        int                 `json:"total_tasks"`
	CompletedTasks    int                 `json:"completed_tasks"`
	InProgressTasks   int                 `json:"in_progress_tasks"`
	OverdueTasks      int                 `json:"overdue_tasks"`
	TotalResources    int                 `json:"total_resources"`
	ResourceCost      float64             `json:"resource_cost"`
	StartDate         *time.Time          `json:"start_date"`
	PlannedEnd        *time.Time          `json:"planned_end"`
	ActualEnd         *time.Time          `json:"actual_end"`
}

type BudgetLine struct {
	Category           string  `json:"category"`
	Planned            float64 `json:"planned"`
	Actual             float64 `json:"actual"`
	Variance           float64 `json:"variance"`
	VariancePercentage float64 `json:"variance_percentage"`
}

type ResourceShare struct {
	Count     int     `json:"count"`
	TotalCost float64 `json:"total_cost"`
}

type TimelineEntry struct {
	ID         uint             `json:"id"`
	Name       string           `json:"name"`
	Status     enums.TaskStatus `json:"status"`
	StartDate  *time.Time       `json:"start_date"`
	PlannedEnd *time.Time       `json:"planned_end"`
	ActualEnd  *time.Time       `json:"actual_end"`
	Progress   float64          `json:"progress"`
	IsOverdue  bool             `json:"is_overdue"`
}

type Timeline struct {
	ProjectName  string           `json:"project_name"`
	ProjectStart *time.Time       `json:"project_start"`
	ProjectEnd   *time.Time       `json:"project_end"`
	Tasks        []*TimelineEntry `json:"tasks"`
}

// CompletionForecast is a linear extrapolation from the share of completed
// tasks.
type CompletionForecast struct {
	PredictedCompletionDate *time.Time `json:"predicted_completion_date"`
	PredictedTotalCost      float64    `json:"predicted_total_cost"`
	CurrentProgress         float64    `json:"current_progress"`
	CostOverrun             float64    `json:"cost_overrun"`
	Confidence              string     `json:"confidence"`
}

type AnalyticsService struct {
	projects  project.Repository
	tasks     task.Repository
	resources resource.Repository
	budgets   budget.Repository
	now       func() time.Time
}

func NewAnalyticsService(
	projects project.Repository,
	tasks task.Repository,
	resources resource.Repository,
	budgets budget.Repository,
) *AnalyticsService {
	return &AnalyticsService{
		projects:  projects,
		tasks:     tasks,
		resources: resources,
		budgets:   budgets,
		now:       time.Now,
	}
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func percent[N int | int64](part, whole N) float64 {
	if whole <= 0 {
		return 0
	}
	return decimal.NewFromInt(int64(part)).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(int64(whole)), 2).
		InexactFloat64()
}

func (s *AnalyticsService) Dashboard(ctx context.Context) (*DashboardStats, error) {
	if err := authorizeConstruction(ctx, AnalyticsAuthzObject, "read"); err != nil {
		return nil, err
	}
	projects, err := s.projects.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	tasks, err := s.tasks.GetPaginated(ctx, nil)
	if err != nil {
		return nil, err
	}

	stats := &DashboardStats{TotalProjects: int64(len(projects)), TotalTasks: int64(len(tasks))}
	budgetSum, spentSum := decimal.Zero, decimal.Zero
	for _, p := range projects {
		switch p.Status {
		case enums.ProjectInProgress:
			stats.ActiveProjects++
		case enums.ProjectCompleted:
			stats.CompletedProjects++
		}
		budgetSum = budgetSum.Add(decimal.NewFromFloat(p.TotalBudget))
		spentSum = spentSum.Add(decimal.NewFromFloat(p.SpentAmount))
	}
	now := s.now()
	for _, t := range tasks {
		if t.Status == enums.TaskCompleted {
			stats.CompletedTasks++
		}
		if t.IsOverdue(now) {
			stats.OverdueTasks++
		}
	}
	stats.TotalBudget = budgetSum.Round(2).InexactFloat64()
	stats.TotalSpent = spentSum.Round(2).InexactFloat64()
	if budgetSum.IsPositive() {
		stats.BudgetUtilization = spentSum.Mul(decimal.NewFromInt(100)).DivRound(budgetSum, 2).InexactFloat64()
	}
	stats.TaskCompletionRate = percent(stats.CompletedTasks, stats.TotalTasks)
	return stats, nil
}

// project loads a project the caller may see.
func (s *AnalyticsService) project(ctx context.Context, id uint) (*project.Project, error) {
	if err := authorizeConstruction(ctx, AnalyticsAuthzObject, "read"); err != nil {
		return nil, err
	}
	if err := requireProjectScope(ctx, id); err != nil {
		return nil, err
	}
	return s.projects.GetByID(ctx, id)
}

func (s *AnalyticsService) ProjectKPI(ctx context.Context, id uint) (*ProjectKPI, error) {
	p, err := s.project(ctx, id)
	if err != nil {
		return nil, err
	}
	tasks, err := s.tasks.GetPaginated(ctx, &task.FindParams{ProjectID: id})
	if err != nil {
		return nil, err
	}
	resources, err := s.resources.GetPaginated(ctx, &resource.FindParams{ProjectID: id})
	if err != nil {
		return nil, err
	}

	kpi := &ProjectKPI{
		ProjectName:       p.Name,
		Status:            p.Status,
		BudgetTotal:       p.TotalBudget,
		BudgetSpent:       p.SpentAmount,
		BudgetRemaining:   p.RemainingBudget(),
		BudgetUtilization: round2(p.BudgetUtilization()),
		TotalTasks:        len(tasks),
		TotalResources:    len(resources),
		StartDate:         p.StartDate,
		PlannedEnd:        p.PlannedEndDate,
		ActualEnd:         p.ActualEndDate,
	}
	now := s.now()
	for _, t := range tasks {
		switch t.Status {
		case enums.TaskCompleted:
			kpi.CompletedTasks++
		case enums.TaskInProgress:
			kpi.InProgressTasks++
		}
		if t.IsOverdue(now) {
			kpi.OverdueTasks++
		}
	}
	cost := decimal.Zero
	for _, r := range resources {
		cost = cost.Add(decimal.NewFromFloat(r.TotalCost))
	}
	kpi.ResourceCost = cost.Round(2).InexactFloat64()
	kpi.Progress = percent(kpi.CompletedTasks, kpi.TotalTasks)
	return kpi, nil
}

func (s *AnalyticsService) BudgetBreakdown(ctx context.Context, id uint) ([]*BudgetLine, error) {
	if _, err := s.project(ctx, id); err != nil {
		return nil, err
	}
	budgets, err := s.budgets.GetPaginated(ctx, &budget.FindParams{ProjectID: id})
	if err != nil {
		return nil, err
	}
	out := make([]*BudgetLine, 0, len(budgets))
	for _, b := range budgets {
		out = append(out, &BudgetLine{
			Category:           b.Category,
			Planned:            b.PlannedAmount,
			Actual:             b.ActualAmount,
			Variance:           b.Variance(),
			VariancePercentage: round2(b.VariancePercentage()),
		})
	}
	return out, nil
}

// ResourceDistribution groups resources by type. Every type is present in
// the result, empty ones with zero values.
func (s *AnalyticsService) ResourceDistribution(ctx context.Context, id uint) (map[enums.ResourceType]*ResourceShare, error) {
	if _, err := s.project(ctx, id); err != nil {
		return nil, err
	}
	resources, err := s.resources.GetPaginated(ctx, &resource.FindParams{ProjectID: id})
	if err != nil {
		return nil, err
	}
	out := make(map[enums.ResourceType]*ResourceShare)
	sums := make(map[enums.ResourceType]decimal.Decimal)
	for _, rt := range enums.ResourceTypes() {
		out[rt] = &ResourceShare{}
		sums[rt] = decimal.Zero
	}
	for _, r := range resources {
		share, ok := out[r.ResourceType]
		if !ok {
			share = &ResourceShare{}
			out[r.ResourceType] = share
		}
		share.Count++
		sums[r.ResourceType] = sums[r.ResourceType].Add(decimal.NewFromFloat(r.TotalCost))
	}
	for rt, sum := range sums {
		out[rt].TotalCost = sum.Round(2).InexactFloat64()
	}
	return out, nil
}

func (s *AnalyticsService) Timeline(ctx context.Context, id uint) (*Timeline, error) {
	p, err := s.project(ctx, id)
	if err != nil {
		return nil, err
	}
	tasks, err := s.tasks.GetPaginated(ctx, &task.FindParams{ProjectID: id})
	if err != nil {
		return nil, err
	}
	now := s.now()
	tl := &Timeline{
		ProjectName:  p.Name,
		ProjectStart: p.StartDate,
		ProjectEnd:   p.PlannedEndDate,
		Tasks:        make([]*TimelineEntry, 0, len(tasks)),
	}
	for _, t := range tasks {
		tl.Tasks = append(tl.Tasks, &TimelineEntry{
			ID:         t.ID,
			Name:       t.Name,
			Status:     t.Status,
			StartDate:  t.StartDate,
			PlannedEnd: t.PlannedEndDate,
			ActualEnd:  t.ActualEndDate,
			Progress:   t.ProgressPercentage,
			IsOverdue:  t.IsOverdue(now),
		})
	}
	return tl, nil
}

// PredictCompletion extrapolates the finish date and the total cost from the
// share of completed tasks. Without any completed task the plan is returned
// unchanged with low confidence.
func (s *AnalyticsService) PredictCompletion(ctx context.Context, id uint) (*CompletionForecast, error) {
	p, err := s.project(ctx, id)
	if err != nil {
		return nil, err
	}
	tasks, err := s.tasks.GetPaginated(ctx, &task.FindParams{ProjectID: id})
	if err != nil {
		return nil, err
	}
	completed := 0
	for _, t := range tasks {
		if t.Status == enums.TaskCompleted {
			completed++
		}
	}
	if completed == 0 {
		return &CompletionForecast{
			PredictedTotalCost: p.TotalBudget,
			Confidence:         ConfidenceLow,
		}, nil
	}

	rate := decimal.NewFromInt(int64(completed)).Div(decimal.NewFromInt(int64(len(tasks))))
	forecast := &CompletionForecast{
		CurrentProgress: rate.Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64(),
		Confidence:      ConfidenceLow,
	}
	if completed > completedForMedium {
		forecast.Confidence = ConfidenceMedium
	}

	if p.StartDate != nil {
		elapsed := decimal.NewFromInt(int64(s.now().Sub(*p.StartDate) / (24 * time.Hour)))
		days := elapsed.Div(rate).InexactFloat64()
		predicted := p.StartDate.Add(time.Duration(days * float64(24*time.Hour)))
		forecast.PredictedCompletionDate = &predicted
	} else {
		forecast.PredictedCompletionDate = p.PlannedEndDate
	}

	cost := decimal.NewFromFloat(p.TotalBudget)
	if p.SpentAmount > 0 {
		cost = decimal.NewFromFloat(p.SpentAmount).Div(rate)
	}
	forecast.PredictedTotalCost = cost.Round(2).InexactFloat64()
	forecast.CostOverrun = cost.Sub(decimal.NewFromFloat(p.TotalBudget)).Round(2).InexactFloat64()
	return forecast, nil
}
