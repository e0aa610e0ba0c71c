package services

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/buildflow/buildflow/modules/construction/domain/entities/budget"
	"github.com/buildflow/buildflow/modules/construction/domain/entities/project"
	"github.com/buildflow/buildflow/modules/construction/domain/entities/resource"
	"github.com/buildflow/buildflow/modules/construction/domain/entities/task"
	"github.com/buildflow/buildflow/modules/construction/domain/enums"
	"github.com/buildflow/buildflow/modules/construction/infrastructure/persistence"
	"github.com/buildflow/buildflow/pkg/authz"
	"github.com/buildflow/buildflow/pkg/composables"
	"github.com/buildflow/buildflow/pkg/eventbus"
	"github.com/buildflow/buildflow/pkg/serrors"
)

type fixture struct {
	store     *persistence.MemoryStore
	bus       eventbus.EventBus
	projects  *ProjectService
	tasks     *TaskService
	resources *ResourceService
	budgets   *BudgetService
	analytics *AnalyticsService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	svc, err := authz.NewService(authz.Config{FlagProvider: authz.StaticFlagProvider(authz.ModeEnforce)})
	require.NoError(t, err)
	prev := authorizeConstructionFn
	authorizeConstructionFn = func(ctx context.Context, object, action string) error {
		u, err := currentUser(ctx)
		if err != nil || u == nil {
			return err
		}
		return svc.Authorize(ctx, authz.NewRequest(authz.SubjectForRole(u.Role), constructionAuthzDomain, object, action))
	}
	t.Cleanup(func() { authorizeConstructionFn = prev })

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	store := persistence.NewMemoryStore()
	bus := eventbus.NewEventPublisher(logger)
	return &fixture{
		store:     store,
		bus:       bus,
		projects:  NewProjectService(store.Projects(), store.Tasks(), bus),
		tasks:     NewTaskService(store.Tasks(), store.Projects(), bus),
		resources: NewResourceService(store.Resources(), store.Projects(), bus),
		budgets:   NewBudgetService(store.Budgets(), store.Projects(), bus),
		analytics: NewAnalyticsService(store.Projects(), store.Tasks(), store.Resources(), store.Budgets()),
	}
}

func as(role string, opts ...func(*composables.User)) context.Context {
	u := &composables.User{Username: role + "1", Role: role}
	for _, opt := range opts {
		opt(u)
	}
	return composables.WithUser(context.Background(), u)
}

func managing(ids ...uint) func(*composables.User) {
	return func(u *composables.User) { u.ManagedProjects = ids }
}

func workerNamed(name string) func(*composables.User) {
	return func(u *composables.User) { u.WorkerName = name }
}

func (f *fixture) seedProject(t *testing.T, name string, budget, spent float64) *project.Project {
	t.Helper()
	p, err := f.projects.Create(context.Background(), &project.CreateDTO{Name: name, TotalBudget: budget, SpentAmount: spent})
	require.NoError(t, err)
	return p
}

func (f *fixture) seedTask(t *testing.T, projectID uint, name, status, assignee string) *task.Task {
	t.Helper()
	tk, err := f.tasks.Create(context.Background(), &task.CreateDTO{
		ProjectID: projectID, Name: name, Status: status, AssignedTo: assignee,
	})
	require.NoError(t, err)
	return tk
}

func ptr[T any](v T) *T { return &v }

func TestProjectService_CreatePublishesEvent(t *testing.T) {
	f := newFixture(t)
	var got *project.Project
	f.bus.Subscribe(func(name string, p *project.Project) {
		if name == "project.created" {
			got = p
		}
	})

	p, err := f.projects.Create(as(composables.RoleAdmin), &project.CreateDTO{Name: " Tower A ", Status: "active"})
	require.NoError(t, err)
	require.Equal(t, "Tower A", p.Name)
	require.Equal(t, enums.ProjectInProgress, p.Status)
	require.NotNil(t, got)
	require.Equal(t, p.ID, got.ID)
}

func TestProjectService_CreateValidates(t *testing.T) {
	f := newFixture(t)
	_, err := f.projects.Create(context.Background(), &project.CreateDTO{Name: "", TotalBudget: -5})

	var verrs serrors.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Contains(t, verrs, "name")
	require.Contains(t, verrs, "total_budget")
}

func TestProjectService_RoleRules(t *testing.T) {
	f := newFixture(t)
	a := f.seedProject(t, "Alpha", 100, 0)
	b := f.seedProject(t, "Beta", 100, 0)
	manager := as(composables.RoleManager, managing(a.ID))

	_, err := f.projects.Create(manager, &project.CreateDTO{Name: "Gamma"})
	require.NoError(t, err, "managers may create projects")

	list, err := f.projects.GetPaginated(manager, nil)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, a.ID, list[0].ID)

	_, err = f.projects.GetByID(manager, b.ID)
	require.ErrorIs(t, err, authz.ErrForbidden)

	_, err = f.projects.Update(manager, b.ID, &project.UpdateDTO{Location: ptr("Riga")})
	require.ErrorIs(t, err, authz.ErrForbidden)

	updated, err := f.projects.Update(manager, a.ID, &project.UpdateDTO{Location: ptr("Riga")})
	require.NoError(t, err)
	require.Equal(t, "Riga", updated.Location)

	require.ErrorIs(t, f.projects.Delete(manager, a.ID), authz.ErrForbidden)
	require.ErrorIs(t, f.projects.Delete(as(composables.RoleWorker), a.ID), authz.ErrForbidden)
	require.NoError(t, f.projects.Delete(as(composables.RoleAdmin), a.ID))

	_, err = f.projects.GetByID(context.Background(), a.ID)
	require.ErrorIs(t, err, project.ErrNotFound)
}

func TestProjectService_ManagerWithoutProjectsSeesNothing(t *testing.T) {
	f := newFixture(t)
	f.seedProject(t, "Alpha", 0, 0)

	list, err := f.projects.GetPaginated(as(composables.RoleManager), nil)
	require.NoError(t, err)
	require.Empty(t, list)

	n, err := f.projects.Count(as(composables.RoleManager), nil)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestProjectService_Summaries(t *testing.T) {
	f := newFixture(t)
	p := f.seedProject(t, "Alpha", 200, 50)
	f.seedTask(t, p.ID, "Dig", "completed", "")
	f.seedTask(t, p.ID, "Pour", "", "")
	f.seedTask(t, p.ID, "Cure", "", "")

	summaries, err := f.projects.Summaries(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.InDelta(t, 33.33, summaries[0].Progress, 1e-9)
	require.InDelta(t, 25.0, summaries[0].BudgetUtilization, 1e-9)
}

func TestTaskService_WorkerRules(t *testing.T) {
	f := newFixture(t)
	p := f.seedProject(t, "Alpha", 0, 0)
	mine := f.seedTask(t, p.ID, "Dig", "", "Mike Construction")
	other := f.seedTask(t, p.ID, "Pour", "", "Lisa Field")
	worker := as(composables.RoleWorker, workerNamed("mike construction"))

	list, err := f.tasks.GetPaginated(worker, nil)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, mine.ID, list[0].ID)

	_, err = f.tasks.GetByID(worker, other.ID)
	require.ErrorIs(t, err, authz.ErrForbidden)

	updated, err := f.tasks.Update(worker, mine.ID, &task.UpdateDTO{
		Status: ptr("in progress"), ProgressPercentage: ptr(40.0),
	})
	require.NoError(t, err)
	require.Equal(t, enums.TaskInProgress, updated.Status)
	require.InDelta(t, 40.0, updated.ProgressPercentage, 1e-9)

	_, err = f.tasks.Update(worker, mine.ID, &task.UpdateDTO{Name: ptr("Renamed")})
	require.ErrorIs(t, err, authz.ErrForbidden)

	_, err = f.tasks.Update(worker, other.ID, &task.UpdateDTO{ProgressPercentage: ptr(10.0)})
	require.ErrorIs(t, err, authz.ErrForbidden)

	_, err = f.tasks.Create(worker, &task.CreateDTO{ProjectID: p.ID, Name: "Sneaky"})
	require.ErrorIs(t, err, authz.ErrForbidden)
}

func TestTaskService_ManagerScope(t *testing.T) {
	f := newFixture(t)
	a := f.seedProject(t, "Alpha", 0, 0)
	b := f.seedProject(t, "Beta", 0, 0)
	f.seedTask(t, a.ID, "Dig", "", "")
	f.seedTask(t, b.ID, "Pour", "", "")
	f.seedTask(t, a.ID, "Cure", "", "")
	manager := as(composables.RoleManager, managing(a.ID))

	list, err := f.tasks.GetPaginated(manager, &task.FindParams{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "Cure", list[0].Name)

	_, err = f.tasks.GetPaginated(manager, &task.FindParams{ProjectID: b.ID})
	require.NoError(t, err)

	_, err = f.tasks.Create(manager, &task.CreateDTO{ProjectID: b.ID, Name: "Elsewhere"})
	require.ErrorIs(t, err, authz.ErrForbidden)

	_, err = f.tasks.Create(manager, &task.CreateDTO{ProjectID: a.ID, Name: "Here"})
	require.NoError(t, err)
}

func TestTaskService_Dependencies(t *testing.T) {
	f := newFixture(t)
	a := f.seedProject(t, "Alpha", 0, 0)
	b := f.seedProject(t, "Beta", 0, 0)
	dig := f.seedTask(t, a.ID, "Dig", "", "")
	survey := f.seedTask(t, b.ID, "Survey", "", "")
	ctx := context.Background()

	pour, err := f.tasks.Create(ctx, &task.CreateDTO{ProjectID: a.ID, Name: "Pour", DependsOnTaskID: &dig.ID})
	require.NoError(t, err)
	require.Equal(t, &dig.ID, pour.DependsOnTaskID)

	_, err = f.tasks.Create(ctx, &task.CreateDTO{ProjectID: a.ID, Name: "Bad", DependsOnTaskID: &survey.ID})
	require.ErrorIs(t, err, ErrInvalidDependency)

	_, err = f.tasks.Create(ctx, &task.CreateDTO{ProjectID: a.ID, Name: "Bad", DependsOnTaskID: ptr(uint(99))})
	require.ErrorIs(t, err, ErrInvalidDependency)

	_, err = f.tasks.Update(ctx, pour.ID, &task.UpdateDTO{DependsOnTaskID: &pour.ID})
	require.ErrorIs(t, err, ErrInvalidDependency)

	_, err = f.tasks.Create(ctx, &task.CreateDTO{ProjectID: 42, Name: "Orphan"})
	require.ErrorIs(t, err, project.ErrNotFound)
}

func TestTaskService_Overdue(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	f.tasks.now = func() time.Time { return now }
	p := f.seedProject(t, "Alpha", 0, 0)
	past := now.AddDate(0, 0, -3)
	future := now.AddDate(0, 0, 3)
	ctx := context.Background()

	late, err := f.tasks.Create(ctx, &task.CreateDTO{ProjectID: p.ID, Name: "Late", PlannedEndDate: &past})
	require.NoError(t, err)
	_, err = f.tasks.Create(ctx, &task.CreateDTO{ProjectID: p.ID, Name: "Done", Status: "completed", PlannedEndDate: &past})
	require.NoError(t, err)
	_, err = f.tasks.Create(ctx, &task.CreateDTO{ProjectID: p.ID, Name: "Soon", PlannedEndDate: &future})
	require.NoError(t, err)

	overdue, err := f.tasks.Overdue(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	require.Equal(t, late.ID, overdue[0].ID)
}

func TestResourceService_TotalCost(t *testing.T) {
	f := newFixture(t)
	p := f.seedProject(t, "Alpha", 0, 0)
	ctx := context.Background()

	r, err := f.resources.Create(ctx, &resource.CreateDTO{ProjectID: p.ID, Name: "Cement", Quantity: 12, UnitCost: 2.5})
	require.NoError(t, err)
	require.InDelta(t, 30.0, r.TotalCost, 1e-9)
	require.Equal(t, resource.DefaultUnit, r.Unit)

	r, err = f.resources.Update(ctx, r.ID, &resource.UpdateDTO{Quantity: ptr(0.0)})
	require.NoError(t, err)
	require.Zero(t, r.TotalCost)

	r, err = f.resources.Update(ctx, r.ID, &resource.UpdateDTO{Quantity: ptr(4.0), UnitCost: ptr(10.0)})
	require.NoError(t, err)
	require.InDelta(t, 40.0, r.TotalCost, 1e-9)

	stored, err := f.resources.GetByID(ctx, r.ID)
	require.NoError(t, err)
	require.InDelta(t, 40.0, stored.TotalCost, 1e-9)
}

func TestResourceService_ManagerScope(t *testing.T) {
	f := newFixture(t)
	a := f.seedProject(t, "Alpha", 0, 0)
	b := f.seedProject(t, "Beta", 0, 0)
	ctx := context.Background()
	_, err := f.resources.Create(ctx, &resource.CreateDTO{ProjectID: a.ID, Name: "Cement"})
	require.NoError(t, err)
	other, err := f.resources.Create(ctx, &resource.CreateDTO{ProjectID: b.ID, Name: "Crane"})
	require.NoError(t, err)
	manager := as(composables.RoleManager, managing(a.ID))

	list, err := f.resources.GetPaginated(manager, nil)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "Cement", list[0].Name)

	require.ErrorIs(t, f.resources.Delete(manager, other.ID), authz.ErrForbidden)
	_, err = f.resources.GetPaginated(as(composables.RoleWorker), nil)
	require.ErrorIs(t, err, authz.ErrForbidden)
}

func TestBudgetService_CRUD(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	f.budgets.now = func() time.Time { return now }
	p := f.seedProject(t, "Alpha", 0, 0)
	ctx := context.Background()

	_, err := f.budgets.Create(ctx, &budget.CreateDTO{ProjectID: p.ID, Category: "  "})
	var verrs serrors.ValidationErrors
	require.ErrorAs(t, err, &verrs)

	b, err := f.budgets.Create(ctx, &budget.CreateDTO{ProjectID: p.ID, Category: "Steel", PlannedAmount: 100, ActualAmount: 80})
	require.NoError(t, err)
	require.Equal(t, now, b.BudgetDate)

	b, err = f.budgets.Update(ctx, b.ID, &budget.UpdateDTO{ActualAmount: ptr(120.0)})
	require.NoError(t, err)
	require.InDelta(t, -20.0, b.Variance(), 1e-9)

	require.NoError(t, f.budgets.Delete(ctx, b.ID))
	_, err = f.budgets.GetByID(ctx, b.ID)
	require.ErrorIs(t, err, budget.ErrNotFound)
}

func TestAnalyticsService_Dashboard(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	f.analytics.now = func() time.Time { return now }
	ctx := context.Background()

	a, err := f.projects.Create(ctx, &project.CreateDTO{Name: "Alpha", Status: "in_progress", TotalBudget: 1000.10, SpentAmount: 250.05})
	require.NoError(t, err)
	_, err = f.projects.Create(ctx, &project.CreateDTO{Name: "Beta", Status: "completed", TotalBudget: 999.90, SpentAmount: 749.95})
	require.NoError(t, err)
	past := now.AddDate(0, 0, -1)
	_, err = f.tasks.Create(ctx, &task.CreateDTO{ProjectID: a.ID, Name: "Late", PlannedEndDate: &past})
	require.NoError(t, err)
	f.seedTask(t, a.ID, "Done", "completed", "")

	stats, err := f.analytics.Dashboard(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.TotalProjects)
	require.Equal(t, int64(1), stats.ActiveProjects)
	require.Equal(t, int64(1), stats.CompletedProjects)
	require.Equal(t, 2000.0, stats.TotalBudget)
	require.Equal(t, 1000.0, stats.TotalSpent)
	require.Equal(t, 50.0, stats.BudgetUtilization)
	require.Equal(t, int64(2), stats.TotalTasks)
	require.Equal(t, int64(1), stats.OverdueTasks)
	require.Equal(t, 50.0, stats.TaskCompletionRate)

	_, err = f.analytics.Dashboard(as(composables.RoleWorker))
	require.ErrorIs(t, err, authz.ErrForbidden)
}

func TestAnalyticsService_ProjectViews(t *testing.T) {
	f := newFixture(t)
	p := f.seedProject(t, "Alpha", 1000, 400)
	ctx := context.Background()
	f.seedTask(t, p.ID, "Dig", "completed", "")
	f.seedTask(t, p.ID, "Pour", "in_progress", "")
	_, err := f.resources.Create(ctx, &resource.CreateDTO{ProjectID: p.ID, Name: "Cement", Quantity: 3, UnitCost: 0.1})
	require.NoError(t, err)
	_, err = f.resources.Create(ctx, &resource.CreateDTO{ProjectID: p.ID, Name: "Crew", ResourceType: "labour", Quantity: 2, UnitCost: 50})
	require.NoError(t, err)
	_, err = f.budgets.Create(ctx, &budget.CreateDTO{ProjectID: p.ID, Category: "Steel", PlannedAmount: 300, ActualAmount: 200})
	require.NoError(t, err)

	kpi, err := f.analytics.ProjectKPI(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 50.0, kpi.Progress)
	require.Equal(t, 40.0, kpi.BudgetUtilization)
	require.Equal(t, 600.0, kpi.BudgetRemaining)
	require.Equal(t, 1, kpi.InProgressTasks)
	require.Equal(t, 2, kpi.TotalResources)
	require.Equal(t, 100.3, kpi.ResourceCost)

	dist, err := f.analytics.ResourceDistribution(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, dist, 3)
	require.Equal(t, 1, dist[enums.ResourceLabor].Count)
	require.Equal(t, 100.0, dist[enums.ResourceLabor].TotalCost)
	require.Zero(t, dist[enums.ResourceEquipment].Count)

	lines, err := f.analytics.BudgetBreakdown(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, 33.33, lines[0].VariancePercentage)

	tl, err := f.analytics.Timeline(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, tl.Tasks, 2)

	_, err = f.analytics.ProjectKPI(ctx, 99)
	require.ErrorIs(t, err, project.ErrNotFound)
	_, err = f.analytics.ProjectKPI(as(composables.RoleManager, managing(7)), p.ID)
	require.ErrorIs(t, err, authz.ErrForbidden)
}

func TestAnalyticsService_PredictCompletion(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	f.analytics.now = func() time.Time { return now }
	start := now.AddDate(0, 0, -30)
	ctx := context.Background()

	p, err := f.projects.Create(ctx, &project.CreateDTO{Name: "Alpha", StartDate: &start, TotalBudget: 1000, SpentAmount: 600})
	require.NoError(t, err)

	forecast, err := f.analytics.PredictCompletion(ctx, p.ID)
	require.NoError(t, err)
	require.Nil(t, forecast.PredictedCompletionDate)
	require.Equal(t, 1000.0, forecast.PredictedTotalCost)
	require.Equal(t, ConfidenceLow, forecast.Confidence)

	f.seedTask(t, p.ID, "Dig", "completed", "")
	f.seedTask(t, p.ID, "Pour", "", "")

	forecast, err = f.analytics.PredictCompletion(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 50.0, forecast.CurrentProgress)
	require.Equal(t, 1200.0, forecast.PredictedTotalCost)
	require.Equal(t, 200.0, forecast.CostOverrun)
	require.NotNil(t, forecast.PredictedCompletionDate)
	require.True(t, start.AddDate(0, 0, 60).Equal(*forecast.PredictedCompletionDate))
	require.Equal(t, ConfidenceLow, forecast.Confidence)

	for _, name := range []string{"a", "b", "c"} {
		f.seedTask(t, p.ID, name, "completed", "")
	}
	forecast, err = f.analytics.PredictCompletion(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, ConfidenceMedium, forecast.Confidence)
}
