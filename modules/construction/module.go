// Package construction wires the project, task, resource and budget
// services, the bulk importer and their HTTP controllers.
package construction

import (
	"errors"

	"github.com/buildflow/buildflow/modules/construction/handlers"
	"github.com/buildflow/buildflow/modules/construction/infrastructure/persistence"
	"github.com/buildflow/buildflow/modules/construction/presentation/controllers"
	"github.com/buildflow/buildflow/modules/construction/services"
	"github.com/buildflow/buildflow/modules/construction/services/dataimport"
	"github.com/buildflow/buildflow/pkg/application"
	"github.com/buildflow/buildflow/pkg/configuration"
)

type ModuleOptions struct {
	// Store replaces the Postgres repositories, e.g. for local demos and tests.
	Store  *persistence.MemoryStore
	Import configuration.ImportOptions
}

func NewModule(opts *ModuleOptions) application.Module {
	if opts == nil {
		opts = &ModuleOptions{}
	}
	return &Module{options: opts}
}

type Module struct {
	options *ModuleOptions
}

func (m *Module) Register(app application.Application) error {
	repos, uow, err := m.storage(app)
	if err != nil {
		return err
	}
	bus := app.EventPublisher()

	app.RegisterServices(
		services.NewProjectService(repos.Projects, repos.Tasks, bus),
		services.NewTaskService(repos.Tasks, repos.Projects, bus),
		services.NewResourceService(repos.Resources, repos.Projects, bus),
		services.NewBudgetService(repos.Budgets, repos.Projects, bus),
		services.NewAnalyticsService(repos.Projects, repos.Tasks, repos.Resources, repos.Budgets),
		dataimport.NewService(repos, uow, bus, app.Logger()),
	)
	handlers.RegisterActivityHandlers(app)

	importOpts := m.options.Import
	if importOpts.MaxUploadSize <= 0 {
		importOpts = configuration.Use().Import
	}
	app.RegisterControllers(
		controllers.NewProjectsController(app),
		controllers.NewTasksController(app),
		controllers.NewResourcesController(app),
		controllers.NewBudgetsController(app),
		controllers.NewAnalyticsController(app),
		controllers.NewImportController(app, importOpts),
	)
	return nil
}

func (m *Module) storage(app application.Application) (dataimport.Repositories, dataimport.UnitOfWork, error) {
	if s := m.options.Store; s != nil {
		return dataimport.Repositories{
			Projects:  s.Projects(),
			Tasks:     s.Tasks(),
			Resources: s.Resources(),
			Budgets:   s.Budgets(),
		}, s, nil
	}
	if app.DB() == nil {
		return dataimport.Repositories{}, nil, errors.New("construction: no database pool and no in-memory store")
	}
	return dataimport.Repositories{
		Projects:  persistence.NewProjectRepository(),
		Tasks:     persistence.NewTaskRepository(),
		Resources: persistence.NewResourceRepository(),
		Budgets:   persistence.NewBudgetRepository(),
	}, persistence.NewUnitOfWork(app.DB()), nil
}

func (m *Module) Name() string {
	return "construction"
}
