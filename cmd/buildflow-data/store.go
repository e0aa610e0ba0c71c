package main

import (
	"context"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/buildflow/buildflow/modules/construction/infrastructure/persistence"
	"github.com/buildflow/buildflow/modules/construction/services/dataimport"
	"github.com/buildflow/buildflow/pkg/composables"
	"github.com/buildflow/buildflow/pkg/configuration"
	"github.com/buildflow/buildflow/pkg/eventbus"
)

const (
	storeMemory   = "memory"
	storePostgres = "postgres"
)

// importBackend bundles an import service with the resources backing it.
// Calls into the service must use a context returned by bind, since
// lookups outside the unit of work resolve the pool from the context.
type importBackend struct {
	service *dataimport.Service
	bind    func(context.Context) context.Context
	close   func()
}

func newLogger(w io.Writer, verbose bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.WarnLevel)
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

func openBackend(ctx context.Context, store string, logger *logrus.Logger) (*importBackend, error) {
	bus := eventbus.NewEventPublisher(logger)
	switch store {
	case storeMemory:
		mem := persistence.NewMemoryStore()
		repos := dataimport.Repositories{
			Projects:  mem.Projects(),
			Tasks:     mem.Tasks(),
			Resources: mem.Resources(),
			Budgets:   mem.Budgets(),
		}
		return &importBackend{
			service: dataimport.NewService(repos, mem, bus, logger),
			bind:    func(ctx context.Context) context.Context { return ctx },
			close:   func() {},
		}, nil
	case storePostgres:
		pool, err := connectDB(ctx)
		if err != nil {
			return nil, err
		}
		return newPostgresBackend(pool, bus, logger), nil
	}
	return nil, withCode(exitUsage, fmt.Errorf("unknown --store %q (expected %s|%s)", store, storeMemory, storePostgres))
}

func newPostgresBackend(pool *pgxpool.Pool, bus eventbus.EventBus, logger *logrus.Logger) *importBackend {
	repos := dataimport.Repositories{
		Projects:  persistence.NewProjectRepository(),
		Tasks:     persistence.NewTaskRepository(),
		Resources: persistence.NewResourceRepository(),
		Budgets:   persistence.NewBudgetRepository(),
	}
	return &importBackend{
		service: dataimport.NewService(repos, persistence.NewUnitOfWork(pool), bus, logger),
		bind: func(ctx context.Context) context.Context {
			return composables.WithPool(ctx, pool)
		},
		close: pool.Close,
	}
}

func connectDB(ctx context.Context) (*pgxpool.Pool, error) {
	conf := configuration.Use()
	pool, err := pgxpool.New(ctx, conf.Database.Opts)
	if err != nil {
		return nil, withCode(exitDB, fmt.Errorf("connect db: %w", err))
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, withCode(exitDB, fmt.Errorf("ping db: %w", err))
	}
	if err := persistence.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, withCode(exitDB, fmt.Errorf("ensure schema: %w", err))
	}
	return pool, nil
}
