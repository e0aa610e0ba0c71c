package modules

import (
	"github.com/buildflow/buildflow/modules/construction"
	"github.com/buildflow/buildflow/pkg/application"
	"github.com/buildflow/buildflow/pkg/configuration"
)

// BuiltInModules returns the modules served by cmd/server.
func BuiltInModules(conf *configuration.Configuration) []application.Module {
	return []application.Module{
		construction.NewModule(&construction.ModuleOptions{Import: conf.Import}),
	}
}

func Load(app application.Application, externalModules ...application.Module) error {
	return application.Load(app, externalModules...)
}
