package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/buildflow/buildflow/modules/construction/domain/entities/budget"
	"github.com/buildflow/buildflow/modules/construction/domain/entities/project"
	"github.com/buildflow/buildflow/modules/construction/domain/entities/resource"
	"github.com/buildflow/buildflow/modules/construction/domain/entities/task"
	"github.com/buildflow/buildflow/modules/construction/services/dataimport"
	"github.com/buildflow/buildflow/pkg/application"
)

// ActivityHandler writes one structured log line per domain event.
type ActivityHandler struct {
	logger *logrus.Entry
}

func RegisterActivityHandlers(app application.Application) *ActivityHandler {
	h := &ActivityHandler{logger: app.Logger().WithField("component", "activity")}
	app.EventPublisher().Subscribe(h.OnEvent)
	return h
}

func (h *ActivityHandler) OnEvent(name string, payload interface{}) {
	fields := logrus.Fields{"event": name}
	switch p := payload.(type) {
	case *project.Project:
		fields["project_id"] = p.ID
		fields["name"] = p.Name
	case *task.Task:
		fields["project_id"] = p.ProjectID
		fields["task_id"] = p.ID
	case *resource.Resource:
		fields["project_id"] = p.ProjectID
		fields["resource_id"] = p.ID
		fields["total_cost"] = p.TotalCost
	case *budget.Budget:
		fields["project_id"] = p.ProjectID
		fields["budget_id"] = p.ID
	case *dataimport.CompletedEvent:
		fields["run_id"] = p.RunID.String()
		fields["source"] = p.Source
		fields["dry_run"] = p.DryRun
		fields["rows"] = p.Counts.Total()
	case uint:
		fields["id"] = p
	default:
		h.logger.WithFields(fields).Debug("unrecognized event payload")
		return
	}
	h.logger.WithFields(fields).Info("activity")
}
