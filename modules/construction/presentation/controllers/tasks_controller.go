package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/buildflow/buildflow/modules/construction/domain/entities/task"
	"github.com/buildflow/buildflow/modules/construction/domain/enums"
	"github.com/buildflow/buildflow/modules/construction/presentation/viewmodels"
	"github.com/buildflow/buildflow/modules/construction/services"
	"github.com/buildflow/buildflow/pkg/application"
	"github.com/buildflow/buildflow/pkg/httpapi"
	"github.com/buildflow/buildflow/pkg/middleware"
)

type TasksController struct {
	tasks    *services.TaskService
	basePath string
	now      func() time.Time
}

func NewTasksController(app application.Application) application.Controller {
	return &TasksController{
		tasks:    app.Service(services.TaskService{}).(*services.TaskService),
		basePath: "/api/tasks",
		now:      time.Now,
	}
}

func (c *TasksController) Key() string {
	return c.basePath
}

func (c *TasksController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.Use(middleware.RequireUser())
	router.HandleFunc("", c.List).Methods(http.MethodGet)
	router.HandleFunc("", c.Create).Methods(http.MethodPost)
	router.HandleFunc("/overdue", c.Overdue).Methods(http.MethodGet)
	router.HandleFunc("/{id:[0-9]+}", c.Get).Methods(http.MethodGet)
	router.HandleFunc("/{id:[0-9]+}", c.Update).Methods(http.MethodPut, http.MethodPatch)
	router.HandleFunc("/{id:[0-9]+}", c.Delete).Methods(http.MethodDelete)
}

func (c *TasksController) render(items []*task.Task) []*viewmodels.Task {
	now := c.now()
	return viewmodels.Map(items, func(t *task.Task) *viewmodels.Task {
		return viewmodels.TaskToViewModel(t, now)
	})
}

func (c *TasksController) List(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "INVALID_QUERY", err.Error())
		return
	}
	projectID, err := queryUint(r, "project_id")
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "INVALID_QUERY", err.Error())
		return
	}
	params := &task.FindParams{
		ProjectID:  projectID,
		AssignedTo: strings.TrimSpace(r.URL.Query().Get("assigned_to")),
		Limit:      limit,
		Offset:     offset,
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, ok := enums.ParseTaskStatus(raw)
		if !ok {
			writeAPIError(w, r, http.StatusBadRequest, "INVALID_QUERY", "unknown task status "+raw)
			return
		}
		params.Status = status
	}
	items, err := c.tasks.GetPaginated(r.Context(), params)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c.render(items))
}

func (c *TasksController) Overdue(w http.ResponseWriter, r *http.Request) {
	projectID, err := queryUint(r, "project_id")
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "INVALID_QUERY", err.Error())
		return
	}
	items, err := c.tasks.Overdue(r.Context(), projectID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c.render(items))
}

func (c *TasksController) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "INVALID_ID", err.Error())
		return
	}
	t, err := c.tasks.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewmodels.TaskToViewModel(t, c.now()))
}

func (c *TasksController) Create(w http.ResponseWriter, r *http.Request) {
	var dto task.CreateDTO
	if err := httpapi.DecodeJSON(r, &dto); err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	t, err := c.tasks.Create(r.Context(), &dto)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewmodels.TaskToViewModel(t, c.now()))
}

func (c *TasksController) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "INVALID_ID", err.Error())
		return
	}
	var dto task.UpdateDTO
	if err := httpapi.DecodeJSON(r, &dto); err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	t, err := c.tasks.Update(r.Context(), id, &dto)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewmodels.TaskToViewModel(t, c.now()))
}

func (c *TasksController) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "INVALID_ID", err.Error())
		return
	}
	if err := c.tasks.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
