package controllers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/buildflow/buildflow/modules/construction/domain/entities/project"
	"github.com/buildflow/buildflow/modules/construction/domain/enums"
	"github.com/buildflow/buildflow/modules/construction/presentation/viewmodels"
	"github.com/buildflow/buildflow/modules/construction/services"
	"github.com/buildflow/buildflow/pkg/application"
	"github.com/buildflow/buildflow/pkg/httpapi"
	"github.com/buildflow/buildflow/pkg/middleware"
)

type ProjectsController struct {
	app      application.Application
	projects *services.ProjectService
	basePath string
}

func NewProjectsController(app application.Application) application.Controller {
	return &ProjectsController{
		app:      app,
		projects: app.Service(services.ProjectService{}).(*services.ProjectService),
		basePath: "/api/projects",
	}
}

func (c *ProjectsController) Key() string {
	return c.basePath
}

func (c *ProjectsController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.Use(middleware.RequireUser())
	router.HandleFunc("", c.List).Methods(http.MethodGet)
	router.HandleFunc("", c.Create).Methods(http.MethodPost)
	router.HandleFunc("/summary", c.Summary).Methods(http.MethodGet)
	router.HandleFunc("/{id:[0-9]+}", c.Get).Methods(http.MethodGet)
	router.HandleFunc("/{id:[0-9]+}", c.Update).Methods(http.MethodPut, http.MethodPatch)
	router.HandleFunc("/{id:[0-9]+}", c.Delete).Methods(http.MethodDelete)
}

type projectListResponse struct {
	Items []*viewmodels.Project `json:"items"`
	Total int64                 `json:"total"`
}

func (c *ProjectsController) List(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "INVALID_QUERY", err.Error())
		return
	}
	params := &project.FindParams{
		Name:   strings.TrimSpace(r.URL.Query().Get("name")),
		Limit:  limit,
		Offset: offset,
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, ok := enums.ParseProjectStatus(raw)
		if !ok {
			writeAPIError(w, r, http.StatusBadRequest, "INVALID_QUERY", "unknown project status "+raw)
			return
		}
		params.Status = status
	}
	items, err := c.projects.GetPaginated(r.Context(), params)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	total, err := c.projects.Count(r.Context(), &project.FindParams{Name: params.Name, Status: params.Status})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projectListResponse{
		Items: viewmodels.Map(items, viewmodels.ProjectToViewModel),
		Total: total,
	})
}

func (c *ProjectsController) Summary(w http.ResponseWriter, r *http.Request) {
	summaries, err := c.projects.Summaries(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (c *ProjectsController) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "INVALID_ID", err.Error())
		return
	}
	p, err := c.projects.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewmodels.ProjectToViewModel(p))
}

func (c *ProjectsController) Create(w http.ResponseWriter, r *http.Request) {
	var dto project.CreateDTO
	if err := httpapi.DecodeJSON(r, &dto); err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	p, err := c.projects.Create(r.Context(), &dto)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewmodels.ProjectToViewModel(p))
}

func (c *ProjectsController) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "INVALID_ID", err.Error())
		return
	}
	var dto project.UpdateDTO
	if err := httpapi.DecodeJSON(r, &dto); err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	p, err := c.projects.Update(r.Context(), id, &dto)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewmodels.ProjectToViewModel(p))
}

func (c *ProjectsController) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "INVALID_ID", err.Error())
		return
	}
	if err := c.projects.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
