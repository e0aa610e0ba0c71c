package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/buildflow/buildflow/modules/construction/domain/entities/resource"
	"github.com/buildflow/buildflow/modules/construction/domain/enums"
	"github.com/buildflow/buildflow/modules/construction/presentation/viewmodels"
	"github.com/buildflow/buildflow/modules/construction/services"
	"github.com/buildflow/buildflow/pkg/application"
	"github.com/buildflow/buildflow/pkg/httpapi"
	"github.com/buildflow/buildflow/pkg/middleware"
)

type ResourcesController struct {
	resources *services.ResourceService
	basePath  string
}

func NewResourcesController(app application.Application) application.Controller {
	return &ResourcesController{
		resources: app.Service(services.ResourceService{}).(*services.ResourceService),
		basePath:  "/api/resources",
	}
}

func (c *ResourcesController) Key() string {
	return c.basePath
}

func (c *ResourcesController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.Use(middleware.RequireUser())
	router.HandleFunc("", c.List).Methods(http.MethodGet)
	router.HandleFunc("", c.Create).Methods(http.MethodPost)
	router.HandleFunc("/{id:[0-9]+}", c.Get).Methods(http.MethodGet)
	router.HandleFunc("/{id:[0-9]+}", c.Update).Methods(http.MethodPut, http.MethodPatch)
	router.HandleFunc("/{id:[0-9]+}", c.Delete).Methods(http.MethodDelete)
}

func (c *ResourcesController) List(w http.ResponseWriter, r *http.Request) {
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
	params := &resource.FindParams{ProjectID: projectID, Limit: limit, Offset: offset}
	if raw := r.URL.Query().Get("resource_type"); raw != "" {
		kind, ok := enums.ParseResourceType(raw)
		if !ok {
			writeAPIError(w, r, http.StatusBadRequest, "INVALID_QUERY", "unknown resource type "+raw)
			return
		}
		params.ResourceType = kind
	}
	items, err := c.resources.GetPaginated(r.Context(), params)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewmodels.Map(items, viewmodels.ResourceToViewModel))
}

func (c *ResourcesController) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "INVALID_ID", err.Error())
		return
	}
	res, err := c.resources.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewmodels.ResourceToViewModel(res))
}

func (c *ResourcesController) Create(w http.ResponseWriter, r *http.Request) {
	var dto resource.CreateDTO
	if err := httpapi.DecodeJSON(r, &dto); err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	res, err := c.resources.Create(r.Context(), &dto)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewmodels.ResourceToViewModel(res))
}

func (c *ResourcesController) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "INVALID_ID", err.Error())
		return
	}
	var dto resource.UpdateDTO
	if err := httpapi.DecodeJSON(r, &dto); err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	res, err := c.resources.Update(r.Context(), id, &dto)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewmodels.ResourceToViewModel(res))
}

func (c *ResourcesController) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "INVALID_ID", err.Error())
		return
	}
	if err := c.resources.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
