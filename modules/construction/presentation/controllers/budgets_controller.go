package controllers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/buildflow/buildflow/modules/construction/domain/entities/budget"
	"github.com/buildflow/buildflow/modules/construction/presentation/viewmodels"
	"github.com/buildflow/buildflow/modules/construction/services"
	"github.com/buildflow/buildflow/pkg/application"
	"github.com/buildflow/buildflow/pkg/httpapi"
	"github.com/buildflow/buildflow/pkg/middleware"
)

type BudgetsController struct {
	budgets  *services.BudgetService
	basePath string
}

func NewBudgetsController(app application.Application) application.Controller {
	return &BudgetsController{
		budgets:  app.Service(services.BudgetService{}).(*services.BudgetService),
		basePath: "/api/budgets",
	}
}

func (c *BudgetsController) Key() string {
	return c.basePath
}

func (c *BudgetsController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.Use(middleware.RequireUser())
	router.HandleFunc("", c.List).Methods(http.MethodGet)
	router.HandleFunc("", c.Create).Methods(http.MethodPost)
	router.HandleFunc("/{id:[0-9]+}", c.Get).Methods(http.MethodGet)
	router.HandleFunc("/{id:[0-9]+}", c.Update).Methods(http.MethodPut, http.MethodPatch)
	router.HandleFunc("/{id:[0-9]+}", c.Delete).Methods(http.MethodDelete)
}

func (c *BudgetsController) List(w http.ResponseWriter, r *http.Request) {
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
	params := &budget.FindParams{
		ProjectID: projectID,
		Category:  strings.TrimSpace(r.URL.Query().Get("category")),
		Limit:     limit,
		Offset:    offset,
	}
	items, err := c.budgets.GetPaginated(r.Context(), params)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewmodels.Map(items, viewmodels.BudgetToViewModel))
}

func (c *BudgetsController) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "INVALID_ID", err.Error())
		return
	}
	b, err := c.budgets.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewmodels.BudgetToViewModel(b))
}

func (c *BudgetsController) Create(w http.ResponseWriter, r *http.Request) {
	var dto budget.CreateDTO
	if err := httpapi.DecodeJSON(r, &dto); err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	b, err := c.budgets.Create(r.Context(), &dto)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewmodels.BudgetToViewModel(b))
}

func (c *BudgetsController) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "INVALID_ID", err.Error())
		return
	}
	var dto budget.UpdateDTO
	if err := httpapi.DecodeJSON(r, &dto); err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	b, err := c.budgets.Update(r.Context(), id, &dto)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewmodels.BudgetToViewModel(b))
}

func (c *BudgetsController) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "INVALID_ID", err.Error())
		return
	}
	if err := c.budgets.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
