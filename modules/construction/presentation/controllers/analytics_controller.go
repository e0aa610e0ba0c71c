package controllers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/buildflow/buildflow/modules/construction/services"
	"github.com/buildflow/buildflow/pkg/application"
	"github.com/buildflow/buildflow/pkg/middleware"
)

type AnalyticsController struct {
	analytics *services.AnalyticsService
	basePath  string
}

func NewAnalyticsController(app application.Application) application.Controller {
	return &AnalyticsController{
		analytics: app.Service(services.AnalyticsService{}).(*services.AnalyticsService),
		basePath:  "/api/analytics",
	}
}

func (c *AnalyticsController) Key() string {
	return c.basePath
}

func (c *AnalyticsController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.Use(middleware.RequireUser())
	router.HandleFunc("/dashboard", c.Dashboard).Methods(http.MethodGet)

	project := router.PathPrefix("/project/{id:[0-9]+}").Subrouter()
	project.HandleFunc("/kpi", projectView(c.analytics.ProjectKPI)).Methods(http.MethodGet)
	project.HandleFunc("/budget-breakdown", projectView(c.analytics.BudgetBreakdown)).Methods(http.MethodGet)
	project.HandleFunc("/resource-distribution", projectView(c.analytics.ResourceDistribution)).Methods(http.MethodGet)
	project.HandleFunc("/timeline", projectView(c.analytics.Timeline)).Methods(http.MethodGet)
	project.HandleFunc("/predict-completion", projectView(c.analytics.PredictCompletion)).Methods(http.MethodGet)
}

func (c *AnalyticsController) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := c.analytics.Dashboard(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// projectView adapts a per-project analytics call into a handler.
func projectView[T any](fn func(ctx context.Context, id uint) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			writeAPIError(w, r, http.StatusBadRequest, "INVALID_ID", err.Error())
			return
		}
		view, err := fn(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}
