package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/buildflow/buildflow/modules/construction/domain/entities/budget"
	"github.com/buildflow/buildflow/modules/construction/domain/entities/project"
	"github.com/buildflow/buildflow/modules/construction/domain/entities/resource"
	"github.com/buildflow/buildflow/modules/construction/domain/entities/task"
	"github.com/buildflow/buildflow/modules/construction/services"
	"github.com/buildflow/buildflow/modules/construction/services/dataimport"
	"github.com/buildflow/buildflow/pkg/authz"
	"github.com/buildflow/buildflow/pkg/composables"
	"github.com/buildflow/buildflow/pkg/httpapi"
	"github.com/buildflow/buildflow/pkg/serrors"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

func requestID(r *http.Request) string {
	id, _ := composables.UseRequestID(r.Context())
	return id
}

func writeAPIError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	meta := map[string]string{}
	if id := requestID(r); id != "" {
		meta["request_id"] = id
	}
	_ = httpapi.WriteError(w, status, code, message, meta)
}

// writeServiceError maps service and import errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var validation serrors.ValidationErrors
	switch {
	case errors.As(err, &validation):
		meta := make(map[string]string, len(validation)+1)
		for field, msg := range validation {
			meta[field] = msg
		}
		if id := requestID(r); id != "" {
			meta["request_id"] = id
		}
		_ = httpapi.WriteError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "validation failed", meta)
	case errors.Is(err, authz.ErrForbidden):
		writeAPIError(w, r, http.StatusForbidden, "FORBIDDEN", err.Error())
	case errors.Is(err, project.ErrNotFound),
		errors.Is(err, task.ErrNotFound),
		errors.Is(err, resource.ErrNotFound),
		errors.Is(err, budget.ErrNotFound):
		writeAPIError(w, r, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, services.ErrInvalidDependency):
		writeAPIError(w, r, http.StatusBadRequest, "INVALID_DEPENDENCY", err.Error())
	case errors.Is(err, dataimport.ErrUnparseable),
		errors.Is(err, dataimport.ErrUnclassifiable),
		errors.Is(err, dataimport.ErrOpenWorkbook),
		errors.Is(err, dataimport.ErrUnknownFormat),
		errors.Is(err, dataimport.ErrUnknownDefaultProject):
		writeAPIError(w, r, http.StatusBadRequest, "IMPORT_REJECTED", err.Error())
	default:
		composables.UseLogger(r.Context()).WithError(err).Error("request failed")
		writeAPIError(w, r, http.StatusInternalServerError, "INTERNAL", "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	if err := httpapi.WriteJSON(w, status, payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func pathID(r *http.Request) (uint, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return uint(id), nil
}

func queryUint(r *http.Request, key string) (uint, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a positive integer", key)
	}
	return uint(v), nil
}

// pagination reads limit and offset, defaulting to one page of defaultPageSize.
func pagination(r *http.Request) (limit, offset int, err error) {
	q := r.URL.Query()
	limit = defaultPageSize
	if raw := q.Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit <= 0 {
			return 0, 0, errors.New("limit must be a positive integer")
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if raw := q.Get("offset"); raw != "" {
		if offset, err = strconv.Atoi(raw); err != nil || offset < 0 {
			return 0, 0, errors.New("offset must be a non-negative integer")
		}
	}
	return limit, offset, nil
}
