package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/buildflow/buildflow/modules/construction"
	"github.com/buildflow/buildflow/modules/construction/domain/entities/project"
	"github.com/buildflow/buildflow/modules/construction/domain/entities/task"
	"github.com/buildflow/buildflow/modules/construction/domain/enums"
	"github.com/buildflow/buildflow/modules/construction/infrastructure/persistence"
	"github.com/buildflow/buildflow/pkg/application"
	"github.com/buildflow/buildflow/pkg/composables"
	"github.com/buildflow/buildflow/pkg/configuration"
	"github.com/buildflow/buildflow/pkg/httpapi"
	"github.com/buildflow/buildflow/pkg/middleware"
	"github.com/buildflow/buildflow/pkg/server"
)

type fixture struct {
	t       *testing.T
	store   *persistence.MemoryStore
	handler http.Handler
	issuer  *middleware.TokenIssuer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	t.Setenv("AUTHZ_MODE", "enforce")
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := persistence.NewMemoryStore()
	app := application.New(&application.ApplicationOptions{Logger: logger})
	issuer := middleware.NewTokenIssuer(configuration.AuthOptions{JWTSecret: "controller-tests", Issuer: "buildflow"})
	app.RegisterMiddleware(
		middleware.WithLogger(logger, middleware.NewLoggerOptions(false, false, 0)),
		middleware.Authorize(issuer),
	)
	require.NoError(t, application.Load(app, construction.NewModule(&construction.ModuleOptions{
		Store: store,
		Import: configuration.ImportOptions{
			MaxUploadSize:     4096,
			AllowedExtensions: []string{".xlsx", ".csv"},
		},
	})))
	srv := server.NewHTTPServer(app, nil, nil)
	return &fixture{t: t, store: store, handler: srv.Router(), issuer: issuer}
}

func (f *fixture) token(u *composables.User) string {
	f.t.Helper()
	tok, err := f.issuer.Issue(u, time.Hour)
	require.NoError(f.t, err)
	return tok
}

func (f *fixture) admin() string {
	return f.token(&composables.User{Username: "root", Role: composables.RoleAdmin})
}

func (f *fixture) do(method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	f.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) doJSON(method, path, token string, payload any) *httptest.ResponseRecorder {
	f.t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(f.t, err)
		body = bytes.NewReader(raw)
	}
	return f.do(method, path, token, body, "application/json")
}

func (f *fixture) upload(path, token, filename string, data []byte, fields map[string]string) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(f.t, mw.WriteField(k, v))
	}
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(f.t, err)
	_, err = part.Write(data)
	require.NoError(f.t, err)
	require.NoError(f.t, mw.Close())
	return f.do(http.MethodPost, path, token, &buf, mw.FormDataContentType())
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type importBody struct {
	Message     string         `json:"message"`
	RunID       string         `json:"run_id"`
	Stats       map[string]int `json:"stats"`
	Skipped     int            `json:"skipped"`
	DryRun      bool           `json:"dry_run"`
	Diagnostics []struct {
		Row    int    `json:"row"`
		Field  string `json:"field"`
		Reason string `json:"reason"`
		Level  string `json:"level"`
	} `json:"diagnostics"`
}

func (f *fixture) countProjects() int64 {
	f.t.Helper()
	n, err := f.store.Projects().Count(context.Background(), &project.FindParams{})
	require.NoError(f.t, err)
	return n
}

func TestImportCSV(t *testing.T) {
	f := newFixture(t)
	seed := &project.Project{Name: "Tower A", Status: enums.ProjectPlanning}
	require.NoError(t, f.store.Projects().Create(context.Background(), seed))

	csv := "name,quantity,unit_cost,unit,resource_type\nCement,10,5.5,bag,Material\n,3,1,kg,material\n"
	rec := f.upload("/api/import/csv", f.admin(), "resources.csv", []byte(csv), map[string]string{
		"default_project_id": "1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode[importBody](t, rec)
	require.Equal(t, "Import successful", body.Message)
	require.NotEmpty(t, body.RunID)
	require.Equal(t, map[string]int{"projects": 0, "tasks": 0, "resources": 1, "budgets": 0}, body.Stats)
	require.Equal(t, 1, body.Skipped)

	list := f.do(http.MethodGet, "/api/resources?project_id=1", f.admin(), nil, "")
	require.Equal(t, http.StatusOK, list.Code)
	resources := decode[[]map[string]any](t, list)
	require.Len(t, resources, 1)
	require.Equal(t, "Cement", resources[0]["name"])
	require.Equal(t, "bag", resources[0]["unit"])
	require.InDelta(t, 55.0, resources[0]["total_cost"], 0.0001)
}

func TestImportWorkbook(t *testing.T) {
	f := newFixture(t)
	wb := excelize.NewFile()
	require.NoError(t, wb.SetSheetName("Sheet1", "Projects"))
	require.NoError(t, wb.SetSheetRow("Projects", "A1", &[]any{"name", "status", "total_budget"}))
	require.NoError(t, wb.SetSheetRow("Projects", "A2", &[]any{"Tower A", "active", 1000}))
	_, err := wb.NewSheet("Tasks")
	require.NoError(t, err)
	require.NoError(t, wb.SetSheetRow("Tasks", "A1", &[]any{"name", "project_name", "progress"}))
	require.NoError(t, wb.SetSheetRow("Tasks", "A2", &[]any{"Foundation", "tower a", 40}))
	buf, err := wb.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, wb.Close())

	rec := f.upload("/api/import/excel", f.admin(), "site.xlsx", buf.Bytes(), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[importBody](t, rec)
	require.Equal(t, 1, body.Stats["projects"])
	require.Equal(t, 1, body.Stats["tasks"])

	tasks, err := f.store.Tasks().GetPaginated(context.Background(), &task.FindParams{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.InDelta(t, 40.0, tasks[0].ProgressPercentage, 0.0001)
}

func TestImportDryRunPersistsNothing(t *testing.T) {
	f := newFixture(t)
	rec := f.upload("/api/import", f.admin(), "projects.csv", []byte("name,total_budget\nDepot,50\n"), map[string]string{"dry_run": "true"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[importBody](t, rec)
	require.True(t, body.DryRun)
	require.Equal(t, 1, body.Stats["projects"])
	require.Zero(t, f.countProjects())
}

func TestImportRejections(t *testing.T) {
	f := newFixture(t)
	admin := f.admin()

	cases := []struct {
		name   string
		path   string
		file   string
		data   []byte
		fields map[string]string
		token  string
		status int
		code   string
	}{
		{name: "extension", path: "/api/import/csv", file: "notes.pdf", data: []byte("a,b\n1,2\n"), token: admin, status: http.StatusBadRequest, code: "INVALID_UPLOAD"},
		{name: "size", path: "/api/import/csv", file: "big.csv", data: bytes.Repeat([]byte("x"), 5000), token: admin, status: http.StatusRequestEntityTooLarge, code: "UPLOAD_TOO_LARGE"},
		{name: "unparseable", path: "/api/import/csv", file: "garbage.csv", data: []byte("justonecolumn\nvalue\n"), token: admin, status: http.StatusBadRequest, code: "IMPORT_REJECTED"},
		{name: "unclassifiable", path: "/api/import/csv", file: "odd.csv", data: []byte("colour,flavour\nred,sweet\n"), token: admin, status: http.StatusBadRequest, code: "IMPORT_REJECTED"},
		{name: "wrong endpoint", path: "/api/import/excel", file: "p.csv", data: []byte("name,total_budget\nA,1\n"), token: admin, status: http.StatusBadRequest, code: "INVALID_UPLOAD"},
		{name: "unknown default project", path: "/api/import/csv", file: "t.csv", data: []byte("task_name,status\nDig,active\n"), fields: map[string]string{"default_project_id": "99"}, token: admin, status: http.StatusBadRequest, code: "IMPORT_REJECTED"},
		{name: "manager plan", path: "/api/import/plan", file: "p.csv", data: []byte("name,total_budget\nA,1\n"), token: f.token(&composables.User{Username: "m", Role: composables.RoleManager, ManagedProjects: []uint{1}}), status: http.StatusForbidden, code: "FORBIDDEN"},
		{name: "worker plan", path: "/api/import/plan", file: "p.csv", data: []byte("name,total_budget\nA,1\n"), token: f.token(&composables.User{Username: "w", Role: composables.RoleWorker, WorkerName: "Ana"}), status: http.StatusForbidden, code: "FORBIDDEN"},
		{name: "manager", path: "/api/import/csv", file: "p.csv", data: []byte("name,total_budget\nA,1\n"), token: f.token(&composables.User{Username: "m", Role: composables.RoleManager}), status: http.StatusForbidden, code: "FORBIDDEN"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.upload(tc.path, tc.token, tc.file, tc.data, tc.fields)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			require.Equal(t, tc.code, decode[httpapi.ErrorEnvelope](t, rec).Code)
		})
	}
	require.Zero(t, f.countProjects())

	rec := f.upload("/api/import/csv", "", "p.csv", []byte("name,total_budget\nA,1\n"), nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestImportPlanAndVocabulary(t *testing.T) {
	f := newFixture(t)
	rec := f.upload("/api/import/plan", f.admin(), "budgets.csv", []byte("category;planned_amount;name\nSteel;100;x\n"), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	plan := decode[[]map[string]any](t, rec)
	require.Len(t, plan, 1)
	require.Equal(t, "budgets", plan[0]["kind"])
	require.Zero(t, f.countProjects())

	rec = f.do(http.MethodGet, "/api/import/vocabulary", f.admin(), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	vocab := decode[map[string]map[string]string](t, rec)
	require.Equal(t, "labor", vocab["resource_type"]["labour"])
}

func TestProjectsCRUD(t *testing.T) {
	f := newFixture(t)
	admin := f.admin()

	rec := f.doJSON(http.MethodPost, "/api/projects", admin, map[string]any{"name": "  "})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	env := decode[httpapi.ErrorEnvelope](t, rec)
	require.Equal(t, "VALIDATION_FAILED", env.Code)
	require.Contains(t, env.Meta, "name")

	rec = f.doJSON(http.MethodPost, "/api/projects", admin, map[string]any{
		"name": "Bridge", "status": "in progress", "total_budget": 200, "spent_amount": 50,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[map[string]any](t, rec)
	require.Equal(t, "in_progress", created["status"])
	require.InDelta(t, 25.0, created["budget_utilization"], 0.0001)

	rec = f.doJSON(http.MethodPatch, "/api/projects/1", admin, map[string]any{"location": "Riverside"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Riverside", decode[map[string]any](t, rec)["location"])

	rec = f.do(http.MethodGet, "/api/projects?status=in_progress", admin, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Items []map[string]any `json:"items"`
		Total int64            `json:"total"`
	}](t, rec)
	require.EqualValues(t, 1, list.Total)

	rec = f.do(http.MethodGet, "/api/projects/summary", admin, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/api/projects/1", admin, nil, "").Code)
	rec = f.do(http.MethodGet, "/api/projects/1", admin, nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "NOT_FOUND", decode[httpapi.ErrorEnvelope](t, rec).Code)

	require.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/projects?limit=-1", admin, nil, "").Code)
	require.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/projects", "", nil, "").Code)
}

func TestTasksRoleRules(t *testing.T) {
	f := newFixture(t)
	admin := f.admin()
	require.Equal(t, http.StatusCreated, f.doJSON(http.MethodPost, "/api/projects", admin, map[string]any{"name": "Depot"}).Code)
	rec := f.doJSON(http.MethodPost, "/api/tasks", admin, map[string]any{
		"project_id": 1, "name": "Pour slab", "assigned_to": "Ana",
		"planned_end_date": time.Now().Add(-48 * time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, true, decode[map[string]any](t, rec)["is_overdue"])

	rec = f.doJSON(http.MethodPost, "/api/tasks", admin, map[string]any{"project_id": 1, "name": "Roof", "depends_on_task_id": 42})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "INVALID_DEPENDENCY", decode[httpapi.ErrorEnvelope](t, rec).Code)

	worker := f.token(&composables.User{Username: "ana", Role: composables.RoleWorker, WorkerName: "Ana"})
	require.Equal(t, http.StatusForbidden, f.doJSON(http.MethodPut, "/api/tasks/1", worker, map[string]any{"name": "Renamed"}).Code)
	rec = f.doJSON(http.MethodPut, "/api/tasks/1", worker, map[string]any{"progress_percentage": 60, "status": "in_progress"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.InDelta(t, 60.0, decode[map[string]any](t, rec)["progress_percentage"], 0.0001)

	rec = f.do(http.MethodGet, "/api/tasks/overdue?project_id=1", worker, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[[]map[string]any](t, rec), 1)

	other := f.token(&composables.User{Username: "bo", Role: composables.RoleWorker, WorkerName: "Bo"})
	require.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/api/tasks/1", other, nil, "").Code)
	require.Equal(t, http.StatusForbidden, f.do(http.MethodDelete, "/api/tasks/1", worker, nil, "").Code)

	manager := f.token(&composables.User{Username: "m", Role: composables.RoleManager, ManagedProjects: []uint{2}})
	rec = f.do(http.MethodGet, "/api/tasks?project_id=1", manager, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, decode[[]map[string]any](t, rec))
	require.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/api/tasks/1", manager, nil, "").Code)
}

func TestResourcesAndBudgets(t *testing.T) {
	f := newFixture(t)
	manager := f.token(&composables.User{Username: "m", Role: composables.RoleManager, ManagedProjects: []uint{1}})
	require.Equal(t, http.StatusCreated, f.doJSON(http.MethodPost, "/api/projects", manager, map[string]any{"name": "Depot", "total_budget": 1000}).Code)

	rec := f.doJSON(http.MethodPost, "/api/resources", manager, map[string]any{
		"project_id": 1, "name": "Crane", "resource_type": "equipment", "quantity": 2, "unit_cost": 150,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.InDelta(t, 300.0, decode[map[string]any](t, rec)["total_cost"], 0.0001)

	rec = f.doJSON(http.MethodPatch, "/api/resources/1", manager, map[string]any{"quantity": 0})
	require.Equal(t, http.StatusOK, rec.Code)
	require.InDelta(t, 0.0, decode[map[string]any](t, rec)["total_cost"], 0.0001)

	rec = f.doJSON(http.MethodPost, "/api/budgets", manager, map[string]any{
		"project_id": 1, "category": "Steel", "planned_amount": 400, "actual_amount": 300,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.InDelta(t, 25.0, decode[map[string]any](t, rec)["variance_percentage"], 0.0001)

	rec = f.do(http.MethodGet, "/api/budgets?category=Steel", manager, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[[]map[string]any](t, rec), 1)

	rec = f.do(http.MethodGet, "/api/analytics/project/1/budget-breakdown", manager, nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/analytics/project/1/resource-distribution", manager, nil, "").Code)
}

func TestAnalytics(t *testing.T) {
	f := newFixture(t)
	admin := f.admin()
	require.Equal(t, http.StatusCreated, f.doJSON(http.MethodPost, "/api/projects", admin, map[string]any{
		"name": "Depot", "status": "active", "total_budget": 2000, "spent_amount": 1000,
	}).Code)

	rec := f.do(http.MethodGet, "/api/analytics/dashboard", admin, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[map[string]any](t, rec)
	require.InDelta(t, 50.0, stats["budget_utilization"], 0.0001)

	for _, view := range []string{"kpi", "timeline", "predict-completion"} {
		rec = f.do(http.MethodGet, "/api/analytics/project/1/"+view, admin, nil, "")
		require.Equal(t, http.StatusOK, rec.Code, view+": "+rec.Body.String())
	}
	rec = f.do(http.MethodGet, "/api/analytics/project/7/predict-completion", admin, nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	worker := f.token(&composables.User{Username: "w", Role: composables.RoleWorker, WorkerName: "W"})
	require.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/api/analytics/dashboard", worker, nil, "").Code)
	require.True(t, strings.HasPrefix(f.do(http.MethodGet, "/api/analytics/dashboard", worker, nil, "").Header().Get("Content-Type"), "application/json"))
}
