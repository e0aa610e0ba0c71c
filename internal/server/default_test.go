package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/buildflow/buildflow/pkg/application"
	"github.com/buildflow/buildflow/pkg/configuration"
	"github.com/buildflow/buildflow/pkg/httpapi"
	"github.com/buildflow/buildflow/pkg/metrics"
)

func newTestServer(t *testing.T, rps int) http.Handler {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	app := application.New(&application.ApplicationOptions{Logger: logger})
	app.RegisterControllers(metrics.NewHealthController(nil))

	conf := &configuration.Configuration{
		CorsOrigins:     []string{"http://localhost:5173"},
		RequestIDHeader: "X-Request-ID",
		RateLimit:       configuration.RateLimitOptions{Enabled: rps > 0, GlobalRPS: rps, Storage: "memory"},
		Auth:            configuration.AuthOptions{JWTSecret: "s", Issuer: "buildflow"},
	}
	srv, err := Default(&DefaultOptions{Logger: logger, Configuration: conf, Application: app})
	require.NoError(t, err)
	return srv.Router()
}

func TestDefault_ServesHealthAndJSONFallbacks(t *testing.T) {
	h := newTestServer(t, 0)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	var env httpapi.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Equal(t, "NOT_FOUND", env.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Authorization", "Bearer broken")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDefault_RateLimits(t *testing.T) {
	h := newTestServer(t, 1)
	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	require.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}
