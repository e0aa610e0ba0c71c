package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/buildflow/buildflow/pkg/composables"
	"github.com/buildflow/buildflow/pkg/configuration"
	"github.com/buildflow/buildflow/pkg/httpapi"
)

func newIssuer() *TokenIssuer {
	return NewTokenIssuer(configuration.AuthOptions{
		JWTSecret: "test-secret",
		Issuer:    "buildflow-test",
		Leeway:    time.Second,
	})
}

func whoAmI() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := composables.UseUser(r.Context())
		if err != nil {
			_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{"anonymous": true})
			return
		}
		_ = httpapi.WriteJSON(w, http.StatusOK, u)
	})
}

func serve(t *testing.T, h http.Handler, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := newIssuer()
	token, err := issuer.Issue(&composables.User{
		Username:        "maria",
		Role:            composables.RoleManager,
		ManagedProjects: []uint{3, 7},
	}, time.Hour)
	require.NoError(t, err)

	u, err := issuer.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "maria", u.Username)
	require.True(t, u.IsManager())
	require.True(t, u.Manages(7))
	require.False(t, u.Manages(4))
}

func TestTokenIssuer_RejectsExpiredAndForeignTokens(t *testing.T) {
	issuer := newIssuer()
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := issuer.Issue(&composables.User{Username: "w", Role: composables.RoleWorker}, time.Hour)
	require.NoError(t, err)
	issuer.now = time.Now

	_, err = issuer.Parse(expired)
	require.ErrorIs(t, err, ErrInvalidToken)

	other := NewTokenIssuer(configuration.AuthOptions{JWTSecret: "other", Issuer: "buildflow-test"})
	foreign, err := other.Issue(&composables.User{Username: "w", Role: composables.RoleWorker}, time.Hour)
	require.NoError(t, err)
	_, err = issuer.Parse(foreign)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.Issue(&composables.User{}, time.Hour)
	require.Error(t, err)
}

func TestAuthorize(t *testing.T) {
	issuer := newIssuer()
	h := Authorize(issuer)(whoAmI())

	rec := serve(t, h, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "anonymous")

	rec = serve(t, h, "not-a-jwt")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	var env httpapi.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Equal(t, "UNAUTHORIZED", env.Code)

	token, err := issuer.Issue(&composables.User{Username: "ana", Role: "Worker", WorkerName: "Ana"}, time.Hour)
	require.NoError(t, err)
	rec = serve(t, h, token)
	require.Equal(t, http.StatusOK, rec.Code)
	var u composables.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &u))
	require.Equal(t, "worker", u.Role)
	require.Equal(t, "Ana", u.WorkerName)
}

func TestRequireUser(t *testing.T) {
	issuer := newIssuer()
	r := mux.NewRouter()
	r.Use(Authorize(issuer))
	admin := r.PathPrefix("/api").Subrouter()
	admin.Use(RequireUser(composables.RoleAdmin))
	admin.Handle("/projects", whoAmI())

	rec := serve(t, r, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	worker, err := issuer.Issue(&composables.User{Username: "w", Role: composables.RoleWorker}, time.Hour)
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, serve(t, r, worker).Code)

	adminToken, err := issuer.Issue(&composables.User{Username: "root", Role: composables.RoleAdmin}, time.Hour)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, serve(t, r, adminToken).Code)
}
