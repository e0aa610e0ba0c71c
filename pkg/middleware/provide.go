package middleware

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/buildflow/buildflow/pkg/composables"
)

// Provide stores value under key in every request context.
func Provide(key interface{}, value interface{}) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), key, value)))
		})
	}
}

// RequestParams fills in request params for handlers mounted without the
// logging middleware, and refreshes the request pointer otherwise.
func RequestParams() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			params, ok := composables.UseParams(r.Context())
			if !ok {
				params = &composables.Params{
					IP:        r.RemoteAddr,
					UserAgent: r.UserAgent(),
				}
			}
			refreshed := *params
			refreshed.Request = r
			refreshed.Writer = w
			next.ServeHTTP(w, r.WithContext(composables.WithParams(r.Context(), &refreshed)))
		})
	}
}
