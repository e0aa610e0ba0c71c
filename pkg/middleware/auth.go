package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/mux"

	"github.com/buildflow/buildflow/pkg/composables"
	"github.com/buildflow/buildflow/pkg/configuration"
	"github.com/buildflow/buildflow/pkg/httpapi"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

// UserClaims is the token payload mapped onto composables.User.
type UserClaims struct {
	Role            string `json:"role"`
	WorkerName      string `json:"worker_name,omitempty"`
	ManagedProjects []uint `json:"managed_projects,omitempty"`
	jwt.RegisteredClaims
}

func (c *UserClaims) User() *composables.User {
	return &composables.User{
		Username:        c.Subject,
		Role:            strings.ToLower(strings.TrimSpace(c.Role)),
		WorkerName:      c.WorkerName,
		ManagedProjects: c.ManagedProjects,
	}
}

type TokenIssuer struct {
	secret []byte
	issuer string
	leeway time.Duration
	now    func() time.Time
}

func NewTokenIssuer(opts configuration.AuthOptions) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(opts.JWTSecret),
		issuer: opts.Issuer,
		leeway: opts.Leeway,
		now:    time.Now,
	}
}

func (t *TokenIssuer) Issue(u *composables.User, ttl time.Duration) (string, error) {
	if u == nil || u.Username == "" {
		return "", errors.New("token subject is required")
	}
	now := t.now()
	claims := &UserClaims{
		Role:            u.Role,
		WorkerName:      u.WorkerName,
		ManagedProjects: u.ManagedProjects,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Username,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Parse verifies the signature, then checks expiry and issuer with leeway.
func (t *TokenIssuer) Parse(raw string) (*composables.User, error) {
	claims := &UserClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	now := t.now()
	if !claims.VerifyExpiresAt(now.Add(-t.leeway), true) {
		return nil, fmt.Errorf("%w: token expired", ErrInvalidToken)
	}
	if !claims.VerifyNotBefore(now.Add(t.leeway), false) {
		return nil, fmt.Errorf("%w: token not yet valid", ErrInvalidToken)
	}
	if t.issuer != "" && !claims.VerifyIssuer(t.issuer, true) {
		return nil, fmt.Errorf("%w: unexpected issuer", ErrInvalidToken)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims.User(), nil
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrInvalidToken
	}
	return strings.TrimSpace(token), nil
}

// Authorize resolves the bearer token into a user. Requests without a token
// pass through anonymously; a malformed or expired token is rejected.
func Authorize(issuer *TokenIssuer) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := bearerToken(r)
			if errors.Is(err, ErrMissingToken) {
				next.ServeHTTP(w, r)
				return
			}
			var u *composables.User
			if err == nil {
				u, err = issuer.Parse(raw)
			}
			if err != nil {
				composables.UseLogger(r.Context()).WithError(err).Debug("rejecting bearer token")
				_ = httpapi.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(composables.WithUser(r.Context(), u)))
		})
	}
}

// RequireUser rejects anonymous requests. Roles narrows access further when given.
func RequireUser(roles ...string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, err := composables.UseUser(r.Context())
			if err != nil {
				_ = httpapi.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
				return
			}
			if len(roles) > 0 && !hasRole(u, roles) {
				_ = httpapi.WriteError(w, http.StatusForbidden, "FORBIDDEN", "insufficient role", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func hasRole(u *composables.User, roles []string) bool {
	for _, role := range roles {
		if strings.EqualFold(u.Role, role) {
			return true
		}
	}
	return false
}
