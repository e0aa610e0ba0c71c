package composables

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/buildflow/buildflow/pkg/constants"
)

var ErrNoUserFound = errors.New("no user found in context")

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleWorker  = "worker"
)

// User is the authenticated principal carried by a bearer token.
type User struct {
	Username        string
	Role            string
	WorkerName      string
	ManagedProjects []uint
}

func (u *User) IsAdmin() bool {
	return u != nil && strings.EqualFold(u.Role, RoleAdmin)
}

func (u *User) IsManager() bool {
	return u != nil && strings.EqualFold(u.Role, RoleManager)
}

func (u *User) IsWorker() bool {
	return u != nil && strings.EqualFold(u.Role, RoleWorker)
}

func (u *User) Manages(projectID uint) bool {
	return u != nil && slices.Contains(u.ManagedProjects, projectID)
}

func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, constants.UserKey, u)
}

func UseUser(ctx context.Context) (*User, error) {
	u, ok := ctx.Value(constants.UserKey).(*User)
	if !ok || u == nil {
		return nil, ErrNoUserFound
	}
	return u, nil
}
