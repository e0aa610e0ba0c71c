package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/buildflow/buildflow/pkg/authz"
	"github.com/buildflow/buildflow/pkg/composables"
)

const (
	ProjectsAuthzObject  = "construction.projects"
	TasksAuthzObject     = "construction.tasks"
	ResourcesAuthzObject = "construction.resources"
	BudgetsAuthzObject   = "construction.budgets"
	AnalyticsAuthzObject = "construction.analytics"
)

const constructionAuthzDomain = "construction"

var authorizeConstructionFn = defaultAuthorizeConstruction

func authorizeConstruction(ctx context.Context, object, action string) error {
	return authorizeConstructionFn(ctx, object, action)
}

func defaultAuthorizeConstruction(ctx context.Context, object, action string) error {
	currentUser, err := currentUser(ctx)
	if err != nil || currentUser == nil {
		return err
	}
	req := authz.NewRequest(
		authz.SubjectForRole(currentUser.Role),
		constructionAuthzDomain,
		object,
		authz.NormalizeAction(action),
	)
	return authz.Use().Authorize(ctx, req)
}

// currentUser returns nil without error for calls made outside a request.
func currentUser(ctx context.Context) (*composables.User, error) {
	u, err := composables.UseUser(ctx)
	if err != nil {
		if errors.Is(err, composables.ErrNoUserFound) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// requireProjectScope rejects managers acting on projects they do not manage.
func requireProjectScope(ctx context.Context, projectID uint) error {
	u, err := currentUser(ctx)
	if err != nil {
		return err
	}
	if u.IsManager() && !u.Manages(projectID) {
		return fmt.Errorf("%w: project %d is not managed by %s", authz.ErrForbidden, projectID, u.Username)
	}
	return nil
}

// requireTaskScope adds the worker rule on top of the project scope: workers
// only see tasks assigned to them.
func requireTaskScope(ctx context.Context, projectID uint, assignedTo string) error {
	if err := requireProjectScope(ctx, projectID); err != nil {
		return err
	}
	u, err := currentUser(ctx)
	if err != nil {
		return err
	}
	if u.IsWorker() && !assignedToWorker(u, assignedTo) {
		return fmt.Errorf("%w: task is not assigned to %s", authz.ErrForbidden, u.Username)
	}
	return nil
}

func assignedToWorker(u *composables.User, assignedTo string) bool {
	name := strings.TrimSpace(u.WorkerName)
	return name != "" && strings.EqualFold(strings.TrimSpace(assignedTo), name)
}
