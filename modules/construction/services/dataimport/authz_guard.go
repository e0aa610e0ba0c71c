package dataimport

import (
	"context"
	"errors"

	"github.com/buildflow/buildflow/pkg/authz"
	"github.com/buildflow/buildflow/pkg/composables"
)

// ImportsAuthzObject is the capability object guarding bulk imports.
const ImportsAuthzObject = "construction.imports"
const constructionAuthzDomain = "construction"

var authorizeImportFn = defaultAuthorizeImport

func authorizeImport(ctx context.Context, action string) error {
	return authorizeImportFn(ctx, ImportsAuthzObject, action)
}

// defaultAuthorizeImport lets calls without a user through; those come
// from the CLI and internal jobs.
func defaultAuthorizeImport(ctx context.Context, object, action string) error {
	currentUser, err := composables.UseUser(ctx)
	if err != nil {
		if errors.Is(err, composables.ErrNoUserFound) {
			return nil
		}
		return err
	}
	if currentUser == nil {
		return nil
	}
	req := authz.NewRequest(
		authz.SubjectForRole(currentUser.Role),
		constructionAuthzDomain,
		object,
		authz.NormalizeAction(action),
	)
	return authz.Use().Authorize(ctx, req)
}
