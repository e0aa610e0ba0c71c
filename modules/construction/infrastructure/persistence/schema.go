package persistence

import (
	"context"
	_ "embed"

	gerrors "github.com/go-faster/errors"

	"github.com/buildflow/buildflow/pkg/repo"
)

//go:embed schema/construction-schema.sql
var schemaSQL string

// EnsureSchema creates the construction tables when they do not exist.
func EnsureSchema(ctx context.Context, tx repo.Tx) error {
	if _, err := tx.Exec(ctx, schemaSQL); err != nil {
		return gerrors.Wrap(err, "failed to apply construction schema")
	}
	return nil
}
