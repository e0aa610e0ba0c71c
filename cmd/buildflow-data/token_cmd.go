package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/buildflow/buildflow/pkg/composables"
	"github.com/buildflow/buildflow/pkg/configuration"
	"github.com/buildflow/buildflow/pkg/middleware"
)

// tokenAuth is swapped in tests to avoid loading the process configuration.
var tokenAuth = func() configuration.AuthOptions {
	return configuration.Use().Auth
}

func newTokenCmd() *cobra.Command {
	var (
		username string
		role     string
		worker   string
		projects []uint
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a signed API token for local use",
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch role {
			case composables.RoleAdmin, composables.RoleManager, composables.RoleWorker:
			default:
				return withCode(exitUsage, fmt.Errorf("unknown --role %q", role))
			}
			if username == "" {
				return withCode(exitUsage, errors.New("--username is required"))
			}
			user := &composables.User{
				Username:        username,
				Role:            role,
				WorkerName:      worker,
				ManagedProjects: projects,
			}
			raw, err := middleware.NewTokenIssuer(tokenAuth()).Issue(user, ttl)
			if err != nil {
				return err
			}
			return writeJSONLine(cmd.OutOrStdout(), map[string]any{
				"token":      raw,
				"username":   username,
				"role":       role,
				"expires_in": ttl.String(),
			})
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "token subject")
	cmd.Flags().StringVar(&role, "role", composables.RoleWorker, "admin|manager|worker")
	cmd.Flags().StringVar(&worker, "worker-name", "", "assignee name matched against task assigned_to")
	cmd.Flags().UintSliceVar(&projects, "project", nil, "managed project id (repeatable)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
