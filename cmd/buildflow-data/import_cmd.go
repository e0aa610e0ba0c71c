package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/buildflow/buildflow/modules/construction/services/dataimport"
)

type importSummary struct {
	RunID       uuid.UUID               `json:"run_id"`
	Source      string                  `json:"source"`
	Counts      dataimport.Counts       `json:"counts"`
	Skipped     int                     `json:"skipped"`
	DryRun      bool                    `json:"dry_run"`
	Report      string                  `json:"report,omitempty"`
	Diagnostics []dataimport.Diagnostic `json:"diagnostics,omitempty"`
}

func newImportCmd() *cobra.Command {
	var (
		file           string
		store          string
		report         string
		defaultProject uint
		dryRun         bool
		strict         bool
		verbose        bool
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import projects, tasks, resources and budgets from an xlsx/csv file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return withCode(exitUsage, fmt.Errorf("read %s: %w", file, err))
			}

			logger := newLogger(cmd.ErrOrStderr(), verbose)
			backend, err := openBackend(cmd.Context(), store, logger)
			if err != nil {
				return err
			}
			defer backend.close()

			source := filepath.Base(file)
			result, err := backend.service.Import(backend.bind(cmd.Context()), source, data, dataimport.Options{
				DefaultProjectID: defaultProject,
				DryRun:           dryRun,
			})
			if err != nil {
				if isRejection(err) {
					return withCode(exitValidation, err)
				}
				return withCode(exitDBWrite, err)
			}

			if report != "" {
				if err := writeDiagnosticsCSV(report, result.Diagnostics); err != nil {
					return err
				}
			}

			summary := importSummary{
				RunID:   result.RunID,
				Source:  source,
				Counts:  result.Counts,
				Skipped: result.Skipped(),
				DryRun:  result.DryRun,
				Report:  report,
			}
			if report == "" {
				summary.Diagnostics = result.Diagnostics
			}
			if err := writeJSONLine(cmd.OutOrStdout(), summary); err != nil {
				return err
			}
			if strict && summary.Skipped > 0 {
				return withCode(exitValidation, fmt.Errorf("%d rows skipped", summary.Skipped))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "input file (.xlsx, .csv, .tsv)")
	cmd.Flags().StringVar(&store, "store", storePostgres, "target store: postgres|memory")
	cmd.Flags().StringVar(&report, "report", "", "write row diagnostics to this CSV file instead of stdout")
	cmd.Flags().UintVar(&defaultProject, "default-project", 0, "project id for rows without a project reference")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "run the import and roll it back")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit with a validation error if any row was skipped")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "log row-level debug output to stderr")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// isRejection reports whether the import was refused before any row was
// processed because of the payload or options themselves.
func isRejection(err error) bool {
	for _, target := range []error{
		dataimport.ErrUnknownFormat,
		dataimport.ErrUnparseable,
		dataimport.ErrOpenWorkbook,
		dataimport.ErrUnclassifiable,
		dataimport.ErrUnknownDefaultProject,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
