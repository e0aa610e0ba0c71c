package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/buildflow/buildflow/modules/construction/services/dataimport"
)

func newClassifyCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Show how each table of a file would be imported",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return withCode(exitUsage, fmt.Errorf("read %s: %w", file, err))
			}
			logger := newLogger(cmd.ErrOrStderr(), false)
			svc := dataimport.NewService(dataimport.Repositories{}, nil, nil, logger)

			plans, err := svc.Plan(cmd.Context(), filepath.Base(file), data)
			if err != nil {
				if isRejection(err) {
					return withCode(exitValidation, err)
				}
				return err
			}
			logger.WithFields(logrus.Fields{"file": file, "sheets": len(plans)}).Debug("classified")
			for _, p := range plans {
				if err := writeJSONLine(cmd.OutOrStdout(), p); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "input file (.xlsx, .csv, .tsv)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
