package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/provwatch/provwatch/internal/export"
)

func schemasCmd() *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "schemas",
		Short: "Write JSON Schemas for the provider, evidence, and run documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			if outputDir == "" {
				outputDir = cfg.Export.OutputDir
			}
			dir := filepath.Join(outputDir, "schemas")

			if err := export.WriteSchemas(dir, logger); err != nil {
				return fmt.Errorf("schemas: %w", err)
			}

			fmt.Printf("Wrote schemas to %s\n", dir)
			return nil
		},
	}

	cmd.Flags().StringVar(&outputDir, "output-dir", "", "directory to write the schemas/ folder under")
	return cmd
}
