package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/plan-auditor/internal/rendering"
	"github.com/jonathan/plan-auditor/internal/schemas"
	"github.com/jonathan/plan-auditor/internal/types"
	schemafiles "github.com/jonathan/plan-auditor/schemas"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		input string
		runID string
		flags exportFlags
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Re-render a stored report in other formats",
		Long: `Renders a report again without re-analyzing the page. The report comes from a
JSON export written earlier (--in) or from a persisted run (--run-id).`,
		Example: `  plan_agent export --in output/培养方案报告_2021010001_2026-03-01.json -f pdf
  plan_agent export --run-id 3f0c... -f md,csv`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (input == "") == (runID == "") {
				return errors.New("exactly one of --in or --run-id is required")
			}

			var (
				export *rendering.Export
				err    error
			)
			if input != "" {
				export, err = readExport(input)
			} else {
				export, err = a.loadRunExport(cmd, runID)
			}
			if err != nil {
				return err
			}

			formats, dir, err := a.exportTargets(cmd, &flags)
			if err != nil {
				return err
			}
			if len(formats) == 0 {
				return errors.New("no export formats selected")
			}
			files, err := writeExports(export, formats, dir, a.renderOptions())
			for _, f := range files {
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", f) //nolint:errcheck
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&input, "in", "i", "", "JSON export to re-render")
	cmd.Flags().StringVar(&runID, "run-id", "", "Persisted run to re-render")
	flags.bind(cmd)
	return cmd
}

// readExport loads a JSON export and checks its report against the schema.
func readExport(path string) (*rendering.Export, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read export: %w", err)
	}
	var export rendering.Export
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("failed to unmarshal export JSON: %w", err)
	}
	if export.Report == nil {
		return nil, fmt.Errorf("%s has no report", path)
	}
	if err := schemas.ValidateValue(schemafiles.Report, export.Report); err != nil {
		return nil, err
	}
	return &export, nil
}

func (a *app) loadRunExport(cmd *cobra.Command, id string) (*rendering.Export, error) {
	runID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid run ID: %w", err)
	}
	ctx := cmd.Context()
	database, err := a.openDB(ctx)
	if err != nil {
		return nil, err
	}
	if database == nil {
		return nil, errors.New("--run-id needs database.url (PLAN_DATABASE_URL)")
	}
	defer database.Close()

	report, err := database.GetReportByRunID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, fmt.Errorf("run %s has no report", runID)
	}
	recs, err := database.GetRecommendationsByRunID(ctx, runID)
	if err != nil {
		return nil, err
	}
	return &rendering.Export{Report: report, Recommendations: recs}, nil
}

// writeExports renders every format under dir and returns the written paths.
func writeExports(export *rendering.Export, formats []rendering.Format, dir string, opts rendering.Options) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	report := export.Report
	recs := export.Recommendations
	if recs == nil {
		recs = []types.Recommendation{}
	}

	base := rendering.DefaultFilename(report.Student.StudentID, report.GeneratedAt)
	files := make([]string, 0, len(formats))
	for _, format := range formats {
		data, err := rendering.Render(format, report, recs, opts)
		if err != nil {
			return files, err
		}
		path := filepath.Join(dir, base+format.Extension())
		if err := os.WriteFile(path, data, 0644); err != nil {
			return files, fmt.Errorf("failed to write %s: %w", path, err)
		}
		files = append(files, path)
	}
	return files, nil
}
