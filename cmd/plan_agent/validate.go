package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/plan-auditor/internal/schemas"
)

func newValidateCmd(_ *app) *cobra.Command {
	var (
		schemaName string
		jsonPath   string
	)
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a JSON artifact against a schema",
		Long: `Validates a JSON file against one of the built-in schemas (report,
recommendations, ratings) or a schema file on disk.`,
		Example: `  plan_agent validate --schema ratings --json ratings.json
  plan_agent validate --schema schemas/report.schema.json --json report.json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := validateArtifact(schemaName, jsonPath)
			out := cmd.OutOrStdout()
			var validationErr *schemas.ValidationError
			if errors.As(err, &validationErr) {
				fmt.Fprintln(out, "Validation failed") //nolint:errcheck
				for _, fe := range validationErr.Errors {
					fmt.Fprintf(out, "  - %s: %s\n", fe.Field, fe.Message) //nolint:errcheck
				}
				return err
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "Validation passed") //nolint:errcheck
			return nil
		},
	}
	cmd.Flags().StringVarP(&schemaName, "schema", "s", "", "Built-in schema name or path to a schema file (required)")
	cmd.Flags().StringVarP(&jsonPath, "json", "j", "", "Path to the JSON file (required)")
	for _, name := range []string{"schema", "json"} {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(fmt.Sprintf("failed to mark %s flag as required: %v", name, err))
		}
	}
	return cmd
}

// validateArtifact checks jsonPath against a built-in schema ("report" or
// "report.schema.json") or a schema file path.
func validateArtifact(schema, jsonPath string) error {
	return schemas.ValidateFile(schema, jsonPath)
}
