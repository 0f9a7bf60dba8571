package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/plan-auditor/internal/db"
	"github.com/jonathan/plan-auditor/internal/pipeline"
	"github.com/jonathan/plan-auditor/internal/types"
)

// analysisFlags are shared by analyze and run.
type analysisFlags struct {
	export      exportFlags
	ratingsPath string
	asJSON      bool
	noDB        bool
}

func (f *analysisFlags) bind(cmd *cobra.Command) {
	f.export.bind(cmd)
	cmd.Flags().StringVar(&f.ratingsPath, "ratings", "", "Rating snapshot used to annotate suggestions (defaults to reviews.ratings_file)")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "Print the report and recommendations as JSON")
	cmd.Flags().BoolVar(&f.noDB, "no-db", false, "Do not persist the run even if a database is configured")
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		input string
		flags analysisFlags
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze a saved training-plan page",
		Long: `Decodes a saved 培养方案完成情况 HTML page, prints the completion summary and
ranked recommendations, and writes the requested export files.

A page without the plan table (for example an expired login) is reported as
empty and is not an error.`,
		Example: `  plan_agent analyze --in plan.html
  plan_agent analyze -i plan.html -f md,csv -o reports`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			html, err := os.ReadFile(input)
			if err != nil {
				return fmt.Errorf("failed to read plan page: %w", err)
			}
			database, err := a.openStore(cmd, &flags)
			if err != nil {
				return err
			}
			defer closeDB(database)

			return a.runAnalysis(cmd, &flags, database, pipeline.RunOptions{
				HTML:   string(html),
				Source: db.SourceFile,
			})
		},
	}
	cmd.Flags().StringVarP(&input, "in", "i", "", "Path to the saved plan page HTML (required)")
	flags.bind(cmd)
	if err := cmd.MarkFlagRequired("in"); err != nil {
		panic(fmt.Sprintf("failed to mark in flag as required: %v", err))
	}
	return cmd
}

// openStore opens the database unless --no-db was given.
func (a *app) openStore(cmd *cobra.Command, flags *analysisFlags) (*db.DB, error) {
	if flags.noDB {
		return nil, nil
	}
	return a.openDB(cmd.Context())
}

// runAnalysis completes opts with storage, ratings and exports, runs the
// pipeline and prints the outcome. database may be nil.
func (a *app) runAnalysis(cmd *cobra.Command, flags *analysisFlags, database *db.DB, opts pipeline.RunOptions) error {
	ctx := cmd.Context()

	formats, dir, err := a.exportTargets(cmd, &flags.export)
	if err != nil {
		return err
	}

	c, closeCache := a.openCache()
	defer closeCache()

	ratingsPath := a.cfg.Reviews.RatingsFile
	if flags.ratingsPath != "" {
		ratingsPath = flags.ratingsPath
	}
	ratings, err := a.loadRatings(ctx, ratingsPath, c, database)
	if err != nil {
		return err
	}

	opts.Ratings = ratings
	opts.Formats = formats
	opts.OutputDir = dir
	opts.Render = a.renderOptions()
	opts.Logger = a.logger
	if database != nil {
		opts.Store = database
	}
	out := cmd.OutOrStdout()
	if !flags.asJSON {
		opts.Printer = a.printer(out)
	}

	res, err := pipeline.Run(ctx, opts)
	if err != nil {
		return err
	}
	if flags.asJSON {
		return writeJSON(out, res)
	}
	printOutcome(out, res)
	return nil
}

type jsonOutcome struct {
	RunID           string                 `json:"run_id,omitempty"`
	Empty           bool                   `json:"empty"`
	Report          *types.Report          `json:"report"`
	Recommendations []types.Recommendation `json:"recommendations"`
	Files           []string               `json:"files"`
}

func writeJSON(out io.Writer, res *pipeline.RunResult) error {
	doc := jsonOutcome{
		Empty:           res.Result.Empty(),
		Report:          res.Result.Report,
		Recommendations: res.Result.Recommendations,
		Files:           res.Files,
	}
	if res.RunID != uuid.Nil {
		doc.RunID = res.RunID.String()
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

//nolint:errcheck // writing to stdout; errors are not recoverable
func printOutcome(out io.Writer, res *pipeline.RunResult) {
	result := res.Result
	if result.Empty() {
		fmt.Fprintln(out, "No plan table found: the page may be a login screen or an expired session.")
	} else {
		overview := result.Overview()
		s := overview.Summary
		if id := overview.Student.StudentID; id != "" {
			fmt.Fprintf(out, "Student: %s %s\n", id, overview.Student.Name)
		}
		fmt.Fprintf(out, "Completion: %.2f%% (%s of %s credits, %s remaining)\n",
			s.CompletionRate, types.FormatNumber(s.TotalCompleted), types.FormatNumber(s.TotalRequired), types.FormatNumber(s.TotalRemaining))
		fmt.Fprintf(out, "Incomplete groups: %d\n", overview.IncompleteCount)
		for i, rec := range overview.TopRecommendations {
			fmt.Fprintf(out, "  %d. [%s] %s  priority %d, %s credits / %d courses left\n",
				i+1, rec.CategoryLabel, rec.GroupName, rec.Priority, types.FormatNumber(rec.RemainingCredits), rec.RemainingCourses)
		}
		if more := overview.TotalRecommendation - len(overview.TopRecommendations); more > 0 {
			fmt.Fprintf(out, "  ... and %d more\n", more)
		}
	}

	for _, f := range res.Files {
		fmt.Fprintf(out, "Wrote %s\n", f)
	}
	if res.RunID != uuid.Nil {
		fmt.Fprintf(out, "Run ID: %s\n", res.RunID)
	}
}
