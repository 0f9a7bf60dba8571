// Package pipeline orchestrates plan retrieval, analysis, rating annotation,
// persistence and export.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/plan-auditor/internal/db"
	"github.com/jonathan/plan-auditor/internal/fetch"
	"github.com/jonathan/plan-auditor/internal/observability"
	"github.com/jonathan/plan-auditor/internal/pipeline/steps"
	"github.com/jonathan/plan-auditor/internal/ranking"
	"github.com/jonathan/plan-auditor/internal/rendering"
	"github.com/jonathan/plan-auditor/internal/schemas"
	"github.com/jonathan/plan-auditor/internal/types"
	schemafiles "github.com/jonathan/plan-auditor/schemas"
)

// ProgressEvent represents a progress update during pipeline execution
type ProgressEvent struct {
	Step     string `json:"step"`
	Category string `json:"category"`
	Message  string `json:"message"`
	RunID    string `json:"run_id,omitempty"`
	Content  any    `json:"content,omitempty"`
}

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)

// Store persists runs, their steps and artifacts. *db.DB implements it.
type Store interface {
	steps.StepLookup
	CreateRun(ctx context.Context, source string) (uuid.UUID, error)
	SetRunStudent(ctx context.Context, runID uuid.UUID, studentID, studentName string) error
	CompleteRun(ctx context.Context, runID uuid.UUID, status string) error
	SaveArtifact(ctx context.Context, runID uuid.UUID, step, category string, content any) error
	SaveTextArtifact(ctx context.Context, runID uuid.UUID, step, category, text string) error
	StartRunStep(ctx context.Context, runID uuid.UUID, step, category string) (*db.RunStep, error)
	FinishRunStep(ctx context.Context, runID uuid.UUID, stepName, status string, stepErr error) error
}

var _ Store = (*db.DB)(nil)

// RunOptions holds configuration for running the pipeline
type RunOptions struct {
	// HTML is an already retrieved plan page. When empty, Fetcher is used.
	HTML    string
	Fetcher *fetch.CachedFetcher
	// Source is recorded on the run, one of the db.Source* values
	Source string

	// Ratings annotates suggested courses when set
	Ratings *types.RatingSet

	// Formats to write under OutputDir. No files are written when empty.
	Formats   []rendering.Format
	OutputDir string
	Render    rendering.Options

	Store   Store
	Logger  *zap.Logger
	Metrics *observability.Metrics
	// Printer receives boxed summaries in verbose mode
	Printer    *observability.Printer
	OnProgress ProgressCallback
	Now        func() time.Time
}

// RunResult is the outcome of a pipeline run.
type RunResult struct {
	RunID     uuid.UUID `json:"run_id"`
	Result    *Result   `json:"result"`
	Files     []string  `json:"files"`
	FromCache bool      `json:"from_cache"`
}

// runner carries per-run state so steps can record themselves.
type runner struct {
	opts  *RunOptions
	log   *zap.Logger
	runID uuid.UUID
}

// emitProgress calls the progress callback if configured
func (r *runner) emitProgress(step, message string, content any) {
	if r.opts.OnProgress == nil {
		return
	}
	ev := ProgressEvent{
		Step:     step,
		Category: steps.Category(step),
		Message:  message,
		Content:  content,
	}
	if r.runID != uuid.Nil {
		ev.RunID = r.runID.String()
	}
	r.opts.OnProgress(ev)
}

func (r *runner) persisting() bool {
	return r.opts.Store != nil && r.runID != uuid.Nil
}

// step records a run step around fn. Persistence failures are logged and
// never fail the run.
func (r *runner) step(ctx context.Context, name string, fn func() error) error {
	if r.persisting() {
		if err := steps.ValidateDependencies(ctx, r.opts.Store, r.runID, name); err != nil {
			r.log.Warn("step dependencies not recorded as complete", zap.String("step", name), zap.Error(err))
		}
		if _, err := r.opts.Store.StartRunStep(ctx, r.runID, name, steps.Category(name)); err != nil {
			r.log.Warn("failed to record step start", zap.String("step", name), zap.Error(err))
		}
	}

	stepErr := fn()

	if r.persisting() {
		status := db.StepStatusCompleted
		if stepErr != nil {
			status = db.StepStatusFailed
		}
		if err := r.opts.Store.FinishRunStep(ctx, r.runID, name, status, stepErr); err != nil {
			r.log.Warn("failed to record step finish", zap.String("step", name), zap.Error(err))
		}
	}
	return stepErr
}

func (r *runner) saveArtifact(ctx context.Context, step, category string, content any) {
	if !r.persisting() {
		return
	}
	if err := r.opts.Store.SaveArtifact(ctx, r.runID, step, category, content); err != nil {
		r.log.Warn("failed to save artifact", zap.String("artifact", step), zap.Error(err))
	}
}

func (r *runner) saveText(ctx context.Context, step, category, text string) {
	if !r.persisting() {
		return
	}
	if err := r.opts.Store.SaveTextArtifact(ctx, r.runID, step, category, text); err != nil {
		r.log.Warn("failed to save artifact", zap.String("artifact", step), zap.Error(err))
	}
}

// Run retrieves (or takes) a plan page, analyzes it, annotates
// recommendations with course ratings, persists every artifact and writes
// the requested exports. An empty plan completes with status "empty".
func Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	if opts.HTML == "" && opts.Fetcher == nil {
		return nil, errors.New("no plan page: provide HTML or a fetcher")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Source == "" {
		opts.Source = db.SourceFile
	}

	r := &runner{opts: &opts, log: opts.Logger}
	out := &RunResult{}

	if opts.Store != nil {
		runID, err := opts.Store.CreateRun(ctx, opts.Source)
		if err != nil {
			r.log.Warn("failed to create run, continuing without persistence", zap.Error(err))
		} else {
			r.runID = runID
			out.RunID = runID
			r.log = r.log.With(zap.String("run_id", runID.String()))
		}
	}

	status, err := r.run(ctx, out)
	if err != nil {
		opts.Metrics.ObserveAnalysisError()
		status = db.RunStatusFailed
	}
	if r.persisting() {
		// The caller's context may already be canceled; record the outcome regardless.
		if cerr := opts.Store.CompleteRun(context.WithoutCancel(ctx), r.runID, status); cerr != nil {
			r.log.Warn("failed to complete run", zap.Error(cerr))
		}
	}
	if err != nil {
		return out, err
	}
	return out, nil
}

func (r *runner) run(ctx context.Context, out *RunResult) (string, error) {
	opts := r.opts

	var html string
	err := r.step(ctx, steps.FetchPlan, func() error {
		if opts.HTML != "" {
			html = opts.HTML
			return nil
		}
		res, err := opts.Fetcher.FetchPlan(ctx)
		if err != nil {
			return fmt.Errorf("plan retrieval failed: %w", err)
		}
		html = res.HTML
		out.FromCache = res.FromCache
		return nil
	})
	if err != nil {
		return "", err
	}
	if !fetch.LooksLikePlan(html) {
		r.log.Warn("retrieved page does not look like a plan page", zap.Int("bytes", len(html)))
	}
	r.saveText(ctx, db.StepPlanHTML, db.CategoryRetrieval, html)
	r.emitProgress(steps.FetchPlan, fmt.Sprintf("Retrieved plan page (%d bytes)", len(html)), nil)

	var result *Result
	err = r.step(ctx, steps.Analyze, func() error {
		start := time.Now()
		var err error
		result, err = Analyze(html, opts.Now(), r.log)
		if err != nil {
			return fmt.Errorf("plan analysis failed: %w", err)
		}
		opts.Metrics.ObserveAnalysis(result.Report, result.Diagnostics, time.Since(start))
		return nil
	})
	if err != nil {
		return "", err
	}
	out.Result = result

	if r.persisting() {
		if err := opts.Store.SetRunStudent(ctx, r.runID, result.Student.StudentID, result.Student.Name); err != nil {
			r.log.Warn("failed to record student", zap.Error(err))
		}
	}
	r.saveArtifact(ctx, db.StepDiagnostics, db.CategoryAnalysis, result.Diagnostics)
	r.saveArtifact(ctx, db.StepPlan, db.CategoryAnalysis, result.Plan)
	r.saveArtifact(ctx, db.StepReport, db.CategoryAnalysis, result.Report)
	if opts.Printer != nil {
		opts.Printer.PrintDiagnostics(result.Diagnostics, result.BuildStats)
		opts.Printer.PrintSummary(result.Report)
	}
	r.emitProgress(steps.Analyze,
		fmt.Sprintf("Decoded %d courses, completion %.2f%%", result.Diagnostics.Courses, result.Report.Summary.CompletionRate),
		result.Report.Summary)

	if result.Empty() {
		r.log.Info("no plan table found; nothing to recommend")
	}

	err = r.step(ctx, steps.Recommend, func() error {
		if opts.Ratings != nil && len(opts.Ratings.Courses) > 0 {
			result.Recommendations = ranking.AnnotateRatings(result.Recommendations, opts.Ratings)
		}
		if err := schemas.ValidateValue(schemafiles.Report, result.Report); err != nil {
			return fmt.Errorf("report failed schema validation: %w", err)
		}
		return schemas.ValidateValue(schemafiles.Recommendations, result.Recommendations)
	})
	if err != nil {
		return "", err
	}
	r.saveArtifact(ctx, db.StepRecommendations, db.CategoryAnalysis, result.Recommendations)
	if opts.Printer != nil {
		opts.Printer.PrintRecommendations(result.Recommendations)
	}
	r.emitProgress(steps.Recommend, fmt.Sprintf("Ranked %d recommendations", len(result.Recommendations)), result.Overview())

	if len(opts.Formats) > 0 {
		err = r.step(ctx, steps.Export, func() error {
			files, err := r.export(ctx, result)
			out.Files = files
			return err
		})
		if err != nil {
			return "", err
		}
		r.emitProgress(steps.Export, fmt.Sprintf("Wrote %d files", len(out.Files)), out.Files)
	}

	if result.Empty() {
		return db.RunStatusEmpty, nil
	}
	return db.RunStatusCompleted, nil
}

func (r *runner) export(ctx context.Context, result *Result) ([]string, error) {
	opts := r.opts
	dir := opts.OutputDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	base := rendering.DefaultFilename(result.Student.StudentID, result.Report.GeneratedAt)
	files := make([]string, 0, len(opts.Formats))
	for _, format := range opts.Formats {
		data, err := rendering.Render(format, result.Report, result.Recommendations, opts.Render)
		if err != nil {
			return files, err
		}
		path := filepath.Join(dir, base+format.Extension())
		if err := os.WriteFile(path, data, 0644); err != nil {
			return files, fmt.Errorf("failed to write %s: %w", path, err)
		}
		files = append(files, path)
		r.log.Info("wrote export", zap.String("format", string(format)), zap.String("path", path))

		switch format {
		case rendering.FormatText:
			r.saveText(ctx, db.StepExportText, db.CategoryExport, string(data))
		case rendering.FormatMarkdown:
			r.saveText(ctx, db.StepExportMarkdown, db.CategoryExport, string(data))
		}
	}
	return files, nil
}
