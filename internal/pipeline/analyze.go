package pipeline

import (
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/plan-auditor/internal/analysis"
	"github.com/jonathan/plan-auditor/internal/parsing"
	"github.com/jonathan/plan-auditor/internal/ranking"
	"github.com/jonathan/plan-auditor/internal/types"
)

// Result is everything one analysis pass produced.
type Result struct {
	Student         types.StudentInfo      `json:"student"`
	Diagnostics     parsing.Diagnostics    `json:"diagnostics"`
	BuildStats      analysis.BuildStats    `json:"build_stats"`
	Plan            types.Plan             `json:"plan"`
	Report          *types.Report          `json:"report"`
	Recommendations []types.Recommendation `json:"recommendations"`
}

// Empty reports the soft failure where no plan table was decoded.
func (r *Result) Empty() bool {
	return r == nil || r.Report.IsEmpty()
}

// Overview returns the dashboard digest with the top recommendations.
func (r *Result) Overview() types.Overview {
	return types.NewOverview(r.Report, r.Recommendations, types.DefaultOverviewSize)
}

// Analyze decodes a plan page and produces the report and ranked
// recommendations. A page without the plan table is not an error: the
// result is empty and Diagnostics.TableFound is unset.
func Analyze(html string, now time.Time, logger *zap.Logger) (*Result, error) {
	doc, err := parsing.ParseDocument(html)
	if err != nil {
		return nil, err
	}
	return AnalyzeGrid(doc.Student, doc.Rows, now, logger), nil
}

// AnalyzeGrid runs decode, build, aggregate and rank over an in-memory grid.
func AnalyzeGrid(student types.StudentInfo, rows []types.Row, now time.Time, logger *zap.Logger) *Result {
	if logger == nil {
		logger = zap.NewNop()
	}

	decoded := parsing.DecodeGrid(rows)
	for _, a := range decoded.Diagnostics.Anomalies {
		logger.Debug("decode anomaly",
			zap.Int("row", a.Row),
			zap.String("kind", string(a.Kind)),
			zap.String("text", a.Text))
	}
	if !decoded.Diagnostics.TableFound {
		logger.Debug("plan table header not found", zap.Int("rows", len(rows)))
	}

	plan, stats := analysis.BuildPlan(student, decoded)
	if stats != (analysis.BuildStats{}) {
		logger.Debug("rows dropped while building plan",
			zap.Int("orphan_groups", stats.OrphanGroups),
			zap.Int("orphan_courses", stats.OrphanCourses),
			zap.Int("unkinded_groups", stats.UnkindedGroups),
			zap.Int("extra_categories", stats.ExtraCategories))
	}

	report := analysis.Aggregate(plan, now)
	return &Result{
		Student:         plan.Student,
		Diagnostics:     decoded.Diagnostics,
		BuildStats:      stats,
		Plan:            plan,
		Report:          report,
		Recommendations: ranking.Recommend(report),
	}
}
