package db

import (
	"time"

	"github.com/google/uuid"
)

// DefaultListLimit caps ListRuns when no limit is given.
const DefaultListLimit = 50

// Run represents an analysis run record
type Run struct {
	ID          uuid.UUID  `json:"id"`
	StudentID   string     `json:"student_id"`
	StudentName string     `json:"student_name"`
	Source      string     `json:"source"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Run status values
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusEmpty     = "empty"
	RunStatusFailed    = "failed"
)

// Run sources
const (
	SourceFile    = "file"
	SourceSession = "session"
	SourceBrowser = "browser"
	SourceUpload  = "upload"
)

// ArtifactStep constants for known artifact types
const (
	StepPlanHTML        = "plan_html"
	StepDiagnostics     = "diagnostics"
	StepPlan            = "plan"
	StepReport          = "report"
	StepRecommendations = "recommendations"
	StepExportText      = "export_txt"
	StepExportMarkdown  = "export_md"
)

// Artifact categories
const (
	CategoryRetrieval = "retrieval"
	CategoryAnalysis  = "analysis"
	CategoryExport    = "export"
)
