package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonathan/plan-auditor/internal/types"
)

// GetReportByRunID loads the completion report stored for a run
func (db *DB) GetReportByRunID(ctx context.Context, runID uuid.UUID) (*types.Report, error) {
	content, err := db.GetArtifact(ctx, runID, StepReport)
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, nil
	}

	var report types.Report
	if err := json.Unmarshal(content, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &report, nil
}

// GetRecommendationsByRunID loads the ranked recommendations stored for a run
func (db *DB) GetRecommendationsByRunID(ctx context.Context, runID uuid.UUID) ([]types.Recommendation, error) {
	content, err := db.GetArtifact(ctx, runID, StepRecommendations)
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, nil
	}

	var recs []types.Recommendation
	if err := json.Unmarshal(content, &recs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recommendations: %w", err)
	}
	return recs, nil
}

// GetPlanByRunID loads the reconciled plan hierarchy stored for a run
func (db *DB) GetPlanByRunID(ctx context.Context, runID uuid.UUID) (*types.Plan, error) {
	content, err := db.GetArtifact(ctx, runID, StepPlan)
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, nil
	}

	var plan types.Plan
	if err := json.Unmarshal(content, &plan); err != nil {
		return nil, fmt.Errorf("failed to unmarshal plan: %w", err)
	}
	return &plan, nil
}

// GetPlanHTMLByRunID returns the raw page a run analyzed
func (db *DB) GetPlanHTMLByRunID(ctx context.Context, runID uuid.UUID) (string, error) {
	return db.GetTextArtifact(ctx, runID, StepPlanHTML)
}
