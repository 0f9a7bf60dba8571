package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const stepColumns = `id, run_id, step, category, status, started_at, completed_at,
	duration_ms, error_message, created_at, updated_at`

func scanStep(row pgx.Row) (*RunStep, error) {
	var step RunStep
	if err := row.Scan(&step.ID, &step.RunID, &step.Step, &step.Category, &step.Status,
		&step.StartedAt, &step.CompletedAt, &step.DurationMs, &step.ErrorMessage,
		&step.CreatedAt, &step.UpdatedAt); err != nil {
		return nil, err
	}
	return &step, nil
}

// StartRunStep records a step as in progress, restarting it if it already exists
func (db *DB) StartRunStep(ctx context.Context, runID uuid.UUID, step, category string) (*RunStep, error) {
	s, err := scanStep(db.pool.QueryRow(ctx,
		`INSERT INTO run_steps (run_id, step, category, status, started_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (run_id, step) DO UPDATE
		 SET status = EXCLUDED.status, started_at = NOW(), completed_at = NULL,
		     duration_ms = NULL, error_message = NULL, updated_at = NOW()
		 RETURNING `+stepColumns,
		runID, step, category, StepStatusInProgress,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to start run step: %w", err)
	}
	return s, nil
}

// GetRunStep retrieves a run step by run_id and step name
func (db *DB) GetRunStep(ctx context.Context, runID uuid.UUID, stepName string) (*RunStep, error) {
	s, err := scanStep(db.pool.QueryRow(ctx,
		`SELECT `+stepColumns+` FROM run_steps WHERE run_id = $1 AND step = $2`,
		runID, stepName,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run step: %w", err)
	}
	return s, nil
}

// ListRunSteps retrieves all steps for a run in the order they were created
func (db *DB) ListRunSteps(ctx context.Context, runID uuid.UUID) ([]RunStep, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+stepColumns+` FROM run_steps WHERE run_id = $1 ORDER BY created_at`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list run steps: %w", err)
	}
	defer rows.Close()

	steps := []RunStep{}
	for rows.Next() {
		s, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run step: %w", err)
		}
		steps = append(steps, *s)
	}
	return steps, rows.Err()
}

// FinishRunStep moves a step to a terminal status
func (db *DB) FinishRunStep(ctx context.Context, runID uuid.UUID, stepName, status string, stepErr error) error {
	if !IsTerminal(status) {
		return fmt.Errorf("status %q is not terminal", status)
	}

	current, err := db.GetRunStep(ctx, runID, stepName)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("step not found: %s", stepName)
	}

	now := time.Now()
	var errorMsg *string
	if stepErr != nil {
		msg := stepErr.Error()
		errorMsg = &msg
	}

	_, err = db.pool.Exec(ctx,
		`UPDATE run_steps
		 SET status = $1, completed_at = $2, duration_ms = $3, error_message = $4, updated_at = NOW()
		 WHERE run_id = $5 AND step = $6`,
		status, now, stepDuration(current.StartedAt, now), errorMsg, runID, stepName,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run step: %w", err)
	}
	return nil
}

// stepDuration returns milliseconds since startedAt, or nil if the step never started
func stepDuration(startedAt *time.Time, now time.Time) *int {
	if startedAt == nil {
		return nil
	}
	ms := int(now.Sub(*startedAt).Milliseconds())
	if ms < 0 {
		ms = 0
	}
	return &ms
}
