// Package steps defines the analysis run steps, their categories and the
// order in which their dependencies must complete.
package steps

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	dbpkg "github.com/jonathan/plan-auditor/internal/db"
)

// Step names
const (
	FetchPlan = "fetch_plan"
	Analyze   = "analyze"
	Recommend = "recommend"
	Export    = "export"
)

// StepDefinition defines metadata for a pipeline step
type StepDefinition struct {
	Name         string
	Category     string
	Dependencies []string
}

// StepRegistry holds all step definitions
var StepRegistry = map[string]StepDefinition{
	FetchPlan: {
		Name:         FetchPlan,
		Category:     dbpkg.CategoryRetrieval,
		Dependencies: []string{},
	},
	Analyze: {
		Name:         Analyze,
		Category:     dbpkg.CategoryAnalysis,
		Dependencies: []string{FetchPlan},
	},
	Recommend: {
		Name:         Recommend,
		Category:     dbpkg.CategoryAnalysis,
		Dependencies: []string{Analyze},
	},
	Export: {
		Name:         Export,
		Category:     dbpkg.CategoryExport,
		Dependencies: []string{Analyze, Recommend},
	},
}

// Ordered lists step names in execution order.
var Ordered = []string{FetchPlan, Analyze, Recommend, Export}

// Category returns the category of a registered step, empty for unknown steps.
func Category(step string) string {
	return StepRegistry[step].Category
}

// StepLookup reads recorded step state. *db.DB implements it.
type StepLookup interface {
	GetRunStep(ctx context.Context, runID uuid.UUID, stepName string) (*dbpkg.RunStep, error)
}

// DependencyError represents a dependency validation error
type DependencyError struct {
	Step                string
	MissingDependencies []string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("step %s: missing dependencies: %v", e.Step, e.MissingDependencies)
}

// ValidateDependencies checks if all required dependencies for a step are completed
func ValidateDependencies(ctx context.Context, lookup StepLookup, runID uuid.UUID, stepName string) error {
	def, ok := StepRegistry[stepName]
	if !ok {
		return fmt.Errorf("unknown step: %s", stepName)
	}

	var missing []string

	// Check each required dependency
	for _, dep := range def.Dependencies {
		step, err := lookup.GetRunStep(ctx, runID, dep)
		if err != nil {
			return fmt.Errorf("failed to check dependency %s: %w", dep, err)
		}
		if step == nil || step.Status != dbpkg.StepStatusCompleted {
			missing = append(missing, dep)
		}
	}

	if len(missing) > 0 {
		return &DependencyError{
			Step:                stepName,
			MissingDependencies: missing,
		}
	}

	return nil
}

// Pending returns registered steps, in order, that have not completed.
func Pending(ctx context.Context, lookup StepLookup, runID uuid.UUID) ([]string, error) {
	var pending []string
	for _, name := range Ordered {
		existing, err := lookup.GetRunStep(ctx, runID, name)
		if err != nil {
			return nil, fmt.Errorf("failed to check step %s: %w", name, err)
		}
		if existing != nil && existing.Status == dbpkg.StepStatusCompleted {
			continue
		}
		pending = append(pending, name)
	}
	return pending, nil
}
