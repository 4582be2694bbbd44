package ingest

import (
	"fmt"

	"github.com/braunma/hedgehog-topology-planner/pkg/loader"
	"github.com/braunma/hedgehog-topology-planner/pkg/models"
)

// Result pairs a case id with the plan it produced
type Result struct {
	CaseID string
	Plan   *models.Plan
}

// ListCaseIDs returns the ids of the cases under root
func ListCaseIDs(root string) ([]string, error) {
	return loader.ListCaseIDs(root)
}

// ApplyCaseID loads a case from root and applies it
func (e *Engine) ApplyCaseID(root, caseID string, opts Options) (*models.Plan, error) {
	c, err := loader.LoadCase(caseID, root)
	if err != nil {
		return nil, err
	}
	return e.Apply(c, opts)
}

// ApplyAllCases applies every case under root in id order. Each case is its own
// transaction; the first failure stops the run and earlier results are kept.
func (e *Engine) ApplyAllCases(root string, opts Options) ([]Result, error) {
	ids, err := loader.ListCaseIDs(root)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(ids))
	for _, id := range ids {
		plan, err := e.ApplyCaseID(root, id, opts)
		if err != nil {
			return results, fmt.Errorf("case %s: %w", id, err)
		}
		results = append(results, Result{CaseID: id, Plan: plan})
	}

	e.logger.Info("Applied %d cases from %s", len(results), root)
	return results, nil
}
