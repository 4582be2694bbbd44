package ingest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/braunma/hedgehog-topology-planner/pkg/loader"
	"github.com/braunma/hedgehog-topology-planner/pkg/store"
)

func TestListCaseIDs(t *testing.T) {
	ids, err := ListCaseIDs(casesDir)
	require.NoError(t, err)
	require.Equal(t, []string{"gpu_rail_optimized", "mclag_breakout", "ux_case_basic"}, ids)
}

func TestApplyCaseID(t *testing.T) {
	e, _ := newEngine(t)

	plan, err := e.ApplyCaseID(casesDir, "gpu_rail_optimized", Options{})
	require.NoError(t, err)
	require.Equal(t, "Rail Optimized Backend", plan.Name)

	_, err = e.ApplyCaseID(casesDir, "missing_case", Options{})
	var notFound *loader.TestCaseNotFoundError
	require.True(t, errors.As(err, &notFound))

	_, err = e.ApplyCaseID("../../testdata/broken", "bad_yaml", Options{})
	requireIssue(t, err, "yaml_parse_error")
}

func TestApplyAllCases(t *testing.T) {
	e, s := newEngine(t)

	results, err := e.ApplyAllCases(casesDir, Options{Prune: true})
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.Equal(t, "gpu_rail_optimized", results[0].CaseID)
	require.Equal(t, "mclag_breakout", results[1].CaseID)
	require.Equal(t, "ux_case_basic", results[2].CaseID)

	require.NoError(t, s.View(func(tx *store.Tx) error {
		require.Len(t, tx.Plans(), 3)
		// shared reference data is stored once
		require.NotNil(t, tx.DeviceType("celestica-ds5000"))
		require.Len(t, tx.OwnedPlans("mclag_breakout"), 1)
		return nil
	}))

	again, err := e.ApplyAllCases(casesDir, Options{Prune: true})
	require.NoError(t, err)
	for i := range results {
		require.Equal(t, results[i].Plan.ID, again[i].Plan.ID)
	}
}
