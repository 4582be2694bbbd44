package ingest

import (
	"bytes"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/braunma/hedgehog-topology-planner/pkg/loader"
	"github.com/braunma/hedgehog-topology-planner/pkg/models"
	"github.com/braunma/hedgehog-topology-planner/pkg/store"
	"github.com/braunma/hedgehog-topology-planner/pkg/utils"
)

const casesDir = "../../testdata/cases"

func newEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	s := store.New()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	return NewEngineWithClock(s, utils.NewTestLogger(&bytes.Buffer{}), clock), s
}

func loadRaw(t *testing.T, caseID string) map[string]interface{} {
	t.Helper()
	data, err := os.ReadFile(casesDir + "/" + caseID + ".yaml")
	require.NoError(t, err)
	var raw map[string]interface{}
	require.NoError(t, yaml.Unmarshal(data, &raw))
	return raw
}

// withServerClasses replaces the server classes of the basic case with ids,
// keeping gpu-01 and its connection first
func withServerClasses(raw map[string]interface{}, ids ...string) {
	var list []interface{}
	for _, id := range ids {
		list = append(list, map[string]interface{}{
			"server_class_id":    id,
			"category":           "gpu",
			"quantity":           1,
			"server_device_type": "gpu-server",
		})
	}
	raw["server_classes"] = list
	delete(raw, "expected")
}

// planGraph captures everything a plan owns for comparison
type planGraph struct {
	Plan          models.Plan
	SwitchClasses []*models.SwitchClass
	Zones         []*models.SwitchPortZone
	ServerClasses []*models.ServerClass
	Connections   []*models.ServerConnection
}

func snapshot(t *testing.T, s *store.Store, name string) planGraph {
	t.Helper()
	var g planGraph
	require.NoError(t, s.View(func(tx *store.Tx) error {
		p := tx.Plan(name)
		require.NotNil(t, p, "plan %s not found", name)
		g.Plan = *p
		g.SwitchClasses = tx.SwitchClasses(p.ID)
		for _, sc := range g.SwitchClasses {
			g.Zones = append(g.Zones, tx.Zones(sc.ID)...)
		}
		g.ServerClasses = tx.ServerClasses(p.ID)
		for _, sc := range g.ServerClasses {
			g.Connections = append(g.Connections, tx.Connections(sc.ID)...)
		}
		return nil
	}))
	return g
}

func requireIssue(t *testing.T, err error, code string) *TestCaseValidationError {
	t.Helper()
	var verr *TestCaseValidationError
	require.True(t, errors.As(err, &verr), "expected TestCaseValidationError, got %v", err)
	require.True(t, verr.HasCode(code), "expected %s in %v", code, verr.Issues)
	return verr
}

func TestApplyBasicCase(t *testing.T) {
	e, s := newEngine(t)
	c, err := loader.LoadCase("ux_case_basic", casesDir)
	require.NoError(t, err)

	plan, err := e.Apply(c, Options{})
	require.NoError(t, err)
	require.Equal(t, "UX Basic Plan", plan.Name)
	require.Equal(t, "yaml", plan.ManagedBy)
	require.Equal(t, "ux_case_basic", plan.YAMLCaseID)

	g := snapshot(t, s, "UX Basic Plan")
	require.Len(t, g.SwitchClasses, 1)
	require.Len(t, g.Zones, 1)
	require.Len(t, g.ServerClasses, 1)
	require.Len(t, g.Connections, 1)
	require.Equal(t, g.Zones[0].ID, g.Connections[0].TargetZoneID)

	require.NoError(t, s.View(func(tx *store.Tx) error {
		ext := tx.ExtensionByID(g.SwitchClasses[0].DeviceTypeExtensionID)
		require.NotNil(t, ext)
		require.True(t, ext.MCLAGCapable)
		dt := tx.DeviceTypeByID(ext.DeviceTypeID)
		require.Equal(t, "celestica-ds5000", dt.Slug)
		require.Equal(t, "Celestica", tx.ManufacturerByID(dt.ManufacturerID).Name)
		require.Len(t, tx.ModuleTypeByID(g.Connections[0].NICModuleTypeID).Interfaces, 2)
		return nil
	}))
}

func TestApplyIdempotent(t *testing.T) {
	e, s := newEngine(t)
	c, err := loader.LoadCase("mclag_breakout", casesDir)
	require.NoError(t, err)

	_, err = e.Apply(c, Options{Prune: true})
	require.NoError(t, err)
	first := snapshot(t, s, c.Plan.Name)

	_, err = e.Apply(c, Options{Prune: true})
	require.NoError(t, err)
	second := snapshot(t, s, c.Plan.Name)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("graph changed on re-apply (-first +second):\n%s", diff)
	}
}

func TestApplyConvergesUnderPrune(t *testing.T) {
	e, s := newEngine(t)

	v1 := loadRaw(t, "ux_case_basic")
	withServerClasses(v1, "gpu-01", "gpu-02", "gpu-03")
	_, err := e.ApplyDocument(v1, Options{Prune: true})
	require.NoError(t, err)
	require.Len(t, snapshot(t, s, "UX Basic Plan").ServerClasses, 3)

	v2 := loadRaw(t, "ux_case_basic")
	withServerClasses(v2, "gpu-01", "gpu-02")

	// without prune the removed class survives
	_, err = e.ApplyDocument(v2, Options{})
	require.NoError(t, err)
	require.Len(t, snapshot(t, s, "UX Basic Plan").ServerClasses, 3)

	_, err = e.ApplyDocument(v2, Options{Prune: true})
	require.NoError(t, err)
	g := snapshot(t, s, "UX Basic Plan")
	require.Len(t, g.ServerClasses, 2)
	require.Equal(t, "gpu-01", g.ServerClasses[0].ServerClassID)
	require.Equal(t, "gpu-02", g.ServerClasses[1].ServerClassID)
	require.Len(t, g.Connections, 1)
}

func TestApplyPrunesZonesAndConnections(t *testing.T) {
	e, s := newEngine(t)
	c, err := loader.LoadCase("mclag_breakout", casesDir)
	require.NoError(t, err)
	_, err = e.Apply(c, Options{})
	require.NoError(t, err)

	raw := loadRaw(t, "mclag_breakout")
	raw["switch_port_zones"] = raw["switch_port_zones"].([]interface{})[:2]
	raw["server_connections"] = raw["server_connections"].([]interface{})[:1]
	delete(raw, "expected")

	_, err = e.ApplyDocument(raw, Options{Prune: true})
	require.NoError(t, err)
	g := snapshot(t, s, c.Plan.Name)
	require.Len(t, g.Zones, 2)
	require.Len(t, g.Connections, 1)
	require.Len(t, g.ServerClasses, 2)
}

func TestApplyOwnershipConflict(t *testing.T) {
	tests := []struct {
		name  string
		owner models.Plan
	}{
		{"hand authored", models.Plan{Name: "UX Basic Plan", Status: "approved"}},
		{"other case", models.Plan{Name: "UX Basic Plan", Status: "approved", ManagedBy: "yaml", YAMLCaseID: "someone_else"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, s := newEngine(t)
			existing := tt.owner
			require.NoError(t, s.Update(func(tx *store.Tx) error {
				tx.AddPlan(&existing)
				return nil
			}))

			c, err := loader.LoadCase("ux_case_basic", casesDir)
			require.NoError(t, err)
			for _, opts := range []Options{{}, {Clean: true}, {Prune: true}} {
				_, err = e.Apply(c, opts)
				requireIssue(t, err, "ownership_conflict")
			}

			g := snapshot(t, s, "UX Basic Plan")
			require.Equal(t, "approved", g.Plan.Status)
			require.Equal(t, tt.owner.YAMLCaseID, g.Plan.YAMLCaseID)
			require.Empty(t, g.SwitchClasses)
			require.Empty(t, g.ServerClasses)
		})
	}
}

func TestApplyAtomicOnAssertionFailure(t *testing.T) {
	e, s := newEngine(t)
	raw := loadRaw(t, "ux_case_basic")
	withServerClasses(raw, "gpu-01", "gpu-02")
	raw["expected"] = map[string]interface{}{
		"counts": map[string]interface{}{"server_classes": 3},
	}

	_, err := e.ApplyDocument(raw, Options{})
	verr := requireIssue(t, err, "assertion_failed")
	require.Equal(t, "expected.counts.server_classes", verr.Issues[0].Path)

	require.NoError(t, s.View(func(tx *store.Tx) error {
		require.Empty(t, tx.Plans())
		require.Nil(t, tx.Manufacturer("celestica"))
		require.Nil(t, tx.DeviceType("celestica-ds5000"))
		return nil
	}))
}

func TestApplyRejectsDeprecatedKeyInAllModes(t *testing.T) {
	modes := []Options{
		{ReferenceMode: "ensure"},
		{ReferenceMode: "require"},
		{ReferenceMode: "ensure", Clean: true, Prune: true},
		{ReferenceMode: "require", DryRun: true},
	}

	for _, opts := range modes {
		t.Run(opts.ReferenceMode, func(t *testing.T) {
			e, s := newEngine(t)
			raw := loadRaw(t, "ux_case_basic")
			conn := raw["server_connections"].([]interface{})[0].(map[string]interface{})
			delete(conn, "target_zone")
			conn["target_switch_class"] = "leaf-01"

			_, err := e.ApplyDocument(raw, opts)
			verr := requireIssue(t, err, "deprecated_key")
			require.Equal(t, "ux_case_basic", verr.CaseID)

			require.NoError(t, s.View(func(tx *store.Tx) error {
				require.Empty(t, tx.Plans())
				return nil
			}))
		})
	}
}

func TestApplyRequireReference(t *testing.T) {
	e, s := newEngine(t)
	c, err := loader.LoadCase("ux_case_basic", casesDir)
	require.NoError(t, err)

	_, err = e.Apply(c, Options{ReferenceMode: "require"})
	verr := requireIssue(t, err, "missing_reference")
	// three manufacturers, two device types, one breakout, one module type;
	// the extension is skipped because its device type is missing
	require.Len(t, verr.Issues, 7)
	require.NoError(t, s.View(func(tx *store.Tx) error {
		require.Empty(t, tx.Plans())
		require.Nil(t, tx.Manufacturer("nvidia"))
		return nil
	}))

	_, err = e.Apply(c, Options{})
	require.NoError(t, err)

	// a second plan can now rely on the existing reference data
	plan, err := e.Apply(c, Options{ReferenceMode: "require", Prune: true})
	require.NoError(t, err)
	require.Equal(t, "UX Basic Plan", plan.Name)
}

func TestApplyEnsureUpdatesReferenceData(t *testing.T) {
	e, s := newEngine(t)
	raw := loadRaw(t, "ux_case_basic")
	_, err := e.ApplyDocument(raw, Options{})
	require.NoError(t, err)

	raw = loadRaw(t, "ux_case_basic")
	rd := raw["reference_data"].(map[string]interface{})
	dt := rd["device_types"].([]interface{})[0].(map[string]interface{})
	dt["u_height"] = 1
	_, err = e.ApplyDocument(raw, Options{})
	require.NoError(t, err)

	require.NoError(t, s.View(func(tx *store.Tx) error {
		require.Equal(t, 1, tx.DeviceType("celestica-ds5000").UHeight)
		return nil
	}))
}

func TestApplyClean(t *testing.T) {
	e, s := newEngine(t)
	c, err := loader.LoadCase("ux_case_basic", casesDir)
	require.NoError(t, err)

	first, err := e.Apply(c, Options{})
	require.NoError(t, err)
	require.NoError(t, s.Update(func(tx *store.Tx) error {
		tx.AddServerClass(&models.ServerClass{PlanID: first.ID, ServerClassID: "stray"})
		return nil
	}))

	second, err := e.Apply(c, Options{Clean: true})
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	g := snapshot(t, s, "UX Basic Plan")
	require.Len(t, g.ServerClasses, 1)
	require.NoError(t, s.View(func(tx *store.Tx) error {
		require.Nil(t, tx.PlanByID(first.ID))
		require.Nil(t, tx.ServerClass(first.ID, "stray"))
		return nil
	}))
}

func TestApplyRenamedPlanUpdatesInPlace(t *testing.T) {
	e, s := newEngine(t)
	raw := loadRaw(t, "ux_case_basic")
	first, err := e.ApplyDocument(raw, Options{})
	require.NoError(t, err)

	raw = loadRaw(t, "ux_case_basic")
	raw["plan"].(map[string]interface{})["name"] = "UX Basic Plan v2"
	second, err := e.ApplyDocument(raw, Options{})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	require.NoError(t, s.View(func(tx *store.Tx) error {
		require.Len(t, tx.Plans(), 1)
		require.Nil(t, tx.Plan("UX Basic Plan"))
		return nil
	}))
}

func TestApplyDryRun(t *testing.T) {
	e, s := newEngine(t)
	c, err := loader.LoadCase("gpu_rail_optimized", casesDir)
	require.NoError(t, err)

	plan, err := e.Apply(c, Options{DryRun: true})
	require.NoError(t, err)
	require.Equal(t, "Rail Optimized Backend", plan.Name)

	require.NoError(t, s.View(func(tx *store.Tx) error {
		require.Empty(t, tx.Plans())
		require.Nil(t, tx.DeviceType("celestica-ds5000"))
		return nil
	}))
}

func TestApplyUnknownReferenceMode(t *testing.T) {
	e, _ := newEngine(t)
	c, err := loader.LoadCase("ux_case_basic", casesDir)
	require.NoError(t, err)

	_, err = e.Apply(c, Options{ReferenceMode: "sometimes"})
	require.Error(t, err)
}
