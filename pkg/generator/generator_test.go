package generator

import (
	"bytes"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/braunma/hedgehog-topology-planner/pkg/ingest"
	"github.com/braunma/hedgehog-topology-planner/pkg/models"
	"github.com/braunma/hedgehog-topology-planner/pkg/store"
	"github.com/braunma/hedgehog-topology-planner/pkg/utils"
)

var t0 = time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC)

type fixture struct {
	store  *store.Store
	engine *ingest.Engine
	gen    *Generator
	reg    *prometheus.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := store.New()
	logger := utils.NewTestLogger(&bytes.Buffer{})
	clock := clockwork.NewFakeClockAt(t0)
	reg := prometheus.NewRegistry()
	return &fixture{
		store:  s,
		engine: ingest.NewEngineWithClock(s, logger, clock),
		gen:    New(s, logger, Options{Clock: clock, Registerer: reg}),
		reg:    reg,
	}
}

func loadRaw(t *testing.T, caseID string) map[string]interface{} {
	t.Helper()
	data, err := os.ReadFile("../../testdata/cases/" + caseID + ".yaml")
	require.NoError(t, err)
	var raw map[string]interface{}
	require.NoError(t, yaml.Unmarshal(data, &raw))
	delete(raw, "expected")
	return raw
}

func item(raw map[string]interface{}, key string, i int) map[string]interface{} {
	return raw[key].([]interface{})[i].(map[string]interface{})
}

func (f *fixture) apply(t *testing.T, raw map[string]interface{}) *models.Plan {
	t.Helper()
	plan, err := f.engine.ApplyDocument(raw, ingest.Options{Prune: true})
	require.NoError(t, err)
	return plan
}

// cableView is a cable described by device and interface names
type cableView struct {
	Server     string
	ServerPort string
	Switch     string
	SwitchPort string
	Zone       string
}

func (f *fixture) cables(t *testing.T, planID int) []cableView {
	t.Helper()
	var out []cableView
	require.NoError(t, f.store.View(func(tx *store.Tx) error {
		for _, c := range tx.Cables(planID) {
			a := tx.InterfaceByID(c.AInterfaceID)
			b := tx.InterfaceByID(c.BInterfaceID)
			out = append(out, cableView{
				Server:     tx.DeviceByID(a.DeviceID).Name,
				ServerPort: a.Name,
				Switch:     tx.DeviceByID(b.DeviceID).Name,
				SwitchPort: b.Name,
				Zone:       b.Zone,
			})
		}
		return nil
	}))
	return out
}

func countBySwitch(cables []cableView) map[string]int {
	out := map[string]int{}
	for _, c := range cables {
		out[c.Switch]++
	}
	return out
}

func TestGenerateEndToEnd(t *testing.T) {
	f := newFixture(t)
	plan := f.apply(t, loadRaw(t, "ux_case_basic"))

	summary, err := f.gen.Generate(plan.ID)
	require.NoError(t, err)
	require.Equal(t, 2, summary.Devices)
	require.Equal(t, 2, summary.Interfaces)
	require.Equal(t, 1, summary.Cables)
	require.Equal(t, map[string]int{"leaf-01": 1}, summary.Switches)
	require.Equal(t, t0, summary.GeneratedAt)

	require.NoError(t, f.store.View(func(tx *store.Tx) error {
		var zoned []*models.Interface
		for _, iface := range tx.Interfaces(plan.ID) {
			if iface.Zone != "" {
				zoned = append(zoned, iface)
			}
		}
		require.Len(t, zoned, 1)
		require.Equal(t, "server-gen", zoned[0].Zone)
		require.Equal(t, "E1/1", zoned[0].Name)
		require.Equal(t, "leaf-01-01", tx.DeviceByID(zoned[0].DeviceID).Name)

		cables := tx.Cables(plan.ID)
		require.Len(t, cables, 1)
		require.Equal(t, zoned[0].ID, cables[0].BInterfaceID)
		require.Equal(t, cables[0].ID, zoned[0].CableID)

		server := tx.InterfaceByID(cables[0].AInterfaceID)
		require.Empty(t, server.Zone)
		require.Equal(t, "fe-0-p0", server.Name)
		require.Equal(t, "gpu-01-001", tx.DeviceByID(server.DeviceID).Name)
		require.Equal(t, "aoc", cables[0].Type)

		state := tx.GenerationState(plan.ID)
		require.NotNil(t, state)
		require.Equal(t, 1, state.CableCount)
		require.Equal(t, 2, state.DeviceCount)
		require.True(t, state.GeneratedAt.Equal(t0))

		require.Equal(t, 1, tx.SwitchClass(plan.ID, "leaf-01").CalculatedQuantity)
		return nil
	}))

	require.Equal(t, 1.0, testutil.ToFloat64(f.gen.metrics.GeneratedCables.WithLabelValues("UX Basic Plan")))
}

func TestGenerateIsDeterministic(t *testing.T) {
	f := newFixture(t)
	plan := f.apply(t, loadRaw(t, "mclag_breakout"))

	_, err := f.gen.Generate(plan.ID)
	require.NoError(t, err)
	first := f.cables(t, plan.ID)

	_, err = f.gen.GenerateByName(plan.Name)
	require.NoError(t, err)
	second := f.cables(t, plan.ID)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("regeneration changed cabling (-first +second):\n%s", diff)
	}
	require.NoError(t, f.store.View(func(tx *store.Tx) error {
		require.Len(t, tx.Devices(plan.ID), 2+3+5)
		return nil
	}))
}

func TestGenerationIsolation(t *testing.T) {
	f := newFixture(t)

	rawA := loadRaw(t, "ux_case_basic")
	item(rawA, "server_classes", 0)["quantity"] = 3
	conns := rawA["server_connections"].([]interface{})
	second := map[string]interface{}{}
	for k, v := range conns[0].(map[string]interface{}) {
		second[k] = v
	}
	second["connection_id"] = "fe-1"
	second["port_index"] = 1
	rawA["server_connections"] = append(conns, second)
	planA := f.apply(t, rawA)

	planB := f.apply(t, loadRaw(t, "mclag_breakout"))

	summaryA, err := f.gen.Generate(planA.ID)
	require.NoError(t, err)
	require.Equal(t, 6, summaryA.Cables)
	before := f.cables(t, planA.ID)

	for i := 0; i < 2; i++ {
		_, err = f.gen.Generate(planB.ID)
		require.NoError(t, err)
	}

	after := f.cables(t, planA.ID)
	require.Len(t, after, 6)
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("plan A changed after generating plan B:\n%s", diff)
	}
	require.Len(t, f.cables(t, planB.ID), 16)

	require.NoError(t, f.store.View(func(tx *store.Tx) error {
		require.Equal(t, 6, tx.GenerationState(planA.ID).CableCount)
		require.Len(t, tx.Devices(planA.ID), 2+3)
		return nil
	}))
}

func TestRailOptimizedDistribution(t *testing.T) {
	f := newFixture(t)
	plan := f.apply(t, loadRaw(t, "gpu_rail_optimized"))

	summary, err := f.gen.Generate(plan.ID)
	require.NoError(t, err)
	require.Equal(t, 32, summary.Cables)
	require.Equal(t, 4, summary.Switches["be-rail-leaf"])

	cables := f.cables(t, plan.ID)
	for _, c := range cables {
		// rail-N lands on switch N+1 for every server
		rail := c.ServerPort[len("rail-")]
		require.Equal(t, "be-rail-leaf-0"+string(rail+1), c.Switch, "cable %+v", c)
		require.Equal(t, "rail-down", c.Zone)
	}
	require.Equal(t, map[string]int{
		"be-rail-leaf-01": 8, "be-rail-leaf-02": 8, "be-rail-leaf-03": 8, "be-rail-leaf-04": 8,
	}, countBySwitch(cables))

	require.NoError(t, f.store.View(func(tx *store.Tx) error {
		sc := tx.SwitchClass(plan.ID, "be-rail-leaf")
		require.Equal(t, 1, sc.CalculatedQuantity)
		require.Equal(t, 4, sc.EffectiveQuantity())
		return nil
	}))
}

func TestRailGroupSpansSeveralSwitches(t *testing.T) {
	f := newFixture(t)
	raw := loadRaw(t, "gpu_rail_optimized")
	item(raw, "switch_classes", 0)["override_quantity"] = 8
	plan := f.apply(t, raw)

	_, err := f.gen.Generate(plan.ID)
	require.NoError(t, err)

	cables := f.cables(t, plan.ID)
	counts := countBySwitch(cables)
	require.Len(t, counts, 8)
	for name, n := range counts {
		require.Equal(t, 4, n, name)
	}
	for _, c := range cables {
		if c.ServerPort == "rail-0-p0" {
			require.Contains(t, []string{"be-rail-leaf-01", "be-rail-leaf-02"}, c.Switch)
		}
		if c.ServerPort == "rail-3-p0" {
			require.Contains(t, []string{"be-rail-leaf-07", "be-rail-leaf-08"}, c.Switch)
		}
	}
}

func TestRailCacheKeyIndependence(t *testing.T) {
	require.NotEqual(t,
		RailKey{ServerClassID: "gpu-01", ZoneID: 1},
		RailKey{ServerClassID: "gpu-01", ZoneID: 2})

	f := newFixture(t)
	raw := loadRaw(t, "gpu_rail_optimized")
	raw["switch_port_zones"] = []interface{}{
		map[string]interface{}{"switch_class": "be-rail-leaf", "zone_name": "rail-a", "zone_type": "server", "port_spec": "1-16", "allocation_strategy": "rail-optimized"},
		map[string]interface{}{"switch_class": "be-rail-leaf", "zone_name": "rail-b", "zone_type": "server", "port_spec": "17-32", "allocation_strategy": "rail-optimized"},
	}
	item(raw, "server_connections", 0)["target_zone"] = "be-rail-leaf/rail-a"
	item(raw, "server_connections", 1)["target_zone"] = "be-rail-leaf/rail-a"
	item(raw, "server_connections", 2)["target_zone"] = "be-rail-leaf/rail-b"
	item(raw, "server_connections", 3)["target_zone"] = "be-rail-leaf/rail-b"
	plan := f.apply(t, raw)

	require.NoError(t, f.store.Update(func(tx *store.Tx) error {
		r, err := newRun(tx, plan)
		require.NoError(t, err)
		_, err = r.execute(t0)
		require.NoError(t, err)

		require.Len(t, r.rails, 2)
		for key, g := range r.rails {
			require.Equal(t, "gpu-b", key.ServerClassID)
			require.Len(t, g.rails, 2, "zone %d", key.ZoneID)
			for _, placed := range g.placed {
				require.Equal(t, 8, placed)
			}
		}
		return nil
	}))

	// each zone splits its own two rails over the four switches
	cables := f.cables(t, plan.ID)
	for _, c := range cables {
		switch c.ServerPort {
		case "rail-0-p0", "rail-2-p0":
			require.Contains(t, []string{"be-rail-leaf-01", "be-rail-leaf-02"}, c.Switch)
		case "rail-1-p0", "rail-3-p0":
			require.Contains(t, []string{"be-rail-leaf-03", "be-rail-leaf-04"}, c.Switch)
		}
	}
}

func TestBreakoutInterfaces(t *testing.T) {
	f := newFixture(t)
	plan := f.apply(t, loadRaw(t, "mclag_breakout"))

	summary, err := f.gen.Generate(plan.ID)
	require.NoError(t, err)
	require.Equal(t, 2, summary.Switches["fe-leaf"])
	require.Equal(t, 16, summary.Cables)

	var storagePorts, gpuPorts []string
	for _, c := range f.cables(t, plan.ID) {
		if c.Switch != "fe-leaf-01" {
			continue
		}
		switch c.Zone {
		case "storage-breakout":
			storagePorts = append(storagePorts, c.SwitchPort)
		case "gpu-access":
			gpuPorts = append(gpuPorts, c.SwitchPort)
		}
	}
	require.Equal(t, []string{"E1/9/1", "E1/9/2", "E1/9/3", "E1/9/4", "E1/10/1"}, storagePorts)
	require.Equal(t, []string{"E1/1", "E1/2", "E1/3"}, gpuPorts)

	require.NoError(t, f.store.View(func(tx *store.Tx) error {
		for _, iface := range tx.Interfaces(plan.ID) {
			if iface.Zone == "storage-breakout" {
				require.Equal(t, 200, iface.Speed)
			}
		}
		return nil
	}))
}

func TestCalculatedQuantity(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(raw map[string]interface{})
		expected int
	}{
		{
			name:     "single server",
			mutate:   func(raw map[string]interface{}) {},
			expected: 1,
		},
		{
			name: "demand above one switch",
			mutate: func(raw map[string]interface{}) {
				item(raw, "server_classes", 0)["quantity"] = 5
			},
			expected: 2,
		},
		{
			name: "uneven same-switch spread needs an extra switch",
			mutate: func(raw map[string]interface{}) {
				item(raw, "switch_port_zones", 0)["port_spec"] = "1-5"
				item(raw, "server_classes", 0)["quantity"] = 4
				conn := item(raw, "server_connections", 0)
				delete(conn, "nic_module_type")
				conn["ports_per_connection"] = 3
			},
			expected: 4,
		},
		{
			name: "mclag pair is even",
			mutate: func(raw map[string]interface{}) {
				item(raw, "switch_classes", 0)["mclag_pair"] = true
			},
			expected: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			raw := loadRaw(t, "ux_case_basic")
			tt.mutate(raw)
			plan := f.apply(t, raw)

			summary, err := f.gen.Generate(plan.ID)
			require.NoError(t, err)
			require.Equal(t, tt.expected, summary.Switches["leaf-01"])
		})
	}
}

func TestZoneExhausted(t *testing.T) {
	f := newFixture(t)
	raw := loadRaw(t, "ux_case_basic")
	item(raw, "switch_classes", 0)["override_quantity"] = 1
	plan := f.apply(t, raw)
	_, err := f.gen.Generate(plan.ID)
	require.NoError(t, err)

	raw = loadRaw(t, "ux_case_basic")
	item(raw, "switch_classes", 0)["override_quantity"] = 1
	item(raw, "server_classes", 0)["quantity"] = 5
	f.apply(t, raw)

	_, err = f.gen.Generate(plan.ID)
	require.ErrorIs(t, err, ErrZoneExhausted)

	var exhausted *ZoneExhaustedError
	require.True(t, errors.As(err, &exhausted))
	require.Equal(t, "server-gen", exhausted.Zone)
	require.Equal(t, "leaf-01", exhausted.SwitchClass)
	require.Equal(t, "leaf-01-01", exhausted.Switch)
	require.Equal(t, "gpu-01-005", exhausted.Server)
	require.Equal(t, "fe-0", exhausted.Connection)
	require.Equal(t, 4, exhausted.Capacity)
	require.Contains(t, err.Error(), "fe-0")

	// the failed run left the previous inventory in place
	require.Len(t, f.cables(t, plan.ID), 1)
	require.Equal(t, 1.0, testutil.ToFloat64(f.gen.metrics.GenerationFailures.WithLabelValues("zone_exhausted")))
}

func TestZoneExhaustedWithoutSwitches(t *testing.T) {
	f := newFixture(t)
	raw := loadRaw(t, "ux_case_basic")
	item(raw, "switch_classes", 0)["override_quantity"] = 0
	plan := f.apply(t, raw)

	_, err := f.gen.Generate(plan.ID)
	var exhausted *ZoneExhaustedError
	require.True(t, errors.As(err, &exhausted))
	require.Empty(t, exhausted.Switch)
	require.Equal(t, 0, exhausted.Capacity)
}

func TestZoneOverlap(t *testing.T) {
	f := newFixture(t)
	plan := f.apply(t, loadRaw(t, "ux_case_basic"))

	require.NoError(t, f.store.Update(func(tx *store.Tx) error {
		sc := tx.SwitchClass(plan.ID, "leaf-01")
		tx.AddZone(&models.SwitchPortZone{SwitchClassID: sc.ID, ZoneName: "uplink", ZoneType: "uplink", PortSpec: "4-6", AllocationStrategy: "sequential"})
		return nil
	}))

	_, err := f.gen.Generate(plan.ID)
	require.ErrorIs(t, err, ErrZoneOverlap)
	require.Contains(t, err.Error(), "4")
	require.Empty(t, f.cables(t, plan.ID))
}

func TestPlanNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.gen.Generate(42)
	require.ErrorIs(t, err, ErrPlanNotFound)

	_, err = f.gen.GenerateByName("missing")
	require.ErrorIs(t, err, ErrPlanNotFound)
	require.Equal(t, 2.0, testutil.ToFloat64(f.gen.metrics.GenerationFailures.WithLabelValues("plan_not_found")))
}
