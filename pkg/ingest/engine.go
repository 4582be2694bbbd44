package ingest

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/braunma/hedgehog-topology-planner/internal/constants"
	"github.com/braunma/hedgehog-topology-planner/pkg/loader"
	"github.com/braunma/hedgehog-topology-planner/pkg/models"
	"github.com/braunma/hedgehog-topology-planner/pkg/schema"
	"github.com/braunma/hedgehog-topology-planner/pkg/store"
	"github.com/braunma/hedgehog-topology-planner/pkg/utils"
)

// TestCaseValidationError is the error surfaced by every failed load or apply
type TestCaseValidationError = loader.TestCaseValidationError

// Options control a single apply
type Options struct {
	// Clean deletes every plan owned by the case before applying
	Clean bool
	// Prune deletes plan children not declared in the case
	Prune bool
	// ReferenceMode is "ensure" (default) or "require"
	ReferenceMode string
	// DryRun performs the apply and discards it
	DryRun bool
}

func (o Options) referenceMode() string {
	if o.ReferenceMode == "" {
		return constants.ReferenceModeEnsure
	}
	return o.ReferenceMode
}

// errDiscard rolls back a dry run
var errDiscard = errors.New("dry run")

// Engine applies validated cases to the store
type Engine struct {
	store  *store.Store
	logger *utils.Logger
	clock  clockwork.Clock
}

// NewEngine creates an engine using the real clock
func NewEngine(s *store.Store, logger *utils.Logger) *Engine {
	return NewEngineWithClock(s, logger, clockwork.NewRealClock())
}

// NewEngineWithClock creates an engine with an injected clock
func NewEngineWithClock(s *store.Store, logger *utils.Logger, clock clockwork.Clock) *Engine {
	return &Engine{store: s, logger: logger, clock: clock}
}

// ApplyDocument validates a raw case document and applies it
func (e *Engine) ApplyDocument(raw map[string]interface{}, opts Options) (*models.Plan, error) {
	c, err := schema.Validate(raw)
	if err != nil {
		caseID := ""
		if meta, ok := raw["meta"].(map[string]interface{}); ok {
			caseID, _ = meta["case_id"].(string)
		}
		return nil, loader.FromSchemaError(caseID, err)
	}
	return e.Apply(c, opts)
}

// Apply writes a case into the store in a single all-or-nothing transaction
// and returns the resulting plan.
func (e *Engine) Apply(c *schema.Case, opts Options) (*models.Plan, error) {
	caseID := c.Meta.CaseID
	mode := opts.referenceMode()
	if mode != constants.ReferenceModeEnsure && mode != constants.ReferenceModeRequire {
		return nil, fmt.Errorf("unknown reference mode %q", mode)
	}

	var result models.Plan
	err := e.store.Update(func(tx *store.Tx) error {
		a := &applier{tx: tx, c: c, caseID: caseID, logger: e.logger, now: e.clock.Now().UTC()}

		refs, err := a.resolveReferences(mode)
		if err != nil {
			return err
		}

		if opts.Clean {
			for _, p := range tx.OwnedPlans(caseID) {
				e.logger.Debug("Cleaning plan %s (id %d)", p.Name, p.ID)
				tx.DeletePlan(p.ID)
			}
		}

		if existing := tx.Plan(c.Plan.Name); existing != nil && !existing.OwnedBy(caseID) {
			return loader.NewValidationError(caseID, constants.CodeOwnershipConflict, "plan.name",
				"plan %q exists and is not owned by case %s (managed_by=%q, yaml_case_id=%q)",
				existing.Name, caseID, existing.ManagedBy, existing.YAMLCaseID)
		}

		plan := a.upsertPlan()
		if err := a.upsertGraph(plan, refs); err != nil {
			return err
		}
		if opts.Prune {
			a.prune(plan)
		}
		if err := a.checkExpected(plan); err != nil {
			return err
		}

		result = *plan
		if opts.DryRun {
			return errDiscard
		}
		return nil
	})
	if errors.Is(err, errDiscard) {
		e.logger.DryRun("APPLY", "case %s would write plan %s", caseID, result.Name)
		return &result, nil
	}
	if err != nil {
		return nil, err
	}

	e.logger.Success("Applied case %s -> plan %s (id %d)", caseID, result.Name, result.ID)
	return &result, nil
}

// applier holds the state of one apply inside a transaction
type applier struct {
	tx     *store.Tx
	c      *schema.Case
	caseID string
	logger *utils.Logger
	now    time.Time
}

func (a *applier) upsertPlan() *models.Plan {
	var plan *models.Plan
	owned := a.tx.OwnedPlans(a.caseID)
	for _, p := range owned {
		if p.Name == a.c.Plan.Name {
			plan = p
			break
		}
	}
	if plan == nil && len(owned) > 0 {
		plan = owned[0]
	}

	if plan == nil {
		plan = &models.Plan{
			ManagedBy:  constants.ManagedByYAML,
			YAMLCaseID: a.caseID,
			CreatedAt:  a.now,
		}
		a.tx.AddPlan(plan)
		a.logger.Debug("Created plan %s", a.c.Plan.Name)
	}
	plan.Name = a.c.Plan.Name
	plan.Status = a.c.Plan.Status
	plan.Description = a.c.Plan.Description
	plan.UpdatedAt = a.now
	return plan
}

// upsertGraph writes switch classes, zones, server classes and connections by natural key
func (a *applier) upsertGraph(plan *models.Plan, refs *refIDs) error {
	tx := a.tx

	for _, spec := range a.c.SwitchClasses {
		sc := tx.SwitchClass(plan.ID, spec.SwitchClassID)
		if sc == nil {
			sc = &models.SwitchClass{PlanID: plan.ID, SwitchClassID: spec.SwitchClassID}
			tx.AddSwitchClass(sc)
		}
		sc.Fabric = spec.Fabric
		sc.HedgehogRole = spec.HedgehogRole
		sc.DeviceTypeExtensionID = refs.extensions[spec.DeviceTypeExtension]
		sc.UplinkPortsPerSwitch = spec.UplinkPortsPerSwitch
		sc.MCLAGPair = spec.MCLAGPair
		sc.OverrideQuantity = copyInt(spec.OverrideQuantity)
	}

	for _, spec := range a.c.SwitchPortZones {
		sc := tx.SwitchClass(plan.ID, spec.SwitchClass)
		z := tx.Zone(sc.ID, spec.ZoneName)
		if z == nil {
			z = &models.SwitchPortZone{SwitchClassID: sc.ID, ZoneName: spec.ZoneName}
			tx.AddZone(z)
		}
		z.ZoneType = spec.ZoneType
		z.PortSpec = spec.PortSpec
		z.BreakoutOptionID = refs.breakouts[spec.BreakoutOption]
		z.AllocationStrategy = spec.AllocationStrategy
		z.Priority = spec.Priority
	}

	for _, spec := range a.c.ServerClasses {
		sc := tx.ServerClass(plan.ID, spec.ServerClassID)
		if sc == nil {
			sc = &models.ServerClass{PlanID: plan.ID, ServerClassID: spec.ServerClassID}
			tx.AddServerClass(sc)
		}
		sc.Category = spec.Category
		sc.Quantity = spec.Quantity
		sc.GPUsPerServer = spec.GPUsPerServer
		sc.ServerDeviceTypeID = refs.deviceTypes[spec.ServerDeviceType]
	}

	for i, spec := range a.c.ServerConnections {
		sc := tx.ServerClass(plan.ID, spec.ServerClass)
		target := a.zoneRef(plan.ID, spec.TargetZone)
		if target == nil {
			return loader.NewValidationError(a.caseID, constants.CodeUnknownReference,
				fmt.Sprintf("server_connections[%d].target_zone", i), "zone %s does not exist in plan %s", spec.TargetZone, plan.Name)
		}

		conn := tx.Connection(sc.ID, spec.ConnectionID)
		if conn == nil {
			conn = &models.ServerConnection{ServerClassID: sc.ID, ConnectionID: spec.ConnectionID}
			tx.AddConnection(conn)
		}
		conn.NICModuleTypeID = refs.moduleTypes[spec.NICModuleType]
		conn.PortIndex = spec.PortIndex
		conn.PortsPerConnection = spec.PortsPerConnection
		conn.HedgehogConnType = spec.HedgehogConnType
		conn.Distribution = spec.Distribution
		conn.TargetZoneID = target.ID
		conn.Speed = spec.Speed
		conn.Rail = copyInt(spec.Rail)
		conn.PortType = spec.PortType
	}

	a.logger.Debug("Upserted %d switch classes, %d zones, %d server classes, %d connections",
		len(a.c.SwitchClasses), len(a.c.SwitchPortZones), len(a.c.ServerClasses), len(a.c.ServerConnections))
	return nil
}

func (a *applier) zoneRef(planID int, ref schema.ZoneRef) *models.SwitchPortZone {
	sc := a.tx.SwitchClass(planID, ref.SwitchClass)
	if sc == nil {
		return nil
	}
	return a.tx.Zone(sc.ID, ref.Zone)
}

// prune deletes children of plan whose natural key is absent from the case
func (a *applier) prune(plan *models.Plan) {
	tx := a.tx
	declaredConns := map[string]bool{}
	for _, c := range a.c.ServerConnections {
		declaredConns[c.ServerClass+"/"+c.ConnectionID] = true
	}
	declaredZones := map[schema.ZoneRef]bool{}
	for _, z := range a.c.SwitchPortZones {
		declaredZones[z.Ref()] = true
	}
	declaredServers := map[string]bool{}
	for _, s := range a.c.ServerClasses {
		declaredServers[s.ServerClassID] = true
	}
	declaredSwitches := map[string]bool{}
	for _, s := range a.c.SwitchClasses {
		declaredSwitches[s.SwitchClassID] = true
	}

	removed := 0
	for _, sc := range tx.ServerClasses(plan.ID) {
		for _, conn := range tx.Connections(sc.ID) {
			if !declaredConns[sc.ServerClassID+"/"+conn.ConnectionID] {
				tx.DeleteConnection(conn.ID)
				removed++
			}
		}
	}
	for _, sc := range tx.ServerClasses(plan.ID) {
		if !declaredServers[sc.ServerClassID] {
			tx.DeleteServerClass(sc.ID)
			removed++
		}
	}
	for _, sc := range tx.SwitchClasses(plan.ID) {
		for _, z := range tx.Zones(sc.ID) {
			if !declaredZones[schema.ZoneRef{SwitchClass: sc.SwitchClassID, Zone: z.ZoneName}] {
				tx.DeleteZone(z.ID)
				removed++
			}
		}
	}
	for _, sc := range tx.SwitchClasses(plan.ID) {
		if !declaredSwitches[sc.SwitchClassID] {
			tx.DeleteSwitchClass(sc.ID)
			removed++
		}
	}

	if removed > 0 {
		a.logger.Debug("Pruned %d undeclared records from plan %s", removed, plan.Name)
	}
}

// checkExpected compares expected.counts with the post-apply graph
func (a *applier) checkExpected(plan *models.Plan) error {
	exp := a.c.Expected
	if exp == nil {
		return nil
	}
	tx := a.tx

	servers := tx.ServerClasses(plan.ID)
	switches := tx.SwitchClasses(plan.ID)
	conns, zones := 0, 0
	for _, sc := range servers {
		conns += len(tx.Connections(sc.ID))
	}
	for _, sc := range switches {
		zones += len(tx.Zones(sc.ID))
	}

	var issues []schema.Issue
	for _, check := range []struct {
		key    string
		want   *int
		actual int
	}{
		{"server_classes", exp.ServerClasses, len(servers)},
		{"switch_classes", exp.SwitchClasses, len(switches)},
		{"connections", exp.Connections, conns},
		{"zones", exp.Zones, zones},
	} {
		if check.want == nil || *check.want == check.actual {
			continue
		}
		issues = append(issues, schema.Issue{
			Code:    constants.CodeAssertionFailed,
			Path:    "expected.counts." + check.key,
			Message: fmt.Sprintf("expected %d %s, plan %s has %d", *check.want, check.key, plan.Name, check.actual),
		})
	}
	if len(issues) > 0 {
		return &TestCaseValidationError{CaseID: a.caseID, Issues: issues}
	}
	return nil
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
