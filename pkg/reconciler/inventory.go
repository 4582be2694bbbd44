package reconciler

import (
	"context"
	"errors"
	"fmt"

	"github.com/braunma/hedgehog-topology-planner/internal/constants"
	"github.com/braunma/hedgehog-topology-planner/pkg/client"
	"github.com/braunma/hedgehog-topology-planner/pkg/generator"
	"github.com/braunma/hedgehog-topology-planner/pkg/models"
	"github.com/braunma/hedgehog-topology-planner/pkg/store"
	"github.com/braunma/hedgehog-topology-planner/pkg/utils"
)

// ErrNotGenerated is returned when pushing a plan that has no generated inventory
var ErrNotGenerated = errors.New("plan has no generated inventory")

// PushSummary counts what a push reconciled
type PushSummary struct {
	Plan       string
	Devices    int
	Interfaces int
	Cables     int
	Deleted    int
}

type cableRef struct {
	a, b portKey
	spec CableSpec
}

// planInventory is a detached copy of one plan's generated inventory
type planInventory struct {
	plan          models.Plan
	manufacturers []models.Manufacturer
	deviceTypes   []DeviceTypeSpec
	moduleTypes   []ModuleTypeSpec
	roles         []string
	devices       []DeviceSpec
	cables        []cableRef
}

// InventoryReconciler pushes the generated inventory of one plan into NetBox.
// Every device, interface and cable carries the managed tag plus the plan's
// tag, and stale objects are only looked up through the plan tag.
type InventoryReconciler struct {
	client      *client.NetBoxClient
	store       *store.Store
	logger      *utils.Logger
	foundation  *FoundationReconciler
	deviceTypes *DeviceTypeReconciler
	cables      *CableReconciler
}

// NewInventoryReconciler creates a reconciler reading from s
func NewInventoryReconciler(c *client.NetBoxClient, s *store.Store) *InventoryReconciler {
	return &InventoryReconciler{
		client:      c,
		store:       s,
		logger:      c.Logger(),
		foundation:  NewFoundationReconciler(c),
		deviceTypes: NewDeviceTypeReconciler(c),
		cables:      NewCableReconciler(c),
	}
}

// Push reconciles the plan's generated devices, interfaces and cables
func (r *InventoryReconciler) Push(ctx context.Context, planName string) (*PushSummary, error) {
	inv, err := r.collect(planName)
	if err != nil {
		return nil, err
	}

	r.logger.Info("Pushing plan %q: %d devices, %d cables", inv.plan.Name, len(inv.devices), len(inv.cables))

	planTagID, planTag, err := r.foundation.ReconcilePlanTag(ctx, inv.plan.Name)
	if err != nil {
		return nil, err
	}
	siteID, err := r.foundation.ReconcileSite(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.foundation.EnsureZoneField(ctx); err != nil {
		return nil, err
	}
	if err := r.foundation.ReconcileRoles(ctx, inv.roles); err != nil {
		return nil, err
	}

	if err := r.deviceTypes.ReconcileManufacturers(ctx, inv.manufacturers); err != nil {
		return nil, err
	}
	if err := r.deviceTypes.ReconcileDeviceTypes(ctx, inv.deviceTypes); err != nil {
		return nil, err
	}
	if err := r.deviceTypes.ReconcileModuleTypes(ctx, inv.moduleTypes); err != nil {
		return nil, err
	}

	devices := NewDeviceReconciler(r.client, planTag.Slug)
	if err := devices.ReconcileDevices(ctx, siteID, inv.devices, planTagID); err != nil {
		return nil, err
	}

	summary := &PushSummary{Plan: inv.plan.Name, Devices: len(inv.devices)}
	for _, d := range inv.devices {
		summary.Interfaces += len(d.Interfaces)
	}

	deleted, err := r.pruneCables(ctx, planTag.Slug, inv, devices)
	if err != nil {
		return nil, err
	}

	cables := r.cables
	cables.Reset()
	r.logger.Info("Reconciling %d cables...", len(inv.cables))
	for _, c := range inv.cables {
		a, b := devices.Endpoint(c.a.device, c.a.port), devices.Endpoint(c.b.device, c.b.port)
		spec := c.spec
		if err := cables.ReconcileCable(ctx, a, b, &spec, planTagID); err != nil {
			return nil, err
		}
		summary.Cables++
	}
	if n := cables.Unresolved(); n > 0 {
		r.logger.Info("%d cables wait for devices that do not exist yet", n)
	}

	n, err := r.pruneInventory(ctx, planTag.Slug, inv, devices)
	if err != nil {
		return nil, err
	}
	summary.Deleted = deleted + n

	r.logger.Success("Pushed plan %q: %d devices, %d interfaces, %d cables, %d stale objects removed",
		summary.Plan, summary.Devices, summary.Interfaces, summary.Cables, summary.Deleted)
	return summary, nil
}

// collect copies the plan's inventory out of the store
func (r *InventoryReconciler) collect(planName string) (*planInventory, error) {
	inv := &planInventory{}

	err := r.store.View(func(tx *store.Tx) error {
		plan := tx.Plan(planName)
		if plan == nil {
			return fmt.Errorf("%w: %q", generator.ErrPlanNotFound, planName)
		}
		if tx.GenerationState(plan.ID) == nil {
			return fmt.Errorf("%w: %q", ErrNotGenerated, planName)
		}
		inv.plan = *plan

		manufacturers := make(map[string]models.Manufacturer)
		manufacturer := func(id int) (string, error) {
			m := tx.ManufacturerByID(id)
			if m == nil {
				return "", fmt.Errorf("manufacturer %d not found", id)
			}
			manufacturers[m.Slug] = *m
			return m.Slug, nil
		}

		seenTypes := make(map[int]bool)
		roles := make(map[string]bool)
		deviceIndex := make(map[int]int)
		for _, d := range tx.Devices(plan.ID) {
			dt := tx.DeviceTypeByID(d.DeviceTypeID)
			if dt == nil {
				return fmt.Errorf("device %s: device type %d not found", d.Name, d.DeviceTypeID)
			}
			if !seenTypes[dt.ID] {
				seenTypes[dt.ID] = true
				slug, err := manufacturer(dt.ManufacturerID)
				if err != nil {
					return fmt.Errorf("device type %s: %w", dt.Slug, err)
				}
				inv.deviceTypes = append(inv.deviceTypes, DeviceTypeSpec{DeviceType: *dt, Manufacturer: slug})
			}
			roles[d.Role] = true
			deviceIndex[d.ID] = len(inv.devices)
			inv.devices = append(inv.devices, DeviceSpec{Name: d.Name, Role: d.Role, DeviceType: dt.Slug})
		}

		ports := make(map[int]portKey)
		for _, iface := range tx.Interfaces(plan.ID) {
			idx, ok := deviceIndex[iface.DeviceID]
			if !ok {
				return fmt.Errorf("interface %s: device %d not found", iface.Name, iface.DeviceID)
			}
			dev := &inv.devices[idx]
			dev.Interfaces = append(dev.Interfaces, InterfaceSpec{Name: iface.Name, Speed: iface.Speed, Zone: iface.Zone})
			ports[iface.ID] = portKey{device: dev.Name, port: iface.Name}
		}

		for _, c := range tx.Cables(plan.ID) {
			a, okA := ports[c.AInterfaceID]
			b, okB := ports[c.BInterfaceID]
			if !okA || !okB {
				return fmt.Errorf("cable %d: interface not found", c.ID)
			}
			inv.cables = append(inv.cables, cableRef{
				a: a,
				b: b,
				spec: CableSpec{
					CableType: c.Type,
					Color:     utils.GetCableColor(c.Type),
					Label:     c.Label,
				},
			})
		}

		seenModules := make(map[int]bool)
		for _, sc := range tx.ServerClasses(plan.ID) {
			for _, conn := range tx.Connections(sc.ID) {
				if conn.NICModuleTypeID == 0 || seenModules[conn.NICModuleTypeID] {
					continue
				}
				seenModules[conn.NICModuleTypeID] = true
				mt := tx.ModuleTypeByID(conn.NICModuleTypeID)
				if mt == nil {
					return fmt.Errorf("connection %s: module type %d not found", conn.ConnectionID, conn.NICModuleTypeID)
				}
				slug, err := manufacturer(mt.ManufacturerID)
				if err != nil {
					return fmt.Errorf("module type %s: %w", mt.Model, err)
				}
				inv.moduleTypes = append(inv.moduleTypes, ModuleTypeSpec{ModuleType: *mt, Manufacturer: slug})
			}
		}

		for _, slug := range utils.SortedKeys(manufacturers) {
			inv.manufacturers = append(inv.manufacturers, manufacturers[slug])
		}
		inv.roles = utils.SortedKeys(roles)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func pairKey(a, b int) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d-%d", a, b)
}

// pruneCables deletes managed cables carrying the plan tag that the plan no
// longer generates. It runs before cables are created so that a re-cabled
// interface is free again.
func (r *InventoryReconciler) pruneCables(ctx context.Context, planTagSlug string, inv *planInventory, devices *DeviceReconciler) (int, error) {
	wantCables := make(map[string]bool, len(inv.cables))
	for _, c := range inv.cables {
		a, b := devices.Endpoint(c.a.device, c.a.port), devices.Endpoint(c.b.device, c.b.port)
		if a == nil || b == nil {
			return 0, fmt.Errorf("cable %s[%s] <-> %s[%s]: endpoint was not reconciled", c.a.device, c.a.port, c.b.device, c.b.port)
		}
		if a.ObjectID == 0 || b.ObjectID == 0 {
			r.logger.Debug("Skipping stale cable check: %s[%s] does not exist yet", a.DeviceName, a.PortName)
			return 0, nil
		}
		wantCables[pairKey(a.ObjectID, b.ObjectID)] = true
	}

	existing, err := r.client.Filter(ctx, "dcim", constants.EndpointCables, map[string]interface{}{"tag": planTagSlug})
	if err != nil {
		return 0, fmt.Errorf("failed to list plan cables: %w", err)
	}

	deleted := 0
	for _, cable := range existing {
		if !r.client.Tags().IsManaged(cable) {
			continue
		}
		aIDs, bIDs := terminationIDs(cable, "a"), terminationIDs(cable, "b")
		if len(aIDs) == 1 && len(bIDs) == 1 && wantCables[pairKey(aIDs[0], bIDs[0])] {
			continue
		}
		if err := r.remove(ctx, constants.EndpointCables, cable, "cable"); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// pruneInventory deletes managed interfaces and devices carrying the plan tag
// that the plan no longer generates
func (r *InventoryReconciler) pruneInventory(ctx context.Context, planTagSlug string, inv *planInventory, devices *DeviceReconciler) (int, error) {
	tags := r.client.Tags()
	byTag := map[string]interface{}{"tag": planTagSlug}

	wantDevices := make(map[string]bool)
	wantPorts := make(map[int]map[string]bool)
	for _, d := range inv.devices {
		wantDevices[d.Name] = true
		id, _ := devices.DeviceID(d.Name)
		if id == 0 {
			continue
		}
		names := make(map[string]bool, len(d.Interfaces))
		for _, iface := range d.Interfaces {
			names[iface.Name] = true
		}
		wantPorts[id] = names
	}

	deleted := 0
	existingIfaces, err := r.client.Filter(ctx, "dcim", constants.EndpointInterfaces, byTag)
	if err != nil {
		return deleted, fmt.Errorf("failed to list plan interfaces: %w", err)
	}
	for _, iface := range existingIfaces {
		if !tags.IsManaged(iface) {
			continue
		}
		names, kept := wantPorts[utils.GetIDFromObject(iface["device"])]
		if !kept {
			// Interfaces of stale devices go away with the device
			continue
		}
		if name, _ := iface["name"].(string); names[name] {
			continue
		}
		if err := r.remove(ctx, constants.EndpointInterfaces, iface, "interface"); err != nil {
			return deleted, err
		}
		deleted++
	}

	existingDevices, err := r.client.Filter(ctx, "dcim", constants.EndpointDevices, byTag)
	if err != nil {
		return deleted, fmt.Errorf("failed to list plan devices: %w", err)
	}
	for _, dev := range existingDevices {
		if !tags.IsManaged(dev) {
			continue
		}
		if name, _ := dev["name"].(string); wantDevices[name] {
			continue
		}
		if err := r.remove(ctx, constants.EndpointDevices, dev, "device"); err != nil {
			return deleted, err
		}
		deleted++
	}

	return deleted, nil
}

func (r *InventoryReconciler) remove(ctx context.Context, endpoint string, obj client.Object, kind string) error {
	id := utils.GetIDFromObject(obj)
	label := fmt.Sprintf("%s %d", kind, id)
	if name, ok := obj["name"].(string); ok {
		label = fmt.Sprintf("%s %s", kind, name)
	}

	r.logger.Warning("Removing stale %s", label)
	if err := r.client.Delete(ctx, "dcim", endpoint, id); err != nil {
		return fmt.Errorf("failed to delete stale %s: %w", label, err)
	}
	return nil
}
