package store

import (
	"github.com/braunma/hedgehog-topology-planner/pkg/models"
)

// Tx is a view of the state inside Update or View.
// Records returned by finders may be modified in place inside Update.
type Tx struct {
	s        *Snapshot
	writable bool
}

func (tx *Tx) nextID() int {
	if !tx.writable {
		panic("store: write in read-only transaction")
	}
	tx.s.LastID++
	return tx.s.LastID
}

func find[T any](items []*T, match func(*T) bool) *T {
	for _, it := range items {
		if match(it) {
			return it
		}
	}
	return nil
}

func filter[T any](items []*T, match func(*T) bool) []*T {
	var out []*T
	for _, it := range items {
		if match(it) {
			out = append(out, it)
		}
	}
	return out
}

// remove drops matching records and returns the kept ones plus the count removed
func remove[T any](items []*T, match func(*T) bool) ([]*T, int) {
	kept := items[:0:0]
	n := 0
	for _, it := range items {
		if match(it) {
			n++
			continue
		}
		kept = append(kept, it)
	}
	return kept, n
}

// Reference data

func (tx *Tx) Manufacturer(slug string) *models.Manufacturer {
	return find(tx.s.Manufacturers, func(m *models.Manufacturer) bool { return m.Slug == slug })
}

func (tx *Tx) ManufacturerByID(id int) *models.Manufacturer {
	return find(tx.s.Manufacturers, func(m *models.Manufacturer) bool { return m.ID == id })
}

func (tx *Tx) AddManufacturer(m *models.Manufacturer) {
	m.ID = tx.nextID()
	tx.s.Manufacturers = append(tx.s.Manufacturers, m)
}

func (tx *Tx) DeviceType(slug string) *models.DeviceType {
	return find(tx.s.DeviceTypes, func(d *models.DeviceType) bool { return d.Slug == slug })
}

func (tx *Tx) DeviceTypeByID(id int) *models.DeviceType {
	return find(tx.s.DeviceTypes, func(d *models.DeviceType) bool { return d.ID == id })
}

func (tx *Tx) AddDeviceType(d *models.DeviceType) {
	d.ID = tx.nextID()
	tx.s.DeviceTypes = append(tx.s.DeviceTypes, d)
}

func (tx *Tx) ModuleType(manufacturerID int, model string) *models.ModuleType {
	return find(tx.s.ModuleTypes, func(m *models.ModuleType) bool {
		return m.ManufacturerID == manufacturerID && m.Model == model
	})
}

func (tx *Tx) ModuleTypeByID(id int) *models.ModuleType {
	return find(tx.s.ModuleTypes, func(m *models.ModuleType) bool { return m.ID == id })
}

func (tx *Tx) AddModuleType(m *models.ModuleType) {
	m.ID = tx.nextID()
	tx.s.ModuleTypes = append(tx.s.ModuleTypes, m)
}

// Extension returns the extension of a device type
func (tx *Tx) Extension(deviceTypeID int) *models.DeviceTypeExtension {
	return find(tx.s.DeviceTypeExtensions, func(e *models.DeviceTypeExtension) bool { return e.DeviceTypeID == deviceTypeID })
}

func (tx *Tx) ExtensionByID(id int) *models.DeviceTypeExtension {
	return find(tx.s.DeviceTypeExtensions, func(e *models.DeviceTypeExtension) bool { return e.ID == id })
}

func (tx *Tx) AddExtension(e *models.DeviceTypeExtension) {
	e.ID = tx.nextID()
	tx.s.DeviceTypeExtensions = append(tx.s.DeviceTypeExtensions, e)
}

func (tx *Tx) BreakoutOption(breakoutID string) *models.BreakoutOption {
	return find(tx.s.BreakoutOptions, func(b *models.BreakoutOption) bool { return b.BreakoutID == breakoutID })
}

func (tx *Tx) BreakoutOptionByID(id int) *models.BreakoutOption {
	return find(tx.s.BreakoutOptions, func(b *models.BreakoutOption) bool { return b.ID == id })
}

func (tx *Tx) AddBreakoutOption(b *models.BreakoutOption) {
	b.ID = tx.nextID()
	tx.s.BreakoutOptions = append(tx.s.BreakoutOptions, b)
}

// Plans

func (tx *Tx) Plans() []*models.Plan {
	return tx.s.Plans
}

func (tx *Tx) Plan(name string) *models.Plan {
	return find(tx.s.Plans, func(p *models.Plan) bool { return p.Name == name })
}

func (tx *Tx) PlanByID(id int) *models.Plan {
	return find(tx.s.Plans, func(p *models.Plan) bool { return p.ID == id })
}

// OwnedPlans returns the plans created by the YAML case caseID
func (tx *Tx) OwnedPlans(caseID string) []*models.Plan {
	return filter(tx.s.Plans, func(p *models.Plan) bool { return p.OwnedBy(caseID) })
}

func (tx *Tx) AddPlan(p *models.Plan) {
	p.ID = tx.nextID()
	tx.s.Plans = append(tx.s.Plans, p)
}

// DeletePlan removes a plan and everything it owns: connections and zones
// before their classes, generated inventory, generation state, then the plan.
func (tx *Tx) DeletePlan(id int) {
	for _, sc := range tx.ServerClasses(id) {
		tx.DeleteServerClass(sc.ID)
	}
	for _, sc := range tx.SwitchClasses(id) {
		tx.DeleteSwitchClass(sc.ID)
	}
	tx.PurgeGenerated(id)
	tx.DeleteGenerationState(id)
	tx.s.Plans, _ = remove(tx.s.Plans, func(p *models.Plan) bool { return p.ID == id })
}

// Switch classes and zones

func (tx *Tx) SwitchClasses(planID int) []*models.SwitchClass {
	return filter(tx.s.SwitchClasses, func(sc *models.SwitchClass) bool { return sc.PlanID == planID })
}

func (tx *Tx) SwitchClass(planID int, switchClassID string) *models.SwitchClass {
	return find(tx.s.SwitchClasses, func(sc *models.SwitchClass) bool {
		return sc.PlanID == planID && sc.SwitchClassID == switchClassID
	})
}

func (tx *Tx) AddSwitchClass(sc *models.SwitchClass) {
	sc.ID = tx.nextID()
	tx.s.SwitchClasses = append(tx.s.SwitchClasses, sc)
}

// DeleteSwitchClass removes a switch class and its zones
func (tx *Tx) DeleteSwitchClass(id int) {
	for _, z := range tx.Zones(id) {
		tx.DeleteZone(z.ID)
	}
	tx.s.SwitchClasses, _ = remove(tx.s.SwitchClasses, func(sc *models.SwitchClass) bool { return sc.ID == id })
}

// Zones returns the zones of a switch class in insertion order
func (tx *Tx) Zones(switchClassID int) []*models.SwitchPortZone {
	return filter(tx.s.SwitchPortZones, func(z *models.SwitchPortZone) bool { return z.SwitchClassID == switchClassID })
}

func (tx *Tx) Zone(switchClassID int, name string) *models.SwitchPortZone {
	return find(tx.s.SwitchPortZones, func(z *models.SwitchPortZone) bool {
		return z.SwitchClassID == switchClassID && z.ZoneName == name
	})
}

func (tx *Tx) AddZone(z *models.SwitchPortZone) {
	z.ID = tx.nextID()
	tx.s.SwitchPortZones = append(tx.s.SwitchPortZones, z)
}

func (tx *Tx) DeleteZone(id int) {
	tx.s.SwitchPortZones, _ = remove(tx.s.SwitchPortZones, func(z *models.SwitchPortZone) bool { return z.ID == id })
}

// Server classes and connections

func (tx *Tx) ServerClasses(planID int) []*models.ServerClass {
	return filter(tx.s.ServerClasses, func(sc *models.ServerClass) bool { return sc.PlanID == planID })
}

func (tx *Tx) ServerClass(planID int, serverClassID string) *models.ServerClass {
	return find(tx.s.ServerClasses, func(sc *models.ServerClass) bool {
		return sc.PlanID == planID && sc.ServerClassID == serverClassID
	})
}

func (tx *Tx) AddServerClass(sc *models.ServerClass) {
	sc.ID = tx.nextID()
	tx.s.ServerClasses = append(tx.s.ServerClasses, sc)
}

// DeleteServerClass removes a server class and its connections
func (tx *Tx) DeleteServerClass(id int) {
	for _, c := range tx.Connections(id) {
		tx.DeleteConnection(c.ID)
	}
	tx.s.ServerClasses, _ = remove(tx.s.ServerClasses, func(sc *models.ServerClass) bool { return sc.ID == id })
}

// Connections returns the connections of a server class in insertion order
func (tx *Tx) Connections(serverClassID int) []*models.ServerConnection {
	return filter(tx.s.ServerConnections, func(c *models.ServerConnection) bool { return c.ServerClassID == serverClassID })
}

func (tx *Tx) Connection(serverClassID int, connectionID string) *models.ServerConnection {
	return find(tx.s.ServerConnections, func(c *models.ServerConnection) bool {
		return c.ServerClassID == serverClassID && c.ConnectionID == connectionID
	})
}

// ConnectionsToZone returns every connection targeting a zone
func (tx *Tx) ConnectionsToZone(zoneID int) []*models.ServerConnection {
	return filter(tx.s.ServerConnections, func(c *models.ServerConnection) bool { return c.TargetZoneID == zoneID })
}

func (tx *Tx) AddConnection(c *models.ServerConnection) {
	c.ID = tx.nextID()
	tx.s.ServerConnections = append(tx.s.ServerConnections, c)
}

func (tx *Tx) DeleteConnection(id int) {
	tx.s.ServerConnections, _ = remove(tx.s.ServerConnections, func(c *models.ServerConnection) bool { return c.ID == id })
}

// Generation state

func (tx *Tx) GenerationState(planID int) *models.GenerationState {
	return find(tx.s.GenerationStates, func(g *models.GenerationState) bool { return g.PlanID == planID })
}

// PutGenerationState replaces the generation state of g.PlanID
func (tx *Tx) PutGenerationState(g *models.GenerationState) {
	tx.DeleteGenerationState(g.PlanID)
	g.ID = tx.nextID()
	tx.s.GenerationStates = append(tx.s.GenerationStates, g)
}

func (tx *Tx) DeleteGenerationState(planID int) {
	tx.s.GenerationStates, _ = remove(tx.s.GenerationStates, func(g *models.GenerationState) bool { return g.PlanID == planID })
}

// Generated inventory

func (tx *Tx) Devices(planID int) []*models.Device {
	return filter(tx.s.Devices, func(d *models.Device) bool { return d.PlanID == planID })
}

func (tx *Tx) DeviceByID(id int) *models.Device {
	return find(tx.s.Devices, func(d *models.Device) bool { return d.ID == id })
}

func (tx *Tx) AddDevice(d *models.Device) {
	d.ID = tx.nextID()
	tx.s.Devices = append(tx.s.Devices, d)
}

func (tx *Tx) Interfaces(planID int) []*models.Interface {
	return filter(tx.s.Interfaces, func(i *models.Interface) bool { return i.PlanID == planID })
}

func (tx *Tx) InterfaceByID(id int) *models.Interface {
	return find(tx.s.Interfaces, func(i *models.Interface) bool { return i.ID == id })
}

func (tx *Tx) AddInterface(i *models.Interface) {
	i.ID = tx.nextID()
	tx.s.Interfaces = append(tx.s.Interfaces, i)
}

func (tx *Tx) Cables(planID int) []*models.Cable {
	return filter(tx.s.Cables, func(c *models.Cable) bool { return c.PlanID == planID })
}

func (tx *Tx) AddCable(c *models.Cable) {
	c.ID = tx.nextID()
	tx.s.Cables = append(tx.s.Cables, c)
}

// PurgeGenerated deletes the cables, interfaces and devices of one plan and
// returns how many devices were removed. Other plans are untouched.
func (tx *Tx) PurgeGenerated(planID int) int {
	tx.s.Cables, _ = remove(tx.s.Cables, func(c *models.Cable) bool { return c.PlanID == planID })
	tx.s.Interfaces, _ = remove(tx.s.Interfaces, func(i *models.Interface) bool { return i.PlanID == planID })
	var n int
	tx.s.Devices, n = remove(tx.s.Devices, func(d *models.Device) bool { return d.PlanID == planID })
	return n
}
