// Package schema validates raw YAML case documents and turns them into a typed Case.
package schema

import (
	"fmt"

	"github.com/braunma/hedgehog-topology-planner/pkg/models"
)

// Case is a fully validated and normalized case document
type Case struct {
	Meta              Meta
	Plan              PlanSpec
	ReferenceData     ReferenceData
	SwitchClasses     []SwitchClassSpec
	SwitchPortZones   []ZoneSpec
	ServerClasses     []ServerClassSpec
	ServerConnections []ConnectionSpec
	Expected          *ExpectedCounts
}

// Meta identifies the case and its owner
type Meta struct {
	CaseID    string
	Name      string
	Version   int
	ManagedBy string
}

// PlanSpec describes the plan row created by the case
type PlanSpec struct {
	Name        string
	Status      string
	Description string
}

// ReferenceData holds the reference entities a case declares. Each entity has a
// case-local ID that other entries of the document refer to.
type ReferenceData struct {
	Manufacturers        []ManufacturerSpec
	DeviceTypes          []DeviceTypeSpec
	DeviceTypeExtensions []ExtensionSpec
	BreakoutOptions      []BreakoutSpec
	ModuleTypes          []ModuleTypeSpec
}

type ManufacturerSpec struct {
	ID   string
	Name string
	Slug string
}

type DeviceTypeSpec struct {
	ID           string
	Manufacturer string
	Model        string
	Slug         string
	UHeight      int
	Interfaces   []models.InterfaceTemplate
}

type ExtensionSpec struct {
	ID                  string
	DeviceType          string
	MCLAGCapable        bool
	HedgehogRoles       []string
	NativeSpeed         int
	UplinkPorts         int
	SupportedBreakouts  []string
	HedgehogProfileName string
}

type BreakoutSpec struct {
	ID           string
	BreakoutID   string
	FromSpeed    int
	LogicalPorts int
	LogicalSpeed int
	OpticType    string
}

type ModuleTypeSpec struct {
	ID           string
	Manufacturer string
	Model        string
	Interfaces   []models.InterfaceTemplate
}

// SwitchClassSpec is a switch_classes entry
type SwitchClassSpec struct {
	SwitchClassID        string
	Fabric               string
	HedgehogRole         string
	DeviceTypeExtension  string
	UplinkPortsPerSwitch int
	MCLAGPair            bool
	OverrideQuantity     *int
}

// ZoneSpec is a switch_port_zones entry
type ZoneSpec struct {
	SwitchClass        string
	ZoneName           string
	ZoneType           string
	PortSpec           string
	Ports              []int
	BreakoutOption     string
	AllocationStrategy string
	Priority           int
}

// Ref returns the reference other documents use to target this zone
func (z *ZoneSpec) Ref() ZoneRef {
	return ZoneRef{SwitchClass: z.SwitchClass, Zone: z.ZoneName}
}

// ServerClassSpec is a server_classes entry
type ServerClassSpec struct {
	ServerClassID    string
	Category         string
	Quantity         int
	GPUsPerServer    int
	ServerDeviceType string
}

// ConnectionSpec is a server_connections entry
type ConnectionSpec struct {
	ServerClass        string
	ConnectionID       string
	NICModuleType      string
	PortIndex          int
	PortsPerConnection int
	HedgehogConnType   string
	Distribution       string
	TargetZone         ZoneRef
	Speed              int
	Rail               *int
	PortType           string
}

// ZoneRef identifies a zone as "<switch_class_id>/<zone_name>"
type ZoneRef struct {
	SwitchClass string
	Zone        string
}

func (r ZoneRef) String() string {
	return fmt.Sprintf("%s/%s", r.SwitchClass, r.Zone)
}

// ExpectedCounts are optional post-apply assertions
type ExpectedCounts struct {
	ServerClasses *int
	SwitchClasses *int
	Connections   *int
	Zones         *int
}

// Zone returns the zone targeted by ref, or nil
func (c *Case) Zone(ref ZoneRef) *ZoneSpec {
	for i := range c.SwitchPortZones {
		if c.SwitchPortZones[i].Ref() == ref {
			return &c.SwitchPortZones[i]
		}
	}
	return nil
}

// ZonesFor returns the zones declared on a switch class, in document order
func (c *Case) ZonesFor(switchClassID string) []ZoneSpec {
	var zones []ZoneSpec
	for _, z := range c.SwitchPortZones {
		if z.SwitchClass == switchClassID {
			zones = append(zones, z)
		}
	}
	return zones
}

// ConnectionsFor returns the connections declared on a server class, in document order
func (c *Case) ConnectionsFor(serverClassID string) []ConnectionSpec {
	var conns []ConnectionSpec
	for _, conn := range c.ServerConnections {
		if conn.ServerClass == serverClassID {
			conns = append(conns, conn)
		}
	}
	return conns
}
