package models

import (
	"time"

	"github.com/braunma/hedgehog-topology-planner/internal/constants"
)

// Plan is a named topology design
type Plan struct {
	ID          int       `yaml:"id" json:"id"`
	Name        string    `yaml:"name" json:"name"`
	Status      string    `yaml:"status" json:"status"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
	ManagedBy   string    `yaml:"managed_by,omitempty" json:"managed_by,omitempty"`
	YAMLCaseID  string    `yaml:"yaml_case_id,omitempty" json:"yaml_case_id,omitempty"`
	CreatedAt   time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt   time.Time `yaml:"updated_at" json:"updated_at"`
}

// OwnedBy reports whether the plan was created by the YAML case caseID
func (p *Plan) OwnedBy(caseID string) bool {
	return p.ManagedBy == constants.ManagedByYAML && p.YAMLCaseID == caseID
}

// SwitchClass describes N identical switches within a plan
type SwitchClass struct {
	ID                    int    `yaml:"id" json:"id"`
	PlanID                int    `yaml:"plan_id" json:"plan_id"`
	SwitchClassID         string `yaml:"switch_class_id" json:"switch_class_id"`
	Fabric                string `yaml:"fabric" json:"fabric"`
	HedgehogRole          string `yaml:"hedgehog_role" json:"hedgehog_role"`
	DeviceTypeExtensionID int    `yaml:"device_type_extension_id" json:"device_type_extension_id"`
	UplinkPortsPerSwitch  int    `yaml:"uplink_ports_per_switch" json:"uplink_ports_per_switch"`
	MCLAGPair             bool   `yaml:"mclag_pair" json:"mclag_pair"`
	CalculatedQuantity    int    `yaml:"calculated_quantity" json:"calculated_quantity"`
	OverrideQuantity      *int   `yaml:"override_quantity,omitempty" json:"override_quantity,omitempty"`
}

// EffectiveQuantity returns the override quantity when set, otherwise the calculated one
func (sc *SwitchClass) EffectiveQuantity() int {
	if sc.OverrideQuantity != nil {
		return *sc.OverrideQuantity
	}
	return sc.CalculatedQuantity
}

// SwitchPortZone is a named range of physical ports on a switch class reserved for one purpose
type SwitchPortZone struct {
	ID                 int    `yaml:"id" json:"id"`
	SwitchClassID      int    `yaml:"switch_class_id" json:"switch_class_id"`
	ZoneName           string `yaml:"zone_name" json:"zone_name"`
	ZoneType           string `yaml:"zone_type" json:"zone_type"`
	PortSpec           string `yaml:"port_spec" json:"port_spec"`
	BreakoutOptionID   int    `yaml:"breakout_option_id,omitempty" json:"breakout_option_id,omitempty"`
	AllocationStrategy string `yaml:"allocation_strategy" json:"allocation_strategy"`
	Priority           int    `yaml:"priority" json:"priority"`
}

// ServerClass describes N identical servers within a plan
type ServerClass struct {
	ID                 int    `yaml:"id" json:"id"`
	PlanID             int    `yaml:"plan_id" json:"plan_id"`
	ServerClassID      string `yaml:"server_class_id" json:"server_class_id"`
	Category           string `yaml:"category" json:"category"`
	Quantity           int    `yaml:"quantity" json:"quantity"`
	GPUsPerServer      int    `yaml:"gpus_per_server" json:"gpus_per_server"`
	ServerDeviceTypeID int    `yaml:"server_device_type_id" json:"server_device_type_id"`
}

// ServerConnection is one cabling rule from a server class to a switch port zone
type ServerConnection struct {
	ID                 int    `yaml:"id" json:"id"`
	ServerClassID      int    `yaml:"server_class_id" json:"server_class_id"`
	ConnectionID       string `yaml:"connection_id" json:"connection_id"`
	NICModuleTypeID    int    `yaml:"nic_module_type_id,omitempty" json:"nic_module_type_id,omitempty"`
	PortIndex          int    `yaml:"port_index" json:"port_index"`
	PortsPerConnection int    `yaml:"ports_per_connection" json:"ports_per_connection"`
	HedgehogConnType   string `yaml:"hedgehog_conn_type" json:"hedgehog_conn_type"`
	Distribution       string `yaml:"distribution" json:"distribution"`
	TargetZoneID       int    `yaml:"target_zone_id" json:"target_zone_id"`
	Speed              int    `yaml:"speed" json:"speed"`
	Rail               *int   `yaml:"rail,omitempty" json:"rail,omitempty"`
	PortType           string `yaml:"port_type" json:"port_type"`
}

// GenerationState records the last device generation run of a plan
type GenerationState struct {
	ID               int            `yaml:"id" json:"id"`
	PlanID           int            `yaml:"plan_id" json:"plan_id"`
	GeneratedAt      time.Time      `yaml:"generated_at" json:"generated_at"`
	DeviceCount      int            `yaml:"device_count" json:"device_count"`
	InterfaceCount   int            `yaml:"interface_count" json:"interface_count"`
	CableCount       int            `yaml:"cable_count" json:"cable_count"`
	SwitchQuantities map[string]int `yaml:"switch_quantities,omitempty" json:"switch_quantities,omitempty"`
}
