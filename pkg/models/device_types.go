package models

// InterfaceTemplate represents an interface template for device and module types
type InterfaceTemplate struct {
	Name     string `yaml:"name" json:"name"`
	Type     string `yaml:"type" json:"type"`
	MgmtOnly bool   `yaml:"mgmt_only,omitempty" json:"mgmt_only,omitempty"`
}

// Manufacturer represents a hardware manufacturer
type Manufacturer struct {
	ID   int    `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	Slug string `yaml:"slug" json:"slug"`
}

// DeviceType represents a device type definition (blueprint for devices)
type DeviceType struct {
	ID             int                 `yaml:"id" json:"id"`
	ManufacturerID int                 `yaml:"manufacturer_id" json:"manufacturer_id"`
	Model          string              `yaml:"model" json:"model"`
	Slug           string              `yaml:"slug" json:"slug"`
	UHeight        int                 `yaml:"u_height,omitempty" json:"u_height,omitempty"`
	Interfaces     []InterfaceTemplate `yaml:"interface_templates,omitempty" json:"interface_templates,omitempty"`
}

// ModuleType represents a blueprint for a module such as a NIC
type ModuleType struct {
	ID             int                 `yaml:"id" json:"id"`
	ManufacturerID int                 `yaml:"manufacturer_id" json:"manufacturer_id"`
	Model          string              `yaml:"model" json:"model"`
	Interfaces     []InterfaceTemplate `yaml:"interface_templates,omitempty" json:"interface_templates,omitempty"`
}

// DeviceTypeExtension carries Hedgehog metadata for a switch device type.
// There is at most one extension per device type.
type DeviceTypeExtension struct {
	ID                  int      `yaml:"id" json:"id"`
	DeviceTypeID        int      `yaml:"device_type_id" json:"device_type_id"`
	MCLAGCapable        bool     `yaml:"mclag_capable" json:"mclag_capable"`
	HedgehogRoles       []string `yaml:"hedgehog_roles,omitempty" json:"hedgehog_roles,omitempty"`
	NativeSpeed         int      `yaml:"native_speed,omitempty" json:"native_speed,omitempty"`
	UplinkPorts         int      `yaml:"uplink_ports,omitempty" json:"uplink_ports,omitempty"`
	SupportedBreakouts  []string `yaml:"supported_breakouts,omitempty" json:"supported_breakouts,omitempty"`
	HedgehogProfileName string   `yaml:"hedgehog_profile_name,omitempty" json:"hedgehog_profile_name,omitempty"`
}

// SupportsRole reports whether role is listed in the extension's compatible roles.
// An empty list means no restriction.
func (e *DeviceTypeExtension) SupportsRole(role string) bool {
	if len(e.HedgehogRoles) == 0 {
		return true
	}
	for _, r := range e.HedgehogRoles {
		if r == role {
			return true
		}
	}
	return false
}

// BreakoutOption splits one physical port at FromSpeed into LogicalPorts ports at LogicalSpeed
type BreakoutOption struct {
	ID           int    `yaml:"id" json:"id"`
	BreakoutID   string `yaml:"breakout_id" json:"breakout_id"`
	FromSpeed    int    `yaml:"from_speed" json:"from_speed"`
	LogicalPorts int    `yaml:"logical_ports" json:"logical_ports"`
	LogicalSpeed int    `yaml:"logical_speed" json:"logical_speed"`
	OpticType    string `yaml:"optic_type,omitempty" json:"optic_type,omitempty"`
}
