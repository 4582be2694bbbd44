package models

// Device is a generated server or switch instance
type Device struct {
	ID           int    `yaml:"id" json:"id"`
	PlanID       int    `yaml:"plan_id" json:"plan_id"`
	Name         string `yaml:"name" json:"name"`
	Kind         string `yaml:"kind" json:"kind"`
	Role         string `yaml:"role" json:"role"`
	DeviceTypeID int    `yaml:"device_type_id" json:"device_type_id"`
	ClassID      string `yaml:"class_id" json:"class_id"`
	Index        int    `yaml:"index" json:"index"`
}

// Interface is a generated port on a device
type Interface struct {
	ID       int    `yaml:"id" json:"id"`
	PlanID   int    `yaml:"plan_id" json:"plan_id"`
	DeviceID int    `yaml:"device_id" json:"device_id"`
	Name     string `yaml:"name" json:"name"`
	Speed    int    `yaml:"speed,omitempty" json:"speed,omitempty"`
	// Zone is the hedgehog_zone custom field, set on switch-side interfaces only
	Zone    string `yaml:"hedgehog_zone,omitempty" json:"hedgehog_zone,omitempty"`
	CableID int    `yaml:"cable_id,omitempty" json:"cable_id,omitempty"`
}

// Cable connects a server interface (A side) to a switch interface (B side)
type Cable struct {
	ID           int    `yaml:"id" json:"id"`
	PlanID       int    `yaml:"plan_id" json:"plan_id"`
	AInterfaceID int    `yaml:"a_interface_id" json:"a_interface_id"`
	BInterfaceID int    `yaml:"b_interface_id" json:"b_interface_id"`
	Type         string `yaml:"type,omitempty" json:"type,omitempty"`
	Label        string `yaml:"label,omitempty" json:"label,omitempty"`
}
