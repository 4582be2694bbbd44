package models

import (
	"testing"
)

func TestSwitchClassEffectiveQuantity(t *testing.T) {
	override := 4
	zero := 0

	tests := []struct {
		name     string
		class    SwitchClass
		expected int
	}{
		{
			name:     "calculated only",
			class:    SwitchClass{CalculatedQuantity: 2},
			expected: 2,
		},
		{
			name:     "override wins",
			class:    SwitchClass{CalculatedQuantity: 2, OverrideQuantity: &override},
			expected: 4,
		},
		{
			name:     "explicit zero override",
			class:    SwitchClass{CalculatedQuantity: 2, OverrideQuantity: &zero},
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.class.EffectiveQuantity(); got != tt.expected {
				t.Errorf("EffectiveQuantity() = %d, expected %d", got, tt.expected)
			}
		})
	}
}

func TestPlanOwnedBy(t *testing.T) {
	tests := []struct {
		name     string
		plan     Plan
		caseID   string
		expected bool
	}{
		{
			name:     "owned by case",
			plan:     Plan{ManagedBy: "yaml", YAMLCaseID: "gpu_basic"},
			caseID:   "gpu_basic",
			expected: true,
		},
		{
			name:     "other case",
			plan:     Plan{ManagedBy: "yaml", YAMLCaseID: "gpu_other"},
			caseID:   "gpu_basic",
			expected: false,
		},
		{
			name:     "hand authored",
			plan:     Plan{Name: "Manual"},
			caseID:   "gpu_basic",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.plan.OwnedBy(tt.caseID); got != tt.expected {
				t.Errorf("OwnedBy(%q) = %v, expected %v", tt.caseID, got, tt.expected)
			}
		})
	}
}

func TestDeviceTypeExtensionSupportsRole(t *testing.T) {
	ext := &DeviceTypeExtension{HedgehogRoles: []string{"server-leaf", "border-leaf"}}
	if !ext.SupportsRole("server-leaf") {
		t.Error("SupportsRole(server-leaf) = false, expected true")
	}
	if ext.SupportsRole("spine") {
		t.Error("SupportsRole(spine) = true, expected false")
	}

	open := &DeviceTypeExtension{}
	if !open.SupportsRole("spine") {
		t.Error("SupportsRole() with no role list = false, expected true")
	}
}
