package utils

import (
	"strings"

	"github.com/braunma/hedgehog-topology-planner/internal/constants"
)

// NormalizeColor converts various color formats to NetBox format (6-char hex without #)
func NormalizeColor(input string) string {
	if input == "" {
		return ""
	}

	input = strings.ToLower(strings.TrimPrefix(input, "#"))

	// "f00" -> "ff0000"
	if len(input) == 3 {
		return string([]byte{
			input[0], input[0],
			input[1], input[1],
			input[2], input[2],
		})
	}

	if len(input) == 6 {
		return input
	}

	return ""
}

// GetCableColor returns the default color for a cable type
func GetCableColor(cableType string) string {
	if c, ok := constants.CableColorMap[strings.ToLower(cableType)]; ok {
		return c
	}
	return ""
}

// GetRoleColor returns the NetBox color for a generated device role
func GetRoleColor(role string) string {
	if c, ok := constants.RoleColorMap[role]; ok {
		return NormalizeColor(c)
	}
	return "9e9e9e"
}

// CableTypeForSpeed picks a cable type for a link speed in Gbps
func CableTypeForSpeed(speed int) string {
	switch {
	case speed <= 0:
		return ""
	case speed <= 10:
		return "cat6a"
	case speed <= 100:
		return "dac"
	default:
		return "aoc"
	}
}

// InterfaceTypeForSpeed maps a link speed in Gbps to a NetBox interface type
func InterfaceTypeForSpeed(speed int) string {
	switch {
	case speed <= 0:
		return "other"
	case speed <= 1:
		return "1000base-t"
	case speed <= 10:
		return "10gbase-x-sfpp"
	case speed <= 25:
		return "25gbase-x-sfp28"
	case speed <= 100:
		return "100gbase-x-qsfp28"
	case speed <= 200:
		return "200gbase-x-qsfp56"
	case speed <= 400:
		return "400gbase-x-qsfpdd"
	default:
		return "800gbase-x-osfp"
	}
}
