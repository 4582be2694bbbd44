package utils

import "testing"

func TestNormalizeColor(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "6-char hex with hash", input: "#ff0000", expected: "ff0000"},
		{name: "6-char hex without hash", input: "00ff00", expected: "00ff00"},
		{name: "3-char hex", input: "f00", expected: "ff0000"},
		{name: "uppercase", input: "#FF00AA", expected: "ff00aa"},
		{name: "empty string", input: "", expected: ""},
		{name: "invalid length", input: "12345", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeColor(tt.input)
			if result != tt.expected {
				t.Errorf("NormalizeColor(%q) = %q, expected %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestGetCableColor(t *testing.T) {
	tests := []struct {
		cableType string
		expected  string
	}{
		{cableType: "dac", expected: "000000"},
		{cableType: "AOC", expected: "00bcd4"},
		{cableType: "unknown", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.cableType, func(t *testing.T) {
			if got := GetCableColor(tt.cableType); got != tt.expected {
				t.Errorf("GetCableColor(%q) = %q, expected %q", tt.cableType, got, tt.expected)
			}
		})
	}
}

func TestGetRoleColor(t *testing.T) {
	if got := GetRoleColor("spine"); got != "f44336" {
		t.Errorf("GetRoleColor(spine) = %q, expected %q", got, "f44336")
	}
	if got := GetRoleColor("nope"); got != "9e9e9e" {
		t.Errorf("GetRoleColor(nope) = %q, expected fallback %q", got, "9e9e9e")
	}
}

func TestCableTypeForSpeed(t *testing.T) {
	tests := []struct {
		speed    int
		expected string
	}{
		{speed: 0, expected: ""},
		{speed: 10, expected: "cat6a"},
		{speed: 100, expected: "dac"},
		{speed: 400, expected: "aoc"},
	}

	for _, tt := range tests {
		if got := CableTypeForSpeed(tt.speed); got != tt.expected {
			t.Errorf("CableTypeForSpeed(%d) = %q, expected %q", tt.speed, got, tt.expected)
		}
	}
}

func TestInterfaceTypeForSpeed(t *testing.T) {
	tests := []struct {
		speed    int
		expected string
	}{
		{speed: 0, expected: "other"},
		{speed: 1, expected: "1000base-t"},
		{speed: 25, expected: "25gbase-x-sfp28"},
		{speed: 200, expected: "200gbase-x-qsfp56"},
		{speed: 400, expected: "400gbase-x-qsfpdd"},
		{speed: 800, expected: "800gbase-x-osfp"},
	}

	for _, tt := range tests {
		if got := InterfaceTypeForSpeed(tt.speed); got != tt.expected {
			t.Errorf("InterfaceTypeForSpeed(%d) = %q, expected %q", tt.speed, got, tt.expected)
		}
	}
}
