package utils

import (
	"bytes"
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "simple lowercase", input: "simple", expected: "simple"},
		{name: "uppercase to lowercase", input: "UPPERCASE", expected: "uppercase"},
		{name: "spaces to hyphens", input: "hello world", expected: "hello-world"},
		{name: "underscores to hyphens", input: "gpu_training_case", expected: "gpu-training-case"},
		{name: "special characters removed", input: "test@#$%123", expected: "test123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Slugify(tt.input)
			if result != tt.expected {
				t.Errorf("Slugify(%q) = %q, expected %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestGetIDFromObject(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected int
	}{
		{name: "integer", input: 42, expected: 42},
		{name: "float64", input: 27.0, expected: 27},
		{name: "string", input: "17", expected: 17},
		{name: "map with id float64", input: map[string]interface{}{"id": 200.0}, expected: 200},
		{name: "nil", input: nil, expected: 0},
		{name: "map without id", input: map[string]interface{}{"name": "test"}, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GetIDFromObject(tt.input)
			if result != tt.expected {
				t.Errorf("GetIDFromObject(%v) = %d, expected %d", tt.input, result, tt.expected)
			}
		})
	}
}

func TestContains(t *testing.T) {
	if !Contains([]string{"a", "b"}, "b") {
		t.Error("Contains() = false, expected true")
	}
	if Contains(nil, "a") {
		t.Error("Contains(nil) = true, expected false")
	}
}

func TestSortedKeys(t *testing.T) {
	got := SortedKeys(map[string]int{"leaf-02": 1, "leaf-01": 2, "spine": 3})
	want := []string{"leaf-01", "leaf-02", "spine"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("SortedKeys() = %v, expected %v", got, want)
	}
}

func TestDeviceName(t *testing.T) {
	if got := DeviceName("gpu-01", 0, 3); got != "gpu-01-001" {
		t.Errorf("DeviceName() = %q, expected %q", got, "gpu-01-001")
	}
	if got := DeviceName("leaf-01", 11, 2); got != "leaf-01-12" {
		t.Errorf("DeviceName() = %q, expected %q", got, "leaf-01-12")
	}
}

func TestLoggerDebugSilenced(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTestLogger(&buf)
	logger.SetVerbose(false)
	logger.Debug("hidden %d", 1)
	logger.Info("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Errorf("Debug output written while not verbose: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("Info output missing: %q", buf.String())
	}
}
