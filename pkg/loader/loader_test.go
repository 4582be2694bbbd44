package loader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/braunma/hedgehog-topology-planner/pkg/utils"
)

const casesDir = "../../testdata/cases"

func TestDataLoaderInitialization(t *testing.T) {
	logger := utils.NewLogger(true)
	loader := NewDataLoader("/test/path", logger)

	if loader == nil {
		t.Fatal("NewDataLoader() returned nil")
	}

	if loader.logger == nil {
		t.Error("DataLoader logger is nil")
	}
}

func TestListCaseIDs(t *testing.T) {
	ids, err := ListCaseIDs(casesDir)
	if err != nil {
		t.Fatalf("ListCaseIDs() error = %v", err)
	}

	expected := []string{"gpu_rail_optimized", "mclag_breakout", "ux_case_basic"}
	if len(ids) != len(expected) {
		t.Fatalf("ListCaseIDs() = %v, expected %v", ids, expected)
	}
	for i := range expected {
		if ids[i] != expected[i] {
			t.Errorf("ListCaseIDs()[%d] = %q, expected %q", i, ids[i], expected[i])
		}
	}
}

func TestListCaseIDsMissingRoot(t *testing.T) {
	if _, err := ListCaseIDs(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("ListCaseIDs() expected error for missing root")
	}
}

func TestLoadCase(t *testing.T) {
	tests := []struct {
		caseID        string
		switchClasses int
		serverClasses int
		connections   int
	}{
		{"ux_case_basic", 1, 1, 1},
		{"gpu_rail_optimized", 1, 1, 4},
		{"mclag_breakout", 1, 2, 2},
	}

	for _, tt := range tests {
		t.Run(tt.caseID, func(t *testing.T) {
			c, err := LoadCase(tt.caseID, casesDir)
			if err != nil {
				t.Fatalf("LoadCase() error = %v", err)
			}
			if c.Meta.CaseID != tt.caseID {
				t.Errorf("case_id = %q, expected %q", c.Meta.CaseID, tt.caseID)
			}
			if len(c.SwitchClasses) != tt.switchClasses {
				t.Errorf("switch classes = %d, expected %d", len(c.SwitchClasses), tt.switchClasses)
			}
			if len(c.ServerClasses) != tt.serverClasses {
				t.Errorf("server classes = %d, expected %d", len(c.ServerClasses), tt.serverClasses)
			}
			if len(c.ServerConnections) != tt.connections {
				t.Errorf("connections = %d, expected %d", len(c.ServerConnections), tt.connections)
			}
		})
	}
}

func TestLoadCaseNotFound(t *testing.T) {
	_, err := LoadCase("does_not_exist", casesDir)

	var notFound *TestCaseNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("LoadCase() error = %v, expected TestCaseNotFoundError", err)
	}
	if notFound.CaseID != "does_not_exist" {
		t.Errorf("CaseID = %q", notFound.CaseID)
	}
	if !errors.Is(err, ErrCaseNotFound) {
		t.Error("error does not match ErrCaseNotFound")
	}
}

func TestLoadCaseParseError(t *testing.T) {
	_, err := LoadCase("bad_yaml", "../../testdata/broken")

	var verr *TestCaseValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("LoadCase() error = %v, expected TestCaseValidationError", err)
	}
	if !verr.HasCode("yaml_parse_error") {
		t.Errorf("issues = %v, expected yaml_parse_error", verr.Issues)
	}
}

func TestLoadCaseInvalidDocuments(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		code    string
	}{
		{
			name:    "list document",
			file:    "listed.yaml",
			content: "- a\n- b\n",
			code:    "invalid_type",
		},
		{
			name:    "empty document",
			file:    "empty.yaml",
			content: "",
			code:    "missing_required",
		},
		{
			name: "case id differs from file name",
			file: "renamed.yml",
			content: `meta: {case_id: original, name: x, version: 1, managed_by: yaml}
plan: {name: p, status: draft}
switch_classes: []
server_classes: []
server_connections: []
`,
			code: "invalid_value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			if err := os.WriteFile(filepath.Join(root, tt.file), []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			id := tt.file[:len(tt.file)-len(filepath.Ext(tt.file))]

			_, err := LoadCase(id, root)
			var verr *TestCaseValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("LoadCase() error = %v, expected TestCaseValidationError", err)
			}
			if verr.CaseID != id {
				t.Errorf("CaseID = %q, expected %q", verr.CaseID, id)
			}
			if !verr.HasCode(tt.code) {
				t.Errorf("issues = %v, expected %s", verr.Issues, tt.code)
			}
		})
	}
}

func TestDuplicateCaseIDs(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"dup.yaml", "nested/dup.yml"} {
		if err := os.WriteFile(filepath.Join(root, p), []byte("meta: {}\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := ListCaseIDs(root); err == nil {
		t.Error("ListCaseIDs() expected error for duplicate case ids")
	}
}

func TestDataLoaderMethods(t *testing.T) {
	loader := NewDataLoader(casesDir, utils.NewTestLogger(os.Stderr))

	ids, err := loader.ListCaseIDs()
	if err != nil {
		t.Fatalf("ListCaseIDs() error = %v", err)
	}
	if len(ids) == 0 {
		t.Fatal("ListCaseIDs() returned no cases")
	}

	c, err := loader.LoadCase(ids[0])
	if err != nil {
		t.Fatalf("LoadCase() error = %v", err)
	}
	if c.Meta.CaseID != ids[0] {
		t.Errorf("case_id = %q, expected %q", c.Meta.CaseID, ids[0])
	}
}
