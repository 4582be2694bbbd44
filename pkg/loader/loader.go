package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/braunma/hedgehog-topology-planner/internal/constants"
	"github.com/braunma/hedgehog-topology-planner/pkg/schema"
	"github.com/braunma/hedgehog-topology-planner/pkg/utils"
)

// ErrCaseNotFound is matched by every TestCaseNotFoundError
var ErrCaseNotFound = errors.New("test case not found")

// TestCaseNotFoundError is returned when no case file exists for an id
type TestCaseNotFoundError struct {
	CaseID string
	Root   string
}

func (e *TestCaseNotFoundError) Error() string {
	return fmt.Sprintf("test case %q not found under %s", e.CaseID, e.Root)
}

func (e *TestCaseNotFoundError) Unwrap() error {
	return ErrCaseNotFound
}

// TestCaseValidationError is the single error surfaced when a case cannot be
// loaded or applied. It carries one or more structured issues.
type TestCaseValidationError struct {
	CaseID string
	Issues []schema.Issue
}

func (e *TestCaseValidationError) Error() string {
	if len(e.Issues) == 1 {
		return fmt.Sprintf("case %s: %s", e.CaseID, e.Issues[0])
	}
	lines := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		lines[i] = issue.String()
	}
	return fmt.Sprintf("case %s: %d issues:\n  - %s", e.CaseID, len(e.Issues), strings.Join(lines, "\n  - "))
}

// HasCode reports whether any issue carries code
func (e *TestCaseValidationError) HasCode(code string) bool {
	for _, issue := range e.Issues {
		if issue.Code == code {
			return true
		}
	}
	return false
}

// NewValidationError wraps a single issue
func NewValidationError(caseID, code, path, format string, args ...interface{}) *TestCaseValidationError {
	return &TestCaseValidationError{
		CaseID: caseID,
		Issues: []schema.Issue{{Code: code, Path: path, Message: fmt.Sprintf(format, args...)}},
	}
}

// FromSchemaError converts a schema.ValidationError; other errors pass through
func FromSchemaError(caseID string, err error) error {
	var verr *schema.ValidationError
	if errors.As(err, &verr) {
		return &TestCaseValidationError{CaseID: caseID, Issues: verr.Issues}
	}
	return err
}

// DataLoader discovers and loads case files below a root directory
type DataLoader struct {
	basePath string
	logger   *utils.Logger
}

// NewDataLoader creates a new data loader
func NewDataLoader(basePath string, logger *utils.Logger) *DataLoader {
	return &DataLoader{
		basePath: basePath,
		logger:   logger,
	}
}

// ListCaseIDs returns the sorted ids of all case files under root
func ListCaseIDs(root string) ([]string, error) {
	files, err := findYAMLFiles(root)
	if err != nil {
		return nil, err
	}
	return utils.SortedKeys(files), nil
}

// LoadCase reads, parses and validates the case file for caseID under root
func LoadCase(caseID, root string) (*schema.Case, error) {
	files, err := findYAMLFiles(root)
	if err != nil {
		return nil, err
	}
	path, ok := files[caseID]
	if !ok {
		return nil, &TestCaseNotFoundError{CaseID: caseID, Root: root}
	}
	return loadFile(caseID, path)
}

// ListCaseIDs lists the cases under the loader's base path
func (dl *DataLoader) ListCaseIDs() ([]string, error) {
	ids, err := ListCaseIDs(dl.basePath)
	if err != nil {
		return nil, err
	}
	dl.logger.Debug("Found %d cases in %s", len(ids), dl.basePath)
	return ids, nil
}

// LoadCase loads one case from the loader's base path
func (dl *DataLoader) LoadCase(caseID string) (*schema.Case, error) {
	c, err := LoadCase(caseID, dl.basePath)
	if err != nil {
		return nil, err
	}
	dl.logger.Debug("Loaded case %s (%d switch classes, %d server classes, %d connections)",
		caseID, len(c.SwitchClasses), len(c.ServerClasses), len(c.ServerConnections))
	return c, nil
}

// loadFile parses one case file and validates it
func loadFile(caseID, path string) (*schema.Case, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var doc interface{}
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, NewValidationError(caseID, constants.CodeYAMLParseError, filepath.Base(path), "%v", err)
	}

	var raw map[string]interface{}
	switch d := doc.(type) {
	case nil:
		// empty file, reported field by field by the validator
	case map[string]interface{}:
		raw = d
	default:
		return nil, NewValidationError(caseID, constants.CodeInvalidType, "", "case document must be a mapping, got %T", doc)
	}

	c, err := schema.Validate(raw)
	if err != nil {
		return nil, FromSchemaError(caseID, err)
	}
	if c.Meta.CaseID != caseID {
		return nil, NewValidationError(caseID, constants.CodeInvalidValue, "meta.case_id",
			"case_id %q does not match file name %q", c.Meta.CaseID, filepath.Base(path))
	}
	return c, nil
}

// findYAMLFiles maps case ids (file stems) to paths, walking root recursively
func findYAMLFiles(root string) (map[string]string, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("cases directory %s: %w", root, err)
	}

	files := map[string]string{}
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		id := strings.TrimSuffix(filepath.Base(path), ext)
		if prev, dup := files[id]; dup {
			return fmt.Errorf("case %q defined twice: %s and %s", id, prev, path)
		}
		files[id] = path
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find YAML files in %s: %w", root, err)
	}
	return files, nil
}
