package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidationFailed is matched by every ValidationError
var ErrValidationFailed = errors.New("validation failed")

// Issue is one structured validation problem
type Issue struct {
	Code    string `json:"code" yaml:"code"`
	Path    string `json:"path" yaml:"path"`
	Message string `json:"message" yaml:"message"`
	Hint    string `json:"hint,omitempty" yaml:"hint,omitempty"`
}

func (i Issue) String() string {
	s := fmt.Sprintf("[%s] %s: %s", i.Code, i.Path, i.Message)
	if i.Hint != "" {
		s += " (hint: " + i.Hint + ")"
	}
	return s
}

// ValidationError carries every issue found in a document
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 1 {
		return "validation failed: " + e.Issues[0].String()
	}
	lines := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		lines[i] = issue.String()
	}
	return fmt.Sprintf("validation failed (%d issues):\n  - %s", len(e.Issues), strings.Join(lines, "\n  - "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// HasCode reports whether any issue carries code
func (e *ValidationError) HasCode(code string) bool {
	for _, issue := range e.Issues {
		if issue.Code == code {
			return true
		}
	}
	return false
}

// issueCollector accumulates issues while walking a document
type issueCollector struct {
	issues []Issue
}

func (c *issueCollector) add(code, path, format string, args ...interface{}) {
	c.issues = append(c.issues, Issue{Code: code, Path: path, Message: fmt.Sprintf(format, args...)})
}

func (c *issueCollector) addHint(code, path, hint, format string, args ...interface{}) {
	c.issues = append(c.issues, Issue{Code: code, Path: path, Message: fmt.Sprintf(format, args...), Hint: hint})
}

func (c *issueCollector) build() error {
	if len(c.issues) == 0 {
		return nil
	}
	return &ValidationError{Issues: c.issues}
}
