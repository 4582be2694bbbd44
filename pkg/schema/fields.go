package schema

import (
	"fmt"
	"strings"

	"github.com/braunma/hedgehog-topology-planner/internal/constants"
	"github.com/braunma/hedgehog-topology-planner/pkg/models"
)

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func index(path string, i int) string {
	return fmt.Sprintf("%s[%d]", path, i)
}

// asMap accepts both map shapes yaml.v3 produces when decoding into interface{}
func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	}
	return nil, false
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case int32:
		return int(n), true
	}
	return 0, false
}

func typeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case int, int32, int64, uint64:
		return "integer"
	case float32, float64:
		return "number"
	case []interface{}:
		return "list"
	}
	if _, ok := asMap(v); ok {
		return "mapping"
	}
	return fmt.Sprintf("%T", v)
}

func (c *issueCollector) mapping(raw map[string]interface{}, key, path string, required bool) (map[string]interface{}, bool) {
	v, present := raw[key]
	if !present || v == nil {
		if required {
			c.add(constants.CodeMissingRequired, join(path, key), "%s is required", key)
		}
		return nil, false
	}
	m, ok := asMap(v)
	if !ok {
		c.add(constants.CodeInvalidType, join(path, key), "expected mapping, got %s", typeName(v))
		return nil, false
	}
	return m, true
}

func (c *issueCollector) list(raw map[string]interface{}, key, path string, required bool) ([]interface{}, bool) {
	v, present := raw[key]
	if !present || v == nil {
		if required {
			c.add(constants.CodeMissingRequired, join(path, key), "%s is required", key)
		}
		return nil, false
	}
	l, ok := v.([]interface{})
	if !ok {
		c.add(constants.CodeInvalidType, join(path, key), "expected list, got %s", typeName(v))
		return nil, false
	}
	return l, true
}

// str reads a string field; required fields must also be non-empty
func (c *issueCollector) str(raw map[string]interface{}, key, path string, required bool) string {
	v, present := raw[key]
	if !present || v == nil {
		if required {
			c.add(constants.CodeMissingRequired, join(path, key), "%s is required", key)
		}
		return ""
	}
	s, ok := v.(string)
	if !ok {
		c.add(constants.CodeInvalidType, join(path, key), "expected string, got %s", typeName(v))
		return ""
	}
	s = strings.TrimSpace(s)
	if s == "" && required {
		c.add(constants.CodeMissingRequired, join(path, key), "%s must not be empty", key)
	}
	return s
}

// integer reads an int field, returning def when absent
func (c *issueCollector) integer(raw map[string]interface{}, key, path string, required bool, def int) int {
	v := c.optInt(raw, key, path, required)
	if v == nil {
		return def
	}
	return *v
}

func (c *issueCollector) optInt(raw map[string]interface{}, key, path string, required bool) *int {
	v, present := raw[key]
	if !present || v == nil {
		if required {
			c.add(constants.CodeMissingRequired, join(path, key), "%s is required", key)
		}
		return nil
	}
	n, ok := toInt(v)
	if !ok {
		c.add(constants.CodeInvalidType, join(path, key), "expected integer, got %s", typeName(v))
		return nil
	}
	return &n
}

func (c *issueCollector) boolean(raw map[string]interface{}, key, path string, def bool) bool {
	v, present := raw[key]
	if !present || v == nil {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		c.add(constants.CodeInvalidType, join(path, key), "expected boolean, got %s", typeName(v))
		return def
	}
	return b
}

func (c *issueCollector) strList(raw map[string]interface{}, key, path string) []string {
	items, ok := c.list(raw, key, path, false)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			c.add(constants.CodeInvalidType, index(join(path, key), i), "expected string, got %s", typeName(item))
			continue
		}
		out = append(out, s)
	}
	return out
}

func (c *issueCollector) enum(value string, allowed []string, path string) {
	if value == "" {
		return
	}
	for _, a := range allowed {
		if a == value {
			return
		}
	}
	c.addHint(constants.CodeInvalidEnum, path, "one of: "+strings.Join(allowed, ", "), "invalid value %q", value)
}

func (c *issueCollector) atLeast(value, min int, path string) {
	if value < min {
		c.add(constants.CodeInvalidValue, path, "must be >= %d, got %d", min, value)
	}
}

// items returns the mapping entries of a list, flagging non-mapping items
func (c *issueCollector) items(list []interface{}, path string) []map[string]interface{} {
	out := make([]map[string]interface{}, len(list))
	for i, item := range list {
		m, ok := asMap(item)
		if !ok {
			c.add(constants.CodeInvalidType, index(path, i), "expected mapping, got %s", typeName(item))
			continue
		}
		out[i] = m
	}
	return out
}

func (c *issueCollector) interfaceTemplates(raw map[string]interface{}, path string) []models.InterfaceTemplate {
	list, ok := c.list(raw, "interface_templates", path, false)
	if !ok {
		return nil
	}
	p := join(path, "interface_templates")
	var out []models.InterfaceTemplate
	for i, item := range c.items(list, p) {
		if item == nil {
			continue
		}
		ip := index(p, i)
		out = append(out, models.InterfaceTemplate{
			Name:     c.str(item, "name", ip, true),
			Type:     c.str(item, "type", ip, false),
			MgmtOnly: c.boolean(item, "mgmt_only", ip, false),
		})
	}
	return out
}

// normalizeAlias copies the legacy "id" key to canonical when canonical is absent
func normalizeAlias(item map[string]interface{}, canonical string) {
	if _, ok := item[canonical]; ok {
		return
	}
	if legacy, ok := item["id"]; ok {
		item[canonical] = legacy
	}
}
