package utils

import (
	"fmt"
	"sort"
	"strings"
)

// Slugify converts a string to a URL-safe slug
func Slugify(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "_", "-")
	var result strings.Builder
	for _, char := range s {
		if (char >= 'a' && char <= 'z') || (char >= '0' && char <= '9') || char == '-' {
			result.WriteRune(char)
		}
	}
	return result.String()
}

// GetIDFromObject extracts an ID from various NetBox object formats
func GetIDFromObject(obj interface{}) int {
	if obj == nil {
		return 0
	}

	switch v := obj.(type) {
	case int:
		return v
	case float64:
		return int(v)
	case string:
		var id int
		if _, err := fmt.Sscanf(v, "%d", &id); err == nil {
			return id
		}
		return 0
	case map[string]interface{}:
		return GetIDFromObject(v["id"])
	}

	return 0
}

// Contains checks if a string slice contains a specific string
func Contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// SortedKeys returns the keys of a string-keyed map in ascending order
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DeviceName builds the generated name of the index-th (0-based) instance of a class
func DeviceName(classID string, index, width int) string {
	return fmt.Sprintf("%s-%0*d", classID, width, index+1)
}
