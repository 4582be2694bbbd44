package utils

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// MaxPortNumber is the highest front panel port a port spec may name
const MaxPortNumber = 1024

// ExpandPortSpec expands a port range specification into individual port numbers.
// Supported forms:
//   - "1-16"         -> [1 ... 16]
//   - "1,3,5"        -> [1, 3, 5]
//   - "1-4,9,11-12"  -> [1, 2, 3, 4, 9, 11, 12]
//
// Ports must lie in 1..MaxPortNumber. The result is sorted and deduplicated.
func ExpandPortSpec(spec string) ([]int, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("empty port spec")
	}

	var result []int
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if strings.Contains(part, "-") {
			rangeParts := strings.SplitN(part, "-", 2)

			start, err := strconv.Atoi(strings.TrimSpace(rangeParts[0]))
			if err != nil {
				return nil, fmt.Errorf("invalid start value in range %q: %w", part, err)
			}

			end, err := strconv.Atoi(strings.TrimSpace(rangeParts[1]))
			if err != nil {
				return nil, fmt.Errorf("invalid end value in range %q: %w", part, err)
			}

			if start > end {
				return nil, fmt.Errorf("start value %d greater than end value %d in range %q", start, end, part)
			}
			if start < 1 {
				return nil, fmt.Errorf("port numbers start at 1, got %d in range %q", start, part)
			}
			if end > MaxPortNumber {
				return nil, fmt.Errorf("port %d exceeds maximum %d in range %q", end, MaxPortNumber, part)
			}

			for i := start; i <= end; i++ {
				result = append(result, i)
			}
			continue
		}

		val, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid port value %q", part)
		}
		if val < 1 {
			return nil, fmt.Errorf("port numbers start at 1, got %d", val)
		}
		if val > MaxPortNumber {
			return nil, fmt.Errorf("port %d exceeds maximum %d", val, MaxPortNumber)
		}
		result = append(result, val)
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("port spec %q contains no ports", spec)
	}

	sort.Ints(result)
	return dedupInts(result), nil
}

// IntersectPorts returns the ports present in both sorted slices
func IntersectPorts(a, b []int) []int {
	var out []int
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return out
}

// CompactRange compacts a list of integers into range notation
// [1, 2, 3, 5, 7, 8, 9] -> "1-3,5,7-9"
func CompactRange(values []int) string {
	if len(values) == 0 {
		return ""
	}

	sorted := make([]int, len(values))
	copy(sorted, values)
	sort.Ints(sorted)
	sorted = dedupInts(sorted)

	var parts []string
	start, end := sorted[0], sorted[0]
	for _, v := range sorted[1:] {
		if v == end+1 {
			end = v
			continue
		}
		parts = append(parts, formatRange(start, end))
		start, end = v, v
	}
	parts = append(parts, formatRange(start, end))

	return strings.Join(parts, ",")
}

func formatRange(start, end int) string {
	if start == end {
		return strconv.Itoa(start)
	}
	return fmt.Sprintf("%d-%d", start, end)
}

func dedupInts(sorted []int) []int {
	if len(sorted) == 0 {
		return sorted
	}
	result := []int{sorted[0]}
	for i := 1; i < len(sorted); i++ {
		if sorted[i] != sorted[i-1] {
			result = append(result, sorted[i])
		}
	}
	return result
}
