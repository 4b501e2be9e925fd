package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseCapacities parses a comma-separated list of cluster capacities such as "3, 3,4".
// Whitespace around parts is trimmed and empty parts are ignored. Returns an error
// when nothing remains or a part is not an integer.
func ParseCapacities(s string) ([]int, error) {
	var caps []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid capacity %q: %w", part, err)
		}
		caps = append(caps, n)
	}
	if len(caps) == 0 {
		return nil, fmt.Errorf("capacities cannot be empty")
	}
	return caps, nil
}

// FormatCapacities is the inverse of ParseCapacities.
func FormatCapacities(caps []int) string {
	parts := make([]string, len(caps))
	for i, c := range caps {
		parts[i] = strconv.Itoa(c)
	}
	return strings.Join(parts, ",")
}
