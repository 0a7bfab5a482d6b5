// Package utils provides utility functions for the application.
package utils

import (
	"strconv"
	"strings"
)

func ToPtr[T any](v T) *T {
	return &v
}

// ParseIDList parses a comma separated list of non-negative integer ids.
// Blank entries are ignored, duplicates are dropped while keeping order.
func ParseIDList(raw string) ([]int64, error) {
	var ids []int64
	seen := make(map[int64]struct{})
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id < 0 {
			return nil, &InvalidIDError{Value: part}
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// JoinIDs renders ids as a comma separated list
func JoinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// InvalidIDError reports an id list entry that is not a non-negative integer
type InvalidIDError struct {
	Value string
}

func (e *InvalidIDError) Error() string {
	return "invalid id: " + strconv.Quote(e.Value)
}
