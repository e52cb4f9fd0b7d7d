// Package criteria maintains deduplicated, insertion-ordered sets of
// free-text acceptance criteria. Functions never mutate their input.
package criteria

import "strings"

// Add appends the trimmed value unless it is empty or already present
// (case-sensitive exact match). Adding twice equals adding once.
func Add(set []string, value string) []string {
	v := strings.TrimSpace(value)
	if v == "" {
		return set
	}
	for _, existing := range set {
		if existing == v {
			return set
		}
	}
	out := make([]string, len(set), len(set)+1)
	copy(out, set)
	return append(out, v)
}

// RemoveAt drops the element at index. An out-of-bounds index returns the
// set unchanged.
func RemoveAt(set []string, index int) []string {
	if index < 0 || index >= len(set) {
		return set
	}
	out := make([]string, 0, len(set)-1)
	out = append(out, set[:index]...)
	return append(out, set[index+1:]...)
}

// Union folds both sets through Add, deduplicating while preserving
// first-insertion order.
func Union(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	for _, v := range a {
		out = Add(out, v)
	}
	for _, v := range b {
		out = Add(out, v)
	}
	return out
}
