package compare

import "reflect"

// countFields counts the fields in a nested structure: every scalar is one
// field, every container contributes its length plus its children.
//
// Network-decoded JSON trees are acyclic, but the counter guards against
// reference cycles with an identity-visited set so it cannot hang if
// handed a self-referential value.
func countFields(v any, visited map[uintptr]struct{}) int {
	if visited == nil {
		visited = make(map[uintptr]struct{})
	}

	switch val := v.(type) {
	case map[string]any:
		if len(val) == 0 {
			return 0
		}
		ptr := reflect.ValueOf(val).Pointer()
		if _, seen := visited[ptr]; seen {
			return 0
		}
		visited[ptr] = struct{}{}

		count := len(val)
		for _, child := range val {
			count += countFields(child, visited)
		}
		return count

	case []any:
		if len(val) == 0 {
			return 0
		}
		ptr := reflect.ValueOf(val).Pointer()
		if _, seen := visited[ptr]; seen {
			return 0
		}
		visited[ptr] = struct{}{}

		count := len(val)
		for _, child := range val {
			count += countFields(child, visited)
		}
		return count

	default:
		return 1
	}
}
