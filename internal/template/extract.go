package template

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Valid reports whether body is well-formed JSON. Generated payloads are
// checked before dispatch so a bad template fails fast rather than as N
// request errors.
func Valid(body []byte) bool {
	return gjson.ValidBytes(body)
}

// Extract pulls values out of a JSON body using JSONPath expressions
// ($.foo.bar, converted internally to gjson form). rules maps variable
// names to paths. Returns all errors joined if multiple extractions fail.
func Extract(body []byte, rules map[string]string) (map[string]any, error) {
	if len(rules) == 0 {
		return nil, nil
	}

	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid JSON in response body")
	}

	result := make(map[string]any, len(rules))
	var errs []error

	for varName, jsonPath := range rules {
		value := gjson.GetBytes(body, convertJSONPath(jsonPath))
		if !value.Exists() {
			errs = append(errs, fmt.Errorf("path %q not found for variable %q", jsonPath, varName))
			continue
		}
		result[varName] = value.Value()
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return result, nil
}

// ExtractString returns the string form of the value at a JSONPath, or
// "" when the path does not resolve. Used to tally decision fields from
// response bodies.
func ExtractString(body []byte, jsonPath string) string {
	if jsonPath == "" || !gjson.ValidBytes(body) {
		return ""
	}
	value := gjson.GetBytes(body, convertJSONPath(jsonPath))
	if !value.Exists() {
		return ""
	}
	return value.String()
}

// convertJSONPath converts JSONPath syntax to gjson path format.
// $.foo.bar -> foo.bar
// $.items[0].id -> items.0.id
// $.data[*].name -> data.#.name
func convertJSONPath(path string) string {
	if strings.HasPrefix(path, "$.") {
		path = path[2:]
	} else if strings.HasPrefix(path, "$") {
		path = path[1:]
	}

	var result strings.Builder
	i := 0
	for i < len(path) {
		if path[i] == '[' {
			j := i + 1
			for j < len(path) && path[j] != ']' {
				j++
			}
			if j < len(path) {
				content := path[i+1 : j]
				if content == "*" {
					result.WriteString(".#")
				} else {
					result.WriteByte('.')
					result.WriteString(content)
				}
				i = j + 1
				continue
			}
		}
		result.WriteByte(path[i])
		i++
	}

	return result.String()
}
