// Package template renders synthetic request payloads: ${var} and
// ${env:VAR} substitution, built-in generator functions, and JSONPath
// extraction from response bodies.
package template

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"apidiff/internal/core"
)

// AppIDVar is the variable name request templates use for the allocated
// application identifier: ${appid}.
const AppIDVar = "appid"

// varPattern matches ${var}, ${env:VAR} and ${fn(args)} placeholders.
var varPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Substitute replaces all placeholders in text. Resolution order:
// built-in function call, environment variable, named variable. Returns
// all errors joined if multiple placeholders fail to resolve. Text without
// placeholders is returned unchanged (fast path).
func Substitute(text string, vars core.Variables) (string, error) {
	if !strings.Contains(text, "${") {
		return text, nil
	}

	var errs []error
	result := varPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := match[2 : len(match)-1] // content between ${ and }

		if val, isFn, err := evalFunction(name); isFn {
			if err != nil {
				errs = append(errs, err)
				return match
			}
			return val
		}

		if strings.HasPrefix(name, "env:") {
			envName := name[4:]
			if val, ok := os.LookupEnv(envName); ok {
				return val
			}
			errs = append(errs, fmt.Errorf("env var %q not set", envName))
			return match
		}

		if val, ok := vars.Get(name); ok {
			return fmt.Sprintf("%v", val)
		}
		errs = append(errs, fmt.Errorf("variable %q not found", name))
		return match
	})

	if len(errs) > 0 {
		return "", errors.Join(errs...)
	}
	return result, nil
}

// SubstituteMap applies substitution to all values in a map, typically
// request headers. Returns all errors joined if any value fails.
func SubstituteMap(m map[string]string, vars core.Variables) (map[string]string, error) {
	if m == nil {
		return nil, nil
	}

	result := make(map[string]string, len(m))
	var errs []error

	for k, v := range m {
		substituted, err := Substitute(v, vars)
		if err != nil {
			errs = append(errs, fmt.Errorf("value %q: %w", k, err))
			continue
		}
		result[k] = substituted
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return result, nil
}
