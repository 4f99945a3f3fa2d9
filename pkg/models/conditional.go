// Package models provides condition coercion for workflow step expressions.
package models

import (
	"fmt"
	"strconv"
)

// CoerceBool converts an evaluated condition value to a boolean. Conditions
// are rendered against the execution context first; the rendered value lands
// here. Nil and the empty string are vacuously true so that steps without a
// condition always run.
func CoerceBool(value any) (bool, error) {
	if value == nil {
		return true, nil
	}

	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		if v == "" {
			return true, nil
		}

		result, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("cannot convert string %q to boolean: %w", v, err)
		}

		return result, nil
	case int:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	default:
		return false, fmt.Errorf("cannot convert %T to boolean", value)
	}
}
