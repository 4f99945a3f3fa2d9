package postgresql

import (
	"encoding/json"
	"fmt"
)

// marshalJSONB serializes a value for a JSONB column. Nil values map to SQL
// NULL rather than the JSON literal "null".
func marshalJSONB(value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal jsonb value: %w", err)
	}

	return data, nil
}

// unmarshalJSONB deserializes a JSONB column into target, leaving target
// untouched for NULL columns.
func unmarshalJSONB(data []byte, target any) error {
	if len(data) == 0 {
		return nil
	}

	err := json.Unmarshal(data, target)
	if err != nil {
		return fmt.Errorf("failed to unmarshal jsonb value: %w", err)
	}

	return nil
}
