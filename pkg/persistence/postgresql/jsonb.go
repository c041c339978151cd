package postgresql

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// jsonbValue wraps a Go value for writing into a JSONB column. Nil values
// are stored as SQL NULL.
func jsonbValue(v any) (driver.Value, error) {
	if v == nil {
		return nil, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode jsonb value: %w", err)
	}

	return data, nil
}

// scanJSONB decodes a JSONB column into target, tolerating NULL.
func scanJSONB(data []byte, target any) error {
	if len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to decode jsonb value: %w", err)
	}

	return nil
}
