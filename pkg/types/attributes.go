package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Attributes is a flexible key/value map persisted as JSONB.
type Attributes map[string]string

// Value marshals the map into JSON for the database.
func (a Attributes) Value() (driver.Value, error) {
	if a == nil {
		return "{}", nil
	}
	buf, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(buf), nil
}

// Scan decodes JSONB into the map.
func (a *Attributes) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("attributes: unsupported scan type %T", value)
	}

	result := make(Attributes)
	if err := json.Unmarshal(raw, &result); err != nil {
		return err
	}
	*a = result
	return nil
}
