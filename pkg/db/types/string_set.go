package dbtypes

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringSet is an unordered set of strings persisted as a JSON array. It backs
// group tags and the per-capability allow-lists.
type StringSet []string

func (s *StringSet) Scan(src any) error {
	if src == nil {
		*s = StringSet{}
		return nil
	}

	var raw []byte
	switch v := src.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("StringSet: unsupported Scan type %T", src)
	}

	if len(raw) == 0 {
		*s = StringSet{}
		return nil
	}

	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("StringSet: decode: %w", err)
	}
	*s = StringSet(out)
	return nil
}

func (s StringSet) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	buf, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(buf), nil
}

// Contains reports whether the set holds the exact value.
func (s StringSet) Contains(value string) bool {
	for _, entry := range s {
		if entry == value {
			return true
		}
	}
	return false
}
