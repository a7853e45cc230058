package sharedkernel

import (
	"database/sql/driver"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
)

// Marshal encodes v as JSON.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal decodes JSON data into v.
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// MarshalIndent encodes v as indented JSON.
func MarshalIndent(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// JSONMap is a free-form JSON object stored in a jsonb/text column.
type JSONMap map[string]any

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(src any) error {
	if src == nil {
		*m = nil
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("jsonmap: unsupported source type %T", src)
	}
	if len(data) == 0 {
		*m = nil
		return nil
	}
	out := make(JSONMap)
	if err := json.Unmarshal(data, &out); err != nil {
		return errors.Join(errors.New("jsonmap: invalid json"), err)
	}
	*m = out
	return nil
}
