package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// NameList is an ordered list of file names stored as a JSON array in a
// TEXT column. It implements sql.Scanner and driver.Valuer so it converts
// seamlessly between []string and the column value.
type NameList []string

// Scan implements the sql.Scanner interface.
func (n *NameList) Scan(value any) error {
	if value == nil {
		*n = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return errors.New("unsupported type for NameList")
	}

	if len(data) == 0 {
		*n = NameList{}
		return nil
	}

	return json.Unmarshal(data, n)
}

// Value implements the driver.Valuer interface.
func (n NameList) Value() (driver.Value, error) {
	if len(n) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(n)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
