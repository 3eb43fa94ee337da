package models

import (
	"encoding/json"
	"errors"
)

// OdooString is a string that also accepts Odoo's `false` for an unset text
// field. Acknowledgment fields go through it.
type OdooString string

// UnmarshalJSON accepts a JSON string or `false`
func (os *OdooString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*os = OdooString(s)
		return nil
	}

	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		if b {
			return errors.New("OdooString: unexpected true for a text field")
		}
		*os = ""
		return nil
	}

	return errors.New("OdooString: cannot unmarshal value into string")
}

// OdooStringFromXMLRPC converts a decoded XML-RPC value (string, false or nil)
func OdooStringFromXMLRPC(v interface{}) (OdooString, bool) {
	switch val := v.(type) {
	case nil:
		return "", true
	case string:
		return OdooString(val), true
	case bool:
		if !val {
			return "", true
		}
	}
	return "", false
}

// String returns native string value
func (os OdooString) String() string {
	return string(os)
}
