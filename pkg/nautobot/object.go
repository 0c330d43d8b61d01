package nautobot

import (
	"encoding/json"
	"fmt"
)

// Object is a decoded JSON response body. The engine only ever needs the
// opaque id and the human-readable display string, but the full body is kept
// for diagnostics.
type Object map[string]any

// ID returns the object's identifier as a string. Nautobot returns UUIDs,
// but numeric ids are tolerated for test doubles.
func (o Object) ID() string {
	switch v := o["id"].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return fmt.Sprintf("%.0f", v)
	case int:
		return fmt.Sprintf("%d", v)
	default:
		return ""
	}
}

// Display returns the object's display string, falling back to its name.
func (o Object) Display() string {
	if s, ok := o["display"].(string); ok && s != "" {
		return s
	}
	if s, ok := o["name"].(string); ok {
		return s
	}
	return ""
}
