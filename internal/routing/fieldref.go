package routing

import "strings"

// fieldRefMarker introduces a dynamic reference to a routing-form field
// inside a rule value token. The full token shape is "{field:<fieldId>}":
// a single delimiter character on each side wrapping the marker and id.
const fieldRefMarker = "field:"

// DecodeFieldRef extracts the routing-form field id embedded in a value
// token.
//
// Plain literals (attribute option ids, or anything without the marker)
// return ErrNotFieldRef so callers can skip them. A token that carries the
// marker but no id is broken configuration and returns a
// *ConfigurationError rather than a silent nil.
func DecodeFieldRef(token string) (string, error) {
	if len(token) < 2 {
		return "", ErrNotFieldRef
	}

	// Strip exactly one delimiter character from each side.
	inner := token[1 : len(token)-1]

	idx := strings.Index(inner, fieldRefMarker)
	if idx < 0 {
		return "", ErrNotFieldRef
	}

	id := inner[idx+len(fieldRefMarker):]
	if id == "" {
		return "", &ConfigurationError{Reason: "field reference carries an empty field id"}
	}
	return id, nil
}

// referencesField reports whether any value token references the given
// routing-form field.
func referencesField(values []string, fieldID string) bool {
	needle := "{" + fieldRefMarker + fieldID + "}"
	for _, v := range values {
		if strings.Contains(v, needle) {
			return true
		}
	}
	return false
}
