package routing

import (
	"errors"
	"fmt"
)

// ErrNotFieldRef reports that a value token is a plain literal, not a
// dynamic "{field:<id>}" reference. Callers walking mixed value lists skip
// these tokens; it is not a failure.
var ErrNotFieldRef = errors.New("routing: value is not a field reference")

// UnsupportedOperatorError reports a leaf condition using an operator the
// evaluator does not implement. The owning route fails closed: it
// contributes no matches rather than assuming a default.
type UnsupportedOperatorError struct {
	Operator Operator
}

func (e *UnsupportedOperatorError) Error() string {
	return fmt.Sprintf("routing: unsupported operator %q", e.Operator)
}

// ConfigurationError reports structurally invalid routing configuration:
// a leaf referencing an attribute that does not exist on the team, a
// malformed query payload, or a broken field reference. It aborts the
// computation for the offending route; sibling routes continue.
type ConfigurationError struct {
	// Field is the attribute or form-field id involved, when known.
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("routing: invalid configuration: %s", e.Reason)
	}
	return fmt.Sprintf("routing: invalid configuration for field %q: %s", e.Field, e.Reason)
}
