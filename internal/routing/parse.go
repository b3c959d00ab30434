package routing

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Wire-format node types of the query-builder payload.
const (
	rawTypeGroup = "group"
	rawTypeRule  = "rule"
)

// rawNode mirrors the JSON structure stored in the routes column.
// Children1 is a map keyed by opaque child ids; the original tool relies on
// object insertion order, which JSON does not preserve, so we sort the keys
// to keep parsing deterministic.
type rawNode struct {
	Type       string             `json:"type"`
	Properties rawProperties      `json:"properties"`
	Children1  map[string]rawNode `json:"children1"`
}

type rawProperties struct {
	Conjunction string          `json:"conjunction"`
	Field       string          `json:"field"`
	Operator    string          `json:"operator"`
	Value       json.RawMessage `json:"value"`
}

// ParseQuery decodes and validates a query-builder payload into the typed
// AST. It must be called at the storage boundary, before evaluation, so
// that malformed operator/value combinations are rejected up front instead
// of being tolerated at runtime.
//
// Failures are classified: unknown operators return
// *UnsupportedOperatorError, everything else structural returns
// *ConfigurationError.
func ParseQuery(raw json.RawMessage) (*QueryNode, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var root rawNode
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("malformed query payload: %v", err)}
	}

	return parseNode("", root)
}

// parseNode converts one wire node, carrying the child key as the leaf id.
func parseNode(id string, raw rawNode) (*QueryNode, error) {
	switch raw.Type {
	case rawTypeGroup, "": // tolerate a missing type on the root group
		return parseGroup(raw)
	case rawTypeRule:
		return parseRule(id, raw)
	default:
		return nil, &ConfigurationError{Reason: fmt.Sprintf("unknown query node type %q", raw.Type)}
	}
}

func parseGroup(raw rawNode) (*QueryNode, error) {
	group := GroupNode{Combinator: parseConjunction(raw.Properties.Conjunction)}

	// Deterministic child order regardless of map iteration.
	keys := make([]string, 0, len(raw.Children1))
	for k := range raw.Children1 {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		child, err := parseNode(key, raw.Children1[key])
		if err != nil {
			return nil, err
		}
		group.Children = append(group.Children, *child)
	}

	return &QueryNode{Group: &group}, nil
}

func parseRule(id string, raw rawNode) (*QueryNode, error) {
	if raw.Properties.Field == "" {
		return nil, &ConfigurationError{Reason: "rule node is missing a field id"}
	}

	op := Operator(raw.Properties.Operator)
	switch op {
	case OperatorSelectAnyIn, OperatorSelectEquals, OperatorSelectNotEquals:
	default:
		return nil, &UnsupportedOperatorError{Operator: op}
	}

	values, err := parseValues(raw.Properties.Value)
	if err != nil {
		return nil, &ConfigurationError{
			Field:  raw.Properties.Field,
			Reason: fmt.Sprintf("malformed rule value: %v", err),
		}
	}

	return &QueryNode{Leaf: &LeafNode{
		ID:       id,
		Field:    raw.Properties.Field,
		Operator: op,
		Values:   values,
	}}, nil
}

// parseConjunction maps the wire conjunction ("AND"/"OR", any casing) to a
// Combinator. Missing conjunctions default to AND, matching upstream.
func parseConjunction(s string) Combinator {
	if strings.EqualFold(s, string(CombinatorOr)) || strings.EqualFold(s, "OR") {
		return CombinatorOr
	}
	return CombinatorAnd
}

// parseValues flattens the wire value shape. The query-builder emits an
// array whose elements are either strings or arrays of strings
// (multi-select); both collapse into one ordered token list.
func parseValues(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var outer []json.RawMessage
	if err := json.Unmarshal(raw, &outer); err != nil {
		return nil, fmt.Errorf("value must be an array: %w", err)
	}

	var values []string
	for _, elem := range outer {
		var s string
		if err := json.Unmarshal(elem, &s); err == nil {
			values = append(values, s)
			continue
		}

		var nested []string
		if err := json.Unmarshal(elem, &nested); err != nil {
			return nil, fmt.Errorf("value entry is neither a string nor a string array")
		}
		values = append(values, nested...)
	}

	return values, nil
}
