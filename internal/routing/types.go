// Package routing provides the core logic for attribute-based routing.
// It defines the attribute-query AST (a boolean tree of groups and leaf
// conditions over team attributes), the parser that validates the
// query-builder wire format, and a pure evaluator that decides whether a
// candidate's attribute assignments satisfy a route's logic.
package routing

// Combinator joins the children of a group node.
type Combinator string

const (
	// CombinatorAnd matches when every child matches.
	CombinatorAnd Combinator = "and"

	// CombinatorOr matches when at least one child matches.
	CombinatorOr Combinator = "or"
)

// Operator identifies the comparison a leaf condition performs.
// Unknown operators are rejected at parse time and again at evaluation
// time (fail closed), never silently treated as a match.
type Operator string

const (
	// OperatorSelectAnyIn matches when the candidate holds at least one of
	// the expected option values.
	OperatorSelectAnyIn Operator = "select_any_in"

	// OperatorSelectEquals matches when the candidate's option set is
	// exactly the expected set.
	OperatorSelectEquals Operator = "select_equals"

	// OperatorSelectNotEquals is the negation of OperatorSelectEquals.
	OperatorSelectNotEquals Operator = "select_not_equals"
)

// QueryNode is a tagged variant: exactly one of Group or Leaf is set.
// The parser guarantees this invariant; the evaluator rejects nodes that
// violate it instead of guessing.
type QueryNode struct {
	Group *GroupNode
	Leaf  *LeafNode
}

// GroupNode combines an ordered sequence of child nodes.
// A group with zero children evaluates to true (vacuous match) for BOTH
// combinators. This mirrors the upstream query-builder behavior and is
// covered explicitly by tests; do not "fix" it.
type GroupNode struct {
	Combinator Combinator
	Children   []QueryNode
}

// LeafNode is a single condition over one attribute field.
//
// Values holds the raw value tokens from the query: either attribute
// option ids, or dynamic references of the form "{field:<formFieldId>}"
// that are resolved against a form response before evaluation.
type LeafNode struct {
	// ID is the query-builder child key, kept for traceability.
	ID string

	// Field is the id of the attribute this condition inspects.
	Field string

	Operator Operator
	Values   []string
}

// Leaves returns every leaf condition in the tree in deterministic
// (depth-first, child-order) sequence.
func (n *QueryNode) Leaves() []LeafNode {
	if n == nil {
		return nil
	}
	if n.Leaf != nil {
		return []LeafNode{*n.Leaf}
	}
	if n.Group == nil {
		return nil
	}
	var leaves []LeafNode
	for i := range n.Group.Children {
		leaves = append(leaves, n.Group.Children[i].Leaves()...)
	}
	return leaves
}

// FilterByFieldRef returns a shallow copy of a group query keeping only the
// direct leaf children whose values reference the given routing-form field
// (a "{field:<id>}" token). It is used to restrict a route's logic to the
// sub-tree gated on one simulated response field.
//
// Only direct children are inspected, matching the upstream behavior:
// nested groups never carry dynamic field references in practice.
func (n *QueryNode) FilterByFieldRef(fieldID string) *QueryNode {
	if n == nil || n.Group == nil {
		return n
	}

	filtered := GroupNode{Combinator: n.Group.Combinator}
	for _, child := range n.Group.Children {
		if child.Leaf == nil {
			continue
		}
		if referencesField(child.Leaf.Values, fieldID) {
			filtered.Children = append(filtered.Children, child)
		}
	}
	return &QueryNode{Group: &filtered}
}

// Attribute is a team-scoped classification dimension (e.g., "Region").
type Attribute struct {
	ID               string
	TeamID           int64
	Name             string
	IsWeightsEnabled bool
}

// AttributeOption is one selectable value of an attribute.
// Value is the label used for rule matching and for the case-sensitive
// label join against routing-form field options.
type AttributeOption struct {
	ID          string
	AttributeID string
	Value       string
}

// FieldOption is one declared option of a routing-form field.
type FieldOption struct {
	ID    string
	Label string
}

// FormField is a field of a routing form. Its option labels bridge to
// AttributeOption values by exact, case-sensitive label equality; when no
// label matches, no binding occurs.
type FormField struct {
	ID      string
	Label   string
	Options []FieldOption
}

// RouteAction describes what a route does when it matches.
type RouteAction struct {
	// EventTypeID is the redirect target; zero means the route does not
	// redirect to an event type.
	EventTypeID int64

	// RedirectKind is the upstream action discriminator (e.g.,
	// "eventTypeRedirectUrl"). Kept verbatim for observability.
	RedirectKind string
}

// Route is one routing rule of a form.
type Route struct {
	ID     string
	Action RouteAction

	// AttributesQuery is the primary attribute logic; nil means the route
	// places no attribute constraint (every member matches).
	AttributesQuery *QueryNode

	// FallbackQuery is evaluated only when the primary logic yields zero
	// matches. Nil means no fallback is defined.
	FallbackQuery *QueryNode
}

// Form is a routing form with its fields and ordered route list.
type Form struct {
	ID     string
	TeamID int64
	Name   string
	Fields []FormField
	Routes []Route
}

// FieldByID resolves a routing-form field. The second return reports
// whether the field exists.
func (f *Form) FieldByID(id string) (FormField, bool) {
	for _, field := range f.Fields {
		if field.ID == id {
			return field, true
		}
	}
	return FormField{}, false
}

// ResponseValue is the answer given for a single routing-form field.
// Value is the id of the selected field option (single select only).
type ResponseValue struct {
	Label string
	Value string
}

// FormResponse maps routing-form field ids to their submitted values.
type FormResponse map[string]ResponseValue

// MemberContext maps attribute ids to the option ids assigned to one team
// member. It is the evaluation context a query tree is interpreted against.
type MemberContext map[string][]string
