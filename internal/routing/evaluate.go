package routing

// Evaluate interprets a query tree against one member's attribute context
// and reports whether the member satisfies the logic.
//
// It is a pure function: no side effects, and identical inputs always
// produce identical results. Leaf values must already be resolved to
// attribute option ids by the matching layer; dynamic field references
// are not understood here.
//
// A nil tree matches everything: a route without attribute logic places no
// constraint on the candidate set.
func Evaluate(node *QueryNode, member MemberContext) (bool, error) {
	matched, _, err := EvaluateWithTrace(node, member)
	return matched, err
}

// EvaluateWithTrace is Evaluate plus the ids of the leaf conditions that
// fired (matched) during evaluation, in deterministic child order. The
// trace is what lets callers explain a match decision to operators.
func EvaluateWithTrace(node *QueryNode, member MemberContext) (bool, []string, error) {
	if node == nil {
		return true, nil, nil
	}

	var trace []string
	matched, err := eval(node, member, &trace)
	if err != nil {
		return false, nil, err
	}
	return matched, trace, nil
}

func eval(node *QueryNode, member MemberContext, trace *[]string) (bool, error) {
	switch {
	case node.Leaf != nil:
		return evalLeaf(node.Leaf, member, trace)
	case node.Group != nil:
		return evalGroup(node.Group, member, trace)
	default:
		return false, &ConfigurationError{Reason: "query node has neither group nor leaf"}
	}
}

// evalGroup applies the combinator over the children.
//
// An empty group matches vacuously for BOTH combinators. For OR this is a
// deliberate deviation from the boolean identity (an empty disjunction is
// false): the upstream query-builder treats "no conditions" as "no
// constraint", and routes rely on that.
func evalGroup(group *GroupNode, member MemberContext, trace *[]string) (bool, error) {
	if len(group.Children) == 0 {
		return true, nil
	}

	switch group.Combinator {
	case CombinatorAnd:
		all := true
		for i := range group.Children {
			matched, err := eval(&group.Children[i], member, trace)
			if err != nil {
				return false, err
			}
			// Keep evaluating so the trace covers every fired leaf.
			all = all && matched
		}
		return all, nil

	case CombinatorOr:
		any := false
		for i := range group.Children {
			matched, err := eval(&group.Children[i], member, trace)
			if err != nil {
				return false, err
			}
			any = any || matched
		}
		return any, nil

	default:
		return false, &ConfigurationError{Reason: "unknown combinator " + string(group.Combinator)}
	}
}

func evalLeaf(leaf *LeafNode, member MemberContext, trace *[]string) (bool, error) {
	held := make(map[string]struct{}, len(member[leaf.Field]))
	for _, opt := range member[leaf.Field] {
		held[opt] = struct{}{}
	}

	var matched bool
	switch leaf.Operator {
	case OperatorSelectAnyIn:
		for _, v := range leaf.Values {
			if _, ok := held[v]; ok {
				matched = true
				break
			}
		}

	case OperatorSelectEquals:
		matched = setsEqual(leaf.Values, held)

	case OperatorSelectNotEquals:
		matched = !setsEqual(leaf.Values, held)

	default:
		// Fail closed. A route carrying this leaf contributes no matches.
		return false, &UnsupportedOperatorError{Operator: leaf.Operator}
	}

	if matched {
		*trace = append(*trace, leaf.ID)
	}
	return matched, nil
}

// setsEqual compares the expected value tokens (as a set, duplicates
// ignored) against the held option set.
func setsEqual(expected []string, held map[string]struct{}) bool {
	want := make(map[string]struct{}, len(expected))
	for _, v := range expected {
		want[v] = struct{}{}
	}
	if len(want) != len(held) {
		return false
	}
	for v := range want {
		if _, ok := held[v]; !ok {
			return false
		}
	}
	return true
}
