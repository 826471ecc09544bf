package permissions

// Decision is the kind of a Policy.
type Decision int

const (
	DecisionDeny Decision = iota
	DecisionAllow
	DecisionEvaluate
)

// String returns the decision name used in logs and metrics
func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionEvaluate:
		return "evaluate"
	default:
		return "deny"
	}
}

// Policy is the permission attached to a type or field. The zero value denies.
type Policy struct {
	decision Decision
	rule     *Rule
}

// Allow permits access unconditionally.
func Allow() Policy { return Policy{decision: DecisionAllow} }

// Deny refuses access unconditionally.
func Deny() Policy { return Policy{decision: DecisionDeny} }

// Evaluate defers to rule. A nil rule denies.
func Evaluate(rule *Rule) Policy {
	if rule == nil {
		return Deny()
	}
	return Policy{decision: DecisionEvaluate, rule: rule}
}

// Decision returns the policy kind
func (p Policy) Decision() Decision { return p.decision }

// Rule returns the rule of an Evaluate policy, nil otherwise
func (p Policy) Rule() *Rule { return p.rule }

// Map binds policies to schema types and fields. A field entry wins
// over its type entry.
type Map struct {
	Types  map[string]Policy
	Fields map[FieldRef]Policy
}

// Lookup returns the policy for field and whether one was configured.
func (m Map) Lookup(field FieldRef) (Policy, bool) {
	if p, ok := m.Fields[field]; ok {
		return p, true
	}
	if p, ok := m.Types[field.Type]; ok {
		return p, true
	}
	return Policy{}, false
}
