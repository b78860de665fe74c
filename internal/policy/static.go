package policy

import "context"

// Static evaluates the Go action table. It is the fallback authorizer and the
// reference the rego policy is tested against.
type Static struct{}

func NewStatic() Static { return Static{} }

func (Static) Authorize(_ context.Context, action Action, p Principal) Decision {
	return Evaluate(Rules, action, p)
}

// Evaluate applies one access table to a principal.
func Evaluate(rules map[Action]Rule, action Action, p Principal) Decision {
	rule, ok := rules[action]
	if !ok {
		return Denied(ReasonUnknownAction)
	}
	if d := CanActAs(p, rule.Roles...); !d.IsAllowed() {
		return d
	}
	if rule.Scope == ScopeFactory && p.FactoryID.IsZero() {
		return Denied(ReasonFactoryUnbound)
	}
	return Allowed()
}
