// Package policy is the access-policy layer every workflow operation consults
// before touching storage. It is stateless: role eligibility comes from the
// action table, ownership from a pure predicate over factory IDs.
package policy

import (
	"context"

	id "compliancehub/pkg/domain"
	dErrors "compliancehub/pkg/domain-errors"
	"compliancehub/pkg/requestcontext"
)

// Principal is the authenticated caller as the identity provider issued it.
type Principal struct {
	UserID    id.UserID
	Role      id.Role
	FactoryID id.FactoryID
}

// PrincipalFromContext assembles the principal the auth middleware stored.
// ok is false for unauthenticated requests.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	userID := requestcontext.UserID(ctx)
	role := requestcontext.Role(ctx)
	if userID.IsNil() || !role.IsValid() {
		return Principal{}, false
	}
	return Principal{UserID: userID, Role: role, FactoryID: requestcontext.FactoryID(ctx)}, true
}

// Action names an operation in the access table.
type Action string

const (
	ActionEvidenceCreate     Action = "evidence.create"
	ActionEvidenceAddVersion Action = "evidence.add_version"
	ActionEvidenceList       Action = "evidence.list"
	ActionEvidenceGet        Action = "evidence.get"
	ActionEvidenceDelete     Action = "evidence.delete"

	ActionRequestCreate      Action = "request.create"
	ActionRequestListMine    Action = "request.list_mine"
	ActionRequestListFactory Action = "request.list_factory"
	ActionRequestGet         Action = "request.get"
	ActionRequestFulfillItem Action = "request.fulfill_item"

	ActionAuditQuery Action = "audit.query"
)

// Scope says whose data an action touches.
type Scope string

const (
	// ScopeFactory actions read or write one factory's data; the caller must
	// carry a factory binding.
	ScopeFactory Scope = "factory"
	// ScopeBuyer actions are limited to the calling buyer's own requests.
	ScopeBuyer Scope = "buyer"
	// ScopeNone actions are not tenant-scoped.
	ScopeNone Scope = "none"
)

// Rule is one row of the access table.
type Rule struct {
	Roles []id.Role
	Scope Scope
}

// Rules is the Go mirror of the embedded rego action table. The rego is
// authoritative at runtime when the Engine is in use; tests keep both equal.
//
// request.get and audit.query are not tenant-scoped: any authenticated caller
// may read a request by id or query the audit trail.
var Rules = map[Action]Rule{
	ActionEvidenceCreate:     {Roles: []id.Role{id.RoleFactory}, Scope: ScopeFactory},
	ActionEvidenceAddVersion: {Roles: []id.Role{id.RoleFactory}, Scope: ScopeFactory},
	ActionEvidenceList:       {Roles: []id.Role{id.RoleFactory}, Scope: ScopeFactory},
	ActionEvidenceGet:        {Roles: []id.Role{id.RoleFactory}, Scope: ScopeFactory},
	ActionEvidenceDelete:     {Roles: []id.Role{id.RoleFactory}, Scope: ScopeFactory},

	ActionRequestCreate:      {Roles: []id.Role{id.RoleBuyer}, Scope: ScopeBuyer},
	ActionRequestListMine:    {Roles: []id.Role{id.RoleBuyer}, Scope: ScopeBuyer},
	ActionRequestListFactory: {Roles: []id.Role{id.RoleFactory}, Scope: ScopeFactory},
	ActionRequestFulfillItem: {Roles: []id.Role{id.RoleFactory}, Scope: ScopeFactory},
	ActionRequestGet:         {Roles: []id.Role{id.RoleBuyer, id.RoleFactory, id.RoleAdmin}, Scope: ScopeNone},

	ActionAuditQuery: {Roles: []id.Role{id.RoleBuyer, id.RoleFactory, id.RoleAdmin}, Scope: ScopeNone},
}

// Denial reasons.
const (
	ReasonRoleNotPermitted = "role_not_permitted"
	ReasonFactoryUnbound   = "factory_unbound"
	ReasonNotOwner         = "not_owner"
	ReasonUnknownAction    = "unknown_action"
	ReasonPolicyError      = "policy_error"
)

// Decision is Allowed or Denied(reason). The zero value is a denial.
type Decision struct {
	allowed bool
	reason  string
}

func Allowed() Decision { return Decision{allowed: true} }

func Denied(reason string) Decision { return Decision{reason: reason} }

func (d Decision) IsAllowed() bool { return d.allowed }

// Reason is empty for an allowed decision.
func (d Decision) Reason() string { return d.reason }

func (d Decision) String() string {
	if d.allowed {
		return "allowed"
	}
	return "denied(" + d.reason + ")"
}

// CanActAs allows the principal when its role is one of roles.
func CanActAs(p Principal, roles ...id.Role) Decision {
	for _, r := range roles {
		if p.Role == r {
			return Allowed()
		}
	}
	return Denied(ReasonRoleNotPermitted)
}

// OwnsResource allows only a bound principal whose factory matches the
// resource's. An empty principal factory never owns anything.
func OwnsResource(principalFactoryID, resourceFactoryID id.FactoryID) Decision {
	if principalFactoryID.IsZero() || principalFactoryID != resourceFactoryID {
		return Denied(ReasonNotOwner)
	}
	return Allowed()
}

// Authorizer decides whether a principal may attempt an action at all.
// Ownership of the specific resource is checked afterwards by the component.
type Authorizer interface {
	Authorize(ctx context.Context, action Action, p Principal) Decision
}

// ErrIllegalRoleForAction is returned by workflow operations when Authorize
// denies the call.
func ErrIllegalRoleForAction(action Action, d Decision) error {
	return dErrors.New(dErrors.CodeForbidden, "role not permitted for "+string(action)+": "+d.Reason())
}

// Require runs Authorize and converts a denial into ErrIllegalRoleForAction.
func Require(ctx context.Context, a Authorizer, action Action, p Principal) error {
	if d := a.Authorize(ctx, action, p); !d.IsAllowed() {
		return ErrIllegalRoleForAction(action, d)
	}
	return nil
}
