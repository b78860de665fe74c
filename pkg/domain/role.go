package domain

import (
	"strings"

	dErrors "compliancehub/pkg/domain-errors"
)

// Role is the coarse actor class carried by every principal.
type Role string

const (
	RoleBuyer   Role = "buyer"
	RoleFactory Role = "factory"
	RoleAdmin   Role = "admin"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleBuyer, RoleFactory, RoleAdmin:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// ParseRole accepts role names case-insensitively.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "role must be one of buyer, factory, admin")
	}
	return r, nil
}
