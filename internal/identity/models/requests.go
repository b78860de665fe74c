package models

import (
	"strings"

	"github.com/asaskevich/govalidator"

	id "compliancehub/pkg/domain"
	dErrors "compliancehub/pkg/domain-errors"
)

const minPasswordLength = 6

// RegisterRequest is the body of POST /auth/register. Role defaults to buyer.
// Missing names are derived from the email's local part.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role,omitempty"`
	FactoryID string `json:"factoryId,omitempty"`

	role      id.Role
	factoryID id.FactoryID
}

func (r *RegisterRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Role = strings.TrimSpace(r.Role)
	r.FactoryID = strings.TrimSpace(r.FactoryID)
	if r.FirstName == "" && r.LastName == "" && r.Email != "" {
		r.FirstName, r.LastName = NamesFromEmail(r.Email)
	}
}

func (r *RegisterRequest) Validate() error {
	if err := validateCredentials(r.Email, r.Password); err != nil {
		return err
	}
	if len(r.Password) < minPasswordLength {
		return dErrors.New(dErrors.CodeValidation, "password must be at least 6 characters")
	}
	if !govalidator.StringLength(r.FirstName, "0", "100") || !govalidator.StringLength(r.LastName, "0", "100") {
		return dErrors.New(dErrors.CodeValidation, "names must be at most 100 characters")
	}

	r.role = id.RoleBuyer
	if r.Role != "" {
		role, err := id.ParseRole(r.Role)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "role must be one of buyer, factory, admin")
		}
		r.role = role
	}
	if r.FactoryID != "" {
		factoryID, err := id.ParseFactoryID(r.FactoryID)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		r.factoryID = factoryID
	}
	return nil
}

func (r *RegisterRequest) Input() RegisterInput {
	return RegisterInput{
		Email:     r.Email,
		Password:  r.Password,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Role:      r.role,
		FactoryID: r.factoryID,
	}
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
}

func (r *LoginRequest) Validate() error {
	return validateCredentials(r.Email, r.Password)
}

func (r *LoginRequest) Input() LoginInput {
	return LoginInput{Email: r.Email, Password: r.Password}
}

func validateCredentials(address, password string) error {
	if address == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if !govalidator.StringLength(address, "1", "255") || !govalidator.IsEmail(address) {
		return dErrors.New(dErrors.CodeValidation, "email must be a valid email address")
	}
	if password == "" {
		return dErrors.New(dErrors.CodeValidation, "password is required")
	}
	if len(password) > 72 {
		return dErrors.New(dErrors.CodeValidation, "password is too long")
	}
	return nil
}
