// Package models holds the user account types shared by the identity service,
// its stores and its HTTP handler.
package models

import (
	"strings"
	"time"

	id "compliancehub/pkg/domain"
	dErrors "compliancehub/pkg/domain-errors"
)

var (
	ErrEmailTaken         = dErrors.New(dErrors.CodeConflict, "user with this email already exists")
	ErrFactoryIDRequired  = dErrors.New(dErrors.CodeBadRequest, "factory ID is required for factory role")
	ErrInvalidCredentials = dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	ErrDeactivated        = dErrors.New(dErrors.CodeUnauthorized, "user account is deactivated")
	ErrUserUnavailable    = dErrors.New(dErrors.CodeUnauthorized, "user not found or inactive")
)

// User is a registered account. Email is stored lower-cased and is unique.
type User struct {
	ID           id.UserID
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         id.Role
	// FactoryID is only set for the factory role.
	FactoryID id.FactoryID
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NormalizeEmail is the canonical form used for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewUser builds an active account. A factory user must carry a factory ID;
// any factory ID given for another role is dropped.
func NewUser(in RegisterInput, passwordHash string, now time.Time) (*User, error) {
	factoryID := in.FactoryID
	if in.Role == id.RoleFactory {
		if factoryID.IsZero() {
			return nil, ErrFactoryIDRequired
		}
	} else {
		factoryID = ""
	}
	return &User{
		ID:           id.NewUserID(),
		Email:        NormalizeEmail(in.Email),
		PasswordHash: passwordHash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         in.Role,
		FactoryID:    factoryID,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      id.Role
	FactoryID id.FactoryID
}

type LoginInput struct {
	Email    string
	Password string
}

// UserView is the public shape of a user.
type UserView struct {
	ID        id.UserID    `json:"id"`
	Email     string       `json:"email"`
	FirstName string       `json:"firstName"`
	LastName  string       `json:"lastName"`
	Role      id.Role      `json:"role"`
	FactoryID id.FactoryID `json:"factoryId,omitempty"`
}

func (u *User) View() UserView {
	return UserView{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		FactoryID: u.FactoryID,
	}
}

// AuthResult is returned by register and login.
type AuthResult struct {
	AccessToken string   `json:"accessToken"`
	User        UserView `json:"user"`
}
