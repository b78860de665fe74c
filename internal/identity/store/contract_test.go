package store_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"

	"compliancehub/internal/identity/models"
	"compliancehub/internal/identity/service"
	id "compliancehub/pkg/domain"
	"compliancehub/pkg/platform/sentinel"
)

// storeContract runs the same user store checks against every backend.
type storeContract struct {
	suite.Suite
	ctx   context.Context
	store service.Store
}

var baseTime = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func (s *storeContract) newUser(email string, role id.Role, factory id.FactoryID) *models.User {
	u, err := models.NewUser(models.RegisterInput{
		Email:     email,
		FirstName: "Jane",
		LastName:  "Doe",
		Role:      role,
		FactoryID: factory,
	}, "$2a$04$hash", baseTime)
	s.Require().NoError(err)
	return u
}

func (s *storeContract) TestLookupBehavior() {
	user := s.newUser("jane.doe@example.com", id.RoleFactory, "F001")
	s.Require().NoError(s.store.Create(s.ctx, user))

	s.Run("returns user by ID when exists", func() {
		found, err := s.store.FindByID(s.ctx, user.ID)
		s.Require().NoError(err)
		s.Equal(user.ID, found.ID)
		s.Equal("jane.doe@example.com", found.Email)
		s.Equal(id.RoleFactory, found.Role)
		s.Equal(id.FactoryID("F001"), found.FactoryID)
		s.True(found.IsActive)
		s.True(found.CreatedAt.Equal(baseTime))
	})

	s.Run("returns user by email ignoring case", func() {
		found, err := s.store.FindByEmail(s.ctx, "Jane.Doe@Example.COM")
		s.Require().NoError(err)
		s.Equal(user.ID, found.ID)
	})

	s.Run("returns ErrNotFound when user ID does not exist", func() {
		_, err := s.store.FindByID(s.ctx, id.NewUserID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returns ErrNotFound when email does not exist", func() {
		_, err := s.store.FindByEmail(s.ctx, "missing@example.com")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *storeContract) TestDuplicateEmailConflicts() {
	s.Require().NoError(s.store.Create(s.ctx, s.newUser("dup@example.com", id.RoleBuyer, "")))

	err := s.store.Create(s.ctx, s.newUser("DUP@example.com", id.RoleBuyer, ""))
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *storeContract) TestNonFactoryUserHasNoFactory() {
	user := s.newUser("buyer@example.com", id.RoleBuyer, "")
	s.Require().NoError(s.store.Create(s.ctx, user))

	found, err := s.store.FindByID(s.ctx, user.ID)
	s.Require().NoError(err)
	s.True(found.FactoryID.IsZero())
}

func (s *storeContract) TestInactiveFlagPersists() {
	user := s.newUser("inactive@example.com", id.RoleBuyer, "")
	user.IsActive = false
	s.Require().NoError(s.store.Create(s.ctx, user))

	found, err := s.store.FindByEmail(s.ctx, user.Email)
	s.Require().NoError(err)
	s.False(found.IsActive)
}
