package service

import (
	"context"
	"errors"

	"compliancehub/internal/identity/models"
	id "compliancehub/pkg/domain"
	dErrors "compliancehub/pkg/domain-errors"
	"compliancehub/pkg/platform/sentinel"
)

// SeedPassword is shared by every seeded account.
const SeedPassword = "password123"

// SeedUsers are the demo accounts created by the seed command.
var SeedUsers = []models.RegisterInput{
	{Email: "admin@example.com", FirstName: "Admin", LastName: "User", Role: id.RoleAdmin},
	{Email: "buyer@example.com", FirstName: "John", LastName: "Buyer", Role: id.RoleBuyer},
	{Email: "buyer2@example.com", FirstName: "Jane", LastName: "Purchaser", Role: id.RoleBuyer},
	{Email: "factory1@example.com", FirstName: "Factory", LastName: "One", Role: id.RoleFactory, FactoryID: "F001"},
	{Email: "factory2@example.com", FirstName: "Factory", LastName: "Two", Role: id.RoleFactory, FactoryID: "F002"},
}

// Seed registers the demo accounts that do not exist yet and returns how many
// were created. Running it twice creates nothing the second time.
func (s *Service) Seed(ctx context.Context) (int, error) {
	created := 0
	for _, in := range SeedUsers {
		_, err := s.store.FindByEmail(ctx, in.Email)
		if err == nil {
			continue
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return created, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up seed user")
		}
		in.Password = SeedPassword
		if _, err := s.Register(ctx, in); err != nil {
			if errors.Is(err, models.ErrEmailTaken) {
				continue
			}
			return created, err
		}
		created++
		s.logger.InfoContext(ctx, "seeded user", "email", in.Email, "role", string(in.Role))
	}
	return created, nil
}
