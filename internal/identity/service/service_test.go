package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"compliancehub/internal/identity/lockout"
	"compliancehub/internal/identity/metrics"
	"compliancehub/internal/identity/models"
	"compliancehub/internal/identity/service"
	"compliancehub/internal/identity/store"
	jwttoken "compliancehub/internal/jwt_token"
	id "compliancehub/pkg/domain"
	dErrors "compliancehub/pkg/domain-errors"
	"compliancehub/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	store   *store.Memory
	tokens  *jwttoken.JWTService
	metrics *metrics.Metrics
	service *service.Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewMemory()
	s.tokens = jwttoken.NewJWTService("test-secret", "compliancehub", time.Hour)
	s.metrics = metrics.NewWith(prometheus.NewRegistry())
	s.service = service.New(s.store, s.tokens,
		service.WithHashCost(bcrypt.MinCost),
		service.WithMetrics(s.metrics),
	)
}

func (s *ServiceSuite) register(in models.RegisterInput) *models.AuthResult {
	res, err := s.service.Register(s.ctx, in)
	s.Require().NoError(err)
	return res
}

func (s *ServiceSuite) TestRegister() {
	s.Run("factory user keeps factory id and gets a token", func() {
		res := s.register(models.RegisterInput{
			Email: "factory@example.com", Password: "password123",
			FirstName: "Factory", LastName: "User",
			Role: id.RoleFactory, FactoryID: "F001",
		})
		s.Equal(id.FactoryID("F001"), res.User.FactoryID)

		claims, err := s.tokens.ValidateToken(res.AccessToken)
		s.Require().NoError(err)
		s.Equal(res.User.ID.String(), claims.Subject)
		s.Equal("factory", claims.Role)
		s.Equal("F001", claims.FactoryID)

		stored, err := s.store.FindByID(s.ctx, res.User.ID)
		s.Require().NoError(err)
		s.NotEqual("password123", stored.PasswordHash)
		s.NoError(bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("password123")))
	})

	s.Run("factory id is dropped for buyers", func() {
		res := s.register(models.RegisterInput{
			Email: "buyer@example.com", Password: "password123",
			Role: id.RoleBuyer, FactoryID: "F001",
		})
		s.True(res.User.FactoryID.IsZero())
	})

	s.Run("factory role without factory id is a bad request", func() {
		_, err := s.service.Register(s.ctx, models.RegisterInput{
			Email: "nofactory@example.com", Password: "password123", Role: id.RoleFactory,
		})
		s.Require().ErrorIs(err, models.ErrFactoryIDRequired)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("duplicate email conflicts regardless of case", func() {
		_, err := s.service.Register(s.ctx, models.RegisterInput{
			Email: "Buyer@Example.com", Password: "password123", Role: id.RoleBuyer,
		})
		s.Require().ErrorIs(err, models.ErrEmailTaken)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Equal(2.0, testutil.ToFloat64(s.metrics.Registrations))
}

func (s *ServiceSuite) TestLogin() {
	registered := s.register(models.RegisterInput{
		Email: "buyer@example.com", Password: "password123", Role: id.RoleBuyer,
	})

	s.Run("valid credentials return a token", func() {
		res, err := s.service.Login(s.ctx, models.LoginInput{Email: "buyer@example.com", Password: "password123"})
		s.Require().NoError(err)
		s.Equal(registered.User.ID, res.User.ID)
		s.NotEmpty(res.AccessToken)
	})

	s.Run("wrong password", func() {
		_, err := s.service.Login(s.ctx, models.LoginInput{Email: "buyer@example.com", Password: "nope-nope"})
		s.Require().ErrorIs(err, models.ErrInvalidCredentials)
	})

	s.Run("unknown email", func() {
		_, err := s.service.Login(s.ctx, models.LoginInput{Email: "ghost@example.com", Password: "password123"})
		s.Require().ErrorIs(err, models.ErrInvalidCredentials)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("deactivated account", func() {
		u, err := models.NewUser(models.RegisterInput{Email: "old@example.com", Role: id.RoleBuyer}, registeredHash(s), time.Now())
		s.Require().NoError(err)
		u.IsActive = false
		s.Require().NoError(s.store.Create(s.ctx, u))

		_, err = s.service.Login(s.ctx, models.LoginInput{Email: "old@example.com", Password: "password123"})
		s.Require().ErrorIs(err, models.ErrDeactivated)
	})

	s.Equal(1.0, testutil.ToFloat64(s.metrics.Logins))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.LoginFailures.WithLabelValues("bad_password")))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.LoginFailures.WithLabelValues("deactivated")))
}

func (s *ServiceSuite) TestLoginLockout() {
	s.service = service.New(s.store, s.tokens,
		service.WithHashCost(bcrypt.MinCost),
		service.WithMetrics(s.metrics),
		service.WithLoginGuard(lockout.New(lockout.NewMemoryStore(), lockout.Config{Attempts: 2, Window: time.Minute}, nil)),
	)
	s.register(models.RegisterInput{Email: "buyer@example.com", Password: "password123", Role: id.RoleBuyer})
	ctx := requestcontext.WithClientMetadata(s.ctx, "10.0.0.1", "test")

	s.Run("success resets the counter", func() {
		_, err := s.service.Login(ctx, models.LoginInput{Email: "buyer@example.com", Password: "wrong-one"})
		s.Require().ErrorIs(err, models.ErrInvalidCredentials)
		_, err = s.service.Login(ctx, models.LoginInput{Email: "buyer@example.com", Password: "password123"})
		s.Require().NoError(err)
	})

	s.Run("locks after repeated failures even with the right password", func() {
		for range 2 {
			_, err := s.service.Login(ctx, models.LoginInput{Email: "buyer@example.com", Password: "wrong-one"})
			s.Require().ErrorIs(err, models.ErrInvalidCredentials)
		}
		_, err := s.service.Login(ctx, models.LoginInput{Email: "buyer@example.com", Password: "password123"})
		s.Require().ErrorIs(err, lockout.ErrLocked)
		s.True(dErrors.HasCode(err, dErrors.CodeRateLimited))
		s.Equal(1.0, testutil.ToFloat64(s.metrics.LoginFailures.WithLabelValues("locked")))
	})

	s.Run("another address can still log in", func() {
		other := requestcontext.WithClientMetadata(s.ctx, "10.0.0.2", "test")
		_, err := s.service.Login(other, models.LoginInput{Email: "buyer@example.com", Password: "password123"})
		s.NoError(err)
	})
}

func registeredHash(s *ServiceSuite) string {
	u, err := s.store.FindByEmail(s.ctx, "buyer@example.com")
	s.Require().NoError(err)
	return u.PasswordHash
}

func (s *ServiceSuite) TestProfile() {
	res := s.register(models.RegisterInput{
		Email: "factory1@example.com", Password: "password123",
		FirstName: "Factory", LastName: "One", Role: id.RoleFactory, FactoryID: "F001",
	})

	profile, err := s.service.Profile(s.ctx, res.User.ID)
	s.Require().NoError(err)
	s.Equal("factory1@example.com", profile.Email)
	s.Equal("One", profile.LastName)

	_, err = s.service.Profile(s.ctx, id.NewUserID())
	s.Require().ErrorIs(err, models.ErrUserUnavailable)
}

func (s *ServiceSuite) TestSeedIsIdempotent() {
	created, err := s.service.Seed(s.ctx)
	s.Require().NoError(err)
	s.Equal(len(service.SeedUsers), created)

	created, err = s.service.Seed(s.ctx)
	s.Require().NoError(err)
	s.Zero(created)

	res, err := s.service.Login(s.ctx, models.LoginInput{Email: "factory2@example.com", Password: service.SeedPassword})
	s.Require().NoError(err)
	s.Equal(id.FactoryID("F002"), res.User.FactoryID)
	s.Equal(id.RoleFactory, res.User.Role)

	admin, err := s.store.FindByEmail(s.ctx, "admin@example.com")
	s.Require().NoError(err)
	s.Equal(id.RoleAdmin, admin.Role)
}
