package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"compliancehub/internal/identity/metrics"
	"compliancehub/internal/identity/models"
	"compliancehub/internal/platform/tracing"
	id "compliancehub/pkg/domain"
	dErrors "compliancehub/pkg/domain-errors"
	"compliancehub/pkg/platform/sentinel"
	"compliancehub/pkg/requestcontext"
	"compliancehub/pkg/secrets"
)

const tracerName = "compliancehub/identity"

// Store persists users. Email lookups are case-insensitive; Create returns
// sentinel.ErrConflict when the email is taken.
type Store interface {
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// TokenIssuer signs access tokens for authenticated users.
type TokenIssuer interface {
	GenerateAccessToken(userID id.UserID, email string, role id.Role, factoryID id.FactoryID) (string, error)
}

// LoginGuard throttles repeated failed logins for an email and client IP.
type LoginGuard interface {
	Check(ctx context.Context, email, clientIP string) error
	RecordFailure(ctx context.Context, email, clientIP string)
	Reset(ctx context.Context, email, clientIP string)
}

// Service registers and authenticates users.
type Service struct {
	store   Store
	tokens  TokenIssuer
	guard   LoginGuard
	cost    int
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithHashCost sets the bcrypt cost used for new passwords.
func WithHashCost(cost int) Option {
	return func(s *Service) {
		s.cost = cost
	}
}

// WithLoginGuard enables lockout after repeated failed logins.
func WithLoginGuard(guard LoginGuard) Option {
	return func(s *Service) {
		s.guard = guard
	}
}

func New(store Store, tokens TokenIssuer, opts ...Option) *Service {
	s := &Service{
		store:  store,
		tokens: tokens,
		cost:   secrets.DefaultCost,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Register(ctx context.Context, in models.RegisterInput) (_ *models.AuthResult, err error) {
	ctx, span := tracing.Start(ctx, tracerName, "identity.Register", attribute.String("role", string(in.Role)))
	defer func() { tracing.End(span, err) }()

	if _, err := s.store.FindByEmail(ctx, in.Email); err == nil {
		return nil, models.ErrEmailTaken
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
	}

	hash, err := secrets.Hash(in.Password, s.cost)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidInput) {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}

	user, err := models.NewUser(in, hash, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, models.ErrEmailTaken
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
	}
	s.metrics.IncRegistrations()
	s.logger.InfoContext(ctx, "user registered",
		"user_id", user.ID.String(),
		"role", string(user.Role),
		"request_id", requestcontext.RequestID(ctx),
	)
	return s.authenticate(user)
}

// Login checks the account is active before comparing the password.
func (s *Service) Login(ctx context.Context, in models.LoginInput) (_ *models.AuthResult, err error) {
	ctx, span := tracing.Start(ctx, tracerName, "identity.Login")
	defer func() { tracing.End(span, err) }()

	clientIP := requestcontext.ClientIP(ctx)
	if s.guard != nil {
		if err := s.guard.Check(ctx, in.Email, clientIP); err != nil {
			s.metrics.IncLoginFailures("locked")
			return nil, err
		}
	}

	user, err := s.store.FindByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.loginFailed(ctx, in.Email, clientIP, "unknown_email")
			return nil, models.ErrInvalidCredentials
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
	}
	if !user.IsActive {
		s.metrics.IncLoginFailures("deactivated")
		return nil, models.ErrDeactivated
	}
	if err := secrets.Verify(in.Password, user.PasswordHash); err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidInput) {
			s.loginFailed(ctx, in.Email, clientIP, "bad_password")
			return nil, models.ErrInvalidCredentials
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify password")
	}
	if s.guard != nil {
		s.guard.Reset(ctx, in.Email, clientIP)
	}
	s.metrics.IncLogins()
	return s.authenticate(user)
}

func (s *Service) loginFailed(ctx context.Context, email, clientIP, reason string) {
	s.metrics.IncLoginFailures(reason)
	if s.guard != nil {
		s.guard.RecordFailure(ctx, email, clientIP)
	}
}

// Profile returns the active user behind an authenticated request.
func (s *Service) Profile(ctx context.Context, userID id.UserID) (*models.UserView, error) {
	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, models.ErrUserUnavailable
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	if !user.IsActive {
		return nil, models.ErrUserUnavailable
	}
	view := user.View()
	return &view, nil
}

func (s *Service) authenticate(user *models.User) (*models.AuthResult, error) {
	token, err := s.tokens.GenerateAccessToken(user.ID, user.Email, user.Role, user.FactoryID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue access token")
	}
	return &models.AuthResult{AccessToken: token, User: user.View()}, nil
}
