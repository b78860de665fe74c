// Package lockout throttles password guessing by counting failed logins per
// email and client IP inside a fixed window.
package lockout

import (
	"context"
	"log/slog"
	"time"

	"compliancehub/internal/identity/models"
	dErrors "compliancehub/pkg/domain-errors"
)

// ErrLocked is returned while a key has used up its failed attempts.
var ErrLocked = dErrors.New(dErrors.CodeRateLimited, "too many failed login attempts, try again later")

// Store counts failures per key. RecordFailure starts a new window when none
// is active and returns the count inside the current one.
type Store interface {
	RecordFailure(ctx context.Context, key string, window time.Duration) (int, error)
	Failures(ctx context.Context, key string) (int, error)
	Clear(ctx context.Context, key string) error
}

type Config struct {
	Attempts int
	Window   time.Duration
}

func DefaultConfig() Config {
	return Config{Attempts: 5, Window: 15 * time.Minute}
}

type Lockout struct {
	store  Store
	cfg    Config
	logger *slog.Logger
}

func New(store Store, cfg Config, logger *slog.Logger) *Lockout {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lockout{store: store, cfg: cfg, logger: logger}
}

// Key scopes a counter to one account seen from one address.
func Key(email, clientIP string) string {
	return "login_lockout:" + models.NormalizeEmail(email) + ":" + clientIP
}

// Check returns ErrLocked once the key has reached the attempt limit. Store
// failures are logged and let the login proceed.
func (l *Lockout) Check(ctx context.Context, email, clientIP string) error {
	n, err := l.store.Failures(ctx, Key(email, clientIP))
	if err != nil {
		l.logger.WarnContext(ctx, "lockout store unavailable, allowing login", "error", err)
		return nil
	}
	if n >= l.cfg.Attempts {
		return ErrLocked
	}
	return nil
}

// RecordFailure counts one failed attempt.
func (l *Lockout) RecordFailure(ctx context.Context, email, clientIP string) {
	n, err := l.store.RecordFailure(ctx, Key(email, clientIP), l.cfg.Window)
	if err != nil {
		l.logger.WarnContext(ctx, "failed to record login failure", "error", err)
		return
	}
	if n == l.cfg.Attempts {
		l.logger.WarnContext(ctx, "login locked",
			"client_ip", clientIP,
			"window", l.cfg.Window.String(),
		)
	}
}

// Reset forgets past failures after a successful login.
func (l *Lockout) Reset(ctx context.Context, email, clientIP string) {
	if err := l.store.Clear(ctx, Key(email, clientIP)); err != nil {
		l.logger.WarnContext(ctx, "failed to clear login failures", "error", err)
	}
}
