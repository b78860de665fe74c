// Package app assembles the services, handlers and background workers of the
// compliance hub from a config.Config.
package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"compliancehub/internal/audit"
	audithandler "compliancehub/internal/audit/handler"
	auditmetrics "compliancehub/internal/audit/metrics"
	"compliancehub/internal/audit/outbox"
	evidencehandler "compliancehub/internal/evidence/handler"
	evidencemetrics "compliancehub/internal/evidence/metrics"
	evidenceservice "compliancehub/internal/evidence/service"
	identityhandler "compliancehub/internal/identity/handler"
	"compliancehub/internal/identity/lockout"
	identitymetrics "compliancehub/internal/identity/metrics"
	identityservice "compliancehub/internal/identity/service"
	jwttoken "compliancehub/internal/jwt_token"
	"compliancehub/internal/platform/config"
	"compliancehub/internal/platform/kafka"
	"compliancehub/internal/platform/metrics"
	redisclient "compliancehub/internal/platform/redis"
	"compliancehub/internal/policy"
	"compliancehub/internal/request/adapters"
	requesthandler "compliancehub/internal/request/handler"
	requestmetrics "compliancehub/internal/request/metrics"
	requestservice "compliancehub/internal/request/service"
	httptransport "compliancehub/internal/transport/http"
)

// App is a fully wired process. Relay and Watcher are nil when Kafka or a
// policy file are not configured.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Backend  *Backend
	Handler  http.Handler
	Identity *identityservice.Service
	Tokens   *jwttoken.JWTService
	Relay    *outbox.Relay
	Watcher  *policy.Watcher

	producer *kafka.Producer
	redis    *redisclient.Client
}

// Options tune Build for tests and tools.
type Options struct {
	// Registerer receives every module's metrics; nil uses the default registry.
	Registerer prometheus.Registerer
	// Migrate brings the schema up to date on open.
	Migrate bool
}

// Build opens the backend and optional infrastructure and wires the modules.
// Close releases everything Build opened.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger, opts Options) (_ *App, err error) {
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	a := &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.Backend, err = OpenBackend(ctx, cfg.Database, opts.Migrate)
	if err != nil {
		return nil, err
	}

	authorizer, err := a.authorizer(ctx)
	if err != nil {
		return nil, err
	}

	a.redis, err = redisclient.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}

	if len(cfg.Kafka.Brokers) > 0 {
		a.producer, err = kafka.NewProducer(ctx, cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
		if err != nil {
			return nil, err
		}
		if err := a.producer.EnsureTopic(ctx, 1, 1); err != nil {
			logger.WarnContext(ctx, "could not ensure audit topic", "topic", cfg.Kafka.AuditTopic, "error", err)
		}
	}

	auditMetrics := auditmetrics.NewWith(reg)
	ledger := audit.NewLedger(a.Backend.Audit,
		audit.WithViewer(a.Backend.Tx),
		audit.WithLogger(logger),
		audit.WithMetrics(auditMetrics),
	)
	if a.producer != nil {
		a.Relay = outbox.New(a.Backend.Audit, a.Backend.Tx, a.producer,
			outbox.WithInterval(cfg.Kafka.RelayInterval),
			outbox.WithBatchSize(cfg.Kafka.BatchSize),
			outbox.WithLogger(logger),
			outbox.WithMetrics(auditMetrics),
		)
	}

	a.Tokens = jwttoken.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.JWTExpiresIn)
	identityOpts := []identityservice.Option{
		identityservice.WithLogger(logger),
		identityservice.WithMetrics(identitymetrics.NewWith(reg)),
		identityservice.WithHashCost(cfg.Auth.SaltRounds),
	}
	if cfg.Auth.MaxLoginAttempts > 0 {
		var lockoutStore lockout.Store = lockout.NewMemoryStore()
		if a.redis != nil {
			lockoutStore = lockout.NewRedisStore(a.redis.Client)
		}
		guard := lockout.New(lockoutStore, lockout.Config{
			Attempts: cfg.Auth.MaxLoginAttempts,
			Window:   cfg.Auth.LockoutWindow,
		}, logger)
		identityOpts = append(identityOpts, identityservice.WithLoginGuard(guard))
	}
	a.Identity = identityservice.New(a.Backend.Users, a.Tokens, identityOpts...)

	evidence := evidenceservice.New(a.Backend.Evidence, a.Backend.Tx, ledger,
		evidenceservice.WithLogger(logger),
		evidenceservice.WithMetrics(evidencemetrics.NewWith(reg)),
		evidenceservice.WithAuthorizer(authorizer),
	)
	requests := requestservice.New(a.Backend.Requests, adapters.NewEvidenceAdapter(evidence), a.Backend.Tx, ledger,
		requestservice.WithLogger(logger),
		requestservice.WithMetrics(requestmetrics.NewWith(reg)),
		requestservice.WithAuthorizer(authorizer),
	)

	identityHTTP := identityhandler.New(a.Identity, logger)
	routerCfg := httptransport.Config{
		Logger:         logger,
		Validator:      jwttoken.NewJWTServiceAdapter(a.Tokens),
		Metrics:        metrics.NewWith(reg),
		IdempotencyTTL: cfg.Idempotency.TTL,
		Health:         a.health,
	}
	if a.redis != nil {
		routerCfg.Redis = a.redis.Client
	}
	a.Handler = httptransport.NewRouter(routerCfg,
		[]httptransport.PublicRoutes{identityHTTP},
		identityHTTP,
		evidencehandler.New(evidence, logger),
		requesthandler.New(requests, logger),
		audithandler.New(ledger, authorizer, logger),
	)
	return a, nil
}

// authorizer returns the OPA engine loaded from the policy file, watched for
// changes, or the compiled-in table when no file is configured.
func (a *App) authorizer(ctx context.Context) (policy.Authorizer, error) {
	if a.Config.Policy.File == "" {
		return policy.NewStatic(), nil
	}
	engine, err := policy.NewEngineFromFile(ctx, a.Config.Policy.File, a.Logger)
	if err != nil {
		return nil, err
	}
	a.Watcher = policy.NewWatcher(a.Config.Policy.File, engine, a.Logger)
	return engine, nil
}

func (a *App) health(ctx context.Context) error {
	if err := a.Backend.Ping(ctx); err != nil {
		return err
	}
	if a.redis != nil {
		return a.redis.Health(ctx)
	}
	return nil
}

func (a *App) Close() error {
	var errs []error
	if a.producer != nil {
		a.producer.Close()
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.Backend != nil {
		errs = append(errs, a.Backend.Close())
	}
	return errors.Join(errs...)
}
