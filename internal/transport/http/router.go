package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"compliancehub/internal/platform/metrics"
	"compliancehub/pkg/platform/httputil"
	authmw "compliancehub/pkg/platform/middleware/auth"
	"compliancehub/pkg/platform/middleware/idempotency"
	"compliancehub/pkg/platform/middleware/metadata"
	request "compliancehub/pkg/platform/middleware/request"
	"compliancehub/pkg/platform/middleware/requesttime"
)

// Routes is implemented by every module handler.
type Routes interface {
	Register(r chi.Router)
}

// PublicRoutes is implemented by handlers that also serve unauthenticated
// endpoints.
type PublicRoutes interface {
	RegisterPublic(r chi.Router)
}

// Config carries the cross-cutting collaborators of the router.
type Config struct {
	Logger    *slog.Logger
	Validator authmw.JWTValidator
	// Metrics is optional; /metrics is served either way.
	Metrics *metrics.Metrics
	// Redis enables Idempotency-Key handling on authenticated writes.
	Redis          redis.UniversalClient
	IdempotencyTTL time.Duration
	// Health backs /healthz; nil always reports ok.
	Health func(ctx context.Context) error
}

type healthResponse struct {
	Status string `json:"status"`
}

// NewRouter mounts the public routes, then every module behind RequireAuth.
func NewRouter(cfg Config, public []PublicRoutes, authenticated ...Routes) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(request.Logger(logger))
	r.Use(request.Recovery(logger))
	r.Use(requesttime.Middleware)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if cfg.Health != nil {
			if err := cfg.Health(req.Context()); err != nil {
				logger.WarnContext(req.Context(), "health check failed", "error", err)
				httputil.WriteJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	for _, h := range public {
		h.RegisterPublic(r)
	}

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(cfg.Validator, logger))
		if cfg.Redis != nil {
			r.Use(idempotency.Middleware(cfg.Redis, cfg.IdempotencyTTL, logger))
		}
		for _, h := range authenticated {
			h.Register(r)
		}
	})
	return r
}
