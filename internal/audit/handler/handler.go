package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"compliancehub/internal/audit"
	"compliancehub/internal/policy"
	id "compliancehub/pkg/domain"
	dErrors "compliancehub/pkg/domain-errors"
	"compliancehub/pkg/platform/httputil"
	"compliancehub/pkg/requestcontext"
)

// Service is the read side of the audit ledger.
type Service interface {
	Query(ctx context.Context, filter audit.Filter) ([]*audit.Entry, error)
}

// Handler serves GET /audit to any authenticated user.
type Handler struct {
	service    Service
	authorizer policy.Authorizer
	logger     *slog.Logger
}

func New(service Service, authorizer policy.Authorizer, logger *slog.Logger) *Handler {
	return &Handler{service: service, authorizer: authorizer, logger: logger}
}

// Register mounts the audit routes. The router must already authenticate.
func (h *Handler) Register(r chi.Router) {
	r.Get("/audit", h.HandleQuery)
}

// HandleQuery handles GET /audit?action=&objectType=&actorUserId=.
func (h *Handler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	principal, ok := policy.PrincipalFromContext(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	if err := policy.Require(ctx, h.authorizer, policy.ActionAuditQuery, principal); err != nil {
		h.logger.WarnContext(ctx, "audit query denied",
			"request_id", requestID,
			"user_id", principal.UserID,
			"role", principal.Role,
		)
		httputil.WriteError(w, err)
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	entries, err := h.service.Query(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "audit query failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}

func parseFilter(r *http.Request) (audit.Filter, error) {
	q := r.URL.Query()
	filter := audit.Filter{
		Action:     audit.Action(strings.TrimSpace(q.Get("action"))),
		ObjectType: audit.ObjectType(strings.TrimSpace(q.Get("objectType"))),
	}
	if raw := strings.TrimSpace(q.Get("actorUserId")); raw != "" {
		actor, err := id.ParseUserID(raw)
		if err != nil {
			return audit.Filter{}, dErrors.New(dErrors.CodeValidation, "actorUserId must be a UUID")
		}
		filter.ActorUserID = actor
	}
	return filter, nil
}
