package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"compliancehub/internal/evidence/models"
	"compliancehub/internal/policy"
	id "compliancehub/pkg/domain"
	dErrors "compliancehub/pkg/domain-errors"
	"compliancehub/pkg/platform/httputil"
	"compliancehub/pkg/requestcontext"
)

// Service defines the interface for evidence operations.
type Service interface {
	Create(ctx context.Context, p policy.Principal, in models.CreateInput) (*models.CreateResult, error)
	AddVersion(ctx context.Context, p policy.Principal, evidenceID id.EvidenceID, in models.AddVersionInput) (*models.AddVersionResult, error)
	ListByFactory(ctx context.Context, p policy.Principal) ([]*models.Evidence, error)
	GetByID(ctx context.Context, p policy.Principal, evidenceID id.EvidenceID) (*models.Evidence, error)
	Delete(ctx context.Context, p policy.Principal, evidenceID id.EvidenceID) error
}

// Handler handles evidence HTTP endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the evidence routes. The router must already authenticate.
func (h *Handler) Register(r chi.Router) {
	r.Post("/evidence", h.HandleCreate)
	r.Get("/evidence", h.HandleList)
	r.Get("/evidence/{evidenceID}", h.HandleGet)
	r.Delete("/evidence/{evidenceID}", h.HandleDelete)
	r.Post("/evidence/{evidenceID}/versions", h.HandleAddVersion)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	req, err := httputil.DecodeAndPrepare[models.CreateEvidenceRequest](r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid create evidence request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	res, err := h.service.Create(ctx, principal, req.Input())
	if err != nil {
		h.writeServiceError(ctx, w, "create evidence", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

func (h *Handler) HandleAddVersion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	evidenceID, ok := h.evidenceID(w, r)
	if !ok {
		return
	}
	req, err := httputil.DecodeAndPrepare[models.AddVersionRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.service.AddVersion(ctx, principal, evidenceID, req.Input())
	if err != nil {
		h.writeServiceError(ctx, w, "add evidence version", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	list, err := h.service.ListByFactory(ctx, principal)
	if err != nil {
		h.writeServiceError(ctx, w, "list evidence", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	evidenceID, ok := h.evidenceID(w, r)
	if !ok {
		return
	}
	e, err := h.service.GetByID(ctx, principal, evidenceID)
	if err != nil {
		h.writeServiceError(ctx, w, "get evidence", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, e)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	evidenceID, ok := h.evidenceID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(ctx, principal, evidenceID); err != nil {
		h.writeServiceError(ctx, w, "delete evidence", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.DeleteResponse{Message: "Evidence deleted successfully"})
}

func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (policy.Principal, bool) {
	p, ok := policy.PrincipalFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return policy.Principal{}, false
	}
	return p, true
}

func (h *Handler) evidenceID(w http.ResponseWriter, r *http.Request) (id.EvidenceID, bool) {
	evidenceID, err := id.ParseEvidenceID(chi.URLParam(r, "evidenceID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "evidence id must be a UUID"))
		return id.EvidenceID{}, false
	}
	return evidenceID, true
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if dErrors.HasCode(err, dErrors.CodeInternal) {
		h.logger.ErrorContext(ctx, op+" failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}
