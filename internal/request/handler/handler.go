package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"compliancehub/internal/policy"
	"compliancehub/internal/request/models"
	id "compliancehub/pkg/domain"
	dErrors "compliancehub/pkg/domain-errors"
	"compliancehub/pkg/platform/httputil"
	"compliancehub/pkg/requestcontext"
)

// Service defines the interface for the request workflow.
type Service interface {
	Create(ctx context.Context, p policy.Principal, in models.CreateInput) (*models.Request, error)
	ListByBuyer(ctx context.Context, p policy.Principal) ([]*models.Request, error)
	ListByFactory(ctx context.Context, p policy.Principal) ([]*models.Request, error)
	GetByID(ctx context.Context, p policy.Principal, requestID id.RequestID) (*models.Request, error)
	FulfillItem(ctx context.Context, p policy.Principal, requestID id.RequestID, itemID id.ItemID, in models.FulfillInput) (*models.FulfillResult, error)
}

// Handler handles request workflow HTTP endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the request routes. The router must already authenticate.
func (h *Handler) Register(r chi.Router) {
	r.Post("/requests", h.HandleCreate)
	r.Get("/requests", h.HandleListMine)
	r.Get("/requests/{requestID}", h.HandleGet)
	r.Post("/requests/{requestID}/items/{itemID}/fulfill", h.HandleFulfillItem)
	r.Get("/factory/requests", h.HandleListFactory)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	req, err := httputil.DecodeAndPrepare[models.CreateRequestRequest](r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid create request body",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	created, err := h.service.Create(ctx, principal, req.Input())
	if err != nil {
		h.writeServiceError(ctx, w, "create request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	list, err := h.service.ListByBuyer(ctx, principal)
	if err != nil {
		h.writeServiceError(ctx, w, "list buyer requests", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) HandleListFactory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	list, err := h.service.ListByFactory(ctx, principal)
	if err != nil {
		h.writeServiceError(ctx, w, "list factory requests", err)
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
	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "request id must be a UUID"))
		return
	}
	got, err := h.service.GetByID(ctx, principal, requestID)
	if err != nil {
		h.writeServiceError(ctx, w, "get request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, got)
}

func (h *Handler) HandleFulfillItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "request id must be a UUID"))
		return
	}
	itemID, err := id.ParseItemID(chi.URLParam(r, "itemID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "item id must be a UUID"))
		return
	}
	req, err := httputil.DecodeAndPrepare[models.FulfillItemRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.service.FulfillItem(ctx, principal, requestID, itemID, req.Input())
	if err != nil {
		h.logger.WarnContext(ctx, "fulfil item rejected",
			"request_id", requestcontext.RequestID(ctx),
			"document_request_id", requestID,
			"item_id", itemID,
			"code", dErrors.CodeOf(err),
		)
		h.writeServiceError(ctx, w, "fulfil item", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (policy.Principal, bool) {
	p, ok := policy.PrincipalFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return policy.Principal{}, false
	}
	return p, true
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
