package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"compliancehub/internal/audit"
	"compliancehub/internal/platform/tracing"
	"compliancehub/internal/policy"
	"compliancehub/internal/request/metrics"
	"compliancehub/internal/request/models"
	id "compliancehub/pkg/domain"
	dErrors "compliancehub/pkg/domain-errors"
	"compliancehub/pkg/platform/sentinel"
	"compliancehub/pkg/requestcontext"
)

const tracerName = "compliancehub/request"

// Store persists requests and their items. Methods join the transaction
// carried by ctx; lookups return sentinel.ErrNotFound.
type Store interface {
	// CreateRequest inserts the request and all of its items.
	CreateRequest(ctx context.Context, r *models.Request) error
	FindByID(ctx context.Context, requestID id.RequestID) (*models.Request, error)
	// FindByIDForUpdate also locks the request row until the transaction ends.
	FindByIDForUpdate(ctx context.Context, requestID id.RequestID) (*models.Request, error)
	ListByBuyer(ctx context.Context, buyerID id.UserID) ([]*models.Request, error)
	ListByFactory(ctx context.Context, factoryID id.FactoryID) ([]*models.Request, error)
	// ListItems returns the items of the given requests in creation order.
	ListItems(ctx context.Context, requestIDs []id.RequestID) ([]*models.Item, error)
	FindItem(ctx context.Context, requestID id.RequestID, itemID id.ItemID) (*models.Item, error)
	UpdateItem(ctx context.Context, item *models.Item) error
	UpdateStatus(ctx context.Context, requestID id.RequestID, status models.Status, updatedAt time.Time) error
}

// EvidenceLookup confirms that a factory owns an evidence version. It
// returns models.ErrEvidenceNotOwned or models.ErrVersionNotFound.
type EvidenceLookup interface {
	ResolveVersion(ctx context.Context, factoryID id.FactoryID, evidenceID id.EvidenceID, versionID id.VersionID) error
}

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
	View(ctx context.Context, fn func(ctx context.Context) error) error
}

type AuditRecorder interface {
	Record(ctx context.Context, rec audit.Record) (*audit.Entry, error)
}

// Service runs the buyer/factory document request workflow.
type Service struct {
	store      Store
	evidence   EvidenceLookup
	tx         TxRunner
	auditor    AuditRecorder
	authorizer policy.Authorizer
	logger     *slog.Logger
	metrics    *metrics.Metrics
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

func WithAuthorizer(a policy.Authorizer) Option {
	return func(s *Service) {
		s.authorizer = a
	}
}

func New(store Store, evidence EvidenceLookup, tx TxRunner, auditor AuditRecorder, opts ...Option) *Service {
	s := &Service{
		store:      store,
		evidence:   evidence,
		tx:         tx,
		auditor:    auditor,
		authorizer: policy.NewStatic(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create opens a request from the calling buyer to a factory.
func (s *Service) Create(ctx context.Context, p policy.Principal, in models.CreateInput) (_ *models.Request, err error) {
	start := time.Now()
	defer s.metrics.Observe("create", start)
	ctx, span := tracing.Start(ctx, tracerName, "request.Create", attribute.String("factory_id", string(in.FactoryID)))
	defer func() { tracing.End(span, err) }()

	if err := policy.Require(ctx, s.authorizer, policy.ActionRequestCreate, p); err != nil {
		return nil, err
	}
	if len(in.DocTypes) == 0 {
		return nil, models.ErrNoItems
	}

	var created *models.Request
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		r, err := models.NewRequest(p.UserID, in.FactoryID, in.Title, in.DocTypes, requestcontext.Now(txCtx).UTC())
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
				return dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
			}
			return err
		}
		if err := s.store.CreateRequest(txCtx, r); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create request")
		}

		items := make([]map[string]any, len(in.DocTypes))
		for i, docType := range in.DocTypes {
			items[i] = map[string]any{"docType": docType}
		}
		if _, err := s.auditor.Record(txCtx, audit.Record{
			ActorUserID: p.UserID,
			ActorRole:   p.Role,
			Action:      audit.ActionCreateRequest,
			ObjectType:  audit.ObjectRequest,
			ObjectID:    r.ID.String(),
			Metadata: map[string]any{
				"factoryId": string(r.FactoryID),
				"buyerId":   p.UserID.String(),
				"title":     r.Title,
				"itemCount": len(r.Items),
				"items":     items,
			},
		}); err != nil {
			return err
		}

		created, err = s.load(txCtx, r.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncCreated()
	s.logger.InfoContext(ctx, "request created",
		"request_id", requestcontext.RequestID(ctx),
		"document_request_id", created.ID,
		"factory_id", created.FactoryID,
		"item_count", len(created.Items),
	)
	return created, nil
}

// ListByBuyer returns the calling buyer's requests, newest first.
func (s *Service) ListByBuyer(ctx context.Context, p policy.Principal) (_ []*models.Request, err error) {
	start := time.Now()
	defer s.metrics.Observe("list_mine", start)
	ctx, span := tracing.Start(ctx, tracerName, "request.ListByBuyer")
	defer func() { tracing.End(span, err) }()

	if err := policy.Require(ctx, s.authorizer, policy.ActionRequestListMine, p); err != nil {
		return nil, err
	}
	var list []*models.Request
	err = s.tx.View(ctx, func(ctx context.Context) error {
		var err error
		list, err = s.store.ListByBuyer(ctx, p.UserID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list requests")
		}
		return s.attachItems(ctx, list...)
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// ListByFactory returns requests addressed to the caller's factory, newest
// first, and records that the factory viewed them.
func (s *Service) ListByFactory(ctx context.Context, p policy.Principal) (_ []*models.Request, err error) {
	start := time.Now()
	defer s.metrics.Observe("list_factory", start)
	ctx, span := tracing.Start(ctx, tracerName, "request.ListByFactory", attribute.String("factory_id", string(p.FactoryID)))
	defer func() { tracing.End(span, err) }()

	if err := policy.Require(ctx, s.authorizer, policy.ActionRequestListFactory, p); err != nil {
		return nil, err
	}

	var list []*models.Request
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		list, err = s.store.ListByFactory(txCtx, p.FactoryID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list requests")
		}
		if err := s.attachItems(txCtx, list...); err != nil {
			return err
		}
		_, err = s.auditor.Record(txCtx, audit.Record{
			ActorUserID: p.UserID,
			ActorRole:   p.Role,
			Action:      audit.ActionViewRequests,
			ObjectType:  audit.ObjectRequest,
			ObjectID:    string(p.FactoryID),
			Metadata: map[string]any{
				"factoryId":    string(p.FactoryID),
				"requestCount": len(list),
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// GetByID returns any request to an authenticated caller.
func (s *Service) GetByID(ctx context.Context, p policy.Principal, requestID id.RequestID) (_ *models.Request, err error) {
	start := time.Now()
	defer s.metrics.Observe("get", start)
	ctx, span := tracing.Start(ctx, tracerName, "request.GetByID", attribute.String("document_request_id", requestID.String()))
	defer func() { tracing.End(span, err) }()

	if err := policy.Require(ctx, s.authorizer, policy.ActionRequestGet, p); err != nil {
		return nil, err
	}
	var r *models.Request
	err = s.tx.View(ctx, func(ctx context.Context) error {
		var err error
		r, err = s.load(ctx, requestID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// FulfillItem attaches an evidence version owned by the caller's factory to
// one item and completes the request once every item is fulfilled.
func (s *Service) FulfillItem(ctx context.Context, p policy.Principal, requestID id.RequestID, itemID id.ItemID, in models.FulfillInput) (_ *models.FulfillResult, err error) {
	start := time.Now()
	defer s.metrics.Observe("fulfill_item", start)
	ctx, span := tracing.Start(ctx, tracerName, "request.FulfillItem",
		attribute.String("document_request_id", requestID.String()),
		attribute.String("item_id", itemID.String()),
	)
	defer func() {
		if err != nil {
			s.metrics.IncFulfillRejected(string(dErrors.CodeOf(err)))
		}
		tracing.End(span, err)
	}()

	if err := policy.Require(ctx, s.authorizer, policy.ActionRequestFulfillItem, p); err != nil {
		return nil, err
	}

	var (
		result    *models.FulfillResult
		completed bool
	)
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		r, err := s.store.FindByIDForUpdate(txCtx, requestID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return models.ErrNotOwned
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load request")
		}
		if !policy.OwnsResource(p.FactoryID, r.FactoryID).IsAllowed() {
			return models.ErrNotOwned
		}

		item, err := s.store.FindItem(txCtx, r.ID, itemID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return models.ErrItemNotFound
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load request item")
		}

		if err := s.evidence.ResolveVersion(txCtx, p.FactoryID, in.EvidenceID, in.VersionID); err != nil {
			return err
		}

		now := requestcontext.Now(txCtx).UTC()
		previous := item.Status
		if err := item.Fulfill(in.EvidenceID, in.VersionID, now); err != nil {
			return err
		}
		if err := s.store.UpdateItem(txCtx, item); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update request item")
		}

		items, err := s.store.ListItems(txCtx, []id.RequestID{r.ID})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load request items")
		}
		if models.AllFulfilled(items) && r.Status != models.StatusCompleted {
			r.Status = models.StatusCompleted
			r.UpdatedAt = now
			if err := s.store.UpdateStatus(txCtx, r.ID, r.Status, r.UpdatedAt); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to complete request")
			}
			completed = true
		}

		if _, err := s.auditor.Record(txCtx, audit.Record{
			ActorUserID: p.UserID,
			ActorRole:   p.Role,
			Action:      audit.ActionFulfillItem,
			ObjectType:  audit.ObjectRequestItem,
			ObjectID:    item.ID.String(),
			Metadata: map[string]any{
				"requestId":      r.ID.String(),
				"factoryId":      string(r.FactoryID),
				"docType":        item.DocType,
				"evidenceId":     in.EvidenceID.String(),
				"versionId":      in.VersionID.String(),
				"previousStatus": string(previous),
				"newStatus":      string(item.Status),
			},
		}); err != nil {
			return err
		}

		result = &models.FulfillResult{
			Request: models.Summary{ID: r.ID, Status: r.Status, UpdatedAt: r.UpdatedAt},
			Item:    item,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncFulfilled(completed)
	s.logger.InfoContext(ctx, "request item fulfilled",
		"request_id", requestcontext.RequestID(ctx),
		"document_request_id", requestID,
		"item_id", itemID,
		"completed", completed,
	)
	return result, nil
}

// load reads a request and then its items.
func (s *Service) load(ctx context.Context, requestID id.RequestID) (*models.Request, error) {
	r, err := s.store.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load request")
	}
	if err := s.attachItems(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) attachItems(ctx context.Context, list ...*models.Request) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]id.RequestID, 0, len(list))
	byID := make(map[id.RequestID]*models.Request, len(list))
	for _, r := range list {
		ids = append(ids, r.ID)
		byID[r.ID] = r
		r.Items = []*models.Item{}
	}
	items, err := s.store.ListItems(ctx, ids)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load request items")
	}
	for _, item := range items {
		if r, ok := byID[item.RequestID]; ok {
			r.Items = append(r.Items, item)
		}
	}
	return nil
}
