package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"compliancehub/internal/audit"
	"compliancehub/internal/evidence/metrics"
	"compliancehub/internal/evidence/models"
	"compliancehub/internal/platform/tracing"
	"compliancehub/internal/policy"
	id "compliancehub/pkg/domain"
	dErrors "compliancehub/pkg/domain-errors"
	"compliancehub/pkg/platform/sentinel"
	"compliancehub/pkg/requestcontext"
)

const (
	tracerName             = "compliancehub/evidence"
	defaultMaxVersionTries = 3
)

// Store persists evidence and versions. Methods join the transaction carried
// by ctx. Lookups return sentinel.ErrNotFound; a duplicate version number
// returns sentinel.ErrConflict.
type Store interface {
	CreateEvidence(ctx context.Context, e *models.Evidence) error
	CreateVersion(ctx context.Context, v *models.Version) error
	FindByID(ctx context.Context, evidenceID id.EvidenceID) (*models.Evidence, error)
	// FindByIDForUpdate also locks the evidence row until the transaction ends.
	FindByIDForUpdate(ctx context.Context, evidenceID id.EvidenceID) (*models.Evidence, error)
	LatestVersionNumber(ctx context.Context, evidenceID id.EvidenceID) (int, error)
	// ListByFactory returns the factory's evidence newest first, without versions.
	ListByFactory(ctx context.Context, factoryID id.FactoryID) ([]*models.Evidence, error)
	// ListVersions returns the versions of the given evidence, ascending by number.
	ListVersions(ctx context.Context, evidenceIDs []id.EvidenceID) ([]*models.Version, error)
	FindVersion(ctx context.Context, evidenceID id.EvidenceID, versionID id.VersionID) (*models.Version, error)
	Delete(ctx context.Context, evidenceID id.EvidenceID) error
}

// TxRunner is the backend's unit of work.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
	View(ctx context.Context, fn func(ctx context.Context) error) error
}

// AuditRecorder writes a ledger entry inside the caller's unit of work.
type AuditRecorder interface {
	Record(ctx context.Context, rec audit.Record) (*audit.Entry, error)
}

// Service owns the evidence lifecycle for factories.
type Service struct {
	store       Store
	tx          TxRunner
	auditor     AuditRecorder
	authorizer  policy.Authorizer
	logger      *slog.Logger
	metrics     *metrics.Metrics
	maxAttempts int
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

// WithMaxVersionAttempts bounds AddVersion retries after a version-number
// collision.
func WithMaxVersionAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func New(store Store, tx TxRunner, auditor AuditRecorder, opts ...Option) *Service {
	s := &Service{
		store:       store,
		tx:          tx,
		auditor:     auditor,
		authorizer:  policy.NewStatic(),
		logger:      slog.Default(),
		maxAttempts: defaultMaxVersionTries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores new evidence with version 1 and its audit entry as one unit.
func (s *Service) Create(ctx context.Context, p policy.Principal, in models.CreateInput) (_ *models.CreateResult, err error) {
	start := time.Now()
	defer s.metrics.Observe("create", start)
	ctx, span := tracing.Start(ctx, tracerName, "evidence.Create", attribute.String("factory_id", string(p.FactoryID)))
	defer func() { tracing.End(span, err) }()

	if err := policy.Require(ctx, s.authorizer, policy.ActionEvidenceCreate, p); err != nil {
		return nil, err
	}

	var result *models.CreateResult
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		e, v, err := models.NewEvidence(p.FactoryID, in.Name, in.DocType, in.Expiry, in.Notes, requestcontext.Now(txCtx).UTC())
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
				return dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
			}
			return err
		}
		if err := s.store.CreateEvidence(txCtx, e); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create evidence")
		}
		if err := s.store.CreateVersion(txCtx, v); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create evidence version")
		}
		if _, err := s.auditor.Record(txCtx, audit.Record{
			ActorUserID: p.UserID,
			ActorRole:   p.Role,
			Action:      audit.ActionCreateEvidence,
			ObjectType:  audit.ObjectEvidence,
			ObjectID:    e.ID.String(),
			Metadata: map[string]any{
				"factoryId":        string(e.FactoryID),
				"name":             e.Name,
				"docType":          e.DocType,
				"expiry":           e.Expiry.String(),
				"initialVersionId": v.ID.String(),
			},
		}); err != nil {
			return err
		}
		result = &models.CreateResult{EvidenceID: e.ID, VersionID: v.ID}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncCreated()
	s.logger.InfoContext(ctx, "evidence created",
		"request_id", requestcontext.RequestID(ctx),
		"evidence_id", result.EvidenceID,
		"factory_id", p.FactoryID,
	)
	return result, nil
}

// AddVersion appends the next version. The evidence row is locked while the
// number is chosen; a unique-key collision retries the whole unit of work.
func (s *Service) AddVersion(ctx context.Context, p policy.Principal, evidenceID id.EvidenceID, in models.AddVersionInput) (_ *models.AddVersionResult, err error) {
	start := time.Now()
	defer s.metrics.Observe("add_version", start)
	ctx, span := tracing.Start(ctx, tracerName, "evidence.AddVersion", attribute.String("evidence_id", evidenceID.String()))
	defer func() { tracing.End(span, err) }()

	if err := policy.Require(ctx, s.authorizer, policy.ActionEvidenceAddVersion, p); err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		result, err := s.addVersionOnce(ctx, p, evidenceID, in)
		if err == nil {
			s.metrics.IncVersionsAdded()
			s.logger.InfoContext(ctx, "evidence version added",
				"request_id", requestcontext.RequestID(ctx),
				"evidence_id", evidenceID,
				"version_number", result.VersionNumber,
			)
			return result, nil
		}
		if !errors.Is(err, sentinel.ErrConflict) {
			return nil, err
		}
		s.metrics.IncVersionRetries()
		s.logger.WarnContext(ctx, "version number collision, retrying",
			"request_id", requestcontext.RequestID(ctx),
			"evidence_id", evidenceID,
			"attempt", attempt,
		)
	}
	return nil, models.ErrVersionContention
}

func (s *Service) addVersionOnce(ctx context.Context, p policy.Principal, evidenceID id.EvidenceID, in models.AddVersionInput) (*models.AddVersionResult, error) {
	var result *models.AddVersionResult
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		e, err := s.ownedEvidence(txCtx, p.FactoryID, evidenceID, true)
		if err != nil {
			return err
		}
		latest, err := s.store.LatestVersionNumber(txCtx, e.ID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read latest version")
		}
		v, err := models.NewVersion(e.ID, latest, in.Notes, in.Expiry, requestcontext.Now(txCtx).UTC())
		if err != nil {
			return err
		}
		if err := s.store.CreateVersion(txCtx, v); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return err
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create evidence version")
		}

		var notes, expiry any
		if v.Notes != nil {
			notes = *v.Notes
		}
		if v.Expiry != nil {
			expiry = v.Expiry.String()
		}
		if _, err := s.auditor.Record(txCtx, audit.Record{
			ActorUserID: p.UserID,
			ActorRole:   p.Role,
			Action:      audit.ActionAddVersion,
			ObjectType:  audit.ObjectVersion,
			ObjectID:    v.ID.String(),
			Metadata: map[string]any{
				"evidenceId":    e.ID.String(),
				"factoryId":     string(e.FactoryID),
				"versionNumber": v.VersionNumber,
				"notes":         notes,
				"expiry":        expiry,
			},
		}); err != nil {
			return err
		}
		result = &models.AddVersionResult{VersionID: v.ID, VersionNumber: v.VersionNumber}
		return nil
	})
	return result, err
}

// ListByFactory returns the caller's evidence, newest first, each with its
// versions in ascending order.
func (s *Service) ListByFactory(ctx context.Context, p policy.Principal) (_ []*models.Evidence, err error) {
	start := time.Now()
	defer s.metrics.Observe("list", start)
	ctx, span := tracing.Start(ctx, tracerName, "evidence.ListByFactory", attribute.String("factory_id", string(p.FactoryID)))
	defer func() { tracing.End(span, err) }()

	if err := policy.Require(ctx, s.authorizer, policy.ActionEvidenceList, p); err != nil {
		return nil, err
	}

	var list []*models.Evidence
	err = s.tx.View(ctx, func(ctx context.Context) error {
		var err error
		list, err = s.store.ListByFactory(ctx, p.FactoryID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list evidence")
		}
		return s.attachVersions(ctx, list...)
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// GetByID returns one of the caller's evidence with its versions.
func (s *Service) GetByID(ctx context.Context, p policy.Principal, evidenceID id.EvidenceID) (_ *models.Evidence, err error) {
	start := time.Now()
	defer s.metrics.Observe("get", start)
	ctx, span := tracing.Start(ctx, tracerName, "evidence.GetByID", attribute.String("evidence_id", evidenceID.String()))
	defer func() { tracing.End(span, err) }()

	if err := policy.Require(ctx, s.authorizer, policy.ActionEvidenceGet, p); err != nil {
		return nil, err
	}
	var e *models.Evidence
	err = s.tx.View(ctx, func(ctx context.Context) error {
		var err error
		e, err = s.ownedEvidence(ctx, p.FactoryID, evidenceID, false)
		if err != nil {
			return err
		}
		return s.attachVersions(ctx, e)
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Delete removes the evidence and all its versions.
func (s *Service) Delete(ctx context.Context, p policy.Principal, evidenceID id.EvidenceID) (err error) {
	start := time.Now()
	defer s.metrics.Observe("delete", start)
	ctx, span := tracing.Start(ctx, tracerName, "evidence.Delete", attribute.String("evidence_id", evidenceID.String()))
	defer func() { tracing.End(span, err) }()

	if err := policy.Require(ctx, s.authorizer, policy.ActionEvidenceDelete, p); err != nil {
		return err
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		e, err := s.ownedEvidence(txCtx, p.FactoryID, evidenceID, true)
		if err != nil {
			return err
		}
		if err := s.store.Delete(txCtx, e.ID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete evidence")
		}
		_, err = s.auditor.Record(txCtx, audit.Record{
			ActorUserID: p.UserID,
			ActorRole:   p.Role,
			Action:      audit.ActionDeleteEvidence,
			ObjectType:  audit.ObjectEvidence,
			ObjectID:    e.ID.String(),
			Metadata:    map[string]any{"factoryId": string(e.FactoryID)},
		})
		return err
	})
	if err != nil {
		return err
	}

	s.metrics.IncDeleted()
	s.logger.InfoContext(ctx, "evidence deleted",
		"request_id", requestcontext.RequestID(ctx),
		"evidence_id", evidenceID,
		"factory_id", p.FactoryID,
	)
	return nil
}

// ResolveVersion checks that evidenceID belongs to factoryID and that
// versionID is one of its versions. It joins the caller's transaction and is
// the lookup other components use instead of reading evidence tables.
func (s *Service) ResolveVersion(ctx context.Context, factoryID id.FactoryID, evidenceID id.EvidenceID, versionID id.VersionID) (*models.Version, error) {
	var v *models.Version
	err := s.tx.View(ctx, func(ctx context.Context) error {
		e, err := s.ownedEvidence(ctx, factoryID, evidenceID, false)
		if err != nil {
			return err
		}
		v, err = s.store.FindVersion(ctx, e.ID, versionID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return models.ErrVersionNotFound
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load evidence version")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// ownedEvidence loads evidence and applies the ownership predicate. Absent
// and foreign evidence are reported identically.
func (s *Service) ownedEvidence(ctx context.Context, factoryID id.FactoryID, evidenceID id.EvidenceID, forUpdate bool) (*models.Evidence, error) {
	find := s.store.FindByID
	if forUpdate {
		find = s.store.FindByIDForUpdate
	}
	e, err := find(ctx, evidenceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, models.ErrNotOwned
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load evidence")
	}
	if !policy.OwnsResource(factoryID, e.FactoryID).IsAllowed() {
		return nil, models.ErrNotOwned
	}
	return e, nil
}

// attachVersions loads children after their parents and attaches them.
func (s *Service) attachVersions(ctx context.Context, list ...*models.Evidence) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]id.EvidenceID, 0, len(list))
	byID := make(map[id.EvidenceID]*models.Evidence, len(list))
	for _, e := range list {
		ids = append(ids, e.ID)
		byID[e.ID] = e
		e.Versions = []*models.Version{}
	}
	versions, err := s.store.ListVersions(ctx, ids)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load evidence versions")
	}
	for _, v := range versions {
		if e, ok := byID[v.EvidenceID]; ok {
			e.Versions = append(e.Versions, v)
		}
	}
	return nil
}
