package audit

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"compliancehub/internal/audit/metrics"
	"compliancehub/internal/platform/tracing"
	id "compliancehub/pkg/domain"
	dErrors "compliancehub/pkg/domain-errors"
	"compliancehub/pkg/requestcontext"
)

// Store persists entries. Append joins the transaction carried by ctx, if any.
// Query returns entries newest first, ties broken by insertion order.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
	Query(ctx context.Context, filter Filter) ([]*Entry, error)
}

// Viewer runs reads against committed state only.
type Viewer interface {
	View(ctx context.Context, fn func(ctx context.Context) error) error
}

type directView struct{}

func (directView) View(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Ledger writes and reads audit entries with fail-closed semantics: a failed
// write is returned to the caller, which must abandon its unit of work.
type Ledger struct {
	store   Store
	viewer  Viewer
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Ledger)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) {
		l.metrics = m
	}
}

// WithViewer makes Query wait out writers that share the store's unit of work.
func WithViewer(v Viewer) Option {
	return func(l *Ledger) {
		l.viewer = v
	}
}

func NewLedger(store Store, opts ...Option) *Ledger {
	l := &Ledger{store: store, viewer: directView{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record appends an entry stamped with a fresh id and the request time.
func (l *Ledger) Record(ctx context.Context, rec Record) (_ *Entry, err error) {
	start := time.Now()
	ctx, span := tracing.Start(ctx, "audit", "audit.Record",
		attribute.String("audit.action", string(rec.Action)),
		attribute.String("audit.object_type", string(rec.ObjectType)),
	)
	defer func() { tracing.End(span, err) }()

	if err := rec.validate(); err != nil {
		return nil, err
	}
	// Round-trip so the caller cannot mutate what was written and every
	// backend returns the same shapes.
	raw, err := EncodeMetadata(rec.Metadata)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode audit metadata")
	}
	metadata, err := DecodeMetadata(raw)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode audit metadata")
	}

	entry := &Entry{
		ID:          id.NewAuditEntryID(),
		Timestamp:   requestcontext.Now(ctx).UTC(),
		ActorUserID: rec.ActorUserID,
		ActorRole:   rec.ActorRole,
		Action:      rec.Action,
		ObjectType:  rec.ObjectType,
		ObjectID:    rec.ObjectID,
		Metadata:    metadata,
	}

	if err := l.store.Append(ctx, entry); err != nil {
		l.metrics.IncWriteFailures()
		l.logger.ErrorContext(ctx, "audit write failed",
			"request_id", requestcontext.RequestID(ctx),
			"action", rec.Action,
			"object_id", rec.ObjectID,
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to write audit entry")
	}

	l.metrics.IncRecorded(string(entry.Action))
	l.metrics.ObserveRecord(start)
	l.logger.InfoContext(ctx, string(entry.Action),
		"log_type", "audit",
		"request_id", requestcontext.RequestID(ctx),
		"audit_id", entry.ID,
		"actor_user_id", entry.ActorUserID,
		"actor_role", entry.ActorRole,
		"object_type", entry.ObjectType,
		"object_id", entry.ObjectID,
	)
	return entry, nil
}

// Query returns the entries matching filter, newest first.
func (l *Ledger) Query(ctx context.Context, filter Filter) (_ []*Entry, err error) {
	ctx, span := tracing.Start(ctx, "audit", "audit.Query")
	defer func() { tracing.End(span, err) }()

	var entries []*Entry
	err = l.viewer.View(ctx, func(ctx context.Context) error {
		var err error
		entries, err = l.store.Query(ctx, filter)
		return err
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to query audit log")
	}
	if entries == nil {
		entries = []*Entry{}
	}
	return entries, nil
}
