package audit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"compliancehub/internal/audit"
	"compliancehub/internal/audit/metrics"
	"compliancehub/internal/audit/store"
	"compliancehub/internal/platform/memtx"
	id "compliancehub/pkg/domain"
	dErrors "compliancehub/pkg/domain-errors"
	"compliancehub/pkg/requestcontext"
)

type failingStore struct{ err error }

func (f failingStore) Append(context.Context, *audit.Entry) error { return f.err }
func (f failingStore) Query(context.Context, audit.Filter) ([]*audit.Entry, error) {
	return nil, f.err
}

type LedgerSuite struct {
	suite.Suite
	ctx     context.Context
	store   *store.Memory
	tx      *memtx.Tx
	metrics *metrics.Metrics
	ledger  *audit.Ledger
	actor   id.UserID
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewMemory()
	s.tx = memtx.New()
	s.metrics = metrics.NewWith(prometheus.NewRegistry())
	s.ledger = audit.NewLedger(s.store, audit.WithMetrics(s.metrics), audit.WithViewer(s.tx))
	s.actor = id.NewUserID()
}

func (s *LedgerSuite) record(ctx context.Context, action audit.Action, objectType audit.ObjectType, actor id.UserID) *audit.Entry {
	e, err := s.ledger.Record(ctx, audit.Record{
		ActorUserID: actor,
		ActorRole:   id.RoleFactory,
		Action:      action,
		ObjectType:  objectType,
		ObjectID:    "obj-1",
		Metadata:    map[string]any{"factoryId": "F001", "versionNumber": 2},
	})
	s.Require().NoError(err)
	return e
}

func (s *LedgerSuite) TestRecordStampsEntry() {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(s.ctx, now)

	e := s.record(ctx, audit.ActionCreateEvidence, audit.ObjectEvidence, s.actor)

	s.False(e.ID.IsNil())
	s.Equal(now, e.Timestamp)
	s.Equal(s.actor, e.ActorUserID)
	s.Equal(float64(2), e.Metadata["versionNumber"], "metadata round-trips through JSON")
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Recorded.WithLabelValues(string(audit.ActionCreateEvidence))))
}

func (s *LedgerSuite) TestRecordNilMetadataIsEmptyObject() {
	e, err := s.ledger.Record(s.ctx, audit.Record{
		ActorUserID: s.actor, ActorRole: id.RoleBuyer,
		Action: audit.ActionViewRequests, ObjectType: audit.ObjectRequest, ObjectID: "F001",
	})
	s.Require().NoError(err)
	s.NotNil(e.Metadata)
	s.Empty(e.Metadata)
}

func (s *LedgerSuite) TestRecordRejectsInvalid() {
	cases := map[string]audit.Record{
		"missing actor":    {Action: audit.ActionAddVersion, ObjectType: audit.ObjectVersion, ObjectID: "x"},
		"unknown action":   {ActorUserID: s.actor, Action: "RENAME", ObjectType: audit.ObjectVersion, ObjectID: "x"},
		"unknown object":   {ActorUserID: s.actor, Action: audit.ActionAddVersion, ObjectType: "Blob", ObjectID: "x"},
		"missing objectId": {ActorUserID: s.actor, Action: audit.ActionAddVersion, ObjectType: audit.ObjectVersion},
	}
	for name, rec := range cases {
		s.Run(name, func() {
			_, err := s.ledger.Record(s.ctx, rec)
			s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		})
	}
}

func (s *LedgerSuite) TestRecordFailureIsReturned() {
	ledger := audit.NewLedger(failingStore{err: errors.New("disk full")}, audit.WithMetrics(s.metrics))
	_, err := ledger.Record(s.ctx, audit.Record{
		ActorUserID: s.actor, Action: audit.ActionDeleteEvidence, ObjectType: audit.ObjectEvidence, ObjectID: "e1",
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.WriteFailures))
}

func (s *LedgerSuite) TestRecordRolledBackWithUnitOfWork() {
	boom := errors.New("boom")
	err := s.tx.RunInTx(s.ctx, func(txCtx context.Context) error {
		s.record(txCtx, audit.ActionCreateEvidence, audit.ObjectEvidence, s.actor)
		return boom
	})
	s.Require().ErrorIs(err, boom)

	entries, err := s.ledger.Query(s.ctx, audit.Filter{})
	s.Require().NoError(err)
	s.Empty(entries)

	pending, err := s.store.PendingOutbox(s.ctx, 10)
	s.Require().NoError(err)
	s.Empty(pending)
}

func (s *LedgerSuite) TestQueryDoesNotSeeUncommittedEntries() {
	recorded := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.tx.RunInTx(s.ctx, func(txCtx context.Context) error {
			if _, err := s.ledger.Record(txCtx, audit.Record{
				ActorUserID: s.actor, ActorRole: id.RoleFactory,
				Action: audit.ActionCreateEvidence, ObjectType: audit.ObjectEvidence, ObjectID: "obj-1",
			}); err != nil {
				return err
			}
			close(recorded)
			<-release
			return errors.New("evidence write failed")
		})
	}()
	<-recorded

	queried := make(chan int, 1)
	go func() {
		entries, err := s.ledger.Query(s.ctx, audit.Filter{})
		if err != nil {
			queried <- -1
			return
		}
		queried <- len(entries)
	}()

	select {
	case n := <-queried:
		s.FailNow("query returned during an open unit of work", "entries: %d", n)
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	s.Require().Error(<-done)
	s.Equal(0, <-queried)
}

func (s *LedgerSuite) TestQueryFiltersAndOrders() {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	other := id.NewUserID()

	first := s.record(requestcontext.WithTime(s.ctx, base), audit.ActionCreateEvidence, audit.ObjectEvidence, s.actor)
	second := s.record(requestcontext.WithTime(s.ctx, base), audit.ActionAddVersion, audit.ObjectVersion, s.actor)
	third := s.record(requestcontext.WithTime(s.ctx, base.Add(time.Minute)), audit.ActionAddVersion, audit.ObjectVersion, other)

	s.Run("no filter returns newest first with insertion order breaking ties", func() {
		entries, err := s.ledger.Query(s.ctx, audit.Filter{})
		s.Require().NoError(err)
		s.Require().Len(entries, 3)
		s.Equal([]id.AuditEntryID{third.ID, second.ID, first.ID}, []id.AuditEntryID{entries[0].ID, entries[1].ID, entries[2].ID})
	})

	s.Run("filters are ANDed", func() {
		entries, err := s.ledger.Query(s.ctx, audit.Filter{Action: audit.ActionAddVersion, ActorUserID: s.actor})
		s.Require().NoError(err)
		s.Require().Len(entries, 1)
		s.Equal(second.ID, entries[0].ID)
	})

	s.Run("object type filter", func() {
		entries, err := s.ledger.Query(s.ctx, audit.Filter{ObjectType: audit.ObjectEvidence})
		s.Require().NoError(err)
		s.Require().Len(entries, 1)
		s.Equal(first.ID, entries[0].ID)
	})

	s.Run("no match is an empty list", func() {
		entries, err := s.ledger.Query(s.ctx, audit.Filter{Action: audit.ActionFulfillItem})
		s.Require().NoError(err)
		s.NotNil(entries)
		s.Empty(entries)
	})
}

func (s *LedgerSuite) TestQueriedEntriesAreCopies() {
	s.record(s.ctx, audit.ActionCreateEvidence, audit.ObjectEvidence, s.actor)
	entries, err := s.ledger.Query(s.ctx, audit.Filter{})
	s.Require().NoError(err)
	entries[0].Metadata["factoryId"] = "F999"

	again, err := s.ledger.Query(s.ctx, audit.Filter{})
	s.Require().NoError(err)
	s.Equal("F001", again[0].Metadata["factoryId"])
}
