package store_test

import (
	"context"
	"errors"
	"time"

	"github.com/stretchr/testify/suite"

	"compliancehub/internal/request/models"
	"compliancehub/internal/request/service"
	id "compliancehub/pkg/domain"
	"compliancehub/pkg/platform/sentinel"
)

// storeContract runs the same behaviour checks against every backend.
type storeContract struct {
	suite.Suite
	ctx   context.Context
	store service.Store
	tx    service.TxRunner
}

var baseTime = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func (s *storeContract) newRequest(buyer id.UserID, factory id.FactoryID, at time.Time, docTypes ...string) *models.Request {
	if len(docTypes) == 0 {
		docTypes = []string{"certificate", "policy"}
	}
	r, err := models.NewRequest(buyer, factory, "Q1 audit", docTypes, at)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateRequest(s.ctx, r))
	return r
}

func (s *storeContract) TestCreateAndFind() {
	buyer := id.NewUserID()
	r := s.newRequest(buyer, "F001", baseTime)

	got, err := s.store.FindByID(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(buyer, got.BuyerID)
	s.Equal(id.FactoryID("F001"), got.FactoryID)
	s.Equal(models.StatusOpen, got.Status)
	s.True(got.CreatedAt.Equal(baseTime))

	locked, err := s.store.FindByIDForUpdate(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(r.ID, locked.ID)

	items, err := s.store.ListItems(s.ctx, []id.RequestID{r.ID})
	s.Require().NoError(err)
	s.Require().Len(items, 2)
	s.Equal("certificate", items[0].DocType)
	s.Equal("policy", items[1].DocType)
	s.Equal(models.ItemPending, items[0].Status)
	s.Nil(items[0].EvidenceID)
	s.Nil(items[0].VersionID)
}

func (s *storeContract) TestFindMissing() {
	_, err := s.store.FindByID(s.ctx, id.NewRequestID())
	s.True(errors.Is(err, sentinel.ErrNotFound))

	_, err = s.store.FindItem(s.ctx, id.NewRequestID(), id.NewItemID())
	s.True(errors.Is(err, sentinel.ErrNotFound))
}

func (s *storeContract) TestListsAreScopedAndNewestFirst() {
	buyer := id.NewUserID()
	older := s.newRequest(buyer, "F001", baseTime)
	newer := s.newRequest(buyer, "F002", baseTime.Add(time.Hour))
	other := s.newRequest(id.NewUserID(), "F001", baseTime.Add(2*time.Hour))

	mine, err := s.store.ListByBuyer(s.ctx, buyer)
	s.Require().NoError(err)
	s.Require().Len(mine, 2)
	s.Equal(newer.ID, mine[0].ID)
	s.Equal(older.ID, mine[1].ID)

	factory, err := s.store.ListByFactory(s.ctx, "F001")
	s.Require().NoError(err)
	s.Require().Len(factory, 2)
	s.Equal(other.ID, factory[0].ID)
	s.Equal(older.ID, factory[1].ID)

	none, err := s.store.ListByFactory(s.ctx, "F999")
	s.Require().NoError(err)
	s.NotNil(none)
	s.Empty(none)
}

func (s *storeContract) TestFindItemRequiresMatchingRequest() {
	r1 := s.newRequest(id.NewUserID(), "F001", baseTime)
	r2 := s.newRequest(id.NewUserID(), "F001", baseTime)

	got, err := s.store.FindItem(s.ctx, r1.ID, r1.Items[0].ID)
	s.Require().NoError(err)
	s.Equal("certificate", got.DocType)

	_, err = s.store.FindItem(s.ctx, r2.ID, r1.Items[0].ID)
	s.True(errors.Is(err, sentinel.ErrNotFound))
}

func (s *storeContract) TestUpdateItemAndStatus() {
	r := s.newRequest(id.NewUserID(), "F001", baseTime, "certificate")
	item, err := s.store.FindItem(s.ctx, r.ID, r.Items[0].ID)
	s.Require().NoError(err)

	evidenceID, versionID := id.NewEvidenceID(), id.NewVersionID()
	later := baseTime.Add(time.Hour)
	s.Require().NoError(item.Fulfill(evidenceID, versionID, later))
	s.Require().NoError(s.store.UpdateItem(s.ctx, item))
	s.Require().NoError(s.store.UpdateStatus(s.ctx, r.ID, models.StatusCompleted, later))

	got, err := s.store.FindItem(s.ctx, r.ID, item.ID)
	s.Require().NoError(err)
	s.Equal(models.ItemFulfilled, got.Status)
	s.Require().NotNil(got.EvidenceID)
	s.Equal(evidenceID, *got.EvidenceID)
	s.Require().NotNil(got.VersionID)
	s.Equal(versionID, *got.VersionID)

	reloaded, err := s.store.FindByID(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusCompleted, reloaded.Status)
	s.True(reloaded.UpdatedAt.Equal(later))

	err = s.store.UpdateStatus(s.ctx, id.NewRequestID(), models.StatusCompleted, later)
	s.True(errors.Is(err, sentinel.ErrNotFound))
}

func (s *storeContract) TestRollbackDiscardsWrites() {
	var created *models.Request
	err := s.tx.RunInTx(s.ctx, func(txCtx context.Context) error {
		r, err := models.NewRequest(id.NewUserID(), "F001", "Q2", []string{"cert"}, baseTime)
		if err != nil {
			return err
		}
		created = r
		if err := s.store.CreateRequest(txCtx, r); err != nil {
			return err
		}
		return errors.New("boom")
	})
	s.Require().Error(err)

	_, err = s.store.FindByID(s.ctx, created.ID)
	s.True(errors.Is(err, sentinel.ErrNotFound))
	items, err := s.store.ListItems(s.ctx, []id.RequestID{created.ID})
	s.Require().NoError(err)
	s.Empty(items)
}
