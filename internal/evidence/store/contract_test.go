package store_test

import (
	"context"
	"errors"
	"time"

	"github.com/stretchr/testify/suite"

	"compliancehub/internal/evidence/models"
	"compliancehub/internal/evidence/service"
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

func (s *storeContract) newEvidence(factory id.FactoryID, at time.Time) (*models.Evidence, *models.Version) {
	expiry, err := id.ParseDate("2027-01-31")
	s.Require().NoError(err)
	e, v, err := models.NewEvidence(factory, "ISO 9001", "certificate", expiry, "", at)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateEvidence(s.ctx, e))
	s.Require().NoError(s.store.CreateVersion(s.ctx, v))
	return e, v
}

func (s *storeContract) TestCreateAndFind() {
	e, _ := s.newEvidence("F001", baseTime)

	got, err := s.store.FindByID(s.ctx, e.ID)
	s.Require().NoError(err)
	s.Equal(e.ID, got.ID)
	s.Equal(id.FactoryID("F001"), got.FactoryID)
	s.Equal("2027-01-31", got.Expiry.String())
	s.Equal("", got.Notes)
	s.True(got.CreatedAt.Equal(baseTime))

	locked, err := s.store.FindByIDForUpdate(s.ctx, e.ID)
	s.Require().NoError(err)
	s.Equal(e.ID, locked.ID)
}

func (s *storeContract) TestFindMissing() {
	_, err := s.store.FindByID(s.ctx, id.NewEvidenceID())
	s.True(errors.Is(err, sentinel.ErrNotFound))
}

func (s *storeContract) TestVersionNumbersAreUnique() {
	e, _ := s.newEvidence("F001", baseTime)

	latest, err := s.store.LatestVersionNumber(s.ctx, e.ID)
	s.Require().NoError(err)
	s.Equal(1, latest)

	dup, err := models.NewVersion(e.ID, 0, nil, nil, baseTime)
	s.Require().NoError(err)
	err = s.store.CreateVersion(s.ctx, dup)
	s.True(errors.Is(err, sentinel.ErrConflict), "got %v", err)

	next, err := models.NewVersion(e.ID, latest, nil, nil, baseTime.Add(time.Minute))
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateVersion(s.ctx, next))

	latest, err = s.store.LatestVersionNumber(s.ctx, e.ID)
	s.Require().NoError(err)
	s.Equal(2, latest)
}

func (s *storeContract) TestLatestVersionNumberWithoutVersions() {
	latest, err := s.store.LatestVersionNumber(s.ctx, id.NewEvidenceID())
	s.Require().NoError(err)
	s.Equal(0, latest)
}

func (s *storeContract) TestListByFactoryIsScopedAndNewestFirst() {
	older, _ := s.newEvidence("F001", baseTime)
	newer, _ := s.newEvidence("F001", baseTime.Add(time.Hour))
	s.newEvidence("F002", baseTime.Add(2*time.Hour))

	list, err := s.store.ListByFactory(s.ctx, "F001")
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(newer.ID, list[0].ID)
	s.Equal(older.ID, list[1].ID)

	empty, err := s.store.ListByFactory(s.ctx, "F999")
	s.Require().NoError(err)
	s.NotNil(empty)
	s.Empty(empty)
}

func (s *storeContract) TestListVersionsAscending() {
	e, v1 := s.newEvidence("F001", baseTime)
	notes := "renewed"
	expiry, _ := id.ParseDate("2028-01-31")
	v2, err := models.NewVersion(e.ID, 1, &notes, &expiry, baseTime.Add(time.Hour))
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateVersion(s.ctx, v2))

	versions, err := s.store.ListVersions(s.ctx, []id.EvidenceID{e.ID})
	s.Require().NoError(err)
	s.Require().Len(versions, 2)
	s.Equal(v1.ID, versions[0].ID)
	s.Equal(1, versions[0].VersionNumber)
	s.Equal(2, versions[1].VersionNumber)
	s.Require().NotNil(versions[1].Notes)
	s.Equal("renewed", *versions[1].Notes)
	s.Require().NotNil(versions[1].Expiry)
	s.Equal("2028-01-31", versions[1].Expiry.String())

	none, err := s.store.ListVersions(s.ctx, nil)
	s.Require().NoError(err)
	s.Empty(none)
}

func (s *storeContract) TestVersionWithoutNotesOrExpiry() {
	e, _ := s.newEvidence("F001", baseTime)
	v2, err := models.NewVersion(e.ID, 1, nil, nil, baseTime.Add(time.Hour))
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateVersion(s.ctx, v2))

	got, err := s.store.FindVersion(s.ctx, e.ID, v2.ID)
	s.Require().NoError(err)
	s.Nil(got.Notes)
	s.Nil(got.Expiry)
}

func (s *storeContract) TestFindVersionRequiresMatchingEvidence() {
	e1, v1 := s.newEvidence("F001", baseTime)
	e2, _ := s.newEvidence("F001", baseTime)

	got, err := s.store.FindVersion(s.ctx, e1.ID, v1.ID)
	s.Require().NoError(err)
	s.Equal(v1.ID, got.ID)

	_, err = s.store.FindVersion(s.ctx, e2.ID, v1.ID)
	s.True(errors.Is(err, sentinel.ErrNotFound))
}

func (s *storeContract) TestDeleteRemovesVersions() {
	e, v1 := s.newEvidence("F001", baseTime)

	s.Require().NoError(s.store.Delete(s.ctx, e.ID))

	_, err := s.store.FindByID(s.ctx, e.ID)
	s.True(errors.Is(err, sentinel.ErrNotFound))
	_, err = s.store.FindVersion(s.ctx, e.ID, v1.ID)
	s.True(errors.Is(err, sentinel.ErrNotFound))

	err = s.store.Delete(s.ctx, e.ID)
	s.True(errors.Is(err, sentinel.ErrNotFound))
}

func (s *storeContract) TestRollbackDiscardsWrites() {
	var created id.EvidenceID
	err := s.tx.RunInTx(s.ctx, func(txCtx context.Context) error {
		expiry, _ := id.ParseDate("2027-01-31")
		e, v, err := models.NewEvidence("F001", "SA8000", "audit", expiry, "", baseTime)
		if err != nil {
			return err
		}
		created = e.ID
		if err := s.store.CreateEvidence(txCtx, e); err != nil {
			return err
		}
		if err := s.store.CreateVersion(txCtx, v); err != nil {
			return err
		}
		return errors.New("boom")
	})
	s.Require().Error(err)

	_, err = s.store.FindByID(s.ctx, created)
	s.True(errors.Is(err, sentinel.ErrNotFound))
}
