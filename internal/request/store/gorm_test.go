package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"compliancehub/internal/platform/gormdb"
	"compliancehub/internal/request/store"
)

type GormStoreSuite struct {
	storeContract
}

func TestGormStoreSuite(t *testing.T) {
	suite.Run(t, new(GormStoreSuite))
}

func (s *GormStoreSuite) SetupTest() {
	s.ctx = context.Background()
	db, err := gormdb.Open(gormdb.DriverSQLite, ":memory:")
	s.Require().NoError(err)
	s.Require().NoError(store.MigrateGorm(db))
	s.store = store.NewGorm(db)
	s.tx = gormdb.NewTx(db)
}
