package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gorm.io/gorm"

	"compliancehub/internal/audit"
	auditstore "compliancehub/internal/audit/store"
	evidenceservice "compliancehub/internal/evidence/service"
	evidencestore "compliancehub/internal/evidence/store"
	identityservice "compliancehub/internal/identity/service"
	identitystore "compliancehub/internal/identity/store"
	"compliancehub/internal/platform/config"
	"compliancehub/internal/platform/gormdb"
	"compliancehub/internal/platform/memtx"
	"compliancehub/internal/platform/postgres"
	requestservice "compliancehub/internal/request/service"
	requeststore "compliancehub/internal/request/store"
)

// AuditStore is an audit backend with its outbox.
type AuditStore interface {
	audit.Store
	PendingOutbox(ctx context.Context, limit int) ([]audit.OutboxMessage, error)
	MarkPublished(ctx context.Context, ids []string, at time.Time) error
}

// TxRunner is the unit of work shared by every module of one backend.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
	View(ctx context.Context, fn func(ctx context.Context) error) error
}

// Backend groups the stores of one persistence driver. All stores share the
// same TxRunner so a workflow write and its audit entry commit together.
type Backend struct {
	Driver   string
	Tx       TxRunner
	Users    identityservice.Store
	Evidence evidenceservice.Store
	Requests requestservice.Store
	Audit    AuditStore
	ping     func(ctx context.Context) error
	close    func() error
}

// Ping reports whether the database is reachable.
func (b *Backend) Ping(ctx context.Context) error {
	if b.ping == nil {
		return nil
	}
	return b.ping(ctx)
}

func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// OpenBackend opens the configured driver. With migrate set, the schema is
// brought up to date before returning.
func OpenBackend(ctx context.Context, cfg config.DatabaseConfig, migrate bool) (*Backend, error) {
	switch cfg.Driver {
	case config.DriverMemory, "":
		return &Backend{
			Driver:   config.DriverMemory,
			Tx:       memtx.New(),
			Users:    identitystore.NewMemory(),
			Evidence: evidencestore.NewMemory(),
			Requests: requeststore.NewMemory(),
			Audit:    auditstore.NewMemory(),
		}, nil
	case config.DriverPostgres:
		db, err := postgres.Open(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		if migrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		return postgresBackend(db), nil
	case config.DriverSQLite, config.DriverMySQL:
		dsn := cfg.URL
		if cfg.Driver == config.DriverSQLite {
			dsn = cfg.Path
		}
		db, err := gormdb.Open(cfg.Driver, dsn)
		if err != nil {
			return nil, err
		}
		if migrate {
			if err := MigrateGorm(db); err != nil {
				closeGorm(db)
				return nil, err
			}
		}
		return gormBackend(cfg.Driver, db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func postgresBackend(db *sql.DB) *Backend {
	return &Backend{
		Driver:   config.DriverPostgres,
		Tx:       postgres.NewTx(db),
		Users:    identitystore.NewPostgres(db),
		Evidence: evidencestore.NewPostgres(db),
		Requests: requeststore.NewPostgres(db),
		Audit:    auditstore.NewPostgres(db),
		ping:     db.PingContext,
		close:    db.Close,
	}
}

func gormBackend(driver string, db *gorm.DB) *Backend {
	return &Backend{
		Driver:   driver,
		Tx:       gormdb.NewTx(db),
		Users:    identitystore.NewGorm(db),
		Evidence: evidencestore.NewGorm(db),
		Requests: requeststore.NewGorm(db),
		Audit:    auditstore.NewGorm(db),
		ping: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		close: func() error {
			closeGorm(db)
			return nil
		},
	}
}

// MigrateGorm creates every table on a gorm database.
func MigrateGorm(db *gorm.DB) error {
	for name, migrate := range map[string]func(*gorm.DB) error{
		"identity": identitystore.MigrateGorm,
		"evidence": evidencestore.MigrateGorm,
		"request":  requeststore.MigrateGorm,
		"audit":    auditstore.MigrateGorm,
	} {
		if err := migrate(db); err != nil {
			return fmt.Errorf("migrate %s tables: %w", name, err)
		}
	}
	return nil
}

func closeGorm(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
