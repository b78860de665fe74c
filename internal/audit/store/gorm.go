package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"compliancehub/internal/audit"
	"compliancehub/internal/platform/gormdb"
	id "compliancehub/pkg/domain"
	"compliancehub/pkg/platform/sentinel"
)

type auditLogRow struct {
	Seq         int64     `gorm:"primaryKey;autoIncrement"`
	ID          string    `gorm:"size:36;uniqueIndex"`
	Timestamp   time.Time `gorm:"index"`
	ActorUserID string    `gorm:"size:36;index"`
	ActorRole   string    `gorm:"size:16"`
	Action      string    `gorm:"size:32;index"`
	ObjectType  string    `gorm:"size:32"`
	ObjectID    string    `gorm:"size:64"`
	Metadata    string    `gorm:"type:text"`
}

func (auditLogRow) TableName() string { return "audit_log" }

type auditOutboxRow struct {
	ID          string `gorm:"primaryKey;size:36"`
	EntryID     string `gorm:"size:36"`
	Action      string `gorm:"size:32"`
	Payload     string `gorm:"type:text"`
	CreatedAt   time.Time
	PublishedAt *time.Time `gorm:"index"`
}

func (auditOutboxRow) TableName() string { return "audit_outbox" }

// MigrateGorm creates the audit tables.
func MigrateGorm(db *gorm.DB) error {
	return db.AutoMigrate(&auditLogRow{}, &auditOutboxRow{})
}

// Gorm is the ledger on SQLite or MySQL.
type Gorm struct {
	db *gorm.DB
	tx *gormdb.Tx
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db, tx: gormdb.NewTx(db)}
}

func (s *Gorm) Append(ctx context.Context, entry *audit.Entry) error {
	metadata, err := audit.EncodeMetadata(entry.Metadata)
	if err != nil {
		return fmt.Errorf("marshal audit metadata: %w", err)
	}
	payload, err := encodePayload(entry)
	if err != nil {
		return err
	}
	row := auditLogRow{
		ID:          entry.ID.String(),
		Timestamp:   entry.Timestamp,
		ActorUserID: entry.ActorUserID.String(),
		ActorRole:   string(entry.ActorRole),
		Action:      string(entry.Action),
		ObjectType:  string(entry.ObjectType),
		ObjectID:    entry.ObjectID,
		Metadata:    string(metadata),
	}
	outbox := auditOutboxRow{
		ID:        uuid.NewString(),
		EntryID:   entry.ID.String(),
		Action:    string(entry.Action),
		Payload:   string(payload),
		CreatedAt: entry.Timestamp,
	}

	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		db := gormdb.Conn(txCtx, s.db)
		if err := db.Create(&row).Error; err != nil {
			if gormdb.IsUniqueViolation(err) {
				return fmt.Errorf("insert audit entry: %w", sentinel.ErrConflict)
			}
			return fmt.Errorf("insert audit entry: %w", err)
		}
		if err := db.Create(&outbox).Error; err != nil {
			return fmt.Errorf("insert audit outbox: %w", err)
		}
		return nil
	})
}

func (s *Gorm) Query(ctx context.Context, filter audit.Filter) ([]*audit.Entry, error) {
	q := gormdb.Conn(ctx, s.db).Model(&auditLogRow{})
	if filter.Action != "" {
		q = q.Where("action = ?", string(filter.Action))
	}
	if filter.ObjectType != "" {
		q = q.Where("object_type = ?", string(filter.ObjectType))
	}
	if !filter.ActorUserID.IsNil() {
		q = q.Where("actor_user_id = ?", filter.ActorUserID.String())
	}

	var rows []auditLogRow
	if err := q.Order("timestamp DESC").Order("seq DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}

	out := make([]*audit.Entry, 0, len(rows))
	for _, r := range rows {
		e := audit.Entry{Timestamp: r.Timestamp, ObjectID: r.ObjectID}
		if err := fillEntry(&e, r.ID, r.ActorUserID, r.ActorRole, r.Action, r.ObjectType, []byte(r.Metadata)); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, nil
}

// PendingOutbox locks up to limit unpublished rows. SQLite has a single
// writer and ignores the locking clause.
func (s *Gorm) PendingOutbox(ctx context.Context, limit int) ([]audit.OutboxMessage, error) {
	var rows []auditOutboxRow
	err := gormdb.Conn(ctx, s.db).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("published_at IS NULL").
		Order("created_at").Order("id").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query audit outbox: %w", err)
	}

	out := make([]audit.OutboxMessage, 0, len(rows))
	for _, r := range rows {
		parsed, err := uuid.Parse(r.EntryID)
		if err != nil {
			return nil, fmt.Errorf("parse outbox entry id: %w", err)
		}
		out = append(out, audit.OutboxMessage{
			ID:        r.ID,
			EntryID:   id.AuditEntryID(parsed),
			Action:    audit.Action(r.Action),
			Payload:   []byte(r.Payload),
			CreatedAt: r.CreatedAt,
		})
	}
	return out, nil
}

func (s *Gorm) MarkPublished(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	err := gormdb.Conn(ctx, s.db).Model(&auditOutboxRow{}).
		Where("id IN ?", ids).
		Update("published_at", at).Error
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}
