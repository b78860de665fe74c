package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"compliancehub/internal/platform/gormdb"
	"compliancehub/internal/request/models"
	id "compliancehub/pkg/domain"
	"compliancehub/pkg/platform/sentinel"
)

type requestRow struct {
	ID        string    `gorm:"primaryKey;size:36"`
	BuyerID   string    `gorm:"size:36;index:idx_request_buyer_created,priority:1"`
	FactoryID string    `gorm:"size:64;index:idx_request_factory_created,priority:1"`
	Title     string    `gorm:"size:255"`
	Status    string    `gorm:"size:16"`
	CreatedAt time.Time `gorm:"index:idx_request_buyer_created,priority:2;index:idx_request_factory_created,priority:2"`
	UpdatedAt time.Time
}

func (requestRow) TableName() string { return "request" }

type itemRow struct {
	ID         string  `gorm:"primaryKey;size:36"`
	RequestID  string  `gorm:"size:36;index:idx_request_item_request,priority:1"`
	DocType    string  `gorm:"size:128"`
	Status     string  `gorm:"size:16"`
	EvidenceID *string `gorm:"size:36"`
	VersionID  *string `gorm:"size:36"`
	Position   int     `gorm:"index:idx_request_item_request,priority:2"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (itemRow) TableName() string { return "request_item" }

// MigrateGorm creates the request tables.
func MigrateGorm(db *gorm.DB) error {
	return db.AutoMigrate(&requestRow{}, &itemRow{})
}

// Gorm stores requests on SQLite or MySQL.
type Gorm struct {
	db *gorm.DB
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func (s *Gorm) CreateRequest(ctx context.Context, r *models.Request) error {
	db := gormdb.Conn(ctx, s.db)
	row := requestRow{
		ID:        r.ID.String(),
		BuyerID:   r.BuyerID.String(),
		FactoryID: string(r.FactoryID),
		Title:     r.Title,
		Status:    string(r.Status),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		if gormdb.IsUniqueViolation(err) {
			return fmt.Errorf("insert request: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert request: %w", err)
	}
	if len(r.Items) == 0 {
		return nil
	}
	items := make([]itemRow, len(r.Items))
	for i, item := range r.Items {
		items[i] = toItemRow(item)
	}
	if err := db.Create(&items).Error; err != nil {
		return fmt.Errorf("insert request items: %w", err)
	}
	return nil
}

func (s *Gorm) FindByID(ctx context.Context, requestID id.RequestID) (*models.Request, error) {
	return s.findOne(gormdb.Conn(ctx, s.db), requestID)
}

func (s *Gorm) FindByIDForUpdate(ctx context.Context, requestID id.RequestID) (*models.Request, error) {
	return s.findOne(gormdb.Conn(ctx, s.db).Clauses(clause.Locking{Strength: "UPDATE"}), requestID)
}

func (s *Gorm) findOne(db *gorm.DB, requestID id.RequestID) (*models.Request, error) {
	var row requestRow
	if err := db.Where("id = ?", requestID.String()).Take(&row).Error; err != nil {
		if gormdb.IsNotFound(err) {
			return nil, fmt.Errorf("request %s: %w", requestID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find request: %w", err)
	}
	return row.toModel()
}

func (s *Gorm) ListByBuyer(ctx context.Context, buyerID id.UserID) ([]*models.Request, error) {
	return s.list(gormdb.Conn(ctx, s.db).Where("buyer_id = ?", buyerID.String()))
}

func (s *Gorm) ListByFactory(ctx context.Context, factoryID id.FactoryID) ([]*models.Request, error) {
	return s.list(gormdb.Conn(ctx, s.db).Where("factory_id = ?", string(factoryID)))
}

func (s *Gorm) list(db *gorm.DB) ([]*models.Request, error) {
	var rows []requestRow
	if err := db.Order("created_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	out := make([]*models.Request, 0, len(rows))
	for _, row := range rows {
		r, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Gorm) ListItems(ctx context.Context, requestIDs []id.RequestID) ([]*models.Item, error) {
	if len(requestIDs) == 0 {
		return []*models.Item{}, nil
	}
	ids := make([]string, len(requestIDs))
	for i, r := range requestIDs {
		ids[i] = r.String()
	}
	var rows []itemRow
	err := gormdb.Conn(ctx, s.db).
		Where("request_id IN ?", ids).
		Order("request_id").Order("position").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list request items: %w", err)
	}
	out := make([]*models.Item, 0, len(rows))
	for _, row := range rows {
		item, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func (s *Gorm) FindItem(ctx context.Context, requestID id.RequestID, itemID id.ItemID) (*models.Item, error) {
	var row itemRow
	err := gormdb.Conn(ctx, s.db).
		Where("id = ? AND request_id = ?", itemID.String(), requestID.String()).
		Take(&row).Error
	if err != nil {
		if gormdb.IsNotFound(err) {
			return nil, fmt.Errorf("request item %s: %w", itemID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find request item: %w", err)
	}
	return row.toModel()
}

func (s *Gorm) UpdateItem(ctx context.Context, item *models.Item) error {
	row := toItemRow(item)
	res := gormdb.Conn(ctx, s.db).Model(&itemRow{}).
		Where("id = ? AND request_id = ?", row.ID, row.RequestID).
		Updates(map[string]any{
			"status":      row.Status,
			"evidence_id": row.EvidenceID,
			"version_id":  row.VersionID,
			"updated_at":  row.UpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("update request item: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("request item %s: %w", item.ID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *Gorm) UpdateStatus(ctx context.Context, requestID id.RequestID, status models.Status, updatedAt time.Time) error {
	res := gormdb.Conn(ctx, s.db).Model(&requestRow{}).
		Where("id = ?", requestID.String()).
		Updates(map[string]any{"status": string(status), "updated_at": updatedAt})
	if res.Error != nil {
		return fmt.Errorf("update request status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("request %s: %w", requestID, sentinel.ErrNotFound)
	}
	return nil
}

func toItemRow(item *models.Item) itemRow {
	row := itemRow{
		ID:        item.ID.String(),
		RequestID: item.RequestID.String(),
		DocType:   item.DocType,
		Status:    string(item.Status),
		Position:  item.Position,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}
	if item.EvidenceID != nil {
		evidenceID := item.EvidenceID.String()
		row.EvidenceID = &evidenceID
	}
	if item.VersionID != nil {
		versionID := item.VersionID.String()
		row.VersionID = &versionID
	}
	return row
}

func (r requestRow) toModel() (*models.Request, error) {
	parsedID, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("parse request id: %w", err)
	}
	parsedBuyer, err := uuid.Parse(r.BuyerID)
	if err != nil {
		return nil, fmt.Errorf("parse request buyer id: %w", err)
	}
	return &models.Request{
		ID:        id.RequestID(parsedID),
		BuyerID:   id.UserID(parsedBuyer),
		FactoryID: id.FactoryID(r.FactoryID),
		Title:     r.Title,
		Status:    models.Status(r.Status),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}, nil
}

func (r itemRow) toModel() (*models.Item, error) {
	item := &models.Item{DocType: r.DocType, Position: r.Position, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
	return fillItem(item, r.ID, r.RequestID, r.Status, nullString(r.EvidenceID), nullString(r.VersionID))
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
