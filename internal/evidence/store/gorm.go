package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"compliancehub/internal/evidence/models"
	"compliancehub/internal/platform/gormdb"
	id "compliancehub/pkg/domain"
	"compliancehub/pkg/platform/sentinel"
)

type evidenceRow struct {
	ID        string    `gorm:"primaryKey;size:36"`
	FactoryID string    `gorm:"size:64;index:idx_evidence_factory_created,priority:1"`
	Name      string    `gorm:"size:255"`
	DocType   string    `gorm:"size:128"`
	Expiry    string    `gorm:"size:10"`
	Notes     string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"index:idx_evidence_factory_created,priority:2"`
	UpdatedAt time.Time
}

func (evidenceRow) TableName() string { return "evidence" }

type versionRow struct {
	ID            string  `gorm:"primaryKey;size:36"`
	EvidenceID    string  `gorm:"size:36;uniqueIndex:idx_evidence_version_number,priority:1"`
	VersionNumber int     `gorm:"uniqueIndex:idx_evidence_version_number,priority:2"`
	Notes         *string `gorm:"type:text"`
	Expiry        *string `gorm:"size:10"`
	CreatedAt     time.Time
}

func (versionRow) TableName() string { return "evidence_version" }

// MigrateGorm creates the evidence tables.
func MigrateGorm(db *gorm.DB) error {
	return db.AutoMigrate(&evidenceRow{}, &versionRow{})
}

// Gorm stores evidence on SQLite or MySQL. Versions are deleted explicitly
// because SQLite does not enforce foreign keys by default.
type Gorm struct {
	db *gorm.DB
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func (s *Gorm) CreateEvidence(ctx context.Context, e *models.Evidence) error {
	row := evidenceRow{
		ID:        e.ID.String(),
		FactoryID: string(e.FactoryID),
		Name:      e.Name,
		DocType:   e.DocType,
		Expiry:    e.Expiry.String(),
		Notes:     e.Notes,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
	if err := gormdb.Conn(ctx, s.db).Create(&row).Error; err != nil {
		if gormdb.IsUniqueViolation(err) {
			return fmt.Errorf("insert evidence: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert evidence: %w", err)
	}
	return nil
}

func (s *Gorm) CreateVersion(ctx context.Context, v *models.Version) error {
	row := versionRow{
		ID:            v.ID.String(),
		EvidenceID:    v.EvidenceID.String(),
		VersionNumber: v.VersionNumber,
		Notes:         v.Notes,
		CreatedAt:     v.CreatedAt,
	}
	if v.Expiry != nil {
		expiry := v.Expiry.String()
		row.Expiry = &expiry
	}
	if err := gormdb.Conn(ctx, s.db).Create(&row).Error; err != nil {
		if gormdb.IsUniqueViolation(err) {
			return fmt.Errorf("insert evidence version %d: %w", v.VersionNumber, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert evidence version: %w", err)
	}
	return nil
}

func (s *Gorm) FindByID(ctx context.Context, evidenceID id.EvidenceID) (*models.Evidence, error) {
	return s.findOne(gormdb.Conn(ctx, s.db), evidenceID)
}

// FindByIDForUpdate takes a row lock on MySQL. SQLite serialises writers and
// ignores the clause.
func (s *Gorm) FindByIDForUpdate(ctx context.Context, evidenceID id.EvidenceID) (*models.Evidence, error) {
	return s.findOne(gormdb.Conn(ctx, s.db).Clauses(clause.Locking{Strength: "UPDATE"}), evidenceID)
}

func (s *Gorm) findOne(db *gorm.DB, evidenceID id.EvidenceID) (*models.Evidence, error) {
	var row evidenceRow
	if err := db.Where("id = ?", evidenceID.String()).Take(&row).Error; err != nil {
		if gormdb.IsNotFound(err) {
			return nil, fmt.Errorf("evidence %s: %w", evidenceID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find evidence: %w", err)
	}
	return row.toModel()
}

func (s *Gorm) LatestVersionNumber(ctx context.Context, evidenceID id.EvidenceID) (int, error) {
	var latest int
	err := gormdb.Conn(ctx, s.db).Model(&versionRow{}).
		Where("evidence_id = ?", evidenceID.String()).
		Select("COALESCE(MAX(version_number), 0)").
		Scan(&latest).Error
	if err != nil {
		return 0, fmt.Errorf("latest version number: %w", err)
	}
	return latest, nil
}

func (s *Gorm) ListByFactory(ctx context.Context, factoryID id.FactoryID) ([]*models.Evidence, error) {
	var rows []evidenceRow
	err := gormdb.Conn(ctx, s.db).
		Where("factory_id = ?", string(factoryID)).
		Order("created_at DESC").Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	out := make([]*models.Evidence, 0, len(rows))
	for _, r := range rows {
		e, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Gorm) ListVersions(ctx context.Context, evidenceIDs []id.EvidenceID) ([]*models.Version, error) {
	if len(evidenceIDs) == 0 {
		return []*models.Version{}, nil
	}
	ids := make([]string, len(evidenceIDs))
	for i, e := range evidenceIDs {
		ids[i] = e.String()
	}
	var rows []versionRow
	err := gormdb.Conn(ctx, s.db).
		Where("evidence_id IN ?", ids).
		Order("evidence_id").Order("version_number").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list evidence versions: %w", err)
	}
	out := make([]*models.Version, 0, len(rows))
	for _, r := range rows {
		v, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *Gorm) FindVersion(ctx context.Context, evidenceID id.EvidenceID, versionID id.VersionID) (*models.Version, error) {
	var row versionRow
	err := gormdb.Conn(ctx, s.db).
		Where("id = ? AND evidence_id = ?", versionID.String(), evidenceID.String()).
		Take(&row).Error
	if err != nil {
		if gormdb.IsNotFound(err) {
			return nil, fmt.Errorf("version %s: %w", versionID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find evidence version: %w", err)
	}
	return row.toModel()
}

func (s *Gorm) Delete(ctx context.Context, evidenceID id.EvidenceID) error {
	db := gormdb.Conn(ctx, s.db)
	if err := db.Where("evidence_id = ?", evidenceID.String()).Delete(&versionRow{}).Error; err != nil {
		return fmt.Errorf("delete evidence versions: %w", err)
	}
	res := db.Where("id = ?", evidenceID.String()).Delete(&evidenceRow{})
	if res.Error != nil {
		return fmt.Errorf("delete evidence: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("evidence %s: %w", evidenceID, sentinel.ErrNotFound)
	}
	return nil
}

func (r evidenceRow) toModel() (*models.Evidence, error) {
	parsed, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("parse evidence id: %w", err)
	}
	expiry, err := id.ParseDate(r.Expiry)
	if err != nil {
		return nil, fmt.Errorf("parse evidence expiry: %w", err)
	}
	return &models.Evidence{
		ID:        id.EvidenceID(parsed),
		FactoryID: id.FactoryID(r.FactoryID),
		Name:      r.Name,
		DocType:   r.DocType,
		Expiry:    expiry,
		Notes:     r.Notes,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}, nil
}

func (r versionRow) toModel() (*models.Version, error) {
	parsedID, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("parse version id: %w", err)
	}
	parsedEvidence, err := uuid.Parse(r.EvidenceID)
	if err != nil {
		return nil, fmt.Errorf("parse version evidence id: %w", err)
	}
	v := &models.Version{
		ID:            id.VersionID(parsedID),
		EvidenceID:    id.EvidenceID(parsedEvidence),
		VersionNumber: r.VersionNumber,
		Notes:         r.Notes,
		CreatedAt:     r.CreatedAt.UTC(),
	}
	if r.Expiry != nil {
		d, err := id.ParseDate(*r.Expiry)
		if err != nil {
			return nil, fmt.Errorf("parse version expiry: %w", err)
		}
		v.Expiry = &d
	}
	return v, nil
}
