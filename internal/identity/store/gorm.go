package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"compliancehub/internal/identity/models"
	"compliancehub/internal/platform/gormdb"
	id "compliancehub/pkg/domain"
	"compliancehub/pkg/platform/sentinel"
)

// userRow stores the email lower-cased so a plain unique index is
// case-insensitive on both dialects.
type userRow struct {
	ID           string  `gorm:"primaryKey;size:36"`
	Email        string  `gorm:"size:255;uniqueIndex:idx_users_email"`
	PasswordHash string  `gorm:"size:100"`
	FirstName    string  `gorm:"size:100"`
	LastName     string  `gorm:"size:100"`
	Role         string  `gorm:"size:16"`
	FactoryID    *string `gorm:"size:64"`
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (userRow) TableName() string { return "users" }

// MigrateGorm creates the users table.
func MigrateGorm(db *gorm.DB) error {
	return db.AutoMigrate(&userRow{})
}

type Gorm struct {
	db *gorm.DB
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func (s *Gorm) Create(ctx context.Context, u *models.User) error {
	row := userRow{
		ID:           u.ID.String(),
		Email:        models.NormalizeEmail(u.Email),
		PasswordHash: u.PasswordHash,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Role:         string(u.Role),
		IsActive:     u.IsActive,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
	if !u.FactoryID.IsZero() {
		factoryID := string(u.FactoryID)
		row.FactoryID = &factoryID
	}
	// Select("*") keeps gorm from skipping a false IsActive as a zero value.
	if err := gormdb.Conn(ctx, s.db).Select("*").Create(&row).Error; err != nil {
		if gormdb.IsUniqueViolation(err) {
			return fmt.Errorf("insert user: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Gorm) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	return s.findOne(ctx, "id = ?", userID.String())
}

func (s *Gorm) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, "email = ?", models.NormalizeEmail(email))
}

func (s *Gorm) findOne(ctx context.Context, cond string, arg string) (*models.User, error) {
	var row userRow
	if err := gormdb.Conn(ctx, s.db).Where(cond, arg).Take(&row).Error; err != nil {
		if gormdb.IsNotFound(err) {
			return nil, fmt.Errorf("user %s: %w", arg, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	parsed, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}
	u := &models.User{
		ID:           id.UserID(parsed),
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		FirstName:    row.FirstName,
		LastName:     row.LastName,
		Role:         id.Role(row.Role),
		IsActive:     row.IsActive,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
	if row.FactoryID != nil {
		u.FactoryID = id.FactoryID(*row.FactoryID)
	}
	return u, nil
}
