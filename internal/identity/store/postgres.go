package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"compliancehub/internal/identity/models"
	"compliancehub/internal/platform/postgres"
	id "compliancehub/pkg/domain"
	"compliancehub/pkg/platform/sentinel"
	txcontext "compliancehub/pkg/platform/tx"
)

// Postgres stores users in the users table. Email uniqueness is enforced by
// the LOWER(email) index.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const userColumns = `id, email, password_hash, first_name, last_name, role, factory_id, is_active, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, u *models.User) error {
	var factoryID sql.NullString
	if !u.FactoryID.IsZero() {
		factoryID = sql.NullString{String: string(u.FactoryID), Valid: true}
	}
	_, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		u.ID.String(), models.NormalizeEmail(u.Email), u.PasswordHash, u.FirstName, u.LastName,
		string(u.Role), factoryID, u.IsActive, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("insert user: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	return s.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID.String())
}

func (s *Postgres) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = $1`, models.NormalizeEmail(email))
}

func (s *Postgres) findOne(ctx context.Context, query string, arg string) (*models.User, error) {
	var (
		u         models.User
		rawID     string
		role      string
		factoryID sql.NullString
	)
	err := txcontext.Conn(ctx, s.db).QueryRowContext(ctx, query, arg).Scan(
		&rawID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&role, &factoryID, &u.IsActive, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", arg, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	parsed, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}
	u.ID = id.UserID(parsed)
	u.Role = id.Role(role)
	u.FactoryID = id.FactoryID(factoryID.String)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}
