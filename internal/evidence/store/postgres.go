package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"compliancehub/internal/evidence/models"
	"compliancehub/internal/platform/postgres"
	id "compliancehub/pkg/domain"
	"compliancehub/pkg/platform/sentinel"
	txcontext "compliancehub/pkg/platform/tx"
)

// Postgres stores evidence in the evidence and evidence_version tables.
// Versions are removed with their parent by ON DELETE CASCADE.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const evidenceColumns = `id, factory_id, name, doc_type, expiry, notes, created_at, updated_at`

func (s *Postgres) CreateEvidence(ctx context.Context, e *models.Evidence) error {
	_, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO evidence (`+evidenceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID.String(), string(e.FactoryID), e.Name, e.DocType, e.Expiry.Time(), e.Notes, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("insert evidence: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert evidence: %w", err)
	}
	return nil
}

func (s *Postgres) CreateVersion(ctx context.Context, v *models.Version) error {
	var expiry any
	if v.Expiry != nil {
		expiry = v.Expiry.Time()
	}
	_, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO evidence_version (id, evidence_id, version_number, notes, expiry, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		v.ID.String(), v.EvidenceID.String(), v.VersionNumber, v.Notes, expiry, v.CreatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("insert evidence version %d: %w", v.VersionNumber, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert evidence version: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, evidenceID id.EvidenceID) (*models.Evidence, error) {
	return s.findOne(ctx, `SELECT `+evidenceColumns+` FROM evidence WHERE id = $1`, evidenceID)
}

func (s *Postgres) FindByIDForUpdate(ctx context.Context, evidenceID id.EvidenceID) (*models.Evidence, error) {
	return s.findOne(ctx, `SELECT `+evidenceColumns+` FROM evidence WHERE id = $1 FOR UPDATE`, evidenceID)
}

func (s *Postgres) findOne(ctx context.Context, query string, evidenceID id.EvidenceID) (*models.Evidence, error) {
	row := txcontext.Conn(ctx, s.db).QueryRowContext(ctx, query, evidenceID.String())
	e, err := scanEvidence(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("evidence %s: %w", evidenceID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find evidence: %w", err)
	}
	return e, nil
}

func (s *Postgres) LatestVersionNumber(ctx context.Context, evidenceID id.EvidenceID) (int, error) {
	var latest int
	err := txcontext.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version_number), 0) FROM evidence_version WHERE evidence_id = $1`,
		evidenceID.String(),
	).Scan(&latest)
	if err != nil {
		return 0, fmt.Errorf("latest version number: %w", err)
	}
	return latest, nil
}

func (s *Postgres) ListByFactory(ctx context.Context, factoryID id.FactoryID) ([]*models.Evidence, error) {
	rows, err := txcontext.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT `+evidenceColumns+` FROM evidence WHERE factory_id = $1 ORDER BY created_at DESC, id DESC`,
		string(factoryID),
	)
	if err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Evidence, 0)
	for rows.Next() {
		e, err := scanEvidence(rows)
		if err != nil {
			return nil, fmt.Errorf("scan evidence: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Postgres) ListVersions(ctx context.Context, evidenceIDs []id.EvidenceID) ([]*models.Version, error) {
	if len(evidenceIDs) == 0 {
		return []*models.Version{}, nil
	}
	ids := make([]string, len(evidenceIDs))
	for i, e := range evidenceIDs {
		ids[i] = e.String()
	}
	rows, err := txcontext.Conn(ctx, s.db).QueryContext(ctx, `
		SELECT id, evidence_id, version_number, notes, expiry, created_at
		FROM evidence_version
		WHERE evidence_id = ANY($1)
		ORDER BY evidence_id, version_number`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("list evidence versions: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Version, 0)
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan evidence version: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Postgres) FindVersion(ctx context.Context, evidenceID id.EvidenceID, versionID id.VersionID) (*models.Version, error) {
	row := txcontext.Conn(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, evidence_id, version_number, notes, expiry, created_at
		FROM evidence_version
		WHERE id = $1 AND evidence_id = $2`, versionID.String(), evidenceID.String())
	v, err := scanVersion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("version %s: %w", versionID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find evidence version: %w", err)
	}
	return v, nil
}

func (s *Postgres) Delete(ctx context.Context, evidenceID id.EvidenceID) error {
	res, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, `DELETE FROM evidence WHERE id = $1`, evidenceID.String())
	if err != nil {
		return fmt.Errorf("delete evidence: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("evidence %s: %w", evidenceID, sentinel.ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvidence(row scanner) (*models.Evidence, error) {
	var (
		e        models.Evidence
		rawID    string
		factory  string
		expiryAt time.Time
	)
	if err := row.Scan(&rawID, &factory, &e.Name, &e.DocType, &expiryAt, &e.Notes, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse evidence id: %w", err)
	}
	e.ID = id.EvidenceID(parsed)
	e.FactoryID = id.FactoryID(factory)
	e.Expiry = id.DateOf(expiryAt)
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return &e, nil
}

func scanVersion(row scanner) (*models.Version, error) {
	var (
		v          models.Version
		rawID      string
		evidenceID string
		notes      sql.NullString
		expiry     sql.NullTime
	)
	if err := row.Scan(&rawID, &evidenceID, &v.VersionNumber, &notes, &expiry, &v.CreatedAt); err != nil {
		return nil, err
	}
	parsedID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse version id: %w", err)
	}
	parsedEvidence, err := uuid.Parse(evidenceID)
	if err != nil {
		return nil, fmt.Errorf("parse version evidence id: %w", err)
	}
	v.ID = id.VersionID(parsedID)
	v.EvidenceID = id.EvidenceID(parsedEvidence)
	if notes.Valid {
		n := notes.String
		v.Notes = &n
	}
	if expiry.Valid {
		d := id.DateOf(expiry.Time)
		v.Expiry = &d
	}
	v.CreatedAt = v.CreatedAt.UTC()
	return &v, nil
}
