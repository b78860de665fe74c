package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"compliancehub/internal/request/models"
	id "compliancehub/pkg/domain"
	"compliancehub/pkg/platform/sentinel"
	txcontext "compliancehub/pkg/platform/tx"
)

// Postgres stores requests in the request and request_item tables.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const (
	requestColumns = `id, buyer_id, factory_id, title, status, created_at, updated_at`
	itemColumns    = `id, request_id, doc_type, status, evidence_id, version_id, position, created_at, updated_at`
)

// CreateRequest inserts the request row and then all items in one statement
// using unnest over parallel arrays.
func (s *Postgres) CreateRequest(ctx context.Context, r *models.Request) error {
	q := txcontext.Conn(ctx, s.db)
	_, err := q.ExecContext(ctx, `
		INSERT INTO request (`+requestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID.String(), r.BuyerID.String(), string(r.FactoryID), r.Title, string(r.Status), r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	if len(r.Items) == 0 {
		return nil
	}

	var (
		ids       = make([]string, len(r.Items))
		docTypes  = make([]string, len(r.Items))
		statuses  = make([]string, len(r.Items))
		positions = make([]int64, len(r.Items))
	)
	for i, item := range r.Items {
		ids[i] = item.ID.String()
		docTypes[i] = item.DocType
		statuses[i] = string(item.Status)
		positions[i] = int64(item.Position)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO request_item (id, request_id, doc_type, status, position, created_at, updated_at)
		SELECT item.id::uuid, $1, item.doc_type, item.status, item.position, $2, $2
		FROM unnest($3::text[], $4::text[], $5::text[], $6::int[]) AS item(id, doc_type, status, position)`,
		r.ID.String(), r.CreatedAt, pq.Array(ids), pq.Array(docTypes), pq.Array(statuses), pq.Array(positions),
	)
	if err != nil {
		return fmt.Errorf("insert request items: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, requestID id.RequestID) (*models.Request, error) {
	return s.findOne(ctx, `SELECT `+requestColumns+` FROM request WHERE id = $1`, requestID)
}

func (s *Postgres) FindByIDForUpdate(ctx context.Context, requestID id.RequestID) (*models.Request, error) {
	return s.findOne(ctx, `SELECT `+requestColumns+` FROM request WHERE id = $1 FOR UPDATE`, requestID)
}

func (s *Postgres) findOne(ctx context.Context, query string, requestID id.RequestID) (*models.Request, error) {
	r, err := scanRequest(txcontext.Conn(ctx, s.db).QueryRowContext(ctx, query, requestID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("request %s: %w", requestID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find request: %w", err)
	}
	return r, nil
}

func (s *Postgres) ListByBuyer(ctx context.Context, buyerID id.UserID) ([]*models.Request, error) {
	return s.list(ctx, `SELECT `+requestColumns+` FROM request WHERE buyer_id = $1 ORDER BY created_at DESC, id DESC`, buyerID.String())
}

func (s *Postgres) ListByFactory(ctx context.Context, factoryID id.FactoryID) ([]*models.Request, error) {
	return s.list(ctx, `SELECT `+requestColumns+` FROM request WHERE factory_id = $1 ORDER BY created_at DESC, id DESC`, string(factoryID))
}

func (s *Postgres) list(ctx context.Context, query string, arg string) ([]*models.Request, error) {
	rows, err := txcontext.Conn(ctx, s.db).QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Request, 0)
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Postgres) ListItems(ctx context.Context, requestIDs []id.RequestID) ([]*models.Item, error) {
	if len(requestIDs) == 0 {
		return []*models.Item{}, nil
	}
	ids := make([]string, len(requestIDs))
	for i, r := range requestIDs {
		ids[i] = r.String()
	}
	rows, err := txcontext.Conn(ctx, s.db).QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM request_item
		WHERE request_id = ANY($1)
		ORDER BY request_id, position`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("list request items: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request item: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *Postgres) FindItem(ctx context.Context, requestID id.RequestID, itemID id.ItemID) (*models.Item, error) {
	row := txcontext.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM request_item WHERE id = $1 AND request_id = $2`,
		itemID.String(), requestID.String())
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("request item %s: %w", itemID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find request item: %w", err)
	}
	return item, nil
}

func (s *Postgres) UpdateItem(ctx context.Context, item *models.Item) error {
	var evidenceID, versionID any
	if item.EvidenceID != nil {
		evidenceID = item.EvidenceID.String()
	}
	if item.VersionID != nil {
		versionID = item.VersionID.String()
	}
	res, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, `
		UPDATE request_item
		SET status = $1, evidence_id = $2, version_id = $3, updated_at = $4
		WHERE id = $5 AND request_id = $6`,
		string(item.Status), evidenceID, versionID, item.UpdatedAt, item.ID.String(), item.RequestID.String(),
	)
	if err != nil {
		return fmt.Errorf("update request item: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("request item %s: %w", item.ID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *Postgres) UpdateStatus(ctx context.Context, requestID id.RequestID, status models.Status, updatedAt time.Time) error {
	res, err := txcontext.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE request SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), updatedAt, requestID.String())
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("request %s: %w", requestID, sentinel.ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(row scanner) (*models.Request, error) {
	var (
		r              models.Request
		rawID, buyerID string
		factoryID      string
		status         string
	)
	if err := row.Scan(&rawID, &buyerID, &factoryID, &r.Title, &status, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	parsedID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse request id: %w", err)
	}
	parsedBuyer, err := uuid.Parse(buyerID)
	if err != nil {
		return nil, fmt.Errorf("parse request buyer id: %w", err)
	}
	r.ID = id.RequestID(parsedID)
	r.BuyerID = id.UserID(parsedBuyer)
	r.FactoryID = id.FactoryID(factoryID)
	r.Status = models.Status(status)
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return &r, nil
}

func scanItem(row scanner) (*models.Item, error) {
	var (
		item                  models.Item
		rawID, requestID      string
		status                string
		evidenceID, versionID sql.NullString
	)
	if err := row.Scan(&rawID, &requestID, &item.DocType, &status, &evidenceID, &versionID,
		&item.Position, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	return fillItem(&item, rawID, requestID, status, evidenceID, versionID)
}

func fillItem(item *models.Item, rawID, requestID, status string, evidenceID, versionID sql.NullString) (*models.Item, error) {
	parsedID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse item id: %w", err)
	}
	parsedRequest, err := uuid.Parse(requestID)
	if err != nil {
		return nil, fmt.Errorf("parse item request id: %w", err)
	}
	item.ID = id.ItemID(parsedID)
	item.RequestID = id.RequestID(parsedRequest)
	item.Status = models.ItemStatus(status)
	if evidenceID.Valid {
		parsed, err := id.ParseEvidenceID(evidenceID.String)
		if err != nil {
			return nil, fmt.Errorf("parse item evidence id: %w", err)
		}
		item.EvidenceID = &parsed
	}
	if versionID.Valid {
		parsed, err := id.ParseVersionID(versionID.String)
		if err != nil {
			return nil, fmt.Errorf("parse item version id: %w", err)
		}
		item.VersionID = &parsed
	}
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	return item, nil
}
