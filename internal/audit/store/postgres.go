package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"compliancehub/internal/audit"
	"compliancehub/internal/platform/postgres"
	id "compliancehub/pkg/domain"
	"compliancehub/pkg/platform/sentinel"
	txcontext "compliancehub/pkg/platform/tx"
)

// Postgres writes the ledger row and its outbox row in one transaction,
// joining the caller's when ctx carries one.
type Postgres struct {
	db *sql.DB
	tx *postgres.Tx
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, tx: postgres.NewTx(db)}
}

func (s *Postgres) Append(ctx context.Context, entry *audit.Entry) error {
	metadata, err := audit.EncodeMetadata(entry.Metadata)
	if err != nil {
		return fmt.Errorf("marshal audit metadata: %w", err)
	}
	payload, err := encodePayload(entry)
	if err != nil {
		return err
	}

	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		q := txcontext.Conn(txCtx, s.db)
		_, err := q.ExecContext(txCtx, `
			INSERT INTO audit_log (id, timestamp, actor_user_id, actor_role, action, object_type, object_id, metadata)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			entry.ID.String(), entry.Timestamp, entry.ActorUserID.String(), string(entry.ActorRole),
			string(entry.Action), string(entry.ObjectType), entry.ObjectID, metadata,
		)
		if err != nil {
			if postgres.IsUniqueViolation(err) {
				return fmt.Errorf("insert audit entry: %w", sentinel.ErrConflict)
			}
			return fmt.Errorf("insert audit entry: %w", err)
		}
		_, err = q.ExecContext(txCtx, `
			INSERT INTO audit_outbox (id, entry_id, action, payload, created_at)
			VALUES ($1, $2, $3, $4, $5)`,
			uuid.NewString(), entry.ID.String(), string(entry.Action), payload, entry.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("insert audit outbox: %w", err)
		}
		return nil
	})
}

func (s *Postgres) Query(ctx context.Context, filter audit.Filter) ([]*audit.Entry, error) {
	var (
		conds []string
		args  []any
	)
	add := func(column, value string) {
		args = append(args, value)
		conds = append(conds, column+" = $"+strconv.Itoa(len(args)))
	}
	if filter.Action != "" {
		add("action", string(filter.Action))
	}
	if filter.ObjectType != "" {
		add("object_type", string(filter.ObjectType))
	}
	if !filter.ActorUserID.IsNil() {
		add("actor_user_id", filter.ActorUserID.String())
	}

	query := `SELECT id, timestamp, actor_user_id, actor_role, action, object_type, object_id, metadata FROM audit_log`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY timestamp DESC, seq DESC"

	rows, err := txcontext.Conn(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	out := make([]*audit.Entry, 0)
	for rows.Next() {
		var (
			entryID, actorID, role, action, objectType string
			e                                          audit.Entry
			metadata                                   []byte
		)
		if err := rows.Scan(&entryID, &e.Timestamp, &actorID, &role, &action, &objectType, &e.ObjectID, &metadata); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if err := fillEntry(&e, entryID, actorID, role, action, objectType, metadata); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit log: %w", err)
	}
	return out, nil
}

// PendingOutbox locks up to limit unpublished rows for the caller's
// transaction. Rows locked by another relay are skipped.
func (s *Postgres) PendingOutbox(ctx context.Context, limit int) ([]audit.OutboxMessage, error) {
	rows, err := txcontext.Conn(ctx, s.db).QueryContext(ctx, `
		SELECT id, entry_id, action, payload, created_at
		FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at, id
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit outbox: %w", err)
	}
	defer rows.Close()

	var out []audit.OutboxMessage
	for rows.Next() {
		var (
			m       audit.OutboxMessage
			entryID string
			action  string
		)
		if err := rows.Scan(&m.ID, &entryID, &action, &m.Payload, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit outbox: %w", err)
		}
		parsed, err := uuid.Parse(entryID)
		if err != nil {
			return nil, fmt.Errorf("parse outbox entry id: %w", err)
		}
		m.EntryID = id.AuditEntryID(parsed)
		m.Action = audit.Action(action)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Postgres) MarkPublished(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := txcontext.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE audit_outbox SET published_at = $1 WHERE id = ANY($2)`, at, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

func fillEntry(e *audit.Entry, entryID, actorID, role, action, objectType string, metadata []byte) error {
	parsedID, err := uuid.Parse(entryID)
	if err != nil {
		return fmt.Errorf("parse audit id: %w", err)
	}
	parsedActor, err := uuid.Parse(actorID)
	if err != nil {
		return fmt.Errorf("parse audit actor: %w", err)
	}
	md, err := audit.DecodeMetadata(metadata)
	if err != nil {
		return fmt.Errorf("decode audit metadata: %w", err)
	}
	e.ID = id.AuditEntryID(parsedID)
	e.ActorUserID = id.UserID(parsedActor)
	e.ActorRole = id.Role(role)
	e.Action = audit.Action(action)
	e.ObjectType = audit.ObjectType(objectType)
	e.Timestamp = e.Timestamp.UTC()
	e.Metadata = md
	return nil
}
