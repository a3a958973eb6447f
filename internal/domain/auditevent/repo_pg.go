package auditevent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/consentio/consentio/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type auditRepoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &auditRepoPG{pool: pool}
}

func (r *auditRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const auditCols = `id, recorded, username, user_name, action, resource_type, resource_id, details, ip_address, user_agent, request_id`

func (r *auditRepoPG) scanEvent(row pgx.Row) (*AuditEvent, error) {
	var e AuditEvent
	var details []byte
	err := row.Scan(&e.ID, &e.Recorded, &e.Username, &e.UserName, &e.Action,
		&e.ResourceType, &e.ResourceID, &details, &e.IPAddress, &e.UserAgent, &e.RequestID)
	if err != nil {
		return nil, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &e.Details); err != nil {
			return nil, fmt.Errorf("unmarshal audit details: %w", err)
		}
	}
	return &e, nil
}

func (r *auditRepoPG) Create(ctx context.Context, e *AuditEvent) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}

	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}

	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO audit_event (id, username, user_name, action, resource_type,
		                         resource_id, details, ip_address, user_agent, request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING recorded`,
		e.ID, e.Username, e.UserName, e.Action, e.ResourceType,
		e.ResourceID, details, e.IPAddress, e.UserAgent, e.RequestID)
	if err := row.Scan(&e.Recorded); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (r *auditRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*AuditEvent, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+auditCols+` FROM audit_event WHERE id = $1`, id)

	e, err := r.scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get audit event: %w", err)
	}
	return e, nil
}

func (r *auditRepoPG) Search(ctx context.Context, params SearchParams) ([]*AuditEvent, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	idx := 1
	if params.Username != "" {
		where += fmt.Sprintf(" AND username = $%d", idx)
		args = append(args, params.Username)
		idx++
	}
	if params.Action != "" {
		where += fmt.Sprintf(" AND action = $%d", idx)
		args = append(args, params.Action)
		idx++
	}
	if params.ResourceType != "" {
		where += fmt.Sprintf(" AND resource_type = $%d", idx)
		args = append(args, params.ResourceType)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM audit_event`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit events: %w", err)
	}

	query := `SELECT ` + auditCols + ` FROM audit_event` + where +
		fmt.Sprintf(` ORDER BY recorded DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, params.Limit, params.Offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search audit events: %w", err)
	}
	defer rows.Close()

	var events []*AuditEvent
	for rows.Next() {
		e, err := r.scanEvent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate audit events: %w", err)
	}

	return events, total, nil
}
