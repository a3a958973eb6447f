package template

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

type templateRepoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &templateRepoPG{pool: pool}
}

func (r *templateRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const templateCols = `id, parent_id, version_number, is_current, created_by, content, created_at, updated_at`

func (r *templateRepoPG) scanTemplate(row pgx.Row) (*Template, error) {
	var t Template
	var content []byte
	err := row.Scan(&t.ID, &t.ParentID, &t.VersionNumber, &t.IsCurrent,
		&t.CreatedBy, &content, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(content, &t.Content); err != nil {
		return nil, fmt.Errorf("unmarshal template content: %w", err)
	}
	return &t, nil
}

func (r *templateRepoPG) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.RunInTx(ctx, r.pool, fn)
}

// LockLineage serializes writers on one lineage for the duration of the
// surrounding transaction. Advisory rather than row locking because the root
// row itself may have been hard-deleted while its lineage lives on.
func (r *templateRepoPG) LockLineage(ctx context.Context, root uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, root)
	if err != nil {
		return fmt.Errorf("lock lineage %s: %w", root, err)
	}
	return nil
}

func (r *templateRepoPG) Create(ctx context.Context, t *Template) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	content, err := json.Marshal(t.Content)
	if err != nil {
		return fmt.Errorf("marshal template content: %w", err)
	}

	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO consent_template (id, parent_id, version_number, is_current, created_by, content)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		t.ID, t.ParentID, t.VersionNumber, t.IsCurrent, t.CreatedBy, content)
	if err := row.Scan(&t.CreatedAt, &t.UpdatedAt); err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

func (r *templateRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Template, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+templateCols+` FROM consent_template WHERE id = $1`, id)

	t, err := r.scanTemplate(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

func (r *templateRepoPG) ListCurrent(ctx context.Context, limit, offset int) ([]*Template, int, error) {
	var total int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM consent_template WHERE is_current`).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count current templates: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+templateCols+` FROM consent_template
		WHERE is_current
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list current templates: %w", err)
	}
	defer rows.Close()

	var templates []*Template
	for rows.Next() {
		t, err := r.scanTemplate(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate templates: %w", err)
	}

	return templates, total, nil
}

func (r *templateRepoPG) ListLineage(ctx context.Context, root uuid.UUID) ([]*Template, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+templateCols+` FROM consent_template
		WHERE id = $1 OR parent_id = $1
		ORDER BY version_number DESC`, root)
	if err != nil {
		return nil, fmt.Errorf("list lineage: %w", err)
	}
	defer rows.Close()

	var templates []*Template
	for rows.Next() {
		t, err := r.scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lineage: %w", err)
	}

	return templates, nil
}

func (r *templateRepoPG) DemoteCurrent(ctx context.Context, root uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE consent_template
		SET is_current = false, updated_at = NOW()
		WHERE (id = $1 OR parent_id = $1) AND is_current`, root)
	if err != nil {
		return fmt.Errorf("demote current version: %w", err)
	}
	return nil
}

func (r *templateRepoPG) NextVersionNumber(ctx context.Context, root uuid.UUID) (int, error) {
	var next int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COALESCE(MAX(version_number), 0) + 1
		FROM consent_template
		WHERE id = $1 OR parent_id = $1`, root).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next version number: %w", err)
	}
	return next, nil
}

func (r *templateRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM consent_template WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
