package consentform

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

type formRepoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &formRepoPG{pool: pool}
}

func (r *formRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const formCols = `id, template_id, template_title, template_snapshot, patient_data, patient_photo, consent_responses, signatures, filled_at`

func (r *formRepoPG) scanForm(row pgx.Row) (*FilledForm, error) {
	var f FilledForm
	var snapshot, patientData, consentResponses, signatures []byte
	err := row.Scan(&f.ID, &f.TemplateID, &f.TemplateTitle, &snapshot,
		&patientData, &f.PatientPhoto, &consentResponses, &signatures, &f.FilledAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(snapshot, &f.TemplateSnapshot); err != nil {
		return nil, fmt.Errorf("unmarshal template snapshot: %w", err)
	}
	if err := json.Unmarshal(patientData, &f.PatientData); err != nil {
		return nil, fmt.Errorf("unmarshal patient data: %w", err)
	}
	if err := json.Unmarshal(consentResponses, &f.ConsentResponses); err != nil {
		return nil, fmt.Errorf("unmarshal consent responses: %w", err)
	}
	if err := json.Unmarshal(signatures, &f.Signatures); err != nil {
		return nil, fmt.Errorf("unmarshal signatures: %w", err)
	}
	return &f, nil
}

func (r *formRepoPG) Create(ctx context.Context, f *FilledForm) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.PatientData == nil {
		f.PatientData = map[string]string{}
	}
	if f.ConsentResponses == nil {
		f.ConsentResponses = map[string]string{}
	}
	if f.Signatures == nil {
		f.Signatures = map[string]string{}
	}

	snapshot, err := json.Marshal(f.TemplateSnapshot)
	if err != nil {
		return fmt.Errorf("marshal template snapshot: %w", err)
	}
	patientData, err := json.Marshal(f.PatientData)
	if err != nil {
		return fmt.Errorf("marshal patient data: %w", err)
	}
	consentResponses, err := json.Marshal(f.ConsentResponses)
	if err != nil {
		return fmt.Errorf("marshal consent responses: %w", err)
	}
	signatures, err := json.Marshal(f.Signatures)
	if err != nil {
		return fmt.Errorf("marshal signatures: %w", err)
	}

	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO consent_form (id, template_id, template_title, template_snapshot,
		                          patient_data, patient_photo, consent_responses, signatures)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING filled_at`,
		f.ID, f.TemplateID, f.TemplateTitle, snapshot,
		patientData, f.PatientPhoto, consentResponses, signatures)
	if err := row.Scan(&f.FilledAt); err != nil {
		return fmt.Errorf("insert consent form: %w", err)
	}
	return nil
}

func (r *formRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*FilledForm, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+formCols+` FROM consent_form WHERE id = $1`, id)

	f, err := r.scanForm(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get consent form: %w", err)
	}
	return f, nil
}

func (r *formRepoPG) List(ctx context.Context, limit, offset int) ([]*FilledForm, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM consent_form`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count consent forms: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+formCols+` FROM consent_form
		ORDER BY filled_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list consent forms: %w", err)
	}
	defer rows.Close()

	var forms []*FilledForm
	for rows.Next() {
		f, err := r.scanForm(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan consent form: %w", err)
		}
		forms = append(forms, f)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate consent forms: %w", err)
	}

	return forms, total, nil
}

func (r *formRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM consent_form WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete consent form: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
