package directory

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/consentio/consentio/internal/platform/db"
)

// Application codes under which consent-management accounts are registered
// in the shared directory.
var consentApplications = []string{"10", "13"}

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type pgClient struct {
	pool *pgxpool.Pool
}

// NewPGClient returns a Client backed by the directory tables replicated
// into Postgres.
func NewPGClient(pool *pgxpool.Pool) Client {
	return &pgClient{pool: pool}
}

func (c *pgClient) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if conn := db.ConnFromContext(ctx); conn != nil {
		return conn
	}
	return c.pool
}

func (c *pgClient) Authenticate(ctx context.Context, username, password string) (*StaffUser, error) {
	row := c.conn(ctx).QueryRow(ctx, `
		SELECT username, full_name, COALESCE(email, ''), COALESCE(level, ''),
		       COALESCE(document, ''), password
		FROM staff_directory
		WHERE username = $1
		  AND (active = '1' OR active IS NULL)
		  AND application = ANY($2)`,
		username, consentApplications)

	var u StaffUser
	var level, stored string
	if err := row.Scan(&u.Username, &u.DisplayName, &u.Email, &level, &u.Document, &stored); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("query staff directory: %w", err)
	}

	decoded := DecodePassword(stored)
	if subtle.ConstantTimeCompare([]byte(decoded), []byte(password)) != 1 {
		return nil, ErrInvalidCredentials
	}

	u.Role = RoleForLevel(level)
	return &u, nil
}

func (c *pgClient) FindPatient(ctx context.Context, document string) (*PatientRecord, error) {
	row := c.conn(ctx).QueryRow(ctx, `
		SELECT document, COALESCE(first_name, ''), COALESCE(middle_name, ''),
		       COALESCE(last_name, ''), COALESCE(second_last_name, ''),
		       birth_date, COALESCE(sex, ''), COALESCE(phone, ''), COALESCE(address, '')
		FROM patient_directory
		WHERE document = $1`,
		document)

	var p PatientRecord
	var first, middle, last, secondLast string
	var birthDate *time.Time
	if err := row.Scan(&p.Document, &first, &middle, &last, &secondLast,
		&birthDate, &p.Sex, &p.Phone, &p.Address); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("query patient directory: %w", err)
	}

	p.FullName = joinNameParts(first, middle, last, secondLast)
	if birthDate != nil {
		p.BirthDate = birthDate.Format("2006-01-02")
		p.Age = ageAt(*birthDate, time.Now())
	}

	return &p, nil
}

// joinNameParts assembles a display name, skipping empty components.
func joinNameParts(parts ...string) string {
	var kept []string
	for _, part := range parts {
		if s := strings.TrimSpace(part); s != "" {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, " ")
}

// ageAt computes full years elapsed between birth and now.
func ageAt(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	anniversary := birth.AddDate(years, 0, 0)
	if anniversary.After(now) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}
