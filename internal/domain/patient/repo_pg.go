package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medagenda/medagenda/internal/platform/apperr"
	"github.com/medagenda/medagenda/internal/platform/crypto"
	"github.com/medagenda/medagenda/internal/platform/db"
)

// keyContext for patient contact fields. Contact data is clinic-level,
// not authored by a single professional, so one shared derivation is used.
const contactKeyContext = "patient-contact"

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type patientRepoPG struct {
	pool   *pgxpool.Pool
	crypto *crypto.Service
}

func NewPatientRepoPG(pool *pgxpool.Pool, cryptoSvc *crypto.Service) Repository {
	return &patientRepoPG{pool: pool, crypto: cryptoSvc}
}

func (r *patientRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const patientCols = `id, full_name, document, birth_date, gender,
	phone_encrypted, phone_iv, email_encrypted, email_iv,
	address, city, state, postal_code, active, created_at, updated_at`

func (r *patientRepoPG) encryptContact(value *string) (*string, *string, error) {
	if value == nil {
		return nil, nil, nil
	}
	fc, err := r.crypto.Encrypt(*value, contactKeyContext)
	if err != nil {
		return nil, nil, fmt.Errorf("encrypt contact field: %w", err)
	}
	return &fc.CipherText, &fc.IV, nil
}

func (r *patientRepoPG) decryptContact(cipherText, iv *string) (*string, error) {
	if cipherText == nil {
		return nil, nil
	}
	fc := crypto.FieldCipher{CipherText: *cipherText}
	if iv != nil {
		fc.IV = *iv
	}
	plain, err := r.crypto.Decrypt(fc, contactKeyContext)
	if err != nil {
		return nil, fmt.Errorf("decrypt contact field: %w", err)
	}
	return &plain, nil
}

func (r *patientRepoPG) scanRow(row pgx.Row) (*Patient, error) {
	var p Patient
	var phoneEnc, phoneIV, emailEnc, emailIV *string
	err := row.Scan(&p.ID, &p.FullName, &p.Document, &p.BirthDate, &p.Gender,
		&phoneEnc, &phoneIV, &emailEnc, &emailIV,
		&p.Address, &p.City, &p.State, &p.PostalCode, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFoundf("patient not found")
		}
		return nil, err
	}

	if p.Phone, err = r.decryptContact(phoneEnc, phoneIV); err != nil {
		return nil, err
	}
	if p.Email, err = r.decryptContact(emailEnc, emailIV); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()

	phoneEnc, phoneIV, err := r.encryptContact(p.Phone)
	if err != nil {
		return err
	}
	emailEnc, emailIV, err := r.encryptContact(p.Email)
	if err != nil {
		return err
	}

	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient (id, full_name, document, birth_date, gender,
			phone_encrypted, phone_iv, email_encrypted, email_iv,
			address, city, state, postal_code, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,TRUE)
		RETURNING created_at, updated_at, active`,
		p.ID, p.FullName, p.Document, p.BirthDate, p.Gender,
		phoneEnc, phoneIV, emailEnc, emailIV,
		p.Address, p.City, p.State, p.PostalCode)
	if err := row.Scan(&p.CreatedAt, &p.UpdatedAt, &p.Active); err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflictf("a patient with document %s already exists", p.Document)
		}
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
}

func (r *patientRepoPG) GetByDocument(ctx context.Context, document string) (*Patient, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE document = $1`, document))
}

func (r *patientRepoPG) List(ctx context.Context, nameFilter string, limit, offset int) ([]*Patient, int, error) {
	where := `WHERE active`
	args := []interface{}{}
	if nameFilter != "" {
		where += ` AND full_name ILIKE $1`
		args = append(args, "%"+nameFilter+"%")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM patient `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM patient %s ORDER BY full_name ASC LIMIT %d OFFSET %d`,
		patientCols, where, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p, err := r.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		patients = append(patients, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate patients: %w", err)
	}
	return patients, total, nil
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	phoneEnc, phoneIV, err := r.encryptContact(p.Phone)
	if err != nil {
		return err
	}
	emailEnc, emailIV, err := r.encryptContact(p.Email)
	if err != nil {
		return err
	}

	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient SET full_name = $2, document = $3, birth_date = $4, gender = $5,
			phone_encrypted = $6, phone_iv = $7, email_encrypted = $8, email_iv = $9,
			address = $10, city = $11, state = $12, postal_code = $13, active = $14,
			updated_at = NOW()
		WHERE id = $1`,
		p.ID, p.FullName, p.Document, p.BirthDate, p.Gender,
		phoneEnc, phoneIV, emailEnc, emailIV,
		p.Address, p.City, p.State, p.PostalCode, p.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflictf("a patient with document %s already exists", p.Document)
		}
		return fmt.Errorf("update patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFoundf("patient not found")
	}
	return nil
}

func (r *patientRepoPG) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE patient SET active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFoundf("patient not found")
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
