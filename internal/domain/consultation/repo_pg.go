package consultation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medagenda/medagenda/internal/platform/apperr"
	"github.com/medagenda/medagenda/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type consultationRepoPG struct{ pool *pgxpool.Pool }

func NewConsultationRepoPG(pool *pgxpool.Pool) Repository {
	return &consultationRepoPG{pool: pool}
}

func (r *consultationRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const consultationCols = `id, appointment_id, professional_id,
	notes_encrypted, notes_iv, diagnosis_encrypted, diagnosis_iv,
	treatment_plan_encrypted, treatment_plan_iv,
	attention_points_encrypted, attention_points_iv,
	status, created_at, updated_at`

func fieldColumns(f *EncryptedField) (*string, *string) {
	if f == nil {
		return nil, nil
	}
	return &f.CipherText, &f.IV
}

func fieldFromColumns(cipherText, iv *string) *EncryptedField {
	if cipherText == nil {
		return nil
	}
	f := &EncryptedField{CipherText: *cipherText}
	if iv != nil {
		f.IV = *iv
	}
	return f
}

func scanConsultation(row pgx.Row, c *Consultation, extra ...interface{}) error {
	var notesEnc, notesIV, diagEnc, diagIV, planEnc, planIV, attnEnc, attnIV *string
	dest := []interface{}{
		&c.ID, &c.AppointmentID, &c.ProfessionalID,
		&notesEnc, &notesIV, &diagEnc, &diagIV,
		&planEnc, &planIV, &attnEnc, &attnIV,
		&c.Status, &c.CreatedAt, &c.UpdatedAt,
	}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFoundf("consultation not found")
		}
		return err
	}
	c.Notes = fieldFromColumns(notesEnc, notesIV)
	c.Diagnosis = fieldFromColumns(diagEnc, diagIV)
	c.TreatmentPlan = fieldFromColumns(planEnc, planIV)
	c.AttentionPoints = fieldFromColumns(attnEnc, attnIV)
	return nil
}

func (r *consultationRepoPG) scanRow(row pgx.Row) (*Consultation, error) {
	var c Consultation
	if err := scanConsultation(row, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *consultationRepoPG) scanRows(rows pgx.Rows) ([]*Consultation, error) {
	defer rows.Close()
	var consultations []*Consultation
	for rows.Next() {
		c, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		consultations = append(consultations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate consultations: %w", err)
	}
	return consultations, nil
}

func (r *consultationRepoPG) Create(ctx context.Context, c *Consultation) error {
	c.ID = uuid.New()

	notesEnc, notesIV := fieldColumns(c.Notes)
	diagEnc, diagIV := fieldColumns(c.Diagnosis)
	planEnc, planIV := fieldColumns(c.TreatmentPlan)
	attnEnc, attnIV := fieldColumns(c.AttentionPoints)

	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO consultation (id, appointment_id, professional_id,
			notes_encrypted, notes_iv, diagnosis_encrypted, diagnosis_iv,
			treatment_plan_encrypted, treatment_plan_iv,
			attention_points_encrypted, attention_points_iv, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at, updated_at`,
		c.ID, c.AppointmentID, c.ProfessionalID,
		notesEnc, notesIV, diagEnc, diagIV,
		planEnc, planIV, attnEnc, attnIV, c.Status)
	if err := row.Scan(&c.CreatedAt, &c.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperr.Validationf("a consultation already exists for this appointment")
		}
		return fmt.Errorf("insert consultation: %w", err)
	}
	return nil
}

func (r *consultationRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx,
		`SELECT `+consultationCols+` FROM consultation WHERE id = $1`, id))
}

func (r *consultationRepoPG) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Consultation, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx,
		`SELECT `+consultationCols+` FROM consultation WHERE appointment_id = $1`, appointmentID))
}

func (r *consultationRepoPG) ListAll(ctx context.Context) ([]*Consultation, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+consultationCols+` FROM consultation ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list consultations: %w", err)
	}
	return r.scanRows(rows)
}

func (r *consultationRepoPG) ListByAuthor(ctx context.Context, professionalID uuid.UUID) ([]*Consultation, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+consultationCols+` FROM consultation WHERE professional_id = $1 ORDER BY created_at DESC`,
		professionalID)
	if err != nil {
		return nil, fmt.Errorf("list consultations by author: %w", err)
	}
	return r.scanRows(rows)
}

func (r *consultationRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*WithAppointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT c.id, c.appointment_id, c.professional_id,
			c.notes_encrypted, c.notes_iv, c.diagnosis_encrypted, c.diagnosis_iv,
			c.treatment_plan_encrypted, c.treatment_plan_iv,
			c.attention_points_encrypted, c.attention_points_iv,
			c.status, c.created_at, c.updated_at,
			a.date, a.time, a.patient_id
		FROM consultation c
		JOIN appointment a ON a.id = c.appointment_id
		WHERE a.patient_id = $1
		ORDER BY c.created_at DESC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list consultations by patient: %w", err)
	}
	defer rows.Close()

	var result []*WithAppointment
	for rows.Next() {
		var wa WithAppointment
		if err := scanConsultation(rows, &wa.Consultation,
			&wa.AppointmentDate, &wa.AppointmentTime, &wa.PatientID); err != nil {
			return nil, err
		}
		result = append(result, &wa)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate consultations by patient: %w", err)
	}
	return result, nil
}

func (r *consultationRepoPG) Update(ctx context.Context, c *Consultation) error {
	notesEnc, notesIV := fieldColumns(c.Notes)
	diagEnc, diagIV := fieldColumns(c.Diagnosis)
	planEnc, planIV := fieldColumns(c.TreatmentPlan)
	attnEnc, attnIV := fieldColumns(c.AttentionPoints)

	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE consultation SET
			notes_encrypted = $2, notes_iv = $3,
			diagnosis_encrypted = $4, diagnosis_iv = $5,
			treatment_plan_encrypted = $6, treatment_plan_iv = $7,
			attention_points_encrypted = $8, attention_points_iv = $9,
			status = $10, updated_at = NOW()
		WHERE id = $1`,
		c.ID, notesEnc, notesIV, diagEnc, diagIV,
		planEnc, planIV, attnEnc, attnIV, c.Status)
	if err != nil {
		return fmt.Errorf("update consultation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFoundf("consultation not found")
	}
	return nil
}

func (r *consultationRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM consultation WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete consultation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFoundf("consultation not found")
	}
	return nil
}
