package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

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

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) Repository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const appointmentCols = `id, patient_id, date, time, observations, status, created_by_id, created_at, updated_at`

func (r *appointmentRepoPG) scanRow(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.Date, &a.Time, &a.Observations,
		&a.Status, &a.CreatedByID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFoundf("appointment not found")
		}
		return nil, err
	}
	return &a, nil
}

func (r *appointmentRepoPG) scanRows(rows pgx.Rows) ([]*Appointment, error) {
	defer rows.Close()
	var appointments []*Appointment
	for rows.Next() {
		a, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		appointments = append(appointments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointment (id, patient_id, date, time, observations, status, created_by_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.Date, a.Time, a.Observations, a.Status, a.CreatedByID)
	if err := row.Scan(&a.CreatedAt, &a.UpdatedAt); err != nil {
		if isSlotTaken(err) {
			return apperr.Conflictf("an appointment already exists at %s %s",
				a.Date.Format("2006-01-02"), a.Time)
		}
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx,
		`SELECT `+appointmentCols+` FROM appointment WHERE id = $1`, id))
}

func (r *appointmentRepoPG) ListAll(ctx context.Context) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+appointmentCols+` FROM appointment ORDER BY date ASC, time ASC`)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return r.scanRows(rows)
}

func (r *appointmentRepoPG) ListByDate(ctx context.Context, date time.Time) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+appointmentCols+` FROM appointment WHERE date = $1 ORDER BY time ASC`, date)
	if err != nil {
		return nil, fmt.Errorf("list appointments by date: %w", err)
	}
	return r.scanRows(rows)
}

func (r *appointmentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+appointmentCols+` FROM appointment WHERE patient_id = $1 ORDER BY date DESC, time DESC`,
		patientID)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return r.scanRows(rows)
}

func (r *appointmentRepoPG) ActiveTimesByDate(ctx context.Context, date time.Time) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT time FROM appointment WHERE date = $1 AND status IN ($2, $3) ORDER BY time ASC`,
		date, StatusScheduled, StatusInProgress)
	if err != nil {
		return nil, fmt.Errorf("query occupied times: %w", err)
	}
	defer rows.Close()

	var times []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan occupied time: %w", err)
		}
		times = append(times, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate occupied times: %w", err)
	}
	return times, nil
}

func (r *appointmentRepoPG) FindBookedByDateTime(ctx context.Context, date time.Time, timeOfDay string, excludeID uuid.UUID) (*Appointment, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx, `
		SELECT `+appointmentCols+` FROM appointment
		WHERE date = $1 AND time = $2 AND status <> $3 AND id <> $4
		LIMIT 1`,
		date, timeOfDay, StatusCanceled, excludeID))
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment SET patient_id = $2, date = $3, time = $4,
			observations = $5, status = $6, updated_at = NOW()
		WHERE id = $1`,
		a.ID, a.PatientID, a.Date, a.Time, a.Observations, a.Status)
	if err != nil {
		if isSlotTaken(err) {
			return apperr.Conflictf("an appointment already exists at %s %s",
				a.Date.Format("2006-01-02"), a.Time)
		}
		return fmt.Errorf("update appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFoundf("appointment not found")
	}
	return nil
}

func (r *appointmentRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointment WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFoundf("appointment not found")
	}
	return nil
}

// isSlotTaken detects the partial unique index on (date, time) for
// non-canceled appointments, which closes the check-then-insert race.
func isSlotTaken(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
