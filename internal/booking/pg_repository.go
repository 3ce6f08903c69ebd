package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgRepository implements all three ledgers on one pgx pool. Every primitive
// the engine relies on is a single statement, so atomicity comes from the
// database rather than from cross-statement locking.
type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.Day,
		&a.Patient,
		&a.Caregiver,
		&a.Vaccine,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// AvailabilityIndex

func (r *PgRepository) Publish(ctx context.Context, day time.Time, caregiver string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO availabilities (day, caregiver)
		VALUES ($1, $2)
	`, Day(day), caregiver)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateAvailability
		}
		return fmt.Errorf("insert availability: %w", err)
	}
	return nil
}

func (r *PgRepository) Caregivers(ctx context.Context, day time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT caregiver
		FROM availabilities
		WHERE day = $1
		ORDER BY caregiver ASC
	`, Day(day))
	if err != nil {
		return nil, fmt.Errorf("select availabilities: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		result = append(result, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) Claim(ctx context.Context, day time.Time, caregiver string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM availabilities
		WHERE day = $1 AND caregiver = $2
	`, Day(day), caregiver)
	if err != nil {
		return false, fmt.Errorf("claim availability: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// DoseInventory

func (r *PgRepository) AddDoses(ctx context.Context, vaccine string, n int) (int, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO vaccines (name, doses)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE
		SET doses = vaccines.doses + EXCLUDED.doses
		RETURNING doses
	`, vaccine, n)

	var total int
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("add doses: %w", err)
	}
	return total, nil
}

func (r *PgRepository) TryTakeDose(ctx context.Context, vaccine string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE vaccines
		SET doses = doses - 1
		WHERE name = $1 AND doses >= 1
	`, vaccine)
	if err != nil {
		return false, fmt.Errorf("take dose: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgRepository) ReturnDose(ctx context.Context, vaccine string) (int, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE vaccines
		SET doses = doses + 1
		WHERE name = $1
		RETURNING doses
	`, vaccine)

	var total int
	if err := row.Scan(&total); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("return dose: vaccine %q does not exist", vaccine)
		}
		return 0, fmt.Errorf("return dose: %w", err)
	}
	return total, nil
}

func (r *PgRepository) Vaccines(ctx context.Context) ([]Vaccine, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT name, doses
		FROM vaccines
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("select vaccines: %w", err)
	}
	defer rows.Close()

	var result []Vaccine
	for rows.Next() {
		var v Vaccine
		if err := rows.Scan(&v.Name, &v.Doses); err != nil {
			return nil, err
		}
		result = append(result, v)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// AppointmentLedger

func (r *PgRepository) Create(ctx context.Context, appt Appointment) (int64, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (day, patient, caregiver, vaccine, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING id
	`, Day(appt.Day), appt.Patient, appt.Caregiver, appt.Vaccine)

	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("insert appointment: %w", err)
	}
	return id, nil
}

func (r *PgRepository) ByPatient(ctx context.Context, patient string) ([]Appointment, error) {
	return r.listAppointments(ctx, `
		SELECT id, day, patient, caregiver, vaccine, created_at
		FROM appointments
		WHERE patient = $1
		ORDER BY id ASC
	`, patient)
}

func (r *PgRepository) ByCaregiver(ctx context.Context, caregiver string) ([]Appointment, error) {
	return r.listAppointments(ctx, `
		SELECT id, day, patient, caregiver, vaccine, created_at
		FROM appointments
		WHERE caregiver = $1
		ORDER BY id ASC
	`, caregiver)
}

func (r *PgRepository) listAppointments(ctx context.Context, query string, arg any) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("select appointments: %w", err)
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// CancelAppointment runs the whole reversal in one transaction. All three
// tables live in the same database, so a crash or statement failure midway
// rolls everything back instead of stranding a removed appointment.
func (r *PgRepository) CancelAppointment(ctx context.Context, id int64) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin cancel: %w", err)
	}
	defer tx.Rollback(ctx)

	appt, err := scanAppointment(tx.QueryRow(ctx, `
		DELETE FROM appointments
		WHERE id = $1
		RETURNING id, day, patient, caregiver, vaccine, created_at
	`, id))
	if err != nil {
		return nil, err
	}

	var doses int
	err = tx.QueryRow(ctx, `
		UPDATE vaccines
		SET doses = doses + 1
		WHERE name = $1
		RETURNING doses
	`, appt.Vaccine).Scan(&doses)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("cancel appointment: vaccine %q does not exist", appt.Vaccine)
		}
		return nil, fmt.Errorf("cancel appointment: return dose: %w", err)
	}

	// the caregiver may have independently re-published the day; the
	// existing slot satisfies the reversal
	_, err = tx.Exec(ctx, `
		INSERT INTO availabilities (day, caregiver)
		VALUES ($1, $2)
		ON CONFLICT (day, caregiver) DO NOTHING
	`, Day(appt.Day), appt.Caregiver)
	if err != nil {
		return nil, fmt.Errorf("cancel appointment: republish slot: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit cancel: %w", err)
	}

	return appt, nil
}
