package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// activeSlotConstraint is the partial unique index on
// (doctor_id, date, time_slot) WHERE status <> 'Cancelled'. It backstops the
// transactional conflict check against anything that bypasses it.
const activeSlotConstraint = "uq_appointments_active_slot"

type pgDB interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PgRepository struct {
	db pgDB
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{db: pool}
}

// newPgRepositoryWithDB allows injecting a pgxmock pool in tests.
func newPgRepositoryWithDB(db pgDB) *PgRepository {
	return &PgRepository{db: db}
}

// Helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var specialty *string

	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Gender,
		&specialty,
		&d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	d.Specialty = specialty
	return &d, nil
}

func scanAppointmentDetail(row pgx.Row) (*AppointmentDetail, error) {
	var a AppointmentDetail

	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.PatientID,
		&a.Date,
		&a.TimeSlot,
		&a.PatientNote,
		&a.Status,
		&a.CreatedAt,
		&a.PatientName,
		&a.DoctorName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func isActiveSlotConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == "23505" &&
		pgErr.ConstraintName == activeSlotConstraint
}

// doctorSelect aggregates the specialty labels the way the booking UI shows
// them, one comma-joined string per doctor.
const doctorSelect = `
	SELECT d.doctor_id, d.name, d.gender,
	       string_agg(DISTINCT s.speciality_name, ', ' ORDER BY s.speciality_name),
	       d.created_at
	FROM doctors d
	LEFT JOIN doctor_specialities ds ON ds.doctor_id = d.doctor_id
	LEFT JOIN specialities s ON s.speciality_id = ds.speciality_id
`

const appointmentDetailSelect = `
	SELECT a.appointment_id, a.doctor_id, a.patient_id, a.date, a.time_slot,
	       a.patient_note, a.status, a.created_at,
	       p.name, d.name
	FROM appointments a
	JOIN patients p ON p.patient_id = a.patient_id
	JOIN doctors d ON d.doctor_id = a.doctor_id
`

// Interface methods

func (r *PgRepository) GetDoctorByID(ctx context.Context, id int64) (*Doctor, error) {
	row := r.db.QueryRow(ctx, doctorSelect+`
		WHERE d.doctor_id = $1
		GROUP BY d.doctor_id
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) ListDoctors(ctx context.Context) ([]Doctor, error) {
	rows, err := r.db.Query(ctx, doctorSelect+`
		GROUP BY d.doctor_id
		ORDER BY d.name, d.doctor_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	return result, rows.Err()
}

func (r *PgRepository) ListBookedSlots(ctx context.Context, doctorID int64, date time.Time) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT time_slot
		FROM appointments
		WHERE doctor_id = $1 AND date = $2 AND status <> 'Cancelled'
	`, doctorID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var booked []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, err
		}
		booked = append(booked, label)
	}

	return booked, rows.Err()
}

// activeAppointmentExists is the single conflict check shared by the create
// and update paths. excludeID skips the row being moved; pass 0 on create.
func activeAppointmentExists(ctx context.Context, tx pgx.Tx, doctorID int64, date time.Time, slotLabel string, excludeID int64) (bool, error) {
	var id int64
	err := tx.QueryRow(ctx, `
		SELECT appointment_id
		FROM appointments
		WHERE doctor_id = $1 AND date = $2 AND time_slot = $3
		  AND status <> 'Cancelled'
		  AND appointment_id <> $4
		LIMIT 1
	`, doctorID, date, slotLabel, excludeID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *PgRepository) CreateAppointment(ctx context.Context, in NewAppointment) (*Appointment, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, fmt.Errorf("begin booking tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	taken, err := activeAppointmentExists(ctx, tx, in.DoctorID, in.Date, in.TimeSlot, 0)
	if err != nil {
		return nil, fmt.Errorf("check slot occupancy: %w", err)
	}
	if taken {
		return nil, ErrSlotTaken
	}

	var patientID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO patients (name, contact, age)
		VALUES ($1, $2, $3)
		RETURNING patient_id
	`, in.PatientName, in.PatientContact, in.PatientAge).Scan(&patientID)
	if err != nil {
		return nil, fmt.Errorf("insert patient: %w", err)
	}

	var a Appointment
	err = tx.QueryRow(ctx, `
		INSERT INTO appointments (doctor_id, patient_id, date, time_slot, patient_note, status)
		VALUES ($1, $2, $3, $4, $5, 'Pending')
		RETURNING appointment_id, doctor_id, patient_id, date, time_slot, patient_note, status, created_at
	`, in.DoctorID, patientID, in.Date, in.TimeSlot, in.PatientNote).Scan(
		&a.ID, &a.DoctorID, &a.PatientID, &a.Date, &a.TimeSlot, &a.PatientNote, &a.Status, &a.CreatedAt,
	)
	if err != nil {
		if isActiveSlotConflict(err) {
			return nil, ErrSlotTaken
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isActiveSlotConflict(err) {
			return nil, ErrSlotTaken
		}
		return nil, fmt.Errorf("commit booking tx: %w", err)
	}

	return &a, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id int64) (*AppointmentDetail, error) {
	row := r.db.QueryRow(ctx, appointmentDetailSelect+`
		WHERE a.appointment_id = $1
	`, id)
	return scanAppointmentDetail(row)
}

func (r *PgRepository) UpdateAppointment(ctx context.Context, id int64, patch AppointmentPatch) (int64, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return 0, fmt.Errorf("begin update tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var cur Appointment
	err = tx.QueryRow(ctx, `
		SELECT appointment_id, doctor_id, patient_id, date, time_slot, patient_note, status
		FROM appointments
		WHERE appointment_id = $1
		FOR UPDATE
	`, id).Scan(&cur.ID, &cur.DoctorID, &cur.PatientID, &cur.Date, &cur.TimeSlot, &cur.PatientNote, &cur.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAppointmentNotFound
		}
		return 0, fmt.Errorf("load appointment: %w", err)
	}

	next := cur
	if patch.DoctorID != nil {
		next.DoctorID = *patch.DoctorID
	}
	if patch.Date != nil {
		next.Date = *patch.Date
	}
	if patch.TimeSlot != nil {
		next.TimeSlot = *patch.TimeSlot
	}
	if patch.PatientNote != nil {
		next.PatientNote = *patch.PatientNote
	}
	if patch.Status != nil {
		next.Status = *patch.Status
	}

	tripleChanged := next.DoctorID != cur.DoctorID ||
		!next.Date.Equal(cur.Date) ||
		next.TimeSlot != cur.TimeSlot

	// Moving into a new triple, or re-occupying one after cancellation, is
	// checked exactly like a fresh booking against the target slot.
	if next.Status.Active() && (tripleChanged || !cur.Status.Active()) {
		taken, err := activeAppointmentExists(ctx, tx, next.DoctorID, next.Date, next.TimeSlot, cur.ID)
		if err != nil {
			return 0, fmt.Errorf("check slot occupancy: %w", err)
		}
		if taken {
			return 0, ErrSlotTaken
		}
	}

	if patch.PatientName != nil {
		if _, err := tx.Exec(ctx, `
			UPDATE patients SET name = $2 WHERE patient_id = $1
		`, cur.PatientID, *patch.PatientName); err != nil {
			return 0, fmt.Errorf("update patient name: %w", err)
		}
	}

	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET doctor_id = $2, date = $3, time_slot = $4, patient_note = $5, status = $6
		WHERE appointment_id = $1
	`, cur.ID, next.DoctorID, next.Date, next.TimeSlot, next.PatientNote, next.Status)
	if err != nil {
		if isActiveSlotConflict(err) {
			return 0, ErrSlotTaken
		}
		return 0, fmt.Errorf("update appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isActiveSlotConflict(err) {
			return 0, ErrSlotTaken
		}
		return 0, fmt.Errorf("commit update tx: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id int64, status Status) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE appointments
		SET status = $2
		WHERE appointment_id = $1
	`, id, status)
	if err != nil {
		// Re-activating a cancelled appointment can collide with a booking
		// made after the slot was freed.
		if isActiveSlotConflict(err) {
			return 0, ErrSlotTaken
		}
		return 0, fmt.Errorf("update appointment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return 0, ErrAppointmentNotFound
	}
	return tag.RowsAffected(), nil
}

func (r *PgRepository) DeleteAppointment(ctx context.Context, id int64) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM appointments
		WHERE appointment_id = $1
	`, id)
	if err != nil {
		return 0, fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return 0, ErrAppointmentNotFound
	}
	return tag.RowsAffected(), nil
}

func (r *PgRepository) ListAppointments(ctx context.Context, limit, offset int) ([]AppointmentDetail, int64, error) {
	// Count and page read the same snapshot so total_count matches the
	// window. It may still be stale by the time the client renders it.
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("begin list tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var total int64
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM appointments`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	rows, err := tx.Query(ctx, appointmentDetailSelect+`
		ORDER BY a.date, a.time_slot, a.appointment_id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var result []AppointmentDetail
	for rows.Next() {
		a, err := scanAppointmentDetail(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, 0, fmt.Errorf("commit list tx: %w", err)
	}

	return result, total, nil
}

func (r *PgRepository) ListAppointmentsByPatient(ctx context.Context, patientID int64) ([]AppointmentDetail, error) {
	return r.listAppointmentsBy(ctx, "a.patient_id", patientID)
}

func (r *PgRepository) ListAppointmentsByDoctor(ctx context.Context, doctorID int64) ([]AppointmentDetail, error) {
	return r.listAppointmentsBy(ctx, "a.doctor_id", doctorID)
}

func (r *PgRepository) listAppointmentsBy(ctx context.Context, column string, id int64) ([]AppointmentDetail, error) {
	rows, err := r.db.Query(ctx, appointmentDetailSelect+`
		WHERE `+column+` = $1
		ORDER BY a.date, a.time_slot, a.appointment_id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AppointmentDetail
	for rows.Next() {
		a, err := scanAppointmentDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	return result, rows.Err()
}
