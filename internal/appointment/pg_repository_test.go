package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PgRepository) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	t.Cleanup(mock.Close)

	return mock, newPgRepositoryWithDB(mock)
}

func TestCreateAppointmentInsertsWhenSlotFree(t *testing.T) {
	mock, repo := newMockRepo(t)

	date := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	now := time.Now()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery("SELECT appointment_id").
		WithArgs(int64(1), date, "08:00 - 09:00", int64(0)).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("INSERT INTO patients").
		WithArgs("Maria Lopez", "+1-555-0134", 42).
		WillReturnRows(pgxmock.NewRows([]string{"patient_id"}).AddRow(int64(7)))
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(int64(1), int64(7), date, "08:00 - 09:00", "follow-up").
		WillReturnRows(pgxmock.NewRows([]string{
			"appointment_id", "doctor_id", "patient_id", "date", "time_slot", "patient_note", "status", "created_at",
		}).AddRow(int64(1), int64(1), int64(7), date, "08:00 - 09:00", "follow-up", StatusPending, now))
	mock.ExpectCommit()
	mock.ExpectRollback()

	appt, err := repo.CreateAppointment(context.Background(), NewAppointment{
		DoctorID:       1,
		Date:           date,
		TimeSlot:       "08:00 - 09:00",
		PatientName:    "Maria Lopez",
		PatientContact: "+1-555-0134",
		PatientAge:     42,
		PatientNote:    "follow-up",
	})
	if err != nil {
		t.Fatalf("CreateAppointment returned error: %v", err)
	}
	if appt.ID != 1 || appt.Status != StatusPending {
		t.Fatalf("unexpected appointment: %+v", appt)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateAppointmentRejectsOccupiedSlot(t *testing.T) {
	mock, repo := newMockRepo(t)

	date := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery("SELECT appointment_id").
		WithArgs(int64(1), date, "08:00 - 09:00", int64(0)).
		WillReturnRows(pgxmock.NewRows([]string{"appointment_id"}).AddRow(int64(5)))
	mock.ExpectRollback()

	_, err := repo.CreateAppointment(context.Background(), NewAppointment{
		DoctorID: 1,
		Date:     date,
		TimeSlot: "08:00 - 09:00",
	})
	if !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateAppointmentMapsUniqueViolation(t *testing.T) {
	mock, repo := newMockRepo(t)

	date := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery("SELECT appointment_id").
		WithArgs(int64(1), date, "08:00 - 09:00", int64(0)).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("INSERT INTO patients").
		WithArgs("Maria Lopez", "+1-555-0134", 42).
		WillReturnRows(pgxmock.NewRows([]string{"patient_id"}).AddRow(int64(7)))
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(int64(1), int64(7), date, "08:00 - 09:00", "").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: activeSlotConstraint})
	mock.ExpectRollback()

	_, err := repo.CreateAppointment(context.Background(), NewAppointment{
		DoctorID:       1,
		Date:           date,
		TimeSlot:       "08:00 - 09:00",
		PatientName:    "Maria Lopez",
		PatientContact: "+1-555-0134",
		PatientAge:     42,
	})
	if !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken from index backstop, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateAppointmentChecksTargetTriple(t *testing.T) {
	mock, repo := newMockRepo(t)

	date := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery("SELECT appointment_id, doctor_id, patient_id").
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{
			"appointment_id", "doctor_id", "patient_id", "date", "time_slot", "patient_note", "status",
		}).AddRow(int64(3), int64(1), int64(7), date, "08:00 - 09:00", "", StatusConfirmed))
	// The conflict re-check runs against the new doctor, excluding row 3.
	mock.ExpectQuery("SELECT appointment_id").
		WithArgs(int64(2), date, "08:00 - 09:00", int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"appointment_id"}).AddRow(int64(9)))
	mock.ExpectRollback()

	newDoctor := int64(2)
	_, err := repo.UpdateAppointment(context.Background(), 3, AppointmentPatch{DoctorID: &newDoctor})
	if !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateAppointmentNoteSkipsConflictCheck(t *testing.T) {
	mock, repo := newMockRepo(t)

	date := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery("SELECT appointment_id, doctor_id, patient_id").
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{
			"appointment_id", "doctor_id", "patient_id", "date", "time_slot", "patient_note", "status",
		}).AddRow(int64(3), int64(1), int64(7), date, "08:00 - 09:00", "", StatusConfirmed))
	mock.ExpectExec("UPDATE appointments").
		WithArgs(int64(3), int64(1), date, "08:00 - 09:00", "bring referral letter", StatusConfirmed).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	note := "bring referral letter"
	n, err := repo.UpdateAppointment(context.Background(), 3, AppointmentPatch{PatientNote: &note})
	if err != nil {
		t.Fatalf("UpdateAppointment returned error: %v", err)
	}
	if n != 1 {
		t.Fatalf("affected rows = %d, want 1", n)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateAppointmentStatusNotFound(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectExec("UPDATE appointments").
		WithArgs(int64(42), StatusConfirmed).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	_, err := repo.UpdateAppointmentStatus(context.Background(), 42, StatusConfirmed)
	if !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("expected ErrAppointmentNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteAppointment_Repo(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectExec("DELETE FROM appointments").
		WithArgs(int64(5)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	n, err := repo.DeleteAppointment(context.Background(), 5)
	if err != nil || n != 1 {
		t.Fatalf("delete: n=%d err=%v", n, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListBookedSlots(t *testing.T) {
	mock, repo := newMockRepo(t)

	date := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT time_slot").
		WithArgs(int64(1), date).
		WillReturnRows(pgxmock.NewRows([]string{"time_slot"}).
			AddRow("08:00 - 09:00").
			AddRow("13:00 - 14:00"))

	booked, err := repo.ListBookedSlots(context.Background(), 1, date)
	if err != nil {
		t.Fatalf("ListBookedSlots returned error: %v", err)
	}
	if len(booked) != 2 || booked[0] != "08:00 - 09:00" {
		t.Fatalf("unexpected booked slots: %v", booked)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListAppointmentsReadsOneSnapshot(t *testing.T) {
	mock, repo := newMockRepo(t)

	date := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	now := time.Now()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	mock.ExpectQuery("SELECT count").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(11)))
	mock.ExpectQuery("SELECT a.appointment_id").
		WithArgs(2, 0).
		WillReturnRows(pgxmock.NewRows([]string{
			"appointment_id", "doctor_id", "patient_id", "date", "time_slot", "patient_note", "status", "created_at", "name", "name",
		}).
			AddRow(int64(1), int64(1), int64(7), date, "08:00 - 09:00", "", StatusPending, now, "Maria Lopez", "Dr. Asha Verma").
			AddRow(int64(2), int64(1), int64(8), date, "09:00 - 10:00", "", StatusConfirmed, now, "John Doe", "Dr. Asha Verma"))
	mock.ExpectCommit()
	mock.ExpectRollback()

	items, total, err := repo.ListAppointments(context.Background(), 2, 0)
	if err != nil {
		t.Fatalf("ListAppointments returned error: %v", err)
	}
	if total != 11 {
		t.Fatalf("total = %d, want 11", total)
	}
	if len(items) != 2 || items[0].PatientName != "Maria Lopez" {
		t.Fatalf("unexpected items: %+v", items)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetDoctorByIDNotFound(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery("SELECT d.doctor_id").
		WithArgs(int64(99)).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetDoctorByID(context.Background(), 99)
	if !errors.Is(err, ErrDoctorNotFound) {
		t.Fatalf("expected ErrDoctorNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
