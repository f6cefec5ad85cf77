package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrSlotTaken           = errors.New("time slot is not available")
	ErrInvalidSlot         = errors.New("time slot is not in the clinic catalog")
)

// ValidationError reports malformed or missing input. The caller can
// recover by correcting the request.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid input: " + e.Reason
}

func validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Repository contains all DB interactions needed by the service.
//
// Implementations must make CreateAppointment and UpdateAppointment atomic:
// the conflict check and the write have to happen in one transaction so two
// concurrent callers cannot both pass the check before either commits.
type Repository interface {
	GetDoctorByID(ctx context.Context, id int64) (*Doctor, error)
	ListDoctors(ctx context.Context) ([]Doctor, error)

	// ListBookedSlots returns the slot labels held by non-cancelled
	// appointments for the doctor on the given date.
	ListBookedSlots(ctx context.Context, doctorID int64, date time.Time) ([]string, error)

	// CreateAppointment checks the (doctor, date, slot) triple for an active
	// appointment and, if free, inserts the patient and a Pending
	// appointment. Returns ErrSlotTaken on conflict.
	CreateAppointment(ctx context.Context, in NewAppointment) (*Appointment, error)

	GetAppointmentByID(ctx context.Context, id int64) (*AppointmentDetail, error)

	// UpdateAppointment applies the patch. When the resulting row would
	// occupy a different (doctor, date, slot) triple, or re-occupy one after
	// cancellation, the target triple is re-checked excluding the row itself;
	// ErrSlotTaken leaves the row unchanged.
	UpdateAppointment(ctx context.Context, id int64, patch AppointmentPatch) (int64, error)

	UpdateAppointmentStatus(ctx context.Context, id int64, status Status) (int64, error)
	DeleteAppointment(ctx context.Context, id int64) (int64, error)

	// ListAppointments returns one page plus the size of the full set, both
	// read at a single snapshot.
	ListAppointments(ctx context.Context, limit, offset int) ([]AppointmentDetail, int64, error)
	ListAppointmentsByPatient(ctx context.Context, patientID int64) ([]AppointmentDetail, error)
	ListAppointmentsByDoctor(ctx context.Context, doctorID int64) ([]AppointmentDetail, error)
}
