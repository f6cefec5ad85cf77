package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clinicore/clinic-scheduling/internal/observability/metrics"
	redisclient "github.com/clinicore/clinic-scheduling/internal/redis"
	"github.com/clinicore/clinic-scheduling/internal/slot"
)

// ErrSlotBusy means another request holds the booking lock for the same
// slot right now. Unlike ErrSlotTaken the caller may retry the same slot.
var ErrSlotBusy = errors.New("slot is currently being booked, please retry")

const (
	defaultPageSize = 20
	maxPageSize     = 100

	minPatientAge = 1
	maxPatientAge = 120
)

type Service struct {
	repo    Repository
	catalog *slot.Catalog
	locker  redisclient.Locker
	metrics *metrics.SchedulingMetrics
}

// NewService wires the scheduling core. metrics may be nil.
func NewService(repo Repository, catalog *slot.Catalog, locker redisclient.Locker, m *metrics.SchedulingMetrics) *Service {
	return &Service{
		repo:    repo,
		catalog: catalog,
		locker:  locker,
		metrics: m,
	}
}

type CreateAppointmentInput struct {
	PatientName    string
	PatientContact string
	PatientAge     int
	DoctorID       int64
	Date           string
	TimeSlot       string
	PatientNote    string
}

type UpdateAppointmentInput struct {
	PatientName *string
	DoctorID    *int64
	Date        *string
	TimeSlot    *string
	PatientNote *string
	Status      *string
}

// AvailableSlots computes the catalog slots not held by an active
// appointment for the doctor on the date, in catalog order. An empty result
// means the doctor is fully booked, not that something failed.
func (s *Service) AvailableSlots(ctx context.Context, doctorID int64, dateStr string) ([]AvailableSlot, error) {
	date, err := parseDate(dateStr)
	if err != nil {
		return nil, err
	}

	doctor, err := s.repo.GetDoctorByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	booked, err := s.repo.ListBookedSlots(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("list booked slots: %w", err)
	}

	taken := make(map[string]struct{}, len(booked))
	for _, label := range booked {
		taken[label] = struct{}{}
	}

	free := make([]AvailableSlot, 0, s.catalog.Len())
	for _, label := range s.catalog.All() {
		if _, ok := taken[label]; ok {
			continue
		}
		free = append(free, AvailableSlot{
			DoctorID:   doctor.ID,
			DoctorName: doctor.Name,
			Specialty:  doctor.Specialty,
			Date:       date,
			TimeSlot:   label,
		})
	}

	return free, nil
}

// CreateAppointment books a slot for a walk-in patient. The per-slot lock
// plus the repository's transactional check keep two concurrent requests
// for the same (doctor, date, slot) from both succeeding.
func (s *Service) CreateAppointment(ctx context.Context, in CreateAppointmentInput) (*Appointment, error) {
	if strings.TrimSpace(in.PatientName) == "" {
		return nil, validationf("patient_name is required")
	}
	if strings.TrimSpace(in.PatientContact) == "" {
		return nil, validationf("patient_contact is required")
	}
	if in.PatientAge < minPatientAge || in.PatientAge > maxPatientAge {
		return nil, validationf("patient_age must be between %d and %d", minPatientAge, maxPatientAge)
	}

	date, err := parseDate(in.Date)
	if err != nil {
		return nil, err
	}
	if !s.catalog.Contains(in.TimeSlot) {
		return nil, ErrInvalidSlot
	}

	if _, err := s.repo.GetDoctorByID(ctx, in.DoctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	var created *Appointment

	err = s.locker.WithSlotLock(ctx, redisclient.SlotKey(in.DoctorID, in.Date, in.TimeSlot), func(lockCtx context.Context) error {
		appt, err := s.repo.CreateAppointment(lockCtx, NewAppointment{
			DoctorID:       in.DoctorID,
			Date:           date,
			TimeSlot:       in.TimeSlot,
			PatientName:    strings.TrimSpace(in.PatientName),
			PatientContact: strings.TrimSpace(in.PatientContact),
			PatientAge:     in.PatientAge,
			PatientNote:    in.PatientNote,
		})
		if err != nil {
			return err
		}
		created = appt
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, redisclient.ErrLockNotAcquired):
			s.metrics.ObserveBooking("busy")
			return nil, ErrSlotBusy
		case errors.Is(err, ErrSlotTaken):
			s.metrics.ObserveBooking("conflict")
			s.metrics.ObserveSlotConflict()
			return nil, err
		default:
			s.metrics.ObserveBooking("error")
			return nil, err
		}
	}

	s.metrics.ObserveBooking("created")
	return created, nil
}

func (s *Service) GetAppointment(ctx context.Context, id int64) (*AppointmentDetail, error) {
	detail, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return detail, nil
}

// UpdateAppointment applies a partial update. Changing the doctor, date or
// slot re-passes the booking conflict check against the target triple,
// excluding the appointment's own row.
func (s *Service) UpdateAppointment(ctx context.Context, id int64, in UpdateAppointmentInput) (int64, error) {
	patch, err := s.buildPatch(in)
	if err != nil {
		return 0, err
	}
	if patch.Empty() {
		return 0, validationf("at least one field must be provided for update")
	}

	cur, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("load appointment: %w", err)
	}

	if patch.DoctorID != nil && *patch.DoctorID != cur.DoctorID {
		if _, err := s.repo.GetDoctorByID(ctx, *patch.DoctorID); err != nil {
			if errors.Is(err, ErrDoctorNotFound) {
				return 0, err
			}
			return 0, fmt.Errorf("load doctor: %w", err)
		}
	}

	// Lock the triple the row will occupy after the update, so a reschedule
	// races against bookings for its target slot, not its old one.
	targetDoctor := cur.DoctorID
	if patch.DoctorID != nil {
		targetDoctor = *patch.DoctorID
	}
	targetDate := cur.Date
	if patch.Date != nil {
		targetDate = *patch.Date
	}
	targetSlot := cur.TimeSlot
	if patch.TimeSlot != nil {
		targetSlot = *patch.TimeSlot
	}

	var affected int64
	err = s.locker.WithSlotLock(ctx, redisclient.SlotKey(targetDoctor, targetDate.Format(DateLayout), targetSlot), func(lockCtx context.Context) error {
		n, err := s.repo.UpdateAppointment(lockCtx, id, patch)
		if err != nil {
			return err
		}
		affected = n
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, redisclient.ErrLockNotAcquired):
			return 0, ErrSlotBusy
		case errors.Is(err, ErrSlotTaken):
			s.metrics.ObserveSlotConflict()
			return 0, err
		default:
			return 0, err
		}
	}

	return affected, nil
}

func (s *Service) UpdateAppointmentStatus(ctx context.Context, id int64, status string) (int64, error) {
	st := Status(status)
	if !st.Valid() {
		return 0, validationf("status must be one of Pending, Confirmed, Completed, Cancelled")
	}

	n, err := s.repo.UpdateAppointmentStatus(ctx, id, st)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) || errors.Is(err, ErrSlotTaken) {
			return 0, err
		}
		return 0, fmt.Errorf("update status: %w", err)
	}
	return n, nil
}

func (s *Service) DeleteAppointment(ctx context.Context, id int64) (int64, error) {
	n, err := s.repo.DeleteAppointment(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("delete appointment: %w", err)
	}
	return n, nil
}

// ListAppointments returns one stable page plus the total at the same
// snapshot. The total can be stale by the time the client reads it; that is
// accepted, not corrected.
func (s *Service) ListAppointments(ctx context.Context, limit, offset int) ([]AppointmentDetail, int64, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		return nil, 0, validationf("offset must not be negative")
	}

	items, total, err := s.repo.ListAppointments(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	return items, total, nil
}

func (s *Service) ListAppointmentsByPatient(ctx context.Context, patientID int64) ([]AppointmentDetail, error) {
	items, err := s.repo.ListAppointmentsByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return items, nil
}

func (s *Service) ListAppointmentsByDoctor(ctx context.Context, doctorID int64) ([]AppointmentDetail, error) {
	items, err := s.repo.ListAppointmentsByDoctor(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list appointments by doctor: %w", err)
	}
	return items, nil
}

func (s *Service) ListDoctors(ctx context.Context) ([]Doctor, error) {
	doctors, err := s.repo.ListDoctors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	return doctors, nil
}

func (s *Service) buildPatch(in UpdateAppointmentInput) (AppointmentPatch, error) {
	var patch AppointmentPatch

	if in.PatientName != nil {
		name := strings.TrimSpace(*in.PatientName)
		if name == "" {
			return patch, validationf("patient_name must not be blank")
		}
		patch.PatientName = &name
	}
	if in.DoctorID != nil {
		patch.DoctorID = in.DoctorID
	}
	if in.Date != nil {
		date, err := parseDate(*in.Date)
		if err != nil {
			return patch, err
		}
		patch.Date = &date
	}
	if in.TimeSlot != nil {
		if !s.catalog.Contains(*in.TimeSlot) {
			return patch, ErrInvalidSlot
		}
		patch.TimeSlot = in.TimeSlot
	}
	if in.PatientNote != nil {
		patch.PatientNote = in.PatientNote
	}
	if in.Status != nil {
		st := Status(*in.Status)
		if !st.Valid() {
			return patch, validationf("status must be one of Pending, Confirmed, Completed, Cancelled")
		}
		patch.Status = &st
	}

	return patch, nil
}

func parseDate(s string) (time.Time, error) {
	date, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, validationf("date must be a valid calendar date in %s format", DateLayout)
	}
	return date, nil
}
