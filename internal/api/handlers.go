package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/clinicore/clinic-scheduling/internal/appointment"
	"github.com/clinicore/clinic-scheduling/internal/auth"
)

// SchedulingService is the operation surface the handlers need. Implemented
// by *appointment.Service; stubbed in handler tests.
type SchedulingService interface {
	AvailableSlots(ctx context.Context, doctorID int64, date string) ([]appointment.AvailableSlot, error)
	CreateAppointment(ctx context.Context, in appointment.CreateAppointmentInput) (*appointment.Appointment, error)
	GetAppointment(ctx context.Context, id int64) (*appointment.AppointmentDetail, error)
	UpdateAppointment(ctx context.Context, id int64, in appointment.UpdateAppointmentInput) (int64, error)
	UpdateAppointmentStatus(ctx context.Context, id int64, status string) (int64, error)
	DeleteAppointment(ctx context.Context, id int64) (int64, error)
	ListAppointments(ctx context.Context, limit, offset int) ([]appointment.AppointmentDetail, int64, error)
	ListAppointmentsByPatient(ctx context.Context, patientID int64) ([]appointment.AppointmentDetail, error)
	ListAppointmentsByDoctor(ctx context.Context, doctorID int64) ([]appointment.AppointmentDetail, error)
	ListDoctors(ctx context.Context) ([]appointment.Doctor, error)
}

func getAvailableSlotsHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorIDStr := r.URL.Query().Get("doctor_id")
		date := r.URL.Query().Get("date")
		if doctorIDStr == "" || date == "" {
			writeError(w, http.StatusBadRequest, "missing_parameters", "doctor_id and date are required")
			return
		}

		doctorID, err := strconv.ParseInt(doctorIDStr, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be an integer")
			return
		}

		slots, err := svc.AvailableSlots(r.Context(), doctorID, date)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAvailableSlotResponses(slots))
	}
}

func createAppointmentHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.CreateAppointment(r.Context(), appointment.CreateAppointmentInput{
			PatientName:    req.PatientName,
			PatientContact: req.PatientContact,
			PatientAge:     req.PatientAge,
			DoctorID:       req.DoctorID,
			Date:           req.Date,
			TimeSlot:       req.TimeSlot,
			PatientNote:    req.PatientNote,
		})
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, CreateAppointmentResponse{
			AppointmentID: appt.ID,
			Status:        string(appt.Status),
		})
	}
}

func getAppointmentHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func updateAppointmentHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		var req UpdateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		n, err := svc.UpdateAppointment(r.Context(), id, appointment.UpdateAppointmentInput{
			PatientName: req.PatientName,
			DoctorID:    req.DoctorID,
			Date:        req.Date,
			TimeSlot:    req.TimeSlot,
			PatientNote: req.PatientNote,
			Status:      req.Status,
		})
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, AffectedRowsResponse{AffectedRows: n})
	}
}

func updateAppointmentStatusHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		var req UpdateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		n, err := svc.UpdateAppointmentStatus(r.Context(), id, req.Status)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, AffectedRowsResponse{AffectedRows: n})
	}
}

func deleteAppointmentHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		n, err := svc.DeleteAppointment(r.Context(), id)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		// Deletes are destructive and restricted; keep a trace of who did it.
		if role, ok := auth.RoleFromContext(r.Context()); ok && n > 0 {
			log.Printf("appointment %d deleted by role=%s request_id=%s", id, role, GetRequestID(r.Context()))
		}

		writeJSON(w, http.StatusOK, AffectedRowsResponse{AffectedRows: n})
	}
}

func listAppointmentsHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := intQueryParam(w, r, "limit", 0)
		if !ok {
			return
		}
		offset, ok := intQueryParam(w, r, "offset", 0)
		if !ok {
			return
		}

		items, total, err := svc.ListAppointments(r.Context(), limit, offset)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, ListAppointmentsResponse{
			Appointments: toAppointmentResponses(items),
			TotalCount:   total,
		})
	}
}

func listAppointmentsByPatientHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, err := strconv.ParseInt(chi.URLParam(r, "patientId"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patientId must be an integer")
			return
		}

		items, err := svc.ListAppointmentsByPatient(r.Context(), patientID)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponses(items))
	}
}

func listAppointmentsByDoctorHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := strconv.ParseInt(chi.URLParam(r, "doctorId"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctorId must be an integer")
			return
		}

		items, err := svc.ListAppointmentsByDoctor(r.Context(), doctorID)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponses(items))
	}
}

func listDoctorsHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctors, err := svc.ListDoctors(r.Context())
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toDoctorResponses(doctors))
	}
}

func appointmentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be an integer")
		return 0, false
	}
	return id, true
}

func intQueryParam(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be an integer")
		return 0, false
	}
	return n, true
}

// handleSchedulingError maps domain errors to HTTP statuses. slot_conflict
// means pick another slot; slot_busy means the same slot may be retried.
func handleSchedulingError(w http.ResponseWriter, err error) {
	var verr *appointment.ValidationError

	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, "validation_error", verr.Reason)
	case errors.Is(err, appointment.ErrInvalidSlot):
		writeError(w, http.StatusBadRequest, "invalid_slot", err.Error())
	case errors.Is(err, appointment.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_conflict", err.Error())
	case errors.Is(err, appointment.ErrSlotBusy):
		writeError(w, http.StatusConflict, "slot_busy", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
