package api

import (
	"time"

	"github.com/clinicore/clinic-scheduling/internal/appointment"
)

type CreateAppointmentRequest struct {
	PatientName    string `json:"patient_name"`
	PatientContact string `json:"patient_contact"`
	PatientAge     int    `json:"patient_age"`
	DoctorID       int64  `json:"doctor_id"`
	Date           string `json:"date"`
	TimeSlot       string `json:"time_slot"`
	PatientNote    string `json:"patient_note,omitempty"`
}

type CreateAppointmentResponse struct {
	AppointmentID int64  `json:"appointment_id"`
	Status        string `json:"status"`
}

type UpdateAppointmentRequest struct {
	PatientName *string `json:"patient_name,omitempty"`
	DoctorID    *int64  `json:"doctor_id,omitempty"`
	Date        *string `json:"date,omitempty"`
	TimeSlot    *string `json:"time_slot,omitempty"`
	PatientNote *string `json:"patient_note,omitempty"`
	Status      *string `json:"status,omitempty"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type AffectedRowsResponse struct {
	AffectedRows int64 `json:"affected_rows"`
}

type AvailableSlotResponse struct {
	DoctorID   int64   `json:"doctor_id"`
	DoctorName string  `json:"doctor_name"`
	Specialty  *string `json:"specialty"`
	Date       string  `json:"date"`
	TimeSlot   string  `json:"time_slot"`
}

type AppointmentResponse struct {
	AppointmentID int64     `json:"appointment_id"`
	DoctorID      int64     `json:"doctor_id"`
	DoctorName    string    `json:"doctor_name"`
	PatientID     int64     `json:"patient_id"`
	PatientName   string    `json:"patient_name"`
	Date          string    `json:"date"`
	TimeSlot      string    `json:"time_slot"`
	PatientNote   string    `json:"patient_note,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

type ListAppointmentsResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
	TotalCount   int64                 `json:"total_count"`
}

type DoctorResponse struct {
	DoctorID  int64   `json:"doctor_id"`
	Name      string  `json:"name"`
	Gender    string  `json:"gender"`
	Specialty *string `json:"specialty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a appointment.AppointmentDetail) AppointmentResponse {
	return AppointmentResponse{
		AppointmentID: a.ID,
		DoctorID:      a.DoctorID,
		DoctorName:    a.DoctorName,
		PatientID:     a.PatientID,
		PatientName:   a.PatientName,
		Date:          a.Date.Format(appointment.DateLayout),
		TimeSlot:      a.TimeSlot,
		PatientNote:   a.PatientNote,
		Status:        string(a.Status),
		CreatedAt:     a.CreatedAt,
	}
}

func toAppointmentResponses(items []appointment.AppointmentDetail) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(items))
	for _, a := range items {
		out = append(out, toAppointmentResponse(a))
	}
	return out
}

func toAvailableSlotResponses(slots []appointment.AvailableSlot) []AvailableSlotResponse {
	out := make([]AvailableSlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, AvailableSlotResponse{
			DoctorID:   s.DoctorID,
			DoctorName: s.DoctorName,
			Specialty:  s.Specialty,
			Date:       s.Date.Format(appointment.DateLayout),
			TimeSlot:   s.TimeSlot,
		})
	}
	return out
}

func toDoctorResponses(doctors []appointment.Doctor) []DoctorResponse {
	out := make([]DoctorResponse, 0, len(doctors))
	for _, d := range doctors {
		out = append(out, DoctorResponse{
			DoctorID:  d.ID,
			Name:      d.Name,
			Gender:    d.Gender,
			Specialty: d.Specialty,
		})
	}
	return out
}
