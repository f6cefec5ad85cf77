package appointment

import "time"

// DateLayout is the wire format for appointment dates.
const DateLayout = "2006-01-02"

type Status string

const (
	StatusPending   Status = "Pending"
	StatusConfirmed Status = "Confirmed"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
)

// Valid reports whether s is a member of the status enumeration.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Active reports whether an appointment in this status occupies its slot.
// Cancelled appointments do not.
func (s Status) Active() bool {
	return s.Valid() && s != StatusCancelled
}

type Doctor struct {
	ID        int64
	Name      string
	Gender    string
	Specialty *string
	CreatedAt time.Time
}

type Patient struct {
	ID        int64
	Name      string
	Contact   string
	Age       int
	CreatedAt time.Time
}

type Appointment struct {
	ID          int64
	DoctorID    int64
	PatientID   int64
	Date        time.Time
	TimeSlot    string
	PatientNote string
	Status      Status
	CreatedAt   time.Time
}

// AppointmentDetail is an appointment joined with display names for list
// and detail views.
type AppointmentDetail struct {
	Appointment
	PatientName string
	DoctorName  string
}

// AvailableSlot is one free slot for a doctor on a date, carrying the
// doctor display metadata the booking UI renders next to it.
type AvailableSlot struct {
	DoctorID   int64
	DoctorName string
	Specialty  *string
	Date       time.Time
	TimeSlot   string
}

// NewAppointment carries everything needed to book a slot. The patient is
// created inline from the contact fields; this is the walk-in creation path.
type NewAppointment struct {
	DoctorID       int64
	Date           time.Time
	TimeSlot       string
	PatientName    string
	PatientContact string
	PatientAge     int
	PatientNote    string
}

// AppointmentPatch is a partial update. Nil fields are left unchanged.
type AppointmentPatch struct {
	PatientName *string
	DoctorID    *int64
	Date        *time.Time
	TimeSlot    *string
	PatientNote *string
	Status      *Status
}

// Empty reports whether the patch changes nothing.
func (p AppointmentPatch) Empty() bool {
	return p.PatientName == nil &&
		p.DoctorID == nil &&
		p.Date == nil &&
		p.TimeSlot == nil &&
		p.PatientNote == nil &&
		p.Status == nil
}
