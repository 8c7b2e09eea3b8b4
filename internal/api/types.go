package api

import (
	"time"

	"github.com/hackgods/carebook-scheduling/internal/appointment"
)

type BookAppointmentRequest struct {
	ProviderID             int64   `json:"provider_id"`
	AppointmentTypeID      int64   `json:"appointment_type_id"`
	PatientFirstName       string  `json:"patient_first_name"`
	PatientLastName        string  `json:"patient_last_name"`
	PatientEmail           string  `json:"patient_email"`
	PatientPhone           string  `json:"patient_phone"`
	PatientDOB             *string `json:"patient_dob"`
	AppointmentDate        string  `json:"appointment_date"`
	AppointmentTime        string  `json:"appointment_time"`
	InterpreterNeeded      bool    `json:"interpreter_needed"`
	InterpreterLanguage    *string `json:"interpreter_language"`
	ReasonForVisit         *string `json:"reason_for_visit"`
	NotificationPreference string  `json:"notification_preference"`
}

func (r BookAppointmentRequest) toDomain() appointment.BookRequest {
	return appointment.BookRequest{
		ProviderID:        r.ProviderID,
		AppointmentTypeID: r.AppointmentTypeID,
		Patient: appointment.Patient{
			FirstName: r.PatientFirstName,
			LastName:  r.PatientLastName,
			Email:     r.PatientEmail,
			Phone:     r.PatientPhone,
			DOB:       r.PatientDOB,
		},
		Interpreter: appointment.Interpreter{
			Needed:   r.InterpreterNeeded,
			Language: r.InterpreterLanguage,
		},
		ReasonForVisit:         r.ReasonForVisit,
		NotificationPreference: appointment.NotificationPreference(r.NotificationPreference),
		Date:                   r.AppointmentDate,
		Time:                   r.AppointmentTime,
	}
}

type CancelAppointmentRequest struct {
	CancelReason *string `json:"cancel_reason"`
}

type RescheduleAppointmentRequest struct {
	AppointmentDate string `json:"appointment_date"`
	AppointmentTime string `json:"appointment_time"`
}

type SuggestRequest struct {
	Description *string `json:"description"`
}

// AppointmentResponse is the flat appointment shape. Provider and type
// fields are filled when the caller has them.
type AppointmentResponse struct {
	ID                     int64      `json:"id"`
	ConfirmationNumber     string     `json:"confirmation_number"`
	ProviderID             int64      `json:"provider_id"`
	AppointmentTypeID      int64      `json:"appointment_type_id"`
	PatientFirstName       string     `json:"patient_first_name"`
	PatientLastName        string     `json:"patient_last_name"`
	PatientEmail           string     `json:"patient_email"`
	PatientPhone           string     `json:"patient_phone"`
	PatientDOB             *string    `json:"patient_dob"`
	AppointmentDate        string     `json:"appointment_date"`
	AppointmentTime        string     `json:"appointment_time"`
	InterpreterNeeded      bool       `json:"interpreter_needed"`
	InterpreterLanguage    *string    `json:"interpreter_language"`
	ReasonForVisit         *string    `json:"reason_for_visit"`
	NotificationPreference string     `json:"notification_preference"`
	Status                 string     `json:"status"`
	CancelReason           *string    `json:"cancel_reason"`
	CancelledAt            *time.Time `json:"cancelled_at"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`

	ProviderName        string `json:"provider_name,omitempty"`
	ProviderSpecialty   string `json:"provider_specialty,omitempty"`
	ProviderLocation    string `json:"provider_location,omitempty"`
	ProviderAddress     string `json:"provider_address,omitempty"`
	ProviderPhone       string `json:"provider_phone,omitempty"`
	ProviderAvatar      string `json:"provider_avatar,omitempty"`
	AppointmentTypeName string `json:"appointment_type_name,omitempty"`
	DurationMinutes     int    `json:"duration_minutes,omitempty"`
}

func newAppointmentResponse(a *appointment.Appointment, p *appointment.Provider, t *appointment.AppointmentType) AppointmentResponse {
	resp := AppointmentResponse{
		ID:                     a.ID,
		ConfirmationNumber:     a.ConfirmationNumber,
		ProviderID:             a.ProviderID,
		AppointmentTypeID:      a.AppointmentTypeID,
		PatientFirstName:       a.Patient.FirstName,
		PatientLastName:        a.Patient.LastName,
		PatientEmail:           a.Patient.Email,
		PatientPhone:           a.Patient.Phone,
		PatientDOB:             a.Patient.DOB,
		AppointmentDate:        a.Date,
		AppointmentTime:        a.Time,
		InterpreterNeeded:      a.Interpreter.Needed,
		InterpreterLanguage:    a.Interpreter.Language,
		ReasonForVisit:         a.ReasonForVisit,
		NotificationPreference: string(a.NotificationPreference),
		Status:                 string(a.Status),
		CancelReason:           a.CancelReason,
		CancelledAt:            a.CancelledAt,
		CreatedAt:              a.CreatedAt,
		UpdatedAt:              a.UpdatedAt,
	}
	if p != nil {
		resp.ProviderName = p.DisplayName()
		resp.ProviderSpecialty = p.Specialty
		resp.ProviderLocation = p.Location
		resp.ProviderAddress = p.Address
		resp.ProviderPhone = p.Phone
		resp.ProviderAvatar = p.AvatarURL
	}
	if t != nil {
		resp.AppointmentTypeName = t.Name
		resp.DurationMinutes = t.DurationMinutes
	}
	return resp
}

type BookAppointmentResponse struct {
	Message           string              `json:"message"`
	Appointment       AppointmentResponse `json:"appointment"`
	NotificationsSent int                 `json:"notifications_sent"`
}

type AppointmentActionResponse struct {
	Message     string              `json:"message"`
	Appointment AppointmentResponse `json:"appointment"`
}

type AppointmentListResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
	Total        int                   `json:"total"`
}

type ProviderResponse struct {
	ID                   int64    `json:"id"`
	FirstName            string   `json:"first_name"`
	LastName             string   `json:"last_name"`
	Title                string   `json:"title"`
	Specialty            string   `json:"specialty"`
	Phone                string   `json:"phone"`
	Email                string   `json:"email"`
	Location             string   `json:"location"`
	Address              string   `json:"address"`
	Bio                  string   `json:"bio"`
	Rating               float64  `json:"rating"`
	ReviewCount          int      `json:"review_count"`
	AcceptingNewPatients bool     `json:"accepting_new_patients"`
	AvatarURL            string   `json:"avatar_url"`
	AppointmentTypes     []string `json:"appointment_types"`
}

func newProviderResponse(p appointment.Provider) ProviderResponse {
	types := p.AppointmentTypes
	if types == nil {
		types = []string{}
	}
	return ProviderResponse{
		ID:                   p.ID,
		FirstName:            p.FirstName,
		LastName:             p.LastName,
		Title:                p.Title,
		Specialty:            p.Specialty,
		Phone:                p.Phone,
		Email:                p.Email,
		Location:             p.Location,
		Address:              p.Address,
		Bio:                  p.Bio,
		Rating:               p.Rating,
		ReviewCount:          p.ReviewCount,
		AcceptingNewPatients: p.AcceptingNewPatients,
		AvatarURL:            p.AvatarURL,
		AppointmentTypes:     types,
	}
}

type ProviderListResponse struct {
	Providers []ProviderResponse `json:"providers"`
	Total     int                `json:"total"`
}

type SlotsResponse struct {
	ProviderID     int64               `json:"provider_id"`
	Slots          map[string][]string `json:"slots"`
	TotalAvailable int                 `json:"total_available"`
}

type AppointmentTypeResponse struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	DurationMinutes int    `json:"duration_minutes"`
	Category        string `json:"category"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}
