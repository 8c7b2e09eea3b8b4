package appointment

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusConfirmed   Status = "confirmed"
	StatusRescheduled Status = "rescheduled"
	StatusCancelled   Status = "cancelled"
)

var allowedTransitions = map[Status][]Status{
	StatusConfirmed:   {StatusRescheduled, StatusCancelled},
	StatusRescheduled: {StatusRescheduled, StatusCancelled},
}

// Active reports whether the appointment still holds its slot.
func (s Status) Active() bool {
	return s == StatusConfirmed || s == StatusRescheduled
}

func (s Status) Valid() bool {
	return s == StatusConfirmed || s == StatusRescheduled || s == StatusCancelled
}

// CanTransitionTo reports whether moving from s to next is allowed.
// Cancelled is terminal.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type NotificationPreference string

const (
	NotifyEmail NotificationPreference = "email"
	NotifySMS   NotificationPreference = "sms"
	NotifyBoth  NotificationPreference = "both"
)

func (p NotificationPreference) Valid() bool {
	return p == NotifyEmail || p == NotifySMS || p == NotifyBoth
}

func (p NotificationPreference) WantsEmail() bool { return p == NotifyEmail || p == NotifyBoth }
func (p NotificationPreference) WantsSMS() bool   { return p == NotifySMS || p == NotifyBoth }

// SlotKey identifies one bookable cell. Date is YYYY-MM-DD, Time is HH:MM.
type SlotKey struct {
	ProviderID int64
	Date       string
	Time       string
}

func (k SlotKey) String() string {
	return fmt.Sprintf("%d:%s:%s", k.ProviderID, k.Date, k.Time)
}

// Slot is an available (date, time) pair for a known provider.
type Slot struct {
	Date string
	Time string
}

// SlotFilter narrows ListAvailable. Date wins over Month, Month over From.
type SlotFilter struct {
	Date  string // exact YYYY-MM-DD
	Month string // YYYY-MM
	From  string // YYYY-MM-DD lower bound, inclusive
}

type Provider struct {
	ID                   int64
	FirstName            string
	LastName             string
	Title                string
	Specialty            string
	Phone                string
	Email                string
	Location             string
	Address              string
	Bio                  string
	Rating               float64
	ReviewCount          int
	AcceptingNewPatients bool
	AvatarURL            string
	AppointmentTypes     []string
}

// DisplayName renders "Dr. First Last, Title".
func (p Provider) DisplayName() string {
	return fmt.Sprintf("Dr. %s %s, %s", p.FirstName, p.LastName, p.Title)
}

type AppointmentType struct {
	ID              int64
	Name            string
	Description     string
	DurationMinutes int
	Category        string
}

type Patient struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	DOB       *string
}

type Interpreter struct {
	Needed   bool
	Language *string
}

type Appointment struct {
	ID                     int64
	ConfirmationNumber     string
	ProviderID             int64
	AppointmentTypeID      int64
	Patient                Patient
	Interpreter            Interpreter
	ReasonForVisit         *string
	NotificationPreference NotificationPreference
	Date                   string
	Time                   string
	Status                 Status
	CancelReason           *string
	CancelledAt            *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

func (a Appointment) Slot() SlotKey {
	return SlotKey{ProviderID: a.ProviderID, Date: a.Date, Time: a.Time}
}

// NewAppointment is what the ledger needs to insert a confirmed booking.
type NewAppointment struct {
	ConfirmationNumber     string
	ProviderID             int64
	AppointmentTypeID      int64
	Patient                Patient
	Interpreter            Interpreter
	ReasonForVisit         *string
	NotificationPreference NotificationPreference
	Date                   string
	Time                   string
}

func (n NewAppointment) Slot() SlotKey {
	return SlotKey{ProviderID: n.ProviderID, Date: n.Date, Time: n.Time}
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *int64
	Payload       []byte
	CreatedAt     time.Time
}

type AppointmentDetail struct {
	Appointment
	Provider        *Provider
	AppointmentType *AppointmentType
}

type BookRequest struct {
	ProviderID             int64
	AppointmentTypeID      int64
	Patient                Patient
	Interpreter            Interpreter
	ReasonForVisit         *string
	NotificationPreference NotificationPreference
	Date                   string
	Time                   string
}

type BookResult struct {
	Appointment       *Appointment
	Provider          *Provider
	AppointmentType   *AppointmentType
	NotificationsSent int
}

// DaySlots holds the open times of one date, ascending.
type DaySlots struct {
	Date  string
	Times []string
}

type Availability struct {
	ProviderID int64
	Days       []DaySlots
	Total      int
}
