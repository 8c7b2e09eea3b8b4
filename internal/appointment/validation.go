package appointment

import (
	"html"
	"net/mail"
	"regexp"
	"strings"
	"time"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"

	maxNameLen     = 100
	maxLanguageLen = 50
	maxReasonLen   = 500
)

var (
	nameRe  = regexp.MustCompile(`^[a-zA-Z\s'-]+$`)
	phoneRe = regexp.MustCompile(`^\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}$`)
	monthRe = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)
)

// NormalizeDate returns s as YYYY-MM-DD, or false when it is not a calendar date.
func NormalizeDate(s string) (string, bool) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return "", false
	}
	return t.Format(dateLayout), true
}

// NormalizeTime accepts H:MM or HH:MM on a 24 hour clock and returns HH:MM.
func NormalizeTime(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 4 || len(s) > 5 {
		return "", false
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return "", false
	}
	return t.Format(timeLayout), true
}

func ValidMonth(s string) bool {
	return monthRe.MatchString(s)
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

func sanitizeText(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}

func sanitizeOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := sanitizeText(*s)
	if v == "" {
		return nil
	}
	return &v
}

func checkName(verr *ValidationError, field, label, v string) {
	switch {
	case v == "" || len(v) > maxNameLen:
		verr.Add(field, label+" is required (max 100 characters)")
	case !nameRe.MatchString(v):
		verr.Add(field, label+" can only contain letters, spaces, hyphens, and apostrophes")
	}
}

func checkMaxLen(verr *ValidationError, field string, v *string, max int, msg string) {
	if v != nil && len(strings.TrimSpace(*v)) > max {
		verr.Add(field, msg)
	}
}

// checkSchedule normalizes date and tm in place.
func (s *Service) checkSchedule(verr *ValidationError, date, tm *string, label string) {
	d, ok := NormalizeDate(*date)
	if !ok {
		verr.Add("appointment_date", "Valid "+label+"date is required (YYYY-MM-DD)")
	} else {
		*date = d
		if s.cfg.EnforceFutureDates && d <= s.today() {
			verr.Add("appointment_date", "Appointment date must be in the future")
		}
	}

	t, ok := NormalizeTime(*tm)
	if !ok {
		verr.Add("appointment_time", "Valid "+label+"time is required (HH:MM)")
	} else {
		*tm = t
	}
}

// validateBook checks req and normalizes it in place: trimmed and
// lower-cased email, HH:MM time, default notification preference,
// escaped free text.
func (s *Service) validateBook(req *BookRequest) error {
	var verr ValidationError

	if req.ProviderID < 1 {
		verr.Add("provider_id", "Valid provider ID is required")
	}
	if req.AppointmentTypeID < 1 {
		verr.Add("appointment_type_id", "Valid appointment type is required")
	}

	req.Patient.FirstName = strings.TrimSpace(req.Patient.FirstName)
	req.Patient.LastName = strings.TrimSpace(req.Patient.LastName)
	checkName(&verr, "patient_first_name", "First name", req.Patient.FirstName)
	checkName(&verr, "patient_last_name", "Last name", req.Patient.LastName)

	req.Patient.Email = strings.ToLower(strings.TrimSpace(req.Patient.Email))
	if !validEmail(req.Patient.Email) {
		verr.Add("patient_email", "Valid email address is required")
	}

	req.Patient.Phone = strings.TrimSpace(req.Patient.Phone)
	if !phoneRe.MatchString(req.Patient.Phone) {
		verr.Add("patient_phone", "Valid phone number is required (e.g., (555) 123-4567)")
	}

	if req.Patient.DOB != nil {
		if dob, ok := NormalizeDate(*req.Patient.DOB); ok {
			req.Patient.DOB = &dob
		} else {
			verr.Add("patient_dob", "Valid date of birth is required (YYYY-MM-DD)")
		}
	}

	s.checkSchedule(&verr, &req.Date, &req.Time, "appointment ")

	checkMaxLen(&verr, "interpreter_language", req.Interpreter.Language, maxLanguageLen, "Language must be max 50 characters")
	checkMaxLen(&verr, "reason_for_visit", req.ReasonForVisit, maxReasonLen, "Reason for visit must be max 500 characters")

	if req.NotificationPreference == "" {
		req.NotificationPreference = NotifyEmail
	}
	if !req.NotificationPreference.Valid() {
		verr.Add("notification_preference", "Notification preference must be email, sms, or both")
	}

	if err := verr.Err(); err != nil {
		return err
	}

	req.Patient.FirstName = sanitizeText(req.Patient.FirstName)
	req.Patient.LastName = sanitizeText(req.Patient.LastName)
	req.Interpreter.Language = sanitizeOptional(req.Interpreter.Language)
	req.ReasonForVisit = sanitizeOptional(req.ReasonForVisit)
	return nil
}

func (s *Service) validateReschedule(id int64, date, tm *string) error {
	var verr ValidationError
	if id < 1 {
		verr.Add("id", "Valid appointment ID is required")
	}
	s.checkSchedule(&verr, date, tm, "new appointment ")
	return verr.Err()
}

func validateCancel(id int64, reason *string) (*string, error) {
	var verr ValidationError
	if id < 1 {
		verr.Add("id", "Valid appointment ID is required")
	}
	checkMaxLen(&verr, "cancel_reason", reason, maxReasonLen, "Cancel reason must be max 500 characters")
	if err := verr.Err(); err != nil {
		return nil, err
	}
	return sanitizeOptional(reason), nil
}
