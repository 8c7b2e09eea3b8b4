package notify

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/hackgods/carebook-scheduling/internal/appointment"
)

// FormatDate renders YYYY-MM-DD as "Monday, March 10, 2025". Unparseable
// input is returned unchanged.
func FormatDate(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return t.Format("Monday, January 2, 2006")
}

// FormatTime renders HH:MM on a 12 hour clock, e.g. "1:30 PM".
func FormatTime(tm string) string {
	t, err := time.Parse("15:04", tm)
	if err != nil {
		return tm
	}
	return t.Format("3:04 PM")
}

// Stored names are HTML-escaped; messages are plain text.
func plain(s string) string {
	return html.UnescapeString(s)
}

func confirmationEmail(n appointment.Notification) EmailMessage {
	a := n.Appointment
	subject := "Appointment Confirmation - " + a.ConfirmationNumber
	headline := "Your appointment has been confirmed!"
	if n.Event == appointment.EventAppointmentRescheduled {
		subject = "Appointment Rescheduled - " + a.ConfirmationNumber
		headline = "Your appointment has been rescheduled."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s %s,\n\n", plain(a.Patient.FirstName), plain(a.Patient.LastName))
	fmt.Fprintf(&b, "%s\n\n", headline)
	fmt.Fprintf(&b, "Confirmation Number: %s\n", a.ConfirmationNumber)
	fmt.Fprintf(&b, "Provider: %s\n", n.Provider.DisplayName())
	if n.AppointmentType.Name != "" {
		fmt.Fprintf(&b, "Visit: %s\n", n.AppointmentType.Name)
	}
	fmt.Fprintf(&b, "Location: %s\n", n.Provider.Location)
	fmt.Fprintf(&b, "Date: %s\n", FormatDate(a.Date))
	fmt.Fprintf(&b, "Time: %s\n\n", FormatTime(a.Time))
	b.WriteString("Please arrive 15 minutes early for check-in.\n\n")
	b.WriteString("To cancel or reschedule, visit your CareBook portal.\n\n")
	b.WriteString("Thank you for choosing CareBook!")

	return EmailMessage{
		To:      a.Patient.Email,
		ToName:  plain(a.Patient.FirstName + " " + a.Patient.LastName),
		Subject: subject,
		Body:    b.String(),
	}
}

func confirmationSMS(n appointment.Notification) string {
	a := n.Appointment
	return fmt.Sprintf("CareBook: Appointment confirmed! Ref: %s. Dr. %s on %s at %s. Location: %s.",
		a.ConfirmationNumber, n.Provider.LastName, FormatDate(a.Date), FormatTime(a.Time), n.Provider.Location)
}
