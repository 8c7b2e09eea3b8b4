package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/hackgods/carebook-scheduling/internal/appointment"
	"github.com/hackgods/carebook-scheduling/internal/config"
	"github.com/hackgods/carebook-scheduling/internal/observability/metrics"
	"github.com/hackgods/carebook-scheduling/pkg/logging"
)

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// Dispatcher routes booking notifications to email and SMS according to
// the patient's preference. A booking sends on every preferred channel; a
// reschedule sends an email only. Cancellations send nothing.
type Dispatcher struct {
	email   EmailSender
	sms     SMSSender
	logger  *logging.Logger
	metrics *metrics.BookingMetrics
}

func NewDispatcher(email EmailSender, sms SMSSender, logger *logging.Logger, m *metrics.BookingMetrics) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	if email == nil {
		email = NewStubEmailSender(logger)
	}
	if sms == nil {
		sms = NewLogSMSSender(logger)
	}
	return &Dispatcher{email: email, sms: sms, logger: logger, metrics: m}
}

// Notify returns the number of messages delivered. Channel failures are
// joined into the error; a failed channel does not stop the other.
func (d *Dispatcher) Notify(ctx context.Context, n appointment.Notification) (int, error) {
	pref := n.Appointment.NotificationPreference
	var wantEmail, wantSMS bool
	switch n.Event {
	case appointment.EventAppointmentBooked:
		wantEmail, wantSMS = pref.WantsEmail(), pref.WantsSMS()
	case appointment.EventAppointmentRescheduled:
		wantEmail = true
	default:
		return 0, nil
	}

	sent := 0
	var errs []error

	if wantEmail {
		err := d.email.Send(ctx, confirmationEmail(n))
		d.metrics.ObserveNotification(ChannelEmail, err == nil)
		if err != nil {
			errs = append(errs, fmt.Errorf("email: %w", err))
		} else {
			sent++
		}
	}

	if wantSMS {
		err := d.sms.SendSMS(ctx, n.Appointment.Patient.Phone, confirmationSMS(n))
		d.metrics.ObserveNotification(ChannelSMS, err == nil)
		if err != nil {
			errs = append(errs, fmt.Errorf("sms: %w", err))
		} else {
			sent++
		}
	}

	return sent, errors.Join(errs...)
}

// NewEmailSender builds the sender selected by cfg.EmailProvider.
func NewEmailSender(ctx context.Context, cfg config.Config, logger *logging.Logger) (EmailSender, error) {
	sc := SenderConfig{FromEmail: cfg.EmailFrom, FromName: cfg.EmailFromName}

	switch cfg.EmailProvider {
	case config.EmailProviderSendGrid:
		s := NewSendGridSender(cfg.SendGridAPIKey, sc, logger)
		if s == nil {
			return nil, errors.New("notify: SENDGRID_API_KEY is empty")
		}
		return s, nil
	case config.EmailProviderSES:
		client, err := NewSESClient(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		return NewSESSender(client, sc, logger), nil
	case config.EmailProviderStub, "":
		return NewStubEmailSender(logger), nil
	default:
		return nil, fmt.Errorf("notify: unknown email provider %q", cfg.EmailProvider)
	}
}
