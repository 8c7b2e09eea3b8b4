package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hackgods/carebook-scheduling/internal/config"
	"github.com/hackgods/carebook-scheduling/internal/observability/metrics"
	redisclient "github.com/hackgods/carebook-scheduling/internal/redis"
	"github.com/hackgods/carebook-scheduling/pkg/logging"
)

const (
	EventAppointmentBooked      = "APPOINTMENT_BOOKED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
)

var tracer = otel.Tracer("carebook.internal.appointment")

// Service coordinates slot claims with ledger writes. Every mutation runs
// as one store transaction; notifications go out only after commit.
type Service struct {
	store     Store
	directory Directory
	locker    redisclient.Locker
	cfg       config.Config

	notifier Notifier
	codes    CodeGenerator
	logger   *logging.Logger
	metrics  *metrics.BookingMetrics
	now      func() time.Time
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithCodeGenerator(g CodeGenerator) Option {
	return func(s *Service) { s.codes = g }
}

func WithLogger(l *logging.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithMetrics(m *metrics.BookingMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, directory Directory, locker redisclient.Locker, cfg config.Config, opts ...Option) *Service {
	s := &Service{
		store:     store,
		directory: directory,
		locker:    locker,
		cfg:       cfg,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.locker == nil {
		s.locker = redisclient.NopLocker{}
	}
	if s.codes == nil {
		s.codes = NewRandomCodeGenerator(cfg.ConfirmationPrefix)
	}
	if s.logger == nil {
		s.logger = logging.Default()
	}
	if s.cfg.ConfirmationAttempts < 1 {
		s.cfg.ConfirmationAttempts = 3
	}
	if s.cfg.NotifyTimeout <= 0 {
		s.cfg.NotifyTimeout = 5 * time.Second
	}
	return s
}

func (s *Service) today() string {
	return s.now().Format(dateLayout)
}

// Book validates req, claims its cell and records a confirmed appointment
// under a fresh confirmation number, all in one transaction.
func (s *Service) Book(ctx context.Context, req BookRequest) (res *BookResult, err error) {
	ctx, span := tracer.Start(ctx, "appointment.Book", trace.WithAttributes(
		attribute.Int64("carebook.provider_id", req.ProviderID),
	))
	start := time.Now()
	defer func() { s.finish(span, "book", start, err) }()

	if err := s.validateBook(&req); err != nil {
		return nil, err
	}

	provider, err := s.directory.Provider(ctx, req.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("load provider: %w", err)
	}
	apptType, err := s.directory.AppointmentType(ctx, req.AppointmentTypeID)
	if err != nil {
		return nil, fmt.Errorf("load appointment type: %w", err)
	}

	na := NewAppointment{
		ProviderID:             req.ProviderID,
		AppointmentTypeID:      req.AppointmentTypeID,
		Patient:                req.Patient,
		Interpreter:            req.Interpreter,
		ReasonForVisit:         req.ReasonForVisit,
		NotificationPreference: req.NotificationPreference,
		Date:                   req.Date,
		Time:                   req.Time,
	}
	key := na.Slot()
	span.SetAttributes(attribute.String("carebook.slot", key.String()))

	var created *Appointment
	err = s.withSlotLock(ctx, key, func(ctx context.Context) error {
		return s.store.InTx(ctx, func(tx Tx) error {
			if err := tx.Slots().Claim(ctx, key); err != nil {
				return err
			}

			appt, err := s.insertWithFreshCode(ctx, tx.Ledger(), na)
			if err != nil {
				return err
			}
			created = appt

			return s.appendEvent(ctx, tx.Ledger(), EventAppointmentBooked, appt.ID, map[string]any{
				"confirmation_number": appt.ConfirmationNumber,
				"provider_id":         appt.ProviderID,
				"appointment_date":    appt.Date,
				"appointment_time":    appt.Time,
			})
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("appointment booked",
		"appointment_id", created.ID,
		"confirmation_number", created.ConfirmationNumber,
		"slot", key.String(),
	)

	sent := s.notify(ctx, EventAppointmentBooked, created, provider, apptType)

	return &BookResult{
		Appointment:       created,
		Provider:          provider,
		AppointmentType:   apptType,
		NotificationsSent: sent,
	}, nil
}

func (s *Service) insertWithFreshCode(ctx context.Context, ledger AppointmentLedger, na NewAppointment) (*Appointment, error) {
	for attempt := 1; attempt <= s.cfg.ConfirmationAttempts; attempt++ {
		code, err := s.codes.Generate()
		if err != nil {
			return nil, fmt.Errorf("generate confirmation number: %w", err)
		}
		na.ConfirmationNumber = code

		appt, err := ledger.Insert(ctx, na)
		if err == nil {
			return appt, nil
		}
		if !errors.Is(err, ErrDuplicateConfirmationCode) {
			return nil, err
		}

		s.metrics.IncCodeCollision()
		s.logger.Warn("confirmation number collision", "attempt", attempt)
	}
	return nil, ErrConfirmationCodeExhausted
}

// Cancel marks the appointment cancelled and frees its cell.
func (s *Service) Cancel(ctx context.Context, id int64, reason *string) (updated *Appointment, err error) {
	ctx, span := tracer.Start(ctx, "appointment.Cancel", trace.WithAttributes(
		attribute.Int64("carebook.appointment_id", id),
	))
	start := time.Now()
	defer func() { s.finish(span, "cancel", start, err) }()

	reason, err = validateCancel(id, reason)
	if err != nil {
		return nil, err
	}

	err = s.store.InTx(ctx, func(tx Tx) error {
		appt, err := tx.Ledger().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !appt.Status.CanTransitionTo(StatusCancelled) {
			return ErrAlreadyCancelled
		}

		updated, err = tx.Ledger().MarkCancelled(ctx, id, reason)
		if err != nil {
			return err
		}
		if err := tx.Slots().Release(ctx, appt.Slot()); err != nil {
			return err
		}

		return s.appendEvent(ctx, tx.Ledger(), EventAppointmentCancelled, id, map[string]any{
			"released_slot": appt.Slot().String(),
			"cancel_reason": reason,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("appointment cancelled", "appointment_id", id)
	return updated, nil
}

// Reschedule moves an active appointment to another cell of the same
// provider. The new cell is claimed and the old one released atomically.
func (s *Service) Reschedule(ctx context.Context, id int64, date, tm string) (updated *Appointment, err error) {
	ctx, span := tracer.Start(ctx, "appointment.Reschedule", trace.WithAttributes(
		attribute.Int64("carebook.appointment_id", id),
	))
	start := time.Now()
	defer func() { s.finish(span, "reschedule", start, err) }()

	if err := s.validateReschedule(id, &date, &tm); err != nil {
		return nil, err
	}

	current, err := s.store.Ledger().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == StatusCancelled {
		return nil, ErrAlreadyCancelled
	}

	target := SlotKey{ProviderID: current.ProviderID, Date: date, Time: tm}
	if target == current.Slot() {
		return nil, fmt.Errorf("appointment already holds %s: %w", target, ErrSlotUnavailable)
	}
	span.SetAttributes(attribute.String("carebook.slot", target.String()))

	err = s.withSlotLock(ctx, target, func(ctx context.Context) error {
		return s.store.InTx(ctx, func(tx Tx) error {
			appt, err := tx.Ledger().GetForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if !appt.Status.CanTransitionTo(StatusRescheduled) {
				return ErrAlreadyCancelled
			}
			// the appointment may have moved since the unlocked read
			if appt.Slot() == target {
				return fmt.Errorf("appointment already holds %s: %w", target, ErrSlotUnavailable)
			}

			if err := tx.Slots().Claim(ctx, target); err != nil {
				return err
			}
			if err := tx.Slots().Release(ctx, appt.Slot()); err != nil {
				return err
			}

			updated, err = tx.Ledger().MarkRescheduled(ctx, id, target.Date, target.Time)
			if err != nil {
				return err
			}

			return s.appendEvent(ctx, tx.Ledger(), EventAppointmentRescheduled, id, map[string]any{
				"from": appt.Slot().String(),
				"to":   target.String(),
			})
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("appointment rescheduled", "appointment_id", id, "slot", target.String())

	provider, perr := s.directory.Provider(ctx, updated.ProviderID)
	apptType, terr := s.directory.AppointmentType(ctx, updated.AppointmentTypeID)
	if perr != nil || terr != nil {
		s.logger.Warn("skipping reschedule notification", "appointment_id", id, "error", errors.Join(perr, terr))
		return updated, nil
	}
	s.notify(ctx, EventAppointmentRescheduled, updated, provider, apptType)

	return updated, nil
}

// withSlotLock runs fn under the distributed lock of key. A held lock means
// another request is mid-claim and may still roll back, so it is reported as
// ErrTransientStore for the caller to retry. When the lock backend itself
// fails, fn still runs and the store's conditional claim decides.
func (s *Service) withSlotLock(ctx context.Context, key SlotKey, fn func(ctx context.Context) error) error {
	ran := false
	err := s.locker.WithSlotLock(ctx, key.String(), func(lockCtx context.Context) error {
		ran = true
		return fn(lockCtx)
	})

	switch {
	case err == nil || ran:
		return err
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		return fmt.Errorf("slot %s is being booked: %w", key, ErrTransientStore)
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		s.logger.Warn("slot lock unavailable, relying on database claim", "slot", key.String(), "error", err)
		return fn(ctx)
	}
}

func (s *Service) appendEvent(ctx context.Context, ledger AppointmentLedger, eventType string, appointmentID int64, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	apptID := appointmentID
	return ledger.AppendEvent(ctx, EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	})
}

// notify sends on a context detached from the request so a client
// disconnect does not cut delivery short. Failures are logged only.
func (s *Service) notify(ctx context.Context, event string, appt *Appointment, provider *Provider, apptType *AppointmentType) int {
	if s.notifier == nil {
		return 0
	}

	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.NotifyTimeout)
	defer cancel()

	sent, err := s.notifier.Notify(nctx, Notification{
		Event:           event,
		Appointment:     *appt,
		Provider:        *provider,
		AppointmentType: *apptType,
	})
	if err != nil {
		s.logger.Warn("notification failed",
			"event", event,
			"appointment_id", appt.ID,
			"sent", sent,
			"error", err,
		)
	}
	return sent
}

func (s *Service) finish(span trace.Span, op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(KindOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	span.End()
	s.metrics.ObserveOperation(op, outcome, time.Since(start))
}

// Read side

// Get returns the appointment with its provider and type.
func (s *Service) Get(ctx context.Context, id int64) (*AppointmentDetail, error) {
	appt, err := s.store.Ledger().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	details, err := s.describe(ctx, []Appointment{*appt})
	if err != nil {
		return nil, err
	}
	return &details[0], nil
}

// Find looks appointments up by confirmation number, or by patient email
// when no number is given. Results are newest slot first.
func (s *Service) Find(ctx context.Context, email, code string) ([]AppointmentDetail, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	code = strings.ToUpper(strings.TrimSpace(code))

	var (
		appts []Appointment
		err   error
	)
	switch {
	case code != "":
		appts, err = s.store.Ledger().ListByConfirmationNumber(ctx, code)
	case email != "":
		appts, err = s.store.Ledger().ListByPatientEmail(ctx, email)
	default:
		verr := &ValidationError{}
		verr.Add("email", "Email or confirmation number is required")
		return nil, verr
	}
	if err != nil {
		return nil, fmt.Errorf("find appointments: %w", err)
	}
	return s.describe(ctx, appts)
}

// describe joins appointments with the directory, fetching each provider
// and type once.
func (s *Service) describe(ctx context.Context, appts []Appointment) ([]AppointmentDetail, error) {
	providers := make(map[int64]*Provider)
	types := make(map[int64]*AppointmentType)

	out := make([]AppointmentDetail, 0, len(appts))
	for _, a := range appts {
		p, ok := providers[a.ProviderID]
		if !ok {
			var err error
			if p, err = s.directory.Provider(ctx, a.ProviderID); err != nil {
				return nil, fmt.Errorf("load provider %d: %w", a.ProviderID, err)
			}
			providers[a.ProviderID] = p
		}
		t, ok := types[a.AppointmentTypeID]
		if !ok {
			var err error
			if t, err = s.directory.AppointmentType(ctx, a.AppointmentTypeID); err != nil {
				return nil, fmt.Errorf("load appointment type %d: %w", a.AppointmentTypeID, err)
			}
			types[a.AppointmentTypeID] = t
		}
		out = append(out, AppointmentDetail{Appointment: a, Provider: p, AppointmentType: t})
	}
	return out, nil
}

// AvailableSlots groups a provider's open cells by date. Without a date or
// month filter only today and later are listed.
func (s *Service) AvailableSlots(ctx context.Context, providerID int64, filter SlotFilter) (*Availability, error) {
	var verr ValidationError
	if filter.Date != "" {
		if d, ok := NormalizeDate(filter.Date); ok {
			filter.Date = d
		} else {
			verr.Add("date", "Valid date is required (YYYY-MM-DD)")
		}
	}
	if filter.Month != "" && !ValidMonth(filter.Month) {
		verr.Add("month", "Valid month is required (YYYY-MM)")
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}
	if filter.Date == "" && filter.Month == "" && filter.From == "" {
		filter.From = s.today()
	}

	if _, err := s.directory.Provider(ctx, providerID); err != nil {
		return nil, err
	}

	av := &Availability{ProviderID: providerID}
	for slot, err := range s.store.Slots().ListAvailable(ctx, providerID, filter) {
		if err != nil {
			return nil, err
		}
		if n := len(av.Days); n == 0 || av.Days[n-1].Date != slot.Date {
			av.Days = append(av.Days, DaySlots{Date: slot.Date})
		}
		last := &av.Days[len(av.Days)-1]
		last.Times = append(last.Times, slot.Time)
		av.Total++
	}
	return av, nil
}
