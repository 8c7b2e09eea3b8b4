package appointment

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/carebook-scheduling/internal/db"
)

const ensureSlotsBatch = 5000

type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgBeginner interface {
	pgQuerier
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// PgStore is the PostgreSQL Store. Claims are conditional row updates, so
// concurrent claimants of one cell serialize on its row lock and only the
// first sees is_available = true.
type PgStore struct {
	db          pgBeginner
	lockTimeout time.Duration
}

func NewPgStore(pool *pgxpool.Pool, lockTimeout time.Duration) *PgStore {
	return newPgStoreWithConn(pool, lockTimeout)
}

func newPgStoreWithConn(conn pgBeginner, lockTimeout time.Duration) *PgStore {
	return &PgStore{db: conn, lockTimeout: lockTimeout}
}

func (s *PgStore) Slots() SlotStore           { return &pgSlots{q: s.db} }
func (s *PgStore) Ledger() AppointmentLedger { return &pgLedger{q: s.db} }

type pgTx struct {
	tx pgx.Tx
}

func (t pgTx) Slots() SlotStore           { return &pgSlots{q: t.tx} }
func (t pgTx) Ledger() AppointmentLedger { return &pgLedger{q: t.tx} }

// InTx runs fn in a read committed transaction with lock_timeout applied.
// Any error from fn rolls back every write made through tx.
func (s *PgStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return storeErr("begin tx", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	if s.lockTimeout > 0 {
		if _, err := tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, lockTimeoutSetting(s.lockTimeout)); err != nil {
			return storeErr("set lock timeout", err)
		}
	}

	if err := fn(pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return storeErr("commit", err)
	}
	committed = true
	return nil
}

func lockTimeoutSetting(d time.Duration) string {
	return fmt.Sprintf("%dms", d.Milliseconds())
}

// storeErr wraps err and marks lock, deadlock and serialization failures
// as ErrTransientStore.
func storeErr(op string, err error) error {
	if db.IsRetryable(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrTransientStore, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Slots

type pgSlots struct {
	q pgQuerier
}

func (s *pgSlots) Claim(ctx context.Context, key SlotKey) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE time_slots
		SET is_available = FALSE,
		    updated_at = now()
		WHERE provider_id = $1
		  AND slot_date = $2::date
		  AND slot_time = $3::time
		  AND is_available
	`, key.ProviderID, key.Date, key.Time)
	if err != nil {
		return storeErr("claim slot", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotUnavailable
	}
	return nil
}

func (s *pgSlots) Release(ctx context.Context, key SlotKey) error {
	_, err := s.q.Exec(ctx, `
		UPDATE time_slots
		SET is_available = TRUE,
		    updated_at = now()
		WHERE provider_id = $1
		  AND slot_date = $2::date
		  AND slot_time = $3::time
	`, key.ProviderID, key.Date, key.Time)
	if err != nil {
		return storeErr("release slot", err)
	}
	return nil
}

func slotQuery(providerID int64, f SlotFilter) (string, []any) {
	query := `
		SELECT to_char(slot_date, 'YYYY-MM-DD'), to_char(slot_time, 'HH24:MI')
		FROM time_slots
		WHERE provider_id = $1
		  AND is_available`
	args := []any{providerID}

	switch {
	case f.Date != "":
		query += ` AND slot_date = $2::date`
		args = append(args, f.Date)
	case f.Month != "":
		query += ` AND to_char(slot_date, 'YYYY-MM') = $2`
		args = append(args, f.Month)
	case f.From != "":
		query += ` AND slot_date >= $2::date`
		args = append(args, f.From)
	}

	return query + ` ORDER BY slot_date, slot_time`, args
}

func (s *pgSlots) ListAvailable(ctx context.Context, providerID int64, filter SlotFilter) iter.Seq2[Slot, error] {
	return func(yield func(Slot, error) bool) {
		query, args := slotQuery(providerID, filter)
		rows, err := s.q.Query(ctx, query, args...)
		if err != nil {
			yield(Slot{}, storeErr("list available slots", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var slot Slot
			if err := rows.Scan(&slot.Date, &slot.Time); err != nil {
				yield(Slot{}, fmt.Errorf("scan slot: %w", err))
				return
			}
			if !yield(slot, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(Slot{}, storeErr("list available slots", err))
		}
	}
}

func (s *pgSlots) EnsureSlots(ctx context.Context, slots []SlotKey) (int, error) {
	inserted := 0
	for start := 0; start < len(slots); start += ensureSlotsBatch {
		end := min(start+ensureSlotsBatch, len(slots))
		batch := slots[start:end]

		providers := make([]int64, len(batch))
		dates := make([]string, len(batch))
		times := make([]string, len(batch))
		for i, k := range batch {
			providers[i], dates[i], times[i] = k.ProviderID, k.Date, k.Time
		}

		tag, err := s.q.Exec(ctx, `
			INSERT INTO time_slots (provider_id, slot_date, slot_time, is_available)
			SELECT p, d::date, t::time, TRUE
			FROM unnest($1::bigint[], $2::text[], $3::text[]) AS s(p, d, t)
			ON CONFLICT (provider_id, slot_date, slot_time) DO NOTHING
		`, providers, dates, times)
		if err != nil {
			return inserted, storeErr("ensure slots", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// Ledger

type pgLedger struct {
	q pgQuerier
}

const appointmentColumns = `id, confirmation_number, provider_id, appointment_type_id,
	patient_first_name, patient_last_name, patient_email, patient_phone, to_char(patient_dob, 'YYYY-MM-DD'),
	to_char(appointment_date, 'YYYY-MM-DD'), to_char(appointment_time, 'HH24:MI'),
	interpreter_needed, interpreter_language, reason_for_visit, notification_preference, status,
	cancel_reason, cancelled_at, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var pref, status string

	err := row.Scan(
		&a.ID,
		&a.ConfirmationNumber,
		&a.ProviderID,
		&a.AppointmentTypeID,
		&a.Patient.FirstName,
		&a.Patient.LastName,
		&a.Patient.Email,
		&a.Patient.Phone,
		&a.Patient.DOB,
		&a.Date,
		&a.Time,
		&a.Interpreter.Needed,
		&a.Interpreter.Language,
		&a.ReasonForVisit,
		&pref,
		&status,
		&a.CancelReason,
		&a.CancelledAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.NotificationPreference = NotificationPreference(pref)
	a.Status = Status(status)
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (l *pgLedger) Insert(ctx context.Context, na NewAppointment) (*Appointment, error) {
	row := l.q.QueryRow(ctx, `
		INSERT INTO appointments (
			confirmation_number, provider_id, appointment_type_id,
			patient_first_name, patient_last_name, patient_email, patient_phone, patient_dob,
			appointment_date, appointment_time,
			interpreter_needed, interpreter_language, reason_for_visit, notification_preference, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::date, $9::date, $10::time, $11, $12, $13, $14, 'confirmed')
		ON CONFLICT (confirmation_number) DO NOTHING
		RETURNING `+appointmentColumns,
		na.ConfirmationNumber, na.ProviderID, na.AppointmentTypeID,
		na.Patient.FirstName, na.Patient.LastName, na.Patient.Email, na.Patient.Phone, na.Patient.DOB,
		na.Date, na.Time,
		na.Interpreter.Needed, na.Interpreter.Language, na.ReasonForVisit, string(na.NotificationPreference),
	)

	a, err := scanAppointment(row)
	switch {
	case err == nil:
		return a, nil
	case errors.Is(err, ErrAppointmentNotFound):
		// ON CONFLICT swallowed the row
		return nil, ErrDuplicateConfirmationCode
	case db.IsUniqueViolation(err, "appointments_active_slot_idx"):
		return nil, fmt.Errorf("insert appointment: %w", ErrSlotUnavailable)
	default:
		return nil, storeErr("insert appointment", err)
	}
}

func (l *pgLedger) getOne(ctx context.Context, op, where string, arg any) (*Appointment, error) {
	row := l.q.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE `+where, arg)
	a, err := scanAppointment(row)
	if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
		return nil, storeErr(op, err)
	}
	return a, err
}

func (l *pgLedger) Get(ctx context.Context, id int64) (*Appointment, error) {
	return l.getOne(ctx, "get appointment", `id = $1`, id)
}

func (l *pgLedger) GetByConfirmation(ctx context.Context, code string) (*Appointment, error) {
	return l.getOne(ctx, "get appointment by confirmation", `confirmation_number = $1`, code)
}

func (l *pgLedger) GetForUpdate(ctx context.Context, id int64) (*Appointment, error) {
	return l.getOne(ctx, "lock appointment", `id = $1 FOR UPDATE`, id)
}

func (l *pgLedger) ListByPatientEmail(ctx context.Context, email string) ([]Appointment, error) {
	rows, err := l.q.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_email = lower($1)
		ORDER BY appointment_date DESC, appointment_time DESC
	`, email)
	if err != nil {
		return nil, storeErr("list appointments by email", err)
	}
	return collectAppointments(rows)
}

func (l *pgLedger) ListByConfirmationNumber(ctx context.Context, code string) ([]Appointment, error) {
	rows, err := l.q.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE confirmation_number = $1
		ORDER BY appointment_date DESC, appointment_time DESC
	`, code)
	if err != nil {
		return nil, storeErr("list appointments by confirmation", err)
	}
	return collectAppointments(rows)
}

func (l *pgLedger) MarkCancelled(ctx context.Context, id int64, reason *string) (*Appointment, error) {
	row := l.q.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
		    cancel_reason = $2,
		    cancelled_at = now(),
		    updated_at = now()
		WHERE id = $1
		  AND status <> 'cancelled'
		RETURNING `+appointmentColumns, id, reason)
	return l.afterTransition(ctx, "cancel appointment", id, row)
}

func (l *pgLedger) MarkRescheduled(ctx context.Context, id int64, date, tm string) (*Appointment, error) {
	row := l.q.QueryRow(ctx, `
		UPDATE appointments
		SET appointment_date = $2::date,
		    appointment_time = $3::time,
		    status = 'rescheduled',
		    updated_at = now()
		WHERE id = $1
		  AND status <> 'cancelled'
		RETURNING `+appointmentColumns, id, date, tm)
	return l.afterTransition(ctx, "reschedule appointment", id, row)
}

// afterTransition tells a missing appointment from a cancelled one when the
// conditional update matched nothing.
func (l *pgLedger) afterTransition(ctx context.Context, op string, id int64, row pgx.Row) (*Appointment, error) {
	a, err := scanAppointment(row)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, ErrAppointmentNotFound) {
		if db.IsUniqueViolation(err, "appointments_active_slot_idx") {
			return nil, fmt.Errorf("%s: %w", op, ErrSlotUnavailable)
		}
		return nil, storeErr(op, err)
	}

	var status string
	err = l.q.QueryRow(ctx, `SELECT status FROM appointments WHERE id = $1`, id).Scan(&status)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, ErrAppointmentNotFound
	case err != nil:
		return nil, storeErr(op, err)
	default:
		return nil, ErrAlreadyCancelled
	}
}

func (l *pgLedger) AppendEvent(ctx context.Context, ev EventLog) error {
	_, err := l.q.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return storeErr("insert event log", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
