package appointment

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisclient "github.com/hackgods/carebook-scheduling/internal/redis"
	"github.com/hackgods/carebook-scheduling/pkg/logging"
)

func TestBookClaimsSlotAndRecordsAppointment(t *testing.T) {
	store := newSeededStore(t)
	notifier := &recordingNotifier{}
	svc := newTestService(store, WithNotifier(notifier))

	req := bookRequest(slotA)
	req.NotificationPreference = NotifyBoth
	req.Time = "9:00"

	res, err := svc.Book(context.Background(), req)
	require.NoError(t, err)

	appt := res.Appointment
	assert.Equal(t, StatusConfirmed, appt.Status)
	assert.Equal(t, "09:00", appt.Time)
	assert.Equal(t, "jane.doe@example.com", appt.Patient.Email)
	assert.True(t, ValidConfirmationNumber(appt.ConfirmationNumber), appt.ConfirmationNumber)
	assert.Equal(t, "Dr. Sarah Johnson, MD", res.Provider.DisplayName())
	assert.Equal(t, "Annual Physical", res.AppointmentType.Name)
	assert.Equal(t, 2, res.NotificationsSent)
	requireAvailable(t, store, slotA, false)

	events := store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, EventAppointmentBooked, events[0].EventType)
	require.NotNil(t, events[0].AppointmentID)
	assert.Equal(t, appt.ID, *events[0].AppointmentID)

	calls := notifier.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, EventAppointmentBooked, calls[0].Event)
}

func TestBookSanitizesFreeText(t *testing.T) {
	store := newSeededStore(t)
	svc := newTestService(store)

	req := bookRequest(slotA)
	req.Patient.LastName = "O'Brien"
	reason := "  <script>alert(1)</script> cough "
	req.ReasonForVisit = &reason

	res, err := svc.Book(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "O&#39;Brien", res.Appointment.Patient.LastName)
	require.NotNil(t, res.Appointment.ReasonForVisit)
	assert.Equal(t, "&lt;script&gt;alert(1)&lt;/script&gt; cough", *res.Appointment.ReasonForVisit)
}

func TestBookRejectsTakenSlot(t *testing.T) {
	store := newSeededStore(t)
	svc := newTestService(store)

	_, err := svc.Book(context.Background(), bookRequest(slotA))
	require.NoError(t, err)

	_, err = svc.Book(context.Background(), bookRequest(slotA))
	require.ErrorIs(t, err, ErrSlotUnavailable)
	assert.Equal(t, KindSlotUnavailable, KindOf(err))
}

func TestBookUnknownSlotIsUnavailable(t *testing.T) {
	store := newSeededStore(t)
	svc := newTestService(store)

	req := bookRequest(SlotKey{ProviderID: 1, Date: "2025-03-12", Time: "12:15"})
	_, err := svc.Book(context.Background(), req)
	require.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestBookUnknownReferences(t *testing.T) {
	store := newSeededStore(t)
	svc := newTestService(store)

	req := bookRequest(slotA)
	req.ProviderID = 99
	_, err := svc.Book(context.Background(), req)
	require.ErrorIs(t, err, ErrProviderNotFound)
	assert.Equal(t, KindNotFound, KindOf(err))

	req = bookRequest(slotA)
	req.AppointmentTypeID = 99
	_, err = svc.Book(context.Background(), req)
	require.ErrorIs(t, err, ErrAppointmentTypeNotFound)

	requireAvailable(t, store, slotA, true)
}

func TestBookConcurrentSingleWinner(t *testing.T) {
	store := newSeededStore(t)
	svc := newTestService(store)

	const workers = 50
	var wins, conflicts atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.Book(context.Background(), bookRequest(slotA))
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrSlotUnavailable):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(workers-1), conflicts.Load())

	appts, err := store.Ledger().ListByPatientEmail(context.Background(), "jane.doe@example.com")
	require.NoError(t, err)
	assert.Len(t, appts, 1)
}

func TestBookConcurrentWithRedisLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := newSeededStore(t)
	svc := NewService(store, newFakeDirectory(), redisclient.NewRedisSlotLocker(client, 2*time.Second), testConfig(),
		WithClock(func() time.Time { return fixedNow }),
		WithLogger(logging.Discard()),
	)

	const workers = 20
	var wins atomic.Int32
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Book(context.Background(), bookRequest(slotB))
			if err == nil {
				wins.Add(1)
				return
			}
			// Losers either saw the lock held or found the cell already claimed.
			assert.True(t, errors.Is(err, ErrTransientStore) || errors.Is(err, ErrSlotUnavailable), "unexpected error: %v", err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	requireAvailable(t, store, slotB, false)
	assert.False(t, mr.Exists(redisclient.SlotLockKey(slotB.String())))
}

func TestBookLockHeldElsewhereIsRetryable(t *testing.T) {
	store := newSeededStore(t)
	svc := NewService(store, newFakeDirectory(), heldLocker{}, testConfig(),
		WithClock(func() time.Time { return fixedNow }),
		WithLogger(logging.Discard()),
	)

	_, err := svc.Book(context.Background(), bookRequest(slotA))
	require.ErrorIs(t, err, ErrTransientStore)
	assert.Equal(t, KindTransientStore, KindOf(err))
	requireAvailable(t, store, slotA, true)
}

func TestBookFallsBackWhenLockBackendFails(t *testing.T) {
	store := newSeededStore(t)
	svc := NewService(store, newFakeDirectory(), failingLocker{err: errors.New("acquire slot lock: connection refused")}, testConfig(),
		WithClock(func() time.Time { return fixedNow }),
		WithLogger(logging.Discard()),
	)

	res, err := svc.Book(context.Background(), bookRequest(slotA))
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, res.Appointment.Status)
	requireAvailable(t, store, slotA, false)
}

func TestBookRollsBackClaimWhenLedgerFails(t *testing.T) {
	tests := []struct {
		name  string
		store func(*MemoryStore) *faultyStore
	}{
		{"insert fails", func(m *MemoryStore) *faultyStore { return &faultyStore{Store: m, failInsert: errInjected} }},
		{"event fails", func(m *MemoryStore) *faultyStore { return &faultyStore{Store: m, failEvent: errInjected} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := newSeededStore(t)
			svc := newTestService(tt.store(mem))

			_, err := svc.Book(context.Background(), bookRequest(slotA))
			require.ErrorIs(t, err, errInjected)
			assert.Equal(t, KindFatal, KindOf(err))

			requireAvailable(t, mem, slotA, true)
			appts, err := mem.Ledger().ListByPatientEmail(context.Background(), "jane.doe@example.com")
			require.NoError(t, err)
			assert.Empty(t, appts)
			assert.Empty(t, mem.Events())
		})
	}
}

func TestBookRetriesDuplicateConfirmationNumber(t *testing.T) {
	store := newSeededStore(t)
	codes := &sequenceCodes{codes: []string{"CB-AAAAAAAA", "CB-AAAAAAAA", "CB-BBBBBBBB"}}
	svc := newTestService(store, WithCodeGenerator(codes))

	first, err := svc.Book(context.Background(), bookRequest(slotA))
	require.NoError(t, err)
	assert.Equal(t, "CB-AAAAAAAA", first.Appointment.ConfirmationNumber)

	second, err := svc.Book(context.Background(), bookRequest(slotB))
	require.NoError(t, err)
	assert.Equal(t, "CB-BBBBBBBB", second.Appointment.ConfirmationNumber)
}

func TestBookGivesUpAfterConfirmationAttempts(t *testing.T) {
	store := newSeededStore(t)
	codes := &sequenceCodes{codes: []string{"CB-AAAAAAAA"}}
	svc := newTestService(store, WithCodeGenerator(codes))

	_, err := svc.Book(context.Background(), bookRequest(slotA))
	require.NoError(t, err)

	_, err = svc.Book(context.Background(), bookRequest(slotB))
	require.ErrorIs(t, err, ErrConfirmationCodeExhausted)
	assert.Equal(t, KindFatal, KindOf(err))
	requireAvailable(t, store, slotB, true)
}

func TestBookNotificationFailureDoesNotFailBooking(t *testing.T) {
	store := newSeededStore(t)
	svc := newTestService(store, WithNotifier(&recordingNotifier{err: errors.New("smtp down")}))

	res, err := svc.Book(context.Background(), bookRequest(slotA))
	require.NoError(t, err)
	assert.Equal(t, 0, res.NotificationsSent)
	requireAvailable(t, store, slotA, false)
}

func TestCancelReleasesSlot(t *testing.T) {
	store := newSeededStore(t)
	svc := newTestService(store)
	ctx := context.Background()

	res, err := svc.Book(ctx, bookRequest(slotA))
	require.NoError(t, err)

	reason := "feeling better"
	cancelled, err := svc.Cancel(ctx, res.Appointment.ID, &reason)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelReason)
	assert.Equal(t, "feeling better", *cancelled.CancelReason)
	require.NotNil(t, cancelled.CancelledAt)
	requireAvailable(t, store, slotA, true)

	rebooked, err := svc.Book(ctx, bookRequest(slotA))
	require.NoError(t, err)
	assert.NotEqual(t, res.Appointment.ID, rebooked.Appointment.ID)
}

func TestCancelIsTerminal(t *testing.T) {
	store := newSeededStore(t)
	svc := newTestService(store)
	ctx := context.Background()

	res, err := svc.Book(ctx, bookRequest(slotA))
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, res.Appointment.ID, nil)
	require.NoError(t, err)

	// someone else takes the freed cell
	_, err = svc.Book(ctx, bookRequest(slotA))
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, res.Appointment.ID, nil)
	require.ErrorIs(t, err, ErrAlreadyCancelled)
	_, err = svc.Reschedule(ctx, res.Appointment.ID, slotC.Date, slotC.Time)
	require.ErrorIs(t, err, ErrAlreadyCancelled)

	// the second cancel must not have freed the new booking's cell
	requireAvailable(t, store, slotA, false)
	requireAvailable(t, store, slotC, true)
}

func TestCancelUnknownAppointment(t *testing.T) {
	svc := newTestService(newSeededStore(t))

	_, err := svc.Cancel(context.Background(), 404, nil)
	require.ErrorIs(t, err, ErrAppointmentNotFound)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestCancelRollsBackOnFailure(t *testing.T) {
	mem := newSeededStore(t)
	ctx := context.Background()
	res, err := newTestService(mem).Book(ctx, bookRequest(slotA))
	require.NoError(t, err)

	svc := newTestService(&faultyStore{Store: mem, failEvent: errInjected})
	_, err = svc.Cancel(ctx, res.Appointment.ID, nil)
	require.ErrorIs(t, err, errInjected)

	appt, err := mem.Ledger().Get(ctx, res.Appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, appt.Status)
	assert.Nil(t, appt.CancelledAt)
	requireAvailable(t, mem, slotA, false)
}

func TestRescheduleMovesBooking(t *testing.T) {
	store := newSeededStore(t)
	notifier := &recordingNotifier{}
	svc := newTestService(store, WithNotifier(notifier))
	ctx := context.Background()

	res, err := svc.Book(ctx, bookRequest(slotA))
	require.NoError(t, err)

	moved, err := svc.Reschedule(ctx, res.Appointment.ID, slotC.Date, slotC.Time)
	require.NoError(t, err)
	assert.Equal(t, StatusRescheduled, moved.Status)
	assert.Equal(t, slotC, moved.Slot())
	assert.Equal(t, res.Appointment.ConfirmationNumber, moved.ConfirmationNumber)

	requireAvailable(t, store, slotA, true)
	requireAvailable(t, store, slotC, false)

	// rescheduled appointments can move again
	again, err := svc.Reschedule(ctx, res.Appointment.ID, slotB.Date, slotB.Time)
	require.NoError(t, err)
	assert.Equal(t, slotB, again.Slot())
	requireAvailable(t, store, slotC, true)

	calls := notifier.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, EventAppointmentRescheduled, calls[2].Event)

	events := store.Events()
	require.Len(t, events, 3)
	assert.Equal(t, EventAppointmentRescheduled, events[1].EventType)
}

func TestRescheduleOntoTakenSlotLeavesEverythingUnchanged(t *testing.T) {
	store := newSeededStore(t)
	svc := newTestService(store)
	ctx := context.Background()

	first, err := svc.Book(ctx, bookRequest(slotA))
	require.NoError(t, err)
	_, err = svc.Book(ctx, bookRequest(slotB))
	require.NoError(t, err)

	_, err = svc.Reschedule(ctx, first.Appointment.ID, slotB.Date, slotB.Time)
	require.ErrorIs(t, err, ErrSlotUnavailable)

	appt, err := store.Ledger().Get(ctx, first.Appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, slotA, appt.Slot())
	assert.Equal(t, StatusConfirmed, appt.Status)
	requireAvailable(t, store, slotA, false)
	requireAvailable(t, store, slotB, false)
}

func TestRescheduleOntoOwnSlotIsUnavailable(t *testing.T) {
	store := newSeededStore(t)
	svc := newTestService(store)
	ctx := context.Background()

	res, err := svc.Book(ctx, bookRequest(slotA))
	require.NoError(t, err)

	_, err = svc.Reschedule(ctx, res.Appointment.ID, slotA.Date, slotA.Time)
	require.ErrorIs(t, err, ErrSlotUnavailable)
	requireAvailable(t, store, slotA, false)
}

func TestRescheduleRollsBackWhenUpdateFails(t *testing.T) {
	mem := newSeededStore(t)
	ctx := context.Background()
	res, err := newTestService(mem).Book(ctx, bookRequest(slotA))
	require.NoError(t, err)

	svc := newTestService(&faultyStore{Store: mem, failMark: errInjected})
	_, err = svc.Reschedule(ctx, res.Appointment.ID, slotC.Date, slotC.Time)
	require.ErrorIs(t, err, errInjected)

	requireAvailable(t, mem, slotA, false)
	requireAvailable(t, mem, slotC, true)
	appt, err := mem.Ledger().Get(ctx, res.Appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, slotA, appt.Slot())
}

func TestRescheduleRejectsPastDate(t *testing.T) {
	store := newSeededStore(t)
	svc := newTestService(store)
	ctx := context.Background()

	res, err := svc.Book(ctx, bookRequest(slotA))
	require.NoError(t, err)

	_, err = svc.Reschedule(ctx, res.Appointment.ID, "2025-03-01", "10:00")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "appointment_date", verr.Fields[0].Field)
}

func TestGetAndFind(t *testing.T) {
	store := newSeededStore(t)
	svc := newTestService(store)
	ctx := context.Background()

	early, err := svc.Book(ctx, bookRequest(slotA))
	require.NoError(t, err)
	late, err := svc.Book(ctx, bookRequest(slotC))
	require.NoError(t, err)

	detail, err := svc.Get(ctx, early.Appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sarah", detail.Provider.FirstName)
	assert.Equal(t, "Annual Physical", detail.AppointmentType.Name)

	byEmail, err := svc.Find(ctx, " JANE.DOE@example.com ", "")
	require.NoError(t, err)
	require.Len(t, byEmail, 2)
	assert.Equal(t, late.Appointment.ID, byEmail[0].ID)
	assert.Equal(t, early.Appointment.ID, byEmail[1].ID)

	byCode, err := svc.Find(ctx, "nobody@example.com", early.Appointment.ConfirmationNumber)
	require.NoError(t, err)
	require.Len(t, byCode, 1)
	assert.Equal(t, early.Appointment.ID, byCode[0].ID)

	_, err = svc.Find(ctx, "", "")
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Get(ctx, 999)
	require.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestAvailableSlotsGroupsByDate(t *testing.T) {
	past := SlotKey{ProviderID: 1, Date: "2025-02-27", Time: "09:00"}
	store := newSeededStore(t, slotA, slotB, slotC, slotD, past)
	svc := newTestService(store)
	ctx := context.Background()

	_, err := svc.Book(ctx, bookRequest(slotB))
	require.NoError(t, err)

	av, err := svc.AvailableSlots(ctx, 1, SlotFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, av.Total)
	assert.Equal(t, []DaySlots{
		{Date: "2025-03-10", Times: []string{"09:00"}},
		{Date: "2025-03-11", Times: []string{"13:00"}},
	}, av.Days)

	byDate, err := svc.AvailableSlots(ctx, 1, SlotFilter{Date: "2025-03-11"})
	require.NoError(t, err)
	assert.Equal(t, 1, byDate.Total)

	byMonth, err := svc.AvailableSlots(ctx, 1, SlotFilter{Month: "2025-02"})
	require.NoError(t, err)
	assert.Equal(t, 1, byMonth.Total)
	assert.Equal(t, "2025-02-27", byMonth.Days[0].Date)

	_, err = svc.AvailableSlots(ctx, 1, SlotFilter{Month: "2025-13"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.AvailableSlots(ctx, 42, SlotFilter{})
	require.ErrorIs(t, err, ErrProviderNotFound)
}
