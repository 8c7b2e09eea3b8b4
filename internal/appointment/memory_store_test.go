package appointment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectSlots(t *testing.T, store SlotStore, providerID int64, f SlotFilter) []Slot {
	t.Helper()
	var out []Slot
	for slot, err := range store.ListAvailable(context.Background(), providerID, f) {
		require.NoError(t, err)
		out = append(out, slot)
	}
	return out
}

func TestMemoryClaimReleaseSymmetry(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()
	slots := store.Slots()

	require.NoError(t, slots.Claim(ctx, slotA))
	requireAvailable(t, store, slotA, false)
	require.ErrorIs(t, slots.Claim(ctx, slotA), ErrSlotUnavailable)

	require.NoError(t, slots.Release(ctx, slotA))
	requireAvailable(t, store, slotA, true)

	// releasing twice, or releasing an unseeded cell, is a no-op
	require.NoError(t, slots.Release(ctx, slotA))
	requireAvailable(t, store, slotA, true)
	missing := SlotKey{ProviderID: 9, Date: "2025-03-10", Time: "08:00"}
	require.NoError(t, slots.Release(ctx, missing))
	_, exists := store.SlotAvailable(missing)
	assert.False(t, exists)

	require.ErrorIs(t, slots.Claim(ctx, missing), ErrSlotUnavailable)
}

func TestMemoryEnsureSlotsKeepsExistingState(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()

	require.NoError(t, store.Slots().Claim(ctx, slotA))

	extra := SlotKey{ProviderID: 1, Date: "2025-03-12", Time: "08:00"}
	n, err := store.Slots().EnsureSlots(ctx, []SlotKey{slotA, extra})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	requireAvailable(t, store, slotA, false)
	requireAvailable(t, store, extra, true)
}

func TestMemoryListAvailableOrderAndFilters(t *testing.T) {
	store := newSeededStore(t, slotC, slotB, slotA, slotD,
		SlotKey{ProviderID: 1, Date: "2025-04-01", Time: "08:00"})
	ctx := context.Background()
	require.NoError(t, store.Slots().Claim(ctx, slotB))

	all := collectSlots(t, store.Slots(), 1, SlotFilter{})
	assert.Equal(t, []Slot{
		{Date: "2025-03-10", Time: "09:00"},
		{Date: "2025-03-11", Time: "13:00"},
		{Date: "2025-04-01", Time: "08:00"},
	}, all)

	assert.Len(t, collectSlots(t, store.Slots(), 1, SlotFilter{Month: "2025-03"}), 2)
	assert.Len(t, collectSlots(t, store.Slots(), 1, SlotFilter{Date: "2025-03-10"}), 1)
	assert.Len(t, collectSlots(t, store.Slots(), 1, SlotFilter{From: "2025-03-11"}), 2)
	assert.Len(t, collectSlots(t, store.Slots(), 2, SlotFilter{}), 1)

	// early break stops the sequence
	count := 0
	for range store.Slots().ListAvailable(ctx, 1, SlotFilter{}) {
		count++
		break
	}
	assert.Equal(t, 1, count)
}

func TestMemoryTransactionRollsBackEveryWrite(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()

	err := store.InTx(ctx, func(tx Tx) error {
		require.NoError(t, tx.Slots().Claim(ctx, slotA))
		_, err := tx.Ledger().Insert(ctx, NewAppointment{
			ConfirmationNumber:     "CB-ROLLBACK",
			ProviderID:             slotA.ProviderID,
			Date:                   slotA.Date,
			Time:                   slotA.Time,
			NotificationPreference: NotifyEmail,
		})
		require.NoError(t, err)
		require.NoError(t, tx.Ledger().AppendEvent(ctx, EventLog{EventType: EventAppointmentBooked}))
		return errInjected
	})
	require.ErrorIs(t, err, errInjected)

	requireAvailable(t, store, slotA, true)
	_, err = store.Ledger().GetByConfirmation(ctx, "CB-ROLLBACK")
	require.ErrorIs(t, err, ErrAppointmentNotFound)
	assert.Empty(t, store.Events())

	// ids are reused after rollback
	appt, err := store.Ledger().Insert(ctx, NewAppointment{ConfirmationNumber: "CB-COMMITTED", ProviderID: 1, Date: slotA.Date, Time: slotA.Time})
	require.NoError(t, err)
	assert.Equal(t, int64(1), appt.ID)
}

func TestMemoryTransactionRollsBackOnPanic(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = store.InTx(ctx, func(tx Tx) error {
			_ = tx.Slots().Claim(ctx, slotA)
			panic("boom")
		})
	})
	requireAvailable(t, store, slotA, true)

	// the lock was released
	require.NoError(t, store.Slots().Claim(ctx, slotA))
}

func TestMemoryLedgerUniqueness(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()
	ledger := store.Ledger()

	_, err := ledger.Insert(ctx, NewAppointment{ConfirmationNumber: "CB-11111111", ProviderID: 1, Date: slotA.Date, Time: slotA.Time})
	require.NoError(t, err)

	_, err = ledger.Insert(ctx, NewAppointment{ConfirmationNumber: "CB-11111111", ProviderID: 1, Date: slotB.Date, Time: slotB.Time})
	require.ErrorIs(t, err, ErrDuplicateConfirmationCode)

	_, err = ledger.Insert(ctx, NewAppointment{ConfirmationNumber: "CB-22222222", ProviderID: 1, Date: slotA.Date, Time: slotA.Time})
	require.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestMemoryLedgerTransitions(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()
	ledger := store.Ledger()

	appt, err := ledger.Insert(ctx, NewAppointment{ConfirmationNumber: "CB-33333333", ProviderID: 1, Date: slotA.Date, Time: slotA.Time})
	require.NoError(t, err)

	moved, err := ledger.MarkRescheduled(ctx, appt.ID, slotB.Date, slotB.Time)
	require.NoError(t, err)
	assert.Equal(t, StatusRescheduled, moved.Status)
	assert.Equal(t, slotB, moved.Slot())

	// the old cell is free for another active appointment
	_, err = ledger.Insert(ctx, NewAppointment{ConfirmationNumber: "CB-44444444", ProviderID: 1, Date: slotA.Date, Time: slotA.Time})
	require.NoError(t, err)

	cancelled, err := ledger.MarkCancelled(ctx, appt.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, fixedNow, *cancelled.CancelledAt)

	_, err = ledger.MarkCancelled(ctx, appt.ID, nil)
	require.ErrorIs(t, err, ErrAlreadyCancelled)
	_, err = ledger.MarkRescheduled(ctx, appt.ID, slotC.Date, slotC.Time)
	require.ErrorIs(t, err, ErrAlreadyCancelled)
	_, err = ledger.MarkCancelled(ctx, 999, nil)
	require.ErrorIs(t, err, ErrAppointmentNotFound)

	list, err := ledger.ListByConfirmationNumber(ctx, "CB-33333333")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, StatusCancelled, list[0].Status)
}
