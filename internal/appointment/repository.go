package appointment

import (
	"context"
	"iter"
)

// SlotStore owns the bookable cells and their availability flag.
type SlotStore interface {
	// Claim flips an available cell to unavailable. Missing or taken cells
	// yield ErrSlotUnavailable.
	Claim(ctx context.Context, key SlotKey) error
	// Release marks a cell available again. Releasing a free or unknown cell is a no-op.
	Release(ctx context.Context, key SlotKey) error
	ListAvailable(ctx context.Context, providerID int64, filter SlotFilter) iter.Seq2[Slot, error]
	// EnsureSlots inserts missing cells as available and returns how many were new.
	EnsureSlots(ctx context.Context, slots []SlotKey) (int, error)
}

// AppointmentLedger owns appointment records and their audit events.
type AppointmentLedger interface {
	Insert(ctx context.Context, na NewAppointment) (*Appointment, error)
	Get(ctx context.Context, id int64) (*Appointment, error)
	GetByConfirmation(ctx context.Context, code string) (*Appointment, error)
	// GetForUpdate serializes writers of one appointment until the transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*Appointment, error)
	ListByPatientEmail(ctx context.Context, email string) ([]Appointment, error)
	ListByConfirmationNumber(ctx context.Context, code string) ([]Appointment, error)
	MarkCancelled(ctx context.Context, id int64, reason *string) (*Appointment, error)
	MarkRescheduled(ctx context.Context, id int64, date, tm string) (*Appointment, error)
	AppendEvent(ctx context.Context, ev EventLog) error
}

// Tx binds a SlotStore and a ledger to one transaction.
type Tx interface {
	Slots() SlotStore
	Ledger() AppointmentLedger
}

// Store runs InTx atomically. Its own Slots and Ledger run each call in
// an implicit transaction of its own.
type Store interface {
	Tx
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Directory resolves the reference data a booking points at.
type Directory interface {
	Provider(ctx context.Context, id int64) (*Provider, error)
	AppointmentType(ctx context.Context, id int64) (*AppointmentType, error)
}

type Notification struct {
	Event           string
	Appointment     Appointment
	Provider        Provider
	AppointmentType AppointmentType
}

// Notifier delivers booking messages after commit. It returns how many
// messages went out.
type Notifier interface {
	Notify(ctx context.Context, n Notification) (int, error)
}
