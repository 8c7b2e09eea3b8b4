package appointment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hackgods/carebook-scheduling/internal/config"
	redisclient "github.com/hackgods/carebook-scheduling/internal/redis"
	"github.com/hackgods/carebook-scheduling/pkg/logging"
)

var (
	fixedNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	slotA = SlotKey{ProviderID: 1, Date: "2025-03-10", Time: "09:00"}
	slotB = SlotKey{ProviderID: 1, Date: "2025-03-10", Time: "09:30"}
	slotC = SlotKey{ProviderID: 1, Date: "2025-03-11", Time: "13:00"}
	slotD = SlotKey{ProviderID: 2, Date: "2025-03-10", Time: "09:00"}
)

type fakeDirectory struct {
	providers map[int64]Provider
	types     map[int64]AppointmentType
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		providers: map[int64]Provider{
			1: {ID: 1, FirstName: "Sarah", LastName: "Johnson", Title: "MD", Specialty: "Family Medicine", Location: "Downtown Medical Center"},
			2: {ID: 2, FirstName: "Michael", LastName: "Chen", Title: "MD", Specialty: "Cardiology", Location: "Heart & Vascular Institute"},
		},
		types: map[int64]AppointmentType{
			1: {ID: 1, Name: "Annual Physical", DurationMinutes: 60, Category: "Preventive"},
			2: {ID: 2, Name: "Sick Visit", DurationMinutes: 20, Category: "Acute"},
		},
	}
}

func (d *fakeDirectory) Provider(_ context.Context, id int64) (*Provider, error) {
	p, ok := d.providers[id]
	if !ok {
		return nil, ErrProviderNotFound
	}
	return &p, nil
}

func (d *fakeDirectory) AppointmentType(_ context.Context, id int64) (*AppointmentType, error) {
	t, ok := d.types[id]
	if !ok {
		return nil, ErrAppointmentTypeNotFound
	}
	return &t, nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []Notification
	err   error
}

func (n *recordingNotifier) Notify(_ context.Context, note Notification) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, note)
	if n.err != nil {
		return 0, n.err
	}
	sent := 0
	if note.Appointment.NotificationPreference.WantsEmail() {
		sent++
	}
	if note.Appointment.NotificationPreference.WantsSMS() {
		sent++
	}
	return sent, nil
}

func (n *recordingNotifier) Calls() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.calls...)
}

// sequenceCodes hands out codes in order and repeats the last one.
type sequenceCodes struct {
	mu    sync.Mutex
	codes []string
	next  int
}

func (g *sequenceCodes) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	code := g.codes[min(g.next, len(g.codes)-1)]
	g.next++
	return code, nil
}

type failingLocker struct{ err error }

func (l failingLocker) WithSlotLock(context.Context, string, func(context.Context) error) error {
	return l.err
}

// heldLocker reports every slot as locked by someone else.
type heldLocker struct{}

func (heldLocker) WithSlotLock(context.Context, string, func(context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

func testConfig() config.Config {
	return config.Config{
		ConfirmationPrefix:   "CB",
		ConfirmationAttempts: 3,
		EnforceFutureDates:   true,
		NotifyTimeout:        time.Second,
	}
}

func newSeededStore(t *testing.T, keys ...SlotKey) *MemoryStore {
	t.Helper()
	if len(keys) == 0 {
		keys = []SlotKey{slotA, slotB, slotC, slotD}
	}
	store := NewMemoryStore(WithMemoryClock(func() time.Time { return fixedNow }))
	n, err := store.Slots().EnsureSlots(context.Background(), keys)
	require.NoError(t, err)
	require.Equal(t, len(keys), n)
	return store
}

func newTestService(store Store, opts ...Option) *Service {
	base := []Option{
		WithClock(func() time.Time { return fixedNow }),
		WithLogger(logging.Discard()),
	}
	return NewService(store, newFakeDirectory(), redisclient.NopLocker{}, testConfig(), append(base, opts...)...)
}

func bookRequest(key SlotKey) BookRequest {
	return BookRequest{
		ProviderID:        key.ProviderID,
		AppointmentTypeID: 1,
		Patient: Patient{
			FirstName: "Jane",
			LastName:  "Doe",
			Email:     "Jane.Doe@Example.com",
			Phone:     "(555) 123-4567",
		},
		Date: key.Date,
		Time: key.Time,
	}
}

func requireAvailable(t *testing.T, store *MemoryStore, key SlotKey, want bool) {
	t.Helper()
	avail, exists := store.SlotAvailable(key)
	require.True(t, exists, "slot %s missing", key)
	require.Equal(t, want, avail, "slot %s availability", key)
}

// faultyStore wraps a Store and fails chosen ledger calls inside
// transactions, after the slot work has already happened.
type faultyStore struct {
	Store
	failInsert  error
	failMark    error
	failEvent   error
	failRelease error
}

func (f *faultyStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return f.Store.InTx(ctx, func(tx Tx) error {
		return fn(faultyTx{Tx: tx, f: f})
	})
}

type faultyTx struct {
	Tx
	f *faultyStore
}

func (t faultyTx) Ledger() AppointmentLedger { return faultyLedger{AppointmentLedger: t.Tx.Ledger(), f: t.f} }
func (t faultyTx) Slots() SlotStore           { return faultySlots{SlotStore: t.Tx.Slots(), f: t.f} }

type faultyLedger struct {
	AppointmentLedger
	f *faultyStore
}

func (l faultyLedger) Insert(ctx context.Context, na NewAppointment) (*Appointment, error) {
	if l.f.failInsert != nil {
		return nil, l.f.failInsert
	}
	return l.AppointmentLedger.Insert(ctx, na)
}

func (l faultyLedger) MarkRescheduled(ctx context.Context, id int64, date, tm string) (*Appointment, error) {
	if l.f.failMark != nil {
		return nil, l.f.failMark
	}
	return l.AppointmentLedger.MarkRescheduled(ctx, id, date, tm)
}

func (l faultyLedger) MarkCancelled(ctx context.Context, id int64, reason *string) (*Appointment, error) {
	if l.f.failMark != nil {
		return nil, l.f.failMark
	}
	return l.AppointmentLedger.MarkCancelled(ctx, id, reason)
}

func (l faultyLedger) AppendEvent(ctx context.Context, ev EventLog) error {
	if l.f.failEvent != nil {
		return l.f.failEvent
	}
	return l.AppointmentLedger.AppendEvent(ctx, ev)
}

type faultySlots struct {
	SlotStore
	f *faultyStore
}

func (s faultySlots) Release(ctx context.Context, key SlotKey) error {
	if s.f.failRelease != nil {
		return s.f.failRelease
	}
	return s.SlotStore.Release(ctx, key)
}

var errInjected = errors.New("injected failure")
