package appointment

import (
	"context"
	"iter"
	"slices"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. A transaction holds the write lock
// from start to finish and records an undo entry for every mutation, so
// readers never observe a half-applied booking.
type MemoryStore struct {
	mu sync.RWMutex

	slots        map[SlotKey]bool
	appointments map[int64]*Appointment
	byCode       map[string]int64
	activeBySlot map[SlotKey]int64
	events       []EventLog

	nextID      int64
	nextEventID int64
	now         func() time.Time
}

type MemoryOption func(*MemoryStore)

func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		slots:        make(map[SlotKey]bool),
		appointments: make(map[int64]*Appointment),
		byCode:       make(map[string]int64),
		activeBySlot: make(map[SlotKey]int64),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{s: s}
	defer func() {
		if p := recover(); p != nil {
			tx.rollback()
			panic(p)
		}
		if err != nil {
			tx.rollback()
		}
	}()

	return fn(tx)
}

func (s *MemoryStore) Slots() SlotStore           { return memAutoSlots{s: s} }
func (s *MemoryStore) Ledger() AppointmentLedger { return memAutoLedger{s: s} }

// Events returns a copy of the audit log.
func (s *MemoryStore) Events() []EventLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.events)
}

// SlotAvailable reports the flag of key and whether the cell exists.
func (s *MemoryStore) SlotAvailable(key SlotKey) (available, exists bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	available, exists = s.slots[key]
	return available, exists
}

type memTx struct {
	s    *MemoryStore
	undo []func()
}

func (t *memTx) Slots() SlotStore           { return memSlots{t: t} }
func (t *memTx) Ledger() AppointmentLedger { return memLedger{t: t} }

func (t *memTx) record(fn func()) { t.undo = append(t.undo, fn) }

func (t *memTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

// read helpers; callers hold s.mu

func (s *MemoryStore) availableLocked(providerID int64, f SlotFilter) []Slot {
	var out []Slot
	for k, ok := range s.slots {
		if !ok || k.ProviderID != providerID {
			continue
		}
		switch {
		case f.Date != "":
			if k.Date != f.Date {
				continue
			}
		case f.Month != "":
			if !strings.HasPrefix(k.Date, f.Month+"-") {
				continue
			}
		case f.From != "":
			if k.Date < f.From {
				continue
			}
		}
		out = append(out, Slot{Date: k.Date, Time: k.Time})
	}
	slices.SortFunc(out, func(a, b Slot) int {
		if c := strings.Compare(a.Date, b.Date); c != 0 {
			return c
		}
		return strings.Compare(a.Time, b.Time)
	})
	return out
}

func (s *MemoryStore) getLocked(id int64) (*Appointment, error) {
	a, ok := s.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) getByCodeLocked(code string) (*Appointment, error) {
	id, ok := s.byCode[code]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return s.getLocked(id)
}

func (s *MemoryStore) listLocked(match func(*Appointment) bool) []Appointment {
	var out []Appointment
	for _, a := range s.appointments {
		if match(a) {
			out = append(out, *a)
		}
	}
	slices.SortFunc(out, func(a, b Appointment) int {
		if c := strings.Compare(b.Date, a.Date); c != 0 {
			return c
		}
		if c := strings.Compare(b.Time, a.Time); c != 0 {
			return c
		}
		return int(b.ID - a.ID)
	})
	return out
}

func snapshotSeq(slots []Slot) iter.Seq2[Slot, error] {
	return func(yield func(Slot, error) bool) {
		for _, slot := range slots {
			if !yield(slot, nil) {
				return
			}
		}
	}
}

// memSlots and memLedger operate inside a transaction.

type memSlots struct {
	t *memTx
}

func (m memSlots) Claim(_ context.Context, key SlotKey) error {
	s := m.t.s
	if avail, ok := s.slots[key]; !ok || !avail {
		return ErrSlotUnavailable
	}
	s.slots[key] = false
	m.t.record(func() { s.slots[key] = true })
	return nil
}

func (m memSlots) Release(_ context.Context, key SlotKey) error {
	s := m.t.s
	avail, ok := s.slots[key]
	if !ok || avail {
		return nil
	}
	s.slots[key] = true
	m.t.record(func() { s.slots[key] = false })
	return nil
}

func (m memSlots) ListAvailable(_ context.Context, providerID int64, filter SlotFilter) iter.Seq2[Slot, error] {
	return snapshotSeq(m.t.s.availableLocked(providerID, filter))
}

func (m memSlots) EnsureSlots(_ context.Context, slots []SlotKey) (int, error) {
	s := m.t.s
	inserted := 0
	for _, key := range slots {
		if _, ok := s.slots[key]; ok {
			continue
		}
		s.slots[key] = true
		m.t.record(func() { delete(s.slots, key) })
		inserted++
	}
	return inserted, nil
}

type memLedger struct {
	t *memTx
}

func (m memLedger) Insert(_ context.Context, na NewAppointment) (*Appointment, error) {
	s := m.t.s
	if _, dup := s.byCode[na.ConfirmationNumber]; dup {
		return nil, ErrDuplicateConfirmationCode
	}
	slot := na.Slot()
	if _, taken := s.activeBySlot[slot]; taken {
		return nil, ErrSlotUnavailable
	}

	s.nextID++
	now := s.now()
	a := &Appointment{
		ID:                     s.nextID,
		ConfirmationNumber:     na.ConfirmationNumber,
		ProviderID:             na.ProviderID,
		AppointmentTypeID:      na.AppointmentTypeID,
		Patient:                na.Patient,
		Interpreter:            na.Interpreter,
		ReasonForVisit:         na.ReasonForVisit,
		NotificationPreference: na.NotificationPreference,
		Date:                   na.Date,
		Time:                   na.Time,
		Status:                 StatusConfirmed,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	s.appointments[a.ID] = a
	s.byCode[a.ConfirmationNumber] = a.ID
	s.activeBySlot[slot] = a.ID

	id := a.ID
	m.t.record(func() {
		delete(s.appointments, id)
		delete(s.byCode, na.ConfirmationNumber)
		delete(s.activeBySlot, slot)
		s.nextID--
	})

	cp := *a
	return &cp, nil
}

func (m memLedger) Get(_ context.Context, id int64) (*Appointment, error) {
	return m.t.s.getLocked(id)
}

func (m memLedger) GetByConfirmation(_ context.Context, code string) (*Appointment, error) {
	return m.t.s.getByCodeLocked(code)
}

// GetForUpdate needs no extra locking: the transaction already holds the
// store's write lock.
func (m memLedger) GetForUpdate(_ context.Context, id int64) (*Appointment, error) {
	return m.t.s.getLocked(id)
}

func (m memLedger) ListByPatientEmail(_ context.Context, email string) ([]Appointment, error) {
	return m.t.s.listLocked(func(a *Appointment) bool { return strings.EqualFold(a.Patient.Email, email) }), nil
}

func (m memLedger) ListByConfirmationNumber(_ context.Context, code string) ([]Appointment, error) {
	return m.t.s.listLocked(func(a *Appointment) bool { return a.ConfirmationNumber == code }), nil
}

func (m memLedger) update(id int64, apply func(a *Appointment)) (*Appointment, error) {
	s := m.t.s
	a, ok := s.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if a.Status == StatusCancelled {
		return nil, ErrAlreadyCancelled
	}

	prev := *a
	oldSlot := a.Slot()
	apply(a)
	a.UpdatedAt = s.now()

	newSlot := a.Slot()
	switch {
	case !a.Status.Active():
		delete(s.activeBySlot, oldSlot)
	case newSlot != oldSlot:
		if _, taken := s.activeBySlot[newSlot]; taken {
			*a = prev
			return nil, ErrSlotUnavailable
		}
		delete(s.activeBySlot, oldSlot)
		s.activeBySlot[newSlot] = id
	}

	m.t.record(func() {
		*a = prev
		delete(s.activeBySlot, newSlot)
		s.activeBySlot[oldSlot] = id
	})

	cp := *a
	return &cp, nil
}

func (m memLedger) MarkCancelled(_ context.Context, id int64, reason *string) (*Appointment, error) {
	return m.update(id, func(a *Appointment) {
		now := m.t.s.now()
		a.Status = StatusCancelled
		a.CancelReason = reason
		a.CancelledAt = &now
	})
}

func (m memLedger) MarkRescheduled(_ context.Context, id int64, date, tm string) (*Appointment, error) {
	return m.update(id, func(a *Appointment) {
		a.Date = date
		a.Time = tm
		a.Status = StatusRescheduled
	})
}

func (m memLedger) AppendEvent(_ context.Context, ev EventLog) error {
	s := m.t.s
	s.nextEventID++
	ev.ID = s.nextEventID
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now()
	}
	s.events = append(s.events, ev)
	m.t.record(func() {
		s.events = s.events[:len(s.events)-1]
		s.nextEventID--
	})
	return nil
}

// memAutoSlots and memAutoLedger run outside an explicit transaction:
// reads share the read lock, writes run as a one-call transaction.

type memAutoSlots struct {
	s *MemoryStore
}

func (m memAutoSlots) Claim(ctx context.Context, key SlotKey) error {
	return m.s.InTx(ctx, func(tx Tx) error { return tx.Slots().Claim(ctx, key) })
}

func (m memAutoSlots) Release(ctx context.Context, key SlotKey) error {
	return m.s.InTx(ctx, func(tx Tx) error { return tx.Slots().Release(ctx, key) })
}

// ListAvailable snapshots the available cells when iteration starts.
func (m memAutoSlots) ListAvailable(_ context.Context, providerID int64, filter SlotFilter) iter.Seq2[Slot, error] {
	return func(yield func(Slot, error) bool) {
		m.s.mu.RLock()
		slots := m.s.availableLocked(providerID, filter)
		m.s.mu.RUnlock()
		for slot, err := range snapshotSeq(slots) {
			if !yield(slot, err) {
				return
			}
		}
	}
}

func (m memAutoSlots) EnsureSlots(ctx context.Context, slots []SlotKey) (n int, err error) {
	err = m.s.InTx(ctx, func(tx Tx) error {
		n, err = tx.Slots().EnsureSlots(ctx, slots)
		return err
	})
	return n, err
}

type memAutoLedger struct {
	s *MemoryStore
}

func (m memAutoLedger) Insert(ctx context.Context, na NewAppointment) (a *Appointment, err error) {
	err = m.s.InTx(ctx, func(tx Tx) error {
		a, err = tx.Ledger().Insert(ctx, na)
		return err
	})
	return a, err
}

func (m memAutoLedger) Get(_ context.Context, id int64) (*Appointment, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	return m.s.getLocked(id)
}

func (m memAutoLedger) GetByConfirmation(_ context.Context, code string) (*Appointment, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	return m.s.getByCodeLocked(code)
}

func (m memAutoLedger) GetForUpdate(ctx context.Context, id int64) (*Appointment, error) {
	return m.Get(ctx, id)
}

func (m memAutoLedger) ListByPatientEmail(_ context.Context, email string) ([]Appointment, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	return m.s.listLocked(func(a *Appointment) bool { return strings.EqualFold(a.Patient.Email, email) }), nil
}

func (m memAutoLedger) ListByConfirmationNumber(_ context.Context, code string) ([]Appointment, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	return m.s.listLocked(func(a *Appointment) bool { return a.ConfirmationNumber == code }), nil
}

func (m memAutoLedger) MarkCancelled(ctx context.Context, id int64, reason *string) (a *Appointment, err error) {
	err = m.s.InTx(ctx, func(tx Tx) error {
		a, err = tx.Ledger().MarkCancelled(ctx, id, reason)
		return err
	})
	return a, err
}

func (m memAutoLedger) MarkRescheduled(ctx context.Context, id int64, date, tm string) (a *Appointment, err error) {
	err = m.s.InTx(ctx, func(tx Tx) error {
		a, err = tx.Ledger().MarkRescheduled(ctx, id, date, tm)
		return err
	})
	return a, err
}

func (m memAutoLedger) AppendEvent(ctx context.Context, ev EventLog) error {
	return m.s.InTx(ctx, func(tx Tx) error { return tx.Ledger().AppendEvent(ctx, ev) })
}
