package reservations

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agendamentos/backend/internal/models"
	"github.com/agendamentos/backend/internal/reliability"
)

// ---------------------------------------------------------------------------
// In-memory store
// ---------------------------------------------------------------------------

// memStore implements Store over plain maps. InTx takes a snapshot before
// running fn and restores it on error, mirroring the all-or-nothing rollback
// of the real transaction. The mutex held for the whole unit stands in for
// the row locks of the database.
type memStore struct {
	mu           sync.Mutex
	users        map[int64]*models.User
	events       map[int64]*models.Event
	reservations map[int64]*models.Reservation
	history      []models.HistoryEntry
	nextID       int64

	failHistory error // if set, AppendHistory returns this error
}

func newMemStore() *memStore {
	return &memStore{
		users:        make(map[int64]*models.User),
		events:       make(map[int64]*models.Event),
		reservations: make(map[int64]*models.Reservation),
	}
}

func (s *memStore) addUser(id int64) *models.User {
	u := &models.User{ID: id, Status: models.UserActive}
	s.users[id] = u
	return u
}

func (s *memStore) addEvent(id int64, title string, date time.Time, hhmm string, seats int) *models.Event {
	e := &models.Event{
		ID: id, Title: title, Date: date, Time: hhmm,
		TotalSeats: seats, AvailableSeats: seats, Status: models.EventActive,
	}
	s.events[id] = e
	return e
}

type snapshot struct {
	users        map[int64]models.User
	events       map[int64]models.Event
	reservations map[int64]models.Reservation
	historyLen   int
	nextID       int64
}

func (s *memStore) snapshot() snapshot {
	snap := snapshot{
		users:        make(map[int64]models.User, len(s.users)),
		events:       make(map[int64]models.Event, len(s.events)),
		reservations: make(map[int64]models.Reservation, len(s.reservations)),
		historyLen:   len(s.history),
		nextID:       s.nextID,
	}
	for id, u := range s.users {
		snap.users[id] = *u
	}
	for id, e := range s.events {
		snap.events[id] = *e
	}
	for id, r := range s.reservations {
		snap.reservations[id] = *r
	}
	return snap
}

func (s *memStore) restore(snap snapshot) {
	s.users = make(map[int64]*models.User, len(snap.users))
	for id := range snap.users {
		u := snap.users[id]
		s.users[id] = &u
	}
	s.events = make(map[int64]*models.Event, len(snap.events))
	for id := range snap.events {
		e := snap.events[id]
		s.events[id] = &e
	}
	s.reservations = make(map[int64]*models.Reservation, len(snap.reservations))
	for id := range snap.reservations {
		r := snap.reservations[id]
		s.reservations[id] = &r
	}
	s.history = s.history[:snap.historyLen]
	s.nextID = snap.nextID
}

func (s *memStore) InTx(_ context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshot()
	if err := fn(&memTx{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memStore) Reservation(_ context.Context, id int64) (*models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.reservations[id]; ok {
		clone := *r
		return &clone, nil
	}
	return nil, nil
}

func (s *memStore) Event(_ context.Context, id int64) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.events[id]; ok {
		clone := *e
		return &clone, nil
	}
	return nil, nil
}

func (s *memStore) ListByUser(_ context.Context, userID int64) ([]models.UserReservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []models.UserReservation
	for _, r := range s.reservations {
		if r.UserID != userID {
			continue
		}
		e := s.events[r.EventID]
		list = append(list, models.UserReservation{
			Reservation: *r,
			EventTitle:  e.Title,
			EventDate:   e.Date,
			EventTime:   e.Time,
		})
	}
	return list, nil
}

func (s *memStore) UserStatistics(_ context.Context, userID int64) (*models.UserStatistics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st models.UserStatistics
	for _, r := range s.reservations {
		if r.UserID != userID {
			continue
		}
		switch r.Status {
		case models.ReservationCancelled:
			st.Cancelled++
			continue
		case models.ReservationPresent:
			st.Present++
		case models.ReservationAbsent:
			st.Absent++
		}
		st.Total++
	}
	st.PresenceRate = presenceRate(st.Present, st.Total)
	return &st, nil
}

type memTx struct {
	s *memStore
}

func (t *memTx) User(_ context.Context, id int64) (*models.User, error) {
	if u, ok := t.s.users[id]; ok {
		return u, nil
	}
	return nil, nil
}

func (t *memTx) Event(_ context.Context, id int64) (*models.Event, error) {
	if e, ok := t.s.events[id]; ok {
		return e, nil
	}
	return nil, nil
}

func (t *memTx) PairForUpdate(_ context.Context, userID, eventID int64) (*models.Reservation, error) {
	for _, r := range t.s.reservations {
		if r.UserID == userID && r.EventID == eventID {
			return r, nil
		}
	}
	return nil, nil
}

func (t *memTx) ReservationForUpdate(_ context.Context, id int64) (*models.Reservation, error) {
	if r, ok := t.s.reservations[id]; ok {
		return r, nil
	}
	return nil, nil
}

func (t *memTx) DecrementCapacity(_ context.Context, eventID int64) (bool, error) {
	e, ok := t.s.events[eventID]
	if !ok || e.AvailableSeats <= 0 {
		return false, nil
	}
	e.AvailableSeats--
	return true, nil
}

func (t *memTx) IncrementCapacity(_ context.Context, eventID int64) error {
	e, ok := t.s.events[eventID]
	if !ok {
		return errors.New("event missing")
	}
	if e.AvailableSeats < e.TotalSeats {
		e.AvailableSeats++
	}
	return nil
}

func (t *memTx) NextSequence(_ context.Context, eventID int64) (int, error) {
	max := 0
	for _, r := range t.s.reservations {
		if r.EventID == eventID && r.SequenceNumber > max {
			max = r.SequenceNumber
		}
	}
	return max + 1, nil
}

func (t *memTx) Insert(_ context.Context, r *models.Reservation) error {
	for _, other := range t.s.reservations {
		if other.UserID == r.UserID && other.EventID == r.EventID {
			return ErrDuplicateActive // unique (usuario_id, evento_id)
		}
	}
	t.s.nextID++
	r.ID = t.s.nextID
	clone := *r
	t.s.reservations[r.ID] = &clone
	return nil
}

func (t *memTx) Reactivate(_ context.Context, id int64) error {
	r, ok := t.s.reservations[id]
	if !ok {
		return errors.New("reservation missing")
	}
	r.Status = models.ReservationConfirmed
	r.Attendance = models.AttendancePending
	r.CancelledAt = nil
	return nil
}

func (t *memTx) MarkCancelled(_ context.Context, id int64, justification string, at time.Time) error {
	r := t.s.reservations[id]
	r.Status = models.ReservationCancelled
	r.CancelledAt = &at
	if justification != "" {
		if r.Notes == "" {
			r.Notes = justification
		} else {
			r.Notes = r.Notes + " | " + justification
		}
	}
	return nil
}

func (t *memTx) MarkPresent(_ context.Context, id int64, at time.Time) error {
	r := t.s.reservations[id]
	r.Status = models.ReservationPresent
	r.Attendance = models.AttendanceConfirmed
	r.PresentAt = &at
	return nil
}

func (t *memTx) MarkAbsent(_ context.Context, id int64) error {
	r := t.s.reservations[id]
	r.Status = models.ReservationAbsent
	r.Attendance = models.AttendanceAbsent
	return nil
}

func (t *memTx) RecordAbsence(_ context.Context, userID int64, now time.Time) (bool, error) {
	u, ok := t.s.users[userID]
	if !ok {
		return false, errors.New("user missing")
	}
	return reliability.ApplyAbsence(u, now), nil
}

func (t *memTx) AppendHistory(_ context.Context, userID int64, category models.HistoryCategory, description string) error {
	if t.s.failHistory != nil {
		return t.s.failHistory
	}
	t.s.history = append(t.s.history, models.HistoryEntry{
		UserID: userID, Category: category, Description: description,
	})
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var testNow = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func newTestService(store *memStore) *Service {
	svc := NewService(store, nil)
	svc.now = func() time.Time { return testNow }
	return svc
}

// activeCount is reservations counting against capacity for the event.
func activeCount(s *memStore, eventID int64) int {
	n := 0
	for _, r := range s.reservations {
		if r.EventID == eventID && r.Active() {
			n++
		}
	}
	return n
}

func assertCapacityInvariant(t *testing.T, s *memStore, eventID int64) {
	t.Helper()
	e := s.events[eventID]
	assert.Equal(t, e.TotalSeats-activeCount(s, eventID), e.AvailableSeats,
		"available seats must equal total minus active reservations")
}

// farDate is more than 24h after testNow.
var farDate = time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestCreateAssignsSequenceAndTakesSeat(t *testing.T) {
	store := newMemStore()
	store.addUser(1)
	store.addUser(2)
	store.addEvent(10, "Mutirão", farDate, "09:00", 5)
	svc := newTestService(store)

	r1, err := svc.Create(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, r1.SequenceNumber)
	assert.Equal(t, models.ReservationConfirmed, r1.Status)
	assert.Equal(t, models.AttendancePending, r1.Attendance)

	r2, err := svc.Create(context.Background(), 2, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, r2.SequenceNumber)

	assert.Equal(t, 3, store.events[10].AvailableSeats)
	assertCapacityInvariant(t, store, 10)

	require.Len(t, store.history, 2)
	assert.Equal(t, models.HistoryBooking, store.history[0].Category)
	assert.Contains(t, store.history[0].Description, "Mutirão")
}

func TestCreateDuplicateActive(t *testing.T) {
	store := newMemStore()
	store.addUser(1)
	store.addEvent(10, "Evento", farDate, "09:00", 5)
	svc := newTestService(store)

	_, err := svc.Create(context.Background(), 1, 10)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), 1, 10)
	assert.ErrorIs(t, err, ErrDuplicateActive)
	assert.Equal(t, 4, store.events[10].AvailableSeats, "failed create must not consume a seat")
	assertCapacityInvariant(t, store, 10)
}

func TestCreateNoCapacity(t *testing.T) {
	store := newMemStore()
	store.addUser(1)
	store.addUser(2)
	store.addEvent(10, "Evento", farDate, "09:00", 1)
	svc := newTestService(store)

	_, err := svc.Create(context.Background(), 1, 10)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), 2, 10)
	assert.ErrorIs(t, err, ErrNoCapacity)
	assert.Len(t, store.reservations, 1)
}

func TestCreateUnknownEventAndUser(t *testing.T) {
	store := newMemStore()
	store.addUser(1)
	svc := newTestService(store)

	_, err := svc.Create(context.Background(), 1, 99)
	assert.ErrorIs(t, err, ErrEventNotFound)

	_, err = svc.Create(context.Background(), 42, 99)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestCreateRefusedWhileLocked(t *testing.T) {
	store := newMemStore()
	u := store.addUser(1)
	until := testNow.Add(10 * 24 * time.Hour)
	u.Status = models.UserLocked
	u.LockedUntil = &until
	store.addEvent(10, "Evento", farDate, "09:00", 5)
	svc := newTestService(store)

	_, err := svc.Create(context.Background(), 1, 10)
	var lockErr *reliability.AccountLockedError
	require.ErrorAs(t, err, &lockErr)
	assert.Equal(t, 10, lockErr.RemainingDays)
}

func TestCreateRollsBackWhenHistoryFails(t *testing.T) {
	store := newMemStore()
	store.addUser(1)
	store.addEvent(10, "Evento", farDate, "09:00", 3)
	store.failHistory = errors.New("history write failed")
	svc := newTestService(store)

	_, err := svc.Create(context.Background(), 1, 10)
	require.Error(t, err)
	assert.Empty(t, store.reservations, "row write must roll back with the unit")
	assert.Equal(t, 3, store.events[10].AvailableSeats, "ledger decrement must roll back with the unit")
}

// ---------------------------------------------------------------------------
// Cancel
// ---------------------------------------------------------------------------

func TestCancelBookAgainReactivatesSameRow(t *testing.T) {
	store := newMemStore()
	store.addUser(1)
	store.addUser(2)
	store.addEvent(10, "Evento", farDate, "09:00", 1)
	svc := newTestService(store)

	r, err := svc.Create(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, store.events[10].AvailableSeats)

	_, err = svc.Create(context.Background(), 2, 10)
	assert.ErrorIs(t, err, ErrNoCapacity)

	// Event is more than 24h away: no justification needed.
	require.NoError(t, svc.Cancel(context.Background(), r.ID, 1, models.RoleUser, ""))
	assert.Equal(t, 1, store.events[10].AvailableSeats)
	assert.Equal(t, models.ReservationCancelled, store.reservations[r.ID].Status)
	assert.NotNil(t, store.reservations[r.ID].CancelledAt)
	assertCapacityInvariant(t, store, 10)

	again, err := svc.Create(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, r.ID, again.ID, "reactivation reuses the same row")
	assert.Equal(t, r.SequenceNumber, again.SequenceNumber, "sequence number is stable across reactivation")
	assert.Equal(t, models.ReservationConfirmed, again.Status)
	assert.Nil(t, store.reservations[r.ID].CancelledAt)
	assert.Equal(t, 0, store.events[10].AvailableSeats)
	assert.Len(t, store.reservations, 1, "one row per (user, event) pair")
}

func TestCancelExactly24HoursNeedsNoJustification(t *testing.T) {
	store := newMemStore()
	store.addUser(1)
	// testNow is 2026-05-01 10:00 UTC; event starts 2026-05-02 10:00.
	store.addEvent(10, "Evento", time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC), "10:00", 5)
	svc := newTestService(store)

	r, err := svc.Create(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.NoError(t, svc.Cancel(context.Background(), r.ID, 1, models.RoleUser, ""))
}

func TestCancelInsideWindowRequiresJustification(t *testing.T) {
	store := newMemStore()
	store.addUser(1)
	// Starts 23h59m after testNow.
	store.addEvent(10, "Evento", time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC), "09:59", 5)
	svc := newTestService(store)

	r, err := svc.Create(context.Background(), 1, 10)
	require.NoError(t, err)

	err = svc.Cancel(context.Background(), r.ID, 1, models.RoleUser, "")
	assert.ErrorIs(t, err, ErrMissingJustification)
	assert.Equal(t, models.ReservationConfirmed, store.reservations[r.ID].Status)

	err = svc.Cancel(context.Background(), r.ID, 1, models.RoleUser, "   ")
	assert.ErrorIs(t, err, ErrMissingJustification, "blank justification does not count")

	require.NoError(t, svc.Cancel(context.Background(), r.ID, 1, models.RoleUser, "ficou doente"))
	assert.Equal(t, "ficou doente", store.reservations[r.ID].Notes)
	assert.Contains(t, store.history[len(store.history)-1].Description, "ficou doente")
}

func TestCancelAppendsJustificationToNotes(t *testing.T) {
	store := newMemStore()
	store.addUser(1)
	store.addEvent(10, "Evento", time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC), "09:00", 5)
	svc := newTestService(store)

	r, err := svc.Create(context.Background(), 1, 10)
	require.NoError(t, err)
	store.reservations[r.ID].Notes = "nota original"

	require.NoError(t, svc.Cancel(context.Background(), r.ID, 1, models.RoleUser, "imprevisto"))
	assert.Equal(t, "nota original | imprevisto", store.reservations[r.ID].Notes)
}

func TestCancelOwnershipAndAdmin(t *testing.T) {
	store := newMemStore()
	store.addUser(1)
	store.addUser(2)
	store.addEvent(10, "Evento", farDate, "09:00", 5)
	svc := newTestService(store)

	r, err := svc.Create(context.Background(), 1, 10)
	require.NoError(t, err)

	err = svc.Cancel(context.Background(), r.ID, 2, models.RoleUser, "")
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, svc.Cancel(context.Background(), r.ID, 2, models.RoleAdmin, ""))
}

func TestCancelInvalidStates(t *testing.T) {
	store := newMemStore()
	store.addUser(1)
	store.addEvent(10, "Evento", farDate, "09:00", 5)
	svc := newTestService(store)

	r, err := svc.Create(context.Background(), 1, 10)
	require.NoError(t, err)
	require.NoError(t, svc.Cancel(context.Background(), r.ID, 1, models.RoleUser, ""))

	err = svc.Cancel(context.Background(), r.ID, 1, models.RoleUser, "")
	assert.ErrorIs(t, err, ErrInvalidState, "a cancelled reservation cannot be cancelled again")

	err = svc.Cancel(context.Background(), 999, 1, models.RoleUser, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

// ---------------------------------------------------------------------------
// Attendance
// ---------------------------------------------------------------------------

func TestRecordPresence(t *testing.T) {
	store := newMemStore()
	u := store.addUser(1)
	u.ConsecutiveAbsences = 2
	store.addEvent(10, "Evento", farDate, "09:00", 5)
	svc := newTestService(store)

	r, err := svc.Create(context.Background(), 1, 10)
	require.NoError(t, err)

	updated, err := svc.RecordPresence(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationPresent, updated.Status)
	got := store.reservations[r.ID]
	assert.Equal(t, models.ReservationPresent, got.Status)
	assert.Equal(t, models.AttendanceConfirmed, got.Attendance)
	require.NotNil(t, got.PresentAt)
	assert.Equal(t, testNow, *got.PresentAt)

	assert.Equal(t, 0, store.events[10].AvailableSeats+activeCount(store, 10)-store.events[10].TotalSeats,
		"presence keeps counting against capacity")
	assert.Equal(t, 2, u.ConsecutiveAbsences, "presence marking does not touch the reliability tracker")

	_, err = svc.RecordPresence(context.Background(), r.ID)
	assert.ErrorIs(t, err, ErrInvalidState, "present is terminal for the booking cycle")
}

func TestRecordAbsenceLocksAfterThreeStrikes(t *testing.T) {
	store := newMemStore()
	u := store.addUser(1)
	svc := newTestService(store)

	for i := int64(1); i <= 3; i++ {
		store.addEvent(i, "Evento", farDate, "09:00", 5)
		r, err := svc.Create(context.Background(), 1, i)
		require.NoError(t, err)
		require.NoError(t, svc.RecordAbsence(context.Background(), r.ID))

		got := store.reservations[r.ID]
		assert.Equal(t, models.ReservationAbsent, got.Status)
		assert.Equal(t, models.AttendanceAbsent, got.Attendance)
	}

	assert.Equal(t, models.UserLocked, u.Status)
	require.NotNil(t, u.LockedUntil)
	assert.Equal(t, testNow.Add(30*24*time.Hour), *u.LockedUntil)
	assert.Equal(t, 0, u.ConsecutiveAbsences)
	assert.Equal(t, 3, u.LifetimeAbsences)

	// Absence marking happens after the event; the seat is not released.
	for i := int64(1); i <= 3; i++ {
		assert.Equal(t, 4, store.events[i].AvailableSeats)
	}
}

func TestCreateOverAbsentRowIsRefused(t *testing.T) {
	store := newMemStore()
	store.addUser(1)
	store.addEvent(10, "Evento", farDate, "09:00", 5)
	svc := newTestService(store)

	r, err := svc.Create(context.Background(), 1, 10)
	require.NoError(t, err)
	require.NoError(t, svc.RecordAbsence(context.Background(), r.ID))

	// A no-show row is terminal; unlike a cancelled one it never comes back.
	_, err = svc.Create(context.Background(), 1, 10)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, models.ReservationAbsent, store.reservations[r.ID].Status)
	assert.Equal(t, 4, store.events[10].AvailableSeats, "refused booking must not take a seat")
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

func TestGetEnforcesOwnership(t *testing.T) {
	store := newMemStore()
	store.addUser(1)
	store.addUser(2)
	store.addEvent(10, "Evento", farDate, "09:00", 5)
	svc := newTestService(store)

	r, err := svc.Create(context.Background(), 1, 10)
	require.NoError(t, err)

	detail, err := svc.Get(context.Background(), r.ID, 1, models.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, "Evento", detail.Event.Title)

	_, err = svc.Get(context.Background(), r.ID, 2, models.RoleUser)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Get(context.Background(), r.ID, 2, models.RoleAdmin)
	assert.NoError(t, err)
}

func TestUserStatistics(t *testing.T) {
	store := newMemStore()
	store.addUser(1)
	svc := newTestService(store)

	for i := int64(1); i <= 4; i++ {
		store.addEvent(i, "Evento", farDate, "09:00", 5)
	}
	r1, _ := svc.Create(context.Background(), 1, 1)
	r2, _ := svc.Create(context.Background(), 1, 2)
	r3, _ := svc.Create(context.Background(), 1, 3)
	_, _ = svc.Create(context.Background(), 1, 4)

	_, err := svc.RecordPresence(context.Background(), r1.ID)
	require.NoError(t, err)
	_, err = svc.RecordPresence(context.Background(), r2.ID)
	require.NoError(t, err)
	require.NoError(t, svc.RecordAbsence(context.Background(), r3.ID))

	stats, err := svc.UserStatistics(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.Present)
	assert.Equal(t, 1, stats.Absent)
	assert.Equal(t, 0, stats.Cancelled)
	assert.Equal(t, 50, stats.PresenceRate)
}

func TestUserStatisticsEmpty(t *testing.T) {
	store := newMemStore()
	store.addUser(1)
	svc := newTestService(store)

	stats, err := svc.UserStatistics(context.Background(), 1)
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.PresenceRate)
}

// ---------------------------------------------------------------------------
// Concurrency
// ---------------------------------------------------------------------------

func TestConcurrentCreatesCannotOverbook(t *testing.T) {
	store := newMemStore()
	const contenders = 16
	for i := int64(1); i <= contenders; i++ {
		store.addUser(i)
	}
	store.addEvent(10, "Evento", farDate, "09:00", 1)
	svc := newTestService(store)

	results := make(chan error, contenders)
	var wg sync.WaitGroup
	for i := int64(1); i <= contenders; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			_, err := svc.Create(context.Background(), userID, 10)
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	var wins, noCapacity int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrNoCapacity):
			noCapacity++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, contenders-1, noCapacity)
	assert.Equal(t, 0, store.events[10].AvailableSeats)
	assertCapacityInvariant(t, store, 10)
}

func TestConcurrentDuplicateCreatesOneWinner(t *testing.T) {
	store := newMemStore()
	store.addUser(1)
	store.addEvent(10, "Evento", farDate, "09:00", 10)
	svc := newTestService(store)

	const attempts = 8
	results := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(context.Background(), 1, 10)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, duplicates int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrDuplicateActive):
			duplicates++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, attempts-1, duplicates)
	assert.Len(t, store.reservations, 1)
	assert.Equal(t, 9, store.events[10].AvailableSeats)
}
