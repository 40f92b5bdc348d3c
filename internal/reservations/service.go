package reservations

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/agendamentos/backend/internal/models"
	"github.com/agendamentos/backend/internal/reliability"
)

// CancelWindow is the free-cancellation window before an event starts. Inside
// it a non-empty justification is required; exactly at the boundary it is not.
const CancelWindow = 24 * time.Hour

// Service is the booking state machine. Every mutation runs as one
// transactional unit covering the reservation row, the capacity ledger, the
// reliability tracker and the audit trail.
type Service struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates the booking service.
func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger, now: time.Now}
}

// Detail is a reservation together with its event.
type Detail struct {
	Reservation models.Reservation `json:"reservation"`
	Event       models.Event       `json:"event"`
}

// Create books one seat for the user at the event. A cancelled row for the
// same pair is reactivated in place, keeping its sequence number; otherwise a
// new row gets the next per-event sequence number. The seat is taken through
// the guarded ledger decrement inside the same transaction.
func (s *Service) Create(ctx context.Context, userID, eventID int64) (*models.Reservation, error) {
	var created *models.Reservation
	err := s.store.InTx(ctx, func(tx Tx) error {
		u, err := tx.User(ctx, userID)
		if err != nil {
			return err
		}
		if u == nil {
			return ErrUserNotFound
		}
		// An expired lock is lifted at login or by the sweeper; here it only
		// needs to not block the booking.
		if locked, days := reliability.CheckLock(u, s.now()); locked {
			return &reliability.AccountLockedError{RemainingDays: days}
		}

		existing, err := tx.PairForUpdate(ctx, userID, eventID)
		if err != nil {
			return err
		}
		if existing != nil && existing.Active() {
			return ErrDuplicateActive
		}
		// Only a cancelled row may come back; a no-show row stays absent.
		if existing != nil && existing.Status != models.ReservationCancelled {
			return ErrInvalidState
		}

		ev, err := tx.Event(ctx, eventID)
		if err != nil {
			return err
		}
		if ev == nil {
			return ErrEventNotFound
		}

		// Takes the event row lock; concurrent creations for the same event
		// serialize here, which also makes the sequence number safe.
		ok, err := tx.DecrementCapacity(ctx, eventID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNoCapacity
		}

		if existing != nil {
			if err := tx.Reactivate(ctx, existing.ID); err != nil {
				return err
			}
			existing.Status = models.ReservationConfirmed
			existing.Attendance = models.AttendancePending
			existing.CancelledAt = nil
			created = existing
		} else {
			seq, err := tx.NextSequence(ctx, eventID)
			if err != nil {
				return err
			}
			r := &models.Reservation{
				UserID:         userID,
				EventID:        eventID,
				SequenceNumber: seq,
				Status:         models.ReservationConfirmed,
				Attendance:     models.AttendancePending,
				CreatedAt:      s.now(),
			}
			if err := tx.Insert(ctx, r); err != nil {
				return err
			}
			created = r
		}

		return tx.AppendHistory(ctx, userID, models.HistoryBooking, "Agendado para: "+ev.Title)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("reservation created",
		zap.Int64("user_id", userID),
		zap.Int64("event_id", eventID),
		zap.Int("sequence", created.SequenceNumber))
	return created, nil
}

// Cancel releases the reservation's seat. Only the owner or an admin may
// cancel, only a confirmed reservation can be cancelled, and inside the
// 24-hour window a non-empty justification is required. The justification is
// appended to the reservation notes, never overwriting them.
func (s *Service) Cancel(ctx context.Context, id, actorID int64, actorRole models.Role, justification string) error {
	justification = strings.TrimSpace(justification)
	err := s.store.InTx(ctx, func(tx Tx) error {
		r, err := tx.ReservationForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if r == nil {
			return ErrNotFound
		}
		if r.UserID != actorID && actorRole != models.RoleAdmin {
			return ErrForbidden
		}
		if r.Status != models.ReservationConfirmed {
			return ErrInvalidState
		}

		ev, err := tx.Event(ctx, r.EventID)
		if err != nil {
			return err
		}
		if ev == nil {
			return ErrEventNotFound
		}

		now := s.now()
		if ev.StartsAt(now.Location()).Sub(now) < CancelWindow && justification == "" {
			return ErrMissingJustification
		}

		if err := tx.MarkCancelled(ctx, r.ID, justification, now); err != nil {
			return err
		}
		if err := tx.IncrementCapacity(ctx, r.EventID); err != nil {
			return err
		}

		desc := "Cancelado: " + ev.Title
		if justification != "" {
			desc += " | Justificativa: " + justification
		}
		return tx.AppendHistory(ctx, actorID, models.HistoryCancellation, desc)
	})
	if err != nil {
		return err
	}
	s.logger.Info("reservation cancelled", zap.Int64("reservation_id", id), zap.Int64("actor_id", actorID))
	return nil
}

// RecordPresence marks a confirmed reservation as attended and returns the
// updated row. Capacity is untouched (the seat has counted since creation)
// and the reliability tracker is not involved; callers that also want the
// user's consecutive-absence counter reset do that through the tracker.
func (s *Service) RecordPresence(ctx context.Context, id int64) (*models.Reservation, error) {
	var out *models.Reservation
	err := s.store.InTx(ctx, func(tx Tx) error {
		r, err := tx.ReservationForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if r == nil {
			return ErrNotFound
		}
		if r.Status != models.ReservationConfirmed {
			return ErrInvalidState
		}
		ev, err := tx.Event(ctx, r.EventID)
		if err != nil {
			return err
		}
		if ev == nil {
			return ErrEventNotFound
		}
		now := s.now()
		if err := tx.MarkPresent(ctx, r.ID, now); err != nil {
			return err
		}
		clone := *r
		clone.Status = models.ReservationPresent
		clone.Attendance = models.AttendanceConfirmed
		clone.PresentAt = &now
		out = &clone
		return tx.AppendHistory(ctx, r.UserID, models.HistoryPresence, "Presença registrada: "+ev.Title)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RecordAbsence marks a confirmed reservation as missed and feeds the
// reliability tracker in the same transaction.
func (s *Service) RecordAbsence(ctx context.Context, id int64) error {
	var lockedUser int64
	err := s.store.InTx(ctx, func(tx Tx) error {
		r, err := tx.ReservationForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if r == nil {
			return ErrNotFound
		}
		if r.Status != models.ReservationConfirmed {
			return ErrInvalidState
		}
		ev, err := tx.Event(ctx, r.EventID)
		if err != nil {
			return err
		}
		if ev == nil {
			return ErrEventNotFound
		}
		if err := tx.MarkAbsent(ctx, r.ID); err != nil {
			return err
		}
		locked, err := tx.RecordAbsence(ctx, r.UserID, s.now())
		if err != nil {
			return err
		}
		if locked {
			lockedUser = r.UserID
		}
		return tx.AppendHistory(ctx, r.UserID, models.HistoryAbsence, "Ausência registrada: "+ev.Title)
	})
	if err != nil {
		return err
	}
	if lockedUser != 0 {
		s.logger.Warn("user locked after consecutive absences", zap.Int64("user_id", lockedUser))
	}
	return nil
}

// Get returns the reservation and its event. Only the owner or an admin may
// read it.
func (s *Service) Get(ctx context.Context, id, actorID int64, actorRole models.Role) (*Detail, error) {
	r, err := s.store.Reservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ErrNotFound
	}
	if r.UserID != actorID && actorRole != models.RoleAdmin {
		return nil, ErrForbidden
	}
	ev, err := s.store.Event(ctx, r.EventID)
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, ErrEventNotFound
	}
	return &Detail{Reservation: *r, Event: *ev}, nil
}

// ListByUser returns the user's reservations joined with event details,
// ordered by event date descending.
func (s *Service) ListByUser(ctx context.Context, userID int64) ([]models.UserReservation, error) {
	return s.store.ListByUser(ctx, userID)
}

// UserStatistics returns the user's booking totals and presence rate.
func (s *Service) UserStatistics(ctx context.Context, userID int64) (*models.UserStatistics, error) {
	return s.store.UserStatistics(ctx, userID)
}
