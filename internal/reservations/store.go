package reservations

import (
	"context"
	"errors"
	"time"

	"github.com/agendamentos/backend/internal/models"
)

// Domain errors surfaced by the booking state machine. Handlers translate
// these into short user-facing messages; anything else is a storage failure.
var (
	ErrNotFound             = errors.New("reservation not found")
	ErrEventNotFound        = errors.New("event not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrDuplicateActive      = errors.New("user already holds an active reservation for this event")
	ErrNoCapacity           = errors.New("event has no seats available")
	ErrForbidden            = errors.New("not allowed to act on this reservation")
	ErrInvalidState         = errors.New("reservation state does not allow this operation")
	ErrMissingJustification = errors.New("cancelling less than 24 hours before the event requires a justification")
)

// Store gives the state machine its view of the persistent store: plain reads
// plus InTx, which runs fn as a single all-or-nothing unit. Any error from fn
// rolls the whole unit back.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error

	Reservation(ctx context.Context, id int64) (*models.Reservation, error)
	Event(ctx context.Context, id int64) (*models.Event, error)
	ListByUser(ctx context.Context, userID int64) ([]models.UserReservation, error)
	UserStatistics(ctx context.Context, userID int64) (*models.UserStatistics, error)
}

// Tx is the set of operations available inside one transactional unit. Lookup
// methods return nil (no error) when the row does not exist; the *ForUpdate
// variants also take a row lock so concurrent transitions on the same
// reservation serialize.
type Tx interface {
	User(ctx context.Context, id int64) (*models.User, error)
	Event(ctx context.Context, id int64) (*models.Event, error)
	PairForUpdate(ctx context.Context, userID, eventID int64) (*models.Reservation, error)
	ReservationForUpdate(ctx context.Context, id int64) (*models.Reservation, error)

	// DecrementCapacity is the guarded seat take: false means no seat was
	// available. The implementation must not allow two concurrent calls to
	// race the counter below zero.
	DecrementCapacity(ctx context.Context, eventID int64) (bool, error)
	IncrementCapacity(ctx context.Context, eventID int64) error

	NextSequence(ctx context.Context, eventID int64) (int, error)
	// Insert persists a new reservation row and fills in its ID. A uniqueness
	// violation on (user, event) is reported as ErrDuplicateActive.
	Insert(ctx context.Context, r *models.Reservation) error
	// Reactivate restores a cancelled row to confirmed/pending, clearing the
	// cancellation timestamp. The sequence number is untouched.
	Reactivate(ctx context.Context, id int64) error

	MarkCancelled(ctx context.Context, id int64, justification string, at time.Time) error
	MarkPresent(ctx context.Context, id int64, at time.Time) error
	MarkAbsent(ctx context.Context, id int64) error

	// RecordAbsence applies the reliability tracker's absence transition for
	// the user; returns true when the user became locked.
	RecordAbsence(ctx context.Context, userID int64, now time.Time) (bool, error)
	AppendHistory(ctx context.Context, userID int64, category models.HistoryCategory, description string) error
}
