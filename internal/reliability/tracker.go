// Package reliability tracks a user's absence record and lockout state: three
// consecutive absences lock the account for thirty days, presence resets the
// consecutive counter, and an expired lock is lifted at the next login.
package reliability

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/agendamentos/backend/internal/models"
	"github.com/agendamentos/backend/pkg/database"
)

const (
	// MaxConsecutiveAbsences is the lockout threshold.
	MaxConsecutiveAbsences = 3
	// LockDuration is how long an account stays locked.
	LockDuration = 30 * 24 * time.Hour
)

// AccountLockedError is returned when an operation is attempted on an account
// whose reliability lock has not yet expired.
type AccountLockedError struct {
	RemainingDays int
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked for %d more day(s)", e.RemainingDays)
}

// ApplyAbsence records one absence on the user in memory. The lifetime counter
// always grows; reaching the threshold locks the account, stamps the expiry
// and resets the consecutive counter. Returns true when the lock was applied.
func ApplyAbsence(u *models.User, now time.Time) bool {
	u.LifetimeAbsences++
	u.ConsecutiveAbsences++
	if u.ConsecutiveAbsences >= MaxConsecutiveAbsences {
		u.Status = models.UserLocked
		until := now.Add(LockDuration)
		u.LockedUntil = &until
		u.ConsecutiveAbsences = 0
		return true
	}
	return false
}

// CheckLock reports whether the user's lock is still in force and, if so, how
// many whole days remain until it expires (rounded up).
func CheckLock(u *models.User, now time.Time) (locked bool, remainingDays int) {
	if u.Status != models.UserLocked || u.LockedUntil == nil {
		return false, 0
	}
	if !now.Before(*u.LockedUntil) {
		return false, 0
	}
	days := int(math.Ceil(u.LockedUntil.Sub(now).Hours() / 24))
	return true, days
}

// RecordAbsence increments the user's absence counters in storage, locking the
// account when the threshold is reached. Meant to run inside the transaction
// of the absence-recording operation; the row is locked first so concurrent
// absences cannot lose increments. Returns true when the user became locked.
func RecordAbsence(ctx context.Context, q database.Querier, userID int64, now time.Time) (bool, error) {
	var u models.User
	err := q.QueryRow(ctx,
		`SELECT id, status, faltas_consecutivas, total_faltas FROM usuarios WHERE id = $1 FOR UPDATE`,
		userID).Scan(&u.ID, &u.Status, &u.ConsecutiveAbsences, &u.LifetimeAbsences)
	if err != nil {
		return false, fmt.Errorf("load user: %w", err)
	}
	locked := ApplyAbsence(&u, now)
	_, err = q.Exec(ctx,
		`UPDATE usuarios SET status = $2, bloqueado_ate = $3, faltas_consecutivas = $4, total_faltas = $5
		 WHERE id = $1`,
		u.ID, u.Status, u.LockedUntil, u.ConsecutiveAbsences, u.LifetimeAbsences)
	if err != nil {
		return false, fmt.Errorf("update user: %w", err)
	}
	return locked, nil
}

// RecordPresence resets the user's consecutive-absence counter. Lock status is
// untouched.
func RecordPresence(ctx context.Context, q database.Querier, userID int64) error {
	_, err := q.Exec(ctx, `UPDATE usuarios SET faltas_consecutivas = 0 WHERE id = $1`, userID)
	return err
}

// Unlock unconditionally reactivates the user: clears the lock expiry and the
// consecutive counter. The lifetime counter is never reset.
func Unlock(ctx context.Context, q database.Querier, userID int64) error {
	_, err := q.Exec(ctx,
		`UPDATE usuarios SET status = 'ativo', bloqueado_ate = NULL, faltas_consecutivas = 0
		 WHERE id = $1`, userID)
	return err
}

// EnsureUnlocked is the login-time check. A lock past its expiry is lifted
// (the user struct is updated to match); a lock still in force returns
// AccountLockedError with the remaining whole days.
func EnsureUnlocked(ctx context.Context, q database.Querier, u *models.User, now time.Time) error {
	if u.Status != models.UserLocked {
		return nil
	}
	if locked, days := CheckLock(u, now); locked {
		return &AccountLockedError{RemainingDays: days}
	}
	if err := Unlock(ctx, q, u.ID); err != nil {
		return fmt.Errorf("auto unlock: %w", err)
	}
	u.Status = models.UserActive
	u.LockedUntil = nil
	u.ConsecutiveAbsences = 0
	return nil
}

// SweepExpiredLocks unlocks every account whose lock expiry has passed. Used
// by the background worker so admin listings do not show stale locks for
// users who never log back in.
func SweepExpiredLocks(ctx context.Context, q database.Querier, now time.Time) (int64, error) {
	tag, err := q.Exec(ctx,
		`UPDATE usuarios SET status = 'ativo', bloqueado_ate = NULL, faltas_consecutivas = 0
		 WHERE status = 'bloqueado' AND bloqueado_ate IS NOT NULL AND bloqueado_ate <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
