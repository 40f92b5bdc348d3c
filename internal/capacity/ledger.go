// Package capacity owns the per-event seat counters. The counters are only
// ever mutated through these operations, which run on whatever Querier the
// caller holds (the pool, or an open transaction of the reservation state
// machine).
package capacity

import (
	"context"

	"github.com/agendamentos/backend/pkg/database"
)

// Decrement takes one seat from the event. The update is guarded: it only
// applies while vagas_disponiveis > 0, so concurrent decrements cannot race
// past zero. Returns false when no seat was available.
func Decrement(ctx context.Context, q database.Querier, eventID int64) (bool, error) {
	tag, err := q.Exec(ctx,
		`UPDATE eventos SET vagas_disponiveis = vagas_disponiveis - 1
		 WHERE id = $1 AND vagas_disponiveis > 0`, eventID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Increment returns one seat to the event, clamped at total capacity.
func Increment(ctx context.Context, q database.Querier, eventID int64) error {
	_, err := q.Exec(ctx,
		`UPDATE eventos SET vagas_disponiveis = LEAST(vagas_disponiveis + 1, vagas_totais)
		 WHERE id = $1`, eventID)
	return err
}

// HasAvailability reports whether the event has at least one open seat.
func HasAvailability(ctx context.Context, q database.Querier, eventID int64) (bool, error) {
	var available int
	err := q.QueryRow(ctx, `SELECT vagas_disponiveis FROM eventos WHERE id = $1`, eventID).Scan(&available)
	if err != nil {
		return false, err
	}
	return available > 0, nil
}
