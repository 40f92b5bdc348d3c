package models

import "time"

// HistoryCategory classifies an audit trail entry.
type HistoryCategory string

const (
	HistoryBooking      HistoryCategory = "agendamento"
	HistoryCancellation HistoryCategory = "cancelamento"
	HistoryPresence     HistoryCategory = "presenca"
	HistoryAbsence      HistoryCategory = "ausencia"
)

// HistoryEntry is one append-only audit trail row. Entries are never mutated.
type HistoryEntry struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	Category    HistoryCategory `json:"category"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}
