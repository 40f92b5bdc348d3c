package models

import "time"

// EventStatus is the lifecycle status of an event.
type EventStatus string

const (
	EventActive   EventStatus = "ativo"
	EventInactive EventStatus = "inativo"
)

// Event represents a bookable community event. Seats are tracked as a pair of
// counters: TotalSeats is fixed at creation, AvailableSeats is mutated only by
// the capacity ledger.
type Event struct {
	ID             int64       `json:"id"`
	Title          string      `json:"title"`
	Description    string      `json:"description,omitempty"`
	Date           time.Time   `json:"date"`
	Time           string      `json:"time"` // HH:MM, stored separately from the date
	Location       string      `json:"location,omitempty"`
	GateOpens      string      `json:"gate_opens,omitempty"`
	TotalSeats     int         `json:"total_seats"`
	AvailableSeats int         `json:"available_seats"`
	Status         EventStatus `json:"status"`
	Notes          string      `json:"notes,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// StartsAt combines the event date and HH:MM time into a single instant in the
// given location. A malformed time falls back to midnight.
func (e *Event) StartsAt(loc *time.Location) time.Time {
	t, err := time.Parse("15:04", e.Time)
	if err != nil {
		t = time.Time{}
	}
	return time.Date(e.Date.Year(), e.Date.Month(), e.Date.Day(), t.Hour(), t.Minute(), 0, 0, loc)
}

// AvailableEvent is an Event annotated with the caller's booking state, used by
// the dashboard listing.
type AvailableEvent struct {
	Event
	AlreadyBooked bool `json:"already_booked"`
}

// EventStatistics summarises attendance for one event.
type EventStatistics struct {
	EventID      int64 `json:"event_id"`
	Present      int   `json:"present"`
	Absent       int   `json:"absent"`
	Confirmed    int   `json:"confirmed"`
	PresenceRate int   `json:"presence_rate"` // percent of total seats, rounded
}
