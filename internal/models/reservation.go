package models

import "time"

// ReservationStatus is the lifecycle state of a booking.
type ReservationStatus string

const (
	ReservationConfirmed ReservationStatus = "confirmado"
	ReservationCancelled ReservationStatus = "cancelado"
	ReservationPresent   ReservationStatus = "presente"
	ReservationAbsent    ReservationStatus = "ausente"
)

// AttendanceStatus is the attendance-confirmation sub-status of a booking.
type AttendanceStatus string

const (
	AttendancePending   AttendanceStatus = "pendente"
	AttendanceConfirmed AttendanceStatus = "confirmado"
	AttendanceAbsent    AttendanceStatus = "ausente"
)

// Reservation is one seat booked by one user at one event. SequenceNumber is a
// per-event ordinal assigned at first creation and stable across
// cancel/reactivate cycles.
type Reservation struct {
	ID             int64             `json:"id"`
	UserID         int64             `json:"user_id"`
	EventID        int64             `json:"event_id"`
	SequenceNumber int               `json:"sequence_number"`
	Status         ReservationStatus `json:"status"`
	Attendance     AttendanceStatus  `json:"attendance"`
	Notes          string            `json:"notes,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	CancelledAt    *time.Time        `json:"cancelled_at,omitempty"`
	PresentAt      *time.Time        `json:"present_at,omitempty"`
}

// Active reports whether the reservation currently counts against event
// capacity.
func (r *Reservation) Active() bool {
	return r.Status == ReservationConfirmed || r.Status == ReservationPresent
}

// UserReservation is a Reservation joined with the fields of its event, for
// per-user listings.
type UserReservation struct {
	Reservation
	EventTitle    string    `json:"event_title"`
	EventDate     time.Time `json:"event_date"`
	EventTime     string    `json:"event_time"`
	EventLocation string    `json:"event_location,omitempty"`
	GateOpens     string    `json:"gate_opens,omitempty"`
}

// UserStatistics summarises a user's booking record. Total excludes cancelled
// reservations; PresenceRate is round(present/total*100), zero when total is 0.
type UserStatistics struct {
	Total        int `json:"total"`
	Present      int `json:"present"`
	Absent       int `json:"absent"`
	Cancelled    int `json:"cancelled"`
	PresenceRate int `json:"presence_rate"`
}
