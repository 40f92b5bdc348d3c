// Package reports builds the administrative projections: attendance listings
// for staff, aggregate user reliability, and the printable presence sheet.
// Everything here is read-only over the booking tables.
package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ReservationRow is one line of the reservations report.
type ReservationRow struct {
	UserName   string    `json:"user_name"`
	UserEmail  string    `json:"user_email"`
	UserPhone  string    `json:"user_phone,omitempty"`
	EventTitle string    `json:"event_title"`
	EventDate  time.Time `json:"event_date"`
	EventTime  string    `json:"event_time"`
	Sequence   int       `json:"sequence"`
	Status     string    `json:"status"`
	Attendance string    `json:"attendance"`
	BookedAt   time.Time `json:"booked_at"`
}

// UserRow is one line of the users reliability report.
type UserRow struct {
	Name                string `json:"name"`
	Email               string `json:"email"`
	Phone               string `json:"phone,omitempty"`
	Status              string `json:"status"`
	Bookings            int    `json:"bookings"`
	Presences           int    `json:"presences"`
	LifetimeAbsences    int    `json:"lifetime_absences"`
	ConsecutiveAbsences int    `json:"consecutive_absences"`
}

// PresenceRow is one line of the printable check-in sheet, ordered by
// sequence number.
type PresenceRow struct {
	Sequence   int    `json:"sequence"`
	UserName   string `json:"user_name"`
	UserPhone  string `json:"user_phone,omitempty"`
	Attendance string `json:"attendance"`
}

// Repository runs the report queries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a reports repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Reservations lists every reservation joined with user and event. A non-zero
// eventID narrows the report to one event.
func (r *Repository) Reservations(ctx context.Context, eventID int64) ([]ReservationRow, error) {
	const q = `SELECT u.nome, u.email, COALESCE(u.telefone,''),
		e.titulo, e.data_evento, e.hora_evento,
		a.numero_senha, a.status, a.confirmacao_presenca, a.data_agendamento
		FROM agendamentos a
		JOIN usuarios u ON u.id = a.usuario_id
		JOIN eventos e ON e.id = a.evento_id
		WHERE ($1 = 0 OR a.evento_id = $1)
		ORDER BY e.data_evento DESC, e.hora_evento DESC, a.numero_senha`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []ReservationRow
	for rows.Next() {
		var row ReservationRow
		if err := rows.Scan(&row.UserName, &row.UserEmail, &row.UserPhone,
			&row.EventTitle, &row.EventDate, &row.EventTime,
			&row.Sequence, &row.Status, &row.Attendance, &row.BookedAt); err != nil {
			return nil, err
		}
		list = append(list, row)
	}
	return list, rows.Err()
}

// Users aggregates per-user booking and reliability counts.
func (r *Repository) Users(ctx context.Context) ([]UserRow, error) {
	const q = `SELECT u.nome, u.email, COALESCE(u.telefone,''), u.status,
		COUNT(a.id) FILTER (WHERE a.status <> 'cancelado'),
		COUNT(a.id) FILTER (WHERE a.status = 'presente'),
		u.total_faltas, u.faltas_consecutivas
		FROM usuarios u
		LEFT JOIN agendamentos a ON a.usuario_id = u.id
		GROUP BY u.id
		ORDER BY u.nome, u.email`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []UserRow
	for rows.Next() {
		var row UserRow
		if err := rows.Scan(&row.Name, &row.Email, &row.Phone, &row.Status,
			&row.Bookings, &row.Presences, &row.LifetimeAbsences, &row.ConsecutiveAbsences); err != nil {
			return nil, err
		}
		list = append(list, row)
	}
	return list, rows.Err()
}

// Presence builds the check-in sheet for one event: everyone still counting
// against capacity plus those already marked, ordered by sequence number.
func (r *Repository) Presence(ctx context.Context, eventID int64) ([]PresenceRow, error) {
	const q = `SELECT a.numero_senha, u.nome, COALESCE(u.telefone,''), a.confirmacao_presenca
		FROM agendamentos a
		JOIN usuarios u ON u.id = a.usuario_id
		WHERE a.evento_id = $1 AND a.status <> 'cancelado'
		ORDER BY a.numero_senha`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []PresenceRow
	for rows.Next() {
		var row PresenceRow
		if err := rows.Scan(&row.Sequence, &row.UserName, &row.UserPhone, &row.Attendance); err != nil {
			return nil, err
		}
		list = append(list, row)
	}
	return list, rows.Err()
}
