package events

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agendamentos/backend/internal/models"
)

// ErrNotFound is returned when the event does not exist.
var ErrNotFound = errors.New("event not found")

const eventColumns = `id, titulo, COALESCE(descricao,''), data_evento, hora_evento,
	COALESCE(local,''), COALESCE(abertura_portao,''), vagas_totais, vagas_disponiveis,
	status, COALESCE(observacoes,''), data_criacao`

// Repository handles event persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an event repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanEvent(row pgx.Row) (*models.Event, error) {
	var e models.Event
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Date, &e.Time,
		&e.Location, &e.GateOpens, &e.TotalSeats, &e.AvailableSeats,
		&e.Status, &e.Notes, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Create inserts a new event. Available seats start equal to the total.
func (r *Repository) Create(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO eventos (titulo, descricao, data_evento, hora_evento, local, abertura_portao, vagas_totais, vagas_disponiveis, observacoes)
		VALUES ($1, NULLIF($2,''), $3, $4, NULLIF($5,''), NULLIF($6,''), $7, $7, NULLIF($8,''))
		RETURNING id, vagas_disponiveis, status, data_criacao`
	return r.pool.QueryRow(ctx, q,
		e.Title, e.Description, e.Date, e.Time, e.Location, e.GateOpens, e.TotalSeats, e.Notes).
		Scan(&e.ID, &e.AvailableSeats, &e.Status, &e.CreatedAt)
}

// GetByID returns an event, nil when absent.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Event, error) {
	return scanEvent(r.pool.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM eventos WHERE id = $1`, id))
}

// ListAvailable returns active future events with seats left, soonest first.
func (r *Repository) ListAvailable(ctx context.Context) ([]models.Event, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+eventColumns+` FROM eventos
		 WHERE status = 'ativo' AND data_evento >= CURRENT_DATE AND vagas_disponiveis > 0
		 ORDER BY data_evento, hora_evento`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *e)
	}
	return list, rows.Err()
}

// ListAvailableForUser is ListAvailable annotated with whether the user
// already holds an active reservation for each event.
func (r *Repository) ListAvailableForUser(ctx context.Context, userID int64) ([]models.AvailableEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+eventColumns+`,
			EXISTS (
				SELECT 1 FROM agendamentos a
				WHERE a.evento_id = eventos.id AND a.usuario_id = $1
				  AND a.status IN ('confirmado', 'presente')
			) AS already_booked
		 FROM eventos
		 WHERE status = 'ativo' AND data_evento >= CURRENT_DATE AND vagas_disponiveis > 0
		 ORDER BY data_evento, hora_evento`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.AvailableEvent
	for rows.Next() {
		var e models.AvailableEvent
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.Date, &e.Time,
			&e.Location, &e.GateOpens, &e.TotalSeats, &e.AvailableSeats,
			&e.Status, &e.Notes, &e.CreatedAt, &e.AlreadyBooked); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// ListAll returns every event, newest date first. Admin view.
func (r *Repository) ListAll(ctx context.Context) ([]models.Event, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+eventColumns+` FROM eventos ORDER BY data_evento DESC, hora_evento DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *e)
	}
	return list, rows.Err()
}

// EventPatch holds optional editable fields. Nil fields are left as-is.
// Seat counters are owned by the capacity ledger and cannot be patched.
type EventPatch struct {
	Title       *string             `json:"title"`
	Description *string             `json:"description"`
	Date        *string             `json:"date"` // YYYY-MM-DD
	Time        *string             `json:"time"` // HH:MM
	Location    *string             `json:"location"`
	GateOpens   *string             `json:"gate_opens"`
	Status      *models.EventStatus `json:"status"`
	Notes       *string             `json:"notes"`
}

// Apply patches the event row, keeping current values for nil fields.
func (r *Repository) Apply(ctx context.Context, id int64, p EventPatch) (*models.Event, error) {
	e, err := scanEvent(r.pool.QueryRow(ctx,
		`UPDATE eventos SET
			titulo          = COALESCE($2, titulo),
			descricao       = COALESCE($3, descricao),
			data_evento     = COALESCE($4::date, data_evento),
			hora_evento     = COALESCE($5, hora_evento),
			local           = COALESCE($6, local),
			abertura_portao = COALESCE($7, abertura_portao),
			status          = COALESCE($8, status),
			observacoes     = COALESCE($9, observacoes)
		 WHERE id = $1
		 RETURNING `+eventColumns,
		id, p.Title, p.Description, p.Date, p.Time, p.Location, p.GateOpens,
		(*string)(p.Status), p.Notes))
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, ErrNotFound
	}
	return e, nil
}

// Delete removes an event and, via the schema's cascade, its reservations.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM eventos WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Statistics summarises attendance for one event. The rate is presences over
// total seats, rounded to whole percent.
func (r *Repository) Statistics(ctx context.Context, id int64) (*models.EventStatistics, error) {
	const q = `SELECT e.vagas_totais,
		COUNT(*) FILTER (WHERE a.status = 'presente'),
		COUNT(*) FILTER (WHERE a.status = 'ausente'),
		COUNT(*) FILTER (WHERE a.status = 'confirmado')
		FROM eventos e
		LEFT JOIN agendamentos a ON a.evento_id = e.id
		WHERE e.id = $1
		GROUP BY e.vagas_totais`
	var total int
	s := models.EventStatistics{EventID: id}
	err := r.pool.QueryRow(ctx, q, id).Scan(&total, &s.Present, &s.Absent, &s.Confirmed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if total > 0 {
		s.PresenceRate = int(float64(s.Present)/float64(total)*100 + 0.5)
	}
	return &s, nil
}
