package reservations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agendamentos/backend/internal/capacity"
	"github.com/agendamentos/backend/internal/history"
	"github.com/agendamentos/backend/internal/models"
	"github.com/agendamentos/backend/internal/reliability"
	"github.com/agendamentos/backend/pkg/database"
)

const reservationColumns = `id, usuario_id, evento_id, numero_senha, status, confirmacao_presenca,
	COALESCE(observacoes, ''), data_agendamento, data_cancelamento, data_presenca`

// Repository is the PostgreSQL-backed Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a reservations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InTx runs fn inside one transaction, rolling back on any error.
func (r *Repository) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Reservation returns a reservation by ID, or nil when absent.
func (r *Repository) Reservation(ctx context.Context, id int64) (*models.Reservation, error) {
	return scanReservation(r.pool.QueryRow(ctx,
		`SELECT `+reservationColumns+` FROM agendamentos WHERE id = $1`, id))
}

// Event returns an event by ID, or nil when absent.
func (r *Repository) Event(ctx context.Context, id int64) (*models.Event, error) {
	return queryEvent(ctx, r.pool, `SELECT `+eventColumns+` FROM eventos WHERE id = $1`, id)
}

// ListByUser returns the user's reservations joined with their events,
// ordered by event date descending.
func (r *Repository) ListByUser(ctx context.Context, userID int64) ([]models.UserReservation, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.id, a.usuario_id, a.evento_id, a.numero_senha, a.status, a.confirmacao_presenca,
			COALESCE(a.observacoes, ''), a.data_agendamento, a.data_cancelamento, a.data_presenca,
			e.titulo, e.data_evento, e.hora_evento, COALESCE(e.local, ''), COALESCE(e.abertura_portao, '')
		 FROM agendamentos a
		 JOIN eventos e ON a.evento_id = e.id
		 WHERE a.usuario_id = $1
		 ORDER BY e.data_evento DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.UserReservation
	for rows.Next() {
		var ur models.UserReservation
		if err := rows.Scan(&ur.ID, &ur.UserID, &ur.EventID, &ur.SequenceNumber, &ur.Status, &ur.Attendance,
			&ur.Notes, &ur.CreatedAt, &ur.CancelledAt, &ur.PresentAt,
			&ur.EventTitle, &ur.EventDate, &ur.EventTime, &ur.EventLocation, &ur.GateOpens); err != nil {
			return nil, err
		}
		list = append(list, ur)
	}
	return list, rows.Err()
}

// UserStatistics returns booking totals for the user in a single query.
func (r *Repository) UserStatistics(ctx context.Context, userID int64) (*models.UserStatistics, error) {
	var s models.UserStatistics
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FILTER (WHERE status <> 'cancelado'),
			COUNT(*) FILTER (WHERE status = 'presente'),
			COUNT(*) FILTER (WHERE status = 'ausente'),
			COUNT(*) FILTER (WHERE status = 'cancelado')
		 FROM agendamentos WHERE usuario_id = $1`, userID).
		Scan(&s.Total, &s.Present, &s.Absent, &s.Cancelled)
	if err != nil {
		return nil, err
	}
	s.PresenceRate = presenceRate(s.Present, s.Total)
	return &s, nil
}

func presenceRate(present, total int) int {
	if total == 0 {
		return 0
	}
	return int(float64(present)/float64(total)*100 + 0.5)
}

// pgTx implements Tx on an open pgx transaction, delegating the capacity,
// reliability and history operations to their owning packages.
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) User(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := t.tx.QueryRow(ctx,
		`SELECT id, status, bloqueado_ate, faltas_consecutivas, total_faltas FROM usuarios WHERE id = $1`, id).
		Scan(&u.ID, &u.Status, &u.LockedUntil, &u.ConsecutiveAbsences, &u.LifetimeAbsences)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (t *pgTx) Event(ctx context.Context, id int64) (*models.Event, error) {
	return queryEvent(ctx, t.tx, `SELECT `+eventColumns+` FROM eventos WHERE id = $1`, id)
}

func (t *pgTx) PairForUpdate(ctx context.Context, userID, eventID int64) (*models.Reservation, error) {
	return scanReservation(t.tx.QueryRow(ctx,
		`SELECT `+reservationColumns+` FROM agendamentos
		 WHERE usuario_id = $1 AND evento_id = $2 FOR UPDATE`, userID, eventID))
}

func (t *pgTx) ReservationForUpdate(ctx context.Context, id int64) (*models.Reservation, error) {
	return scanReservation(t.tx.QueryRow(ctx,
		`SELECT `+reservationColumns+` FROM agendamentos WHERE id = $1 FOR UPDATE`, id))
}

func (t *pgTx) DecrementCapacity(ctx context.Context, eventID int64) (bool, error) {
	return capacity.Decrement(ctx, t.tx, eventID)
}

func (t *pgTx) IncrementCapacity(ctx context.Context, eventID int64) error {
	return capacity.Increment(ctx, t.tx, eventID)
}

func (t *pgTx) NextSequence(ctx context.Context, eventID int64) (int, error) {
	var next int
	err := t.tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(numero_senha), 0) + 1 FROM agendamentos WHERE evento_id = $1`, eventID).
		Scan(&next)
	return next, err
}

func (t *pgTx) Insert(ctx context.Context, r *models.Reservation) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO agendamentos (usuario_id, evento_id, numero_senha, status, confirmacao_presenca)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, data_agendamento`,
		r.UserID, r.EventID, r.SequenceNumber, r.Status, r.Attendance).
		Scan(&r.ID, &r.CreatedAt)
	if isUniqueViolation(err) {
		// A concurrent creation for the same pair won the race.
		return ErrDuplicateActive
	}
	return err
}

func (t *pgTx) Reactivate(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE agendamentos
		 SET status = 'confirmado', confirmacao_presenca = 'pendente', data_cancelamento = NULL
		 WHERE id = $1`, id)
	return err
}

func (t *pgTx) MarkCancelled(ctx context.Context, id int64, justification string, at time.Time) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE agendamentos
		 SET status = 'cancelado', data_cancelamento = $2,
			observacoes = CASE
				WHEN $3 = '' THEN observacoes
				WHEN COALESCE(observacoes, '') = '' THEN $3
				ELSE observacoes || ' | ' || $3
			END
		 WHERE id = $1`, id, at, justification)
	return err
}

func (t *pgTx) MarkPresent(ctx context.Context, id int64, at time.Time) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE agendamentos
		 SET status = 'presente', confirmacao_presenca = 'confirmado', data_presenca = $2
		 WHERE id = $1`, id, at)
	return err
}

func (t *pgTx) MarkAbsent(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE agendamentos SET status = 'ausente', confirmacao_presenca = 'ausente' WHERE id = $1`, id)
	return err
}

func (t *pgTx) RecordAbsence(ctx context.Context, userID int64, now time.Time) (bool, error) {
	return reliability.RecordAbsence(ctx, t.tx, userID, now)
}

func (t *pgTx) AppendHistory(ctx context.Context, userID int64, category models.HistoryCategory, description string) error {
	return history.Append(ctx, t.tx, userID, category, description)
}

const eventColumns = `id, titulo, COALESCE(descricao, ''), data_evento, hora_evento, COALESCE(local, ''),
	COALESCE(abertura_portao, ''), vagas_totais, vagas_disponiveis, status, COALESCE(observacoes, ''), data_criacao`

func queryEvent(ctx context.Context, q database.Querier, sql string, args ...any) (*models.Event, error) {
	var e models.Event
	err := q.QueryRow(ctx, sql, args...).Scan(&e.ID, &e.Title, &e.Description, &e.Date, &e.Time,
		&e.Location, &e.GateOpens, &e.TotalSeats, &e.AvailableSeats, &e.Status, &e.Notes, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func scanReservation(row pgx.Row) (*models.Reservation, error) {
	var r models.Reservation
	err := row.Scan(&r.ID, &r.UserID, &r.EventID, &r.SequenceNumber, &r.Status, &r.Attendance,
		&r.Notes, &r.CreatedAt, &r.CancelledAt, &r.PresentAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
