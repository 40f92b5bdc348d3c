package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agendamentos/backend/internal/models"
	"github.com/agendamentos/backend/internal/reliability"
)

var (
	// ErrEmailTaken is returned when registering an email that already exists.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUserNotFound is returned when the user does not exist.
	ErrUserNotFound = errors.New("user not found")
)

const userColumns = `id, nome, email, COALESCE(telefone,''), senha, role, status,
	bloqueado_ate, faltas_consecutivas, total_faltas, ultimo_acesso, data_cadastro`

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.Password, &u.Role, &u.Status,
		&u.LockedUntil, &u.ConsecutiveAbsences, &u.LifetimeAbsences, &u.LastAccessAt, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID returns a user by ID, nil when absent.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM usuarios WHERE id = $1`, id))
}

// GetByEmail returns a user by email, nil when absent.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM usuarios WHERE email = $1`, email))
}

// Create inserts a new user with the default role and an active status.
func (r *Repository) Create(ctx context.Context, name, email, phone, passwordHash string) (*models.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`INSERT INTO usuarios (nome, email, telefone, senha)
		 VALUES ($1, $2, NULLIF($3,''), $4)
		 RETURNING `+userColumns,
		name, email, phone, passwordHash))
	if isUniqueViolation(err) {
		return nil, ErrEmailTaken
	}
	return u, err
}

// List returns all users ordered by name. Admin listings show the lock state,
// so the reliability fields ride along on UserPublic plus the counters.
func (r *Repository) List(ctx context.Context) ([]models.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM usuarios ORDER BY nome, email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *u)
	}
	return list, rows.Err()
}

// UpdateProfile changes the user's name and phone.
func (r *Repository) UpdateProfile(ctx context.Context, id int64, name, phone string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE usuarios SET nome = $2, telefone = NULLIF($3,'') WHERE id = $1`,
		id, name, phone)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdatePassword replaces the user's password hash.
func (r *Repository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE usuarios SET senha = $2 WHERE id = $1`, id, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UserPatch holds optional admin-editable fields. Nil fields are left as-is.
type UserPatch struct {
	Name  *string      `json:"name"`
	Phone *string      `json:"phone"`
	Role  *models.Role `json:"role"`
}

// Apply patches the user row, keeping current values for nil fields.
func (r *Repository) Apply(ctx context.Context, id int64, p UserPatch) (*models.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`UPDATE usuarios SET
			nome     = COALESCE($2, nome),
			telefone = COALESCE($3, telefone),
			role     = COALESCE($4, role)
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, p.Name, p.Phone, (*string)(p.Role)))
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// Unlock lifts the user's reliability lock.
func (r *Repository) Unlock(ctx context.Context, id int64) error {
	return reliability.Unlock(ctx, r.pool, id)
}

// ResetConsecutiveAbsences clears the user's absence streak after an attended
// event.
func (r *Repository) ResetConsecutiveAbsences(ctx context.Context, userID int64) error {
	return reliability.RecordPresence(ctx, r.pool, userID)
}

// EnsureUnlocked lifts an expired reliability lock, or reports the remaining
// days when the lock is still in force.
func (r *Repository) EnsureUnlocked(ctx context.Context, u *models.User, now time.Time) error {
	return reliability.EnsureUnlocked(ctx, r.pool, u, now)
}

// TouchLastAccess stamps the login time. Best effort, the caller decides
// whether a failure matters.
func (r *Repository) TouchLastAccess(ctx context.Context, id int64, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE usuarios SET ultimo_acesso = $2 WHERE id = $1`, id, at)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
