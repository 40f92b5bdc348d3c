// Package history records the append-only audit trail. Entries are written
// inside the transaction of the mutation they describe and are never updated
// or deleted.
package history

import (
	"context"

	"github.com/agendamentos/backend/internal/models"
	"github.com/agendamentos/backend/pkg/database"
)

// Append writes one audit entry for the user.
func Append(ctx context.Context, q database.Querier, userID int64, category models.HistoryCategory, description string) error {
	_, err := q.Exec(ctx,
		`INSERT INTO historico (usuario_id, tipo, descricao) VALUES ($1, $2, $3)`,
		userID, category, description)
	return err
}

// ListByUser returns the user's audit entries, newest first.
func ListByUser(ctx context.Context, q database.Querier, userID int64, limit int) ([]models.HistoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := q.Query(ctx,
		`SELECT id, usuario_id, tipo, descricao, data_registro
		 FROM historico WHERE usuario_id = $1 ORDER BY data_registro DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.HistoryEntry
	for rows.Next() {
		var e models.HistoryEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Category, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}
