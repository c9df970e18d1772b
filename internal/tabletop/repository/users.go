package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"tabletop/internal/tabletop/models"
)

// ============================================================
// Users
// ============================================================

const userColumns = `id, user_hash, player_name, created_at, last_seen`

func scanUser(row scanner) (*models.User, error) {
	var (
		u    models.User
		name sql.NullString
	)
	if err := row.Scan(&u.ID, &u.UserHash, &name, &u.CreatedAt, &u.LastSeen); err != nil {
		return nil, notFound(err)
	}
	if name.Valid {
		u.PlayerName = &name.String
	}
	return &u, nil
}

// CreateOrGetUser находит пользователя по хешу или создаёт нового.
// У существующего обновляются last_seen и имя (если передано).
func (r *Repository) CreateOrGetUser(ctx context.Context, userHash string, playerName *string) (*models.User, error) {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
            UPDATE users
            SET last_seen = CURRENT_TIMESTAMP, player_name = COALESCE(?, player_name)
            WHERE user_hash = ?
        `, playerName, userHash)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			return nil
		}

		_, err = tx.ExecContext(ctx, `
            INSERT INTO users (id, user_hash, player_name)
            VALUES (?, ?, ?)
        `, uuid.NewString(), userHash, playerName)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("identify user: %w", err)
	}
	return r.GetUserByHash(ctx, userHash)
}

func (r *Repository) GetUserByHash(ctx context.Context, userHash string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE user_hash = ?`, userHash)
	return scanUser(row)
}
