package repository

import (
	"context"
	"database/sql"
	"fmt"

	"tabletop/internal/tabletop/models"
)

// ============================================================
// Rooms
// ============================================================

const roomColumns = `code, name, admin_password, created_at, updated_at, last_activity`

func scanRoom(row scanner) (*models.Room, error) {
	var room models.Room
	if err := row.Scan(&room.Code, &room.Name, &room.AdminPassword, &room.CreatedAt, &room.UpdatedAt, &room.LastActivity); err != nil {
		return nil, notFound(err)
	}
	return &room, nil
}

// CreateRoom создаёт комнату. Занятый код возвращает ErrDuplicate.
func (r *Repository) CreateRoom(ctx context.Context, code, name, adminPassword string) (*models.Room, error) {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO rooms (code, name, admin_password)
        VALUES (?, ?, ?)
    `, normalizeCode(code), name, adminPassword)
	if err != nil {
		if isConstraint(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("insert room: %w", err)
	}
	return r.GetRoom(ctx, code)
}

func (r *Repository) GetRoom(ctx context.Context, code string) (*models.Room, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE code = ?`, normalizeCode(code))
	return scanRoom(row)
}

// VerifyAdmin возвращает комнату, если пароль совпадает.
func (r *Repository) VerifyAdmin(ctx context.Context, code, adminPassword string) (*models.Room, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT `+roomColumns+`
        FROM rooms
        WHERE code = ? AND admin_password = ?
    `, normalizeCode(code), adminPassword)
	return scanRoom(row)
}

// ListRoomsByAdmin — комнаты с этим паролем, недавно изменённые первыми.
func (r *Repository) ListRoomsByAdmin(ctx context.Context, adminPassword string) ([]models.Room, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT `+roomColumns+`
        FROM rooms
        WHERE admin_password = ?
        ORDER BY updated_at DESC, created_at DESC
    `, adminPassword)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rooms := []models.Room{}
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, *room)
	}
	return rooms, rows.Err()
}

// TouchRoom обновляет last_activity (кто-то подключился к комнате).
func (r *Repository) TouchRoom(ctx context.Context, code string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE rooms SET last_activity = CURRENT_TIMESTAMP WHERE code = ?`, normalizeCode(code))
	if err != nil {
		return err
	}
	return expectRow(res)
}

// MarkRoomUpdated обновляет updated_at после изменения карт комнаты.
func (r *Repository) MarkRoomUpdated(ctx context.Context, code string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE rooms SET updated_at = CURRENT_TIMESTAMP WHERE code = ?`, normalizeCode(code))
	return err
}

// CleanupInactiveRooms удаляет комнаты без активности дольше days дней.
// Карты и персонажи удаляются каскадом.
func (r *Repository) CleanupInactiveRooms(ctx context.Context, days int) ([]models.Room, error) {
	cutoff := fmt.Sprintf("-%d days", days)
	var removed []models.Room

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
            SELECT `+roomColumns+`
            FROM rooms
            WHERE last_activity < datetime('now', ?)
        `, cutoff)
		if err != nil {
			return err
		}
		for rows.Next() {
			room, err := scanRoom(rows)
			if err != nil {
				rows.Close()
				return err
			}
			removed = append(removed, *room)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return err
		}
		if len(removed) == 0 {
			return nil
		}

		_, err = tx.ExecContext(ctx, `DELETE FROM rooms WHERE last_activity < datetime('now', ?)`, cutoff)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("cleanup rooms: %w", err)
	}
	return removed, nil
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
