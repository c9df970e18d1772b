package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"tabletop/internal/tabletop/models"
)

// ============================================================
// Maps
// ============================================================

const mapColumns = `id, room_code, name, image_data, image_transform, grid_config, distance_config,
        is_active, display_order, revision, created_at, updated_at`

func scanMap(row scanner) (*models.Map, error) {
	var (
		m                         models.Map
		image                     sql.NullString
		transform, grid, distance string
	)
	err := row.Scan(&m.ID, &m.RoomCode, &m.Name, &image, &transform, &grid, &distance,
		&m.IsActive, &m.DisplayOrder, &m.Revision, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if image.Valid {
		m.ImageData = &image.String
	}

	m.ImageTransform = models.DefaultTransform()
	m.GridConfig = models.DefaultGridConfig()
	m.DistanceConfig = models.DefaultDistanceConfig()
	// Битый JSON в строке не должен ломать чтение комнаты: остаются значения по умолчанию.
	_ = json.Unmarshal([]byte(transform), &m.ImageTransform)
	_ = json.Unmarshal([]byte(grid), &m.GridConfig)
	_ = json.Unmarshal([]byte(distance), &m.DistanceConfig)
	return &m, nil
}

// encodeJSON возвращает nil для nil-указателя, чтобы COALESCE сохранил прежнее значение.
func encodeJSON[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// CreateMap добавляет карту в конец списка комнаты. Отсутствующие поля получают значения по умолчанию.
func (r *Repository) CreateMap(ctx context.Context, roomCode, name string, patch models.MapPatch) (*models.Map, error) {
	transform, err := encodeJSON(patch.ImageTransform)
	if err != nil {
		return nil, err
	}
	grid, err := encodeJSON(patch.GridConfig)
	if err != nil {
		return nil, err
	}
	distance, err := encodeJSON(patch.DistanceConfig)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	code := normalizeCode(roomCode)
	_, err = r.db.ExecContext(ctx, `
        INSERT INTO maps (id, room_code, name, image_data, image_transform, grid_config, distance_config, display_order)
        VALUES (?, ?, ?, ?,
            COALESCE(?, '{"x":0,"y":0,"scale":1,"rotation":0}'),
            COALESCE(?, '{"size":50,"opacity":0.5,"color":"#ffffff","lineWidth":1,"visible":true,"offsetX":0,"offsetY":0}'),
            COALESCE(?, '{"squareSize":5,"unit":"feet"}'),
            (SELECT COALESCE(MAX(display_order), 0) + 1 FROM maps WHERE room_code = ?))
    `, id, code, name, patch.ImageData, transform, grid, distance, code)
	if err != nil {
		if isConstraint(err) {
			return nil, fmt.Errorf("create map: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("create map: %w", err)
	}
	return r.GetMap(ctx, code, id)
}

// ListMaps возвращает карты комнаты по display_order.
func (r *Repository) ListMaps(ctx context.Context, roomCode string) ([]models.Map, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT `+mapColumns+`
        FROM maps
        WHERE room_code = ?
        ORDER BY display_order ASC, created_at ASC
    `, normalizeCode(roomCode))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	maps := []models.Map{}
	for rows.Next() {
		m, err := scanMap(rows)
		if err != nil {
			return nil, err
		}
		maps = append(maps, *m)
	}
	return maps, rows.Err()
}

// GetActiveMap возвращает ErrNotFound, если активной карты нет.
func (r *Repository) GetActiveMap(ctx context.Context, roomCode string) (*models.Map, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT `+mapColumns+`
        FROM maps
        WHERE room_code = ? AND is_active = 1
    `, normalizeCode(roomCode))
	return scanMap(row)
}

// GetMap ищет карту только внутри комнаты: чужой id даёт ErrNotFound.
func (r *Repository) GetMap(ctx context.Context, roomCode, id string) (*models.Map, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT `+mapColumns+`
        FROM maps
        WHERE id = ? AND room_code = ?
    `, id, normalizeCode(roomCode))
	return scanMap(row)
}

// ActivateMap делает карту единственной активной в комнате (в одной транзакции).
func (r *Repository) ActivateMap(ctx context.Context, roomCode, id string) (*models.Map, error) {
	code := normalizeCode(roomCode)
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE maps SET is_active = 0 WHERE room_code = ? AND is_active = 1`, code); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
            UPDATE maps SET is_active = 1, revision = revision + 1, updated_at = CURRENT_TIMESTAMP
            WHERE id = ? AND room_code = ?
        `, id, code)
		if err != nil {
			return err
		}
		return expectRow(res)
	})
	if err != nil {
		return nil, fmt.Errorf("activate map: %w", err)
	}
	return r.GetMap(ctx, code, id)
}

// UpdateMap применяет частичное обновление: nil поля патча не меняются.
func (r *Repository) UpdateMap(ctx context.Context, roomCode, id string, patch models.MapPatch) (*models.Map, error) {
	transform, err := encodeJSON(patch.ImageTransform)
	if err != nil {
		return nil, err
	}
	grid, err := encodeJSON(patch.GridConfig)
	if err != nil {
		return nil, err
	}
	distance, err := encodeJSON(patch.DistanceConfig)
	if err != nil {
		return nil, err
	}

	code := normalizeCode(roomCode)
	res, err := r.db.ExecContext(ctx, `
        UPDATE maps SET
            name = COALESCE(?, name),
            image_data = COALESCE(?, image_data),
            image_transform = COALESCE(?, image_transform),
            grid_config = COALESCE(?, grid_config),
            distance_config = COALESCE(?, distance_config),
            revision = revision + 1,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = ? AND room_code = ?
    `, patch.Name, patch.ImageData, transform, grid, distance, id, code)
	if err != nil {
		return nil, fmt.Errorf("update map: %w", err)
	}
	if err := expectRow(res); err != nil {
		return nil, fmt.Errorf("update map: %w", err)
	}
	return r.GetMap(ctx, code, id)
}

// DeleteMap удаляет карту и возвращает её последнее состояние.
// Проверки и удаление идут в одной транзакции: единственную карту комнаты
// удалить нельзя (ErrLastMap), активную тоже (ErrMapActive).
func (r *Repository) DeleteMap(ctx context.Context, roomCode, id string) (*models.Map, error) {
	code := normalizeCode(roomCode)
	var m *models.Map
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		m, err = scanMap(tx.QueryRowContext(ctx, `SELECT `+mapColumns+`
            FROM maps
            WHERE id = ? AND room_code = ?
        `, id, code))
		if err != nil {
			return err
		}
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM maps WHERE room_code = ?`, code).Scan(&count); err != nil {
			return err
		}
		if count <= 1 {
			return ErrLastMap
		}
		if m.IsActive {
			return ErrMapActive
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM maps WHERE id = ? AND room_code = ?`, id, code)
		if err != nil {
			return err
		}
		return expectRow(res)
	})
	if err != nil {
		return nil, fmt.Errorf("delete map: %w", err)
	}
	return m, nil
}

// CountMaps — число карт в комнате.
func (r *Repository) CountMaps(ctx context.Context, roomCode string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM maps WHERE room_code = ?`, normalizeCode(roomCode)).Scan(&n)
	return n, err
}
