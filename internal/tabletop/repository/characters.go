package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"tabletop/internal/tabletop/models"
)

// ============================================================
// Characters
// ============================================================

const characterColumns = `id, user_id, room_code, character_name, character_data, completion_percent, created_at, updated_at`

func scanCharacter(row scanner) (*models.Character, error) {
	var (
		c    models.Character
		data string
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.RoomCode, &c.CharacterName, &data, &c.CompletionPercent, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	if err := json.Unmarshal([]byte(data), &c.CharacterData); err != nil || c.CharacterData == nil {
		c.CharacterData = map[string]any{}
	}
	return &c, nil
}

func encodeData(data map[string]any) (string, error) {
	if data == nil {
		data = map[string]any{}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode character data: %w", err)
	}
	return string(b), nil
}

// UpsertCharacter создаёт или перезаписывает персонажа пользователя в комнате (один на пару).
func (r *Repository) UpsertCharacter(ctx context.Context, c *models.Character) (*models.Character, error) {
	data, err := encodeData(c.CharacterData)
	if err != nil {
		return nil, err
	}
	_, err = r.db.ExecContext(ctx, `
        INSERT INTO characters (id, user_id, room_code, character_name, character_data, completion_percent)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT (user_id, room_code) DO UPDATE SET
            character_name = excluded.character_name,
            character_data = excluded.character_data,
            completion_percent = excluded.completion_percent,
            updated_at = CURRENT_TIMESTAMP
    `, uuid.NewString(), c.UserID, normalizeCode(c.RoomCode), c.CharacterName, data, c.CompletionPercent)
	if err != nil {
		if isConstraint(err) {
			return nil, fmt.Errorf("save character: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("save character: %w", err)
	}
	return r.GetCharacter(ctx, c.UserID, c.RoomCode)
}

// GetCharacter возвращает персонажа пользователя userID в комнате.
func (r *Repository) GetCharacter(ctx context.Context, userID, roomCode string) (*models.Character, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT `+characterColumns+`
        FROM characters
        WHERE user_id = ? AND room_code = ?
    `, userID, normalizeCode(roomCode))
	return scanCharacter(row)
}

func (r *Repository) GetCharacterByID(ctx context.Context, roomCode, id string) (*models.Character, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT `+characterColumns+`
        FROM characters
        WHERE id = ? AND room_code = ?
    `, id, normalizeCode(roomCode))
	return scanCharacter(row)
}

// UpdateCharacter перезаписывает имя, данные и процент заполнения.
func (r *Repository) UpdateCharacter(ctx context.Context, c *models.Character) (*models.Character, error) {
	data, err := encodeData(c.CharacterData)
	if err != nil {
		return nil, err
	}
	res, err := r.db.ExecContext(ctx, `
        UPDATE characters SET
            character_name = ?,
            character_data = ?,
            completion_percent = ?,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = ? AND room_code = ?
    `, c.CharacterName, data, c.CompletionPercent, c.ID, normalizeCode(c.RoomCode))
	if err != nil {
		return nil, fmt.Errorf("update character: %w", err)
	}
	if err := expectRow(res); err != nil {
		return nil, err
	}
	return r.GetCharacterByID(ctx, c.RoomCode, c.ID)
}
