package models

// ============================================================
// Character Model
// ============================================================

type Character struct {
	ID                string         `json:"id"`
	UserID            string         `json:"-"`
	RoomCode          string         `json:"-"`
	CharacterName     string         `json:"characterName"`
	CharacterData     map[string]any `json:"characterData"`
	CompletionPercent int            `json:"completionPercent"`
	CreatedAt         string         `json:"createdAt"`
	UpdatedAt         string         `json:"updatedAt"`
}
