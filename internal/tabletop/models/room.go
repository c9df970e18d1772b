package models

// ============================================================
// Room Model
// ============================================================

type Room struct {
	Code          string `json:"code"`
	Name          string `json:"name"`
	AdminPassword string `json:"-"`
	CreatedAt     string `json:"createdAt"`
	UpdatedAt     string `json:"updatedAt"`
	LastActivity  string `json:"lastActivity"`
}
