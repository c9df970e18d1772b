package models

// ============================================================
// User Model
// ============================================================

// User — игрок, опознаваемый по хешу, который клиент хранит локально.
type User struct {
	ID         string  `json:"id"`
	UserHash   string  `json:"-"`
	PlayerName *string `json:"playerName"`
	CreatedAt  string  `json:"createdAt"`
	LastSeen   string  `json:"lastSeen"`
}
