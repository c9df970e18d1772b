package handlers

import (
	"context"

	"tabletop/internal/tabletop/service"

	"github.com/gofiber/fiber/v3"
)

// ============================================================
// Player Handler (users & characters)
// ============================================================

type PlayerHandler struct {
	players *service.PlayerService
}

func NewPlayerHandler(players *service.PlayerService) *PlayerHandler {
	return &PlayerHandler{players: players}
}

type identifyRequest struct {
	UserHash   string  `json:"userHash"`
	PlayerName *string `json:"playerName"`
}

type saveCharacterRequest struct {
	UserID        string         `json:"userId"`
	CharacterName string         `json:"characterName"`
	CharacterData map[string]any `json:"characterData"`
}

type updateCharacterRequest struct {
	CharacterName *string        `json:"characterName"`
	CharacterData map[string]any `json:"characterData"`
}

// Identify создаёт или находит игрока по хешу из браузера.
func (h *PlayerHandler) Identify(c fiber.Ctx) error {
	var req identifyRequest
	if err := decodeBody(c, &req); err != nil {
		return respondError(c, "USERS", err)
	}

	user, err := h.players.Identify(context.Background(), req.UserHash, req.PlayerName)
	if err != nil {
		return respondError(c, "USERS", err)
	}
	return c.JSON(fiber.Map{"success": true, "user": user})
}

func (h *PlayerHandler) GetUser(c fiber.Ctx) error {
	user, err := h.players.GetUser(context.Background(), c.Params("userHash"))
	if err != nil {
		return respondError(c, "USERS", err)
	}
	return c.JSON(fiber.Map{"success": true, "user": user})
}

// GetCharacter — персонаж игрока в комнате или null.
func (h *PlayerHandler) GetCharacter(c fiber.Ctx) error {
	ch, err := h.players.GetCharacter(context.Background(), c.Params("code"), c.Params("userId"))
	if err != nil {
		return respondError(c, "CHARACTERS", err)
	}
	if ch == nil {
		return c.JSON(fiber.Map{"success": true, "character": nil})
	}
	return c.JSON(fiber.Map{"success": true, "character": ch})
}

func (h *PlayerHandler) SaveCharacter(c fiber.Ctx) error {
	var req saveCharacterRequest
	if err := decodeBody(c, &req); err != nil {
		return respondError(c, "CHARACTERS", err)
	}

	ch, err := h.players.SaveCharacter(context.Background(), c.Params("code"), req.UserID, req.CharacterName, req.CharacterData)
	if err != nil {
		return respondError(c, "CHARACTERS", err)
	}
	return c.JSON(fiber.Map{"success": true, "character": ch})
}

func (h *PlayerHandler) UpdateCharacter(c fiber.Ctx) error {
	var req updateCharacterRequest
	if err := decodeBody(c, &req); err != nil {
		return respondError(c, "CHARACTERS", err)
	}

	ch, err := h.players.UpdateCharacter(context.Background(), c.Params("code"), c.Params("characterId"), req.CharacterName, req.CharacterData)
	if err != nil {
		return respondError(c, "CHARACTERS", err)
	}
	return c.JSON(fiber.Map{"success": true, "character": ch})
}
