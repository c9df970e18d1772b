package handlers

import (
	"context"
	"log"
	"net/http"

	"tabletop/internal/tabletop/models"
	"tabletop/internal/tabletop/service"

	"github.com/gofiber/fiber/v3"
)

// ============================================================
// Room Handler
// ============================================================

type RoomHandler struct {
	rooms *service.RoomService
}

func NewRoomHandler(rooms *service.RoomService) *RoomHandler {
	return &RoomHandler{rooms: rooms}
}

type createRoomRequest struct {
	Name          string `json:"name"`
	AdminPassword string `json:"adminPassword"`
}

type updateRoomRequest struct {
	credentials
	ImageData      *string            `json:"imageData"`
	ImageTransform *models.Transform  `json:"imageTransform"`
	GridConfig     *models.GridConfig `json:"gridConfig"`
}

type roomPayload struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Create создаёт комнату.
func (h *RoomHandler) Create(c fiber.Ctx) error {
	var req createRoomRequest
	if err := decodeBody(c, &req); err != nil {
		return respondError(c, "ROOMS", err)
	}

	room, err := h.rooms.Create(context.Background(), req.Name, req.AdminPassword)
	if err != nil {
		return respondError(c, "ROOMS", err)
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"success": true,
		"room":    roomPayload{Code: room.Code, Name: room.Name},
	})
}

// VerifyAdmin проверяет пароль и выдаёт токен администратора.
func (h *RoomHandler) VerifyAdmin(c fiber.Ctx) error {
	var req credentials
	if err := decodeBody(c, &req); err != nil {
		return respondError(c, "ROOMS", err)
	}

	room, token, err := h.rooms.VerifyAdmin(context.Background(), c.Params("code"), req.AdminPassword)
	if err != nil {
		return respondError(c, "ROOMS", err)
	}

	log.Printf("[ROOMS] admin verified for %s", room.Code)
	return c.JSON(fiber.Map{
		"success": true,
		"room":    roomPayload{Code: room.Code, Name: room.Name},
		"token":   token,
	})
}

// Get — публичные данные комнаты и активной карты.
func (h *RoomHandler) Get(c fiber.Ctx) error {
	view, err := h.rooms.Get(context.Background(), c.Params("code"))
	if err != nil {
		return respondError(c, "ROOMS", err)
	}
	return c.JSON(fiber.Map{"success": true, "room": view})
}

// Update — обновление «одной карты» для старых клиентов.
func (h *RoomHandler) Update(c fiber.Ctx) error {
	var req updateRoomRequest
	if err := decodeBody(c, &req); err != nil {
		return respondError(c, "ROOMS", err)
	}

	room, err := h.rooms.Update(context.Background(), c.Params("code"), actorFrom(c, req.credentials), service.RoomUpdate{
		ImageData:      req.ImageData,
		ImageTransform: req.ImageTransform,
		GridConfig:     req.GridConfig,
	})
	if err != nil {
		return respondError(c, "ROOMS", err)
	}
	return c.JSON(fiber.Map{"success": true, "room": room})
}

// List — комнаты администратора.
func (h *RoomHandler) List(c fiber.Ctx) error {
	var req credentials
	if err := decodeBody(c, &req); err != nil {
		return respondError(c, "ROOMS", err)
	}

	rooms, err := h.rooms.List(context.Background(), req.AdminPassword)
	if err != nil {
		return respondError(c, "ROOMS", err)
	}
	if rooms == nil {
		rooms = []models.Room{}
	}
	return c.JSON(fiber.Map{"success": true, "rooms": rooms})
}
