package handlers

import (
	"context"
	"net/http"
	"strconv"

	"tabletop/internal/tabletop/models"
	"tabletop/internal/tabletop/service"

	"github.com/gofiber/fiber/v3"
)

// ============================================================
// Map Handler
// ============================================================

type MapHandler struct {
	maps     *service.MapService
	previews *service.Previews
}

func NewMapHandler(maps *service.MapService, previews *service.Previews) *MapHandler {
	return &MapHandler{maps: maps, previews: previews}
}

type mapRequest struct {
	credentials
	models.MapPatch
}

type inputRequest struct {
	credentials
	service.InputBatch
}

// List — карты комнаты по порядку отображения.
func (h *MapHandler) List(c fiber.Ctx) error {
	maps, err := h.maps.List(context.Background(), c.Params("code"))
	if err != nil {
		return respondError(c, "MAPS", err)
	}
	if maps == nil {
		maps = []models.Map{}
	}
	return c.JSON(fiber.Map{"success": true, "maps": maps})
}

// Active — активная карта или null.
func (h *MapHandler) Active(c fiber.Ctx) error {
	m, err := h.maps.Active(context.Background(), c.Params("code"))
	if err != nil {
		return respondError(c, "MAPS", err)
	}
	return c.JSON(fiber.Map{"success": true, "map": m})
}

func (h *MapHandler) Create(c fiber.Ctx) error {
	var req mapRequest
	if err := decodeBody(c, &req); err != nil {
		return respondError(c, "MAPS", err)
	}
	name := ""
	if req.Name != nil {
		name = *req.Name
	}

	m, err := h.maps.Create(context.Background(), c.Params("code"), actorFrom(c, req.credentials), name, req.MapPatch)
	if err != nil {
		return respondError(c, "MAPS", err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"success": true, "map": m})
}

// Update — частичное обновление: отсутствующие поля не меняются.
func (h *MapHandler) Update(c fiber.Ctx) error {
	var req mapRequest
	if err := decodeBody(c, &req); err != nil {
		return respondError(c, "MAPS", err)
	}

	m, err := h.maps.Update(context.Background(), c.Params("code"), c.Params("mapId"), actorFrom(c, req.credentials), req.MapPatch)
	if err != nil {
		return respondError(c, "MAPS", err)
	}
	return c.JSON(fiber.Map{"success": true, "map": m})
}

func (h *MapHandler) Activate(c fiber.Ctx) error {
	var req credentials
	if err := decodeBody(c, &req); err != nil {
		return respondError(c, "MAPS", err)
	}

	m, err := h.maps.Activate(context.Background(), c.Params("code"), c.Params("mapId"), actorFrom(c, req))
	if err != nil {
		return respondError(c, "MAPS", err)
	}
	return c.JSON(fiber.Map{"success": true, "map": m})
}

func (h *MapHandler) Delete(c fiber.Ctx) error {
	var req credentials
	if err := decodeBody(c, &req); err != nil {
		return respondError(c, "MAPS", err)
	}

	m, err := h.maps.Delete(context.Background(), c.Params("code"), c.Params("mapId"), actorFrom(c, req))
	if err != nil {
		return respondError(c, "MAPS", err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"deleted": fiber.Map{"id": m.ID, "name": m.Name},
	})
}

// Input проигрывает события указателя и изменения контролов на сохранённой карте.
func (h *MapHandler) Input(c fiber.Ctx) error {
	var req inputRequest
	if err := decodeBody(c, &req); err != nil {
		return respondError(c, "MAPS", err)
	}

	m, controls, err := h.maps.ApplyInput(context.Background(), c.Params("code"), c.Params("mapId"), actorFrom(c, req.credentials), req.InputBatch)
	if err != nil {
		return respondError(c, "MAPS", err)
	}
	return c.JSON(fiber.Map{"success": true, "map": m, "controls": controls})
}

// ============================================================
// Previews
// ============================================================

// Preview рендерит карту так, как её нарисует холст заданного размера.
func (h *MapHandler) Preview(c fiber.Ctx) error {
	p, err := h.previews.Render(context.Background(), c.Params("code"), mapParam(c),
		queryInt(c, "width"), queryInt(c, "height"), c.Query("format"))
	if err != nil {
		return respondError(c, "PREVIEW", err)
	}
	return sendPreview(c, p)
}

// Thumbnail — исходное изображение карты, уменьшенное до size.
func (h *MapHandler) Thumbnail(c fiber.Ctx) error {
	p, err := h.previews.Thumbnail(context.Background(), c.Params("code"), mapParam(c), queryInt(c, "size"))
	if err != nil {
		return respondError(c, "PREVIEW", err)
	}
	return sendPreview(c, p)
}

func sendPreview(c fiber.Ctx, p *service.Preview) error {
	c.Set("Content-Type", p.ContentType)
	c.Set("Cache-Control", "no-cache")
	if p.Cached {
		c.Set("X-Preview-Cache", "hit")
	} else {
		c.Set("X-Preview-Cache", "miss")
	}
	return c.Send(p.Data)
}

// mapParam: "active" означает активную карту комнаты.
func mapParam(c fiber.Ctx) string {
	id := c.Params("mapId")
	if id == "active" {
		return ""
	}
	return id
}

// queryInt возвращает 0 для пустого или нечислового параметра (сервис подставит значение по умолчанию).
func queryInt(c fiber.Ctx, key string) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return v
}
