package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"tabletop/internal/tabletop/canvas"
	"tabletop/internal/tabletop/service"

	"github.com/gofiber/fiber/v3"
)

// ============================================================
// Response helpers
// ============================================================

// statusOf сопоставляет ошибки сервисов HTTP-статусам.
func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrLastMap),
		errors.Is(err, service.ErrActiveMap):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, service.ErrNoActiveMap),
		errors.Is(err, canvas.ErrNoImage):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// respondError отдаёт {"error": ...}. Внутренние ошибки логируются, клиенту уходит общий текст.
func respondError(c fiber.Ctx, tag string, err error) error {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("[%s] %s %s: %v", tag, c.Method(), c.Path(), err)
		msg = "internal server error"
	}
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

// ErrorHandler — обработчик ошибок приложения в том же JSON-формате.
func ErrorHandler(c fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	return respondError(c, "HTTP", err)
}

// decodeBody разбирает JSON тела. Пустое тело — пустой объект.
func decodeBody(c fiber.Ctx, dst any) error {
	body := c.Body()
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: invalid json", service.ErrInvalidInput)
	}
	return nil
}

// ============================================================
// Credentials
// ============================================================

type credentials struct {
	AdminPassword string `json:"adminPassword"`
	SessionID     string `json:"sessionId"`
}

// actorFrom собирает Actor из тела, заголовка Authorization: Bearer и X-Session-Id.
func actorFrom(c fiber.Ctx, body credentials) service.Actor {
	actor := service.Actor{
		Password:  body.AdminPassword,
		SessionID: body.SessionID,
	}
	if auth := c.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		actor.Token = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if actor.SessionID == "" {
		actor.SessionID = c.Get("X-Session-Id")
	}
	return actor
}
