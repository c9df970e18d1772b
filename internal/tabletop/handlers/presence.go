package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"tabletop/internal/tabletop/service"

	"github.com/gofiber/fiber/v3"
)

// ============================================================
// Presence Handler (Server-Sent Events)
// ============================================================

type PresenceHandler struct {
	hub       *service.Hub
	auth      *service.Authorizer
	keepalive time.Duration
}

func NewPresenceHandler(hub *service.Hub, auth *service.Authorizer, keepalive time.Duration) *PresenceHandler {
	return &PresenceHandler{hub: hub, auth: auth, keepalive: keepalive}
}

type joinedPayload struct {
	SessionID string `json:"sessionId"`
	Type      string `json:"type"`
	Name      string `json:"name"`
}

// Stream подключает вкладку к комнате. Разрыв соединения = выход из комнаты.
func (h *PresenceHandler) Stream(c fiber.Ctx) error {
	sub, err := h.hub.Join(context.Background(), c.Params("code"), c.Query("type"), c.Query("name"))
	if err != nil {
		return respondError(c, "PRESENCE", err)
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	return c.SendStreamWriter(func(w *bufio.Writer) {
		h.pump(w, sub)
	})
}

// pump пишет события подписчика, пока канал открыт и клиент читает.
func (h *PresenceHandler) pump(w *bufio.Writer, sub *service.Subscriber) {
	defer h.hub.Leave(sub)

	joined := joinedPayload{SessionID: sub.ID, Type: sub.Type, Name: sub.Name}
	if err := writeEvent(w, service.EventJoined, joined); err != nil {
		return
	}

	var tick <-chan time.Time
	if h.keepalive > 0 {
		ticker := time.NewTicker(h.keepalive)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := writeEvent(w, ev.Name, ev.Data); err != nil {
				log.Printf("[PRESENCE] %s disconnected: %v", sub.ID, err)
				return
			}
		case <-tick:
			if _, err := w.WriteString(": keepalive\n\n"); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	}
}

// writeEvent — один кадр SSE. Пустые данные отправляются как {}.
func writeEvent(w *bufio.Writer, name string, data any) error {
	payload := []byte("{}")
	if data != nil {
		var err error
		if payload, err = json.Marshal(data); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload); err != nil {
		return err
	}
	return w.Flush()
}

// Users — текущий состав комнаты.
func (h *PresenceHandler) Users(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": true, "users": h.hub.Users(c.Params("code"))})
}

// MapUpdated — явное уведомление от редактора, что карта изменилась.
func (h *PresenceHandler) MapUpdated(c fiber.Ctx) error {
	var req credentials
	if err := decodeBody(c, &req); err != nil {
		return respondError(c, "PRESENCE", err)
	}
	actor := actorFrom(c, req)
	if err := h.auth.Admin(context.Background(), c.Params("code"), actor); err != nil {
		return respondError(c, "PRESENCE", err)
	}

	h.hub.NotifyMapChanged(c.Params("code"), actor.SessionID)
	return c.JSON(fiber.Map{"success": true})
}
