package handlers

import (
	"github.com/gofiber/fiber/v3"
)

// ============================================================
// Routes
// ============================================================

// Set — все обработчики сервиса.
type Set struct {
	Health   *HealthHandler
	Rooms    *RoomHandler
	Maps     *MapHandler
	Players  *PlayerHandler
	Presence *PresenceHandler
}

// Register вешает маршруты на приложение.
func Register(app *fiber.App, h Set) {
	// Health Check Routes
	app.Get("/health/live", h.Health.LivenessProbe)
	app.Get("/health/ready", h.Health.ReadinessProbe)
	app.Get("/health/startup", h.Health.StartupProbe)

	// Docs
	app.Get("/docs", SwaggerUI)
	app.Get("/docs/openapi.yaml", SwaggerSpec)

	api := app.Group("/api")

	// Users
	api.Post("/users/identify", h.Players.Identify)
	api.Get("/users/:userHash", h.Players.GetUser)

	// Rooms (list до /:code)
	rooms := api.Group("/rooms")
	rooms.Post("/list", h.Rooms.List)
	rooms.Post("/", h.Rooms.Create)
	rooms.Post("/:code/admin", h.Rooms.VerifyAdmin)
	rooms.Put("/:code", h.Rooms.Update)
	rooms.Get("/:code", h.Rooms.Get)

	// Characters
	rooms.Get("/:code/characters/:userId", h.Players.GetCharacter)
	rooms.Post("/:code/characters", h.Players.SaveCharacter)
	rooms.Put("/:code/characters/:characterId", h.Players.UpdateCharacter)

	// Maps
	rooms.Get("/:code/maps", h.Maps.List)
	rooms.Get("/:code/maps/active", h.Maps.Active)
	rooms.Post("/:code/maps", h.Maps.Create)
	rooms.Put("/:code/maps/:mapId", h.Maps.Update)
	rooms.Put("/:code/maps/:mapId/activate", h.Maps.Activate)
	rooms.Delete("/:code/maps/:mapId", h.Maps.Delete)
	rooms.Post("/:code/maps/:mapId/input", h.Maps.Input)
	rooms.Get("/:code/maps/:mapId/preview", h.Maps.Preview)
	rooms.Get("/:code/maps/:mapId/thumbnail", h.Maps.Thumbnail)

	// Presence
	rooms.Get("/:code/presence", h.Presence.Stream)
	rooms.Get("/:code/users", h.Presence.Users)
	rooms.Post("/:code/map-updated", h.Presence.MapUpdated)
}
