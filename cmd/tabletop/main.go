package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tabletop/internal/common/config"
	"tabletop/internal/common/middleware"
	"tabletop/internal/tabletop/handlers"
	"tabletop/internal/tabletop/repository"
	"tabletop/internal/tabletop/service"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
)

// ============================================================
// Tabletop Map Service
// ============================================================

func main() {
	cfg := config.Load()

	db, err := repository.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	repo := repository.New(db)
	if err := repo.Init(context.Background()); err != nil {
		log.Fatalf("init db: %v", err)
	}

	sessions := service.NewSessionManager(cfg.SessionTTL)
	auth := service.NewAuthorizer(repo, sessions)
	hub := service.NewHub(repo)
	storage := service.NewPreviewStorage(cfg.PreviewDir)
	maps := service.NewMapService(repo, auth, hub, storage)
	rooms := service.NewRoomService(repo, sessions, auth, maps)
	players := service.NewPlayerService(repo)
	previews := service.NewPreviews(maps, storage)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		BodyLimit:    cfg.BodyLimit(),
		ErrorHandler: handlers.ErrorHandler,
		AppName:      "Tabletop Map Service",
	})

	// ============================================================
	// Global Middleware
	// ============================================================

	app.Use(recover.New())
	app.Use(middleware.Logger())
	app.Use(middleware.CORS())

	// ============================================================
	// Routes
	// ============================================================

	handlers.Register(app, handlers.Set{
		Health:   handlers.NewHealthHandler(repo),
		Rooms:    handlers.NewRoomHandler(rooms),
		Maps:     handlers.NewMapHandler(maps, previews),
		Players:  handlers.NewPlayerHandler(players),
		Presence: handlers.NewPresenceHandler(hub, auth, cfg.SSEKeepalive),
	})

	// ============================================================
	// Background Cleanup
	// ============================================================

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	janitor := service.NewJanitor(repo, hub, sessions, storage, cfg.CleanupInterval, cfg.RoomInactiveDays)
	go janitor.Run(ctx)

	go func() {
		<-ctx.Done()
		log.Printf("Shutting down")
		if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	// ============================================================
	// Server Start
	// ============================================================

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("Starting Tabletop Map Service on %s (env: %s, db: %s)", addr, cfg.Environment, cfg.DBPath)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
