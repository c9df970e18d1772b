package service

import (
	"context"
	"log"
	"time"

	"tabletop/internal/tabletop/repository"
)

// ============================================================
// Janitor
// ============================================================

// Janitor периодически удаляет неактивные комнаты и просроченные токены.
type Janitor struct {
	repo         *repository.Repository
	hub          *Hub
	sessions     *SessionManager
	previews     *PreviewStorage
	interval     time.Duration
	inactiveDays int
}

func NewJanitor(repo *repository.Repository, hub *Hub, sessions *SessionManager, previews *PreviewStorage, interval time.Duration, inactiveDays int) *Janitor {
	return &Janitor{
		repo:         repo,
		hub:          hub,
		sessions:     sessions,
		previews:     previews,
		interval:     interval,
		inactiveDays: inactiveDays,
	}
}

// Run выполняет уборку сразу и затем каждые interval до отмены ctx. interval <= 0 отключает цикл.
func (j *Janitor) Run(ctx context.Context) {
	if j.interval <= 0 {
		log.Printf("[JANITOR] disabled")
		return
	}
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		j.Sweep(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep — один проход уборки. Возвращает число удалённых комнат.
func (j *Janitor) Sweep(ctx context.Context) int {
	removed, err := j.repo.CleanupInactiveRooms(ctx, j.inactiveDays)
	if err != nil {
		log.Printf("[JANITOR] cleanup failed: %v", err)
		return 0
	}
	for _, room := range removed {
		if j.hub != nil {
			j.hub.CloseRoom(room.Code)
		}
		if j.sessions != nil {
			j.sessions.RevokeRoom(room.Code)
		}
		if j.previews != nil {
			if err := j.previews.RemoveRoom(room.Code); err != nil {
				log.Printf("[JANITOR] remove previews of %s: %v", room.Code, err)
			}
		}
	}
	if len(removed) > 0 {
		log.Printf("[JANITOR] removed %d inactive rooms", len(removed))
	}
	if j.sessions != nil {
		if n := j.sessions.Sweep(); n > 0 {
			log.Printf("[JANITOR] expired %d admin sessions", n)
		}
	}
	return len(removed)
}
