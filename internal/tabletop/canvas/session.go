package canvas

import (
	"context"
	"log"
	"sync"

	"tabletop/internal/tabletop/models"
)

// ============================================================
// Session (collaborator binding)
// ============================================================

// SnapshotStore — хранилище состояния карт.
type SnapshotStore interface {
	// Load возвращает карту mapID или активную карту комнаты, если mapID пуст.
	Load(ctx context.Context, roomCode, mapID string) (models.MapSnapshot, error)
	Save(ctx context.Context, roomCode, mapID string, snapshot models.MapSnapshot, credential string) error
}

// ChangeNotifier сообщает, что карта комнаты изменилась в другой сессии. Без данных: только «перечитай».
type ChangeNotifier interface {
	OnRemoteChange(roomCode string, fn func()) (cancel func())
}

// Session связывает Viewer с хранилищем и каналом уведомлений.
// Согласованность между пользователями — полной заменой состояния при каждом уведомлении.
type Session struct {
	mu         sync.Mutex
	viewer     *Viewer
	store      SnapshotStore
	notifier   ChangeNotifier
	roomCode   string
	mapID      string
	credential string
	cancel     func()
	reloads    int
}

func NewSession(viewer *Viewer, store SnapshotStore, notifier ChangeNotifier, roomCode, mapID, credential string) *Session {
	return &Session{
		viewer:     viewer,
		store:      store,
		notifier:   notifier,
		roomCode:   roomCode,
		mapID:      mapID,
		credential: credential,
	}
}

// Open загружает снимок и подписывается на удалённые изменения.
func (s *Session) Open(ctx context.Context) error {
	if err := s.Reload(ctx); err != nil {
		return err
	}
	if s.notifier != nil {
		s.cancel = s.notifier.OnRemoteChange(s.roomCode, func() {
			if err := s.Reload(context.Background()); err != nil {
				log.Printf("[SESSION] reload %s: %v", s.roomCode, err)
			}
		})
	}
	return nil
}

// Reload заново читает снимок и заменяет им состояние холста.
func (s *Session) Reload(ctx context.Context) error {
	snap, err := s.store.Load(ctx, s.roomCode, s.mapID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloads++
	if err := s.viewer.Load(snap); err != nil {
		// Без изображения холст всё равно пригоден: сетка рисуется.
		log.Printf("[SESSION] %s: %v", s.roomCode, err)
	}
	return nil
}

// Save отправляет текущее состояние в хранилище. Ошибка не повторяется автоматически.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	snap := s.viewer.Snapshot()
	s.mu.Unlock()
	return s.store.Save(ctx, s.roomCode, s.mapID, snap, s.credential)
}

// Do выполняет fn под блокировкой сессии: обработчик уведомлений работает в другой горутине.
func (s *Session) Do(fn func(v *Viewer)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.viewer)
}

// Reloads — сколько раз состояние заменялось снимком из хранилища.
func (s *Session) Reloads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reloads
}

func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
