package service

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ============================================================
// Presence Hub
// ============================================================

const (
	EventJoined       = "joined"
	EventUsersUpdated = "users-updated"
	EventMapChanged   = "map-changed"

	UserTypeAdmin  = "admin"
	UserTypePlayer = "player"
)

// Event — одно сообщение для подписчика комнаты.
type Event struct {
	Name string
	Data any
}

// UserList — кто сейчас в комнате.
type UserList struct {
	Admins  []string `json:"admins"`
	Players []string `json:"players"`
	Total   int      `json:"total"`
}

// Subscriber — одно подключение к комнате (вкладка браузера).
type Subscriber struct {
	ID     string
	Room   string
	Type   string
	Name   string
	events chan Event
}

// Events закрывается после Leave.
func (s *Subscriber) Events() <-chan Event {
	return s.events
}

// RoomToucher обновляет время активности комнаты.
type RoomToucher interface {
	TouchRoom(ctx context.Context, code string) error
}

// Hub рассылает события presence. Доставка не более одного раза:
// отстающий подписчик теряет события, следующее map-changed всё равно заставит его перечитать карту.
type Hub struct {
	mu       sync.Mutex
	rooms    map[string]map[string]*Subscriber
	watchers map[string]map[int]func()
	nextID   int
	buffer   int
	toucher  RoomToucher
}

func NewHub(toucher RoomToucher) *Hub {
	return &Hub{
		rooms:    make(map[string]map[string]*Subscriber),
		watchers: make(map[string]map[int]func()),
		buffer:   16,
		toucher:  toucher,
	}
}

// Join регистрирует подключение. Неизвестная комната -> ошибка toucher-а (ErrNotFound).
func (h *Hub) Join(ctx context.Context, roomCode, userType, userName string) (*Subscriber, error) {
	code := strings.ToUpper(strings.TrimSpace(roomCode))
	if h.toucher != nil {
		if err := h.toucher.TouchRoom(ctx, code); err != nil {
			return nil, err
		}
	}

	if userType != UserTypeAdmin {
		userType = UserTypePlayer
	}
	userName = strings.TrimSpace(userName)
	if userName == "" {
		userName = "Player"
		if userType == UserTypeAdmin {
			userName = "Admin"
		}
	}

	sub := &Subscriber{
		ID:     uuid.NewString(),
		Room:   code,
		Type:   userType,
		Name:   userName,
		events: make(chan Event, h.buffer),
	}

	h.mu.Lock()
	if h.rooms[code] == nil {
		h.rooms[code] = make(map[string]*Subscriber)
	}
	h.rooms[code][sub.ID] = sub
	h.publishLocked(code, Event{Name: EventUsersUpdated, Data: h.usersLocked(code)}, "")
	h.mu.Unlock()

	log.Printf("[PRESENCE] %s (%s) joined %s", sub.Name, sub.Type, code)
	return sub, nil
}

// Leave убирает подписчика и закрывает его канал. Повторный вызов ничего не делает.
func (h *Hub) Leave(sub *Subscriber) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.rooms[sub.Room]
	if _, ok := subs[sub.ID]; !ok {
		return
	}
	delete(subs, sub.ID)
	close(sub.events)

	if len(subs) == 0 {
		delete(h.rooms, sub.Room)
	} else {
		h.publishLocked(sub.Room, Event{Name: EventUsersUpdated, Data: h.usersLocked(sub.Room)}, "")
	}
	log.Printf("[PRESENCE] %s left %s", sub.ID, sub.Room)
}

// Users возвращает текущий список участников комнаты.
func (h *Hub) Users(roomCode string) UserList {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.usersLocked(strings.ToUpper(strings.TrimSpace(roomCode)))
}

// NotifyMapChanged сообщает всем, кроме сессии except, что карту нужно перечитать.
func (h *Hub) NotifyMapChanged(roomCode, except string) {
	code := strings.ToUpper(strings.TrimSpace(roomCode))

	h.mu.Lock()
	h.publishLocked(code, Event{Name: EventMapChanged}, except)
	watchers := make([]func(), 0, len(h.watchers[code]))
	for _, fn := range h.watchers[code] {
		watchers = append(watchers, fn)
	}
	h.mu.Unlock()

	for _, fn := range watchers {
		fn()
	}
}

// OnRemoteChange подписывает функцию на map-changed комнаты внутри процесса.
func (h *Hub) OnRemoteChange(roomCode string, fn func()) (cancel func()) {
	code := strings.ToUpper(strings.TrimSpace(roomCode))

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if h.watchers[code] == nil {
		h.watchers[code] = make(map[int]func())
	}
	h.watchers[code][id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.watchers[code], id)
			if len(h.watchers[code]) == 0 {
				delete(h.watchers, code)
			}
			h.mu.Unlock()
		})
	}
}

// CloseRoom отключает всех участников удалённой комнаты.
func (h *Hub) CloseRoom(roomCode string) {
	code := strings.ToUpper(strings.TrimSpace(roomCode))
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.rooms[code] {
		close(sub.events)
	}
	delete(h.rooms, code)
	delete(h.watchers, code)
}

func (h *Hub) publishLocked(code string, ev Event, except string) {
	for id, sub := range h.rooms[code] {
		if id == except {
			continue
		}
		select {
		case sub.events <- ev:
		default:
			// Подписчик отстаёт: событие теряется.
		}
	}
}

func (h *Hub) usersLocked(code string) UserList {
	list := UserList{Admins: []string{}, Players: []string{}}
	for _, sub := range h.rooms[code] {
		if sub.Type == UserTypeAdmin {
			list.Admins = append(list.Admins, sub.Name)
		} else {
			list.Players = append(list.Players, sub.Name)
		}
	}
	sort.Strings(list.Admins)
	sort.Strings(list.Players)
	list.Total = len(list.Admins) + len(list.Players)
	return list
}
