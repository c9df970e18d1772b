package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"tabletop/internal/tabletop/models"
	"tabletop/internal/tabletop/repository"
)

// ============================================================
// Room Service
// ============================================================

const (
	roomCodeLength   = 8
	roomCodeAttempts = 5
)

// NewRoomCode — 8 символов в верхнем регистре из случайного uuid.
func NewRoomCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:roomCodeLength])
}

// RoomView — публичное представление комнаты вместе с активной картой.
type RoomView struct {
	Code           string                `json:"code"`
	Name           string                `json:"name"`
	ActiveMapID    *string               `json:"activeMapId"`
	ImageData      *string               `json:"imageData"`
	ImageTransform models.Transform      `json:"imageTransform"`
	GridConfig     models.GridConfig     `json:"gridConfig"`
	DistanceConfig models.DistanceConfig `json:"distanceConfig"`
}

// RoomUpdate — устаревшее обновление «одной карты» комнаты.
type RoomUpdate struct {
	ImageData      *string
	ImageTransform *models.Transform
	GridConfig     *models.GridConfig
}

type RoomService struct {
	repo     *repository.Repository
	sessions *SessionManager
	auth     *Authorizer
	maps     *MapService
}

func NewRoomService(repo *repository.Repository, sessions *SessionManager, auth *Authorizer, maps *MapService) *RoomService {
	return &RoomService{repo: repo, sessions: sessions, auth: auth, maps: maps}
}

// Create создаёт комнату с уникальным кодом.
func (s *RoomService) Create(ctx context.Context, name, adminPassword string) (*models.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" || adminPassword == "" {
		return nil, fmt.Errorf("%w: name and adminPassword required", ErrInvalidInput)
	}

	for i := 0; i < roomCodeAttempts; i++ {
		room, err := s.repo.CreateRoom(ctx, NewRoomCode(), name, adminPassword)
		if errors.Is(err, repository.ErrDuplicate) {
			continue
		}
		if err != nil {
			return nil, err
		}
		log.Printf("[ROOMS] created %s", room.Code)
		return room, nil
	}
	return nil, fmt.Errorf("create room: no free code after %d attempts", roomCodeAttempts)
}

// VerifyAdmin проверяет пароль и выдаёт токен администратора.
func (s *RoomService) VerifyAdmin(ctx context.Context, code, adminPassword string) (*models.Room, string, error) {
	if adminPassword == "" {
		return nil, "", ErrUnauthorized
	}
	room, err := s.repo.VerifyAdmin(ctx, code, adminPassword)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, "", ErrUnauthorized
	}
	if err != nil {
		return nil, "", err
	}
	return room, s.sessions.Issue(room.Code), nil
}

// Get возвращает комнату и поля её активной карты (значения по умолчанию, если карты нет).
func (s *RoomService) Get(ctx context.Context, code string) (*RoomView, error) {
	room, err := s.repo.GetRoom(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("room %s: %w", code, err)
	}
	view := &RoomView{
		Code:           room.Code,
		Name:           room.Name,
		ImageTransform: models.DefaultTransform(),
		GridConfig:     models.DefaultGridConfig(),
		DistanceConfig: models.DefaultDistanceConfig(),
	}

	active, err := s.repo.GetActiveMap(ctx, room.Code)
	if errors.Is(err, repository.ErrNotFound) {
		return view, nil
	}
	if err != nil {
		return nil, err
	}
	view.ActiveMapID = &active.ID
	view.ImageData = active.ImageData
	view.ImageTransform = active.ImageTransform
	view.GridConfig = active.GridConfig
	view.DistanceConfig = active.DistanceConfig
	return view, nil
}

// Update пишет в активную карту; если карт нет, создаёт «Main map».
func (s *RoomService) Update(ctx context.Context, code string, actor Actor, upd RoomUpdate) (*models.Room, error) {
	if err := s.auth.Admin(ctx, code, actor); err != nil {
		if errors.Is(err, ErrForbidden) || errors.Is(err, ErrInvalidInput) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	patch := models.MapPatch{
		ImageData:      upd.ImageData,
		ImageTransform: upd.ImageTransform,
		GridConfig:     upd.GridConfig,
	}

	active, err := s.maps.Active(ctx, code)
	if err != nil {
		return nil, err
	}
	if active == nil {
		_, err = s.maps.Create(ctx, code, actor, DefaultMapName, patch)
	} else {
		_, err = s.maps.Update(ctx, code, active.ID, actor, patch)
	}
	if err != nil {
		return nil, err
	}
	return s.repo.GetRoom(ctx, code)
}

// List — комнаты администратора с этим паролем.
func (s *RoomService) List(ctx context.Context, adminPassword string) ([]models.Room, error) {
	if adminPassword == "" {
		return nil, fmt.Errorf("%w: adminPassword required", ErrInvalidInput)
	}
	return s.repo.ListRoomsByAdmin(ctx, adminPassword)
}
