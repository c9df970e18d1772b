package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"tabletop/internal/tabletop/canvas"
	"tabletop/internal/tabletop/models"
	"tabletop/internal/tabletop/repository"
)

// ============================================================
// Map Service
// ============================================================

const (
	DefaultMapName = "Main map"
	maxInputEvents = 2000
)

// MapService — правила работы с картами комнаты. Реализует canvas.SnapshotStore.
type MapService struct {
	repo     *repository.Repository
	auth     *Authorizer
	hub      *Hub
	previews *PreviewStorage
}

func NewMapService(repo *repository.Repository, auth *Authorizer, hub *Hub, previews *PreviewStorage) *MapService {
	return &MapService{repo: repo, auth: auth, hub: hub, previews: previews}
}

var _ canvas.SnapshotStore = (*MapService)(nil)

func (s *MapService) requireRoom(ctx context.Context, roomCode string) error {
	if _, err := s.repo.GetRoom(ctx, roomCode); err != nil {
		return fmt.Errorf("room %s: %w", roomCode, err)
	}
	return nil
}

func (s *MapService) List(ctx context.Context, roomCode string) ([]models.Map, error) {
	if err := s.requireRoom(ctx, roomCode); err != nil {
		return nil, err
	}
	return s.repo.ListMaps(ctx, roomCode)
}

// Active возвращает nil без ошибки, если активной карты нет.
func (s *MapService) Active(ctx context.Context, roomCode string) (*models.Map, error) {
	if err := s.requireRoom(ctx, roomCode); err != nil {
		return nil, err
	}
	m, err := s.repo.GetActiveMap(ctx, roomCode)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return m, err
}

func (s *MapService) Get(ctx context.Context, roomCode, mapID string) (*models.Map, error) {
	m, err := s.repo.GetMap(ctx, roomCode, mapID)
	if err != nil {
		return nil, fmt.Errorf("map %s: %w", mapID, err)
	}
	return m, nil
}

// Create добавляет карту. Первая карта комнаты сразу становится активной.
func (s *MapService) Create(ctx context.Context, roomCode string, actor Actor, name string, patch models.MapPatch) (*models.Map, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name required", ErrInvalidInput)
	}
	if err := s.auth.Admin(ctx, roomCode, actor); err != nil {
		return nil, err
	}
	if err := normalizePatch(&patch); err != nil {
		return nil, err
	}

	m, err := s.repo.CreateMap(ctx, roomCode, name, patch)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.GetActiveMap(ctx, roomCode); errors.Is(err, repository.ErrNotFound) {
		if m, err = s.repo.ActivateMap(ctx, roomCode, m.ID); err != nil {
			return nil, err
		}
	}

	log.Printf("[MAPS] created %s in %s", m.ID, m.RoomCode)
	s.changed(ctx, m.RoomCode, actor.SessionID)
	return m, nil
}

// Update частично обновляет карту.
func (s *MapService) Update(ctx context.Context, roomCode, mapID string, actor Actor, patch models.MapPatch) (*models.Map, error) {
	if err := s.auth.Admin(ctx, roomCode, actor); err != nil {
		return nil, err
	}
	if patch.Name != nil {
		trimmed := strings.TrimSpace(*patch.Name)
		if trimmed == "" {
			return nil, fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
		}
		patch.Name = &trimmed
	}
	if err := normalizePatch(&patch); err != nil {
		return nil, err
	}

	m, err := s.repo.UpdateMap(ctx, roomCode, mapID, patch)
	if err != nil {
		return nil, err
	}
	s.changed(ctx, m.RoomCode, actor.SessionID)
	return m, nil
}

func (s *MapService) Activate(ctx context.Context, roomCode, mapID string, actor Actor) (*models.Map, error) {
	if err := s.auth.Admin(ctx, roomCode, actor); err != nil {
		return nil, err
	}
	m, err := s.repo.ActivateMap(ctx, roomCode, mapID)
	if err != nil {
		return nil, err
	}
	log.Printf("[MAPS] activated %s in %s", m.ID, m.RoomCode)
	s.changed(ctx, m.RoomCode, actor.SessionID)
	return m, nil
}

// Delete запрещает удалять единственную и активную карту.
func (s *MapService) Delete(ctx context.Context, roomCode, mapID string, actor Actor) (*models.Map, error) {
	if err := s.auth.Admin(ctx, roomCode, actor); err != nil {
		return nil, err
	}
	deleted, err := s.repo.DeleteMap(ctx, roomCode, mapID)
	switch {
	case errors.Is(err, repository.ErrLastMap):
		return nil, ErrLastMap
	case errors.Is(err, repository.ErrMapActive):
		return nil, ErrActiveMap
	case err != nil:
		return nil, fmt.Errorf("map %s: %w", mapID, err)
	}
	if s.previews != nil {
		if err := s.previews.RemoveMap(deleted.RoomCode, deleted.ID); err != nil {
			log.Printf("[PREVIEW] remove %s: %v", deleted.ID, err)
		}
	}
	log.Printf("[MAPS] deleted %s from %s", deleted.ID, deleted.RoomCode)
	s.changed(ctx, deleted.RoomCode, actor.SessionID)
	return deleted, nil
}

// ============================================================
// Snapshot store (canvas.Session collaborator)
// ============================================================

// Load возвращает снимок карты mapID или активной карты комнаты, если mapID пуст.
func (s *MapService) Load(ctx context.Context, roomCode, mapID string) (models.MapSnapshot, error) {
	var (
		m   *models.Map
		err error
	)
	if mapID == "" {
		m, err = s.Active(ctx, roomCode)
		if err == nil && m == nil {
			err = ErrNoActiveMap
		}
	} else {
		m, err = s.Get(ctx, roomCode, mapID)
	}
	if err != nil {
		return models.MapSnapshot{}, err
	}
	return m.Snapshot(), nil
}

// Save сохраняет полный снимок. credential — пароль администратора или токен.
func (s *MapService) Save(ctx context.Context, roomCode, mapID string, snapshot models.MapSnapshot, credential string) error {
	actor := s.auth.Credential(credential)
	if mapID == "" {
		if err := s.auth.Admin(ctx, roomCode, actor); err != nil {
			return err
		}
		active, err := s.Active(ctx, roomCode)
		if err != nil {
			return err
		}
		if active == nil {
			return ErrNoActiveMap
		}
		mapID = active.ID
	}
	_, err := s.Update(ctx, roomCode, mapID, actor, models.PatchFromSnapshot(snapshot))
	return err
}

// ============================================================
// Headless input
// ============================================================

// ControlChange — значение элемента управления в том виде, в каком его отдаёт форма.
type ControlChange struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// InputBatch — события указателя и изменения контролов для поверхности Width x Height.
type InputBatch struct {
	Width    float64             `json:"width"`
	Height   float64             `json:"height"`
	Events   []canvas.InputEvent `json:"events"`
	Controls []ControlChange     `json:"controls"`
}

// ApplyInput проигрывает события на сохранённом снимке тем же Viewer, что и клиент,
// и сохраняет трансформацию, сетку и масштаб расстояний.
func (s *MapService) ApplyInput(ctx context.Context, roomCode, mapID string, actor Actor, batch InputBatch) (*models.Map, canvas.Controls, error) {
	if batch.Width <= 0 || batch.Height <= 0 {
		return nil, canvas.Controls{}, fmt.Errorf("%w: surface size must be positive", ErrInvalidInput)
	}
	if len(batch.Events) > maxInputEvents {
		return nil, canvas.Controls{}, fmt.Errorf("%w: too many events", ErrInvalidInput)
	}
	if err := s.auth.Admin(ctx, roomCode, actor); err != nil {
		return nil, canvas.Controls{}, err
	}
	m, err := s.Get(ctx, roomCode, mapID)
	if err != nil {
		return nil, canvas.Controls{}, err
	}

	viewer := canvas.NewViewer(canvas.EditorCapabilities, nil)
	viewer.Resize(0, 0, batch.Width, batch.Height)
	if err := viewer.Load(m.Snapshot()); err != nil {
		log.Printf("[MAPS] input on %s without image: %v", m.ID, err)
	}
	for _, ev := range batch.Events {
		viewer.Handle(ev)
	}
	for _, ch := range batch.Controls {
		if err := applyControl(viewer, ch); err != nil {
			return nil, canvas.Controls{}, err
		}
	}

	snap := viewer.Snapshot()
	patch := models.PatchFromSnapshot(snap)
	patch.ImageData = nil
	updated, err := s.repo.UpdateMap(ctx, roomCode, mapID, patch)
	if err != nil {
		return nil, canvas.Controls{}, err
	}
	s.changed(ctx, updated.RoomCode, actor.SessionID)
	return updated, viewer.Controls(), nil
}

func applyControl(v *canvas.Viewer, ch ControlChange) error {
	switch ch.Name {
	case "scale":
		return v.SetScalePercent(ch.Value)
	case "rotation":
		return v.SetRotationDegrees(ch.Value)
	case "reset":
		return v.ResetImage()
	case "gridSize":
		return v.SetGridSize(ch.Value)
	case "gridOpacity":
		return v.SetGridOpacity(ch.Value)
	case "gridColor":
		return v.SetGridColor(ch.Value)
	case "gridLineWidth":
		return v.SetGridLineWidth(ch.Value)
	case "gridVisible":
		return v.SetGridVisible(ch.Value == "true" || ch.Value == "1" || ch.Value == "on")
	case "gridOffsetX":
		return v.SetGridOffsetX(ch.Value)
	case "gridOffsetY":
		return v.SetGridOffsetY(ch.Value)
	case "squareSize":
		return v.SetDistance(ch.Value, "")
	case "unit":
		return v.SetDistance("", ch.Value)
	}
	return fmt.Errorf("%w: unknown control %q", ErrInvalidInput, ch.Name)
}

// ============================================================
// Helpers
// ============================================================

// normalizePatch применяет к патчу те же правила, что и холст при загрузке.
func normalizePatch(p *models.MapPatch) error {
	if p.ImageTransform != nil {
		t := canvas.NewTransformModel(*p.ImageTransform).Transform()
		p.ImageTransform = &t
	}
	if p.GridConfig != nil {
		g := canvas.NormalizeGrid(*p.GridConfig)
		p.GridConfig = &g
	}
	if p.DistanceConfig != nil {
		d := *p.DistanceConfig
		if !models.ValidUnit(d.Unit) {
			return fmt.Errorf("%w: unit must be one of feet, meters, km, miles", ErrInvalidInput)
		}
		if d.SquareSize <= 0 {
			return fmt.Errorf("%w: squareSize must be positive", ErrInvalidInput)
		}
	}
	if p.ImageData != nil && *p.ImageData != "" {
		if _, err := canvas.CheckImageData(*p.ImageData); err != nil {
			return fmt.Errorf("%w: imageData: %v", ErrInvalidInput, err)
		}
	}
	return nil
}

func (s *MapService) changed(ctx context.Context, roomCode, except string) {
	if err := s.repo.MarkRoomUpdated(ctx, roomCode); err != nil {
		log.Printf("[MAPS] mark %s updated: %v", roomCode, err)
	}
	if s.hub != nil {
		s.hub.NotifyMapChanged(roomCode, except)
	}
}
