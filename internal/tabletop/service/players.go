package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"tabletop/internal/tabletop/models"
	"tabletop/internal/tabletop/repository"
)

// ============================================================
// Players & Characters
// ============================================================

var Abilities = []string{"strength", "dexterity", "constitution", "intelligence", "wisdom", "charisma"}

var requiredFields = []string{
	"name", "class", "level", "race",
	"abilities.strength", "abilities.dexterity", "abilities.constitution",
	"abilities.intelligence", "abilities.wisdom", "abilities.charisma",
}

// Derived — значения, вычисляемые из листа персонажа.
type Derived struct {
	Modifiers        map[string]int `json:"modifiers"`
	ProficiencyBonus int            `json:"proficiencyBonus"`
}

type CharacterView struct {
	*models.Character
	Derived Derived `json:"derived"`
}

type PlayerService struct {
	repo *repository.Repository
}

func NewPlayerService(repo *repository.Repository) *PlayerService {
	return &PlayerService{repo: repo}
}

// Identify создаёт или находит игрока по хешу.
func (s *PlayerService) Identify(ctx context.Context, userHash string, playerName *string) (*models.User, error) {
	userHash = strings.TrimSpace(userHash)
	if userHash == "" {
		return nil, fmt.Errorf("%w: userHash required", ErrInvalidInput)
	}
	if playerName != nil {
		trimmed := strings.TrimSpace(*playerName)
		if trimmed == "" {
			playerName = nil
		} else {
			playerName = &trimmed
		}
	}
	return s.repo.CreateOrGetUser(ctx, userHash, playerName)
}

func (s *PlayerService) GetUser(ctx context.Context, userHash string) (*models.User, error) {
	u, err := s.repo.GetUserByHash(ctx, userHash)
	if err != nil {
		return nil, fmt.Errorf("user: %w", err)
	}
	return u, nil
}

// GetCharacter возвращает nil без ошибки, если персонажа ещё нет.
func (s *PlayerService) GetCharacter(ctx context.Context, roomCode, userHash string) (*CharacterView, error) {
	u, err := s.repo.GetUserByHash(ctx, userHash)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c, err := s.repo.GetCharacter(ctx, u.ID, roomCode)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return view(c), nil
}

// SaveCharacter создаёт или перезаписывает персонажа игрока в комнате.
func (s *PlayerService) SaveCharacter(ctx context.Context, roomCode, userHash, name string, data map[string]any) (*CharacterView, error) {
	name = strings.TrimSpace(name)
	if userHash == "" || name == "" {
		return nil, fmt.Errorf("%w: userId and characterName required", ErrInvalidInput)
	}
	if _, err := s.repo.GetRoom(ctx, roomCode); err != nil {
		return nil, fmt.Errorf("room %s: %w", roomCode, err)
	}
	u, err := s.repo.GetUserByHash(ctx, userHash)
	if err != nil {
		return nil, fmt.Errorf("user: %w", err)
	}
	if data == nil {
		data = map[string]any{}
	}

	c, err := s.repo.UpsertCharacter(ctx, &models.Character{
		UserID:            u.ID,
		RoomCode:          roomCode,
		CharacterName:     name,
		CharacterData:     data,
		CompletionPercent: Completion(data),
	})
	if err != nil {
		return nil, err
	}
	return view(c), nil
}

// UpdateCharacter меняет только переданные поля; процент пересчитывается по итоговым данным.
func (s *PlayerService) UpdateCharacter(ctx context.Context, roomCode, id string, name *string, data map[string]any) (*CharacterView, error) {
	c, err := s.repo.GetCharacterByID(ctx, roomCode, id)
	if err != nil {
		return nil, fmt.Errorf("character %s: %w", id, err)
	}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, fmt.Errorf("%w: characterName must not be empty", ErrInvalidInput)
		}
		c.CharacterName = trimmed
	}
	if data != nil {
		c.CharacterData = data
	}
	c.CompletionPercent = Completion(c.CharacterData)

	updated, err := s.repo.UpdateCharacter(ctx, c)
	if err != nil {
		return nil, err
	}
	return view(updated), nil
}

func view(c *models.Character) *CharacterView {
	return &CharacterView{Character: c, Derived: Derive(c.CharacterData)}
}

// ============================================================
// Sheet arithmetic
// ============================================================

// Completion — доля заполненных обязательных полей, в процентах.
// Пустая строка и ноль считаются незаполненными.
func Completion(data map[string]any) int {
	if len(data) == 0 {
		return 0
	}
	filled := 0
	for _, field := range requiredFields {
		if isFilled(lookup(data, field)) {
			filled++
		}
	}
	return int(math.Round(float64(filled) / float64(len(requiredFields)) * 100))
}

// AbilityModifier — floor((score-10)/2).
func AbilityModifier(score float64) int {
	return int(math.Floor((score - 10) / 2))
}

// ProficiencyBonus — floor((level-1)/4)+2.
func ProficiencyBonus(level float64) int {
	return int(math.Floor((level-1)/4)) + 2
}

// Derive считает модификаторы (отсутствующая характеристика = 10) и бонус мастерства (уровень по умолчанию 1).
func Derive(data map[string]any) Derived {
	d := Derived{Modifiers: make(map[string]int, len(Abilities))}
	for _, a := range Abilities {
		score, ok := number(lookup(data, "abilities."+a))
		if !ok {
			score = 10
		}
		d.Modifiers[a] = AbilityModifier(score)
	}
	level, ok := number(lookup(data, "level"))
	if !ok || level < 1 {
		level = 1
	}
	d.ProficiencyBonus = ProficiencyBonus(level)
	return d
}

func lookup(data map[string]any, path string) any {
	var cur any = data
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[part]
	}
	return cur
}

func isFilled(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != ""
	case float64:
		return val != 0
	case int:
		return val != 0
	}
	return true
}

func number(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, !math.IsNaN(val) && !math.IsInf(val, 0)
	case int:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
