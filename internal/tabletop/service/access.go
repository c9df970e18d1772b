package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"tabletop/internal/tabletop/repository"
)

// ============================================================
// Admin access
// ============================================================

// Actor — кто выполняет изменение: пароль или токен администратора
// и, если есть, id его presence-сессии (ей не шлём map-changed).
type Actor struct {
	Password  string
	Token     string
	SessionID string
}

func (a Actor) empty() bool {
	return a.Password == "" && a.Token == ""
}

type Authorizer struct {
	repo     *repository.Repository
	sessions *SessionManager
}

func NewAuthorizer(repo *repository.Repository, sessions *SessionManager) *Authorizer {
	return &Authorizer{repo: repo, sessions: sessions}
}

// Admin проверяет права администратора на комнату.
// Нет учётных данных -> ErrInvalidInput, неверный пароль или чужой токен -> ErrForbidden,
// неизвестный/просроченный токен -> ErrUnauthorized.
func (a *Authorizer) Admin(ctx context.Context, roomCode string, actor Actor) error {
	if actor.empty() {
		return fmt.Errorf("%w: adminPassword required", ErrInvalidInput)
	}
	code := strings.ToUpper(strings.TrimSpace(roomCode))

	if actor.Token != "" {
		room, ok := a.sessions.Resolve(actor.Token)
		if !ok {
			return ErrUnauthorized
		}
		if room != code {
			return ErrForbidden
		}
		return nil
	}

	if _, err := a.repo.VerifyAdmin(ctx, code, actor.Password); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrForbidden
		}
		return err
	}
	return nil
}

// Credential превращает строку из контракта хранилища (пароль или токен) в Actor.
func (a *Authorizer) Credential(credential string) Actor {
	if _, err := uuid.Parse(credential); err == nil {
		if _, ok := a.sessions.Resolve(credential); ok {
			return Actor{Token: credential}
		}
	}
	return Actor{Password: credential}
}
