package service

import (
	"errors"

	"tabletop/internal/tabletop/repository"
)

var (
	ErrNotFound     = repository.ErrNotFound
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("access denied")
	ErrInvalidInput = errors.New("invalid input")
	ErrLastMap      = errors.New("cannot delete the only map of the room")
	ErrActiveMap    = errors.New("cannot delete the active map, activate another map first")
	ErrNoActiveMap  = errors.New("room has no active map")
)
