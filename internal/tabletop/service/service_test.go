package service

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"tabletop/internal/tabletop/models"
	"tabletop/internal/tabletop/repository"
)

type testEnv struct {
	db       *sql.DB
	repo     *repository.Repository
	sessions *SessionManager
	auth     *Authorizer
	hub      *Hub
	storage  *PreviewStorage
	maps     *MapService
	rooms    *RoomService
	players  *PlayerService
	previews *Previews
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	db, err := repository.OpenSQLite(filepath.Join(dir, "db", "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := repository.New(db)
	if err := repo.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}

	env := &testEnv{db: db, repo: repo}
	env.sessions = NewSessionManager(time.Hour)
	env.auth = NewAuthorizer(repo, env.sessions)
	env.hub = NewHub(repo)
	env.storage = NewPreviewStorage(filepath.Join(dir, "previews"))
	env.maps = NewMapService(repo, env.auth, env.hub, env.storage)
	env.rooms = NewRoomService(repo, env.sessions, env.auth, env.maps)
	env.players = NewPlayerService(repo)
	env.previews = NewPreviews(env.maps, env.storage)
	return env
}

// room creates a room with password "secret" and one active map.
func (e *testEnv) room(t *testing.T) (*models.Room, *models.Map) {
	t.Helper()
	ctx := context.Background()
	room, err := e.rooms.Create(ctx, "Session zero", "secret")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	m, err := e.maps.Create(ctx, room.Code, Actor{Password: "secret"}, "First", models.MapPatch{})
	if err != nil {
		t.Fatalf("create map: %v", err)
	}
	return room, m
}
