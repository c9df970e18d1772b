package repository

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"tabletop/internal/tabletop/models"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "db", "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := New(db)
	if err := repo.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return repo
}

func mustRoom(t *testing.T, repo *Repository, code string) *models.Room {
	t.Helper()
	room, err := repo.CreateRoom(context.Background(), code, "Room "+code, "pw")
	if err != nil {
		t.Fatalf("create room %s: %v", code, err)
	}
	return room
}

func TestRepository_InitIsRepeatable(t *testing.T) {
	repo := newTestRepo(t)
	if err := repo.Init(context.Background()); err != nil {
		t.Fatalf("second init: %v", err)
	}
	if err := repo.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestRepository_Rooms(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	room := mustRoom(t, repo, "abcd1234")
	if room.Code != "ABCD1234" {
		t.Errorf("code %q, want upper-case", room.Code)
	}
	if _, err := repo.CreateRoom(ctx, "ABCD1234", "again", "x"); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate code: %v", err)
	}

	got, err := repo.GetRoom(ctx, " abcd1234 ")
	if err != nil || got.Name != "Room abcd1234" {
		t.Fatalf("GetRoom = %+v, %v", got, err)
	}
	if _, err := repo.GetRoom(ctx, "MISSING1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing room: %v", err)
	}

	if _, err := repo.VerifyAdmin(ctx, "abcd1234", "pw"); err != nil {
		t.Errorf("VerifyAdmin: %v", err)
	}
	if _, err := repo.VerifyAdmin(ctx, "ABCD1234", "wrong"); !errors.Is(err, ErrNotFound) {
		t.Errorf("wrong password: %v", err)
	}

	mustRoom(t, repo, "EFGH5678")
	if _, err := repo.CreateRoom(ctx, "OTHER000", "other", "different"); err != nil {
		t.Fatal(err)
	}
	rooms, err := repo.ListRoomsByAdmin(ctx, "pw")
	if err != nil || len(rooms) != 2 {
		t.Fatalf("ListRoomsByAdmin = %v, %v", rooms, err)
	}

	if err := repo.TouchRoom(ctx, "abcd1234"); err != nil {
		t.Errorf("TouchRoom: %v", err)
	}
	if err := repo.TouchRoom(ctx, "NOPE0000"); !errors.Is(err, ErrNotFound) {
		t.Errorf("TouchRoom missing: %v", err)
	}
}

func TestRepository_CleanupInactiveRooms(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	mustRoom(t, repo, "OLD00001")
	mustRoom(t, repo, "NEW00001")
	if _, err := repo.CreateMap(ctx, "OLD00001", "m", models.MapPatch{}); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.db.ExecContext(ctx, `UPDATE rooms SET last_activity = datetime('now', '-10 days') WHERE code = 'OLD00001'`); err != nil {
		t.Fatal(err)
	}

	removed, err := repo.CleanupInactiveRooms(ctx, 7)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if len(removed) != 1 || removed[0].Code != "OLD00001" {
		t.Fatalf("removed %v", removed)
	}
	if _, err := repo.GetRoom(ctx, "OLD00001"); !errors.Is(err, ErrNotFound) {
		t.Errorf("old room still there: %v", err)
	}
	if n, _ := repo.CountMaps(ctx, "OLD00001"); n != 0 {
		t.Errorf("maps not cascaded: %d", n)
	}
	if _, err := repo.GetRoom(ctx, "NEW00001"); err != nil {
		t.Errorf("fresh room removed: %v", err)
	}

	removed, err = repo.CleanupInactiveRooms(ctx, 7)
	if err != nil || len(removed) != 0 {
		t.Errorf("second cleanup = %v, %v", removed, err)
	}
}

func TestRepository_Users(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	name := "Aria"
	u, err := repo.CreateOrGetUser(ctx, "hash-1", &name)
	if err != nil {
		t.Fatal(err)
	}
	if u.PlayerName == nil || *u.PlayerName != "Aria" || u.ID == "" {
		t.Fatalf("user %+v", u)
	}

	again, err := repo.CreateOrGetUser(ctx, "hash-1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != u.ID || again.PlayerName == nil || *again.PlayerName != "Aria" {
		t.Errorf("existing user changed: %+v", again)
	}

	renamed := "Brom"
	again, err = repo.CreateOrGetUser(ctx, "hash-1", &renamed)
	if err != nil || *again.PlayerName != "Brom" {
		t.Errorf("rename = %+v, %v", again, err)
	}

	if _, err := repo.GetUserByHash(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing user: %v", err)
	}
}

func TestRepository_Characters(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	mustRoom(t, repo, "ROOM0001")
	u, err := repo.CreateOrGetUser(ctx, "hash-2", nil)
	if err != nil {
		t.Fatal(err)
	}

	c, err := repo.UpsertCharacter(ctx, &models.Character{
		UserID:            u.ID,
		RoomCode:          "room0001",
		CharacterName:     "Tika",
		CharacterData:     map[string]any{"class": "fighter"},
		CompletionPercent: 10,
	})
	if err != nil {
		t.Fatal(err)
	}
	if c.CharacterData["class"] != "fighter" || c.CompletionPercent != 10 {
		t.Errorf("character %+v", c)
	}

	second, err := repo.UpsertCharacter(ctx, &models.Character{
		UserID:        u.ID,
		RoomCode:      "ROOM0001",
		CharacterName: "Tika II",
	})
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != c.ID || second.CharacterName != "Tika II" || len(second.CharacterData) != 0 {
		t.Errorf("upsert did not overwrite: %+v", second)
	}

	second.CharacterName = "Tika III"
	second.CharacterData = map[string]any{"level": float64(3)}
	updated, err := repo.UpdateCharacter(ctx, second)
	if err != nil {
		t.Fatal(err)
	}
	if updated.CharacterName != "Tika III" || updated.CharacterData["level"] != float64(3) {
		t.Errorf("updated %+v", updated)
	}

	if _, err := repo.UpdateCharacter(ctx, &models.Character{ID: "nope", RoomCode: "ROOM0001"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("update missing: %v", err)
	}
	if _, err := repo.GetCharacter(ctx, u.ID, "OTHER001"); !errors.Is(err, ErrNotFound) {
		t.Errorf("character in other room: %v", err)
	}
	if _, err := repo.UpsertCharacter(ctx, &models.Character{UserID: u.ID, RoomCode: "NOROOM00", CharacterName: "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("character for missing room: %v", err)
	}
}

func TestRepository_MapLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	mustRoom(t, repo, "MAPS0001")

	first, err := repo.CreateMap(ctx, "maps0001", "Cave", models.MapPatch{})
	if err != nil {
		t.Fatal(err)
	}
	if first.DisplayOrder != 1 || first.IsActive || first.Revision != 1 {
		t.Errorf("first map %+v", first)
	}
	if first.ImageTransform != models.DefaultTransform() || first.GridConfig != models.DefaultGridConfig() || first.DistanceConfig != models.DefaultDistanceConfig() {
		t.Errorf("defaults not applied: %+v", first)
	}

	grid := models.GridConfig{Size: 70, Opacity: 0.2, Color: "#000000", LineWidth: 2, Visible: false}
	img := "data:image/png;base64,AAAA"
	second, err := repo.CreateMap(ctx, "MAPS0001", "Town", models.MapPatch{GridConfig: &grid, ImageData: &img})
	if err != nil {
		t.Fatal(err)
	}
	if second.DisplayOrder != 2 || second.GridConfig != grid || second.ImageData == nil || *second.ImageData != img {
		t.Errorf("second map %+v", second)
	}

	if _, err := repo.GetActiveMap(ctx, "MAPS0001"); !errors.Is(err, ErrNotFound) {
		t.Errorf("active before activation: %v", err)
	}

	if _, err := repo.ActivateMap(ctx, "MAPS0001", first.ID); err != nil {
		t.Fatal(err)
	}
	active, err := repo.ActivateMap(ctx, "MAPS0001", second.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !active.IsActive {
		t.Error("activated map not active")
	}

	maps, err := repo.ListMaps(ctx, "MAPS0001")
	if err != nil || len(maps) != 2 {
		t.Fatalf("ListMaps = %v, %v", maps, err)
	}
	activeCount := 0
	for _, m := range maps {
		if m.IsActive {
			activeCount++
		}
	}
	if activeCount != 1 || maps[0].Name != "Cave" {
		t.Errorf("maps %+v", maps)
	}

	// Unknown id: the current active map stays active.
	if _, err := repo.ActivateMap(ctx, "MAPS0001", "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("activate missing: %v", err)
	}
	if cur, err := repo.GetActiveMap(ctx, "MAPS0001"); err != nil || cur.ID != second.ID {
		t.Errorf("active after failed activation = %+v, %v", cur, err)
	}

	name := "Cave (flooded)"
	tr := models.Transform{X: 5, Y: 6, Scale: 2, Rotation: 0.1}
	updated, err := repo.UpdateMap(ctx, "MAPS0001", first.ID, models.MapPatch{Name: &name, ImageTransform: &tr})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Name != name || updated.ImageTransform != tr || updated.GridConfig != models.DefaultGridConfig() {
		t.Errorf("updated %+v", updated)
	}
	if updated.Revision <= first.Revision {
		t.Errorf("revision %d not bumped from %d", updated.Revision, first.Revision)
	}

	if _, err := repo.UpdateMap(ctx, "OTHER000", first.ID, models.MapPatch{Name: &name}); !errors.Is(err, ErrNotFound) {
		t.Errorf("update via wrong room: %v", err)
	}

	deleted, err := repo.DeleteMap(ctx, "MAPS0001", first.ID)
	if err != nil || deleted.ID != first.ID {
		t.Fatalf("DeleteMap = %+v, %v", deleted, err)
	}
	if n, _ := repo.CountMaps(ctx, "MAPS0001"); n != 1 {
		t.Errorf("count %d, want 1", n)
	}
	if _, err := repo.DeleteMap(ctx, "MAPS0001", first.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("double delete: %v", err)
	}
}

func TestRepository_OneActiveMapEnforcedByIndex(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	mustRoom(t, repo, "IDX00001")
	a, _ := repo.CreateMap(ctx, "IDX00001", "a", models.MapPatch{})
	b, _ := repo.CreateMap(ctx, "IDX00001", "b", models.MapPatch{})

	if _, err := repo.db.ExecContext(ctx, `UPDATE maps SET is_active = 1 WHERE id IN (?, ?)`, a.ID, b.ID); err == nil {
		t.Error("two active maps accepted")
	}
}

func TestRepository_CreateMapForMissingRoom(t *testing.T) {
	repo := newTestRepo(t)
	if _, err := repo.CreateMap(context.Background(), "GHOST000", "x", models.MapPatch{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("err %v, want ErrNotFound", err)
	}
}

func TestRepository_DeleteMapGuards(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	mustRoom(t, repo, "DEL00001")

	only, _ := repo.CreateMap(ctx, "DEL00001", "only", models.MapPatch{})
	if _, err := repo.DeleteMap(ctx, "DEL00001", only.ID); !errors.Is(err, ErrLastMap) {
		t.Errorf("delete only map: %v", err)
	}
	other, _ := repo.CreateMap(ctx, "DEL00001", "other", models.MapPatch{})
	if _, err := repo.ActivateMap(ctx, "DEL00001", only.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.DeleteMap(ctx, "DEL00001", only.ID); !errors.Is(err, ErrMapActive) {
		t.Errorf("delete active map: %v", err)
	}
	// Чужая комната не видит карту: сначала 404, потом остальные проверки.
	if _, err := repo.DeleteMap(ctx, "OTHER001", other.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("delete via wrong room: %v", err)
	}
	if n, _ := repo.CountMaps(ctx, "DEL00001"); n != 2 {
		t.Errorf("count %d after refused deletes, want 2", n)
	}
}

func TestRepository_DeleteRacingActivateKeepsActiveMap(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	mustRoom(t, repo, "RACE0001")
	base, _ := repo.CreateMap(ctx, "RACE0001", "base", models.MapPatch{})

	for i := 0; i < 25; i++ {
		if _, err := repo.ActivateMap(ctx, "RACE0001", base.ID); err != nil {
			t.Fatal(err)
		}
		target, err := repo.CreateMap(ctx, "RACE0001", "target", models.MapPatch{})
		if err != nil {
			t.Fatal(err)
		}

		var wg sync.WaitGroup
		var delErr, actErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, delErr = repo.DeleteMap(ctx, "RACE0001", target.ID)
		}()
		go func() {
			defer wg.Done()
			_, actErr = repo.ActivateMap(ctx, "RACE0001", target.ID)
		}()
		wg.Wait()

		active, err := repo.GetActiveMap(ctx, "RACE0001")
		if err != nil {
			t.Fatalf("round %d: no active map (delete %v, activate %v)", i, delErr, actErr)
		}
		switch {
		case delErr == nil:
			if !errors.Is(actErr, ErrNotFound) || active.ID != base.ID {
				t.Fatalf("round %d: deleted target but activate = %v, active %s", i, actErr, active.Name)
			}
		case errors.Is(delErr, ErrMapActive):
			if actErr != nil || active.ID != target.ID {
				t.Fatalf("round %d: activate = %v, active %s", i, actErr, active.Name)
			}
			if _, err := repo.ActivateMap(ctx, "RACE0001", base.ID); err != nil {
				t.Fatal(err)
			}
			if _, err := repo.DeleteMap(ctx, "RACE0001", target.ID); err != nil {
				t.Fatal(err)
			}
		default:
			t.Fatalf("round %d: delete = %v", i, delErr)
		}
	}
}
