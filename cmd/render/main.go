// cmd/render — offline map render: a snapshot JSON file or a room's map from the database.
//
// Usage:
//
//	go run ./cmd/render -snapshot map.json -out map.webp
//	go run ./cmd/render -db data/db/tabletop.db -room ABCD1234 [-map <id>] -width 1280 -height 720 -out map.png
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tabletop/internal/tabletop/models"
	"tabletop/internal/tabletop/repository"
	"tabletop/internal/tabletop/service"
)

func main() {
	snapshotFile := flag.String("snapshot", "", "Path to a map snapshot JSON file")
	dbPath := flag.String("db", "", "Path to the SQLite database (instead of -snapshot)")
	room := flag.String("room", "", "Room code (with -db)")
	mapID := flag.String("map", "", "Map id (with -db, default: active map)")
	width := flag.Int("width", service.DefaultPreviewWidth, "Surface width in pixels")
	height := flag.Int("height", service.DefaultPreviewHeight, "Surface height in pixels")
	out := flag.String("out", "map.webp", "Output file (.webp or .png)")

	flag.Parse()

	var (
		snap models.MapSnapshot
		err  error
	)
	switch {
	case *snapshotFile != "":
		snap, err = loadSnapshotFile(*snapshotFile)
	case *dbPath != "" && *room != "":
		snap, err = loadSnapshotDB(*dbPath, *room, *mapID)
	default:
		fmt.Fprintln(os.Stderr, "Error: use -snapshot FILE or -db PATH -room CODE")
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading map: %v\n", err)
		os.Exit(1)
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(*out)), ".")
	if format != service.FormatPNG {
		format = service.FormatWebP
	}

	start := time.Now()
	img := service.RenderSnapshot(snap, *width, *height)

	f, err := os.Create(*out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating %s: %v\n", *out, err)
		os.Exit(1)
	}
	if err := service.Encode(f, img, format); err != nil {
		f.Close()
		fmt.Fprintf(os.Stderr, "Error encoding: %v\n", err)
		os.Exit(1)
	}
	if err := f.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", *out, err)
		os.Exit(1)
	}

	b := img.Bounds()
	fmt.Printf("Rendered %dx%d %s → %s in %v\n", b.Dx(), b.Dy(), format, *out, time.Since(start).Round(time.Millisecond))
}

// loadSnapshotFile читает снимок; отсутствующие поля получают значения по умолчанию.
func loadSnapshotFile(path string) (models.MapSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.MapSnapshot{}, err
	}
	snap := models.DefaultSnapshot()
	if err := json.Unmarshal(data, &snap); err != nil {
		return models.MapSnapshot{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return snap, nil
}

func loadSnapshotDB(dbPath, room, mapID string) (models.MapSnapshot, error) {
	db, err := repository.OpenSQLite(dbPath)
	if err != nil {
		return models.MapSnapshot{}, err
	}
	defer db.Close()

	ctx := context.Background()
	repo := repository.New(db)
	var m *models.Map
	if mapID != "" {
		m, err = repo.GetMap(ctx, room, mapID)
	} else {
		m, err = repo.GetActiveMap(ctx, room)
	}
	if err != nil {
		return models.MapSnapshot{}, fmt.Errorf("room %s: %w", room, err)
	}
	return m.Snapshot(), nil
}
