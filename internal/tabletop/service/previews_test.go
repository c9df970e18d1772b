package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"os"
	"strconv"
	"strings"
	"testing"

	"tabletop/internal/tabletop/canvas"
	"tabletop/internal/tabletop/models"
)

func pngDataURL(t *testing.T, w, h int, c color.Color) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

// mapWithImage creates a room whose active map shows a w x h red image at the origin.
func (e *testEnv) mapWithImage(t *testing.T, w, h int) (*models.Room, *models.Map) {
	t.Helper()
	ctx := context.Background()
	room, err := e.rooms.Create(ctx, "Preview", "secret")
	if err != nil {
		t.Fatal(err)
	}
	data := pngDataURL(t, w, h, color.NRGBA{R: 255, A: 255})
	tr := models.DefaultTransform()
	grid := models.DefaultGridConfig()
	grid.Visible = false
	m, err := e.maps.Create(ctx, room.Code, Actor{Password: "secret"}, "Image", models.MapPatch{
		ImageData:      &data,
		ImageTransform: &tr,
		GridConfig:     &grid,
	})
	if err != nil {
		t.Fatal(err)
	}
	return room, m
}

func TestPreviews_RenderPNGIsCached(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room, m := env.mapWithImage(t, 20, 20)

	first, err := env.previews.Render(ctx, room.Code, "", 64, 48, "png")
	if err != nil {
		t.Fatal(err)
	}
	if first.Cached || first.ContentType != "image/png" {
		t.Errorf("first render %+v", first.ContentType)
	}
	img, err := png.Decode(bytes.NewReader(first.Data))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
		t.Errorf("bounds %v", b)
	}
	if r, _, _, a := img.At(5, 5).RGBA(); r>>8 != 255 || a>>8 != 255 {
		t.Errorf("pixel inside image not red: %v", img.At(5, 5))
	}
	if _, _, _, a := img.At(40, 40).RGBA(); a != 0 {
		t.Errorf("pixel outside image not transparent: %v", img.At(40, 40))
	}

	second, err := env.previews.Render(ctx, room.Code, m.ID, 64, 48, "PNG")
	if err != nil {
		t.Fatal(err)
	}
	if !second.Cached || !bytes.Equal(second.Data, first.Data) {
		t.Error("second render not served from cache")
	}
}

func TestPreviews_RenderWebPDefault(t *testing.T) {
	env := newTestEnv(t)
	room, m := env.mapWithImage(t, 10, 10)

	p, err := env.previews.Render(context.Background(), room.Code, "", 0, 0, "")
	if err != nil {
		t.Fatal(err)
	}
	if p.ContentType != "image/webp" {
		t.Errorf("content type %q", p.ContentType)
	}
	if len(p.Data) < 12 || string(p.Data[:4]) != "RIFF" || string(p.Data[8:12]) != "WEBP" {
		t.Errorf("not a webp file: % x", p.Data[:min(len(p.Data), 12)])
	}

	path := env.storage.PreviewPath(room.Code, m.ID, m.Revision, DefaultPreviewWidth, DefaultPreviewHeight, FormatWebP)
	if _, err := os.Stat(path); err != nil {
		t.Errorf("default-size preview not stored: %v", err)
	}
}

func TestPreviews_RevisionInvalidatesCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room, m := env.mapWithImage(t, 10, 10)

	if _, err := env.previews.Render(ctx, room.Code, m.ID, 32, 32, "png"); err != nil {
		t.Fatal(err)
	}
	grid := models.DefaultGridConfig()
	updated, err := env.maps.Update(ctx, room.Code, m.ID, Actor{Password: "secret"}, models.MapPatch{GridConfig: &grid})
	if err != nil {
		t.Fatal(err)
	}

	p, err := env.previews.Render(ctx, room.Code, m.ID, 32, 32, "png")
	if err != nil {
		t.Fatal(err)
	}
	if p.Cached {
		t.Error("stale preview served after update")
	}

	entries, err := os.ReadDir(env.storage.MapDir(room.Code, m.ID))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "r"+strconv.Itoa(updated.Revision)+"_") {
			t.Errorf("old revision file left: %s", e.Name())
		}
	}
}

func TestPreviews_Thumbnail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room, m := env.mapWithImage(t, 400, 200)

	p, err := env.previews.Thumbnail(ctx, room.Code, m.ID, 100)
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(p.Data))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 100 || b.Dy() != 50 {
		t.Errorf("thumbnail bounds %v, want 100x50", b)
	}

	again, _ := env.previews.Thumbnail(ctx, room.Code, m.ID, 100)
	if again == nil || !again.Cached {
		t.Error("thumbnail not cached")
	}
}

func TestPreviews_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room, m := env.room(t)
	if _, err := env.previews.Thumbnail(ctx, room.Code, m.ID, 64); !errors.Is(err, canvas.ErrNoImage) {
		t.Errorf("thumbnail without image: %v", err)
	}
	if _, err := env.previews.Render(ctx, room.Code, m.ID, 64, 64, "gif"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad format: %v", err)
	}
	if _, err := env.previews.Render(ctx, room.Code, "missing", 64, 64, "png"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing map: %v", err)
	}

	empty, _ := env.rooms.Create(ctx, "Empty", "pw")
	if _, err := env.previews.Render(ctx, empty.Code, "", 64, 64, "png"); !errors.Is(err, ErrNoActiveMap) {
		t.Errorf("room without maps: %v", err)
	}

	// Карта без изображения всё равно рендерится: только сетка.
	p, err := env.previews.Render(ctx, room.Code, m.ID, 64, 64, "png")
	if err != nil || len(p.Data) == 0 {
		t.Errorf("grid-only render: %v", err)
	}
}

// hugePNG — только заголовок PNG, объявляющий изображение w x h.
func hugePNG(w, h uint32) string {
	var ihdr bytes.Buffer
	ihdr.WriteString("IHDR")
	binary.Write(&ihdr, binary.BigEndian, w)
	binary.Write(&ihdr, binary.BigEndian, h)
	ihdr.Write([]byte{8, 6, 0, 0, 0})

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	binary.Write(&buf, binary.BigEndian, uint32(ihdr.Len()-4))
	buf.Write(ihdr.Bytes())
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(ihdr.Bytes()))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestMapService_RejectsOversizedImage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room, m := env.room(t)
	admin := Actor{Password: "secret"}

	huge := hugePNG(12000, 12000)
	if _, err := env.maps.Create(ctx, room.Code, admin, "Huge", models.MapPatch{ImageData: &huge}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("create with huge image: %v", err)
	}
	if _, err := env.maps.Update(ctx, room.Code, m.ID, admin, models.MapPatch{ImageData: &huge}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("update with huge image: %v", err)
	}
	stored, _ := env.maps.Get(ctx, room.Code, m.ID)
	if stored.ImageData != nil {
		t.Error("huge image stored")
	}
}

func TestPreviews_StoredOversizedImageIsNotDecoded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room, m := env.room(t)

	// Запись мимо сервиса, как если бы изображение попало в базу до проверки.
	huge := hugePNG(12000, 12000)
	if _, err := env.repo.UpdateMap(ctx, room.Code, m.ID, models.MapPatch{ImageData: &huge}); err != nil {
		t.Fatal(err)
	}

	if _, err := env.previews.Thumbnail(ctx, room.Code, m.ID, 64); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("thumbnail of huge image: %v", err)
	}
	p, err := env.previews.Render(ctx, room.Code, m.ID, 64, 64, "png")
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(p.Data))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 64 {
		t.Errorf("preview bounds %v", b)
	}
}

func TestThumbnailNeverUpscales(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 10, 6))
	if b := Thumbnail(src, 256).Bounds(); b.Dx() != 10 || b.Dy() != 6 {
		t.Errorf("bounds %v", b)
	}
	tall := image.NewNRGBA(image.Rect(0, 0, 300, 900))
	if b := Thumbnail(tall, 90).Bounds(); b.Dx() != 30 || b.Dy() != 90 {
		t.Errorf("tall bounds %v", b)
	}
}

func TestClampSide(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, 800}, {-5, 800}, {5, minPreviewSide}, {300, 300}, {100000, maxPreviewSide},
	}
	for _, tt := range tests {
		if got := clampSide(tt.in, 800); got != tt.want {
			t.Errorf("clampSide(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
