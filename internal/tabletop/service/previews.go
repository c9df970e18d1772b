package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/HugoSmits86/nativewebp"
	"golang.org/x/image/draw"

	"tabletop/internal/tabletop/canvas"
	"tabletop/internal/tabletop/models"
)

// ============================================================
// Previews
// ============================================================

const (
	FormatWebP = "webp"
	FormatPNG  = "png"

	DefaultPreviewWidth  = 800
	DefaultPreviewHeight = 600
	DefaultThumbnailSize = 256
	minPreviewSide       = 16
	maxPreviewSide       = 4096
)

// Preview — закодированное изображение, готовое к отдаче.
type Preview struct {
	Data        []byte
	ContentType string
	Cached      bool
}

// Previews рендерит карту так же, как клиентский холст, и кэширует результат на диске по ревизии карты.
type Previews struct {
	maps    *MapService
	storage *PreviewStorage
	mu      sync.Mutex
}

func NewPreviews(maps *MapService, storage *PreviewStorage) *Previews {
	return &Previews{maps: maps, storage: storage}
}

// Render возвращает превью карты mapID (или активной карты, если mapID пуст).
func (p *Previews) Render(ctx context.Context, roomCode, mapID string, width, height int, format string) (*Preview, error) {
	format, err := normalizeFormat(format)
	if err != nil {
		return nil, err
	}
	width = clampSide(width, DefaultPreviewWidth)
	height = clampSide(height, DefaultPreviewHeight)

	m, err := p.lookup(ctx, roomCode, mapID)
	if err != nil {
		return nil, err
	}

	path := p.storage.PreviewPath(m.RoomCode, m.ID, m.Revision, width, height, format)
	return p.cached(m, path, contentType(format), func() ([]byte, error) {
		img := RenderSnapshot(m.Snapshot(), width, height)
		var buf bytes.Buffer
		if err := Encode(&buf, img, format); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})
}

// Thumbnail — исходное изображение карты, вписанное в квадрат size x size.
func (p *Previews) Thumbnail(ctx context.Context, roomCode, mapID string, size int) (*Preview, error) {
	size = clampSide(size, DefaultThumbnailSize)
	m, err := p.lookup(ctx, roomCode, mapID)
	if err != nil {
		return nil, err
	}
	if m.ImageData == nil || *m.ImageData == "" {
		return nil, canvas.ErrNoImage
	}

	path := p.storage.ThumbnailPath(m.RoomCode, m.ID, m.Revision, size)
	return p.cached(m, path, contentType(FormatPNG), func() ([]byte, error) {
		src, _, err := canvas.DecodeImageData(*m.ImageData)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, Thumbnail(src, size)); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})
}

func (p *Previews) lookup(ctx context.Context, roomCode, mapID string) (*models.Map, error) {
	if mapID != "" {
		return p.maps.Get(ctx, roomCode, mapID)
	}
	m, err := p.maps.Active(ctx, roomCode)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrNoActiveMap
	}
	return m, nil
}

func (p *Previews) cached(m *models.Map, path, ctype string, render func() ([]byte, error)) (*Preview, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := p.storage.ReadFile(path)
	if err != nil {
		log.Printf("[PREVIEW] read %s: %v", path, err)
	}
	if data != nil {
		return &Preview{Data: data, ContentType: ctype, Cached: true}, nil
	}

	data, err = render()
	if err != nil {
		return nil, err
	}
	if err := p.storage.PruneMap(m.RoomCode, m.ID, m.Revision); err != nil {
		log.Printf("[PREVIEW] prune %s: %v", m.ID, err)
	}
	if err := p.storage.SaveFile(m.RoomCode, m.ID, path, data); err != nil {
		log.Printf("[PREVIEW] save %s: %v", path, err)
	}
	return &Preview{Data: data, ContentType: ctype}, nil
}

// ============================================================
// Rendering helpers
// ============================================================

// RenderSnapshot рисует снимок на поверхности width x height: изображение с трансформацией, затем сетка.
// Неразборчивое изображение пропускается, сетка всё равно рисуется.
func RenderSnapshot(snap models.MapSnapshot, width, height int) image.Image {
	painter := canvas.NewRasterPainter()
	viewer := canvas.NewViewer(canvas.StaticCapabilities, painter)
	if err := viewer.Load(snap); err != nil {
		log.Printf("[PREVIEW] %v", err)
	}
	viewer.Resize(0, 0, float64(width), float64(height))
	return painter.Image()
}

// Encode пишет изображение в формате webp (без потерь, nativewebp) или png.
func Encode(w io.Writer, img image.Image, format string) error {
	switch format {
	case FormatWebP:
		if err := nativewebp.Encode(w, img, nil); err != nil {
			return fmt.Errorf("webp encode: %w", err)
		}
		return nil
	case FormatPNG:
		if err := png.Encode(w, img); err != nil {
			return fmt.Errorf("png encode: %w", err)
		}
		return nil
	}
	return fmt.Errorf("%w: unsupported format %q", ErrInvalidInput, format)
}

// Thumbnail вписывает изображение в квадрат size x size с сохранением пропорций (Catmull-Rom).
func Thumbnail(src image.Image, size int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return image.NewNRGBA(image.Rect(0, 0, 0, 0))
	}
	scale := float64(size) / float64(max(w, h))
	if scale > 1 {
		scale = 1
	}
	newW := max(int(float64(w)*scale+0.5), 1)
	newH := max(int(float64(h)*scale+0.5), 1)

	dst := image.NewNRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

func normalizeFormat(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatWebP:
		return FormatWebP, nil
	case FormatPNG:
		return FormatPNG, nil
	}
	return "", fmt.Errorf("%w: format must be webp or png", ErrInvalidInput)
}

func contentType(format string) string {
	if format == FormatPNG {
		return "image/png"
	}
	return "image/webp"
}

func clampSide(v, def int) int {
	if v <= 0 {
		return def
	}
	return min(max(v, minPreviewSide), maxPreviewSide)
}
