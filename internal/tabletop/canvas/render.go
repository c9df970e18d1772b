package canvas

import (
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"

	"tabletop/internal/tabletop/models"
)

// ============================================================
// Rendering
// ============================================================

// Painter — поверхность, на которую выводится кадр. Кадр всегда рисуется с нуля,
// поэтому повторный вызов Render с тем же состоянием даёт те же пиксели.
type Painter interface {
	Begin(surface Size)
	DrawImage(img image.Image, t models.Transform, center Point)
	StrokeSegments(segments []Segment, style GridStyle)
}

// Render рисует изображение с трансформацией, затем сетку (если видима).
// Отсутствующее изображение просто пропускается.
func Render(p Painter, model *TransformModel, img image.Image, grid models.GridConfig) {
	surface := model.CanvasSize()
	p.Begin(surface)

	if img != nil && !model.ImageSize().Empty() {
		p.DrawImage(img, model.Transform(), model.ImageCenter())
	}

	if !grid.Visible {
		return
	}
	lines := ComputeGrid(model.Transform(), grid, surface)
	segments := lines.Segments(surface)
	if len(segments) == 0 {
		return
	}
	p.StrokeSegments(segments, StyleOf(grid))
}

// ============================================================
// Raster painter (fogleman/gg)
// ============================================================

type RasterPainter struct {
	Background color.Color
	dc         *gg.Context
}

func NewRasterPainter() *RasterPainter {
	return &RasterPainter{}
}

func (r *RasterPainter) Begin(surface Size) {
	w := int(math.Ceil(surface.Width))
	h := int(math.Ceil(surface.Height))
	if w <= 0 || h <= 0 {
		r.dc = nil
		return
	}
	r.dc = gg.NewContext(w, h)
	if r.Background != nil {
		r.dc.SetColor(r.Background)
		r.dc.Clear()
	}
}

func (r *RasterPainter) DrawImage(img image.Image, t models.Transform, center Point) {
	if r.dc == nil {
		return
	}
	r.dc.Push()
	defer r.dc.Pop()

	if t.Rotation != 0 {
		r.dc.RotateAbout(t.Rotation, center.X, center.Y)
	}
	r.dc.Translate(t.X, t.Y)
	r.dc.Scale(t.Scale, t.Scale)
	b := img.Bounds()
	r.dc.DrawImage(img, -b.Min.X, -b.Min.Y)
}

// StrokeSegments обводит все линии одним путём, чтобы пересечения не накапливали прозрачность.
func (r *RasterPainter) StrokeSegments(segments []Segment, style GridStyle) {
	if r.dc == nil || style.Opacity <= 0 || style.LineWidth <= 0 {
		return
	}
	r.dc.Push()
	defer r.dc.Pop()

	c := style.Color
	c.A = uint8(math.Round(float64(c.A) * style.Opacity))
	r.dc.SetColor(c)
	r.dc.SetLineWidth(style.LineWidth)
	r.dc.NewSubPath()
	for _, s := range segments {
		r.dc.MoveTo(s.X1, s.Y1)
		r.dc.LineTo(s.X2, s.Y2)
	}
	r.dc.Stroke()
}

// Image возвращает последний нарисованный кадр.
func (r *RasterPainter) Image() image.Image {
	if r.dc == nil {
		return image.NewNRGBA(image.Rect(0, 0, 0, 0))
	}
	return r.dc.Image()
}
