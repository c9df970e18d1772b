package canvas

import (
	"image/color"
	"math"
	"strconv"
	"strings"

	"tabletop/internal/tabletop/models"
)

// ============================================================
// Grid Renderer
// ============================================================

// Segment — отрезок линии сетки в координатах поверхности.
type Segment struct {
	X1, Y1, X2, Y2 float64
}

// GridStyle — параметры обводки линий сетки.
type GridStyle struct {
	Color     color.NRGBA
	LineWidth float64
	Opacity   float64
}

// GridLines — позиции вертикальных и горизонтальных линий, отсортированные по возрастанию.
type GridLines struct {
	Vertical   []float64
	Horizontal []float64
}

// ComputeGrid вычисляет линии сетки по сдвигу изображения.
// Учитываются только X/Y: масштаб и поворот на сетку не влияют, клетка на экране всегда size пикселей.
func ComputeGrid(t models.Transform, grid models.GridConfig, canvas Size) GridLines {
	return GridLines{
		Vertical:   GridPositions(t.X, grid.OffsetX, grid.Size, canvas.Width),
		Horizontal: GridPositions(t.Y, grid.OffsetY, grid.Size, canvas.Height),
	}
}

// GridPositions возвращает координаты линий вдоль одной оси.
// start = (origin mod size) + offset, сведённый в одну клетку; линии идут от start с шагом size, пока < extent.
// Остаток берётся со знаком делимого, поэтому при отрицательном сдвиге первая линия может быть < 0.
func GridPositions(origin float64, offset, size int, extent float64) []float64 {
	if size <= 0 || extent <= 0 || !finite(origin) {
		return nil
	}
	step := float64(size)
	start := math.Mod(origin, step) + float64(offset)
	if start >= step || start <= -step {
		start = math.Mod(start, step)
	}

	out := make([]float64, 0, int(extent/step)+2)
	for i := 0; ; i++ {
		p := start + float64(i)*step
		if p >= extent {
			break
		}
		out = append(out, p)
	}
	return out
}

// Segments разворачивает позиции в отрезки на всю ширину/высоту поверхности.
func (g GridLines) Segments(canvas Size) []Segment {
	out := make([]Segment, 0, len(g.Vertical)+len(g.Horizontal))
	for _, x := range g.Vertical {
		out = append(out, Segment{X1: x, Y1: 0, X2: x, Y2: canvas.Height})
	}
	for _, y := range g.Horizontal {
		out = append(out, Segment{X1: 0, Y1: y, X2: canvas.Width, Y2: y})
	}
	return out
}

// StyleOf переводит конфигурацию сетки в стиль обводки. Непарсящийся цвет заменяется белым.
func StyleOf(grid models.GridConfig) GridStyle {
	c, ok := ParseHexColor(grid.Color)
	if !ok {
		c, _ = ParseHexColor(models.DefaultGridConfig().Color)
	}
	return GridStyle{
		Color:     c,
		LineWidth: float64(grid.LineWidth),
		Opacity:   clamp(grid.Opacity, 0, 1),
	}
}

// NormalizeGrid подставляет значения по умолчанию для недопустимых полей.
func NormalizeGrid(grid models.GridConfig) models.GridConfig {
	def := models.DefaultGridConfig()
	if grid.Size <= 0 {
		grid.Size = def.Size
	}
	if !finite(grid.Opacity) {
		grid.Opacity = def.Opacity
	}
	grid.Opacity = clamp(grid.Opacity, 0, 1)
	if grid.LineWidth <= 0 {
		grid.LineWidth = def.LineWidth
	}
	if _, ok := ParseHexColor(grid.Color); !ok {
		grid.Color = def.Color
	}
	return grid
}

// ParseHexColor разбирает #rgb, #rrggbb и #rrggbbaa.
func ParseHexColor(s string) (color.NRGBA, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch len(s) {
	case 3:
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]}) + "ff"
	case 6:
		s += "ff"
	case 8:
	default:
		return color.NRGBA{}, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, false
	}
	return color.NRGBA{
		R: uint8(v >> 24),
		G: uint8(v >> 16),
		B: uint8(v >> 8),
		A: uint8(v),
	}, true
}
