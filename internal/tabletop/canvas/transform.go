package canvas

import (
	"math"

	"tabletop/internal/tabletop/models"
)

// ============================================================
// Transform Model
// ============================================================

const (
	ZoomMin  = 0.1
	ZoomMax  = 3.0
	ZoomStep = 0.1
)

// Point — точка в координатах поверхности (пиксели).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size — размеры поверхности или изображения в пикселях.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// TransformModel хранит сдвиг/масштаб/поворот изображения и изменяет их так,
// чтобы точка под якорем оставалась на месте.
type TransformModel struct {
	t      models.Transform
	canvas Size
	image  Size
}

func NewTransformModel(t models.Transform) *TransformModel {
	m := &TransformModel{}
	m.Load(t)
	return m
}

// Load заменяет состояние целиком (например, из сохранённого снимка).
// Масштаб вне допустимого диапазона зажимается, нечисловые значения сбрасываются.
func (m *TransformModel) Load(t models.Transform) {
	def := models.DefaultTransform()
	if !finite(t.X) {
		t.X = def.X
	}
	if !finite(t.Y) {
		t.Y = def.Y
	}
	if !finite(t.Scale) || t.Scale <= 0 {
		t.Scale = def.Scale
	}
	if !finite(t.Rotation) {
		t.Rotation = def.Rotation
	}
	t.Scale = clamp(t.Scale, ZoomMin, ZoomMax)
	m.t = t
}

func (m *TransformModel) Transform() models.Transform {
	return m.t
}

// SetCanvasSize вызывается при каждом изменении размеров поверхности.
func (m *TransformModel) SetCanvasSize(width, height float64) {
	m.canvas = Size{Width: math.Max(width, 0), Height: math.Max(height, 0)}
}

func (m *TransformModel) CanvasSize() Size {
	return m.canvas
}

// SetImageSize задаёт натуральный размер изображения; нулевой размер означает «нет изображения».
func (m *TransformModel) SetImageSize(width, height float64) {
	m.image = Size{Width: math.Max(width, 0), Height: math.Max(height, 0)}
}

func (m *TransformModel) ImageSize() Size {
	return m.image
}

// Pan сдвигает изображение без ограничений.
func (m *TransformModel) Pan(deltaX, deltaY float64) {
	if !finite(deltaX) || !finite(deltaY) {
		return
	}
	m.t.X += deltaX
	m.t.Y += deltaY
}

// ZoomAt масштабирует относительно якоря и возвращает фактически применённый коэффициент
// (после зажатия в [ZoomMin, ZoomMax] он может отличаться от запрошенного).
// Нулевой или отрицательный коэффициент зажимается до ZoomMin.
func (m *TransformModel) ZoomAt(anchorX, anchorY, factor float64) float64 {
	if !finite(factor) || !finite(anchorX) || !finite(anchorY) {
		return 1
	}
	return m.scaleTo(m.t.Scale*factor, anchorX, anchorY)
}

// SetScale — абсолютный масштаб в процентах (ползунок), якорь всегда в центре поверхности.
func (m *TransformModel) SetScale(percent float64) {
	if !finite(percent) {
		return
	}
	m.scaleTo(percent/100, m.canvas.Width/2, m.canvas.Height/2)
}

// ScalePercent возвращает масштаб в процентах, как его показывает ползунок.
func (m *TransformModel) ScalePercent() int {
	return int(math.Round(m.t.Scale * 100))
}

func (m *TransformModel) scaleTo(scale, anchorX, anchorY float64) float64 {
	newScale := clamp(scale, ZoomMin, ZoomMax)
	ratio := newScale / m.t.Scale
	m.t.X = anchorX - (anchorX-m.t.X)*ratio
	m.t.Y = anchorY - (anchorY-m.t.Y)*ratio
	m.t.Scale = newScale
	return ratio
}

// SetRotation принимает градусы, хранит радианы. X/Y не меняются.
func (m *TransformModel) SetRotation(degrees float64) {
	if !finite(degrees) {
		return
	}
	m.t.Rotation = degrees * math.Pi / 180
}

func (m *TransformModel) RotationDegrees() float64 {
	return m.t.Rotation * 180 / math.Pi
}

// Reset возвращает масштаб 1 и нулевой поворот, затем центрирует изображение.
func (m *TransformModel) Reset() {
	m.t.Scale = 1
	m.t.Rotation = 0
	m.CenterImage()
}

// CenterImage ставит масштабированный прямоугольник изображения в центр поверхности.
// Без изображения ничего не делает.
func (m *TransformModel) CenterImage() {
	if m.image.Empty() {
		return
	}
	m.t.X = (m.canvas.Width - m.image.Width*m.t.Scale) / 2
	m.t.Y = (m.canvas.Height - m.image.Height*m.t.Scale) / 2
}

// ImageCenter — центр масштабированного прямоугольника изображения, вокруг него выполняется поворот.
func (m *TransformModel) ImageCenter() Point {
	return Point{
		X: m.t.X + m.image.Width*m.t.Scale/2,
		Y: m.t.Y + m.image.Height*m.t.Scale/2,
	}
}

// ============================================================
// Coordinate mapping
// ============================================================

// ImageToCanvas переводит точку изображения (в его пикселях) в координаты поверхности:
// масштаб, сдвиг, затем поворот вокруг центра изображения.
func (m *TransformModel) ImageToCanvas(p Point) Point {
	x := m.t.X + p.X*m.t.Scale
	y := m.t.Y + p.Y*m.t.Scale
	if m.t.Rotation == 0 {
		return Point{X: x, Y: y}
	}
	c := m.ImageCenter()
	return rotateAbout(Point{X: x, Y: y}, c, m.t.Rotation)
}

// CanvasToImage — обратное преобразование для указателя.
func (m *TransformModel) CanvasToImage(p Point) Point {
	if m.t.Rotation != 0 {
		p = rotateAbout(p, m.ImageCenter(), -m.t.Rotation)
	}
	return Point{
		X: (p.X - m.t.X) / m.t.Scale,
		Y: (p.Y - m.t.Y) / m.t.Scale,
	}
}

func rotateAbout(p, c Point, angle float64) Point {
	sin, cos := math.Sincos(angle)
	dx := p.X - c.X
	dy := p.Y - c.Y
	return Point{
		X: c.X + dx*cos - dy*sin,
		Y: c.Y + dx*sin + dy*cos,
	}
}

func clamp(val, min, max float64) float64 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
