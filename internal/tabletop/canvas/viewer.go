package canvas

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"

	"tabletop/internal/tabletop/models"
)

// ============================================================
// Viewer (view-model)
// ============================================================

var ErrReadOnly = errors.New("controls are read-only")

// Viewer — единый компонент холста для редактора и для зрителя.
// Состояние живёт здесь; элементы управления только читают его через Controls
// и пишут через сеттеры.
type Viewer struct {
	caps      Capabilities
	model     *TransformModel
	input     *InputController
	grid      models.GridConfig
	distance  models.DistanceConfig
	imageData *string
	img       image.Image
	painter   Painter
	listeners []func(models.MapSnapshot)
}

// NewViewer создаёт холст; painter может быть nil, если кадры не нужны.
func NewViewer(caps Capabilities, painter Painter) *Viewer {
	v := &Viewer{
		caps:     caps,
		model:    NewTransformModel(models.DefaultTransform()),
		grid:     models.DefaultGridConfig(),
		distance: models.DefaultDistanceConfig(),
		painter:  painter,
	}
	v.input = NewInputController(v.model, caps)
	v.input.OnChange(v.changed)
	return v
}

func (v *Viewer) Capabilities() Capabilities {
	return v.caps
}

func (v *Viewer) Model() *TransformModel {
	return v.model
}

func (v *Viewer) Grid() models.GridConfig {
	return v.grid
}

func (v *Viewer) Image() image.Image {
	return v.img
}

// OnChange подписывает обработчик на локальные изменения (перетаскивание, зум, контролы).
// Загрузка снимка извне обработчики не вызывает.
func (v *Viewer) OnChange(fn func(models.MapSnapshot)) {
	v.listeners = append(v.listeners, fn)
}

// Load полностью заменяет состояние снимком. Если изображение не декодируется,
// холст продолжает работать без него, а ошибка возвращается вызывающему.
func (v *Viewer) Load(s models.MapSnapshot) error {
	v.model.Load(s.ImageTransform)
	v.grid = NormalizeGrid(s.GridConfig)
	v.distance = normalizeDistance(s.DistanceConfig)
	v.imageData = s.ImageData
	v.img = nil
	v.model.SetImageSize(0, 0)

	var err error
	if s.ImageData != nil && *s.ImageData != "" {
		var img image.Image
		img, _, err = DecodeImageData(*s.ImageData)
		if err == nil {
			v.setDecoded(img)
		} else {
			err = fmt.Errorf("load snapshot image: %w", err)
		}
	}

	v.Render()
	return err
}

func (v *Viewer) Snapshot() models.MapSnapshot {
	return models.MapSnapshot{
		ImageData:      v.imageData,
		ImageTransform: v.model.Transform(),
		GridConfig:     v.grid,
		DistanceConfig: v.distance,
	}
}

// Resize сообщает положение и размер поверхности в клиентских координатах.
func (v *Viewer) Resize(left, top, width, height float64) {
	v.input.SetBounds(left, top, width, height)
	v.Render()
}

// Handle передаёт событие указателя контроллеру ввода.
func (v *Viewer) Handle(ev InputEvent) Result {
	return v.input.Handle(ev)
}

func (v *Viewer) Render() {
	if v.painter == nil {
		return
	}
	Render(v.painter, v.model, v.img, v.grid)
}

// ============================================================
// Controls
// ============================================================

// Controls — проекция состояния для элементов управления.
type Controls struct {
	ScalePercent       int     `json:"scalePercent"`
	RotationDegrees    float64 `json:"rotationDegrees"`
	GridSize           int     `json:"gridSize"`
	GridOpacityPercent int     `json:"gridOpacityPercent"`
	GridColor          string  `json:"gridColor"`
	GridLineWidth      int     `json:"gridLineWidth"`
	GridVisible        bool    `json:"gridVisible"`
	GridOffsetX        int     `json:"gridOffsetX"`
	GridOffsetY        int     `json:"gridOffsetY"`
	SquareSize         float64 `json:"squareSize"`
	Unit               string  `json:"unit"`
}

func (v *Viewer) Controls() Controls {
	return Controls{
		ScalePercent:       v.model.ScalePercent(),
		RotationDegrees:    math.Round(v.model.RotationDegrees()*100) / 100,
		GridSize:           v.grid.Size,
		GridOpacityPercent: int(math.Round(v.grid.Opacity * 100)),
		GridColor:          v.grid.Color,
		GridLineWidth:      v.grid.LineWidth,
		GridVisible:        v.grid.Visible,
		GridOffsetX:        v.grid.OffsetX,
		GridOffsetY:        v.grid.OffsetY,
		SquareSize:         v.distance.SquareSize,
		Unit:               v.distance.Unit,
	}
}

// SetImage ставит новое изображение (загрузка файла) и центрирует его.
func (v *Viewer) SetImage(data string) error {
	if !v.caps.EditableControls {
		return ErrReadOnly
	}
	img, _, err := DecodeImageData(data)
	if err != nil {
		return err
	}
	v.imageData = &data
	v.setDecoded(img)
	v.model.CenterImage()
	v.changed()
	return nil
}

func (v *Viewer) SetScalePercent(raw string) error {
	return v.control(func() {
		if f, ok := parseFloat(raw); ok {
			v.model.SetScale(f)
		}
	})
}

func (v *Viewer) SetRotationDegrees(raw string) error {
	return v.control(func() {
		if f, ok := parseFloat(raw); ok {
			v.model.SetRotation(f)
		}
	})
}

func (v *Viewer) ResetImage() error {
	return v.control(v.model.Reset)
}

func (v *Viewer) SetGridSize(raw string) error {
	return v.control(func() {
		if n, ok := parseInt(raw); ok && n > 0 {
			v.grid.Size = n
		}
	})
}

// SetGridOpacity принимает проценты 0..100.
func (v *Viewer) SetGridOpacity(raw string) error {
	return v.control(func() {
		if f, ok := parseFloat(raw); ok {
			v.grid.Opacity = clamp(f/100, 0, 1)
		}
	})
}

func (v *Viewer) SetGridColor(raw string) error {
	return v.control(func() {
		if _, ok := ParseHexColor(raw); ok {
			v.grid.Color = strings.TrimSpace(raw)
		}
	})
}

func (v *Viewer) SetGridLineWidth(raw string) error {
	return v.control(func() {
		if n, ok := parseInt(raw); ok && n > 0 {
			v.grid.LineWidth = n
		}
	})
}

func (v *Viewer) SetGridVisible(visible bool) error {
	return v.control(func() {
		v.grid.Visible = visible
	})
}

func (v *Viewer) SetGridOffsetX(raw string) error {
	return v.control(func() {
		if n, ok := parseInt(raw); ok {
			v.grid.OffsetX = n
		}
	})
}

func (v *Viewer) SetGridOffsetY(raw string) error {
	return v.control(func() {
		if n, ok := parseInt(raw); ok {
			v.grid.OffsetY = n
		}
	})
}

func (v *Viewer) SetDistance(rawSquareSize, unit string) error {
	return v.control(func() {
		if f, ok := parseFloat(rawSquareSize); ok && f > 0 {
			v.distance.SquareSize = f
		}
		if models.ValidUnit(unit) {
			v.distance.Unit = unit
		}
	})
}

func (v *Viewer) control(apply func()) error {
	if !v.caps.EditableControls {
		return ErrReadOnly
	}
	apply()
	v.changed()
	return nil
}

func (v *Viewer) changed() {
	v.Render()
	if len(v.listeners) == 0 {
		return
	}
	snap := v.Snapshot()
	for _, fn := range v.listeners {
		fn(snap)
	}
}

func (v *Viewer) setDecoded(img image.Image) {
	v.img = img
	b := img.Bounds()
	v.model.SetImageSize(float64(b.Dx()), float64(b.Dy()))
}

func normalizeDistance(d models.DistanceConfig) models.DistanceConfig {
	def := models.DefaultDistanceConfig()
	if !finite(d.SquareSize) || d.SquareSize <= 0 {
		d.SquareSize = def.SquareSize
	}
	if !models.ValidUnit(d.Unit) {
		d.Unit = def.Unit
	}
	return d
}

// NormalizeSnapshot применяет те же правила подстановки, что и Viewer.Load.
func NormalizeSnapshot(s models.MapSnapshot) models.MapSnapshot {
	m := NewTransformModel(s.ImageTransform)
	s.ImageTransform = m.Transform()
	s.GridConfig = NormalizeGrid(s.GridConfig)
	s.DistanceConfig = normalizeDistance(s.DistanceConfig)
	return s
}

// parseInt ведёт себя как parseInt в браузере: берёт ведущее целое ("12px" -> 12).
func parseInt(raw string) (int, bool) {
	s := strings.TrimSpace(raw)
	end := 0
	for end < len(s) {
		ch := s[end]
		if (ch == '-' || ch == '+') && end == 0 {
			end++
			continue
		}
		if ch < '0' || ch > '9' {
			break
		}
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseFloat(raw string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || !finite(f) {
		return 0, false
	}
	return f, true
}
