package models

// ============================================================
// Map Snapshot
// ============================================================

// Transform — сдвиг, масштаб и поворот изображения карты (поворот в радианах).
type Transform struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Scale    float64 `json:"scale"`
	Rotation float64 `json:"rotation"`
}

func DefaultTransform() Transform {
	return Transform{X: 0, Y: 0, Scale: 1, Rotation: 0}
}

// GridConfig — параметры сетки поверх карты.
type GridConfig struct {
	Size      int     `json:"size"`
	Opacity   float64 `json:"opacity"`
	Color     string  `json:"color"`
	LineWidth int     `json:"lineWidth"`
	Visible   bool    `json:"visible"`
	OffsetX   int     `json:"offsetX"`
	OffsetY   int     `json:"offsetY"`
}

func DefaultGridConfig() GridConfig {
	return GridConfig{
		Size:      50,
		Opacity:   0.5,
		Color:     "#ffffff",
		LineWidth: 1,
		Visible:   true,
		OffsetX:   0,
		OffsetY:   0,
	}
}

// Distance units.
const (
	UnitFeet   = "feet"
	UnitMeters = "meters"
	UnitKm     = "km"
	UnitMiles  = "miles"
)

// DistanceConfig описывает, сколько единиц длины в одной клетке. Только для отображения.
type DistanceConfig struct {
	SquareSize float64 `json:"squareSize"`
	Unit       string  `json:"unit"`
}

func DefaultDistanceConfig() DistanceConfig {
	return DistanceConfig{SquareSize: 5, Unit: UnitFeet}
}

// ValidUnit сообщает, поддерживается ли единица измерения.
func ValidUnit(unit string) bool {
	switch unit {
	case UnitFeet, UnitMeters, UnitKm, UnitMiles:
		return true
	}
	return false
}

// MapSnapshot — сериализованное состояние карты, которым обмениваются клиенты и хранилище.
type MapSnapshot struct {
	ImageData      *string        `json:"imageData"`
	ImageTransform Transform      `json:"imageTransform"`
	GridConfig     GridConfig     `json:"gridConfig"`
	DistanceConfig DistanceConfig `json:"distanceConfig"`
}

func DefaultSnapshot() MapSnapshot {
	return MapSnapshot{
		ImageTransform: DefaultTransform(),
		GridConfig:     DefaultGridConfig(),
		DistanceConfig: DefaultDistanceConfig(),
	}
}

// ============================================================
// Map Model
// ============================================================

type Map struct {
	ID             string         `json:"id"`
	RoomCode       string         `json:"-"`
	Name           string         `json:"name"`
	ImageData      *string        `json:"imageData"`
	ImageTransform Transform      `json:"imageTransform"`
	GridConfig     GridConfig     `json:"gridConfig"`
	DistanceConfig DistanceConfig `json:"distanceConfig"`
	IsActive       bool           `json:"isActive"`
	DisplayOrder   int            `json:"displayOrder"`
	Revision       int            `json:"revision"`
	CreatedAt      string         `json:"createdAt"`
	UpdatedAt      string         `json:"updatedAt"`
}

func (m *Map) Snapshot() MapSnapshot {
	return MapSnapshot{
		ImageData:      m.ImageData,
		ImageTransform: m.ImageTransform,
		GridConfig:     m.GridConfig,
		DistanceConfig: m.DistanceConfig,
	}
}

// MapPatch — частичное обновление карты; nil поля сохраняют текущее значение.
type MapPatch struct {
	Name           *string         `json:"name"`
	ImageData      *string         `json:"imageData"`
	ImageTransform *Transform      `json:"imageTransform"`
	GridConfig     *GridConfig     `json:"gridConfig"`
	DistanceConfig *DistanceConfig `json:"distanceConfig"`
}

// PatchFromSnapshot превращает полный снимок в патч, не трогая имя карты.
func PatchFromSnapshot(s MapSnapshot) MapPatch {
	t, g, d := s.ImageTransform, s.GridConfig, s.DistanceConfig
	return MapPatch{
		ImageData:      s.ImageData,
		ImageTransform: &t,
		GridConfig:     &g,
		DistanceConfig: &d,
	}
}
