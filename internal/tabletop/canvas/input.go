package canvas

// ============================================================
// Input Controller
// ============================================================

const (
	WheelZoomOut = 0.9
	WheelZoomIn  = 1.1
)

type EventType string

const (
	PointerDown  EventType = "pointerdown"
	PointerMove  EventType = "pointermove"
	PointerUp    EventType = "pointerup"
	PointerLeave EventType = "pointerleave"
	Wheel        EventType = "wheel"
	TouchStart   EventType = "touchstart"
	TouchMove    EventType = "touchmove"
	TouchEnd     EventType = "touchend"
)

// InputEvent — событие указателя в клиентских координатах (как clientX/clientY в браузере).
type InputEvent struct {
	Type    EventType `json:"type"`
	X       float64   `json:"x"`
	Y       float64   `json:"y"`
	DeltaY  float64   `json:"deltaY,omitempty"`
	Touches []Point   `json:"touches,omitempty"`
}

type DragState int

const (
	Idle DragState = iota
	Dragging
)

func (s DragState) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}

// Capabilities — что разрешено конкретному экземпляру холста.
// Режим только для чтения просто не включает соответствующие обработчики.
type Capabilities struct {
	Draggable        bool `json:"draggable"`
	Zoomable         bool `json:"zoomable"`
	EditableControls bool `json:"editableControls"`
}

var (
	EditorCapabilities = Capabilities{Draggable: true, Zoomable: true, EditableControls: true}
	ViewerCapabilities = Capabilities{Draggable: true, Zoomable: true}
	StaticCapabilities = Capabilities{}
)

// Result сообщает вызывающему, изменилось ли состояние и нужно ли подавить
// поведение по умолчанию (прокрутку страницы).
type Result struct {
	Changed        bool
	PreventDefault bool
}

// InputController — автомат {idle, dragging}, переводящий события указателя в изменения TransformModel.
type InputController struct {
	model    *TransformModel
	caps     Capabilities
	state    DragState
	last     Point
	origin   Point
	onChange func()
}

func NewInputController(model *TransformModel, caps Capabilities) *InputController {
	return &InputController{model: model, caps: caps}
}

// SetBounds задаёт положение и размер поверхности в клиентских координатах.
func (c *InputController) SetBounds(left, top, width, height float64) {
	c.origin = Point{X: left, Y: top}
	c.model.SetCanvasSize(width, height)
}

// OnChange регистрирует перерисовку после каждой мутации.
func (c *InputController) OnChange(fn func()) {
	c.onChange = fn
}

func (c *InputController) State() DragState {
	return c.state
}

// Handle обрабатывает одно событие.
func (c *InputController) Handle(ev InputEvent) Result {
	var res Result

	switch ev.Type {
	case PointerDown:
		c.begin(Point{X: ev.X, Y: ev.Y})
	case PointerMove:
		res.Changed = c.drag(Point{X: ev.X, Y: ev.Y})
	case PointerUp, PointerLeave, TouchEnd:
		c.state = Idle
	case Wheel:
		res.PreventDefault = true
		res.Changed = c.wheel(ev)
	case TouchStart:
		if len(ev.Touches) == 1 {
			c.begin(ev.Touches[0])
		}
	case TouchMove:
		res.PreventDefault = true
		if len(ev.Touches) == 1 {
			res.Changed = c.drag(ev.Touches[0])
		}
	}

	if res.Changed && c.onChange != nil {
		c.onChange()
	}
	return res
}

func (c *InputController) begin(p Point) {
	if !c.caps.Draggable {
		return
	}
	c.state = Dragging
	c.last = p
}

func (c *InputController) drag(p Point) bool {
	if c.state != Dragging {
		return false
	}
	dx := p.X - c.last.X
	dy := p.Y - c.last.Y
	c.last = p
	if dx == 0 && dy == 0 {
		return false
	}
	c.model.Pan(dx, dy)
	return true
}

// wheel работает независимо от состояния перетаскивания.
func (c *InputController) wheel(ev InputEvent) bool {
	if !c.caps.Zoomable {
		return false
	}
	factor := WheelZoomIn
	if ev.DeltaY > 0 {
		factor = WheelZoomOut
	}
	before := c.model.Transform()
	c.model.ZoomAt(ev.X-c.origin.X, ev.Y-c.origin.Y, factor)
	return c.model.Transform() != before
}
