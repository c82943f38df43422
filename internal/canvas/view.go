package canvas

// Tool is the current interpretation of pointer input.
type Tool string

const (
	ToolSelect Tool = "select"
	ToolHand   Tool = "hand"
	ToolZoom   Tool = "zoom"
	ToolText   Tool = "text"
	ToolFrame  Tool = "frame"
)

func (t Tool) Valid() bool {
	switch t {
	case ToolSelect, ToolHand, ToolZoom, ToolText, ToolFrame:
		return true
	default:
		return false
	}
}

// Zoom bounds, in percent.
const (
	MinZoom     = 1
	MaxZoom     = 6400
	DefaultZoom = 100
)

// Point is a position in workspace coordinates.
type Point struct {
	X float64
	Y float64
}

// View is local-only state: zoom, pan, and the active tool. It is never
// persisted and never synchronized to other clients.
type View struct {
	zoom float64
	panX float64
	panY float64
	tool Tool
}

func newView() View {
	return View{zoom: DefaultZoom, tool: ToolSelect}
}

// SetZoom clamps to [MinZoom, MaxZoom] and returns the applied value.
func (v *View) SetZoom(zoom float64) float64 {
	if zoom < MinZoom {
		zoom = MinZoom
	}
	if zoom > MaxZoom {
		zoom = MaxZoom
	}
	v.zoom = zoom
	return v.zoom
}

func (v *View) Zoom() float64 { return v.zoom }

func (v *View) SetPan(x, y float64) {
	v.panX = x
	v.panY = y
}

func (v *View) Pan() (x, y float64) { return v.panX, v.panY }

// SetTool switches tool mode. Unknown tools are ignored and the current
// mode reported back.
func (v *View) SetTool(t Tool) Tool {
	if t.Valid() {
		v.tool = t
	}
	return v.tool
}

func (v *View) Tool() Tool { return v.tool }
