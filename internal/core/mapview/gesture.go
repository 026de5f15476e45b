package mapview

import (
	"fmt"
	"math"

	"github.com/samirrijal/huarazguide/internal/core/domain"
)

// State is the gesture handler's current mode.
type State int

const (
	StateIdle State = iota
	StatePanning
	StateDraggingMarker
	StatePinching
)

func (s State) String() string {
	switch s {
	case StatePanning:
		return "panning"
	case StateDraggingMarker:
		return "dragging_marker"
	case StatePinching:
		return "pinching"
	default:
		return "idle"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes a state name written by MarshalText.
func (s *State) UnmarshalText(b []byte) error {
	for _, st := range []State{StateIdle, StatePanning, StateDraggingMarker, StatePinching} {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown gesture state %q", b)
}

// EventKind enumerates the input events the handler understands.
type EventKind string

const (
	PointerDown  EventKind = "pointer_down"
	PointerMove  EventKind = "pointer_move"
	PointerUp    EventKind = "pointer_up"
	PointerLeave EventKind = "pointer_leave"
	FocusLost    EventKind = "focus_lost"
	TouchStart   EventKind = "touch_start"
	TouchMove    EventKind = "touch_move"
	TouchEnd     EventKind = "touch_end"
	TouchCancel  EventKind = "touch_cancel"
	Wheel        EventKind = "wheel"
	// ReleaseAll means every pointer and touch has been released.
	ReleaseAll EventKind = "release_all"
)

// Known reports whether k is one of the declared event kinds.
func (k EventKind) Known() bool {
	switch k {
	case PointerDown, PointerMove, PointerUp, PointerLeave, FocusLost,
		TouchStart, TouchMove, TouchEnd, TouchCancel, Wheel, ReleaseAll:
		return true
	}
	return false
}

// Touch is one active touch point in screen coordinates.
type Touch struct {
	ID int     `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// Event is a single input event in container-relative screen coordinates.
// For touch events Touches lists the touches still active after the event,
// like the browser's TouchEvent.touches.
type Event struct {
	Kind     EventKind `json:"kind"`
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
	MarkerID string    `json:"marker_id,omitempty"`
	Touches  []Touch   `json:"touches,omitempty"`
	DeltaY   float64   `json:"delta_y,omitempty"`
}

// MoveFunc receives proposed coordinates for a dragged marker. It runs on
// every pointer move and must be cheap.
type MoveFunc func(id string, pos domain.GeoPoint)

// Capturer acquires a listener for pointer events outside the map element
// (a drag may be released off-component). The returned func releases it.
type Capturer interface {
	Capture() (release func())
}

// CaptureFunc adapts a plain function to Capturer.
type CaptureFunc func() (release func())

func (f CaptureFunc) Capture() func() { return f() }

// GestureOptions wires the handler to its host.
type GestureOptions struct {
	Editable     bool
	OnMarkerMove MoveFunc
	// OnDragEnd fires once when a marker drag returns to Idle.
	OnDragEnd func(id string)
	// OnSelect fires when a marker is clicked outside edit mode.
	OnSelect func(id string)
	Capture  Capturer
}

// GestureHandler turns input events into viewport changes, marker drags and
// selection changes. The capture is held exactly while the state is not Idle.
type GestureHandler struct {
	view  *Viewport
	proj  *Projection
	sel   *Selection
	opts  GestureOptions
	state State

	marker    string
	last      Point
	pinchDist float64
	release   func()
}

// NewGestureHandler binds a handler to a viewport, projection and selection.
func NewGestureHandler(view *Viewport, proj *Projection, sel *Selection, opts GestureOptions) *GestureHandler {
	return &GestureHandler{view: view, proj: proj, sel: sel, opts: opts}
}

// State returns the current state.
func (h *GestureHandler) State() State { return h.state }

// DraggingID returns the marker being dragged, if any.
func (h *GestureHandler) DraggingID() (string, bool) {
	return h.marker, h.state == StateDraggingMarker
}

// Capturing reports whether a global capture is held.
func (h *GestureHandler) Capturing() bool { return h.release != nil }

// SetEditable toggles edit mode. Leaving edit mode mid-drag ends the drag.
func (h *GestureHandler) SetEditable(on bool) {
	if !on && h.state == StateDraggingMarker {
		h.toIdle()
	}
	h.opts.Editable = on
}

// Handle applies ev and returns the resulting state.
func (h *GestureHandler) Handle(ev Event) State {
	pt := Point{X: ev.X, Y: ev.Y}
	switch ev.Kind {
	case PointerDown:
		h.pointerDown(pt, ev.MarkerID)
	case PointerMove:
		h.pointerMove(pt)
	case PointerUp, FocusLost, TouchCancel, ReleaseAll:
		h.toIdle()
	case PointerLeave:
		// Marker drags keep tracking through the capture.
		if h.state == StatePanning {
			h.toIdle()
		}
	case TouchStart:
		h.touchStart(ev)
	case TouchMove:
		h.touchMove(ev)
	case TouchEnd:
		h.touchEnd(ev.Touches)
	case Wheel:
		switch {
		case ev.DeltaY < 0:
			h.view.ZoomIn(pt)
		case ev.DeltaY > 0:
			h.view.ZoomOut(pt)
		}
	}
	return h.state
}

func (h *GestureHandler) pointerDown(pt Point, markerID string) {
	if h.state != StateIdle {
		// A down without the matching up; start over from Idle.
		h.toIdle()
	}
	if markerID != "" {
		if h.opts.Editable {
			h.marker = markerID
			h.last = pt
			h.enter(StateDraggingMarker)
			return
		}
		h.sel.Open(markerID)
		if h.opts.OnSelect != nil {
			h.opts.OnSelect(markerID)
		}
		return
	}
	h.sel.Close()
	h.last = pt
	h.enter(StatePanning)
}

func (h *GestureHandler) pointerMove(pt Point) {
	switch h.state {
	case StatePanning:
		h.view.Pan(pt.X-h.last.X, pt.Y-h.last.Y)
		h.last = pt
	case StateDraggingMarker:
		h.dragTo(pt)
	}
}

func (h *GestureHandler) dragTo(pt Point) {
	h.last = pt
	pos, ok := h.proj.ToLatLng(h.view.ScreenToImage(pt))
	if ok && h.opts.OnMarkerMove != nil {
		h.opts.OnMarkerMove(h.marker, pos)
	}
}

func (h *GestureHandler) touchStart(ev Event) {
	switch n := len(ev.Touches); {
	case n >= 2:
		if h.state == StateDraggingMarker {
			return
		}
		h.pinchDist = touchDistance(ev.Touches[0], ev.Touches[1])
		h.enter(StatePinching)
	case n == 1:
		t := ev.Touches[0]
		if h.state == StateIdle {
			h.pointerDown(Point{X: t.X, Y: t.Y}, ev.MarkerID)
			return
		}
		h.last = Point{X: t.X, Y: t.Y}
	default:
		h.toIdle()
	}
}

func (h *GestureHandler) touchMove(ev Event) {
	touches := ev.Touches
	switch h.state {
	case StatePinching:
		if len(touches) < 2 {
			h.touchEnd(touches)
			return
		}
		d := touchDistance(touches[0], touches[1])
		if h.pinchDist > 0 && d > 0 {
			mid := Point{X: (touches[0].X + touches[1].X) / 2, Y: (touches[0].Y + touches[1].Y) / 2}
			h.view.ZoomAt(mid, d/h.pinchDist)
		}
		h.pinchDist = d
	case StatePanning:
		if len(touches) >= 2 {
			h.pinchDist = touchDistance(touches[0], touches[1])
			h.enter(StatePinching)
			return
		}
		if len(touches) == 1 {
			h.pointerMove(Point{X: touches[0].X, Y: touches[0].Y})
		}
	case StateDraggingMarker:
		if len(touches) >= 1 {
			h.dragTo(Point{X: touches[0].X, Y: touches[0].Y})
		}
	}
}

func (h *GestureHandler) touchEnd(remaining []Touch) {
	if len(remaining) == 0 {
		h.toIdle()
		return
	}
	switch h.state {
	case StatePinching:
		if len(remaining) >= 2 {
			h.pinchDist = touchDistance(remaining[0], remaining[1])
			return
		}
		h.pinchDist = 0
		h.last = Point{X: remaining[0].X, Y: remaining[0].Y}
		h.state = StatePanning
	case StatePanning:
		h.last = Point{X: remaining[0].X, Y: remaining[0].Y}
	}
}

func (h *GestureHandler) enter(s State) {
	if h.state == StateIdle && s != StateIdle && h.release == nil && h.opts.Capture != nil {
		h.release = h.opts.Capture.Capture()
	}
	h.state = s
}

func (h *GestureHandler) toIdle() {
	prev, id := h.state, h.marker
	if h.release != nil {
		release := h.release
		h.release = nil
		release()
	}
	h.state = StateIdle
	h.marker = ""
	h.pinchDist = 0
	if prev == StateDraggingMarker && h.opts.OnDragEnd != nil {
		h.opts.OnDragEnd(id)
	}
}

func touchDistance(a, b Touch) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}
