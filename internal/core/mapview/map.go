package mapview

import (
	"fmt"

	"github.com/samirrijal/huarazguide/internal/core/domain"
)

// ImageStatus is the load state of the map image.
type ImageStatus string

const (
	ImageLoading ImageStatus = "loading"
	ImageReady   ImageStatus = "ready"
	ImageFailed  ImageStatus = "failed"
)

// Config configures a Map.
type Config struct {
	Bounds    domain.GeoBounds
	Viewport  ViewportConfig
	HitRadius float64
	Gesture   GestureOptions
}

// Size is a container size in screen pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Frame is everything a renderer needs to draw the map at one instant.
type Frame struct {
	Status     ImageStatus             `json:"status"`
	Error      string                  `json:"error,omitempty"`
	Image      *domain.ImageDimensions `json:"image,omitempty"`
	Container  Size                    `json:"container"`
	Transform  Transform               `json:"transform"`
	State      State                   `json:"state"`
	DraggingID string                  `json:"dragging_id,omitempty"`
	Markers    []Marker                `json:"markers"`
	Popup      *Popup                  `json:"popup,omitempty"`
}

// Map composes projection, viewport, marker layer and gesture handling for
// one mounted map. It is not safe for concurrent use.
type Map struct {
	proj    *Projection
	view    *Viewport
	layer   *Layer
	gesture *GestureHandler

	status    ImageStatus
	loadErr   error
	container Size
}

// New validates cfg and returns a map waiting for its image.
func New(cfg Config) (*Map, error) {
	proj, err := NewProjection(cfg.Bounds)
	if err != nil {
		return nil, err
	}
	view, err := NewViewport(cfg.Viewport)
	if err != nil {
		return nil, err
	}
	layer := &Layer{HitRadius: cfg.HitRadius}
	return &Map{
		proj:    proj,
		view:    view,
		layer:   layer,
		gesture: NewGestureHandler(view, proj, &layer.Selection, cfg.Gesture),
		status:  ImageLoading,
	}, nil
}

// Projection exposes the map's coordinate mapping.
func (m *Map) Projection() *Projection { return m.proj }

// Viewport exposes the map's pan/zoom transform.
func (m *Map) Viewport() *Viewport { return m.view }

// Status returns the image load state.
func (m *Map) Status() ImageStatus { return m.status }

// State returns the gesture state.
func (m *Map) State() State { return m.gesture.State() }

// ImageLoaded records the intrinsic image size and fits it to the container.
func (m *Map) ImageLoaded(dim domain.ImageDimensions) error {
	if err := m.proj.SetImage(dim); err != nil {
		m.ImageFailed(err)
		return err
	}
	m.status, m.loadErr = ImageReady, nil
	m.fit()
	return nil
}

// ImageFailed puts the map in its error state. Markers are hidden and any
// active gesture is released.
func (m *Map) ImageFailed(err error) {
	if err == nil {
		err = fmt.Errorf("%w: image failed to load", domain.ErrInvalidImage)
	}
	m.status, m.loadErr = ImageFailed, err
	m.gesture.Handle(Event{Kind: ReleaseAll})
}

// Err returns the load error, if any.
func (m *Map) Err() error { return m.loadErr }

// Resize records a new container size and refits a loaded image.
func (m *Map) Resize(width, height float64) {
	m.container = Size{Width: width, Height: height}
	m.fit()
}

// ResetView refits the image, discarding user pan and zoom.
func (m *Map) ResetView() { m.fit() }

// SetEditable toggles edit mode.
func (m *Map) SetEditable(on bool) { m.gesture.SetEditable(on) }

// ClosePopup closes the active marker's popup.
func (m *Map) ClosePopup() { m.layer.Selection.Close() }

// Select opens the popup for id.
func (m *Map) Select(id string) { m.layer.Selection.Open(id) }

func (m *Map) fit() {
	dim, ok := m.proj.Image()
	if !ok || m.status != ImageReady {
		return
	}
	m.view.FitToContainer(m.container.Width, m.container.Height, dim.Width, dim.Height, m.view.Config().FitMode)
}

// Dispatch feeds one input event through the gesture handler. Downs without
// a MarkerID are hit-tested against pois. Until the image is ready only
// release events are honored.
func (m *Map) Dispatch(ev Event, pois []PointOfInterest) State {
	if m.status != ImageReady {
		if isRelease(ev.Kind) {
			return m.gesture.Handle(ev)
		}
		return m.gesture.State()
	}
	if ev.MarkerID == "" {
		switch {
		case ev.Kind == PointerDown:
			ev.MarkerID, _ = m.layer.HitTest(pois, m.proj, m.view, Point{X: ev.X, Y: ev.Y})
		case ev.Kind == TouchStart && len(ev.Touches) == 1:
			t := ev.Touches[0]
			ev.MarkerID, _ = m.layer.HitTest(pois, m.proj, m.view, Point{X: t.X, Y: t.Y})
		}
	}
	return m.gesture.Handle(ev)
}

func isRelease(k EventKind) bool {
	switch k {
	case PointerUp, PointerLeave, FocusLost, TouchEnd, TouchCancel, ReleaseAll:
		return true
	}
	return false
}

// Frame renders the current state for pois.
func (m *Map) Frame(pois []PointOfInterest) Frame {
	f := Frame{
		Status:    m.status,
		Container: m.container,
		Transform: m.view.Transform(),
		State:     m.gesture.State(),
		Markers:   []Marker{},
	}
	if m.loadErr != nil {
		f.Error = m.loadErr.Error()
	}
	if id, ok := m.gesture.DraggingID(); ok {
		f.DraggingID = id
	}
	if m.status != ImageReady {
		return f
	}
	if dim, ok := m.proj.Image(); ok {
		f.Image = &dim
	}
	f.Markers = m.layer.Render(pois, m.proj, m.view)
	f.Popup = m.layer.Popup(pois, m.proj, m.view)
	return f
}
