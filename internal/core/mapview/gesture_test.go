package mapview_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/samirrijal/huarazguide/internal/core/domain"
	"github.com/samirrijal/huarazguide/internal/core/mapview"
)

type captureCounter struct {
	acquired, released int
}

func (c *captureCounter) Capture() func() {
	c.acquired++
	return func() { c.released++ }
}

type moveCall struct {
	ID  string
	Pos domain.GeoPoint
}

type gestureRig struct {
	view    *mapview.Viewport
	proj    *mapview.Projection
	sel     *mapview.Selection
	cap     *captureCounter
	moves   []moveCall
	ended   []string
	handler *mapview.GestureHandler
}

func newGestureRig(t *testing.T, editable bool) *gestureRig {
	t.Helper()
	r := &gestureRig{
		view: newViewport(t),
		proj: readyProjection(t, 1000, 1000),
		sel:  &mapview.Selection{},
		cap:  &captureCounter{},
	}
	r.handler = mapview.NewGestureHandler(r.view, r.proj, r.sel, mapview.GestureOptions{
		Editable: editable,
		OnMarkerMove: func(id string, pos domain.GeoPoint) {
			r.moves = append(r.moves, moveCall{ID: id, Pos: pos})
		},
		OnDragEnd: func(id string) { r.ended = append(r.ended, id) },
		Capture:   r.cap,
	})
	return r
}

func TestGesture_PanFromEmptyMap(t *testing.T) {
	r := newGestureRig(t, false)

	if s := r.handler.Handle(mapview.Event{Kind: mapview.PointerDown, X: 10, Y: 10}); s != mapview.StatePanning {
		t.Fatalf("expected panning, got %v", s)
	}
	r.handler.Handle(mapview.Event{Kind: mapview.PointerMove, X: 40, Y: 25})
	r.handler.Handle(mapview.Event{Kind: mapview.PointerMove, X: 50, Y: 30})

	want := mapview.Transform{Scale: 1, TranslateX: 40, TranslateY: 20}
	if diff := cmp.Diff(want, r.view.Transform(), floatEq); diff != "" {
		t.Errorf("transform mismatch (-want +got):\n%s", diff)
	}

	if s := r.handler.Handle(mapview.Event{Kind: mapview.PointerUp}); s != mapview.StateIdle {
		t.Fatalf("expected idle after release, got %v", s)
	}
	if r.cap.acquired != 1 || r.cap.released != 1 {
		t.Errorf("expected one capture and one release, got %+v", *r.cap)
	}
}

func TestGesture_DragMarkerInEditMode(t *testing.T) {
	r := newGestureRig(t, true)

	if s := r.handler.Handle(mapview.Event{Kind: mapview.PointerDown, X: 50, Y: 50, MarkerID: "m1"}); s != mapview.StateDraggingMarker {
		t.Fatalf("expected dragging, got %v", s)
	}
	r.handler.Handle(mapview.Event{Kind: mapview.PointerMove, X: 150, Y: 150})

	want, _ := r.proj.ToLatLng(r.view.ScreenToImage(mapview.Point{X: 150, Y: 150}))
	if len(r.moves) != 1 {
		t.Fatalf("expected 1 move callback, got %d", len(r.moves))
	}
	if diff := cmp.Diff(moveCall{ID: "m1", Pos: want}, r.moves[0], floatEq); diff != "" {
		t.Errorf("move mismatch (-want +got):\n%s", diff)
	}
	if got := r.view.Transform(); got.TranslateX != 0 || got.TranslateY != 0 {
		t.Errorf("dragging a marker must not pan, got %+v", got)
	}

	// leaving the element does not end a marker drag
	if s := r.handler.Handle(mapview.Event{Kind: mapview.PointerLeave}); s != mapview.StateDraggingMarker {
		t.Fatalf("expected drag to survive pointer leave, got %v", s)
	}
	r.handler.Handle(mapview.Event{Kind: mapview.ReleaseAll})
	if diff := cmp.Diff([]string{"m1"}, r.ended); diff != "" {
		t.Errorf("drag end mismatch:\n%s", diff)
	}
	if r.cap.released != 1 {
		t.Errorf("expected capture released once, got %d", r.cap.released)
	}
}

func TestGesture_MarkerClickOpensPopup(t *testing.T) {
	r := newGestureRig(t, false)

	if s := r.handler.Handle(mapview.Event{Kind: mapview.PointerDown, X: 5, Y: 5, MarkerID: "a"}); s != mapview.StateIdle {
		t.Fatalf("clicking a marker should stay idle, got %v", s)
	}
	r.handler.Handle(mapview.Event{Kind: mapview.PointerDown, X: 5, Y: 5, MarkerID: "b"})
	if id, ok := r.sel.Active(); !ok || id != "b" {
		t.Errorf("expected popup for b only, got %q %v", id, ok)
	}
	if r.cap.acquired != 0 {
		t.Errorf("a click must not capture, got %d", r.cap.acquired)
	}

	r.handler.Handle(mapview.Event{Kind: mapview.PointerDown, X: 500, Y: 500})
	if _, ok := r.sel.Active(); ok {
		t.Error("clicking empty map should close the popup")
	}
}

func TestGesture_PinchZoomsAtMidpoint(t *testing.T) {
	r := newGestureRig(t, false)

	r.handler.Handle(mapview.Event{Kind: mapview.TouchStart, Touches: []mapview.Touch{{ID: 1, X: 100, Y: 100}}})
	s := r.handler.Handle(mapview.Event{Kind: mapview.TouchStart, Touches: []mapview.Touch{
		{ID: 1, X: 100, Y: 100}, {ID: 2, X: 200, Y: 100},
	}})
	if s != mapview.StatePinching {
		t.Fatalf("expected pinching, got %v", s)
	}

	mid := mapview.Point{X: 150, Y: 100}
	before := r.view.ScreenToImage(mid)
	r.handler.Handle(mapview.Event{Kind: mapview.TouchMove, Touches: []mapview.Touch{
		{ID: 1, X: 50, Y: 100}, {ID: 2, X: 250, Y: 100},
	}})
	if got := r.view.Transform().Scale; !approx(got, 2) {
		t.Fatalf("expected scale 2 after doubling distance, got %v", got)
	}
	if diff := cmp.Diff(mid, r.view.ImageToScreen(before), floatEq); diff != "" {
		t.Errorf("midpoint drifted:\n%s", diff)
	}

	s = r.handler.Handle(mapview.Event{Kind: mapview.TouchEnd, Touches: []mapview.Touch{{ID: 1, X: 50, Y: 100}}})
	if s != mapview.StatePanning {
		t.Fatalf("expected panning with one touch left, got %v", s)
	}
	s = r.handler.Handle(mapview.Event{Kind: mapview.TouchEnd})
	if s != mapview.StateIdle {
		t.Fatalf("expected idle, got %v", s)
	}
	if r.cap.acquired != 1 || r.cap.released != 1 {
		t.Errorf("expected one capture across the gesture, got %+v", *r.cap)
	}
}

func TestGesture_SecondTouchIgnoredWhileDragging(t *testing.T) {
	r := newGestureRig(t, true)

	r.handler.Handle(mapview.Event{Kind: mapview.TouchStart, MarkerID: "m1", Touches: []mapview.Touch{{ID: 1, X: 10, Y: 10}}})
	s := r.handler.Handle(mapview.Event{Kind: mapview.TouchStart, Touches: []mapview.Touch{
		{ID: 1, X: 10, Y: 10}, {ID: 2, X: 90, Y: 90},
	}})
	if s != mapview.StateDraggingMarker {
		t.Fatalf("expected drag to continue, got %v", s)
	}
}

func TestGesture_WheelZoomsWithoutStateChange(t *testing.T) {
	r := newGestureRig(t, false)

	if s := r.handler.Handle(mapview.Event{Kind: mapview.Wheel, X: 0, Y: 0, DeltaY: -120}); s != mapview.StateIdle {
		t.Fatalf("wheel should not change state, got %v", s)
	}
	if got := r.view.Transform().Scale; !approx(got, 1.1) {
		t.Errorf("expected scale 1.1, got %v", got)
	}
	r.handler.Handle(mapview.Event{Kind: mapview.Wheel, DeltaY: 120})
	if got := r.view.Transform().Scale; !approx(got, 1) {
		t.Errorf("expected scale back to 1, got %v", got)
	}
}

func TestGesture_EveryReleaseReturnsToIdle(t *testing.T) {
	enter := []struct {
		name  string
		event mapview.Event
		want  mapview.State
	}{
		{"panning", mapview.Event{Kind: mapview.PointerDown, X: 10, Y: 10}, mapview.StatePanning},
		{"dragging", mapview.Event{Kind: mapview.PointerDown, MarkerID: "m1"}, mapview.StateDraggingMarker},
		{"pinching", mapview.Event{Kind: mapview.TouchStart, Touches: []mapview.Touch{{ID: 1, X: 0, Y: 0}, {ID: 2, X: 100, Y: 0}}}, mapview.StatePinching},
	}
	releases := []mapview.EventKind{
		mapview.PointerUp, mapview.FocusLost, mapview.TouchEnd, mapview.TouchCancel, mapview.ReleaseAll,
	}
	for _, from := range enter {
		for _, kind := range releases {
			t.Run(from.name+"/"+string(kind), func(t *testing.T) {
				r := newGestureRig(t, true)
				if s := r.handler.Handle(from.event); s != from.want {
					t.Fatalf("setup: expected %v, got %v", from.want, s)
				}
				if s := r.handler.Handle(mapview.Event{Kind: kind}); s != mapview.StateIdle {
					t.Fatalf("expected idle, got %v", s)
				}
				if r.handler.Capturing() || r.cap.acquired != r.cap.released {
					t.Errorf("capture still held: %+v", *r.cap)
				}
			})
		}
	}
}

func TestGesture_TouchEndWithoutStart(t *testing.T) {
	r := newGestureRig(t, false)
	if s := r.handler.Handle(mapview.Event{Kind: mapview.TouchEnd}); s != mapview.StateIdle {
		t.Fatalf("expected idle, got %v", s)
	}
	if r.cap.acquired != 0 || r.cap.released != 0 {
		t.Errorf("stray touch end touched the capture: %+v", *r.cap)
	}
	if len(r.ended) != 0 {
		t.Errorf("unexpected drag end: %v", r.ended)
	}
}

func TestGesture_RepeatedDownRecovers(t *testing.T) {
	r := newGestureRig(t, false)

	r.handler.Handle(mapview.Event{Kind: mapview.PointerDown, X: 1, Y: 1})
	r.handler.Handle(mapview.Event{Kind: mapview.PointerDown, X: 2, Y: 2})
	r.handler.Handle(mapview.Event{Kind: mapview.PointerUp})

	if r.cap.acquired != r.cap.released {
		t.Errorf("capture leak: %+v", *r.cap)
	}
}

func TestGesture_LeaveEndsPan(t *testing.T) {
	r := newGestureRig(t, false)
	r.handler.Handle(mapview.Event{Kind: mapview.PointerDown, X: 1, Y: 1})
	if s := r.handler.Handle(mapview.Event{Kind: mapview.PointerLeave}); s != mapview.StateIdle {
		t.Fatalf("expected idle, got %v", s)
	}
}
