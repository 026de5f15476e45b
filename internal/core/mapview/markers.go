package mapview

import (
	"math"

	"github.com/samirrijal/huarazguide/internal/core/domain"
)

// MarkerKind selects the visual treatment of a marker. It never affects positioning.
type MarkerKind string

const (
	KindStandard MarkerKind = "standard"
	KindFeatured MarkerKind = "featured"
)

// PointOfInterest is the host-owned record a marker is drawn for. The map
// never mutates it; edit-mode drags are reported through a MoveFunc.
type PointOfInterest struct {
	ID       string          `json:"id"`
	Location domain.GeoPoint `json:"location"`
	Label    string          `json:"label"`
	Kind     MarkerKind      `json:"kind"`
	Icon     string          `json:"icon,omitempty"`
}

// Marker is a point of interest placed on the image and on screen.
type Marker struct {
	ID     string     `json:"id"`
	Label  string     `json:"label"`
	Kind   MarkerKind `json:"kind"`
	Icon   string     `json:"icon,omitempty"`
	Image  Point      `json:"image"`
	Screen Point      `json:"screen"`
	Active bool       `json:"active"`
}

// Popup is the detail card anchored to the active marker.
type Popup struct {
	MarkerID string `json:"marker_id"`
	Label    string `json:"label"`
	Anchor   Point  `json:"anchor"`
}

// Selection tracks the single marker whose popup is open.
type Selection struct {
	active string
}

// Open makes id the active marker, closing any previous popup.
func (s *Selection) Open(id string) { s.active = id }

// Close closes the popup, if any.
func (s *Selection) Close() { s.active = "" }

// Active returns the active marker id and whether a popup is open.
func (s *Selection) Active() (string, bool) { return s.active, s.active != "" }

// DefaultHitRadius is the screen distance within which a pointer hits a marker.
const DefaultHitRadius = 16.0

// Layer positions markers and resolves pointer hits against them.
type Layer struct {
	HitRadius float64
	Selection Selection
}

// Render places every point of interest. It returns nil while the
// projection is not ready.
func (l *Layer) Render(pois []PointOfInterest, proj *Projection, view *Viewport) []Marker {
	if !proj.Ready() {
		return nil
	}
	active, _ := l.Selection.Active()
	out := make([]Marker, 0, len(pois))
	for _, poi := range pois {
		img, _ := proj.ToPixels(poi.Location)
		kind := poi.Kind
		if kind == "" {
			kind = KindStandard
		}
		out = append(out, Marker{
			ID:     poi.ID,
			Label:  poi.Label,
			Kind:   kind,
			Icon:   poi.Icon,
			Image:  img,
			Screen: view.ImageToScreen(img),
			Active: poi.ID == active,
		})
	}
	return out
}

// Popup returns the detail popup for the active marker, or nil when no popup
// is open, the marker is gone, or the projection is not ready.
func (l *Layer) Popup(pois []PointOfInterest, proj *Projection, view *Viewport) *Popup {
	active, ok := l.Selection.Active()
	if !ok || !proj.Ready() {
		return nil
	}
	for _, poi := range pois {
		if poi.ID != active {
			continue
		}
		img, _ := proj.ToPixels(poi.Location)
		return &Popup{MarkerID: poi.ID, Label: poi.Label, Anchor: view.ImageToScreen(img)}
	}
	return nil
}

// HitTest returns the marker nearest to screen within HitRadius. Later
// entries win ties since they are drawn on top.
func (l *Layer) HitTest(pois []PointOfInterest, proj *Projection, view *Viewport, screen Point) (string, bool) {
	if !proj.Ready() {
		return "", false
	}
	radius := l.HitRadius
	if radius <= 0 {
		radius = DefaultHitRadius
	}
	best, bestDist := "", math.Inf(1)
	for _, poi := range pois {
		img, _ := proj.ToPixels(poi.Location)
		s := view.ImageToScreen(img)
		d := math.Hypot(s.X-screen.X, s.Y-screen.Y)
		if d <= radius && d <= bestDist {
			best, bestDist = poi.ID, d
		}
	}
	return best, best != ""
}
