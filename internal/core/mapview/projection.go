// Package mapview implements an interactive raster map: projection of
// geographic coordinates onto a background image, a pan/zoom viewport over
// that image, a gesture state machine, and a marker layer.
//
// Everything here is synchronous and free of rendering concerns; callers feed
// input events in and read frames out.
package mapview

import (
	"fmt"

	"github.com/samirrijal/huarazguide/internal/core/domain"
)

// Point is a 2D coordinate in either image pixel space or screen space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Projection maps a GeoBounds rectangle linearly onto image pixels and back.
// It is not ready until SetImage has been called.
type Projection struct {
	bounds domain.GeoBounds
	image  *domain.ImageDimensions
}

// NewProjection validates bounds up front so that projection never divides by zero.
func NewProjection(bounds domain.GeoBounds) (*Projection, error) {
	if err := bounds.Validate(); err != nil {
		return nil, err
	}
	return &Projection{bounds: bounds}, nil
}

// Bounds returns the rectangle the image depicts.
func (p *Projection) Bounds() domain.GeoBounds { return p.bounds }

// SetImage records the intrinsic image size.
func (p *Projection) SetImage(dim domain.ImageDimensions) error {
	if err := dim.Validate(); err != nil {
		return err
	}
	p.image = &dim
	return nil
}

// Image returns the image size, or false while it is unknown.
func (p *Projection) Image() (domain.ImageDimensions, bool) {
	if p.image == nil {
		return domain.ImageDimensions{}, false
	}
	return *p.image, true
}

// Ready reports whether image dimensions are known.
func (p *Projection) Ready() bool { return p.image != nil }

// ToPixels projects lat/lng to image pixels. Results outside the image are
// returned as-is. ok is false (and the point zero) until the image is ready.
func (p *Projection) ToPixels(pos domain.GeoPoint) (pt Point, ok bool) {
	if p.image == nil {
		return Point{}, false
	}
	b := p.bounds
	pt.X = (pos.Lng - b.West) / (b.East - b.West) * p.image.Width
	pt.Y = (pos.Lat - b.North) / (b.South - b.North) * p.image.Height
	return pt, true
}

// ToLatLng is the exact inverse of ToPixels.
func (p *Projection) ToLatLng(pt Point) (pos domain.GeoPoint, ok bool) {
	if p.image == nil {
		return domain.GeoPoint{}, false
	}
	b := p.bounds
	pos.Lng = pt.X/p.image.Width*(b.East-b.West) + b.West
	pos.Lat = pt.Y/p.image.Height*(b.South-b.North) + b.North
	return pos, true
}

func (p *Projection) String() string {
	if p.image == nil {
		return fmt.Sprintf("projection(%+v, image pending)", p.bounds)
	}
	return fmt.Sprintf("projection(%+v, %vx%v)", p.bounds, p.image.Width, p.image.Height)
}
