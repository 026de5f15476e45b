package domain

import (
	"fmt"
	"math"
)

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the point is a finite WGS 84 coordinate.
func (p GeoPoint) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// GeoBounds is the latitude/longitude rectangle a map image depicts edge-to-edge.
// North maps to the top edge of the image and West to the left edge.
type GeoBounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	West  float64 `json:"west"`
	East  float64 `json:"east"`
}

// Validate rejects rectangles that cannot be projected (zero width or height, NaN, Inf).
func (b GeoBounds) Validate() error {
	for _, v := range []float64{b.North, b.South, b.West, b.East} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite coordinate in %+v", ErrDegenerateBounds, b)
		}
	}
	if b.East == b.West {
		return fmt.Errorf("%w: east == west (%v)", ErrDegenerateBounds, b.East)
	}
	if b.North == b.South {
		return fmt.Errorf("%w: north == south (%v)", ErrDegenerateBounds, b.North)
	}
	return nil
}

// Contains reports whether p lies inside the rectangle, edges included.
func (b GeoBounds) Contains(p GeoPoint) bool {
	minLat, maxLat := math.Min(b.North, b.South), math.Max(b.North, b.South)
	minLng, maxLng := math.Min(b.West, b.East), math.Max(b.West, b.East)
	return p.Lat >= minLat && p.Lat <= maxLat && p.Lng >= minLng && p.Lng <= maxLng
}

// Center returns the midpoint of the rectangle.
func (b GeoBounds) Center() GeoPoint {
	return GeoPoint{Lat: (b.North + b.South) / 2, Lng: (b.West + b.East) / 2}
}

// ImageDimensions is the intrinsic pixel size of a loaded map image.
type ImageDimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Validate rejects empty or non-finite dimensions.
func (d ImageDimensions) Validate() error {
	if !(d.Width > 0) || !(d.Height > 0) || math.IsInf(d.Width, 0) || math.IsInf(d.Height, 0) {
		return fmt.Errorf("%w: %vx%v", ErrInvalidImage, d.Width, d.Height)
	}
	return nil
}
