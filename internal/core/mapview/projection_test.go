package mapview_test

import (
	"errors"
	"math"
	"testing"

	"github.com/samirrijal/huarazguide/internal/core/domain"
	"github.com/samirrijal/huarazguide/internal/core/mapview"
)

var huarazBounds = domain.GeoBounds{North: -9.48, South: -9.58, West: -77.56, East: -77.48}

func readyProjection(t *testing.T, w, h float64) *mapview.Projection {
	t.Helper()
	p, err := mapview.NewProjection(huarazBounds)
	if err != nil {
		t.Fatalf("NewProjection: %v", err)
	}
	if err := p.SetImage(domain.ImageDimensions{Width: w, Height: h}); err != nil {
		t.Fatalf("SetImage: %v", err)
	}
	return p
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestProjection_CenterOfBounds(t *testing.T) {
	p := readyProjection(t, 1000, 1000)

	pt, ok := p.ToPixels(domain.GeoPoint{Lat: -9.53, Lng: -77.52})
	if !ok {
		t.Fatal("expected projection to be ready")
	}
	if !approx(pt.X, 500) || !approx(pt.Y, 500) {
		t.Errorf("expected (500, 500), got (%v, %v)", pt.X, pt.Y)
	}
}

func TestProjection_Corners(t *testing.T) {
	p := readyProjection(t, 1000, 800)

	tests := []struct {
		name string
		pos  domain.GeoPoint
		want mapview.Point
	}{
		{"north-west", domain.GeoPoint{Lat: -9.48, Lng: -77.56}, mapview.Point{X: 0, Y: 0}},
		{"south-east", domain.GeoPoint{Lat: -9.58, Lng: -77.48}, mapview.Point{X: 1000, Y: 800}},
		{"outside", domain.GeoPoint{Lat: -9.43, Lng: -77.60}, mapview.Point{X: -500, Y: -400}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := p.ToPixels(tt.pos)
			if !approx(got.X, tt.want.X) || !approx(got.Y, tt.want.Y) {
				t.Errorf("ToPixels(%v) = %v, want %v", tt.pos, got, tt.want)
			}
		})
	}
}

func TestProjection_RoundTrip(t *testing.T) {
	p := readyProjection(t, 1200, 900)

	for _, pos := range []domain.GeoPoint{
		{Lat: -9.5268, Lng: -77.5278},
		{Lat: -9.49, Lng: -77.55},
		{Lat: -9.60, Lng: -77.40},
	} {
		px, _ := p.ToPixels(pos)
		back, ok := p.ToLatLng(px)
		if !ok {
			t.Fatal("expected ToLatLng to succeed")
		}
		if !approx(back.Lat, pos.Lat) || !approx(back.Lng, pos.Lng) {
			t.Errorf("round trip of %v gave %v", pos, back)
		}
	}
}

func TestProjection_NotReady(t *testing.T) {
	p, err := mapview.NewProjection(huarazBounds)
	if err != nil {
		t.Fatalf("NewProjection: %v", err)
	}
	if p.Ready() {
		t.Fatal("projection without image must not be ready")
	}
	if _, ok := p.ToPixels(huarazBounds.Center()); ok {
		t.Error("ToPixels should fail before image load")
	}
	if _, ok := p.ToLatLng(mapview.Point{X: 1, Y: 1}); ok {
		t.Error("ToLatLng should fail before image load")
	}
}

func TestProjection_DegenerateBounds(t *testing.T) {
	_, err := mapview.NewProjection(domain.GeoBounds{North: -9.5, South: -9.5, West: -77.56, East: -77.48})
	if !errors.Is(err, domain.ErrDegenerateBounds) {
		t.Fatalf("expected ErrDegenerateBounds, got %v", err)
	}
}

func TestProjection_InvalidImage(t *testing.T) {
	p, _ := mapview.NewProjection(huarazBounds)
	if err := p.SetImage(domain.ImageDimensions{Width: 0, Height: 10}); !errors.Is(err, domain.ErrInvalidImage) {
		t.Fatalf("expected ErrInvalidImage, got %v", err)
	}
	if p.Ready() {
		t.Error("invalid image must not make the projection ready")
	}
}
