package mapview

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidLimits is returned for unusable viewport configuration.
var ErrInvalidLimits = errors.New("invalid viewport limits")

// FitMode selects how the image is fitted into its container.
type FitMode string

const (
	// FitContain keeps the entire image visible.
	FitContain FitMode = "contain"
	// FitCover fills the container, cropping the overflow.
	FitCover FitMode = "cover"
)

// ParseFitMode accepts "contain" or "cover" (case-insensitive).
func ParseFitMode(s string) (FitMode, error) {
	switch FitMode(strings.ToLower(strings.TrimSpace(s))) {
	case FitContain, "":
		return FitContain, nil
	case FitCover:
		return FitCover, nil
	}
	return "", fmt.Errorf("%w: unknown fit mode %q", ErrInvalidLimits, s)
}

// Transform maps image pixels to screen pixels: screen = image*Scale + Translate.
type Transform struct {
	Scale      float64 `json:"scale"`
	TranslateX float64 `json:"translate_x"`
	TranslateY float64 `json:"translate_y"`
}

// ViewportConfig holds the per-deployment viewport constants.
type ViewportConfig struct {
	MinScale float64 `json:"min_scale"`
	MaxScale float64 `json:"max_scale"`
	// ZoomStep is the wheel zoom-in factor; zoom-out uses its reciprocal.
	ZoomStep float64 `json:"zoom_step"`
	FitMode  FitMode `json:"fit_mode"`
	// Overscan multiplies the cover scale so that no container edge shows.
	Overscan float64 `json:"overscan"`
}

// DefaultViewportConfig mirrors the limits used by the directory web app.
func DefaultViewportConfig() ViewportConfig {
	return ViewportConfig{
		MinScale: 0.1,
		MaxScale: 5,
		ZoomStep: 1.1,
		FitMode:  FitContain,
		Overscan: 1,
	}
}

// Validate checks the scale range and zoom step.
func (c ViewportConfig) Validate() error {
	switch {
	case !(c.MinScale > 0):
		return fmt.Errorf("%w: min scale must be positive, got %v", ErrInvalidLimits, c.MinScale)
	case !(c.MaxScale >= c.MinScale) || math.IsInf(c.MaxScale, 0):
		return fmt.Errorf("%w: max scale %v below min scale %v", ErrInvalidLimits, c.MaxScale, c.MinScale)
	case !(c.ZoomStep > 1) || math.IsInf(c.ZoomStep, 0):
		return fmt.Errorf("%w: zoom step must be > 1, got %v", ErrInvalidLimits, c.ZoomStep)
	case !(c.Overscan >= 1) || math.IsInf(c.Overscan, 0):
		return fmt.Errorf("%w: overscan must be >= 1, got %v", ErrInvalidLimits, c.Overscan)
	}
	if c.FitMode != FitContain && c.FitMode != FitCover {
		return fmt.Errorf("%w: unknown fit mode %q", ErrInvalidLimits, c.FitMode)
	}
	return nil
}

// Viewport owns the current transform. Scale always stays within
// [MinScale, MaxScale]; translation is unconstrained.
type Viewport struct {
	t   Transform
	lim ViewportConfig
}

// NewViewport starts at scale 1 (clamped) with no translation.
func NewViewport(cfg ViewportConfig) (*Viewport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	v := &Viewport{lim: cfg}
	v.t.Scale = v.clamp(1)
	return v, nil
}

// Config returns the limits the viewport was built with.
func (v *Viewport) Config() ViewportConfig { return v.lim }

// Transform returns a copy of the current transform.
func (v *Viewport) Transform() Transform { return v.t }

// SetTransform replaces the transform, clamping the scale.
func (v *Viewport) SetTransform(t Transform) {
	t.Scale = v.clamp(t.Scale)
	v.t = t
}

func (v *Viewport) clamp(s float64) float64 {
	if math.IsNaN(s) {
		return v.t.Scale
	}
	return math.Min(math.Max(s, v.lim.MinScale), v.lim.MaxScale)
}

// ScreenToImage inverse-applies the transform.
func (v *Viewport) ScreenToImage(screen Point) Point {
	return Point{
		X: (screen.X - v.t.TranslateX) / v.t.Scale,
		Y: (screen.Y - v.t.TranslateY) / v.t.Scale,
	}
}

// ImageToScreen applies the transform.
func (v *Viewport) ImageToScreen(img Point) Point {
	return Point{
		X: img.X*v.t.Scale + v.t.TranslateX,
		Y: img.Y*v.t.Scale + v.t.TranslateY,
	}
}

// Pan translates by a screen-space delta.
func (v *Viewport) Pan(dx, dy float64) {
	v.t.TranslateX += dx
	v.t.TranslateY += dy
}

// ZoomAt multiplies the scale by factor, clamped, keeping the image point
// under screen fixed. Non-positive or non-finite factors are ignored.
func (v *Viewport) ZoomAt(screen Point, factor float64) {
	if !(factor > 0) || math.IsInf(factor, 0) {
		return
	}
	old := v.t.Scale
	next := v.clamp(old * factor)
	if next == old {
		return
	}
	ratio := next / old
	v.t.TranslateX = screen.X - (screen.X-v.t.TranslateX)*ratio
	v.t.TranslateY = screen.Y - (screen.Y-v.t.TranslateY)*ratio
	v.t.Scale = next
}

// ZoomIn applies one wheel step toward screen.
func (v *Viewport) ZoomIn(screen Point) { v.ZoomAt(screen, v.lim.ZoomStep) }

// ZoomOut applies one reverse wheel step toward screen.
func (v *Viewport) ZoomOut(screen Point) { v.ZoomAt(screen, 1/v.lim.ZoomStep) }

// FitToContainer scales the image into the container using mode and centers it.
// The fitted scale is clamped before centering. Empty containers or images
// leave the transform untouched and return false.
func (v *Viewport) FitToContainer(containerW, containerH, imageW, imageH float64, mode FitMode) bool {
	if !(containerW > 0 && containerH > 0 && imageW > 0 && imageH > 0) {
		return false
	}
	sx, sy := containerW/imageW, containerH/imageH
	var s float64
	if mode == FitCover {
		s = math.Max(sx, sy) * v.lim.Overscan
	} else {
		s = math.Min(sx, sy)
	}
	s = v.clamp(s)
	v.t = Transform{
		Scale:      s,
		TranslateX: (containerW - imageW*s) / 2,
		TranslateY: (containerH - imageH*s) / 2,
	}
	return true
}
