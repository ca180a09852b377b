package cropper

import (
	"fmt"
	"math"

	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/pkg/types"
)

// AspectRatio represents a fixed crop frame shape
type AspectRatio struct {
	Width  int
	Height int
	Name   string
}

// Ratio returns width/height as a float
func (a AspectRatio) Ratio() float64 {
	return float64(a.Width) / float64(a.Height)
}

// Passport is the 165:230 frame of printed ID cards
var Passport = AspectRatio{165, 230, "passport"}

// CropConfig holds the limits applied to an interactive crop
type CropConfig struct {
	Aspect      AspectRatio
	MinZoom     float64
	MaxZoom     float64
	MaxRotation float64 // degrees, symmetric around 0
}

// Cropper maps session state (center, zoom, rotation) to crop rectangles
type Cropper struct {
	config CropConfig
}

// DefaultConfig returns the passport frame with zoom in [1,3] and rotation in [-180,180]
func DefaultConfig() CropConfig {
	return CropConfig{
		Aspect:      Passport,
		MinZoom:     1.0,
		MaxZoom:     3.0,
		MaxRotation: 180,
	}
}

// New creates a new Cropper with default configuration
func New() *Cropper {
	return &Cropper{config: DefaultConfig()}
}

// NewWithConfig creates a new Cropper with custom configuration
func NewWithConfig(config CropConfig) (*Cropper, error) {
	if config.Aspect.Width <= 0 || config.Aspect.Height <= 0 {
		return nil, fmt.Errorf("invalid aspect ratio %d:%d", config.Aspect.Width, config.Aspect.Height)
	}
	if config.MinZoom <= 0 || config.MaxZoom < config.MinZoom {
		return nil, fmt.Errorf("invalid zoom range [%g, %g]", config.MinZoom, config.MaxZoom)
	}
	if config.MaxRotation < 0 || config.MaxRotation > 360 {
		return nil, fmt.Errorf("invalid rotation limit %g", config.MaxRotation)
	}
	return &Cropper{config: config}, nil
}

// Config returns the cropper configuration
func (c *Cropper) Config() CropConfig {
	return c.config
}

// ClampZoom limits z to the configured range. Non-finite values fall back to the minimum zoom.
func (c *Cropper) ClampZoom(z float64) float64 {
	if math.IsNaN(z) || math.IsInf(z, 0) {
		return c.config.MinZoom
	}
	return clamp(z, c.config.MinZoom, c.config.MaxZoom)
}

// ClampRotation limits deg to [-MaxRotation, MaxRotation]. Non-finite values become 0.
func (c *Cropper) ClampRotation(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	return clamp(deg, -c.config.MaxRotation, c.config.MaxRotation)
}

// ClampCenter keeps a normalized center inside [0,1]. Non-finite coordinates recenter.
func ClampCenter(p types.Point) types.Point {
	if math.IsNaN(p.X) || math.IsInf(p.X, 0) {
		p.X = 0.5
	}
	if math.IsNaN(p.Y) || math.IsInf(p.Y, 0) {
		p.Y = 0.5
	}
	return types.Point{X: clamp(p.X, 0, 1), Y: clamp(p.Y, 0, 1)}
}

// RotatedSize returns the bounding box of a w×h image rotated by deg degrees.
func RotatedSize(w, h int, deg float64) (float64, float64) {
	sin, cos := math.Sincos(deg * math.Pi / 180)
	sin, cos = math.Abs(sin), math.Abs(cos)
	fw, fh := float64(w), float64(h)
	return cos*fw + sin*fh, sin*fw + cos*fh
}

// BaseSize returns the crop frame size at zoom 1: the largest rectangle of the
// configured aspect that fits in the rotated bounding box.
func (c *Cropper) BaseSize(w, h int, deg float64) (float64, float64) {
	bw, bh := RotatedSize(w, h, deg)
	r := c.config.Aspect.Ratio()
	cw, ch := bw, bw/r
	if ch > bh {
		ch = bh
		cw = bh * r
	}
	return cw, ch
}

// CropArea computes the crop rectangle, in rotated-source pixels, for a w×h source
// viewed with the given center and transform. It has no side effects: equal inputs
// always give equal areas. The result lies inside the rotated bounds.
func (c *Cropper) CropArea(w, h int, center types.Point, t types.Transform) types.Area {
	if w <= 0 || h <= 0 {
		return types.Area{}
	}
	zoom := c.ClampZoom(t.Zoom)
	deg := c.ClampRotation(t.Rotation)
	center = ClampCenter(center)

	bw, bh := RotatedSize(w, h, deg)
	cw, ch := c.BaseSize(w, h, deg)
	cw /= zoom
	ch /= zoom

	x := clamp(center.X*bw-cw/2, 0, bw-cw)
	y := clamp(center.Y*bh-ch/2, 0, bh-ch)

	area := types.Area{
		X:      int(math.Round(x)),
		Y:      int(math.Round(y)),
		Width:  maxInt(1, int(math.Round(cw))),
		Height: maxInt(1, int(math.Round(ch))),
	}

	// rounding can push the far edge one pixel past the bounds
	maxW, maxH := int(math.Round(bw)), int(math.Round(bh))
	if area.X+area.Width > maxW {
		area.X = maxInt(0, maxW-area.Width)
	}
	if area.Y+area.Height > maxH {
		area.Y = maxInt(0, maxH-area.Height)
	}
	return area
}

// CenterOf returns the normalized center of area inside the rotated bounds of a w×h source.
func CenterOf(area types.Area, w, h int, deg float64) types.Point {
	bw, bh := RotatedSize(w, h, deg)
	if bw == 0 || bh == 0 {
		return types.Centered
	}
	return ClampCenter(types.Point{
		X: (float64(area.X) + float64(area.Width)/2) / bw,
		Y: (float64(area.Y) + float64(area.Height)/2) / bh,
	})
}

// RotatePoint maps a normalized point of the unrotated source to the normalized
// position it ends up at after a clockwise rotation by deg around the image center.
func RotatePoint(p types.Point, w, h int, deg float64) types.Point {
	bw, bh := RotatedSize(w, h, deg)
	if bw == 0 || bh == 0 {
		return types.Centered
	}
	sin, cos := math.Sincos(deg * math.Pi / 180)
	x := p.X*float64(w) - float64(w)/2
	y := p.Y*float64(h) - float64(h)/2
	rx := x*cos - y*sin
	ry := x*sin + y*cos
	return ClampCenter(types.Point{X: (rx + bw/2) / bw, Y: (ry + bh/2) / bh})
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
