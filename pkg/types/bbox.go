package types

import "math"

// BBox is an axis-aligned bounding box in pixel coordinates. Width and height
// are extents, not corners; coordinates are floats because model output is.
type BBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the box's center point.
func (b BBox) Center() (float64, float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Area returns the box area; degenerate boxes have zero area.
func (b BBox) Area() float64 {
	if b.Width <= 0 || b.Height <= 0 {
		return 0
	}
	return b.Width * b.Height
}

// Empty reports whether the box has no extent.
func (b BBox) Empty() bool {
	return b.Width <= 0 || b.Height <= 0
}

// Translate returns a copy of the box shifted by (dx, dy).
func (b BBox) Translate(dx, dy float64) BBox {
	return BBox{X: b.X + dx, Y: b.Y + dy, Width: b.Width, Height: b.Height}
}

// Intersect returns the intersection area of two boxes.
func (b BBox) Intersect(o BBox) float64 {
	w := math.Min(b.X+b.Width, o.X+o.Width) - math.Max(b.X, o.X)
	h := math.Min(b.Y+b.Height, o.Y+o.Height) - math.Max(b.Y, o.Y)
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// OverlapRatio returns intersection-over-union of two boxes in [0,1].
func (b BBox) OverlapRatio(o BBox) float64 {
	inter := b.Intersect(o)
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Within reports whether the box lies entirely inside a w x h frame.
func (b BBox) Within(w, h float64) bool {
	return b.X >= 0 && b.Y >= 0 && b.X+b.Width <= w && b.Y+b.Height <= h
}
