package camlib

import "math"

// Point represents a 2D position in millimeters.
type Point struct {
	X, Y float64
}

// Pt is a convenience function to create a Point.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Add returns the point displaced by a vector.
func (p Point) Add(v Vec2) Point {
	return Point{X: p.X + v.X, Y: p.Y + v.Y}
}

// Sub returns the displacement from q to p.
func (p Point) Sub(q Point) Vec2 {
	return Vec2{X: p.X - q.X, Y: p.Y - q.Y}
}

// Distance returns the distance between two points.
func (p Point) Distance(q Point) float64 {
	return p.Sub(q).Length()
}

// DistanceSquared returns the squared distance between two points.
// Faster than Distance when only comparing magnitudes.
func (p Point) DistanceSquared(q Point) float64 {
	return p.Sub(q).LengthSquared()
}

// Lerp performs linear interpolation between two points.
// t=0 returns p, t=1 returns q, intermediate values interpolate.
func (p Point) Lerp(q Point, t float64) Point {
	return Point{
		X: p.X + (q.X-p.X)*t,
		Y: p.Y + (q.Y-p.Y)*t,
	}
}

// Mid returns the midpoint of p and q.
func (p Point) Mid(q Point) Point {
	return p.Lerp(q, 0.5)
}

// Snap rounds the point onto a grid of the given spacing.
// A non-positive spacing returns the point unchanged.
func (p Point) Snap(spacing float64) Point {
	if spacing <= 0 {
		return p
	}
	return Point{
		X: math.Round(p.X/spacing) * spacing,
		Y: math.Round(p.Y/spacing) * spacing,
	}
}

// Approx returns true if p and q are within epsilon on both axes.
func (p Point) Approx(q Point, epsilon float64) bool {
	return math.Abs(p.X-q.X) < epsilon && math.Abs(p.Y-q.Y) < epsilon
}
