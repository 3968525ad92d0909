package camlib

import "math"

// KernelConfig carries the numeric policy for kernel operations.
// Use DefaultKernel unless the board data demands otherwise.
type KernelConfig struct {
	// Tolerance is the coordinate snap grid in millimeters. All offset and
	// boolean results are rounded onto this grid.
	Tolerance float64

	// SliverArea is the minimum ring area in square millimeters kept after
	// an offset or boolean operation. Rings below it are discarded as
	// numeric slivers.
	SliverArea float64

	// ArcSegments is the number of line segments used to approximate a
	// full circle in round joins, caps and circular apertures.
	ArcSegments int
}

// DefaultKernel returns the kernel configuration used throughout the
// pipeline unless a caller overrides it: a 0.1 micron snap grid, a
// 1e-6 mm^2 sliver cutoff and 64 segments per circle.
func DefaultKernel() KernelConfig {
	return KernelConfig{
		Tolerance:   1e-4,
		SliverArea:  1e-6,
		ArcSegments: 64,
	}
}

// Normalized fills in zero fields with defaults so partially constructed
// configs behave sensibly. Kernel operations apply it internally; other
// packages call it before reading config fields directly.
func (c KernelConfig) Normalized() KernelConfig {
	return c.normalized()
}

func (c KernelConfig) normalized() KernelConfig {
	d := DefaultKernel()
	if c.Tolerance <= 0 {
		c.Tolerance = d.Tolerance
	}
	if c.SliverArea <= 0 {
		c.SliverArea = d.SliverArea
	}
	if c.ArcSegments < 8 {
		c.ArcSegments = d.ArcSegments
	}
	return c
}

// Ring is a closed sequence of vertices. The edge from the last vertex back
// to the first is implicit. Outer boundaries wind counter-clockwise, holes
// clockwise.
type Ring []Point

// Area returns the signed area of the ring using the shoelace formula.
// Positive for counter-clockwise rings, negative for clockwise.
func (r Ring) Area() float64 {
	var area float64
	n := len(r)
	for i := 0; i < n; i++ {
		a := r[i]
		b := r[(i+1)%n]
		area += a.X*b.Y - b.X*a.Y
	}
	return area / 2
}

// IsCCW reports whether the ring winds counter-clockwise.
func (r Ring) IsCCW() bool {
	return r.Area() > 0
}

// Reversed returns a copy of the ring with opposite winding.
func (r Ring) Reversed() Ring {
	out := make(Ring, len(r))
	for i, p := range r {
		out[len(r)-1-i] = p
	}
	return out
}

// Clone returns an independent copy of the ring.
func (r Ring) Clone() Ring {
	out := make(Ring, len(r))
	copy(out, r)
	return out
}

// BoundingBox returns the axis-aligned bounds of the ring.
func (r Ring) BoundingBox() Rect {
	bb := EmptyRect()
	for _, p := range r {
		bb = bb.Expand(p)
	}
	return bb
}

// Winding returns the winding number of pt relative to the ring.
// 0 means outside; non-zero means inside under the non-zero fill rule.
func (r Ring) Winding(pt Point) int {
	var winding int
	n := len(r)
	for i := 0; i < n; i++ {
		winding += lineWinding(r[i], r[(i+1)%n], pt)
	}
	return winding
}

// Contains reports whether pt lies strictly inside the ring.
func (r Ring) Contains(pt Point) bool {
	return r.Winding(pt) != 0
}

// lineWinding computes the winding contribution of one segment.
func lineWinding(p0, p1, pt Point) int {
	if p0.Y <= pt.Y && p1.Y > pt.Y {
		if isLeft(p0, p1, pt) > 0 {
			return 1
		}
	} else if p0.Y > pt.Y && p1.Y <= pt.Y {
		if isLeft(p0, p1, pt) < 0 {
			return -1
		}
	}
	return 0
}

// isLeft returns positive if pt is left of line p0->p1, negative if right.
func isLeft(p0, p1, pt Point) float64 {
	return (p1.X-p0.X)*(pt.Y-p0.Y) - (pt.X-p0.X)*(p1.Y-p0.Y)
}

// snapped returns the ring snapped onto the tolerance grid with coincident
// neighbors merged.
func (r Ring) snapped(tol float64) Ring {
	out := make(Ring, 0, len(r))
	for _, p := range r {
		sp := p.Snap(tol)
		if len(out) > 0 && out[len(out)-1].Approx(sp, tol/2) {
			continue
		}
		out = append(out, sp)
	}
	// The implicit closing edge must not be degenerate either.
	for len(out) > 1 && out[0].Approx(out[len(out)-1], tol/2) {
		out = out[:len(out)-1]
	}
	return out
}

// dissolved returns the ring with collinear interior vertices removed.
func (r Ring) dissolved(tol float64) Ring {
	if len(r) < 4 {
		return r
	}
	out := make(Ring, 0, len(r))
	n := len(r)
	for i := 0; i < n; i++ {
		prev := r[(i-1+n)%n]
		cur := r[i]
		next := r[(i+1)%n]
		ab := cur.Sub(prev)
		bc := next.Sub(cur)
		if math.Abs(ab.Cross(bc)) > tol*(ab.Length()+bc.Length()) {
			out = append(out, cur)
		}
	}
	if len(out) < 3 {
		return nil
	}
	return out
}

// selfIntersects reports whether any two non-adjacent edges of the ring
// cross each other.
func (r Ring) selfIntersects(tol float64) bool {
	n := len(r)
	for i := 0; i < n; i++ {
		a := r[i]
		b := r[(i+1)%n]
		for j := i + 2; j < n; j++ {
			// Skip the edge pair sharing the implicit closing vertex.
			if i == 0 && j == n-1 {
				continue
			}
			c := r[j]
			d := r[(j+1)%n]
			if _, _, ok := segmentIntersect(a, b, c, d, tol); ok {
				return true
			}
		}
	}
	return false
}

// Polygon is a single connected region: one outer ring plus zero or more
// holes. Holes wind opposite to the outer ring.
type Polygon struct {
	Outer Ring
	Holes []Ring
}

// Area returns the enclosed area: the outer ring's area minus the holes.
func (p Polygon) Area() float64 {
	area := math.Abs(p.Outer.Area())
	for _, h := range p.Holes {
		area -= math.Abs(h.Area())
	}
	return area
}

// BoundingBox returns the bounds of the outer ring.
func (p Polygon) BoundingBox() Rect {
	return p.Outer.BoundingBox()
}

// Contains reports whether pt lies inside the polygon and outside all of
// its holes.
func (p Polygon) Contains(pt Point) bool {
	if !p.Outer.Contains(pt) {
		return false
	}
	for _, h := range p.Holes {
		if h.Contains(pt) {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the polygon.
func (p Polygon) Clone() Polygon {
	out := Polygon{Outer: p.Outer.Clone()}
	for _, h := range p.Holes {
		out.Holes = append(out.Holes, h.Clone())
	}
	return out
}

// normalized returns the polygon with canonical winding: outer
// counter-clockwise, holes clockwise.
func (p Polygon) normalized() Polygon {
	out := p
	if !p.Outer.IsCCW() {
		out.Outer = p.Outer.Reversed()
	}
	out.Holes = nil
	for _, h := range p.Holes {
		if h.IsCCW() {
			h = h.Reversed()
		}
		out.Holes = append(out.Holes, h)
	}
	return out
}

// Validate checks the polygon for structural defects: too few vertices,
// near-zero area, or self-intersecting rings. The returned error is a
// *GeometricError, or nil.
func (p Polygon) Validate(cfg KernelConfig) error {
	cfg = cfg.normalized()
	if len(p.Outer) < 3 {
		return &GeometricError{Op: "validate", Reason: "outer ring has fewer than 3 vertices"}
	}
	if math.Abs(p.Outer.Area()) < cfg.SliverArea {
		return &GeometricError{Op: "validate", Reason: "polygon area is below the sliver threshold"}
	}
	if p.Outer.selfIntersects(cfg.Tolerance) {
		return &GeometricError{Op: "validate", Reason: "outer ring is self-intersecting"}
	}
	for i, h := range p.Holes {
		if len(h) < 3 {
			return &GeometricError{Op: "validate", Reason: "hole ring has fewer than 3 vertices", Index: i}
		}
		if h.selfIntersects(cfg.Tolerance) {
			return &GeometricError{Op: "validate", Reason: "hole ring is self-intersecting", Index: i}
		}
	}
	return nil
}

// Polyline is an open sequence of vertices traversed in order.
type Polyline []Point

// Length returns the total length of the polyline.
func (l Polyline) Length() float64 {
	var total float64
	for i := 1; i < len(l); i++ {
		total += l[i-1].Distance(l[i])
	}
	return total
}

// BoundingBox returns the axis-aligned bounds of the polyline.
func (l Polyline) BoundingBox() Rect {
	bb := EmptyRect()
	for _, p := range l {
		bb = bb.Expand(p)
	}
	return bb
}

// Clone returns an independent copy of the polyline.
func (l Polyline) Clone() Polyline {
	out := make(Polyline, len(l))
	copy(out, l)
	return out
}

// Geometry is the multi-part spatial container produced by the parsers and
// consumed by the toolpath generators. Operations return new values; a
// Geometry is never mutated once handed to another pipeline stage.
type Geometry struct {
	Polygons []Polygon
	Lines    []Polyline
	Points   []Point
}

// IsEmpty reports whether the geometry has no parts at all.
func (g Geometry) IsEmpty() bool {
	return len(g.Polygons) == 0 && len(g.Lines) == 0 && len(g.Points) == 0
}

// BoundingBox returns the bounds of every part of the geometry.
func (g Geometry) BoundingBox() Rect {
	bb := EmptyRect()
	for _, p := range g.Polygons {
		bb = bb.Union(p.BoundingBox())
	}
	for _, l := range g.Lines {
		bb = bb.Union(l.BoundingBox())
	}
	for _, p := range g.Points {
		bb = bb.Expand(p)
	}
	return bb
}

// Area returns the summed area of all polygon parts.
func (g Geometry) Area() float64 {
	var area float64
	for _, p := range g.Polygons {
		area += p.Area()
	}
	return area
}

// Clone returns a deep copy of the geometry.
func (g Geometry) Clone() Geometry {
	out := Geometry{}
	for _, p := range g.Polygons {
		out.Polygons = append(out.Polygons, p.Clone())
	}
	for _, l := range g.Lines {
		out.Lines = append(out.Lines, l.Clone())
	}
	out.Points = append(out.Points, g.Points...)
	return out
}

// Append merges the parts of other into a copy of g.
func (g Geometry) Append(other Geometry) Geometry {
	out := g.Clone()
	for _, p := range other.Polygons {
		out.Polygons = append(out.Polygons, p.Clone())
	}
	for _, l := range other.Lines {
		out.Lines = append(out.Lines, l.Clone())
	}
	out.Points = append(out.Points, other.Points...)
	return out
}

// Validate checks every polygon part. The first structural defect found is
// returned as a *GeometricError.
func (g Geometry) Validate(cfg KernelConfig) error {
	for i, p := range g.Polygons {
		if err := p.Validate(cfg); err != nil {
			ge := err.(*GeometricError)
			ge.Index = i
			return ge
		}
	}
	return nil
}
