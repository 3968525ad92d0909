package camlib

import "math"

// Polygon offsetting and polyline stroking. Each ring edge is displaced
// along its outward normal; the gaps that open at corners are filled
// according to the join style, and the raw loop is then cleaned of
// self-intersections by the clipping machinery. Stroking expands an open
// path into the polygon swept by a round tool of the given width, which is
// how Gerber draw strokes and Excellon slots become copper regions.

// JoinStyle selects how offset corners are filled.
type JoinStyle int

const (
	// JoinRound fills corners with a circular arc. This is the correct
	// style for tool compensation: a round cutter sweeps an arc around
	// every convex corner.
	JoinRound JoinStyle = iota

	// JoinMiter extends the offset edges to their intersection, falling
	// back to bevel past the miter limit.
	JoinMiter

	// JoinBevel connects the offset edges with a straight segment.
	JoinBevel
)

// miterLimit caps the miter apex distance at this multiple of the offset
// distance, matching the common CAD default.
const miterLimit = 4.0

// Offset displaces every polygon boundary of g by distance: positive grows
// the material, negative shrinks it. Polygons that collapse under a
// negative offset vanish from the result; polygons that grow into each
// other are merged. Lines and points are carried through unchanged.
func Offset(g Geometry, distance float64, join JoinStyle, cfg KernelConfig) (Geometry, error) {
	cfg = cfg.normalized()
	if err := g.Validate(cfg); err != nil {
		ge := err.(*GeometricError)
		ge.Op = "offset"
		return Geometry{}, ge
	}
	var polys []Polygon
	for i, p := range g.Polygons {
		out, err := OffsetPolygon(p, distance, join, cfg)
		if err != nil {
			ge := err.(*GeometricError)
			ge.Index = i
			return Geometry{}, ge
		}
		polys = append(polys, out...)
	}
	merged := UnionAll(Geometry{Polygons: polys}, cfg)
	merged.Lines = append(merged.Lines, g.Lines...)
	merged.Points = append(merged.Points, g.Points...)
	return merged, nil
}

// OffsetPolygon displaces one polygon boundary by distance. The result may
// be empty (the polygon collapsed) or split into several polygons (a
// negative offset pinched a narrow waist).
func OffsetPolygon(p Polygon, distance float64, join JoinStyle, cfg KernelConfig) ([]Polygon, error) {
	cfg = cfg.normalized()
	p = p.normalized()
	if len(p.Outer) < 3 {
		return nil, &GeometricError{Op: "offset", Reason: "outer ring has fewer than 3 vertices"}
	}
	if distance == 0 {
		return []Polygon{p.Clone()}, nil
	}

	outer := resolveRings([]Ring{offsetRing(p.Outer, distance, join, cfg)}, cfg)
	if len(outer) == 0 {
		return nil, nil
	}
	if len(p.Holes) == 0 {
		return outer, nil
	}

	// Growing the material shrinks each hole void and vice versa, so the
	// voids are offset by the negated distance.
	var voids []Polygon
	for _, h := range p.Holes {
		void := offsetRing(h.Reversed(), -distance, join, cfg)
		voids = append(voids, resolveRings([]Ring{void}, cfg)...)
	}
	if len(voids) == 0 {
		return outer, nil
	}
	result := Difference(Geometry{Polygons: outer}, Geometry{Polygons: voids}, cfg)
	return result.Polygons, nil
}

// offsetRing builds the raw offset loop of a counter-clockwise ring. The
// loop may self-intersect; callers resolve it with resolveRings.
func offsetRing(r Ring, d float64, join JoinStyle, cfg KernelConfig) Ring {
	n := len(r)
	out := make(Ring, 0, n*2)
	for i := 0; i < n; i++ {
		a := r[i]
		b := r[(i+1)%n]
		c := r[(i+2)%n]
		dir1 := b.Sub(a).Normalize()
		dir2 := c.Sub(b).Normalize()
		// For a counter-clockwise ring the interior lies to the left, so
		// the outward normal is the right-hand perpendicular.
		out1 := dir1.Perp().Neg()
		out2 := dir2.Perp().Neg()
		oa := a.Add(out1.Mul(d))
		ob := b.Add(out1.Mul(d))
		out = append(out, oa, ob)

		cross := dir1.Cross(dir2)
		if cross*d <= 1e-12 {
			// The offset edges overlap at this corner; the cleanup pass
			// removes the crossing.
			continue
		}
		p2 := b.Add(out2.Mul(d))
		switch join {
		case JoinMiter:
			if apex, ok := miterApex(oa, ob, p2, p2.Add(dir2), b, d); ok {
				out = append(out, apex)
			}
		case JoinBevel:
			// ob connects straight to the next edge start.
		default:
			out = append(out, arcBetween(b, ob, p2, math.Abs(d), cross > 0, cfg)...)
		}
	}
	return out
}

// miterApex intersects the two offset edge lines and accepts the apex when
// it lies within the miter limit of the corner vertex.
func miterApex(a1, b1, a2, b2, corner Point, d float64) (Point, bool) {
	t, _, parallel := lineIntersect(a1, b1, a2, b2)
	if parallel {
		return Point{}, false
	}
	apex := a1.Lerp(b1, t)
	if corner.Distance(apex) > miterLimit*math.Abs(d) {
		return Point{}, false
	}
	return apex, true
}

// arcBetween emits the interior points of a circular arc around center from
// p1 to p2 at the given radius. ccw selects the rotation direction. The
// endpoints themselves are not emitted.
func arcBetween(center Point, p1, p2 Point, radius float64, ccw bool, cfg KernelConfig) []Point {
	a1 := math.Atan2(p1.Y-center.Y, p1.X-center.X)
	a2 := math.Atan2(p2.Y-center.Y, p2.X-center.X)
	sweep := a2 - a1
	if ccw {
		for sweep < 0 {
			sweep += 2 * math.Pi
		}
	} else {
		for sweep > 0 {
			sweep -= 2 * math.Pi
		}
	}
	step := 2 * math.Pi / float64(cfg.ArcSegments)
	steps := int(math.Ceil(math.Abs(sweep) / step))
	if steps < 2 {
		return nil
	}
	pts := make([]Point, 0, steps-1)
	for k := 1; k < steps; k++ {
		ang := a1 + sweep*float64(k)/float64(steps)
		pts = append(pts, Point{
			X: center.X + radius*math.Cos(ang),
			Y: center.Y + radius*math.Sin(ang),
		})
	}
	return pts
}

// CirclePolygon approximates a circle as a counter-clockwise polygon with
// cfg.ArcSegments vertices. Used for round apertures, drill hits rendered
// as copper, and stroke caps.
func CirclePolygon(center Point, radius float64, cfg KernelConfig) Polygon {
	cfg = cfg.normalized()
	n := cfg.ArcSegments
	ring := make(Ring, n)
	for i := 0; i < n; i++ {
		ang := 2 * math.Pi * float64(i) / float64(n)
		ring[i] = Point{
			X: center.X + radius*math.Cos(ang),
			Y: center.Y + radius*math.Sin(ang),
		}
	}
	return Polygon{Outer: ring}
}

// StrokePolyline expands an open path into the polygon swept by a round
// tool of the given width, with round caps at both ends. A single-point
// path becomes a circle.
func StrokePolyline(line Polyline, width float64, cfg KernelConfig) []Polygon {
	cfg = cfg.normalized()
	if width <= 0 || len(line) == 0 {
		return nil
	}
	pts := dedupePoints(line, cfg.Tolerance)
	r := width / 2
	if len(pts) == 1 {
		return []Polygon{CirclePolygon(pts[0], r, cfg)}
	}
	outline := strokeOutline(pts, r, cfg)
	return resolveRings([]Ring{outline}, cfg)
}

// StrokeRing expands a closed path into the annular band swept by a round
// tool of the given width. This is the copper shape of a closed Gerber
// draw, and also the geometric model of a routed slot loop.
func StrokeRing(r Ring, width float64, cfg KernelConfig) []Polygon {
	cfg = cfg.normalized()
	if width <= 0 || len(r) < 3 {
		return nil
	}
	if !r.IsCCW() {
		r = r.Reversed()
	}
	half := width / 2
	outer := resolveRings([]Ring{offsetRing(r, half, JoinRound, cfg)}, cfg)
	inner := resolveRings([]Ring{offsetRing(r, -half, JoinRound, cfg)}, cfg)
	if len(inner) == 0 {
		return outer
	}
	band := Difference(Geometry{Polygons: outer}, Geometry{Polygons: inner}, cfg)
	return band.Polygons
}

// strokeOutline walks the right side of the path forward, rounds the far
// cap, walks the right side of the reversed path, and rounds the near cap.
// The material always stays on the left of the walk, so the loop closes
// counter-clockwise.
func strokeOutline(pts []Point, r float64, cfg KernelConfig) Ring {
	var out Ring
	out = appendStrokeSide(out, pts, r, cfg)

	last := pts[len(pts)-1]
	lastDir := last.Sub(pts[len(pts)-2]).Normalize()
	capFrom := last.Add(lastDir.Perp().Neg().Mul(r))
	capTo := last.Add(lastDir.Perp().Mul(r))
	out = append(out, arcBetween(last, capFrom, capTo, r, true, cfg)...)

	rev := make([]Point, len(pts))
	for i, p := range pts {
		rev[len(pts)-1-i] = p
	}
	out = appendStrokeSide(out, rev, r, cfg)

	first := pts[0]
	firstDir := pts[1].Sub(first).Normalize()
	capFrom = first.Add(firstDir.Perp().Mul(r))
	capTo = first.Add(firstDir.Perp().Neg().Mul(r))
	out = append(out, arcBetween(first, capFrom, capTo, r, true, cfg)...)
	return out
}

// appendStrokeSide emits the right-hand offset of the path with round
// joins wherever a left turn opens a gap on that side.
func appendStrokeSide(out Ring, pts []Point, r float64, cfg KernelConfig) Ring {
	for i := 0; i+1 < len(pts); i++ {
		a, b := pts[i], pts[i+1]
		dir := b.Sub(a).Normalize()
		n := dir.Perp().Neg().Mul(r)
		out = append(out, a.Add(n), b.Add(n))
		if i+2 < len(pts) {
			next := pts[i+2].Sub(b).Normalize()
			if dir.Cross(next) > 1e-12 {
				p2 := b.Add(next.Perp().Neg().Mul(r))
				out = append(out, arcBetween(b, b.Add(n), p2, r, true, cfg)...)
			}
		}
	}
	return out
}

// dedupePoints drops consecutive points closer than tol.
func dedupePoints(line Polyline, tol float64) []Point {
	out := make([]Point, 0, len(line))
	for _, p := range line {
		if len(out) > 0 && out[len(out)-1].Approx(p, tol) {
			continue
		}
		out = append(out, p)
	}
	return out
}
