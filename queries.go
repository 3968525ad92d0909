package camlib

import "math"

// Spatial queries used by the toolpath generators and the path optimizer:
// containment tests to order cut-out and isolation loops from the inside
// out, and nearest-point queries to pick rapid-move targets.

// ContainsPoint reports whether pt lies inside any polygon part of g.
func (g Geometry) ContainsPoint(pt Point) bool {
	for _, p := range g.Polygons {
		if p.Contains(pt) {
			return true
		}
	}
	return false
}

// Contains reports whether every part of inner lies inside the polygon
// parts of outer. Vertices are tested individually; boundaries touching
// within the default tolerance count as inside.
func Contains(outer, inner Geometry, cfg KernelConfig) bool {
	cfg = cfg.normalized()
	test := func(pt Point) bool {
		for _, p := range outer.Polygons {
			if p.Contains(pt) {
				return true
			}
		}
		// A vertex exactly on a boundary is inside for our purposes.
		_, d := NearestPointOn(outer, pt)
		return d <= cfg.Tolerance
	}
	for _, p := range inner.Polygons {
		for _, v := range p.Outer {
			if !test(v) {
				return false
			}
		}
	}
	for _, l := range inner.Lines {
		for _, v := range l {
			if !test(v) {
				return false
			}
		}
	}
	for _, v := range inner.Points {
		if !test(v) {
			return false
		}
	}
	return true
}

// ContainmentDepth returns how many polygon parts of g strictly contain pt.
// Deeper loops must be cut before the loops that enclose them, so the
// optimizer orders descending by this count.
func ContainmentDepth(g Geometry, pt Point) int {
	depth := 0
	for _, p := range g.Polygons {
		if p.Contains(pt) {
			depth++
		}
	}
	return depth
}

// NearestPointOn returns the point on any boundary of g closest to pt and
// its distance. An empty geometry returns pt itself with infinite distance.
func NearestPointOn(g Geometry, pt Point) (Point, float64) {
	best := pt
	bestDist := math.Inf(1)
	consider := func(p Point, d float64) {
		if d < bestDist {
			best = p
			bestDist = d
		}
	}
	ringEdges := func(r Ring) {
		n := len(r)
		for i := 0; i < n; i++ {
			p := nearestOnSegment(r[i], r[(i+1)%n], pt)
			consider(p, p.Distance(pt))
		}
	}
	for _, poly := range g.Polygons {
		ringEdges(poly.Outer)
		for _, h := range poly.Holes {
			ringEdges(h)
		}
	}
	for _, l := range g.Lines {
		for i := 0; i+1 < len(l); i++ {
			p := nearestOnSegment(l[i], l[i+1], pt)
			consider(p, p.Distance(pt))
		}
	}
	for _, p := range g.Points {
		consider(p, p.Distance(pt))
	}
	return best, bestDist
}

// nearestOnSegment projects pt onto segment ab, clamped to the endpoints.
func nearestOnSegment(a, b, pt Point) Point {
	ab := b.Sub(a)
	den := ab.LengthSquared()
	if den == 0 {
		return a
	}
	t := pt.Sub(a).Dot(ab) / den
	if t <= 0 {
		return a
	}
	if t >= 1 {
		return b
	}
	return a.Lerp(b, t)
}
