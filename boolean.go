package camlib

import (
	"math"
	"sort"
)

// Boolean operations on polygon sets. The implementation splits every edge
// of both operands at pairwise intersections, classifies each fragment by
// sampling the operation predicate on both of its sides, and stitches the
// surviving fragments back into rings. Results are snapped onto the
// tolerance grid and stripped of slivers.
//
// Only polygon parts participate; lines and points of the operands are not
// carried into the result.

// Union returns the region covered by a, b or both.
func Union(a, b Geometry, cfg KernelConfig) Geometry {
	return clip(a.Polygons, b.Polygons, opUnion, cfg)
}

// Intersection returns the region covered by both a and b.
func Intersection(a, b Geometry, cfg KernelConfig) Geometry {
	return clip(a.Polygons, b.Polygons, opIntersection, cfg)
}

// Difference returns the region covered by a but not by b.
func Difference(a, b Geometry, cfg KernelConfig) Geometry {
	return clip(a.Polygons, b.Polygons, opDifference, cfg)
}

// UnionAll merges the polygon parts of g into a minimal set of
// non-overlapping polygons. Parsers use it to flatten stacked pad and
// trace shapes into one copper region per net island.
func UnionAll(g Geometry, cfg KernelConfig) Geometry {
	return clip(g.Polygons, nil, opUnion, cfg)
}

type clipOp int

const (
	opUnion clipOp = iota
	opIntersection
	opDifference
)

// lineIntersect solves a + t*(b-a) = c + u*(d-c). parallel is true when the
// segments have no unique crossing point.
func lineIntersect(a, b, c, d Point) (t, u float64, parallel bool) {
	d1 := b.Sub(a)
	d2 := d.Sub(c)
	denom := d1.Cross(d2)
	if math.Abs(denom) < 1e-12 {
		return 0, 0, true
	}
	ac := c.Sub(a)
	t = ac.Cross(d2) / denom
	u = ac.Cross(d1) / denom
	return t, u, false
}

// segmentIntersect reports a proper crossing between segments ab and cd,
// excluding shared endpoints and touches within tol of an endpoint. The
// returned parameters locate the crossing on each segment.
func segmentIntersect(a, b, c, d Point, tol float64) (t, u float64, ok bool) {
	t, u, parallel := lineIntersect(a, b, c, d)
	if parallel {
		return 0, 0, false
	}
	mt := paramMargin(a, b, tol)
	mu := paramMargin(c, d, tol)
	if t <= mt || t >= 1-mt || u <= mu || u >= 1-mu {
		return 0, 0, false
	}
	return t, u, true
}

// paramMargin converts a distance tolerance into a parameter-space margin
// for the given segment.
func paramMargin(a, b Point, tol float64) float64 {
	length := a.Distance(b)
	if length < tol {
		return 0.5
	}
	return tol / length
}

// clipEdge is a directed edge fragment during clipping.
type clipEdge struct {
	a, b Point
}

func (e clipEdge) reversed() clipEdge { return clipEdge{a: e.b, b: e.a} }

// clip runs one boolean operation over two polygon sets.
func clip(aPolys, bPolys []Polygon, op clipOp, cfg KernelConfig) Geometry {
	cfg = cfg.normalized()
	aRings := collectRings(aPolys, cfg)
	bRings := collectRings(bPolys, cfg)
	if len(aRings) == 0 && (op != opUnion || len(bRings) == 0) {
		return Geometry{}
	}

	fragments := splitEdges(append(append([]Ring{}, aRings...), bRings...), cfg)

	inside := func(p Point) bool {
		inA := windingOf(aRings, p) > 0
		inB := windingOf(bRings, p) > 0
		switch op {
		case opIntersection:
			return inA && inB
		case opDifference:
			return inA && !inB
		default:
			return inA || inB
		}
	}

	// Keep each fragment only if it separates inside from outside, oriented
	// so the material lies on its left.
	eps := cfg.Tolerance / 2
	seen := make(map[[4]int64]bool, len(fragments))
	var kept []clipEdge
	for _, e := range fragments {
		dir := e.b.Sub(e.a)
		length := dir.Length()
		if length < cfg.Tolerance {
			continue
		}
		n := dir.Mul(1 / length).Perp()
		mid := e.a.Mid(e.b)
		left := inside(mid.Add(n.Mul(eps)))
		right := inside(mid.Add(n.Mul(-eps)))
		if left == right {
			continue
		}
		if right {
			e = e.reversed()
		}
		key := [4]int64{quant(e.a.X, cfg.Tolerance), quant(e.a.Y, cfg.Tolerance),
			quant(e.b.X, cfg.Tolerance), quant(e.b.Y, cfg.Tolerance)}
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, e)
	}

	rings := stitch(kept, cfg)
	return assemble(rings, cfg)
}

// collectRings gathers all rings of the polygons in canonical winding,
// snapped onto the grid. Degenerate rings are dropped.
func collectRings(polys []Polygon, cfg KernelConfig) []Ring {
	var out []Ring
	for _, p := range polys {
		p = p.normalized()
		if r := p.Outer.snapped(cfg.Tolerance); len(r) >= 3 {
			out = append(out, r)
		}
		for _, h := range p.Holes {
			if r := h.snapped(cfg.Tolerance); len(r) >= 3 {
				out = append(out, r)
			}
		}
	}
	return out
}

// resolveRings flattens a set of raw rings, which may self-intersect or
// overlap, into clean polygons under the non-zero fill rule. The offset
// machinery uses it to clean up raw parallel-offset loops.
func resolveRings(raw []Ring, cfg KernelConfig) []Polygon {
	cfg = cfg.normalized()
	var snapped []Ring
	for _, r := range raw {
		if s := r.snapped(cfg.Tolerance); len(s) >= 3 {
			snapped = append(snapped, s)
		}
	}
	if len(snapped) == 0 {
		return nil
	}
	fragments := splitEdges(snapped, cfg)

	eps := cfg.Tolerance / 2
	seen := make(map[[4]int64]bool, len(fragments))
	var kept []clipEdge
	for _, e := range fragments {
		dir := e.b.Sub(e.a)
		length := dir.Length()
		if length < cfg.Tolerance {
			continue
		}
		n := dir.Mul(1 / length).Perp()
		mid := e.a.Mid(e.b)
		left := windingOf(snapped, mid.Add(n.Mul(eps))) > 0
		right := windingOf(snapped, mid.Add(n.Mul(-eps))) > 0
		if left == right {
			continue
		}
		if right {
			e = e.reversed()
		}
		key := [4]int64{quant(e.a.X, cfg.Tolerance), quant(e.a.Y, cfg.Tolerance),
			quant(e.b.X, cfg.Tolerance), quant(e.b.Y, cfg.Tolerance)}
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, e)
	}
	return assemble(stitch(kept, cfg), cfg).Polygons
}

// windingOf sums the winding numbers of all rings around p.
func windingOf(rings []Ring, p Point) int {
	var w int
	for _, r := range rings {
		w += r.Winding(p)
	}
	return w
}

// splitEdges breaks every ring edge at its crossings with all other edges
// and returns the resulting fragments.
func splitEdges(rings []Ring, cfg KernelConfig) []clipEdge {
	type edge struct {
		a, b Point
		bb   Rect
	}
	var edges []edge
	for _, r := range rings {
		n := len(r)
		for i := 0; i < n; i++ {
			a, b := r[i], r[(i+1)%n]
			bb := EmptyRect().Expand(a).Expand(b)
			edges = append(edges, edge{a: a, b: b, bb: bb.Inset(-cfg.Tolerance)})
		}
	}

	var out []clipEdge
	params := make([]float64, 0, 8)
	for i, e := range edges {
		params = params[:0]
		me := paramMargin(e.a, e.b, cfg.Tolerance)
		for j, f := range edges {
			if i == j || !e.bb.Overlaps(f.bb) {
				continue
			}
			t, u, parallel := lineIntersect(e.a, e.b, f.a, f.b)
			if parallel {
				continue
			}
			mf := paramMargin(f.a, f.b, cfg.Tolerance)
			if t <= me || t >= 1-me || u < -mf || u > 1+mf {
				continue
			}
			params = append(params, t)
		}
		sort.Float64s(params)
		prev := e.a
		prevT := 0.0
		for _, t := range params {
			if t-prevT < me {
				continue
			}
			pt := e.a.Lerp(e.b, t).Snap(cfg.Tolerance)
			if !pt.Approx(prev, cfg.Tolerance/2) {
				out = append(out, clipEdge{a: prev, b: pt})
				prev = pt
			}
			prevT = t
		}
		if !e.b.Approx(prev, cfg.Tolerance/2) {
			out = append(out, clipEdge{a: prev, b: e.b})
		}
	}
	return out
}

func quant(v, tol float64) int64 {
	return int64(math.Round(v / tol))
}

// stitch links directed fragments into closed rings. At a junction with
// several continuations the leftmost turn is taken, which keeps the
// material face on the left and traces each boundary loop exactly once.
func stitch(edges []clipEdge, cfg KernelConfig) []Ring {
	type nodeKey [2]int64
	keyOf := func(p Point) nodeKey {
		return nodeKey{quant(p.X, cfg.Tolerance), quant(p.Y, cfg.Tolerance)}
	}

	starts := make(map[nodeKey][]int, len(edges))
	for i, e := range edges {
		k := keyOf(e.a)
		starts[k] = append(starts[k], i)
	}
	used := make([]bool, len(edges))

	takeNext := func(at nodeKey, din Vec2) int {
		best := -1
		bestTurn := math.Inf(-1)
		for _, idx := range starts[at] {
			if used[idx] {
				continue
			}
			dout := edges[idx].b.Sub(edges[idx].a)
			if dout.IsZero() {
				continue
			}
			turn := math.Atan2(din.Cross(dout), din.Dot(dout))
			// Rank a U-turn below every genuine continuation.
			if turn > math.Pi-1e-9 || turn < -math.Pi+1e-9 {
				turn = -math.Pi
			}
			if turn > bestTurn {
				bestTurn = turn
				best = idx
			}
		}
		return best
	}

	var rings []Ring
	for i := range edges {
		if used[i] {
			continue
		}
		used[i] = true
		ring := Ring{edges[i].a, edges[i].b}
		start := keyOf(edges[i].a)
		cur := keyOf(edges[i].b)
		din := edges[i].b.Sub(edges[i].a)
		closed := cur == start
		for !closed {
			next := takeNext(cur, din)
			if next < 0 {
				break // open chain, discard
			}
			used[next] = true
			din = edges[next].b.Sub(edges[next].a)
			cur = keyOf(edges[next].b)
			if cur == start {
				closed = true
			} else {
				ring = append(ring, edges[next].b)
			}
		}
		if closed && len(ring) >= 3 {
			rings = append(rings, ring)
		}
	}
	return rings
}

// assemble groups stitched rings into polygons: counter-clockwise rings
// become outers, clockwise rings become holes of the smallest outer that
// contains them.
func assemble(rings []Ring, cfg KernelConfig) Geometry {
	type outer struct {
		ring Ring
		area float64
		bb   Rect
	}
	var outers []outer
	var holes []Ring
	for _, r := range rings {
		r = r.dissolved(cfg.Tolerance)
		if r == nil {
			continue
		}
		area := r.Area()
		if math.Abs(area) < cfg.SliverArea {
			continue
		}
		if area > 0 {
			outers = append(outers, outer{ring: r, area: area, bb: r.BoundingBox()})
		} else {
			holes = append(holes, r)
		}
	}
	if len(outers) == 0 {
		return Geometry{}
	}

	polys := make([]Polygon, len(outers))
	for i, o := range outers {
		polys[i].Outer = o.ring
	}
	for _, h := range holes {
		probe := holeProbe(h)
		best := -1
		bestArea := math.Inf(1)
		for i, o := range outers {
			if !o.bb.Contains(probe) {
				continue
			}
			if o.ring.Contains(probe) && o.area < bestArea {
				best = i
				bestArea = o.area
			}
		}
		if best >= 0 {
			polys[best].Holes = append(polys[best].Holes, h)
		}
	}
	return Geometry{Polygons: polys}
}

// holeProbe returns a point strictly inside the hole ring: the midpoint of
// a short inward step from an edge midpoint.
func holeProbe(h Ring) Point {
	// For a clockwise ring the enclosed region lies to the right of each
	// edge. Step off the longest edge to stay clear of the boundary.
	n := len(h)
	bestLen := 0.0
	var a, b Point
	for i := 0; i < n; i++ {
		p, q := h[i], h[(i+1)%n]
		if d := p.Distance(q); d > bestLen {
			bestLen = d
			a, b = p, q
		}
	}
	dir := b.Sub(a).Normalize()
	return a.Mid(b).Add(dir.Perp().Mul(-bestLen * 1e-3))
}
