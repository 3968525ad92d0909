package camlib

// Geometry transforms for board manipulation: translation for panel
// placement, scaling for shrink/stretch compensation, mirroring for
// double-sided work. All return new values.

// Translate returns the geometry displaced by v.
func (g Geometry) Translate(v Vec2) Geometry {
	return g.mapPoints(func(p Point) Point { return p.Add(v) }, false)
}

// Scale returns the geometry scaled about origin by sx, sy.
// Negative factors mirror; ring winding is corrected so outer rings stay
// counter-clockwise.
func (g Geometry) Scale(sx, sy float64, origin Point) Geometry {
	flip := sx*sy < 0
	return g.mapPoints(func(p Point) Point {
		return Point{
			X: origin.X + (p.X-origin.X)*sx,
			Y: origin.Y + (p.Y-origin.Y)*sy,
		}
	}, flip)
}

// MirrorX returns the geometry mirrored across the vertical line x = axis.
// Used when flipping a board to mill the bottom copper layer.
func (g Geometry) MirrorX(axis float64) Geometry {
	return g.mapPoints(func(p Point) Point {
		return Point{X: 2*axis - p.X, Y: p.Y}
	}, true)
}

// MirrorY returns the geometry mirrored across the horizontal line y = axis.
func (g Geometry) MirrorY(axis float64) Geometry {
	return g.mapPoints(func(p Point) Point {
		return Point{X: p.X, Y: 2*axis - p.Y}
	}, true)
}

// mapPoints applies fn to every vertex. When flip is set, ring order is
// reversed to preserve the winding convention.
func (g Geometry) mapPoints(fn func(Point) Point, flip bool) Geometry {
	mapRing := func(r Ring) Ring {
		out := make(Ring, len(r))
		for i, p := range r {
			out[i] = fn(p)
		}
		if flip {
			out = out.Reversed()
		}
		return out
	}

	var out Geometry
	for _, poly := range g.Polygons {
		np := Polygon{Outer: mapRing(poly.Outer)}
		for _, h := range poly.Holes {
			np.Holes = append(np.Holes, mapRing(h))
		}
		out.Polygons = append(out.Polygons, np)
	}
	for _, l := range g.Lines {
		nl := make(Polyline, len(l))
		for i, p := range l {
			nl[i] = fn(p)
		}
		out.Lines = append(out.Lines, nl)
	}
	for _, p := range g.Points {
		out.Points = append(out.Points, fn(p))
	}
	return out
}
