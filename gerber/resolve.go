package gerber

import (
	"fmt"
	"math"

	"github.com/johnbetts/flatcam-mac-fork"
	"github.com/johnbetts/flatcam-mac-fork/internal/memo"
)

// Resolve renders the parsed commands into copper geometry. Flashes stamp
// aperture shapes, strokes sweep them along their paths, and regions fill
// their contours. Commands are applied in file order: runs of dark
// commands merge into the accumulated copper, runs of clear commands erase
// from it. Arcs are flattened here using cfg.ArcSegments.
//
// Zero-width strokes, which outline layers use for the board edge, carry
// no copper; they are returned as open lines instead.
func (d *Document) Resolve(cfg camlib.KernelConfig) (camlib.Geometry, error) {
	cfg = cfg.Normalized()
	scale := 1.0
	if d.Units == UnitsInch {
		scale = 25.4
	}

	// Boards flash the same pad aperture thousands of times; build each
	// aperture's shape once at the origin and translate per flash.
	flashes := memo.New[string, []camlib.Polygon](0)

	var acc camlib.Geometry
	var lines []camlib.Polyline
	i := 0
	for i < len(d.Commands) {
		pol := d.Commands[i].Polarity
		var batch []camlib.Polygon
		for i < len(d.Commands) && d.Commands[i].Polarity == pol {
			cmd := &d.Commands[i]
			polys, open, err := d.render(cmd, flashes, scale, cfg)
			if err != nil {
				return camlib.Geometry{}, err
			}
			batch = append(batch, polys...)
			lines = append(lines, open...)
			i++
		}
		part := camlib.UnionAll(camlib.Geometry{Polygons: batch}, cfg)
		if pol == Dark {
			acc = camlib.Union(acc, part, cfg)
		} else {
			acc = camlib.Difference(acc, part, cfg)
		}
	}
	acc.Lines = append(acc.Lines, lines...)
	camlib.Logger().Debug("gerber resolved",
		"commands", len(d.Commands),
		"polygons", len(acc.Polygons),
		"lines", len(acc.Lines))
	return acc, nil
}

// render produces the geometry of a single command.
func (d *Document) render(cmd *Command, flashes *memo.Cache[string, []camlib.Polygon], scale float64, cfg camlib.KernelConfig) ([]camlib.Polygon, []camlib.Polyline, error) {
	switch cmd.Kind {
	case KindFlash:
		ap, ok := d.Apertures[cmd.Aperture]
		if !ok {
			return nil, nil, &camlib.ReferenceError{Code: cmd.Aperture, Line: cmd.Line}
		}
		stamp, err := flashes.GetOrCreate(cmd.Aperture, func() ([]camlib.Polygon, error) {
			return ap.Flash(camlib.Pt(0, 0), d.Macros, scale, cfg)
		})
		if err != nil {
			return nil, nil, fmt.Errorf("gerber: line %d: %w", cmd.Line, err)
		}
		placed := camlib.Geometry{Polygons: stamp}.Translate(camlib.V2(cmd.At.X, cmd.At.Y))
		return placed.Polygons, nil, nil

	case KindStroke:
		ap, ok := d.Apertures[cmd.Aperture]
		if !ok {
			return nil, nil, &camlib.ReferenceError{Code: cmd.Aperture, Line: cmd.Line}
		}
		path := flattenPath(cmd.Start, cmd.Segments, cfg)
		width := ap.StrokeWidth()
		if width <= 0 {
			return nil, []camlib.Polyline{path}, nil
		}
		return camlib.StrokePolyline(path, width, cfg), nil, nil

	case KindRegion:
		path := flattenPath(cmd.Start, cmd.Segments, cfg)
		ring := camlib.Ring(path)
		// Contours close implicitly; drop an explicit closing vertex.
		if len(ring) > 1 && ring[0].Approx(ring[len(ring)-1], cfg.Tolerance) {
			ring = ring[:len(ring)-1]
		}
		if len(ring) < 3 {
			return nil, nil, nil
		}
		if !ring.IsCCW() {
			ring = ring.Reversed()
		}
		return []camlib.Polygon{{Outer: ring}}, nil, nil

	default:
		return nil, nil, fmt.Errorf("gerber: line %d: unknown command kind", cmd.Line)
	}
}

// flattenPath converts a segment chain into a polyline, sampling arcs at
// the kernel's arc resolution.
func flattenPath(start camlib.Point, segs []Segment, cfg camlib.KernelConfig) camlib.Polyline {
	path := camlib.Polyline{start}
	cur := start
	for _, s := range segs {
		if s.Arc == nil {
			path = append(path, s.To)
			cur = s.To
			continue
		}
		path = append(path, flattenArc(cur, s.To, s.Arc.Center, s.Arc.Clockwise, cfg)...)
		cur = s.To
	}
	return path
}

// flattenArc samples the arc from cur to to around center, excluding cur
// and including to. A coincident start and end is a full circle, as the
// multi-quadrant mode specifies.
func flattenArc(cur, to, center camlib.Point, clockwise bool, cfg camlib.KernelConfig) []camlib.Point {
	r1 := cur.Distance(center)
	r2 := to.Distance(center)
	if r1 < cfg.Tolerance {
		return []camlib.Point{to}
	}
	a1 := math.Atan2(cur.Y-center.Y, cur.X-center.X)
	a2 := math.Atan2(to.Y-center.Y, to.X-center.X)
	sweep := a2 - a1
	if clockwise {
		for sweep >= -1e-12 {
			sweep -= 2 * math.Pi
		}
	} else {
		for sweep <= 1e-12 {
			sweep += 2 * math.Pi
		}
	}
	steps := int(math.Ceil(math.Abs(sweep) / (2 * math.Pi / float64(cfg.ArcSegments))))
	if steps < 1 {
		steps = 1
	}
	pts := make([]camlib.Point, 0, steps)
	for k := 1; k <= steps; k++ {
		frac := float64(k) / float64(steps)
		ang := a1 + sweep*frac
		// Interpolate the radius so slightly inconsistent files still
		// land exactly on their stated endpoint.
		r := r1 + (r2-r1)*frac
		pts = append(pts, camlib.Pt(center.X+r*math.Cos(ang), center.Y+r*math.Sin(ang)))
	}
	pts[len(pts)-1] = to
	return pts
}
