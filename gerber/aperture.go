package gerber

import (
	"fmt"
	"math"

	"github.com/johnbetts/flatcam-mac-fork"
)

// ApertureShape is the template letter of an %AD definition.
type ApertureShape int

const (
	ShapeCircle ApertureShape = iota
	ShapeRect
	ShapeObround
	ShapePolygon
	ShapeMacro
)

// Aperture is one entry of the aperture table: a standard template with
// its modifier list, or a reference to a macro definition.
type Aperture struct {
	Code   string // D-code designator, e.g. "D10"
	Shape  ApertureShape
	Params []float64 // template modifiers in millimeters
	Macro  string    // macro name when Shape is ShapeMacro
}

// StrokeWidth returns the width swept when this aperture is dragged along
// a path. Only circles stroke exactly; for other shapes the smaller
// dimension is used, which matches how legacy files that stroke with
// rectangles are commonly interpreted.
func (a *Aperture) StrokeWidth() float64 {
	if len(a.Params) == 0 {
		return 0
	}
	switch a.Shape {
	case ShapeCircle, ShapePolygon:
		return a.Params[0]
	case ShapeRect, ShapeObround:
		if len(a.Params) >= 2 {
			return math.Min(a.Params[0], a.Params[1])
		}
		return a.Params[0]
	default:
		return 0
	}
}

// Flash returns the copper polygons stamped by this aperture at center.
// Macro apertures are evaluated against the document's macro table; scale
// converts their file-unit modifiers to millimeters.
func (a *Aperture) Flash(center camlib.Point, macros map[string]*MacroDef, scale float64, cfg camlib.KernelConfig) ([]camlib.Polygon, error) {
	switch a.Shape {
	case ShapeCircle:
		if len(a.Params) < 1 {
			return nil, fmt.Errorf("aperture %s: circle needs a diameter", a.Code)
		}
		p := camlib.CirclePolygon(center, a.Params[0]/2, cfg)
		return []camlib.Polygon{withRoundHole(p, center, holeDiam(a.Params, 1), cfg)}, nil

	case ShapeRect:
		if len(a.Params) < 2 {
			return nil, fmt.Errorf("aperture %s: rectangle needs width and height", a.Code)
		}
		p := rectPolygon(center, a.Params[0], a.Params[1])
		return []camlib.Polygon{withRoundHole(p, center, holeDiam(a.Params, 2), cfg)}, nil

	case ShapeObround:
		if len(a.Params) < 2 {
			return nil, fmt.Errorf("aperture %s: obround needs width and height", a.Code)
		}
		p, err := obroundPolygon(center, a.Params[0], a.Params[1], cfg)
		if err != nil {
			return nil, fmt.Errorf("aperture %s: %w", a.Code, err)
		}
		return []camlib.Polygon{withRoundHole(p, center, holeDiam(a.Params, 2), cfg)}, nil

	case ShapePolygon:
		if len(a.Params) < 2 {
			return nil, fmt.Errorf("aperture %s: polygon needs diameter and vertex count", a.Code)
		}
		n := int(a.Params[1])
		if n < 3 || n > 12 {
			return nil, fmt.Errorf("aperture %s: polygon vertex count %d out of range", a.Code, n)
		}
		rot := 0.0
		if len(a.Params) >= 3 {
			rot = a.Params[2] * math.Pi / 180
		}
		p := regularPolygon(center, a.Params[0]/2, n, rot)
		return []camlib.Polygon{withRoundHole(p, center, holeDiam(a.Params, 3), cfg)}, nil

	case ShapeMacro:
		def, ok := macros[a.Macro]
		if !ok {
			return nil, fmt.Errorf("aperture %s: undefined macro %s", a.Code, a.Macro)
		}
		return def.Flash(center, a.Params, scale, cfg)

	default:
		return nil, fmt.Errorf("aperture %s: unknown shape", a.Code)
	}
}

// holeDiam extracts the optional round hole modifier at index i, or 0.
func holeDiam(params []float64, i int) float64 {
	if len(params) > i && params[i] > 0 {
		return params[i]
	}
	return 0
}

// withRoundHole punches the standard round hole into a flashed polygon.
func withRoundHole(p camlib.Polygon, center camlib.Point, diam float64, cfg camlib.KernelConfig) camlib.Polygon {
	if diam <= 0 {
		return p
	}
	hole := camlib.CirclePolygon(center, diam/2, cfg)
	p.Holes = append(p.Holes, hole.Outer.Reversed())
	return p
}

func rectPolygon(center camlib.Point, w, h float64) camlib.Polygon {
	hw, hh := w/2, h/2
	return camlib.Polygon{Outer: camlib.Ring{
		camlib.Pt(center.X-hw, center.Y-hh),
		camlib.Pt(center.X+hw, center.Y-hh),
		camlib.Pt(center.X+hw, center.Y+hh),
		camlib.Pt(center.X-hw, center.Y+hh),
	}}
}

// obroundPolygon builds the stadium shape as a stroked center segment.
func obroundPolygon(center camlib.Point, w, h float64, cfg camlib.KernelConfig) (camlib.Polygon, error) {
	if w == h {
		return camlib.CirclePolygon(center, w/2, cfg), nil
	}
	var seg camlib.Polyline
	var width float64
	if w > h {
		half := (w - h) / 2
		seg = camlib.Polyline{camlib.Pt(center.X-half, center.Y), camlib.Pt(center.X+half, center.Y)}
		width = h
	} else {
		half := (h - w) / 2
		seg = camlib.Polyline{camlib.Pt(center.X, center.Y-half), camlib.Pt(center.X, center.Y+half)}
		width = w
	}
	out := camlib.StrokePolyline(seg, width, cfg)
	if len(out) != 1 {
		return camlib.Polygon{}, fmt.Errorf("degenerate obround %gx%g", w, h)
	}
	return out[0], nil
}

// regularPolygon builds an n-gon inscribed in the given circumradius. The
// first vertex sits on the positive X axis before rotation, as the format
// specifies.
func regularPolygon(center camlib.Point, radius float64, n int, rot float64) camlib.Polygon {
	ring := make(camlib.Ring, n)
	for i := 0; i < n; i++ {
		ang := rot + 2*math.Pi*float64(i)/float64(n)
		ring[i] = camlib.Pt(center.X+radius*math.Cos(ang), center.Y+radius*math.Sin(ang))
	}
	return camlib.Polygon{Outer: ring}
}
