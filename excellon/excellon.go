// Package excellon parses Excellon drill files: the tool table, drill
// hits and G85 routed slots. Coordinates are converted to millimeters as
// they are decoded.
//
// The parser follows the same recovery policy as the gerber package:
// best-effort by default with recovered errors collected in
// Document.Errors, strict on request. A hit that names an undefined tool
// is fatal under either policy.
package excellon

import (
	"sort"

	"github.com/johnbetts/flatcam-mac-fork"
)

// Units of the source file.
type Units int

const (
	UnitsUnknown Units = iota
	UnitsMM
	UnitsInch
)

func (u Units) String() string {
	switch u {
	case UnitsMM:
		return "mm"
	case UnitsInch:
		return "inch"
	default:
		return "unknown"
	}
}

// Tool is one entry of the header tool table.
type Tool struct {
	Number   int     // T designator
	Diameter float64 // millimeters
}

// Hit is a single drilled hole.
type Hit struct {
	Tool int
	At   camlib.Point
	Line int
}

// Slot is a routed slot between two points, drilled with a G85 command.
type Slot struct {
	Tool     int
	From, To camlib.Point
	Line     int
}

// Document is a parsed drill file.
type Document struct {
	Units Units
	Tools map[int]*Tool
	Hits  []Hit
	Slots []Slot

	// Errors holds syntax errors recovered under the best-effort policy.
	Errors []*camlib.SyntaxError
}

// ToolNumbers returns the defined tool numbers in ascending order.
func (d *Document) ToolNumbers() []int {
	nums := make([]int, 0, len(d.Tools))
	for n := range d.Tools {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}

// HitsForTool returns the hits of one tool in file order.
func (d *Document) HitsForTool(tool int) []Hit {
	var out []Hit
	for _, h := range d.Hits {
		if h.Tool == tool {
			out = append(out, h)
		}
	}
	return out
}

// SlotsForTool returns the slots of one tool in file order.
func (d *Document) SlotsForTool(tool int) []Slot {
	var out []Slot
	for _, s := range d.Slots {
		if s.Tool == tool {
			out = append(out, s)
		}
	}
	return out
}

// Resolve renders the whole drill pattern as geometry: a circle per hit
// and a stroked band per slot, merged per the kernel config. Drill centers
// come back as point parts and slot center-lines as line parts so
// downstream stages can recover them without re-deriving them from the
// filled shapes.
//
// Drilling itself is a per-tool affair; use ResolveTool to keep hits
// grouped by the physical tool that makes them.
func (d *Document) Resolve(cfg camlib.KernelConfig) camlib.Geometry {
	cfg = cfg.Normalized()
	var g camlib.Geometry
	for _, n := range d.ToolNumbers() {
		part := d.ResolveTool(n, cfg)
		g.Polygons = append(g.Polygons, part.Polygons...)
		g.Points = append(g.Points, part.Points...)
		g.Lines = append(g.Lines, part.Lines...)
	}
	merged := camlib.UnionAll(g, cfg)
	merged.Points = g.Points
	merged.Lines = g.Lines
	return merged
}

// ResolveTool renders one tool's hits and slots, unmerged. The point parts
// are the hit centers and the line parts the slot center-lines, which is
// the shape the drilling generator consumes. An undefined or unused tool
// yields empty geometry.
func (d *Document) ResolveTool(tool int, cfg camlib.KernelConfig) camlib.Geometry {
	cfg = cfg.Normalized()
	t := d.Tools[tool]
	if t == nil || t.Diameter <= 0 {
		return camlib.Geometry{}
	}
	var g camlib.Geometry
	for _, h := range d.HitsForTool(tool) {
		g.Polygons = append(g.Polygons, camlib.CirclePolygon(h.At, t.Diameter/2, cfg))
		g.Points = append(g.Points, h.At)
	}
	for _, s := range d.SlotsForTool(tool) {
		line := camlib.Polyline{s.From, s.To}
		g.Polygons = append(g.Polygons, camlib.StrokePolyline(line, t.Diameter, cfg)...)
		g.Lines = append(g.Lines, line)
	}
	return g
}
