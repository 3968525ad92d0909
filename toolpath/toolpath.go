// Package toolpath turns resolved board geometry into ordered machine
// motion: isolation routing around copper, concentric area clearing, and
// drill-point visitation. Each strategy is a pure function from geometry
// plus parameters to a set of Toolpaths; Optimize then orders the set to
// minimize rapid travel under the domain's hard constraints.
package toolpath

import (
	"github.com/johnbetts/flatcam-mac-fork"
)

// MoveKind tags one motion segment.
type MoveKind int

const (
	// Rapid is non-cutting travel at the safe height.
	Rapid MoveKind = iota
	// Feed is a cutting move at the working depth.
	Feed
	// Plunge descends into the material at the plunge feed rate.
	Plunge
	// Retract lifts back to the safe height.
	Retract
)

func (k MoveKind) String() string {
	switch k {
	case Rapid:
		return "rapid"
	case Feed:
		return "feed"
	case Plunge:
		return "plunge"
	case Retract:
		return "retract"
	default:
		return "unknown"
	}
}

// Move is one motion segment: the XY target and the Z level in effect
// after the move. Plunge and Retract moves keep their XY position and
// change only Z.
type Move struct {
	Kind MoveKind
	To   camlib.Point
	Z    float64
}

// CutDirection selects the milling direction for closed loops.
type CutDirection int

const (
	// Climb traverses loops clockwise, the usual choice for clean edges
	// on PCB isolation.
	Climb CutDirection = iota
	// Conventional traverses loops counter-clockwise.
	Conventional
)

// Tool describes the physical cutter or drill mounted for an operation.
// Tools are supplied by the caller, never derived from file data.
type Tool struct {
	Name       string
	Diameter   float64 // millimeters
	FeedXY     float64 // cutting feed, mm/min
	FeedZ      float64 // plunge feed, mm/min
	SpindleRPM float64
	PassDepth  float64 // max depth per Z step; 0 cuts full depth at once
	Direction  CutDirection
}

// OpKind selects the generation strategy.
type OpKind int

const (
	OpIsolation OpKind = iota
	OpClearing
	OpDrilling
)

func (k OpKind) String() string {
	switch k {
	case OpIsolation:
		return "isolation"
	case OpClearing:
		return "clearing"
	case OpDrilling:
		return "drilling"
	default:
		return "unknown"
	}
}

// Toolpath is an ordered motion sequence cut with a single tool. The
// optimizer reorders whole Toolpaths but never alters their geometry.
type Toolpath struct {
	Tool  Tool
	Kind  OpKind
	Moves []Move
}

// Start returns the XY position of the first move.
func (tp *Toolpath) Start() camlib.Point {
	if len(tp.Moves) == 0 {
		return camlib.Point{}
	}
	return tp.Moves[0].To
}

// End returns the XY position of the last move.
func (tp *Toolpath) End() camlib.Point {
	if len(tp.Moves) == 0 {
		return camlib.Point{}
	}
	return tp.Moves[len(tp.Moves)-1].To
}

// CutLength returns the total length of feed moves.
func (tp *Toolpath) CutLength() float64 {
	var total float64
	prev := tp.Start()
	for _, m := range tp.Moves {
		if m.Kind == Feed {
			total += prev.Distance(m.To)
		}
		prev = m.To
	}
	return total
}

// loopRing recovers the closed XY loop of an isolation or clearing path,
// or nil when the feed moves do not close.
func (tp *Toolpath) loopRing() camlib.Ring {
	var ring camlib.Ring
	var prev camlib.Point
	for _, m := range tp.Moves {
		if m.Kind == Feed {
			// The loop starts where the plunge left the cutter.
			if len(ring) == 0 {
				ring = append(ring, prev)
			}
			ring = append(ring, m.To)
		}
		prev = m.To
	}
	if len(ring) < 4 || !ring[0].Approx(ring[len(ring)-1], 1e-9) {
		return nil
	}
	return ring[:len(ring)-1]
}

// directed orients a ring for the tool's cut direction.
func directed(r camlib.Ring, dir CutDirection) camlib.Ring {
	ccw := r.IsCCW()
	if (dir == Conventional && ccw) || (dir == Climb && !ccw) {
		return r
	}
	return r.Reversed()
}

// loopPath builds the standard motion template for cutting one closed
// ring: rapid to the first vertex at safe height, then for each depth
// step plunge and trace the loop, finally retract.
func loopPath(tool Tool, kind OpKind, ring camlib.Ring, depth, safeZ float64) Toolpath {
	ring = directed(ring, tool.Direction)
	tp := Toolpath{Tool: tool, Kind: kind}
	start := ring[0]
	tp.Moves = append(tp.Moves, Move{Kind: Rapid, To: start, Z: safeZ})
	for _, z := range depthSteps(depth, tool.PassDepth) {
		tp.Moves = append(tp.Moves, Move{Kind: Plunge, To: start, Z: -z})
		for _, p := range ring[1:] {
			tp.Moves = append(tp.Moves, Move{Kind: Feed, To: p, Z: -z})
		}
		tp.Moves = append(tp.Moves, Move{Kind: Feed, To: start, Z: -z})
	}
	tp.Moves = append(tp.Moves, Move{Kind: Retract, To: start, Z: safeZ})
	return tp
}

// depthSteps splits the total depth into per-pass Z levels.
func depthSteps(depth, passDepth float64) []float64 {
	if passDepth <= 0 || passDepth >= depth {
		return []float64{depth}
	}
	var steps []float64
	z := passDepth
	for z < depth {
		steps = append(steps, z)
		z += passDepth
	}
	return append(steps, depth)
}
