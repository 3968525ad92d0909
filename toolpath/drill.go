package toolpath

import (
	"context"

	"github.com/johnbetts/flatcam-mac-fork"
)

// generateDrilling visits the point parts of the geometry as plunges and
// the line parts as routed slots. When the requested hole diameter is
// larger than the mounted tool, each hit is routed as a circle of the
// difference radius instead of a straight plunge. One Toolpath per target
// keeps the optimizer free to order hits by travel distance.
func generateDrilling(ctx context.Context, g camlib.Geometry, p Params, cfg camlib.KernelConfig) (Result, error) {
	var res Result
	if len(g.Points) == 0 && len(g.Lines) == 0 {
		res.Warnings = append(res.Warnings, camlib.CoverageWarning{
			Pass: 0, Tool: p.Tool.Name, Reason: "no drill targets in geometry",
		})
		return res, nil
	}

	routeRadius := 0.0
	if p.Drilling.HoleDiameter > p.Tool.Diameter+cfg.Tolerance {
		routeRadius = (p.Drilling.HoleDiameter - p.Tool.Diameter) / 2
	}

	for _, pt := range g.Points {
		if err := checkCancel(ctx); err != nil {
			return Result{}, err
		}
		if routeRadius > 0 {
			ring := camlib.CirclePolygon(pt, routeRadius, cfg).Outer
			res.Paths = append(res.Paths, loopPath(p.Tool, OpDrilling, ring, p.Depth, p.SafeZ))
			continue
		}
		res.Paths = append(res.Paths, plungePath(p.Tool, pt, p.Depth, p.SafeZ))
	}

	for _, line := range g.Lines {
		if err := checkCancel(ctx); err != nil {
			return Result{}, err
		}
		if len(line) < 2 {
			continue
		}
		res.Paths = append(res.Paths, slotPath(p.Tool, line, p.Depth, p.SafeZ))
	}
	return res, nil
}

// plungePath drills one hole, pecking in PassDepth steps when configured.
func plungePath(tool Tool, at camlib.Point, depth, safeZ float64) Toolpath {
	tp := Toolpath{Tool: tool, Kind: OpDrilling}
	tp.Moves = append(tp.Moves, Move{Kind: Rapid, To: at, Z: safeZ})
	for _, z := range depthSteps(depth, tool.PassDepth) {
		tp.Moves = append(tp.Moves, Move{Kind: Plunge, To: at, Z: -z})
		if z < depth {
			// Peck retract to clear chips before the next step.
			tp.Moves = append(tp.Moves, Move{Kind: Retract, To: at, Z: safeZ})
		}
	}
	tp.Moves = append(tp.Moves, Move{Kind: Retract, To: at, Z: safeZ})
	return tp
}

// slotPath routes an open slot, feeding back and forth across depth steps
// so the tool never air-cuts a return pass.
func slotPath(tool Tool, line camlib.Polyline, depth, safeZ float64) Toolpath {
	tp := Toolpath{Tool: tool, Kind: OpDrilling}
	tp.Moves = append(tp.Moves, Move{Kind: Rapid, To: line[0], Z: safeZ})
	at := line[0]
	forward := true
	for _, z := range depthSteps(depth, tool.PassDepth) {
		tp.Moves = append(tp.Moves, Move{Kind: Plunge, To: at, Z: -z})
		pts := line
		if !forward {
			pts = reversedLine(line)
		}
		for _, p := range pts[1:] {
			tp.Moves = append(tp.Moves, Move{Kind: Feed, To: p, Z: -z})
		}
		at = pts[len(pts)-1]
		forward = !forward
	}
	tp.Moves = append(tp.Moves, Move{Kind: Retract, To: at, Z: safeZ})
	return tp
}

func reversedLine(l camlib.Polyline) camlib.Polyline {
	out := make(camlib.Polyline, len(l))
	for i, p := range l {
		out[len(l)-1-i] = p
	}
	return out
}
