package toolpath

import (
	"context"

	"github.com/johnbetts/flatcam-mac-fork"
)

// generateIsolation routes around the copper boundary once per pass. Pass
// i offsets by (i+1) * (tool radius + step-over); a pass whose offset
// comes back empty is skipped and reported as a coverage warning instead
// of failing the operation.
func generateIsolation(ctx context.Context, g camlib.Geometry, p Params, cfg camlib.KernelConfig) (Result, error) {
	var res Result
	inc := p.Tool.Diameter/2 + p.Isolation.StepOver
	for i := 0; i < p.Isolation.Passes; i++ {
		if err := checkCancel(ctx); err != nil {
			return Result{}, err
		}
		d := float64(i+1) * inc
		if p.Isolation.Side == SideInside {
			d = -d
		}
		off, err := camlib.Offset(g, d, p.Isolation.Join, cfg)
		if err != nil {
			return Result{}, err
		}
		rings := boundaryRings(off)
		if len(rings) == 0 {
			res.Warnings = append(res.Warnings, camlib.CoverageWarning{
				Pass: i, Tool: p.Tool.Name,
				Reason: "isolation distance exceeds available space",
			})
			camlib.Logger().Warn("isolation pass empty",
				"pass", i, "distance", d)
			continue
		}
		for _, r := range rings {
			res.Paths = append(res.Paths, loopPath(p.Tool, OpIsolation, r, p.Depth, p.SafeZ))
		}
	}
	return res, nil
}

// boundaryRings collects every boundary of the geometry, holes included;
// each one becomes its own cutting loop.
func boundaryRings(g camlib.Geometry) []camlib.Ring {
	var rings []camlib.Ring
	for _, poly := range g.Polygons {
		rings = append(rings, poly.Outer)
		rings = append(rings, poly.Holes...)
	}
	return rings
}
