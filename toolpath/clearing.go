package toolpath

import (
	"context"

	"github.com/johnbetts/flatcam-mac-fork"
)

// generateClearing pockets the target region with concentric passes. The
// region is first reduced by the preserve set, then the boundary pass is
// inset by the tool radius and successive passes step inward by
// (1 - overlap) * diameter until nothing offsettable remains. Overlap
// deduplication is geometric: each pass derives from shrinking the same
// region, so passes can never double-cover.
func generateClearing(ctx context.Context, g camlib.Geometry, p Params, cfg camlib.KernelConfig) (Result, error) {
	var res Result
	region := camlib.Difference(g, p.Clearing.Preserve, cfg)
	if region.IsEmpty() {
		res.Warnings = append(res.Warnings, camlib.CoverageWarning{
			Pass: 0, Tool: p.Tool.Name, Reason: "nothing left to clear after preserve subtraction",
		})
		return res, nil
	}

	radius := p.Tool.Diameter / 2
	step := (1 - p.Clearing.Overlap) * p.Tool.Diameter

	cur, err := camlib.Offset(region, -radius, camlib.JoinRound, cfg)
	if err != nil {
		return Result{}, err
	}
	if cur.IsEmpty() {
		res.Warnings = append(res.Warnings, camlib.CoverageWarning{
			Pass: 0, Tool: p.Tool.Name, Reason: "region is narrower than the tool",
		})
		return res, nil
	}

	for pass := 0; !cur.IsEmpty(); pass++ {
		if err := checkCancel(ctx); err != nil {
			return Result{}, err
		}
		for _, r := range boundaryRings(cur) {
			res.Paths = append(res.Paths, loopPath(p.Tool, OpClearing, r, p.Depth, p.SafeZ))
		}
		cur, err = camlib.Offset(cur, -step, camlib.JoinRound, cfg)
		if err != nil {
			return Result{}, err
		}
	}
	camlib.Logger().Debug("clearing complete",
		"tool", p.Tool.Name, "paths", len(res.Paths))
	return res, nil
}
