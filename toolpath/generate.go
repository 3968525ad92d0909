package toolpath

import (
	"context"
	"fmt"

	"github.com/johnbetts/flatcam-mac-fork"
)

// Side selects which way isolation passes offset the copper boundary.
type Side int

const (
	// SideOutside cuts around the copper, the normal isolation setup.
	SideOutside Side = iota
	// SideInside cuts into the region, used when the geometry passed in
	// is the clearance area rather than the copper itself.
	SideInside
)

// IsolationParams configures isolation routing. Pass i offsets the
// boundary by (i+1) * (tool radius + step-over).
type IsolationParams struct {
	Passes   int
	StepOver float64 // extra lateral distance between passes, millimeters
	Side     Side
	Join     camlib.JoinStyle
}

// ClearingParams configures area clearing.
type ClearingParams struct {
	// Overlap is the fraction of the tool diameter by which successive
	// concentric passes overlap, in [0, 1).
	Overlap float64
	// Preserve is subtracted from the target region before clearing,
	// typically the already-isolated copper plus its isolation channel.
	Preserve camlib.Geometry
}

// DrillingParams configures drill-point visitation. Hits come in as point
// parts of the geometry, slots as line parts.
type DrillingParams struct {
	// HoleDiameter is the plated hole size the file asked for. When it
	// exceeds the mounted tool's diameter beyond tolerance, each hit is
	// routed as a circle instead of plunged.
	HoleDiameter float64
}

// Params is the full configuration of one generation request. Exactly the
// sub-struct matching Kind is consulted.
type Params struct {
	Kind  OpKind
	Tool  Tool
	Depth float64 // total cut depth below the surface, positive
	SafeZ float64 // rapid travel height above the surface, positive

	Isolation IsolationParams
	Clearing  ClearingParams
	Drilling  DrillingParams
}

// Result is the outcome of one generation request: the produced paths and
// any partial-coverage warnings.
type Result struct {
	Paths    []Toolpath
	Warnings []camlib.CoverageWarning
}

// Generate dispatches to the strategy selected by p.Kind. The context is
// checked between passes; an offset or boolean pass itself is atomic.
// Invalid parameters are rejected with a *camlib.ConfigError before any
// geometry work starts; degenerate input geometry is rejected with a
// *camlib.GeometricError.
func Generate(ctx context.Context, g camlib.Geometry, p Params, cfg camlib.KernelConfig) (Result, error) {
	cfg = cfg.Normalized()
	if err := p.validate(); err != nil {
		return Result{}, err
	}
	if err := g.Validate(cfg); err != nil {
		return Result{}, err
	}
	camlib.Logger().Debug("generating toolpaths",
		"op", p.Kind.String(), "tool", p.Tool.Name, "depth", p.Depth)
	switch p.Kind {
	case OpIsolation:
		return generateIsolation(ctx, g, p, cfg)
	case OpClearing:
		return generateClearing(ctx, g, p, cfg)
	case OpDrilling:
		return generateDrilling(ctx, g, p, cfg)
	default:
		return Result{}, &camlib.ConfigError{Param: "Kind", Reason: fmt.Sprintf("unknown operation kind %d", p.Kind)}
	}
}

func (p Params) validate() error {
	if p.Tool.Diameter <= 0 {
		return &camlib.ConfigError{Param: "Tool.Diameter", Reason: "must be positive"}
	}
	if p.Depth <= 0 {
		return &camlib.ConfigError{Param: "Depth", Reason: "must be positive"}
	}
	if p.SafeZ <= 0 {
		return &camlib.ConfigError{Param: "SafeZ", Reason: "must be positive"}
	}
	if p.Tool.PassDepth < 0 {
		return &camlib.ConfigError{Param: "Tool.PassDepth", Reason: "must not be negative"}
	}
	switch p.Kind {
	case OpIsolation:
		if p.Isolation.Passes < 1 {
			return &camlib.ConfigError{Param: "Isolation.Passes", Reason: "must be at least 1"}
		}
		if p.Isolation.StepOver < 0 {
			return &camlib.ConfigError{Param: "Isolation.StepOver", Reason: "must not be negative"}
		}
	case OpClearing:
		if p.Clearing.Overlap < 0 || p.Clearing.Overlap >= 1 {
			return &camlib.ConfigError{Param: "Clearing.Overlap", Reason: "must be in [0, 1)"}
		}
	case OpDrilling:
		if p.Drilling.HoleDiameter < 0 {
			return &camlib.ConfigError{Param: "Drilling.HoleDiameter", Reason: "must not be negative"}
		}
	}
	return nil
}

// checkCancel surfaces context cancellation between passes.
func checkCancel(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
