// Package camlib is the geometry-to-toolpath engine for PCB milling.
//
// # Overview
//
// camlib turns photoplotter (Gerber RS-274X) and drill (Excellon) data into
// machine motion programs. The pipeline is strictly one-directional:
//
//	raw bytes -> parser -> Geometry -> toolpath generator -> optimizer -> gcode emitter
//
// The root package is the geometry kernel: polygons with holes, polylines
// and point sets, plus the offset, boolean and containment operations the
// higher layers are built on. The parsers live in the gerber and excellon
// packages, toolpath generation and ordering in toolpath, and motion-code
// emission in gcode.
//
// # Quick Start
//
//	cfg := camlib.DefaultKernel()
//	doc, err := gerber.Parse(file)
//	geom, err := doc.Resolve(cfg)
//	res, err := toolpath.Generate(ctx, geom, toolpath.Params{
//	    Kind:  toolpath.OpIsolation,
//	    Tool:  tool,
//	    Depth: 0.1,
//	    SafeZ: 2,
//	    Isolation: toolpath.IsolationParams{Passes: 2, StepOver: 0.15},
//	}, cfg)
//	ordered := toolpath.Optimize(res.Paths, toolpath.OptimizeOptions{})
//	err = gcode.Emit(out, ordered, gcode.Grbl(), meta)
//
// # Coordinate System
//
// All resolved geometry is in millimeters, X increasing to the right and Y
// increasing up (machine convention, not image convention). Angles are in
// radians, counter-clockwise positive. Outer polygon rings wind
// counter-clockwise; holes wind clockwise.
//
// # Numeric Policy
//
// Every kernel operation snaps coordinates to the KernelConfig tolerance
// grid and discards rings whose area falls below the sliver threshold, so
// repeated offset/boolean chains do not accumulate floating error or
// degenerate micro-polygons.
//
// # Concurrency
//
// The kernel is synchronous. Distinct Geometry values may be processed from
// different goroutines; a single value must not be mutated concurrently.
// Long-running generators accept a context.Context and check it between
// geometric passes.
package camlib
