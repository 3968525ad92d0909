package toolpath

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnbetts/flatcam-mac-fork"
)

func testTool() Tool {
	return Tool{
		Name:       "vbit-0.2",
		Diameter:   0.2,
		FeedXY:     120,
		FeedZ:      60,
		SpindleRPM: 10000,
	}
}

func squareGeom(x0, y0, x1, y1 float64) camlib.Geometry {
	return camlib.Geometry{Polygons: []camlib.Polygon{{Outer: camlib.Ring{
		camlib.Pt(x0, y0), camlib.Pt(x1, y0), camlib.Pt(x1, y1), camlib.Pt(x0, y1),
	}}}}
}

func baseParams(kind OpKind, tool Tool) Params {
	return Params{
		Kind:  kind,
		Tool:  tool,
		Depth: 0.1,
		SafeZ: 2,
		Isolation: IsolationParams{
			Passes: 1,
			Join:   camlib.JoinRound,
		},
	}
}

// A single isolation pass with a 0.2 mm tool and no step-over must produce
// exactly one closed loop 0.1 mm outside the copper boundary.
func TestIsolationSingleLoop(t *testing.T) {
	g := squareGeom(0, 0, 10, 10)
	res, err := Generate(context.Background(), g, baseParams(OpIsolation, testTool()), camlib.DefaultKernel())
	require.NoError(t, err)
	require.Len(t, res.Paths, 1)
	assert.Empty(t, res.Warnings)

	tp := res.Paths[0]
	assert.Equal(t, OpIsolation, tp.Kind)
	ring := tp.loopRing()
	require.NotNil(t, ring, "isolation path must be a closed loop")
	bb := ring.BoundingBox()
	assert.InDelta(t, -0.1, bb.Min.X, 1e-3)
	assert.InDelta(t, 10.1, bb.Max.X, 1e-3)
	assert.InDelta(t, -0.1, bb.Min.Y, 1e-3)
	assert.InDelta(t, 10.1, bb.Max.Y, 1e-3)
}

// Inward passes on a W-wide square must yield min(N, floor((W/2)/(T/2+S)))
// non-empty paths and a coverage warning for each pass past that count.
func TestIsolationPassCount(t *testing.T) {
	g := squareGeom(0, 0, 10, 10)
	tool := testTool()
	tool.Diameter = 1.2 // radius + step-over = 0.6, floor(5 / 0.6) = 8
	p := baseParams(OpIsolation, tool)
	p.Isolation.Passes = 10
	p.Isolation.Side = SideInside

	res, err := Generate(context.Background(), g, p, camlib.DefaultKernel())
	require.NoError(t, err)
	assert.Len(t, res.Paths, 8)
	require.Len(t, res.Warnings, 2)
	assert.Equal(t, 8, res.Warnings[0].Pass)
	assert.Equal(t, 9, res.Warnings[1].Pass)
	assert.Equal(t, tool.Name, res.Warnings[0].Tool)
}

func TestIsolationCutsHoleBoundaries(t *testing.T) {
	g := camlib.Geometry{Polygons: []camlib.Polygon{{
		Outer: camlib.Ring{camlib.Pt(0, 0), camlib.Pt(10, 0), camlib.Pt(10, 10), camlib.Pt(0, 10)},
		Holes: []camlib.Ring{{camlib.Pt(4, 6), camlib.Pt(4, 4), camlib.Pt(6, 4), camlib.Pt(6, 6)}},
	}}}
	res, err := Generate(context.Background(), g, baseParams(OpIsolation, testTool()), camlib.DefaultKernel())
	require.NoError(t, err)
	assert.Len(t, res.Paths, 2, "outer boundary and hole boundary each get a loop")
}

func TestGenerateRejectsBadConfig(t *testing.T) {
	g := squareGeom(0, 0, 10, 10)
	ctx := context.Background()
	cfg := camlib.DefaultKernel()

	cases := []struct {
		name   string
		mutate func(*Params)
	}{
		{"zero tool diameter", func(p *Params) { p.Tool.Diameter = 0 }},
		{"negative depth", func(p *Params) { p.Depth = -1 }},
		{"zero safe height", func(p *Params) { p.SafeZ = 0 }},
		{"zero passes", func(p *Params) { p.Isolation.Passes = 0 }},
		{"negative step-over", func(p *Params) { p.Isolation.StepOver = -0.5 }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p := baseParams(OpIsolation, testTool())
			c.mutate(&p)
			_, err := Generate(ctx, g, p, cfg)
			var ce *camlib.ConfigError
			require.ErrorAs(t, err, &ce)
		})
	}
}

func TestGenerateRejectsDegenerateGeometry(t *testing.T) {
	bowtie := camlib.Geometry{Polygons: []camlib.Polygon{{Outer: camlib.Ring{
		camlib.Pt(0, 0), camlib.Pt(2, 2), camlib.Pt(2, 0), camlib.Pt(0, 2),
	}}}}
	_, err := Generate(context.Background(), bowtie, baseParams(OpIsolation, testTool()), camlib.DefaultKernel())
	var ge *camlib.GeometricError
	require.ErrorAs(t, err, &ge)
}

func TestGenerateCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := squareGeom(0, 0, 10, 10)
	_, err := Generate(ctx, g, baseParams(OpIsolation, testTool()), camlib.DefaultKernel())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClearingConcentricPasses(t *testing.T) {
	g := squareGeom(0, 0, 10, 10)
	tool := testTool()
	tool.Diameter = 2
	p := baseParams(OpClearing, tool)
	p.Clearing.Overlap = 0.25

	res, err := Generate(context.Background(), g, p, camlib.DefaultKernel())
	require.NoError(t, err)
	// Insets at 1, 2.5 and 4 mm; the next step would empty the region.
	require.Len(t, res.Paths, 3)
	assert.Empty(t, res.Warnings)

	first := res.Paths[0].loopRing()
	require.NotNil(t, first)
	bb := first.BoundingBox()
	assert.InDelta(t, 1.0, bb.Min.X, 1e-3, "boundary pass insets by the tool radius")
	assert.InDelta(t, 9.0, bb.Max.X, 1e-3)
	for _, tp := range res.Paths {
		assert.Equal(t, OpClearing, tp.Kind)
	}
}

func TestClearingRegionNarrowerThanTool(t *testing.T) {
	g := squareGeom(0, 0, 10, 1)
	tool := testTool()
	tool.Diameter = 2
	res, err := Generate(context.Background(), g, baseParams(OpClearing, tool), camlib.DefaultKernel())
	require.NoError(t, err)
	assert.Empty(t, res.Paths)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0].Reason, "narrower than the tool")
}

func TestClearingPreserveSubtraction(t *testing.T) {
	g := squareGeom(0, 0, 10, 10)
	tool := testTool()
	tool.Diameter = 2
	p := baseParams(OpClearing, tool)
	p.Clearing.Preserve = g

	res, err := Generate(context.Background(), g, p, camlib.DefaultKernel())
	require.NoError(t, err)
	assert.Empty(t, res.Paths)
	require.Len(t, res.Warnings, 1)
}

func TestDrillingPlunges(t *testing.T) {
	g := camlib.Geometry{Points: []camlib.Point{
		camlib.Pt(1, 1), camlib.Pt(5, 1), camlib.Pt(9, 1),
	}}
	tool := testTool()
	tool.Diameter = 1
	p := baseParams(OpDrilling, tool)
	p.Depth = 1.8

	res, err := Generate(context.Background(), g, p, camlib.DefaultKernel())
	require.NoError(t, err)
	require.Len(t, res.Paths, 3)
	for _, tp := range res.Paths {
		assert.Equal(t, OpDrilling, tp.Kind)
		require.GreaterOrEqual(t, len(tp.Moves), 3)
		assert.Equal(t, Rapid, tp.Moves[0].Kind)
		assert.Equal(t, Plunge, tp.Moves[1].Kind)
		assert.Equal(t, Retract, tp.Moves[len(tp.Moves)-1].Kind)
		assert.InDelta(t, -1.8, tp.Moves[1].Z, 1e-9)
	}
}

func TestDrillingPeckRetracts(t *testing.T) {
	g := camlib.Geometry{Points: []camlib.Point{camlib.Pt(0, 0)}}
	tool := testTool()
	tool.Diameter = 1
	tool.PassDepth = 0.5
	p := baseParams(OpDrilling, tool)
	p.Depth = 1.2

	res, err := Generate(context.Background(), g, p, camlib.DefaultKernel())
	require.NoError(t, err)
	require.Len(t, res.Paths, 1)
	var plunges, retracts int
	for _, m := range res.Paths[0].Moves {
		switch m.Kind {
		case Plunge:
			plunges++
		case Retract:
			retracts++
		}
	}
	assert.Equal(t, 3, plunges, "0.5, 1.0, 1.2")
	assert.Equal(t, 3, retracts, "two pecks plus the final retract")
}

func TestDrillingRoutedHole(t *testing.T) {
	g := camlib.Geometry{Points: []camlib.Point{camlib.Pt(5, 5)}}
	tool := testTool()
	tool.Diameter = 1
	p := baseParams(OpDrilling, tool)
	p.Drilling.HoleDiameter = 3

	res, err := Generate(context.Background(), g, p, camlib.DefaultKernel())
	require.NoError(t, err)
	require.Len(t, res.Paths, 1)
	ring := res.Paths[0].loopRing()
	require.NotNil(t, ring, "oversized hole must be routed as a loop")
	bb := ring.BoundingBox()
	assert.InDelta(t, 2.0, bb.Width(), 0.01, "route radius is (hole - tool) / 2")
}

func TestDrillingSlot(t *testing.T) {
	g := camlib.Geometry{Lines: []camlib.Polyline{{camlib.Pt(0, 0), camlib.Pt(8, 0)}}}
	tool := testTool()
	tool.Diameter = 1
	res, err := Generate(context.Background(), g, baseParams(OpDrilling, tool), camlib.DefaultKernel())
	require.NoError(t, err)
	require.Len(t, res.Paths, 1)
	assert.InDelta(t, 8.0, res.Paths[0].CutLength(), 1e-9)
}

func TestDrillingNoTargetsWarns(t *testing.T) {
	res, err := Generate(context.Background(), camlib.Geometry{}, baseParams(OpDrilling, testTool()), camlib.DefaultKernel())
	require.NoError(t, err)
	assert.Empty(t, res.Paths)
	assert.Len(t, res.Warnings, 1)
}

func TestDepthSteps(t *testing.T) {
	assert.Equal(t, []float64{1.5}, depthSteps(1.5, 0))
	assert.Equal(t, []float64{1.5}, depthSteps(1.5, 2))
	assert.Equal(t, []float64{0.5, 1.0, 1.2}, depthSteps(1.2, 0.5))
}

func TestLoopPathDirection(t *testing.T) {
	ring := camlib.Ring{camlib.Pt(0, 0), camlib.Pt(4, 0), camlib.Pt(4, 4), camlib.Pt(0, 4)}

	climb := testTool()
	climb.Direction = Climb
	tp := loopPath(climb, OpIsolation, ring, 0.1, 2)
	got := tp.loopRing()
	require.NotNil(t, got)
	assert.False(t, got.IsCCW(), "climb milling traverses clockwise")

	conv := testTool()
	conv.Direction = Conventional
	tp = loopPath(conv, OpIsolation, ring, 0.1, 2)
	got = tp.loopRing()
	require.NotNil(t, got)
	assert.True(t, got.IsCCW())
}
