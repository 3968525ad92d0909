package excellon

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/johnbetts/flatcam-mac-fork"
)

func parseString(t *testing.T, src string, opts ...ParseOption) *Document {
	t.Helper()
	doc, err := Parse(strings.NewReader(src), opts...)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return doc
}

func approx(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

// Two inch tools and three hits under T01: the table must hold exactly the
// two tools and every hit must reference the first.
func TestParseInchTwoToolsThreeHits(t *testing.T) {
	src := `M48
INCH,LZ
T01C0.032
T02C0.040
%
T01
X005000Y005000
X010000Y005000
X015000Y005000
M30
`
	doc := parseString(t, src)
	if doc.Units != UnitsInch {
		t.Fatalf("units = %v, want inch", doc.Units)
	}
	if len(doc.Tools) != 2 {
		t.Fatalf("got %d tools, want 2", len(doc.Tools))
	}
	if d := doc.Tools[1].Diameter; !approx(d, 0.032*25.4, 1e-9) {
		t.Errorf("T01 diameter = %v mm", d)
	}
	if d := doc.Tools[2].Diameter; !approx(d, 0.040*25.4, 1e-9) {
		t.Errorf("T02 diameter = %v mm", d)
	}
	if len(doc.Hits) != 3 {
		t.Fatalf("got %d hits, want 3", len(doc.Hits))
	}
	for i, h := range doc.Hits {
		if h.Tool != 1 {
			t.Errorf("hit %d references T%02d, want T01", i, h.Tool)
		}
	}
	// 005000 in 2.4 leading-zero format is 0.5 inch.
	if !doc.Hits[0].At.Approx(camlib.Pt(12.7, 12.7), 1e-6) {
		t.Errorf("first hit at %v, want (12.7, 12.7)", doc.Hits[0].At)
	}
}

func TestParseMetricExplicitDecimals(t *testing.T) {
	src := `M48
METRIC,TZ
T01C1.0
%
T01
X10.5Y-2.25
M30
`
	doc := parseString(t, src)
	if len(doc.Hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(doc.Hits))
	}
	if !doc.Hits[0].At.Approx(camlib.Pt(10.5, -2.25), 1e-9) {
		t.Errorf("hit at %v", doc.Hits[0].At)
	}
}

func TestParseMetricImpliedFormat(t *testing.T) {
	src := `M48
METRIC,LZ
T01C1.0
%
T01
X012500Y003000
M30
`
	doc := parseString(t, src)
	// Metric implied format is 3.3.
	if !doc.Hits[0].At.Approx(camlib.Pt(12.5, 3), 1e-9) {
		t.Errorf("hit at %v, want (12.5, 3)", doc.Hits[0].At)
	}
}

func TestParseTrailingZeroMode(t *testing.T) {
	src := `M48
INCH,TZ
T01C0.040
%
T01
X5000Y10000
M30
`
	doc := parseString(t, src)
	// With trailing zeros kept the field pads on the left: 5000 is 0.5".
	if !doc.Hits[0].At.Approx(camlib.Pt(12.7, 25.4), 1e-6) {
		t.Errorf("hit at %v, want (12.7, 25.4)", doc.Hits[0].At)
	}
}

func TestParseModalCoordinates(t *testing.T) {
	src := `M48
METRIC,TZ
T01C1.0
%
T01
X10.0Y20.0
Y30.0
M30
`
	doc := parseString(t, src)
	if len(doc.Hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(doc.Hits))
	}
	if !doc.Hits[1].At.Approx(camlib.Pt(10, 30), 1e-9) {
		t.Errorf("modal hit at %v, want (10, 30)", doc.Hits[1].At)
	}
}

func TestParseSlot(t *testing.T) {
	src := `M48
METRIC,TZ
T01C2.0
%
T01
X10.0Y10.0G85X20.0Y10.0
M30
`
	doc := parseString(t, src)
	if len(doc.Slots) != 1 {
		t.Fatalf("got %d slots, want 1", len(doc.Slots))
	}
	s := doc.Slots[0]
	if !s.From.Approx(camlib.Pt(10, 10), 1e-9) || !s.To.Approx(camlib.Pt(20, 10), 1e-9) {
		t.Errorf("slot = %+v", s)
	}
}

func TestParseUndefinedToolFatal(t *testing.T) {
	src := `M48
METRIC,TZ
T01C1.0
%
T05
M30
`
	_, err := Parse(strings.NewReader(src))
	var re *camlib.ReferenceError
	if !errors.As(err, &re) {
		t.Fatalf("error = %v, want *ReferenceError", err)
	}
}

func TestParseHitWithoutToolFatal(t *testing.T) {
	src := `M48
METRIC,TZ
T01C1.0
%
X10.0Y10.0
M30
`
	_, err := Parse(strings.NewReader(src))
	var re *camlib.ReferenceError
	if !errors.As(err, &re) {
		t.Fatalf("error = %v, want *ReferenceError", err)
	}
}

func TestParseBestEffortRecovers(t *testing.T) {
	src := `M48
METRIC,TZ
T01C1.0
%
T01
WAT
X10.0Y10.0
M30
`
	doc := parseString(t, src)
	if len(doc.Errors) != 1 {
		t.Fatalf("recorded %d errors, want 1", len(doc.Errors))
	}
	if len(doc.Hits) != 1 {
		t.Errorf("hit after bad line was lost")
	}
}

func TestParseStrictAborts(t *testing.T) {
	src := `M48
METRIC,TZ
T01C1.0
%
T01
WAT
M30
`
	_, err := Parse(strings.NewReader(src), WithStrict())
	var se *camlib.SyntaxError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *SyntaxError", err)
	}
}

func TestToolAccessors(t *testing.T) {
	src := `M48
METRIC,TZ
T02C2.0
T01C1.0
%
T01
X1.0Y1.0
T02
X2.0Y2.0
T01
X3.0Y3.0
M30
`
	doc := parseString(t, src)
	if nums := doc.ToolNumbers(); len(nums) != 2 || nums[0] != 1 || nums[1] != 2 {
		t.Errorf("ToolNumbers() = %v", nums)
	}
	if hits := doc.HitsForTool(1); len(hits) != 2 {
		t.Errorf("HitsForTool(1) = %d hits, want 2", len(hits))
	}
}

func TestResolveGeometry(t *testing.T) {
	src := `M48
METRIC,TZ
T01C2.0
%
T01
X0.0Y0.0
X10.0Y0.0G85X20.0Y0.0
M30
`
	doc := parseString(t, src)
	g := doc.Resolve(camlib.DefaultKernel())
	if len(g.Polygons) != 2 {
		t.Fatalf("got %d polygons, want hit circle and slot band", len(g.Polygons))
	}
	if len(g.Points) != 1 {
		t.Errorf("got %d drill centers, want 1", len(g.Points))
	}
	if len(g.Lines) != 1 {
		t.Errorf("got %d slot center-lines, want 1", len(g.Lines))
	}
	// The slot band covers a 10x2 rectangle plus two round caps.
	var slotArea float64
	for _, p := range g.Polygons {
		if a := p.Area(); a > slotArea {
			slotArea = a
		}
	}
	want := 20 + math.Pi
	if !approx(slotArea, want, 0.1) {
		t.Errorf("slot area = %v, want about %v", slotArea, want)
	}
}

func TestParseInfersFormatFromData(t *testing.T) {
	// No format declaration; the seven-digit fields need 4.3, not the
	// metric 3.3 default, which would reject the long fields and pad the
	// short one to the wrong magnitude.
	src := `M48
METRIC,LZ
T01C1.0
%
T01
X1234567Y0012500
X12345
M30
`
	doc := parseString(t, src)
	if len(doc.Errors) != 0 {
		t.Fatalf("recovered errors: %v", doc.Errors)
	}
	if len(doc.Hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(doc.Hits))
	}
	if !doc.Hits[0].At.Approx(camlib.Pt(1234.567, 12.5), 1e-9) {
		t.Errorf("hit at %v, want (1234.567, 12.5)", doc.Hits[0].At)
	}
	// A short field pads on the right to the inferred width.
	if !doc.Hits[1].At.Approx(camlib.Pt(1234.5, 12.5), 1e-9) {
		t.Errorf("short-field hit at %v, want (1234.5, 12.5)", doc.Hits[1].At)
	}
}

func TestParseDeclaredFormatWinsOverData(t *testing.T) {
	src := `M48
METRIC,LZ,000.000
T01C1.0
%
T01
X1234567
M30
`
	doc := parseString(t, src)
	if len(doc.Errors) != 1 {
		t.Fatalf("recorded %d errors, want 1 for a field wider than the declared format", len(doc.Errors))
	}
	if len(doc.Hits) != 0 {
		t.Errorf("mis-sized coordinate produced a hit")
	}
}

func TestResolveToolGroupsByTool(t *testing.T) {
	src := `M48
METRIC,TZ
T01C1.0
T02C2.0
%
T01
X0.0Y0.0
X5.0Y0.0
T02
X10.0Y0.0G85X20.0Y0.0
M30
`
	doc := parseString(t, src)

	// The zero-value config normalizes to the kernel defaults.
	g1 := doc.ResolveTool(1, camlib.KernelConfig{})
	if len(g1.Points) != 2 || len(g1.Lines) != 0 {
		t.Fatalf("T01 geometry = %d points, %d lines, want 2 and 0", len(g1.Points), len(g1.Lines))
	}
	g2 := doc.ResolveTool(2, camlib.KernelConfig{})
	if len(g2.Points) != 0 || len(g2.Lines) != 1 {
		t.Fatalf("T02 geometry = %d points, %d lines, want 0 and 1", len(g2.Points), len(g2.Lines))
	}
	if !g2.Lines[0][0].Approx(camlib.Pt(10, 0), 1e-9) {
		t.Errorf("slot line starts at %v, want (10, 0)", g2.Lines[0][0])
	}
	if g := doc.ResolveTool(9, camlib.KernelConfig{}); len(g.Polygons) != 0 {
		t.Errorf("undefined tool produced geometry")
	}
}
