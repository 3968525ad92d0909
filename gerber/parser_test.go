package gerber

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/johnbetts/flatcam-mac-fork"
)

const header = "%FSLAX24Y24*%\n%MOMM*%\n"

func parseString(t *testing.T, src string, opts ...ParseOption) *Document {
	t.Helper()
	doc, err := Parse(strings.NewReader(src), opts...)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return doc
}

func TestParseFormatAndUnits(t *testing.T) {
	doc := parseString(t, header+"M02*\n")
	if doc.Format.IntDigits != 2 || doc.Format.DecDigits != 4 {
		t.Errorf("format = %+v, want 2.4", doc.Format)
	}
	if doc.Format.Zeros != LeadingOmitted || !doc.Format.Absolute {
		t.Errorf("format flags = %+v", doc.Format)
	}
	if doc.Units != UnitsMM {
		t.Errorf("units = %v, want mm", doc.Units)
	}
}

func TestParseApertures(t *testing.T) {
	src := header +
		"%ADD10C,1.5X0.5*%\n" +
		"%ADD11R,2.0X1.0*%\n" +
		"%ADD12P,6.0X3X45*%\n" +
		"%ADD13THERMAL,1.0X0.5*%\n" +
		"M02*\n"
	doc := parseString(t, src)

	c := doc.Apertures["D10"]
	if c == nil || c.Shape != ShapeCircle {
		t.Fatalf("D10 = %+v, want circle", c)
	}
	if c.Params[0] != 1.5 || c.Params[1] != 0.5 {
		t.Errorf("D10 params = %v", c.Params)
	}

	r := doc.Apertures["D11"]
	if r == nil || r.Shape != ShapeRect || r.Params[0] != 2.0 || r.Params[1] != 1.0 {
		t.Fatalf("D11 = %+v", r)
	}

	p := doc.Apertures["D12"]
	if p == nil || p.Shape != ShapePolygon || p.Params[1] != 3 || p.Params[2] != 45 {
		t.Fatalf("D12 = %+v", p)
	}

	m := doc.Apertures["D13"]
	if m == nil || m.Shape != ShapeMacro || m.Macro != "THERMAL" {
		t.Fatalf("D13 = %+v", m)
	}
}

func TestParseInchScaling(t *testing.T) {
	src := "%FSLAX24Y24*%\n%MOIN*%\n" +
		"%ADD10C,0.01*%\n" +
		"D10*\nX10000Y0D02*\nX20000Y0D03*\nM02*\n"
	doc := parseString(t, src)
	if doc.Units != UnitsInch {
		t.Fatalf("units = %v, want inch", doc.Units)
	}
	if d := doc.Apertures["D10"].Params[0]; !approx(d, 0.254, 1e-9) {
		t.Errorf("diameter = %v, want 0.254", d)
	}
	flash := doc.Commands[0]
	if !flash.At.Approx(camlib.Pt(50.8, 0), 1e-9) {
		t.Errorf("flash at %v, want (50.8, 0)", flash.At)
	}
}

func TestParseStrokeChaining(t *testing.T) {
	src := header + "%ADD10C,0.2*%\nD10*\nG01*\n" +
		"X0Y0D02*\nX100000Y0D01*\nX100000Y50000D01*\n" +
		"X0Y0D02*\nX0Y50000D01*\n" +
		"M02*\n"
	doc := parseString(t, src)
	if len(doc.Commands) != 2 {
		t.Fatalf("got %d commands, want 2 chained strokes", len(doc.Commands))
	}
	first := doc.Commands[0]
	if first.Kind != KindStroke || len(first.Segments) != 2 {
		t.Fatalf("first command = %+v", first)
	}
	if !first.Start.Approx(camlib.Pt(0, 0), 1e-9) ||
		!first.Segments[1].To.Approx(camlib.Pt(10, 5), 1e-9) {
		t.Errorf("stroke path wrong: %+v", first)
	}
}

func TestParseModalCoordinates(t *testing.T) {
	src := header + "%ADD10C,0.2*%\nD10*\nG01*\n" +
		"X0Y0D02*\nX100000D01*\nY100000D01*\nM02*\n"
	doc := parseString(t, src)
	cmd := doc.Commands[0]
	if len(cmd.Segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(cmd.Segments))
	}
	if !cmd.Segments[0].To.Approx(camlib.Pt(10, 0), 1e-9) {
		t.Errorf("first target = %v", cmd.Segments[0].To)
	}
	if !cmd.Segments[1].To.Approx(camlib.Pt(10, 10), 1e-9) {
		t.Errorf("second target = %v, want modal X carried", cmd.Segments[1].To)
	}
}

func TestParseRegion(t *testing.T) {
	src := header + "G36*\n" +
		"X0Y0D02*\nX100000Y0D01*\nX100000Y100000D01*\nX0Y100000D01*\nX0Y0D01*\n" +
		"G37*\nM02*\n"
	doc := parseString(t, src)
	if len(doc.Commands) != 1 {
		t.Fatalf("got %d commands, want 1 region", len(doc.Commands))
	}
	reg := doc.Commands[0]
	if reg.Kind != KindRegion || len(reg.Segments) != 4 {
		t.Fatalf("region = %+v", reg)
	}
}

func TestParseArcSegment(t *testing.T) {
	src := header + "%ADD10C,0.2*%\nD10*\nG75*\n" +
		"X0Y0D02*\nG03X0Y0I50000J0D01*\nM02*\n"
	doc := parseString(t, src)
	cmd := doc.Commands[0]
	if cmd.Kind != KindStroke || len(cmd.Segments) != 1 {
		t.Fatalf("command = %+v", cmd)
	}
	arc := cmd.Segments[0].Arc
	if arc == nil || arc.Clockwise {
		t.Fatalf("arc = %+v, want counter-clockwise", arc)
	}
	if !arc.Center.Approx(camlib.Pt(5, 0), 1e-9) {
		t.Errorf("arc center = %v, want (5,0)", arc.Center)
	}
}

func TestParseLayerPolarity(t *testing.T) {
	src := header + "%ADD10C,1.0*%\nD10*\n" +
		"X0Y0D03*\n%LPC*%\nX10000Y0D03*\n%LPD*%\nX20000Y0D03*\nM02*\n"
	doc := parseString(t, src)
	if len(doc.Commands) != 3 {
		t.Fatalf("got %d commands", len(doc.Commands))
	}
	want := []Polarity{Dark, Clear, Dark}
	for i, w := range want {
		if doc.Commands[i].Polarity != w {
			t.Errorf("command %d polarity = %v, want %v", i, doc.Commands[i].Polarity, w)
		}
	}
}

func TestParseUnknownApertureFatal(t *testing.T) {
	src := header + "D99*\nM02*\n"
	_, err := Parse(strings.NewReader(src))
	var re *camlib.ReferenceError
	if !errors.As(err, &re) {
		t.Fatalf("error = %v, want *ReferenceError", err)
	}
	if re.Code != "D99" {
		t.Errorf("code = %q, want D99", re.Code)
	}
}

func TestParseBestEffortRecovers(t *testing.T) {
	src := header + "%ADD10C,1.0*%\nBOGUS*\nD10*\nX0Y0D03*\nM02*\n"
	doc := parseString(t, src)
	if len(doc.Errors) != 1 {
		t.Fatalf("recorded %d errors, want 1", len(doc.Errors))
	}
	if len(doc.Commands) != 1 {
		t.Errorf("flash after bad block was lost")
	}
}

func TestParseStrictAborts(t *testing.T) {
	src := header + "BOGUS*\nM02*\n"
	_, err := Parse(strings.NewReader(src), WithStrict())
	var se *camlib.SyntaxError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *SyntaxError", err)
	}
}

func TestParseMissingFormatFatal(t *testing.T) {
	src := "%MOMM*%\n%ADD10C,1.0*%\nD10*\nX0Y0D03*\nM02*\n"
	_, err := Parse(strings.NewReader(src))
	if err == nil {
		t.Fatal("coordinate accepted without a format specification")
	}
}

func TestParseMacroDefinition(t *testing.T) {
	src := header +
		"%AMDONUT*1,1,$1,0,0*1,0,$2,0,0*%\n" +
		"%ADD15DONUT,2.0X1.0*%\nM02*\n"
	doc := parseString(t, src)
	def := doc.Macros["DONUT"]
	if def == nil || len(def.Primitives) != 2 {
		t.Fatalf("macro = %+v", def)
	}
	if def.Primitives[0].Code != 1 || def.Primitives[0].Exprs[1] != "$1" {
		t.Errorf("primitive = %+v", def.Primitives[0])
	}
	ap := doc.Apertures["D15"]
	if ap.Macro != "DONUT" || len(ap.Params) != 2 {
		t.Errorf("aperture = %+v", ap)
	}
}

func TestMacroExpressions(t *testing.T) {
	env := func(n int) (float64, bool) {
		args := []float64{2, 3, 4}
		if n < 1 || n > len(args) {
			return 0, false
		}
		return args[n-1], true
	}
	cases := []struct {
		expr string
		want float64
	}{
		{"1.5", 1.5},
		{"$1", 2},
		{"$1+$2", 5},
		{"$1x$2", 6},
		{"$2X2", 6},
		{"$3/2", 2},
		{"$1+$2x$3", 14},
		{"($1+$2)x$3", 20},
		{"-$1", -2},
		{"$9", 0},
	}
	for _, c := range cases {
		got, err := evalMacroExpr(c.expr, env)
		if err != nil {
			t.Errorf("eval(%q): %v", c.expr, err)
			continue
		}
		if math.Abs(got-c.want) > 1e-9 {
			t.Errorf("eval(%q) = %v, want %v", c.expr, got, c.want)
		}
	}
}

func approx(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}
