package gcode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnbetts/flatcam-mac-fork"
	"github.com/johnbetts/flatcam-mac-fork/toolpath"
)

func emitTool(name string) toolpath.Tool {
	return toolpath.Tool{
		Name:       name,
		Diameter:   0.8,
		FeedXY:     120,
		FeedZ:      60,
		SpindleRPM: 10000,
	}
}

func squarePath(tool toolpath.Tool) toolpath.Toolpath {
	return toolpath.Toolpath{
		Tool: tool,
		Kind: toolpath.OpIsolation,
		Moves: []toolpath.Move{
			{Kind: toolpath.Rapid, To: camlib.Pt(0, 0), Z: 2},
			{Kind: toolpath.Plunge, To: camlib.Pt(0, 0), Z: -0.1},
			{Kind: toolpath.Feed, To: camlib.Pt(10, 0), Z: -0.1},
			{Kind: toolpath.Feed, To: camlib.Pt(10, 5), Z: -0.1},
			{Kind: toolpath.Feed, To: camlib.Pt(0, 5), Z: -0.1},
			{Kind: toolpath.Feed, To: camlib.Pt(0, 0), Z: -0.1},
			{Kind: toolpath.Retract, To: camlib.Pt(0, 0), Z: 2},
		},
	}
}

func emitString(t *testing.T, paths []toolpath.Toolpath, d Dialect) string {
	t.Helper()
	var sb strings.Builder
	err := Emit(&sb, paths, d, Meta{
		Generator: "camlib-test",
		Timestamp: "2026-01-01T00:00:00Z",
		BBox:      camlib.Rect{Min: camlib.Pt(0, 0), Max: camlib.Pt(10, 5)},
		SafeZ:     2,
	})
	require.NoError(t, err)
	return sb.String()
}

func TestEmitOmitsUnchangedWords(t *testing.T) {
	out := emitString(t, []toolpath.Toolpath{squarePath(emitTool("vbit"))}, Grbl())
	lines := strings.Split(strings.TrimSpace(out), "\n")

	var motion []string
	for _, l := range lines {
		if strings.HasPrefix(l, "G0 ") || strings.HasPrefix(l, "G1 ") {
			motion = append(motion, l)
		}
	}
	// Seven path moves plus the postamble retract.
	require.Len(t, motion, 8)

	// Plunge moves only in Z; no X or Y words may repeat the rapid's target.
	assert.Equal(t, "G1 Z-0.1000 F60.0000", motion[1])
	// First cut changes X and switches to the XY feed.
	assert.Equal(t, "G1 X10.0000 F120.0000", motion[2])
	// Second cut moves only in Y and must not restate X, Z or F.
	assert.Equal(t, "G1 Y5.0000", motion[3])
	assert.Equal(t, "G1 X0.0000", motion[4])
	assert.Equal(t, "G1 Y0.0000", motion[5])
}

func TestEmitFeedWordOncePerRate(t *testing.T) {
	out := emitString(t, []toolpath.Toolpath{squarePath(emitTool("vbit"))}, Grbl())
	assert.Equal(t, 1, strings.Count(out, "F120.0000"), "XY feed stated once")
	assert.Equal(t, 1, strings.Count(out, "F60.0000"), "plunge feed stated once")
}

func TestEmitToolChangeOnlyOnChange(t *testing.T) {
	a := emitTool("vbit")
	b := emitTool("endmill")
	paths := []toolpath.Toolpath{squarePath(a), squarePath(a), squarePath(b)}

	out := emitString(t, paths, Grbl())
	assert.Equal(t, 2, strings.Count(out, "M0 (change tool"), "one change per distinct mount")
	assert.Equal(t, 2, strings.Count(out, "M3 S10000"))
	assert.Contains(t, out, "change tool to endmill")
}

func TestEmitSpindleStopsBeforeToolChange(t *testing.T) {
	paths := []toolpath.Toolpath{squarePath(emitTool("vbit")), squarePath(emitTool("endmill"))}
	out := emitString(t, paths, Grbl())

	change := strings.Index(out, "change tool to endmill")
	require.Greater(t, change, 0)
	stop := strings.LastIndex(out[:change], "M5")
	on := strings.LastIndex(out[:change], "M3")
	assert.Greater(t, stop, on, "spindle must stop before the operator swaps tools")
}

func TestEmitInchConversion(t *testing.T) {
	d := Grbl()
	d.Units = "inch"
	tool := emitTool("vbit")
	path := toolpath.Toolpath{
		Tool: tool,
		Kind: toolpath.OpDrilling,
		Moves: []toolpath.Move{
			{Kind: toolpath.Rapid, To: camlib.Pt(25.4, 50.8), Z: 2},
		},
	}
	out := emitString(t, []toolpath.Toolpath{path}, d)
	assert.Contains(t, out, "G0 X1.0000 Y2.0000")
}

func TestEmitPreambleMetadata(t *testing.T) {
	out := emitString(t, []toolpath.Toolpath{squarePath(emitTool("vbit"))}, Grbl())
	assert.Contains(t, out, "(units=mm precision=4)")
	assert.Contains(t, out, "(bounds X0.0000..10.0000 Y0.0000..5.0000)")
	assert.Contains(t, out, "generated by camlib-test at 2026-01-01T00:00:00Z")
	assert.Contains(t, out, "G0 Z2.0000\nM2", "postamble retracts to the safe height")
}

// Re-parsing emitted output must recover the units and precision that
// drove the emission.
func TestMetadataRoundTrip(t *testing.T) {
	for _, d := range []Dialect{Grbl(), LinuxCNC(), Marlin()} {
		t.Run(d.Name, func(t *testing.T) {
			out := emitString(t, []toolpath.Toolpath{squarePath(emitTool("vbit"))}, d)
			md, err := ParseMetadata(out)
			require.NoError(t, err)
			assert.Equal(t, d.Units, md.Units)
			assert.Equal(t, d.Precision, md.Precision)
		})
	}

	inch := Grbl()
	inch.Units = "inch"
	out := emitString(t, []toolpath.Toolpath{squarePath(emitTool("vbit"))}, inch)
	md, err := ParseMetadata(out)
	require.NoError(t, err)
	assert.Equal(t, "inch", md.Units)
}

func TestParseMetadataMissing(t *testing.T) {
	_, err := ParseMetadata("G21\nG90\nG0 X1")
	assert.Error(t, err)
}

func TestMarlinSpindleClamp(t *testing.T) {
	tool := emitTool("vbit")
	out := emitString(t, []toolpath.Toolpath{squarePath(tool)}, Marlin())
	assert.Contains(t, out, "M106 S255", "fan duty caps at 255")
}

func TestDialectValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Dialect)
		param  string
	}{
		{"bad units", func(d *Dialect) { d.Units = "furlong" }, "Units"},
		{"precision too low", func(d *Dialect) { d.Precision = 0 }, "Precision"},
		{"precision too high", func(d *Dialect) { d.Precision = 9 }, "Precision"},
		{"empty motion words", func(d *Dialect) { d.FeedWord = "" }, "RapidWord/FeedWord"},
		{"no comment syntax", func(d *Dialect) { d.CommentOpen = "" }, "CommentOpen"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			d := Grbl()
			c.mutate(&d)
			err := d.Validate()
			var ce *camlib.ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, c.param, ce.Param)

			var sb strings.Builder
			err = Emit(&sb, nil, d, Meta{})
			assert.ErrorAs(t, err, &ce, "Emit rejects the same profile")
		})
	}
}

func TestEmitUnknownTemplateVariable(t *testing.T) {
	d := Grbl()
	d.Preamble = "G21 ${nosuchvar}"
	var sb strings.Builder
	err := Emit(&sb, nil, d, Meta{})
	assert.Error(t, err)
}

func TestBuiltinLookup(t *testing.T) {
	for _, name := range []string{"grbl", "linuxcnc", "marlin"} {
		d, ok := Builtin(name)
		require.True(t, ok, name)
		assert.Equal(t, name, d.Name)
		assert.NoError(t, d.Validate())
	}
	_, ok := Builtin("fanuc")
	assert.False(t, ok)
}

func TestEmitNotesAsComments(t *testing.T) {
	meta := Meta{
		Generator: "camlib-test",
		Timestamp: "2026-01-01T00:00:00Z",
		SafeZ:     2,
		Notes:     []string{"isolation pass 2 produced no geometry"},
	}
	paths := []toolpath.Toolpath{squarePath(emitTool("vbit"))}

	var sb strings.Builder
	require.NoError(t, Emit(&sb, paths, Grbl(), meta))
	assert.Contains(t, sb.String(), "(isolation pass 2 produced no geometry)")

	sb.Reset()
	require.NoError(t, Emit(&sb, paths, Marlin(), meta))
	assert.Contains(t, sb.String(), "; isolation pass 2 produced no geometry")
}
