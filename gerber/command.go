package gerber

import (
	"github.com/johnbetts/flatcam-mac-fork"
)

// Units of the source file. Coordinates are converted to millimeters as
// they are decoded; the unit is retained for reporting only.
type Units int

const (
	UnitsUnknown Units = iota
	UnitsMM
	UnitsInch
)

func (u Units) String() string {
	switch u {
	case UnitsMM:
		return "mm"
	case UnitsInch:
		return "inch"
	default:
		return "unknown"
	}
}

// ZeroMode tells which zeros the coordinate format omits.
type ZeroMode int

const (
	// LeadingOmitted is the common case: coordinates are written without
	// leading zeros and padded on the left when decoding.
	LeadingOmitted ZeroMode = iota
	// TrailingOmitted pads on the right.
	TrailingOmitted
)

// CoordFormat is the %FS coordinate format: digit counts before and after
// the implied decimal point, and the zero omission mode.
type CoordFormat struct {
	IntDigits int
	DecDigits int
	Zeros     ZeroMode
	Absolute  bool
}

// Polarity is the %LP layer polarity in effect for a command. Dark adds
// copper, Clear erases previously drawn copper.
type Polarity int

const (
	Dark Polarity = iota
	Clear
)

// CommandKind discriminates the three drawing operations of the format.
type CommandKind int

const (
	// KindFlash stamps the selected aperture at a point (D03).
	KindFlash CommandKind = iota
	// KindStroke drags the selected aperture along a path (chained D01).
	KindStroke
	// KindRegion fills a closed contour (G36/G37 block).
	KindRegion
)

// ArcSpec describes a circular segment between two path points.
type ArcSpec struct {
	Center    camlib.Point
	Clockwise bool
}

// Segment is one leg of a stroke or region contour. A nil Arc means a
// straight line to To.
type Segment struct {
	To  camlib.Point
	Arc *ArcSpec
}

// Command is one drawing operation in file order. Flash commands use At;
// stroke and region commands use Start plus Segments.
type Command struct {
	Kind     CommandKind
	Aperture string // D-code of the selected aperture; empty for regions
	Polarity Polarity
	At       camlib.Point
	Start    camlib.Point
	Segments []Segment
	Line     int
}

// end returns the final path point of a stroke command.
func (c *Command) end() camlib.Point {
	if len(c.Segments) == 0 {
		return c.Start
	}
	return c.Segments[len(c.Segments)-1].To
}

// Document is a parsed file: the aperture and macro tables plus the
// drawing commands in file order. Geometry is produced from it by Resolve.
type Document struct {
	Units     Units
	Format    CoordFormat
	Apertures map[string]*Aperture
	Macros    map[string]*MacroDef
	Commands  []Command

	// Errors holds the syntax errors recovered under the default
	// best-effort policy. Empty in strict mode, where the first syntax
	// error aborts the parse.
	Errors []*camlib.SyntaxError
}
