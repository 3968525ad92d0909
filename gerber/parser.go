// Package gerber parses RS-274X photoplotter files and resolves them into
// the geometry kernel's polygon representation.
//
// Parsing and resolving are separate steps. Parse builds a Document: the
// aperture and macro tables plus the drawing commands in file order, with
// coordinates already converted to millimeters. Document.Resolve then
// renders the commands into copper polygons, applying layer polarity and
// merging overlapping shapes.
//
// By default the parser is best-effort: malformed lines are recorded in
// Document.Errors and skipped. WithStrict makes the first syntax error
// fatal. References to undefined apertures are fatal under either policy.
package gerber

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/johnbetts/flatcam-mac-fork"
)

type parseConfig struct {
	strict bool
}

// ParseOption configures Parse.
type ParseOption func(*parseConfig)

// WithStrict aborts the parse at the first syntax error instead of
// recovering and recording it.
func WithStrict() ParseOption {
	return func(c *parseConfig) { c.strict = true }
}

// Parse reads a complete file from r.
func Parse(r io.Reader, opts ...ParseOption) (*Document, error) {
	var cfg parseConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gerber: read: %w", err)
	}
	p := &parser{
		cfg:   cfg,
		scale: 1,
		doc: &Document{
			Apertures: make(map[string]*Aperture),
			Macros:    make(map[string]*MacroDef),
		},
		line:   1,
		interp: 1,
	}
	if err := p.run(string(data)); err != nil {
		return nil, err
	}
	return p.doc, nil
}

type parser struct {
	cfg parseConfig
	doc *Document

	scale    float64 // file units to millimeters
	fmtSet   bool
	unitsSet bool

	cur         camlib.Point
	curAperture string
	polarity    Polarity
	interp      int // 1 linear, 2 clockwise arc, 3 counter-clockwise arc

	inRegion    bool
	regionOpen  bool
	regionStart camlib.Point
	regionSegs  []Segment

	line int
	done bool
}

// syntaxErr records or returns a syntax error per the recovery policy.
func (p *parser) syntaxErr(text, reason string) error {
	se := &camlib.SyntaxError{Line: p.line, Text: text, Reason: reason}
	if p.cfg.strict {
		return se
	}
	p.doc.Errors = append(p.doc.Errors, se)
	camlib.Logger().Warn("recovered gerber syntax error",
		"line", p.line, "reason", reason)
	return nil
}

// run walks the raw file content block by block. Word commands end at '*';
// extended commands are bracketed by '%' and may contain several blocks.
func (p *parser) run(src string) error {
	i := 0
	for i < len(src) && !p.done {
		c := src[i]
		switch {
		case c == '\n':
			p.line++
			i++
		case c == '\r' || c == ' ' || c == '\t':
			i++
		case c == '%':
			end := strings.IndexByte(src[i+1:], '%')
			if end < 0 {
				return &camlib.SyntaxError{Line: p.line, Text: "%", Reason: "unterminated extended command"}
			}
			body := src[i+1 : i+1+end]
			if err := p.extended(body); err != nil {
				return err
			}
			p.line += strings.Count(body, "\n")
			i += end + 2
		default:
			end := strings.IndexByte(src[i:], '*')
			if end < 0 {
				return &camlib.SyntaxError{Line: p.line, Text: strings.TrimSpace(src[i:]), Reason: "unterminated word command"}
			}
			word := strings.TrimSpace(src[i : i+end])
			word = strings.ReplaceAll(word, "\n", "")
			word = strings.ReplaceAll(word, "\r", "")
			if err := p.word(word); err != nil {
				return err
			}
			p.line += strings.Count(src[i:i+end], "\n")
			i += end + 1
		}
	}
	p.closeRegionContour()
	return nil
}

// extended handles one %...% command, which may hold multiple *-separated
// blocks (aperture macros always do).
func (p *parser) extended(body string) error {
	blocks := strings.Split(body, "*")
	for i := range blocks {
		blocks[i] = strings.TrimSpace(blocks[i])
	}
	if len(blocks) == 0 || blocks[0] == "" {
		return nil
	}
	head := blocks[0]
	switch {
	case strings.HasPrefix(head, "FS"):
		return p.formatSpec(head)
	case strings.HasPrefix(head, "MO"):
		return p.modeUnits(head)
	case strings.HasPrefix(head, "AD"):
		return p.apertureDef(head)
	case strings.HasPrefix(head, "AM"):
		return p.macroDef(head, blocks[1:])
	case strings.HasPrefix(head, "LP"):
		switch strings.TrimPrefix(head, "LP") {
		case "D":
			p.polarity = Dark
		case "C":
			p.polarity = Clear
		default:
			return p.syntaxErr(head, "unknown layer polarity")
		}
		return nil
	case strings.HasPrefix(head, "SR"):
		return p.stepRepeat(head)
	case strings.HasPrefix(head, "TF"), strings.HasPrefix(head, "TA"),
		strings.HasPrefix(head, "TO"), strings.HasPrefix(head, "TD"):
		// File and object attributes carry no geometry.
		return nil
	case strings.HasPrefix(head, "IP"), strings.HasPrefix(head, "IN"),
		strings.HasPrefix(head, "LN"), strings.HasPrefix(head, "AS"),
		strings.HasPrefix(head, "IR"), strings.HasPrefix(head, "OF"),
		strings.HasPrefix(head, "SF"), strings.HasPrefix(head, "MI"):
		// Deprecated image parameters; accepted and ignored.
		return nil
	default:
		return p.syntaxErr("%"+head+"*%", "unknown extended command")
	}
}

// formatSpec parses %FSLAX24Y24*%.
func (p *parser) formatSpec(head string) error {
	s := strings.TrimPrefix(head, "FS")
	f := CoordFormat{Zeros: LeadingOmitted, Absolute: true}
	for len(s) > 0 && (s[0] == 'L' || s[0] == 'T' || s[0] == 'A' || s[0] == 'I') {
		switch s[0] {
		case 'L':
			f.Zeros = LeadingOmitted
		case 'T':
			f.Zeros = TrailingOmitted
		case 'A':
			f.Absolute = true
		case 'I':
			f.Absolute = false
		}
		s = s[1:]
	}
	xi := strings.IndexByte(s, 'X')
	yi := strings.IndexByte(s, 'Y')
	if xi < 0 || yi < 0 || yi < xi+3 || len(s) < yi+3 {
		return p.syntaxErr("%"+head+"*%", "malformed format specification")
	}
	xm, err1 := strconv.Atoi(s[xi+1 : xi+3])
	ym, err2 := strconv.Atoi(s[yi+1 : yi+3])
	if err1 != nil || err2 != nil || xm != ym {
		return p.syntaxErr("%"+head+"*%", "malformed format digits")
	}
	f.IntDigits = xm / 10
	f.DecDigits = xm % 10
	if f.DecDigits < 1 || f.DecDigits > 6 || f.IntDigits < 1 || f.IntDigits > 6 {
		return p.syntaxErr("%"+head+"*%", "format digits out of range")
	}
	if !f.Absolute {
		// Incremental coordinates are long-deprecated; treat them as
		// absolute after flagging the file.
		if err := p.syntaxErr("%"+head+"*%", "incremental coordinates are not supported"); err != nil {
			return err
		}
		f.Absolute = true
	}
	p.doc.Format = f
	p.fmtSet = true
	return nil
}

func (p *parser) modeUnits(head string) error {
	switch strings.TrimPrefix(head, "MO") {
	case "MM":
		p.doc.Units = UnitsMM
		p.scale = 1
	case "IN":
		p.doc.Units = UnitsInch
		p.scale = 25.4
	default:
		return p.syntaxErr("%"+head+"*%", "unknown unit mode")
	}
	p.unitsSet = true
	return nil
}

// apertureDef parses %ADD10C,0.1X0.05*%.
func (p *parser) apertureDef(head string) error {
	s := strings.TrimPrefix(head, "AD")
	if len(s) < 2 || s[0] != 'D' {
		return p.syntaxErr("%"+head+"*%", "malformed aperture definition")
	}
	j := 1
	for j < len(s) && s[j] >= '0' && s[j] <= '9' {
		j++
	}
	num, err := strconv.Atoi(s[1:j])
	if err != nil || num < 10 {
		return p.syntaxErr("%"+head+"*%", "aperture code must be D10 or higher")
	}
	code := "D" + s[1:j]
	rest := s[j:]
	name := rest
	var mods string
	if ci := strings.IndexByte(rest, ','); ci >= 0 {
		name = rest[:ci]
		mods = rest[ci+1:]
	}
	var params []float64
	if mods != "" {
		for _, tok := range strings.Split(mods, "X") {
			v, err := strconv.ParseFloat(strings.TrimSpace(tok), 64)
			if err != nil {
				return p.syntaxErr("%"+head+"*%", "bad aperture modifier")
			}
			params = append(params, v)
		}
	}

	ap := &Aperture{Code: code, Params: params}
	switch name {
	case "C":
		ap.Shape = ShapeCircle
		scaleAll(params, p.scale)
	case "R":
		ap.Shape = ShapeRect
		scaleAll(params, p.scale)
	case "O":
		ap.Shape = ShapeObround
		scaleAll(params, p.scale)
	case "P":
		ap.Shape = ShapePolygon
		// Diameter and hole are lengths; vertex count and rotation are not.
		if len(params) > 0 {
			params[0] *= p.scale
		}
		if len(params) > 3 {
			params[3] *= p.scale
		}
	default:
		// Macro instantiation; arguments stay in file units because they
		// combine with literals inside the macro body.
		ap.Shape = ShapeMacro
		ap.Macro = name
	}
	p.doc.Apertures[code] = ap
	return nil
}

func scaleAll(params []float64, scale float64) {
	for i := range params {
		params[i] *= scale
	}
}

// macroDef parses the %AM block: a name followed by primitive statements.
func (p *parser) macroDef(head string, blocks []string) error {
	name := strings.TrimPrefix(head, "AM")
	if name == "" {
		return p.syntaxErr("%"+head+"*%", "macro without a name")
	}
	def := &MacroDef{Name: name}
	for _, b := range blocks {
		if b == "" {
			continue
		}
		if strings.HasPrefix(b, "0 ") || b == "0" {
			continue // comment primitive
		}
		if strings.HasPrefix(b, "$") {
			// Variable assignment statements are rare; flag and skip.
			if err := p.syntaxErr(b, "macro variable assignments are not supported"); err != nil {
				return err
			}
			continue
		}
		fields := strings.Split(b, ",")
		code, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return p.syntaxErr(b, "bad macro primitive code")
		}
		prim := MacroPrimitive{Code: code}
		for _, f := range fields[1:] {
			prim.Exprs = append(prim.Exprs, strings.TrimSpace(f))
		}
		def.Primitives = append(def.Primitives, prim)
	}
	p.doc.Macros[name] = def
	return nil
}

// stepRepeat rejects true step-and-repeat but accepts the degenerate 1x1
// form and the closing %SR*%.
func (p *parser) stepRepeat(head string) error {
	s := strings.TrimPrefix(head, "SR")
	if s == "" || strings.HasPrefix(s, "X1Y1") {
		return nil
	}
	return p.syntaxErr("%"+head+"*%", "step and repeat is not supported")
}

// word handles one *-terminated command outside %.
func (p *parser) word(w string) error {
	if w == "" {
		return nil
	}
	if strings.HasPrefix(w, "G04") || strings.HasPrefix(w, "G4") && !strings.HasPrefix(w, "G40") {
		return nil // comment
	}

	// Leading G-codes, possibly followed by coordinates on the same block.
	for strings.HasPrefix(w, "G") {
		j := 1
		for j < len(w) && w[j] >= '0' && w[j] <= '9' {
			j++
		}
		code, err := strconv.Atoi(w[1:j])
		if err != nil {
			return p.syntaxErr(w, "bad G code")
		}
		switch code {
		case 1:
			p.interp = 1
		case 2:
			p.interp = 2
		case 3:
			p.interp = 3
		case 36:
			p.closeRegionContour()
			p.inRegion = true
		case 37:
			p.closeRegionContour()
			p.inRegion = false
		case 74:
			if err := p.syntaxErr(w, "single-quadrant arcs are not supported"); err != nil {
				return err
			}
		case 75:
			// Multi-quadrant arcs: the only mode we generate geometry for.
		case 70, 71, 90, 91:
			// Deprecated unit and coordinate mode G-codes; %FS and %MO win.
		case 54:
			// Deprecated aperture-select prefix: G54D10.
		default:
			if err := p.syntaxErr(w, fmt.Sprintf("unknown G%02d", code)); err != nil {
				return err
			}
			return nil
		}
		w = w[j:]
	}
	if w == "" {
		return nil
	}

	if strings.HasPrefix(w, "M") {
		switch w {
		case "M00", "M01", "M02", "M0", "M1", "M2":
			p.done = true
			return nil
		default:
			return p.syntaxErr(w, "unknown M code")
		}
	}

	// Bare aperture select.
	if strings.HasPrefix(w, "D") {
		return p.selectOrOperate(w, w)
	}

	if strings.HasPrefix(w, "X") || strings.HasPrefix(w, "Y") ||
		strings.HasPrefix(w, "I") || strings.HasPrefix(w, "J") {
		return p.coordinate(w)
	}
	return p.syntaxErr(w, "unrecognized word command")
}

// selectOrOperate handles a D word without coordinates.
func (p *parser) selectOrOperate(w, orig string) error {
	num, err := strconv.Atoi(w[1:])
	if err != nil {
		return p.syntaxErr(orig, "bad D code")
	}
	switch {
	case num >= 10:
		code := "D" + strconv.Itoa(num)
		if _, ok := p.doc.Apertures[code]; !ok {
			return &camlib.ReferenceError{Code: code, Line: p.line}
		}
		p.curAperture = code
		return nil
	case num >= 1 && num <= 3:
		// Operation at the current point.
		return p.operate(num, p.cur, camlib.V2(0, 0), false)
	default:
		return p.syntaxErr(orig, "bad D code")
	}
}

// coordinate handles X/Y/I/J words with a trailing D operation.
func (p *parser) coordinate(w string) error {
	if !p.fmtSet {
		return &camlib.SyntaxError{Line: p.line, Text: w, Reason: "coordinate before %FS format specification"}
	}
	if !p.unitsSet {
		if err := p.syntaxErr(w, "coordinate before %MO unit mode, assuming millimeters"); err != nil {
			return err
		}
		p.unitsSet = true
		p.doc.Units = UnitsMM
	}

	target := p.cur
	var ij camlib.Vec2
	hasIJ := false
	op := 0
	s := w
	for len(s) > 0 {
		letter := s[0]
		j := 1
		for j < len(s) && (s[j] == '-' || s[j] == '+' || (s[j] >= '0' && s[j] <= '9')) {
			j++
		}
		field := s[1:j]
		switch letter {
		case 'X':
			v, err := p.decodeCoord(field)
			if err != nil {
				return p.syntaxErr(w, err.Error())
			}
			target.X = v
		case 'Y':
			v, err := p.decodeCoord(field)
			if err != nil {
				return p.syntaxErr(w, err.Error())
			}
			target.Y = v
		case 'I':
			v, err := p.decodeCoord(field)
			if err != nil {
				return p.syntaxErr(w, err.Error())
			}
			ij.X = v
			hasIJ = true
		case 'J':
			v, err := p.decodeCoord(field)
			if err != nil {
				return p.syntaxErr(w, err.Error())
			}
			ij.Y = v
			hasIJ = true
		case 'D':
			n, err := strconv.Atoi(field)
			if err != nil {
				return p.syntaxErr(w, "bad D code")
			}
			op = n
		default:
			return p.syntaxErr(w, "unexpected coordinate letter")
		}
		s = s[j:]
	}
	if op == 0 {
		// A coordinate without an operation code repeats the previous
		// operation in very old files; modern files never do this.
		return p.syntaxErr(w, "coordinate without an operation code")
	}
	return p.operate(op, target, ij, hasIJ)
}

// operate applies D01/D02/D03 at the decoded target.
func (p *parser) operate(op int, target camlib.Point, ij camlib.Vec2, hasIJ bool) error {
	switch op {
	case 1:
		var arc *ArcSpec
		if p.interp == 2 || p.interp == 3 {
			if !hasIJ {
				return p.syntaxErr("D01", "arc interpolation without I/J offsets")
			}
			arc = &ArcSpec{Center: p.cur.Add(ij), Clockwise: p.interp == 2}
		}
		if p.inRegion {
			if !p.regionOpen {
				p.regionOpen = true
				p.regionStart = p.cur
			}
			p.regionSegs = append(p.regionSegs, Segment{To: target, Arc: arc})
			p.cur = target
			return nil
		}
		if p.curAperture == "" {
			return &camlib.ReferenceError{Code: "D??", Line: p.line}
		}
		p.appendStroke(target, arc)
		p.cur = target
		return nil
	case 2:
		if p.inRegion {
			p.closeRegionContour()
		}
		p.cur = target
		return nil
	case 3:
		if p.inRegion {
			return p.syntaxErr("D03", "flash inside a region block")
		}
		if p.curAperture == "" {
			return &camlib.ReferenceError{Code: "D??", Line: p.line}
		}
		p.doc.Commands = append(p.doc.Commands, Command{
			Kind:     KindFlash,
			Aperture: p.curAperture,
			Polarity: p.polarity,
			At:       target,
			Line:     p.line,
		})
		p.cur = target
		return nil
	default:
		return p.syntaxErr(fmt.Sprintf("D%02d", op), "bad operation code")
	}
}

// appendStroke chains consecutive draws with the same aperture and
// polarity into one stroke command.
func (p *parser) appendStroke(target camlib.Point, arc *ArcSpec) {
	seg := Segment{To: target, Arc: arc}
	if n := len(p.doc.Commands); n > 0 {
		last := &p.doc.Commands[n-1]
		if last.Kind == KindStroke && last.Aperture == p.curAperture &&
			last.Polarity == p.polarity && last.end().Approx(p.cur, 1e-9) {
			last.Segments = append(last.Segments, seg)
			return
		}
	}
	p.doc.Commands = append(p.doc.Commands, Command{
		Kind:     KindStroke,
		Aperture: p.curAperture,
		Polarity: p.polarity,
		Start:    p.cur,
		Segments: []Segment{seg},
		Line:     p.line,
	})
}

// closeRegionContour flushes the contour being collected, if any.
func (p *parser) closeRegionContour() {
	if !p.regionOpen {
		return
	}
	if len(p.regionSegs) >= 2 {
		p.doc.Commands = append(p.doc.Commands, Command{
			Kind:     KindRegion,
			Polarity: p.polarity,
			Start:    p.regionStart,
			Segments: p.regionSegs,
			Line:     p.line,
		})
	}
	p.regionOpen = false
	p.regionSegs = nil
}

// decodeCoord converts one coordinate field to millimeters per the format
// specification.
func (p *parser) decodeCoord(field string) (float64, error) {
	if field == "" {
		return 0, fmt.Errorf("empty coordinate field")
	}
	neg := false
	switch field[0] {
	case '-':
		neg = true
		field = field[1:]
	case '+':
		field = field[1:]
	}
	total := p.doc.Format.IntDigits + p.doc.Format.DecDigits
	if len(field) > total {
		return 0, fmt.Errorf("coordinate %q longer than format allows", field)
	}
	if p.doc.Format.Zeros == TrailingOmitted {
		field += strings.Repeat("0", total-len(field))
	}
	iv, err := strconv.ParseInt(field, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad coordinate %q", field)
	}
	v := float64(iv) / math.Pow10(p.doc.Format.DecDigits) * p.scale
	if neg {
		v = -v
	}
	return v, nil
}
