package excellon

import (
	"bufio"
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

// Parse reads a complete drill file from r.
func Parse(r io.Reader, opts ...ParseOption) (*Document, error) {
	var cfg parseConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	p := &parser{
		cfg: cfg,
		doc: &Document{Tools: make(map[int]*Tool)},
		// Implied-decimal defaults per convention: 2.4 for inch files,
		// 3.3 for metric. Overridden when the header states a format or
		// when the body data needs a wider one.
		intDigits: 2,
		decDigits: 4,
		leading:   true,
	}
	sc := bufio.NewScanner(r)
	var lines []string
	for sc.Scan() {
		lines = append(lines, strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("excellon: read: %w", err)
	}
	p.inferFormat(lines)
	for _, line := range lines {
		p.line++
		if err := p.handle(line); err != nil {
			return nil, err
		}
		if p.done {
			break
		}
	}
	return p.doc, nil
}

type parser struct {
	cfg parseConfig
	doc *Document

	inHeader bool
	scale    float64 // file units to millimeters; 0 until units are known
	leading  bool    // leading zeros present, pad on the right

	intDigits int
	decDigits int

	// inferredLen is the widest implied-decimal coordinate field seen in
	// the body, used to size the format when the header never states one.
	inferredLen int

	curTool int
	cur     camlib.Point

	line int
	done bool
}

// inferFormat sizes the implied-decimal format from the body data when the
// header never declares one. The unit convention fixes the decimal digits;
// the widest coordinate field then bounds the integer digits, so files
// written with more digits than the 2.4/3.3 defaults still decode instead
// of being rejected or scaled wrong. A declared format always wins.
func (p *parser) inferFormat(lines []string) {
	maxLen := 0
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "METRIC"), strings.HasPrefix(line, "INCH"):
			if _, _, ok := formatHint(line); ok {
				return
			}
		case strings.HasPrefix(line, "X"), strings.HasPrefix(line, "Y"):
			for _, f := range coordFields(line) {
				if !strings.ContainsRune(f, '.') && len(f) > maxLen {
					maxLen = len(f)
				}
			}
		}
	}
	p.inferredLen = maxLen
}

// coordFields extracts the numeric fields following X and Y letters,
// stripped of their sign.
func coordFields(line string) []string {
	var fields []string
	for i := 0; i < len(line); i++ {
		if line[i] != 'X' && line[i] != 'Y' {
			continue
		}
		j := i + 1
		for j < len(line) && (line[j] == '+' || line[j] == '-' || line[j] == '.' ||
			(line[j] >= '0' && line[j] <= '9')) {
			j++
		}
		if f := strings.TrimLeft(line[i+1:j], "+-"); f != "" {
			fields = append(fields, f)
		}
		i = j - 1
	}
	return fields
}

// formatHint reads an explicit 000.000 style field from a units line.
func formatHint(line string) (intDigits, decDigits int, ok bool) {
	ci := strings.IndexByte(line, ',')
	if ci < 0 {
		return 0, 0, false
	}
	for _, f := range strings.Split(line[ci+1:], ",") {
		if strings.ContainsRune(f, '.') && strings.Trim(f, "0.") == "" {
			parts := strings.SplitN(f, ".", 2)
			return len(parts[0]), len(parts[1]), true
		}
	}
	return 0, 0, false
}

func (p *parser) syntaxErr(text, reason string) error {
	se := &camlib.SyntaxError{Line: p.line, Text: text, Reason: reason}
	if p.cfg.strict {
		return se
	}
	p.doc.Errors = append(p.doc.Errors, se)
	camlib.Logger().Warn("recovered excellon syntax error",
		"line", p.line, "reason", reason)
	return nil
}

func (p *parser) handle(line string) error {
	if line == "" || strings.HasPrefix(line, ";") {
		return nil
	}
	switch {
	case line == "M48":
		p.inHeader = true
		return nil
	case line == "%" || line == "M95":
		p.inHeader = false
		return nil
	case line == "M30" || line == "M00" || line == "M02":
		p.done = true
		return nil
	case line == "M71":
		return p.setUnits(UnitsMM)
	case line == "M72":
		return p.setUnits(UnitsInch)
	case strings.HasPrefix(line, "METRIC"):
		if err := p.setUnits(UnitsMM); err != nil {
			return err
		}
		return p.zeroMode(line)
	case strings.HasPrefix(line, "INCH"):
		if err := p.setUnits(UnitsInch); err != nil {
			return err
		}
		return p.zeroMode(line)
	case strings.HasPrefix(line, "FMAT"), strings.HasPrefix(line, "VER"),
		line == "G90", line == "G05", line == "G00", line == "G01",
		strings.HasPrefix(line, "G93"), line == "M25", line == "M31":
		return nil
	case strings.HasPrefix(line, "ICI"):
		return p.syntaxErr(line, "incremental coordinates are not supported")
	case strings.HasPrefix(line, "R") && len(line) > 1 && line[1] >= '0' && line[1] <= '9':
		return p.syntaxErr(line, "repeat codes are not supported")
	case strings.HasPrefix(line, "T"):
		return p.toolLine(line)
	case strings.HasPrefix(line, "X") || strings.HasPrefix(line, "Y"):
		return p.coordinateLine(line)
	default:
		return p.syntaxErr(line, "unrecognized command")
	}
}

func (p *parser) setUnits(u Units) error {
	p.doc.Units = u
	if u == UnitsInch {
		p.scale = 25.4
		p.intDigits, p.decDigits = 2, 4
	} else {
		p.scale = 1
		p.intDigits, p.decDigits = 3, 3
	}
	// Body data wider than the convention allows grows the integer side.
	// Skipped entirely when the header declared a format, which sets the
	// digits right after this via zeroMode.
	if p.inferredLen > p.intDigits+p.decDigits {
		p.intDigits = p.inferredLen - p.decDigits
	}
	return nil
}

// zeroMode reads the ,LZ or ,TZ suffix of a units line. LZ keeps leading
// zeros, so trailing zeros are the omitted ones, and vice versa.
func (p *parser) zeroMode(line string) error {
	switch {
	case strings.Contains(line, ",LZ"):
		p.leading = true
	case strings.Contains(line, ",TZ"):
		p.leading = false
	}
	// An explicit 000.000 style format hint wins over the defaults and
	// over anything inferred from the body.
	if id, dd, ok := formatHint(line); ok {
		p.intDigits, p.decDigits = id, dd
	}
	return nil
}

// toolLine handles both a header definition (T01C0.0135) and a body
// selection (T01).
func (p *parser) toolLine(line string) error {
	j := 1
	for j < len(line) && line[j] >= '0' && line[j] <= '9' {
		j++
	}
	num, err := strconv.Atoi(line[1:j])
	if err != nil {
		return p.syntaxErr(line, "bad tool number")
	}
	rest := line[j:]

	if ci := strings.IndexByte(rest, 'C'); ci >= 0 {
		// Definition; feed and speed modifiers after the diameter are
		// ignored.
		end := ci + 1
		for end < len(rest) && (rest[end] == '.' || (rest[end] >= '0' && rest[end] <= '9')) {
			end++
		}
		diam, err := strconv.ParseFloat(rest[ci+1:end], 64)
		if err != nil {
			return p.syntaxErr(line, "bad tool diameter")
		}
		if p.scale == 0 {
			return p.syntaxErr(line, "tool definition before units")
		}
		p.doc.Tools[num] = &Tool{Number: num, Diameter: diam * p.scale}
		return nil
	}

	// Selection. T0 unloads the tool.
	if num == 0 {
		p.curTool = 0
		return nil
	}
	if _, ok := p.doc.Tools[num]; !ok {
		return &camlib.ReferenceError{Code: fmt.Sprintf("T%02d", num), Line: p.line}
	}
	p.curTool = num
	return nil
}

// coordinateLine handles a drill hit or, with an embedded G85, a slot.
func (p *parser) coordinateLine(line string) error {
	if p.curTool == 0 {
		return &camlib.ReferenceError{Code: "T00", Line: p.line}
	}
	if p.scale == 0 {
		return &camlib.SyntaxError{Line: p.line, Text: line, Reason: "coordinate before units"}
	}
	if gi := strings.Index(line, "G85"); gi >= 0 {
		from, err := p.decodeXY(line[:gi])
		if err != nil {
			return p.syntaxErr(line, err.Error())
		}
		to, err := p.decodeXY(line[gi+3:])
		if err != nil {
			return p.syntaxErr(line, err.Error())
		}
		p.doc.Slots = append(p.doc.Slots, Slot{Tool: p.curTool, From: from, To: to, Line: p.line})
		p.cur = to
		return nil
	}
	at, err := p.decodeXY(line)
	if err != nil {
		return p.syntaxErr(line, err.Error())
	}
	p.doc.Hits = append(p.doc.Hits, Hit{Tool: p.curTool, At: at, Line: p.line})
	p.cur = at
	return nil
}

// decodeXY reads X and Y fields, carrying modal values for missing axes.
func (p *parser) decodeXY(s string) (camlib.Point, error) {
	pt := p.cur
	for len(s) > 0 {
		axis := s[0]
		if axis != 'X' && axis != 'Y' {
			return pt, fmt.Errorf("unexpected field %q", s)
		}
		j := 1
		for j < len(s) && (s[j] == '-' || s[j] == '+' || s[j] == '.' || (s[j] >= '0' && s[j] <= '9')) {
			j++
		}
		v, err := p.decodeCoord(s[1:j])
		if err != nil {
			return pt, err
		}
		if axis == 'X' {
			pt.X = v
		} else {
			pt.Y = v
		}
		s = s[j:]
	}
	return pt, nil
}

// decodeCoord converts one coordinate field to millimeters. Fields with an
// explicit decimal point bypass the implied format.
func (p *parser) decodeCoord(field string) (float64, error) {
	if field == "" {
		return 0, fmt.Errorf("empty coordinate field")
	}
	if strings.ContainsRune(field, '.') {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return 0, fmt.Errorf("bad coordinate %q", field)
		}
		return v * p.scale, nil
	}
	neg := false
	switch field[0] {
	case '-':
		neg = true
		field = field[1:]
	case '+':
		field = field[1:]
	}
	total := p.intDigits + p.decDigits
	if len(field) > total {
		return 0, fmt.Errorf("coordinate %q longer than format allows", field)
	}
	if p.leading {
		field += strings.Repeat("0", total-len(field))
	}
	iv, err := strconv.ParseInt(field, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad coordinate %q", field)
	}
	v := float64(iv) / math.Pow10(p.decDigits) * p.scale
	if neg {
		v = -v
	}
	return v, nil
}
