package gerber

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/johnbetts/flatcam-mac-fork"
)

// MacroDef is one %AM aperture macro: a name and a list of primitives
// whose modifiers are arithmetic expressions over the $n arguments of the
// %AD instantiation. Expressions are kept as text and evaluated per flash,
// since different D-codes instantiate the same macro with different
// arguments.
type MacroDef struct {
	Name       string
	Primitives []MacroPrimitive
}

// MacroPrimitive is one primitive statement of a macro body. The supported
// codes are 1 (circle), 4 (outline), 5 (polygon) and 21 (center rectangle).
type MacroPrimitive struct {
	Code  int
	Exprs []string
}

// Flash evaluates the macro at center. args are the %AD modifiers in file
// units; scale converts file units to millimeters. Exposure-off primitives
// erase from the shapes accumulated so far within this flash.
func (m *MacroDef) Flash(center camlib.Point, args []float64, scale float64, cfg camlib.KernelConfig) ([]camlib.Polygon, error) {
	if scale <= 0 {
		scale = 1
	}
	env := func(n int) (float64, bool) {
		if n < 1 || n > len(args) {
			return 0, false
		}
		return args[n-1], true
	}

	var acc camlib.Geometry
	for i, prim := range m.Primitives {
		vals := make([]float64, len(prim.Exprs))
		for j, expr := range prim.Exprs {
			v, err := evalMacroExpr(expr, env)
			if err != nil {
				return nil, fmt.Errorf("macro %s primitive %d: %w", m.Name, i+1, err)
			}
			vals[j] = v
		}
		shape, exposure, err := prim.build(vals, scale, cfg)
		if err != nil {
			return nil, fmt.Errorf("macro %s primitive %d: %w", m.Name, i+1, err)
		}
		if shape == nil {
			continue
		}
		part := camlib.Geometry{Polygons: []camlib.Polygon{*shape}}
		if exposure {
			acc = camlib.Union(acc, part, cfg)
		} else {
			acc = camlib.Difference(acc, part, cfg)
		}
	}
	return acc.Translate(camlib.V2(center.X, center.Y)).Polygons, nil
}

// build constructs the primitive shape in macro-local coordinates,
// millimeters, centered on the macro origin.
func (p MacroPrimitive) build(vals []float64, scale float64, cfg camlib.KernelConfig) (*camlib.Polygon, bool, error) {
	need := func(n int) error {
		if len(vals) < n {
			return fmt.Errorf("primitive %d needs %d modifiers, got %d", p.Code, n, len(vals))
		}
		return nil
	}
	switch p.Code {
	case 1: // circle: exposure, diameter, cx, cy [, rotation]
		if err := need(4); err != nil {
			return nil, false, err
		}
		rot := optDeg(vals, 4)
		c := rotatePt(camlib.Pt(vals[2]*scale, vals[3]*scale), rot)
		poly := camlib.CirclePolygon(c, vals[1]*scale/2, cfg)
		return &poly, vals[0] != 0, nil

	case 4: // outline: exposure, #vertices, x0, y0, x1, y1 ... xn, yn, rotation
		if err := need(3); err != nil {
			return nil, false, err
		}
		n := int(vals[1])
		// n vertices plus the repeated closing point.
		if len(vals) < 2+2*(n+1)+1 {
			return nil, false, fmt.Errorf("outline with %d vertices needs %d modifiers", n, 3+2*(n+1))
		}
		rot := vals[2+2*(n+1)] * math.Pi / 180
		ring := make(camlib.Ring, 0, n)
		for i := 0; i < n; i++ {
			pt := camlib.Pt(vals[2+2*i]*scale, vals[3+2*i]*scale)
			ring = append(ring, rotatePt(pt, rot))
		}
		if ring.Area() < 0 {
			ring = ring.Reversed()
		}
		return &camlib.Polygon{Outer: ring}, vals[0] != 0, nil

	case 5: // polygon: exposure, #vertices, cx, cy, diameter, rotation
		if err := need(5); err != nil {
			return nil, false, err
		}
		n := int(vals[1])
		if n < 3 || n > 12 {
			return nil, false, fmt.Errorf("polygon vertex count %d out of range", n)
		}
		rot := optDeg(vals, 5)
		c := camlib.Pt(vals[2]*scale, vals[3]*scale)
		radius := vals[4] * scale / 2
		ring := make(camlib.Ring, n)
		for i := 0; i < n; i++ {
			ang := 2 * math.Pi * float64(i) / float64(n)
			pt := camlib.Pt(c.X+radius*math.Cos(ang), c.Y+radius*math.Sin(ang))
			ring[i] = rotatePt(pt, rot)
		}
		return &camlib.Polygon{Outer: ring}, vals[0] != 0, nil

	case 21: // center rectangle: exposure, width, height, cx, cy, rotation
		if err := need(5); err != nil {
			return nil, false, err
		}
		rot := optDeg(vals, 5)
		w, h := vals[1]*scale/2, vals[2]*scale/2
		c := camlib.Pt(vals[3]*scale, vals[4]*scale)
		corners := []camlib.Point{
			camlib.Pt(c.X-w, c.Y-h), camlib.Pt(c.X+w, c.Y-h),
			camlib.Pt(c.X+w, c.Y+h), camlib.Pt(c.X-w, c.Y+h),
		}
		ring := make(camlib.Ring, 4)
		for i, pt := range corners {
			ring[i] = rotatePt(pt, rot)
		}
		return &camlib.Polygon{Outer: ring}, vals[0] != 0, nil

	default:
		return nil, false, fmt.Errorf("unsupported primitive code %d", p.Code)
	}
}

func optDeg(vals []float64, i int) float64 {
	if len(vals) > i {
		return vals[i] * math.Pi / 180
	}
	return 0
}

// rotatePt rotates a point around the macro origin.
func rotatePt(p camlib.Point, rad float64) camlib.Point {
	if rad == 0 {
		return p
	}
	s, c := math.Sin(rad), math.Cos(rad)
	return camlib.Pt(p.X*c-p.Y*s, p.X*s+p.Y*c)
}

// evalMacroExpr evaluates a macro modifier expression: numbers, $n
// arguments, the four arithmetic operators (with 'x' and 'X' accepted for
// multiplication) and parentheses.
func evalMacroExpr(expr string, env func(int) (float64, bool)) (float64, error) {
	p := &exprParser{src: strings.TrimSpace(expr), env: env}
	v, err := p.parseSum()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return 0, fmt.Errorf("trailing input in expression %q", expr)
	}
	return v, nil
}

type exprParser struct {
	src string
	pos int
	env func(int) (float64, bool)
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *exprParser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *exprParser) parseSum() (float64, error) {
	v, err := p.parseProduct()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '+':
			p.pos++
			w, err := p.parseProduct()
			if err != nil {
				return 0, err
			}
			v += w
		case '-':
			p.pos++
			w, err := p.parseProduct()
			if err != nil {
				return 0, err
			}
			v -= w
		default:
			return v, nil
		}
	}
}

func (p *exprParser) parseProduct() (float64, error) {
	v, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case 'x', 'X', '*':
			p.pos++
			w, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			v *= w
		case '/':
			p.pos++
			w, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			if w == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			v /= w
		default:
			return v, nil
		}
	}
}

func (p *exprParser) parseFactor() (float64, error) {
	switch c := p.peek(); {
	case c == '-':
		p.pos++
		v, err := p.parseFactor()
		return -v, err
	case c == '(':
		p.pos++
		v, err := p.parseSum()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return v, nil
	case c == '$':
		p.pos++
		start := p.pos
		for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
			p.pos++
		}
		if p.pos == start {
			return 0, fmt.Errorf("bare $ in expression")
		}
		n, _ := strconv.Atoi(p.src[start:p.pos])
		v, ok := p.env(n)
		if !ok {
			// Unset macro arguments default to zero.
			return 0, nil
		}
		return v, nil
	default:
		start := p.pos
		for p.pos < len(p.src) {
			c := p.src[p.pos]
			if (c >= '0' && c <= '9') || c == '.' {
				p.pos++
				continue
			}
			break
		}
		if p.pos == start {
			return 0, fmt.Errorf("unexpected character %q", string(c))
		}
		v, err := strconv.ParseFloat(p.src[start:p.pos], 64)
		if err != nil {
			return 0, fmt.Errorf("bad number %q", p.src[start:p.pos])
		}
		return v, nil
	}
}
