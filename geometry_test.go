package camlib

import (
	"math"
	"testing"
)

func square(x0, y0, x1, y1 float64) Ring {
	return Ring{Pt(x0, y0), Pt(x1, y0), Pt(x1, y1), Pt(x0, y1)}
}

func approxEq(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestRingArea(t *testing.T) {
	r := square(0, 0, 2, 3)
	if got := r.Area(); !approxEq(got, 6, 1e-9) {
		t.Errorf("Area() = %v, want 6", got)
	}
	if !r.IsCCW() {
		t.Error("counter-clockwise ring reported as clockwise")
	}
	rev := r.Reversed()
	if got := rev.Area(); !approxEq(got, -6, 1e-9) {
		t.Errorf("reversed Area() = %v, want -6", got)
	}
}

func TestRingContains(t *testing.T) {
	r := square(0, 0, 10, 10)
	cases := []struct {
		pt   Point
		want bool
	}{
		{Pt(5, 5), true},
		{Pt(0.001, 0.001), true},
		{Pt(-1, 5), false},
		{Pt(5, 11), false},
	}
	for _, c := range cases {
		if got := r.Contains(c.pt); got != c.want {
			t.Errorf("Contains(%v) = %v, want %v", c.pt, got, c.want)
		}
	}
}

func TestRingDissolved(t *testing.T) {
	r := Ring{Pt(0, 0), Pt(1, 0), Pt(2, 0), Pt(2, 2), Pt(0, 2)}
	got := r.dissolved(1e-4)
	if len(got) != 4 {
		t.Fatalf("dissolved kept %d vertices, want 4", len(got))
	}
}

func TestPolygonAreaWithHole(t *testing.T) {
	p := Polygon{
		Outer: square(0, 0, 10, 10),
		Holes: []Ring{square(2, 2, 4, 4).Reversed()},
	}
	if got := p.Area(); !approxEq(got, 96, 1e-9) {
		t.Errorf("Area() = %v, want 96", got)
	}
	if p.Contains(Pt(3, 3)) {
		t.Error("point inside hole reported as contained")
	}
	if !p.Contains(Pt(1, 1)) {
		t.Error("point in material reported as not contained")
	}
}

func TestPolygonValidate(t *testing.T) {
	cfg := DefaultKernel()

	tiny := Polygon{Outer: Ring{Pt(0, 0), Pt(1, 0)}}
	if err := tiny.Validate(cfg); err == nil {
		t.Error("two-vertex outer ring passed validation")
	}

	bowtie := Polygon{Outer: Ring{Pt(0, 0), Pt(2, 2), Pt(2, 0), Pt(0, 2)}}
	err := bowtie.Validate(cfg)
	if err == nil {
		t.Fatal("self-intersecting ring passed validation")
	}
	if _, ok := err.(*GeometricError); !ok {
		t.Errorf("Validate returned %T, want *GeometricError", err)
	}

	ok := Polygon{Outer: square(0, 0, 5, 5)}
	if err := ok.Validate(cfg); err != nil {
		t.Errorf("valid polygon rejected: %v", err)
	}
}

func TestGeometryBoundingBox(t *testing.T) {
	g := Geometry{
		Polygons: []Polygon{{Outer: square(0, 0, 2, 2)}},
		Lines:    []Polyline{{Pt(-1, 0), Pt(0, 5)}},
		Points:   []Point{Pt(7, 1)},
	}
	bb := g.BoundingBox()
	if bb.Min != Pt(-1, 0) || bb.Max != Pt(7, 5) {
		t.Errorf("BoundingBox() = %+v", bb)
	}
}

func TestTransformMirrorKeepsWinding(t *testing.T) {
	g := Geometry{Polygons: []Polygon{{
		Outer: square(0, 0, 4, 4),
		Holes: []Ring{square(1, 1, 2, 2).Reversed()},
	}}}
	m := g.MirrorX(0)
	if !m.Polygons[0].Outer.IsCCW() {
		t.Error("mirrored outer ring is no longer counter-clockwise")
	}
	if m.Polygons[0].Holes[0].IsCCW() {
		t.Error("mirrored hole ring is no longer clockwise")
	}
	bb := m.BoundingBox()
	if bb.Min.X != -4 || bb.Max.X != 0 {
		t.Errorf("mirror bounds = %+v", bb)
	}
}

func TestTransformScale(t *testing.T) {
	g := Geometry{Polygons: []Polygon{{Outer: square(0, 0, 2, 2)}}}
	s := g.Scale(2, 3, Pt(0, 0))
	if got := s.Area(); !approxEq(got, 24, 1e-9) {
		t.Errorf("scaled area = %v, want 24", got)
	}
}

func TestPolylineLength(t *testing.T) {
	l := Polyline{Pt(0, 0), Pt(3, 0), Pt(3, 4)}
	if got := l.Length(); !approxEq(got, 7, 1e-9) {
		t.Errorf("Length() = %v, want 7", got)
	}
}
