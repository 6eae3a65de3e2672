/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package geometry

import (
	"math"
	"testing"

	"goshoppable/internal/domain"
)

const eps = 1e-9

func near(a, b float64) bool { return math.Abs(a-b) < eps }

func TestRectContainsAndInset(t *testing.T) {
	r := R(0.1, 0.2, 0.5, 0.4)
	if !r.Contains(Pt{X: 0.1, Y: 0.2}) || !r.Contains(Pt{X: 0.6, Y: 0.6}) {
		t.Fatalf("expected edge points to be contained")
	}
	out := r.Inset(-0.01, -0.02)
	if !near(out.X, 0.09) || !near(out.Y, 0.18) || !near(out.W, 0.52) || !near(out.H, 0.44) {
		t.Fatalf("unexpected inset: %+v", out)
	}
}

func TestAffineScaleAround(t *testing.T) {
	m := ScaleAround(Pt{X: 1, Y: 1}, 2, 3)
	p := m.Apply(Pt{X: 2, Y: 2})
	if !near(p.X, 3) || !near(p.Y, 4) {
		t.Fatalf("unexpected transform result: %+v", p)
	}
	if q := m.Apply(Pt{X: 1, Y: 1}); q.X != 1 || q.Y != 1 {
		t.Fatalf("anchor moved: %+v", q)
	}
}

func TestComputeCanvasLayout(t *testing.T) {
	// 2000x1000 image into 800x458: wider than viewport ratio, width-bounded.
	l := ComputeCanvasLayout(Size{W: 2000, H: 1000}, Size{W: 800, H: 458})
	if !l.WidthBounded || l.CanvasW != 800 || l.CanvasH != 400 {
		t.Fatalf("unexpected width-bounded layout: %+v", l)
	}
	unit := 458.0 / 800.0
	if !near(l.Aspect.X, unit) || !near(l.Aspect.Y, unit*2) {
		t.Fatalf("unexpected aspect: %+v", l.Aspect)
	}

	// Portrait image is height-bounded.
	l = ComputeCanvasLayout(Size{W: 500, H: 1000}, Size{W: 800, H: 458})
	if l.WidthBounded || l.CanvasH != 458 || !near(l.CanvasW, 229) {
		t.Fatalf("unexpected height-bounded layout: %+v", l)
	}
	if !near(l.Aspect.X, 2) || l.Aspect.Y != 1 {
		t.Fatalf("unexpected aspect: %+v", l.Aspect)
	}

	// Unknown image size falls back to the viewport shape.
	l = ComputeCanvasLayout(Size{}, Size{W: 458, H: 458})
	if !l.Valid() || l.Aspect.X != 1 || l.Aspect.Y != 1 {
		t.Fatalf("unexpected fallback layout: %+v", l)
	}
}

func TestPointerRoundTrip(t *testing.T) {
	l := ComputeCanvasLayout(Size{W: 1600, H: 900}, Size{W: 1024, H: DefaultViewportHeight})
	origin := Pt{X: 37, Y: 112}
	for _, p := range []Pt{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 0.25, Y: 0.75}, {X: 0.333, Y: 0.001}} {
		px := NormalizedToPointer(p, origin, l)
		back := PointerToNormalized(px, origin, l)
		if math.Abs(back.X-p.X) > 1e-12 || math.Abs(back.Y-p.Y) > 1e-12 {
			t.Fatalf("round trip %+v -> %+v -> %+v", p, px, back)
		}
	}
	// Not clamped.
	out := PointerToNormalized(Pt{X: origin.X - 10, Y: origin.Y + 2*l.CanvasH}, origin, l)
	if out.X >= 0 || !near(out.Y, 2) {
		t.Fatalf("expected unclamped result, got %+v", out)
	}
}

func TestBoxAndBounds(t *testing.T) {
	pts := Box(0.1, 0.2, 0.3, 0.4)
	if len(pts) != 4 {
		t.Fatalf("box has %d points", len(pts))
	}
	b := PolygonBounds(pts)
	if !near(b.X, 0.1) || !near(b.Y, 0.2) || !near(b.W, 0.3) || !near(b.H, 0.4) {
		t.Fatalf("unexpected box bounds: %+v", b)
	}
	if pts[0].X != pts[3].X || pts[0].Y != pts[1].Y || pts[1].X != pts[2].X {
		t.Fatalf("box edges not axis aligned: %+v", pts)
	}
	if PolygonBounds(nil) != (Rect{}) {
		t.Fatalf("empty bounds should be zero")
	}
}

func TestCircleApprox(t *testing.T) {
	for _, c := range []Rect{R(0, 0, 1, 1), R(0.2, 0.3, 0.1, 0.05), R(0.5, 0.5, 0, 0)} {
		pts := CircleApprox(c.X, c.Y, c.W, c.H)
		if len(pts) != 12 {
			t.Fatalf("circle has %d points", len(pts))
		}
		b := PolygonBounds(pts)
		if !near(b.X, c.X) || !near(b.Y, c.Y) || !near(b.W, c.W) || !near(b.H, c.H) {
			t.Fatalf("bounds %+v do not match %+v", b, c)
		}
	}
	pts := CircleApprox(0, 0, 1, 1)
	if !near(pts[0].X, 0.37) || !near(pts[2].X, 0.87) || !near(pts[2].Y, 0.13) || !near(pts[11].X, 0.13) {
		t.Fatalf("unexpected control points: %+v", pts)
	}
}

func TestClampFocalPoint(t *testing.T) {
	cases := []struct {
		in, want domain.FocalPoint
	}{
		{domain.FocalPoint{X: -0.1, Y: 0.2, W: 0.2, H: 0.2}, domain.FocalPoint{X: 0, Y: 0.2, W: 0.2, H: 0.2}},
		{domain.FocalPoint{X: 0.9, Y: 0.95, W: 0.15, H: 0.15}, domain.FocalPoint{X: 0.85, Y: 0.85, W: 0.15, H: 0.15}},
		{domain.FocalPoint{X: 0.5, Y: -3, W: 1.5, H: 0.1}, domain.FocalPoint{X: 0, Y: 0, W: 1, H: 0.1}},
	}
	for _, c := range cases {
		got := ClampFocalPoint(c.in)
		if !near(got.X, c.want.X) || !near(got.Y, c.want.Y) || got.W != c.want.W || got.H != c.want.H {
			t.Fatalf("clamp(%+v) = %+v, want %+v", c.in, got, c.want)
		}
		if again := ClampFocalPoint(got); again != got {
			t.Fatalf("clamp not idempotent: %+v -> %+v", got, again)
		}
	}
}

func TestFocalPointAround(t *testing.T) {
	fp := FocalPointAround(Pt{X: 0.5, Y: 0.5}, 0.15, 0.15)
	if !near(fp.X, 0.425) || !near(fp.Y, 0.425) {
		t.Fatalf("not centred: %+v", fp)
	}
	fp = FocalPointAround(Pt{X: 0.95, Y: 0.95}, 0.15, 0.15)
	if !near(fp.X, 0.85) || !near(fp.Y, 0.85) {
		t.Fatalf("not clamped: %+v", fp)
	}
}

func TestPointsToPath(t *testing.T) {
	in := CircleApprox(0.1, 0.1, 0.2, 0.2)
	p := PointsToPath(in)
	if len(p.Cmds) != len(in)+1 || p.Cmds[0].Op != MoveTo || p.Cmds[len(p.Cmds)-1].Op != Close {
		t.Fatalf("unexpected commands: %+v", p.Cmds)
	}
	out := p.Points()
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("point %d changed: %+v vs %+v", i, in[i], out[i])
		}
	}
	if d := PointsToPath(Box(0, 0, 0.5, 0.25)).SVGData(200, 100); d != "M0 0 L100 0 L100 25 L0 25 Z" {
		t.Fatalf("unexpected svg data %q", d)
	}
	if len(PointsToPath(nil).Cmds) != 0 {
		t.Fatalf("empty input should give empty path")
	}
}
