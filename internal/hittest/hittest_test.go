/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package hittest

import (
	"math"
	"testing"

	"goshoppable/internal/domain"
	"goshoppable/internal/geometry"
)

var unit = geometry.Pt{X: 1, Y: 1}

func square(id string, x, y, s float64) domain.Polygon {
	return domain.Polygon{ID: id, Points: geometry.Box(x, y, s, s)}
}

func TestFindBestPolygon_EmptyAndMiss(t *testing.T) {
	if h := FindBestPolygon(geometry.Pt{X: 0.5, Y: 0.5}, nil, unit, ""); h.Found() || !math.IsInf(h.DistSq, 1) {
		t.Fatalf("expected no match on empty list, got %+v", h)
	}
	polys := []domain.Polygon{square("a", 0, 0, 0.2)}
	if h := FindBestPolygon(geometry.Pt{X: 0.5, Y: 0.5}, polys, unit, ""); h.Found() {
		t.Fatalf("expected miss, got %+v", h)
	}
}

func TestFindBestPolygon_Interactions(t *testing.T) {
	polys := []domain.Polygon{square("a", 0.2, 0.2, 0.4)}
	cases := []struct {
		name   string
		p      geometry.Pt
		want   Interaction
		anchor geometry.Pt
	}{
		{"centre moves", geometry.Pt{X: 0.4, Y: 0.4}, Default, geometry.Pt{}},
		{"right edge", geometry.Pt{X: 0.605, Y: 0.4}, ResizeX, geometry.Pt{X: 0, Y: 1}},
		{"left edge", geometry.Pt{X: 0.195, Y: 0.4}, ResizeX, geometry.Pt{X: 1, Y: 1}},
		{"bottom edge", geometry.Pt{X: 0.4, Y: 0.599}, ResizeY, geometry.Pt{X: 0, Y: 0}},
		{"top edge", geometry.Pt{X: 0.4, Y: 0.2}, ResizeY, geometry.Pt{X: 0, Y: 1}},
		{"bottom right", geometry.Pt{X: 0.6, Y: 0.6}, ResizeBoth, geometry.Pt{X: 0, Y: 0}},
		{"top right", geometry.Pt{X: 0.6, Y: 0.2}, ResizeBoth, geometry.Pt{X: 0, Y: 1}},
		{"top left", geometry.Pt{X: 0.2, Y: 0.2}, ResizeBoth, geometry.Pt{X: 1, Y: 1}},
	}
	for _, c := range cases {
		h := FindBestPolygon(c.p, polys, unit, "")
		if !h.Found() || h.ID != "a" {
			t.Fatalf("%s: expected hit, got %+v", c.name, h)
		}
		if h.Interaction != c.want || h.Anchor != c.anchor {
			t.Fatalf("%s: got %v anchor %+v, want %v anchor %+v", c.name, h.Interaction, h.Anchor, c.want, c.anchor)
		}
	}
	// Outside the margin band.
	if h := FindBestPolygon(geometry.Pt{X: 0.62, Y: 0.4}, polys, unit, ""); h.Found() {
		t.Fatalf("expected miss beyond margin, got %+v", h)
	}
}

func TestFindBestPolygon_MarginScalesWithAspect(t *testing.T) {
	polys := []domain.Polygon{square("a", 0.2, 0.2, 0.4)}
	wide := geometry.Pt{X: 3, Y: 1}
	h := FindBestPolygon(geometry.Pt{X: 0.625, Y: 0.4}, polys, wide, "")
	if !h.Found() || h.Interaction != ResizeX {
		t.Fatalf("expected resize within widened margin, got %+v", h)
	}
}

func TestFindBestPolygon_NearestAndTies(t *testing.T) {
	polys := []domain.Polygon{
		square("big", 0, 0, 0.8),
		square("small", 0.35, 0.35, 0.2),
	}
	h := FindBestPolygon(geometry.Pt{X: 0.45, Y: 0.45}, polys, unit, "")
	if h.ID != "small" || h.DistSq != 0 {
		t.Fatalf("expected nearest centre to win, got %+v", h)
	}
	// Identical polygons: first in document order wins.
	twins := []domain.Polygon{square("first", 0.1, 0.1, 0.2), square("second", 0.1, 0.1, 0.2)}
	if h := FindBestPolygon(geometry.Pt{X: 0.15, Y: 0.15}, twins, unit, ""); h.ID != "first" {
		t.Fatalf("tie should keep first, got %+v", h)
	}
}

func TestFindBestPolygon_StickySelection(t *testing.T) {
	polys := []domain.Polygon{
		square("over", 0.3, 0.3, 0.2),
		square("selected", 0, 0, 0.9),
	}
	h := FindBestPolygon(geometry.Pt{X: 0.4, Y: 0.4}, polys, unit, "selected")
	if h.ID != "selected" || h.DistSq != 0 {
		t.Fatalf("selected polygon should win overlap, got %+v", h)
	}
	// Anchor follows the winner, not the last candidate.
	polys = []domain.Polygon{
		square("sel", 0.3, 0.3, 0.3),
		square("edge", 0.1, 0.1, 0.2),
	}
	h = FindBestPolygon(geometry.Pt{X: 0.305, Y: 0.305}, polys, unit, "sel")
	if h.ID != "sel" || h.Interaction != ResizeBoth || h.Anchor != (geometry.Pt{X: 1, Y: 1}) {
		t.Fatalf("unexpected winner metadata: %+v", h)
	}
}

func TestFindBestPolygon_Degenerate(t *testing.T) {
	polys := []domain.Polygon{{ID: "flat", Points: []geometry.Pt{{X: 0.5, Y: 0.5}, {X: 0.5, Y: 0.5}, {X: 0.5, Y: 0.5}}}}
	if h := FindBestPolygon(geometry.Pt{X: 0.505, Y: 0.495}, polys, unit, ""); !h.Found() {
		t.Fatalf("zero-area polygon should still be a candidate")
	}
}

func TestFindBestHotspot(t *testing.T) {
	hs := []domain.Hotspot{
		{ID: "a", Point: geometry.Pt{X: 0.5, Y: 0.5}},
		{ID: "b", Point: geometry.Pt{X: 0.52, Y: 0.5}},
	}
	inf := math.Inf(1)
	if h := FindBestHotspot(geometry.Pt{X: 0.515, Y: 0.5}, hs, unit, inf); h.ID != "b" {
		t.Fatalf("expected nearest hotspot b, got %+v", h)
	}
	if h := FindBestHotspot(geometry.Pt{X: 0.6, Y: 0.6}, hs, unit, inf); h.Found() {
		t.Fatalf("expected nothing beyond grab radius, got %+v", h)
	}
	if h := FindBestHotspot(geometry.Pt{X: 0.51, Y: 0.5}, hs, unit, 0.00001); h.Found() {
		t.Fatalf("ceiling should reject farther hotspot, got %+v", h)
	}
	if h := FindBestHotspot(geometry.Pt{X: 0.5, Y: 0.5}, nil, unit, inf); h.Found() {
		t.Fatalf("empty list should not match")
	}
}

func TestPick_HotspotPrecedence(t *testing.T) {
	doc := domain.New(nil)
	doc.Polygons = []domain.Polygon{square("p", 0.3, 0.3, 0.4)}
	doc.Hotspots = []domain.Hotspot{{ID: "h", Point: geometry.Pt{X: 0.45, Y: 0.45}}}

	r := Pick(geometry.Pt{X: 0.46, Y: 0.46}, &doc, unit, "")
	if r.Kind != Hotspot || r.Hotspot.ID != "h" {
		t.Fatalf("hotspot inside polygon should win, got %+v", r)
	}
	// Pointer exactly on the polygon centre beats the hotspot.
	r = Pick(geometry.Pt{X: 0.5, Y: 0.5}, &doc, unit, "")
	if r.Kind != Polygon || r.Polygon.ID != "p" {
		t.Fatalf("closer polygon centre should win, got %+v", r)
	}
	// Selected polygon is sticky against a nearby hotspot.
	r = Pick(geometry.Pt{X: 0.46, Y: 0.46}, &doc, unit, "p")
	if r.Kind != Polygon {
		t.Fatalf("selected polygon should win, got %+v", r)
	}
	if r := Pick(geometry.Pt{X: 0.9, Y: 0.1}, &doc, unit, ""); r.Kind != None {
		t.Fatalf("expected empty pick, got %+v", r)
	}
	if r := Pick(geometry.Pt{}, nil, unit, ""); r.Kind != None {
		t.Fatalf("nil document should not match")
	}
}

func TestCursorFor(t *testing.T) {
	cases := []struct {
		i      Interaction
		anchor geometry.Pt
		hover  Cursor
		drag   Cursor
	}{
		{Default, geometry.Pt{}, CursorGrab, CursorGrabbing},
		{ResizeX, geometry.Pt{X: 0, Y: 1}, CursorEW, CursorEW},
		{ResizeY, geometry.Pt{X: 0, Y: 0}, CursorNS, CursorNS},
		{ResizeBoth, geometry.Pt{X: 0, Y: 0}, CursorNWSE, CursorNWSE},
		{ResizeBoth, geometry.Pt{X: 1, Y: 0}, CursorNESW, CursorNESW},
	}
	for _, c := range cases {
		if got := CursorFor(c.i, c.anchor); got != c.hover {
			t.Fatalf("hover %v: got %s want %s", c.i, got, c.hover)
		}
		if got := DragCursor(c.i, c.anchor); got != c.drag {
			t.Fatalf("drag %v: got %s want %s", c.i, got, c.drag)
		}
	}
}
