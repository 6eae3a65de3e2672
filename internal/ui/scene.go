/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"math"

	"goshoppable/internal/editor"
	"goshoppable/internal/geometry"
	"goshoppable/internal/hittest"
	"goshoppable/internal/session"
)

// ItemKind classifies a scene item.
type ItemKind int

const (
	ItemFocal ItemKind = iota
	ItemPolygon
	ItemHotspot
)

// Item is one drawable overlay shape in widget pixels.
type Item struct {
	Kind     ItemKind
	ID       string
	Label    string
	Selected bool
	// Points is the closed outline for polygons.
	Points []geometry.Pt
	// Rect is the focal rectangle, or the polygon bounds.
	Rect geometry.Rect
	// Center and Radius describe hotspot discs.
	Center geometry.Pt
	Radius float64
}

// Scene is what the editor canvas draws for one frame.
type Scene struct {
	// Frame is the image area inside the widget.
	Frame    geometry.Rect
	ImageURL string
	Mode     editor.Mode
	Cursor   hittest.Cursor
	Items    []Item
	CanUndo  bool
	CanRedo  bool
}

// hotspotRadiusPx is the drawn disc radius.
const hotspotRadiusPx = 7.0

// CenteredOrigin returns the top-left that centres a layout in a widget of size.
func CenteredOrigin(size geometry.Size, l geometry.Layout) geometry.Pt {
	return geometry.Pt{X: math.Max(0, (size.W-l.CanvasW)/2), Y: math.Max(0, (size.H-l.CanvasH)/2)}
}

// BuildScene projects the session's document into widget pixels. Focal point
// first, then polygons, then hotspots, so hotspots draw on top.
func BuildScene(s *session.Session) Scene {
	l := s.Layout()
	origin := s.Origin()
	sc := Scene{
		Frame:    geometry.Rect{X: origin.X, Y: origin.Y, W: l.CanvasW, H: l.CanvasH},
		ImageURL: s.ImageURL(),
		Mode:     s.Mode(),
		Cursor:   s.Pointer.Cursor(),
		CanUndo:  s.Doc.CanUndo(),
		CanRedo:  s.Doc.CanRedo(),
	}
	d := s.Doc.Document()
	if d == nil || !l.Valid() {
		return sc
	}
	toPx := func(p geometry.Pt) geometry.Pt { return geometry.NormalizedToPointer(p, origin, l) }

	var sel editor.Target
	if cur := s.Machine.Selection(); cur != nil {
		sel = cur.Target
	}

	if fp := d.FocalPoint; fp != nil {
		r := l.ToPixels(geometry.Rect{X: fp.X, Y: fp.Y, W: fp.W, H: fp.H})
		r.X += origin.X
		r.Y += origin.Y
		sc.Items = append(sc.Items, Item{Kind: ItemFocal, Rect: r, Selected: s.Mode() == editor.FocalPoint})
	}
	for _, p := range d.Polygons {
		pts := make([]geometry.Pt, len(p.Points))
		for i, pt := range p.Points {
			pts[i] = toPx(pt)
		}
		sc.Items = append(sc.Items, Item{
			Kind:     ItemPolygon,
			ID:       p.ID,
			Label:    p.Target,
			Points:   pts,
			Rect:     geometry.PolygonBounds(pts),
			Selected: sel.Kind == editor.PolygonShape && sel.ID == p.ID,
		})
	}
	for _, h := range d.Hotspots {
		sc.Items = append(sc.Items, Item{
			Kind:     ItemHotspot,
			ID:       h.ID,
			Label:    h.Target,
			Center:   toPx(h.Point),
			Radius:   hotspotRadiusPx,
			Selected: sel.Kind == editor.HotspotShape && sel.ID == h.ID,
		})
	}
	return sc
}

// Selected returns the selected item, if any.
func (sc Scene) Selected() (Item, bool) {
	for _, it := range sc.Items {
		if it.Selected && it.Kind != ItemFocal {
			return it, true
		}
	}
	return Item{}, false
}
