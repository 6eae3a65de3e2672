/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package interaction turns raw pointer events into editor actions: it
// converts pixels to image space, hit-tests, places or grabs shapes, applies
// drags and keeps the cursor hint current.
package interaction

import (
	"log/slog"
	"math"

	"github.com/google/uuid"

	"goshoppable/internal/document"
	"goshoppable/internal/domain"
	"goshoppable/internal/editor"
	"goshoppable/internal/geometry"
	"goshoppable/internal/hittest"
	applog "goshoppable/internal/log"
)

// Size factors, in aspect units.
const (
	FocalPointSize = 0.15
	NewShapeSize   = 0.1
	MinShapeSize   = 0.05
)

// Defaults for shapes placed by a click.
const (
	DefaultTarget   = "target"
	DefaultSelector = ".selector"
)

// Phase is the gesture state.
type Phase int

const (
	Idle Phase = iota
	Down
	Dragging
)

// Controller handles pointer input for one editor canvas.
// It runs on the UI event loop and is not safe for concurrent use.
type Controller struct {
	doc     *document.Manager
	machine *editor.Machine
	layout  geometry.Layout
	origin  geometry.Pt

	phase Phase
	// grabOffset is hotspot minus pointer for the grabbed hotspot; polygon
	// drags work from the selection's LastPointer instead.
	grabOffset geometry.Pt
	cursor     hittest.Cursor
	log        *slog.Logger

	// NewID mints ids for shapes created by a click.
	NewID func() string
}

// New returns a controller for the given document and state machine.
func New(doc *document.Manager, machine *editor.Machine, layout geometry.Layout) *Controller {
	return &Controller{
		doc:     doc,
		machine: machine,
		layout:  layout,
		cursor:  hittest.CursorDefault,
		log:     applog.WithComponent("interaction"),
		NewID:   uuid.NewString,
	}
}

// SetLayout updates the canvas geometry and its page origin in pixels.
func (c *Controller) SetLayout(l geometry.Layout, origin geometry.Pt) {
	c.layout = l
	c.origin = origin
}

func (c *Controller) Layout() geometry.Layout { return c.layout }
func (c *Controller) Phase() Phase             { return c.phase }
func (c *Controller) Cursor() hittest.Cursor   { return c.cursor }

// ToNormalized converts a page pixel position to image space.
func (c *Controller) ToNormalized(px geometry.Pt) geometry.Pt {
	return geometry.PointerToNormalized(px, c.origin, c.layout)
}

// PointerDown handles a press at page pixel px.
func (c *Controller) PointerDown(px geometry.Pt) {
	if !c.layout.Valid() {
		c.phase = Down
		return
	}
	c.Press(c.ToNormalized(px))
}

// PointerMove handles motion to page pixel px.
func (c *Controller) PointerMove(px geometry.Pt) {
	if !c.layout.Valid() {
		return
	}
	c.Move(c.ToNormalized(px))
}

// PointerUp handles a release at page pixel px.
func (c *Controller) PointerUp(px geometry.Pt) {
	c.phase = Idle
	if !c.layout.Valid() {
		c.cursor = hittest.CursorDefault
		return
	}
	c.Hover(c.ToNormalized(px))
}

// Press is PointerDown in image space.
func (c *Controller) Press(p geometry.Pt) {
	c.phase = Down
	d := c.doc.Document()
	if d == nil {
		return
	}
	mode := c.machine.Mode()
	switch {
	case mode == editor.FocalPoint:
		c.doc.BeginChange()
		c.placeFocalPoint(p)
	case mode.EditsShapes():
		c.grabOrCreate(p, mode)
	}
	c.cursor = c.dragCursor()
}

// Move is PointerMove in image space: a drag while pressed, a hover otherwise.
func (c *Controller) Move(p geometry.Pt) {
	if c.phase == Idle {
		c.Hover(p)
		return
	}
	c.phase = Dragging
	c.cursor = c.dragCursor()
	c.drag(p)
}

// Release is PointerUp in image space.
func (c *Controller) Release(p geometry.Pt) {
	c.phase = Idle
	c.Hover(p)
}

// Hover updates the cursor hint for p without changing any state.
func (c *Controller) Hover(p geometry.Pt) {
	mode := c.machine.Mode()
	c.cursor = hittest.CursorDefault
	if !mode.EditsShapes() {
		return
	}
	res := hittest.Pick(p, c.doc.Document(), c.layout.Aspect, c.machine.SelectedPolygonID())
	switch res.Kind {
	case hittest.Hotspot:
		c.cursor = hittest.CursorGrab
	case hittest.Polygon:
		c.cursor = hittest.CursorFor(res.Polygon.Interaction, res.Polygon.Anchor)
	default:
		if mode != editor.FreeGrab {
			c.cursor = hittest.CursorCopy
		}
	}
}

func (c *Controller) dragCursor() hittest.Cursor {
	sel := c.machine.Selection()
	if sel == nil {
		return hittest.CursorDefault
	}
	return hittest.DragCursor(sel.Interaction, sel.Anchor)
}

func (c *Controller) placeFocalPoint(p geometry.Pt) {
	a := c.layout.Aspect
	fp := geometry.FocalPointAround(p, FocalPointSize*a.X, FocalPointSize*a.Y)
	c.doc.Mutate(false, func(d *domain.Document) bool {
		d.FocalPoint = &fp
		return true
	})
}

func (c *Controller) grabOrCreate(p geometry.Pt, mode editor.Mode) {
	d := c.doc.Document()
	a := c.layout.Aspect
	res := hittest.Pick(p, d, a, c.machine.SelectedPolygonID())

	switch res.Kind {
	case hittest.Hotspot:
		h := d.Hotspots[res.Hotspot.Index]
		c.grabOffset = geometry.Pt{X: h.Point.X - p.X, Y: h.Point.Y - p.Y}
		c.machine.Select(editor.Selection{Target: editor.HotspotTarget(h.ID), LastPointer: p})
		return
	case hittest.Polygon:
		c.machine.Select(editor.Selection{
			Target:      editor.PolygonTarget(res.Polygon.ID),
			Interaction: res.Polygon.Interaction,
			Anchor:      res.Polygon.Anchor,
			LastPointer: p,
		})
		return
	}

	// Nothing under the pointer: place a new shape for the current tool.
	id := c.NewID()
	if mode == editor.Hotspot {
		if !c.doc.AddHotspot(domain.Hotspot{ID: id, Target: DefaultTarget, Selector: DefaultSelector, Point: p}) {
			return
		}
		c.grabOffset = geometry.Pt{}
		c.machine.Select(editor.Selection{Target: editor.HotspotTarget(id), LastPointer: p, UndoRecorded: true})
		c.log.Debug("hotspot placed", slog.String("id", id))
		return
	}

	w, h := NewShapeSize*a.X, NewShapeSize*a.Y
	var pts []geometry.Pt
	if mode == editor.PolygonRect {
		pts = geometry.Box(p.X, p.Y, w, h)
	} else {
		pts = geometry.CircleApprox(p.X, p.Y, w, h)
	}
	if !c.doc.AddPolygon(domain.Polygon{ID: id, Target: DefaultTarget, Selector: DefaultSelector, Points: pts}) {
		return
	}
	c.machine.Select(editor.Selection{
		Target:       editor.PolygonTarget(id),
		Interaction:  hittest.ResizeBoth,
		Anchor:       geometry.Pt{X: 0, Y: 0},
		LastPointer:  p,
		UndoRecorded: true,
	})
	c.log.Debug("polygon placed", slog.String("id", id), slog.String("mode", mode.String()))
}

func (c *Controller) drag(p geometry.Pt) {
	if c.doc.Document() == nil {
		return
	}
	mode := c.machine.Mode()
	if mode == editor.FocalPoint {
		c.placeFocalPoint(p)
		return
	}
	if !mode.EditsShapes() {
		return
	}
	sel := c.machine.Selection()
	if sel == nil {
		return
	}
	switch sel.Target.Kind {
	case editor.HotspotShape:
		c.dragHotspot(sel, p)
	case editor.PolygonShape:
		c.dragPolygon(sel, p)
		sel.LastPointer = p
	}
}

// markUndo records the gesture's undo step the first time it changes something.
func (c *Controller) markUndo(sel *editor.Selection, changed bool) {
	if changed && !sel.UndoRecorded {
		c.doc.BeginChange()
		sel.UndoRecorded = true
	}
}

func (c *Controller) dragHotspot(sel *editor.Selection, p geometry.Pt) {
	h := sel.Target.Hotspot(c.doc.Document())
	if h == nil {
		return
	}
	np := geometry.Pt{X: p.X + c.grabOffset.X, Y: p.Y + c.grabOffset.Y}
	changed := np != h.Point
	c.markUndo(sel, changed)
	id := sel.Target.ID
	c.doc.Mutate(false, func(d *domain.Document) bool {
		if i := d.HotspotIndex(id); i >= 0 && changed {
			d.Hotspots[i].Point = np
			return true
		}
		return false
	})
}

func (c *Controller) dragPolygon(sel *editor.Selection, p geometry.Pt) {
	poly := sel.Target.Polygon(c.doc.Document())
	if poly == nil {
		return
	}
	var m geometry.Affine2D
	changed := false
	if sel.Interaction == hittest.Default {
		dx, dy := p.X-sel.LastPointer.X, p.Y-sel.LastPointer.Y
		m = geometry.Translate(dx, dy)
		changed = dx != 0 || dy != 0
	} else {
		var ok bool
		m, changed, ok = c.resizeTransform(sel, geometry.PolygonBounds(poly.Points), p)
		if !ok {
			return
		}
	}
	c.markUndo(sel, changed)
	if !changed {
		return
	}
	id := sel.Target.ID
	c.doc.Mutate(false, func(d *domain.Document) bool {
		i := d.PolygonIndex(id)
		if i < 0 {
			return false
		}
		m.ApplyAll(d.Polygons[i].Points)
		return true
	})
}

// resizeTransform scales the polygon around its anchored edge so the dragged
// edge follows p, keeping at least MinShapeSize per axis.
func (c *Controller) resizeTransform(sel *editor.Selection, b geometry.Rect, p geometry.Pt) (geometry.Affine2D, bool, bool) {
	if b.W <= 0 || b.H <= 0 {
		return geometry.Identity, false, false
	}
	a := c.layout.Aspect
	resizeX := sel.Interaction == hittest.ResizeX || sel.Interaction == hittest.ResizeBoth
	resizeY := sel.Interaction == hittest.ResizeY || sel.Interaction == hittest.ResizeBoth

	edge := geometry.Pt{X: b.X + sel.Anchor.X*b.W, Y: b.Y + sel.Anchor.Y*b.H}
	// Dragging toward the anchor shrinks; the sign flips for a max-edge anchor.
	mulX := (sel.Anchor.X - 0.5) * -2
	mulY := (sel.Anchor.Y - 0.5) * -2

	newW, newH := b.W, b.H
	if resizeX {
		newW = (p.X - edge.X) * mulX
	}
	if resizeY {
		newH = (p.Y - edge.Y) * mulY
	}
	newW = math.Max(MinShapeSize*a.X, newW)
	newH = math.Max(MinShapeSize*a.Y, newH)

	rx, ry := newW/b.W, newH/b.H
	return geometry.ScaleAround(edge, rx, ry), rx != 1 || ry != 1, true
}
