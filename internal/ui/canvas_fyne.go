//go:build fyne

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
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	fstorage "fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	"goshoppable/internal/geometry"
	"goshoppable/internal/session"
)

var (
	colBackground  = color.RGBA{R: 30, G: 30, B: 34, A: 255}
	colFrame       = color.RGBA{R: 90, G: 90, B: 96, A: 255}
	colPolygon     = color.RGBA{R: 0x1e, G: 0x88, B: 0xe5, A: 255}
	colHotspot     = color.RGBA{R: 0xe5, G: 0x39, B: 0x35, A: 255}
	colFocal       = color.RGBA{R: 0xff, G: 0xb3, B: 0x00, A: 255}
	colSelected    = color.RGBA{R: 0, G: 170, B: 255, A: 255}
	colTransparent = color.RGBA{}
)

// EditorCanvas draws the image and its metadata overlay and feeds pointer
// input into a session.
type EditorCanvas struct {
	widget.BaseWidget

	s *session.Session
	// OnChange runs after every pointer gesture that may have changed the document.
	OnChange func()

	pressed bool
	scene   Scene
}

var (
	_ desktop.Mouseable  = (*EditorCanvas)(nil)
	_ desktop.Hoverable  = (*EditorCanvas)(nil)
	_ desktop.Cursorable = (*EditorCanvas)(nil)
	_ fyne.Draggable     = (*EditorCanvas)(nil)
)

func NewEditorCanvas(s *session.Session) *EditorCanvas {
	c := &EditorCanvas{s: s}
	c.ExtendBaseWidget(c)
	return c
}

// CreateRenderer builds the canvas objects; they are regenerated from the scene on refresh.
func (c *EditorCanvas) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(colBackground)
	frame := canvas.NewRectangle(colTransparent)
	frame.StrokeColor = colFrame
	frame.StrokeWidth = 1
	r := &editorRenderer{c: c, bg: bg, frame: frame}
	r.rebuild()
	return r
}

// PreferredSize sets a decent default size for the widget.
func (c *EditorCanvas) PreferredSize() fyne.Size {
	h := float32(geometry.DefaultViewportHeight)
	return fyne.NewSize(h*4/3, h)
}

func toPt(p fyne.Position) geometry.Pt { return geometry.Pt{X: float64(p.X), Y: float64(p.Y)} }

func (c *EditorCanvas) MouseDown(e *desktop.MouseEvent) {
	if e.Button != desktop.MouseButtonPrimary {
		return
	}
	c.pressed = true
	c.s.PointerDown(toPt(e.Position))
	c.changed()
}

func (c *EditorCanvas) MouseUp(e *desktop.MouseEvent) {
	if !c.pressed {
		return
	}
	c.pressed = false
	c.s.PointerUp(toPt(e.Position))
	c.changed()
}

func (c *EditorCanvas) MouseIn(*desktop.MouseEvent) {}

func (c *EditorCanvas) MouseMoved(e *desktop.MouseEvent) {
	c.s.PointerMove(toPt(e.Position))
	c.Refresh()
}

func (c *EditorCanvas) MouseOut() {}

func (c *EditorCanvas) Dragged(e *fyne.DragEvent) {
	if !c.pressed {
		return
	}
	c.s.PointerMove(toPt(e.Position))
	c.Refresh()
}

// DragEnd is followed by MouseUp on desktop drivers, which ends the gesture.
func (c *EditorCanvas) DragEnd() {}

// Cursor maps the controller's cursor hint to a system cursor.
func (c *EditorCanvas) Cursor() desktop.Cursor {
	switch CursorShapeFor(c.s.Pointer.Cursor()) {
	case ShapePointer:
		return desktop.PointerCursor
	case ShapeCrosshair:
		return desktop.CrosshairCursor
	case ShapeHResize:
		return desktop.HResizeCursor
	case ShapeVResize:
		return desktop.VResizeCursor
	}
	return desktop.DefaultCursor
}

func (c *EditorCanvas) changed() {
	c.Refresh()
	if c.OnChange != nil {
		c.OnChange()
	}
}

type editorRenderer struct {
	c       *EditorCanvas
	bg      *canvas.Rectangle
	frame   *canvas.Rectangle
	img     *canvas.Image
	imgURL  string
	size    fyne.Size
	objects []fyne.CanvasObject
}

func (r *editorRenderer) Destroy()                     {}
func (r *editorRenderer) Objects() []fyne.CanvasObject { return r.objects }
func (r *editorRenderer) MinSize() fyne.Size           { return fyne.NewSize(200, 150) }

func (r *editorRenderer) Layout(size fyne.Size) {
	r.size = size
	s := r.c.s
	vp := geometry.Size{W: float64(size.Width), H: float64(size.Height)}
	s.SetViewport(vp, geometry.Pt{})
	s.SetViewport(vp, CenteredOrigin(vp, s.Layout()))
	r.rebuild()
}

func (r *editorRenderer) Refresh() {
	r.rebuild()
	canvas.Refresh(r.c)
}

// rebuild regenerates the overlay objects from the current scene.
func (r *editorRenderer) rebuild() {
	sc := BuildScene(r.c.s)
	r.c.scene = sc

	r.bg.Resize(r.size)
	r.bg.Move(fyne.NewPos(0, 0))
	r.frame.Move(pos(sc.Frame.X, sc.Frame.Y))
	r.frame.Resize(fyne.NewSize(float32(sc.Frame.W), float32(sc.Frame.H)))

	objs := []fyne.CanvasObject{r.bg}
	if sc.ImageURL != r.imgURL {
		r.imgURL = sc.ImageURL
		r.img = nil
		if sc.ImageURL != "" {
			if uri, err := fstorage.ParseURI(sc.ImageURL); err == nil {
				r.img = canvas.NewImageFromURI(uri)
				r.img.FillMode = canvas.ImageFillStretch
			}
		}
	}
	if r.img != nil {
		r.img.Move(pos(sc.Frame.X, sc.Frame.Y))
		r.img.Resize(fyne.NewSize(float32(sc.Frame.W), float32(sc.Frame.H)))
		objs = append(objs, r.img)
	}
	objs = append(objs, r.frame)

	for _, it := range sc.Items {
		switch it.Kind {
		case ItemFocal:
			rect := canvas.NewRectangle(colTransparent)
			rect.StrokeColor = colFocal
			rect.StrokeWidth = 2
			rect.Move(pos(it.Rect.X, it.Rect.Y))
			rect.Resize(fyne.NewSize(float32(it.Rect.W), float32(it.Rect.H)))
			objs = append(objs, rect)
		case ItemPolygon:
			col := colPolygon
			if it.Selected {
				col = colSelected
			}
			for i := range it.Points {
				a, b := it.Points[i], it.Points[(i+1)%len(it.Points)]
				ln := canvas.NewLine(col)
				ln.StrokeWidth = 2
				ln.Position1 = pos(a.X, a.Y)
				ln.Position2 = pos(b.X, b.Y)
				objs = append(objs, ln)
			}
			if it.Selected {
				bb := canvas.NewRectangle(colTransparent)
				bb.StrokeColor = colSelected
				bb.StrokeWidth = 1
				bb.Move(pos(it.Rect.X, it.Rect.Y))
				bb.Resize(fyne.NewSize(float32(it.Rect.W), float32(it.Rect.H)))
				objs = append(objs, bb)
			}
			objs = append(objs, label(it.Label, it.Rect.X+4, it.Rect.Y+2, col))
		case ItemHotspot:
			col := colHotspot
			if it.Selected {
				col = colSelected
			}
			dot := canvas.NewCircle(col)
			dot.StrokeColor = color.White
			dot.StrokeWidth = 2
			dot.Move(pos(it.Center.X-it.Radius, it.Center.Y-it.Radius))
			dot.Resize(fyne.NewSize(float32(2*it.Radius), float32(2*it.Radius)))
			objs = append(objs, dot, label(it.Label, it.Center.X+it.Radius+3, it.Center.Y-8, col))
		}
	}
	r.objects = objs
}

func label(text string, x, y float64, col color.Color) fyne.CanvasObject {
	t := canvas.NewText(text, col)
	t.TextSize = 11
	t.Move(pos(x, y))
	return t
}

func pos(x, y float64) fyne.Position { return fyne.NewPos(float32(x), float32(y)) }
