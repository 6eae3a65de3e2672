/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package session wires one editor instance together: the document manager,
// the mode machine, the pointer controller, keyboard shortcuts and object
// detection. UI front ends and the CLI replay drive a Session; they never
// touch the pieces directly except for reading.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"goshoppable/internal/detect"
	"goshoppable/internal/document"
	"goshoppable/internal/domain"
	"goshoppable/internal/editor"
	"goshoppable/internal/geometry"
	"goshoppable/internal/history"
	"goshoppable/internal/host"
	"goshoppable/internal/interaction"
	applog "goshoppable/internal/log"
	"goshoppable/internal/shortcuts"
	"goshoppable/internal/telemetry"
)

// Options configures New. Zero values are usable.
type Options struct {
	Field   host.Field
	History history.Config
	// Detector enables object detection; nil disables it.
	Detector *detect.Service
	// Telemetry defaults to telemetry.Nop.
	Telemetry telemetry.Recorder
	// Shortcuts defaults to shortcuts.Default().
	Shortcuts *shortcuts.Bus
	// Viewport is the canvas area in pixels; the height defaults to
	// geometry.DefaultViewportHeight and the width to the height.
	Viewport geometry.Size
	// ImageHost overrides the image's default host when building its URL.
	ImageHost string
}

// Session is driven from one UI event loop. Only the detection status may
// be read from other goroutines.
type Session struct {
	Doc     *document.Manager
	Machine *editor.Machine
	Pointer *interaction.Controller

	detector  *detect.Service
	rec       telemetry.Recorder
	bus       *shortcuts.Bus
	viewport  geometry.Size
	origin    geometry.Pt
	imageHost string
	unreg     []func()
	log       *slog.Logger

	mu sync.Mutex
	ai AIStatus
}

func New(opts Options) *Session {
	if opts.Telemetry == nil {
		opts.Telemetry = telemetry.Nop{}
	}
	if opts.Shortcuts == nil {
		opts.Shortcuts = shortcuts.Default()
	}
	if opts.Viewport.H <= 0 {
		opts.Viewport.H = geometry.DefaultViewportHeight
	}
	if opts.Viewport.W <= 0 {
		opts.Viewport.W = opts.Viewport.H
	}

	s := &Session{
		Doc:       document.New(opts.Field, history.NewManager(opts.History)),
		Machine:   editor.NewMachine(),
		detector:  opts.Detector,
		rec:       opts.Telemetry,
		bus:       opts.Shortcuts,
		viewport:  opts.Viewport,
		imageHost: opts.ImageHost,
		log:       applog.WithComponent("session"),
	}
	s.Pointer = interaction.New(s.Doc, s.Machine, s.layoutFor(nil))
	s.Doc.Subscribe(s.onDocument)
	s.Machine.OnModeChange = func(from, to editor.Mode) {
		s.rec.Event(telemetry.EventModeChange, map[string]any{"from": from.String(), "to": to.String()})
	}
	return s
}

// Open loads the document from the field.
func (s *Session) Open(ctx context.Context) error {
	return s.Doc.Load(ctx)
}

// Attach makes this session the receiver of keyboard shortcuts.
func (s *Session) Attach() {
	s.unreg = append(s.unreg,
		s.bus.RegisterUndoRedo(func() { s.Undo() }, func() { s.Redo() }),
		s.bus.RegisterDelete(func() { s.DeleteSelection() }),
	)
}

// Close detaches shortcuts and cancels a running detection.
func (s *Session) Close() {
	for _, fn := range s.unreg {
		fn()
	}
	s.unreg = nil
	if s.detector != nil {
		s.detector.Cancel()
	}
}

// HandleKey routes a key press through the shortcut bus.
func (s *Session) HandleKey(k shortcuts.Key) bool { return s.bus.Dispatch(k) }

func (s *Session) onDocument(d *domain.Document) {
	s.Machine.Resolve(d)
	if d != nil {
		s.Pointer.SetLayout(s.layoutFor(d.Image), s.origin)
	}
}

func (s *Session) layoutFor(img *domain.ImageRef) geometry.Layout {
	var size geometry.Size
	if img != nil {
		size = geometry.Size{W: float64(img.Width), H: float64(img.Height)}
	}
	return geometry.ComputeCanvasLayout(size, s.viewport)
}

// SetViewport resizes the canvas area. origin is the canvas top-left in the
// coordinate space of pointer events.
func (s *Session) SetViewport(size geometry.Size, origin geometry.Pt) {
	if size.W > 0 && size.H > 0 {
		s.viewport = size
	}
	s.origin = origin
	var img *domain.ImageRef
	if d := s.Doc.Document(); d != nil {
		img = d.Image
	}
	s.Pointer.SetLayout(s.layoutFor(img), origin)
}

// Layout is the current canvas layout.
func (s *Session) Layout() geometry.Layout { return s.Pointer.Layout() }

// Origin is the canvas top-left set by SetViewport.
func (s *Session) Origin() geometry.Pt { return s.origin }

// Mode returns the active tool.
func (s *Session) Mode() editor.Mode { return s.Machine.Mode() }

// ImageURL is the rendition URL of the current image, or "".
func (s *Session) ImageURL() string {
	d := s.Doc.Document()
	if d == nil {
		return ""
	}
	return d.Image.URL(s.imageHost)
}

// ChangeMode switches tools. Delete runs immediately; Swap without an image
// only returns to Initial, use SwapImage to replace the image.
func (s *Session) ChangeMode(m editor.Mode) {
	if m == editor.Delete {
		s.DeleteImage()
		return
	}
	s.Machine.ChangeMode(m)
}

// SwapImage replaces the image, drops all metadata and history, and enters
// FocalPoint mode.
func (s *Session) SwapImage(img domain.ImageRef) bool {
	if !s.Doc.SwapImage(img) {
		return false
	}
	s.resetAI()
	s.Machine.ChangeMode(editor.FocalPoint)
	s.rec.Event(telemetry.EventImageSwap, nil)
	s.log.Info("image swapped", slog.String("id", img.ID), slog.String("name", img.Name))
	return true
}

// DeleteImage empties the document and returns to Initial.
func (s *Session) DeleteImage() bool {
	if !s.Doc.RemoveImage() {
		return false
	}
	s.resetAI()
	s.Machine.ChangeMode(editor.Initial)
	s.log.Info("image removed")
	return true
}

// DeleteSelection removes the selected shape. With nothing selected in
// FocalPoint mode it clears the focal point instead.
func (s *Session) DeleteSelection() bool {
	sel := s.Machine.Selection()
	if sel == nil {
		if s.Machine.Mode() == editor.FocalPoint {
			return s.Doc.ClearFocalPoint()
		}
		return false
	}
	var ok bool
	switch sel.Target.Kind {
	case editor.HotspotShape:
		ok = s.Doc.RemoveHotspot(sel.Target.ID)
	case editor.PolygonShape:
		ok = s.Doc.RemovePolygon(sel.Target.ID)
	}
	s.Machine.Deselect()
	if ok {
		s.rec.Event(telemetry.EventShapeRemoved, map[string]any{"kind": sel.Target.Kind.String()})
	}
	return ok
}

func (s *Session) Undo() bool {
	ok := s.Doc.Undo()
	if ok {
		s.rec.Event(telemetry.EventUndo, nil)
	}
	return ok
}

func (s *Session) Redo() bool {
	ok := s.Doc.Redo()
	if ok {
		s.rec.Event(telemetry.EventRedo, nil)
	}
	return ok
}

// UpdateHotspot edits a hotspot's target and selector as one undo step.
func (s *Session) UpdateHotspot(id, target, selector string) bool {
	return s.Doc.UpdateHotspot(id, target, selector)
}

// UpdatePolygon edits a polygon's target and selector as one undo step.
func (s *Session) UpdatePolygon(id, target, selector string) bool {
	return s.Doc.UpdatePolygon(id, target, selector)
}

// PointerDown, PointerMove and PointerUp forward pixel events.
func (s *Session) PointerDown(px geometry.Pt) {
	before := s.shapeCount()
	s.Pointer.PointerDown(px)
	if s.shapeCount() > before {
		s.rec.Event(telemetry.EventShapeAdded, map[string]any{"mode": s.Machine.Mode().String()})
	}
}

func (s *Session) PointerMove(px geometry.Pt) { s.Pointer.PointerMove(px) }
func (s *Session) PointerUp(px geometry.Pt)   { s.Pointer.PointerUp(px) }

func (s *Session) shapeCount() int {
	d := s.Doc.Document()
	if d == nil {
		return 0
	}
	return len(d.Hotspots) + len(d.Polygons)
}

var errNoDetector = errors.New("object detection is not configured")
