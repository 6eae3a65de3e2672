/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"goshoppable/internal/detect"
	"goshoppable/internal/domain"
	"goshoppable/internal/editor"
	"goshoppable/internal/geometry"
	"goshoppable/internal/interaction"
	"goshoppable/internal/telemetry"
)

// AIState is the status of object detection for the current image.
type AIState int

const (
	AIStale AIState = iota
	AILoading
	AILoaded
	AIError
	AIInsufficientCredits
)

func (s AIState) String() string {
	switch s {
	case AILoading:
		return "loading"
	case AILoaded:
		return "loaded"
	case AIError:
		return "error"
	case AIInsufficientCredits:
		return "insufficient-credits"
	}
	return "stale"
}

// AIStatus is a snapshot of the detection panel.
type AIStatus struct {
	State      AIState
	ImageURL   string
	Candidates []detect.Candidate
	DrawerOpen bool
}

// AI returns the detection status. Safe from any goroutine.
func (s *Session) AI() AIStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.ai
	st.Candidates = append([]detect.Candidate(nil), s.ai.Candidates...)
	return st
}

// ToggleDrawer opens or closes the detection panel.
func (s *Session) ToggleDrawer() {
	s.mu.Lock()
	s.ai.DrawerOpen = !s.ai.DrawerOpen
	s.mu.Unlock()
}

func (s *Session) resetAI() {
	if s.detector != nil {
		s.detector.Cancel()
	}
	s.mu.Lock()
	s.ai = AIStatus{DrawerOpen: s.ai.DrawerOpen}
	s.mu.Unlock()
}

// Detect runs object detection on the current image and records the outcome
// in the status. A superseded run returns detect.ErrCancelled and leaves the
// status alone. It reads the document, so it runs on the goroutine that owns
// the session; UIs resolve the URL there and call DetectURL off the loop.
func (s *Session) Detect(ctx context.Context, useCache bool) error {
	return s.detect(ctx, detect.Request{ImageURL: s.ImageURL()}, useCache)
}

// DetectURL is Detect for an image URL resolved by the caller. It touches
// only the detection status, never the document.
func (s *Session) DetectURL(ctx context.Context, url string, useCache bool) error {
	return s.detect(ctx, detect.Request{ImageURL: url}, useCache)
}

// Find is Detect restricted to the named things.
func (s *Session) Find(ctx context.Context, things []string) error {
	return s.detect(ctx, detect.Request{ImageURL: s.ImageURL(), Find: things}, false)
}

func (s *Session) detect(ctx context.Context, req detect.Request, useCache bool) error {
	if s.detector == nil {
		return errNoDetector
	}
	url := req.ImageURL
	if url == "" {
		return errors.New("detect: no image")
	}

	s.mu.Lock()
	s.ai.State = AILoading
	s.ai.ImageURL = url
	s.mu.Unlock()

	cs, err := s.detector.Run(ctx, req, useCache)
	if errors.Is(err, detect.ErrCancelled) {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ai.ImageURL != url {
		// The image changed while the request was running.
		return detect.ErrCancelled
	}
	result := "ok"
	switch {
	case errors.Is(err, detect.ErrInsufficientCredits):
		s.ai.State = AIInsufficientCredits
		result = "credits"
	case err != nil:
		s.ai.State = AIError
		result = "error"
	default:
		s.ai.State = AILoaded
		s.ai.Candidates = cs
	}
	s.rec.Event(telemetry.EventDetect, map[string]any{"result": result, "objects": len(cs)})
	if err != nil {
		s.log.Warn("detection failed", slog.String("state", s.ai.State.String()), slog.Any("err", err))
		return fmt.Errorf("detect: %w", err)
	}
	return nil
}

// CandidateExists reports whether c was already added as the kind the
// current tool places. The focal point is not a shape, so in FocalPoint mode
// nothing exists.
func (s *Session) CandidateExists(c detect.Candidate) bool {
	d := s.Doc.Document()
	if d == nil {
		return false
	}
	switch mode := s.Machine.Mode(); {
	case mode == editor.Hotspot:
		return d.HotspotIndex(c.ID) >= 0
	case mode.EditsShapes():
		return d.PolygonIndex(c.ID) >= 0
	}
	return false
}

func candidateHotspot(c detect.Candidate) domain.Hotspot {
	return domain.Hotspot{ID: c.ID, Target: c.Target, Selector: c.Selector, Point: c.Center}
}

func candidatePolygon(c detect.Candidate) domain.Polygon {
	pts := c.Outline
	if len(pts) < domain.MinPolygonPoints {
		pts = geometry.Box(0, 0, 1, 1)
	}
	return domain.Polygon{ID: c.ID, Target: c.Target, Selector: c.Selector, Points: append([]domain.Point(nil), pts...)}
}

// ApplyCandidate adds c the way the current tool would: a hotspot at its
// centre, a polygon from its outline, or the focal point around it. Each
// application is one undo step.
func (s *Session) ApplyCandidate(c detect.Candidate) bool {
	d := s.Doc.Document()
	if d == nil {
		return false
	}
	var ok bool
	switch mode := s.Machine.Mode(); {
	case mode == editor.Hotspot:
		ok = d.HotspotIndex(c.ID) < 0 && s.Doc.AddHotspot(candidateHotspot(c))
	case mode.EditsShapes():
		ok = d.PolygonIndex(c.ID) < 0 && s.Doc.AddPolygon(candidatePolygon(c))
	case mode == editor.FocalPoint:
		a := s.Layout().Aspect
		ok = s.Doc.SetFocalPoint(geometry.FocalPointAround(c.Focus(), interaction.FocalPointSize*a.X, interaction.FocalPointSize*a.Y))
	}
	if ok {
		s.rec.Event(telemetry.EventCandidate, map[string]any{"mode": s.Machine.Mode().String()})
	}
	return ok
}

// ApplyAll applies every loaded candidate not yet present and returns how
// many were added. Only shape tools add in bulk; other modes add nothing.
func (s *Session) ApplyAll() int {
	if !s.Machine.Mode().EditsShapes() {
		return 0
	}
	n := 0
	for _, c := range s.AI().Candidates {
		if s.CandidateExists(c) {
			continue
		}
		if s.ApplyCandidate(c) {
			n++
		}
	}
	return n
}

// RemoveCandidate deletes the shape added for c.
func (s *Session) RemoveCandidate(c detect.Candidate) bool {
	switch mode := s.Machine.Mode(); {
	case mode == editor.Hotspot:
		return s.Doc.RemoveHotspot(c.ID)
	case mode.EditsShapes():
		return s.Doc.RemovePolygon(c.ID)
	}
	return false
}

// SelectCandidate adds c as the given kind if needed and selects it. From
// FocalPoint mode the machine then switches to the matching tool.
func (s *Session) SelectCandidate(c detect.Candidate, kind editor.ShapeKind) bool {
	d := s.Doc.Document()
	if d == nil {
		return false
	}
	var target editor.Target
	switch kind {
	case editor.HotspotShape:
		if d.HotspotIndex(c.ID) < 0 && !s.Doc.AddHotspot(candidateHotspot(c)) {
			return false
		}
		target = editor.HotspotTarget(c.ID)
	case editor.PolygonShape:
		if d.PolygonIndex(c.ID) < 0 && !s.Doc.AddPolygon(candidatePolygon(c)) {
			return false
		}
		target = editor.PolygonTarget(c.ID)
	default:
		return false
	}
	s.Machine.Select(editor.Selection{Target: target, LastPointer: c.Center})
	return true
}
