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
	"math"
	"sync"
	"testing"

	"goshoppable/internal/detect"
	"goshoppable/internal/domain"
	"goshoppable/internal/editor"
	"goshoppable/internal/geometry"
	"goshoppable/internal/host"
	"goshoppable/internal/shortcuts"
)

type detectorFunc func(ctx context.Context, req detect.Request) ([]detect.Candidate, error)

func (f detectorFunc) Detect(ctx context.Context, req detect.Request) ([]detect.Candidate, error) {
	return f(ctx, req)
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *countingRecorder) Event(name string, _ map[string]any) {
	r.mu.Lock()
	r.counts[name]++
	r.mu.Unlock()
}

func image() *domain.ImageRef {
	return &domain.ImageRef{ID: "img", Name: "living room.jpg", Endpoint: "shop", DefaultHost: "cdn.example", Width: 1000, Height: 1000}
}

func open(t *testing.T, d domain.Document, det detect.Detector) (*Session, *host.Memory, *countingRecorder) {
	t.Helper()
	f := host.NewMemory(d)
	rec := &countingRecorder{counts: map[string]int{}}
	opts := Options{Field: f, Telemetry: rec, Shortcuts: &shortcuts.Bus{}}
	if det != nil {
		opts.Detector = detect.NewService(det)
	}
	s := New(opts)
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	return s, f, rec
}

func TestLayoutFollowsImage(t *testing.T) {
	d := domain.New(&domain.ImageRef{ID: "wide", Width: 2000, Height: 1000})
	s, _, _ := open(t, d, nil)
	l := s.Layout()
	if !l.WidthBounded || l.CanvasW != 458 || l.CanvasH != 229 {
		t.Fatalf("layout: %+v", l)
	}
	s.SetViewport(geometry.Size{W: 800, H: 400}, geometry.Pt{X: 5, Y: 5})
	if l := s.Layout(); l.CanvasW != 800 || l.CanvasH != 400 {
		t.Fatalf("layout after resize: %+v", l)
	}
}

func TestDeleteSelectedShape(t *testing.T) {
	s, _, rec := open(t, domain.New(image()), nil)
	s.ChangeMode(editor.Hotspot)
	s.Pointer.Press(geometry.Pt{X: 0.5, Y: 0.5})
	s.Pointer.Release(geometry.Pt{X: 0.5, Y: 0.5})
	if s.Machine.Selection() == nil {
		t.Fatalf("new hotspot not selected")
	}
	if !s.DeleteSelection() {
		t.Fatalf("delete failed")
	}
	if len(s.Doc.Document().Hotspots) != 0 || s.Machine.Selection() != nil {
		t.Fatalf("hotspot or selection left behind")
	}
	if rec.counts["shape_removed"] != 1 {
		t.Fatalf("telemetry: %v", rec.counts)
	}
	if !s.Undo() || len(s.Doc.Document().Hotspots) != 1 {
		t.Fatalf("undo should restore the hotspot")
	}
}

func TestDeleteClearsFocalPoint(t *testing.T) {
	d := domain.New(image())
	d.FocalPoint = &domain.FocalPoint{X: 0.1, Y: 0.1, W: 0.2, H: 0.2}
	s, _, _ := open(t, d, nil)
	if s.DeleteSelection() {
		t.Fatalf("initial mode should not delete")
	}
	s.ChangeMode(editor.FocalPoint)
	if !s.DeleteSelection() || s.Doc.Document().FocalPoint != nil {
		t.Fatalf("focal point not cleared")
	}
}

func TestShortcuts(t *testing.T) {
	s, _, _ := open(t, domain.New(image()), nil)
	s.Attach()
	defer s.Close()

	s.ChangeMode(editor.PolygonRect)
	s.Pointer.Press(geometry.Pt{X: 0.2, Y: 0.2})
	s.Pointer.Release(geometry.Pt{X: 0.2, Y: 0.2})

	if !s.HandleKey(shortcuts.Key{Code: "z", Ctrl: true}) || len(s.Doc.Document().Polygons) != 0 {
		t.Fatalf("ctrl+z did not undo")
	}
	if !s.HandleKey(shortcuts.Key{Code: "z", Meta: true, Shift: true}) || len(s.Doc.Document().Polygons) != 1 {
		t.Fatalf("cmd+shift+z did not redo")
	}
	id := s.Doc.Document().Polygons[0].ID
	s.Machine.Select(editor.Selection{Target: editor.PolygonTarget(id)})
	if !s.HandleKey(shortcuts.Key{Code: "Delete"}) || len(s.Doc.Document().Polygons) != 0 {
		t.Fatalf("delete key did not remove the polygon")
	}
	s.Close()
	if s.HandleKey(shortcuts.Key{Code: "z", Ctrl: true}) {
		t.Fatalf("closed session still receives shortcuts")
	}
}

func TestSwapAndDeleteImage(t *testing.T) {
	d := domain.New(image())
	d.Hotspots = []domain.Hotspot{{ID: "h1", Point: domain.Point{X: 0.5, Y: 0.5}}}
	s, f, _ := open(t, d, nil)
	s.ChangeMode(editor.Hotspot)
	s.Pointer.Press(geometry.Pt{X: 0.2, Y: 0.2})

	if !s.SwapImage(domain.ImageRef{ID: "img2", Name: "kitchen"}) {
		t.Fatalf("swap failed")
	}
	doc := s.Doc.Document()
	if doc.Image.ID != "img2" || len(doc.Hotspots) != 0 || s.Doc.CanUndo() {
		t.Fatalf("swap should clear metadata and history: %+v", doc)
	}
	if s.Mode() != editor.FocalPoint || s.Machine.Selection() != nil {
		t.Fatalf("mode after swap: %s", s.Mode())
	}

	s.ChangeMode(editor.Delete)
	if s.Mode() != editor.Initial || !s.Doc.Document().Image.Empty() {
		t.Fatalf("delete image: mode %s image %+v", s.Mode(), s.Doc.Document().Image)
	}
	stored, _ := f.Read(context.Background())
	if !stored.Image.Empty() {
		t.Fatalf("field not updated")
	}

	s.ChangeMode(editor.Swap)
	if s.Mode() != editor.Initial {
		t.Fatalf("swap without image should rest in Initial, got %s", s.Mode())
	}
}

func TestMetadataEdits(t *testing.T) {
	d := domain.New(image())
	d.Hotspots = []domain.Hotspot{{ID: "h1", Target: "a", Selector: ".a"}}
	s, _, _ := open(t, d, nil)
	if !s.UpdateHotspot("h1", "lamp", ".lamp") || s.UpdatePolygon("nope", "x", "y") {
		t.Fatalf("update results wrong")
	}
	if h := s.Doc.Document().Hotspots[0]; h.Target != "lamp" || h.Selector != ".lamp" {
		t.Fatalf("hotspot: %+v", h)
	}
	s.Undo()
	if s.Doc.Document().Hotspots[0].Target != "a" {
		t.Fatalf("undo of metadata edit failed")
	}
}

func candidates() []detect.Candidate {
	return []detect.Candidate{
		{ID: "c1", Label: "sofa", Center: domain.Point{X: 0.5, Y: 0.6},
			Bounds:  &detect.Bounds{TopLeft: domain.Point{X: 0.3, Y: 0.4}, Width: 0.4, Height: 0.4},
			Outline: []domain.Point{{X: 0.3, Y: 0.4}, {X: 0.7, Y: 0.4}, {X: 0.7, Y: 0.8}}},
		{ID: "c2", Label: "sofa", Center: domain.Point{X: 0.1, Y: 0.1}},
	}
}

func TestDetectAndApply(t *testing.T) {
	var gotURL string
	det := detectorFunc(func(_ context.Context, req detect.Request) ([]detect.Candidate, error) {
		gotURL = req.ImageURL
		return candidates(), nil
	})
	s, _, rec := open(t, domain.New(image()), det)

	if err := s.Detect(context.Background(), true); err != nil {
		t.Fatalf("detect: %v", err)
	}
	if gotURL != "https://cdn.example/i/shop/living%20room.jpg" {
		t.Fatalf("image url: %s", gotURL)
	}
	ai := s.AI()
	if ai.State != AILoaded || len(ai.Candidates) != 2 || ai.Candidates[1].Selector != ".sofa-1" {
		t.Fatalf("status: %+v", ai)
	}

	s.ChangeMode(editor.Hotspot)
	c := ai.Candidates[0]
	if s.CandidateExists(c) || !s.ApplyCandidate(c) || !s.CandidateExists(c) {
		t.Fatalf("apply hotspot candidate")
	}
	if s.ApplyCandidate(c) {
		t.Fatalf("duplicate hotspot added")
	}
	if n := s.ApplyAll(); n != 1 || len(s.Doc.Document().Hotspots) != 2 {
		t.Fatalf("apply all added %d", n)
	}
	h := s.Doc.Document().Hotspots[0]
	if h.Point != c.Center || h.Target != "sofa" || h.Selector != ".sofa" {
		t.Fatalf("hotspot from candidate: %+v", h)
	}
	if !s.RemoveCandidate(c) || s.CandidateExists(c) {
		t.Fatalf("remove candidate")
	}

	s.ChangeMode(editor.PolygonCircle)
	if n := s.ApplyAll(); n != 2 {
		t.Fatalf("polygon apply all added %d", n)
	}
	polys := s.Doc.Document().Polygons
	if len(polys[0].Points) != 3 || len(polys[1].Points) != 4 {
		t.Fatalf("outline or full-image box expected: %+v", polys)
	}

	s.ChangeMode(editor.FocalPoint)
	if !s.ApplyCandidate(c) {
		t.Fatalf("focal candidate")
	}
	fp := s.Doc.Document().FocalPoint
	if math.Abs(fp.X-0.425) > 1e-9 || math.Abs(fp.Y-0.525) > 1e-9 {
		t.Fatalf("focal point should centre on the bounds: %+v", fp)
	}
	if rec.counts["detect"] != 1 || rec.counts["candidate_applied"] != 5 {
		t.Fatalf("telemetry: %v", rec.counts)
	}
}

func TestSelectCandidateRoutesMode(t *testing.T) {
	det := detectorFunc(func(context.Context, detect.Request) ([]detect.Candidate, error) { return candidates(), nil })
	s, _, _ := open(t, domain.New(image()), det)
	if err := s.Detect(context.Background(), true); err != nil {
		t.Fatalf("detect: %v", err)
	}
	c := s.AI().Candidates[0]

	s.ChangeMode(editor.FocalPoint)
	if !s.SelectCandidate(c, editor.PolygonShape) || s.Mode() != editor.FreeGrab {
		t.Fatalf("polygon pick should route to FreeGrab, got %s", s.Mode())
	}
	s.ChangeMode(editor.FocalPoint)
	if !s.SelectCandidate(c, editor.HotspotShape) || s.Mode() != editor.Hotspot {
		t.Fatalf("hotspot pick should route to Hotspot, got %s", s.Mode())
	}
	if sel := s.Machine.Selection(); sel == nil || sel.Target != editor.HotspotTarget("c1") {
		t.Fatalf("selection: %+v", sel)
	}
}

func TestDetectFailureStates(t *testing.T) {
	cases := []struct {
		err  error
		want AIState
	}{
		{detect.ErrInsufficientCredits, AIInsufficientCredits},
		{errors.New("boom"), AIError},
	}
	for _, tc := range cases {
		det := detectorFunc(func(context.Context, detect.Request) ([]detect.Candidate, error) { return nil, tc.err })
		s, _, _ := open(t, domain.New(image()), det)
		if err := s.Detect(context.Background(), true); err == nil {
			t.Fatalf("%v: expected error", tc.err)
		}
		if got := s.AI().State; got != tc.want {
			t.Fatalf("%v: state %s want %s", tc.err, got, tc.want)
		}
	}
}

func TestDetectWithoutImageOrDetector(t *testing.T) {
	s, _, _ := open(t, domain.New(nil), nil)
	if err := s.Detect(context.Background(), true); err == nil {
		t.Fatalf("expected error without detector")
	}
	det := detectorFunc(func(context.Context, detect.Request) ([]detect.Candidate, error) { return nil, nil })
	s, _, _ = open(t, domain.New(nil), det)
	if err := s.Detect(context.Background(), true); err == nil || s.AI().State != AIStale {
		t.Fatalf("expected error without image, state %s", s.AI().State)
	}
}

func TestCancelledDetectionKeepsState(t *testing.T) {
	started := make(chan struct{})
	det := detectorFunc(func(ctx context.Context, req detect.Request) ([]detect.Candidate, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	s, _, _ := open(t, domain.New(image()), det)

	errc := make(chan error, 1)
	url := s.ImageURL()
	go func() { errc <- s.DetectURL(context.Background(), url, true) }()
	<-started
	s.Close()
	if err := <-errc; !errors.Is(err, detect.ErrCancelled) {
		t.Fatalf("want ErrCancelled, got %v", err)
	}
	if st := s.AI().State; st != AILoading {
		t.Fatalf("cancellation must not change state, got %s", st)
	}
}

func TestDrawerToggle(t *testing.T) {
	s, _, _ := open(t, domain.New(image()), nil)
	s.ToggleDrawer()
	if !s.AI().DrawerOpen {
		t.Fatalf("drawer should be open")
	}
	s.SwapImage(domain.ImageRef{ID: "x", Name: "y"})
	if ai := s.AI(); !ai.DrawerOpen || ai.State != AIStale {
		t.Fatalf("swap resets detection but keeps the drawer: %+v", ai)
	}
}

func TestDetectURLLeavesDocumentToOwner(t *testing.T) {
	det := detectorFunc(func(context.Context, detect.Request) ([]detect.Candidate, error) { return candidates(), nil })
	s, _, _ := open(t, domain.New(image()), det)
	url := s.ImageURL()

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				_ = s.DetectURL(context.Background(), url, false)
			}
		}
	}()
	for i := 0; i < 200; i++ {
		s.SwapImage(*image())
		s.ChangeMode(editor.Hotspot)
		s.PointerDown(geometry.Pt{X: 100, Y: 100})
		s.PointerUp(geometry.Pt{X: 100, Y: 100})
	}
	close(done)
	wg.Wait()

	if err := s.DetectURL(context.Background(), "", false); err == nil {
		t.Fatalf("empty url should be rejected")
	}
	if err := s.DetectURL(context.Background(), url, false); err != nil {
		t.Fatalf("detect: %v", err)
	}
	if ai := s.AI(); ai.State != AILoaded || ai.ImageURL != url || len(ai.Candidates) != 2 {
		t.Fatalf("status after DetectURL: %+v", ai)
	}
}

func TestBulkAddOnlyForShapeTools(t *testing.T) {
	det := detectorFunc(func(context.Context, detect.Request) ([]detect.Candidate, error) { return candidates(), nil })
	s, _, _ := open(t, domain.New(image()), det)
	if err := s.Detect(context.Background(), true); err != nil {
		t.Fatalf("detect: %v", err)
	}
	c := s.AI().Candidates[0]

	s.ChangeMode(editor.Hotspot)
	if !s.ApplyCandidate(c) {
		t.Fatalf("hotspot candidate")
	}
	s.ChangeMode(editor.FocalPoint)
	if s.CandidateExists(c) {
		t.Fatalf("focal point mode has no existing candidates")
	}
	_, depth, _ := s.Doc.History().Stats()
	if n := s.ApplyAll(); n != 0 {
		t.Fatalf("add all in focal point mode added %d", n)
	}
	d := s.Doc.Document()
	_, after, _ := s.Doc.History().Stats()
	if d.FocalPoint != nil || len(d.Hotspots) != 1 || after != depth {
		t.Fatalf("add all must not touch the document: %+v", d)
	}

	s.ChangeMode(editor.Initial)
	if n := s.ApplyAll(); n != 0 {
		t.Fatalf("add all in initial mode added %d", n)
	}
}
