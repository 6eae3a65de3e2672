/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package hittest resolves which hotspot or polygon sits under the pointer.
//
// Polygons are matched on their bounding box grown by a small resize margin.
// A pointer inside the margin band of an edge starts a resize with the
// opposite edge anchored. Overlapping candidates are ranked by squared
// distance from the pointer to the box centre, measured in aspect-corrected
// units; the currently selected polygon always ranks first so it stays grabbed
// while dragged across other shapes. Hotspots are searched afterwards with the
// polygon's distance as ceiling, so a hotspot at least as close wins.
package hittest

import (
	"math"

	"goshoppable/internal/domain"
	"goshoppable/internal/geometry"
)

const (
	// ResizeMargin is the edge band, per aspect unit, that triggers a resize.
	ResizeMargin = 0.01
	// HotspotGrabRadius is the furthest a hotspot can be grabbed from.
	HotspotGrabRadius = 0.05
)

// Interaction tells how a grabbed polygon reacts to dragging.
type Interaction int

const (
	Default Interaction = iota
	ResizeX
	ResizeY
	ResizeBoth
)

func (i Interaction) String() string {
	switch i {
	case ResizeX:
		return "resize-x"
	case ResizeY:
		return "resize-y"
	case ResizeBoth:
		return "resize-both"
	default:
		return "move"
	}
}

// PolygonHit is the outcome of FindBestPolygon. Index is -1 when nothing
// matched, in which case DistSq is +Inf.
type PolygonHit struct {
	Index       int
	ID          string
	Interaction Interaction
	// Anchor marks the fixed corner of a resize: 0 is the min edge, 1 the max edge.
	Anchor geometry.Pt
	DistSq float64
}

// Found reports whether a polygon was hit.
func (h PolygonHit) Found() bool { return h.Index >= 0 }

// FindBestPolygon returns the best polygon under p. selectedID names the
// polygon currently selected ("" for none); it is treated as distance 0.
func FindBestPolygon(p geometry.Pt, polygons []domain.Polygon, aspect geometry.Pt, selectedID string) PolygonHit {
	best := PolygonHit{Index: -1, DistSq: math.Inf(1)}
	mx := ResizeMargin * aspect.X
	my := ResizeMargin * aspect.Y

	for i := range polygons {
		poly := &polygons[i]
		b := geometry.PolygonBounds(poly.Points)
		if !b.Inset(-mx, -my).Contains(p) {
			continue
		}

		// -1 none, 0 min edge, 1 max edge.
		rx, ry := edgeBand(p.X, b.X, b.W, mx), edgeBand(p.Y, b.Y, b.H, my)

		interaction := Default
		var anchor geometry.Pt
		switch {
		case rx >= 0 && ry >= 0:
			interaction = ResizeBoth
			anchor = geometry.Pt{X: float64(1 - rx), Y: float64(1 - ry)}
		case rx >= 0:
			interaction = ResizeX
			anchor = geometry.Pt{X: float64(1 - rx), Y: 1}
		case ry >= 0:
			interaction = ResizeY
			anchor = geometry.Pt{X: 0, Y: float64(1 - ry)}
		}

		selected := selectedID != "" && poly.ID == selectedID
		d := 0.0
		if !selected {
			d = geometry.DistSq(p, b.Center(), aspect)
		}
		if d < best.DistSq || (selected && d == best.DistSq) {
			best = PolygonHit{Index: i, ID: poly.ID, Interaction: interaction, Anchor: anchor, DistSq: d}
		}
	}
	return best
}

func edgeBand(v, start, size, margin float64) int {
	switch {
	case v > start+size-margin:
		return 1
	case v < start+margin:
		return 0
	}
	return -1
}

// HotspotHit is the outcome of FindBestHotspot; Index is -1 when nothing matched.
type HotspotHit struct {
	Index  int
	ID     string
	DistSq float64
}

// Found reports whether a hotspot was hit.
func (h HotspotHit) Found() bool { return h.Index >= 0 }

// FindBestHotspot returns the nearest hotspot within the grab radius whose
// distance does not exceed ceiling. Pass +Inf when no polygon was hit.
func FindBestHotspot(p geometry.Pt, hotspots []domain.Hotspot, aspect geometry.Pt, ceiling float64) HotspotHit {
	best := HotspotHit{Index: -1, DistSq: math.Inf(1)}
	for i := range hotspots {
		d := geometry.DistSq(p, hotspots[i].Point, aspect)
		if d < best.DistSq {
			best = HotspotHit{Index: i, ID: hotspots[i].ID, DistSq: d}
		}
	}
	if !best.Found() || best.DistSq > ceiling || best.DistSq > HotspotGrabRadius*HotspotGrabRadius {
		return HotspotHit{Index: -1, DistSq: best.DistSq}
	}
	return best
}

// Kind is what a Pick landed on.
type Kind int

const (
	None Kind = iota
	Hotspot
	Polygon
)

// Result combines both searches with hotspot precedence applied.
type Result struct {
	Kind    Kind
	Hotspot HotspotHit
	Polygon PolygonHit
}

// Pick runs the polygon search then the hotspot search seeded with the
// polygon distance.
func Pick(p geometry.Pt, doc *domain.Document, aspect geometry.Pt, selectedPolygonID string) Result {
	if doc == nil {
		return Result{Polygon: PolygonHit{Index: -1, DistSq: math.Inf(1)}, Hotspot: HotspotHit{Index: -1, DistSq: math.Inf(1)}}
	}
	res := Result{Polygon: FindBestPolygon(p, doc.Polygons, aspect, selectedPolygonID)}
	res.Hotspot = FindBestHotspot(p, doc.Hotspots, aspect, res.Polygon.DistSq)
	switch {
	case res.Hotspot.Found():
		res.Kind = Hotspot
	case res.Polygon.Found():
		res.Kind = Polygon
	}
	return res
}
