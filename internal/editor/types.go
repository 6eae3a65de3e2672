/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package editor

import (
	"fmt"
	"strings"

	"goshoppable/internal/domain"
	"goshoppable/internal/geometry"
	"goshoppable/internal/hittest"
)

// Mode is the active editing tool.
type Mode int

const (
	Initial Mode = iota
	FocalPoint
	Hotspot
	FreeGrab
	PolygonRect
	PolygonCircle
	// Swap and Delete are one-shot commands; the machine never rests in them.
	Swap
	Delete
)

var modeNames = map[Mode]string{
	Initial:       "initial",
	FocalPoint:    "focal-point",
	Hotspot:       "hotspot",
	FreeGrab:      "free-grab",
	PolygonRect:   "polygon-rect",
	PolygonCircle: "polygon-circle",
	Swap:          "swap",
	Delete:        "delete",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode accepts the names produced by String.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return Initial, fmt.Errorf("unknown mode %q", s)
}

// EditsShapes reports whether pointer input edits hotspots and polygons.
func (m Mode) EditsShapes() bool {
	switch m {
	case Hotspot, FreeGrab, PolygonRect, PolygonCircle:
		return true
	}
	return false
}

// Command reports whether m is a one-shot command.
func (m Mode) Command() bool { return m == Swap || m == Delete }

// ShapeKind tags a selection target.
type ShapeKind int

const (
	HotspotShape ShapeKind = iota + 1
	PolygonShape
)

func (k ShapeKind) String() string {
	switch k {
	case HotspotShape:
		return "hotspot"
	case PolygonShape:
		return "polygon"
	}
	return "none"
}

// Target identifies the selected shape by kind and id. Shapes are looked up
// in the live document on use, so a target never holds a stale copy.
type Target struct {
	Kind ShapeKind
	ID   string
}

// HotspotTarget and PolygonTarget build targets.
func HotspotTarget(id string) Target { return Target{Kind: HotspotShape, ID: id} }
func PolygonTarget(id string) Target { return Target{Kind: PolygonShape, ID: id} }

// Hotspot returns the target hotspot in d, or nil.
func (t Target) Hotspot(d *domain.Document) *domain.Hotspot {
	if d == nil || t.Kind != HotspotShape {
		return nil
	}
	if i := d.HotspotIndex(t.ID); i >= 0 {
		return &d.Hotspots[i]
	}
	return nil
}

// Polygon returns the target polygon in d, or nil.
func (t Target) Polygon(d *domain.Document) *domain.Polygon {
	if d == nil || t.Kind != PolygonShape {
		return nil
	}
	if i := d.PolygonIndex(t.ID); i >= 0 {
		return &d.Polygons[i]
	}
	return nil
}

// Exists reports whether the target is present in d.
func (t Target) Exists(d *domain.Document) bool {
	switch t.Kind {
	case HotspotShape:
		return t.Hotspot(d) != nil
	case PolygonShape:
		return t.Polygon(d) != nil
	}
	return false
}

// Selection is the transient grab state of one shape.
type Selection struct {
	Target      Target
	Interaction hittest.Interaction
	// Anchor is the fixed corner during a resize.
	Anchor geometry.Pt
	// LastPointer is the previous drag position, used for polygon moves.
	LastPointer geometry.Pt
	// UndoRecorded is set once the current gesture has pushed its undo step.
	UndoRecorded bool
}
