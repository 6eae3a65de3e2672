/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package document

import (
	"goshoppable/internal/domain"
)

// Shape-level operations. Each is one undo step.

// AddHotspot appends h.
func (m *Manager) AddHotspot(h domain.Hotspot) bool {
	return m.Mutate(true, func(d *domain.Document) bool {
		d.Hotspots = append(d.Hotspots, h)
		return true
	})
}

// AddPolygon appends p; outlines with fewer than 3 points are rejected.
func (m *Manager) AddPolygon(p domain.Polygon) bool {
	if len(p.Points) < domain.MinPolygonPoints {
		return false
	}
	p.Points = append([]domain.Point(nil), p.Points...)
	return m.Mutate(true, func(d *domain.Document) bool {
		d.Polygons = append(d.Polygons, p)
		return true
	})
}

// RemoveHotspot deletes the hotspot with id.
func (m *Manager) RemoveHotspot(id string) bool {
	if m.doc == nil || m.doc.HotspotIndex(id) < 0 {
		return false
	}
	return m.Mutate(true, func(d *domain.Document) bool {
		i := d.HotspotIndex(id)
		d.Hotspots = append(d.Hotspots[:i], d.Hotspots[i+1:]...)
		return true
	})
}

// RemovePolygon deletes the polygon with id.
func (m *Manager) RemovePolygon(id string) bool {
	if m.doc == nil || m.doc.PolygonIndex(id) < 0 {
		return false
	}
	return m.Mutate(true, func(d *domain.Document) bool {
		i := d.PolygonIndex(id)
		d.Polygons = append(d.Polygons[:i], d.Polygons[i+1:]...)
		return true
	})
}

// SetFocalPoint replaces the focal point.
func (m *Manager) SetFocalPoint(fp domain.FocalPoint) bool {
	return m.Mutate(true, func(d *domain.Document) bool {
		d.FocalPoint = &fp
		return true
	})
}

// ClearFocalPoint removes the focal point if one is set.
func (m *Manager) ClearFocalPoint() bool {
	if m.doc == nil || m.doc.FocalPoint == nil {
		return false
	}
	return m.Mutate(true, func(d *domain.Document) bool {
		d.FocalPoint = nil
		return true
	})
}

// UpdateHotspot sets the link metadata of a hotspot.
func (m *Manager) UpdateHotspot(id, target, selector string) bool {
	if m.doc == nil || m.doc.HotspotIndex(id) < 0 {
		return false
	}
	return m.Mutate(true, func(d *domain.Document) bool {
		h := &d.Hotspots[d.HotspotIndex(id)]
		h.Target, h.Selector = target, selector
		return true
	})
}

// UpdatePolygon sets the link metadata of a polygon.
func (m *Manager) UpdatePolygon(id, target, selector string) bool {
	if m.doc == nil || m.doc.PolygonIndex(id) < 0 {
		return false
	}
	return m.Mutate(true, func(d *domain.Document) bool {
		p := &d.Polygons[d.PolygonIndex(id)]
		p.Target, p.Selector = target, selector
		return true
	})
}

// SwapImage points the document at a new image and drops everything placed
// on the old one. History is cleared since old steps refer to another image.
func (m *Manager) SwapImage(img domain.ImageRef) bool {
	ok := m.Mutate(false, func(d *domain.Document) bool {
		d.Image = &img
		d.FocalPoint = nil
		d.Hotspots = []domain.Hotspot{}
		d.Polygons = []domain.Polygon{}
		return true
	})
	if ok {
		m.ClearHistory()
	}
	return ok
}

// RemoveImage empties the document entirely and clears history.
func (m *Manager) RemoveImage() bool {
	if m.doc == nil {
		return false
	}
	m.CommitDocument(domain.New(nil))
	m.ClearHistory()
	return true
}
