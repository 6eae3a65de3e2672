/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the metadata document edited on top of a shoppable image.
// All coordinates are normalized to the image's own [0,1]x[0,1] space.

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalid is returned by Validate for documents that break model invariants.
var ErrInvalid = errors.New("invalid document")

// Document is the persisted metadata unit written to the host field.
type Document struct {
	Image      *ImageRef   `json:"image,omitempty"`
	FocalPoint *FocalPoint `json:"focalPoint,omitempty"`
	Hotspots   []Hotspot   `json:"hotspots"`
	Polygons   []Polygon   `json:"polygons"`
}

// ImageRef references the source asset. Fields mirror the host's media link.
type ImageRef struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	Endpoint    string `json:"endpoint,omitempty"`
	DefaultHost string `json:"defaultHost,omitempty"`
	// Width and Height are the natural pixel size when known.
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
}

// Empty reports whether the reference points at nothing.
func (r *ImageRef) Empty() bool {
	return r == nil || (r.ID == "" && r.Name == "")
}

// URL builds the public rendition URL. host overrides DefaultHost when set
// (e.g. a staging environment).
func (r *ImageRef) URL(host string) string {
	if r.Empty() {
		return ""
	}
	if host == "" {
		host = r.DefaultHost
	}
	return fmt.Sprintf("https://%s/i/%s/%s", host, r.Endpoint, url.PathEscape(r.Name))
}

// ParseImageURL is the inverse of URL for https://host/i/endpoint/name.
// The ID is left empty; size is unknown.
func ParseImageURL(raw string) (ImageRef, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return ImageRef{}, fmt.Errorf("image url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if u.Host == "" || len(parts) != 3 || parts[0] != "i" || parts[1] == "" || parts[2] == "" {
		return ImageRef{}, fmt.Errorf("image url %q: want https://host/i/<endpoint>/<name>", raw)
	}
	return ImageRef{Name: parts[2], Endpoint: parts[1], DefaultHost: u.Host}, nil
}

// Point is a normalized 2D coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FocalPoint is the rectangle of primary interest, top-left plus size.
type FocalPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Center returns the middle of the rectangle.
func (f FocalPoint) Center() Point { return Point{X: f.X + f.W/2, Y: f.Y + f.H/2} }

// Hotspot is a single point marker with link metadata.
type Hotspot struct {
	ID       string `json:"id"`
	Target   string `json:"target"`
	Selector string `json:"selector"`
	Point    Point  `json:"point"`
}

// Polygon is an outlined region with link metadata. Points are kept in
// insertion order; order only matters for display.
type Polygon struct {
	ID       string  `json:"id"`
	Target   string  `json:"target"`
	Selector string  `json:"selector"`
	Points   []Point `json:"points"`
}

// MinPolygonPoints is the smallest outline a polygon may carry.
const MinPolygonPoints = 3

// New returns an empty document for the given image.
func New(img *ImageRef) Document {
	return Document{Image: img, Hotspots: []Hotspot{}, Polygons: []Polygon{}}
}

// Clone returns a deep copy of d.
func (d Document) Clone() Document {
	out := Document{
		Hotspots: make([]Hotspot, len(d.Hotspots)),
		Polygons: make([]Polygon, len(d.Polygons)),
	}
	if d.Image != nil {
		img := *d.Image
		out.Image = &img
	}
	if d.FocalPoint != nil {
		fp := *d.FocalPoint
		out.FocalPoint = &fp
	}
	copy(out.Hotspots, d.Hotspots)
	for i, p := range d.Polygons {
		p.Points = append([]Point(nil), p.Points...)
		out.Polygons[i] = p
	}
	return out
}

// HotspotIndex returns the index of the hotspot with id, or -1.
func (d *Document) HotspotIndex(id string) int {
	for i := range d.Hotspots {
		if d.Hotspots[i].ID == id {
			return i
		}
	}
	return -1
}

// PolygonIndex returns the index of the polygon with id, or -1.
func (d *Document) PolygonIndex(id string) int {
	for i := range d.Polygons {
		if d.Polygons[i].ID == id {
			return i
		}
	}
	return -1
}

// Validate checks id uniqueness and minimum polygon size.
func (d *Document) Validate() error {
	seen := make(map[string]struct{}, len(d.Hotspots))
	for _, h := range d.Hotspots {
		if h.ID == "" {
			return fmt.Errorf("%w: hotspot without id", ErrInvalid)
		}
		if _, dup := seen[h.ID]; dup {
			return fmt.Errorf("%w: duplicate hotspot id %q", ErrInvalid, h.ID)
		}
		seen[h.ID] = struct{}{}
	}
	seen = make(map[string]struct{}, len(d.Polygons))
	for _, p := range d.Polygons {
		if p.ID == "" {
			return fmt.Errorf("%w: polygon without id", ErrInvalid)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("%w: duplicate polygon id %q", ErrInvalid, p.ID)
		}
		seen[p.ID] = struct{}{}
		if len(p.Points) < MinPolygonPoints {
			return fmt.Errorf("%w: polygon %q has %d points", ErrInvalid, p.ID, len(p.Points))
		}
	}
	return nil
}

// Marshal encodes d as indented JSON, with empty lists rather than null.
func Marshal(d Document) ([]byte, error) {
	if d.Hotspots == nil {
		d.Hotspots = []Hotspot{}
	}
	if d.Polygons == nil {
		d.Polygons = []Polygon{}
	}
	return json.MarshalIndent(d, "", "  ")
}

// Unmarshal decodes a document. A null or empty payload yields an empty document.
func Unmarshal(data []byte) (Document, error) {
	var d Document
	if len(data) == 0 || string(data) == "null" {
		return New(nil), nil
	}
	if err := json.Unmarshal(data, &d); err != nil {
		return Document{}, fmt.Errorf("decode document: %w", err)
	}
	if d.Hotspots == nil {
		d.Hotspots = []Hotspot{}
	}
	if d.Polygons == nil {
		d.Polygons = []Polygon{}
	}
	return d, nil
}
