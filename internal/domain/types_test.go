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

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func sampleDocument() Document {
	d := New(&ImageRef{ID: "a1", Name: "sofa", Endpoint: "shop", DefaultHost: "cdn.example.com"})
	d.FocalPoint = &FocalPoint{X: 0.1, Y: 0.2, W: 0.3, H: 0.3}
	d.Hotspots = append(d.Hotspots, Hotspot{ID: "h1", Target: "lamp", Selector: ".lamp", Point: Point{X: 0.5, Y: 0.5}})
	d.Polygons = append(d.Polygons, Polygon{ID: "p1", Target: "sofa", Selector: ".sofa", Points: []Point{{0, 0}, {0.2, 0}, {0.2, 0.2}, {0, 0.2}}})
	return d
}

func TestCloneIsDeep(t *testing.T) {
	d := sampleDocument()
	c := d.Clone()
	c.Polygons[0].Points[0].X = 0.9
	c.Hotspots[0].Target = "other"
	c.FocalPoint.X = 0.7
	c.Image.Name = "changed"
	if d.Polygons[0].Points[0].X != 0 || d.Hotspots[0].Target != "lamp" || d.FocalPoint.X != 0.1 || d.Image.Name != "sofa" {
		t.Fatalf("clone shares memory with original: %+v", d)
	}
}

func TestValidate(t *testing.T) {
	d := sampleDocument()
	if err := d.Validate(); err != nil {
		t.Fatalf("valid document rejected: %v", err)
	}
	d.Hotspots = append(d.Hotspots, Hotspot{ID: "h1"})
	if err := d.Validate(); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for duplicate id, got %v", err)
	}
	d = sampleDocument()
	d.Polygons[0].Points = d.Polygons[0].Points[:2]
	if err := d.Validate(); err == nil || !strings.Contains(err.Error(), "2 points") {
		t.Fatalf("expected point count error, got %v", err)
	}
	// Hotspot and polygon ids live in separate namespaces.
	d = sampleDocument()
	d.Polygons[0].ID = "h1"
	if err := d.Validate(); err != nil {
		t.Fatalf("shared id across kinds should be allowed: %v", err)
	}
}

func TestMarshalConformsToSchema(t *testing.T) {
	for name, d := range map[string]Document{
		"sample": sampleDocument(),
		"empty":  {},
	} {
		b, err := Marshal(d)
		if err != nil {
			t.Fatalf("%s: marshal: %v", name, err)
		}
		if err := ValidateJSON(b); err != nil {
			t.Fatalf("%s: schema: %v\n%s", name, err, b)
		}
	}
}

func TestValidateJSONRejects(t *testing.T) {
	cases := map[string]string{
		"missing lists":  `{}`,
		"short polygon":  `{"hotspots":[],"polygons":[{"id":"p","target":"","selector":"","points":[{"x":0,"y":0}]}]}`,
		"unknown field":  `{"hotspots":[],"polygons":[],"extra":1}`,
		"duplicate id":   `{"hotspots":[{"id":"a","target":"","selector":"","point":{"x":0,"y":0}},{"id":"a","target":"","selector":"","point":{"x":1,"y":1}}],"polygons":[]}`,
		"focal too wide": `{"hotspots":[],"polygons":[],"focalPoint":{"x":0,"y":0,"w":2,"h":0.1}}`,
	}
	for name, raw := range cases {
		if err := ValidateJSON([]byte(raw)); !errors.Is(err, ErrInvalid) {
			t.Fatalf("%s: expected ErrInvalid, got %v", name, err)
		}
	}
}

func TestUnmarshalNullAndOnWireKeys(t *testing.T) {
	d, err := Unmarshal([]byte("null"))
	if err != nil || d.Hotspots == nil || d.Polygons == nil {
		t.Fatalf("null payload: %+v %v", d, err)
	}
	b, _ := json.Marshal(sampleDocument())
	for _, key := range []string{`"focalPoint"`, `"hotspots"`, `"polygons"`, `"point"`, `"points"`, `"selector"`} {
		if !strings.Contains(string(b), key) {
			t.Fatalf("missing key %s in %s", key, b)
		}
	}
}

func TestImageURL(t *testing.T) {
	img := &ImageRef{Name: "red sofa", Endpoint: "shop", DefaultHost: "cdn.example.com"}
	if got := img.URL(""); got != "https://cdn.example.com/i/shop/red%20sofa" {
		t.Fatalf("unexpected url %q", got)
	}
	if got := img.URL("staging.example.com"); !strings.HasPrefix(got, "https://staging.example.com/") {
		t.Fatalf("host override ignored: %q", got)
	}
	var none *ImageRef
	if none.URL("") != "" || !none.Empty() {
		t.Fatalf("nil ref should be empty")
	}
}

func TestParseImageURL(t *testing.T) {
	img, err := ParseImageURL("https://cdn.example.com/i/shop/red%20sofa")
	if err != nil {
		t.Fatal(err)
	}
	if img.Name != "red sofa" || img.Endpoint != "shop" || img.DefaultHost != "cdn.example.com" {
		t.Fatalf("parsed %+v", img)
	}
	if got := img.URL(""); got != "https://cdn.example.com/i/shop/red%20sofa" {
		t.Fatalf("round trip %q", got)
	}
	for _, bad := range []string{"https://cdn.example.com/shop/sofa", "/i/shop/sofa", "https://cdn.example.com/i/shop/"} {
		if _, err := ParseImageURL(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
