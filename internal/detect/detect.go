/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package detect finds shoppable objects in an image through a pluggable
// detector backend and turns them into candidates the editor can apply.
package detect

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"goshoppable/internal/domain"
	"goshoppable/internal/geometry"
)

var (
	// ErrFailed marks any detection that produced no usable result.
	ErrFailed = errors.New("detection failed")
	// ErrInsufficientCredits is reported by the service when the account
	// cannot pay for another detection.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrCancelled is returned to a request superseded by a newer one.
	ErrCancelled = errors.New("request cancelled")
	// ErrTimeout is wrapped together with ErrFailed.
	ErrTimeout = errors.New("detection timed out")
)

// Bounds is a candidate's box in normalized image space.
type Bounds struct {
	TopLeft domain.Point `json:"topLeft"`
	Width   float64      `json:"width"`
	Height  float64      `json:"height"`
}

func (b Bounds) Rect() geometry.Rect {
	return geometry.R(b.TopLeft.X, b.TopLeft.Y, b.Width, b.Height)
}

// Candidate is one detected object. Target and Selector are filled in by
// GenerateSelectors.
type Candidate struct {
	ID       string         `json:"id"`
	Label    string         `json:"label"`
	Center   domain.Point   `json:"center"`
	Bounds   *Bounds        `json:"bounds,omitempty"`
	Outline  []domain.Point `json:"outline,omitempty"`
	Target   string         `json:"target,omitempty"`
	Selector string         `json:"selector,omitempty"`
}

// Focus is the point a focal rectangle centres on: the bounds centre when
// known, else the reported centre.
func (c Candidate) Focus() domain.Point {
	if c.Bounds != nil {
		return c.Bounds.Rect().Center()
	}
	return c.Center
}

// Request describes one detection. Find narrows the search to named things.
type Request struct {
	ImageURL string
	Hints    []string
	Find     []string
}

// Detector is a detection backend. Implementations must honour ctx.
type Detector interface {
	Detect(ctx context.Context, req Request) ([]Candidate, error)
}

// GenerateSelectors sets Target to the label and derives a CSS-like selector
// unique within the batch: ".sofa", ".sofa-1", ".sofa-2".
func GenerateSelectors(in []Candidate) []Candidate {
	seen := map[string]int{}
	out := make([]Candidate, len(in))
	for i, c := range in {
		n := seen[c.Label]
		seen[c.Label] = n + 1
		c.Target = c.Label
		if n > 0 {
			c.Selector = fmt.Sprintf(".%s-%d", c.Label, n)
		} else {
			c.Selector = "." + c.Label
		}
		out[i] = c
	}
	return out
}

// normalizeCandidates rejects a batch with any candidate lacking an id or a
// label. Outlines too short to form a polygon are dropped.
func normalizeCandidates(cs []Candidate) ([]Candidate, error) {
	out := make([]Candidate, 0, len(cs))
	for i, c := range cs {
		if strings.TrimSpace(c.ID) == "" || strings.TrimSpace(c.Label) == "" {
			return nil, fmt.Errorf("%w: candidate %d missing id or label", ErrFailed, i)
		}
		if len(c.Outline) < domain.MinPolygonPoints {
			c.Outline = nil
		}
		out = append(out, c)
	}
	return out, nil
}
