/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package geometry

import "goshoppable/internal/domain"

// Control point fractions of the 12-point circle outline.
const (
	circleEdge   = 0.37
	circleCorner = 0.13
)

// PolygonBounds returns the axis-aligned bounding box of pts.
// An empty slice yields the zero rect.
func PolygonBounds(pts []Pt) Rect {
	if len(pts) == 0 {
		return Rect{}
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := minX, minY
	for _, p := range pts[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// Box returns the 4 corners of the rectangle with top-left (x,y), clockwise.
func Box(x, y, w, h float64) []Pt {
	return []Pt{
		{X: x, Y: y},
		{X: x + w, Y: y},
		{X: x + w, Y: y + h},
		{X: x, Y: y + h},
	}
}

// CircleApprox returns a 12-point outline approximating the ellipse inscribed
// in the rectangle with top-left (x,y) and size (xr,yr). Edge points sit at
// 0.37 along each side and corner points cut in by 0.13, so the outline's
// bounds equal the rectangle.
func CircleApprox(x, y, xr, yr float64) []Pt {
	return []Pt{
		{X: x + circleEdge*xr, Y: y},
		{X: x + (1-circleEdge)*xr, Y: y},
		{X: x + (1-circleCorner)*xr, Y: y + circleCorner*yr},
		{X: x + xr, Y: y + circleEdge*yr},
		{X: x + xr, Y: y + (1-circleEdge)*yr},
		{X: x + (1-circleCorner)*xr, Y: y + (1-circleCorner)*yr},
		{X: x + (1-circleEdge)*xr, Y: y + yr},
		{X: x + circleEdge*xr, Y: y + yr},
		{X: x + circleCorner*xr, Y: y + (1-circleCorner)*yr},
		{X: x, Y: y + (1-circleEdge)*yr},
		{X: x, Y: y + circleEdge*yr},
		{X: x + circleCorner*xr, Y: y + circleCorner*yr},
	}
}

// ClampFocalPoint shifts fp so it lies inside [0,1]. Width and height are
// capped at 1; the rectangle is moved, never rejected.
func ClampFocalPoint(fp domain.FocalPoint) domain.FocalPoint {
	fp.W = clamp01(fp.W)
	fp.H = clamp01(fp.H)
	if fp.X < 0 {
		fp.X = 0
	}
	if fp.Y < 0 {
		fp.Y = 0
	}
	if fp.X+fp.W > 1 {
		fp.X = 1 - fp.W
	}
	if fp.Y+fp.H > 1 {
		fp.Y = 1 - fp.H
	}
	return fp
}

// FocalPointAround returns a clamped w x h focal point centred on c.
func FocalPointAround(c Pt, w, h float64) domain.FocalPoint {
	return ClampFocalPoint(domain.FocalPoint{X: c.X - w/2, Y: c.Y - h/2, W: w, H: h})
}

// ScaleAround returns the transform that scales by (sx,sy) keeping anchor fixed.
func ScaleAround(anchor Pt, sx, sy float64) Affine2D {
	return Translate(anchor.X, anchor.Y).Mul(Scale(sx, sy)).Mul(Translate(-anchor.X, -anchor.Y))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
