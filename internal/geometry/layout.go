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

// DefaultViewportHeight is the fixed editor canvas height in pixels; the
// viewport width follows the window.
const DefaultViewportHeight = 458

// Layout describes how a letterboxed image is drawn into the viewport.
type Layout struct {
	CanvasW, CanvasH float64
	// Aspect converts normalized distances into comparable units on both
	// axes. Hit radii, margins and default shape sizes are scaled by it.
	Aspect Pt
	// WidthBounded is true when the image fills the viewport width.
	WidthBounded bool
}

// ComputeCanvasLayout fits an image of natural size img into viewport.
// A width-bounded image (wider than the viewport ratio) takes the full
// viewport width; otherwise it takes the full viewport height.
func ComputeCanvasLayout(img, viewport Size) Layout {
	if img.W <= 0 || img.H <= 0 {
		img = viewport
	}
	if viewport.W <= 0 || viewport.H <= 0 {
		return Layout{Aspect: Pt{X: 1, Y: 1}}
	}
	widthBounded := img.W/img.H > viewport.W/viewport.H

	l := Layout{WidthBounded: widthBounded}
	if widthBounded {
		l.CanvasW = viewport.W
		l.CanvasH = img.H / img.W * viewport.W
	} else {
		l.CanvasW = img.W / img.H * viewport.H
		l.CanvasH = viewport.H
	}

	unit := 1.0
	if widthBounded {
		unit = viewport.H / viewport.W
		l.Aspect = Pt{X: unit, Y: unit * l.CanvasW / l.CanvasH}
	} else {
		l.Aspect = Pt{X: unit * l.CanvasH / l.CanvasW, Y: unit}
	}
	return l
}

// Valid reports whether the layout has a drawable canvas.
func (l Layout) Valid() bool { return l.CanvasW > 0 && l.CanvasH > 0 }

// PointerToNormalized maps a pixel position to normalized image space.
// Results are not clamped; positions outside the canvas fall outside [0,1].
func PointerToNormalized(pointer, origin Pt, l Layout) Pt {
	return Pt{
		X: (pointer.X - origin.X) / l.CanvasW,
		Y: (pointer.Y - origin.Y) / l.CanvasH,
	}
}

// NormalizedToPointer is the inverse of PointerToNormalized.
func NormalizedToPointer(p, origin Pt, l Layout) Pt {
	return Pt{
		X: p.X*l.CanvasW + origin.X,
		Y: p.Y*l.CanvasH + origin.Y,
	}
}

// ToPixels scales a normalized rectangle to canvas pixels.
func (l Layout) ToPixels(r Rect) Rect {
	return Rect{X: r.X * l.CanvasW, Y: r.Y * l.CanvasH, W: r.W * l.CanvasW, H: r.H * l.CanvasH}
}
