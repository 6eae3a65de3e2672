/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"goshoppable/internal/domain"
	"goshoppable/internal/geometry"
)

// PNGOptions controls PNG export behavior.
// - Width: output width in pixels; height follows the image aspect
// - Mask: write a black/white polygon mask instead of the coloured overlay
// - IncludeFocal: outline the focal rectangle
// - Labels: print each shape's target next to it
type PNGOptions struct {
	Width        int
	Mask         bool
	IncludeFocal bool
	Labels       bool
}

// RenderMask rasterizes every polygon of d into a w x h alpha mask. Pixels
// inside any polygon are opaque, all others transparent.
func RenderMask(d domain.Document, w, h int) *image.Alpha {
	dst := image.NewAlpha(image.Rect(0, 0, w, h))
	for _, p := range d.Polygons {
		z := polygonRasterizer(p.Points, w, h)
		z.Draw(dst, dst.Bounds(), image.Opaque, image.Point{})
	}
	return dst
}

// RenderOverlay draws d onto a transparent w x h canvas: filled polygons with
// an outline, hotspot discs, and optionally the focal rectangle and labels.
func RenderOverlay(d domain.Document, w, h int, opt PNGOptions) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	fw, fh := float64(w), float64(h)

	fill := color.RGBA{R: polygonColor.R / 4, G: polygonColor.G / 4, B: polygonColor.B / 4, A: 0x40}
	for _, p := range d.Polygons {
		z := polygonRasterizer(p.Points, w, h)
		z.Draw(img, img.Bounds(), image.NewUniform(fill), image.Point{})
		strokePolyline(img, p.Points, fw, fh, polygonColor)
	}

	r := math.Max(6, fw*0.01)
	for _, hs := range d.Hotspots {
		cx, cy := hs.Point.X*fw, hs.Point.Y*fh
		disc := geometry.CircleApprox(cx-r, cy-r, 2*r, 2*r)
		z := vector.NewRasterizer(w, h)
		addPath(z, disc)
		z.Draw(img, img.Bounds(), image.NewUniform(hotspotColor), image.Point{})
	}

	if opt.IncludeFocal && d.FocalPoint != nil {
		fp := d.FocalPoint
		x0, y0 := int(math.Round(fp.X*fw)), int(math.Round(fp.Y*fh))
		x1, y1 := int(math.Round((fp.X+fp.W)*fw))-1, int(math.Round((fp.Y+fp.H)*fh))-1
		strokeRect(img, x0, y0, x1, y1, focalColor)
	}

	if opt.Labels {
		for _, p := range d.Polygons {
			if p.Target == "" {
				continue
			}
			b := geometry.PolygonBounds(p.Points)
			drawLabel(img, int(b.X*fw)+4, int(b.Y*fh)+14, p.Target, polygonColor)
		}
		for _, hs := range d.Hotspots {
			if hs.Target == "" {
				continue
			}
			drawLabel(img, int(hs.Point.X*fw+r)+4, int(hs.Point.Y*fh)+5, hs.Target, hotspotColor)
		}
	}
	return img
}

// WritePNG encodes the overlay (or mask) of d to w.
func WritePNG(w io.Writer, d domain.Document, opt PNGOptions) error {
	pxW, pxH := PixelSize(d, opt.Width)
	var img image.Image
	if opt.Mask {
		img = RenderMask(d, pxW, pxH)
	} else {
		img = RenderOverlay(d, pxW, pxH, opt)
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// ExportPNG writes the overlay (or mask) of d to path.
func ExportPNG(path string, d domain.Document, opt PNGOptions) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create png: %w", err)
	}
	if err := WritePNG(f, d, opt); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close png: %w", err)
	}
	return nil
}

func polygonRasterizer(pts []domain.Point, w, h int) *vector.Rasterizer {
	z := vector.NewRasterizer(w, h)
	scaled := make([]geometry.Pt, len(pts))
	for i, p := range pts {
		scaled[i] = geometry.Pt{X: p.X * float64(w), Y: p.Y * float64(h)}
	}
	addPath(z, scaled)
	return z
}

// addPath adds the closed outline through pts, already in pixel space.
func addPath(z *vector.Rasterizer, pts []geometry.Pt) {
	if len(pts) < 3 {
		return
	}
	z.MoveTo(float32(pts[0].X), float32(pts[0].Y))
	for _, p := range pts[1:] {
		z.LineTo(float32(p.X), float32(p.Y))
	}
	z.ClosePath()
}

// strokePolyline draws the closed 1px outline of normalized pts.
func strokePolyline(img *image.RGBA, pts []domain.Point, fw, fh float64, col color.RGBA) {
	for i := range pts {
		a, b := pts[i], pts[(i+1)%len(pts)]
		drawLine(img, a.X*fw, a.Y*fh, b.X*fw, b.Y*fh, col)
	}
}

func drawLine(img *image.RGBA, x0, y0, x1, y1 float64, col color.RGBA) {
	steps := int(math.Max(math.Abs(x1-x0), math.Abs(y1-y0)))
	if steps == 0 {
		img.SetRGBA(int(x0), int(y0), col)
		return
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		img.SetRGBA(int(math.Round(x0+(x1-x0)*t)), int(math.Round(y0+(y1-y0)*t)), col)
	}
}

// strokeRect draws a 1px axis-aligned rectangle border inclusive of endpoints.
func strokeRect(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	for x := x0; x <= x1; x++ {
		img.SetRGBA(x, y0, col)
		img.SetRGBA(x, y1, col)
	}
	for y := y0; y <= y1; y++ {
		img.SetRGBA(x0, y, col)
		img.SetRGBA(x1, y, col)
	}
}

func drawLabel(img draw.Image, x, y int, text string, col color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
