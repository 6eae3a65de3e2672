/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders a metadata document as an SVG overlay, a PNG
// overlay or polygon mask, and a PDF proof sheet.
package export

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"

	"goshoppable/internal/domain"
	"goshoppable/internal/geometry"
)

// DefaultWidth is the output width in pixels when none is given.
const DefaultWidth = 1200

var (
	polygonColor = color.RGBA{R: 0x1e, G: 0x88, B: 0xe5, A: 0xff}
	hotspotColor = color.RGBA{R: 0xe5, G: 0x39, B: 0x35, A: 0xff}
	focalColor   = color.RGBA{R: 0xff, G: 0xb3, B: 0x00, A: 0xff}
)

// PixelSize returns the output size for width, keeping the image's natural
// aspect ratio when known and a square otherwise.
func PixelSize(d domain.Document, width int) (int, int) {
	if width <= 0 {
		width = DefaultWidth
	}
	if img := d.Image; img != nil && img.Width > 0 && img.Height > 0 {
		h := int(math.Round(float64(width) * float64(img.Height) / float64(img.Width)))
		return width, max(h, 1)
	}
	return width, width
}

// SVGOptions controls SVG export behavior.
//   - Width sets the pixel width; height follows the image aspect.
//   - Background embeds the image rendition as an <image> element.
//   - ImageHost overrides the image's default host for the rendition URL.
type SVGOptions struct {
	Width        int
	Background   bool
	ImageHost    string
	IncludeFocal bool
	Labels       bool
}

// WriteSVG renders d as an SVG overlay: polygons as paths, hotspots as
// circles and the focal point as a dashed rectangle.
func WriteSVG(w io.Writer, d domain.Document, opt SVGOptions) error {
	pxW, pxH := PixelSize(d, opt.Width)
	fw, fh := float64(pxW), float64(pxH)

	var buf bytes.Buffer
	var werr error
	wf := func(format string, args ...any) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(&buf, format, args...)
	}

	wf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	wf("<svg xmlns=\"http://www.w3.org/2000/svg\" xmlns:xlink=\"http://www.w3.org/1999/xlink\" version=\"1.1\" width=\"%dpx\" height=\"%dpx\" viewBox=\"0 0 %d %d\">\n", pxW, pxH, pxW, pxH)
	if opt.Background && !d.Image.Empty() {
		wf("  <image x=\"0\" y=\"0\" width=\"%d\" height=\"%d\" preserveAspectRatio=\"none\" xlink:href=\"%s\"/>\n", pxW, pxH, escAttr(d.Image.URL(opt.ImageHost)))
	}

	pc := hexColor(polygonColor)
	for _, p := range d.Polygons {
		path := geometry.PointsToPath(p.Points)
		wf("  <path id=\"%s\" data-target=\"%s\" data-selector=\"%s\" d=\"%s\" fill=\"%s\" fill-opacity=\"0.25\" stroke=\"%s\" stroke-width=\"2\"/>\n",
			escAttr(p.ID), escAttr(p.Target), escAttr(p.Selector), path.SVGData(fw, fh), pc, pc)
		if opt.Labels && p.Target != "" {
			b := path.Bounds()
			wf("  <text x=\"%g\" y=\"%g\" font-family=\"Helvetica, Arial, sans-serif\" font-size=\"14\" fill=\"%s\">%s</text>\n",
				round3(b.X*fw+4), round3(b.Y*fh+16), pc, escText(p.Target))
		}
	}

	hc := hexColor(hotspotColor)
	r := math.Max(6, fw*0.01)
	for _, h := range d.Hotspots {
		cx, cy := round3(h.Point.X*fw), round3(h.Point.Y*fh)
		wf("  <circle id=\"%s\" data-target=\"%s\" data-selector=\"%s\" cx=\"%g\" cy=\"%g\" r=\"%g\" fill=\"%s\" stroke=\"#ffffff\" stroke-width=\"2\"/>\n",
			escAttr(h.ID), escAttr(h.Target), escAttr(h.Selector), cx, cy, round3(r), hc)
		if opt.Labels && h.Target != "" {
			wf("  <text x=\"%g\" y=\"%g\" font-family=\"Helvetica, Arial, sans-serif\" font-size=\"14\" fill=\"%s\">%s</text>\n",
				round3(cx+r+4), round3(cy+5), hc, escText(h.Target))
		}
	}

	if opt.IncludeFocal && d.FocalPoint != nil {
		fp := d.FocalPoint
		wf("  <rect x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\" fill=\"none\" stroke=\"%s\" stroke-width=\"2\" stroke-dasharray=\"8 4\"/>\n",
			round3(fp.X*fw), round3(fp.Y*fh), round3(fp.W*fw), round3(fp.H*fh), hexColor(focalColor))
	}
	wf("</svg>\n")

	if werr != nil {
		return fmt.Errorf("build svg: %w", werr)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// ExportSVG writes the overlay to path, creating parent folders.
func ExportSVG(path string, d domain.Document, opt SVGOptions) error {
	var buf bytes.Buffer
	if err := WriteSVG(&buf, d, opt); err != nil {
		return err
	}
	if err := ensureDir(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	return nil
}

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	return nil
}

func hexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func round3(v float64) float64 { return geometry.FloatRound(v, 3) }

func escAttr(s string) string {
	// naive escaping sufficient for our simple usage
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch ch {
		case '"':
			out = append(out, "&quot;"...)
		case '&':
			out = append(out, "&amp;"...)
		case '<':
			out = append(out, "&lt;"...)
		case '\n':
			out = append(out, ' ')
		case '\r':
			// skip
		default:
			out = append(out, ch)
		}
	}
	return string(out)
}

func escText(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch ch {
		case '&':
			out = append(out, "&amp;"...)
		case '<':
			out = append(out, "&lt;"...)
		case '>':
			out = append(out, "&gt;"...)
		default:
			out = append(out, ch)
		}
	}
	return string(out)
}
