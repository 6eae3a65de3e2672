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
	"image/color"
	"io"
	"os"

	"github.com/jung-kurt/gofpdf"

	"goshoppable/internal/domain"
	"goshoppable/internal/geometry"
)

// PDFOptions controls the proof sheet.
//   - Title defaults to the image name.
//   - IncludeFocal outlines the focal rectangle with a dashed line.
//   - Table appends a listing of every hotspot and polygon.
type PDFOptions struct {
	Title        string
	IncludeFocal bool
	Table        bool
}

const (
	pageW, pageH = 595.28, 841.89 // A4 in points
	pageMargin   = 36.0
	maxOverlayH  = 460.0
)

// WritePDF renders a one-page proof sheet of d: the overlay drawn in a frame
// matching the image aspect, followed by an optional metadata table.
func WritePDF(w io.Writer, d domain.Document, opt PDFOptions) error {
	pdf := newProof(d, opt)
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// ExportPDF writes the proof sheet to path.
func ExportPDF(path string, d domain.Document, opt PDFOptions) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	pdf := newProof(d, opt)
	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("stat pdf: %w", err)
	}
	return nil
}

func newProof(d domain.Document, opt PDFOptions) *gofpdf.Fpdf {
	title := opt.Title
	if title == "" && d.Image != nil {
		title = d.Image.Name
	}
	if title == "" {
		title = "Untitled image"
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: pageW, Ht: pageH},
	})
	pdf.SetTitle(title+" - shoppable metadata", true)
	pdf.SetAuthor("goshoppable", false)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 20, pdf.UnicodeTranslatorFromDescriptor("")(title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	if d.Image != nil && !d.Image.Empty() {
		pdf.CellFormat(0, 12, d.Image.URL(""), "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	// overlay frame
	fw := pageW - 2*pageMargin
	fh := fw
	if img := d.Image; img != nil && img.Width > 0 && img.Height > 0 {
		fh = fw * float64(img.Height) / float64(img.Width)
	}
	if fh > maxOverlayH {
		fw *= maxOverlayH / fh
		fh = maxOverlayH
	}
	ox, oy := pageMargin, pdf.GetY()
	setDrawColor(pdf, color.RGBA{R: 0x90, G: 0x90, B: 0x90, A: 0xff})
	pdf.SetLineWidth(0.5)
	pdf.Rect(ox, oy, fw, fh, "D")

	pdf.SetLineWidth(1.2)
	setDrawColor(pdf, polygonColor)
	setFillColor(pdf, polygonColor)
	for _, p := range d.Polygons {
		pts := make([]gofpdf.PointType, len(p.Points))
		for i, pt := range p.Points {
			pts[i] = gofpdf.PointType{X: ox + pt.X*fw, Y: oy + pt.Y*fh}
		}
		pdf.SetAlpha(0.25, "Normal")
		pdf.Polygon(pts, "F")
		pdf.SetAlpha(1, "Normal")
		pdf.Polygon(pts, "D")
	}

	setDrawColor(pdf, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})
	setFillColor(pdf, hotspotColor)
	r := fw * 0.012
	for _, h := range d.Hotspots {
		pdf.Ellipse(ox+h.Point.X*fw, oy+h.Point.Y*fh, r, r, 0, "FD")
	}

	if opt.IncludeFocal && d.FocalPoint != nil {
		fp := d.FocalPoint
		setDrawColor(pdf, focalColor)
		pdf.SetDashPattern([]float64{6, 3}, 0)
		pdf.Rect(ox+fp.X*fw, oy+fp.Y*fh, fp.W*fw, fp.H*fh, "D")
		pdf.SetDashPattern([]float64{}, 0)
	}

	pdf.SetY(oy + fh + 14)
	if opt.Table {
		writeTable(pdf, d)
	}
	return pdf
}

func writeTable(pdf *gofpdf.Fpdf, d domain.Document) {
	cols := []float64{50, 44, 140, 140, 149.28}
	header := []string{"Kind", "ID", "Target", "Selector", "Position"}

	pdf.SetFont("Helvetica", "B", 9)
	setFillColor(pdf, color.RGBA{R: 0xee, G: 0xee, B: 0xee, A: 0xff})
	for i, h := range header {
		pdf.CellFormat(cols[i], 14, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 8)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	row := func(kind, id, target, selector, pos string) {
		vals := []string{kind, id, target, selector, pos}
		for i, v := range vals {
			pdf.CellFormat(cols[i], 12, tr(truncate(v, 40)), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
	for _, h := range d.Hotspots {
		row("hotspot", h.ID, h.Target, h.Selector, fmt.Sprintf("%.3f, %.3f", h.Point.X, h.Point.Y))
	}
	for _, p := range d.Polygons {
		b := geometry.PolygonBounds(p.Points)
		row("polygon", p.ID, p.Target, p.Selector,
			fmt.Sprintf("%d pts @ %.3f, %.3f  %.3fx%.3f", len(p.Points), b.X, b.Y, b.W, b.H))
	}
	if fp := d.FocalPoint; fp != nil {
		row("focal", "", "", "", fmt.Sprintf("%.3f, %.3f  %.3fx%.3f", fp.X, fp.Y, fp.W, fp.H))
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "..."
}

func setDrawColor(pdf *gofpdf.Fpdf, c color.RGBA) {
	pdf.SetDrawColor(int(c.R), int(c.G), int(c.B))
}

func setFillColor(pdf *gofpdf.Fpdf, c color.RGBA) {
	pdf.SetFillColor(int(c.R), int(c.G), int(c.B))
}
