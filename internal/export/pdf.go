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
	"io"
	"math"

	"github.com/jung-kurt/gofpdf"

	"tripbook/internal/domain"
	"tripbook/internal/vector"
)

// PDFOptions controls PDF export behavior.
// Canvas pixels map 1:1 to PDF points.
type PDFOptions struct {
	Title  string
	Author string
	// Outline draws a hairline around every element box.
	Outline bool
}

var (
	placeholderFill   = vector.Color{R: 243, G: 244, B: 246, A: 255}
	placeholderStroke = vector.Color{R: 156, G: 163, B: 175, A: 255}
	stickerFill       = vector.Color{R: 254, G: 243, B: 199, A: 255}
	stickerStroke     = vector.Color{R: 217, G: 119, B: 6, A: 255}
)

// WritePDF renders scenes as consecutive pages of one document.
func WritePDF(w io.Writer, scenes []Scene, opt PDFOptions) error {
	if len(scenes) == 0 {
		return domain.Invalid("nothing to export")
	}
	first := scenes[0].Canvas
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: first.W, Ht: first.H},
	})
	title := opt.Title
	if title == "" {
		title = "Scrapbook"
	}
	pdf.SetTitle(title, true)
	author := opt.Author
	if author == "" {
		author = "tripbook"
	}
	pdf.SetAuthor(author, true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	// Core fonts are cp1252; the translator keeps Latin text intact.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, sc := range scenes {
		pdf.AddPageFormat("", gofpdf.SizeType{Wd: sc.Canvas.W, Ht: sc.Canvas.H})
		setFillColor(pdf, sc.Background())
		pdf.Rect(0, 0, sc.Canvas.W, sc.Canvas.H, "F")

		sc.Frames(func(e domain.Element, f vector.Frame) {
			b := f.Box
			c := b.Center()
			pdf.TransformBegin()
			if f.Rotation != 0 {
				// gofpdf rotates counter-clockwise; element rotation is clockwise on screen.
				pdf.TransformRotate(-f.Rotation, c.X, c.Y)
			}
			switch e.Kind {
			case domain.KindImage:
				pdfImagePlaceholder(pdf, b, tr(imageLabel(e.Content)))
			case domain.KindText:
				pdfText(pdf, b, e.Style, tr(e.Content))
			case domain.KindSticker:
				setFillColor(pdf, stickerFill)
				setDrawColor(pdf, stickerStroke)
				pdf.SetLineWidth(1)
				r := math.Min(b.W, b.H) / 2
				pdf.Ellipse(c.X, c.Y, r, r, 0, "FD")
			}
			if opt.Outline {
				setDrawColor(pdf, placeholderStroke)
				pdf.SetLineWidth(0.25)
				pdf.Rect(b.X, b.Y, b.W, b.H, "D")
			}
			pdf.TransformEnd()
		})
	}
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("build pdf: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func pdfImagePlaceholder(pdf *gofpdf.Fpdf, b vector.Rect, label string) {
	setFillColor(pdf, placeholderFill)
	setDrawColor(pdf, placeholderStroke)
	pdf.SetLineWidth(1)
	pdf.Rect(b.X, b.Y, b.W, b.H, "FD")
	pdf.SetLineWidth(0.5)
	pdf.Line(b.X, b.Y, b.X+b.W, b.Y+b.H)
	pdf.Line(b.X+b.W, b.Y, b.X, b.Y+b.H)
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(int(placeholderStroke.R), int(placeholderStroke.G), int(placeholderStroke.B))
	pdf.ClipRect(b.X, b.Y, b.W, b.H, false)
	pdf.SetXY(b.X, b.Y+b.H-14)
	pdf.CellFormat(b.W, 12, label, "", 0, "C", false, 0, "")
	pdf.ClipEnd()
}

func pdfText(pdf *gofpdf.Fpdf, b vector.Rect, st domain.Style, text string) {
	col := vector.ParseColor(st.Color(), vector.Black)
	size := st.FontSize()
	fontStyle := ""
	if st.FontWeight() >= 600 {
		fontStyle = "B"
	}
	pdf.SetFont("Helvetica", fontStyle, size)
	pdf.SetTextColor(int(col.R), int(col.G), int(col.B))
	if col.A < 255 {
		pdf.SetAlpha(float64(col.A)/255, "Normal")
		defer pdf.SetAlpha(1, "Normal")
	}
	pdf.ClipRect(b.X, b.Y, b.W, b.H, false)
	pdf.SetXY(b.X, b.Y)
	pdf.MultiCell(b.W, size*1.2, text, "", "L", false)
	pdf.ClipEnd()
}

func setDrawColor(pdf *gofpdf.Fpdf, c vector.Color) {
	pdf.SetDrawColor(int(c.R), int(c.G), int(c.B))
}

func setFillColor(pdf *gofpdf.Fpdf, c vector.Color) {
	pdf.SetFillColor(int(c.R), int(c.G), int(c.B))
}
