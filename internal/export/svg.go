/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strings"

	"tripbook/internal/domain"
	"tripbook/internal/vector"
)

const svgFontFamily = "Helvetica, Arial, sans-serif"

// WriteSVG renders one page as a standalone SVG document.
// Images are referenced by URL, not embedded.
func WriteSVG(w io.Writer, sc Scene) error {
	var buf bytes.Buffer
	var werr error
	wf := func(format string, args ...any) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(&buf, format, args...)
	}

	cw, ch := sc.Canvas.W, sc.Canvas.H
	wf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	wf("<svg xmlns=\"http://www.w3.org/2000/svg\" xmlns:xlink=\"http://www.w3.org/1999/xlink\" version=\"1.1\" width=\"%gpx\" height=\"%gpx\" viewBox=\"0 0 %g %g\">\n", cw, ch, cw, ch)
	wf("  <rect x=\"0\" y=\"0\" width=\"%g\" height=\"%g\"%s/>\n", cw, ch, svgFill(sc.Background()))

	sc.Frames(func(e domain.Element, f vector.Frame) {
		b := f.Box
		c := b.Center()
		if f.Rotation != 0 {
			wf("  <g data-id=\"%s\" transform=\"rotate(%g %g %g)\">\n", escAttr(e.ID), f.Rotation, c.X, c.Y)
		} else {
			wf("  <g data-id=\"%s\">\n", escAttr(e.ID))
		}
		switch e.Kind {
		case domain.KindImage:
			wf("    <image x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\" preserveAspectRatio=\"xMidYMid slice\" href=\"%s\" xlink:href=\"%s\"/>\n",
				b.X, b.Y, b.W, b.H, escAttr(e.Content), escAttr(e.Content))
		case domain.KindText:
			size := e.Style.FontSize()
			wf("    <text x=\"%g\" y=\"%g\" font-family=\"%s\" font-size=\"%g\" font-weight=\"%d\"%s>",
				b.X, b.Y, svgFontFamily, size, e.Style.FontWeight(), svgFill(vector.ParseColor(e.Style.Color(), vector.Black)))
			for _, line := range strings.Split(e.Content, "\n") {
				wf("<tspan x=\"%g\" dy=\"%g\">%s</tspan>", b.X, size*1.2, escText(line))
			}
			wf("</text>\n")
		case domain.KindSticker:
			wf("    <text x=\"%g\" y=\"%g\" font-size=\"%g\" text-anchor=\"middle\" dominant-baseline=\"central\">%s</text>\n",
				c.X, c.Y, math.Min(b.W, b.H)*0.8, escText(e.Content))
		}
		wf("  </g>\n")
	})
	wf("</svg>\n")

	if werr != nil {
		return fmt.Errorf("build svg: %w", werr)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	return nil
}

// svgFill returns the fill attributes for c, with an opacity when translucent.
func svgFill(c vector.Color) string {
	s := fmt.Sprintf(" fill=\"#%02x%02x%02x\"", c.R, c.G, c.B)
	if c.A < 255 {
		s += fmt.Sprintf(" fill-opacity=\"%.3g\"", float64(c.A)/255)
	}
	return s
}

func escAttr(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '"':
			b.WriteString("&quot;")
		case '\n':
			b.WriteByte(' ')
		case '\r':
			// skip
		default:
			writeXMLRune(&b, r)
		}
	}
	return b.String()
}

func escText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '\r':
			// skip
		default:
			writeXMLRune(&b, r)
		}
	}
	return b.String()
}

// writeXMLRune drops runes XML 1.0 does not allow. Invalid UTF-8 decodes to
// utf8.RuneError and is kept as U+FFFD.
func writeXMLRune(b *strings.Builder, r rune) {
	switch {
	case r == '\t' || r == '\n':
	case r < 0x20, r == 0xFFFE, r == 0xFFFF:
		return
	}
	b.WriteRune(r)
}
