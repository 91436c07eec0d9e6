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
	"image/png"
	"io"
	"math"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"tripbook/internal/domain"
	"tripbook/internal/vector"
)

// PNGOptions controls PNG export behavior.
type PNGOptions struct {
	// Scale is output pixels per canvas pixel; zero means 1.
	Scale float64
}

// WritePNG rasterizes one page. Each element is painted into an unrotated
// tile which is then composited through the element's frame transform.
// Text uses a fixed bitmap face; font size is not honored.
func WritePNG(w io.Writer, sc Scene, opt PNGOptions) error {
	cw := int(math.Round(sc.Canvas.W))
	ch := int(math.Round(sc.Canvas.H))
	if cw <= 0 || ch <= 0 {
		return domain.Invalid("canvas size must be positive")
	}
	img := image.NewRGBA(image.Rect(0, 0, cw, ch))
	xdraw.Draw(img, img.Bounds(), image.NewUniform(toRGBA(sc.Background())), image.Point{}, xdraw.Src)

	sc.Frames(func(e domain.Element, f vector.Frame) {
		composite(img, paintTile(e, f.Box), f)
	})

	var out image.Image = img
	if s := opt.Scale; s > 0 && s != 1 {
		dst := image.NewRGBA(image.Rect(0, 0, max(1, int(math.Round(float64(cw)*s))), max(1, int(math.Round(float64(ch)*s)))))
		xdraw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
		out = dst
	}
	if err := png.Encode(w, out); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

func paintTile(e domain.Element, box vector.Rect) *image.RGBA {
	tw := max(1, int(math.Ceil(box.W)))
	th := max(1, int(math.Ceil(box.H)))
	tile := image.NewRGBA(image.Rect(0, 0, tw, th))
	switch e.Kind {
	case domain.KindImage:
		fillRect(tile, 0, 0, tw-1, th-1, toRGBA(placeholderFill))
		sc := toRGBA(placeholderStroke)
		strokeRect(tile, 0, 0, tw-1, th-1, sc)
		drawLine(tile, 0, 0, tw-1, th-1, sc)
		drawLine(tile, tw-1, 0, 0, th-1, sc)
		drawLines(tile, []string{imageLabel(e.Content)}, 4, th-4-basicfont.Face7x13.Height, placeholderStroke, false)
	case domain.KindText:
		col := vector.ParseColor(e.Style.Color(), vector.Black)
		lines := wrapLines(basicfont.Face7x13, e.Content, tw)
		drawLines(tile, lines, 0, 0, col, e.Style.FontWeight() >= 600)
	case domain.KindSticker:
		fillDisk(tile, toRGBA(stickerFill), toRGBA(stickerStroke))
	}
	return tile
}

// composite blends tile into dst through the frame's rotation.
func composite(dst *image.RGBA, tile *image.RGBA, f vector.Frame) {
	inv, ok := f.Transform().Invert()
	if !ok {
		return
	}
	bb := f.Bounds()
	area := image.Rect(int(math.Floor(bb.X)), int(math.Floor(bb.Y)), int(math.Ceil(bb.X+bb.W)), int(math.Ceil(bb.Y+bb.H))).Intersect(dst.Bounds())
	tb := tile.Bounds()
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			local := inv.Apply(vector.Pt{X: float64(x) + 0.5, Y: float64(y) + 0.5})
			tx := int(math.Floor(local.X - f.Box.X))
			ty := int(math.Floor(local.Y - f.Box.Y))
			if !(image.Point{X: tx, Y: ty}).In(tb) {
				continue
			}
			if s := tile.RGBAAt(tx, ty); s.A > 0 {
				blendOver(dst, x, y, s)
			}
		}
	}
}

// blendOver draws premultiplied s over the pixel at x,y.
func blendOver(img *image.RGBA, x, y int, s color.RGBA) {
	if s.A == 255 {
		img.SetRGBA(x, y, s)
		return
	}
	d := img.RGBAAt(x, y)
	a := 255 - uint32(s.A)
	img.SetRGBA(x, y, color.RGBA{
		R: uint8(uint32(s.R) + uint32(d.R)*a/255),
		G: uint8(uint32(s.G) + uint32(d.G)*a/255),
		B: uint8(uint32(s.B) + uint32(d.B)*a/255),
		A: uint8(uint32(s.A) + uint32(d.A)*a/255),
	})
}

func toRGBA(c vector.Color) color.RGBA {
	return color.RGBAModel.Convert(color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}).(color.RGBA)
}

// wrapLines breaks text at newlines and between words so each line fits width.
// A single word wider than width stays on its own line.
func wrapLines(face font.Face, text string, width int) []string {
	var out []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			cand := line + " " + w
			if font.MeasureString(face, cand).Ceil() > width {
				out = append(out, line)
				line = w
				continue
			}
			line = cand
		}
		out = append(out, line)
	}
	return out
}

// drawLines draws lines top-down starting with the line box at x,y.
func drawLines(img *image.RGBA, lines []string, x, y int, c vector.Color, bold bool) {
	face := basicfont.Face7x13
	src := image.NewUniform(color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A})
	lh := face.Height
	for i, line := range lines {
		base := y + i*lh + face.Ascent
		if base-face.Ascent >= img.Bounds().Dy() {
			return
		}
		d := &font.Drawer{Dst: img, Src: src, Face: face, Dot: fixed.P(x, base)}
		d.DrawString(line)
		if bold {
			d.Dot = fixed.P(x+1, base)
			d.DrawString(line)
		}
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

func fillRect(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			img.SetRGBA(x, y, col)
		}
	}
}

func drawLine(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	dx, dy := x1-x0, y1-y0
	steps := max(abs(dx), abs(dy))
	if steps == 0 {
		img.SetRGBA(x0, y0, col)
		return
	}
	for i := 0; i <= steps; i++ {
		x := x0 + int(math.Round(float64(dx*i)/float64(steps)))
		y := y0 + int(math.Round(float64(dy*i)/float64(steps)))
		img.SetRGBA(x, y, col)
	}
}

// fillDisk paints the largest centered disk with a 2px rim.
func fillDisk(img *image.RGBA, fill, rim color.RGBA) {
	b := img.Bounds()
	cx, cy := float64(b.Dx())/2, float64(b.Dy())/2
	r := math.Min(cx, cy)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			d := math.Hypot(float64(x)+0.5-cx, float64(y)+0.5-cy)
			switch {
			case d > r:
			case d > r-2:
				img.SetRGBA(x, y, rim)
			default:
				img.SetRGBA(x, y, fill)
			}
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
