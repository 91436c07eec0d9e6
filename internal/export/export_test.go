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
	"context"
	"encoding/xml"
	"errors"
	"io"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/image/font/basicfont"

	"tripbook/internal/canvas"
	"tripbook/internal/domain"
	"tripbook/internal/storage"
	"tripbook/internal/vector"
)

type sample struct {
	st    *storage.SQLStore
	book  domain.Book
	pages []domain.Page
}

func newSample(t *testing.T) sample {
	t.Helper()
	st, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "tripbook.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	ctx := context.Background()
	b, _, err := st.Books().GetOrCreate(ctx, domain.NewBook{TripID: "trip-7", Title: "Kyoto Scrapbook"})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	day1, err := st.Sections().Create(ctx, domain.NewSection{BookID: b.ID, Title: "Day 1"})
	if err != nil {
		t.Fatalf("section: %v", err)
	}
	day2, err := st.Sections().Create(ctx, domain.NewSection{BookID: b.ID, Title: "Day 2"})
	if err != nil {
		t.Fatalf("section: %v", err)
	}
	p1, err := st.Pages().Create(ctx, domain.NewPage{SectionID: day1.ID, BackgroundColor: "#fef3c7"})
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	p2, err := st.Pages().Create(ctx, domain.NewPage{SectionID: day2.ID})
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	elems := []domain.NewElement{
		{PageID: p1.ID, Kind: domain.KindImage, Content: "https://img.example.com/kyoto/torii.jpg?w=400&h=300", X: 10, Y: 10, Width: 300, Height: 200, ZIndex: 1},
		{PageID: p1.ID, Kind: domain.KindText, Content: "Hello, scrapbook!\nSecond line", X: 50, Y: 40, Width: 240, Height: 60, Rotation: 15, ZIndex: 2,
			Style: domain.Style{"color": "#1d4ed8", "fontSize": 20.0, "fontWeight": "bold"}},
		{PageID: p1.ID, Kind: domain.KindSticker, Content: "⛩", X: 70, Y: 70, Width: 120, Height: 120, ZIndex: 3},
	}
	for _, in := range elems {
		if _, err := st.Elements().Create(ctx, in); err != nil {
			t.Fatalf("element: %v", err)
		}
	}
	return sample{st: st, book: b, pages: []domain.Page{p1, p2}}
}

func readNonEmpty(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if len(data) == 0 {
		t.Fatalf("empty file: %s", path)
	}
	return data
}

func TestExportPageSVG(t *testing.T) {
	s := newSample(t)
	out := filepath.Join(t.TempDir(), "exports", "page.svg")
	if err := ExportPage(context.Background(), s.st, s.pages[0].ID, FormatSVG, out, Options{}); err != nil {
		t.Fatalf("export svg: %v", err)
	}
	svg := string(readNonEmpty(t, out))
	for _, want := range []string{
		`viewBox="0 0 1200 800"`,
		`fill="#fef3c7"`,
		`href="https://img.example.com/kyoto/torii.jpg?w=400&amp;h=300"`,
		`Hello, scrapbook!`,
		`Second line`,
		`font-weight="700"`,
		`fill="#1d4ed8"`,
		`transform="rotate(15 `,
		"⛩",
	} {
		if !strings.Contains(svg, want) {
			t.Fatalf("svg missing %q", want)
		}
	}
	if strings.Index(svg, "torii.jpg") > strings.Index(svg, "Hello, scrapbook!") {
		t.Fatalf("elements not in z order")
	}
}

func TestExportPagePNG(t *testing.T) {
	s := newSample(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "page.png")
	if err := ExportPage(context.Background(), s.st, s.pages[0].ID, FormatPNG, out, Options{}); err != nil {
		t.Fatalf("export png: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(readNonEmpty(t, out)))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 1200 || b.Dy() != 800 {
		t.Fatalf("size = %v", b)
	}
	bg := color.RGBAModel.Convert(img.At(2, 2)).(color.RGBA)
	if bg != (color.RGBA{R: 254, G: 243, B: 199, A: 255}) {
		t.Fatalf("background = %v", bg)
	}

	half := filepath.Join(dir, "half.png")
	if err := ExportPage(context.Background(), s.st, s.pages[0].ID, FormatPNG, half, Options{PNG: PNGOptions{Scale: 0.5}}); err != nil {
		t.Fatalf("export png: %v", err)
	}
	img, err = png.Decode(bytes.NewReader(readNonEmpty(t, half)))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 600 || b.Dy() != 400 {
		t.Fatalf("scaled size = %v", b)
	}
}

func TestExportPagePDF(t *testing.T) {
	s := newSample(t)
	out := filepath.Join(t.TempDir(), "page.pdf")
	opt := Options{Canvas: vector.Size{W: 800, H: 600}, PDF: PDFOptions{Outline: true}}
	if err := ExportPage(context.Background(), s.st, s.pages[0].ID, FormatPDF, out, opt); err != nil {
		t.Fatalf("export pdf: %v", err)
	}
	if data := readNonEmpty(t, out); !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("not a pdf")
	}
}

func TestExportPageMissing(t *testing.T) {
	s := newSample(t)
	out := filepath.Join(t.TempDir(), "missing.svg")
	err := ExportPage(context.Background(), s.st, "no-such-page", FormatSVG, out, Options{})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Fatalf("output should not exist")
	}
}

func TestLoadBookOrder(t *testing.T) {
	s := newSample(t)
	b, scenes, err := LoadBook(context.Background(), s.st, s.book.ID, vector.Size{})
	if err != nil {
		t.Fatalf("load book: %v", err)
	}
	if b.ID != s.book.ID {
		t.Fatalf("book = %s", b.ID)
	}
	if len(scenes) != 2 || scenes[0].Page.ID != s.pages[0].ID || scenes[1].Page.ID != s.pages[1].ID {
		t.Fatalf("unexpected page order")
	}
	if len(scenes[0].Elements) != 3 || len(scenes[1].Elements) != 0 {
		t.Fatalf("unexpected element counts")
	}
	for i, e := range scenes[0].Elements {
		if e.ZIndex != i+1 {
			t.Fatalf("element %d z = %d", i, e.ZIndex)
		}
	}
	if scenes[0].Canvas != canvas.DefaultCanvasSize {
		t.Fatalf("canvas = %v", scenes[0].Canvas)
	}
}

func TestExportBookPDF(t *testing.T) {
	s := newSample(t)
	out := filepath.Join(t.TempDir(), "book.pdf")
	if err := ExportBookPDF(context.Background(), s.st, s.book.ID, out, Options{}); err != nil {
		t.Fatalf("export book: %v", err)
	}
	if data := readNonEmpty(t, out); !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("not a pdf")
	}
}

func TestExportBookWithoutPages(t *testing.T) {
	s := newSample(t)
	ctx := context.Background()
	b, _, err := s.st.Books().GetOrCreate(ctx, domain.NewBook{TripID: "trip-empty", Title: "Empty"})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	err = ExportBookPDF(ctx, s.st, b.ID, filepath.Join(t.TempDir(), "empty.pdf"), Options{})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want invalid", err)
	}
}

func TestWritePNGCompositesThroughFrame(t *testing.T) {
	sc := Scene{
		Page:   domain.Page{BackgroundColor: "#ffffff"},
		Canvas: vector.Size{W: 100, H: 100},
		Elements: []domain.Element{
			{ID: "s", Kind: domain.KindSticker, Content: "*", X: 25, Y: 25, Width: 50, Height: 50, Rotation: 45, ZIndex: 1},
		},
	}
	var buf bytes.Buffer
	if err := WritePNG(&buf, sc, PNGOptions{}); err != nil {
		t.Fatalf("write png: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	center := color.RGBAModel.Convert(img.At(50, 50)).(color.RGBA)
	if center != toRGBA(stickerFill) {
		t.Fatalf("center = %v", center)
	}
	corner := color.RGBAModel.Convert(img.At(26, 26)).(color.RGBA)
	if corner != (color.RGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Fatalf("corner = %v", corner)
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"pdf": FormatPDF, ".SVG": FormatSVG, " png ": FormatPNG} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("cbz"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected invalid format error, got %v", err)
	}
}

func TestImageLabel(t *testing.T) {
	cases := map[string]string{
		"https://x.test/a/b/photo.png?size=2": "photo.png",
		"https://x.test/a/":                   "a",
		"":                                    "image",
	}
	for in, want := range cases {
		if got := imageLabel(in); got != want {
			t.Fatalf("imageLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSVGEscapeDropsInvalidXML(t *testing.T) {
	if got, want := escText("a\x00b\x1bc\xffd\te<"), "abc\uFFFDd\te&lt;"; got != want {
		t.Fatalf("escText = %q, want %q", got, want)
	}
	if got, want := escAttr("x\"\x07\ny\xfe"), "x&quot; y\uFFFD"; got != want {
		t.Fatalf("escAttr = %q, want %q", got, want)
	}

	sc := Scene{
		Page:   domain.Page{ID: "p1", BackgroundColor: "#ffffff"},
		Canvas: vector.Size{W: 400, H: 300},
		Elements: []domain.Element{
			{ID: "t1", Kind: domain.KindText, Content: "bell\x07 and \xc3\x28 bytes\x0c", X: 10, Y: 10, Width: 200, Height: 50, ZIndex: 1},
			{ID: "i1", Kind: domain.KindImage, Content: "https://x.test/a.jpg?\x01q=1", X: 40, Y: 40, Width: 100, Height: 100, ZIndex: 2},
		},
	}
	var buf bytes.Buffer
	if err := WriteSVG(&buf, sc); err != nil {
		t.Fatalf("WriteSVG: %v", err)
	}
	dec := xml.NewDecoder(&buf)
	for {
		_, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("output is not well-formed XML: %v", err)
		}
	}
}

func TestWrapLines(t *testing.T) {
	// 7px per glyph: "one two" is 49px wide.
	lines := wrapLines(basicfont.Face7x13, "one two three\n\nfour", 50)
	want := []string{"one two", "three", "", "four"}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Fatalf("lines = %q", lines)
	}
}
