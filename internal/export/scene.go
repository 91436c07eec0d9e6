/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders scrapbook pages to PDF, SVG and PNG.
// Every renderer places elements exactly like the editor does: the element's
// percentage anchor is the top-left of its box and rotation is applied about
// the box center, in ascending z order.
package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"tripbook/internal/canvas"
	"tripbook/internal/directory"
	"tripbook/internal/domain"
	applog "tripbook/internal/log"
	"tripbook/internal/storage"
	"tripbook/internal/vector"
)

// Scene is one page ready to render.
type Scene struct {
	Page     domain.Page
	Elements []domain.Element // paint order
	Canvas   vector.Size
}

// Frames yields each element with its placement on the scene's canvas.
func (s Scene) Frames(fn func(e domain.Element, f vector.Frame)) {
	for _, e := range s.Elements {
		fn(e, vector.FrameOf(e, s.Canvas))
	}
}

// Background returns the page color, white when unset or unparseable.
func (s Scene) Background() vector.Color {
	return vector.ParseColor(s.Page.BackgroundColor, vector.White)
}

// Source is the read access a page export needs.
type Source interface {
	Pages() storage.PageRepository
	Elements() storage.ElementRepository
}

// LoadScene reads a page and its elements. A zero canvas uses canvas.DefaultCanvasSize.
func LoadScene(ctx context.Context, src Source, pageID string, size vector.Size) (Scene, error) {
	if strings.TrimSpace(pageID) == "" {
		return Scene{}, domain.Invalid("page id is required")
	}
	if !size.Valid() {
		size = canvas.DefaultCanvasSize
	}
	p, err := src.Pages().Get(ctx, pageID)
	if err != nil {
		return Scene{}, domain.Persistence("load page", err)
	}
	elems, err := src.Elements().List(ctx, pageID)
	if err != nil {
		return Scene{}, domain.Persistence("load elements", err)
	}
	sort.SliceStable(elems, func(i, j int) bool {
		a, b := elems[i], elems[j]
		if a.ZIndex != b.ZIndex {
			return a.ZIndex < b.ZIndex
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return Scene{Page: p, Elements: elems, Canvas: size}, nil
}

// LoadBook reads every page of a book in section then page order.
// Pages load concurrently.
func LoadBook(ctx context.Context, st storage.Store, bookID string, size vector.Size) (domain.Book, []Scene, error) {
	tree, err := directory.New(st, applog.WithComponent("export")).Tree(ctx, bookID)
	if err != nil {
		return domain.Book{}, nil, err
	}
	ids := tree.PageIDs()
	scenes := make([]Scene, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, id := range ids {
		g.Go(func() error {
			sc, err := LoadScene(gctx, st, id, size)
			scenes[i] = sc
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return domain.Book{}, nil, err
	}
	return tree.Book, scenes, nil
}

// Format is an output file type.
type Format string

const (
	FormatPDF Format = "pdf"
	FormatSVG Format = "svg"
	FormatPNG Format = "png"
)

// ParseFormat accepts a format name or a file extension.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))); f {
	case FormatPDF, FormatSVG, FormatPNG:
		return f, nil
	}
	return "", domain.Invalid("unknown export format %q", s)
}

// Options bundles the per-format settings.
type Options struct {
	Canvas vector.Size
	PDF    PDFOptions
	PNG    PNGOptions
}

// ExportPage writes one page to outPath in the given format.
func ExportPage(ctx context.Context, src Source, pageID string, f Format, outPath string, opt Options) error {
	sc, err := LoadScene(ctx, src, pageID, opt.Canvas)
	if err != nil {
		return err
	}
	l := applog.WithOperation(applog.WithComponent("export"), "page")
	l.Info("export page", "page", pageID, "format", string(f), "out", outPath, "elements", len(sc.Elements))
	return writeFile(outPath, func(w io.Writer) error {
		switch f {
		case FormatPDF:
			return WritePDF(w, []Scene{sc}, opt.PDF)
		case FormatSVG:
			return WriteSVG(w, sc)
		case FormatPNG:
			return WritePNG(w, sc, opt.PNG)
		}
		return domain.Invalid("unknown export format %q", f)
	})
}

// ExportBookPDF writes a whole book as one PDF, one PDF page per scrapbook page.
func ExportBookPDF(ctx context.Context, st storage.Store, bookID, outPath string, opt Options) error {
	b, scenes, err := LoadBook(ctx, st, bookID, opt.Canvas)
	if err != nil {
		return err
	}
	if len(scenes) == 0 {
		return domain.Invalid("book %s has no pages", bookID)
	}
	po := opt.PDF
	if po.Title == "" {
		po.Title = b.Title
	}
	l := applog.WithOperation(applog.WithComponent("export"), "book")
	l.Info("export book", "book", bookID, "pages", len(scenes), "out", outPath)
	return writeFile(outPath, func(w io.Writer) error { return WritePDF(w, scenes, po) })
}

func writeFile(outPath string, fn func(w io.Writer) error) error {
	if dir := filepath.Dir(outPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure out dir: %w", err)
		}
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(outPath), err)
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		_ = os.Remove(outPath)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(outPath), err)
	}
	return nil
}

// imageLabel is the caption drawn in place of an image reference.
func imageLabel(url string) string {
	u := strings.TrimSpace(url)
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	u = strings.TrimRight(u, "/")
	if i := strings.LastIndex(u, "/"); i >= 0 {
		u = u[i+1:]
	}
	if u == "" {
		return "image"
	}
	return u
}
